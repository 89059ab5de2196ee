// Package dashboard provides REST API handlers for the trophy engine.
// It exposes endpoints for the trophy catalog, holders, user trophies,
// condition types and manual assignment runs.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aimd54/forum-trophies/internal/condition"
	"github.com/aimd54/forum-trophies/internal/lock"
	"github.com/aimd54/forum-trophies/internal/models"
	"github.com/aimd54/forum-trophies/internal/service/trophies"
	"github.com/aimd54/forum-trophies/pkg/logger"
)

// TrophyService interface for trophy operations.
type TrophyService interface {
	GetTrophyCatalog(ctx context.Context) ([]models.Trophy, error)
	GetTrophyByID(ctx context.Context, trophyID uint) (*models.Trophy, error)
	GetTrophyHolders(ctx context.Context, trophyID uint) ([]models.User, error)
	GetUserTrophies(ctx context.Context, userID uint) ([]models.UserTrophy, error)
	GroupedConditionTypes() map[string]map[string]condition.ConditionType
	OutstandingAssignmentCount(ctx context.Context) (int64, error)
	AwardTrophy(ctx context.Context, userID, trophyID uint) (*models.UserTrophy, error)
	RevokeTrophy(ctx context.Context, userID, trophyID uint) error
}

// AssignmentRunner runs a locked assignment.
type AssignmentRunner interface {
	RunAssignment(ctx context.Context, maxAssigns int) (*trophies.AssignmentResult, error)
}

// HealthChecker reports backend health.
type HealthChecker interface {
	Health() error
}

// Handler handles dashboard API requests.
type Handler struct {
	trophyService TrophyService
	runner        AssignmentRunner
	health        HealthChecker
	log           *logger.Logger
}

// NewHandler creates a new dashboard handler.
func NewHandler(trophyService TrophyService, runner AssignmentRunner, health HealthChecker, log *logger.Logger) *Handler {
	return &Handler{
		trophyService: trophyService,
		runner:        runner,
		health:        health,
		log:           log,
	}
}

// RegisterRoutes mounts the API on rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
	rg.GET("/conditions", h.GetConditionTypes)
	rg.GET("/trophies", h.GetTrophyCatalog)
	rg.GET("/trophies/outstanding", h.GetOutstanding)
	rg.POST("/trophies/assign", h.RunAssignment)
	rg.GET("/trophies/:id", h.GetTrophyByID)
	rg.GET("/trophies/:id/holders", h.GetTrophyHolders)
	rg.POST("/trophies/:id/holders", h.AwardTrophy)
	rg.DELETE("/trophies/:id/holders/:user_id", h.RevokeTrophy)
	rg.GET("/users/:id/trophies", h.GetUserTrophies)
}

// Health reports whether the database is reachable.
// GET /api/v1/health.
func (h *Handler) Health(c *gin.Context) {
	if h.health != nil {
		if err := h.health.Health(); err != nil {
			h.log.Error().Err(err).Msg("Health check failed")
			h.errorResponse(c, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// GetTrophyCatalog returns all trophies.
// GET /api/v1/trophies.
func (h *Handler) GetTrophyCatalog(c *gin.Context) {
	catalog, err := h.trophyService.GetTrophyCatalog(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get trophy catalog")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve trophy catalog")
		return
	}

	h.log.Info().
		Int("trophy_count", len(catalog)).
		Msg("Retrieved trophy catalog")

	c.JSON(http.StatusOK, gin.H{
		"trophies":       catalog,
		"total_trophies": len(catalog),
		"generated_at":   time.Now().UTC(),
	})
}

// GetTrophyByID returns details for a specific trophy.
// GET /api/v1/trophies/:id.
func (h *Handler) GetTrophyByID(c *gin.Context) {
	trophyID, err := h.parseID(c, "id", "trophy")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	trophy, err := h.trophyService.GetTrophyByID(c.Request.Context(), trophyID)
	if err != nil {
		h.serviceError(c, err, "Failed to retrieve trophy")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trophy":       trophy,
		"generated_at": time.Now().UTC(),
	})
}

// GetTrophyHolders returns users who hold a specific trophy.
// GET /api/v1/trophies/:id/holders?limit=50.
func (h *Handler) GetTrophyHolders(c *gin.Context) {
	trophyID, err := h.parseID(c, "id", "trophy")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	limit, err := h.parseLimit(c, 50)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	holders, err := h.trophyService.GetTrophyHolders(c.Request.Context(), trophyID)
	if err != nil {
		h.log.Error().Err(err).Uint("trophy_id", trophyID).Msg("Failed to get trophy holders")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve trophy holders")
		return
	}

	totalHolders := len(holders)
	if len(holders) > limit {
		holders = holders[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"trophy_id":     trophyID,
		"holders":       holders,
		"total_holders": totalHolders,
		"limited_to":    len(holders),
		"generated_at":  time.Now().UTC(),
	})
}

type awardRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// AwardTrophy manually awards a trophy.
// POST /api/v1/trophies/:id/holders {"user_id": 42}.
func (h *Handler) AwardTrophy(c *gin.Context) {
	trophyID, err := h.parseID(c, "id", "trophy")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var req awardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "user_id is required")
		return
	}

	award, err := h.trophyService.AwardTrophy(c.Request.Context(), req.UserID, trophyID)
	if err != nil {
		h.serviceError(c, err, "Failed to award trophy")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"award": award,
	})
}

// RevokeTrophy removes a user's trophy.
// DELETE /api/v1/trophies/:id/holders/:user_id.
func (h *Handler) RevokeTrophy(c *gin.Context) {
	trophyID, err := h.parseID(c, "id", "trophy")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := h.parseID(c, "user_id", "user")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.trophyService.RevokeTrophy(c.Request.Context(), userID, trophyID); err != nil {
		h.serviceError(c, err, "Failed to revoke trophy")
		return
	}

	c.Status(http.StatusNoContent)
}

// GetUserTrophies returns all trophies held by a user.
// GET /api/v1/users/:id/trophies.
func (h *Handler) GetUserTrophies(c *gin.Context) {
	userID, err := h.parseID(c, "id", "user")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	awards, err := h.trophyService.GetUserTrophies(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get user trophies")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve user trophies")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":        userID,
		"trophies":       awards,
		"total_trophies": len(awards),
		"generated_at":   time.Now().UTC(),
	})
}

type conditionTypeResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type conditionGroupResponse struct {
	Group string                  `json:"group"`
	Types []conditionTypeResponse `json:"types"`
}

// GetConditionTypes returns the condition types usable by trophies, by group.
// GET /api/v1/conditions.
func (h *Handler) GetConditionTypes(c *gin.Context) {
	grouped := h.trophyService.GroupedConditionTypes()

	groups := make([]conditionGroupResponse, 0, len(grouped))
	for group, types := range grouped {
		resp := conditionGroupResponse{Group: group}
		for _, ct := range types {
			resp.Types = append(resp.Types, conditionTypeResponse{ID: ct.ID, Name: ct.Name})
		}
		sort.Slice(resp.Types, func(i, j int) bool { return resp.Types[i].ID < resp.Types[j].ID })
		groups = append(groups, resp)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Group < groups[j].Group })

	c.JSON(http.StatusOK, gin.H{
		"groups": groups,
	})
}

// GetOutstanding returns how many awards the next uncapped run would make.
// GET /api/v1/trophies/outstanding.
func (h *Handler) GetOutstanding(c *gin.Context) {
	count, err := h.trophyService.OutstandingAssignmentCount(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count outstanding assignments")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to count outstanding assignments")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"outstanding":  count,
		"generated_at": time.Now().UTC(),
	})
}

// RunAssignment triggers an assignment run.
// POST /api/v1/trophies/assign?max=100.
func (h *Handler) RunAssignment(c *gin.Context) {
	maxAssigns := 0
	if maxStr := c.Query("max"); maxStr != "" {
		n, err := strconv.Atoi(maxStr)
		if err != nil || n < 1 {
			h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid max parameter: %s", maxStr))
			return
		}
		maxAssigns = n
	}

	// The run continues if the client disconnects.
	result, err := h.runner.RunAssignment(context.WithoutCancel(c.Request.Context()), maxAssigns)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			h.errorResponse(c, http.StatusConflict, "an assignment run is already in progress")
			return
		}
		h.log.Error().Err(err).Msg("Assignment run failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "assignment run failed",
			"result":    result,
			"timestamp": time.Now().UTC(),
		})
		return
	}

	h.log.Info().
		Str("run_id", result.RunID).
		Int("awarded", result.Awarded).
		Msg("Assignment run triggered via API")

	c.JSON(http.StatusOK, gin.H{
		"result": result,
	})
}

// Helper functions

// parseID extracts and validates a numeric URL parameter.
func (h *Handler) parseID(c *gin.Context, param, kind string) (uint, error) {
	idStr := c.Param(param)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s ID: %s", kind, idStr)
	}
	return uint(id), nil
}

// parseLimit extracts and validates the limit query parameter.
func (h *Handler) parseLimit(c *gin.Context, defaultLimit int) (int, error) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %s", limitStr)
	}

	if limit < 1 {
		return 0, fmt.Errorf("limit must be greater than 0")
	}

	if limit > 1000 {
		return 0, fmt.Errorf("limit cannot exceed 1000")
	}

	return limit, nil
}

// serviceError maps trophy service errors to HTTP statuses.
func (h *Handler) serviceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, trophies.ErrTrophyNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		h.errorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, trophies.ErrNotAwarded):
		h.errorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, trophies.ErrAlreadyAwarded):
		h.errorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, trophies.ErrTrophyDisabled):
		h.errorResponse(c, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Msg(fallback)
		h.errorResponse(c, http.StatusInternalServerError, fallback)
	}
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
