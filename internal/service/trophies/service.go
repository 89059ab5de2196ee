// Package trophies provides automatic trophy assignment and trophy management services.
package trophies

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/aimd54/forum-trophies/internal/clock"
	"github.com/aimd54/forum-trophies/internal/condition"
	prommetrics "github.com/aimd54/forum-trophies/internal/metrics"
	"github.com/aimd54/forum-trophies/internal/models"
	"github.com/aimd54/forum-trophies/internal/query"
	"github.com/aimd54/forum-trophies/internal/repository"
	"github.com/aimd54/forum-trophies/pkg/logger"
)

// DefaultMaxAssigns caps a single assignment run when no cap is given.
const DefaultMaxAssigns = 500

var (
	// ErrTrophyNotFound is returned when a trophy ID does not exist.
	ErrTrophyNotFound = errors.New("trophy not found")
	// ErrTrophyDisabled is returned when awarding a disabled trophy.
	ErrTrophyDisabled = errors.New("trophy is disabled")
	// ErrAlreadyAwarded is returned when the user already holds the trophy.
	ErrAlreadyAwarded = errors.New("trophy already awarded to user")
	// ErrNotAwarded is returned when revoking a trophy the user does not hold.
	ErrNotAwarded = errors.New("trophy not awarded to user")
)

// TrophyRepository interface for trophy operations.
type TrophyRepository interface {
	GetAll(ctx context.Context) ([]models.Trophy, error)
	GetByID(ctx context.Context, id uint) (*models.Trophy, error)
	ListAutoAwardable(ctx context.Context) ([]models.Trophy, error)
}

// UserRepository interface for user operations.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	FindMatching(ctx context.Context, b *query.Builder) ([]models.User, error)
	CountMatching(ctx context.Context, b *query.Builder) (int64, error)
}

// AwardRepository interface for trophy award operations.
type AwardRepository interface {
	Award(ctx context.Context, award *models.UserTrophy) error
	HasUserTrophy(ctx context.Context, userID, trophyID uint) (bool, error)
	GetUserTrophies(ctx context.Context, userID uint) ([]models.UserTrophy, error)
	GetTrophyHolders(ctx context.Context, trophyID uint) ([]models.User, error)
	GetHoldersCount(ctx context.Context, trophyID uint) (int64, error)
	Revoke(ctx context.Context, userID, trophyID uint) error
}

// TrophyAwards is the per-trophy tally of one assignment run.
type TrophyAwards struct {
	TrophyID uint   `json:"trophy_id"`
	Title    string `json:"title"`
	Awarded  int    `json:"awarded"`
}

// AssignmentResult summarizes an assignment run. On error it holds what
// was committed before the failure.
type AssignmentResult struct {
	RunID             string         `json:"run_id"`
	MaxAssigns        int            `json:"max_assigns"`
	Awarded           int            `json:"awarded"`
	CapReached        bool           `json:"cap_reached"`
	TrophiesProcessed int            `json:"trophies_processed"`
	Passes            int            `json:"passes"`
	PerTrophy         []TrophyAwards `json:"per_trophy,omitempty"`
	Duration          time.Duration  `json:"duration"`
}

func (r *AssignmentResult) record(trophy *models.Trophy, awarded int) {
	if awarded == 0 {
		return
	}
	for i := range r.PerTrophy {
		if r.PerTrophy[i].TrophyID == trophy.ID {
			r.PerTrophy[i].Awarded += awarded
			return
		}
	}
	r.PerTrophy = append(r.PerTrophy, TrophyAwards{TrophyID: trophy.ID, Title: trophy.Title, Awarded: awarded})
}

// Service handles trophy assignment and awarding.
type Service struct {
	catalog     *condition.Catalog
	trophyRepo  TrophyRepository
	userRepo    UserRepository
	awardRepo   AwardRepository
	clock       clock.Clock
	log         *logger.Logger
	outstanding singleflight.Group
}

// NewService creates a new trophy service.
func NewService(
	catalog *condition.Catalog,
	trophyRepo *repository.TrophyRepository,
	userRepo *repository.UserRepository,
	awardRepo *repository.UserTrophyRepository,
	clk clock.Clock,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(catalog, trophyRepo, userRepo, awardRepo, clk, log)
}

// NewServiceWithInterfaces creates a new trophy service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(
	catalog *condition.Catalog,
	trophyRepo TrophyRepository,
	userRepo UserRepository,
	awardRepo AwardRepository,
	clk clock.Clock,
	log *logger.Logger,
) *Service {
	return &Service{
		catalog:    catalog,
		trophyRepo: trophyRepo,
		userRepo:   userRepo,
		awardRepo:  awardRepo,
		clock:      clk,
		log:        log,
	}
}

// AssignTrophies awards every auto-awardable trophy to the users eligible
// for it, stopping for good once maxAssigns awards have been written.
// maxAssigns <= 0 means DefaultMaxAssigns.
//
// Awards can make users eligible for trophies evaluated earlier in the same
// pass (trophy points), so passes repeat until one awards nothing. A rerun
// with unchanged user data therefore awards nothing.
//
// Each award commits on its own. A failure aborts the run and leaves the
// earlier awards in place; the next run skips those users.
func (s *Service) AssignTrophies(ctx context.Context, maxAssigns int) (*AssignmentResult, error) {
	if maxAssigns <= 0 {
		maxAssigns = DefaultMaxAssigns
	}

	start := time.Now()
	result := &AssignmentResult{RunID: uuid.NewString(), MaxAssigns: maxAssigns}
	defer func() { result.Duration = time.Since(start) }()

	s.log.Info().
		Str("run_id", result.RunID).
		Int("max_assigns", maxAssigns).
		Msg("Starting trophy assignment")

	trophies, err := s.trophyRepo.ListAutoAwardable(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("run_id", result.RunID).Msg("Failed to list auto-awardable trophies")
		return result, fmt.Errorf("failed to list auto-awardable trophies: %w", err)
	}

	for !result.CapReached {
		result.Passes++
		awarded, err := s.assignPass(ctx, trophies, result)
		if err != nil {
			return result, err
		}
		if awarded == 0 {
			break
		}
	}

	s.log.Info().
		Str("run_id", result.RunID).
		Int("trophies_evaluated", result.TrophiesProcessed).
		Int("passes", result.Passes).
		Int("trophies_awarded", result.Awarded).
		Bool("cap_reached", result.CapReached).
		Dur("duration", time.Since(start)).
		Msg("Trophy assignment complete")

	return result, nil
}

// assignPass evaluates each trophy once and returns the awards it wrote.
func (s *Service) assignPass(ctx context.Context, trophies []models.Trophy, result *AssignmentResult) (int, error) {
	passAwarded := 0

	for i := range trophies {
		trophy := &trophies[i]

		users, err := s.EligibleUsers(ctx, trophy)
		if err != nil {
			s.log.Error().
				Err(err).
				Str("run_id", result.RunID).
				Uint("trophy_id", trophy.ID).
				Msg("Failed to evaluate trophy conditions")
			return passAwarded, err
		}
		if result.Passes == 1 {
			result.TrophiesProcessed++
		}

		awarded := 0
		for _, user := range users {
			if err := s.award(ctx, trophy, user.ID); err != nil {
				result.record(trophy, awarded)
				s.log.Error().
					Err(err).
					Str("run_id", result.RunID).
					Uint("trophy_id", trophy.ID).
					Uint("user_id", user.ID).
					Int("awarded", result.Awarded).
					Msg("Failed to award trophy")
				return passAwarded, err
			}

			awarded++
			passAwarded++
			result.Awarded++

			if result.Awarded >= result.MaxAssigns {
				result.CapReached = true
				break
			}
		}

		result.record(trophy, awarded)
		if awarded > 0 {
			s.refreshHolders(ctx, trophy)
			s.log.Info().
				Str("run_id", result.RunID).
				Int("pass", result.Passes).
				Uint("trophy_id", trophy.ID).
				Str("trophy", trophy.Title).
				Int("eligible", len(users)).
				Int("awarded", awarded).
				Msg("Trophy awarded")
		}

		if result.CapReached {
			s.log.Warn().
				Str("run_id", result.RunID).
				Int("max_assigns", result.MaxAssigns).
				Uint("trophy_id", trophy.ID).
				Msg("Assignment cap reached, stopping run")
			break
		}
	}

	return passAwarded, nil
}

// award writes a single award stamped with the engine clock.
func (s *Service) award(ctx context.Context, trophy *models.Trophy, userID uint) error {
	award := &models.UserTrophy{
		TrophyID: trophy.ID,
		UserID:   userID,
		Time:     s.clock.Now(),
	}
	if err := s.awardRepo.Award(ctx, award); err != nil {
		return fmt.Errorf("failed to award trophy %d to user %d: %w", trophy.ID, userID, err)
	}

	prommetrics.RecordTrophyAwarded(trophy.Title)
	return nil
}

// refreshHolders updates the holders gauge; failures only cost the metric.
func (s *Service) refreshHolders(ctx context.Context, trophy *models.Trophy) {
	count, err := s.awardRepo.GetHoldersCount(ctx, trophy.ID)
	if err != nil {
		s.log.Warn().Err(err).Uint("trophy_id", trophy.ID).Msg("Failed to count trophy holders")
		return
	}
	prommetrics.SetTrophyHolders(trophy.Title, int(count))
}

// OutstandingAssignmentCount returns the number of (trophy, user) pairs the
// next assignment run would award if it had no cap. Concurrent callers
// share one evaluation; the shared count ignores any single caller's
// cancellation, and each caller stops waiting when its own ctx is done.
func (s *Service) OutstandingAssignmentCount(ctx context.Context) (int64, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.outstanding.DoChan("outstanding", func() (interface{}, error) {
		return s.countOutstanding(shared)
	})

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int64), nil
	}
}

func (s *Service) countOutstanding(ctx context.Context) (int64, error) {
	trophies, err := s.trophyRepo.ListAutoAwardable(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list auto-awardable trophies: %w", err)
	}

	var outstanding int64
	for i := range trophies {
		count, err := s.CountEligible(ctx, &trophies[i])
		if err != nil {
			return 0, err
		}
		outstanding += count
	}

	prommetrics.SetOutstandingAssignments(outstanding)
	s.log.Debug().
		Int("trophies", len(trophies)).
		Int64("outstanding", outstanding).
		Msg("Counted outstanding trophy assignments")

	return outstanding, nil
}

// AwardTrophy manually awards a trophy to a user regardless of its
// conditions or auto-award flag.
func (s *Service) AwardTrophy(ctx context.Context, userID, trophyID uint) (*models.UserTrophy, error) {
	trophy, err := s.GetTrophyByID(ctx, trophyID)
	if err != nil {
		return nil, err
	}
	if trophy.IsDisabled {
		return nil, fmt.Errorf("trophy %d: %w", trophyID, ErrTrophyDisabled)
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	has, err := s.awardRepo.HasUserTrophy(ctx, userID, trophyID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing award: %w", err)
	}
	if has {
		return nil, fmt.Errorf("trophy %d, user %d: %w", trophyID, userID, ErrAlreadyAwarded)
	}

	award := &models.UserTrophy{TrophyID: trophyID, UserID: userID, Time: s.clock.Now()}
	if err := s.awardRepo.Award(ctx, award); err != nil {
		return nil, fmt.Errorf("failed to award trophy %d to user %d: %w", trophyID, userID, err)
	}

	prommetrics.RecordTrophyAwarded(trophy.Title)
	s.refreshHolders(ctx, trophy)

	s.log.Info().
		Uint("trophy_id", trophyID).
		Uint("user_id", userID).
		Msg("Trophy awarded manually")

	return award, nil
}

// RevokeTrophy removes a user's award. An automatic trophy whose conditions
// the user still meets will be awarded again by the next run.
func (s *Service) RevokeTrophy(ctx context.Context, userID, trophyID uint) error {
	trophy, err := s.GetTrophyByID(ctx, trophyID)
	if err != nil {
		return err
	}

	if err := s.awardRepo.Revoke(ctx, userID, trophyID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("trophy %d, user %d: %w", trophyID, userID, ErrNotAwarded)
		}
		return fmt.Errorf("failed to revoke trophy %d from user %d: %w", trophyID, userID, err)
	}

	s.refreshHolders(ctx, trophy)
	s.log.Info().
		Uint("trophy_id", trophyID).
		Uint("user_id", userID).
		Msg("Trophy revoked")

	return nil
}

// GetTrophyCatalog retrieves all trophies.
func (s *Service) GetTrophyCatalog(ctx context.Context) ([]models.Trophy, error) {
	return s.trophyRepo.GetAll(ctx)
}

// GetTrophyByID retrieves a trophy by its ID.
func (s *Service) GetTrophyByID(ctx context.Context, trophyID uint) (*models.Trophy, error) {
	trophy, err := s.trophyRepo.GetByID(ctx, trophyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("trophy %d: %w", trophyID, ErrTrophyNotFound)
		}
		return nil, err
	}
	return trophy, nil
}

// GetTrophyHolders retrieves users who hold a specific trophy.
func (s *Service) GetTrophyHolders(ctx context.Context, trophyID uint) ([]models.User, error) {
	return s.awardRepo.GetTrophyHolders(ctx, trophyID)
}

// GetUserTrophies retrieves all trophies awarded to a user.
func (s *Service) GetUserTrophies(ctx context.Context, userID uint) ([]models.UserTrophy, error) {
	return s.awardRepo.GetUserTrophies(ctx, userID)
}

// GroupedConditionTypes returns the grouped condition catalog.
func (s *Service) GroupedConditionTypes() map[string]map[string]condition.ConditionType {
	return s.catalog.GroupedTypes()
}
