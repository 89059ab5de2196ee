package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/aimd54/forum-trophies/internal/models"
)

// TrophyRepository handles trophy and trophy condition database operations.
type TrophyRepository struct {
	db *DB
}

// NewTrophyRepository creates a new trophy repository.
func NewTrophyRepository(db *DB) *TrophyRepository {
	return &TrophyRepository{db: db}
}

// orderedConditions preloads conditions in the order handlers must see them.
func orderedConditions(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC, id ASC")
}

// Create creates a new trophy together with its conditions.
func (r *TrophyRepository) Create(ctx context.Context, trophy *models.Trophy) error {
	return r.db.WithContext(ctx).Create(trophy).Error
}

// GetByID retrieves a trophy by its ID with conditions preloaded.
func (r *TrophyRepository) GetByID(ctx context.Context, id uint) (*models.Trophy, error) {
	var trophy models.Trophy
	err := r.db.WithContext(ctx).
		Preload("Conditions", orderedConditions).
		First(&trophy, id).Error
	if err != nil {
		return nil, err
	}
	return &trophy, nil
}

// GetByTitle retrieves a trophy by its title.
func (r *TrophyRepository) GetByTitle(ctx context.Context, title string) (*models.Trophy, error) {
	var trophy models.Trophy
	err := r.db.WithContext(ctx).
		Preload("Conditions", orderedConditions).
		Where("title = ?", title).
		First(&trophy).Error
	if err != nil {
		return nil, err
	}
	return &trophy, nil
}

// GetAll retrieves all trophies in display order.
func (r *TrophyRepository) GetAll(ctx context.Context) ([]models.Trophy, error) {
	var trophies []models.Trophy
	err := r.db.WithContext(ctx).
		Preload("Conditions", orderedConditions).
		Order("show_order ASC, id ASC").
		Find(&trophies).Error
	return trophies, err
}

// ListAutoAwardable retrieves the trophies the assignment job may award:
// flagged for automatic awarding and not disabled, ordered by ID.
func (r *TrophyRepository) ListAutoAwardable(ctx context.Context) ([]models.Trophy, error) {
	var trophies []models.Trophy
	err := r.db.WithContext(ctx).
		Preload("Conditions", orderedConditions).
		Where("award_automatically = ?", true).
		Where("is_disabled = ?", false).
		Order("id ASC").
		Find(&trophies).Error
	return trophies, err
}

// Update updates an existing trophy's own columns. Conditions are managed
// with ReplaceConditions.
func (r *TrophyRepository) Update(ctx context.Context, trophy *models.Trophy) error {
	return r.db.WithContext(ctx).Omit("Conditions").Save(trophy).Error
}

// SetDisabled toggles the disabled flag.
func (r *TrophyRepository) SetDisabled(ctx context.Context, id uint, disabled bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Trophy{}).
		Where("id = ?", id).
		Update("is_disabled", disabled).Error
}

// ReplaceConditions swaps a trophy's conditions in one transaction.
func (r *TrophyRepository) ReplaceConditions(ctx context.Context, trophyID uint, conditions []models.TrophyCondition) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("trophy_id = ?", trophyID).Delete(&models.TrophyCondition{}).Error; err != nil {
			return err
		}
		if len(conditions) == 0 {
			return nil
		}
		for i := range conditions {
			conditions[i].ID = 0
			conditions[i].TrophyID = trophyID
		}
		return tx.Create(&conditions).Error
	})
}

// Delete deletes a trophy, its conditions and its awards.
func (r *TrophyRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("trophy_id = ?", id).Delete(&models.UserTrophy{}).Error; err != nil {
			return err
		}
		if err := tx.Where("trophy_id = ?", id).Delete(&models.TrophyCondition{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Trophy{}, id).Error
	})
}
