package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/aimd54/forum-trophies/internal/models"
)

// UserTrophyRepository handles trophy award records.
type UserTrophyRepository struct {
	db *DB
}

// NewUserTrophyRepository creates a new award repository.
func NewUserTrophyRepository(db *DB) *UserTrophyRepository {
	return &UserTrophyRepository{db: db}
}

// Award inserts one award and bumps the holder's trophy_points in its own
// transaction. It does not check for an existing award.
func (r *UserTrophyRepository) Award(ctx context.Context, award *models.UserTrophy) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(award).Error; err != nil {
			return fmt.Errorf("failed to insert award: %w", err)
		}
		res := tx.Model(&models.User{}).
			Where("id = ?", award.UserID).
			UpdateColumn("trophy_points", gorm.Expr("trophy_points + ?", 1))
		if res.Error != nil {
			return fmt.Errorf("failed to update trophy points: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("failed to update trophy points: user %d: %w", award.UserID, gorm.ErrRecordNotFound)
		}
		return nil
	})
}

// HasUserTrophy checks if a user holds a specific trophy.
func (r *UserTrophyRepository) HasUserTrophy(ctx context.Context, userID, trophyID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserTrophy{}).
		Where("user_id = ? AND trophy_id = ?", userID, trophyID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserTrophies retrieves all awards of a user with trophy details preloaded.
func (r *UserTrophyRepository) GetUserTrophies(ctx context.Context, userID uint) ([]models.UserTrophy, error) {
	var awards []models.UserTrophy
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Trophy").
		Order("time DESC, id DESC").
		Find(&awards).Error
	return awards, err
}

// GetTrophyHolders retrieves all users holding a trophy, most recent first.
func (r *UserTrophyRepository) GetTrophyHolders(ctx context.Context, trophyID uint) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN user_trophies ON user_trophies.user_id = users.id").
		Where("user_trophies.trophy_id = ?", trophyID).
		Order("user_trophies.time DESC, users.id ASC").
		Find(&users).Error
	return users, err
}

// GetHoldersCount returns the number of awards recorded for a trophy.
func (r *UserTrophyRepository) GetHoldersCount(ctx context.Context, trophyID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserTrophy{}).
		Where("trophy_id = ?", trophyID).
		Count(&count).Error
	return count, err
}

// Revoke removes a user's award and decrements trophy_points accordingly.
// Returns gorm.ErrRecordNotFound if the user does not hold the trophy.
func (r *UserTrophyRepository) Revoke(ctx context.Context, userID, trophyID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND trophy_id = ?", userID, trophyID).Delete(&models.UserTrophy{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.User{}).
			Where("id = ?", userID).
			UpdateColumn("trophy_points", gorm.Expr("CASE WHEN trophy_points >= ? THEN trophy_points - ? ELSE 0 END", res.RowsAffected, res.RowsAffected)).
			Error
	})
}
