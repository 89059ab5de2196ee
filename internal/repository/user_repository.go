package repository

import (
	"context"
	"fmt"

	"github.com/aimd54/forum-trophies/internal/models"
	"github.com/aimd54/forum-trophies/internal/query"
)

// UserRepository handles user-related database operations.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get user by id %d: %w", id, err)
	}
	return &user, nil
}

// GetByUsername retrieves a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to get user by username %s: %w", username, err)
	}
	return &user, nil
}

// Update updates a user.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// FindMatching returns every user satisfying all predicates in b, ordered by ID.
func (r *UserRepository) FindMatching(ctx context.Context, b *query.Builder) ([]models.User, error) {
	var users []models.User
	err := b.Apply(r.db.WithContext(ctx).Model(&models.User{})).
		Order("users.id ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find matching users: %w", err)
	}
	return users, nil
}

// CountMatching counts the users satisfying all predicates in b.
func (r *UserRepository) CountMatching(ctx context.Context, b *query.Builder) (int64, error) {
	var count int64
	err := b.Apply(r.db.WithContext(ctx).Model(&models.User{})).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count matching users: %w", err)
	}
	return count, nil
}
