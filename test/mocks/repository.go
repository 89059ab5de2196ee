// Package mocks provides func-field repository mocks shared by service tests.
package mocks

import (
	"context"

	"gorm.io/gorm"

	"github.com/aimd54/forum-trophies/internal/models"
	"github.com/aimd54/forum-trophies/internal/query"
)

// MockTrophyRepository is a simple mock for trophy repository
type MockTrophyRepository struct {
	GetAllFunc            func(ctx context.Context) ([]models.Trophy, error)
	GetByIDFunc           func(ctx context.Context, id uint) (*models.Trophy, error)
	ListAutoAwardableFunc func(ctx context.Context) ([]models.Trophy, error)
}

func (m *MockTrophyRepository) GetAll(ctx context.Context) ([]models.Trophy, error) {
	if m.GetAllFunc != nil {
		return m.GetAllFunc(ctx)
	}
	return []models.Trophy{}, nil
}

func (m *MockTrophyRepository) GetByID(ctx context.Context, id uint) (*models.Trophy, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockTrophyRepository) ListAutoAwardable(ctx context.Context) ([]models.Trophy, error) {
	if m.ListAutoAwardableFunc != nil {
		return m.ListAutoAwardableFunc(ctx)
	}
	return []models.Trophy{}, nil
}

// MockUserRepository is a simple mock for user repository
type MockUserRepository struct {
	GetByIDFunc       func(ctx context.Context, id uint) (*models.User, error)
	FindMatchingFunc  func(ctx context.Context, b *query.Builder) ([]models.User, error)
	CountMatchingFunc func(ctx context.Context, b *query.Builder) (int64, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *MockUserRepository) FindMatching(ctx context.Context, b *query.Builder) ([]models.User, error) {
	if m.FindMatchingFunc != nil {
		return m.FindMatchingFunc(ctx, b)
	}
	return []models.User{}, nil
}

func (m *MockUserRepository) CountMatching(ctx context.Context, b *query.Builder) (int64, error) {
	if m.CountMatchingFunc != nil {
		return m.CountMatchingFunc(ctx, b)
	}
	return 0, nil
}

// MockAwardRepository is a simple mock for the trophy award repository.
// Awards passed to Award are recorded in Awarded.
type MockAwardRepository struct {
	AwardFunc            func(ctx context.Context, award *models.UserTrophy) error
	HasUserTrophyFunc    func(ctx context.Context, userID, trophyID uint) (bool, error)
	GetUserTrophiesFunc  func(ctx context.Context, userID uint) ([]models.UserTrophy, error)
	GetTrophyHoldersFunc func(ctx context.Context, trophyID uint) ([]models.User, error)
	GetHoldersCountFunc  func(ctx context.Context, trophyID uint) (int64, error)
	RevokeFunc           func(ctx context.Context, userID, trophyID uint) error

	Awarded []models.UserTrophy
}

func (m *MockAwardRepository) Award(ctx context.Context, award *models.UserTrophy) error {
	if m.AwardFunc != nil {
		if err := m.AwardFunc(ctx, award); err != nil {
			return err
		}
	}
	m.Awarded = append(m.Awarded, *award)
	return nil
}

func (m *MockAwardRepository) HasUserTrophy(ctx context.Context, userID, trophyID uint) (bool, error) {
	if m.HasUserTrophyFunc != nil {
		return m.HasUserTrophyFunc(ctx, userID, trophyID)
	}
	return false, nil
}

func (m *MockAwardRepository) GetUserTrophies(ctx context.Context, userID uint) ([]models.UserTrophy, error) {
	if m.GetUserTrophiesFunc != nil {
		return m.GetUserTrophiesFunc(ctx, userID)
	}
	return []models.UserTrophy{}, nil
}

func (m *MockAwardRepository) GetTrophyHolders(ctx context.Context, trophyID uint) ([]models.User, error) {
	if m.GetTrophyHoldersFunc != nil {
		return m.GetTrophyHoldersFunc(ctx, trophyID)
	}
	return []models.User{}, nil
}

func (m *MockAwardRepository) GetHoldersCount(ctx context.Context, trophyID uint) (int64, error) {
	if m.GetHoldersCountFunc != nil {
		return m.GetHoldersCountFunc(ctx, trophyID)
	}
	return 0, nil
}

func (m *MockAwardRepository) Revoke(ctx context.Context, userID, trophyID uint) error {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, userID, trophyID)
	}
	return nil
}
