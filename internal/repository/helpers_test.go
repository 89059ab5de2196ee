package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aimd54/forum-trophies/internal/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}

	// One connection, otherwise every pooled connection sees its own empty :memory: database
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	// Enable foreign key constraints (SQLite default is off)
	gdb.Exec("PRAGMA foreign_keys = ON")

	db := &DB{gdb}
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("Failed to auto-migrate tables: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// createTestUser creates a test user with the given post count.
func createTestUser(t *testing.T, db *DB, username string, posts int) *models.User {
	t.Helper()

	user := &models.User{
		Username:         username,
		Email:            username + "@example.com",
		PostCount:        posts,
		RegistrationDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// createTestTrophy creates a trophy with a single post-count condition.
func createTestTrophy(t *testing.T, repo *TrophyRepository, title string, auto, disabled bool, minPosts int) *models.Trophy {
	t.Helper()

	trophy := &models.Trophy{
		Title:              title,
		Description:        "Test trophy " + title,
		AwardAutomatically: auto,
		IsDisabled:         disabled,
		Conditions: []models.TrophyCondition{
			{ConditionType: "user.posts", Data: json.RawMessage(fmt.Sprintf(`{"min":%d}`, minPosts))},
		},
	}
	if err := repo.Create(context.Background(), trophy); err != nil {
		t.Fatalf("Failed to create test trophy: %v", err)
	}
	return trophy
}
