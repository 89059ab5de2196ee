package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/aimd54/forum-trophies/internal/models"
)

func TestTrophyRepository_CreateAndGetByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTrophyRepository(db)
	ctx := context.Background()

	trophy := &models.Trophy{
		Title:              "Chatterbox",
		AwardAutomatically: true,
		Conditions: []models.TrophyCondition{
			{ConditionType: "user.likes", Data: json.RawMessage(`{"min":5}`), SortOrder: 2},
			{ConditionType: "user.posts", Data: json.RawMessage(`{"min":10}`), SortOrder: 1},
		},
	}
	if err := repo.Create(ctx, trophy); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if trophy.ID == 0 {
		t.Fatal("Expected trophy ID to be set after creation")
	}

	got, err := repo.GetByID(ctx, trophy.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if got.Title != "Chatterbox" {
		t.Errorf("Expected title 'Chatterbox', got %q", got.Title)
	}
	if len(got.Conditions) != 2 {
		t.Fatalf("Expected 2 conditions, got %d", len(got.Conditions))
	}
	if got.Conditions[0].ConditionType != "user.posts" {
		t.Errorf("Expected conditions ordered by sort_order, got %q first", got.Conditions[0].ConditionType)
	}

	_, err = repo.GetByID(ctx, 9999)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound, got %v", err)
	}
}

func TestTrophyRepository_ListAutoAwardable(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTrophyRepository(db)
	ctx := context.Background()

	auto := createTestTrophy(t, repo, "auto", true, false, 1)
	createTestTrophy(t, repo, "manual", false, false, 1)
	createTestTrophy(t, repo, "disabled", true, true, 1)
	auto2 := createTestTrophy(t, repo, "auto2", true, false, 1)

	trophies, err := repo.ListAutoAwardable(ctx)
	if err != nil {
		t.Fatalf("ListAutoAwardable() failed: %v", err)
	}
	if len(trophies) != 2 {
		t.Fatalf("Expected 2 auto-awardable trophies, got %d", len(trophies))
	}
	if trophies[0].ID != auto.ID || trophies[1].ID != auto2.ID {
		t.Errorf("Expected trophies ordered by id [%d %d], got [%d %d]", auto.ID, auto2.ID, trophies[0].ID, trophies[1].ID)
	}
	if len(trophies[0].Conditions) != 1 {
		t.Errorf("Expected conditions to be preloaded")
	}
}

func TestTrophyRepository_GetAllAndByTitle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTrophyRepository(db)
	ctx := context.Background()

	createTestTrophy(t, repo, "first", true, false, 1)
	createTestTrophy(t, repo, "second", false, true, 1)

	all, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll() failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 trophies, got %d", len(all))
	}

	got, err := repo.GetByTitle(ctx, "second")
	if err != nil {
		t.Fatalf("GetByTitle() failed: %v", err)
	}
	if !got.IsDisabled {
		t.Error("Expected 'second' to be disabled")
	}
}

func TestTrophyRepository_UpdateAndSetDisabled(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTrophyRepository(db)
	ctx := context.Background()

	trophy := createTestTrophy(t, repo, "editable", true, false, 1)

	trophy.Description = "changed"
	if err := repo.Update(ctx, trophy); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if err := repo.SetDisabled(ctx, trophy.ID, true); err != nil {
		t.Fatalf("SetDisabled() failed: %v", err)
	}

	got, _ := repo.GetByID(ctx, trophy.ID)
	if got.Description != "changed" {
		t.Errorf("Expected description 'changed', got %q", got.Description)
	}
	if !got.IsDisabled {
		t.Error("Expected trophy to be disabled")
	}
	if got.IsAutoAwardable() {
		t.Error("Disabled trophy must not be auto-awardable")
	}
}

func TestTrophyRepository_ReplaceConditions(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTrophyRepository(db)
	ctx := context.Background()

	trophy := createTestTrophy(t, repo, "conditions", true, false, 1)

	err := repo.ReplaceConditions(ctx, trophy.ID, []models.TrophyCondition{
		{ConditionType: "user.likes", Data: json.RawMessage(`{"min":3}`)},
		{ConditionType: "user.state", Data: json.RawMessage(`{"banned":false}`), SortOrder: 1},
	})
	if err != nil {
		t.Fatalf("ReplaceConditions() failed: %v", err)
	}

	got, _ := repo.GetByID(ctx, trophy.ID)
	if len(got.Conditions) != 2 {
		t.Fatalf("Expected 2 conditions, got %d", len(got.Conditions))
	}
	if got.Conditions[0].ConditionType != "user.likes" {
		t.Errorf("Expected user.likes first, got %q", got.Conditions[0].ConditionType)
	}

	if err := repo.ReplaceConditions(ctx, trophy.ID, nil); err != nil {
		t.Fatalf("ReplaceConditions(nil) failed: %v", err)
	}
	got, _ = repo.GetByID(ctx, trophy.ID)
	if len(got.Conditions) != 0 {
		t.Errorf("Expected no conditions, got %d", len(got.Conditions))
	}
}

func TestTrophyRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTrophyRepository(db)
	awards := NewUserTrophyRepository(db)
	ctx := context.Background()

	user := createTestUser(t, db, "alice", 10)
	trophy := createTestTrophy(t, repo, "doomed", true, false, 1)
	if err := awards.Award(ctx, &models.UserTrophy{TrophyID: trophy.ID, UserID: user.ID, Time: user.RegistrationDate}); err != nil {
		t.Fatalf("Award() failed: %v", err)
	}

	if err := repo.Delete(ctx, trophy.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	if _, err := repo.GetByID(ctx, trophy.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("Expected trophy to be gone, got %v", err)
	}
	count, _ := awards.GetHoldersCount(ctx, trophy.ID)
	if count != 0 {
		t.Errorf("Expected awards to be deleted, got %d", count)
	}
	var conditions int64
	db.Model(&models.TrophyCondition{}).Where("trophy_id = ?", trophy.ID).Count(&conditions)
	if conditions != 0 {
		t.Errorf("Expected conditions to be deleted, got %d", conditions)
	}
}
