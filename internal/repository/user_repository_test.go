package repository

import (
	"context"
	"testing"

	"github.com/aimd54/forum-trophies/internal/models"
	"github.com/aimd54/forum-trophies/internal/query"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &models.User{Username: "carol", PostCount: 3}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	byID, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if byID.Username != "carol" {
		t.Errorf("Expected username 'carol', got %q", byID.Username)
	}

	byName, err := repo.GetByUsername(ctx, "carol")
	if err != nil {
		t.Fatalf("GetByUsername() failed: %v", err)
	}
	if byName.ID != user.ID {
		t.Errorf("Expected ID %d, got %d", user.ID, byName.ID)
	}

	byName.PostCount = 4
	if err := repo.Update(ctx, byName); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	reloaded, _ := repo.GetByID(ctx, user.ID)
	if reloaded.PostCount != 4 {
		t.Errorf("Expected post count 4, got %d", reloaded.PostCount)
	}

	if _, err := repo.GetByID(ctx, 4242); err == nil {
		t.Error("Expected error for missing user")
	}
}

func TestUserRepository_FindAndCountMatching(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u3 := createTestUser(t, db, "u3", 30)
	u1 := createTestUser(t, db, "u1", 12)
	createTestUser(t, db, "u2", 3)

	b := query.NewBuilder()
	b.Add("users.post_count >= ?", 10)

	users, err := repo.FindMatching(ctx, b)
	if err != nil {
		t.Fatalf("FindMatching() failed: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(users))
	}
	if users[0].ID != u3.ID || users[1].ID != u1.ID {
		t.Errorf("Expected users ordered by id, got %d, %d", users[0].ID, users[1].ID)
	}

	count, err := repo.CountMatching(ctx, b)
	if err != nil {
		t.Fatalf("CountMatching() failed: %v", err)
	}
	if count != int64(len(users)) {
		t.Errorf("Expected count %d to match fetched %d", count, len(users))
	}

	// An empty builder matches everybody.
	all, err := repo.CountMatching(ctx, query.NewBuilder())
	if err != nil {
		t.Fatalf("CountMatching() failed: %v", err)
	}
	if all != 3 {
		t.Errorf("Expected 3 users, got %d", all)
	}
}

func TestUserRepository_FindMatchingInvalidSQL(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)

	b := query.NewBuilder()
	b.Add("users.no_such_column = ?", 1)

	if _, err := repo.FindMatching(context.Background(), b); err == nil {
		t.Error("Expected error for invalid column")
	}
	if _, err := repo.CountMatching(context.Background(), b); err == nil {
		t.Error("Expected error for invalid column")
	}
}
