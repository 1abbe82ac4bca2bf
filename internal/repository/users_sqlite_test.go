package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"pantrypal-api/internal/model"
	"pantrypal-api/internal/testutil"
)

func TestSQLiteUserRepository(t *testing.T) {
	repo := NewSQLiteUserRepository(testutil.NewTestDB(t))
	ctx := context.Background()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	u := &model.User{
		ID:           "u1",
		Email:        "Cook@Example.com",
		DisplayName:  "Cook",
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	t.Run("duplicate email ignores case", func(t *testing.T) {
		dup := *u
		dup.ID = "u2"
		dup.Email = "cook@example.com"
		if err := repo.CreateUser(ctx, &dup); !errors.Is(err, ErrEmailTaken) {
			t.Errorf("err = %v, want ErrEmailTaken", err)
		}
	})

	t.Run("lookup by email", func(t *testing.T) {
		got, err := repo.GetUserByEmail(ctx, " COOK@example.com ")
		if err != nil {
			t.Fatalf("GetUserByEmail: %v", err)
		}
		if got.ID != "u1" || got.PasswordHash != "hash" {
			t.Errorf("got %+v", got)
		}
		if !got.CreatedAt.Equal(now) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, now)
		}
	})

	t.Run("lookup by id", func(t *testing.T) {
		if _, err := repo.GetUserByID(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("err = %v, want ErrUserNotFound", err)
		}
	})

	t.Run("update password", func(t *testing.T) {
		if err := repo.UpdatePassword(ctx, "u1", "new-hash"); err != nil {
			t.Fatalf("UpdatePassword: %v", err)
		}
		got, _ := repo.GetUserByID(ctx, "u1")
		if got.PasswordHash != "new-hash" {
			t.Errorf("PasswordHash = %q", got.PasswordHash)
		}
		if err := repo.UpdatePassword(ctx, "missing", "x"); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("err = %v, want ErrUserNotFound", err)
		}
	})

	n, err := repo.CountUsers(ctx)
	if err != nil || n != 1 {
		t.Errorf("CountUsers = %d, %v; want 1", n, err)
	}
}
