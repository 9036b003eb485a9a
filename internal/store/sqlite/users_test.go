package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sentilabel/sentilabel-server/internal/domain"
	"github.com/sentilabel/sentilabel-server/internal/store"
)

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := makeTestUser("usr-1", "Alice@Example.com")
	user.Role = domain.RoleAdmin

	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	got, err := s.GetUser(ctx, "usr-1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}

	if got.Email != "Alice@Example.com" {
		t.Errorf("Email: got %q", got.Email)
	}
	if got.PasswordHash != user.PasswordHash {
		t.Errorf("PasswordHash: got %q, want %q", got.PasswordHash, user.PasswordHash)
	}
	if got.Role != domain.RoleAdmin {
		t.Errorf("Role: got %q, want %q", got.Role, domain.RoleAdmin)
	}
	if got.DisplayName != "Test User" {
		t.Errorf("DisplayName: got %q", got.DisplayName)
	}
	if got.LastLoginAt != nil {
		t.Errorf("LastLoginAt: expected nil, got %v", got.LastLoginAt)
	}
	if !got.CreatedAt.Equal(user.CreatedAt) {
		t.Errorf("CreatedAt: got %v, want %v", got.CreatedAt, user.CreatedAt)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUser(context.Background(), "nonexistent")
	if !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	var storeErr *store.Error
	if !errors.As(err, &storeErr) || storeErr.HTTPCode() != 404 {
		t.Errorf("expected 404 store error, got %T: %v", err, err)
	}
}

func TestGetUserByEmail_CaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, makeTestUser("usr-1", "Alice@Example.com")); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	got, err := s.GetUserByEmail(ctx, "  alice@EXAMPLE.com ")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != "usr-1" {
		t.Errorf("ID: got %q", got.ID)
	}

	if _, err := s.GetUserByEmail(ctx, "bob@example.com"); !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, makeTestUser("usr-1", "alice@example.com")); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	err := s.CreateUser(ctx, makeTestUser("usr-2", "ALICE@example.com"))
	if !errors.Is(err, store.ErrEmailExists) {
		t.Errorf("expected ErrEmailExists, got %v", err)
	}
}

func TestCreateUser_DuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, makeTestUser("usr-1", "alice@example.com")); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	err := s.CreateUser(ctx, makeTestUser("usr-1", "bob@example.com"))
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestTouchUserLogin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestUser(t, s, "usr-1")

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := s.TouchUserLogin(ctx, "usr-1", at); err != nil {
		t.Fatalf("TouchUserLogin: %v", err)
	}

	got, err := s.GetUser(ctx, "usr-1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.LastLoginAt == nil || !got.LastLoginAt.Equal(at) {
		t.Errorf("LastLoginAt: got %v, want %v", got.LastLoginAt, at)
	}

	if err := s.TouchUserLogin(ctx, "missing", at); !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestListAndCountUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"usr-a", "usr-b", "usr-c"} {
		createTestUser(t, s, id)
	}

	n, err := s.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers: %v", err)
	}
	if n != 3 {
		t.Errorf("CountUsers: got %d, want 3", n)
	}

	all, err := s.ListUsers(ctx, store.ListParams{})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListUsers: got %d, want 3", len(all))
	}

	page, err := s.ListUsers(ctx, store.ListParams{Offset: 1, Limit: 1})
	if err != nil {
		t.Fatalf("ListUsers page: %v", err)
	}
	if len(page) != 1 || page[0].ID != all[1].ID {
		t.Errorf("ListUsers page: got %v", page)
	}
}
