package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sentilabel/sentilabel-server/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// makeTestUser creates a domain.User with sensible defaults for testing.
func makeTestUser(id, email string) *domain.User {
	now := time.Now()
	return &domain.User{
		Record: domain.Record{
			ID:        id,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$fake$hash",
		DisplayName:  "Test User",
		Role:         domain.RoleLabeler,
	}
}

// createTestUser inserts a user and fails the test on error.
func createTestUser(t *testing.T, s *Store, id string) *domain.User {
	t.Helper()
	u := makeTestUser(id, id+"@example.com")
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", id, err)
	}
	return u
}

// seedDataset creates a dataset owned by ownerID whose entries carry the
// given scores; a zero score means no score. Entry ids are "<dsID>-e00".."<dsID>-eNN".
func seedDataset(t *testing.T, s *Store, dsID, ownerID string, scores []int) (*domain.Dataset, []*domain.Entry) {
	t.Helper()

	now := time.Now()
	ds := &domain.Dataset{
		Record:       domain.Record{ID: dsID, CreatedAt: now, UpdatedAt: now},
		Name:         "Dataset " + dsID,
		OwnerID:      ownerID,
		InviteCode:   "INV-" + dsID,
		IsActive:     true,
		LabelingType: domain.LabelingMultiClass,
	}

	entries := make([]*domain.Entry, len(scores))
	for i, sc := range scores {
		e := &domain.Entry{
			ID:       fmt.Sprintf("%s-e%02d", dsID, i),
			Position: i,
			Text:     fmt.Sprintf("review number %d", i),
		}
		if sc != 0 {
			v := sc
			e.Score = &v
			ds.HasScores = true
		}
		entries[i] = e
	}

	if err := s.CreateDataset(context.Background(), ds, entries); err != nil {
		t.Fatalf("CreateDataset(%s): %v", dsID, err)
	}
	return ds, entries
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	// Verify WAL mode is set.
	var journalMode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	// Verify foreign keys are enabled.
	var fk int
	err = s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	if err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys=1, got %d", fk)
	}

	// Verify tables exist.
	tables := []string{
		"users", "sessions", "datasets", "entries", "labels", "progress", "dataset_members",
	}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpen_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	createTestUser(t, s, "usr-1")
	s.Close()

	s, err = Open(dbPath, logger)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s.Close()

	n, err := s.CountUsers(context.Background())
	if err != nil {
		t.Fatalf("CountUsers: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 user after reopen, got %d", n)
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestFormatTime_SortsAsString(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	earlier := formatTime(base)
	later := formatTime(base.Add(500 * time.Millisecond))

	if !(earlier < later) {
		t.Errorf("expected %q < %q", earlier, later)
	}

	parsed, err := parseTime(later)
	if err != nil {
		t.Fatalf("parseTime: %v", err)
	}
	if !parsed.Equal(base.Add(500 * time.Millisecond)) {
		t.Errorf("round trip: got %v", parsed)
	}
}
