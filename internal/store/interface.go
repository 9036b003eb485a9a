// Package store defines the persistence interface for the labeling server.
package store

import (
	"context"
	"iter"
	"time"

	"github.com/sentilabel/sentilabel-server/internal/domain"
)

// Store defines the interface for all persistence operations.
type Store interface {
	// Lifecycle
	Close() error
	Ping(ctx context.Context) error

	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	TouchUserLogin(ctx context.Context, id string, at time.Time) error
	ListUsers(ctx context.Context, params ListParams) ([]*domain.User, error)
	CountUsers(ctx context.Context) (int, error)

	// Auth sessions
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	GetSessionByRefreshToken(ctx context.Context, tokenHash string) (*domain.Session, error)
	RotateSession(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) (int, error)

	DatasetStore
	EntryStore
	LabelStore
	ProgressStore
	MemberStore
}

// DatasetStore persists datasets.
type DatasetStore interface {
	// CreateDataset inserts the dataset with its entries, the owner membership
	// and the owner's progress row in one transaction.
	CreateDataset(ctx context.Context, ds *domain.Dataset, entries []*domain.Entry) error
	GetDataset(ctx context.Context, id string) (*domain.Dataset, error)
	GetDatasetByInviteCode(ctx context.Context, code string) (*domain.Dataset, error)
	ListDatasetsForUser(ctx context.Context, userID string) ([]*domain.Dataset, error)
	ListAllDatasets(ctx context.Context) ([]*domain.Dataset, error)
	UpdateDataset(ctx context.Context, id string, update domain.DatasetUpdate) (*domain.Dataset, error)
	SetInviteCode(ctx context.Context, id, code string) error
	// DeleteDataset removes the dataset; entries, labels, progress and
	// memberships cascade.
	DeleteDataset(ctx context.Context, id string) error
}

// EntryStore reads entries. Every list is ordered by entry id. A nil or empty
// scores slice means no score predicate.
type EntryStore interface {
	CountEntries(ctx context.Context, datasetID string, scores []int) (int, error)
	ListEntryIDs(ctx context.Context, datasetID string, scores []int) ([]string, error)
	ListEntries(ctx context.Context, datasetID string, scores []int, offset, limit int) ([]*domain.Entry, error)
	GetEntriesByIDs(ctx context.Context, datasetID string, ids []string) ([]*domain.Entry, error)
	LowScoreEntryIDs(ctx context.Context, datasetID string) ([]string, error)
	EachEntry(ctx context.Context, datasetID string) iter.Seq2[*domain.Entry, error]
}

// LabelWrite is one label a user chose for one entry.
type LabelWrite struct {
	EntryID string
	Value   domain.LabelValue
}

// LabelWriteResult reports the effect of SubmitLabels.
type LabelWriteResult struct {
	Outcomes map[string]domain.UpsertOutcome
	Inserted int
	Updated  int
	Progress *domain.Progress
}

// LabelStore persists labels.
type LabelStore interface {
	// GetUserLabels returns the user's labels for exactly the given entries, keyed by entry id.
	GetUserLabels(ctx context.Context, datasetID, userID string, entryIDs []string) (map[string]*domain.Label, error)
	// SubmitLabels upserts each label on (entry_id, user_id) and advances the
	// user's progress by the number of inserted rows, in one transaction.
	SubmitLabels(ctx context.Context, datasetID, userID string, writes []LabelWrite) (*LabelWriteResult, error)
	// InsertAutoLabels adds labels that do not exist yet and never overwrites.
	InsertAutoLabels(ctx context.Context, datasetID, userID string, entryIDs []string, value domain.LabelValue) (int, error)
	CountUserLabels(ctx context.Context, datasetID, userID string) (int, error)
	ListDatasetLabels(ctx context.Context, datasetID string) ([]*domain.Label, error)
}

// ProgressStore persists per-user progress.
type ProgressStore interface {
	// EnsureProgress creates the row if absent and refreshes total when it changed.
	EnsureProgress(ctx context.Context, datasetID, userID string, total int) (*domain.Progress, error)
	GetProgress(ctx context.Context, datasetID, userID string) (*domain.Progress, error)
	SetLastPage(ctx context.Context, datasetID, userID string, page int) error
	// AddCompleted increments completed by delta, capped at total.
	AddCompleted(ctx context.Context, datasetID, userID string, delta int) (*domain.Progress, error)
	// RecountProgress sets completed to the user's label count, capped at total.
	RecountProgress(ctx context.Context, datasetID, userID string) (*domain.Progress, error)
}

// MemberStore persists dataset memberships.
type MemberStore interface {
	// AddMember inserts the membership if absent and reports whether it was added.
	AddMember(ctx context.Context, m *domain.Membership) (bool, error)
	GetMembership(ctx context.Context, datasetID, userID string) (*domain.Membership, error)
	ListMembers(ctx context.Context, datasetID string) ([]*domain.MemberProgress, error)
}
