// Package labeling implements the per-user labeling session: paging through a
// dataset in the user's shuffled order, submitting labels a page at a time,
// and tracking completion.
package labeling

import (
	"context"
	"errors"
	"time"

	"github.com/sentilabel/sentilabel-server/internal/domain"
	domainerrors "github.com/sentilabel/sentilabel-server/internal/errors"
	"github.com/sentilabel/sentilabel-server/internal/store"
)

// Store is the persistence the labeling core needs.
type Store interface {
	GetDataset(ctx context.Context, id string) (*domain.Dataset, error)
	GetMembership(ctx context.Context, datasetID, userID string) (*domain.Membership, error)

	CountEntries(ctx context.Context, datasetID string, scores []int) (int, error)
	ListEntryIDs(ctx context.Context, datasetID string, scores []int) ([]string, error)
	ListEntries(ctx context.Context, datasetID string, scores []int, offset, limit int) ([]*domain.Entry, error)
	GetEntriesByIDs(ctx context.Context, datasetID string, ids []string) ([]*domain.Entry, error)

	GetUserLabels(ctx context.Context, datasetID, userID string, entryIDs []string) (map[string]*domain.Label, error)
	SubmitLabels(ctx context.Context, datasetID, userID string, writes []store.LabelWrite) (*store.LabelWriteResult, error)

	EnsureProgress(ctx context.Context, datasetID, userID string, total int) (*domain.Progress, error)
	GetProgress(ctx context.Context, datasetID, userID string) (*domain.Progress, error)
	SetLastPage(ctx context.Context, datasetID, userID string, page int) error
	AddCompleted(ctx context.Context, datasetID, userID string, delta int) (*domain.Progress, error)
	RecountProgress(ctx context.Context, datasetID, userID string) (*domain.Progress, error)
}

// Viewer is the authenticated caller.
type Viewer struct {
	UserID  string
	IsAdmin bool
}

// Observer receives labeling activity, typically for metrics.
type Observer interface {
	PageLoaded(outcome string, cacheHit bool, elapsed time.Duration)
	LabelsSubmitted(datasetID string, inserted, updated, redirected int)
	PageAdvanced(datasetID string)
	DatasetCompleted(datasetID string)
}

// Page load outcomes reported to Observer.
const (
	OutcomeOK        = "ok"
	OutcomeRecovered = "recovered"
	OutcomeEmpty     = "empty"
	OutcomeStale     = "stale"
)

// NoopObserver discards all activity.
type NoopObserver struct{}

func (NoopObserver) PageLoaded(string, bool, time.Duration) {}
func (NoopObserver) LabelsSubmitted(string, int, int, int) {}
func (NoopObserver) PageAdvanced(string) {}
func (NoopObserver) DatasetCompleted(string) {}

// authorize loads the dataset and checks that the viewer may open it.
// Admins see every dataset; everyone else needs a membership.
func authorize(ctx context.Context, s Store, v Viewer, datasetID string) (*domain.Dataset, error) {
	ds, err := s.GetDataset(ctx, datasetID)
	if err != nil {
		if errors.Is(err, store.ErrDatasetNotFound) {
			return nil, domainerrors.NotFound("dataset not found")
		}
		return nil, domainerrors.Internal("failed to load dataset").WithCause(err)
	}

	if v.IsAdmin || ds.OwnerID == v.UserID {
		return ds, nil
	}

	if _, err := s.GetMembership(ctx, datasetID, v.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.Forbidden("you do not have access to this dataset")
		}
		return nil, domainerrors.Internal("failed to check dataset access").WithCause(err)
	}
	return ds, nil
}
