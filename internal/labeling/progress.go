package labeling

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sentilabel/sentilabel-server/internal/domain"
	domainerrors "github.com/sentilabel/sentilabel-server/internal/errors"
	"github.com/sentilabel/sentilabel-server/internal/store"
)

// ProgressTracker reads and writes the single progress row per (dataset, user).
type ProgressTracker struct {
	store  Store
	logger *slog.Logger
}

// NewProgressTracker creates a tracker over s.
func NewProgressTracker(s Store, logger *slog.Logger) *ProgressTracker {
	return &ProgressTracker{store: s, logger: logger}
}

// EnsureExists creates the row if absent. It is safe to call on every open.
func (t *ProgressTracker) EnsureExists(ctx context.Context, datasetID, userID string, totalEntries int) (*domain.Progress, error) {
	p, err := t.store.EnsureProgress(ctx, datasetID, userID, totalEntries)
	if err != nil {
		return nil, progressErr(err, "failed to initialize progress")
	}
	return p, nil
}

// RecordPage persists the page the user should resume on.
func (t *ProgressTracker) RecordPage(ctx context.Context, datasetID, userID string, page int) error {
	if err := t.store.SetLastPage(ctx, datasetID, userID, page); err != nil {
		return progressErr(err, "failed to record page")
	}
	return nil
}

// RecordCompletion adds delta newly labeled entries, capped at the total.
func (t *ProgressTracker) RecordCompletion(ctx context.Context, datasetID, userID string, delta int) (*domain.Progress, error) {
	if delta < 0 {
		return nil, domainerrors.Validation("completion delta must not be negative")
	}
	p, err := t.store.AddCompleted(ctx, datasetID, userID, delta)
	if err != nil {
		return nil, progressErr(err, "failed to record completion")
	}
	return p, nil
}

// Get returns the user's progress.
func (t *ProgressTracker) Get(ctx context.Context, datasetID, userID string) (*domain.Progress, error) {
	p, err := t.store.GetProgress(ctx, datasetID, userID)
	if err != nil {
		return nil, progressErr(err, "failed to load progress")
	}
	return p, nil
}

// Recount resets completed to the user's actual label count. It is the only
// way completed can go down.
func (t *ProgressTracker) Recount(ctx context.Context, datasetID, userID string) (*domain.Progress, error) {
	before, _ := t.store.GetProgress(ctx, datasetID, userID)

	p, err := t.store.RecountProgress(ctx, datasetID, userID)
	if err != nil {
		return nil, progressErr(err, "failed to recount progress")
	}

	if before != nil && before.Completed != p.Completed {
		t.logger.Info("progress recounted",
			"dataset_id", datasetID,
			"user_id", userID,
			"before", before.Completed,
			"after", p.Completed,
		)
	}
	return p, nil
}

func progressErr(err error, msg string) error {
	switch {
	case errors.Is(err, store.ErrProgressNotFound):
		return domainerrors.NotFound("progress not found")
	case errors.Is(err, store.ErrDatasetNotFound):
		return domainerrors.NotFound("dataset not found")
	default:
		return domainerrors.Internal(msg).WithCause(err)
	}
}
