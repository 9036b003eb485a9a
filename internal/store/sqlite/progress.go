package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sentilabel/sentilabel-server/internal/domain"
	"github.com/sentilabel/sentilabel-server/internal/store"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// progressColumns is the ordered list of columns selected in progress queries.
// Must match the scan order in scanProgress.
const progressColumns = `dataset_id, user_id, completed, total, started_at,
	last_updated, completed_at, last_page`

// scanProgress scans a sql.Row (or sql.Rows via its Scan method) into a domain.Progress.
func scanProgress(scanner interface{ Scan(dest ...any) error }) (*domain.Progress, error) {
	var p domain.Progress

	var (
		startedAt   sql.NullString
		lastUpdated string
		completedAt sql.NullString
	)

	err := scanner.Scan(
		&p.DatasetID,
		&p.UserID,
		&p.Completed,
		&p.Total,
		&startedAt,
		&lastUpdated,
		&completedAt,
		&p.LastPage,
	)
	if err != nil {
		return nil, err
	}

	p.StartedAt, err = parseNullableTime(startedAt)
	if err != nil {
		return nil, err
	}
	p.LastUpdated, err = parseTime(lastUpdated)
	if err != nil {
		return nil, err
	}
	p.CompletedAt, err = parseNullableTime(completedAt)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func getProgress(ctx context.Context, q querier, datasetID, userID string) (*domain.Progress, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM progress WHERE dataset_id = ? AND user_id = ?`,
		datasetID, userID)

	p, err := scanProgress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrProgressNotFound
	}
	return p, err
}

// addCompleted applies the capped increment shared by SubmitLabels and
// AddCompleted. Every column on the right-hand side of SET reads the old row,
// so completed_at compares against the new value explicitly. started marks
// the row as begun even when delta is zero.
func addCompleted(ctx context.Context, q querier, datasetID, userID string, delta int, started bool, now time.Time) error {
	ts := formatTime(now)

	startedAt := sql.NullString{}
	if started {
		startedAt = sql.NullString{String: ts, Valid: true}
	}

	result, err := q.ExecContext(ctx, `
		UPDATE progress SET
			completed = MIN(total, completed + ?),
			started_at = COALESCE(started_at, ?),
			last_updated = ?,
			completed_at = CASE
				WHEN completed_at IS NULL AND total > 0 AND MIN(total, completed + ?) >= total THEN ?
				ELSE completed_at
			END
		WHERE dataset_id = ? AND user_id = ?`,
		delta, startedAt, ts, delta, ts, datasetID, userID)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrProgressNotFound
	}
	return nil
}

// ensureProgress inserts a zeroed row if none exists, reading total from the dataset.
func ensureProgress(ctx context.Context, q querier, datasetID, userID string, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT OR IGNORE INTO progress (dataset_id, user_id, completed, total, last_updated, last_page)
		SELECT id, ?, 0, total_entries, ?, 0 FROM datasets WHERE id = ?`,
		userID, formatTime(now), datasetID)
	return err
}

// EnsureProgress creates the row if absent. When the row exists with a
// different total, total is refreshed and completed is clamped to it.
func (s *Store) EnsureProgress(ctx context.Context, datasetID, userID string, total int) (*domain.Progress, error) {
	var p *domain.Progress

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := formatTime(time.Now())

		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO progress (dataset_id, user_id, completed, total, last_updated, last_page)
			VALUES (?, ?, 0, ?, ?, 0)`,
			datasetID, userID, total, now); err != nil {
			if errContains(err, "FOREIGN KEY constraint failed") {
				return store.ErrDatasetNotFound.WithCause(err)
			}
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE progress SET total = ?, completed = MIN(completed, ?), last_updated = ?
			WHERE dataset_id = ? AND user_id = ? AND total != ?`,
			total, total, now, datasetID, userID, total); err != nil {
			return err
		}

		var err error
		p, err = getProgress(ctx, tx, datasetID, userID)
		return err
	})
	return p, err
}

// GetProgress returns the user's progress on a dataset.
// Returns store.ErrProgressNotFound if no row exists.
func (s *Store) GetProgress(ctx context.Context, datasetID, userID string) (*domain.Progress, error) {
	return getProgress(ctx, s.db, datasetID, userID)
}

// SetLastPage records the page the user should resume on.
func (s *Store) SetLastPage(ctx context.Context, datasetID, userID string, page int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE progress SET last_page = ?, last_updated = ?
		WHERE dataset_id = ? AND user_id = ?`,
		page, formatTime(time.Now()), datasetID, userID)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrProgressNotFound
	}
	return nil
}

// AddCompleted increments completed by delta, capped at total, and sets
// started_at and completed_at the first time they apply.
func (s *Store) AddCompleted(ctx context.Context, datasetID, userID string, delta int) (*domain.Progress, error) {
	if delta < 0 {
		return nil, store.ErrInvalidInput
	}

	var p *domain.Progress
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := addCompleted(ctx, tx, datasetID, userID, delta, delta > 0, time.Now()); err != nil {
			return err
		}
		var err error
		p, err = getProgress(ctx, tx, datasetID, userID)
		return err
	})
	return p, err
}

// RecountProgress sets completed to the number of labels the user holds on the
// dataset, capped at total. It is the only path that lowers completed;
// completed_at is kept once written.
func (s *Store) RecountProgress(ctx context.Context, datasetID, userID string) (*domain.Progress, error) {
	var p *domain.Progress

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		if err := ensureProgress(ctx, tx, datasetID, userID, now); err != nil {
			return err
		}

		ts := formatTime(now)
		result, err := tx.ExecContext(ctx, `
			UPDATE progress SET
				completed = MIN(total, (SELECT COUNT(*) FROM labels WHERE dataset_id = ?1 AND user_id = ?2)),
				started_at = CASE
					WHEN started_at IS NULL AND (SELECT COUNT(*) FROM labels WHERE dataset_id = ?1 AND user_id = ?2) > 0 THEN ?3
					ELSE started_at
				END,
				last_updated = ?3,
				completed_at = CASE
					WHEN completed_at IS NULL AND total > 0
						AND (SELECT COUNT(*) FROM labels WHERE dataset_id = ?1 AND user_id = ?2) >= total THEN ?3
					ELSE completed_at
				END
			WHERE dataset_id = ?1 AND user_id = ?2`,
			datasetID, userID, ts)
		if err != nil {
			return err
		}

		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return store.ErrDatasetNotFound
		}

		p, err = getProgress(ctx, tx, datasetID, userID)
		return err
	})
	return p, err
}
