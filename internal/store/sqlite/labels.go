package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sentilabel/sentilabel-server/internal/domain"
	"github.com/sentilabel/sentilabel-server/internal/id"
	"github.com/sentilabel/sentilabel-server/internal/store"
)

// labelColumns is the ordered list of columns selected in label queries.
// Must match the scan order in scanLabel.
const labelColumns = `id, dataset_id, entry_id, user_id, value, source, created_at, updated_at`

// scanLabel scans a sql.Row (or sql.Rows via its Scan method) into a domain.Label.
func scanLabel(scanner interface{ Scan(dest ...any) error }) (*domain.Label, error) {
	var l domain.Label

	var (
		value     string
		source    string
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(&l.ID, &l.DatasetID, &l.EntryID, &l.UserID, &value, &source, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	l.Value = domain.LabelValue(value)
	l.Source = domain.LabelSource(source)

	l.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	l.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &l, nil
}

func (s *Store) queryLabels(ctx context.Context, query string, args ...any) ([]*domain.Label, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var labels []*domain.Label
	for rows.Next() {
		l, err := scanLabel(rows)
		if err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// GetUserLabels returns the user's labels on exactly the given entries, keyed by entry id.
func (s *Store) GetUserLabels(ctx context.Context, datasetID, userID string, entryIDs []string) (map[string]*domain.Label, error) {
	result := make(map[string]*domain.Label, len(entryIDs))
	if len(entryIDs) == 0 {
		return result, nil
	}

	in, args := inClause([]any{datasetID, userID}, entryIDs)
	labels, err := s.queryLabels(ctx,
		`SELECT `+labelColumns+` FROM labels WHERE dataset_id = ? AND user_id = ? AND entry_id IN (`+in+`)`,
		args...)
	if err != nil {
		return nil, err
	}

	for _, l := range labels {
		result[l.EntryID] = l
	}
	return result, nil
}

// upsertLabel inserts the label or, when (entry_id, user_id) already exists,
// rewrites its value. The row is never duplicated.
func upsertLabel(ctx context.Context, tx *sql.Tx, datasetID, userID string, w store.LabelWrite, source domain.LabelSource, ts string) (domain.UpsertOutcome, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO labels (`+labelColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (entry_id, user_id) DO NOTHING`,
		id.MustGenerate(id.PrefixLabel), datasetID, w.EntryID, userID,
		string(w.Value), string(source), ts, ts)
	if err != nil {
		return 0, fmt.Errorf("insert label for %s: %w", w.EntryID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		return domain.UpsertInserted, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE labels SET value = ?, source = ?, updated_at = ?
		WHERE entry_id = ? AND user_id = ?`,
		string(w.Value), string(source), ts, w.EntryID, userID); err != nil {
		return 0, fmt.Errorf("update label for %s: %w", w.EntryID, err)
	}
	return domain.UpsertUpdated, nil
}

// SubmitLabels upserts every write and advances the user's progress by the
// number of inserted rows, all in one transaction. The progress row is
// created first if it does not exist.
func (s *Store) SubmitLabels(ctx context.Context, datasetID, userID string, writes []store.LabelWrite) (*store.LabelWriteResult, error) {
	res := &store.LabelWriteResult{
		Outcomes: make(map[string]domain.UpsertOutcome, len(writes)),
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		ts := formatTime(now)

		if err := ensureProgress(ctx, tx, datasetID, userID, now); err != nil {
			return err
		}

		for _, w := range writes {
			outcome, err := upsertLabel(ctx, tx, datasetID, userID, w, domain.LabelSourceUser, ts)
			if err != nil {
				return err
			}
			res.Outcomes[w.EntryID] = outcome
			if outcome == domain.UpsertInserted {
				res.Inserted++
			} else {
				res.Updated++
			}
		}

		if err := addCompleted(ctx, tx, datasetID, userID, res.Inserted, len(writes) > 0, now); err != nil {
			if errors.Is(err, store.ErrProgressNotFound) {
				return store.ErrDatasetNotFound
			}
			return err
		}

		var err error
		res.Progress, err = getProgress(ctx, tx, datasetID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// InsertAutoLabels adds labels for entries the user has not labeled yet.
// Existing labels are never overwritten. Progress is left to the caller.
func (s *Store) InsertAutoLabels(ctx context.Context, datasetID, userID string, entryIDs []string, value domain.LabelValue) (int, error) {
	if len(entryIDs) == 0 {
		return 0, nil
	}

	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO labels (`+labelColumns+`)
			SELECT ?, dataset_id, id, ?, ?, ?, ?, ? FROM entries WHERE id = ? AND dataset_id = ?
			ON CONFLICT (entry_id, user_id) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("prepare auto label insert: %w", err)
		}
		defer stmt.Close()

		ts := formatTime(time.Now())
		for _, entryID := range entryIDs {
			result, err := stmt.ExecContext(ctx,
				id.MustGenerate(id.PrefixLabel), userID, string(value), string(domain.LabelSourceAuto),
				ts, ts, entryID, datasetID)
			if err != nil {
				return fmt.Errorf("auto label %s: %w", entryID, err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return err
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// CountUserLabels returns how many labels the user holds on the dataset.
func (s *Store) CountUserLabels(ctx context.Context, datasetID, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM labels WHERE dataset_id = ? AND user_id = ?`,
		datasetID, userID).Scan(&n)
	return n, err
}

// ListDatasetLabels returns every label on the dataset ordered by entry then user.
func (s *Store) ListDatasetLabels(ctx context.Context, datasetID string) ([]*domain.Label, error) {
	return s.queryLabels(ctx,
		`SELECT `+labelColumns+` FROM labels WHERE dataset_id = ? ORDER BY entry_id ASC, user_id ASC`,
		datasetID)
}
