package sqlite

import (
	"context"
	"database/sql"
	"iter"

	"github.com/sentilabel/sentilabel-server/internal/domain"
)

// entryColumns is the ordered list of columns selected in entry queries.
// Must match the scan order in scanEntry.
const entryColumns = `id, dataset_id, position, text, score`

// scanEntry scans a sql.Row (or sql.Rows via its Scan method) into a domain.Entry.
func scanEntry(scanner interface{ Scan(dest ...any) error }) (*domain.Entry, error) {
	var (
		e     domain.Entry
		score sql.NullInt64
	)

	if err := scanner.Scan(&e.ID, &e.DatasetID, &e.Position, &e.Text, &score); err != nil {
		return nil, err
	}
	if score.Valid {
		v := int(score.Int64)
		e.Score = &v
	}
	return &e, nil
}

// scoreWhere builds the dataset and optional score predicate shared by entry reads.
func scoreWhere(datasetID string, scores []int) (string, []any) {
	if len(scores) == 0 {
		return "dataset_id = ?", []any{datasetID}
	}
	in, args := inClause([]any{datasetID}, scores)
	return "dataset_id = ? AND score IN (" + in + ")", args
}

// CountEntries counts the dataset's entries whose score is in scores.
func (s *Store) CountEntries(ctx context.Context, datasetID string, scores []int) (int, error) {
	where, args := scoreWhere(datasetID, scores)

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE `+where, args...).Scan(&n)
	return n, err
}

// ListEntryIDs returns the ids of the matching entries ordered by id.
func (s *Store) ListEntryIDs(ctx context.Context, datasetID string, scores []int) ([]string, error) {
	where, args := scoreWhere(datasetID, scores)

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM entries WHERE `+where+` ORDER BY id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListEntries returns one window of the matching entries ordered by id.
func (s *Store) ListEntries(ctx context.Context, datasetID string, scores []int, offset, limit int) ([]*domain.Entry, error) {
	where, args := scoreWhere(datasetID, scores)
	args = append(args, limit, offset)

	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE `+where+` ORDER BY id ASC LIMIT ? OFFSET ?`,
		args...)
}

// GetEntriesByIDs returns the dataset's entries among ids, ordered by id.
// Ids from other datasets are silently dropped.
func (s *Store) GetEntriesByIDs(ctx context.Context, datasetID string, ids []string) ([]*domain.Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	in, args := inClause([]any{datasetID}, ids)
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE dataset_id = ? AND id IN (`+in+`) ORDER BY id ASC`,
		args...)
}

// LowScoreEntryIDs returns the ids of entries scored 1 or 2.
func (s *Store) LowScoreEntryIDs(ctx context.Context, datasetID string) ([]string, error) {
	return s.ListEntryIDs(ctx, datasetID, []int{1, 2})
}

// EachEntry streams every entry of the dataset in position order.
func (s *Store) EachEntry(ctx context.Context, datasetID string) iter.Seq2[*domain.Entry, error] {
	return func(yield func(*domain.Entry, error) bool) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+entryColumns+` FROM entries WHERE dataset_id = ? ORDER BY position ASC`, datasetID)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanEntry(rows)
			if !yield(e, err) || err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]*domain.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
