package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sentilabel/sentilabel-server/internal/domain"
	"github.com/sentilabel/sentilabel-server/internal/store"
)

// datasetColumns is the ordered list of columns selected in dataset queries.
// Must match the scan order in scanDataset.
const datasetColumns = `id, created_at, updated_at, name, description, owner_id,
	invite_code, total_entries, is_active, labeling_type, has_scores`

// scanDataset scans a sql.Row (or sql.Rows via its Scan method) into a domain.Dataset.
func scanDataset(scanner interface{ Scan(dest ...any) error }) (*domain.Dataset, error) {
	var d domain.Dataset

	var (
		createdAt    string
		updatedAt    string
		isActive     int
		labelingType string
		hasScores    int
	)

	err := scanner.Scan(
		&d.ID,
		&createdAt,
		&updatedAt,
		&d.Name,
		&d.Description,
		&d.OwnerID,
		&d.InviteCode,
		&d.TotalEntries,
		&isActive,
		&labelingType,
		&hasScores,
	)
	if err != nil {
		return nil, err
	}

	d.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	d.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	d.IsActive = isActive != 0
	d.HasScores = hasScores != 0
	d.LabelingType = domain.LabelingType(labelingType)

	return &d, nil
}

func (s *Store) queryDatasets(ctx context.Context, query string, args ...any) ([]*domain.Dataset, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var datasets []*domain.Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, d)
	}
	return datasets, rows.Err()
}

// CreateDataset inserts the dataset, its entries, the owner membership and the
// owner's progress row in one transaction. ds.TotalEntries is set from entries.
// Returns store.ErrAlreadyExists if the id or invite code is taken.
func (s *Store) CreateDataset(ctx context.Context, ds *domain.Dataset, entries []*domain.Entry) error {
	ds.TotalEntries = len(entries)
	now := formatTime(ds.CreatedAt)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO datasets (`+datasetColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ds.ID,
			now,
			formatTime(ds.UpdatedAt),
			ds.Name,
			ds.Description,
			ds.OwnerID,
			ds.InviteCode,
			ds.TotalEntries,
			boolToInt(ds.IsActive),
			string(ds.LabelingType),
			boolToInt(ds.HasScores),
		)
		if err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO entries (id, dataset_id, position, text, score) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare entry insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range entries {
			e.DatasetID = ds.ID
			if _, err := stmt.ExecContext(ctx, e.ID, ds.ID, e.Position, e.Text, nullInt(e.Score)); err != nil {
				return fmt.Errorf("insert entry %s: %w", e.ID, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dataset_members (dataset_id, user_id, role, joined_at)
			VALUES (?, ?, ?, ?)`,
			ds.ID, ds.OwnerID, string(domain.MemberOwner), now); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO progress (dataset_id, user_id, completed, total, last_updated, last_page)
			VALUES (?, ?, 0, ?, ?, 0)`,
			ds.ID, ds.OwnerID, ds.TotalEntries, now)
		return err
	})
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists.WithCause(err)
	}
	return err
}

// GetDataset retrieves a dataset by ID.
// Returns store.ErrDatasetNotFound if it does not exist.
func (s *Store) GetDataset(ctx context.Context, id string) (*domain.Dataset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+datasetColumns+` FROM datasets WHERE id = ?`, id)

	d, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrDatasetNotFound
	}
	return d, err
}

// GetDatasetByInviteCode resolves an invite code, ignoring case.
// Returns store.ErrDatasetNotFound if no dataset uses the code.
func (s *Store) GetDatasetByInviteCode(ctx context.Context, code string) (*domain.Dataset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+datasetColumns+` FROM datasets WHERE invite_code = ?`,
		strings.ToUpper(strings.TrimSpace(code)))

	d, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrDatasetNotFound
	}
	return d, err
}

// ListDatasetsForUser returns the datasets the user is a member of, newest first.
func (s *Store) ListDatasetsForUser(ctx context.Context, userID string) ([]*domain.Dataset, error) {
	return s.queryDatasets(ctx, `
		SELECT `+prefixColumns("d", datasetColumns)+`
		FROM datasets d
		JOIN dataset_members m ON m.dataset_id = d.id
		WHERE m.user_id = ?
		ORDER BY d.created_at DESC, d.id ASC`, userID)
}

// ListAllDatasets returns every dataset, newest first.
func (s *Store) ListAllDatasets(ctx context.Context) ([]*domain.Dataset, error) {
	return s.queryDatasets(ctx,
		`SELECT `+datasetColumns+` FROM datasets ORDER BY created_at DESC, id ASC`)
}

// UpdateDataset applies the non-nil fields of update and returns the new row.
// Returns store.ErrDatasetNotFound if the dataset does not exist.
func (s *Store) UpdateDataset(ctx context.Context, id string, update domain.DatasetUpdate) (*domain.Dataset, error) {
	sets := []string{"updated_at = ?"}
	args := []any{formatTime(time.Now())}

	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *update.Description)
	}
	if update.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, boolToInt(*update.IsActive))
	}
	args = append(args, id)

	result, err := s.db.ExecContext(ctx,
		`UPDATE datasets SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, store.ErrDatasetNotFound
	}
	return s.GetDataset(ctx, id)
}

// SetInviteCode replaces the dataset's invite code.
// Returns store.ErrAlreadyExists if another dataset holds the code.
func (s *Store) SetInviteCode(ctx context.Context, id, code string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE datasets SET invite_code = ?, updated_at = ? WHERE id = ?`,
		code, formatTime(time.Now()), id)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
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
	return nil
}

// DeleteDataset removes a dataset. Entries, labels, progress and memberships
// are removed by ON DELETE CASCADE.
func (s *Store) DeleteDataset(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, id)
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
	return nil
}

// prefixColumns qualifies a comma-separated column list with a table alias.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
