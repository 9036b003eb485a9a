package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sentilabel/sentilabel-server/internal/domain"
	"github.com/sentilabel/sentilabel-server/internal/store"
)

// AddMember inserts the membership if absent and reports whether it was added.
func (s *Store) AddMember(ctx context.Context, m *domain.Membership) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO dataset_members (dataset_id, user_id, role, joined_at)
		VALUES (?, ?, ?, ?)`,
		m.DatasetID, m.UserID, string(m.Role), formatTime(m.JoinedAt))
	if err != nil {
		if errContains(err, "FOREIGN KEY constraint failed") {
			return false, store.ErrNotFound.WithCause(err)
		}
		return false, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetMembership returns the user's membership on a dataset.
// Returns store.ErrNotFound if the user is not a member.
func (s *Store) GetMembership(ctx context.Context, datasetID, userID string) (*domain.Membership, error) {
	var (
		m        domain.Membership
		role     string
		joinedAt string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT dataset_id, user_id, role, joined_at FROM dataset_members
		WHERE dataset_id = ? AND user_id = ?`,
		datasetID, userID).Scan(&m.DatasetID, &m.UserID, &role, &joinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	m.Role = domain.MemberRole(role)
	m.JoinedAt, err = parseTime(joinedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMembers returns every member of the dataset with their progress, owner
// first and then in join order. A member without a progress row reports
// zero progress against the dataset total.
func (s *Store) ListMembers(ctx context.Context, datasetID string) ([]*domain.MemberProgress, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.dataset_id, m.user_id, m.role, m.joined_at, u.email, u.display_name,
			COALESCE(p.completed, 0), COALESCE(p.total, d.total_entries),
			p.started_at, COALESCE(p.last_updated, m.joined_at), p.completed_at,
			COALESCE(p.last_page, 0)
		FROM dataset_members m
		JOIN users u ON u.id = m.user_id
		JOIN datasets d ON d.id = m.dataset_id
		LEFT JOIN progress p ON p.dataset_id = m.dataset_id AND p.user_id = m.user_id
		WHERE m.dataset_id = ?
		ORDER BY CASE m.role WHEN 'owner' THEN 0 ELSE 1 END, m.joined_at ASC, m.user_id ASC`,
		datasetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*domain.MemberProgress
	for rows.Next() {
		var (
			mp          domain.MemberProgress
			role        string
			joinedAt    string
			startedAt   sql.NullString
			lastUpdated string
			completedAt sql.NullString
		)

		if err := rows.Scan(
			&mp.DatasetID, &mp.UserID, &role, &joinedAt, &mp.Email, &mp.DisplayName,
			&mp.Progress.Completed, &mp.Progress.Total,
			&startedAt, &lastUpdated, &completedAt,
			&mp.Progress.LastPage,
		); err != nil {
			return nil, err
		}

		mp.Role = domain.MemberRole(role)
		mp.Progress.DatasetID = mp.DatasetID
		mp.Progress.UserID = mp.UserID

		if mp.JoinedAt, err = parseTime(joinedAt); err != nil {
			return nil, err
		}
		if mp.Progress.LastUpdated, err = parseTime(lastUpdated); err != nil {
			return nil, err
		}
		if mp.Progress.StartedAt, err = parseNullableTime(startedAt); err != nil {
			return nil, err
		}
		if mp.Progress.CompletedAt, err = parseNullableTime(completedAt); err != nil {
			return nil, err
		}

		members = append(members, &mp)
	}
	return members, rows.Err()
}
