package service

import (
	"context"
	"log/slog"

	"github.com/sentilabel/sentilabel-server/internal/domain"
	domainerrors "github.com/sentilabel/sentilabel-server/internal/errors"
	"github.com/sentilabel/sentilabel-server/internal/labeling"
	"github.com/sentilabel/sentilabel-server/internal/store"
)

// AdminService holds operations reserved for admins.
type AdminService struct {
	store   store.Store
	tracker *labeling.ProgressTracker
	logger  *slog.Logger
}

// NewAdminService creates an admin service.
func NewAdminService(store store.Store, tracker *labeling.ProgressTracker, logger *slog.Logger) *AdminService {
	return &AdminService{store: store, tracker: tracker, logger: logger}
}

func requireAdmin(v labeling.Viewer) error {
	if !v.IsAdmin {
		return domainerrors.Forbidden("admin access required")
	}
	return nil
}

// ListDatasets returns every dataset.
func (s *AdminService) ListDatasets(ctx context.Context, v labeling.Viewer) ([]*domain.Dataset, error) {
	if err := requireAdmin(v); err != nil {
		return nil, err
	}
	datasets, err := s.store.ListAllDatasets(ctx)
	if err != nil {
		return nil, domainerrors.Internal("failed to list datasets").WithCause(err)
	}
	return datasets, nil
}

// ListUsers returns a page of users.
func (s *AdminService) ListUsers(ctx context.Context, v labeling.Viewer, params store.ListParams) ([]*domain.User, int, error) {
	if err := requireAdmin(v); err != nil {
		return nil, 0, err
	}
	params.Normalize()

	users, err := s.store.ListUsers(ctx, params)
	if err != nil {
		return nil, 0, domainerrors.Internal("failed to list users").WithCause(err)
	}
	total, err := s.store.CountUsers(ctx)
	if err != nil {
		return nil, 0, domainerrors.Internal("failed to count users").WithCause(err)
	}
	return users, total, nil
}

// RecountDataset resets every member's completed count to their label count.
func (s *AdminService) RecountDataset(ctx context.Context, v labeling.Viewer, datasetID string) ([]*domain.Progress, error) {
	if err := requireAdmin(v); err != nil {
		return nil, err
	}

	members, err := s.store.ListMembers(ctx, datasetID)
	if err != nil {
		return nil, datasetErr(err, "failed to list members")
	}
	if len(members) == 0 {
		if _, err := s.store.GetDataset(ctx, datasetID); err != nil {
			return nil, datasetErr(err, "failed to load dataset")
		}
	}

	out := make([]*domain.Progress, 0, len(members))
	for _, m := range members {
		p, err := s.tracker.Recount(ctx, datasetID, m.UserID)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	s.logger.Info("dataset progress recounted", "dataset_id", datasetID, "members", len(out))
	return out, nil
}
