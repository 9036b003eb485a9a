package service

import (
	"context"
	"errors"

	"github.com/sentilabel/sentilabel-server/internal/domain"
	domainerrors "github.com/sentilabel/sentilabel-server/internal/errors"
	"github.com/sentilabel/sentilabel-server/internal/labeling"
	"github.com/sentilabel/sentilabel-server/internal/store"
)

// loadVisible returns the dataset when the viewer is a member or an admin.
func loadVisible(ctx context.Context, s store.Store, v labeling.Viewer, datasetID string) (*domain.Dataset, error) {
	ds, err := s.GetDataset(ctx, datasetID)
	if err != nil {
		return nil, datasetErr(err, "failed to load dataset")
	}
	if v.IsAdmin || ds.OwnerID == v.UserID {
		return ds, nil
	}

	if _, err := s.GetMembership(ctx, datasetID, v.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.Forbidden("you are not a member of this dataset")
		}
		return nil, domainerrors.Internal("failed to check membership").WithCause(err)
	}
	return ds, nil
}

// loadManaged returns the dataset when the viewer owns it or is an admin.
func loadManaged(ctx context.Context, s store.Store, v labeling.Viewer, datasetID string) (*domain.Dataset, error) {
	ds, err := s.GetDataset(ctx, datasetID)
	if err != nil {
		return nil, datasetErr(err, "failed to load dataset")
	}
	if !ds.CanManage(v.UserID, v.IsAdmin) {
		return nil, domainerrors.Forbidden("only the owner can manage this dataset")
	}
	return ds, nil
}

// datasetErr translates store errors for dataset operations.
func datasetErr(err error, msg string) error {
	var de *domainerrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, store.ErrDatasetNotFound), errors.Is(err, store.ErrNotFound):
		return domainerrors.NotFound("dataset not found")
	case errors.Is(err, store.ErrAlreadyExists):
		return domainerrors.Conflict(msg)
	default:
		return domainerrors.Internal(msg).WithCause(err)
	}
}
