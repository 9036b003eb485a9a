package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/sentilabel/sentilabel-server/internal/domain"
	domainerrors "github.com/sentilabel/sentilabel-server/internal/errors"
	"github.com/sentilabel/sentilabel-server/internal/export"
	"github.com/sentilabel/sentilabel-server/internal/labeling"
	"github.com/sentilabel/sentilabel-server/internal/store"
)

// ExportService produces consensus exports and agreement summaries.
type ExportService struct {
	store  store.Store
	logger *slog.Logger
}

// NewExportService creates an export service.
func NewExportService(store store.Store, logger *slog.Logger) *ExportService {
	return &ExportService{store: store, logger: logger}
}

// Prepare checks access and loads the labels for an export, so errors can be
// reported before any CSV bytes are written.
func (s *ExportService) Prepare(ctx context.Context, v labeling.Viewer, datasetID string) (*domain.Dataset, []*domain.Label, error) {
	ds, err := loadManaged(ctx, s.store, v, datasetID)
	if err != nil {
		return nil, nil, err
	}
	labels, err := s.store.ListDatasetLabels(ctx, ds.ID)
	if err != nil {
		return nil, nil, domainerrors.Internal("failed to load labels").WithCause(err)
	}
	return ds, labels, nil
}

// WriteCSV streams the export of a prepared dataset to w.
func (s *ExportService) WriteCSV(ctx context.Context, w io.Writer, ds *domain.Dataset, labels []*domain.Label) error {
	n, err := export.WriteCSV(w, s.store.EachEntry(ctx, ds.ID), labels)
	if err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	s.logger.Info("dataset exported", "dataset_id", ds.ID, "rows", n, "labels", len(labels))
	return nil
}

// Agreement summarizes how often labelers agree on the dataset.
func (s *ExportService) Agreement(ctx context.Context, v labeling.Viewer, datasetID string) (*export.Agreement, error) {
	_, labels, err := s.Prepare(ctx, v, datasetID)
	if err != nil {
		return nil, err
	}
	a := export.ComputeAgreement(labels)
	return &a, nil
}
