package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sentilabel/sentilabel-server/internal/labeling"
	"github.com/sentilabel/sentilabel-server/internal/scorefilter"
)

// LabelingService exposes the labeling session to the API with the
// configured page size.
type LabelingService struct {
	loader   *labeling.PageLoader
	batcher  *labeling.Batcher
	tracker  *labeling.ProgressTracker
	pageSize int
	logger   *slog.Logger
}

// NewLabelingService creates a labeling service.
func NewLabelingService(
	loader *labeling.PageLoader,
	batcher *labeling.Batcher,
	tracker *labeling.ProgressTracker,
	pageSize int,
	logger *slog.Logger,
) *LabelingService {
	return &LabelingService{
		loader:   loader,
		batcher:  batcher,
		tracker:  tracker,
		pageSize: pageSize,
		logger:   logger,
	}
}

// ParseFilter splits a comma separated filter such as "1,2" into tokens.
// Unknown tokens are dropped later by normalization.
func ParseFilter(raw string) scorefilter.Set {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return scorefilter.All()
	}
	return scorefilter.Normalize(strings.Split(raw, ","))
}

// Resume returns the page the caller last worked on.
func (s *LabelingService) Resume(ctx context.Context, v labeling.Viewer, datasetID string) (*labeling.PageView, error) {
	return s.loader.Resume(ctx, v, datasetID, s.pageSize)
}

// Page loads one page under filter.
func (s *LabelingService) Page(ctx context.Context, v labeling.Viewer, datasetID string, page int, filter scorefilter.Set) (*labeling.PageView, error) {
	return s.loader.Load(ctx, labeling.PageRequest{
		Viewer:    v,
		DatasetID: datasetID,
		Page:      page,
		PageSize:  s.pageSize,
		Filter:    filter,
	})
}

// FilterRequest replaces the session filter.
type FilterRequest struct {
	Filter []string `json:"filter" validate:"max=6,dive,scoretoken"`
}

// ApplyFilter switches the session filter and reloads the clamped page.
func (s *LabelingService) ApplyFilter(ctx context.Context, v labeling.Viewer, datasetID string, req FilterRequest) (*labeling.PageView, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}
	return s.loader.ApplyFilter(ctx, v, datasetID, scorefilter.Normalize(req.Filter), s.pageSize)
}

// ToggleRequest flips one token in the current filter.
type ToggleRequest struct {
	Filter []string `json:"filter" validate:"max=6,dive,scoretoken"`
	Token  string   `json:"token" validate:"required"`
}

// ToggleResult is the toggled filter and the reloaded page.
type ToggleResult struct {
	Filter scorefilter.Set    `json:"filter"`
	View   *labeling.PageView `json:"view"`
}

// ToggleFilter toggles a token and reloads. The filter is passed and
// returned as displayed: deselecting "all" yields the five scores, and a
// further click deselects one of them.
func (s *LabelingService) ToggleFilter(ctx context.Context, v labeling.Viewer, datasetID string, req ToggleRequest) (*ToggleResult, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}
	next, view, err := s.loader.ToggleFilter(ctx, v, datasetID, scorefilter.Set(req.Filter), req.Token, s.pageSize)
	if err != nil {
		return nil, err
	}
	return &ToggleResult{Filter: next, View: view}, nil
}

// SubmitRequest is one page of labels.
type SubmitRequest struct {
	Page   int               `json:"page" validate:"gte=0"`
	Filter []string          `json:"filter" validate:"max=6"`
	Labels map[string]string `json:"labels" validate:"required,min=1,max=100"`
}

// Submit writes a page of labels and returns the reloaded or advanced page.
func (s *LabelingService) Submit(ctx context.Context, v labeling.Viewer, datasetID string, req SubmitRequest) (*labeling.SubmitResult, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}
	return s.batcher.Submit(ctx, labeling.Submission{
		Viewer:    v,
		DatasetID: datasetID,
		Page:      req.Page,
		PageSize:  s.pageSize,
		Filter:    scorefilter.Normalize(req.Filter),
		Labels:    req.Labels,
	})
}
