package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sentilabel/sentilabel-server/internal/labeling"
	"github.com/sentilabel/sentilabel-server/internal/service"
)

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "resumeSession",
		Method:      http.MethodGet,
		Path:        "/api/v1/datasets/{id}/session",
		Summary:     "Resume labeling",
		Description: "Returns the page and filter the caller last worked on",
		Tags:        []string{"Labeling"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleResumeSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "loadPage",
		Method:      http.MethodGet,
		Path:        "/api/v1/datasets/{id}/session/page",
		Summary:     "Load page",
		Description: "Loads one page of the caller's shuffled view. Out-of-range pages snap to page 0.",
		Tags:        []string{"Labeling"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleLoadPage)

	huma.Register(s.api, huma.Operation{
		OperationID: "applyFilter",
		Method:      http.MethodPut,
		Path:        "/api/v1/datasets/{id}/session/filter",
		Summary:     "Apply score filter",
		Description: "Replaces the session filter, clamps the page and reloads",
		Tags:        []string{"Labeling"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleApplyFilter)

	huma.Register(s.api, huma.Operation{
		OperationID: "toggleFilter",
		Method:      http.MethodPost,
		Path:        "/api/v1/datasets/{id}/session/filter/toggle",
		Summary:     "Toggle filter token",
		Description: "Toggles one filter token and returns the filter as displayed with the reloaded page",
		Tags:        []string{"Labeling"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleToggleFilter)

	huma.Register(s.api, huma.Operation{
		OperationID: "submitLabels",
		Method:      http.MethodPost,
		Path:        "/api/v1/datasets/{id}/session/labels",
		Summary:     "Submit labels",
		Description: "Writes a page of labels in one transaction and advances when the page is complete",
		Tags:        []string{"Labeling"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSubmitLabels)
}

// === DTOs ===

// PageViewOutput wraps a page view for Huma.
type PageViewOutput struct {
	Body *labeling.PageView
}

// LoadPageInput contains page and filter query parameters.
type LoadPageInput struct {
	ID     string `path:"id" doc:"Dataset ID"`
	Page   int    `query:"page" doc:"Zero-based page number"`
	Filter string `query:"filter" doc:"Comma-separated filter tokens: all or 1-5"`
}

// FilterRequest is the request body for replacing the filter.
type FilterRequest struct {
	Filter []string `json:"filter" doc:"Filter tokens: all or 1-5"`
}

// ApplyFilterInput wraps the filter request for Huma.
type ApplyFilterInput struct {
	ID   string `path:"id" doc:"Dataset ID"`
	Body FilterRequest
}

// ToggleRequest is the request body for toggling one token.
type ToggleRequest struct {
	Filter []string `json:"filter,omitempty" doc:"Current filter tokens"`
	Token  string   `json:"token" doc:"Token to toggle: all or 1-5"`
}

// ToggleInput wraps the toggle request for Huma.
type ToggleInput struct {
	ID   string `path:"id" doc:"Dataset ID"`
	Body ToggleRequest
}

// ToggleOutput wraps the toggle result for Huma.
type ToggleOutput struct {
	Body *service.ToggleResult
}

// SubmitLabelsRequest is the request body for a label submission.
type SubmitLabelsRequest struct {
	Page   int               `json:"page,omitempty" doc:"Page the labels were made on"`
	Filter []string          `json:"filter,omitempty" doc:"Filter active when the page was shown"`
	Labels map[string]string `json:"labels" doc:"Entry ID to label: positive, neutral or negative"`
}

// SubmitLabelsInput wraps the submission for Huma.
type SubmitLabelsInput struct {
	ID   string `path:"id" doc:"Dataset ID"`
	Body SubmitLabelsRequest
}

// SubmitLabelsOutput wraps the submit result for Huma.
type SubmitLabelsOutput struct {
	Body *labeling.SubmitResult
}

// === Handlers ===

func (s *Server) handleResumeSession(ctx context.Context, input *DatasetIDInput) (*PageViewOutput, error) {
	v, err := RequireViewer(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Labeling.Resume(ctx, v, input.ID)
	if err != nil {
		return nil, err
	}
	return &PageViewOutput{Body: view}, nil
}

func (s *Server) handleLoadPage(ctx context.Context, input *LoadPageInput) (*PageViewOutput, error) {
	v, err := RequireViewer(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Labeling.Page(ctx, v, input.ID, input.Page, service.ParseFilter(input.Filter))
	if err != nil {
		return nil, err
	}
	return &PageViewOutput{Body: view}, nil
}

func (s *Server) handleApplyFilter(ctx context.Context, input *ApplyFilterInput) (*PageViewOutput, error) {
	v, err := RequireViewer(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.services.Labeling.ApplyFilter(ctx, v, input.ID, service.FilterRequest{Filter: input.Body.Filter})
	if err != nil {
		return nil, err
	}
	return &PageViewOutput{Body: view}, nil
}

func (s *Server) handleToggleFilter(ctx context.Context, input *ToggleInput) (*ToggleOutput, error) {
	v, err := RequireViewer(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.services.Labeling.ToggleFilter(ctx, v, input.ID, service.ToggleRequest{
		Filter: input.Body.Filter,
		Token:  input.Body.Token,
	})
	if err != nil {
		return nil, err
	}
	return &ToggleOutput{Body: res}, nil
}

func (s *Server) handleSubmitLabels(ctx context.Context, input *SubmitLabelsInput) (*SubmitLabelsOutput, error) {
	v, err := RequireViewer(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.services.Labeling.Submit(ctx, v, input.ID, service.SubmitRequest{
		Page:   input.Body.Page,
		Filter: input.Body.Filter,
		Labels: input.Body.Labels,
	})
	if err != nil {
		return nil, err
	}
	return &SubmitLabelsOutput{Body: res}, nil
}
