package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sentilabel/sentilabel-server/internal/domain"
	"github.com/sentilabel/sentilabel-server/internal/store"
)

func (s *Server) registerAdminRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "adminListDatasets",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/datasets",
		Summary:     "List all datasets",
		Description: "Lists every dataset regardless of membership. Admin only.",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAdminListDatasets)

	huma.Register(s.api, huma.Operation{
		OperationID: "adminRecountDataset",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/datasets/{id}/recount",
		Summary:     "Recount progress",
		Description: "Rebuilds every member's completed count from stored labels. Admin only.",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAdminRecountDataset)

	huma.Register(s.api, huma.Operation{
		OperationID: "adminListUsers",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/users",
		Summary:     "List users",
		Description: "Lists users with pagination. Admin only.",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAdminListUsers)
}

// AdminDatasetsResponse lists every dataset.
type AdminDatasetsResponse struct {
	Datasets []*domain.Dataset `json:"datasets"`
}

// AdminDatasetsOutput wraps the dataset list for Huma.
type AdminDatasetsOutput struct {
	Body AdminDatasetsResponse
}

// RecountResponse lists the rebuilt progress rows.
type RecountResponse struct {
	Progress []*domain.Progress `json:"progress"`
}

// RecountOutput wraps the recount result for Huma.
type RecountOutput struct {
	Body RecountResponse
}

// AdminUsersInput holds pagination for the user list.
type AdminUsersInput struct {
	Offset int `query:"offset" minimum:"0" default:"0"`
	Limit  int `query:"limit" minimum:"1" maximum:"200" default:"50"`
}

// AdminUsersResponse is one page of users.
type AdminUsersResponse struct {
	Users []UserResponse `json:"users"`
	Total int            `json:"total"`
}

// AdminUsersOutput wraps the user page for Huma.
type AdminUsersOutput struct {
	Body AdminUsersResponse
}

func (s *Server) handleAdminListDatasets(ctx context.Context, _ *struct{}) (*AdminDatasetsOutput, error) {
	v, err := RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	datasets, err := s.services.Admin.ListDatasets(ctx, v)
	if err != nil {
		return nil, err
	}
	return &AdminDatasetsOutput{Body: AdminDatasetsResponse{Datasets: datasets}}, nil
}

func (s *Server) handleAdminRecountDataset(ctx context.Context, input *DatasetIDInput) (*RecountOutput, error) {
	v, err := RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	progress, err := s.services.Admin.RecountDataset(ctx, v, input.ID)
	if err != nil {
		return nil, err
	}
	return &RecountOutput{Body: RecountResponse{Progress: progress}}, nil
}

func (s *Server) handleAdminListUsers(ctx context.Context, input *AdminUsersInput) (*AdminUsersOutput, error) {
	v, err := RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	users, total, err := s.services.Admin.ListUsers(ctx, v, store.ListParams{Offset: input.Offset, Limit: input.Limit})
	if err != nil {
		return nil, err
	}
	resp := AdminUsersResponse{Users: make([]UserResponse, len(users)), Total: total}
	for i, u := range users {
		resp.Users[i] = mapUser(u)
	}
	return &AdminUsersOutput{Body: resp}, nil
}
