package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sentilabel/sentilabel-server/internal/domain"
	domainerrors "github.com/sentilabel/sentilabel-server/internal/errors"
	"github.com/sentilabel/sentilabel-server/internal/search"
	"github.com/sentilabel/sentilabel-server/internal/service"
)

func (s *Server) registerDatasetRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listDatasets",
		Method:      http.MethodGet,
		Path:        "/api/v1/datasets",
		Summary:     "List datasets",
		Description: "Returns the datasets the caller belongs to. Admins see every dataset.",
		Tags:        []string{"Datasets"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListDatasets)

	huma.Register(s.api, huma.Operation{
		OperationID: "getDataset",
		Method:      http.MethodGet,
		Path:        "/api/v1/datasets/{id}",
		Summary:     "Get dataset",
		Description: "Returns a dataset with the caller's role and progress",
		Tags:        []string{"Datasets"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetDataset)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateDataset",
		Method:      http.MethodPatch,
		Path:        "/api/v1/datasets/{id}",
		Summary:     "Update dataset",
		Description: "Changes name, description or the active flag. Owner or admin only.",
		Tags:        []string{"Datasets"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateDataset)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteDataset",
		Method:        http.MethodDelete,
		Path:          "/api/v1/datasets/{id}",
		Summary:       "Delete dataset",
		Description:   "Deletes the dataset with its entries, labels and progress. Owner or admin only.",
		Tags:          []string{"Datasets"},
		DefaultStatus: http.StatusNoContent,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteDataset)

	huma.Register(s.api, huma.Operation{
		OperationID: "joinDataset",
		Method:      http.MethodPost,
		Path:        "/api/v1/datasets/join",
		Summary:     "Join dataset",
		Description: "Joins the dataset behind an invite code. Joining twice is a no-op.",
		Tags:        []string{"Datasets"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleJoinDataset)

	huma.Register(s.api, huma.Operation{
		OperationID: "regenerateInvite",
		Method:      http.MethodPost,
		Path:        "/api/v1/datasets/{id}/invite",
		Summary:     "Regenerate invite code",
		Description: "Replaces the invite code. The old code stops working. Owner or admin only.",
		Tags:        []string{"Datasets"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRegenerateInvite)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMemberProgress",
		Method:      http.MethodGet,
		Path:        "/api/v1/datasets/{id}/progress",
		Summary:     "Members progress",
		Description: "Returns every member's progress. Owner or admin only.",
		Tags:        []string{"Progress"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleMembersProgress)

	huma.Register(s.api, huma.Operation{
		OperationID: "getMyProgress",
		Method:      http.MethodGet,
		Path:        "/api/v1/datasets/{id}/progress/me",
		Summary:     "My progress",
		Description: "Returns the caller's progress on the dataset",
		Tags:        []string{"Progress"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleMyProgress)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchEntries",
		Method:      http.MethodGet,
		Path:        "/api/v1/datasets/{id}/search",
		Summary:     "Search entries",
		Description: "Full-text search over the dataset's entry text",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSearchEntries)
}

// === DTOs ===

// DatasetIDInput identifies a dataset in the path.
type DatasetIDInput struct {
	ID string `path:"id" doc:"Dataset ID"`
}

// DatasetOutput wraps a dataset for Huma.
type DatasetOutput struct {
	Body *service.DatasetDetail
}

// DatasetListResponse is the list of visible datasets.
type DatasetListResponse struct {
	Datasets []*service.DatasetDetail `json:"datasets" doc:"Visible datasets"`
}

// DatasetListOutput wraps the dataset list for Huma.
type DatasetListOutput struct {
	Body DatasetListResponse
}

// UpdateDatasetRequest is the request body for a dataset update.
type UpdateDatasetRequest struct {
	Name        *string `json:"name,omitempty" doc:"New name"`
	Description *string `json:"description,omitempty" doc:"New description"`
	IsActive    *bool   `json:"is_active,omitempty" doc:"Whether members may label"`
}

// UpdateDatasetInput wraps the update request for Huma.
type UpdateDatasetInput struct {
	ID   string `path:"id" doc:"Dataset ID"`
	Body UpdateDatasetRequest
}

// JoinRequest is the request body for joining a dataset.
type JoinRequest struct {
	InviteCode string `json:"invite_code" doc:"Eight character invite code"`
}

// JoinInput wraps the join request for Huma.
type JoinInput struct {
	Body JoinRequest
}

// JoinOutput wraps the join result for Huma.
type JoinOutput struct {
	Body *service.JoinResult
}

// InviteResponse carries a fresh invite code.
type InviteResponse struct {
	InviteCode string `json:"invite_code" doc:"New invite code"`
}

// InviteOutput wraps the invite response for Huma.
type InviteOutput struct {
	Body InviteResponse
}

// MemberProgressResponse lists every member's progress.
type MemberProgressResponse struct {
	Members []*domain.MemberProgress `json:"members" doc:"Members with their progress"`
}

// MemberProgressOutput wraps member progress for Huma.
type MemberProgressOutput struct {
	Body MemberProgressResponse
}

// ProgressOutput wraps one progress row for Huma.
type ProgressOutput struct {
	Body *domain.Progress
}

// SearchEntriesInput contains parameters for an entry search.
type SearchEntriesInput struct {
	ID     string `path:"id" doc:"Dataset ID"`
	Query  string `query:"q" doc:"Search query"`
	Scores string `query:"scores" doc:"Comma-separated scores to restrict to, e.g. 1,2"`
	Limit  int    `query:"limit" doc:"Max results (default 20, max 100)"`
	Offset int    `query:"offset" doc:"Pagination offset"`
}

// SearchEntriesOutput wraps search results for Huma.
type SearchEntriesOutput struct {
	Body *search.Result
}

// === Handlers ===

func (s *Server) handleListDatasets(ctx context.Context, _ *struct{}) (*DatasetListOutput, error) {
	v, err := RequireViewer(ctx)
	if err != nil {
		return nil, err
	}
	datasets, err := s.services.Datasets.List(ctx, v)
	if err != nil {
		return nil, err
	}
	return &DatasetListOutput{Body: DatasetListResponse{Datasets: datasets}}, nil
}

func (s *Server) handleGetDataset(ctx context.Context, input *DatasetIDInput) (*DatasetOutput, error) {
	v, err := RequireViewer(ctx)
	if err != nil {
		return nil, err
	}
	ds, err := s.services.Datasets.Get(ctx, v, input.ID)
	if err != nil {
		return nil, err
	}
	return &DatasetOutput{Body: ds}, nil
}

func (s *Server) handleUpdateDataset(ctx context.Context, input *UpdateDatasetInput) (*DatasetOutput, error) {
	v, err := RequireViewer(ctx)
	if err != nil {
		return nil, err
	}
	ds, err := s.services.Datasets.Update(ctx, v, input.ID, service.UpdateRequest{
		Name:        input.Body.Name,
		Description: input.Body.Description,
		IsActive:    input.Body.IsActive,
	})
	if err != nil {
		return nil, err
	}
	return &DatasetOutput{Body: ds}, nil
}

func (s *Server) handleDeleteDataset(ctx context.Context, input *DatasetIDInput) (*struct{}, error) {
	v, err := RequireViewer(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.Datasets.Delete(ctx, v, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleJoinDataset(ctx context.Context, input *JoinInput) (*JoinOutput, error) {
	v, err := RequireViewer(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.services.Datasets.Join(ctx, v, input.Body.InviteCode)
	if err != nil {
		return nil, err
	}
	return &JoinOutput{Body: res}, nil
}

func (s *Server) handleRegenerateInvite(ctx context.Context, input *DatasetIDInput) (*InviteOutput, error) {
	v, err := RequireViewer(ctx)
	if err != nil {
		return nil, err
	}
	code, err := s.services.Datasets.RegenerateInvite(ctx, v, input.ID)
	if err != nil {
		return nil, err
	}
	return &InviteOutput{Body: InviteResponse{InviteCode: code}}, nil
}

func (s *Server) handleMembersProgress(ctx context.Context, input *DatasetIDInput) (*MemberProgressOutput, error) {
	v, err := RequireViewer(ctx)
	if err != nil {
		return nil, err
	}
	members, err := s.services.Datasets.MembersProgress(ctx, v, input.ID)
	if err != nil {
		return nil, err
	}
	return &MemberProgressOutput{Body: MemberProgressResponse{Members: members}}, nil
}

func (s *Server) handleMyProgress(ctx context.Context, input *DatasetIDInput) (*ProgressOutput, error) {
	v, err := RequireViewer(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.services.Datasets.MyProgress(ctx, v, input.ID)
	if err != nil {
		return nil, err
	}
	return &ProgressOutput{Body: p}, nil
}

func (s *Server) handleSearchEntries(ctx context.Context, input *SearchEntriesInput) (*SearchEntriesOutput, error) {
	v, err := RequireViewer(ctx)
	if err != nil {
		return nil, err
	}
	scores, err := parseScores(input.Scores)
	if err != nil {
		return nil, err
	}
	res, err := s.services.Datasets.Search(ctx, v, input.ID, service.SearchRequest{
		Query:  input.Query,
		Scores: scores,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return nil, err
	}
	return &SearchEntriesOutput{Body: res}, nil
}

// parseScores parses "1,2" into scores; range checks happen in the service.
func parseScores(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	scores := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, domainerrors.Validationf("invalid score %q", p)
		}
		scores = append(scores, n)
	}
	return scores, nil
}
