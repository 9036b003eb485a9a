package api

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/sentilabel/sentilabel-server/internal/export"
	"github.com/sentilabel/sentilabel-server/internal/http/response"
)

func (s *Server) registerExportRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getAgreement",
		Method:      http.MethodGet,
		Path:        "/api/v1/datasets/{id}/agreement",
		Summary:     "Labeler agreement",
		Description: "Summarizes how often labelers agree on multi-labelled entries. Owner or admin only.",
		Tags:        []string{"Export"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetAgreement)
}

// AgreementOutput wraps the agreement summary for Huma.
type AgreementOutput struct {
	Body *export.Agreement
}

func (s *Server) handleGetAgreement(ctx context.Context, input *DatasetIDInput) (*AgreementOutput, error) {
	v, err := RequireViewer(ctx)
	if err != nil {
		return nil, err
	}
	a, err := s.services.Export.Agreement(ctx, v, input.ID)
	if err != nil {
		return nil, err
	}
	return &AgreementOutput{Body: a}, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// exportFilename builds an attachment name such as "reviews-ds_abc.csv".
func exportFilename(name, id string) string {
	base := strings.Trim(unsafeFilenameChars.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if base == "" {
		return id + ".csv"
	}
	return fmt.Sprintf("%s-%s.csv", base, id)
}

// handleExportDataset streams the consensus CSV.
// GET /api/v1/datasets/{id}/export
func (s *Server) handleExportDataset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v, err := RequireViewer(ctx)
	if err != nil {
		response.Unauthorized(w, "Authentication required", s.logger)
		return
	}

	ds, labels, err := s.services.Export.Prepare(ctx, v, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(ds.Name, ds.ID)))
	w.Header().Set("Cache-Control", CacheNoStore)
	w.WriteHeader(http.StatusOK)

	// Headers are sent; a failure here can only be logged.
	if err := s.services.Export.WriteCSV(ctx, w, ds, labels); err != nil {
		s.logger.Error("Export interrupted", "dataset_id", ds.ID, "error", err)
	}
}
