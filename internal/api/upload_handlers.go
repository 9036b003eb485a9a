package api

import (
	"errors"
	"net/http"

	"github.com/sentilabel/sentilabel-server/internal/domain"
	"github.com/sentilabel/sentilabel-server/internal/http/response"
	"github.com/sentilabel/sentilabel-server/internal/service"
)

// handleUploadDataset creates a dataset from a multipart CSV upload.
// POST /api/v1/datasets/upload
//
// Form fields: file (required), name (required), description, labeling_type.
func (s *Server) handleUploadDataset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v, err := RequireViewer(ctx)
	if err != nil {
		response.Unauthorized(w, "Authentication required", s.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, "File too large", s.logger)
			return
		}
		response.BadRequest(w, "Invalid multipart form", s.logger)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "Missing file field", s.logger)
		return
	}
	defer file.Close()

	labelingType := domain.LabelingType(r.FormValue("labeling_type"))
	if labelingType == "" {
		labelingType = domain.LabelingMultiClass
	}

	res, err := s.services.Datasets.Upload(ctx, v, service.UploadRequest{
		Name:         r.FormValue("name"),
		Description:  r.FormValue("description"),
		LabelingType: labelingType,
		File:         file,
	})
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	s.logger.Info("Dataset uploaded",
		"dataset_id", res.Dataset.ID,
		"filename", header.Filename,
		"size", header.Size,
		"user_id", v.UserID,
	)
	response.Created(w, res, s.logger)
}
