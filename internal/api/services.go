package api

import (
	"github.com/sentilabel/sentilabel-server/internal/search"
	"github.com/sentilabel/sentilabel-server/internal/service"
	"github.com/sentilabel/sentilabel-server/internal/suggest"
)

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Auth      *service.AuthService
	Datasets  *service.DatasetService
	Labeling  *service.LabelingService
	Export    *service.ExportService
	Admin     *service.AdminService
	Sentiment *suggest.Service
	Search    *search.SearchIndex // health reporting only
}
