package providers

import (
	"github.com/samber/do/v2"

	"github.com/sentilabel/sentilabel-server/internal/auth"
	"github.com/sentilabel/sentilabel-server/internal/config"
	"github.com/sentilabel/sentilabel-server/internal/logger"
	"github.com/sentilabel/sentilabel-server/internal/metrics"
	"github.com/sentilabel/sentilabel-server/internal/service"
	"github.com/sentilabel/sentilabel-server/internal/suggest"
)

// ProvideSessionService provides the session management service.
func ProvideSessionService(i do.Injector) (*service.SessionService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSessionService(storeHandle.Store, tokenService, log.Logger), nil
}

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	sessionService := do.MustInvoke[*service.SessionService](i)
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(storeHandle.Store, tokenService, sessionService, cfg.Auth.AllowRegistration, log.Logger), nil
}

// ProvideDatasetService provides the dataset service.
func ProvideDatasetService(i do.Injector) (*service.DatasetService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	core := do.MustInvoke[*LabelingCore](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	svc := service.NewDatasetService(
		storeHandle.Store,
		indexHandle.SearchIndex,
		core.Permutations,
		core.Sessions,
		core.Tracker,
		service.DatasetConfig{AutoNegativeLowScores: cfg.Labeling.AutoNegativeLowScores},
		log.Component("datasets"),
	)
	if m != nil {
		svc.SetMetrics(m.Labeling)
	}
	return svc, nil
}

// ProvideLabelingService provides the labeling session service.
func ProvideLabelingService(i do.Injector) (*service.LabelingService, error) {
	core := do.MustInvoke[*LabelingCore](i)
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewLabelingService(core.Loader, core.Batcher, core.Tracker, cfg.Labeling.PageSize, log.Logger), nil
}

// ProvideExportService provides the export service.
func ProvideExportService(i do.Injector) (*service.ExportService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewExportService(storeHandle.Store, log.Logger), nil
}

// ProvideAdminService provides the admin service.
func ProvideAdminService(i do.Injector) (*service.AdminService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	core := do.MustInvoke[*LabelingCore](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAdminService(storeHandle.Store, core.Tracker, log.Logger), nil
}

// SentimentHandle wraps the suggestion service and its optional model client.
type SentimentHandle struct {
	*suggest.Service
	client *suggest.Client
}

// Shutdown implements do.Shutdownable.
func (h *SentimentHandle) Shutdown() error {
	if h.client != nil {
		h.client.Close()
	}
	return nil
}

// ProvideSentimentService provides label suggestions. Without a model URL
// only the keyword classifier is used.
func ProvideSentimentService(i do.Injector) (*SentimentHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	slogger := log.Component("sentiment")

	if cfg.Sentiment.APIURL == "" {
		log.Info("Sentiment model not configured, using keyword suggestions")
		return &SentimentHandle{Service: suggest.NewService(nil, slogger)}, nil
	}

	client := suggest.NewClient(suggest.ClientConfig{
		BaseURL: cfg.Sentiment.APIURL,
		Timeout: cfg.Sentiment.Timeout,
		RPS:     float64(cfg.Sentiment.RequestsPerSecond),
	}, slogger)

	log.Info("Sentiment model configured", "url", cfg.Sentiment.APIURL)

	return &SentimentHandle{
		Service: suggest.NewService(client, slogger),
		client:  client,
	}, nil
}
