package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/sentilabel/sentilabel-server/internal/api"
	"github.com/sentilabel/sentilabel-server/internal/config"
	"github.com/sentilabel/sentilabel-server/internal/logger"
	"github.com/sentilabel/sentilabel-server/internal/metrics"
	"github.com/sentilabel/sentilabel-server/internal/service"
)

// Version is reported in the OpenAPI document. Set at build time.
var Version = "dev"

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	api *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.api.Close()
	return err
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	sentimentHandle := do.MustInvoke[*SentimentHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	services := &api.Services{
		Auth:      do.MustInvoke[*service.AuthService](i),
		Datasets:  do.MustInvoke[*service.DatasetService](i),
		Labeling:  do.MustInvoke[*service.LabelingService](i),
		Export:    do.MustInvoke[*service.ExportService](i),
		Admin:     do.MustInvoke[*service.AdminService](i),
		Sentiment: sentimentHandle.Service,
		Search:    indexHandle.SearchIndex,
	}

	handler := api.NewServer(storeHandle.Store, services, api.Options{
		Version:     Version,
		CORSOrigins: cfg.Server.CORSOrigins,
		Metrics:     m,
	}, log.Component("http"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr, "metrics", m != nil)

	return &HTTPServerHandle{Server: srv, api: handler}, nil
}
