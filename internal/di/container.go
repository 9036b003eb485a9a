// Package di provides dependency injection configuration for the labeling server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/sentilabel/sentilabel-server/internal/auth"
	"github.com/sentilabel/sentilabel-server/internal/config"
	"github.com/sentilabel/sentilabel-server/internal/di/providers"
	"github.com/sentilabel/sentilabel-server/internal/logger"
	"github.com/sentilabel/sentilabel-server/internal/metrics"
	"github.com/sentilabel/sentilabel-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)
	do.Provide(injector, providers.ProvideMetrics)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Labeling engine
	do.Provide(injector, providers.ProvideLabelingCore)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideSessionService)
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvideDatasetService)
	do.Provide(injector, providers.ProvideLabelingService)
	do.Provide(injector, providers.ProvideExportService)
	do.Provide(injector, providers.ProvideAdminService)
	do.Provide(injector, providers.ProvideSentimentService)

	// Workers
	do.Provide(injector, providers.ProvideImportWatcher)
	do.Provide(injector, providers.ProvideSessionCleanupJob)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*metrics.Metrics](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*providers.LabelingCore](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)

	// Business services
	_ = do.MustInvoke[*service.SessionService](injector)
	_ = do.MustInvoke[*service.AuthService](injector)
	_ = do.MustInvoke[*service.DatasetService](injector)
	_ = do.MustInvoke[*service.LabelingService](injector)
	_ = do.MustInvoke[*service.ExportService](injector)
	_ = do.MustInvoke[*service.AdminService](injector)
	_ = do.MustInvoke[*providers.SentimentHandle](injector)

	// Workers
	_ = do.MustInvoke[*providers.ImportWatcherHandle](injector)
	_ = do.MustInvoke[*providers.SessionCleanupJob](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Trigger search reindex if needed
	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}
