package providers

import (
	"time"

	"github.com/samber/do/v2"

	"github.com/sentilabel/sentilabel-server/internal/config"
	"github.com/sentilabel/sentilabel-server/internal/labeling"
	"github.com/sentilabel/sentilabel-server/internal/logger"
	"github.com/sentilabel/sentilabel-server/internal/metrics"
	"github.com/sentilabel/sentilabel-server/internal/shuffle"
)

// Permutation cache lifetimes. Permutations are pure functions of the
// dataset, so expiry only bounds memory.
const (
	permutationTTL     = time.Hour
	permutationCleanup = 10 * time.Minute
)

// LabelingCore bundles the session engine shared by the services.
type LabelingCore struct {
	Sessions     *labeling.SessionRegistry
	Permutations *shuffle.Cache
	Tracker      *labeling.ProgressTracker
	Loader       *labeling.PageLoader
	Batcher      *labeling.Batcher
}

// ProvideMetrics provides the Prometheus registry. Nil when metrics are disabled.
func ProvideMetrics(i do.Injector) (*metrics.Metrics, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Metrics.Enabled {
		log.Info("Metrics disabled by configuration")
		return nil, nil
	}
	return metrics.New(log.Logger)
}

// ProvideLabelingCore provides the page loader, batcher and their caches.
func ProvideLabelingCore(i do.Injector) (*LabelingCore, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	// A nil *LabelingMetrics in the interface would not be nil.
	var observer labeling.Observer
	if m != nil {
		observer = m.Labeling
	}

	core := &LabelingCore{
		Sessions:     labeling.NewSessionRegistry(cfg.Labeling.SessionTTL),
		Permutations: shuffle.NewCache(permutationTTL, permutationCleanup),
		Tracker:      labeling.NewProgressTracker(storeHandle.Store, log.Component("progress")),
	}
	core.Loader = labeling.NewPageLoader(
		storeHandle.Store,
		core.Permutations,
		core.Sessions,
		core.Tracker,
		observer,
		cfg.Labeling.PageSize,
		log.Component("loader"),
	)
	core.Batcher = labeling.NewBatcher(storeHandle.Store, core.Loader, observer, log.Component("batcher"))

	log.Info("Labeling engine ready",
		"page_size", cfg.Labeling.PageSize,
		"session_ttl", cfg.Labeling.SessionTTL,
	)

	return core, nil
}
