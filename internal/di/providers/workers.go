package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/sentilabel/sentilabel-server/internal/config"
	"github.com/sentilabel/sentilabel-server/internal/logger"
	"github.com/sentilabel/sentilabel-server/internal/service"
	"github.com/sentilabel/sentilabel-server/internal/watcher"
)

// sessionCleanupInterval is how often expired refresh sessions are deleted.
const sessionCleanupInterval = time.Hour

// ImportWatcherHandle wraps the drop-folder importer with shutdown capability.
// Importer is nil when no import directory is configured.
type ImportWatcherHandle struct {
	Importer *watcher.Importer
	cancel   context.CancelFunc
	done     chan struct{}
}

// Shutdown implements do.Shutdownable.
func (h *ImportWatcherHandle) Shutdown() error {
	if h.Importer == nil {
		return nil
	}
	h.cancel()
	<-h.done
	return nil
}

// ProvideImportWatcher provides the drop-folder importer.
func ProvideImportWatcher(i do.Injector) (*ImportWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	datasets := do.MustInvoke[*service.DatasetService](i)

	if cfg.Import.Dir == "" {
		log.Info("CSV import folder disabled")
		return &ImportWatcherHandle{}, nil
	}

	owner := cfg.Import.OwnerEmail
	importer, err := watcher.NewImporter(cfg.Import.Dir, func(ctx context.Context, path string) (string, error) {
		return datasets.ImportFile(ctx, path, owner)
	}, log.Component("import"), watcher.Options{IgnoreHidden: true})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := importer.Run(ctx); err != nil {
			log.Error("Import watcher error", "error", err)
		}
	}()

	log.Info("CSV import folder watched", "dir", cfg.Import.Dir, "owner", owner)

	return &ImportWatcherHandle{
		Importer: importer,
		cancel:   cancel,
		done:     done,
	}, nil
}

// SessionCleanupJob runs periodic session cleanup.
type SessionCleanupJob struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (j *SessionCleanupJob) Shutdown() error {
	j.cancel()
	return nil
}

// ProvideSessionCleanupJob provides the periodic session cleanup job.
func ProvideSessionCleanupJob(i do.Injector) (*SessionCleanupJob, error) {
	sessionService := do.MustInvoke[*service.SessionService](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		// Initial cleanup on startup
		if count, err := sessionService.DeleteExpiredSessions(ctx); err != nil {
			log.Warn("Initial session cleanup failed", "error", err)
		} else if count > 0 {
			log.Info("Initial session cleanup completed", "deleted", count)
		}

		sessionService.RunCleanup(ctx, sessionCleanupInterval)
	}()

	log.Info("Session cleanup job started")

	return &SessionCleanupJob{cancel: cancel}, nil
}
