package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// Subdirectories of the drop folder that receive handled files.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// ImportFunc imports one file and returns the id of what it created.
type ImportFunc func(ctx context.Context, path string) (string, error)

// Importer feeds files dropped into a directory to an ImportFunc and then
// moves each file to processed/ or failed/.
type Importer struct {
	dir     string
	watcher *Watcher
	handle  ImportFunc
	logger  *slog.Logger
	now     func() time.Time
}

// NewImporter creates the drop folder layout and a watcher over it.
func NewImporter(dir string, handle ImportFunc, logger *slog.Logger, opts Options) (*Importer, error) {
	for _, sub := range []string{ProcessedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", sub, err)
		}
	}

	w, err := New(logger, opts)
	if err != nil {
		return nil, err
	}
	if err := w.Watch(dir); err != nil {
		w.Stop() //nolint:errcheck // already failing
		return nil, err
	}

	return &Importer{
		dir:     dir,
		watcher: w,
		handle:  handle,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Run imports files already present, then every settled new file, until ctx
// is cancelled.
func (im *Importer) Run(ctx context.Context) error {
	defer im.watcher.Stop() //nolint:errcheck // shutdown path

	go im.watcher.Start(ctx) //nolint:errcheck // returns nil on cancel

	existing, err := im.scan()
	if err != nil {
		im.logger.Warn("failed to scan import dir", "dir", im.dir, "error", err)
	}
	for _, path := range existing {
		im.importFile(ctx, path)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-im.watcher.Events():
			if event.Type != EventAdded {
				continue
			}
			im.importFile(ctx, event.Path)
		case err := <-im.watcher.Errors():
			im.logger.Warn("import watcher error", "error", err)
		}
	}
}

// Stop releases the watcher when Run was never started.
func (im *Importer) Stop() error {
	return im.watcher.Stop()
}

// scan lists accepted files at the top level of the drop folder, sorted by name.
func (im *Importer) scan() ([]string, error) {
	entries, err := os.ReadDir(im.dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(im.dir, e.Name())
		if im.watcher.opts.accepts(path) {
			paths = append(paths, path)
		}
	}
	slices.Sort(paths)
	return paths, nil
}

func (im *Importer) importFile(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		// Already handled by an earlier event.
		return
	}

	start := im.now()
	id, err := im.handle(ctx, path)
	if err != nil {
		im.logger.Error("import failed", "path", path, "error", err)
		dest := im.move(path, FailedDir)
		if dest != "" {
			if werr := os.WriteFile(dest+".error.txt", []byte(err.Error()+"\n"), 0o644); werr != nil {
				im.logger.Warn("failed to write error note", "path", dest, "error", werr)
			}
		}
		return
	}

	im.logger.Info("imported file",
		"path", path,
		"id", id,
		"duration_ms", im.now().Sub(start).Milliseconds(),
	)
	im.move(path, ProcessedDir)
}

// move renames path into the given subdirectory with a timestamp prefix and
// returns the new path, or "" when the rename failed.
func (im *Importer) move(path, sub string) string {
	name := im.now().UTC().Format("20060102T150405") + "-" + filepath.Base(path)
	dest := filepath.Join(im.dir, sub, name)
	if err := os.Rename(path, dest); err != nil {
		im.logger.Error("failed to move imported file", "path", path, "dest", dest, "error", err)
		return ""
	}
	return dest
}
