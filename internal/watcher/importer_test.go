package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingImport struct {
	mu    sync.Mutex
	paths []string
	fail  map[string]error
}

func (r *recordingImport) handle(_ context.Context, path string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, filepath.Base(path))
	if err := r.fail[filepath.Base(path)]; err != nil {
		return "", err
	}
	return "ds-" + filepath.Base(path), nil
}

func (r *recordingImport) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestImporter_ImportsExistingAndNewFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("text\none\n"), 0o644))

	rec := &recordingImport{}
	im, err := NewImporter(dir, rec.handle, testLogger(), Options{SettleDelay: 50 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- im.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(rec.seen()) == 1
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("text\ntwo\n"), 0o644))

	require.Eventually(t, func() bool {
		return len(rec.seen()) == 2
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"a.csv", "b.csv"}, rec.seen())
	assert.Len(t, listDir(t, filepath.Join(dir, ProcessedDir)), 2)
	assert.NoFileExists(t, filepath.Join(dir, "a.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "b.csv"))
}

func TestImporter_FailedFileMovedWithNote(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.csv"), []byte(""), 0o644))

	rec := &recordingImport{fail: map[string]error{"bad.csv": errors.New("csv has no header row")}}
	im, err := NewImporter(dir, rec.handle, testLogger(), Options{SettleDelay: 50 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- im.Run(ctx) }()

	failed := filepath.Join(dir, FailedDir)
	require.Eventually(t, func() bool {
		return len(listDir(t, failed)) == 2
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	var note string
	for _, name := range listDir(t, failed) {
		if filepath.Ext(name) == ".txt" {
			data, err := os.ReadFile(filepath.Join(failed, name))
			require.NoError(t, err)
			note = string(data)
		}
	}
	assert.Equal(t, "csv has no header row\n", note)
	assert.Empty(t, listDir(t, filepath.Join(dir, ProcessedDir)))
}
