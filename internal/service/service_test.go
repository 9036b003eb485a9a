package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sentilabel/sentilabel-server/internal/auth"
	"github.com/sentilabel/sentilabel-server/internal/domain"
	"github.com/sentilabel/sentilabel-server/internal/labeling"
	"github.com/sentilabel/sentilabel-server/internal/search"
	"github.com/sentilabel/sentilabel-server/internal/shuffle"
	"github.com/sentilabel/sentilabel-server/internal/store/sqlite"
)

// testEnv wires every service over a temporary database and index.
type testEnv struct {
	store    *sqlite.Store
	index    *search.SearchIndex
	tokens   *auth.TokenService
	auth     *AuthService
	datasets *DatasetService
	labeling *LabelingService
	export   *ExportService
	admin    *AdminService
	tracker  *labeling.ProgressTracker
}

func setupTest(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	s, err := sqlite.Open(filepath.Join(dir, "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	index, err := search.NewSearchIndex(search.Options{DataPath: dir, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })

	tokens, err := auth.NewTokenService(make([]byte, 32), 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	sessions := labeling.NewSessionRegistry(time.Minute)
	perms := shuffle.NewCache(time.Minute, time.Minute)
	tracker := labeling.NewProgressTracker(s, logger)
	loader := labeling.NewPageLoader(s, perms, sessions, tracker, nil, 10, logger)
	batcher := labeling.NewBatcher(s, loader, nil, logger)

	sessionService := NewSessionService(s, tokens, logger)

	return &testEnv{
		store:    s,
		index:    index,
		tokens:   tokens,
		auth:     NewAuthService(s, tokens, sessionService, true, logger),
		datasets: NewDatasetService(s, index, perms, sessions, tracker, DatasetConfig{AutoNegativeLowScores: true}, logger),
		labeling: NewLabelingService(loader, batcher, tracker, 10, logger),
		export:   NewExportService(s, logger),
		admin:    NewAdminService(s, tracker, logger),
		tracker:  tracker,
	}
}

// setupAdmin completes server setup and returns the admin viewer.
func (e *testEnv) setupAdmin(t *testing.T) labeling.Viewer {
	t.Helper()
	resp, err := e.auth.Setup(context.Background(), SetupRequest{
		Email:    "admin@example.com",
		Password: "password123",
	}, ClientInfo{})
	require.NoError(t, err)
	return labeling.Viewer{UserID: resp.User.ID, IsAdmin: true}
}

func (e *testEnv) register(t *testing.T, email string) labeling.Viewer {
	t.Helper()
	resp, err := e.auth.Register(context.Background(), RegisterRequest{
		Email:    email,
		Password: "password123",
	}, ClientInfo{})
	require.NoError(t, err)
	return labeling.Viewer{UserID: resp.User.ID}
}

func (e *testEnv) upload(t *testing.T, v labeling.Viewer, csv string) *domain.Dataset {
	t.Helper()
	res, err := e.datasets.Upload(context.Background(), v, UploadRequest{
		Name:         "Reviews",
		LabelingType: domain.LabelingMultiClass,
		File:         strings.NewReader(csv),
	})
	require.NoError(t, err)
	return res.Dataset
}

const scoredCSV = "review,rating\n" +
	"terrible app,1\n" +
	"crashes a lot,2\n" +
	"it is fine,3\n" +
	"great update,5\n" +
	"no score here,\n"
