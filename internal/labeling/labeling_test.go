package labeling

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sentilabel/sentilabel-server/internal/domain"
	"github.com/sentilabel/sentilabel-server/internal/shuffle"
	"github.com/sentilabel/sentilabel-server/internal/store"
	"github.com/sentilabel/sentilabel-server/internal/store/sqlite"
)

var errBackend = errors.New("backend unavailable")

// faultyStore wraps a real store and fails selected reads.
type faultyStore struct {
	Store

	failCount       bool
	failListEntries bool
	failLabels      bool
	onCount         func()
}

func (f *faultyStore) CountEntries(ctx context.Context, datasetID string, scores []int) (int, error) {
	if f.onCount != nil {
		f.onCount()
	}
	if f.failCount {
		return 0, errBackend
	}
	return f.Store.CountEntries(ctx, datasetID, scores)
}

func (f *faultyStore) ListEntries(ctx context.Context, datasetID string, scores []int, offset, limit int) ([]*domain.Entry, error) {
	if f.failListEntries {
		return nil, errBackend
	}
	return f.Store.ListEntries(ctx, datasetID, scores, offset, limit)
}

func (f *faultyStore) GetUserLabels(ctx context.Context, datasetID, userID string, entryIDs []string) (map[string]*domain.Label, error) {
	if f.failLabels {
		return nil, errBackend
	}
	return f.Store.GetUserLabels(ctx, datasetID, userID, entryIDs)
}

// recordingObserver counts observer calls.
type recordingObserver struct {
	mu        sync.Mutex
	outcomes  []string
	inserted  int
	updated   int
	redirect  int
	advanced  int
	completed int
}

func (o *recordingObserver) PageLoaded(outcome string, _ bool, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) LabelsSubmitted(_ string, inserted, updated, redirected int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inserted += inserted
	o.updated += updated
	o.redirect += redirected
}

func (o *recordingObserver) PageAdvanced(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.advanced++
}

func (o *recordingObserver) DatasetCompleted(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completed++
}

type harness struct {
	db       *sqlite.Store
	faults   *faultyStore
	sessions *SessionRegistry
	perms    *shuffle.Cache
	tracker  *ProgressTracker
	loader   *PageLoader
	batcher  *Batcher
	observer *recordingObserver
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := &harness{
		db:       db,
		faults:   &faultyStore{Store: db},
		sessions: NewSessionRegistry(time.Minute),
		perms:    shuffle.NewCache(time.Minute, time.Minute),
		observer: &recordingObserver{},
	}
	h.tracker = NewProgressTracker(h.faults, logger)
	h.loader = NewPageLoader(h.faults, h.perms, h.sessions, h.tracker, h.observer, 10, logger)
	h.batcher = NewBatcher(h.faults, h.loader, h.observer, logger)
	return h
}

func (h *harness) createUser(t *testing.T, id string) Viewer {
	t.Helper()
	now := time.Now()
	err := h.db.CreateUser(context.Background(), &domain.User{
		Record:       domain.Record{ID: id, CreatedAt: now, UpdatedAt: now},
		Email:        id + "@example.com",
		PasswordHash: "hash",
		DisplayName:  id,
		Role:         domain.RoleLabeler,
	})
	require.NoError(t, err)
	return Viewer{UserID: id}
}

// createDataset seeds a dataset with one entry per score; a zero score means
// the entry has none.
func (h *harness) createDataset(t *testing.T, id, ownerID string, typ domain.LabelingType, scores []int) []*domain.Entry {
	t.Helper()
	now := time.Now()
	ds := &domain.Dataset{
		Record:       domain.Record{ID: id, CreatedAt: now, UpdatedAt: now},
		Name:         "Reviews " + id,
		OwnerID:      ownerID,
		InviteCode:   "INV" + id,
		IsActive:     true,
		LabelingType: typ,
	}
	entries := make([]*domain.Entry, len(scores))
	for i, sc := range scores {
		entries[i] = &domain.Entry{
			ID:       fmt.Sprintf("en-%s-%02d", id, i),
			Position: i,
			Text:     fmt.Sprintf("review %d", i),
		}
		if sc != 0 {
			v := sc
			entries[i].Score = &v
			ds.HasScores = true
		}
	}
	require.NoError(t, h.db.CreateDataset(context.Background(), ds, entries))
	return entries
}

func (h *harness) join(t *testing.T, datasetID string, v Viewer) {
	t.Helper()
	_, err := h.db.AddMember(context.Background(), &domain.Membership{
		DatasetID: datasetID,
		UserID:    v.UserID,
		Role:      domain.MemberLabeler,
		JoinedAt:  time.Now(),
	})
	require.NoError(t, err)
}

func entryIDs(view *PageView) []string {
	ids := make([]string, len(view.Entries))
	for i, e := range view.Entries {
		ids[i] = e.ID
	}
	return ids
}

func pageLabels(view *PageView, value string) map[string]string {
	labels := make(map[string]string, len(view.Entries))
	for _, e := range view.Entries {
		labels[e.ID] = value
	}
	return labels
}

func unscored(n int) []int {
	return make([]int, n)
}

var _ Store = (store.Store)(nil)
