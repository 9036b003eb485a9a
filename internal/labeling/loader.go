package labeling

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/sentilabel/sentilabel-server/internal/domain"
	domainerrors "github.com/sentilabel/sentilabel-server/internal/errors"
	"github.com/sentilabel/sentilabel-server/internal/scorefilter"
	"github.com/sentilabel/sentilabel-server/internal/shuffle"
	"github.com/sentilabel/sentilabel-server/internal/store"
)

// RecoveryPageSize is how many entries the fallback fetch returns when a
// page cannot be loaded.
const RecoveryPageSize = 10

// Notices shown with degraded views.
const (
	NoticeRecovered = "The requested page could not be loaded; showing the first entries instead."
	NoticeEmpty     = "Entries could not be loaded right now. Please try again."
)

// PageRequest asks for one page of a dataset.
type PageRequest struct {
	Viewer    Viewer
	DatasetID string
	Page      int
	PageSize  int
	Filter    scorefilter.Set
}

// PageEntry is one entry with the viewer's existing label, if any.
type PageEntry struct {
	*domain.Entry
	Label     *domain.LabelValue `json:"label,omitempty"`
	Submitted bool               `json:"submitted"`
}

// PageView is a loaded page ready for display.
type PageView struct {
	DatasetID    string              `json:"dataset_id"`
	LabelingType domain.LabelingType `json:"labeling_type"`
	Page         int                 `json:"page"`
	PageSize     int                 `json:"page_size"`
	TotalEntries int                 `json:"total_entries"`
	TotalPages   int                 `json:"total_pages"`
	Filter       scorefilter.Set     `json:"filter"`
	Entries      []PageEntry         `json:"entries"`
	Recovered    bool                `json:"recovered"`
	Notice       string              `json:"notice,omitempty"`
	Generation   uint64              `json:"generation"`
	Stale        bool                `json:"stale"`
	Progress     *domain.Progress    `json:"progress,omitempty"`
}

// AllSubmitted reports whether every entry on the page carries a label.
func (v *PageView) AllSubmitted() bool {
	if len(v.Entries) == 0 {
		return false
	}
	for _, e := range v.Entries {
		if !e.Submitted {
			return false
		}
	}
	return true
}

// HasNextPage reports whether a page follows this one.
func (v *PageView) HasNextPage() bool {
	return v.Page < v.TotalPages-1
}

// PageLoader loads pages in the viewer's shuffled order.
type PageLoader struct {
	store    Store
	perms    *shuffle.Cache
	sessions *SessionRegistry
	progress *ProgressTracker
	observer Observer
	logger   *slog.Logger
	pageSize int
}

// NewPageLoader creates a loader. defaultPageSize applies when a request
// carries no page size.
func NewPageLoader(s Store, perms *shuffle.Cache, sessions *SessionRegistry, progress *ProgressTracker, observer Observer, defaultPageSize int, logger *slog.Logger) *PageLoader {
	if observer == nil {
		observer = NoopObserver{}
	}
	return &PageLoader{
		store:    s,
		perms:    perms,
		sessions: sessions,
		progress: progress,
		observer: observer,
		logger:   logger,
		pageSize: defaultPageSize,
	}
}

// Load returns one page of the dataset.
//
// Read failures never surface as errors: the loader falls back once to the
// first entries of the dataset in id order, and if that also fails returns
// an empty view with a notice. Only access errors are returned.
func (l *PageLoader) Load(ctx context.Context, req PageRequest) (*PageView, error) {
	ds, err := authorize(ctx, l.store, req.Viewer, req.DatasetID)
	if err != nil {
		return nil, err
	}
	return l.load(ctx, ds, req), nil
}

func (l *PageLoader) load(ctx context.Context, ds *domain.Dataset, req PageRequest) *PageView {
	started := time.Now()
	userID := req.Viewer.UserID
	gen := l.sessions.Begin(userID, ds.ID)

	size := req.PageSize
	if size <= 0 {
		size = l.pageSize
	}
	filter := scorefilter.Normalize(req.Filter)

	view, cacheHit, err := l.fetchPage(ctx, ds, userID, req.Page, size, filter)
	outcome := OutcomeOK
	if err != nil {
		l.logger.Warn("page load failed, recovering",
			"dataset_id", ds.ID,
			"user_id", userID,
			"page", req.Page,
			"filter", filter.Key(),
			"error", err,
		)
		view, err = l.fetchRecovery(ctx, ds, userID, size)
		outcome = OutcomeRecovered
		if err != nil {
			l.logger.Warn("recovery fetch failed",
				"dataset_id", ds.ID,
				"user_id", userID,
				"error", err,
			)
			view = &PageView{
				Filter:     scorefilter.All(),
				PageSize:   size,
				TotalPages: 1,
				Entries:    []PageEntry{},
				Recovered:  true,
				Notice:     NoticeEmpty,
			}
			outcome = OutcomeEmpty
		}
	}

	view.DatasetID = ds.ID
	view.LabelingType = ds.LabelingType
	view.Generation = gen

	if p, err := l.progress.EnsureExists(ctx, ds.ID, userID, ds.TotalEntries); err != nil {
		l.logger.Warn("progress unavailable", "dataset_id", ds.ID, "user_id", userID, "error", err)
	} else {
		view.Progress = p
	}

	// A load that finished after a newer one started must not move the
	// session; the client discards it by generation.
	if outcome != OutcomeEmpty {
		if l.sessions.Commit(userID, ds.ID, gen, view.Page, view.Filter) {
			if err := l.progress.RecordPage(ctx, ds.ID, userID, view.Page); err != nil {
				l.logger.Warn("failed to record page", "dataset_id", ds.ID, "user_id", userID, "error", err)
			} else if view.Progress != nil {
				view.Progress.LastPage = view.Page
			}
		} else {
			view.Stale = true
			outcome = OutcomeStale
		}
	}

	l.observer.PageLoaded(outcome, cacheHit, time.Since(started))
	return view
}

// fetchPage runs the normal path: count, window, rows, shuffle, labels.
func (l *PageLoader) fetchPage(ctx context.Context, ds *domain.Dataset, userID string, page, size int, filter scorefilter.Set) (*PageView, bool, error) {
	scores, _ := scorefilter.Predicate(filter, ds.HasScores)

	total, err := l.store.CountEntries(ctx, ds.ID, scores)
	if err != nil {
		return nil, false, err
	}

	window, recovered := store.PageWindow(page, size, total)

	var rows []*domain.Entry
	if window.Size() > 0 {
		rows, err = l.store.ListEntries(ctx, ds.ID, scores, window.Start, window.Size())
		if err != nil {
			return nil, false, err
		}
	}

	key := shuffle.Key{UserID: userID, DatasetID: ds.ID, Filter: filter.Key(), Total: total}
	placed := make([]string, len(rows))
	for i, r := range rows {
		placed[i] = r.ID
	}
	positions, cacheHit, err := l.perms.Positions(ctx, key, placed, func(ctx context.Context) ([]string, error) {
		return l.store.ListEntryIDs(ctx, ds.ID, scores)
	})
	if err != nil {
		// Without a permutation the rows keep their id order.
		l.logger.Warn("shuffle unavailable, using id order", "dataset_id", ds.ID, "user_id", userID, "error", err)
	} else {
		sortByPosition(rows, positions)
	}

	entries, err := l.attachLabels(ctx, ds.ID, userID, rows)
	if err != nil {
		return nil, cacheHit, err
	}

	return &PageView{
		Page:         window.Page,
		PageSize:     size,
		TotalEntries: total,
		TotalPages:   store.TotalPages(total, size),
		Filter:       filter,
		Entries:      entries,
		Recovered:    recovered,
	}, cacheHit, nil
}

// fetchRecovery loads the first entries of the dataset, unfiltered and in id order.
func (l *PageLoader) fetchRecovery(ctx context.Context, ds *domain.Dataset, userID string, size int) (*PageView, error) {
	rows, err := l.store.ListEntries(ctx, ds.ID, nil, 0, RecoveryPageSize)
	if err != nil {
		return nil, err
	}

	entries, err := l.attachLabels(ctx, ds.ID, userID, rows)
	if err != nil {
		return nil, err
	}

	return &PageView{
		Page:         0,
		PageSize:     size,
		TotalEntries: ds.TotalEntries,
		TotalPages:   store.TotalPages(ds.TotalEntries, size),
		Filter:       scorefilter.All(),
		Entries:      entries,
		Recovered:    true,
		Notice:       NoticeRecovered,
	}, nil
}

// attachLabels pairs rows with the user's labels on exactly those rows.
func (l *PageLoader) attachLabels(ctx context.Context, datasetID, userID string, rows []*domain.Entry) ([]PageEntry, error) {
	ids := make([]string, len(rows))
	for i, e := range rows {
		ids[i] = e.ID
	}

	labels, err := l.store.GetUserLabels(ctx, datasetID, userID, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]PageEntry, len(rows))
	for i, e := range rows {
		entries[i] = PageEntry{Entry: e}
		if lb, ok := labels[e.ID]; ok {
			v := lb.Value
			entries[i].Label = &v
			entries[i].Submitted = true
		}
	}
	return entries, nil
}

// sortByPosition orders rows by their index in the permutation. Rows missing
// from the permutation keep their relative id order after the known ones.
func sortByPosition(rows []*domain.Entry, positions map[string]int) {
	slices.SortStableFunc(rows, func(a, b *domain.Entry) int {
		pa, okA := positions[a.ID]
		pb, okB := positions[b.ID]
		switch {
		case okA && okB:
			return cmp.Compare(pa, pb)
		case okA:
			return -1
		case okB:
			return 1
		default:
			return 0
		}
	})
}

// Resume loads the page the user last worked on. A live session supplies the
// page and filter; otherwise the session is seeded from the persisted
// last page with the "all" filter.
func (l *PageLoader) Resume(ctx context.Context, v Viewer, datasetID string, pageSize int) (*PageView, error) {
	ds, err := authorize(ctx, l.store, v, datasetID)
	if err != nil {
		return nil, err
	}

	state, ok := l.sessions.Lookup(v.UserID, ds.ID)
	if !ok {
		page := 0
		if p, err := l.progress.EnsureExists(ctx, ds.ID, v.UserID, ds.TotalEntries); err != nil {
			l.logger.Warn("progress unavailable, starting at first page", "dataset_id", ds.ID, "user_id", v.UserID, "error", err)
		} else {
			page = p.LastPage
		}
		state = l.sessions.Open(v.UserID, ds.ID, page)
	}

	return l.load(ctx, ds, PageRequest{
		Viewer:    v,
		DatasetID: ds.ID,
		Page:      state.Page,
		PageSize:  pageSize,
		Filter:    state.Filter,
	}), nil
}

// ApplyFilter switches the session to filter and reloads. The current page is
// kept, clamped to the page count under the new filter.
func (l *PageLoader) ApplyFilter(ctx context.Context, v Viewer, datasetID string, filter scorefilter.Set, pageSize int) (*PageView, error) {
	ds, err := authorize(ctx, l.store, v, datasetID)
	if err != nil {
		return nil, err
	}

	if pageSize <= 0 {
		pageSize = l.pageSize
	}
	filter = scorefilter.Normalize(filter)

	page := 0
	if state, ok := l.sessions.Lookup(v.UserID, ds.ID); ok {
		page = state.Page
	}

	scores, _ := scorefilter.Predicate(filter, ds.HasScores)
	if total, err := l.store.CountEntries(ctx, ds.ID, scores); err == nil {
		page = store.ClampPage(page, pageSize, total)
	}

	return l.load(ctx, ds, PageRequest{
		Viewer:    v,
		DatasetID: ds.ID,
		Page:      page,
		PageSize:  pageSize,
		Filter:    filter,
	}), nil
}

// ToggleFilter flips token in current and applies the result.
func (l *PageLoader) ToggleFilter(ctx context.Context, v Viewer, datasetID string, current scorefilter.Set, token string, pageSize int) (scorefilter.Set, *PageView, error) {
	token = strings.ToLower(strings.TrimSpace(token))
	if !scorefilter.ValidToken(token) {
		return nil, nil, domainerrors.Validationf("unknown filter %q", token)
	}
	next := scorefilter.Toggle(current, token)
	view, err := l.ApplyFilter(ctx, v, datasetID, next, pageSize)
	if err != nil {
		return nil, nil, err
	}
	return next, view, nil
}
