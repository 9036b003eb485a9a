package labeling

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/sentilabel/sentilabel-server/internal/domain"
	domainerrors "github.com/sentilabel/sentilabel-server/internal/errors"
	"github.com/sentilabel/sentilabel-server/internal/scorefilter"
	"github.com/sentilabel/sentilabel-server/internal/store"
)

// Submission is one page worth of labels from a user.
type Submission struct {
	Viewer    Viewer
	DatasetID string
	Page      int
	PageSize  int
	Filter    scorefilter.Set
	// Labels maps entry id to the chosen value.
	Labels map[string]string
}

// SubmitResult reports what a submission wrote and where the session went.
type SubmitResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	// Redirected counts labels that overwrote a row the user never chose:
	// an auto label from the join policy, or a row written by another tab
	// after the pre-read.
	Redirected      int              `json:"redirected"`
	Progress        *domain.Progress `json:"progress"`
	Advanced        bool             `json:"advanced"`
	DatasetComplete bool             `json:"dataset_complete"`
	View            *PageView        `json:"view"`
}

// InvalidLabel describes one rejected label in a validation error.
type InvalidLabel struct {
	EntryID string `json:"entry_id"`
	Value   string `json:"value,omitempty"`
	Reason  string `json:"reason"`
}

// Batcher writes a page of labels in one transaction and advances the session.
type Batcher struct {
	store    Store
	loader   *PageLoader
	observer Observer
	logger   *slog.Logger
}

// NewBatcher creates a batcher that reloads pages through loader.
func NewBatcher(s Store, loader *PageLoader, observer Observer, logger *slog.Logger) *Batcher {
	if observer == nil {
		observer = NoopObserver{}
	}
	return &Batcher{
		store:    s,
		loader:   loader,
		observer: observer,
		logger:   logger,
	}
}

// Submit validates and writes the labels, then reloads the page. When the
// reloaded page is fully labeled and another page follows, the session moves
// to the next page.
func (b *Batcher) Submit(ctx context.Context, sub Submission) (*SubmitResult, error) {
	ds, err := authorize(ctx, b.store, sub.Viewer, sub.DatasetID)
	if err != nil {
		return nil, err
	}
	if !ds.AcceptsLabelsFrom(sub.Viewer.UserID, sub.Viewer.IsAdmin) {
		return nil, domainerrors.DatasetInactive(ds.Name)
	}

	writes, err := b.validate(ctx, ds, sub.Labels)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(writes))
	for i, w := range writes {
		ids[i] = w.EntryID
	}
	existing, err := b.store.GetUserLabels(ctx, ds.ID, sub.Viewer.UserID, ids)
	if err != nil {
		return nil, domainerrors.Internal("failed to load existing labels").WithCause(err)
	}

	res, err := b.store.SubmitLabels(ctx, ds.ID, sub.Viewer.UserID, writes)
	if err != nil {
		if errors.Is(err, store.ErrDatasetNotFound) {
			return nil, domainerrors.NotFound("dataset not found")
		}
		return nil, domainerrors.Internal("failed to save labels").WithCause(err)
	}

	result := &SubmitResult{
		Inserted: res.Inserted,
		Progress: res.Progress,
	}
	for _, w := range writes {
		if res.Outcomes[w.EntryID] != domain.UpsertUpdated {
			continue
		}
		if prev, ok := existing[w.EntryID]; ok && prev.Source == domain.LabelSourceUser {
			result.Updated++
		} else {
			result.Redirected++
		}
	}

	if result.Redirected > 0 {
		b.logger.Info("new labels applied as updates",
			"dataset_id", ds.ID,
			"user_id", sub.Viewer.UserID,
			"count", result.Redirected,
		)
	}
	b.observer.LabelsSubmitted(ds.ID, result.Inserted, result.Updated, result.Redirected)

	req := PageRequest{
		Viewer:    sub.Viewer,
		DatasetID: ds.ID,
		Page:      sub.Page,
		PageSize:  sub.PageSize,
		Filter:    sub.Filter,
	}
	view := b.loader.load(ctx, ds, req)

	switch {
	case result.Progress != nil && result.Progress.State() == domain.ProgressCompleted:
		result.DatasetComplete = true
		if result.Inserted > 0 {
			b.observer.DatasetCompleted(ds.ID)
			b.logger.Info("dataset completed", "dataset_id", ds.ID, "user_id", sub.Viewer.UserID)
		}
	case !view.Stale && !view.Recovered && view.AllSubmitted() && view.HasNextPage():
		req.Page = view.Page + 1
		next := b.loader.load(ctx, ds, req)
		if !next.Recovered {
			view = next
			result.Advanced = true
			b.observer.PageAdvanced(ds.ID)
		}
	}

	if view.Progress != nil {
		result.Progress = view.Progress
	}
	result.View = view
	return result, nil
}

// validate checks every label before anything is written and returns the
// writes in entry id order.
func (b *Batcher) validate(ctx context.Context, ds *domain.Dataset, labels map[string]string) ([]store.LabelWrite, error) {
	if len(labels) == 0 {
		return nil, domainerrors.Validation("no labels submitted")
	}

	var invalid []InvalidLabel
	writes := make([]store.LabelWrite, 0, len(labels))
	for entryID, raw := range labels {
		v, err := domain.ParseLabelValue(raw)
		if err != nil {
			invalid = append(invalid, InvalidLabel{EntryID: entryID, Value: raw, Reason: "unknown label"})
			continue
		}
		if !ds.LabelingType.Allows(v) {
			invalid = append(invalid, InvalidLabel{EntryID: entryID, Value: raw, Reason: "not allowed for " + string(ds.LabelingType) + " datasets"})
			continue
		}
		writes = append(writes, store.LabelWrite{EntryID: entryID, Value: v})
	}
	slices.SortFunc(writes, func(a, b store.LabelWrite) int {
		return cmp.Compare(a.EntryID, b.EntryID)
	})

	ids := make([]string, len(writes))
	for i, w := range writes {
		ids[i] = w.EntryID
	}
	found, err := b.store.GetEntriesByIDs(ctx, ds.ID, ids)
	if err != nil {
		return nil, domainerrors.Internal("failed to load entries").WithCause(err)
	}
	known := make(map[string]bool, len(found))
	for _, e := range found {
		known[e.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			invalid = append(invalid, InvalidLabel{EntryID: id, Reason: "entry not in dataset"})
		}
	}

	if len(invalid) > 0 {
		slices.SortFunc(invalid, func(a, b InvalidLabel) int {
			return cmp.Compare(a.EntryID, b.EntryID)
		})
		return nil, domainerrors.ValidationWithDetails("invalid labels", invalid)
	}
	return writes, nil
}
