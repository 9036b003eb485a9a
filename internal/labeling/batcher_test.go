package labeling

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentilabel/sentilabel-server/internal/domain"
	"github.com/sentilabel/sentilabel-server/internal/errors"
)

func TestSubmit_FullPageAdvances(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.createUser(t, "usr-owner")
	h.createDataset(t, "ds1", owner.UserID, domain.LabelingMultiClass, unscored(12))

	view, err := h.loader.Load(ctx, PageRequest{Viewer: owner, DatasetID: "ds1", PageSize: 10})
	require.NoError(t, err)

	res, err := h.batcher.Submit(ctx, Submission{
		Viewer:    owner,
		DatasetID: "ds1",
		Page:      0,
		PageSize:  10,
		Labels:    pageLabels(view, "positive"),
	})
	require.NoError(t, err)

	assert.Equal(t, 10, res.Inserted)
	assert.Zero(t, res.Updated)
	assert.Zero(t, res.Redirected)
	assert.True(t, res.Advanced)
	assert.False(t, res.DatasetComplete)
	assert.Equal(t, 10, res.Progress.Completed)
	assert.Equal(t, 12, res.Progress.Total)
	require.NotNil(t, res.Progress.StartedAt)
	assert.Nil(t, res.Progress.CompletedAt)

	assert.Equal(t, 1, res.View.Page)
	assert.Len(t, res.View.Entries, 2)
	assert.Equal(t, 1, res.Progress.LastPage)
	assert.Equal(t, 1, h.observer.advanced)

	p, err := h.tracker.Get(ctx, "ds1", owner.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.LastPage)
}

func TestSubmit_PartialPageStays(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.createUser(t, "usr-owner")
	h.createDataset(t, "ds1", owner.UserID, domain.LabelingMultiClass, unscored(12))

	view, err := h.loader.Load(ctx, PageRequest{Viewer: owner, DatasetID: "ds1", PageSize: 10})
	require.NoError(t, err)

	res, err := h.batcher.Submit(ctx, Submission{
		Viewer:    owner,
		DatasetID: "ds1",
		PageSize:  10,
		Labels:    map[string]string{view.Entries[0].ID: "neutral"},
	})
	require.NoError(t, err)
	assert.False(t, res.Advanced)
	assert.Equal(t, 0, res.View.Page)
	assert.True(t, res.View.Entries[0].Submitted)
	assert.Equal(t, domain.ProgressInProgress, res.Progress.State())
}

func TestSubmit_LastPageCompletesDataset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.createUser(t, "usr-owner")
	h.createDataset(t, "ds1", owner.UserID, domain.LabelingBinary, unscored(12))

	for page := range 2 {
		view, err := h.loader.Load(ctx, PageRequest{Viewer: owner, DatasetID: "ds1", Page: page, PageSize: 10})
		require.NoError(t, err)
		res, err := h.batcher.Submit(ctx, Submission{
			Viewer:    owner,
			DatasetID: "ds1",
			Page:      page,
			PageSize:  10,
			Labels:    pageLabels(view, "negative"),
		})
		require.NoError(t, err)

		if page == 1 {
			assert.True(t, res.DatasetComplete)
			assert.False(t, res.Advanced)
			assert.Equal(t, 12, res.Progress.Completed)
			assert.NotNil(t, res.Progress.CompletedAt)
		}
	}
	assert.Equal(t, 1, h.observer.completed)
}

func TestSubmit_BinaryRejectsNeutralBeforeWriting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.createUser(t, "usr-owner")
	entries := h.createDataset(t, "ds1", owner.UserID, domain.LabelingBinary, unscored(3))

	_, err := h.batcher.Submit(ctx, Submission{
		Viewer:    owner,
		DatasetID: "ds1",
		Labels: map[string]string{
			entries[0].ID: "positive",
			entries[1].ID: "neutral",
		},
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeValidation, errors.CodeOf(err))

	n, err := h.db.CountUserLabels(ctx, "ds1", owner.UserID)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing written")
}

func TestSubmit_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.createUser(t, "usr-owner")
	entries := h.createDataset(t, "ds1", owner.UserID, domain.LabelingMultiClass, unscored(3))
	h.createDataset(t, "ds2", owner.UserID, domain.LabelingMultiClass, unscored(3))

	tests := []struct {
		name   string
		labels map[string]string
	}{
		{"empty", map[string]string{}},
		{"unknown value", map[string]string{entries[0].ID: "mixed"}},
		{"entry from another dataset", map[string]string{"en-ds2-00": "positive"}},
		{"unknown entry", map[string]string{"en-nope": "positive"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.batcher.Submit(ctx, Submission{Viewer: owner, DatasetID: "ds1", Labels: tt.labels})
			assert.Equal(t, errors.CodeValidation, errors.CodeOf(err))
		})
	}

	n, err := h.db.CountUserLabels(ctx, "ds1", owner.UserID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSubmit_ResubmitKeepsOneRow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.createUser(t, "usr-owner")
	entries := h.createDataset(t, "ds1", owner.UserID, domain.LabelingMultiClass, unscored(5))

	sub := Submission{
		Viewer:    owner,
		DatasetID: "ds1",
		Labels:    map[string]string{entries[2].ID: "positive"},
	}

	first, err := h.batcher.Submit(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Inserted)

	second, err := h.batcher.Submit(ctx, sub)
	require.NoError(t, err)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, 1, second.Updated)
	assert.Equal(t, 1, second.Progress.Completed, "completed does not move on update")

	n, err := h.db.CountUserLabels(ctx, "ds1", owner.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSubmit_OverwritesAutoLabelAsRedirect(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.createUser(t, "usr-owner")
	labeler := h.createUser(t, "usr-labeler")
	entries := h.createDataset(t, "ds1", owner.UserID, domain.LabelingMultiClass, []int{1, 2, 5, 5})
	h.join(t, "ds1", labeler)

	_, err := h.db.InsertAutoLabels(ctx, "ds1", labeler.UserID, []string{entries[0].ID, entries[1].ID}, domain.LabelNegative)
	require.NoError(t, err)
	_, err = h.tracker.Recount(ctx, "ds1", labeler.UserID)
	require.NoError(t, err)

	res, err := h.batcher.Submit(ctx, Submission{
		Viewer:    labeler,
		DatasetID: "ds1",
		Labels: map[string]string{
			entries[0].ID: "neutral",
			entries[2].ID: "positive",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Redirected)
	assert.Zero(t, res.Updated)
	assert.Equal(t, 3, res.Progress.Completed)

	labels, err := h.db.GetUserLabels(ctx, "ds1", labeler.UserID, []string{entries[0].ID})
	require.NoError(t, err)
	assert.Equal(t, domain.LabelNeutral, labels[entries[0].ID].Value)
	assert.Equal(t, domain.LabelSourceUser, labels[entries[0].ID].Source)
	assert.Equal(t, 1, h.observer.redirect)
}

func TestSubmit_InactiveDataset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.createUser(t, "usr-owner")
	labeler := h.createUser(t, "usr-labeler")
	entries := h.createDataset(t, "ds1", owner.UserID, domain.LabelingMultiClass, unscored(2))
	h.join(t, "ds1", labeler)

	inactive := false
	_, err := h.db.UpdateDataset(ctx, "ds1", domain.DatasetUpdate{IsActive: &inactive})
	require.NoError(t, err)

	labels := map[string]string{entries[0].ID: "positive"}
	_, err = h.batcher.Submit(ctx, Submission{Viewer: labeler, DatasetID: "ds1", Labels: labels})
	assert.Equal(t, errors.CodeDatasetInactive, errors.CodeOf(err))

	_, err = h.batcher.Submit(ctx, Submission{Viewer: owner, DatasetID: "ds1", Labels: labels})
	assert.NoError(t, err, "owners keep labeling inactive datasets")
}

func TestSubmit_ConcurrentTabsNeverExceedTotal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.createUser(t, "usr-owner")
	entries := h.createDataset(t, "ds1", owner.UserID, domain.LabelingMultiClass, unscored(4))

	labels := make(map[string]string, len(entries))
	for _, e := range entries {
		labels[e.ID] = "positive"
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() {
			_, err := h.batcher.Submit(ctx, Submission{Viewer: owner, DatasetID: "ds1", Labels: labels})
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	p, err := h.tracker.Get(ctx, "ds1", owner.UserID)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Completed)

	n, err := h.db.CountUserLabels(ctx, "ds1", owner.UserID)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
