package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentilabel/sentilabel-server/internal/domain"
	domainerrors "github.com/sentilabel/sentilabel-server/internal/errors"
)

func TestDatasetService_Upload(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	admin := env.setupAdmin(t)

	res, err := env.datasets.Upload(ctx, admin, UploadRequest{
		Name:         "  App reviews ",
		LabelingType: domain.LabelingBinary,
		File:         strings.NewReader(scoredCSV + " \n"),
	})
	require.NoError(t, err)

	ds := res.Dataset
	assert.Equal(t, "App reviews", ds.Name)
	assert.Equal(t, 5, ds.TotalEntries)
	assert.True(t, ds.HasScores)
	assert.True(t, ds.IsActive)
	assert.Equal(t, "review", res.TextColumn)
	assert.Equal(t, "rating", res.ScoreColumn)
	assert.Len(t, ds.InviteCode, 8)

	p, err := env.datasets.MyProgress(ctx, admin, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Total)
	assert.Equal(t, domain.ProgressNotStarted, p.State())

	count, err := env.index.DatasetDocumentCount(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), count)
}

func TestDatasetService_UploadDefaultsToMultiClass(t *testing.T) {
	env := setupTest(t)
	admin := env.setupAdmin(t)

	res, err := env.datasets.Upload(context.Background(), admin, UploadRequest{
		Name: "Plain",
		File: strings.NewReader("text\nhello\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LabelingMultiClass, res.Dataset.LabelingType)
	assert.False(t, res.Dataset.HasScores)
}

func TestDatasetService_UploadValidation(t *testing.T) {
	env := setupTest(t)
	admin := env.setupAdmin(t)

	tests := []struct {
		name string
		req  UploadRequest
	}{
		{"missing name", UploadRequest{File: strings.NewReader("text\na\n")}},
		{"bad labeling type", UploadRequest{Name: "x", LabelingType: "ternary", File: strings.NewReader("text\na\n")}},
		{"missing file", UploadRequest{Name: "x"}},
		{"empty file", UploadRequest{Name: "x", File: strings.NewReader("")}},
		{"header only", UploadRequest{Name: "x", File: strings.NewReader("text\n")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.datasets.Upload(context.Background(), admin, tt.req)
			assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
		})
	}
}

func TestDatasetService_JoinAutoLabelsLowScores(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	admin := env.setupAdmin(t)
	labeler := env.register(t, "lab@example.com")
	ds := env.upload(t, admin, scoredCSV)

	res, err := env.datasets.Join(ctx, labeler, strings.ToLower(ds.InviteCode))
	require.NoError(t, err)
	assert.False(t, res.AlreadyMember)
	assert.Equal(t, 2, res.AutoLabeled)
	assert.Equal(t, domain.MemberLabeler, res.Dataset.Role)
	assert.False(t, res.Dataset.CanManage)
	assert.Empty(t, res.Dataset.InviteCode, "members do not see the invite code")
	require.NotNil(t, res.Dataset.Progress)
	assert.Equal(t, 2, res.Dataset.Progress.Completed)

	again, err := env.datasets.Join(ctx, labeler, ds.InviteCode)
	require.NoError(t, err)
	assert.True(t, again.AlreadyMember)
	assert.Zero(t, again.AutoLabeled)

	n, err := env.store.CountUserLabels(ctx, ds.ID, labeler.UserID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDatasetService_JoinWithoutAutoNegative(t *testing.T) {
	env := setupTest(t)
	env.datasets.cfg.AutoNegativeLowScores = false
	admin := env.setupAdmin(t)
	labeler := env.register(t, "lab@example.com")
	ds := env.upload(t, admin, scoredCSV)

	res, err := env.datasets.Join(context.Background(), labeler, ds.InviteCode)
	require.NoError(t, err)
	assert.Zero(t, res.AutoLabeled)
	assert.Zero(t, res.Dataset.Progress.Completed)
}

func TestDatasetService_JoinErrors(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	admin := env.setupAdmin(t)
	labeler := env.register(t, "lab@example.com")
	ds := env.upload(t, admin, scoredCSV)

	_, err := env.datasets.Join(ctx, labeler, "nope")
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	_, err = env.datasets.Join(ctx, labeler, "ZZZZZZZZ")
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))

	inactive := false
	_, err = env.datasets.Update(ctx, admin, ds.ID, UpdateRequest{IsActive: &inactive})
	require.NoError(t, err)

	_, err = env.datasets.Join(ctx, labeler, ds.InviteCode)
	assert.Equal(t, domainerrors.CodeDatasetInactive, domainerrors.CodeOf(err))
}

func TestDatasetService_Access(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	admin := env.setupAdmin(t)
	owner := env.register(t, "owner@example.com")
	stranger := env.register(t, "stranger@example.com")
	ds := env.upload(t, owner, scoredCSV)

	_, err := env.datasets.Get(ctx, stranger, ds.ID)
	assert.Equal(t, domainerrors.CodeForbidden, domainerrors.CodeOf(err))

	_, err = env.datasets.Get(ctx, stranger, "ds-missing")
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))

	d, err := env.datasets.Get(ctx, admin, ds.ID)
	require.NoError(t, err)
	assert.True(t, d.CanManage)
	assert.Equal(t, ds.InviteCode, d.InviteCode)

	list, err := env.datasets.List(ctx, stranger)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = env.datasets.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	name := "Renamed"
	_, err = env.datasets.Update(ctx, stranger, ds.ID, UpdateRequest{Name: &name})
	assert.Equal(t, domainerrors.CodeForbidden, domainerrors.CodeOf(err))

	_, err = env.datasets.MembersProgress(ctx, stranger, ds.ID)
	assert.Equal(t, domainerrors.CodeForbidden, domainerrors.CodeOf(err))

	assert.Equal(t, domainerrors.CodeForbidden, domainerrors.CodeOf(env.datasets.Delete(ctx, stranger, ds.ID)))
}

func TestDatasetService_Update(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	owner := env.setupAdmin(t)
	ds := env.upload(t, owner, scoredCSV)

	_, err := env.datasets.Update(ctx, owner, ds.ID, UpdateRequest{})
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	blank := "   "
	_, err = env.datasets.Update(ctx, owner, ds.ID, UpdateRequest{Name: &blank})
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	name, desc := "Renamed", "Play store, March"
	d, err := env.datasets.Update(ctx, owner, ds.ID, UpdateRequest{Name: &name, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", d.Name)
	assert.Equal(t, "Play store, March", d.Description)
	assert.True(t, d.IsActive)
}

func TestDatasetService_RegenerateInvite(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	owner := env.setupAdmin(t)
	labeler := env.register(t, "lab@example.com")
	ds := env.upload(t, owner, scoredCSV)

	code, err := env.datasets.RegenerateInvite(ctx, owner, ds.ID)
	require.NoError(t, err)
	assert.NotEqual(t, ds.InviteCode, code)

	_, err = env.datasets.Join(ctx, labeler, ds.InviteCode)
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))

	_, err = env.datasets.Join(ctx, labeler, code)
	assert.NoError(t, err)
}

func TestDatasetService_MembersProgress(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	owner := env.setupAdmin(t)
	labeler := env.register(t, "lab@example.com")
	ds := env.upload(t, owner, scoredCSV)

	_, err := env.datasets.Join(ctx, labeler, ds.InviteCode)
	require.NoError(t, err)

	members, err := env.datasets.MembersProgress(ctx, owner, ds.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	byUser := make(map[string]*domain.MemberProgress)
	for _, m := range members {
		byUser[m.UserID] = m
	}
	assert.Equal(t, domain.MemberOwner, byUser[owner.UserID].Role)
	assert.Equal(t, 2, byUser[labeler.UserID].Progress.Completed)
	assert.Equal(t, "lab@example.com", byUser[labeler.UserID].Email)
}

func TestDatasetService_DeleteCleansUp(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	owner := env.setupAdmin(t)
	ds := env.upload(t, owner, scoredCSV)

	_, err := env.labeling.Resume(ctx, owner, ds.ID)
	require.NoError(t, err)

	require.NoError(t, env.datasets.Delete(ctx, owner, ds.ID))

	_, err = env.datasets.Get(ctx, owner, ds.ID)
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))

	count, err := env.index.DatasetDocumentCount(ctx, ds.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, env.datasets.sessions.Len())
	assert.Zero(t, env.datasets.perms.Len())
}

func TestDatasetService_Search(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	owner := env.setupAdmin(t)
	stranger := env.register(t, "stranger@example.com")
	ds := env.upload(t, owner, scoredCSV)

	res, err := env.datasets.Search(ctx, owner, ds.ID, SearchRequest{Query: "crashes"})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "crashes a lot", res.Hits[0].Text)

	_, err = env.datasets.Search(ctx, owner, ds.ID, SearchRequest{Query: "  "})
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	_, err = env.datasets.Search(ctx, stranger, ds.ID, SearchRequest{Query: "crashes"})
	assert.Equal(t, domainerrors.CodeForbidden, domainerrors.CodeOf(err))
}

func TestDatasetService_ReindexIfEmpty(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	owner := env.setupAdmin(t)
	ds := env.upload(t, owner, scoredCSV)

	n, err := env.datasets.ReindexIfEmpty(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "index already populated")

	require.NoError(t, env.index.Rebuild())

	n, err = env.datasets.ReindexIfEmpty(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	count, err := env.index.DatasetDocumentCount(ctx, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), count)
}

func TestDatasetService_ImportFile(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	owner := env.setupAdmin(t)

	path := filepath.Join(t.TempDir(), "march-reviews.csv")
	require.NoError(t, os.WriteFile(path, []byte(scoredCSV), 0o644))

	datasetID, err := env.datasets.ImportFile(ctx, path, "ADMIN@example.com")
	require.NoError(t, err)

	d, err := env.datasets.Get(ctx, owner, datasetID)
	require.NoError(t, err)
	assert.Equal(t, "march-reviews", d.Name)
	assert.Equal(t, owner.UserID, d.OwnerID)

	_, err = env.datasets.ImportFile(ctx, path, "ghost@example.com")
	assert.Error(t, err)
}

