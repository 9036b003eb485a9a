package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/sentilabel/sentilabel-server/internal/errors"
	"github.com/sentilabel/sentilabel-server/internal/export"
)

func TestExportService(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	owner := env.setupAdmin(t)
	labeler := env.register(t, "lab@example.com")
	ds := env.upload(t, owner, scoredCSV)

	_, err := env.datasets.Join(ctx, labeler, ds.InviteCode)
	require.NoError(t, err)

	// The owner agrees with the labeler's auto labels on the two low scores.
	view, err := env.labeling.Page(ctx, owner, ds.ID, 0, ParseFilter("1,2"))
	require.NoError(t, err)
	labels := map[string]string{}
	for _, e := range view.Entries {
		labels[e.ID] = "negative"
	}
	_, err = env.labeling.Submit(ctx, owner, ds.ID, SubmitRequest{Filter: view.Filter, Labels: labels})
	require.NoError(t, err)

	_, _, err = env.export.Prepare(ctx, labeler, ds.ID)
	assert.Equal(t, domainerrors.CodeForbidden, domainerrors.CodeOf(err))

	prepared, all, err := env.export.Prepare(ctx, owner, ds.ID)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	var buf bytes.Buffer
	require.NoError(t, env.export.WriteCSV(ctx, &buf, prepared, all))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.Equal(t, export.Header, records[0])

	consensus := map[string]string{}
	for _, r := range records[1:] {
		consensus[r[1]] = r[7]
	}
	assert.Equal(t, "negative", consensus["terrible app"])
	assert.Equal(t, "", consensus["great update"])

	agreement, err := env.export.Agreement(ctx, owner, ds.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, agreement.TotalEntries)
	assert.Equal(t, 2, agreement.MultiLabelled)
	assert.InDelta(t, 1.0, agreement.AgreementRate, 1e-9)
	assert.Zero(t, agreement.DisagreementCount)
}
