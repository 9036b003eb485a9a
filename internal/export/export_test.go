package export

import (
	"encoding/csv"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentilabel/sentilabel-server/internal/domain"
)

func label(entryID, userID string, v domain.LabelValue) *domain.Label {
	return &domain.Label{EntryID: entryID, UserID: userID, Value: v}
}

func seqOf(entries ...*domain.Entry) iter.Seq2[*domain.Entry, error] {
	return func(yield func(*domain.Entry, error) bool) {
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func TestComputeAgreement(t *testing.T) {
	labels := []*domain.Label{
		// unanimous
		label("e1", "u1", domain.LabelPositive),
		label("e1", "u2", domain.LabelPositive),
		// split
		label("e2", "u1", domain.LabelPositive),
		label("e2", "u2", domain.LabelNegative),
		// single labeler
		label("e3", "u1", domain.LabelNeutral),
		// unanimous
		label("e4", "u1", domain.LabelNegative),
		label("e4", "u2", domain.LabelNegative),
		label("e4", "u3", domain.LabelNegative),
	}

	got := ComputeAgreement(labels)
	assert.Equal(t, 4, got.TotalEntries)
	assert.Equal(t, 3, got.MultiLabelled)
	assert.Equal(t, 1, got.DisagreementCount)
	assert.InDelta(t, 2.0/3.0, got.AgreementRate, 1e-9)

	assert.Equal(t, Agreement{}, ComputeAgreement(nil))
}

func TestTally_Consensus(t *testing.T) {
	tests := []struct {
		name  string
		tally Tally
		want  domain.LabelValue
		share float64
	}{
		{"empty", Tally{}, "", 0},
		{"plurality", Tally{Positive: 2, Negative: 1}, domain.LabelPositive, 2.0 / 3.0},
		{"tie", Tally{Positive: 1, Negative: 1}, "", 0},
		{"tie below winner", Tally{Positive: 1, Neutral: 1, Negative: 3}, domain.LabelNegative, 0.6},
		{"single", Tally{Neutral: 1}, domain.LabelNeutral, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := tt.tally.Consensus()
			assert.Equal(t, tt.want, got)
			assert.InDelta(t, tt.share, tt.tally.AgreementShare(), 1e-9)
		})
	}
}

func TestWriteCSV(t *testing.T) {
	four := 4
	entries := seqOf(
		&domain.Entry{ID: "e1", Text: "loved it, really", Score: &four},
		&domain.Entry{ID: "e2", Text: "meh"},
	)
	labels := []*domain.Label{
		label("e1", "u1", domain.LabelPositive),
		label("e1", "u2", domain.LabelPositive),
		label("e1", "u3", domain.LabelNeutral),
	}

	var b strings.Builder
	n, err := WriteCSV(&b, entries, labels)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := csv.NewReader(strings.NewReader(b.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, Header, records[0])
	assert.Equal(t, []string{"e1", "loved it, really", "4", "2", "1", "0", "3", "positive", "0.667"}, records[1])
	assert.Equal(t, []string{"e2", "meh", "", "0", "0", "0", "0", "", ""}, records[2])
}

func TestWriteCSV_EntryError(t *testing.T) {
	boom := errors.New("boom")
	entries := func(yield func(*domain.Entry, error) bool) {
		if !yield(&domain.Entry{ID: "e1", Text: "ok"}, nil) {
			return
		}
		yield(nil, boom)
	}

	var b strings.Builder
	n, err := WriteCSV(&b, entries, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)
}
