package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"strconv"

	"github.com/sentilabel/sentilabel-server/internal/domain"
)

// Header is the column layout of the consensus export.
var Header = []string{
	"entry_id", "text", "score",
	"positive", "neutral", "negative",
	"total_labels", "consensus", "agreement",
}

// WriteCSV streams one row per entry with its label counts and consensus.
// Entries without labels are written with zero counts and blank consensus.
// It returns the number of entries written.
func WriteCSV(w io.Writer, entries iter.Seq2[*domain.Entry, error], labels []*domain.Label) (int, error) {
	tallies := TallyLabels(labels)

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return 0, err
	}

	written := 0
	for e, err := range entries {
		if err != nil {
			return written, fmt.Errorf("read entries: %w", err)
		}
		if err := cw.Write(row(e, tallies[e.ID])); err != nil {
			return written, err
		}
		written++
	}

	cw.Flush()
	return written, cw.Error()
}

func row(e *domain.Entry, t *Tally) []string {
	if t == nil {
		t = &Tally{}
	}

	score := ""
	if e.Score != nil {
		score = strconv.Itoa(*e.Score)
	}

	consensus, _ := t.Consensus()
	agreement := ""
	if consensus != "" {
		agreement = fmt.Sprintf("%.3f", t.AgreementShare())
	}

	return []string{
		e.ID,
		e.Text,
		score,
		strconv.Itoa(t.Positive),
		strconv.Itoa(t.Neutral),
		strconv.Itoa(t.Negative),
		strconv.Itoa(t.Labelers()),
		string(consensus),
		agreement,
	}
}
