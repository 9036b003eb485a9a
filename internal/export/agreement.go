// Package export builds consensus reports over a dataset's labels.
package export

import "github.com/sentilabel/sentilabel-server/internal/domain"

// Agreement summarises inter-labeler agreement for a dataset.
type Agreement struct {
	TotalEntries      int     `json:"total_entries"`      // entries with at least one label
	MultiLabelled     int     `json:"multi_labelled"`     // entries with more than one labeler
	AgreementRate     float64 `json:"agreement_rate"`     // share of multi-labelled entries that are unanimous
	DisagreementCount int     `json:"disagreement_count"` // multi-labelled entries where labelers disagree
}

// ComputeAgreement calculates labeler agreement from a set of labels.
func ComputeAgreement(labels []*domain.Label) Agreement {
	if len(labels) == 0 {
		return Agreement{}
	}

	tallies := TallyLabels(labels)
	agreement := Agreement{TotalEntries: len(tallies)}

	for _, t := range tallies {
		if t.Labelers() <= 1 {
			continue
		}
		agreement.MultiLabelled++
		if !t.Unanimous() {
			agreement.DisagreementCount++
		}
	}

	if agreement.MultiLabelled > 0 {
		agreed := agreement.MultiLabelled - agreement.DisagreementCount
		agreement.AgreementRate = float64(agreed) / float64(agreement.MultiLabelled)
	}

	return agreement
}
