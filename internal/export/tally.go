package export

import "github.com/sentilabel/sentilabel-server/internal/domain"

// Tally counts the labels on one entry. Labels are unique per (entry, user),
// so every count is also a count of labelers.
type Tally struct {
	Positive int
	Neutral  int
	Negative int
}

// TallyLabels groups labels by entry id.
func TallyLabels(labels []*domain.Label) map[string]*Tally {
	tallies := make(map[string]*Tally)
	for _, l := range labels {
		t, ok := tallies[l.EntryID]
		if !ok {
			t = &Tally{}
			tallies[l.EntryID] = t
		}
		t.Add(l.Value)
	}
	return tallies
}

// Add counts one label.
func (t *Tally) Add(v domain.LabelValue) {
	switch v {
	case domain.LabelPositive:
		t.Positive++
	case domain.LabelNeutral:
		t.Neutral++
	case domain.LabelNegative:
		t.Negative++
	}
}

// Labelers returns the number of labels counted.
func (t *Tally) Labelers() int {
	return t.Positive + t.Neutral + t.Negative
}

// Unanimous reports whether every label has the same value.
func (t *Tally) Unanimous() bool {
	_, top := t.Consensus()
	return top > 0 && top == t.Labelers()
}

// Consensus returns the plurality label and its count. A tie for the top
// count, or no labels at all, returns an empty value.
func (t *Tally) Consensus() (domain.LabelValue, int) {
	best, top, tied := domain.LabelValue(""), 0, false
	for _, c := range []struct {
		value domain.LabelValue
		n     int
	}{
		{domain.LabelPositive, t.Positive},
		{domain.LabelNeutral, t.Neutral},
		{domain.LabelNegative, t.Negative},
	} {
		switch {
		case c.n > top:
			best, top, tied = c.value, c.n, false
		case c.n == top && c.n > 0:
			tied = true
		}
	}
	if tied {
		return "", top
	}
	return best, top
}

// AgreementShare is the fraction of labels that match the consensus, or 0
// when there is none.
func (t *Tally) AgreementShare() float64 {
	value, top := t.Consensus()
	if value == "" || t.Labelers() == 0 {
		return 0
	}
	return float64(top) / float64(t.Labelers())
}
