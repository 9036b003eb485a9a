package domain

import (
	"fmt"
	"strings"
	"time"
)

// LabelValue is a sentiment judgment.
type LabelValue string

// Label values.
const (
	LabelPositive LabelValue = "positive"
	LabelNeutral  LabelValue = "neutral"
	LabelNegative LabelValue = "negative"
)

// ParseLabelValue normalizes case and whitespace and rejects unknown values.
func ParseLabelValue(s string) (LabelValue, error) {
	v := LabelValue(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case LabelPositive, LabelNeutral, LabelNegative:
		return v, nil
	default:
		return "", fmt.Errorf("unknown label %q", s)
	}
}

// LabelSource records who created a label row.
type LabelSource string

const (
	// LabelSourceUser marks labels chosen by the labeler.
	LabelSourceUser LabelSource = "user"
	// LabelSourceAuto marks labels pre-populated by the low-score policy on join.
	LabelSourceAuto LabelSource = "auto"
)

// Label is a user's judgment on one entry. There is at most one per (entry, user).
type Label struct {
	ID        string      `json:"id"`
	DatasetID string      `json:"dataset_id"`
	EntryID   string      `json:"entry_id"`
	UserID    string      `json:"user_id"`
	Value     LabelValue  `json:"value"`
	Source    LabelSource `json:"source"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// UpsertOutcome reports what a label upsert did.
type UpsertOutcome int

const (
	// UpsertInserted means a new row was created.
	UpsertInserted UpsertOutcome = iota
	// UpsertUpdated means an existing row was rewritten.
	UpsertUpdated
)
