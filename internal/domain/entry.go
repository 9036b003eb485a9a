package domain

// MinScore and MaxScore bound the optional review score of an entry.
const (
	MinScore = 1
	MaxScore = 5
)

// Entry is one unit of text to be labeled. Entries are immutable once imported.
type Entry struct {
	ID        string `json:"id"`
	DatasetID string `json:"dataset_id"`
	// Position is the zero-based row of the entry in the uploaded file.
	Position int    `json:"position"`
	Text     string `json:"text"`
	Score    *int   `json:"score,omitempty"`
}

// HasLowScore reports whether the entry carries a score of 1 or 2.
func (e *Entry) HasLowScore() bool {
	return e.Score != nil && *e.Score <= 2
}

// ValidScore reports whether s is within MinScore..MaxScore.
func ValidScore(s int) bool {
	return s >= MinScore && s <= MaxScore
}
