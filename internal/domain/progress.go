package domain

import "time"

// ProgressState is the lifecycle of a Progress row.
type ProgressState string

const (
	ProgressNotStarted ProgressState = "not_started"
	ProgressInProgress ProgressState = "in_progress"
	ProgressCompleted  ProgressState = "completed"
)

// Progress is one user's completion state for one dataset.
//
// Completed never exceeds Total. CompletedAt is written the first time
// Completed reaches Total and is never cleared afterwards, even if a later
// recount lowers Completed.
type Progress struct {
	DatasetID   string     `json:"dataset_id"`
	UserID      string     `json:"user_id"`
	Completed   int        `json:"completed"`
	Total       int        `json:"total"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	LastUpdated time.Time  `json:"last_updated"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	LastPage    int        `json:"last_page"`
}

// State derives the lifecycle state from the counters.
func (p *Progress) State() ProgressState {
	switch {
	case p.Total > 0 && p.Completed >= p.Total:
		return ProgressCompleted
	case p.Completed > 0 || p.StartedAt != nil:
		return ProgressInProgress
	default:
		return ProgressNotStarted
	}
}

// Percent returns completion in the range 0..100.
func (p *Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed) * 100 / float64(p.Total)
}

// Remaining returns how many entries are still unlabeled.
func (p *Progress) Remaining() int {
	return max(p.Total-p.Completed, 0)
}
