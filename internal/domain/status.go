package domain

import "time"

// GenerationState represents the lifecycle of a category's generation run.
// Transitions are monotonic within a run: not_started -> in_progress -> completed.
type GenerationState string

const (
	GenerationNotStarted GenerationState = "not_started"
	GenerationInProgress GenerationState = "in_progress"
	GenerationCompleted  GenerationState = "completed"
)

// rank orders states for monotonicity checks.
func (s GenerationState) rank() int {
	switch s {
	case GenerationNotStarted:
		return 0
	case GenerationInProgress:
		return 1
	case GenerationCompleted:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from s to next preserves the
// monotonic ordering of a single run.
func (s GenerationState) CanTransitionTo(next GenerationState) bool {
	return next.rank() > s.rank()
}

// IsTerminal returns true if the state represents a finished run.
func (s GenerationState) IsTerminal() bool {
	return s == GenerationCompleted
}

// GenerationStatus is the per-category, per-process generation progress
// snapshot. It does not survive a restart but is consistent within a run and
// readable by clients at any time, including mid-run.
type GenerationStatus struct {
	CategoryCode    string          `json:"category_code"`
	CategoryName    string          `json:"category_name"`
	State           GenerationState `json:"status"`
	PapersGenerated int             `json:"papers_generated"`
	PapersFailed    int             `json:"papers_failed"`
	TotalPapers     int             `json:"total_papers"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	LastUpdated     time.Time       `json:"last_updated"`
}
