package models

import (
	"time"

	"github.com/google/uuid"
)

type Job struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	OwnerUserID  string     `json:"owner_user_id" db:"owner_user_id"`
	SourceType   string     `json:"source_type" db:"source_type"`
	SourceURL    string     `json:"source_url,omitempty" db:"source_url"`
	Status       string     `json:"status" db:"status"`
	Progress     int        `json:"progress" db:"progress"`
	SummaryState string     `json:"summary_state" db:"summary_state"`
	Summary      *string    `json:"summary,omitempty" db:"summary"`
	Flashcards   *string    `json:"flashcards,omitempty" db:"flashcards"`
	Quiz         *string    `json:"quiz,omitempty" db:"quiz"`
	ErrorMessage *string    `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

const (
	SourceTypeFile = "file"
	SourceTypeLink = "link"
)

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusDone       = "done"
	JobStatusError      = "error"
)

// Summarization runs as a second phase after the job itself is done,
// so its outcome is tracked separately from Status.
const (
	SummaryStatePending  = "pending"
	SummaryStatePartial  = "partial"
	SummaryStateComplete = "complete"
)

// Terminal reports whether a job status admits no further transitions.
func Terminal(status string) bool {
	return status == JobStatusDone || status == JobStatusError
}

// ValidTransition reports whether a job may move from one status to another.
// The only legal path is queued -> processing -> {done, error}.
func ValidTransition(from, to string) bool {
	if from == to {
		return true
	}
	switch from {
	case JobStatusQueued:
		return to == JobStatusProcessing || to == JobStatusError
	case JobStatusProcessing:
		return to == JobStatusDone || to == JobStatusError
	default:
		return false
	}
}

var jobStatuses = []string{JobStatusQueued, JobStatusProcessing, JobStatusDone, JobStatusError}

// TransitionSources lists the statuses a job may hold immediately before
// moving to the given status. Terminal statuses are never valid sources, so
// a finished job cannot be advanced again.
func TransitionSources(to string) []string {
	var from []string
	for _, s := range jobStatuses {
		if !Terminal(s) && ValidTransition(s, to) {
			from = append(from, s)
		}
	}
	return from
}
