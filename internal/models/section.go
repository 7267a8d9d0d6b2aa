package models

import (
	"time"

	"github.com/google/uuid"
)

// Section is one structurally-extracted unit of a job's source document.
// Order is 1-based and unique within a job.
type Section struct {
	ID           uuid.UUID `json:"id" db:"id"`
	JobID        uuid.UUID `json:"job_id" db:"job_id"`
	Title        string    `json:"title" db:"title"`
	Order        int       `json:"order" db:"ord"`
	Content      string    `json:"content" db:"content"`
	Embedding    []float32 `json:"-" db:"embedding"`
	SummaryError *string   `json:"summary_error,omitempty" db:"summary_error"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
