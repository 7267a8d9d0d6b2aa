package models

import (
	"time"

	"github.com/google/uuid"
)

// Summary holds the per-section analysis result. Rows are written once by
// the summarization stage and never updated or deleted by the pipeline.
type Summary struct {
	ID               uuid.UUID `json:"id" db:"id"`
	SectionID        uuid.UUID `json:"section_id" db:"section_id"`
	SummaryText      string    `json:"summary_text" db:"summary_text"`
	KeyClaims        []string  `json:"key_claims" db:"key_claims"`
	PromptTokens     int       `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens" db:"completion_tokens"`
	ModelUsed        string    `json:"model_used" db:"model_used"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}
