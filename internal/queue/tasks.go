package queue

const (
	TypeDocumentIngest    = "document:ingest"
	TypeDocumentSummarize = "document:summarize"
	TypeEmbeddingGenerate = "embedding:generate"
)

type IngestPayload struct {
	JobID string `json:"job_id"`
}

// SummarizePayload carries the resume position for a summarization run.
// Cursor is the index of the next section to process; Attempt counts
// analyzer calls already spent on that section by earlier deliveries.
type SummarizePayload struct {
	JobID   string `json:"job_id"`
	Cursor  int    `json:"cursor,omitempty"`
	Attempt int    `json:"attempt,omitempty"`
}

type EmbeddingPayload struct {
	JobID string `json:"job_id"`
}
