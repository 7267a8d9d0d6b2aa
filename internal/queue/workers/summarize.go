package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/arnavmalhotra/paperbrief/internal/pipeline"
	"github.com/arnavmalhotra/paperbrief/internal/queue"
)

// SummarizeWorker adapts the summarization stage to an asynq handler.
type SummarizeWorker struct {
	summarizer *pipeline.Summarizer
}

func NewSummarizeWorker(summarizer *pipeline.Summarizer) *SummarizeWorker {
	return &SummarizeWorker{summarizer: summarizer}
}

func (w *SummarizeWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.SummarizePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return fmt.Errorf("parse job ID: %w", err)
	}

	_, err = w.summarizer.Run(ctx, jobID, payload.Cursor, payload.Attempt)
	return err
}
