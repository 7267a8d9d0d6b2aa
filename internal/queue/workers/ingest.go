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

// IngestWorker adapts the ingestion stage to an asynq handler.
type IngestWorker struct {
	ingestor *pipeline.Ingestor
}

func NewIngestWorker(ingestor *pipeline.Ingestor) *IngestWorker {
	return &IngestWorker{ingestor: ingestor}
}

func (w *IngestWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return fmt.Errorf("parse job ID: %w", err)
	}

	return w.ingestor.Run(ctx, jobID)
}
