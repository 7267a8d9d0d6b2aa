package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/arnavmalhotra/paperbrief/internal/embedding"
	"github.com/arnavmalhotra/paperbrief/internal/queue"
)

type EmbeddingWorker struct {
	svc *embedding.Service
}

func NewEmbeddingWorker(svc *embedding.Service) *EmbeddingWorker {
	return &EmbeddingWorker{svc: svc}
}

func (w *EmbeddingWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.EmbeddingPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return fmt.Errorf("parse job ID: %w", err)
	}

	slog.Info("generating section embeddings", "job_id", jobID)
	return w.svc.EmbedJob(ctx, jobID)
}
