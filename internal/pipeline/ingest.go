package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arnavmalhotra/paperbrief/internal/job"
	"github.com/arnavmalhotra/paperbrief/internal/models"
	"github.com/arnavmalhotra/paperbrief/internal/queue"
	"github.com/arnavmalhotra/paperbrief/internal/source"
	"github.com/arnavmalhotra/paperbrief/internal/storage"
)

// Guard TTL covers queue-level duplicate deliveries. A crash redelivery past
// the TTL reruns the stage, which is safe over the section upserts.
const guardTTL = 5 * time.Minute

// Ingestor is the first pipeline stage: it resolves a job's source into raw
// bytes, extracts ordered sections and persists them, then hands off to the
// summarization stage without waiting for it.
type Ingestor struct {
	jobs     JobStore
	sections SectionStore
	resolver source.Resolver
	parser   Parser
	queue    Enqueuer
	guard    Guard
}

func NewIngestor(jobs JobStore, sections SectionStore, resolver source.Resolver, parser Parser, q Enqueuer, guard Guard) *Ingestor {
	if parser == nil {
		parser = SectionizeParser{}
	}
	return &Ingestor{
		jobs:     jobs,
		sections: sections,
		resolver: resolver,
		parser:   parser,
		queue:    q,
		guard:    guard,
	}
}

// Run executes the ingestion stage for one job. A stage failure is recorded
// on the job row and reported as nil to the queue: the job row is the failure
// record, and redelivering would not change the outcome.
func (in *Ingestor) Run(ctx context.Context, jobID uuid.UUID) error {
	if !in.acquire(ctx, jobID) {
		slog.Info("duplicate ingest delivery dropped", "job_id", jobID)
		return nil
	}

	j, err := in.jobs.GetByID(ctx, jobID)
	if errors.Is(err, job.ErrJobNotFound) {
		slog.Warn("ingest for missing job, skipping", "job_id", jobID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if models.Terminal(j.Status) {
		slog.Info("ingest for finished job, skipping", "job_id", jobID, "status", j.Status)
		return nil
	}

	slog.Info("starting ingest", "job_id", jobID, "source_type", j.SourceType)
	in.advance(ctx, jobID, 0, models.JobStatusProcessing)

	data, err := in.resolver.Resolve(ctx, j)
	if err != nil {
		return in.fail(ctx, jobID, stageErr(StageIngest, resolveKind(err), err))
	}
	in.advance(ctx, jobID, 30, models.JobStatusProcessing)

	units, err := in.parser.Parse(data, fileTypeFor(j))
	if err != nil {
		return in.fail(ctx, jobID, stageErr(StageIngest, KindFatal, err))
	}
	if len(units) == 0 {
		return in.fail(ctx, jobID, stageErr(StageIngest, KindFatal, errors.New("document yielded no non-empty sections")))
	}
	in.advance(ctx, jobID, 60, models.JobStatusProcessing)

	sections, err := in.sections.ReplaceForJob(ctx, jobID, units)
	if err != nil {
		return in.fail(ctx, jobID, stageErr(StageIngest, KindFatal, err))
	}
	in.advance(ctx, jobID, 90, models.JobStatusProcessing)

	// Fire-and-forget hand-off: the expensive, rate-limited stage proceeds
	// independently and reports through summary_state, not job status.
	if err := in.queue.EnqueueSummarize(queue.SummarizePayload{JobID: jobID.String()}, 0); err != nil {
		slog.Error("failed to enqueue summarization", "job_id", jobID, "error", err)
	}
	if err := in.queue.EnqueueEmbedding(queue.EmbeddingPayload{JobID: jobID.String()}); err != nil {
		slog.Error("failed to enqueue embedding", "job_id", jobID, "error", err)
	}

	in.advance(ctx, jobID, 100, models.JobStatusDone)
	slog.Info("ingest complete", "job_id", jobID, "sections", len(sections))
	return nil
}

func (in *Ingestor) acquire(ctx context.Context, jobID uuid.UUID) bool {
	if in.guard == nil {
		return true
	}
	ok, err := in.guard.SetNX(ctx, "pipeline:ingest:"+jobID.String(), 1, guardTTL)
	if err != nil {
		// The guard is best-effort; a cache outage must not stall ingestion.
		slog.Warn("ingest guard unavailable", "job_id", jobID, "error", err)
		return true
	}
	return ok
}

func (in *Ingestor) advance(ctx context.Context, jobID uuid.UUID, progress int, status string) {
	err := in.jobs.Advance(ctx, jobID, progress, status)
	if errors.Is(err, job.ErrJobNotFound) {
		slog.Warn("progress update for missing job", "job_id", jobID, "progress", progress)
		return
	}
	if err != nil {
		slog.Error("progress update failed", "job_id", jobID, "progress", progress, "error", err)
	}
}

func (in *Ingestor) fail(ctx context.Context, jobID uuid.UUID, serr *StageError) error {
	slog.Error("ingest failed", "job_id", jobID, "stage", serr.Stage, "kind", serr.Kind, "error", serr.Err)
	if err := in.jobs.Fail(ctx, jobID, serr); err != nil && !errors.Is(err, job.ErrJobNotFound) {
		slog.Error("failed to record job error", "job_id", jobID, "error", err)
	}
	return nil
}

func resolveKind(err error) Kind {
	if errors.Is(err, storage.ErrNotFound) {
		return KindNotFound
	}
	return KindFatal
}
