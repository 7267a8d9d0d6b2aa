package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arnavmalhotra/paperbrief/internal/job"
	"github.com/arnavmalhotra/paperbrief/internal/llm"
	"github.com/arnavmalhotra/paperbrief/internal/models"
	"github.com/arnavmalhotra/paperbrief/internal/queue"
	"github.com/arnavmalhotra/paperbrief/pkg/tokenizer"
)

const (
	// maxAttempts bounds analyzer calls per section; only rate limits retry.
	maxAttempts = 3
	// backoffBase yields delays of 5s, 10s, 15s after rate-limited calls. The
	// third delay elapses before the section is given up, so a provider that
	// recovers late still gets the full wait before escalation.
	backoffBase = 5 * time.Second
)

// SectionFailure records one section the stage gave up on.
type SectionFailure struct {
	SectionID uuid.UUID
	Order     int
	Kind      Kind
	Err       error
}

// Result is the aggregation outcome of one summarization run. A run that
// yields to a scheduled retry reports only the sections it reached.
type Result struct {
	Succeeded []uuid.UUID
	Failed    []SectionFailure
	// Rescheduled is set when the run re-enqueued itself after a rate limit.
	Rescheduled bool
}

// Summarizer is the second pipeline stage. It walks a job's sections in
// order, invoking the analyzer per section and persisting summaries. A
// section failure never aborts the batch, and a rate-limited call re-enqueues
// the stage with a delay instead of sleeping in the worker slot.
type Summarizer struct {
	jobs     JobStore
	sections SectionStore
	analyzer llm.Analyzer
	queue    Enqueuer
	guard    Guard
}

func NewSummarizer(jobs JobStore, sections SectionStore, analyzer llm.Analyzer, q Enqueuer, guard Guard) *Summarizer {
	return &Summarizer{
		jobs:     jobs,
		sections: sections,
		analyzer: analyzer,
		queue:    q,
		guard:    guard,
	}
}

// Run processes a job's sections sequentially starting at cursor. attempt is
// the number of analyzer calls already spent on the cursor section by
// previous deliveries. The returned error is reserved for infrastructure
// failures (store unreachable); analysis failures land in the Result.
func (s *Summarizer) Run(ctx context.Context, jobID uuid.UUID, cursor, attempt int) (*Result, error) {
	if cursor == 0 && attempt == 0 && !s.acquire(ctx, jobID) {
		slog.Info("duplicate summarize delivery dropped", "job_id", jobID)
		return &Result{}, nil
	}

	sections, err := s.sections.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}
	done, err := s.sections.ListSummariesByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load summaries: %w", err)
	}

	res := &Result{}
	for i := cursor; i < len(sections); i++ {
		sec := sections[i]

		// Sections summarized by an earlier delivery are skipped so a
		// redelivery past the guard TTL never repeats analyzer spend.
		if _, ok := done[sec.ID]; ok {
			attempt = 0
			continue
		}

		// A redelivery arriving with the attempt budget spent fails the
		// cursor section without another analyzer call: the final backoff
		// already elapsed in the queue.
		if attempt >= maxAttempts {
			s.recordFailure(ctx, res, sec, KindTransient,
				fmt.Errorf("rate limited after %d attempts: %w", maxAttempts, llm.ErrRateLimited))
			attempt = 0
			continue
		}

		analysis, err := s.analyzer.Analyze(ctx, sec.Content)
		if err != nil {
			if llm.IsRateLimited(err) {
				if s.reschedule(jobID, i, attempt+1) {
					res.Rescheduled = true
					return res, nil
				}
				// Could not reschedule; give the section up now.
				s.recordFailure(ctx, res, sec, KindTransient, err)
			} else {
				s.recordFailure(ctx, res, sec, KindFatal, err)
			}
			attempt = 0
			continue
		}

		if err := s.persist(ctx, sec, analysis); err != nil {
			s.recordFailure(ctx, res, sec, KindFatal, err)
			attempt = 0
			continue
		}

		res.Succeeded = append(res.Succeeded, sec.ID)
		attempt = 0
	}

	s.finalize(ctx, jobID, res)
	return res, nil
}

func (s *Summarizer) persist(ctx context.Context, sec models.Section, analysis *llm.Analysis) error {
	promptTokens := analysis.PromptTokens
	if promptTokens == 0 {
		promptTokens = tokenizer.CountTokens(sec.Content)
	}

	return s.sections.CreateSummary(ctx, models.Summary{
		SectionID:        sec.ID,
		SummaryText:      analysis.Summary,
		KeyClaims:        analysis.Claims,
		PromptTokens:     promptTokens,
		CompletionTokens: analysis.CompletionTokens,
		ModelUsed:        analysis.Model,
	})
}

// reschedule re-enqueues the stage at the current section with a linear
// backoff delay, freeing the worker slot for the wait. The reschedule after
// the last allowed attempt carries the spent budget, so the redelivery fails
// the section instead of calling the analyzer again.
func (s *Summarizer) reschedule(jobID uuid.UUID, cursor, attemptsMade int) bool {
	delay := backoffBase * time.Duration(attemptsMade)
	err := s.queue.EnqueueSummarize(queue.SummarizePayload{
		JobID:   jobID.String(),
		Cursor:  cursor,
		Attempt: attemptsMade,
	}, delay)
	if err != nil {
		slog.Error("failed to reschedule summarization", "job_id", jobID, "cursor", cursor, "error", err)
		return false
	}
	slog.Info("rate limited, rescheduled", "job_id", jobID, "cursor", cursor, "attempt", attemptsMade, "delay", delay)
	return true
}

func (s *Summarizer) recordFailure(ctx context.Context, res *Result, sec models.Section, kind Kind, cause error) {
	serr := stageErr(StageSummarize, kind, cause)
	slog.Error("section summarization failed", "section_id", sec.ID, "order", sec.Order, "kind", kind, "error", cause)
	if err := s.sections.MarkSummaryFailed(ctx, sec.ID, serr); err != nil {
		slog.Error("failed to record section failure", "section_id", sec.ID, "error", err)
	}
	res.Failed = append(res.Failed, SectionFailure{
		SectionID: sec.ID,
		Order:     sec.Order,
		Kind:      kind,
		Err:       cause,
	})
}

// finalize stamps the job's summary_state once the last section is reached.
// The job status itself is untouched: "done" means sections extracted.
func (s *Summarizer) finalize(ctx context.Context, jobID uuid.UUID, res *Result) {
	total, summarized, err := s.sections.CountByJob(ctx, jobID)
	if err != nil {
		slog.Error("failed to count summaries", "job_id", jobID, "error", err)
		return
	}

	state := models.SummaryStateComplete
	if summarized < total {
		state = models.SummaryStatePartial
	}

	if err := s.jobs.SetSummaryState(ctx, jobID, state); err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			slog.Warn("summary state update for missing job", "job_id", jobID)
		} else {
			slog.Error("failed to set summary state", "job_id", jobID, "error", err)
		}
		return
	}

	slog.Info("summarization finished",
		"job_id", jobID,
		"sections", total,
		"summarized", summarized,
		"succeeded", len(res.Succeeded),
		"failed", len(res.Failed),
		"state", state,
	)
}

func (s *Summarizer) acquire(ctx context.Context, jobID uuid.UUID) bool {
	if s.guard == nil {
		return true
	}
	ok, err := s.guard.SetNX(ctx, "pipeline:summarize:"+jobID.String(), 1, guardTTL)
	if err != nil {
		slog.Warn("summarize guard unavailable", "job_id", jobID, "error", err)
		return true
	}
	return ok
}
