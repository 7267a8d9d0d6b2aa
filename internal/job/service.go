package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arnavmalhotra/paperbrief/internal/models"
)

// ErrJobNotFound is returned when a job row does not exist. Progress updates
// treat it as a logged no-op rather than a pipeline failure.
var ErrJobNotFound = errors.New("job not found")

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

type CreateRequest struct {
	OwnerUserID string
	SourceType  string
	SourceURL   string
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Job, error) {
	if req.SourceType != models.SourceTypeFile && req.SourceType != models.SourceTypeLink {
		return nil, fmt.Errorf("invalid source type: %s", req.SourceType)
	}

	var job models.Job
	err := s.db.QueryRow(ctx,
		`INSERT INTO jobs (id, owner_user_id, source_type, source_url, status, progress, summary_state)
		 VALUES ($1, $2, $3, $4, $5, 0, $6)
		 RETURNING id, owner_user_id, source_type, source_url, status, progress, summary_state,
		           summary, flashcards, quiz, error_message, created_at, updated_at`,
		uuid.New(), req.OwnerUserID, req.SourceType, req.SourceURL, models.JobStatusQueued, models.SummaryStatePending,
	).Scan(&job.ID, &job.OwnerUserID, &job.SourceType, &job.SourceURL, &job.Status, &job.Progress,
		&job.SummaryState, &job.Summary, &job.Flashcards, &job.Quiz, &job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return &job, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	err := s.db.QueryRow(ctx,
		`SELECT id, owner_user_id, source_type, source_url, status, progress, summary_state,
		        summary, flashcards, quiz, error_message, created_at, updated_at
		 FROM jobs WHERE id = $1`,
		id,
	).Scan(&job.ID, &job.OwnerUserID, &job.SourceType, &job.SourceURL, &job.Status, &job.Progress,
		&job.SummaryState, &job.Summary, &job.Flashcards, &job.Quiz, &job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]models.Job, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, owner_user_id, source_type, source_url, status, progress, summary_state,
		        summary, flashcards, quiz, error_message, created_at, updated_at
		 FROM jobs ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(&j.ID, &j.OwnerUserID, &j.SourceType, &j.SourceURL, &j.Status, &j.Progress,
			&j.SummaryState, &j.Summary, &j.Flashcards, &j.Quiz, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// Advance atomically updates progress and status, bumping updated_at. The
// guarded WHERE clause only matches rows whose current status may legally
// move to the target, so terminal jobs, deleted jobs and backward moves
// (processing back to queued) all yield ErrJobNotFound.
func (s *Service) Advance(ctx context.Context, id uuid.UUID, progress int, status string) error {
	if progress < 0 || progress > 100 {
		return fmt.Errorf("progress out of range: %d", progress)
	}
	from := models.TransitionSources(status)
	if len(from) == 0 {
		return fmt.Errorf("invalid status: %s", status)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE jobs SET progress = $2, status = $3, updated_at = $4
		 WHERE id = $1 AND status = ANY($5)`,
		id, progress, status, time.Now().UTC(), from,
	)
	if err != nil {
		return fmt.Errorf("advance job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Fail terminates the job with status=error and records the cause.
func (s *Service) Fail(ctx context.Context, id uuid.UUID, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE jobs SET status = $2, error_message = $3, updated_at = $4
		 WHERE id = $1 AND status NOT IN ('done', 'error')`,
		id, models.JobStatusError, msg, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// SetSummaryState records the outcome of the summarization phase. It is
// independent of the job status, which only tracks structural extraction.
func (s *Service) SetSummaryState(ctx context.Context, id uuid.UUID, state string) error {
	switch state {
	case models.SummaryStatePending, models.SummaryStatePartial, models.SummaryStateComplete:
	default:
		return fmt.Errorf("invalid summary state: %s", state)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE jobs SET summary_state = $2, updated_at = $3 WHERE id = $1`,
		id, state, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set summary state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	// Sections and summaries go with the job via ON DELETE CASCADE.
	tag, err := s.db.Exec(ctx, "DELETE FROM jobs WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}
