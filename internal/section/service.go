package section

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/arnavmalhotra/paperbrief/internal/models"
	"github.com/arnavmalhotra/paperbrief/pkg/sectionize"
)

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// ReplaceForJob persists all units of a job in one transaction. Re-delivery
// of the same job upserts on (job_id, ord) instead of appending duplicates.
func (s *Service) ReplaceForJob(ctx context.Context, jobID uuid.UUID, units []sectionize.Unit) ([]models.Section, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	sections := make([]models.Section, 0, len(units))
	for _, u := range units {
		var sec models.Section
		err := tx.QueryRow(ctx,
			`INSERT INTO sections (id, job_id, title, ord, content)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (job_id, ord) DO UPDATE SET title = $3, content = $5, updated_at = now()
			 RETURNING id, job_id, title, ord, content, summary_error, created_at, updated_at`,
			uuid.New(), jobID, u.Title, u.Order, u.Content,
		).Scan(&sec.ID, &sec.JobID, &sec.Title, &sec.Order, &sec.Content, &sec.SummaryError, &sec.CreatedAt, &sec.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("upsert section %d: %w", u.Order, err)
		}
		sections = append(sections, sec)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit sections: %w", err)
	}
	return sections, nil
}

// ListByJob returns a job's sections ordered by ord ascending.
func (s *Service) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Section, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, job_id, title, ord, content, summary_error, created_at, updated_at
		 FROM sections WHERE job_id = $1 ORDER BY ord ASC`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	var sections []models.Section
	for rows.Next() {
		var sec models.Section
		if err := rows.Scan(&sec.ID, &sec.JobID, &sec.Title, &sec.Order, &sec.Content,
			&sec.SummaryError, &sec.CreatedAt, &sec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		sections = append(sections, sec)
	}
	return sections, nil
}

// MarkSummaryFailed records why summarization gave up on a section.
func (s *Service) MarkSummaryFailed(ctx context.Context, sectionID uuid.UUID, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := s.db.Exec(ctx,
		`UPDATE sections SET summary_error = $2, updated_at = $3 WHERE id = $1`,
		sectionID, msg, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("mark summary failed: %w", err)
	}
	return nil
}

// SetEmbedding stores the section's content embedding.
func (s *Service) SetEmbedding(ctx context.Context, sectionID uuid.UUID, embedding []float32) error {
	_, err := s.db.Exec(ctx,
		`UPDATE sections SET embedding = $2, updated_at = $3 WHERE id = $1`,
		sectionID, pgvector.NewVector(embedding), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set embedding: %w", err)
	}
	return nil
}

// CreateSummary inserts the analysis result for a section. A section takes at
// most one summary; a duplicate delivery is dropped by the conflict clause.
func (s *Service) CreateSummary(ctx context.Context, sum models.Summary) error {
	claims, err := json.Marshal(sum.KeyClaims)
	if err != nil {
		return fmt.Errorf("marshal key claims: %w", err)
	}

	id := sum.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO summaries (id, section_id, summary_text, key_claims, prompt_tokens, completion_tokens, model_used)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (section_id) DO NOTHING`,
		id, sum.SectionID, sum.SummaryText, claims, sum.PromptTokens, sum.CompletionTokens, sum.ModelUsed,
	)
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

// ListSummariesByJob returns summaries for a job keyed by section ID.
func (s *Service) ListSummariesByJob(ctx context.Context, jobID uuid.UUID) (map[uuid.UUID]models.Summary, error) {
	rows, err := s.db.Query(ctx,
		`SELECT su.id, su.section_id, su.summary_text, su.key_claims, su.prompt_tokens, su.completion_tokens, su.model_used, su.created_at
		 FROM summaries su
		 JOIN sections se ON se.id = su.section_id
		 WHERE se.job_id = $1`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	summaries := make(map[uuid.UUID]models.Summary)
	for rows.Next() {
		var sum models.Summary
		var claims []byte
		if err := rows.Scan(&sum.ID, &sum.SectionID, &sum.SummaryText, &claims,
			&sum.PromptTokens, &sum.CompletionTokens, &sum.ModelUsed, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if err := json.Unmarshal(claims, &sum.KeyClaims); err != nil {
			return nil, fmt.Errorf("decode key claims: %w", err)
		}
		summaries[sum.SectionID] = sum
	}
	return summaries, nil
}

// CountByJob returns the number of sections and how many have summaries.
func (s *Service) CountByJob(ctx context.Context, jobID uuid.UUID) (sections, summarized int, err error) {
	err = s.db.QueryRow(ctx,
		`SELECT count(se.id), count(su.id)
		 FROM sections se
		 LEFT JOIN summaries su ON su.section_id = se.id
		 WHERE se.job_id = $1`,
		jobID,
	).Scan(&sections, &summarized)
	if err != nil {
		return 0, 0, fmt.Errorf("count sections: %w", err)
	}
	return sections, summarized, nil
}
