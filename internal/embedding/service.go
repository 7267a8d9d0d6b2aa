package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/arnavmalhotra/paperbrief/internal/models"
)

// Embedder generates one vector per input text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// SectionStore is the slice of the section service the embedder needs.
type SectionStore interface {
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Section, error)
	SetEmbedding(ctx context.Context, sectionID uuid.UUID, embedding []float32) error
}

// Service embeds a job's section contents after ingestion. Best effort: a
// failure is logged and never touches the job status.
type Service struct {
	sections SectionStore
	embedder Embedder
}

func NewService(sections SectionStore, embedder Embedder) *Service {
	return &Service{sections: sections, embedder: embedder}
}

func (s *Service) EmbedJob(ctx context.Context, jobID uuid.UUID) error {
	sections, err := s.sections.ListByJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load sections: %w", err)
	}
	if len(sections) == 0 {
		return nil
	}

	// Batch in groups of 100 for API limits.
	const batchSize = 100
	for i := 0; i < len(sections); i += batchSize {
		end := i + batchSize
		if end > len(sections) {
			end = len(sections)
		}
		batch := sections[i:end]

		texts := make([]string, len(batch))
		for j, sec := range batch {
			texts[j] = sec.Content
		}

		embeddings, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch %d: %w", i/batchSize, err)
		}
		if len(embeddings) != len(batch) {
			return fmt.Errorf("embed batch %d: got %d vectors for %d sections", i/batchSize, len(embeddings), len(batch))
		}

		for j, sec := range batch {
			if err := s.sections.SetEmbedding(ctx, sec.ID, embeddings[j]); err != nil {
				slog.Error("failed to store embedding", "section_id", sec.ID, "error", err)
			}
		}
	}

	slog.Info("embedded sections", "job_id", jobID, "count", len(sections))
	return nil
}
