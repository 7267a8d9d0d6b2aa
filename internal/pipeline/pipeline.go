package pipeline

import (
	"bytes"
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/arnavmalhotra/paperbrief/internal/models"
	"github.com/arnavmalhotra/paperbrief/internal/queue"
	"github.com/arnavmalhotra/paperbrief/pkg/sectionize"
)

// JobStore is the slice of the job service the pipeline needs.
type JobStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	Advance(ctx context.Context, id uuid.UUID, progress int, status string) error
	Fail(ctx context.Context, id uuid.UUID, cause error) error
	SetSummaryState(ctx context.Context, id uuid.UUID, state string) error
}

// SectionStore covers section and summary persistence.
type SectionStore interface {
	ReplaceForJob(ctx context.Context, jobID uuid.UUID, units []sectionize.Unit) ([]models.Section, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Section, error)
	MarkSummaryFailed(ctx context.Context, sectionID uuid.UUID, cause error) error
	CreateSummary(ctx context.Context, sum models.Summary) error
	ListSummariesByJob(ctx context.Context, jobID uuid.UUID) (map[uuid.UUID]models.Summary, error)
	CountByJob(ctx context.Context, jobID uuid.UUID) (sections, summarized int, err error)
}

// Enqueuer hands units of work to the task queue.
type Enqueuer interface {
	EnqueueSummarize(payload queue.SummarizePayload, delay time.Duration) error
	EnqueueEmbedding(payload queue.EmbeddingPayload) error
}

// Guard is a best-effort idempotency latch against duplicate deliveries.
// cache.Cache satisfies it.
type Guard interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
}

// Parser turns raw document bytes into ordered units.
type Parser interface {
	Parse(data []byte, fileType string) ([]sectionize.Unit, error)
}

// SectionizeParser adapts pkg/sectionize to the Parser boundary.
type SectionizeParser struct{}

func (SectionizeParser) Parse(data []byte, fileType string) ([]sectionize.Unit, error) {
	return sectionize.Extract(bytes.NewReader(data), int64(len(data)), fileType)
}

// fileTypeFor guesses the parser input type from the source locator.
// Uploads carry their extension in the object path; links are PDFs.
func fileTypeFor(job *models.Job) string {
	if ext := filepath.Ext(job.SourceURL); ext != "" && job.SourceType == models.SourceTypeFile {
		return ext
	}
	return ".pdf"
}
