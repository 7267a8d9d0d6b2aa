package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnavmalhotra/paperbrief/internal/models"
	"github.com/arnavmalhotra/paperbrief/internal/storage"
	"github.com/arnavmalhotra/paperbrief/pkg/sectionize"
)

func queuedJob() *models.Job {
	return &models.Job{
		ID:           uuid.New(),
		SourceType:   models.SourceTypeFile,
		SourceURL:    "20240101/doc.pdf",
		Status:       models.JobStatusQueued,
		SummaryState: models.SummaryStatePending,
	}
}

func threeUnits() []sectionize.Unit {
	return []sectionize.Unit{
		{Title: "Page 1", Content: "intro", Order: 1},
		{Title: "Page 2", Content: "method", Order: 2},
		{Title: "Page 3", Content: "results", Order: 3},
	}
}

func TestIngestorRun_HappyPath(t *testing.T) {
	j := queuedJob()
	jobs := newMockJobStore(j)
	sections := newMockSectionStore()
	enq := &mockEnqueuer{}

	ing := NewIngestor(jobs, sections, &mockResolver{data: []byte("pdf bytes")},
		&mockParser{units: threeUnits()}, enq, &mockGuard{allow: true})

	err := ing.Run(context.Background(), j.ID)
	require.NoError(t, err)

	// All three units persisted with strictly increasing order.
	require.Len(t, sections.sections, 3)
	for i, sec := range sections.sections {
		assert.Equal(t, i+1, sec.Order)
	}

	// Progress is non-decreasing and ends at 100/done.
	require.NotEmpty(t, jobs.advances)
	prev := -1
	for _, call := range jobs.advances {
		assert.GreaterOrEqual(t, call.Progress, prev)
		prev = call.Progress
	}
	last := jobs.advances[len(jobs.advances)-1]
	assert.Equal(t, 100, last.Progress)
	assert.Equal(t, models.JobStatusDone, last.Status)
	assert.Equal(t, models.JobStatusDone, j.Status)

	// Hand-off happened: one summarize unit (immediate) and one embedding unit.
	require.Len(t, enq.summarizes, 1)
	assert.Equal(t, j.ID.String(), enq.summarizes[0].Payload.JobID)
	assert.Zero(t, enq.summarizes[0].Payload.Cursor)
	assert.Zero(t, enq.summarizes[0].Delay)
	require.Len(t, enq.embeddings, 1)
}

func TestIngestorRun_SourceNotFound(t *testing.T) {
	j := queuedJob()
	jobs := newMockJobStore(j)
	sections := newMockSectionStore()
	enq := &mockEnqueuer{}

	ing := NewIngestor(jobs, sections,
		&mockResolver{err: fmt.Errorf("resolve file source: %w", storage.ErrNotFound)},
		&mockParser{units: threeUnits()}, enq, &mockGuard{allow: true})

	err := ing.Run(context.Background(), j.ID)
	require.NoError(t, err, "stage failures are recorded on the job, not returned to the queue")

	assert.Equal(t, models.JobStatusError, j.Status)
	require.NotNil(t, j.ErrorMessage)
	assert.NotEmpty(t, *j.ErrorMessage)
	assert.Contains(t, *j.ErrorMessage, "ingest")
	assert.Contains(t, *j.ErrorMessage, string(KindNotFound))

	assert.Empty(t, sections.sections, "no section rows on a failed resolve")
	assert.Empty(t, enq.summarizes, "no hand-off on failure")
}

func TestIngestorRun_ParserFailure(t *testing.T) {
	j := queuedJob()
	jobs := newMockJobStore(j)

	ing := NewIngestor(jobs, newMockSectionStore(), &mockResolver{data: []byte("x")},
		&mockParser{err: errors.New("open PDF: malformed xref")}, &mockEnqueuer{}, &mockGuard{allow: true})

	require.NoError(t, ing.Run(context.Background(), j.ID))
	assert.Equal(t, models.JobStatusError, j.Status)

	serr := jobs.failed[j.ID]
	require.NotNil(t, serr)
	assert.Equal(t, KindFatal, KindOf(serr))
}

func TestIngestorRun_EmptyDocument(t *testing.T) {
	j := queuedJob()
	jobs := newMockJobStore(j)

	ing := NewIngestor(jobs, newMockSectionStore(), &mockResolver{data: []byte("x")},
		&mockParser{units: nil}, &mockEnqueuer{}, &mockGuard{allow: true})

	require.NoError(t, ing.Run(context.Background(), j.ID))
	assert.Equal(t, models.JobStatusError, j.Status)
}

func TestIngestorRun_PersistFailure(t *testing.T) {
	j := queuedJob()
	jobs := newMockJobStore(j)
	sections := newMockSectionStore()
	sections.replaceErr = errors.New("insert section: connection reset")
	enq := &mockEnqueuer{}

	ing := NewIngestor(jobs, sections, &mockResolver{data: []byte("x")},
		&mockParser{units: threeUnits()}, enq, &mockGuard{allow: true})

	require.NoError(t, ing.Run(context.Background(), j.ID))
	assert.Equal(t, models.JobStatusError, j.Status)
	assert.Empty(t, enq.summarizes)
}

func TestIngestorRun_DuplicateDeliveryDropped(t *testing.T) {
	j := queuedJob()
	jobs := newMockJobStore(j)
	sections := newMockSectionStore()

	ing := NewIngestor(jobs, sections, &mockResolver{data: []byte("x")},
		&mockParser{units: threeUnits()}, &mockEnqueuer{}, &mockGuard{allow: false})

	require.NoError(t, ing.Run(context.Background(), j.ID))
	assert.Empty(t, jobs.advances, "a guarded duplicate must not touch the job")
	assert.Empty(t, sections.sections)
}

func TestIngestorRun_GuardOutageDoesNotBlock(t *testing.T) {
	j := queuedJob()
	jobs := newMockJobStore(j)

	ing := NewIngestor(jobs, newMockSectionStore(), &mockResolver{data: []byte("x")},
		&mockParser{units: threeUnits()}, &mockEnqueuer{}, &mockGuard{allow: false, err: errors.New("redis down")})

	require.NoError(t, ing.Run(context.Background(), j.ID))
	assert.Equal(t, models.JobStatusDone, j.Status)
}

func TestIngestorRun_MissingJobIsNoop(t *testing.T) {
	jobs := newMockJobStore()
	sections := newMockSectionStore()

	ing := NewIngestor(jobs, sections, &mockResolver{data: []byte("x")},
		&mockParser{units: threeUnits()}, &mockEnqueuer{}, &mockGuard{allow: true})

	require.NoError(t, ing.Run(context.Background(), uuid.New()))
	assert.Empty(t, sections.sections)
}

func TestIngestorRun_TerminalJobSkipped(t *testing.T) {
	j := queuedJob()
	j.Status = models.JobStatusDone
	jobs := newMockJobStore(j)
	enq := &mockEnqueuer{}

	ing := NewIngestor(jobs, newMockSectionStore(), &mockResolver{data: []byte("x")},
		&mockParser{units: threeUnits()}, enq, &mockGuard{allow: true})

	require.NoError(t, ing.Run(context.Background(), j.ID))
	assert.Empty(t, jobs.advances)
	assert.Empty(t, enq.summarizes)
}
