package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arnavmalhotra/paperbrief/internal/job"
	"github.com/arnavmalhotra/paperbrief/internal/llm"
	"github.com/arnavmalhotra/paperbrief/internal/models"
	"github.com/arnavmalhotra/paperbrief/internal/queue"
	"github.com/arnavmalhotra/paperbrief/pkg/sectionize"
)

type advanceCall struct {
	Progress int
	Status   string
}

type mockJobStore struct {
	jobs          map[uuid.UUID]*models.Job
	advances      []advanceCall
	failed        map[uuid.UUID]error
	summaryStates map[uuid.UUID]string
}

func newMockJobStore(jobs ...*models.Job) *mockJobStore {
	m := &mockJobStore{
		jobs:          make(map[uuid.UUID]*models.Job),
		failed:        make(map[uuid.UUID]error),
		summaryStates: make(map[uuid.UUID]string),
	}
	for _, j := range jobs {
		m.jobs[j.ID] = j
	}
	return m
}

func (m *mockJobStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j, ok := m.jobs[id]
	if !ok {
		return nil, job.ErrJobNotFound
	}
	return j, nil
}

func (m *mockJobStore) Advance(ctx context.Context, id uuid.UUID, progress int, status string) error {
	j, ok := m.jobs[id]
	if !ok || models.Terminal(j.Status) {
		return job.ErrJobNotFound
	}
	m.advances = append(m.advances, advanceCall{Progress: progress, Status: status})
	j.Progress = progress
	j.Status = status
	return nil
}

func (m *mockJobStore) Fail(ctx context.Context, id uuid.UUID, cause error) error {
	j, ok := m.jobs[id]
	if !ok {
		return job.ErrJobNotFound
	}
	j.Status = models.JobStatusError
	msg := cause.Error()
	j.ErrorMessage = &msg
	m.failed[id] = cause
	return nil
}

func (m *mockJobStore) SetSummaryState(ctx context.Context, id uuid.UUID, state string) error {
	if _, ok := m.jobs[id]; !ok {
		return job.ErrJobNotFound
	}
	m.summaryStates[id] = state
	m.jobs[id].SummaryState = state
	return nil
}

type mockSectionStore struct {
	sections    []models.Section
	summaries   map[uuid.UUID]models.Summary
	failedSecs  map[uuid.UUID]error
	replaceErr  error
	listErr     error
	summaryErr  error
	replaceSeen [][]sectionize.Unit
}

func newMockSectionStore(sections ...models.Section) *mockSectionStore {
	return &mockSectionStore{
		sections:   sections,
		summaries:  make(map[uuid.UUID]models.Summary),
		failedSecs: make(map[uuid.UUID]error),
	}
}

func (m *mockSectionStore) ReplaceForJob(ctx context.Context, jobID uuid.UUID, units []sectionize.Unit) ([]models.Section, error) {
	if m.replaceErr != nil {
		return nil, m.replaceErr
	}
	m.replaceSeen = append(m.replaceSeen, units)
	m.sections = m.sections[:0]
	for _, u := range units {
		m.sections = append(m.sections, models.Section{
			ID:      uuid.New(),
			JobID:   jobID,
			Title:   u.Title,
			Order:   u.Order,
			Content: u.Content,
		})
	}
	return m.sections, nil
}

func (m *mockSectionStore) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Section, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.sections, nil
}

func (m *mockSectionStore) MarkSummaryFailed(ctx context.Context, sectionID uuid.UUID, cause error) error {
	m.failedSecs[sectionID] = cause
	return nil
}

func (m *mockSectionStore) CreateSummary(ctx context.Context, sum models.Summary) error {
	if m.summaryErr != nil {
		return m.summaryErr
	}
	if _, exists := m.summaries[sum.SectionID]; exists {
		return nil // insert-once semantics
	}
	m.summaries[sum.SectionID] = sum
	return nil
}

func (m *mockSectionStore) ListSummariesByJob(ctx context.Context, jobID uuid.UUID) (map[uuid.UUID]models.Summary, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make(map[uuid.UUID]models.Summary, len(m.summaries))
	for id, sum := range m.summaries {
		out[id] = sum
	}
	return out, nil
}

func (m *mockSectionStore) CountByJob(ctx context.Context, jobID uuid.UUID) (int, int, error) {
	return len(m.sections), len(m.summaries), nil
}

type summarizeCall struct {
	Payload queue.SummarizePayload
	Delay   time.Duration
}

type mockEnqueuer struct {
	summarizes   []summarizeCall
	embeddings   []queue.EmbeddingPayload
	summarizeErr error
}

func (m *mockEnqueuer) EnqueueSummarize(payload queue.SummarizePayload, delay time.Duration) error {
	if m.summarizeErr != nil {
		return m.summarizeErr
	}
	m.summarizes = append(m.summarizes, summarizeCall{Payload: payload, Delay: delay})
	return nil
}

func (m *mockEnqueuer) EnqueueEmbedding(payload queue.EmbeddingPayload) error {
	m.embeddings = append(m.embeddings, payload)
	return nil
}

type mockGuard struct {
	allow bool
	err   error
	keys  []string
}

func (m *mockGuard) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	m.keys = append(m.keys, key)
	return m.allow, m.err
}

type mockResolver struct {
	data []byte
	err  error
}

func (m *mockResolver) Resolve(ctx context.Context, j *models.Job) ([]byte, error) {
	return m.data, m.err
}

type mockParser struct {
	units []sectionize.Unit
	err   error
}

func (m *mockParser) Parse(data []byte, fileType string) ([]sectionize.Unit, error) {
	return m.units, m.err
}

// mockAnalyzer pops one scripted outcome per call; when the script runs out
// it keeps returning the final entry.
type mockAnalyzer struct {
	script []analyzeOutcome
	calls  int
}

type analyzeOutcome struct {
	analysis *llm.Analysis
	err      error
}

func okOutcome(summary string) analyzeOutcome {
	return analyzeOutcome{analysis: &llm.Analysis{
		Summary:          summary,
		Claims:           []string{"claim one", "claim two", "claim three"},
		PromptTokens:     120,
		CompletionTokens: 40,
		Model:            "gpt-4o-mini",
	}}
}

func errOutcome(err error) analyzeOutcome {
	return analyzeOutcome{err: err}
}

func rateLimitOutcome() analyzeOutcome {
	return analyzeOutcome{err: fmt.Errorf("analyze: %w", llm.ErrRateLimited)}
}

func (m *mockAnalyzer) Analyze(ctx context.Context, text string) (*llm.Analysis, error) {
	idx := m.calls
	if idx >= len(m.script) {
		idx = len(m.script) - 1
	}
	m.calls++
	out := m.script[idx]
	return out.analysis, out.err
}

func (m *mockAnalyzer) Model() string { return "gpt-4o-mini" }
