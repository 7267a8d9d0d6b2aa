package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnavmalhotra/paperbrief/internal/job"
	"github.com/arnavmalhotra/paperbrief/internal/models"
	"github.com/arnavmalhotra/paperbrief/internal/queue"
)

type stubJobService struct {
	jobs    map[uuid.UUID]*models.Job
	created []job.CreateRequest
	deleted []uuid.UUID
}

func newStubJobService(jobs ...*models.Job) *stubJobService {
	s := &stubJobService{jobs: make(map[uuid.UUID]*models.Job)}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *stubJobService) Create(ctx context.Context, req job.CreateRequest) (*models.Job, error) {
	s.created = append(s.created, req)
	j := &models.Job{
		ID:           uuid.New(),
		OwnerUserID:  req.OwnerUserID,
		SourceType:   req.SourceType,
		SourceURL:    req.SourceURL,
		Status:       models.JobStatusQueued,
		SummaryState: models.SummaryStatePending,
		CreatedAt:    time.Now().UTC(),
	}
	s.jobs[j.ID] = j
	return j, nil
}

func (s *stubJobService) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, job.ErrJobNotFound
	}
	return j, nil
}

func (s *stubJobService) List(ctx context.Context, limit, offset int) ([]models.Job, error) {
	return nil, nil
}

func (s *stubJobService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.jobs[id]; !ok {
		return job.ErrJobNotFound
	}
	delete(s.jobs, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type stubSectionService struct{}

func (stubSectionService) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Section, error) {
	return nil, nil
}

func (stubSectionService) ListSummariesByJob(ctx context.Context, jobID uuid.UUID) (map[uuid.UUID]models.Summary, error) {
	return map[uuid.UUID]models.Summary{}, nil
}

type stubEnqueuer struct {
	ingests []queue.IngestPayload
	err     error
}

func (s *stubEnqueuer) EnqueueIngest(payload queue.IngestPayload) error {
	if s.err != nil {
		return s.err
	}
	s.ingests = append(s.ingests, payload)
	return nil
}

func newTestRouter(h *JobsHandler) http.Handler {
	r := chi.NewRouter()
	r.Route("/v1/jobs", func(r chi.Router) {
		r.Post("/link", h.CreateLink)
		r.Get("/{jobID}/status", h.Status)
		r.Delete("/{jobID}", h.Delete)
	})
	return r
}

func TestCreateLink(t *testing.T) {
	jobs := newStubJobService()
	enq := &stubEnqueuer{}
	h := NewJobsHandler(jobs, stubSectionService{}, nil, "", enq, nil)

	body := bytes.NewBufferString(`{"url": "https://arxiv.org/abs/1706.03762", "owner_user_id": "u1"}`)
	req := httptest.NewRequest("POST", "/v1/jobs/link", body)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp createResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.JobStatusQueued, resp.Status)

	require.Len(t, jobs.created, 1)
	assert.Equal(t, models.SourceTypeLink, jobs.created[0].SourceType)
	require.Len(t, enq.ingests, 1)
	assert.Equal(t, resp.JobID.String(), enq.ingests[0].JobID)
}

func TestCreateLink_RejectsNonHTTPURL(t *testing.T) {
	jobs := newStubJobService()
	enq := &stubEnqueuer{}
	h := NewJobsHandler(jobs, stubSectionService{}, nil, "", enq, nil)

	body := bytes.NewBufferString(`{"url": "ftp://example.com/paper.pdf"}`)
	req := httptest.NewRequest("POST", "/v1/jobs/link", body)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, jobs.created)
	assert.Empty(t, enq.ingests)
}

func TestDeleteJob(t *testing.T) {
	j := &models.Job{ID: uuid.New(), Status: models.JobStatusDone}
	jobs := newStubJobService(j)
	h := NewJobsHandler(jobs, stubSectionService{}, nil, "", &stubEnqueuer{}, nil)

	req := httptest.NewRequest("DELETE", "/v1/jobs/"+j.ID.String(), nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, jobs.deleted, 1)
	assert.Equal(t, j.ID, jobs.deleted[0])
}

func TestDeleteJob_NotFound(t *testing.T) {
	jobs := newStubJobService()
	h := NewJobsHandler(jobs, stubSectionService{}, nil, "", &stubEnqueuer{}, nil)

	req := httptest.NewRequest("DELETE", "/v1/jobs/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "JOB_NOT_FOUND", resp["code"])
}

func TestStatus(t *testing.T) {
	j := &models.Job{
		ID:           uuid.New(),
		Status:       models.JobStatusProcessing,
		Progress:     60,
		SummaryState: models.SummaryStatePending,
	}
	jobs := newStubJobService(j)
	h := NewJobsHandler(jobs, stubSectionService{}, nil, "", &stubEnqueuer{}, nil)

	req := httptest.NewRequest("GET", "/v1/jobs/"+j.ID.String()+"/status", nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.JobStatusProcessing, resp.Status)
	assert.Equal(t, 60, resp.Progress)
	assert.Equal(t, models.SummaryStatePending, resp.SummaryState)
}
