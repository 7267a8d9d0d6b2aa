package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/arnavmalhotra/paperbrief/internal/cache"
	"github.com/arnavmalhotra/paperbrief/internal/job"
	"github.com/arnavmalhotra/paperbrief/internal/models"
	"github.com/arnavmalhotra/paperbrief/internal/queue"
	"github.com/arnavmalhotra/paperbrief/internal/storage"
	"github.com/arnavmalhotra/paperbrief/pkg/sectionize"
)

const statusCacheTTL = 3 * time.Second

// JobService is the slice of the job store the handlers need.
type JobService interface {
	Create(ctx context.Context, req job.CreateRequest) (*models.Job, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	List(ctx context.Context, limit, offset int) ([]models.Job, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SectionService covers the read side of sections and their summaries.
type SectionService interface {
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Section, error)
	ListSummariesByJob(ctx context.Context, jobID uuid.UUID) (map[uuid.UUID]models.Summary, error)
}

// Enqueuer hands freshly registered jobs to the pipeline.
type Enqueuer interface {
	EnqueueIngest(payload queue.IngestPayload) error
}

type JobsHandler struct {
	jobs     JobService
	sections SectionService
	storage  storage.Storage
	bucket   string
	queue    Enqueuer
	cache    *cache.Cache
}

func NewJobsHandler(jobs JobService, sections SectionService, store storage.Storage, bucket string, qc Enqueuer, c *cache.Cache) *JobsHandler {
	return &JobsHandler{
		jobs:     jobs,
		sections: sections,
		storage:  store,
		bucket:   bucket,
		queue:    qc,
		cache:    c,
	}
}

type createResponse struct {
	JobID     uuid.UUID `json:"job_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateUpload registers a file job: the document goes to blob storage and
// the job's locator is the object path.
func (h *JobsHandler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "expected multipart form with a file field")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "file field is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !supportedExt(ext) {
		writeError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_TYPE",
			fmt.Sprintf("unsupported file type %q, expected one of %s", ext, strings.Join(sectionize.SupportedTypes(), ", ")))
		return
	}

	owner := r.FormValue("owner_user_id")
	path := fmt.Sprintf("%s/%s%s", time.Now().UTC().Format("20060102"), uuid.New(), ext)

	if err := h.storage.Upload(r.Context(), h.bucket, path, file, header.Header.Get("Content-Type")); err != nil {
		writeError(w, http.StatusBadGateway, "STORAGE_ERROR", "failed to store uploaded file")
		return
	}

	j, err := h.jobs.Create(r.Context(), job.CreateRequest{
		OwnerUserID: owner,
		SourceType:  models.SourceTypeFile,
		SourceURL:   path,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "JOB_CREATE_FAILED", err.Error())
		return
	}

	if err := h.queue.EnqueueIngest(queue.IngestPayload{JobID: j.ID.String()}); err != nil {
		writeError(w, http.StatusInternalServerError, "ENQUEUE_FAILED", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, createResponse{JobID: j.ID, Status: j.Status, CreatedAt: j.CreatedAt})
}

type linkRequest struct {
	URL         string `json:"url"`
	OwnerUserID string `json:"owner_user_id"`
}

// CreateLink registers a link job pointing at a remote document.
func (h *JobsHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		writeError(w, http.StatusBadRequest, "INVALID_URL", "url must be an http(s) link")
		return
	}

	j, err := h.jobs.Create(r.Context(), job.CreateRequest{
		OwnerUserID: req.OwnerUserID,
		SourceType:  models.SourceTypeLink,
		SourceURL:   req.URL,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "JOB_CREATE_FAILED", err.Error())
		return
	}

	if err := h.queue.EnqueueIngest(queue.IngestPayload{JobID: j.ID.String()}); err != nil {
		writeError(w, http.StatusInternalServerError, "ENQUEUE_FAILED", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, createResponse{JobID: j.ID, Status: j.Status, CreatedAt: j.CreatedAt})
}

func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	if limit > 100 {
		limit = 100
	}
	offset := queryInt(r, "offset", 0)

	jobs, err := h.jobs.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "LIST_FAILED", err.Error())
		return
	}
	if jobs == nil {
		jobs = []models.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

type statusResponse struct {
	ID           uuid.UUID `json:"id"`
	Status       string    `json:"status"`
	Progress     int       `json:"progress"`
	SummaryState string    `json:"summary_state"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Status serves the polling endpoint, with a short-TTL cache in front of the
// job row since clients poll aggressively during processing.
func (h *JobsHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	cacheKey := "job:status:" + id.String()
	if h.cache != nil {
		var cached statusResponse
		if err := h.cache.Get(r.Context(), cacheKey, &cached); err == nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	j, err := h.jobs.GetByID(r.Context(), id)
	if errors.Is(err, job.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STATUS_FAILED", err.Error())
		return
	}

	resp := statusResponse{
		ID:           j.ID,
		Status:       j.Status,
		Progress:     j.Progress,
		SummaryState: j.SummaryState,
		ErrorMessage: j.ErrorMessage,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
	if h.cache != nil {
		h.cache.Set(r.Context(), cacheKey, resp, statusCacheTTL)
	}
	writeJSON(w, http.StatusOK, resp)
}

type sectionResult struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Order        int       `json:"order"`
	Summary      *string   `json:"summary,omitempty"`
	KeyClaims    []string  `json:"key_claims,omitempty"`
	SummaryError *string   `json:"summary_error,omitempty"`
}

// Results returns the full outcome once sections are extracted. Callers must
// check summary_state to distinguish "sections extracted" from "summaries
// ready": job status alone does not cover the second phase.
func (h *JobsHandler) Results(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	j, err := h.jobs.GetByID(r.Context(), id)
	if errors.Is(err, job.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "RESULTS_FAILED", err.Error())
		return
	}

	if j.Status != models.JobStatusDone {
		message := "Results are not ready yet."
		if j.Status == models.JobStatusError {
			message = "An error occurred."
			if j.ErrorMessage != nil && *j.ErrorMessage != "" {
				message = *j.ErrorMessage
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": j.Status, "message": message})
		return
	}

	results, err := h.sectionResults(r, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "RESULTS_FAILED", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        j.Status,
		"summary_state": j.SummaryState,
		"summary":       strOrEmpty(j.Summary),
		"sections":      results,
	})
}

// Sections lists a job's sections with per-section summary availability.
func (h *JobsHandler) Sections(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	if _, err := h.jobs.GetByID(r.Context(), id); errors.Is(err, job.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "SECTIONS_FAILED", err.Error())
		return
	}

	results, err := h.sectionResults(r, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "SECTIONS_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// Delete removes a job and everything derived from it; sections and
// summaries follow through the cascade.
func (h *JobsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r)
	if !ok {
		return
	}

	err := h.jobs.Delete(r.Context(), id)
	if errors.Is(err, job.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "DELETE_FAILED", err.Error())
		return
	}

	if h.cache != nil {
		h.cache.Delete(r.Context(), "job:status:"+id.String())
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *JobsHandler) sectionResults(r *http.Request, jobID uuid.UUID) ([]sectionResult, error) {
	sections, err := h.sections.ListByJob(r.Context(), jobID)
	if err != nil {
		return nil, err
	}
	summaries, err := h.sections.ListSummariesByJob(r.Context(), jobID)
	if err != nil {
		return nil, err
	}

	results := make([]sectionResult, 0, len(sections))
	for _, sec := range sections {
		res := sectionResult{
			ID:           sec.ID,
			Title:        sec.Title,
			Order:        sec.Order,
			SummaryError: sec.SummaryError,
		}
		if sum, ok := summaries[sec.ID]; ok {
			res.Summary = &sum.SummaryText
			res.KeyClaims = sum.KeyClaims
		}
		results = append(results, res)
	}
	return results, nil
}

func (h *JobsHandler) jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JOB_ID", "job ID must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func supportedExt(ext string) bool {
	for _, t := range sectionize.SupportedTypes() {
		if t == ext {
			return true
		}
	}
	return false
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}
