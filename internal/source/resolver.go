package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arnavmalhotra/paperbrief/internal/models"
	"github.com/arnavmalhotra/paperbrief/internal/storage"
)

// Resolver turns a job's source locator into raw document bytes.
type Resolver interface {
	Resolve(ctx context.Context, job *models.Job) ([]byte, error)
}

type resolver struct {
	storage    storage.Storage
	bucket     string
	arxiv      *ArxivClient
	httpClient *http.Client
}

func NewResolver(store storage.Storage, bucket string, arxiv *ArxivClient) Resolver {
	return &resolver{
		storage:    store,
		bucket:     bucket,
		arxiv:      arxiv,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (r *resolver) Resolve(ctx context.Context, job *models.Job) ([]byte, error) {
	switch job.SourceType {
	case models.SourceTypeFile:
		return r.resolveFile(ctx, job.SourceURL)
	case models.SourceTypeLink:
		return r.resolveLink(ctx, job.SourceURL)
	default:
		return nil, fmt.Errorf("unknown source type: %s", job.SourceType)
	}
}

func (r *resolver) resolveFile(ctx context.Context, locator string) ([]byte, error) {
	// Locators written by the upload handler are bucket-relative paths, but
	// full storage URLs from older rows still resolve.
	path := locator
	if idx := strings.Index(locator, r.bucket+"/"); idx >= 0 {
		path = locator[idx+len(r.bucket)+1:]
	}
	if path == "" {
		return nil, fmt.Errorf("empty source locator")
	}

	reader, err := r.storage.Download(ctx, r.bucket, path)
	if err != nil {
		return nil, fmt.Errorf("resolve file source: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read file source: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("file source is empty")
	}
	return data, nil
}

func (r *resolver) resolveLink(ctx context.Context, url string) ([]byte, error) {
	pdfURL := url
	if IsArxivURL(url) {
		paper, err := r.arxiv.Lookup(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("resolve link source: %w", err)
		}
		pdfURL = paper.PDFURL
	}

	req, err := http.NewRequestWithContext(ctx, "GET", pdfURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create fetch request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pdfURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("fetch %s: %w", pdfURL, storage.ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", pdfURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pdfURL, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("link source is empty")
	}
	return data, nil
}
