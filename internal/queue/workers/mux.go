package workers

import (
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/arnavmalhotra/paperbrief/internal/embedding"
	"github.com/arnavmalhotra/paperbrief/internal/pipeline"
	"github.com/arnavmalhotra/paperbrief/internal/queue"
)

// NewMux binds every pipeline task type to its worker. The embedding service
// is optional; without it embedding tasks are left unregistered and stay in
// the queue for a host that carries the service.
func NewMux(ingestor *pipeline.Ingestor, summarizer *pipeline.Summarizer, embedder *embedding.Service) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(queue.TypeDocumentIngest, NewIngestWorker(ingestor))
	mux.Handle(queue.TypeDocumentSummarize, NewSummarizeWorker(summarizer))
	if embedder != nil {
		mux.Handle(queue.TypeEmbeddingGenerate, NewEmbeddingWorker(embedder))
	} else {
		slog.Warn("embedding worker disabled, embedding tasks will not be consumed")
	}
	return mux
}
