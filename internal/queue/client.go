package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/arnavmalhotra/paperbrief/internal/config"
)

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) EnqueueIngest(payload IngestPayload) error {
	return c.enqueue(TypeDocumentIngest, payload,
		asynq.Queue("critical"), asynq.MaxRetry(3), asynq.Timeout(10*time.Minute))
}

// EnqueueSummarize schedules a summarization run, optionally after a delay.
// The stage manages its own per-section retries, so queue-level retry is off.
func (c *Client) EnqueueSummarize(payload SummarizePayload, delay time.Duration) error {
	opts := []asynq.Option{
		asynq.Queue("default"), asynq.MaxRetry(0), asynq.Timeout(30 * time.Minute),
	}
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}
	return c.enqueue(TypeDocumentSummarize, payload, opts...)
}

func (c *Client) EnqueueEmbedding(payload EmbeddingPayload) error {
	return c.enqueue(TypeEmbeddingGenerate, payload,
		asynq.Queue("low"), asynq.MaxRetry(3), asynq.Timeout(5*time.Minute))
}

func (c *Client) enqueue(taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	_, err = c.client.Enqueue(task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
