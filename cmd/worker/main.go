package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/arnavmalhotra/paperbrief/internal/cache"
	"github.com/arnavmalhotra/paperbrief/internal/config"
	"github.com/arnavmalhotra/paperbrief/internal/database"
	"github.com/arnavmalhotra/paperbrief/internal/embedding"
	"github.com/arnavmalhotra/paperbrief/internal/job"
	"github.com/arnavmalhotra/paperbrief/internal/llm"
	"github.com/arnavmalhotra/paperbrief/internal/pipeline"
	"github.com/arnavmalhotra/paperbrief/internal/queue"
	"github.com/arnavmalhotra/paperbrief/internal/queue/workers"
	"github.com/arnavmalhotra/paperbrief/internal/section"
	"github.com/arnavmalhotra/paperbrief/internal/source"
	"github.com/arnavmalhotra/paperbrief/internal/storage"

	goredis "github.com/redis/go-redis/v9"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db, cfg.Database.MigrationsPath); err != nil {
		slog.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	jobSvc := job.NewService(db)
	sectionSvc := section.NewService(db)
	queueClient := queue.NewClient(cfg.Redis)
	defer queueClient.Close()
	guard := cache.NewCache(rdb)

	store := storage.NewSupabaseStorage(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey)
	resolver := source.NewResolver(store, cfg.Storage.Bucket, source.NewArxivClient())

	analyzer := newAnalyzer(cfg.LLM)

	ingestor := pipeline.NewIngestor(jobSvc, sectionSvc, resolver, nil, queueClient, guard)
	summarizer := pipeline.NewSummarizer(jobSvc, sectionSvc, analyzer, queueClient, guard)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	// Embeddings always go through OpenAI; skip the service when the key is absent.
	var embedSvc *embedding.Service
	if cfg.LLM.OpenAIKey != "" {
		embedder := llm.NewOpenAIEmbedder(cfg.LLM.OpenAIKey, cfg.LLM.EmbeddingModel)
		embedSvc = embedding.NewService(sectionSvc, embedder)
	}

	mux := workers.NewMux(ingestor, summarizer, embedSvc)

	slog.Info("starting worker", "concurrency", cfg.Worker.Concurrency, "llm_provider", cfg.LLM.Provider)
	if err := srv.Run(mux); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}

func newAnalyzer(cfg config.LLMConfig) llm.Analyzer {
	if cfg.Provider == "anthropic" {
		return llm.NewAnthropicAnalyzer(cfg.AnthropicKey, cfg.Model)
	}
	return llm.NewOpenAIAnalyzer(cfg.OpenAIKey, cfg.Model)
}
