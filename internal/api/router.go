package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/arnavmalhotra/paperbrief/internal/api/handlers"
	"github.com/arnavmalhotra/paperbrief/internal/api/middleware"
	"github.com/arnavmalhotra/paperbrief/internal/cache"
	"github.com/arnavmalhotra/paperbrief/internal/config"
	"github.com/arnavmalhotra/paperbrief/internal/job"
	"github.com/arnavmalhotra/paperbrief/internal/queue"
	"github.com/arnavmalhotra/paperbrief/internal/section"
	"github.com/arnavmalhotra/paperbrief/internal/storage"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(float64(rt.cfg.Server.RateLimitRPS), rt.cfg.Server.RateLimitBurst)
	r.Use(rl.Limit)

	// Health endpoints
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Services
	store := storage.NewSupabaseStorage(rt.cfg.Storage.SupabaseURL, rt.cfg.Storage.SupabaseKey)
	jobSvc := job.NewService(rt.db)
	sectionSvc := section.NewService(rt.db)
	queueClient := queue.NewClient(rt.cfg.Redis)
	statusCache := cache.NewCache(rt.redis)

	jobs := handlers.NewJobsHandler(jobSvc, sectionSvc, store, rt.cfg.Storage.Bucket, queueClient, statusCache)

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Post("/upload", jobs.CreateUpload)
		r.Post("/link", jobs.CreateLink)
		r.Get("/", jobs.List)
		r.Get("/{jobID}", jobs.Results)
		r.Delete("/{jobID}", jobs.Delete)
		r.Get("/{jobID}/status", jobs.Status)
		r.Get("/{jobID}/sections", jobs.Sections)
	})

	return r
}
