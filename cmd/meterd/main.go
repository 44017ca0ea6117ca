package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/quotaflow/metering/config"
	"github.com/quotaflow/metering/internal/api"
	"github.com/quotaflow/metering/internal/auth"
	"github.com/quotaflow/metering/internal/policy"
	"github.com/quotaflow/metering/internal/seeder"
	"github.com/quotaflow/metering/internal/telemetry"
	"github.com/quotaflow/metering/internal/usage"
	"github.com/quotaflow/metering/internal/worker"
	"github.com/quotaflow/metering/pkg/ratelimit"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Init telemetry
	shutdownTracer, err := telemetry.InitTracer("usage-meter", cfg)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}
	defer shutdownTracer()

	// 3. Connect PostgreSQL
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect postgres: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("failed to ping postgres: %v", err)
	}
	log.Println("PostgreSQL connected")

	// 4. Connect Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to ping redis: %v", err)
	}
	log.Println("Redis connected")

	// 5. Init usage store
	store := usage.NewPostgresStore(pool, cfg.PeriodLength)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	// 6. Init quota policy
	table := policy.NewTable(map[policy.Tier]policy.Limits{
		policy.TierFree:       {Tokens: cfg.FreeTokenLimit, MeetingSeconds: cfg.FreeMeetingSecondLimit},
		policy.TierPro:        {Tokens: cfg.ProTokenLimit, MeetingSeconds: cfg.ProMeetingSecondLimit},
		policy.TierEnterprise: {Tokens: policy.Unlimited, MeetingSeconds: policy.Unlimited},
	})

	// 7. Init metering engine
	engine := usage.NewEngine(store, table)

	// 8. Init rate limiter
	limiter := ratelimit.NewLimiter(rdb, cfg.RateLimitRPM)

	// 9. Init handler
	tracer := otel.GetTracerProvider().Tracer("usage-meter")
	handler := api.NewHandler(engine, limiter, tracer)

	// 10. Seed demo usage row if RUN_SEED=true
	if os.Getenv("RUN_SEED") == "true" {
		seeder.SeedDemoUser(ctx, store)
	}

	// 11. Start period rollover worker
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if cfg.RolloverInterval > 0 {
		go worker.NewRollover(store, cfg.RolloverInterval).Run(workerCtx)
		log.Printf("Rollover worker started (interval %s)", cfg.RolloverInterval)
	}

	// 12. Init Chi router
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.MethodNotAllowed(api.HandleMethodNotAllowed)

	// Public routes
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"usage-meter"}`))
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(cfg.APISecret))
		r.Get("/usage", handler.HandleGetUsage)
		r.Post("/usage", handler.HandlePostUsage)
		r.Get("/usage/limits", handler.HandleGetLimits)
	})

	// 13. Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Usage meter starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down gracefully...")
	stopWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
