package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trustlens_backend/internal/mediastore"
	"trustlens_backend/internal/pipeline"
	"trustlens_backend/internal/verification/repository"
	"trustlens_backend/platform/ai/gemini"
	"trustlens_backend/platform/ai/openrouter"
	"trustlens_backend/platform/config"
	"trustlens_backend/platform/db"
	"trustlens_backend/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting pipeline worker",
		"env", cfg.Env,
		"queue", cfg.GetAsynqQueueName(),
		"dispatch_mode", cfg.GetDispatchMode(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	store, err := mediastore.NewFromURL(cfg.GetRedisURL(), cfg.GetClaimCacheTTL())
	if err != nil {
		log.Error("failed to initialize document store", "error", err)
		panic("failed to initialize document store: " + err.Error())
	}
	defer store.Close()

	if err := withRetry(ctx, log, "document store connection", 5, 2*time.Second, func() error {
		return store.Ping(ctx)
	}); err != nil {
		log.Error("failed to connect to document store", "error", err)
		panic("failed to connect to document store: " + err.Error())
	}
	log.Info("document store connection established")

	redisOpt, err := pipeline.RedisClientOpt(cfg.GetRedisURL())
	if err != nil {
		log.Error("failed to parse redis url", "error", err)
		panic("failed to parse redis url: " + err.Error())
	}
	queueClient := asynq.NewClient(redisOpt)
	defer queueClient.Close()

	oracle, err := buildOracle(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize planning oracle", "error", err)
		panic("failed to initialize planning oracle: " + err.Error())
	}
	log.Info("planning oracle initialized", "provider", cfg.GetOracleProvider())

	// ========================================================================
	// Pipeline Composition
	// ========================================================================

	ledger := repository.New(pool)

	registry := pipeline.NewRegistry(pipeline.StageDeps{
		Store:  store,
		Ledger: ledger,
		Log:    log,
	})

	dispatcher := pipeline.NewDispatcher(queueClient, pipeline.DispatcherConfig{
		Mode:      cfg.GetDispatchMode(),
		QueueName: cfg.GetAsynqQueueName(),
		MaxRetry:  cfg.GetStageMaxRetry(),
		Timeout:   cfg.GetStageTimeout(),
	}, log)

	planner := pipeline.NewPlanner(oracle, registry, log)
	orchestrator := pipeline.NewOrchestrator(store, planner, dispatcher, log)

	worker := pipeline.NewWorker(redisOpt, pipeline.WorkerConfig{
		QueueName:   cfg.GetAsynqQueueName(),
		Concurrency: cfg.GetAsynqConcurrency(),
	}, orchestrator, registry, dispatcher, store, ledger, log)

	log.Info("worker listening", "concurrency", cfg.GetAsynqConcurrency())
	if err := worker.Run(ctx); err != nil {
		log.Error("worker stopped with error", "error", err)
		panic("worker stopped with error: " + err.Error())
	}

	log.Info("worker shut down")
}

// buildOracle selects the planning oracle provider from configuration.
func buildOracle(ctx context.Context, cfg config.OracleConfig) (pipeline.Oracle, error) {
	switch cfg.GetOracleProvider() {
	case "openrouter":
		return openrouter.NewClient(openrouter.Config{
			APIKey:  cfg.GetOracleAPIKey(),
			BaseURL: cfg.GetOracleBaseURL(),
			Model:   cfg.GetOracleModel(),
			Timeout: cfg.GetOracleTimeout(),
		})
	case "gemini":
		return gemini.NewClient(ctx, gemini.Config{
			APIKey:  cfg.GetOracleAPIKey(),
			Model:   cfg.GetOracleModel(),
			Timeout: cfg.GetOracleTimeout(),
		})
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.GetOracleProvider())
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
