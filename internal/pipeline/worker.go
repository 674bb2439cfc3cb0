package pipeline

import (
	"context"
	"time"

	"trustlens_backend/internal/mediastore"
	"trustlens_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// WorkerConfig holds asynq server settings for the pipeline worker.
type WorkerConfig struct {
	QueueName   string
	Concurrency int
}

// Worker consumes orchestration and stage tasks. It owns chain continuation:
// when a stage completes, the head of the payload's Remaining list is enqueued
// as the next task.
type Worker struct {
	server       *asynq.Server
	orchestrator *Orchestrator
	registry     *Registry
	dispatcher   *Dispatcher
	store        *mediastore.Store
	ledger       Ledger
	log          *logger.Logger
}

// NewWorker creates the worker and its asynq server.
func NewWorker(
	redisOpt asynq.RedisClientOpt,
	cfg WorkerConfig,
	orchestrator *Orchestrator,
	registry *Registry,
	dispatcher *Dispatcher,
	store *mediastore.Store,
	ledger Ledger,
	log *logger.Logger,
) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.QueueName == "" {
		cfg.QueueName = "default"
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{cfg.QueueName: 1},
		Logger:      asynqLogger{log},
	})

	return &Worker{
		server:       server,
		orchestrator: orchestrator,
		registry:     registry,
		dispatcher:   dispatcher,
		store:        store,
		ledger:       ledger,
		log:          log,
	}
}

// Run starts the worker and blocks until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskPipelineOrchestrate, w.handleOrchestrate)
	mux.HandleFunc(TaskPipelineStage, w.handleStage)

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	return w.server.Run(mux)
}

func (w *Worker) handleOrchestrate(ctx context.Context, t *asynq.Task) error {
	p, err := ParseOrchestratePayload(t)
	if err != nil {
		return err
	}
	return w.orchestrator.Run(ctx, p.JobID, p.MediaID)
}

// handleStage runs one stage and then advances the chain. Failures are left
// to asynq's retry policy until it is exhausted, at which point the job is
// marked failed and the chain halts: the successor is never enqueued, so a
// failed run cannot reach finalize and masquerade as complete.
func (w *Worker) handleStage(ctx context.Context, t *asynq.Task) error {
	p, err := ParseStagePayload(t)
	if err != nil {
		return err
	}

	unit, ok := w.registry.Lookup(p.Stage)
	if !ok {
		// A payload from a newer or older deployment. Skip the stage but keep
		// the chain moving so the job still terminates.
		w.log.Warn("unknown stage in payload, skipping",
			"stage", p.Stage, "job_id", p.JobID, "media_id", p.MediaID)
		return w.advanceChain(ctx, p)
	}

	w.log.StageEvent("started", p.Stage, p.JobID, p.MediaID)
	start := time.Now()

	err = unit.Run(ctx, ExecContext{JobID: p.JobID, MediaID: p.MediaID, Args: p.Args})
	if err != nil {
		w.log.StageError(p.Stage, p.JobID, p.MediaID, err)

		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		if retried >= maxRetry {
			w.markJobFailed(ctx, p.JobID, p.MediaID, p.Stage)
		}
		return err
	}

	w.log.Info("stage completed",
		"stage", p.Stage,
		"job_id", p.JobID,
		"media_id", p.MediaID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return w.advanceChain(ctx, p)
}

func (w *Worker) advanceChain(ctx context.Context, p StagePayload) error {
	if len(p.Remaining) == 0 {
		return nil
	}
	return w.dispatcher.enqueueStep(ctx, p.JobID, p.MediaID, p.Remaining[0], p.Remaining[1:])
}

// markJobFailed records terminal failure on both the media document and the
// relational ledger. Recording failures must not fail the failure path, so
// errors here are logged and swallowed.
func (w *Worker) markJobFailed(ctx context.Context, jobID, mediaID, stage string) {
	w.log.Error("stage retries exhausted, failing job",
		"stage", stage, "job_id", jobID, "media_id", mediaID)

	if err := w.store.Upsert(ctx, mediaID, map[string]any{
		mediastore.FieldStatus: mediastore.StatusFailed,
	}); err != nil {
		w.log.Error("failed to mark document failed", "media_id", mediaID, "error", err)
	}
	if err := w.ledger.MarkFailedByMediaID(ctx, mediaID); err != nil {
		w.log.Error("failed to mark ledger failed", "media_id", mediaID, "error", err)
	}
}

// asynqLogger adapts the application logger to asynq's internal logging.
type asynqLogger struct{ log *logger.Logger }

func (a asynqLogger) Debug(args ...any) { a.log.Debug("asynq", "msg", args) }
func (a asynqLogger) Info(args ...any)  { a.log.Info("asynq", "msg", args) }
func (a asynqLogger) Warn(args ...any)  { a.log.Warn("asynq", "msg", args) }
func (a asynqLogger) Error(args ...any) { a.log.Error("asynq", "msg", args) }
func (a asynqLogger) Fatal(args ...any) { a.log.Error("asynq_fatal", "msg", args) }
