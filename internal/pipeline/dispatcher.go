package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"trustlens_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Dispatch modes.
const (
	DispatchModeChain       = "chain"
	DispatchModeIndependent = "independent"
)

// enqueuer is the slice of asynq.Client the dispatcher needs. Narrowed to an
// interface so tests can capture enqueued tasks without Redis.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// DispatcherConfig holds queue-level dispatch settings.
type DispatcherConfig struct {
	Mode      string
	QueueName string
	MaxRetry  int
	Timeout   time.Duration
}

// Dispatcher places a normalized plan onto the execution substrate.
//
// Chain mode enqueues only the first step and threads the rest through the
// payload's Remaining list; the worker enqueues each successor after the
// current stage completes, which preserves plan order. Independent mode
// enqueues every non-terminal step up front and the finalize step last, with
// no ordering between them.
type Dispatcher struct {
	client enqueuer
	cfg    DispatcherConfig
	log    *logger.Logger
}

// NewDispatcher creates a dispatcher on an asynq client.
func NewDispatcher(client *asynq.Client, cfg DispatcherConfig, log *logger.Logger) *Dispatcher {
	return newDispatcher(client, cfg, log)
}

func newDispatcher(client enqueuer, cfg DispatcherConfig, log *logger.Logger) *Dispatcher {
	if cfg.QueueName == "" {
		cfg.QueueName = "default"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Dispatcher{client: client, cfg: cfg, log: log}
}

// Dispatch submits the plan for execution.
func (d *Dispatcher) Dispatch(ctx context.Context, jobID, mediaID string, plan TaskPlan) error {
	if len(plan.Steps) == 0 {
		return ErrEmptyPlan
	}

	if d.cfg.Mode == DispatchModeIndependent {
		return d.dispatchIndependent(ctx, jobID, mediaID, plan)
	}
	return d.dispatchChain(ctx, jobID, mediaID, plan)
}

func (d *Dispatcher) dispatchChain(ctx context.Context, jobID, mediaID string, plan TaskPlan) error {
	head := plan.Steps[0]
	if err := d.enqueueStep(ctx, jobID, mediaID, head, plan.Steps[1:]); err != nil {
		return err
	}

	d.log.Info("plan dispatched",
		"mode", DispatchModeChain,
		"job_id", jobID,
		"media_id", mediaID,
		"steps", len(plan.Steps),
	)
	return nil
}

func (d *Dispatcher) dispatchIndependent(ctx context.Context, jobID, mediaID string, plan TaskPlan) error {
	var finalize *Step

	g, gctx := errgroup.WithContext(ctx)
	for _, step := range plan.Steps {
		if step.Task == string(StageJobFinalize) {
			step := step
			finalize = &step
			continue
		}
		step := step
		g.Go(func() error {
			return d.enqueueStep(gctx, jobID, mediaID, step, nil)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Finalize goes on last. With no ordering guarantee between workers this
	// is best effort, which is the documented trade-off of this mode.
	if finalize != nil {
		if err := d.enqueueStep(ctx, jobID, mediaID, *finalize, nil); err != nil {
			return err
		}
	}

	d.log.Info("plan dispatched",
		"mode", DispatchModeIndependent,
		"job_id", jobID,
		"media_id", mediaID,
		"steps", len(plan.Steps),
	)
	return nil
}

func (d *Dispatcher) enqueueStep(ctx context.Context, jobID, mediaID string, step Step, remaining []Step) error {
	task, err := NewStageTask(StagePayload{
		JobID:     jobID,
		MediaID:   mediaID,
		Stage:     step.Task,
		Args:      step.Args,
		Remaining: remaining,
	})
	if err != nil {
		return err
	}

	if _, err := d.client.EnqueueContext(ctx, task, d.taskOptions()...); err != nil {
		return fmt.Errorf("enqueue stage %s: %w", step.Task, err)
	}
	return nil
}

// EnqueueOrchestrate places the plan-acquisition task for a job. Called from
// the API process at submission time.
func (d *Dispatcher) EnqueueOrchestrate(ctx context.Context, jobID, mediaID string) error {
	task, err := NewOrchestrateTask(jobID, mediaID)
	if err != nil {
		return err
	}
	if _, err := d.client.EnqueueContext(ctx, task, d.taskOptions()...); err != nil {
		return fmt.Errorf("enqueue orchestrate: %w", err)
	}
	return nil
}

func (d *Dispatcher) taskOptions() []asynq.Option {
	return []asynq.Option{
		asynq.Queue(d.cfg.QueueName),
		asynq.MaxRetry(d.cfg.MaxRetry),
		asynq.Timeout(d.cfg.Timeout),
	}
}

// RedisClientOpt parses a redis:// URL into the asynq connection option used
// by both the client and the worker server.
func RedisClientOpt(redisURL string) (asynq.RedisClientOpt, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("parse redis url: %w", err)
	}
	clientOpt, ok := opt.(asynq.RedisClientOpt)
	if !ok {
		return asynq.RedisClientOpt{}, fmt.Errorf("unsupported redis connection type %T", opt)
	}
	return clientOpt, nil
}
