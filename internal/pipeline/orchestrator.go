package pipeline

import (
	"context"
	"sync"

	"trustlens_backend/internal/mediastore"
	"trustlens_backend/platform/logger"
)

// Orchestrator runs plan acquisition and dispatch for one job: load the media
// document, ask the planner for a plan, hand it to the dispatcher, and record
// that the workflow started.
type Orchestrator struct {
	store      *mediastore.Store
	planner    *Planner
	dispatcher *Dispatcher
	log        *logger.Logger

	runsMu     sync.Mutex
	activeRuns map[string]struct{}
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(store *mediastore.Store, planner *Planner, dispatcher *Dispatcher, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		store:      store,
		planner:    planner,
		dispatcher: dispatcher,
		log:        log,
		activeRuns: make(map[string]struct{}),
	}
}

// markRunning claims the media ID for an orchestration run. Returns false if
// a run for the same document is already in flight in this process, which
// suppresses duplicate plan acquisition when the same task is delivered twice.
func (o *Orchestrator) markRunning(mediaID string) bool {
	o.runsMu.Lock()
	defer o.runsMu.Unlock()
	if _, running := o.activeRuns[mediaID]; running {
		return false
	}
	o.activeRuns[mediaID] = struct{}{}
	return true
}

func (o *Orchestrator) markComplete(mediaID string) {
	o.runsMu.Lock()
	defer o.runsMu.Unlock()
	delete(o.activeRuns, mediaID)
}

// Run executes one orchestration: plan acquisition, dispatch, status write.
// Plan generation itself can fail (oracle transport); everything downstream
// of a generated plan is total by construction.
func (o *Orchestrator) Run(ctx context.Context, jobID, mediaID string) error {
	if !o.markRunning(mediaID) {
		o.log.Warn("orchestration already in flight, skipping",
			"job_id", jobID, "media_id", mediaID)
		return nil
	}
	defer o.markComplete(mediaID)

	log := o.log.WithJob(jobID, mediaID)

	doc, err := o.store.Get(ctx, mediaID)
	if err != nil {
		return err
	}

	plan, err := o.planner.GeneratePlan(ctx, doc)
	if err != nil {
		log.Error("plan acquisition failed", "error", err)
		return err
	}
	log.Info("plan acquired", "steps", len(plan.Steps))

	if err := o.dispatcher.Dispatch(ctx, jobID, mediaID, plan); err != nil {
		return err
	}

	return o.store.Upsert(ctx, mediaID, map[string]any{
		mediastore.FieldStatus: mediastore.StatusWorkflowStarted,
	})
}
