package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"trustlens_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// fakeEnqueuer records enqueued tasks. Independent dispatch enqueues from
// multiple goroutines, so the slice is mutex-guarded.
type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func testPlan(mediaID string, tasks ...string) TaskPlan {
	steps := make([]Step, 0, len(tasks))
	for _, task := range tasks {
		steps = append(steps, Step{Task: task, Args: map[string]any{"media_id": mediaID}})
	}
	return TaskPlan{Steps: steps}
}

func TestDispatchChainEnqueuesOnlyHead(t *testing.T) {
	fake := &fakeEnqueuer{}
	d := newDispatcher(fake, DispatcherConfig{Mode: DispatchModeChain}, logger.New("development"))

	plan := testPlan("m1", "extract_frames", "authenticity_image", "job_finalize")
	if err := d.Dispatch(context.Background(), "j1", "m1", plan); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if len(fake.tasks) != 1 {
		t.Fatalf("expected 1 enqueued task, got %d", len(fake.tasks))
	}

	payload, err := ParseStagePayload(fake.tasks[0])
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if payload.Stage != "extract_frames" {
		t.Fatalf("expected head extract_frames, got %s", payload.Stage)
	}
	if len(payload.Remaining) != 2 {
		t.Fatalf("expected 2 remaining steps, got %d", len(payload.Remaining))
	}
	if payload.Remaining[1].Task != "job_finalize" {
		t.Fatalf("expected finalize last in chain, got %s", payload.Remaining[1].Task)
	}
}

func TestDispatchIndependentEnqueuesAllWithFinalizeLast(t *testing.T) {
	fake := &fakeEnqueuer{}
	d := newDispatcher(fake, DispatcherConfig{Mode: DispatchModeIndependent}, logger.New("development"))

	plan := testPlan("m2", "extract_frames", "detect_text_ai", "job_finalize")
	if err := d.Dispatch(context.Background(), "j2", "m2", plan); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if len(fake.tasks) != 3 {
		t.Fatalf("expected 3 enqueued tasks, got %d", len(fake.tasks))
	}

	last, err := ParseStagePayload(fake.tasks[len(fake.tasks)-1])
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if last.Stage != string(StageJobFinalize) {
		t.Fatalf("expected finalize enqueued last, got %s", last.Stage)
	}

	for i, task := range fake.tasks {
		payload, err := ParseStagePayload(task)
		if err != nil {
			t.Fatalf("parse payload %d: %v", i, err)
		}
		if len(payload.Remaining) != 0 {
			t.Fatalf("independent mode must not carry chains, task %d has %d remaining", i, len(payload.Remaining))
		}
	}
}

func TestDispatchEmptyPlanRejected(t *testing.T) {
	fake := &fakeEnqueuer{}
	d := newDispatcher(fake, DispatcherConfig{Mode: DispatchModeChain}, logger.New("development"))

	err := d.Dispatch(context.Background(), "j3", "m3", TaskPlan{})
	if !errors.Is(err, ErrEmptyPlan) {
		t.Fatalf("expected ErrEmptyPlan, got %v", err)
	}
	if len(fake.tasks) != 0 {
		t.Fatalf("expected no tasks enqueued, got %d", len(fake.tasks))
	}
}

func TestEnqueueOrchestrate(t *testing.T) {
	fake := &fakeEnqueuer{}
	d := newDispatcher(fake, DispatcherConfig{Mode: DispatchModeChain}, logger.New("development"))

	if err := d.EnqueueOrchestrate(context.Background(), "j4", "m4"); err != nil {
		t.Fatalf("enqueue orchestrate: %v", err)
	}

	if len(fake.tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(fake.tasks))
	}
	if fake.tasks[0].Type() != TaskPipelineOrchestrate {
		t.Fatalf("expected orchestrate task type, got %s", fake.tasks[0].Type())
	}

	payload, err := ParseOrchestratePayload(fake.tasks[0])
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if payload.JobID != "j4" || payload.MediaID != "m4" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}
