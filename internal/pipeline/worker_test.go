package pipeline

import (
	"context"
	"testing"

	"trustlens_backend/internal/mediastore"
	"trustlens_backend/platform/logger"
)

func newTestWorker(t *testing.T) (*Worker, *fakeEnqueuer, StageDeps, *fakeLedger) {
	t.Helper()

	deps, ledger := newTestDeps(t)
	log := logger.New("development")

	fake := &fakeEnqueuer{}
	dispatcher := newDispatcher(fake, DispatcherConfig{Mode: DispatchModeChain}, log)

	w := &Worker{
		registry:   NewRegistry(deps),
		dispatcher: dispatcher,
		store:      deps.Store,
		ledger:     ledger,
		log:        log,
	}
	return w, fake, deps, ledger
}

func TestHandleStageAdvancesChain(t *testing.T) {
	w, fake, deps, _ := newTestWorker(t)
	ctx := context.Background()
	seedDocument(t, deps.Store, &mediastore.Document{MediaID: "m1", UserID: "u1", FileType: mediastore.FileTypeVideo})

	task, err := NewStageTask(StagePayload{
		JobID:   "j1",
		MediaID: "m1",
		Stage:   string(StageExtractFrames),
		Remaining: []Step{
			{Task: string(StageTranscribeAudio), Args: map[string]any{"media_id": "m1"}},
			{Task: string(StageJobFinalize), Args: map[string]any{"media_id": "m1"}},
		},
	})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}

	if err := w.handleStage(ctx, task); err != nil {
		t.Fatalf("handle stage: %v", err)
	}

	doc, err := deps.Store.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.FramesExtracted == nil || !*doc.FramesExtracted {
		t.Fatal("expected stage output written")
	}

	if len(fake.tasks) != 1 {
		t.Fatalf("expected successor enqueued, got %d tasks", len(fake.tasks))
	}
	next, err := ParseStagePayload(fake.tasks[0])
	if err != nil {
		t.Fatalf("parse successor: %v", err)
	}
	if next.Stage != string(StageTranscribeAudio) {
		t.Fatalf("expected transcribe_audio next, got %s", next.Stage)
	}
	if len(next.Remaining) != 1 || next.Remaining[0].Task != string(StageJobFinalize) {
		t.Fatalf("expected finalize to remain, got %+v", next.Remaining)
	}
}

func TestHandleStageUnknownStageSkipsButContinues(t *testing.T) {
	w, fake, _, _ := newTestWorker(t)
	ctx := context.Background()

	task, err := NewStageTask(StagePayload{
		JobID:   "j2",
		MediaID: "m2",
		Stage:   "stage_from_the_future",
		Remaining: []Step{
			{Task: string(StageJobFinalize), Args: map[string]any{"media_id": "m2"}},
		},
	})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}

	if err := w.handleStage(ctx, task); err != nil {
		t.Fatalf("handle stage: %v", err)
	}

	if len(fake.tasks) != 1 {
		t.Fatalf("expected chain to continue past unknown stage, got %d tasks", len(fake.tasks))
	}
}

func TestHandleStageFailureHaltsChainAndMarksFailed(t *testing.T) {
	w, fake, deps, ledger := newTestWorker(t)
	ctx := context.Background()
	seedDocument(t, deps.Store, &mediastore.Document{MediaID: "m3", UserID: "u1", FileType: mediastore.FileTypeText})

	// claim_extract reads the document; point the task at a missing one so
	// the unit fails. Outside an asynq handler retry metadata is absent, which
	// counts as exhausted.
	task, err := NewStageTask(StagePayload{
		JobID:   "j3",
		MediaID: "missing-media",
		Stage:   string(StageClaimExtract),
		Remaining: []Step{
			{Task: string(StageJobFinalize), Args: map[string]any{"media_id": "missing-media"}},
		},
	})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}

	if err := w.handleStage(ctx, task); err == nil {
		t.Fatal("expected stage failure to propagate")
	}

	if len(fake.tasks) != 0 {
		t.Fatalf("expected chain halted, got %d tasks", len(fake.tasks))
	}
	if len(ledger.failed) != 1 || ledger.failed[0] != "missing-media" {
		t.Fatalf("expected ledger marked failed, got %+v", ledger.failed)
	}
}
