package pipeline

import (
	"testing"

	"trustlens_backend/platform/logger"
)

func testRegistry() *Registry {
	return NewRegistry(StageDeps{Log: logger.New("development")})
}

func TestNormalizePlanProseWrappedJSON(t *testing.T) {
	raw := `Sure! Here is the plan you asked for:
{"plan":[{"task":"extract_frames","args":{}},{"task":"job_finalize","args":{}}]}
Let me know if you need anything else.`

	plan := NormalizePlan(raw, "media-1", testRegistry(), logger.New("development"))

	if len(plan.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(plan.Steps))
	}
	if plan.Steps[0].Task != "extract_frames" {
		t.Fatalf("expected first step extract_frames, got %s", plan.Steps[0].Task)
	}
	if plan.Steps[1].Task != "job_finalize" {
		t.Fatalf("expected last step job_finalize, got %s", plan.Steps[1].Task)
	}
}

func TestNormalizePlanGarbageFallsBackToFinalize(t *testing.T) {
	plan := NormalizePlan("complete nonsense, no braces at all", "media-2", testRegistry(), logger.New("development"))

	if len(plan.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(plan.Steps))
	}
	if plan.Steps[0].Task != string(StageJobFinalize) {
		t.Fatalf("expected job_finalize, got %s", plan.Steps[0].Task)
	}
	if plan.Steps[0].Args["media_id"] != "media-2" {
		t.Fatalf("expected media_id injected, got %v", plan.Steps[0].Args)
	}
}

func TestNormalizePlanDropsUnknownStages(t *testing.T) {
	raw := `{"plan":[
		{"task":"transcribe_audio","args":{}},
		{"task":"summon_dragons","args":{}},
		{"task":"truthscore_compute","args":{}},
		{"task":"job_finalize","args":{}}
	]}`

	plan := NormalizePlan(raw, "media-3", testRegistry(), logger.New("development"))

	if len(plan.Steps) != 3 {
		t.Fatalf("expected 3 steps after dropping unknown, got %d", len(plan.Steps))
	}
	want := []string{"transcribe_audio", "truthscore_compute", "job_finalize"}
	for i, task := range want {
		if plan.Steps[i].Task != task {
			t.Fatalf("step %d: expected %s, got %s", i, task, plan.Steps[i].Task)
		}
	}
}

func TestNormalizePlanInjectsMediaIDWithoutOverwriting(t *testing.T) {
	raw := `{"plan":[
		{"task":"extract_frames"},
		{"task":"detect_text_ai","args":{"media_id":"explicit-other"}}
	]}`

	plan := NormalizePlan(raw, "media-4", testRegistry(), logger.New("development"))

	if plan.Steps[0].Args["media_id"] != "media-4" {
		t.Fatalf("expected media_id filled on nil args, got %v", plan.Steps[0].Args)
	}
	if plan.Steps[1].Args["media_id"] != "explicit-other" {
		t.Fatalf("expected explicit media_id preserved, got %v", plan.Steps[1].Args)
	}
}

func TestNormalizePlanAppendsFinalizeWhenMissing(t *testing.T) {
	raw := `{"plan":[{"task":"claim_extract","args":{}},{"task":"claim_normalize","args":{}}]}`

	plan := NormalizePlan(raw, "media-5", testRegistry(), logger.New("development"))

	last := plan.Steps[len(plan.Steps)-1]
	if last.Task != string(StageJobFinalize) {
		t.Fatalf("expected appended job_finalize, got %s", last.Task)
	}
	if len(plan.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(plan.Steps))
	}
}

func TestNormalizePlanFinalizeNotDuplicated(t *testing.T) {
	raw := `{"plan":[{"task":"job_finalize","args":{}}]}`

	plan := NormalizePlan(raw, "media-6", testRegistry(), logger.New("development"))

	if len(plan.Steps) != 1 {
		t.Fatalf("expected finalize not duplicated, got %d steps", len(plan.Steps))
	}
}
