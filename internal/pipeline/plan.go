package pipeline

import (
	"encoding/json"
	"strings"

	"trustlens_backend/platform/logger"
)

// Step is one planned stage invocation.
type Step struct {
	Task string         `json:"task"`
	Args map[string]any `json:"args"`
}

// TaskPlan is the ordered stage list for one orchestration run. It is built
// fresh per invocation and discarded once dispatched, never persisted.
//
// After NormalizePlan the plan is guaranteed non-empty, every task name is
// registry-valid, every step's args carry the media ID, and the last step is
// job_finalize.
type TaskPlan struct {
	Steps []Step
}

type planPayload struct {
	Plan []Step `json:"plan"`
}

// NormalizePlan repairs and validates raw oracle output into a TaskPlan.
//
// Decoding degrades in three tiers: direct decode, then the substring from
// the first '{' to the last '}' (oracles like to wrap JSON in prose), then
// the empty plan. A job must never stall because the oracle was verbose.
func NormalizePlan(raw, mediaID string, reg *Registry, log *logger.Logger) TaskPlan {
	payload := decodePlanPayload(raw, log)

	steps := make([]Step, 0, len(payload.Plan)+1)
	for _, step := range payload.Plan {
		if !reg.Contains(step.Task) {
			log.Warn("plan: dropping unknown stage", "task", step.Task, "media_id", mediaID)
			continue
		}

		if step.Args == nil {
			step.Args = map[string]any{}
		}
		if _, ok := step.Args["media_id"]; !ok {
			step.Args["media_id"] = mediaID
		}

		steps = append(steps, step)
	}

	// Every invocation must reach a terminal state regardless of planner
	// behavior.
	if len(steps) == 0 || steps[len(steps)-1].Task != string(StageJobFinalize) {
		steps = append(steps, Step{
			Task: string(StageJobFinalize),
			Args: map[string]any{"media_id": mediaID},
		})
	}

	return TaskPlan{Steps: steps}
}

func decodePlanPayload(raw string, log *logger.Logger) planPayload {
	var payload planPayload
	if err := json.Unmarshal([]byte(raw), &payload); err == nil {
		return payload
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		payload = planPayload{}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err == nil {
			return payload
		}
	}

	log.Warn("plan: oracle output unparsable, falling back to empty plan")
	return planPayload{}
}
