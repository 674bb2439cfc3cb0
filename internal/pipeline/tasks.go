package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type names on the queue.
const (
	TaskPipelineOrchestrate = "pipeline:orchestrate"
	TaskPipelineStage       = "pipeline:stage"
)

// OrchestratePayload asks the worker to run plan acquisition and dispatch for
// one verification job.
type OrchestratePayload struct {
	JobID   string `json:"job_id"`
	MediaID string `json:"media_id"`
}

// StagePayload is one stage invocation. Remaining carries the rest of the
// plan in order: when the worker finishes this stage it enqueues the head of
// Remaining, which is how ordered chains are built on a queue with no native
// chaining. Independent dispatch leaves Remaining empty.
type StagePayload struct {
	JobID     string         `json:"job_id"`
	MediaID   string         `json:"media_id"`
	Stage     string         `json:"stage"`
	Args      map[string]any `json:"args,omitempty"`
	Remaining []Step         `json:"remaining,omitempty"`
}

// NewOrchestrateTask builds the orchestration task for a job.
func NewOrchestrateTask(jobID, mediaID string) (*asynq.Task, error) {
	payload, err := json.Marshal(OrchestratePayload{JobID: jobID, MediaID: mediaID})
	if err != nil {
		return nil, fmt.Errorf("marshal orchestrate payload: %w", err)
	}
	return asynq.NewTask(TaskPipelineOrchestrate, payload), nil
}

// ParseOrchestratePayload decodes an orchestration task payload.
func ParseOrchestratePayload(t *asynq.Task) (OrchestratePayload, error) {
	var p OrchestratePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return OrchestratePayload{}, fmt.Errorf("unmarshal orchestrate payload: %w", err)
	}
	return p, nil
}

// NewStageTask builds a stage task carrying its successor chain.
func NewStageTask(p StagePayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal stage payload: %w", err)
	}
	return asynq.NewTask(TaskPipelineStage, payload), nil
}

// ParseStagePayload decodes a stage task payload.
func ParseStagePayload(t *asynq.Task) (StagePayload, error) {
	var p StagePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return StagePayload{}, fmt.Errorf("unmarshal stage payload: %w", err)
	}
	return p, nil
}
