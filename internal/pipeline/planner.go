package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"trustlens_backend/internal/mediastore"
	"trustlens_backend/platform/logger"
)

// Oracle is the external planning service. Implementations live under
// platform/ai and are selected by configuration.
type Oracle interface {
	// Complete submits a natural-language instruction and returns the raw
	// completion text, which is expected — not trusted — to contain JSON.
	Complete(ctx context.Context, prompt string) (string, error)
}

// Planner turns a media document snapshot into a validated TaskPlan by way
// of the oracle and the plan normalizer.
type Planner struct {
	oracle   Oracle
	registry *Registry
	log      *logger.Logger
}

// NewPlanner creates a planner.
func NewPlanner(oracle Oracle, registry *Registry, log *logger.Logger) *Planner {
	return &Planner{oracle: oracle, registry: registry, log: log}
}

// GeneratePlan builds the planning prompt for the document, invokes the
// oracle, and normalizes whatever comes back. Oracle transport failures are
// fatal for this invocation and wrap ErrOracleUnavailable; unparsable output
// is not an error and degrades through the repair path instead.
func (p *Planner) GeneratePlan(ctx context.Context, doc *mediastore.Document) (TaskPlan, error) {
	raw, err := p.oracle.Complete(ctx, p.BuildPrompt(doc))
	if err != nil {
		return TaskPlan{}, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}

	return NormalizePlan(raw, doc.MediaID, p.registry, p.log), nil
}

// BuildPrompt renders the planning instruction: a structured description of
// the media document plus the rules constraining the oracle to JSON-only
// output over the registry vocabulary.
func (p *Planner) BuildPrompt(doc *mediastore.Document) string {
	metadata := map[string]any{
		"media_id":           doc.MediaID,
		"file_type":          string(doc.FileType),
		"text_input_present": doc.TextInput != "",
		"claim_text_present": doc.ClaimText != "",
	}
	metadataJSON, _ := json.MarshalIndent(metadata, "", "  ")

	var tasks strings.Builder
	for _, stage := range p.registry.Stages() {
		tasks.WriteString("   - ")
		tasks.WriteString(string(stage))
		tasks.WriteString("\n")
	}

	return fmt.Sprintf(`You are the chief orchestration agent for a media verification pipeline.

Your job is to produce a JSON-only task plan.

MEDIA INFORMATION:
%s

RULES:
1. Output ONLY JSON (no explanation).
2. JSON format: {"plan":[{"task":"task_name","args":{}}]}
3. Order tasks so that claim extraction precedes claim normalization and
   verification, and job_finalize comes last.
4. Tasks available:
%s`, metadataJSON, tasks.String())
}
