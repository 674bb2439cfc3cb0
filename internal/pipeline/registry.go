package pipeline

import "context"

// Stage names the closed vocabulary of pipeline work. The set is fixed at
// build time so the plan normalizer can validate oracle output without
// external calls.
type Stage string

const (
	StageExtractFrames           Stage = "extract_frames"
	StageTranscribeAudio         Stage = "transcribe_audio"
	StageAuthenticityImage       Stage = "authenticity_image"
	StageAuthenticityVideo       Stage = "authenticity_video"
	StageAuthenticityAudio       Stage = "authenticity_audio"
	StageDetectTextAI            Stage = "detect_text_ai"
	StageClaimExtract            Stage = "claim_extract"
	StageClaimNormalize          Stage = "claim_normalize"
	StageClaimLookupCache        Stage = "claim_lookup_cache"
	StageRetrievalSemanticSearch Stage = "retrieval_semantic_search"
	StageVerificationEnsemble    Stage = "verification_ensemble"
	StageTruthscoreCompute       Stage = "truthscore_compute"
	StageJobFinalize             Stage = "job_finalize"
)

// stageOrder is the canonical vocabulary listing, used for prompts.
var stageOrder = []Stage{
	StageExtractFrames,
	StageTranscribeAudio,
	StageAuthenticityImage,
	StageAuthenticityVideo,
	StageAuthenticityAudio,
	StageDetectTextAI,
	StageClaimExtract,
	StageClaimNormalize,
	StageClaimLookupCache,
	StageRetrievalSemanticSearch,
	StageVerificationEnsemble,
	StageTruthscoreCompute,
	StageJobFinalize,
}

// ExecContext carries the identifiers and plan arguments for one stage run.
type ExecContext struct {
	JobID   string
	MediaID string
	Args    map[string]any
}

// ExecutionUnit is one schedulable stage body. Units mutate only the media
// document fields they own, via partial-field upserts, and must be
// convergent: re-running with the same media ID and args yields the same
// resulting field values.
type ExecutionUnit interface {
	Name() Stage
	Run(ctx context.Context, ec ExecContext) error
}

// Registry resolves stage names to execution units. The unit set is closed;
// there is no runtime registration.
type Registry struct {
	units map[Stage]ExecutionUnit
}

// NewRegistry builds the registry with every stage in the vocabulary bound
// to its execution unit.
func NewRegistry(deps StageDeps) *Registry {
	units := []ExecutionUnit{
		&extractFramesUnit{deps},
		&transcribeAudioUnit{deps},
		&authenticityImageUnit{deps},
		&authenticityVideoUnit{deps},
		&authenticityAudioUnit{deps},
		&detectTextAIUnit{deps},
		&claimExtractUnit{deps},
		&claimNormalizeUnit{deps},
		&claimLookupCacheUnit{deps},
		&retrievalSemanticSearchUnit{deps},
		&verificationEnsembleUnit{deps},
		&truthscoreComputeUnit{deps},
		&jobFinalizeUnit{deps},
	}

	byName := make(map[Stage]ExecutionUnit, len(units))
	for _, u := range units {
		byName[u.Name()] = u
	}

	return &Registry{units: byName}
}

// Lookup resolves a stage name. The second return is false for names outside
// the vocabulary.
func (r *Registry) Lookup(name string) (ExecutionUnit, bool) {
	unit, ok := r.units[Stage(name)]
	return unit, ok
}

// Contains reports whether a name belongs to the stage vocabulary.
func (r *Registry) Contains(name string) bool {
	_, ok := r.units[Stage(name)]
	return ok
}

// Stages returns the vocabulary in canonical order.
func (r *Registry) Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}
