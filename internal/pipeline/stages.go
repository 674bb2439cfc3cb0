package pipeline

import (
	"context"
	"strings"
	"time"

	"trustlens_backend/internal/mediastore"
	"trustlens_backend/platform/logger"
)

// Ledger is the relational job ledger as seen from the pipeline. Only the
// finalize unit and the failure path touch it.
type Ledger interface {
	MarkCompletedByMediaID(ctx context.Context, mediaID string) error
	MarkFailedByMediaID(ctx context.Context, mediaID string) error
}

// StageDeps are the collaborators shared by all execution units.
type StageDeps struct {
	Store  *mediastore.Store
	Ledger Ledger
	Log    *logger.Logger
}

// Placeholder stage outputs. The real scoring backends are external to the
// orchestration engine; these bodies exist to exercise the document contract
// and stay convergent under retries.
const (
	placeholderTranscript = "transcript pending: transcription backend not attached"

	placeholderImageScore = 0.82
	placeholderVideoScore = 0.74
	placeholderAudioScore = 0.68
	placeholderTextAI     = 0.30

	verdictSupported = "Supported"
	verdictDisputed  = "Disputed"
)

// ── frame / signal extraction ────────────────────────────────────────────────

type extractFramesUnit struct{ deps StageDeps }

func (u *extractFramesUnit) Name() Stage { return StageExtractFrames }

func (u *extractFramesUnit) Run(ctx context.Context, ec ExecContext) error {
	return u.deps.Store.Upsert(ctx, ec.MediaID, map[string]any{
		mediastore.FieldFramesExtracted: true,
	})
}

type transcribeAudioUnit struct{ deps StageDeps }

func (u *transcribeAudioUnit) Name() Stage { return StageTranscribeAudio }

func (u *transcribeAudioUnit) Run(ctx context.Context, ec ExecContext) error {
	return u.deps.Store.Upsert(ctx, ec.MediaID, map[string]any{
		mediastore.FieldTranscript: placeholderTranscript,
	})
}

// ── authenticity scoring ─────────────────────────────────────────────────────

// The image and video variants intentionally share the authenticity_score
// field; a plan schedules at most one of them per artifact.

type authenticityImageUnit struct{ deps StageDeps }

func (u *authenticityImageUnit) Name() Stage { return StageAuthenticityImage }

func (u *authenticityImageUnit) Run(ctx context.Context, ec ExecContext) error {
	return u.deps.Store.Upsert(ctx, ec.MediaID, map[string]any{
		mediastore.FieldAuthenticityScore: placeholderImageScore,
	})
}

type authenticityVideoUnit struct{ deps StageDeps }

func (u *authenticityVideoUnit) Name() Stage { return StageAuthenticityVideo }

func (u *authenticityVideoUnit) Run(ctx context.Context, ec ExecContext) error {
	return u.deps.Store.Upsert(ctx, ec.MediaID, map[string]any{
		mediastore.FieldAuthenticityScore: placeholderVideoScore,
	})
}

type authenticityAudioUnit struct{ deps StageDeps }

func (u *authenticityAudioUnit) Name() Stage { return StageAuthenticityAudio }

func (u *authenticityAudioUnit) Run(ctx context.Context, ec ExecContext) error {
	return u.deps.Store.Upsert(ctx, ec.MediaID, map[string]any{
		mediastore.FieldAudioAuthenticity: placeholderAudioScore,
	})
}

type detectTextAIUnit struct{ deps StageDeps }

func (u *detectTextAIUnit) Name() Stage { return StageDetectTextAI }

func (u *detectTextAIUnit) Run(ctx context.Context, ec ExecContext) error {
	return u.deps.Store.Upsert(ctx, ec.MediaID, map[string]any{
		mediastore.FieldTextAIScore: placeholderTextAI,
	})
}

// ── claim handling ───────────────────────────────────────────────────────────

type claimExtractUnit struct{ deps StageDeps }

func (u *claimExtractUnit) Name() Stage { return StageClaimExtract }

func (u *claimExtractUnit) Run(ctx context.Context, ec ExecContext) error {
	doc, err := u.deps.Store.Get(ctx, ec.MediaID)
	if err != nil {
		return err
	}

	text := doc.ClaimText
	if text == "" {
		text = doc.TextInput
	}
	if text == "" && doc.Transcript != nil {
		text = *doc.Transcript
	}

	return u.deps.Store.Upsert(ctx, ec.MediaID, map[string]any{
		mediastore.FieldClaim:          mediastore.Claim{NormalizedText: text},
		mediastore.FieldClaimExtracted: true,
	})
}

type claimNormalizeUnit struct{ deps StageDeps }

func (u *claimNormalizeUnit) Name() Stage { return StageClaimNormalize }

func (u *claimNormalizeUnit) Run(ctx context.Context, ec ExecContext) error {
	doc, err := u.deps.Store.Get(ctx, ec.MediaID)
	if err != nil {
		return err
	}
	if doc.Claim == nil {
		u.deps.Log.StageEvent("skipped", string(u.Name()), ec.JobID, ec.MediaID)
		return nil
	}

	claim := *doc.Claim
	claim.NormalizedText = normalizeClaimText(claim.NormalizedText)

	return u.deps.Store.Upsert(ctx, ec.MediaID, map[string]any{
		mediastore.FieldClaim: claim,
	})
}

func normalizeClaimText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

type claimLookupCacheUnit struct{ deps StageDeps }

func (u *claimLookupCacheUnit) Name() Stage { return StageClaimLookupCache }

func (u *claimLookupCacheUnit) Run(ctx context.Context, ec ExecContext) error {
	doc, err := u.deps.Store.Get(ctx, ec.MediaID)
	if err != nil {
		return err
	}
	if doc.Claim == nil || doc.Claim.NormalizedText == "" {
		return nil
	}

	verdict, hit, err := u.deps.Store.LookupClaimVerdict(ctx, doc.Claim.NormalizedText)
	if err != nil {
		return err
	}
	if !hit {
		return nil
	}

	claim := *doc.Claim
	claim.LatestVerdict = verdict

	u.deps.Log.StageEvent("cache_hit", string(u.Name()), ec.JobID, ec.MediaID)
	return u.deps.Store.Upsert(ctx, ec.MediaID, map[string]any{
		mediastore.FieldClaim: claim,
	})
}

// ── retrieval and verdict ────────────────────────────────────────────────────

type retrievalSemanticSearchUnit struct{ deps StageDeps }

func (u *retrievalSemanticSearchUnit) Name() Stage { return StageRetrievalSemanticSearch }

func (u *retrievalSemanticSearchUnit) Run(ctx context.Context, ec ExecContext) error {
	return u.deps.Store.UpsertVerification(ctx, ec.MediaID, map[string]any{
		"evidence": []string{"no corroborating sources indexed"},
	})
}

type verificationEnsembleUnit struct{ deps StageDeps }

func (u *verificationEnsembleUnit) Name() Stage { return StageVerificationEnsemble }

func (u *verificationEnsembleUnit) Run(ctx context.Context, ec ExecContext) error {
	doc, err := u.deps.Store.Get(ctx, ec.MediaID)
	if err != nil {
		return err
	}

	verdict := verdictSupported
	if doc.AuthenticityScore != nil && *doc.AuthenticityScore < 0.5 {
		verdict = verdictDisputed
	}

	if doc.Claim != nil {
		claim := *doc.Claim
		claim.LatestVerdict = verdict

		if err := u.deps.Store.Upsert(ctx, ec.MediaID, map[string]any{
			mediastore.FieldClaim: claim,
		}); err != nil {
			return err
		}

		if claim.NormalizedText != "" {
			if err := u.deps.Store.CacheClaimVerdict(ctx, claim.NormalizedText, verdict); err != nil {
				return err
			}
		}
	}

	return u.deps.Store.UpsertVerification(ctx, ec.MediaID, map[string]any{
		"completed": true,
	})
}

type truthscoreComputeUnit struct{ deps StageDeps }

func (u *truthscoreComputeUnit) Name() Stage { return StageTruthscoreCompute }

func (u *truthscoreComputeUnit) Run(ctx context.Context, ec ExecContext) error {
	doc, err := u.deps.Store.Get(ctx, ec.MediaID)
	if err != nil {
		return err
	}

	score := 50.0
	if doc.AuthenticityScore != nil {
		score += (*doc.AuthenticityScore - 0.5) * 60
	}
	if doc.TextAIScore != nil {
		score -= *doc.TextAIScore * 10
	}
	if doc.Claim != nil {
		switch doc.Claim.LatestVerdict {
		case verdictSupported:
			score += 20
		case verdictDisputed:
			score -= 20
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return u.deps.Store.Upsert(ctx, ec.MediaID, map[string]any{
		mediastore.FieldTruthscore: int(score),
	})
}

// ── finalize ─────────────────────────────────────────────────────────────────

// jobFinalizeUnit is the only unit that touches the relational ledger. Its
// terminal writes converge, so a duplicate finalize re-applies the same
// values instead of erroring.
type jobFinalizeUnit struct{ deps StageDeps }

func (u *jobFinalizeUnit) Name() Stage { return StageJobFinalize }

func (u *jobFinalizeUnit) Run(ctx context.Context, ec ExecContext) error {
	doc, err := u.deps.Store.Get(ctx, ec.MediaID)
	if err != nil {
		return err
	}

	ver, err := u.deps.Store.GetVerification(ctx, ec.MediaID)
	if err != nil {
		return err
	}

	fields := map[string]any{
		mediastore.FieldStatus:       mediastore.StatusCompleted,
		mediastore.FieldVerification: ver,
	}
	if doc.CompletedAt == nil {
		fields[mediastore.FieldCompletedAt] = time.Now().UTC().Format(time.RFC3339Nano)
	}

	if err := u.deps.Store.Upsert(ctx, ec.MediaID, fields); err != nil {
		return err
	}

	return u.deps.Ledger.MarkCompletedByMediaID(ctx, ec.MediaID)
}
