package pipeline

import (
	"context"
	"testing"
	"time"

	"trustlens_backend/internal/mediastore"
	"trustlens_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeLedger struct {
	completed []string
	failed    []string
}

func (f *fakeLedger) MarkCompletedByMediaID(_ context.Context, mediaID string) error {
	f.completed = append(f.completed, mediaID)
	return nil
}

func (f *fakeLedger) MarkFailedByMediaID(_ context.Context, mediaID string) error {
	f.failed = append(f.failed, mediaID)
	return nil
}

func newTestStore(t *testing.T) *mediastore.Store {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mediastore.New(client, time.Hour)
}

func seedDocument(t *testing.T, store *mediastore.Store, doc *mediastore.Document) {
	t.Helper()

	if doc.Status == "" {
		doc.Status = mediastore.StatusUploaded
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if err := store.Insert(context.Background(), doc); err != nil {
		t.Fatalf("seed document: %v", err)
	}
}

func newTestDeps(t *testing.T) (StageDeps, *fakeLedger) {
	t.Helper()

	ledger := &fakeLedger{}
	deps := StageDeps{
		Store:  newTestStore(t),
		Ledger: ledger,
		Log:    logger.New("development"),
	}
	return deps, ledger
}

func TestExtractFramesIsIdempotent(t *testing.T) {
	deps, _ := newTestDeps(t)
	ctx := context.Background()
	seedDocument(t, deps.Store, &mediastore.Document{MediaID: "m1", UserID: "u1", FileType: mediastore.FileTypeVideo})

	unit := &extractFramesUnit{deps}
	for i := 0; i < 3; i++ {
		if err := unit.Run(ctx, ExecContext{JobID: "j1", MediaID: "m1"}); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	doc, err := deps.Store.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.FramesExtracted == nil || !*doc.FramesExtracted {
		t.Fatal("expected frames_extracted true")
	}
}

func TestClaimExtractFallsBackToTranscript(t *testing.T) {
	deps, _ := newTestDeps(t)
	ctx := context.Background()

	seedDocument(t, deps.Store, &mediastore.Document{
		MediaID:  "m2",
		UserID:   "u1",
		FileType: mediastore.FileTypeAudio,
	})
	if err := (&transcribeAudioUnit{deps}).Run(ctx, ExecContext{MediaID: "m2"}); err != nil {
		t.Fatalf("transcribe: %v", err)
	}

	if err := (&claimExtractUnit{deps}).Run(ctx, ExecContext{MediaID: "m2"}); err != nil {
		t.Fatalf("claim extract: %v", err)
	}

	doc, err := deps.Store.Get(ctx, "m2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Claim == nil || doc.Claim.NormalizedText != placeholderTranscript {
		t.Fatalf("expected claim from transcript, got %+v", doc.Claim)
	}
	if doc.ClaimExtracted == nil || !*doc.ClaimExtracted {
		t.Fatal("expected claim_extracted true")
	}
}

func TestClaimNormalizeCollapsesWhitespaceAndCase(t *testing.T) {
	deps, _ := newTestDeps(t)
	ctx := context.Background()

	seedDocument(t, deps.Store, &mediastore.Document{
		MediaID:   "m3",
		UserID:    "u1",
		FileType:  mediastore.FileTypeText,
		ClaimText: "  The MOON is   made of CHEESE ",
	})

	if err := (&claimExtractUnit{deps}).Run(ctx, ExecContext{MediaID: "m3"}); err != nil {
		t.Fatalf("claim extract: %v", err)
	}
	if err := (&claimNormalizeUnit{deps}).Run(ctx, ExecContext{MediaID: "m3"}); err != nil {
		t.Fatalf("claim normalize: %v", err)
	}

	doc, err := deps.Store.Get(ctx, "m3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := "the moon is made of cheese"
	if doc.Claim == nil || doc.Claim.NormalizedText != want {
		t.Fatalf("expected %q, got %+v", want, doc.Claim)
	}
}

func TestClaimLookupCacheAppliesCachedVerdict(t *testing.T) {
	deps, _ := newTestDeps(t)
	ctx := context.Background()

	seedDocument(t, deps.Store, &mediastore.Document{
		MediaID:   "m4",
		UserID:    "u1",
		FileType:  mediastore.FileTypeText,
		ClaimText: "water boils at 100c",
	})
	if err := (&claimExtractUnit{deps}).Run(ctx, ExecContext{MediaID: "m4"}); err != nil {
		t.Fatalf("claim extract: %v", err)
	}
	if err := deps.Store.CacheClaimVerdict(ctx, "water boils at 100c", verdictSupported); err != nil {
		t.Fatalf("cache verdict: %v", err)
	}

	if err := (&claimLookupCacheUnit{deps}).Run(ctx, ExecContext{MediaID: "m4"}); err != nil {
		t.Fatalf("lookup cache: %v", err)
	}

	doc, err := deps.Store.Get(ctx, "m4")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Claim == nil || doc.Claim.LatestVerdict != verdictSupported {
		t.Fatalf("expected cached verdict applied, got %+v", doc.Claim)
	}
}

func TestVerificationEnsembleVerdictAndCache(t *testing.T) {
	deps, _ := newTestDeps(t)
	ctx := context.Background()

	seedDocument(t, deps.Store, &mediastore.Document{
		MediaID:   "m5",
		UserID:    "u1",
		FileType:  mediastore.FileTypeImage,
		ClaimText: "this photo is real",
	})
	if err := (&authenticityImageUnit{deps}).Run(ctx, ExecContext{MediaID: "m5"}); err != nil {
		t.Fatalf("authenticity: %v", err)
	}
	if err := (&claimExtractUnit{deps}).Run(ctx, ExecContext{MediaID: "m5"}); err != nil {
		t.Fatalf("claim extract: %v", err)
	}

	if err := (&verificationEnsembleUnit{deps}).Run(ctx, ExecContext{MediaID: "m5"}); err != nil {
		t.Fatalf("ensemble: %v", err)
	}

	doc, err := deps.Store.Get(ctx, "m5")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Claim == nil || doc.Claim.LatestVerdict != verdictSupported {
		t.Fatalf("expected Supported verdict, got %+v", doc.Claim)
	}

	verdict, hit, err := deps.Store.LookupClaimVerdict(ctx, doc.Claim.NormalizedText)
	if err != nil || !hit {
		t.Fatalf("expected verdict cached, hit=%v err=%v", hit, err)
	}
	if verdict != verdictSupported {
		t.Fatalf("expected cached Supported, got %s", verdict)
	}

	ver, err := deps.Store.GetVerification(ctx, "m5")
	if err != nil {
		t.Fatalf("get verification: %v", err)
	}
	if !ver.Completed {
		t.Fatal("expected verification completed")
	}
}

func TestVerificationEnsembleDisputesLowAuthenticity(t *testing.T) {
	deps, _ := newTestDeps(t)
	ctx := context.Background()

	seedDocument(t, deps.Store, &mediastore.Document{
		MediaID:   "m6",
		UserID:    "u1",
		FileType:  mediastore.FileTypeImage,
		ClaimText: "this photo is real",
	})
	if err := deps.Store.Upsert(ctx, "m6", map[string]any{
		mediastore.FieldAuthenticityScore: 0.2,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := (&claimExtractUnit{deps}).Run(ctx, ExecContext{MediaID: "m6"}); err != nil {
		t.Fatalf("claim extract: %v", err)
	}

	if err := (&verificationEnsembleUnit{deps}).Run(ctx, ExecContext{MediaID: "m6"}); err != nil {
		t.Fatalf("ensemble: %v", err)
	}

	doc, err := deps.Store.Get(ctx, "m6")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Claim == nil || doc.Claim.LatestVerdict != verdictDisputed {
		t.Fatalf("expected Disputed verdict, got %+v", doc.Claim)
	}
}

func TestTruthscoreComputeClampsToRange(t *testing.T) {
	deps, _ := newTestDeps(t)
	ctx := context.Background()

	seedDocument(t, deps.Store, &mediastore.Document{MediaID: "m7", UserID: "u1", FileType: mediastore.FileTypeImage})
	if err := deps.Store.Upsert(ctx, "m7", map[string]any{
		mediastore.FieldAuthenticityScore: 0.05,
		mediastore.FieldClaim:             mediastore.Claim{NormalizedText: "x", LatestVerdict: verdictDisputed},
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := (&truthscoreComputeUnit{deps}).Run(ctx, ExecContext{MediaID: "m7"}); err != nil {
		t.Fatalf("truthscore: %v", err)
	}

	doc, err := deps.Store.Get(ctx, "m7")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Truthscore == nil {
		t.Fatal("expected truthscore present")
	}
	if *doc.Truthscore < 0 || *doc.Truthscore > 100 {
		t.Fatalf("truthscore out of range: %d", *doc.Truthscore)
	}
}

func TestTruthscoreComputeIsDeterministic(t *testing.T) {
	deps, _ := newTestDeps(t)
	ctx := context.Background()

	seedDocument(t, deps.Store, &mediastore.Document{MediaID: "m8", UserID: "u1", FileType: mediastore.FileTypeImage})
	if err := deps.Store.Upsert(ctx, "m8", map[string]any{
		mediastore.FieldAuthenticityScore: placeholderImageScore,
		mediastore.FieldTextAIScore:       placeholderTextAI,
		mediastore.FieldClaim:             mediastore.Claim{NormalizedText: "x", LatestVerdict: verdictSupported},
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	unit := &truthscoreComputeUnit{deps}
	if err := unit.Run(ctx, ExecContext{MediaID: "m8"}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, err := deps.Store.Get(ctx, "m8")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := unit.Run(ctx, ExecContext{MediaID: "m8"}); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second, err := deps.Store.Get(ctx, "m8")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if *first.Truthscore != *second.Truthscore {
		t.Fatalf("truthscore diverged: %d vs %d", *first.Truthscore, *second.Truthscore)
	}
}

func TestJobFinalizeConvergesUnderRetry(t *testing.T) {
	deps, ledger := newTestDeps(t)
	ctx := context.Background()

	seedDocument(t, deps.Store, &mediastore.Document{MediaID: "m9", UserID: "u1", FileType: mediastore.FileTypeImage})
	if err := deps.Store.UpsertVerification(ctx, "m9", map[string]any{"completed": true}); err != nil {
		t.Fatalf("upsert verification: %v", err)
	}

	unit := &jobFinalizeUnit{deps}
	if err := unit.Run(ctx, ExecContext{JobID: "j9", MediaID: "m9"}); err != nil {
		t.Fatalf("first finalize: %v", err)
	}

	first, err := deps.Store.Get(ctx, "m9")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if first.Status != mediastore.StatusCompleted {
		t.Fatalf("expected completed status, got %s", first.Status)
	}
	if first.CompletedAt == nil {
		t.Fatal("expected completed_at set")
	}

	if err := unit.Run(ctx, ExecContext{JobID: "j9", MediaID: "m9"}); err != nil {
		t.Fatalf("second finalize: %v", err)
	}
	second, err := deps.Store.Get(ctx, "m9")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if !first.CompletedAt.Equal(*second.CompletedAt) {
		t.Fatalf("completed_at changed on retry: %v vs %v", first.CompletedAt, second.CompletedAt)
	}
	if len(ledger.completed) != 2 {
		t.Fatalf("expected ledger marked on each finalize, got %d", len(ledger.completed))
	}
	if second.Verification == nil || !second.Verification.Completed {
		t.Fatal("expected verification copied onto document")
	}
}
