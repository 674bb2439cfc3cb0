package mediastore

import (
	"context"
	"testing"
	"time"

	"trustlens_backend/platform/apperr"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, time.Hour), mr
}

func TestInsertThenGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	created := time.Now().UTC().Truncate(time.Millisecond)
	err := store.Insert(ctx, &Document{
		MediaID:   "m1",
		UserID:    "u1",
		FileType:  FileTypeVideo,
		TextInput: "check this video",
		Status:    StatusUploaded,
		CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	doc, err := store.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.MediaID != "m1" || doc.UserID != "u1" {
		t.Fatalf("unexpected identity fields: %+v", doc)
	}
	if doc.FileType != FileTypeVideo {
		t.Fatalf("expected video file type, got %s", doc.FileType)
	}
	if doc.Status != StatusUploaded {
		t.Fatalf("expected uploaded status, got %s", doc.Status)
	}
	if !doc.CreatedAt.Equal(created) {
		t.Fatalf("created_at mismatch: %v vs %v", doc.CreatedAt, created)
	}
}

func TestInsertDuplicateIsConflict(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	doc := &Document{MediaID: "m2", UserID: "u1", FileType: FileTypeImage, Status: StatusUploaded, CreatedAt: time.Now()}
	if err := store.Insert(ctx, doc); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	err := store.Insert(ctx, doc)
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpsertTouchesOnlyNamedFields(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Insert(ctx, &Document{MediaID: "m3", UserID: "u1", FileType: FileTypeAudio, Status: StatusUploaded, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Two writers on disjoint fields.
	if err := store.Upsert(ctx, "m3", map[string]any{FieldTranscript: "hello"}); err != nil {
		t.Fatalf("upsert transcript: %v", err)
	}
	if err := store.Upsert(ctx, "m3", map[string]any{FieldAudioAuthenticity: 0.68}); err != nil {
		t.Fatalf("upsert authenticity: %v", err)
	}

	doc, err := store.Get(ctx, "m3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Transcript == nil || *doc.Transcript != "hello" {
		t.Fatalf("transcript clobbered: %+v", doc.Transcript)
	}
	if doc.AudioAuthenticity == nil || *doc.AudioAuthenticity != 0.68 {
		t.Fatalf("audio_authenticity missing: %+v", doc.AudioAuthenticity)
	}
	if doc.UserID != "u1" {
		t.Fatalf("base field clobbered: %q", doc.UserID)
	}
}

func TestUpsertRejectsMediaIDMutation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	err := store.Upsert(ctx, "m4", map[string]any{FieldMediaID: "other"})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetMissingDocumentIsNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestClaimVerdictCacheExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.CacheClaimVerdict(ctx, "the sky is blue", "Supported"); err != nil {
		t.Fatalf("cache: %v", err)
	}

	verdict, hit, err := store.LookupClaimVerdict(ctx, "the sky is blue")
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}
	if verdict != "Supported" {
		t.Fatalf("expected Supported, got %s", verdict)
	}

	mr.FastForward(2 * time.Hour)

	_, hit, err = store.LookupClaimVerdict(ctx, "the sky is blue")
	if err != nil {
		t.Fatalf("lookup after expiry: %v", err)
	}
	if hit {
		t.Fatal("expected cache entry to expire")
	}
}

func TestClaimHashIsStable(t *testing.T) {
	a := ClaimHash("water boils at 100c")
	b := ClaimHash("water boils at 100c")
	c := ClaimHash("water boils at 99c")

	if a != b {
		t.Fatal("same text must hash equal")
	}
	if a == c {
		t.Fatal("different text must hash different")
	}
	if len(a) != 64 {
		t.Fatalf("expected sha256 hex length 64, got %d", len(a))
	}
}

func TestVerificationSubDocumentRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertVerification(ctx, "m5", map[string]any{
		"evidence": []string{"source A", "source B"},
	}); err != nil {
		t.Fatalf("upsert evidence: %v", err)
	}
	if err := store.UpsertVerification(ctx, "m5", map[string]any{
		"completed": true,
	}); err != nil {
		t.Fatalf("upsert completed: %v", err)
	}

	ver, err := store.GetVerification(ctx, "m5")
	if err != nil {
		t.Fatalf("get verification: %v", err)
	}
	if len(ver.Evidence) != 2 {
		t.Fatalf("expected 2 evidence entries, got %d", len(ver.Evidence))
	}
	if !ver.Completed {
		t.Fatal("expected completed true")
	}

	// Missing sub-document decodes to the zero value, not an error.
	empty, err := store.GetVerification(ctx, "missing")
	if err != nil {
		t.Fatalf("get missing verification: %v", err)
	}
	if empty.Completed || len(empty.Evidence) != 0 {
		t.Fatalf("expected empty verification, got %+v", empty)
	}
}
