package mediastore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trustlens_backend/platform/apperr"

	"github.com/redis/go-redis/v9"
)

const (
	docKeyPrefix          = "media:"
	verificationKeyPrefix = "verification:"
	claimCacheKeyPrefix   = "claimcache:"
)

const docNotFoundMsg = "media document not found"

// Store is the media document store. All writes are partial-field upserts:
// HSET touches only the named fields, so concurrent writers of disjoint
// fields never clobber each other.
type Store struct {
	rdb           *redis.Client
	claimCacheTTL time.Duration
}

// New creates a store on an existing Redis client.
func New(rdb *redis.Client, claimCacheTTL time.Duration) *Store {
	if claimCacheTTL <= 0 {
		claimCacheTTL = 24 * time.Hour
	}
	return &Store{rdb: rdb, claimCacheTTL: claimCacheTTL}
}

// NewFromURL creates a store from a redis:// URL.
func NewFromURL(redisURL string, claimCacheTTL time.Duration) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("mediastore: parse redis url: %w", err)
	}
	return New(redis.NewClient(opt), claimCacheTTL), nil
}

// Ping verifies store connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Insert creates a new media document. The media ID is immutable once
// created; inserting over an existing document is a conflict.
func (s *Store) Insert(ctx context.Context, doc *Document) error {
	if doc.MediaID == "" {
		return apperr.Validation("media id is required")
	}

	key := docKeyPrefix + doc.MediaID
	created, err := s.rdb.HSetNX(ctx, key, FieldMediaID, encodeField(doc.MediaID)).Result()
	if err != nil {
		return fmt.Errorf("mediastore: insert %s: %w", doc.MediaID, err)
	}
	if !created {
		return apperr.Conflict("media document already exists")
	}

	fields := map[string]any{
		FieldUserID:    doc.UserID,
		FieldFileType:  string(doc.FileType),
		FieldTextInput: doc.TextInput,
		FieldClaimText: doc.ClaimText,
		FieldStatus:    doc.Status,
		FieldCreatedAt: doc.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if doc.StoragePath != "" {
		fields[FieldStoragePath] = doc.StoragePath
	}

	return s.Upsert(ctx, doc.MediaID, fields)
}

// Upsert writes the given fields onto the document, leaving all other fields
// untouched. The media ID field itself is never writable through Upsert.
func (s *Store) Upsert(ctx context.Context, mediaID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	encoded := make([]any, 0, len(fields)*2)
	for name, value := range fields {
		if name == FieldMediaID {
			return apperr.Validation("media_id is immutable")
		}
		encoded = append(encoded, name, encodeField(value))
	}

	if err := s.rdb.HSet(ctx, docKeyPrefix+mediaID, encoded...).Err(); err != nil {
		return fmt.Errorf("mediastore: upsert %s: %w", mediaID, err)
	}
	return nil
}

// Get fetches a document by media ID.
func (s *Store) Get(ctx context.Context, mediaID string) (*Document, error) {
	raw, err := s.rdb.HGetAll(ctx, docKeyPrefix+mediaID).Result()
	if err != nil {
		return nil, fmt.Errorf("mediastore: get %s: %w", mediaID, err)
	}
	if len(raw) == 0 {
		return nil, apperr.NotFound(docNotFoundMsg)
	}

	return decodeDocument(raw)
}

// UpsertVerification writes fields onto the verification sub-document for a
// media ID. Same partial-field semantics as Upsert.
func (s *Store) UpsertVerification(ctx context.Context, mediaID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	encoded := make([]any, 0, len(fields)*2)
	for name, value := range fields {
		encoded = append(encoded, name, encodeField(value))
	}

	if err := s.rdb.HSet(ctx, verificationKeyPrefix+mediaID, encoded...).Err(); err != nil {
		return fmt.Errorf("mediastore: upsert verification %s: %w", mediaID, err)
	}
	return nil
}

// GetVerification fetches the verification sub-document for a media ID.
// A missing sub-document is an empty Verification, not an error.
func (s *Store) GetVerification(ctx context.Context, mediaID string) (*Verification, error) {
	raw, err := s.rdb.HGetAll(ctx, verificationKeyPrefix+mediaID).Result()
	if err != nil {
		return nil, fmt.Errorf("mediastore: get verification %s: %w", mediaID, err)
	}

	ver := &Verification{}
	if v, ok := raw["evidence"]; ok {
		_ = json.Unmarshal([]byte(v), &ver.Evidence)
	}
	if v, ok := raw["completed"]; ok {
		_ = json.Unmarshal([]byte(v), &ver.Completed)
	}
	return ver, nil
}

// ClaimHash derives the cache key material for a normalized claim text.
func ClaimHash(normalizedText string) string {
	sum := sha256.Sum256([]byte(normalizedText))
	return hex.EncodeToString(sum[:])
}

// LookupClaimVerdict checks the claim verdict cache. A miss returns ok=false
// with no error.
func (s *Store) LookupClaimVerdict(ctx context.Context, normalizedText string) (string, bool, error) {
	verdict, err := s.rdb.Get(ctx, claimCacheKeyPrefix+ClaimHash(normalizedText)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("mediastore: claim cache lookup: %w", err)
	}
	return verdict, true, nil
}

// CacheClaimVerdict stores a verdict for a normalized claim text, bounded by
// the configured TTL.
func (s *Store) CacheClaimVerdict(ctx context.Context, normalizedText, verdict string) error {
	key := claimCacheKeyPrefix + ClaimHash(normalizedText)
	if err := s.rdb.Set(ctx, key, verdict, s.claimCacheTTL).Err(); err != nil {
		return fmt.Errorf("mediastore: claim cache set: %w", err)
	}
	return nil
}

// encodeField JSON-encodes a single hash field value. Strings become JSON
// strings so decoding is uniform across field types.
func encodeField(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return "null"
	}
	return string(data)
}

func decodeDocument(raw map[string]string) (*Document, error) {
	doc := &Document{}

	var decodeErr error
	decodeString := func(field string, dst *string) {
		if v, ok := raw[field]; ok {
			if err := json.Unmarshal([]byte(v), dst); err != nil && decodeErr == nil {
				decodeErr = fmt.Errorf("mediastore: decode field %s: %w", field, err)
			}
		}
	}

	decodeString(FieldMediaID, &doc.MediaID)
	decodeString(FieldUserID, &doc.UserID)
	decodeString(FieldStoragePath, &doc.StoragePath)
	decodeString(FieldTextInput, &doc.TextInput)
	decodeString(FieldClaimText, &doc.ClaimText)
	decodeString(FieldStatus, &doc.Status)

	var fileType string
	decodeString(FieldFileType, &fileType)
	doc.FileType = FileType(fileType)

	if v, ok := raw[FieldFramesExtracted]; ok {
		doc.FramesExtracted = new(bool)
		_ = json.Unmarshal([]byte(v), doc.FramesExtracted)
	}
	if v, ok := raw[FieldTranscript]; ok {
		doc.Transcript = new(string)
		_ = json.Unmarshal([]byte(v), doc.Transcript)
	}
	if v, ok := raw[FieldAuthenticityScore]; ok {
		doc.AuthenticityScore = new(float64)
		_ = json.Unmarshal([]byte(v), doc.AuthenticityScore)
	}
	if v, ok := raw[FieldAudioAuthenticity]; ok {
		doc.AudioAuthenticity = new(float64)
		_ = json.Unmarshal([]byte(v), doc.AudioAuthenticity)
	}
	if v, ok := raw[FieldTextAIScore]; ok {
		doc.TextAIScore = new(float64)
		_ = json.Unmarshal([]byte(v), doc.TextAIScore)
	}
	if v, ok := raw[FieldClaim]; ok {
		doc.Claim = &Claim{}
		_ = json.Unmarshal([]byte(v), doc.Claim)
	}
	if v, ok := raw[FieldClaimExtracted]; ok {
		doc.ClaimExtracted = new(bool)
		_ = json.Unmarshal([]byte(v), doc.ClaimExtracted)
	}
	if v, ok := raw[FieldTruthscore]; ok {
		doc.Truthscore = new(int)
		_ = json.Unmarshal([]byte(v), doc.Truthscore)
	}
	if v, ok := raw[FieldVerification]; ok {
		doc.Verification = &Verification{}
		_ = json.Unmarshal([]byte(v), doc.Verification)
	}

	var createdAt string
	decodeString(FieldCreatedAt, &createdAt)
	if createdAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			doc.CreatedAt = t
		}
	}

	var completedAt string
	decodeString(FieldCompletedAt, &completedAt)
	if completedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, completedAt); err == nil {
			doc.CompletedAt = &t
		}
	}

	return doc, decodeErr
}
