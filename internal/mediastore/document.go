// Package mediastore holds the per-artifact media document: the mutable record
// that pipeline stages accumulate their outputs on. Documents live in Redis as
// one hash per media ID with one JSON-encoded value per field, so writers can
// upsert individual fields without touching the rest of the document.
package mediastore

import "time"

// FileType classifies the uploaded artifact.
type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeVideo FileType = "video"
	FileTypeAudio FileType = "audio"
	FileTypeText  FileType = "text"
)

// Document statuses. The status field is convention-constrained, not enforced.
const (
	StatusUploaded        = "uploaded"
	StatusWorkflowStarted = "workflow_started"
	StatusCompleted       = "completed"
	StatusFailed          = "failed"
)

// Field names within a media document hash. Each pipeline stage writes only
// the fields it owns; two stages sharing a field is last-write-wins and must
// be an intentional plan choice (the authenticity variants share
// authenticity_score on purpose).
const (
	FieldMediaID           = "media_id"
	FieldUserID            = "user_id"
	FieldFileType          = "file_type"
	FieldStoragePath       = "storage_path"
	FieldTextInput         = "text_input"
	FieldClaimText         = "claim_text"
	FieldStatus            = "status"
	FieldFramesExtracted   = "frames_extracted"
	FieldTranscript        = "transcript"
	FieldAuthenticityScore = "authenticity_score"
	FieldAudioAuthenticity = "audio_authenticity"
	FieldTextAIScore       = "text_ai_score"
	FieldClaim             = "claim"
	FieldClaimExtracted    = "claim_extracted"
	FieldTruthscore        = "truthscore"
	FieldVerification      = "verification"
	FieldCreatedAt         = "created_at"
	FieldCompletedAt       = "completed_at"
)

// Claim is the factual claim extracted from the artifact.
type Claim struct {
	NormalizedText string `json:"normalized_text"`
	LatestVerdict  string `json:"latest_verdict,omitempty"`
}

// Verification is the evidence sub-document built during retrieval and
// ensemble verification. It lives under its own key while the pipeline runs
// and is copied onto the document by the finalize stage.
type Verification struct {
	Evidence  []string `json:"evidence,omitempty"`
	Completed bool     `json:"completed,omitempty"`
}

// Document is the media document schema. Optional fields are pointers so the
// store can distinguish "absent" from zero values; stage outputs start absent
// and appear as the pipeline progresses.
type Document struct {
	MediaID     string
	UserID      string
	FileType    FileType
	StoragePath string
	TextInput   string
	ClaimText   string
	Status      string

	FramesExtracted   *bool
	Transcript        *string
	AuthenticityScore *float64
	AudioAuthenticity *float64
	TextAIScore       *float64
	Claim             *Claim
	ClaimExtracted    *bool
	Truthscore        *int
	Verification      *Verification

	CreatedAt   time.Time
	CompletedAt *time.Time
}
