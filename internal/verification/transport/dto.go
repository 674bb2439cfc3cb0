// Package transport defines the request and response DTOs for the
// verification HTTP surface.
package transport

import "time"

// SubmitForm carries the non-file fields of the multipart submission. The
// file itself (when present) arrives as the "file" form part.
type SubmitForm struct {
	TextInput string `form:"text_input" validate:"omitempty,max=20000"`
	ClaimText string `form:"claim_text" validate:"omitempty,max=2000"`
}

// SubmitResponse acknowledges an accepted verification job.
type SubmitResponse struct {
	JobID   string `json:"job_id"`
	MediaID string `json:"media_id"`
	Status  string `json:"status"`
}

// StatusResponse is the projected status of a running or finished job.
type StatusResponse struct {
	JobID       string     `json:"job_id"`
	MediaID     string     `json:"media_id"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	ResultReady bool       `json:"result_ready"`
	FileType    string     `json:"file_type"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ClaimResult is the claim portion of a report.
type ClaimResult struct {
	NormalizedText string `json:"normalized_text"`
	Verdict        string `json:"verdict,omitempty"`
}

// ReportResponse is the full verification report for a finished job. Signal
// fields are pointers so stages that never ran stay absent in the JSON.
type ReportResponse struct {
	JobID             string       `json:"job_id"`
	MediaID           string       `json:"media_id"`
	Status            string       `json:"status"`
	FileType          string       `json:"file_type"`
	Transcript        *string      `json:"transcript,omitempty"`
	AuthenticityScore *float64     `json:"authenticity_score,omitempty"`
	AudioAuthenticity *float64     `json:"audio_authenticity,omitempty"`
	TextAIScore       *float64     `json:"text_ai_score,omitempty"`
	Claim             *ClaimResult `json:"claim,omitempty"`
	Truthscore        *int         `json:"truthscore,omitempty"`
	Evidence          []string     `json:"evidence,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	CompletedAt       *time.Time   `json:"completed_at,omitempty"`
}

// JobSummary is one entry in a job listing.
type JobSummary struct {
	JobID       string     `json:"job_id"`
	MediaID     string     `json:"media_id"`
	FileType    string     `json:"file_type"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
