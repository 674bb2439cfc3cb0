// Package service implements the verification job workflow: submission,
// status projection, and report assembly.
package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"trustlens_backend/internal/adapters/storage"
	"trustlens_backend/internal/mediastore"
	"trustlens_backend/internal/verification/repository"
	"trustlens_backend/internal/verification/transport"
	"trustlens_backend/platform/apperr"
	"trustlens_backend/platform/logger"

	"github.com/google/uuid"
)

// OrchestrateEnqueuer places the plan-acquisition task for a new job.
type OrchestrateEnqueuer interface {
	EnqueueOrchestrate(ctx context.Context, jobID, mediaID string) error
}

// Service coordinates the verification job workflow.
type Service struct {
	repo      *repository.Repository
	store     *mediastore.Store
	files     storage.StorageService
	bucket    string
	enqueuer  OrchestrateEnqueuer
	log       *logger.Logger
}

// New creates the verification service.
func New(
	repo *repository.Repository,
	store *mediastore.Store,
	files storage.StorageService,
	bucket string,
	enqueuer OrchestrateEnqueuer,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:     repo,
		store:    store,
		files:    files,
		bucket:   bucket,
		enqueuer: enqueuer,
		log:      log,
	}
}

// SubmitInput is one submission: an optional media file plus optional text.
// At least one of File or TextInput must be present.
type SubmitInput struct {
	TextInput string
	ClaimText string

	File *FileInput
}

// FileInput describes the uploaded media file.
type FileInput struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Submit accepts a verification request: upload the artifact, create the
// media document and the ledger row, then enqueue orchestration. The job is
// accepted once the orchestrate task is on the queue; everything after that
// happens in the worker.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, in SubmitInput) (transport.SubmitResponse, error) {
	if in.File == nil && in.TextInput == "" {
		return transport.SubmitResponse{}, apperr.Validation("either a file or text_input is required")
	}

	fileType := string(mediastore.FileTypeText)
	storagePath := ""

	if in.File != nil {
		if err := s.files.ValidateContentType(in.File.ContentType); err != nil {
			return transport.SubmitResponse{}, apperr.Validation(err.Error())
		}
		if err := s.files.ValidateFileSize(in.File.Size); err != nil {
			return transport.SubmitResponse{}, apperr.Validation(err.Error())
		}

		kind := storage.MediaKind(in.File.ContentType)
		if kind == "" {
			return transport.SubmitResponse{}, apperr.Validation("unsupported media type")
		}
		fileType = kind
	}

	jobID := uuid.New()
	mediaID := uuid.New().String()
	now := time.Now().UTC()

	if in.File != nil {
		key, err := s.files.UploadFile(ctx, s.bucket, "uploads/"+mediaID, in.File.Name, in.File.ContentType, in.File.Reader, in.File.Size)
		if err != nil {
			return transport.SubmitResponse{}, fmt.Errorf("upload media file: %w", err)
		}
		storagePath = key
	}

	doc := &mediastore.Document{
		MediaID:     mediaID,
		UserID:      userID.String(),
		FileType:    mediastore.FileType(fileType),
		StoragePath: storagePath,
		TextInput:   in.TextInput,
		ClaimText:   in.ClaimText,
		Status:      mediastore.StatusUploaded,
		CreatedAt:   now,
	}
	if err := s.store.Insert(ctx, doc); err != nil {
		return transport.SubmitResponse{}, err
	}

	job := repository.Job{
		ID:        jobID,
		UserID:    userID,
		MediaID:   mediaID,
		FileType:  fileType,
		Status:    repository.StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.repo.Create(ctx, job); err != nil {
		return transport.SubmitResponse{}, err
	}

	if err := s.enqueuer.EnqueueOrchestrate(ctx, jobID.String(), mediaID); err != nil {
		return transport.SubmitResponse{}, fmt.Errorf("enqueue orchestration: %w", err)
	}

	s.log.Info("verification job submitted",
		"job_id", jobID.String(),
		"media_id", mediaID,
		"file_type", fileType,
	)

	return transport.SubmitResponse{
		JobID:   jobID.String(),
		MediaID: mediaID,
		Status:  repository.StatusProcessing,
	}, nil
}

// Report assembles the full verification report for a job.
func (s *Service) Report(ctx context.Context, jobID, userID uuid.UUID) (transport.ReportResponse, error) {
	job, err := s.repo.GetByID(ctx, jobID, userID)
	if err != nil {
		return transport.ReportResponse{}, err
	}

	doc, err := s.store.Get(ctx, job.MediaID)
	if err != nil {
		return transport.ReportResponse{}, err
	}

	report := transport.ReportResponse{
		JobID:             job.ID.String(),
		MediaID:           job.MediaID,
		Status:            doc.Status,
		FileType:          string(doc.FileType),
		Transcript:        doc.Transcript,
		AuthenticityScore: doc.AuthenticityScore,
		AudioAuthenticity: doc.AudioAuthenticity,
		TextAIScore:       doc.TextAIScore,
		Truthscore:        doc.Truthscore,
		CreatedAt:         job.CreatedAt,
		CompletedAt:       doc.CompletedAt,
	}
	if doc.Claim != nil {
		report.Claim = &transport.ClaimResult{
			NormalizedText: doc.Claim.NormalizedText,
			Verdict:        doc.Claim.LatestVerdict,
		}
	}
	if doc.Verification != nil {
		report.Evidence = doc.Verification.Evidence
	}

	return report, nil
}

// List returns the caller's recent jobs.
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit int) ([]transport.JobSummary, error) {
	jobs, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]transport.JobSummary, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, transport.JobSummary{
			JobID:       job.ID.String(),
			MediaID:     job.MediaID,
			FileType:    job.FileType,
			Status:      job.Status,
			CreatedAt:   job.CreatedAt,
			CompletedAt: job.CompletedAt,
		})
	}
	return out, nil
}
