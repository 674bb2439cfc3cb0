package service

import (
	"context"

	"trustlens_backend/internal/mediastore"
	"trustlens_backend/internal/verification/transport"

	"github.com/google/uuid"
)

// progressSignals are the document fields that mark pipeline progress. A
// signal counts only when its value is meaningful (true, non-empty, non-zero),
// not merely written. Each counted signal contributes an equal share; a
// terminal completed status overrides the count and reports 100.
var progressSignals = []func(*mediastore.Document) bool{
	func(d *mediastore.Document) bool { return d.FramesExtracted != nil && *d.FramesExtracted },
	func(d *mediastore.Document) bool { return d.Transcript != nil && *d.Transcript != "" },
	func(d *mediastore.Document) bool { return d.AuthenticityScore != nil && *d.AuthenticityScore != 0 },
	func(d *mediastore.Document) bool { return d.ClaimExtracted != nil && *d.ClaimExtracted },
	func(d *mediastore.Document) bool { return d.Truthscore != nil && *d.Truthscore != 0 },
}

// ProjectStatus derives the job's externally visible status from the ledger
// row and the media document. Progress is a heuristic over stage outputs, not
// a plan position: plans differ per artifact, so the projector counts what
// has materialized rather than what was scheduled.
func (s *Service) ProjectStatus(ctx context.Context, jobID, userID uuid.UUID) (transport.StatusResponse, error) {
	job, err := s.repo.GetByID(ctx, jobID, userID)
	if err != nil {
		return transport.StatusResponse{}, err
	}

	doc, err := s.store.Get(ctx, job.MediaID)
	if err != nil {
		return transport.StatusResponse{}, err
	}

	status := doc.Status
	if status == "" {
		status = job.Status
	}

	return transport.StatusResponse{
		JobID:       job.ID.String(),
		MediaID:     job.MediaID,
		Status:      status,
		Progress:    projectProgress(doc),
		ResultReady: job.ResultReady,
		FileType:    string(doc.FileType),
		CreatedAt:   job.CreatedAt,
		CompletedAt: doc.CompletedAt,
	}, nil
}

func projectProgress(doc *mediastore.Document) int {
	if doc.Status == mediastore.StatusCompleted {
		return 100
	}

	present := 0
	for _, signal := range progressSignals {
		if signal(doc) {
			present++
		}
	}
	return present * 100 / len(progressSignals)
}
