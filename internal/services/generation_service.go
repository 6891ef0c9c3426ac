package services

import (
	"context"
	"fmt"
	"log/slog"

	"promogen/internal/generation"
)

// GenerationService fronts the generation orchestrator for the transport
// layer. It adds context-aware logging and turns the orchestrator's
// boolean mutations into errors the error handler can map to status codes.
type GenerationService struct {
	orchestrator *generation.Orchestrator
	logger       *slog.Logger
}

// NewGenerationService creates a new generation service.
func NewGenerationService(orchestrator *generation.Orchestrator, logger *slog.Logger) (*GenerationService, error) {
	if orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationService{
		orchestrator: orchestrator,
		logger:       logger,
	}, nil
}

// Submit validates and admits a new generation job. Validation and
// capacity rejections come back as generation errors; on success the
// pipeline is already running when Submit returns.
func (s *GenerationService) Submit(ctx context.Context, image []byte, opts generation.Options) (*generation.SubmitResult, error) {
	result, err := s.orchestrator.Submit(image, opts)
	if err != nil {
		s.logger.WarnContext(ctx, "job submission rejected",
			slog.String("error", err.Error()))
		return nil, err
	}

	s.logger.InfoContext(ctx, "job accepted",
		slog.String("job_id", result.JobID),
		slog.Int("estimated_seconds", result.EstimatedSeconds),
		slog.Int("image_bytes", len(image)))
	return result, nil
}

// GetJob returns a snapshot of one job.
func (s *GenerationService) GetJob(ctx context.Context, jobID string) (*generation.Job, error) {
	return s.orchestrator.GetStatus(jobID)
}

// ListJobs returns snapshots of every job currently held.
func (s *GenerationService) ListJobs(ctx context.Context) []*generation.Job {
	return s.orchestrator.ListJobs()
}

// CancelJob requests cancellation of a running job. Unknown jobs return
// ErrJobNotFound; jobs already terminal return ErrJobTerminal. The Failed
// transition itself lands asynchronously once the pipeline observes the
// signal.
func (s *GenerationService) CancelJob(ctx context.Context, jobID string) error {
	job, err := s.orchestrator.GetStatus(jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return generation.ErrJobTerminal
	}
	if !s.orchestrator.CancelJob(jobID) {
		// The job finished between the snapshot and the signal.
		return generation.ErrJobTerminal
	}

	s.logger.InfoContext(ctx, "job cancellation requested",
		slog.String("job_id", jobID),
		slog.String("status", string(job.Status)))
	return nil
}

// DeleteJob removes a job, cancelling it first when it is still running.
// Unknown jobs return ErrJobNotFound.
func (s *GenerationService) DeleteJob(ctx context.Context, jobID string) error {
	if !s.orchestrator.DeleteJob(jobID) {
		return generation.ErrJobNotFound
	}

	s.logger.InfoContext(ctx, "job deleted", slog.String("job_id", jobID))
	return nil
}

// WaitForCompletion blocks until the job reaches a terminal status or ctx
// expires. A job that finished in Failed is returned together with a
// job_failed error.
func (s *GenerationService) WaitForCompletion(ctx context.Context, jobID string) (*generation.Job, error) {
	return s.orchestrator.WaitForCompletion(ctx, jobID)
}

// SystemStatus reports current orchestrator load.
func (s *GenerationService) SystemStatus(ctx context.Context) generation.SystemStatus {
	return s.orchestrator.SystemStatus()
}
