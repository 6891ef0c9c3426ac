package http

import (
	"context"

	"promogen/internal/generation"
)

// GenerationServiceInterface defines the interface for the generation service
type GenerationServiceInterface interface {
	Submit(ctx context.Context, image []byte, opts generation.Options) (*generation.SubmitResult, error)
	GetJob(ctx context.Context, jobID string) (*generation.Job, error)
	ListJobs(ctx context.Context) []*generation.Job
	CancelJob(ctx context.Context, jobID string) error
	DeleteJob(ctx context.Context, jobID string) error
	WaitForCompletion(ctx context.Context, jobID string) (*generation.Job, error)
	SystemStatus(ctx context.Context) generation.SystemStatus
}
