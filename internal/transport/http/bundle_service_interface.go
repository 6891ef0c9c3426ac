package http

import "context"

// BundleServiceInterface defines the interface for download bundle assembly
type BundleServiceInterface interface {
	Bundle(ctx context.Context, jobID string) ([]byte, error)
}
