package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"promogen/internal/generation"
)

// ErrBundleNotReady is returned for jobs that exist but have no
// downloadable output yet, either because they are still running or
// because they failed before producing anything.
var ErrBundleNotReady = &generation.Error{
	Kind:    generation.KindNotFound,
	Message: "no downloadable output for this job yet",
}

// BundleService assembles the download archive for finished jobs. Archives
// are built on demand from the job record; the store keeps the image
// payloads until the reaper evicts the job, so nothing is persisted here.
type BundleService struct {
	orchestrator *generation.Orchestrator
	logger       *slog.Logger
}

// NewBundleService creates a new bundle service.
func NewBundleService(orchestrator *generation.Orchestrator, logger *slog.Logger) (*BundleService, error) {
	if orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BundleService{
		orchestrator: orchestrator,
		logger:       logger,
	}, nil
}

// Bundle returns the ZIP archive for a terminal job with at least one
// output. Unknown jobs return ErrJobNotFound; jobs still running or
// without output return ErrBundleNotReady. Entries are laid out as
//
//	{jobID}/analysis.json
//	{jobID}/packages/{variationType}.png
//	{jobID}/ads/{platform}.png
//	{jobID}/texts.json
//
// with files for absent outputs omitted.
func (s *BundleService) Bundle(ctx context.Context, jobID string) ([]byte, error) {
	job, err := s.orchestrator.GetStatus(jobID)
	if err != nil {
		return nil, err
	}
	if !job.Status.IsTerminal() || !hasOutputs(job.Result) {
		return nil, ErrBundleNotReady
	}

	data, err := buildArchive(job)
	if err != nil {
		s.logger.ErrorContext(ctx, "bundle assembly failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		return nil, err
	}

	s.logger.InfoContext(ctx, "bundle assembled",
		slog.String("job_id", jobID),
		slog.Int("size_bytes", len(data)))
	return data, nil
}

// hasOutputs reports whether the result bag holds anything worth serving.
func hasOutputs(r *generation.Result) bool {
	if r == nil {
		return false
	}
	return r.Analysis != nil || len(r.Packages) > 0 || len(r.Ads) > 0 || r.Texts != nil
}

func buildArchive(job *generation.Job) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	result := job.Result

	if result.Analysis != nil {
		if err := writeJSONEntry(zw, job.ID+"/analysis.json", result.Analysis); err != nil {
			return nil, err
		}
	}

	for _, pkg := range result.Packages {
		if len(pkg.ImageData) == 0 {
			continue
		}
		name := fmt.Sprintf("%s/packages/%s.png", job.ID, pkg.VariationType)
		if err := writeEntry(zw, name, pkg.ImageData); err != nil {
			return nil, err
		}
	}

	for _, ad := range result.Ads {
		if len(ad.ImageData) == 0 {
			continue
		}
		name := fmt.Sprintf("%s/ads/%s.png", job.ID, ad.Platform)
		if err := writeEntry(zw, name, ad.ImageData); err != nil {
			return nil, err
		}
	}

	if result.Texts != nil {
		if err := writeJSONEntry(zw, job.ID+"/texts.json", result.Texts); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

func writeJSONEntry(zw *zip.Writer, name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return writeEntry(zw, name, data)
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create archive entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", name, err)
	}
	return nil
}
