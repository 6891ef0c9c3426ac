package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Executor drives one admitted job through the pipeline: analysis gates the
// run, then the requested branches fan out concurrently. Branches are best
// effort; a failed branch marks its stage Failed and the job still
// completes. Only an analysis failure or a cancellation fails the job.
type Executor struct {
	store  *Store
	caps   Capabilities
	cfg    *Config
	logger *slog.Logger
	tracer *PipelineTracer
}

// NewExecutor creates an executor over the given store and capabilities.
func NewExecutor(store *Store, caps Capabilities, cfg *Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = NewConfig()
	}
	return &Executor{
		store:  store,
		caps:   caps,
		cfg:    cfg,
		logger: logger,
		tracer: GetPipelineTracer(),
	}
}

// Run executes the pipeline for one job and always leaves it in a terminal
// status. image is the validated original upload; ctx carries cancellation
// from CancelJob and Shutdown.
func (e *Executor) Run(ctx context.Context, jobID string, image []byte, mimeType string) {
	job, err := e.store.Get(jobID)
	if err != nil {
		e.logger.Error("job vanished before execution",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		return
	}
	opts := job.Options

	ctx, span := e.tracer.TraceJobExecution(ctx, jobID, opts)
	defer span.End()
	started := time.Now()

	log := e.logger.With(slog.String("job_id", jobID))

	if err := e.store.UpdateStatus(jobID, JobProcessing); err != nil {
		log.Error("job did not start", slog.String("error", err.Error()))
		e.tracer.RecordJobCompletion(ctx, span, jobID, time.Since(started), JobFailed)
		return
	}
	log.Info("job started",
		slog.Int("package_variations", opts.PackageVariations),
		slog.Int("ad_platforms", len(opts.AdPlatforms)),
		slog.Bool("skip_packages", opts.SkipPackages),
		slog.Bool("skip_ads", opts.SkipAds),
		slog.Bool("skip_texts", opts.SkipTexts))

	analysis, err := e.runAnalysis(ctx, jobID, image, mimeType)
	if err != nil {
		e.failJob(jobID, err)
		e.tracer.RecordJobError(ctx, jobID, err)
		e.tracer.RecordJobCompletion(ctx, span, jobID, time.Since(started), JobFailed)
		return
	}

	// Branch failures stay inside their branch: every goroutine returns
	// nil so the group context is only cancelled from above.
	g, gctx := errgroup.WithContext(ctx)
	if !opts.SkipPackages {
		g.Go(func() error {
			e.runPackages(gctx, jobID, opts, analysis)
			return nil
		})
	}
	if !opts.SkipAds {
		g.Go(func() error {
			e.runAds(gctx, jobID, opts, analysis)
			return nil
		})
	}
	if !opts.SkipTexts {
		g.Go(func() error {
			e.runTexts(gctx, jobID, opts, analysis)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		e.tracer.RecordCancellation(ctx, jobID)
		e.failJob(jobID, Classify(ctx.Err(), ""))
		e.tracer.RecordJobCompletion(ctx, span, jobID, time.Since(started), JobFailed)
		return
	}

	e.complete(jobID)
	e.tracer.RecordJobCompletion(ctx, span, jobID, time.Since(started), JobCompleted)
}

// failJob records the failure message and moves the job to Failed. Stages
// not yet started keep their Pending mark.
func (e *Executor) failJob(jobID string, err error) {
	msg := failureMessage(err)
	if serr := e.store.SetError(jobID, msg); serr != nil {
		e.logger.Error("failed to record job error",
			slog.String("job_id", jobID),
			slog.String("error", serr.Error()))
		return
	}
	if serr := e.store.UpdateStatus(jobID, JobFailed); serr != nil {
		e.logger.Error("failed to mark job failed",
			slog.String("job_id", jobID),
			slog.String("error", serr.Error()))
		return
	}
	e.logger.Info("job failed",
		slog.String("job_id", jobID),
		slog.String("reason", msg))
}

// complete stamps the download URL and moves the job to Completed. Reached
// whenever analysis succeeded, regardless of how the branches fared.
func (e *Executor) complete(jobID string) {
	url := strings.TrimRight(e.cfg.DownloadBasePath, "/") + "/" + jobID
	if err := e.store.SetResult(jobID, &Result{DownloadURL: url}); err != nil {
		e.logger.Error("failed to record download url",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		return
	}
	if err := e.store.UpdateStatus(jobID, JobCompleted); err != nil {
		e.logger.Error("failed to mark job completed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		return
	}
	e.logger.Info("job completed", slog.String("job_id", jobID))
}

// markStageFailed flags one stage Failed. Whether that fails the job is the
// caller's call: it does for analysis, it does not for branches.
func (e *Executor) markStageFailed(jobID string, stage StageName, err error) {
	reason := "no output produced"
	if err != nil {
		reason = err.Error()
	}
	e.logger.Warn("stage failed",
		slog.String("job_id", jobID),
		slog.String("stage", string(stage)),
		slog.String("error", reason))
	if uerr := e.store.UpdateStage(jobID, stage, StageFailed); uerr != nil {
		e.logger.Error("failed to mark stage failed",
			slog.String("job_id", jobID),
			slog.String("stage", string(stage)),
			slog.String("error", uerr.Error()))
	}
}

// failureMessage renders the user-facing job error string.
func failureMessage(err error) string {
	var gErr *Error
	if errors.As(err, &gErr) {
		if gErr.Kind == KindCancelled {
			return "job cancelled"
		}
		if gErr.Stage != "" {
			return fmt.Sprintf("%s failed: %s", gErr.Stage, gErr.Message)
		}
		return gErr.Message
	}
	return err.Error()
}

// withRetry runs fn under the stage timeout, retrying retryable failures
// with exponential backoff. The classified last error comes back once the
// attempts are exhausted. Free function because methods cannot carry type
// parameters.
func withRetry[T any](ctx context.Context, e *Executor, stage StageName, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	retry := e.cfg.Retry
	delay := retry.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= retry.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return zero, Classify(ctx.Err(), stage)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.StageTimeout(stage))
		out, err := fn(attemptCtx)
		cancel()
		if err == nil {
			return out, nil
		}

		lastErr = Classify(err, stage)
		if !IsRetryable(lastErr) || attempt == retry.MaxAttempts {
			break
		}

		e.logger.Warn("stage attempt failed",
			slog.String("stage", string(stage)),
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", delay),
			slog.String("error", lastErr.Error()))
		e.tracer.RecordRetry(ctx, stage, attempt)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, Classify(ctx.Err(), stage)
		}

		delay = time.Duration(float64(delay) * retry.Multiplier)
		if delay > retry.MaxDelay {
			delay = retry.MaxDelay
		}
	}
	return zero, lastErr
}

// runSlots executes tasks in waves of the configured width with a pacing
// pause between waves. Each task owns one output slot, so results keep
// submission order no matter which goroutine finishes first. Reports how
// many tasks succeeded and the first error seen.
func (e *Executor) runSlots(ctx context.Context, tasks []func(context.Context) error) (int, error) {
	width := e.cfg.IntraBranchConcurrency
	if width <= 0 {
		width = DefaultIntraBranchConcurrency
	}

	var (
		mu        sync.Mutex
		succeeded int
		firstErr  error
	)
	for start := 0; start < len(tasks); start += width {
		if ctx.Err() != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			mu.Unlock()
			break
		}

		end := min(start+width, len(tasks))
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(task func(context.Context) error) {
				defer wg.Done()
				if err := task(ctx); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					return
				}
				mu.Lock()
				succeeded++
				mu.Unlock()
			}(tasks[i])
		}
		wg.Wait()

		if end < len(tasks) && e.cfg.PacingDelay > 0 {
			select {
			case <-time.After(e.cfg.PacingDelay):
			case <-ctx.Done():
			}
		}
	}
	return succeeded, firstErr
}
