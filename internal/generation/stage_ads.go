package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"promogen/internal/imaging"
)

// runAds generates one ad creative per requested platform. Each image is
// synthesized at the platform's size class and then resized to the exact
// canonical dimensions. Same partial-success rule as the packages branch.
func (e *Executor) runAds(ctx context.Context, jobID string, opts Options, analysis *ImageAnalysis) {
	ctx, span := e.tracer.TraceStageExecution(ctx, jobID, StageAds)
	defer span.End()
	started := time.Now()

	if err := e.store.UpdateStage(jobID, StageAds, StageProcessing); err != nil {
		e.logger.Warn("ads stage did not start",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		return
	}

	platforms := opts.AdPlatforms
	if len(platforms) == 0 {
		platforms = DefaultAdPlatforms()
	}

	ads := make([]AdImage, len(platforms))
	filled := make([]bool, len(platforms))
	tasks := make([]func(context.Context) error, len(platforms))
	for i, name := range platforms {
		i, name := i, name
		spec, known := LookupPlatform(name)
		if !known {
			tasks[i] = func(context.Context) error {
				return NewFatalError(StageAds, fmt.Sprintf("unknown ad platform %q", name), nil)
			}
			continue
		}
		prompt := buildAdPrompt(opts, analysis, spec)
		ads[i] = AdImage{Platform: spec.Name, Width: spec.Width, Height: spec.Height}
		tasks[i] = func(ctx context.Context) error {
			res, err := withRetry(ctx, e, StageAds, func(ctx context.Context) (*ImageResult, error) {
				return e.caps.Images.GenerateImage(ctx, ImageRequest{Prompt: prompt, Size: spec.SizeClass})
			})
			if err != nil {
				e.logger.Warn("ad creative failed",
					slog.String("job_id", jobID),
					slog.String("platform", spec.Name),
					slog.String("error", err.Error()))
				return err
			}

			data, rerr := imaging.Resize(res.Data, spec.Width, spec.Height)
			if rerr != nil {
				// Keep the synthesis-sized image rather than losing the slot.
				e.logger.Warn("ad resize failed, keeping synthesis size",
					slog.String("job_id", jobID),
					slog.String("platform", spec.Name),
					slog.String("error", rerr.Error()))
				data = res.Data
			}
			ads[i].ImageData = data
			ads[i].RevisedPrompt = res.RevisedPrompt
			filled[i] = true
			return nil
		}
	}

	succeeded, firstErr := e.runSlots(ctx, tasks)
	if cerr := ctx.Err(); cerr != nil {
		e.markStageFailed(jobID, StageAds, Classify(cerr, StageAds))
		e.tracer.RecordStageCompletion(ctx, span, jobID, StageAds, time.Since(started), cerr)
		return
	}
	if succeeded == 0 {
		e.markStageFailed(jobID, StageAds, firstErr)
		e.tracer.RecordStageCompletion(ctx, span, jobID, StageAds, time.Since(started), firstErr)
		return
	}

	kept := make([]AdImage, 0, succeeded)
	for i := range ads {
		if filled[i] {
			kept = append(kept, ads[i])
		}
	}

	if err := e.store.UpdateStage(jobID, StageAds, StageDone); err != nil {
		e.logger.Error("failed to mark ads done",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		return
	}
	if err := e.store.SetResult(jobID, &Result{Ads: kept}); err != nil {
		e.logger.Error("failed to record ad creatives",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		return
	}

	e.logger.Info("ads stage complete",
		slog.String("job_id", jobID),
		slog.Int("generated", len(kept)),
		slog.Int("requested", len(platforms)))
	e.tracer.RecordStageCompletion(ctx, span, jobID, StageAds, time.Since(started), nil)
}
