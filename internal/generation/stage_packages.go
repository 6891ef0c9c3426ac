package generation

import (
	"context"
	"log/slog"
	"time"
)

// runPackages generates the requested package design variations. Slots run
// in paced waves; the stage is Done as soon as one variation succeeded and
// Failed only when every slot failed.
func (e *Executor) runPackages(ctx context.Context, jobID string, opts Options, analysis *ImageAnalysis) {
	ctx, span := e.tracer.TraceStageExecution(ctx, jobID, StagePackages)
	defer span.End()
	started := time.Now()

	if err := e.store.UpdateStage(jobID, StagePackages, StageProcessing); err != nil {
		e.logger.Warn("packages stage did not start",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		return
	}

	template := opts.PackageTemplate
	if template == "" {
		template = autoSelectTemplate(analysis)
	}
	count := opts.PackageVariations
	if count <= 0 {
		count = DefaultPackageVariations
	}

	designs := make([]PackageDesign, count)
	filled := make([]bool, count)
	tasks := make([]func(context.Context) error, count)
	for i := 0; i < count; i++ {
		i := i
		style, variation := packageStyle(i)
		prompt := buildPackagePrompt(opts, analysis, style, template)
		designs[i] = PackageDesign{
			VariationType: variation,
			Style:         style,
			Template:      template,
			Prompt:        prompt,
		}
		tasks[i] = func(ctx context.Context) error {
			res, err := withRetry(ctx, e, StagePackages, func(ctx context.Context) (*ImageResult, error) {
				return e.caps.Images.GenerateImage(ctx, ImageRequest{Prompt: prompt, Size: ImageSizeSquare})
			})
			if err != nil {
				e.logger.Warn("package variation failed",
					slog.String("job_id", jobID),
					slog.String("variation", variation),
					slog.String("error", err.Error()))
				return err
			}
			designs[i].ImageData = res.Data
			designs[i].RevisedPrompt = res.RevisedPrompt
			filled[i] = true
			return nil
		}
	}

	succeeded, firstErr := e.runSlots(ctx, tasks)
	if cerr := ctx.Err(); cerr != nil {
		// Cancellation mid-branch fails the stage even when some
		// variations already landed.
		e.markStageFailed(jobID, StagePackages, Classify(cerr, StagePackages))
		e.tracer.RecordStageCompletion(ctx, span, jobID, StagePackages, time.Since(started), cerr)
		return
	}
	if succeeded == 0 {
		e.markStageFailed(jobID, StagePackages, firstErr)
		e.tracer.RecordStageCompletion(ctx, span, jobID, StagePackages, time.Since(started), firstErr)
		return
	}

	kept := make([]PackageDesign, 0, succeeded)
	for i := range designs {
		if filled[i] {
			kept = append(kept, designs[i])
		}
	}

	if err := e.store.UpdateStage(jobID, StagePackages, StageDone); err != nil {
		e.logger.Error("failed to mark packages done",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		return
	}
	if err := e.store.SetResult(jobID, &Result{Packages: kept}); err != nil {
		e.logger.Error("failed to record package designs",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		return
	}

	e.logger.Info("packages stage complete",
		slog.String("job_id", jobID),
		slog.Int("generated", len(kept)),
		slog.Int("requested", count))
	e.tracer.RecordStageCompletion(ctx, span, jobID, StagePackages, time.Since(started), nil)
}
