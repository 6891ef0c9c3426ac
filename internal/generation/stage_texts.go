package generation

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// runTexts generates the marketing text bundle. The three sub-generations
// run in parallel but the stage is all or nothing: one failed sub-call
// fails the whole bundle.
func (e *Executor) runTexts(ctx context.Context, jobID string, opts Options, analysis *ImageAnalysis) {
	ctx, span := e.tracer.TraceStageExecution(ctx, jobID, StageTexts)
	defer span.End()
	started := time.Now()

	if err := e.store.UpdateStage(jobID, StageTexts, StageProcessing); err != nil {
		e.logger.Warn("texts stage did not start",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		return
	}

	tc := TextContext{
		Analysis:    analysis,
		BrandName:   opts.BrandName,
		ProductName: opts.ProductName,
		Tone:        opts.Tone,
		Language:    opts.Language,
	}
	if tc.Tone == "" {
		tc.Tone = DefaultTone
	}
	if tc.Language == "" {
		tc.Language = DefaultLanguage
	}

	var bundle TextBundle
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := withRetry(gctx, e, StageTexts, func(ctx context.Context) (*DescriptionText, error) {
			return e.caps.Texts.GenerateDescription(ctx, tc)
		})
		if err != nil {
			return err
		}
		bundle.Description = out
		return nil
	})
	g.Go(func() error {
		out, err := withRetry(gctx, e, StageTexts, func(ctx context.Context) (*CatchcopyText, error) {
			return e.caps.Texts.GenerateCatchcopy(ctx, tc)
		})
		if err != nil {
			return err
		}
		bundle.Catchcopy = out
		return nil
	})
	g.Go(func() error {
		out, err := withRetry(gctx, e, StageTexts, func(ctx context.Context) (*SEOText, error) {
			return e.caps.Texts.GenerateSEO(ctx, tc)
		})
		if err != nil {
			return err
		}
		bundle.SEO = out
		return nil
	})

	if err := g.Wait(); err != nil {
		e.markStageFailed(jobID, StageTexts, err)
		e.tracer.RecordStageCompletion(ctx, span, jobID, StageTexts, time.Since(started), err)
		return
	}

	if err := e.store.UpdateStage(jobID, StageTexts, StageDone); err != nil {
		e.logger.Error("failed to mark texts done",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		return
	}
	if err := e.store.SetResult(jobID, &Result{Texts: &bundle}); err != nil {
		e.logger.Error("failed to record text bundle",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		return
	}

	e.logger.Info("texts stage complete", slog.String("job_id", jobID))
	e.tracer.RecordStageCompletion(ctx, span, jobID, StageTexts, time.Since(started), nil)
}
