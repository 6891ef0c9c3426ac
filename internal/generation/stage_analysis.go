package generation

import (
	"context"
	"log/slog"
	"time"
)

// runAnalysis executes the gating analysis stage. Every downstream branch
// consumes its output, so a failure here fails the whole job and the
// branches never start.
func (e *Executor) runAnalysis(ctx context.Context, jobID string, image []byte, mimeType string) (*ImageAnalysis, error) {
	ctx, span := e.tracer.TraceStageExecution(ctx, jobID, StageAnalysis)
	defer span.End()
	started := time.Now()

	if err := e.store.UpdateStage(jobID, StageAnalysis, StageProcessing); err != nil {
		return nil, err
	}

	analysis, err := withRetry(ctx, e, StageAnalysis, func(ctx context.Context) (*ImageAnalysis, error) {
		return e.caps.Analyzer.AnalyzeImage(ctx, image, mimeType)
	})
	if err != nil {
		e.markStageFailed(jobID, StageAnalysis, err)
		e.tracer.RecordStageCompletion(ctx, span, jobID, StageAnalysis, time.Since(started), err)
		return nil, err
	}

	if err := e.store.UpdateStage(jobID, StageAnalysis, StageDone); err != nil {
		return nil, err
	}
	if err := e.store.SetResult(jobID, &Result{Analysis: analysis}); err != nil {
		return nil, err
	}

	e.logger.Info("analysis complete",
		slog.String("job_id", jobID),
		slog.String("category", analysis.Category),
		slog.String("shape", string(analysis.Shape.Type)),
		slog.Float64("confidence", analysis.Confidence))
	e.tracer.RecordStageCompletion(ctx, span, jobID, StageAnalysis, time.Since(started), nil)
	return analysis, nil
}
