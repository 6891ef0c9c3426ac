package generation

import (
	"context"
	"fmt"
	"time"

	"promogen/internal/infrastructure"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	TracerName = "promogen.generation"
)

// PipelineTracer provides OpenTelemetry instrumentation for job execution.
// All methods are safe on a nil receiver; spans fall back to the noop span
// so the executor runs un-instrumented when telemetry is not initialized.
type PipelineTracer struct {
	tracer  trace.Tracer
	meter   metric.Meter
	metrics *infrastructure.BusinessMetrics
}

// NewPipelineTracer creates a pipeline tracer backed by the given providers.
func NewPipelineTracer(providers *infrastructure.OTelProviders) (*PipelineTracer, error) {
	metrics, err := infrastructure.CreateBusinessMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	return &PipelineTracer{
		tracer:  otel.Tracer(TracerName),
		meter:   providers.Meter,
		metrics: metrics,
	}, nil
}

// TraceJobExecution creates the span covering one job's whole pipeline run.
func (pt *PipelineTracer) TraceJobExecution(ctx context.Context, jobID string, opts Options) (context.Context, trace.Span) {
	if pt == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	ctx, span := pt.tracer.Start(ctx, "generation.job.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("job.id", jobID),
			attribute.Int("job.package_variations", opts.PackageVariations),
			attribute.Int("job.ad_platforms", len(opts.AdPlatforms)),
			attribute.Bool("job.skip_packages", opts.SkipPackages),
			attribute.Bool("job.skip_ads", opts.SkipAds),
			attribute.Bool("job.skip_texts", opts.SkipTexts),
		),
	)

	pt.metrics.JobSubmissionsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", "start"),
		),
	)
	pt.metrics.JobsActive.Add(ctx, 1)

	return ctx, span
}

// TraceStageExecution creates a span for one stage of a job.
func (pt *PipelineTracer) TraceStageExecution(ctx context.Context, jobID string, stage StageName) (context.Context, trace.Span) {
	if pt == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	ctx, span := pt.tracer.Start(ctx, fmt.Sprintf("generation.stage.%s", stage),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("job.id", jobID),
			attribute.String("stage.name", string(stage)),
		),
	)

	pt.metrics.JobStageExecutions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stage", string(stage)),
			attribute.String("operation", "start"),
		),
	)

	return ctx, span
}

// RecordJobCompletion closes out the job span with metrics and status.
func (pt *PipelineTracer) RecordJobCompletion(ctx context.Context, span trace.Span, jobID string, duration time.Duration, status JobStatus) {
	if pt == nil {
		return
	}

	span.SetAttributes(
		attribute.String("job.status", string(status)),
		attribute.Float64("job.duration_seconds", duration.Seconds()),
	)

	pt.metrics.JobExecutionDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("status", string(status)),
		),
	)
	pt.metrics.JobsActive.Add(ctx, -1)

	infrastructure.AddSpanEvent(ctx, "job.finished", map[string]interface{}{
		"job_id":   jobID,
		"status":   string(status),
		"duration": duration.Seconds(),
	})

	if status == JobCompleted {
		span.SetStatus(codes.Ok, "job completed")
	} else {
		span.SetStatus(codes.Error, fmt.Sprintf("job finished with status %s", status))
	}
}

// RecordStageCompletion closes out a stage span.
func (pt *PipelineTracer) RecordStageCompletion(ctx context.Context, span trace.Span, jobID string, stage StageName, duration time.Duration, err error) {
	if pt == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "failure"
	}

	span.SetAttributes(
		attribute.String("stage.status", status),
		attribute.Float64("stage.duration_seconds", duration.Seconds()),
	)

	pt.metrics.JobStageDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("stage", string(stage)),
			attribute.String("status", status),
		),
	)

	if err != nil {
		infrastructure.RecordError(ctx, err,
			trace.WithAttributes(
				attribute.String("stage.name", string(stage)),
				attribute.String("error.kind", string(KindOf(err))),
			),
		)
		span.SetStatus(codes.Error, "stage execution failed")
		return
	}
	span.SetStatus(codes.Ok, "stage completed")
}

// RecordRetry counts one retry of a stage call.
func (pt *PipelineTracer) RecordRetry(ctx context.Context, stage StageName, attempt int) {
	if pt == nil {
		return
	}

	pt.metrics.JobRetries.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stage", string(stage)),
			attribute.Int("attempt", attempt),
		),
	)
}

// RecordJobError records a job-level failure on the active span.
func (pt *PipelineTracer) RecordJobError(ctx context.Context, jobID string, err error) {
	if pt == nil {
		return
	}

	infrastructure.RecordError(ctx, err,
		trace.WithAttributes(
			attribute.String("job.id", jobID),
			attribute.String("error.kind", string(KindOf(err))),
		),
	)
	pt.metrics.JobErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("error.kind", string(KindOf(err))),
		),
	)
}

// RecordCancellation counts one observed job cancellation.
func (pt *PipelineTracer) RecordCancellation(ctx context.Context, jobID string) {
	if pt == nil {
		return
	}

	pt.metrics.JobCancellations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("job.id", jobID),
		),
	)
}

var globalPipelineTracer *PipelineTracer

// InitGlobalPipelineTracer initializes the global pipeline tracer.
func InitGlobalPipelineTracer(providers *infrastructure.OTelProviders) error {
	tracer, err := NewPipelineTracer(providers)
	if err != nil {
		return err
	}
	globalPipelineTracer = tracer
	return nil
}

// GetPipelineTracer returns the global pipeline tracer, nil when telemetry
// was never initialized.
func GetPipelineTracer() *PipelineTracer {
	return globalPipelineTracer
}
