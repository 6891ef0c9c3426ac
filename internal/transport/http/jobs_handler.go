package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apierrors "promogen/internal/errors"
	"promogen/internal/generation"
	"promogen/internal/infrastructure"
	customMiddleware "promogen/internal/middleware"
	v1 "promogen/pkg/contracts/api/v1"
	"promogen/pkg/contracts/events"
)

const (
	// maxUploadBytes bounds the whole multipart body. The image itself is
	// capped by generation.MaxImageBytes; the extra megabyte covers the
	// option fields and multipart framing.
	maxUploadBytes = generation.MaxImageBytes + 1<<20

	defaultWaitTimeout = 30 * time.Second
	maxWaitTimeout     = 5 * time.Minute
)

// Hub interface for broadcasting WebSocket updates
type Hub interface {
	Broadcast(messageType string, data interface{})
}

// JobsHandler handles generation job HTTP requests
type JobsHandler struct {
	service        GenerationServiceInterface
	wsHub          Hub
	logger         *slog.Logger
	errorHandler   *apierrors.ErrorHandler
	validation     *customMiddleware.ValidationMiddleware
	queryValidator *customMiddleware.QueryParamValidator
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(service GenerationServiceInterface, wsHub Hub, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *JobsHandler {
	if service == nil {
		panic("generation service is required")
	}
	if wsHub == nil {
		panic("websocket hub is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	return &JobsHandler{
		service:        service,
		wsHub:          wsHub,
		logger:         logger.With(slog.String("component", "jobs_handler")),
		errorHandler:   errorHandler,
		validation:     customMiddleware.NewValidationMiddleware(logger),
		queryValidator: customMiddleware.NewQueryParamValidator(logger, errorHandler),
	}
}

// Routes returns the job routes
func (h *JobsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.With(customMiddleware.ContentTypeValidator("multipart/form-data")).Post("/", h.SubmitJob)
	r.Get("/", h.ListJobs)

	r.Route("/{jobID}", func(r chi.Router) {
		r.Use(h.JobCtx)
		r.Get("/", h.GetJob)
		r.Delete("/", h.DeleteJob)
		r.Post("/cancel", h.CancelJob)
		r.Get("/wait", h.WaitForJob)
	})

	return r
}

// JobCtx middleware validates the jobID URL parameter
func (h *JobsHandler) JobCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")
		if jobID == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("jobID", "Job ID is required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SubmitJob handles POST /api/jobs. It accepts a multipart form with an
// image part plus option fields and responds 202 with the job id once the
// job is admitted.
func (h *JobsHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	tracer := otel.Tracer("jobs-handler")
	ctx, span := tracer.Start(ctx, "jobs.submit",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/jobs"),
			attribute.String("request_id", reqID),
			attribute.String("component", "jobs_handler"),
		))
	defer span.End()
	r = r.WithContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid multipart form")
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		h.errorHandler.HandleError(w, r,
			apierrors.ErrValidation("body", "request must be multipart/form-data with an image part"))
		return
	}

	image, err := readImagePart(r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "missing image part")
		h.errorHandler.HandleError(w, r, err)
		return
	}

	req, err := parseSubmitRequest(r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid option field")
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if err := h.validation.ValidateStruct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "option validation failed")
		h.errorHandler.HandleError(w, r, err)
		return
	}

	opts := submitOptions(req)

	span.SetAttributes(
		attribute.Int("image.size_bytes", len(image)),
		attribute.String("options.brand", opts.BrandName),
		attribute.String("options.product", opts.ProductName),
	)

	result, err := h.service.Submit(ctx, image, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission rejected")
		h.errorHandler.HandleError(w, r, err)
		return
	}

	span.SetAttributes(attribute.String("job.id", result.JobID))
	span.SetStatus(codes.Ok, "job accepted")

	h.logger.InfoContext(ctx, "job submitted",
		slog.String("job_id", result.JobID),
		slog.Int("image_bytes", len(image)),
		slog.String("request_id", reqID),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)),
	)

	h.wsHub.Broadcast(string(events.MessageTypeJobUpdate), map[string]interface{}{
		"job_id": result.JobID,
		"status": string(result.Status),
		"action": "submitted",
	})

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, result)
}

// ListJobs handles GET /api/jobs. An optional limit query parameter
// truncates the response.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.service.ListJobs(r.Context())

	limit, ok := h.queryValidator.ValidateInt(w, r, "limit", 1, 500, len(jobs))
	if !ok {
		return
	}
	if limit < len(jobs) {
		jobs = jobs[:limit]
	}

	render.JSON(w, r, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// GetJob handles GET /api/jobs/{jobID}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobID")

	job, err := h.service.GetJob(ctx, jobID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, job)
}

// DeleteJob handles DELETE /api/jobs/{jobID}. A running job is cancelled
// before its record is removed.
func (h *JobsHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	jobID := chi.URLParam(r, "jobID")

	tracer := otel.Tracer("jobs-handler")
	ctx, span := tracer.Start(ctx, "jobs.delete",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/jobs/{jobID}"),
			attribute.String("job.id", jobID),
			attribute.String("request_id", reqID),
		))
	defer span.End()
	r = r.WithContext(ctx)

	if err := h.service.DeleteJob(ctx, jobID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		h.errorHandler.HandleError(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "job deleted")
	h.logger.InfoContext(ctx, "job deleted",
		slog.String("job_id", jobID),
		slog.String("request_id", reqID),
	)

	h.wsHub.Broadcast(string(events.MessageTypeJobUpdate), map[string]interface{}{
		"job_id": jobID,
		"action": "deleted",
	})

	render.NoContent(w, r)
}

// CancelJob handles POST /api/jobs/{jobID}/cancel. Cancelling a job that
// has already reached a terminal status is a conflict.
func (h *JobsHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	jobID := chi.URLParam(r, "jobID")

	tracer := otel.Tracer("jobs-handler")
	ctx, span := tracer.Start(ctx, "jobs.cancel",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/jobs/{jobID}/cancel"),
			attribute.String("job.id", jobID),
			attribute.String("request_id", reqID),
		))
	defer span.End()
	r = r.WithContext(ctx)

	if err := h.service.CancelJob(ctx, jobID); err != nil {
		span.RecordError(err)
		if errors.Is(err, generation.ErrJobTerminal) {
			span.SetStatus(codes.Error, "job already terminal")
			problem := apierrors.NewProblemDetails(
				http.StatusConflict,
				apierrors.TypeConflict,
				"Job Already Terminal",
				fmt.Sprintf("job %s has already finished and cannot be cancelled", jobID),
				r.URL.Path,
			).WithExtension("trace_id", infrastructure.TraceIDFromContext(ctx)).
				WithExtension("job_id", jobID)
			render.Render(w, r, problem)
			return
		}
		span.SetStatus(codes.Error, "cancel failed")
		h.errorHandler.HandleError(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "cancellation requested")
	h.logger.InfoContext(ctx, "job cancellation requested",
		slog.String("job_id", jobID),
		slog.String("request_id", reqID),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)),
	)

	h.wsHub.Broadcast(string(events.MessageTypeJobUpdate), map[string]interface{}{
		"job_id": jobID,
		"action": "cancelling",
	})

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]interface{}{
		"job_id": jobID,
		"status": "cancelling",
	})
}

// WaitForJob handles GET /api/jobs/{jobID}/wait. It blocks until the job
// reaches a terminal status and responds with the final snapshot, or 504
// when the timeout elapses first. A failed job still yields its snapshot;
// the failure detail travels in the error field.
func (h *JobsHandler) WaitForJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobID")

	timeout := defaultWaitTimeout
	if v := r.URL.Query().Get("timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			h.errorHandler.HandleError(w, r,
				apierrors.ErrValidation("timeout", "timeout must be a positive duration such as 30s"))
			return
		}
		if d > maxWaitTimeout {
			d = maxWaitTimeout
		}
		timeout = d
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	job, err := h.service.WaitForCompletion(waitCtx, jobID)
	if job == nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, job)
}

// SystemStatus handles GET /api/system/status
func (h *JobsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.SystemStatus(r.Context()))
}

// readImagePart extracts the uploaded image bytes from the multipart form.
func readImagePart(r *http.Request) ([]byte, error) {
	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, apierrors.ErrValidation("image", "image file part is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apierrors.ErrValidation("image", "failed to read image part")
	}
	return data, nil
}

// parseSubmitRequest maps multipart form fields onto the submission
// contract. An absent packageVariations field resolves to the pipeline
// default before struct validation runs, so omitting it is fine while an
// explicit zero is rejected. Other absent fields stay zero and the
// orchestrator applies its own defaults.
func parseSubmitRequest(r *http.Request) (v1.JobSubmitRequest, error) {
	req := v1.JobSubmitRequest{
		BrandName:         strings.TrimSpace(r.FormValue("brandName")),
		ProductName:       strings.TrimSpace(r.FormValue("productName")),
		PackageTemplate:   strings.TrimSpace(r.FormValue("packageTemplate")),
		Tone:              strings.TrimSpace(r.FormValue("tone")),
		Language:          strings.TrimSpace(r.FormValue("language")),
		PackageVariations: generation.DefaultPackageVariations,
	}

	if v := r.FormValue("packageVariations"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, apierrors.ErrValidation("packageVariations", "packageVariations must be an integer")
		}
		req.PackageVariations = n
	}

	if v := r.FormValue("adPlatforms"); v != "" {
		for _, p := range strings.Split(v, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				req.AdPlatforms = append(req.AdPlatforms, p)
			}
		}
	}

	var err error
	if req.SkipPackages, err = parseBoolField(r, "skipPackages"); err != nil {
		return req, err
	}
	if req.SkipAds, err = parseBoolField(r, "skipAds"); err != nil {
		return req, err
	}
	if req.SkipTexts, err = parseBoolField(r, "skipTexts"); err != nil {
		return req, err
	}

	return req, nil
}

// submitOptions converts a validated submission request into pipeline
// options.
func submitOptions(req v1.JobSubmitRequest) generation.Options {
	return generation.Options{
		BrandName:         req.BrandName,
		ProductName:       req.ProductName,
		PackageTemplate:   req.PackageTemplate,
		PackageVariations: req.PackageVariations,
		AdPlatforms:       req.AdPlatforms,
		Tone:              req.Tone,
		Language:          req.Language,
		SkipPackages:      req.SkipPackages,
		SkipAds:           req.SkipAds,
		SkipTexts:         req.SkipTexts,
	}
}

func parseBoolField(r *http.Request, field string) (bool, error) {
	v := r.FormValue(field)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, apierrors.ErrValidation(field, field+" must be a boolean")
	}
	return b, nil
}
