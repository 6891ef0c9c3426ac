package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apierrors "promogen/internal/errors"
)

// DownloadsHandler serves the ZIP bundle assembled from a finished job's
// outputs. The bundle is not materialized until the first request for it.
type DownloadsHandler struct {
	service      BundleServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDownloadsHandler creates a new downloads handler
func NewDownloadsHandler(service BundleServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DownloadsHandler {
	if service == nil {
		panic("bundle service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	return &DownloadsHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "downloads_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the download routes
func (h *DownloadsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{jobID}", h.DownloadBundle)
	return r
}

// DownloadBundle handles GET /api/downloads/{jobID}. It responds 404 until
// the job is terminal with at least one stage output.
func (h *DownloadsHandler) DownloadBundle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	jobID := chi.URLParam(r, "jobID")

	tracer := otel.Tracer("downloads-handler")
	ctx, span := tracer.Start(ctx, "downloads.bundle",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/downloads/{jobID}"),
			attribute.String("job.id", jobID),
			attribute.String("request_id", reqID),
		))
	defer span.End()
	r = r.WithContext(ctx)

	if jobID == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("jobID", "Job ID is required"))
		return
	}

	archive, err := h.service.Bundle(ctx, jobID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bundle unavailable")
		h.errorHandler.HandleError(w, r, err)
		return
	}

	span.SetAttributes(attribute.Int("bundle.size_bytes", len(archive)))
	span.SetStatus(codes.Ok, "bundle served")

	h.logger.InfoContext(ctx, "serving job bundle",
		slog.String("job_id", jobID),
		slog.Int("size_bytes", len(archive)),
		slog.String("request_id", reqID),
	)

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "promogen-"+jobID+".zip"))
	w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(archive); err != nil {
		h.logger.WarnContext(ctx, "bundle write interrupted",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}
