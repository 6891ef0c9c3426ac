package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promogen/internal/generation"
)

func newTestHandler() *ErrorHandler {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewErrorHandler(logger, false)
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	return problem
}

func TestHandleError_GenerationKinds(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{
			name:       "invalid input maps to 400",
			err:        generation.NewInvalidInputError("packageVariations", "must be between 1 and 10"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
		},
		{
			name:       "job not found maps to 404",
			err:        generation.ErrJobNotFound,
			wantStatus: http.StatusNotFound,
			wantType:   TypeJobNotFound,
		},
		{
			name:       "capacity exhausted maps to 429",
			err:        generation.NewCapacityError(5, 5),
			wantStatus: http.StatusTooManyRequests,
			wantType:   TypeCapacity,
		},
		{
			name:       "provider auth failure maps to 502",
			err:        generation.NewAuthError(generation.StageAnalysis, "invalid api key", nil),
			wantStatus: http.StatusBadGateway,
			wantType:   TypeUpstreamAuth,
		},
		{
			name:       "provider timeout maps to 504",
			err:        generation.NewTimeoutError(generation.StagePackages, 60*time.Second),
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "fatal provider failure maps to 500",
			err:        generation.NewFatalError(generation.StageAnalysis, "content policy violation", nil),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeProviderFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler()
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", nil)

			h.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			problem := decodeProblem(t, rec)
			assert.Equal(t, tt.wantType, problem["type"])
			assert.Equal(t, float64(tt.wantStatus), problem["status"])
			assert.Equal(t, "/api/v1/jobs", problem["instance"])
			assert.NotEmpty(t, problem["kind"])
		})
	}
}

func TestHandleError_CapacityDetails(t *testing.T) {
	h := newTestHandler()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", nil)

	h.HandleError(rec, req, generation.NewCapacityError(5, 5))

	problem := decodeProblem(t, rec)
	assert.Equal(t, float64(5), problem["current"])
	assert.Equal(t, float64(5), problem["max"])
	assert.Equal(t, float64(30), problem["retry_after"])
}

func TestHandleError_ContextErrors(t *testing.T) {
	h := newTestHandler()

	for _, err := range []error{context.DeadlineExceeded, context.Canceled} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/abc", nil)

		h.HandleError(rec, req, fmt.Errorf("wrapped: %w", err))

		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
		problem := decodeProblem(t, rec)
		assert.Equal(t, TypeTimeout, problem["type"])
	}
}

func TestHandleError_APIError(t *testing.T) {
	h := newTestHandler()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/abc", nil)

	h.HandleError(rec, req, JobNotFoundError("abc"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	problem := decodeProblem(t, rec)
	assert.Equal(t, TypeJobNotFound, problem["type"])
	assert.Equal(t, "JOB_NOT_FOUND", problem["error_code"])
}

func TestHandleError_UnknownError(t *testing.T) {
	h := newTestHandler()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)

	h.HandleError(rec, req, fmt.Errorf("something exploded"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	problem := decodeProblem(t, rec)
	assert.Equal(t, TypeInternal, problem["type"])
	// Internal messages are not leaked to clients
	assert.NotContains(t, problem["detail"], "exploded")
}

func TestHandlePanic(t *testing.T) {
	h := newTestHandler()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)

	h.HandlePanic(rec, req, "boom")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	problem := decodeProblem(t, rec)
	assert.Equal(t, TypeInternal, problem["type"])
	// No stack traces without includeStack
	_, hasStack := problem["stack"]
	assert.False(t, hasStack)
}

func TestHandlePanic_IncludeStack(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	h := NewErrorHandler(logger, true)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)

	h.HandlePanic(rec, req, "boom")

	problem := decodeProblem(t, rec)
	assert.Equal(t, "boom", problem["panic"])
	assert.NotEmpty(t, problem["stack"])
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	h := newTestHandler()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	h.NotFound(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/jobs", nil)
	h.MethodNotAllowed(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	problem := decodeProblem(t, rec)
	assert.Contains(t, problem["detail"], "PATCH")
}
