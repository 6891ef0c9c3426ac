package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name       string
		err        *APIError
		wantStatus int
		wantCode   string
	}{
		{
			name:       "simple error",
			err:        New(http.StatusBadRequest, "INVALID_REQUEST", "bad input"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "error with details",
			err:        NewWithDetails(http.StatusNotFound, "JOB_NOT_FOUND", "no such job", "job-123"),
			wantStatus: http.StatusNotFound,
			wantCode:   "JOB_NOT_FOUND",
		},
		{
			name:       "capacity error",
			err:        CapacityExhaustedError(5, 5),
			wantStatus: http.StatusTooManyRequests,
			wantCode:   "CAPACITY_EXHAUSTED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.Equal(t, tt.wantCode, tt.err.ErrorCode)
			assert.Equal(t, tt.err.Message, tt.err.Error())
		})
	}
}

func TestPredefinedErrors(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ErrJobNotFound.StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, ErrCapacityExhausted.StatusCode)
	assert.Equal(t, http.StatusBadGateway, ErrUpstreamAuth.StatusCode)
	assert.Equal(t, http.StatusRequestEntityTooLarge, ErrPayloadTooLarge.StatusCode)
	assert.Equal(t, http.StatusInternalServerError, ErrWebSocketUpgrade.StatusCode)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(rec, JobNotFoundError("job-abc"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "JOB_NOT_FOUND", resp.Error.ErrorCode)
	assert.Equal(t, "job-abc", resp.Error.Details)
}

func TestProblemDetailsMarshalJSON(t *testing.T) {
	problem := NewProblemDetails(
		http.StatusTooManyRequests,
		TypeCapacity,
		"Capacity Exhausted",
		"maximum concurrent jobs reached",
		"/api/v1/jobs",
	).WithExtension("current", 5).WithExtension("max", 5)

	data, err := json.Marshal(problem)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, TypeCapacity, decoded["type"])
	assert.Equal(t, "Capacity Exhausted", decoded["title"])
	assert.Equal(t, float64(http.StatusTooManyRequests), decoded["status"])
	assert.Equal(t, "maximum concurrent jobs reached", decoded["detail"])
	assert.Equal(t, "/api/v1/jobs", decoded["instance"])

	// Extensions are flattened into the top-level object
	assert.Equal(t, float64(5), decoded["current"])
	assert.Equal(t, float64(5), decoded["max"])
}

func TestProblemDetailsOmitsEmptyFields(t *testing.T) {
	problem := NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error", "", "")

	data, err := json.Marshal(problem)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	_, hasDetail := decoded["detail"]
	_, hasInstance := decoded["instance"]
	assert.False(t, hasDetail)
	assert.False(t, hasInstance)
}

func TestNewValidationErrors(t *testing.T) {
	err := NewValidationErrors([]ValidationError{
		{Field: "image", Message: "image file is required"},
		{Field: "packageVariations", Message: "must be between 1 and 10"},
	})

	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", err.ErrorCode)

	details, ok := err.Details.(ValidationErrors)
	require.True(t, ok)
	assert.Len(t, details.Errors, 2)
}
