package http

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "promogen/internal/errors"
	"promogen/internal/generation"
	"promogen/internal/services"
)

// MockBundleService is a mock implementation of the bundle service
type MockBundleService struct {
	mock.Mock
}

func (m *MockBundleService) Bundle(ctx context.Context, jobID string) ([]byte, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func setupDownloadsRouter(service *MockBundleService) chi.Router {
	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	errorHandler := apierrors.NewErrorHandler(logger, false)
	handler := NewDownloadsHandler(service, logger, errorHandler)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Mount("/api/downloads", handler.Routes())
	return r
}

// sampleArchive builds a tiny but valid ZIP so content assertions are
// performed against real archive bytes.
func sampleArchive(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("job-1/analysis.json")
	require.NoError(t, err)
	_, err = f.Write([]byte(`{"category":"beverage"}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDownloadsHandler_DownloadBundle(t *testing.T) {
	tests := []struct {
		name           string
		jobID          string
		setupMocks     func(*testing.T, *MockBundleService)
		expectedStatus int
		validate       func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:  "bundle served as zip",
			jobID: "job-1",
			setupMocks: func(t *testing.T, s *MockBundleService) {
				s.On("Bundle", mock.Anything, "job-1").Return(sampleArchive(t), nil)
			},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
				assert.Contains(t, w.Header().Get("Content-Disposition"), "promogen-job-1.zip")

				zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
				require.NoError(t, err)
				require.Len(t, zr.File, 1)
				assert.Equal(t, "job-1/analysis.json", zr.File[0].Name)
			},
		},
		{
			name:  "unknown job",
			jobID: "missing",
			setupMocks: func(t *testing.T, s *MockBundleService) {
				s.On("Bundle", mock.Anything, "missing").Return(nil, generation.ErrJobNotFound)
			},
			expectedStatus: http.StatusNotFound,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				var body map[string]interface{}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, "/errors/job/not-found", body["type"])
			},
		},
		{
			name:  "job still running",
			jobID: "job-2",
			setupMocks: func(t *testing.T, s *MockBundleService) {
				s.On("Bundle", mock.Anything, "job-2").Return(nil, services.ErrBundleNotReady)
			},
			expectedStatus: http.StatusNotFound,
			validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				var body map[string]interface{}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Contains(t, body["detail"], "no downloadable output")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &MockBundleService{}
			tt.setupMocks(t, service)
			router := setupDownloadsRouter(service)

			req := httptest.NewRequest("GET", "/api/downloads/"+tt.jobID, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.validate != nil {
				tt.validate(t, w)
			}
			service.AssertExpectations(t)
		})
	}
}
