package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "promogen/internal/errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name       string
		headerID   string
		wantReused bool
	}{
		{
			name:       "generates new ID when header absent",
			headerID:   "",
			wantReused: false,
		},
		{
			name:       "reuses ID from X-Request-ID header",
			headerID:   "req-12345",
			wantReused: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ctxID string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctxID = GetReqID(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
			if tt.headerID != "" {
				req.Header.Set("X-Request-ID", tt.headerID)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			respID := rec.Header().Get("X-Request-ID")
			assert.NotEmpty(t, respID)
			assert.Equal(t, respID, ctxID, "context ID should match response header")
			if tt.wantReused {
				assert.Equal(t, tt.headerID, respID)
			} else {
				assert.Len(t, respID, 36, "generated ID should be a UUID")
			}
		})
	}
}

func TestStructuredLogger(t *testing.T) {
	var sb strings.Builder
	logger := slog.New(slog.NewJSONHandler(&sb, nil))

	handler := RequestID(StructuredLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"job-1"}`))
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	logs := sb.String()
	assert.Contains(t, logs, "request started")
	assert.Contains(t, logs, "request completed")
	assert.Contains(t, logs, `"status":201`)
	assert.Contains(t, logs, "trace_id")
}

func TestStructuredLoggerQuietsHealthProbes(t *testing.T) {
	var sb strings.Builder
	logger := slog.New(slog.NewJSONHandler(&sb, nil))

	handler := RequestID(StructuredLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/health/live", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	// Probe completions log at debug, below the handler's info threshold.
	assert.Empty(t, sb.String())
}

func TestRecoverer(t *testing.T) {
	t.Run("recovers from panic", func(t *testing.T) {
		handler := Recoverer(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("stage executor blew up")
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "Internal Server Error")
	})

	t.Run("passes through without panic", func(t *testing.T) {
		handler := Recoverer(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRateLimiter(t *testing.T) {
	// Tiny burst so the third request in the same instant is rejected
	rl := NewRateLimiter(1, 2, discardLogger())
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d should be allowed", i+1)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRateLimiterSkipsHealthProbes(t *testing.T) {
	rl := NewRateLimiter(1, 1, discardLogger())
	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Exhaust the bucket
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Probes are never throttled
	req = httptest.NewRequest(http.MethodGet, "/api/health/live", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTimeout(t *testing.T) {
	t.Run("completes within timeout", func(t *testing.T) {
		handler := Timeout(time.Second, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("returns 504 when handler stalls", func(t *testing.T) {
		block := make(chan struct{})
		t.Cleanup(func() { close(block) })

		handler := Timeout(20*time.Millisecond, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-block
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
		assert.Contains(t, rec.Body.String(), "Request Timeout")
	})
}

func TestCORS(t *testing.T) {
	config := CORSConfig{
		AllowedOrigins: []string{"http://localhost:8080"},
		Logger:         discardLogger(),
	}

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantOrigin string
	}{
		{
			name:       "allowed origin is echoed",
			method:     http.MethodGet,
			origin:     "http://localhost:8080",
			wantStatus: http.StatusOK,
			wantOrigin: "http://localhost:8080",
		},
		{
			name:       "disallowed origin gets no CORS header",
			method:     http.MethodGet,
			origin:     "http://evil.example.com",
			wantStatus: http.StatusOK,
			wantOrigin: "",
		},
		{
			name:       "preflight short-circuits",
			method:     http.MethodOptions,
			origin:     "http://localhost:8080",
			wantStatus: http.StatusNoContent,
			wantOrigin: "http://localhost:8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := CORS(config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/api/v1/jobs", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
}

func TestValidationMiddleware_ValidateStruct(t *testing.T) {
	vm := NewValidationMiddleware(discardLogger())

	type submitRequest struct {
		ProductName       string   `json:"product_name" validate:"required,max=200"`
		PackageVariations int      `json:"package_variations" validate:"min=1,max=5"`
		AdPlatforms       []string `json:"ad_platforms" validate:"omitempty,dive,platform"`
	}

	tests := []struct {
		name       string
		req        submitRequest
		wantErr    bool
		wantFields []string
	}{
		{
			name: "valid request",
			req: submitRequest{
				ProductName:       "Juniper Soda",
				PackageVariations: 3,
				AdPlatforms:       []string{"instagram-square", "twitter-card"},
			},
			wantErr: false,
		},
		{
			name: "missing product name",
			req: submitRequest{
				PackageVariations: 3,
			},
			wantErr:    true,
			wantFields: []string{"product_name"},
		},
		{
			name: "variations out of range",
			req: submitRequest{
				ProductName:       "Juniper Soda",
				PackageVariations: 9,
			},
			wantErr:    true,
			wantFields: []string{"package_variations"},
		},
		{
			name: "unknown platform",
			req: submitRequest{
				ProductName:       "Juniper Soda",
				PackageVariations: 2,
				AdPlatforms:       []string{"myspace-banner"},
			},
			wantErr:    true,
			wantFields: []string{"ad_platforms"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := vm.ValidateStruct(tt.req)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			apiErr, ok := err.(*apierrors.APIError)
			require.True(t, ok, "expected *APIError, got %T", err)
			assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

			ve, ok := apiErr.Details.(apierrors.ValidationErrors)
			require.True(t, ok, "details should hold field errors")
			fields := make([]string, 0, len(ve.Errors))
			for _, fe := range ve.Errors {
				fields = append(fields, fe.Field)
			}
			joined := strings.Join(fields, ", ")
			for _, field := range tt.wantFields {
				assert.Contains(t, joined, field)
			}
		})
	}
}

func TestContentTypeValidator(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		wantStatus  int
	}{
		{
			name:        "multipart accepted",
			method:      http.MethodPost,
			contentType: "multipart/form-data; boundary=xyz",
			wantStatus:  http.StatusOK,
		},
		{
			name:        "missing content type rejected",
			method:      http.MethodPost,
			contentType: "",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "wrong content type rejected",
			method:      http.MethodPost,
			contentType: "text/plain",
			wantStatus:  http.StatusUnsupportedMediaType,
		},
		{
			name:        "GET skips validation",
			method:      http.MethodGet,
			contentType: "",
			wantStatus:  http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := ContentTypeValidator("multipart/form-data", "application/json")(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				}))

			req := httptest.NewRequest(tt.method, "/api/v1/jobs", nil)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestQueryParamValidator(t *testing.T) {
	qv := NewQueryParamValidator(discardLogger(), apierrors.NewErrorHandler(discardLogger(), false))

	t.Run("int default when absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
		rec := httptest.NewRecorder()
		got, ok := qv.ValidateInt(rec, req, "limit", 1, 100, 20)
		assert.True(t, ok)
		assert.Equal(t, 20, got)
	})

	t.Run("int out of range", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs?limit=500", nil)
		rec := httptest.NewRecorder()
		_, ok := qv.ValidateInt(rec, req, "limit", 1, 100, 20)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("int not a number", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs?limit=abc", nil)
		rec := httptest.NewRecorder()
		_, ok := qv.ValidateInt(rec, req, "limit", 1, 100, 20)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("enum accepts listed value", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs?status=processing", nil)
		rec := httptest.NewRecorder()
		got, ok := qv.ValidateEnum(rec, req, "status", []string{"pending", "processing", "completed", "failed"}, "")
		assert.True(t, ok)
		assert.Equal(t, "processing", got)
	})

	t.Run("enum rejects unknown value", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs?status=sideways", nil)
		rec := httptest.NewRecorder()
		_, ok := qv.ValidateEnum(rec, req, "status", []string{"pending", "processing"}, "")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
