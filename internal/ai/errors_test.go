package ai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"promogen/internal/generation"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status    int
		wantKind  generation.ErrorKind
		retryable bool
	}{
		{status: 401, wantKind: generation.KindAuthError},
		{status: 403, wantKind: generation.KindAuthError},
		{status: 408, wantKind: generation.KindTransient, retryable: true},
		{status: 429, wantKind: generation.KindRateLimit, retryable: true},
		{status: 400, wantKind: generation.KindFatal},
		{status: 404, wantKind: generation.KindFatal},
		{status: 500, wantKind: generation.KindTransient, retryable: true},
		{status: 503, wantKind: generation.KindTransient, retryable: true},
	}

	for _, tt := range tests {
		err := classifyStatus(generation.StagePackages, tt.status, "")
		assert.Equal(t, tt.wantKind, err.Kind, "status %d", tt.status)
		assert.Equal(t, tt.retryable, generation.IsRetryable(err), "status %d", tt.status)
		assert.Equal(t, generation.StagePackages, err.Stage, "status %d", tt.status)
	}
}

func TestClassifyStatus_IncludesBody(t *testing.T) {
	err := classifyStatus(generation.StageAds, 400, `{"error":  {"message": "prompt rejected"}}`)
	assert.Contains(t, err.Message, "status 400")
	assert.Contains(t, err.Message, "prompt rejected")
}

func TestClassifyProviderError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind generation.ErrorKind
	}{
		{name: "nil", err: nil},
		{name: "http 429", err: errors.New("Error 429, RESOURCE_EXHAUSTED, please retry"), wantKind: generation.KindRateLimit},
		{name: "quota wording", err: errors.New("quota exceeded for project"), wantKind: generation.KindRateLimit},
		{name: "overloaded", err: errors.New("overloaded_error: Overloaded"), wantKind: generation.KindRateLimit},
		{name: "invalid key", err: errors.New("invalid api key provided"), wantKind: generation.KindAuthError},
		{name: "permission denied", err: errors.New("permission denied for model"), wantKind: generation.KindAuthError},
		{name: "server error", err: errors.New("502 bad gateway"), wantKind: generation.KindTransient},
		{name: "service unavailable", err: errors.New("service unavailable, try again"), wantKind: generation.KindTransient},
		{name: "unmatched", err: errors.New("something odd happened"), wantKind: generation.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyProviderError(generation.StageTexts, tt.err)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantKind, generation.KindOf(err))
		})
	}
}

func TestCompactBody(t *testing.T) {
	assert.Equal(t, "a b c", compactBody("a\n  b\t c"))
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	got := compactBody(string(long))
	assert.Len(t, got, 203)
	assert.Contains(t, got, "...")
}
