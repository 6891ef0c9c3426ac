package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promogen/internal/generation"
	"promogen/internal/generation/testutil"
	"promogen/internal/services"
	ws "promogen/internal/websocket"
)

func newHealthFixture(t *testing.T) (*services.HealthService, *generation.Orchestrator) {
	t.Helper()

	caps, _, _, _ := testutil.FakeCapabilities()
	orch := generation.New(testutil.TestConfig(), caps, testutil.DiscardLogger())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orch.Shutdown(ctx)
	})

	hub := ws.NewHub(orch, testutil.DiscardLogger())
	svc := services.NewHealthServiceWithBuildInfo("1.2.3", "2025-01-02T00:00:00Z", "abc123", orch, hub, testutil.DiscardLogger())
	return svc, orch
}

func TestHealthService_HealthCheck(t *testing.T) {
	svc, _ := newHealthFixture(t)

	status := svc.HealthCheck(context.Background())
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.WithinDuration(t, time.Now(), status.Timestamp, time.Minute)
}

func TestHealthService_LivenessCheck(t *testing.T) {
	svc, _ := newHealthFixture(t)

	status := svc.LivenessCheck(context.Background())
	assert.Equal(t, "alive", status.Status)
	require.NotNil(t, status.Runtime)
	assert.Contains(t, status.Runtime, "go_version")
	assert.Contains(t, status.Runtime, "goroutines")
}

func TestHealthService_ReadinessCheck(t *testing.T) {
	t.Run("all dependencies wired", func(t *testing.T) {
		svc, _ := newHealthFixture(t)

		status := svc.ReadinessCheck(context.Background())
		assert.Equal(t, "ready", status.Status)
		require.Contains(t, status.Services, "generation")
		require.Contains(t, status.Services, "websocket")
	})

	t.Run("missing orchestrator", func(t *testing.T) {
		svc := services.NewHealthService("1.2.3", nil, nil, testutil.DiscardLogger())

		status := svc.ReadinessCheck(context.Background())
		assert.Equal(t, "not_ready", status.Status)
	})
}

func TestHealthService_Version(t *testing.T) {
	svc, _ := newHealthFixture(t)

	info := svc.Version()
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "2025-01-02T00:00:00Z", info["build_time"])
	assert.Equal(t, "abc123", info["build_id"])
	assert.Contains(t, info, "go_version")
	assert.Contains(t, info, "uptime")
}

func TestHealthService_SystemStats(t *testing.T) {
	svc, orch := newHealthFixture(t)

	stats, err := svc.SystemStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ActiveJobs)
	assert.Equal(t, generation.DefaultMaxConcurrentJobs, stats.MaxConcurrentJobs)
	assert.Equal(t, 0, stats.WebSocketClients)

	res, err := orch.Submit(testutil.TinyPNG(), testutil.SampleOptions())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = orch.WaitForCompletion(ctx, res.JobID)
	require.NoError(t, err)

	stats, err = svc.SystemStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalJobs)
}
