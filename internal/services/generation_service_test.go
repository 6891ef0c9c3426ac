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
)

func newGenerationFixture(t *testing.T) (*services.GenerationService, *testutil.FakeAnalyzer) {
	t.Helper()

	caps, analyzer, _, _ := testutil.FakeCapabilities()
	orch := generation.New(testutil.TestConfig(), caps, testutil.DiscardLogger())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orch.Shutdown(ctx)
	})

	svc, err := services.NewGenerationService(orch, testutil.DiscardLogger())
	require.NoError(t, err)
	return svc, analyzer
}

func waitDone(t *testing.T, svc *services.GenerationService, jobID string) *generation.Job {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := svc.WaitForCompletion(ctx, jobID)
	require.NoError(t, err)
	return job
}

func TestNewGenerationService_RequiresOrchestrator(t *testing.T) {
	_, err := services.NewGenerationService(nil, testutil.DiscardLogger())
	require.Error(t, err)
}

func TestGenerationService_SubmitAndGet(t *testing.T) {
	svc, _ := newGenerationFixture(t)

	res, err := svc.Submit(context.Background(), testutil.TinyPNG(), testutil.SampleOptions())
	require.NoError(t, err)
	assert.NotEmpty(t, res.JobID)
	assert.Equal(t, generation.JobPending, res.Status)
	assert.Greater(t, res.EstimatedSeconds, 0)

	job := waitDone(t, svc, res.JobID)
	assert.Equal(t, generation.JobCompleted, job.Status)

	got, err := svc.GetJob(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, res.JobID, got.ID)
	require.NotNil(t, got.Result)
	assert.Equal(t, "/api/downloads/"+res.JobID, got.Result.DownloadURL)
}

func TestGenerationService_SubmitRejectsEmptyImage(t *testing.T) {
	svc, _ := newGenerationFixture(t)

	_, err := svc.Submit(context.Background(), nil, testutil.SampleOptions())
	require.Error(t, err)
	assert.Equal(t, generation.KindInvalidInput, generation.KindOf(err))
}

func TestGenerationService_GetJobUnknown(t *testing.T) {
	svc, _ := newGenerationFixture(t)

	_, err := svc.GetJob(context.Background(), "no-such-job")
	assert.Equal(t, generation.KindNotFound, generation.KindOf(err))
}

func TestGenerationService_ListJobs(t *testing.T) {
	svc, _ := newGenerationFixture(t)
	assert.Empty(t, svc.ListJobs(context.Background()))

	res, err := svc.Submit(context.Background(), testutil.TinyPNG(), testutil.SampleOptions())
	require.NoError(t, err)
	waitDone(t, svc, res.JobID)

	jobs := svc.ListJobs(context.Background())
	require.Len(t, jobs, 1)
	assert.Equal(t, res.JobID, jobs[0].ID)
}

func TestGenerationService_CancelJob(t *testing.T) {
	t.Run("unknown job", func(t *testing.T) {
		svc, _ := newGenerationFixture(t)

		err := svc.CancelJob(context.Background(), "no-such-job")
		assert.Equal(t, generation.KindNotFound, generation.KindOf(err))
	})

	t.Run("terminal job", func(t *testing.T) {
		svc, _ := newGenerationFixture(t)

		res, err := svc.Submit(context.Background(), testutil.TinyPNG(), testutil.SampleOptions())
		require.NoError(t, err)
		waitDone(t, svc, res.JobID)

		err = svc.CancelJob(context.Background(), res.JobID)
		assert.ErrorIs(t, err, generation.ErrJobTerminal)
	})

	t.Run("running job", func(t *testing.T) {
		svc, analyzer := newGenerationFixture(t)

		release := make(chan struct{})
		defer close(release)
		analyzer.AnalyzeFunc = func(ctx context.Context, image []byte, mimeType string) (*generation.ImageAnalysis, error) {
			select {
			case <-release:
				return testutil.DefaultAnalysis(), nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		res, err := svc.Submit(context.Background(), testutil.TinyPNG(), testutil.SampleOptions())
		require.NoError(t, err)

		require.NoError(t, svc.CancelJob(context.Background(), res.JobID))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		job, err := svc.WaitForCompletion(ctx, res.JobID)
		require.Error(t, err)
		assert.Equal(t, generation.KindJobFailed, generation.KindOf(err))
		assert.Equal(t, generation.JobFailed, job.Status)
	})
}

func TestGenerationService_DeleteJob(t *testing.T) {
	svc, _ := newGenerationFixture(t)

	err := svc.DeleteJob(context.Background(), "no-such-job")
	assert.Equal(t, generation.KindNotFound, generation.KindOf(err))

	res, err := svc.Submit(context.Background(), testutil.TinyPNG(), testutil.SampleOptions())
	require.NoError(t, err)
	waitDone(t, svc, res.JobID)

	require.NoError(t, svc.DeleteJob(context.Background(), res.JobID))

	_, err = svc.GetJob(context.Background(), res.JobID)
	assert.Equal(t, generation.KindNotFound, generation.KindOf(err))
}

func TestGenerationService_SystemStatus(t *testing.T) {
	svc, _ := newGenerationFixture(t)

	status := svc.SystemStatus(context.Background())
	assert.Equal(t, 0, status.ActiveCount)
	assert.Equal(t, generation.DefaultMaxConcurrentJobs, status.MaxConcurrent)
	assert.Equal(t, 0, status.TotalJobs)

	res, err := svc.Submit(context.Background(), testutil.TinyPNG(), testutil.SampleOptions())
	require.NoError(t, err)
	waitDone(t, svc, res.JobID)

	status = svc.SystemStatus(context.Background())
	assert.Equal(t, 1, status.TotalJobs)
}
