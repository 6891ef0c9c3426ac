package generation_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promogen/internal/generation"
	"promogen/internal/generation/testutil"
)

func TestStore_CreateAndGet(t *testing.T) {
	store := generation.NewStore(nil, nil)

	opts := testutil.SampleOptions()
	opts.SkipAds = true
	created := store.Create(opts)

	require.NotEmpty(t, created.ID)
	assert.Equal(t, generation.JobPending, created.Status)
	assert.Equal(t, generation.StagePending, created.Progress[generation.StageAnalysis])
	assert.Equal(t, generation.StagePending, created.Progress[generation.StagePackages])
	assert.Equal(t, generation.StageSkipped, created.Progress[generation.StageAds])
	assert.Equal(t, generation.StagePending, created.Progress[generation.StageTexts])
	assert.Nil(t, created.Result)
	assert.Nil(t, created.CompletedAt)

	got, err := store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, opts.BrandName, got.Options.BrandName)

	// Snapshots are isolated from the stored record.
	got.Progress[generation.StageAnalysis] = generation.StageDone
	again, err := store.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, generation.StagePending, again.Progress[generation.StageAnalysis])
}

func TestStore_GetUnknown(t *testing.T) {
	store := generation.NewStore(nil, nil)

	_, err := store.Get("no-such-job")
	require.Error(t, err)
	assert.Equal(t, generation.KindNotFound, generation.KindOf(err))
}

func TestStore_TerminalTransitionStampsCompletedAt(t *testing.T) {
	store := generation.NewStore(nil, nil)
	job := store.Create(testutil.SampleOptions())

	require.NoError(t, store.UpdateStatus(job.ID, generation.JobProcessing))
	require.NoError(t, store.UpdateStatus(job.ID, generation.JobCompleted))

	got, err := store.Get(job.ID)
	require.NoError(t, err)
	testutil.AssertTerminal(t, got, generation.JobCompleted)
}

func TestStore_TerminalJobsAreImmutable(t *testing.T) {
	store := generation.NewStore(nil, nil)
	job := store.Create(testutil.SampleOptions())
	require.NoError(t, store.UpdateStatus(job.ID, generation.JobCompleted))

	assert.ErrorIs(t, store.UpdateStatus(job.ID, generation.JobProcessing), generation.ErrJobTerminal)
	assert.ErrorIs(t, store.UpdateStage(job.ID, generation.StageAnalysis, generation.StageDone), generation.ErrJobTerminal)
	assert.ErrorIs(t, store.SetResult(job.ID, &generation.Result{DownloadURL: "/x"}), generation.ErrJobTerminal)
	assert.ErrorIs(t, store.SetError(job.ID, "late"), generation.ErrJobTerminal)

	got, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, generation.JobCompleted, got.Status)
	assert.Empty(t, got.Error)
}

func TestStore_SkippedStageNeverChanges(t *testing.T) {
	store := generation.NewStore(nil, nil)
	opts := testutil.SampleOptions()
	opts.SkipTexts = true
	job := store.Create(opts)

	err := store.UpdateStage(job.ID, generation.StageTexts, generation.StageProcessing)
	assert.ErrorIs(t, err, generation.ErrStageSkipped)

	got, _ := store.Get(job.ID)
	testutil.AssertStage(t, got, generation.StageTexts, generation.StageSkipped)
}

func TestStore_SetResultMerges(t *testing.T) {
	store := generation.NewStore(nil, nil)
	job := store.Create(testutil.SampleOptions())

	require.NoError(t, store.SetResult(job.ID, &generation.Result{Analysis: testutil.DefaultAnalysis()}))
	require.NoError(t, store.SetResult(job.ID, &generation.Result{
		Packages: []generation.PackageDesign{{VariationType: "minimalist", Style: "minimalist"}},
	}))
	require.NoError(t, store.SetResult(job.ID, &generation.Result{DownloadURL: "/api/downloads/" + job.ID}))

	got, err := store.Get(job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Result)
	assert.NotNil(t, got.Result.Analysis)
	require.Len(t, got.Result.Packages, 1)
	assert.Equal(t, "minimalist", got.Result.Packages[0].VariationType)
	assert.Equal(t, "/api/downloads/"+job.ID, got.Result.DownloadURL)
}

func TestStore_OneEventPerMutation(t *testing.T) {
	store := generation.NewStore(nil, nil)
	job := store.Create(testutil.SampleOptions())

	rec := testutil.NewEventRecorder()
	unsubscribe, err := store.Subscribe(job.ID, rec.Callback())
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, store.UpdateStatus(job.ID, generation.JobProcessing))
	require.NoError(t, store.UpdateStage(job.ID, generation.StageAnalysis, generation.StageProcessing))
	require.NoError(t, store.UpdateStage(job.ID, generation.StageAnalysis, generation.StageDone))
	require.NoError(t, store.SetResult(job.ID, &generation.Result{Analysis: testutil.DefaultAnalysis()}))
	require.NoError(t, store.UpdateStatus(job.ID, generation.JobCompleted))

	rec.WaitTerminal(t, 2*time.Second)

	// Replay plus one event per mutation.
	events := rec.Events()
	require.Len(t, events, 6)
	assert.Equal(t, generation.EventProgress, events[0].Kind)
	assert.Equal(t, generation.JobPending, events[0].Status)
	assert.Equal(t, generation.EventComplete, events[len(events)-1].Kind)
	testutil.AssertOrderedEvents(t, events)
}

func TestStore_SubscribeReplaysCurrentState(t *testing.T) {
	store := generation.NewStore(nil, nil)
	job := store.Create(testutil.SampleOptions())

	require.NoError(t, store.UpdateStatus(job.ID, generation.JobProcessing))
	require.NoError(t, store.UpdateStage(job.ID, generation.StageAnalysis, generation.StageProcessing))

	rec := testutil.NewEventRecorder()
	unsubscribe, err := store.Subscribe(job.ID, rec.Callback())
	require.NoError(t, err)
	defer unsubscribe()

	// Replay is delivered before Subscribe returns.
	first, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, generation.JobProcessing, first.Status)
	assert.Equal(t, generation.StageProcessing, first.Progress[generation.StageAnalysis])
}

func TestStore_SubscribeTerminalJobReplaysTerminalEvent(t *testing.T) {
	store := generation.NewStore(nil, nil)
	job := store.Create(testutil.SampleOptions())
	require.NoError(t, store.SetError(job.ID, "analysis failed: bad image"))
	require.NoError(t, store.UpdateStatus(job.ID, generation.JobFailed))

	rec := testutil.NewEventRecorder()
	unsubscribe, err := store.Subscribe(job.ID, rec.Callback())
	require.NoError(t, err)
	defer unsubscribe()

	first, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, generation.EventError, first.Kind)
	assert.Equal(t, "analysis failed: bad image", first.Error)
}

func TestStore_SubscribeUnknownJob(t *testing.T) {
	store := generation.NewStore(nil, nil)

	_, err := store.Subscribe("missing", func(generation.ProgressEvent) {})
	require.Error(t, err)
	assert.Equal(t, generation.KindNotFound, generation.KindOf(err))
}

func TestStore_UnsubscribeStopsDelivery(t *testing.T) {
	store := generation.NewStore(nil, nil)
	job := store.Create(testutil.SampleOptions())

	rec := testutil.NewEventRecorder()
	unsubscribe, err := store.Subscribe(job.ID, rec.Callback())
	require.NoError(t, err)

	unsubscribe()
	before := rec.Count()

	require.NoError(t, store.UpdateStatus(job.ID, generation.JobProcessing))
	require.NoError(t, store.UpdateStatus(job.ID, generation.JobCompleted))
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, before, rec.Count())
}

func TestStore_SlowSubscriberDoesNotBlockMutations(t *testing.T) {
	store := generation.NewStore(nil, nil)
	job := store.Create(testutil.SampleOptions())

	gate := make(chan struct{})
	rec := testutil.NewEventRecorder()
	inner := rec.Callback()
	var seen int32
	unsubscribe, err := store.Subscribe(job.ID, func(ev generation.ProgressEvent) {
		// Let the synchronous replay through, stall everything after it.
		if atomic.AddInt32(&seen, 1) > 1 {
			<-gate
		}
		inner(ev)
	})
	require.NoError(t, err)
	defer unsubscribe()

	start := time.Now()
	require.NoError(t, store.UpdateStatus(job.ID, generation.JobProcessing))
	require.NoError(t, store.UpdateStage(job.ID, generation.StageAnalysis, generation.StageProcessing))
	require.NoError(t, store.UpdateStage(job.ID, generation.StageAnalysis, generation.StageDone))
	require.NoError(t, store.UpdateStatus(job.ID, generation.JobCompleted))
	assert.Less(t, time.Since(start), time.Second, "publishing must not wait for the subscriber")

	close(gate)
	rec.WaitTerminal(t, 2*time.Second)
	require.Equal(t, 5, rec.Count())
	testutil.AssertOrderedEvents(t, rec.Events())
}

func TestStore_DeleteDrainsQueuedEvents(t *testing.T) {
	store := generation.NewStore(nil, nil)
	job := store.Create(testutil.SampleOptions())

	gate := make(chan struct{})
	rec := testutil.NewEventRecorder()
	inner := rec.Callback()
	var seen int32
	_, err := store.Subscribe(job.ID, func(ev generation.ProgressEvent) {
		if atomic.AddInt32(&seen, 1) > 1 {
			<-gate
		}
		inner(ev)
	})
	require.NoError(t, err)

	require.NoError(t, store.UpdateStatus(job.ID, generation.JobProcessing))
	require.NoError(t, store.UpdateStatus(job.ID, generation.JobCompleted))
	require.True(t, store.Delete(job.ID))

	// Deletion detaches the subscriber but already-queued events, the
	// terminal one included, still drain.
	close(gate)
	rec.WaitTerminal(t, 2*time.Second)
	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, generation.EventComplete, last.Kind)

	_, err = store.Get(job.ID)
	assert.Equal(t, generation.KindNotFound, generation.KindOf(err))
}

func TestStore_PanickingSubscriberIsIsolated(t *testing.T) {
	store := generation.NewStore(nil, nil)
	job := store.Create(testutil.SampleOptions())

	_, err := store.Subscribe(job.ID, func(generation.ProgressEvent) {
		panic("subscriber bug")
	})
	require.NoError(t, err)

	rec := testutil.NewEventRecorder()
	unsubscribe, err := store.Subscribe(job.ID, rec.Callback())
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, store.UpdateStatus(job.ID, generation.JobProcessing))
	require.NoError(t, store.UpdateStatus(job.ID, generation.JobCompleted))

	rec.WaitTerminal(t, 2*time.Second)
	assert.Equal(t, 3, rec.Count())
}

func TestStore_SubscribersSeeIdenticalStreams(t *testing.T) {
	store := generation.NewStore(nil, nil)
	job := store.Create(testutil.SampleOptions())

	first := testutil.NewEventRecorder()
	second := testutil.NewEventRecorder()
	unsub1, err := store.Subscribe(job.ID, first.Callback())
	require.NoError(t, err)
	defer unsub1()
	unsub2, err := store.Subscribe(job.ID, second.Callback())
	require.NoError(t, err)
	defer unsub2()

	require.NoError(t, store.UpdateStatus(job.ID, generation.JobProcessing))
	require.NoError(t, store.UpdateStage(job.ID, generation.StageAnalysis, generation.StageProcessing))
	require.NoError(t, store.UpdateStage(job.ID, generation.StageAnalysis, generation.StageFailed))
	require.NoError(t, store.SetError(job.ID, "analysis failed: provider down"))
	require.NoError(t, store.UpdateStatus(job.ID, generation.JobFailed))

	first.WaitTerminal(t, 2*time.Second)
	second.WaitTerminal(t, 2*time.Second)

	assert.Equal(t, first.Events(), second.Events())
	testutil.AssertOrderedEvents(t, first.Events())
}

func TestStore_DeleteExpired(t *testing.T) {
	store := generation.NewStore(nil, nil)

	done := store.Create(testutil.SampleOptions())
	require.NoError(t, store.UpdateStatus(done.ID, generation.JobCompleted))
	failed := store.Create(testutil.SampleOptions())
	require.NoError(t, store.UpdateStatus(failed.ID, generation.JobFailed))
	running := store.Create(testutil.SampleOptions())
	require.NoError(t, store.UpdateStatus(running.ID, generation.JobProcessing))

	time.Sleep(30 * time.Millisecond)

	// Terminal jobs past the TTL go; the running one stays however old.
	deleted := store.DeleteExpired(10 * time.Millisecond)
	assert.Equal(t, 2, deleted)
	assert.Equal(t, 1, store.Count())

	_, err := store.Get(running.ID)
	assert.NoError(t, err)

	// Fresh terminal jobs survive a sweep with a generous TTL.
	fresh := store.Create(testutil.SampleOptions())
	require.NoError(t, store.UpdateStatus(fresh.ID, generation.JobCompleted))
	assert.Equal(t, 0, store.DeleteExpired(time.Hour))
	assert.Equal(t, 2, store.Count())
}

func TestStore_DeleteUnknown(t *testing.T) {
	store := generation.NewStore(nil, nil)
	assert.False(t, store.Delete("missing"))
}
