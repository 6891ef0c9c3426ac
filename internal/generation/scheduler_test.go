package generation_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promogen/internal/generation"
)

func TestScheduler_AdmitUpToCap(t *testing.T) {
	s := generation.NewScheduler(2)

	require.NoError(t, s.Admit())
	require.NoError(t, s.Admit())
	assert.Equal(t, 2, s.Active())

	err := s.Admit()
	require.Error(t, err)
	assert.Equal(t, generation.KindCapacityExhausted, generation.KindOf(err))

	var gErr *generation.Error
	require.ErrorAs(t, err, &gErr)
	assert.Equal(t, 2, gErr.Details["current"])
	assert.Equal(t, 2, gErr.Details["max"])
	assert.False(t, gErr.Retryable)
}

func TestScheduler_ReleaseFreesSlot(t *testing.T) {
	s := generation.NewScheduler(1)

	require.NoError(t, s.Admit())
	require.Error(t, s.Admit())

	s.Release()
	assert.Equal(t, 0, s.Active())
	require.NoError(t, s.Admit())
}

func TestScheduler_DefaultCap(t *testing.T) {
	s := generation.NewScheduler(0)
	assert.Equal(t, generation.DefaultMaxConcurrentJobs, s.Max())
}

func TestScheduler_ReleaseNeverGoesNegative(t *testing.T) {
	s := generation.NewScheduler(1)
	s.Release()
	assert.Equal(t, 0, s.Active())
}

func TestScheduler_ConcurrentAdmitsRespectCap(t *testing.T) {
	const maxJobs = 5
	s := generation.NewScheduler(maxJobs)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Admit(); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, maxJobs, admitted)
	assert.Equal(t, maxJobs, s.Active())
}
