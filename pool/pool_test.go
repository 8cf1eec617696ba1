package pool

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/timekeeper/thread"
)

func newTestPool(t *testing.T, workers int) *Pool {
	t.Helper()
	cfg := thread.DefaultConfig()
	cfg.MaxThreads = workers
	p, err := New("test-pool", cfg)
	require.NoError(t, err)
	return p
}

// TestSubmitHundredJobs is scenario S7.
func TestSubmitHundredJobs(t *testing.T) {
	p := newTestPool(t, 4)
	var counter atomic.Int64

	for i := 0; i < 100; i++ {
		require.NoError(t, p.Submit(func() error {
			counter.Add(1)
			return nil
		}))
	}

	require.NoError(t, p.WaitForCompletion())

	assert.Equal(t, int64(100), counter.Load())
	stats := p.Stats()
	assert.Equal(t, int64(100), stats.TotalJobsCompleted)
	assert.Equal(t, int64(0), stats.FailedJobs)

	p.Shutdown()
	p.Join()
}

// TestPanicRecoversAndPoolSurvives is scenario S8.
func TestPanicRecoversAndPoolSurvives(t *testing.T) {
	p := newTestPool(t, 2)

	require.NoError(t, p.Submit(func() error {
		panic("kaboom")
	}))
	require.NoError(t, p.WaitForCompletion())

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.FailedJobs)

	var ran atomic.Bool
	require.NoError(t, p.Submit(func() error {
		ran.Store(true)
		return nil
	}))
	require.NoError(t, p.WaitForCompletion())
	assert.True(t, ran.Load())

	p.Shutdown()
	p.Join()
}

func TestJobFailureCountsAsFailed(t *testing.T) {
	p := newTestPool(t, 1)
	require.NoError(t, p.Submit(func() error {
		return errors.New("nope")
	}))
	require.NoError(t, p.WaitForCompletion())
	assert.Equal(t, int64(1), p.Stats().FailedJobs)
	p.Shutdown()
	p.Join()
}

func TestSubmitBatchEnqueuesAll(t *testing.T) {
	p := newTestPool(t, 3)
	var counter atomic.Int64
	jobs := make([]Job, 50)
	for i := range jobs {
		jobs[i] = func() error {
			counter.Add(1)
			return nil
		}
	}
	n, err := p.SubmitBatch(jobs)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	require.NoError(t, p.WaitForCompletion())
	assert.Equal(t, int64(50), counter.Load())

	p.Shutdown()
	p.Join()
}

func TestSubmitAndWaitReturnsResult(t *testing.T) {
	p := newTestPool(t, 2)
	result, err := SubmitAndWait(p, func() (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, result)

	p.Shutdown()
	p.Join()
}

func TestSubmitAfterShutdownFails(t *testing.T) {
	p := newTestPool(t, 1)
	p.Shutdown()
	err := p.Submit(func() error { return nil })
	require.ErrorIs(t, err, ErrShutdownInProgress)
	p.Join()
}

func TestShutdownNowDiscardsQueue(t *testing.T) {
	p := newTestPool(t, 1)
	block := make(chan struct{})
	require.NoError(t, p.Submit(func() error {
		<-block
		return nil
	}))

	var executed atomic.Bool
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(func() error {
			executed.Store(true)
			return nil
		}))
	}

	time.Sleep(20 * time.Millisecond) // let the first job start running
	p.ShutdownNow()
	close(block)
	p.Join()

	assert.False(t, executed.Load(), "queued jobs should have been discarded")
}

func TestWaitForCompletionErrorsWhenShuttingDown(t *testing.T) {
	p := newTestPool(t, 1)
	p.Shutdown()
	err := p.WaitForCompletion()
	require.ErrorIs(t, err, ErrShutdownInProgress)
	p.Join()
}
