package thread

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesConfig(t *testing.T) {
	_, err := New("mgr", Config{MaxThreads: 0, StackSizeBytes: minStackSizeBytes})
	require.ErrorIs(t, err, ErrConfigInvalid)

	_, err = New("mgr", Config{MaxThreads: 1, StackSizeBytes: 1024})
	require.ErrorIs(t, err, ErrConfigInvalid)

	_, err = New("mgr", Config{
		MaxThreads:     1,
		StackSizeBytes: minStackSizeBytes,
		CoreAllocation: CoreAllocation{Kind: PinnedCores, Min: 5, Max: 1},
	})
	require.ErrorIs(t, err, ErrConfigInvalid)
}

func TestNewRejectsLongName(t *testing.T) {
	_, err := New(strings.Repeat("x", MaxNameChars), DefaultConfig())
	require.ErrorIs(t, err, ErrNameTooLong)
}

func TestSpawnRunsClosureAndJoins(t *testing.T) {
	mgr, err := New("mgr", DefaultConfig())
	require.NoError(t, err)

	h, err := Spawn(mgr, func() int { return 42 })
	require.NoError(t, err)

	result, err := h.Join()
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, int64(0), mgr.RunningCount())
}

func TestSpawnCapacityExhausted(t *testing.T) {
	mgr, err := New("mgr", Config{MaxThreads: 1, StackSizeBytes: minStackSizeBytes, CoreAllocation: Default()})
	require.NoError(t, err)

	block := make(chan struct{})
	h1, err := Spawn(mgr, func() int {
		<-block
		return 1
	})
	require.NoError(t, err)

	// Give the worker goroutine a moment to start before checking capacity.
	for mgr.RunningCount() == 0 {
		time.Sleep(time.Millisecond)
	}

	_, err = Spawn(mgr, func() int { return 2 })
	require.ErrorIs(t, err, ErrCapacityExhausted)

	close(block)
	_, err = h1.Join()
	require.NoError(t, err)

	assert.Equal(t, int64(1), mgr.AvailableSlots())
}

func TestJoinSurfacesPanic(t *testing.T) {
	mgr, err := New("mgr", DefaultConfig())
	require.NoError(t, err)

	h, err := Spawn(mgr, func() int {
		panic("boom")
	})
	require.NoError(t, err)

	_, err = h.Join()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, int64(0), mgr.RunningCount())
}

func TestSpawnNamedRejectsLongName(t *testing.T) {
	mgr, err := New("mgr", DefaultConfig())
	require.NoError(t, err)

	_, err = SpawnNamed(mgr, strings.Repeat("y", MaxNameChars), func() int { return 0 })
	require.ErrorIs(t, err, ErrNameTooLong)
}

func TestDoubleJoinErrors(t *testing.T) {
	mgr, err := New("mgr", DefaultConfig())
	require.NoError(t, err)

	h, err := Spawn(mgr, func() int { return 1 })
	require.NoError(t, err)

	_, err = h.Join()
	require.NoError(t, err)

	_, err = h.Join()
	require.Error(t, err)
}
