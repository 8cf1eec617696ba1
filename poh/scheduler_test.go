package poh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSchedulerProducesExactCount is scenario S1.
func TestSchedulerProducesExactCount(t *testing.T) {
	start := time.Now()
	recv := Spawn(seed64Zeros(), 32)

	var recs []Record
	for r := range recv.Records() {
		recs = append(recs, r)
	}
	elapsed := time.Since(start)

	require.Len(t, recs, 32)
	assert.True(t, VerifyRecords(recs))

	target := 32 * TickUS
	assert.GreaterOrEqual(t, elapsed, target*75/100)
	assert.LessOrEqual(t, elapsed, target*3)
}

// TestSchedulerOneSlotTransition is scenario S6.
func TestSchedulerOneSlotTransition(t *testing.T) {
	recv := Spawn(seed64Zeros(), 128)

	var recs []Record
	for r := range recv.Records() {
		recs = append(recs, r)
	}

	require.Len(t, recs, 128)
	assert.True(t, VerifyRecords(recs))

	transitions := 0
	for i := 1; i < len(recs); i++ {
		if recs[i].SlotIndex != recs[i-1].SlotIndex {
			transitions++
		}
	}
	assert.Equal(t, 1, transitions)
}

func TestSchedulerRecordsArriveInOrder(t *testing.T) {
	recv := Spawn(seed64Zeros(), 50)
	var last uint64
	first := true
	for r := range recv.Records() {
		if !first {
			assert.Equal(t, last+1, r.TickIndex)
		}
		last = r.TickIndex
		first = false
	}
}

func TestSchedulerCloseStopsProducer(t *testing.T) {
	recv := Spawn(seed64Zeros(), 1_000_000)
	// Drain a handful then walk away.
	for i := 0; i < 5; i++ {
		<-recv.Records()
	}
	recv.Close()

	// The channel must eventually close even though max_ticks was never
	// reached, proving the worker observed the stop signal.
	drained := false
	deadline := time.After(2 * time.Second)
	for !drained {
		select {
		case _, ok := <-recv.Records():
			if !ok {
				drained = true
			}
		case <-deadline:
			t.Fatal("scheduler did not stop after Close")
		}
	}
}
