package poh

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed64Zeros() []byte {
	return bytes.Repeat([]byte{'0'}, 64)
}

func generate(e *Engine, n int) []Record {
	recs := make([]Record, n)
	for i := 0; i < n; i++ {
		recs[i] = e.NextTick()
	}
	return recs
}

// TestTickIndexesAreSequential covers invariant 1.
func TestTickIndexesAreSequential(t *testing.T) {
	e := New(seed64Zeros())
	recs := generate(e, 20)
	for i, r := range recs {
		assert.Equal(t, uint64(i), r.TickIndex)
	}
}

// TestVerifyRecordsTrueForFreshChain covers invariant 2.
func TestVerifyRecordsTrueForFreshChain(t *testing.T) {
	e := New(seed64Zeros())
	recs := generate(e, 20)
	assert.True(t, VerifyRecords(recs))
}

// TestTimestampsMonotonic covers invariant 3.
func TestTimestampsMonotonic(t *testing.T) {
	e := New(seed64Zeros())
	recs := generate(e, 20)
	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i].TimestampMs, recs[i-1].TimestampMs)
	}
}

// TestVerifierIdempotent covers invariant 5.
func TestVerifierIdempotent(t *testing.T) {
	e := New(seed64Zeros())
	recs := generate(e, 10)
	first := VerifyRecords(recs)
	second := VerifyRecords(recs)
	assert.Equal(t, first, second)
}

// TestDeterminism covers invariant 6: two engines from the same seed
// produce pairwise identical hash/tick/slot/epoch/event fields.
func TestDeterminism(t *testing.T) {
	e1 := New(seed64Zeros())
	e2 := New(seed64Zeros())

	r1 := generate(e1, 15)
	r2 := generate(e2, 15)

	for i := range r1 {
		assert.Equal(t, r1[i].Hash, r2[i].Hash)
		assert.Equal(t, r1[i].TickIndex, r2[i].TickIndex)
		assert.Equal(t, r1[i].SlotIndex, r2[i].SlotIndex)
		assert.Equal(t, r1[i].EpochIndex, r2[i].EpochIndex)
		assert.Equal(t, r1[i].Event, r2[i].Event)
	}
}

// TestInsertEventMixesEventAndIsNotDoubleHashed covers scenario S3.
func TestInsertEventMixesEventAndIsNotDoubleHashed(t *testing.T) {
	e := New(seed64Zeros())

	r1 := e.NextTick()
	assert.Nil(t, r1.Event)

	// What the hash would be if tick 2 had been a bare NextTick instead.
	shadow := New(seed64Zeros())
	shadow.NextTick()
	plainNext := shadow.NextTick()

	r2 := e.InsertEvent([]byte("Test event data"))
	require.Equal(t, []byte("Test event data"), r2.Event)
	assert.NotEqual(t, plainNext.Hash, r2.Hash)

	r3 := e.NextTick()
	assert.Nil(t, r3.Event)

	require.True(t, VerifyRecords([]Record{r1, r2, r3}))
}

// TestSlotTransition covers scenario S2.
func TestSlotTransition(t *testing.T) {
	e := New(seed64Zeros())
	recs := generate(e, TicksPerSlot+5)

	require.Len(t, recs, 69)
	assert.Equal(t, uint64(0), recs[63].SlotIndex)
	assert.Equal(t, uint64(1), recs[64].SlotIndex)
	assert.True(t, VerifyRecords(recs))
}

// TestCorruptionDetected covers invariant 4 and scenarios S4/S5.
func TestCorruptionDetected(t *testing.T) {
	t.Run("hash byte flip", func(t *testing.T) {
		e := New(seed64Zeros())
		recs := generate(e, 10)
		recs[5].Hash[0] ^= 0xFF
		assert.False(t, VerifyRecords(recs))
	})

	t.Run("tick index tampered", func(t *testing.T) {
		e := New(seed64Zeros())
		recs := generate(e, 10)
		recs[3].TickIndex += 2
		assert.False(t, VerifyRecords(recs))
	})

	t.Run("slot index tampered", func(t *testing.T) {
		e := New(seed64Zeros())
		recs := generate(e, 10)
		recs[2].SlotIndex += 1
		assert.False(t, VerifyRecords(recs))
	})

	t.Run("epoch index tampered", func(t *testing.T) {
		e := New(seed64Zeros())
		recs := generate(e, 10)
		recs[2].EpochIndex += 1
		assert.False(t, VerifyRecords(recs))
	})

	t.Run("event byte tampered", func(t *testing.T) {
		e := New(seed64Zeros())
		before := e.NextTick()
		withEvent := e.InsertEvent([]byte("payload"))
		after := e.NextTick()
		recs := []Record{before, withEvent, after}
		recs[1].Event[0] ^= 0xFF
		assert.False(t, VerifyRecords(recs))
	})
}

func TestTickCounterOverflowPanics(t *testing.T) {
	e := New(seed64Zeros())
	e.tickCount = ^uint64(0) // math.MaxUint64
	assert.Panics(t, func() {
		e.NextTick()
	})
}
