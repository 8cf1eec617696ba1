package poh

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tolelom/timekeeper/poh/hash"
)

func TestVerifyRecordsEmptyIsFalse(t *testing.T) {
	assert.False(t, VerifyRecords(nil))
	assert.False(t, VerifyRecords([]Record{}))
}

func TestVerifyTimestampsEmptyIsFalse(t *testing.T) {
	assert.False(t, VerifyTimestamps(nil, TimestampToleranceMS))
	assert.False(t, VerifyTimestamps([]Record{}, TimestampToleranceMS))
}

func TestVerifyTimestampsWithinTolerance(t *testing.T) {
	tickMs := TickUS.Milliseconds()
	recs := []Record{
		{TickIndex: 0, TimestampMs: 1000},
		{TickIndex: 1, TimestampMs: 1000 + tickMs},
		{TickIndex: 2, TimestampMs: 1000 + 2*tickMs + 3}, // 3ms of drift, within default tolerance
	}
	assert.True(t, VerifyTimestamps(recs, TimestampToleranceMS))
}

func TestVerifyTimestampsOutsideToleranceFails(t *testing.T) {
	tickMs := TickUS.Milliseconds()
	recs := []Record{
		{TickIndex: 0, TimestampMs: 1000},
		{TickIndex: 1, TimestampMs: 1000 + tickMs + 50}, // way outside tolerance
	}
	assert.False(t, VerifyTimestamps(recs, TimestampToleranceMS))
}

func TestExtendChainVerifierRoundTrip(t *testing.T) {
	// For all h, n: re-deriving extend_chain(h, n) and comparing under
	// constant-time equality always succeeds, which is exactly what
	// VerifyRecords relies on for its hash-continuity check.
	for _, n := range []uint64{0, 1, 8, 100} {
		h := hash.Hash([]byte("seed"))
		extended := hash.ExtendChain(h, n)
		rederived := hash.ExtendChain(h, n)
		assert.True(t, hash.ConstantTimeEq(extended, rederived), "n=%d", n)
	}
}
