package poh

import "github.com/tolelom/timekeeper/poh/hash"

// VerifyRecords re-derives the chain from records and checks both hash
// continuity and index derivation for every adjacent pair. An empty slice
// returns false — it is treated as ill-formed input, not vacuously valid,
// so that an accidental empty batch is never mistaken for a verified one.
func VerifyRecords(records []Record) bool {
	if len(records) == 0 {
		return false
	}
	for i := 1; i < len(records); i++ {
		prev, curr := records[i-1], records[i]

		expected := prev.Hash
		if curr.Event != nil {
			expected = hash.WithPrefix(expected, curr.Event)
		}
		expected = hash.ExtendChain(expected, HashesPerTick)

		if !hash.ConstantTimeEq(expected, curr.Hash) {
			return false
		}
		if curr.TickIndex != prev.TickIndex+1 {
			return false
		}
		if curr.SlotIndex != slotIndex(curr.TickIndex) {
			return false
		}
		if curr.EpochIndex != epochIndex(curr.TickIndex) {
			return false
		}
	}
	return true
}

// VerifyTimestamps checks that every record's wall-clock timestamp falls
// within tolerance of the expected cadence anchored at records[0]. The
// expected time is derived from each record's position in the slice, not
// from its TickIndex, matching the cryptographic predicate's deliberate
// separation from liveness checking: VerifyRecords alone vouches for
// TickIndex continuity, so a sparse sample (e.g. one record per block)
// must be re-contiguized by the caller before this function can judge its
// cadence. An empty slice returns false for the same reason as VerifyRecords.
func VerifyTimestamps(records []Record, toleranceMs int64) bool {
	if len(records) == 0 {
		return false
	}
	t0 := records[0].TimestampMs
	tickUs := TickUS.Microseconds()
	for i, r := range records {
		expected := t0 + int64(i)*tickUs/1000
		diff := r.TimestampMs - expected
		if diff < 0 {
			diff = -diff
		}
		if diff > toleranceMs {
			return false
		}
	}
	return true
}
