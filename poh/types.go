// Package poh implements a Proof-of-History timekeeper: a sequential
// hash-chain engine, a real-time pacing scheduler, and a verifier that
// re-derives the chain to check both ordering and wall-clock drift.
package poh

import (
	"time"

	"github.com/tolelom/timekeeper/poh/hash"
)

// Default cadence and sizing parameters (section 6 of the spec).
const (
	HashesPerTick         = 12_500
	TickUS                = 6_250 * time.Microsecond
	TicksPerSlot          = 64
	SlotsPerEpoch         = 432_000
	ChannelCapacity       = 1_000
	BatchSize             = 64
	SpinThresholdUS       = 250 * time.Microsecond
	TimestampToleranceMS  = 8
	eventStampingInterval = 10 // every 10th tick stamps a synthetic event
)

// Record is the immutable output of a single tick. It is produced once by
// the engine and never mutated afterward.
type Record struct {
	TickIndex   uint64      `json:"tick_index"`
	SlotIndex   uint64      `json:"slot_index"`
	EpochIndex  uint64      `json:"epoch_index"`
	Hash        hash.Digest `json:"hash"`
	TimestampMs int64       `json:"timestamp_ms"`
	Event       []byte      `json:"event,omitempty"`
}

func slotIndex(tick uint64) uint64  { return tick / TicksPerSlot }
func epochIndex(tick uint64) uint64 { return slotIndex(tick) / SlotsPerEpoch }
