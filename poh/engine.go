package poh

import (
	"math"
	"time"

	"github.com/tolelom/timekeeper/poh/hash"
)

// Engine advances a single sequential hash chain. It is owned exclusively
// by the worker that drives it — its state must never be shared for
// concurrent mutation.
type Engine struct {
	currentHash hash.Digest
	tickCount   uint64
	startTime   time.Time
}

// New creates an Engine seeded from seed. current_hash = H(seed); counters
// start at zero; the monotonic start time is captured now.
func New(seed []byte) *Engine {
	return &Engine{
		currentHash: hash.Hash(seed),
		tickCount:   0,
		startTime:   time.Now(),
	}
}

// NextTick advances the chain by HashesPerTick sequential hashes with no
// event mixed in, and emits the record for the pre-increment tick index.
func (e *Engine) NextTick() Record {
	return e.advance(nil)
}

// InsertEvent mixes data into the chain before extending it, cryptographically
// binding the event to this tick's position in the sequence.
func (e *Engine) InsertEvent(data []byte) Record {
	return e.advance(data)
}

func (e *Engine) advance(event []byte) Record {
	if event != nil {
		e.currentHash = hash.WithPrefix(e.currentHash, event)
	}
	e.currentHash = hash.ExtendChain(e.currentHash, HashesPerTick)

	// timestamp_ms is captured after the chain extension completes, so it
	// reflects the time the tick was certified, not when it was requested.
	timestampMs := time.Since(e.startTime).Milliseconds()

	tick := e.tickCount
	rec := Record{
		TickIndex:   tick,
		SlotIndex:   slotIndex(tick),
		EpochIndex:  epochIndex(tick),
		Hash:        e.currentHash,
		TimestampMs: timestampMs,
	}
	if event != nil {
		rec.Event = append([]byte(nil), event...)
	}

	if e.tickCount == math.MaxUint64 {
		panic("poh: tick counter overflow")
	}
	e.tickCount++

	return rec
}

// TickCount returns the next tick index that will be emitted.
func (e *Engine) TickCount() uint64 {
	return e.tickCount
}

// Resume creates an Engine that continues an existing chain at currentHash
// and tickCount, with wall-clock timestamps measured from now. It exists for
// tooling that persists records between process runs rather than keeping a
// live Engine in memory — such a caller has no way to reconstruct the
// original startTime, so timestamps on resumed ticks are only meaningful
// relative to each other, not to ticks from before the resume.
func Resume(currentHash hash.Digest, tickCount uint64) *Engine {
	return &Engine{
		currentHash: currentHash,
		tickCount:   tickCount,
		startTime:   time.Now(),
	}
}
