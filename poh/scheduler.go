package poh

import (
	"fmt"
	"sync"
	"time"

	"github.com/tolelom/timekeeper/thread"
)

// Receiver is the consumer-facing handle returned by Spawn. Records arrive
// over Records() in strictly increasing tick_index order; its closure
// signals end-of-stream. Close signals the producer that this consumer has
// gone away — Go has no destructor-time channel drop, so Close is the
// explicit equivalent, observed by the scheduler worker as a cancellation
// on its next send attempt.
type Receiver struct {
	records  chan Record
	stop     chan struct{}
	stopOnce sync.Once
}

// Records returns the channel records are delivered over. It is closed
// when the scheduler terminates, whether by reaching max_ticks or by this
// Receiver being Closed.
func (r *Receiver) Records() <-chan Record { return r.records }

// Close tells the scheduler worker to stop producing. Safe to call more
// than once or concurrently with draining Records().
func (r *Receiver) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// schedulerManager lazily creates the single dedicated thread.Manager the
// package's scheduler workers are spawned on, one worker per call to Spawn.
var (
	schedulerManagerOnce sync.Once
	schedulerManager     *thread.Manager
)

func manager() *thread.Manager {
	schedulerManagerOnce.Do(func() {
		mgr, err := thread.New("poh-scheduler", thread.Config{
			CoreAllocation: thread.Default(),
			MaxThreads:     1 << 16, // effectively unbounded: one scheduler worker per engine
			Priority:       0,
			StackSizeBytes: 2 * 1024 * 1024,
		})
		if err != nil {
			panic(fmt.Sprintf("poh: failed to create scheduler thread manager: %v", err))
		}
		schedulerManager = mgr
	})
	return schedulerManager
}

// Spawn drives a new Engine seeded from seed at the TickUS cadence,
// delivering up to maxTicks records over the returned Receiver. Tick 0 and
// every eventStampingInterval'th tick after it stamps a synthetic event
// instead of a bare tick, exercising the event-binding path end to end.
func Spawn(seed []byte, maxTicks uint64) *Receiver {
	r := &Receiver{
		records: make(chan Record, ChannelCapacity),
		stop:    make(chan struct{}),
	}
	if _, err := thread.Spawn(manager(), func() struct{} {
		runSchedule(seed, maxTicks, r)
		return struct{}{}
	}); err != nil {
		// Capacity exhaustion on an effectively-unbounded manager should not
		// happen in practice; fail the stream visibly rather than hang callers.
		close(r.records)
	}
	return r
}

func runSchedule(seed []byte, maxTicks uint64, r *Receiver) {
	defer close(r.records)

	engine := New(seed)
	start := time.Now()
	batch := make([]Record, 0, BatchSize)

	for i := uint64(0); i < maxTicks; i++ {
		var rec Record
		if i%eventStampingInterval == 0 {
			rec = engine.InsertEvent([]byte(fmt.Sprintf("Event at tick %d", i)))
		} else {
			rec = engine.NextTick()
		}
		batch = append(batch, rec)

		if len(batch) >= BatchSize {
			if !drain(r, batch) {
				return
			}
			batch = batch[:0]
		}

		target := start.Add(time.Duration(i+1) * TickUS)
		if !pace(target, r.stop) {
			drain(r, batch)
			return
		}
	}

	drain(r, batch)
}

// drain sends every record in batch, in order, returning false as soon as
// the receiver signals it has gone away.
func drain(r *Receiver, batch []Record) bool {
	for _, rec := range batch {
		select {
		case r.records <- rec:
		case <-r.stop:
			return false
		}
	}
	return true
}

// pace blocks until target using hybrid sleep+spin pacing, returning false
// early if stop fires. Sub-SpinThresholdUS residuals busy-wait with a
// scheduler-yield as the CPU-relaxation hint; larger residuals sleep most
// of the way first so the OS scheduler isn't hammered every tick.
func pace(target time.Time, stop <-chan struct{}) bool {
	remaining := time.Until(target)
	if remaining > SpinThresholdUS {
		timer := time.NewTimer(remaining - SpinThresholdUS)
		select {
		case <-timer.C:
		case <-stop:
			timer.Stop()
			return false
		}
	}
	for time.Now().Before(target) {
		select {
		case <-stop:
			return false
		default:
		}
		relax()
	}
	return true
}
