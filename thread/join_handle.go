package thread

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// JoinHandle is returned by Spawn/SpawnNamed. It tracks the manager's
// running-worker count via a shared atomic, decremented exactly once when
// the handle is joined (explicitly, or via the best-effort finalizer path
// below).
type JoinHandle[T any] struct {
	name string
	done chan struct{}

	result   T
	panicVal any

	joined atomic.Bool

	runningCount *atomic.Int64
}

func (h *JoinHandle[T]) run(f func() T) {
	defer func() {
		if r := recover(); r != nil {
			h.panicVal = r
		}
	}()
	h.result = f()
}

func (h *JoinHandle[T]) finish() {
	close(h.done)
}

// Join blocks until the worker finishes and returns its result. If the
// worker panicked, the panic payload is surfaced as an error instead of
// propagating. Join may only be called once.
func (h *JoinHandle[T]) Join() (T, error) {
	if !h.joined.CompareAndSwap(false, true) {
		var zero T
		return zero, fmt.Errorf("thread: worker %q already joined", h.name)
	}
	runtime.SetFinalizer(h, nil)
	<-h.done
	h.runningCount.Add(-1)
	if h.panicVal != nil {
		var zero T
		return zero, fmt.Errorf("thread: worker %q panicked: %v", h.name, h.panicVal)
	}
	return h.result, nil
}

// IsFinished reports whether the worker has completed, without blocking.
func (h *JoinHandle[T]) IsFinished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Name returns the worker's assigned name.
func (h *JoinHandle[T]) Name() string { return h.name }

// armFinalizer installs the best-effort-join-on-drop behavior described in
// the spec: a handle that is garbage collected without having been joined
// logs one warning and joins in the background so the running count is
// never leaked. This mirrors the os.File finalizer pattern in the standard
// library — a GC finalizer as a last-resort safety net, not the primary
// cleanup path.
func (h *JoinHandle[T]) armFinalizer() {
	runtime.SetFinalizer(h, func(h *JoinHandle[T]) {
		if h.joined.CompareAndSwap(false, true) {
			log.Warn().Str("worker", h.name).Msg("thread: JoinHandle dropped without Join; best-effort joining to avoid leaking the running count")
			<-h.done
			h.runningCount.Add(-1)
		}
	})
}
