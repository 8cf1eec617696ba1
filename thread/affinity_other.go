//go:build !linux

package thread

import (
	"sync"

	"github.com/rs/zerolog/log"
)

var warnOnce sync.Once

// applyPolicy is a no-op on platforms without a wired affinity/priority
// syscall path. The core must function correctly without these
// optimizations, so this logs a single process-wide warning and returns
// nil rather than failing spawns.
func applyPolicy(alloc CoreAllocation, cores []int, name string, priority uint8) error {
	if alloc.Kind == OsDefault && priority == 0 {
		return nil
	}
	warnOnce.Do(func() {
		log.Warn().Msg("thread: CPU affinity and scheduling priority are not implemented on this platform; continuing with OS defaults")
	})
	return nil
}
