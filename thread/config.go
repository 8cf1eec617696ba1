// Package thread implements a bounded-capacity supervised worker primitive:
// the Manager validates a core-affinity/priority policy once at
// construction, then applies it to every worker it spawns before running
// the caller's closure.
package thread

import (
	"fmt"
	"runtime"
)

// MaxNameChars caps both manager and spawned-worker names.
const MaxNameChars = 32

// AllocationKind selects how a Manager picks CPU cores for its workers.
type AllocationKind int

const (
	// OsDefault leaves affinity untouched; the OS scheduler decides.
	OsDefault AllocationKind = iota
	// PinnedCores binds each worker to a single core, chosen deterministically
	// from [Min, Max] by a hash of the worker's name.
	PinnedCores
	// DedicatedCoreSet binds every worker to the entire [Min, Max] core range.
	DedicatedCoreSet
)

// CoreAllocation describes the requested affinity policy.
type CoreAllocation struct {
	Kind     AllocationKind
	Min, Max int // inclusive core IDs; ignored when Kind == OsDefault
}

// Default returns the OS-default allocation (no affinity change).
func Default() CoreAllocation { return CoreAllocation{Kind: OsDefault} }

// AsCoreMask expands the allocation into the concrete set of allowed core
// IDs, used both for validation and for the per-spawn snapshot handed to
// workers.
func (c CoreAllocation) AsCoreMask() []int {
	switch c.Kind {
	case PinnedCores, DedicatedCoreSet:
		if c.Min > c.Max {
			return nil
		}
		mask := make([]int, 0, c.Max-c.Min+1)
		for id := c.Min; id <= c.Max; id++ {
			mask = append(mask, id)
		}
		return mask
	default:
		mask := make([]int, runtime.NumCPU())
		for i := range mask {
			mask[i] = i
		}
		return mask
	}
}

func (c CoreAllocation) validate() error {
	switch c.Kind {
	case PinnedCores, DedicatedCoreSet:
		if c.Min > c.Max {
			return fmt.Errorf("%w: invalid core range: min(%d) > max(%d)", ErrConfigInvalid, c.Min, c.Max)
		}
		if n := runtime.NumCPU(); c.Max >= n {
			return fmt.Errorf("%w: max core id (%d) exceeds available cores (%d)", ErrConfigInvalid, c.Max, n-1)
		}
		return nil
	case OsDefault:
		return nil
	default:
		return fmt.Errorf("%w: unknown core allocation kind %d", ErrConfigInvalid, c.Kind)
	}
}

// Config is a Manager's construction-time policy. All fields are validated
// once, at New.
type Config struct {
	CoreAllocation CoreAllocation
	MaxThreads     int
	Priority       uint8 // 0 means "leave the OS default alone"
	StackSizeBytes uint64
}

// DefaultConfig mirrors the reference implementation's defaults: OS-default
// affinity, one worker slot per logical CPU, no priority change, 2 MiB
// stacks. StackSizeBytes is validated but not applied: Go goroutine stacks
// grow on demand, and neither a worker goroutine nor the OS thread it may be
// locked to is sized from it.
func DefaultConfig() Config {
	return Config{
		CoreAllocation: Default(),
		MaxThreads:     runtime.NumCPU(),
		Priority:       0,
		StackSizeBytes: 2 * 1024 * 1024,
	}
}

const minStackSizeBytes = 64 * 1024

func (c Config) validate() error {
	if c.MaxThreads <= 0 {
		return fmt.Errorf("%w: max_threads must be greater than 0", ErrConfigInvalid)
	}
	if c.StackSizeBytes < minStackSizeBytes {
		return fmt.Errorf("%w: stack_size_bytes must be at least 64KiB", ErrConfigInvalid)
	}
	return c.CoreAllocation.validate()
}
