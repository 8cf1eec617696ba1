//go:build linux

package thread

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// applyPolicy pins the calling OS thread to the allowed core set (per
// alloc.Kind) and raises its scheduling priority, using Linux's native
// sched_setaffinity/setpriority syscalls. It must run on the worker
// goroutine itself, before the caller's closure, since affinity is a
// per-thread property and Go only guarantees goroutine-to-OS-thread
// pinning after runtime.LockOSThread.
func applyPolicy(alloc CoreAllocation, cores []int, name string, priority uint8) error {
	if alloc.Kind == OsDefault && priority == 0 {
		return nil
	}

	runtime.LockOSThread()

	if alloc.Kind != OsDefault {
		chosen := cores
		if alloc.Kind == PinnedCores {
			if len(cores) == 0 {
				return fmt.Errorf("pinned cores requested but allowed core set is empty")
			}
			sum := 0
			for _, b := range []byte(name) {
				sum += int(b)
			}
			chosen = []int{cores[sum%len(cores)]}
		}

		var set unix.CPUSet
		set.Zero()
		for _, c := range chosen {
			set.Set(c)
		}
		tid := unix.Gettid()
		if err := unix.SchedSetaffinity(tid, &set); err != nil {
			return fmt.Errorf("sched_setaffinity: %w", err)
		}
	}

	if priority > 0 {
		// Map the 0-255 priority band onto the kernel's nice range
		// (-20 highest .. 19 lowest): higher requested priority -> lower nice.
		nice := 19 - (int(priority)*39)/255
		if err := unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), nice); err != nil {
			return fmt.Errorf("setpriority: %w", err)
		}
	}

	return nil
}
