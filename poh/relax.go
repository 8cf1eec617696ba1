package poh

import "runtime"

// relax is the CPU-relaxation hint used inside the spin-wait segment of
// pacing. Go has no portable PAUSE intrinsic; runtime.Gosched is the
// standard no-op-equivalent hint used across the ecosystem for tight
// polling loops.
func relax() {
	runtime.Gosched()
}
