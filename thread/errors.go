package thread

import "errors"

// Error kinds surfaced by the thread manager (spec section 7).
var (
	// ErrConfigInvalid marks a construction-time validation failure.
	ErrConfigInvalid = errors.New("thread: invalid configuration")
	// ErrCapacityExhausted means spawn was attempted past max_threads; the
	// caller may retry once a slot frees up.
	ErrCapacityExhausted = errors.New("thread: manager at capacity")
	// ErrNameTooLong means a requested worker or manager name exceeds
	// MaxNameChars.
	ErrNameTooLong = errors.New("thread: name exceeds max length")
)
