package pool

import "errors"

// ErrShutdownInProgress is returned by Submit/SubmitBatch/SubmitAndWait once
// a pool has begun (or finished) shutting down. It is not retryable for
// that pool.
var ErrShutdownInProgress = errors.New("pool: shutdown in progress")
