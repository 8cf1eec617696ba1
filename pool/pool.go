// Package pool implements a general-purpose work-submission facility
// layered on thread.Manager: a fixed set of pre-spawned workers pull jobs
// off a shared queue, each wrapped in a panic boundary, with statistics
// tracked separately from the queue lock.
package pool

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tolelom/timekeeper/thread"
)

// Job is a fallible unit of work submitted to a Pool.
type Job func() error

const (
	initialBackoff = 2 * time.Millisecond
	maxBackoff     = 100 * time.Millisecond
)

// Pool is a fixed-size worker pool with an unbounded queue and lifetime stats.
type Pool struct {
	name string
	mgr  *thread.Manager

	mu    sync.Mutex
	cond  *sync.Cond
	queue []Job

	shuttingDown atomic.Bool
	active       atomic.Int64

	handles []*thread.JoinHandle[struct{}]

	stats statsTracker
}

// New creates a Pool and pre-spawns exactly config.MaxThreads workers, each
// running the queue-draining loop described in the package doc.
func New(name string, config thread.Config) (*Pool, error) {
	mgr, err := thread.New(name, config)
	if err != nil {
		return nil, err
	}

	p := &Pool{name: name, mgr: mgr}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < config.MaxThreads; i++ {
		h, err := thread.Spawn(mgr, func() struct{} {
			p.workerLoop()
			return struct{}{}
		})
		if err != nil {
			return nil, fmt.Errorf("pool: pre-spawn worker %d: %w", i, err)
		}
		p.handles = append(p.handles, h)
	}
	return p, nil
}

func (p *Pool) workerLoop() {
	for {
		job, ok := p.nextJob()
		if !ok {
			return
		}

		start := time.Now()
		failed := p.runJob(job)
		p.stats.recordCompletion(time.Since(start), failed)

		p.active.Add(-1)
	}
}

// nextJob waits (with exponentially backed-off timed waits, so shutdown is
// observed within bounded latency even against an empty queue) until a job
// is available or shutdown has drained the queue.
func (p *Pool) nextJob() (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	backoff := initialBackoff
	for len(p.queue) == 0 {
		if p.shuttingDown.Load() {
			return nil, false
		}
		timer := time.AfterFunc(backoff, func() {
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		})
		p.cond.Wait()
		timer.Stop()
		if backoff < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}

	job := p.queue[0]
	p.queue = p.queue[1:]
	// Count the job as active while still holding the queue lock, so
	// WaitForCompletion never sees an empty queue and no active worker
	// while a popped job has yet to run.
	n := p.active.Add(1)
	p.stats.observeActiveWorkers(int(n))
	return job, true
}

func (p *Pool) runJob(job Job) (failed bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("pool", p.name).Msg("pool: job panicked")
			failed = true
		}
	}()
	if err := job(); err != nil {
		log.Error().Err(err).Str("pool", p.name).Msg("pool: job returned an error")
		return true
	}
	return false
}

// Submit enqueues job and wakes one worker. Returns ErrShutdownInProgress
// once the pool has begun shutting down.
func (p *Pool) Submit(job Job) error {
	if p.shuttingDown.Load() {
		return ErrShutdownInProgress
	}
	p.mu.Lock()
	p.queue = append(p.queue, job)
	p.stats.observeQueueSize(len(p.queue))
	p.mu.Unlock()
	p.cond.Signal()
	return nil
}

// SubmitBatch enqueues all of jobs under a single lock acquisition and
// wakes up to min(len(jobs), worker count) workers. It returns the number
// of jobs enqueued (0 if the pool is shutting down).
func (p *Pool) SubmitBatch(jobs []Job) (int, error) {
	if p.shuttingDown.Load() {
		return 0, ErrShutdownInProgress
	}
	p.mu.Lock()
	p.queue = append(p.queue, jobs...)
	p.stats.observeQueueSize(len(p.queue))
	p.mu.Unlock()

	wake := len(jobs)
	if workers := len(p.handles); wake > workers {
		wake = workers
	}
	for i := 0; i < wake; i++ {
		p.cond.Signal()
	}
	return len(jobs), nil
}

// SubmitAndWait enqueues f and blocks until it has run, returning its
// result. Go cannot express a generic method, so this is a free function
// over *Pool. There is no timeout: it blocks until the job completes or
// the pool is torn down without ever running it (in which case it returns
// ErrShutdownInProgress without having executed f).
func SubmitAndWait[R any](p *Pool, f func() (R, error)) (R, error) {
	var (
		mu     sync.Mutex
		cond   = sync.NewCond(&mu)
		done   bool
		result R
		jobErr error
	)

	submitErr := p.Submit(func() error {
		r, err := f()
		mu.Lock()
		result, jobErr, done = r, err, true
		cond.Broadcast()
		mu.Unlock()
		return err
	})
	if submitErr != nil {
		var zero R
		return zero, submitErr
	}

	mu.Lock()
	for !done {
		cond.Wait()
	}
	mu.Unlock()

	return result, jobErr
}

// Shutdown sets the shutdown flag and wakes every worker; each worker
// drains the remaining queue before exiting.
func (p *Pool) Shutdown() {
	p.shuttingDown.Store(true)
	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()
}

// ShutdownNow sets the shutdown flag, discards the queued-but-not-started
// jobs (logging how many were dropped), and wakes every worker. Jobs
// already executing are allowed to complete.
func (p *Pool) ShutdownNow() {
	p.shuttingDown.Store(true)
	p.mu.Lock()
	discarded := len(p.queue)
	p.queue = nil
	p.cond.Broadcast()
	p.mu.Unlock()
	if discarded > 0 {
		log.Warn().Int("discarded", discarded).Str("pool", p.name).Msg("pool: shutdown_now discarded queued jobs")
	}
}

// Join waits for every worker to exit and returns the final statistics.
// Call Shutdown or ShutdownNow first — Join never returns on its own.
func (p *Pool) Join() Stats {
	for _, h := range p.handles {
		if _, err := h.Join(); err != nil {
			log.Error().Err(err).Str("pool", p.name).Msg("pool: worker exited abnormally")
		}
	}
	return p.stats.snapshot()
}

// WaitForCompletion polls every 10ms until the queue is empty and no
// worker is actively executing a job. It returns ErrShutdownInProgress if
// the pool is already shutting down, since completion in that state is
// better observed via Join.
func (p *Pool) WaitForCompletion() error {
	if p.shuttingDown.Load() {
		return ErrShutdownInProgress
	}
	for {
		p.mu.Lock()
		empty := len(p.queue) == 0
		p.mu.Unlock()
		if empty && p.active.Load() == 0 {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Stats returns a snapshot of the pool's lifetime statistics.
func (p *Pool) Stats() Stats {
	return p.stats.snapshot()
}
