package pool

import (
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of a Pool's lifetime counters.
type Stats struct {
	TotalJobsCompleted  int64
	FailedJobs          int64
	PeakQueueSize       int
	PeakActiveWorkers   int
	TotalProcessingTime time.Duration
	AvgProcessingTime   time.Duration
}

// statsTracker guards Stats with its own mutex, separate from the job
// queue's, and is never held across job execution.
type statsTracker struct {
	mu    sync.Mutex
	stats Stats
}

func (s *statsTracker) recordCompletion(d time.Duration, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.TotalJobsCompleted++
	if failed {
		s.stats.FailedJobs++
	}
	s.stats.TotalProcessingTime += d
	s.stats.AvgProcessingTime = s.stats.TotalProcessingTime / time.Duration(s.stats.TotalJobsCompleted)
}

func (s *statsTracker) observeQueueSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > s.stats.PeakQueueSize {
		s.stats.PeakQueueSize = n
	}
}

func (s *statsTracker) observeActiveWorkers(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > s.stats.PeakActiveWorkers {
		s.stats.PeakActiveWorkers = n
	}
}

func (s *statsTracker) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
