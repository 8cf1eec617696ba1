package thread

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Manager is a bounded-capacity primitive for supervised worker creation.
// It validates its configuration once at construction, then applies the
// resulting affinity/priority policy to every worker it spawns, before
// that worker runs the caller's closure.
type Manager struct {
	name    string
	config  Config
	idCount atomic.Uint64

	runningCount *atomic.Int64

	coresMu sync.Mutex
	cores   []int

	policyWarnOnce sync.Once
}

// New creates a Manager. Name must be shorter than MaxNameChars; config is
// validated in full (zero max_threads, undersized stacks, inverted or
// out-of-range core sets all fail here).
func New(name string, config Config) (*Manager, error) {
	if len(name) >= MaxNameChars {
		return nil, fmt.Errorf("%w: manager name %q too long (max %d chars)", ErrNameTooLong, name, MaxNameChars)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Manager{
		name:         name,
		config:       config,
		runningCount: new(atomic.Int64),
		cores:        config.CoreAllocation.AsCoreMask(),
	}, nil
}

// Spawn assigns a monotonic name suffix and spawns f on a new worker.
// Go does not allow generic methods, so this is a free function over *Manager.
func Spawn[T any](m *Manager, f func() T) (*JoinHandle[T], error) {
	n := m.idCount.Add(1) - 1
	return SpawnNamed(m, fmt.Sprintf("%s-%d", m.name, n), f)
}

// SpawnNamed spawns f on a new worker with an explicit name, enforcing the
// same length cap as New.
func SpawnNamed[T any](m *Manager, name string, f func() T) (*JoinHandle[T], error) {
	if len(name) >= MaxNameChars {
		return nil, fmt.Errorf("%w: worker name %q too long (max %d chars)", ErrNameTooLong, name, MaxNameChars)
	}

	running := m.runningCount.Load()
	if running >= int64(m.config.MaxThreads) {
		return nil, fmt.Errorf("%w: %d/%d threads running", ErrCapacityExhausted, running, m.config.MaxThreads)
	}

	m.coresMu.Lock()
	chosenCores := append([]int(nil), m.cores...)
	m.coresMu.Unlock()

	alloc := m.config.CoreAllocation
	priority := m.config.Priority
	workerName := name

	h := &JoinHandle[T]{
		name:         name,
		done:         make(chan struct{}),
		runningCount: m.runningCount,
	}

	m.runningCount.Add(1)
	h.armFinalizer()

	go func() {
		defer h.finish()
		if err := applyPolicy(alloc, chosenCores, workerName, priority); err != nil {
			m.policyWarnOnce.Do(func() {
				log.Warn().Err(err).Str("worker", workerName).Msg("thread: policy degraded, continuing with OS defaults")
			})
		}
		h.run(f)
	}()

	return h, nil
}

// RunningCount returns the current number of spawned-but-not-yet-joined
// workers.
func (m *Manager) RunningCount() int64 { return m.runningCount.Load() }

// IsFull reports whether the manager is at its configured capacity.
func (m *Manager) IsFull() bool { return m.RunningCount() >= int64(m.config.MaxThreads) }

// AvailableSlots returns how many more workers can be spawned right now.
func (m *Manager) AvailableSlots() int64 {
	free := int64(m.config.MaxThreads) - m.RunningCount()
	if free < 0 {
		return 0
	}
	return free
}

// Name returns the manager's configured name.
func (m *Manager) Name() string { return m.name }

// Config returns the manager's validated configuration.
func (m *Manager) Config() Config { return m.config }
