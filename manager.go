package hybridmem

import (
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/hupe1980/hybridmem/internal/mem"
	"github.com/hupe1980/hybridmem/internal/registry"
	"github.com/hupe1980/hybridmem/internal/resource"
)

// Site is the source location an allocation was requested from.
type Site = registry.Site

// ObjectInfo is a read-only copy of a tracked object's metadata.
type ObjectInfo = registry.Info

// RegistryStats holds the counters of the tracked heap.
type RegistryStats = registry.Stats

// Stats is a snapshot of the manager counters.
type Stats struct {
	RegistryStats

	// ArenaAllocs counts allocations served by an arena.
	ArenaAllocs uint64
	// ArenaFallbacks counts requests that did not fit the active arena.
	ArenaFallbacks uint64
	// UntrackedOps counts Free, Retain and DecRef calls on memory the
	// registry does not track. They never change the registry counters.
	UntrackedOps uint64
	// Arenas is the number of arenas not yet destroyed.
	Arenas int
}

// Manager is a hybrid memory manager: a registry of reference-counted heap
// allocations plus bump-pointer arenas that bypass tracking.
//
// A Manager is safe for concurrent use. Each Manager is independent; there is
// no process-wide state.
type Manager struct {
	opts    options
	logger  *Logger
	metrics MetricsObserver
	reg     *registry.Registry
	heap    mem.Source
	rc      *resource.Controller
	warn    *rate.Limiter

	selMu  sync.Mutex
	stack  []*Arena
	arenas map[*Arena]struct{}

	arenaAllocs    atomic.Uint64
	arenaFallbacks atomic.Uint64
	untracked      atomic.Uint64

	bgMu      sync.Mutex
	bg        sync.WaitGroup
	bgRunning atomic.Bool
	closing   bool

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New creates a Manager.
func New(optFns ...Option) *Manager {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}

	rc := o.resource
	if rc == nil && o.memoryLimit > 0 {
		rc = resource.NewController(resource.Config{MemoryLimitBytes: o.memoryLimit})
	}

	heap := o.heapSource
	if rc != nil {
		heap = mem.NewBudgeted(heap, rc)
	}

	var regOpts []registry.Option
	if o.linearLookup {
		regOpts = append(regOpts, registry.WithLinearLookup())
	}
	regOpts = append(regOpts, registry.WithClock(o.now))

	return &Manager{
		opts:    o,
		logger:  o.logger,
		metrics: o.metrics,
		reg:     registry.New(regOpts...),
		heap:    heap,
		rc:      rc,
		warn:    o.warnLimiter(),
		arenas:  make(map[*Arena]struct{}),
	}
}

// Logger returns the configured logger.
func (m *Manager) Logger() *Logger {
	return m.logger
}

// ResourceController returns the resource controller, or nil if none is installed.
func (m *Manager) ResourceController() *ResourceController {
	return m.rc
}

// Stats returns the current counters.
func (m *Manager) Stats() Stats {
	s := Stats{
		RegistryStats:  m.reg.Stats(),
		ArenaAllocs:    m.arenaAllocs.Load(),
		ArenaFallbacks: m.arenaFallbacks.Load(),
		UntrackedOps:   m.untracked.Load(),
	}

	m.selMu.Lock()
	s.Arenas = len(m.arenas)
	m.selMu.Unlock()

	return s
}

// Closed reports whether Close has been called.
func (m *Manager) Closed() bool {
	return m.closed.Load()
}
