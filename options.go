package hybridmem

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/hybridmem/internal/mem"
	"github.com/hupe1980/hybridmem/internal/resource"
)

// DefaultAutoCollectThreshold is the live byte total above which automatic
// collection runs when enabled without an explicit threshold.
const DefaultAutoCollectThreshold = 1 << 20

// DefaultWarnInterval is the minimum spacing of arena exhaustion warnings.
const DefaultWarnInterval = time.Second

// Verbosity controls how much detail reports and logs carry.
type Verbosity int

const (
	VerbosityQuiet Verbosity = iota
	VerbosityError
	VerbosityWarn
	VerbosityInfo
	VerbosityDebug
)

func (v Verbosity) String() string {
	switch v {
	case VerbosityQuiet:
		return "quiet"
	case VerbosityError:
		return "error"
	case VerbosityWarn:
		return "warn"
	case VerbosityInfo:
		return "info"
	case VerbosityDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// BlockSource provides the raw memory behind tracked objects and arenas.
type BlockSource = mem.Source

// GoHeapSource returns a block source backed by the Go heap.
func GoHeapSource() BlockSource { return mem.GoHeap{} }

// OffHeapSource returns a block source that maps every block anonymously
// outside the Go heap.
func OffHeapSource() BlockSource { return mem.NewOffHeap() }

type options struct {
	logger            *Logger
	metrics           MetricsObserver
	autoCollect       bool
	autoThreshold     uint64
	autoBackground    bool
	collectorDisabled bool
	verbosity         Verbosity
	heapSource        mem.Source
	arenaSource       mem.Source
	memoryLimit       int64
	resource          *resource.Controller
	linearLookup      bool
	unsyncArena       bool
	warnInterval      time.Duration
	now               func() time.Time
}

func defaultOptions() options {
	return options{
		logger:       NoopLogger(),
		metrics:      NoopMetricsObserver{},
		verbosity:    VerbosityWarn,
		heapSource:   mem.GoHeap{},
		arenaSource:  mem.GoHeap{},
		warnInterval: DefaultWarnInterval,
		now:          time.Now,
	}
}

func (o *options) warnLimiter() *rate.Limiter {
	if o.warnInterval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(o.warnInterval), 1)
}

// Option configures a Manager.
type Option func(*options)

// WithLogger configures structured logging.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := hybridmem.NewJSONLogger(slog.LevelInfo)
//	m := hybridmem.New(hybridmem.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel installs a text logger on stderr at the given level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsObserver configures an observer for allocator events.
// Pass nil to disable metrics.
func WithMetricsObserver(mo MetricsObserver) Option {
	return func(o *options) {
		if mo == nil {
			mo = NoopMetricsObserver{}
		}
		o.metrics = mo
	}
}

// WithAutoCollect runs a collection after any tracked allocation that leaves
// the live byte total above threshold. The collection runs inline, after the
// registry lock has been released. A threshold of 0 selects
// DefaultAutoCollectThreshold.
func WithAutoCollect(threshold uint64) Option {
	return func(o *options) {
		if threshold == 0 {
			threshold = DefaultAutoCollectThreshold
		}
		o.autoCollect = true
		o.autoThreshold = threshold
	}
}

// WithAutoCollectBackground is WithAutoCollect, but the collection is
// scheduled on a background goroutine. At most one background collection
// runs at a time; with a resource controller installed it also needs a free
// background slot, otherwise the trigger is skipped.
func WithAutoCollectBackground(threshold uint64) Option {
	return func(o *options) {
		WithAutoCollect(threshold)(o)
		o.autoBackground = true
	}
}

// WithoutAutoCollect disables threshold-triggered collection. This is the default.
func WithoutAutoCollect() Option {
	return func(o *options) {
		o.autoCollect = false
		o.autoBackground = false
	}
}

// WithCollectorDisabled turns Collect into a no-op. Free still reclaims
// objects whose count reaches zero, and Close still runs its final pass.
func WithCollectorDisabled() Option {
	return func(o *options) {
		o.collectorDisabled = true
	}
}

// WithVerbosity sets the report verbosity. From VerbosityInfo on every report
// lists the live objects.
func WithVerbosity(v Verbosity) Option {
	return func(o *options) {
		o.verbosity = v
	}
}

// WithHeapSource sets the block source of tracked allocations.
func WithHeapSource(src BlockSource) Option {
	return func(o *options) {
		if src != nil {
			o.heapSource = src
		}
	}
}

// WithArenaSource sets the default block source of arenas.
func WithArenaSource(src BlockSource) Option {
	return func(o *options) {
		if src != nil {
			o.arenaSource = src
		}
	}
}

// WithMemoryLimit caps the bytes held by tracked objects and arena blocks.
// Requests beyond the limit fail with ErrOutOfMemory. It installs a resource
// controller unless one is configured with WithResourceController.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithResourceController shares a resource controller between managers.
// Its memory budget applies to every block, and its background slots bound
// background collections.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resource = rc
	}
}

// WithLinearLookup makes Free and Retain find objects by scanning the
// registry list instead of the address index. Lookups then cost O(live objects).
func WithLinearLookup() Option {
	return func(o *options) {
		o.linearLookup = true
	}
}

// WithUnsynchronizedArena creates arenas without the arena-local lock.
// Concurrent allocations from one arena then race on its offset and may
// return overlapping memory. Use only when each arena has a single owner.
func WithUnsynchronizedArena() Option {
	return func(o *options) {
		o.unsyncArena = true
	}
}

// WithWarnRate sets the minimum spacing of arena exhaustion warnings.
// Zero or negative logs every exhaustion.
func WithWarnRate(interval time.Duration) Option {
	return func(o *options) {
		o.warnInterval = interval
	}
}

// ArenaOption configures an Arena created by Manager.NewArena.
type ArenaOption func(*arenaOptions)

type arenaOptions struct {
	name   string
	source mem.Source
}

// WithArenaName names the arena in logs, metrics and reports.
func WithArenaName(name string) ArenaOption {
	return func(o *arenaOptions) {
		o.name = name
	}
}

// WithOffHeap backs the arena block with an anonymous mapping outside the Go heap.
func WithOffHeap() ArenaOption {
	return func(o *arenaOptions) {
		o.source = mem.NewOffHeap()
	}
}

// WithArenaBlockSource backs the arena block with src.
func WithArenaBlockSource(src BlockSource) ArenaOption {
	return func(o *arenaOptions) {
		if src != nil {
			o.source = src
		}
	}
}

// ResourceController bounds the memory held by block sources, the number of
// concurrent background collections and snapshot export throughput.
type ResourceController = resource.Controller

// ResourceConfig holds the limits of a ResourceController.
type ResourceConfig = resource.Config

// NewResourceController creates a controller for use with WithResourceController.
func NewResourceController(cfg ResourceConfig) *ResourceController {
	return resource.NewController(cfg)
}
