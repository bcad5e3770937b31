// Package promobs exports allocator events as Prometheus metrics.
//
//	reg := prometheus.NewRegistry()
//	obs, err := promobs.New(promobs.WithRegisterer(reg))
//	if err != nil { ... }
//
//	m := hybridmem.New(hybridmem.WithMetricsObserver(obs))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package promobs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/hybridmem"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "hybridmem"

// Observer implements hybridmem.MetricsObserver on Prometheus collectors.
type Observer struct {
	allocs        *prometheus.CounterVec
	allocBytes    *prometheus.CounterVec
	allocSize     *prometheus.HistogramVec
	frees         prometheus.Counter
	freedBytes    prometheus.Counter
	collections   prometheus.Counter
	collectTime   prometheus.Histogram
	collectFreed  prometheus.Counter
	collectBytes  prometheus.Counter
	arenaFallback *prometheus.CounterVec
	liveBytes     prometheus.Gauge
}

var _ hybridmem.MetricsObserver = (*Observer)(nil)

type options struct {
	namespace  string
	registerer prometheus.Registerer
	constLabel prometheus.Labels
}

// Option configures an Observer.
type Option func(*options)

// WithNamespace overrides DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithRegisterer registers the collectors with r instead of
// prometheus.DefaultRegisterer.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithConstLabels attaches labels to every metric, e.g. to tell several
// managers in one process apart.
func WithConstLabels(l prometheus.Labels) Option {
	return func(o *options) { o.constLabel = l }
}

// New creates an Observer and registers its collectors.
func New(optFns ...Option) (*Observer, error) {
	opts := options{
		namespace:  DefaultNamespace,
		registerer: prometheus.DefaultRegisterer,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	ns, cl := opts.namespace, opts.constLabel

	o := &Observer{
		allocs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "allocations_total", ConstLabels: cl,
			Help: "Successful allocations by path (arena or heap).",
		}, []string{"path"}),
		allocBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "allocated_bytes_total", ConstLabels: cl,
			Help: "Requested bytes of successful allocations by path.",
		}, []string{"path"}),
		allocSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Name: "allocation_size_bytes", ConstLabels: cl,
			Help:    "Distribution of requested allocation sizes.",
			Buckets: prometheus.ExponentialBuckets(8, 4, 10),
		}, []string{"path"}),
		frees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "frees_total", ConstLabels: cl,
			Help: "Tracked objects reclaimed by Free.",
		}),
		freedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "freed_bytes_total", ConstLabels: cl,
			Help: "Bytes reclaimed by Free.",
		}),
		collections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "collections_total", ConstLabels: cl,
			Help: "Completed collection passes.",
		}),
		collectTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Name: "collection_duration_seconds", ConstLabels: cl,
			Help:    "Duration of collection passes.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		collectFreed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "collected_objects_total", ConstLabels: cl,
			Help: "Objects reclaimed by collection.",
		}),
		collectBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "collected_bytes_total", ConstLabels: cl,
			Help: "Bytes reclaimed by collection.",
		}),
		arenaFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "arena_fallbacks_total", ConstLabels: cl,
			Help: "Requests that did not fit the active arena and went to the heap.",
		}, []string{"arena"}),
		liveBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "live_bytes", ConstLabels: cl,
			Help: "Bytes held by tracked objects.",
		}),
	}

	for _, c := range o.collectors() {
		if err := opts.registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// MustNew is like New but panics on registration errors.
func MustNew(optFns ...Option) *Observer {
	o, err := New(optFns...)
	if err != nil {
		panic(err)
	}
	return o
}

func (o *Observer) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		o.allocs, o.allocBytes, o.allocSize,
		o.frees, o.freedBytes,
		o.collections, o.collectTime, o.collectFreed, o.collectBytes,
		o.arenaFallback, o.liveBytes,
	}
}

func (o *Observer) OnAlloc(size int, path hybridmem.AllocPath) {
	p := string(path)
	o.allocs.WithLabelValues(p).Inc()
	o.allocBytes.WithLabelValues(p).Add(float64(size))
	o.allocSize.WithLabelValues(p).Observe(float64(size))
}

func (o *Observer) OnFree(size int) {
	o.frees.Inc()
	o.freedBytes.Add(float64(size))
}

func (o *Observer) OnCollect(d time.Duration, objects int, bytes uint64) {
	o.collections.Inc()
	o.collectTime.Observe(d.Seconds())
	o.collectFreed.Add(float64(objects))
	o.collectBytes.Add(float64(bytes))
}

func (o *Observer) OnArenaExhausted(arena string, _ int) {
	o.arenaFallback.WithLabelValues(arena).Inc()
}

func (o *Observer) OnLiveBytes(bytes uint64) {
	o.liveBytes.Set(float64(bytes))
}
