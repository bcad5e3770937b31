package hybridmem

import (
	"sync/atomic"
	"time"
)

// AllocPath identifies which path served an allocation.
type AllocPath string

const (
	// PathArena is an untracked allocation from the active arena.
	PathArena AllocPath = "arena"
	// PathHeap is a tracked allocation from the heap block source.
	PathHeap AllocPath = "heap"
)

// MetricsObserver receives allocator events.
// Implement this interface to integrate with monitoring systems like Prometheus
// (see package promobs).
//
// Observers are called outside the registry lock and must be safe for
// concurrent use.
type MetricsObserver interface {
	// OnAlloc is called after each successful allocation.
	OnAlloc(size int, path AllocPath)

	// OnFree is called when a tracked object is reclaimed by Free.
	OnFree(size int)

	// OnCollect is called after each collection pass.
	OnCollect(duration time.Duration, objects int, bytes uint64)

	// OnArenaExhausted is called when a request falls back from an arena to the heap.
	OnArenaExhausted(arena string, size int)

	// OnLiveBytes is called whenever the tracked live byte total changes.
	OnLiveBytes(bytes uint64)
}

// NoopMetricsObserver is a no-op implementation of MetricsObserver.
type NoopMetricsObserver struct{}

func (NoopMetricsObserver) OnAlloc(int, AllocPath)               {}
func (NoopMetricsObserver) OnFree(int)                           {}
func (NoopMetricsObserver) OnCollect(time.Duration, int, uint64) {}
func (NoopMetricsObserver) OnArenaExhausted(string, int)         {}
func (NoopMetricsObserver) OnLiveBytes(uint64)                   {}

// BasicMetricsObserver provides simple in-memory metrics collection.
// Useful for debugging and tests without external dependencies.
type BasicMetricsObserver struct {
	ArenaAllocs       atomic.Int64
	ArenaBytes        atomic.Int64
	HeapAllocs        atomic.Int64
	HeapBytes         atomic.Int64
	Frees             atomic.Int64
	FreedBytes        atomic.Int64
	Collections       atomic.Int64
	CollectTotalNanos atomic.Int64
	CollectedObjects  atomic.Int64
	CollectedBytes    atomic.Int64
	ArenaExhaustions  atomic.Int64
	LiveBytes         atomic.Uint64
}

// OnAlloc implements MetricsObserver.
func (b *BasicMetricsObserver) OnAlloc(size int, path AllocPath) {
	if path == PathArena {
		b.ArenaAllocs.Add(1)
		b.ArenaBytes.Add(int64(size))
		return
	}
	b.HeapAllocs.Add(1)
	b.HeapBytes.Add(int64(size))
}

// OnFree implements MetricsObserver.
func (b *BasicMetricsObserver) OnFree(size int) {
	b.Frees.Add(1)
	b.FreedBytes.Add(int64(size))
}

// OnCollect implements MetricsObserver.
func (b *BasicMetricsObserver) OnCollect(duration time.Duration, objects int, bytes uint64) {
	b.Collections.Add(1)
	b.CollectTotalNanos.Add(duration.Nanoseconds())
	b.CollectedObjects.Add(int64(objects))
	b.CollectedBytes.Add(int64(bytes)) //nolint:gosec // byte counts stay far below MaxInt64
}

// OnArenaExhausted implements MetricsObserver.
func (b *BasicMetricsObserver) OnArenaExhausted(string, int) {
	b.ArenaExhaustions.Add(1)
}

// OnLiveBytes implements MetricsObserver.
func (b *BasicMetricsObserver) OnLiveBytes(bytes uint64) {
	b.LiveBytes.Store(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsObserver) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ArenaAllocs:      b.ArenaAllocs.Load(),
		ArenaBytes:       b.ArenaBytes.Load(),
		HeapAllocs:       b.HeapAllocs.Load(),
		HeapBytes:        b.HeapBytes.Load(),
		Frees:            b.Frees.Load(),
		FreedBytes:       b.FreedBytes.Load(),
		Collections:      b.Collections.Load(),
		CollectAvgNanos:  b.getAvgCollectNanos(),
		CollectedObjects: b.CollectedObjects.Load(),
		CollectedBytes:   b.CollectedBytes.Load(),
		ArenaExhaustions: b.ArenaExhaustions.Load(),
		LiveBytes:        b.LiveBytes.Load(),
	}
}

func (b *BasicMetricsObserver) getAvgCollectNanos() int64 {
	count := b.Collections.Load()
	if count == 0 {
		return 0
	}
	return b.CollectTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsObserver state.
type BasicMetricsStats struct {
	ArenaAllocs      int64
	ArenaBytes       int64
	HeapAllocs       int64
	HeapBytes        int64
	Frees            int64
	FreedBytes       int64
	Collections      int64
	CollectAvgNanos  int64
	CollectedObjects int64
	CollectedBytes   int64
	ArenaExhaustions int64
	LiveBytes        uint64
}
