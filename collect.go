package hybridmem

import (
	"context"
)

// Collect runs one reclamation pass over the registry.
//
// The pass is a reference-count filter, not a tracing collector: objects with
// a positive reference count are marked live and every other object is
// removed. Nothing is traced from roots. Objects reach a count of zero
// through DecRef.
//
// Mark and sweep run under the registry lock, stopping every other registry
// operation for their duration. Destructors and block releases run after the
// lock is dropped. Collect is a no-op when the collector is disabled.
func (m *Manager) Collect() {
	if m.opts.collectorDisabled {
		return
	}
	m.collect(context.Background())
}

func (m *Manager) collect(ctx context.Context) {
	res := m.reg.Collect()
	m.reclaim(ctx, res.Reclaimed)

	m.logger.LogCollect(ctx, len(res.Reclaimed), res.FreedBytes, res.Duration)
	m.metrics.OnCollect(res.Duration, len(res.Reclaimed), res.FreedBytes)
	m.metrics.OnLiveBytes(m.reg.Stats().LiveBytes)
}

// maybeAutoCollect triggers a collection when live exceeds the configured threshold.
func (m *Manager) maybeAutoCollect(ctx context.Context, live uint64) {
	if !m.opts.autoCollect || m.opts.collectorDisabled || live <= m.opts.autoThreshold {
		return
	}

	if !m.opts.autoBackground {
		m.collect(ctx)
		return
	}

	m.scheduleCollect()
}

// scheduleCollect starts a background collection unless one is already
// running, the manager is closing, or no background slot is free.
func (m *Manager) scheduleCollect() {
	m.bgMu.Lock()
	defer m.bgMu.Unlock()

	if m.closing || !m.bgRunning.CompareAndSwap(false, true) {
		return
	}
	if !m.rc.TryAcquireBackground() {
		m.bgRunning.Store(false)
		return
	}

	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		defer m.bgRunning.Store(false)
		defer m.rc.ReleaseBackground()

		m.collect(context.Background())
	}()
}

// WaitBackground blocks until no background collection is running.
func (m *Manager) WaitBackground() {
	m.bg.Wait()
}
