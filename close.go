package hybridmem

import (
	"context"
	"errors"
)

// Close shuts the manager down.
//
// It waits for background collections, destroys every arena that is still
// alive, forces all reference counts to zero and runs a final collection.
// Objects that survive, for example because a destructor allocated again,
// are reported as leaks through a *LeakError and a warning log.
//
// Close is idempotent. Afterwards allocations fail with ErrClosed while Free,
// Retain and Collect keep working.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = m.shutdown(context.Background())
	})
	return m.closeErr
}

func (m *Manager) shutdown(ctx context.Context) error {
	m.bgMu.Lock()
	m.closing = true
	m.bgMu.Unlock()
	m.bg.Wait()

	var errs []error

	m.selMu.Lock()
	arenas := make([]*Arena, 0, len(m.arenas))
	for a := range m.arenas {
		arenas = append(arenas, a)
	}
	m.selMu.Unlock()

	m.Deselect()
	for _, a := range arenas {
		if err := m.DestroyArena(a); err != nil {
			errs = append(errs, err)
		}
	}

	m.reg.ForceZero()
	m.collect(ctx)

	m.closed.Store(true)

	report := m.Report(true)
	m.logger.LogLeaks(ctx, report.Stats.Objects, report.Stats.LiveBytes, report.String())

	if report.Stats.Objects > 0 {
		errs = append(errs, &LeakError{
			Objects: report.Stats.Objects,
			Bytes:   report.Stats.LiveBytes,
			Report:  report,
		})
	}

	return errors.Join(errs...)
}
