package hybridmem

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// ArenaReport describes the arena that was active when a Report was taken.
type ArenaReport struct {
	Name  string
	Stats ArenaStats
}

// BudgetReport describes the memory budget of the resource controller.
type BudgetReport struct {
	// Limit is zero for an unlimited budget.
	Limit int64
	Used  int64
	Peak  int64
}

// Report is a read-only snapshot of the manager state.
type Report struct {
	Taken   time.Time
	Verbose bool
	Stats   Stats
	// Arena is the active arena, or nil.
	Arena *ArenaReport
	// Budget is set when the manager charges a resource controller.
	Budget *BudgetReport
	// Objects lists the live tracked objects in allocation order. It is only
	// populated for verbose reports.
	Objects []ObjectInfo
}

// Report takes a snapshot of the counters and the active arena. Live objects
// are included if verbose is set or the manager verbosity is VerbosityInfo
// or higher. The registry lock is held only while the snapshot is copied.
func (m *Manager) Report(verbose bool) Report {
	verbose = verbose || m.opts.verbosity >= VerbosityInfo

	regStats, objects := m.reg.Snapshot(verbose)

	r := Report{
		Taken:   m.opts.now(),
		Verbose: verbose,
		Stats: Stats{
			RegistryStats:  regStats,
			ArenaAllocs:    m.arenaAllocs.Load(),
			ArenaFallbacks: m.arenaFallbacks.Load(),
			UntrackedOps:   m.untracked.Load(),
		},
		Objects: objects,
	}

	m.selMu.Lock()
	r.Stats.Arenas = len(m.arenas)
	var current *Arena
	if n := len(m.stack); n > 0 {
		current = m.stack[n-1]
	}
	m.selMu.Unlock()

	if current != nil {
		r.Arena = &ArenaReport{Name: current.Name(), Stats: current.Stats()}
	}
	if m.rc != nil {
		r.Budget = &BudgetReport{
			Limit: m.rc.MemoryLimit(),
			Used:  m.rc.MemoryUsage(),
			Peak:  m.rc.PeakMemoryUsage(),
		}
	}

	return r
}

const (
	reportRule  = "══════════════════════════════════════════════════════════════\n"
	reportSplit = "──────────────────────────────────────────────────────────────\n"
)

// WriteTo renders the report as a table.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(reportRule)
	sb.WriteString("              MEMORY MANAGER STATISTICS\n")
	sb.WriteString(reportSplit)
	fmt.Fprintf(&sb, "  Total objects    │ %20d\n", r.Stats.Objects)
	fmt.Fprintf(&sb, "  Total memory     │ %20d bytes\n", r.Stats.LiveBytes)
	fmt.Fprintf(&sb, "  Peak memory      │ %20d bytes\n", r.Stats.PeakBytes)
	fmt.Fprintf(&sb, "  Allocations      │ %20d\n", r.Stats.Allocations)
	fmt.Fprintf(&sb, "  Frees            │ %20d\n", r.Stats.Frees)
	fmt.Fprintf(&sb, "  Collections      │ %20d\n", r.Stats.Collections)
	sb.WriteString(reportSplit)
	fmt.Fprintf(&sb, "  Avg collection   │ %19.3f ms\n", float64(r.Stats.AvgCollectTime)/float64(time.Millisecond))
	fmt.Fprintf(&sb, "  Last freed       │ %20d bytes\n", r.Stats.LastCollectFreedBytes)
	fmt.Fprintf(&sb, "  Arena allocs     │ %20d\n", r.Stats.ArenaAllocs)
	fmt.Fprintf(&sb, "  Arena fallbacks  │ %20d\n", r.Stats.ArenaFallbacks)

	if r.Arena != nil {
		sb.WriteString(reportSplit)
		sb.WriteString("  ARENA STATISTICS\n")
		fmt.Fprintf(&sb, "  Arena name       │ %20s\n", r.Arena.Name)
		fmt.Fprintf(&sb, "  Arena size       │ %20d bytes\n", r.Arena.Stats.Capacity)
		fmt.Fprintf(&sb, "  Arena used       │ %20d bytes\n", r.Arena.Stats.Offset)
		fmt.Fprintf(&sb, "  Arena peak       │ %20d bytes\n", r.Arena.Stats.HighWater)
	}

	if r.Budget != nil {
		sb.WriteString(reportSplit)
		limit := "unlimited"
		if r.Budget.Limit > 0 {
			limit = humanize.IBytes(uint64(r.Budget.Limit))
		}
		fmt.Fprintf(&sb, "  Budget limit     │ %20s\n", limit)
		fmt.Fprintf(&sb, "  Budget used      │ %20d bytes\n", r.Budget.Used)
		fmt.Fprintf(&sb, "  Budget peak      │ %20d bytes\n", r.Budget.Peak)
	}

	sb.WriteString(reportRule)

	if r.Verbose && len(r.Objects) > 0 {
		sb.WriteString("\nACTIVE OBJECTS:\n")
		sb.WriteString(reportSplit)
		for i, obj := range r.Objects {
			fmt.Fprintf(&sb, "  %s\n", FormatObject(i+1, obj))
		}
	}

	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

// FormatObject renders one live object as "[i] label (size bytes) at file:line [refs: n]".
func FormatObject(i int, obj ObjectInfo) string {
	label := obj.Label
	if label == "" {
		label = "unknown"
	}
	return fmt.Sprintf("[%d] %s (%d bytes) at %s [refs: %d]", i, label, obj.Size, obj.Site, obj.Refs)
}

func (r Report) String() string {
	var sb strings.Builder
	_, _ = r.WriteTo(&sb)
	return sb.String()
}

// String renders a non-verbose report.
func (m *Manager) String() string {
	return m.Report(false).String()
}
