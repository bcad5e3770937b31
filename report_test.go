package hybridmem

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_Table(t *testing.T) {
	m := newTestManager(t)

	m.AllocAt(100, "X", Site{File: "main.c", Line: 10})
	m.AllocAt(28, "", Site{})

	report := m.Report(false)
	assert.False(t, report.Verbose)
	assert.Nil(t, report.Objects)
	assert.Nil(t, report.Arena)

	var sb strings.Builder
	n, err := report.WriteTo(&sb)
	require.NoError(t, err)
	assert.Equal(t, int64(sb.Len()), n)

	out := sb.String()
	assert.Contains(t, out, "MEMORY MANAGER STATISTICS")
	assert.Regexp(t, `Total objects\s+│\s+2\n`, out)
	assert.Regexp(t, `Total memory\s+│\s+128 bytes`, out)
	assert.Regexp(t, `Avg collection\s+│\s+0\.000 ms`, out)
	assert.NotContains(t, out, "ACTIVE OBJECTS")
	assert.NotContains(t, out, "ARENA STATISTICS")
}

func TestReport_Budget(t *testing.T) {
	m := newTestManager(t, WithMemoryLimit(1024))

	a := m.Alloc(100, "a")
	m.Alloc(28, "b")
	m.Free(a)

	r := m.Report(false)
	require.NotNil(t, r.Budget)
	assert.Equal(t, BudgetReport{Limit: 1024, Used: 28, Peak: 128}, *r.Budget)

	out := r.String()
	assert.Regexp(t, `Budget limit\s+│\s+1\.0 KiB`, out)
	assert.Regexp(t, `Budget peak\s+│\s+128 bytes`, out)

	assert.Nil(t, newTestManager(t).Report(false).Budget)
}

func TestReport_Verbose(t *testing.T) {
	m := newTestManager(t)

	x := m.AllocAt(100, "X", Site{File: "main.c", Line: 10})
	m.Retain(x)
	m.AllocAt(28, "", Site{})

	out := m.Report(true).String()

	assert.Contains(t, out, "ACTIVE OBJECTS:")
	assert.Contains(t, out, "[1] X (100 bytes) at main.c:10 [refs: 2]")
	assert.Contains(t, out, "[2] unknown (28 bytes) at unknown [refs: 1]")
}

func TestReport_VerbosityOption(t *testing.T) {
	quiet := newTestManager(t, WithVerbosity(VerbosityWarn))
	quiet.Alloc(8, "x")
	assert.False(t, quiet.Report(false).Verbose)

	loud := newTestManager(t, WithVerbosity(VerbosityInfo))
	loud.Alloc(8, "x")
	report := loud.Report(false)
	assert.True(t, report.Verbose)
	assert.Len(t, report.Objects, 1)
	assert.Contains(t, loud.String(), "ACTIVE OBJECTS")
}

func TestReport_Arena(t *testing.T) {
	m := newTestManager(t)

	a, err := m.NewArena(64, WithArenaName("frame"))
	require.NoError(t, err)
	require.NoError(t, m.Select(a))
	m.Alloc(7, "a")
	m.Alloc(9, "b")

	report := m.Report(false)
	require.NotNil(t, report.Arena)
	assert.Equal(t, "frame", report.Arena.Name)
	assert.Equal(t, 1, report.Stats.Arenas)

	out := report.String()
	assert.Contains(t, out, "ARENA STATISTICS")
	assert.Regexp(t, `Arena name\s+│\s+frame`, out)
	assert.Regexp(t, `Arena size\s+│\s+64 bytes`, out)
	assert.Regexp(t, `Arena used\s+│\s+24 bytes`, out)
	assert.Regexp(t, `Arena peak\s+│\s+24 bytes`, out)
}

func TestReport_DoesNotMutate(t *testing.T) {
	m := newTestManager(t)

	x := m.Alloc(8, "x")
	m.DecRef(x)
	before := m.Stats()

	_ = m.Report(true)
	_ = m.String()

	assert.Equal(t, before, m.Stats())
	assert.True(t, m.Tracked(x))
}

func TestFormatObject(t *testing.T) {
	line := FormatObject(3, ObjectInfo{Label: "node", Size: 24, Site: Site{File: "list.go", Line: 7}, Refs: 1})
	assert.Equal(t, "[3] node (24 bytes) at list.go:7 [refs: 1]", line)
}

func TestVerbosity_String(t *testing.T) {
	assert.Equal(t, "debug", VerbosityDebug.String())
	assert.Equal(t, "quiet", VerbosityQuiet.String())
	assert.Equal(t, "unknown", Verbosity(42).String())
}
