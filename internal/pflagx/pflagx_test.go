package pflagx

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() (*FlagSet, *bytes.Buffer) {
	var out bytes.Buffer
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.SetOutput(&out)
	return FlagSetExt(fs), &out
}

func TestLevelP(t *testing.T) {
	fs, _ := newFlagSet()
	level := fs.LevelP("log-level", "L", slog.LevelWarn, "log level")

	assert.Equal(t, slog.LevelWarn, level.Level())

	require.NoError(t, fs.FlagSet().Parse([]string{"-L", "debug"}))
	assert.Equal(t, slog.LevelDebug, level.Level())

	assert.Error(t, fs.FlagSet().Parse([]string{"--log-level", "loud"}))
}

func TestBytesP(t *testing.T) {
	fs, _ := newFlagSet()
	size := fs.BytesP("arena-size", "", 1<<20, "arena size")

	assert.Equal(t, uint64(1<<20), uint64(*size))
	assert.Equal(t, "1.0 MiB", size.String())

	require.NoError(t, fs.FlagSet().Parse([]string{"--arena-size", "64KiB"}))
	assert.Equal(t, uint64(64<<10), uint64(*size))

	require.NoError(t, fs.FlagSet().Parse([]string{"--arena-size", "4096"}))
	assert.Equal(t, uint64(4096), uint64(*size))

	assert.Error(t, fs.FlagSet().Parse([]string{"--arena-size", "lots"}))
}

func TestParseEnv(t *testing.T) {
	fs, out := newFlagSet()
	level := fs.LevelP("log-level", "L", slog.LevelInfo, "log level")
	ops := fs.FlagSet().Int("ops", 10, "operations")

	t.Setenv("HYBRIDMEM_TEST_LOG_LEVEL", "error")
	t.Setenv("HYBRIDMEM_TEST_OPS", "250")
	t.Setenv("HYBRIDMEM_TEST_NOPE", "1")

	require.NoError(t, fs.ParseEnv("HYBRIDMEM_TEST_"))
	assert.Equal(t, slog.LevelError, level.Level())
	assert.Equal(t, 250, *ops)
	assert.Contains(t, out.String(), "unknown flag --nope")

	// Explicit flags override the environment.
	require.NoError(t, fs.FlagSet().Parse([]string{"--ops", "3"}))
	assert.Equal(t, 3, *ops)
}

func TestParseEnv_Invalid(t *testing.T) {
	fs, _ := newFlagSet()
	fs.FlagSet().Int("ops", 10, "operations")

	t.Setenv("HYBRIDMEM_BAD_OPS", "many")
	assert.ErrorContains(t, fs.ParseEnv("HYBRIDMEM_BAD_"), "flag --ops")
}
