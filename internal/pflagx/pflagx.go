// Package pflagx implements extensions to pflag.
package pflagx

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
)

type FlagSet pflag.FlagSet

func FlagSetExt(fs *pflag.FlagSet) *FlagSet {
	return (*FlagSet)(fs)
}

func (fs *FlagSet) FlagSet() *pflag.FlagSet {
	return (*pflag.FlagSet)(fs)
}

// LevelP defines a slog level flag on the command line.
func LevelP(name, shorthand string, value slog.Level, usage string) *slog.LevelVar {
	return FlagSetExt(pflag.CommandLine).LevelP(name, shorthand, value, usage)
}

// LevelP defines a slog level flag accepting names like "debug" or "warn+2".
func (fs *FlagSet) LevelP(name, shorthand string, value slog.Level, usage string) *slog.LevelVar {
	level := new(slog.LevelVar)
	def := new(slog.LevelVar)
	def.Set(value)
	fs.FlagSet().TextVarP(level, name, shorthand, def, usage)
	return level
}

// Bytes is a byte count flag value accepting "4096", "64KiB" or "1.5MB".
type Bytes uint64

func (b *Bytes) String() string {
	return humanize.IBytes(uint64(*b))
}

func (b *Bytes) Set(s string) error {
	v, err := humanize.ParseBytes(s)
	if err != nil {
		return err
	}
	*b = Bytes(v)
	return nil
}

func (b *Bytes) Type() string {
	return "bytes"
}

// BytesP defines a byte count flag on the command line.
func BytesP(name, shorthand string, value uint64, usage string) *Bytes {
	return FlagSetExt(pflag.CommandLine).BytesP(name, shorthand, value, usage)
}

// BytesP defines a byte count flag.
func (fs *FlagSet) BytesP(name, shorthand string, value uint64, usage string) *Bytes {
	b := Bytes(value)
	fs.FlagSet().VarP(&b, name, shorthand, usage)
	return &b
}

// ParseEnv sets command line flags from environment variables.
func ParseEnv(prefix string) error {
	return FlagSetExt(pflag.CommandLine).ParseEnv(prefix)
}

// ParseEnv sets flags from environment variables named prefix followed by
// the upper-cased flag name with dashes as underscores, e.g. HYBRIDMEM_LOG_LEVEL
// for --log-level. Unknown variables are reported and skipped. Call it
// before Parse so that explicit flags win.
func (fs *FlagSet) ParseEnv(prefix string) error {
	for _, env := range os.Environ() {
		k, v, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		s, ok := strings.CutPrefix(k, prefix)
		if !ok {
			continue
		}
		n := strings.Map(func(r rune) rune {
			switch r {
			case '_':
				return '-'
			}
			return unicode.ToLower(r)
		}, s)
		f := fs.FlagSet().Lookup(n)
		if f == nil {
			fmt.Fprintf(fs.FlagSet().Output(), "env %s: unknown flag --%s\n", k, n)
			continue
		}
		if err := fs.FlagSet().Set(n, v); err != nil {
			return fmt.Errorf("env %s: flag --%s: invalid argument: %w", k, n, err)
		}
	}
	return nil
}
