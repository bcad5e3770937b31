package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is the error returned by injected faults unless a Fault sets
// its own.
var ErrInjected = errors.New("fs: injected fault")

// Fault describes how operations on matching files fail.
type Fault struct {
	// FailAfterBytes fails the write that would exceed this many bytes.
	// Zero or negative disables the limit.
	FailAfterBytes int64
	FailOnSync     bool
	FailOnClose    bool
	FailOnRename   bool
	Err            error
}

func (f Fault) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

// FaultyFS wraps a FileSystem and injects failures.
type FaultyFS struct {
	fs FileSystem

	mu      sync.Mutex
	rules   []faultRule
	written int64
	removed []string
}

type faultRule struct {
	pattern string
	fault   Fault
}

// NewFaultyFS wraps fs, or Default when fs is nil.
func NewFaultyFS(fs FileSystem) *FaultyFS {
	if fs == nil {
		fs = Default
	}
	return &FaultyFS{fs: fs}
}

// AddRule applies fault to every file whose path contains pattern. Later
// rules take precedence.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, faultRule{pattern: pattern, fault: fault})
}

// Written returns the bytes successfully written through f.
func (f *FaultyFS) Written() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written
}

// Removed returns the paths removed through f, in order.
func (f *FaultyFS) Removed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

func (f *FaultyFS) match(path string) (Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.rules) - 1; i >= 0; i-- {
		if strings.Contains(path, f.rules[i].pattern) {
			return f.rules[i].fault, true
		}
	}
	return Fault{}, false
}

func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	return f.fs.MkdirAll(path, perm)
}

func (f *FaultyFS) CreateTemp(dir, pattern string) (File, error) {
	file, err := f.fs.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	fault, ok := f.match(file.Name())
	if !ok {
		// Temp names carry the target's base name, so match on the pattern too.
		fault, ok = f.match(pattern)
	}
	if !ok {
		return &countingFile{File: file, fs: f}, nil
	}
	return &faultyFile{countingFile: countingFile{File: file, fs: f}, fault: fault}, nil
}

func (f *FaultyFS) Rename(oldpath, newpath string) error {
	if fault, ok := f.match(newpath); ok && fault.FailOnRename {
		return fault.err()
	}
	return f.fs.Rename(oldpath, newpath)
}

func (f *FaultyFS) Remove(name string) error {
	f.mu.Lock()
	f.removed = append(f.removed, name)
	f.mu.Unlock()
	return f.fs.Remove(name)
}

type countingFile struct {
	File
	fs *FaultyFS
}

func (c *countingFile) Write(p []byte) (int, error) {
	n, err := c.File.Write(p)
	c.fs.mu.Lock()
	c.fs.written += int64(n)
	c.fs.mu.Unlock()
	return n, err
}

type faultyFile struct {
	countingFile
	fault   Fault
	written int64
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	limit := ff.fault.FailAfterBytes
	if limit > 0 && ff.written+int64(len(p)) > limit {
		allowed := limit - ff.written
		if allowed > 0 {
			n, err := ff.countingFile.Write(p[:allowed])
			ff.written += int64(n)
			if err != nil {
				return n, err
			}
			return n, ff.fault.err()
		}
		return 0, ff.fault.err()
	}
	n, err := ff.countingFile.Write(p)
	ff.written += int64(n)
	return n, err
}

func (ff *faultyFile) Sync() error {
	if ff.fault.FailOnSync {
		return ff.fault.err()
	}
	return ff.File.Sync()
}

func (ff *faultyFile) Close() error {
	if ff.fault.FailOnClose {
		_ = ff.File.Close()
		return ff.fault.err()
	}
	return ff.File.Close()
}
