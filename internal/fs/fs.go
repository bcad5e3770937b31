package fs

import (
	"io"
	"os"
)

// File is a file opened for writing.
type File interface {
	io.Writer
	io.Closer
	Sync() error
	Name() string
}

// FileSystem is the set of operations needed to write a file atomically:
// create a temporary file, fill and sync it, then rename it into place.
type FileSystem interface {
	MkdirAll(path string, perm os.FileMode) error
	CreateTemp(dir, pattern string) (File, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
}

// Local is the FileSystem backed by package os.
type Local struct{}

func (Local) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }

func (Local) CreateTemp(dir, pattern string) (File, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (Local) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }

func (Local) Remove(name string) error { return os.Remove(name) }

// Default is the FileSystem used unless a component is given another one.
var Default FileSystem = Local{}
