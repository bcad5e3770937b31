package registry

import (
	"fmt"
	"time"

	"github.com/hupe1980/hybridmem/internal/mem"
)

// Site is the source location an allocation was requested from.
type Site struct {
	File string
	Line int
}

// String renders the site as file:line, or "unknown" when empty.
func (s Site) String() string {
	if s.File == "" {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", s.File, s.Line)
}

// Object is one tracked heap allocation.
type Object struct {
	ID         uint64
	Mem        []byte
	Size       int
	Label      string
	Site       Site
	Created    time.Time
	Refs       int
	Marked     bool
	Destructor func([]byte)

	prev, next *Object
}

// Addr returns the identity of the object: the address of its first byte.
func (o *Object) Addr() uintptr {
	return mem.Addr(o.Mem)
}

// Info is a read-only copy of an Object's metadata.
type Info struct {
	ID            uint64
	Addr          uintptr
	Size          int
	Label         string
	Site          Site
	Created       time.Time
	Refs          int
	HasDestructor bool
}

func (o *Object) info() Info {
	return Info{
		ID:            o.ID,
		Addr:          o.Addr(),
		Size:          o.Size,
		Label:         o.Label,
		Site:          o.Site,
		Created:       o.Created,
		Refs:          o.Refs,
		HasDestructor: o.Destructor != nil,
	}
}
