// Package codec centralizes the encoding of persisted allocator snapshots.
//
// Snapshots record the codec name in their header, so changing the default
// codec never breaks decoding of older snapshots as long as the codec is still
// registered.
package codec

import (
	"fmt"
	"sort"
	"sync"
)

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec used for new snapshots.
var Default Codec = GoJSON{}

var (
	mu       sync.RWMutex
	registry = map[string]Codec{}
)

func init() {
	Register(JSON{})
	Register(GoJSON{})
}

// Register makes c available through ByName. Registering a second codec
// under an existing name panics.
func Register(c Codec) {
	mu.Lock()
	defer mu.Unlock()
	name := c.Name()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("codec: %q registered twice", name))
	}
	registry[name] = c
}

// ByName returns the registered codec with the given name.
func ByName(name string) (Codec, bool) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := registry[name]
	return c, ok
}

// Names lists the registered codec names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MustMarshal is a helper for tests and benchmarks.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s: %w", c.Name(), err))
	}
	return b
}
