// Package globals implements the ARO GlobalRegistry's runtime half:
// the process-wide map of published_name -> RuntimeValue that a
// Publish statement writes and any later activation's descriptor
// resolution can read (spec §4, "GlobalRegistry").
//
// The compile-time half — validating that each published name has
// exactly one owning feature set — lives in package compile, since it
// operates over the static Program rather than live values.
package globals

import (
	"sync"

	"github.com/aro-lang/aro/value"
)

// Registry is the runtime store of published values, synchronized for
// the concurrent event-handler activations that may read from it
// while another Publish is in flight.
type Registry struct {
	mu     sync.RWMutex
	values map[string]value.Value
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{values: make(map[string]value.Value)}
}

// Publish records val under name, visible to every subsequent read
// (spec: "writes to the global registry and, synchronously, to every
// activation that later reads the same name").
func (r *Registry) Publish(name string, val value.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[name] = val
}

// Lookup returns the most recently published value for name.
func (r *Registry) Lookup(name string) (value.Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[name]
	return v, ok
}
