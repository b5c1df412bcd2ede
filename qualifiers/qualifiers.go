// Package qualifiers implements the ARO Qualifier Registry: namespaced
// transformation handlers keyed by (namespace, name) and the built-in
// list-index qualifiers (spec §4.5).
package qualifiers

import (
	"fmt"
	"sync"

	"github.com/aro-lang/aro/value"
)

// Handler transforms a RuntimeValue. It may return an error (treated
// as a qualifier-invocation failure) and may suspend on I/O, e.g. a
// native-plugin-backed qualifier crossing the C-ABI boundary.
type Handler func(in value.Value) (value.Value, error)

// Registration is one entry of the registry: the table row described
// in spec §3 ("QualifierRegistration").
type Registration struct {
	Namespace     string
	Name          string
	AcceptedKinds []value.Kind // empty means "accepts anything"
	OwningPlugin  string
	Description   string
	Handler       Handler
}

func (r *Registration) accepts(k value.Kind) bool {
	if len(r.AcceptedKinds) == 0 {
		return true
	}
	for _, ak := range r.AcceptedKinds {
		if ak == k {
			return true
		}
	}
	return false
}

// key formats the (namespace, name) lookup key. An empty namespace is
// the default namespace.
func key(namespace, name string) string {
	return namespace + "\x00" + name
}

// Registry is the process-wide, read-mostly qualifier table. Lookups
// during steady state take only a read lock (spec §5: "lookups are
// lock-free" for the common path is approximated here with an RWMutex
// since Go has no truly lock-free map; registrations only happen at
// plugin load/unload time, matching the "not expected during steady
// state" guidance).
type Registry struct {
	mu    sync.RWMutex
	table map[string]*Registration
}

// New creates an empty Registry seeded with the built-in list-index
// qualifiers under the default namespace.
func New() *Registry {
	r := &Registry{table: make(map[string]*Registration)}
	registerListIndexQualifiers(r)
	return r
}

// Register adds or replaces a qualifier registration. Namespace
// defaults to the owning plugin's name when empty, matching spec §3's
// "namespace defaults to the plugin name if absent".
func (r *Registry) Register(reg *Registration) error {
	if reg.Name == "" {
		return fmt.Errorf("qualifiers: registration is missing a name")
	}
	if reg.Namespace == "" {
		reg.Namespace = reg.OwningPlugin
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table[key(reg.Namespace, reg.Name)] = reg
	return nil
}

// Unregister removes every registration owned by pluginName. Used
// when a plugin is unloaded (spec §4.9 "Unloading").
func (r *Registry) Unregister(pluginName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, reg := range r.table {
		if reg.OwningPlugin == pluginName {
			delete(r.table, k)
		}
	}
}

// Lookup resolves a (namespace, name) pair. namespace may be empty to
// search the default namespace.
func (r *Registry) Lookup(namespace, name string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.table[key(namespace, name)]
	return reg, ok
}

// Apply resolves and invokes the (namespace, name) qualifier against
// in, validating the accepted-kinds set (spec §8 invariant 6).
func (r *Registry) Apply(namespace, name string, in value.Value) (value.Value, error) {
	reg, ok := r.Lookup(namespace, name)
	if !ok {
		return value.Null, fmt.Errorf("qualifiers: no qualifier registered for %q", qualifiedName(namespace, name))
	}
	if !reg.accepts(in.Kind()) {
		return value.Null, fmt.Errorf("qualifiers: qualifier %q does not accept values of type %q", qualifiedName(namespace, name), in.Kind().TypeLabel())
	}
	return reg.Handler(in)
}

func qualifiedName(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}
