package actions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aro-lang/aro/ast"
	"github.com/aro-lang/aro/internal/metrics"
	"github.com/aro-lang/aro/internal/restclient"
	"github.com/aro-lang/aro/logging"
	"github.com/aro-lang/aro/repo"
	"github.com/aro-lang/aro/runtime/globals"
	"github.com/aro-lang/aro/value"
)

// Request carries everything an action handler needs to run a single
// statement. Which field is "the data" and which is "a collaborator's
// name" is verb-role dependent (spec §4.2: verb role "determines ...
// default data-flow direction"):
//
//   - Subject is the Result descriptor's own resolved value — read
//     when Result already names a bound local or carries a literal.
//     Verbs such as Store, Publish, Return and Throw treat Subject
//     as their payload; Subject is value.Null/SubjectMissing when
//     Result names a fresh local the statement is about to bind
//     (Compute, Retrieve, ...).
//   - Object is the preposition-object descriptor's resolved value,
//     used as data by OWN verbs like Compute ("from the <items>").
//   - ObjectName is the same descriptor's raw base name, used as a
//     collaborator reference (a repository name, a log sink) rather
//     than a value to resolve.
//   - With/Expression are the reserved _with_/_expression_ slots.
type Request struct {
	Statement      *ast.Statement
	Subject        value.Value
	SubjectMissing bool
	Object         value.Value
	ObjectMissing  bool
	ObjectName     string
	With           value.Value
	Expression     value.Value
}

// Result is an action handler's outcome: the value to bind as the
// feature set's "latest result", and whether the handler completes
// the activation (Return/Throw).
type Result struct {
	Value    value.Value
	Complete bool
	Err      error // set when Complete and the completion is a Throw
}

// Handler implements one verb. ctx carries cancellation for
// suspending actions (I/O, plugin calls); env gives access to shared
// runtime collaborators.
type Handler func(ctx context.Context, env *Env, req Request) (Result, error)

// Env bundles the collaborators action handlers may need: the
// repository store, the event bus (as the narrow repo.Emitter so
// actions doesn't import runtime/eventbus directly and create an
// import cycle through runner wiring), the global registry for
// Publish, and the ambient logging/metrics stack.
type Env struct {
	Store    *repo.Store
	Bus      repo.Emitter
	Globals  *globals.Registry
	Log      logging.Logger
	Metrics  *metrics.Metrics
	Services map[string]*restclient.Client
}

// Registration is one dynamically installed verb (spec §4.9's native
// plugin actions, §4.10's scripted actions, or a declarative plugin's
// own feature sets exposed as a verb).
type Registration struct {
	Verb         string
	OwningPlugin string
	Handler      Handler
}

// Registry is the concurrent verb -> handler dispatch table the
// runner consults. It is seeded with the built-in verbs and grows as
// plugins register their own.
type Registry struct {
	mu    sync.RWMutex
	table map[string]*Registration
}

// NewRegistry creates a Registry seeded with every built-in verb.
func NewRegistry() *Registry {
	r := &Registry{table: make(map[string]*Registration)}
	for verb, handler := range builtinHandlers {
		r.table[verb] = &Registration{Verb: verb, Handler: handler}
	}
	return r
}

// RegisterDynamic installs a plugin-provided handler for verb,
// overwriting any existing registration for the same (verb,
// OwningPlugin) pair idempotently — re-registering the same plugin's
// verb (e.g. on a hot reload) simply replaces the handler rather than
// erroring.
func (r *Registry) RegisterDynamic(reg *Registration) error {
	if reg.Verb == "" {
		return fmt.Errorf("actions: registration is missing a verb")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table[reg.Verb] = reg
	return nil
}

// Unregister removes every dynamic registration owned by pluginName,
// leaving built-in verbs untouched (spec §4.9 "Unloading").
func (r *Registry) Unregister(pluginName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for verb, reg := range r.table {
		if reg.OwningPlugin == pluginName {
			delete(r.table, verb)
		}
	}
}

// Lookup resolves verb (already lowercased by the caller) to its
// handler.
func (r *Registry) Lookup(verb string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.table[verb]
	return reg, ok
}

// Dispatch invokes verb's handler, recording dispatch duration and
// outcome metrics (spec §5's suspension-point accounting).
func (r *Registry) Dispatch(ctx context.Context, env *Env, verb string, req Request) (Result, error) {
	reg, ok := r.Lookup(verb)
	if !ok {
		return Result{}, fmt.Errorf("actions: unknown verb %q", verb)
	}
	start := time.Now()
	res, err := reg.Handler(ctx, env, req)
	failed := err != nil || (res.Complete && res.Err != nil)
	env.Metrics.ObserveDispatch(verb, time.Since(start).Seconds(), failed)
	return res, err
}

// requireMapping coerces in into a mapping, producing an empty one
// when in is not already a mapping, so handlers that read a field off
// an absent object degrade to "field not present" rather than erroring.
func requireMapping(in value.Value) value.Value {
	if in.Kind() == value.KindMapping {
		return in
	}
	return value.NewMapping()
}
