// Package repo implements the ARO Repository Store: a named
// collection of entities with observer notification over the event
// bus (spec §4.7).
package repo

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/aro-lang/aro/value"
)

// RepositoryName derives the repository name from an entity name the
// way the language does: "<entity>-repository", case-insensitive,
// hyphens preserved.
func RepositoryName(entityName string) string {
	return strings.ToLower(entityName) + "-repository"
}

// Predicate reports whether an entity matches a retrieval or deletion
// criterion.
type Predicate func(entity value.Value) bool

// Emitter publishes a RepositoryChange event. The Store depends only
// on this narrow interface, not the full event bus, keeping repo free
// of an import on runtime/eventbus.
type Emitter interface {
	Emit(eventName string, payload value.Value)
}

// entry pairs an entity with its generated id and preserves insertion
// order for deterministic RetrieveAll iteration, the way a single
// writer-serialized map conventionally orders reads in this codebase.
type entry struct {
	id     string
	entity value.Value
}

// repository is one named collection: an ordered id -> entity map
// guarded by its own mutex, matching spec §4.7's "a mapping from
// repository name ... to an ordered map id -> RuntimeValue" with
// per-repository write serialization rather than one global lock.
type repository struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]value.Value
}

func newRepository() *repository {
	return &repository{entries: make(map[string]value.Value)}
}

// Store is the process-wide collection of named repositories.
type Store struct {
	bus Emitter

	mu    sync.Mutex
	repos map[string]*repository
}

// New creates an empty Store. bus may be nil in tests that don't care
// about observer notification.
func New(bus Emitter) *Store {
	return &Store{bus: bus, repos: make(map[string]*repository)}
}

func (s *Store) repoFor(name string) *repository {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.repos[name]
	if !ok {
		r = newRepository()
		s.repos[name] = r
	}
	return r
}

// StoredEntity pairs a persisted entity with its generated id, the
// shape `store` binds to the result descriptor (spec §4.7:
// "store(repo, entity) -> stored_entity_with_id").
type StoredEntity struct {
	ID     string
	Entity value.Value
}

// AsValue returns the stored entity as a mapping with an injected "id"
// field, the representation bound into the execution context and
// handed to observers.
func (s StoredEntity) AsValue() value.Value {
	return withID(s.Entity, s.ID)
}

func withID(entity value.Value, id string) value.Value {
	base := entity
	if base.Kind() != value.KindMapping {
		base = value.NewMapping()
	}
	return base.WithField("id", value.String(id))
}

// Store inserts entity into repoName under a freshly generated id and
// notifies observers.
func (s *Store) Store(repoName string, entity value.Value) (StoredEntity, error) {
	r := s.repoFor(repoName)
	id := uuid.NewString()

	r.mu.Lock()
	r.order = append(r.order, id)
	stored := withID(entity, id)
	r.entries[id] = stored
	r.mu.Unlock()

	result := StoredEntity{ID: id, Entity: stored}
	s.notifyChange(repoName, value.Null, result.Entity)
	return result, nil
}

// RetrieveAll returns every entity in repoName in insertion order.
func (s *Store) RetrieveAll(repoName string) []value.Value {
	r := s.repoFor(repoName)
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]value.Value, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

// RetrieveByPredicate returns every entity in repoName for which pred
// returns true.
func (s *Store) RetrieveByPredicate(repoName string, pred Predicate) []value.Value {
	all := s.RetrieveAll(repoName)
	out := make([]value.Value, 0, len(all))
	for _, e := range all {
		if pred == nil || pred(e) {
			out = append(out, e)
		}
	}
	return out
}

// Mutator transforms an existing entity into its updated form.
type Mutator func(entity value.Value) (value.Value, error)

// Update applies mutate to the entity stored under id in repoName,
// persists the result, and notifies observers with both the pre- and
// post-mutation state (spec §4.7: "change.entity-before"/
// "change.entity-after").
func (s *Store) Update(repoName, id string, mutate Mutator) (value.Value, error) {
	r := s.repoFor(repoName)

	r.mu.Lock()
	before, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return value.Null, fmt.Errorf("repo: no entity %q in %q", id, repoName)
	}
	after, err := mutate(before)
	if err != nil {
		r.mu.Unlock()
		return value.Null, fmt.Errorf("repo: updating %q in %q: %w", id, repoName, err)
	}
	after = withID(after, id)
	r.entries[id] = after
	r.mu.Unlock()

	s.notifyChange(repoName, before, after)
	return after, nil
}

// Delete removes every entity in repoName matching pred and notifies
// observers once per deleted entity.
func (s *Store) Delete(repoName string, pred Predicate) (int, error) {
	r := s.repoFor(repoName)

	r.mu.Lock()
	var removed []value.Value
	remainingOrder := r.order[:0:0]
	for _, id := range r.order {
		entity := r.entries[id]
		if pred != nil && !pred(entity) {
			remainingOrder = append(remainingOrder, id)
			continue
		}
		removed = append(removed, entity)
		delete(r.entries, id)
	}
	r.order = remainingOrder
	r.mu.Unlock()

	for _, entity := range removed {
		s.notifyChange(repoName, entity, value.Null)
	}
	return len(removed), nil
}

// notifyChange synthesizes a RepositoryChange envelope and emits it on
// the event bus (spec §4.7). before is value.Null for a fresh store,
// after is value.Null for a deletion.
func (s *Store) notifyChange(repoName string, before, after value.Value) {
	if s.bus == nil {
		return
	}
	change := value.NewMapping().
		WithField("repository", value.String(repoName)).
		WithField("entity-before", before).
		WithField("entity-after", after)
	s.bus.Emit(repoName+"-change", change)
}
