package repo

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aro-lang/aro/value"
)

type recordingBus struct {
	mu       sync.Mutex
	emitted  []string
	payloads []value.Value
}

func (b *recordingBus) Emit(eventName string, payload value.Value) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emitted = append(b.emitted, eventName)
	b.payloads = append(b.payloads, payload)
}

func TestRepositoryName(t *testing.T) {
	require.Equal(t, "order-repository", RepositoryName("Order"))
	require.Equal(t, "line-item-repository", RepositoryName("Line-Item"))
}

func TestStoreAssignsIDAndNotifies(t *testing.T) {
	bus := &recordingBus{}
	s := New(bus)

	entity := value.NewMapping().WithField("name", value.String("widget"))
	stored, err := s.Store("order-repository", entity)
	require.NoError(t, err)
	require.NotEmpty(t, stored.ID)

	idField, ok := stored.Entity.Field("id")
	require.True(t, ok)
	idStr, _ := idField.Str()
	require.Equal(t, stored.ID, idStr)

	require.Equal(t, []string{"order-repository-change"}, bus.emitted)
}

func TestRetrieveAllPreservesInsertionOrder(t *testing.T) {
	s := New(nil)
	_, _ = s.Store("widget-repository", value.NewMapping().WithField("n", value.Int(1)))
	_, _ = s.Store("widget-repository", value.NewMapping().WithField("n", value.Int(2)))
	_, _ = s.Store("widget-repository", value.NewMapping().WithField("n", value.Int(3)))

	all := s.RetrieveAll("widget-repository")
	require.Len(t, all, 3)
	for i, want := range []int64{1, 2, 3} {
		n, _ := all[i].Field("n")
		got, _ := n.Int()
		require.Equal(t, want, got)
	}
}

func TestRetrieveByPredicate(t *testing.T) {
	s := New(nil)
	_, _ = s.Store("widget-repository", value.NewMapping().WithField("active", value.Bool(true)))
	_, _ = s.Store("widget-repository", value.NewMapping().WithField("active", value.Bool(false)))

	active := s.RetrieveByPredicate("widget-repository", func(e value.Value) bool {
		v, _ := e.Field("active")
		b, _ := v.Bool()
		return b
	})
	require.Len(t, active, 1)
}

func TestUpdateMutatesAndNotifiesWithBeforeAfter(t *testing.T) {
	bus := &recordingBus{}
	s := New(bus)
	stored, _ := s.Store("counter-repository", value.NewMapping().WithField("n", value.Int(1)))

	updated, err := s.Update("counter-repository", stored.ID, func(e value.Value) (value.Value, error) {
		n, _ := e.Field("n")
		i, _ := n.Int()
		return e.WithField("n", value.Int(i+1)), nil
	})
	require.NoError(t, err)
	n, _ := updated.Field("n")
	i, _ := n.Int()
	require.Equal(t, int64(2), i)

	require.Len(t, bus.emitted, 2) // one for Store, one for Update

	change := bus.payloads[1]
	before, _ := change.Field("entity-before")
	beforeN, _ := before.Field("n")
	bi, _ := beforeN.Int()
	require.Equal(t, int64(1), bi)
	after, _ := change.Field("entity-after")
	afterN, _ := after.Field("n")
	ai, _ := afterN.Int()
	require.Equal(t, int64(2), ai)
}

func TestUpdateUnknownIDErrors(t *testing.T) {
	s := New(nil)
	_, err := s.Update("missing-repository", "nope", func(e value.Value) (value.Value, error) { return e, nil })
	require.Error(t, err)
}

func TestDeleteRemovesMatchingEntities(t *testing.T) {
	s := New(nil)
	stored1, _ := s.Store("item-repository", value.NewMapping().WithField("expired", value.Bool(true)))
	_, _ = s.Store("item-repository", value.NewMapping().WithField("expired", value.Bool(false)))

	n, err := s.Delete("item-repository", func(e value.Value) bool {
		v, _ := e.Field("expired")
		b, _ := v.Bool()
		return b
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	remaining := s.RetrieveAll("item-repository")
	require.Len(t, remaining, 1)
	idField, _ := remaining[0].Field("id")
	idStr, _ := idField.Str()
	require.NotEqual(t, stored1.ID, idStr)
}
