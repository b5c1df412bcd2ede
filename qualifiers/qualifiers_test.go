package qualifiers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aro-lang/aro/value"
)

func TestResolveListIndexFirstLast(t *testing.T) {
	seq := value.Sequence(value.Int(1), value.Int(2), value.Int(3))

	first, oor := ResolveListIndex(seq, "first")
	require.False(t, oor)
	i, _ := first.Int()
	require.Equal(t, int64(1), i)

	last, oor := ResolveListIndex(seq, "last")
	require.False(t, oor)
	i, _ = last.Int()
	require.Equal(t, int64(3), i)
}

func TestResolveListIndexReverseInteger(t *testing.T) {
	seq := value.Sequence(value.Int(10), value.Int(20), value.Int(30))

	v, oor := ResolveListIndex(seq, "0")
	require.False(t, oor)
	i, _ := v.Int()
	require.Equal(t, int64(30), i, "index 0 is the last element")

	v, oor = ResolveListIndex(seq, "1")
	require.False(t, oor)
	i, _ = v.Int()
	require.Equal(t, int64(20), i, "index 1 is the penultimate element")
}

func TestResolveListIndexOutOfRange(t *testing.T) {
	seq := value.Sequence(value.Int(1))
	_, oor := ResolveListIndex(seq, "5")
	require.True(t, oor)

	empty := value.Sequence()
	_, oor = ResolveListIndex(empty, "first")
	require.True(t, oor)
}

func TestRegistryApplyNamespacedQualifier(t *testing.T) {
	r := New()
	err := r.Register(&Registration{
		Namespace:     "collections",
		Name:          "reverse",
		AcceptedKinds: []value.Kind{value.KindSequence},
		OwningPlugin:  "collections-plugin",
		Handler: func(in value.Value) (value.Value, error) {
			items, _ := in.Items()
			out := make([]value.Value, len(items))
			for i, it := range items {
				out[len(items)-1-i] = it
			}
			return value.Sequence(out...), nil
		},
	})
	require.NoError(t, err)

	in := value.Sequence(value.Int(1), value.Int(2), value.Int(3))
	out, err := r.Apply("collections", "reverse", in)
	require.NoError(t, err)
	items, _ := out.Items()
	require.Len(t, items, 3)
	v0, _ := items[0].Int()
	require.Equal(t, int64(3), v0)
}

func TestRegistryApplyUnknownQualifier(t *testing.T) {
	r := New()
	_, err := r.Apply("nope", "missing", value.Null)
	require.Error(t, err)
}

func TestUnregisterRemovesOnlyOwnedEntries(t *testing.T) {
	r := New()
	_ = r.Register(&Registration{Namespace: "p1", Name: "a", OwningPlugin: "p1", Handler: noop})
	_ = r.Register(&Registration{Namespace: "p2", Name: "b", OwningPlugin: "p2", Handler: noop})

	r.Unregister("p1")

	_, ok := r.Lookup("p1", "a")
	require.False(t, ok)
	_, ok = r.Lookup("p2", "b")
	require.True(t, ok)
}

func noop(in value.Value) (value.Value, error) { return in, nil }
