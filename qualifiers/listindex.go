package qualifiers

import (
	"strconv"

	"github.com/aro-lang/aro/value"
)

// registerListIndexQualifiers installs the built-in "first" and
// "last" list-index qualifiers under the default namespace (spec
// §4.5). Integer-literal list-index qualifiers ("<items:2>") are
// resolved directly by the execution context via ResolveListIndex
// rather than through the registry, since their qualifier name is the
// index itself and there is no finite table of integers to register.
func registerListIndexQualifiers(r *Registry) {
	r.table[key("", "first")] = &Registration{
		Namespace:     "",
		Name:          "first",
		AcceptedKinds: []value.Kind{value.KindSequence},
		Description:   "the first element of a sequence",
		Handler: func(in value.Value) (value.Value, error) {
			out, _ := ResolveListIndex(in, "first")
			return out, nil
		},
	}
	r.table[key("", "last")] = &Registration{
		Namespace:     "",
		Name:          "last",
		AcceptedKinds: []value.Kind{value.KindSequence},
		Description:   "the last element of a sequence",
		Handler: func(in value.Value) (value.Value, error) {
			out, _ := ResolveListIndex(in, "last")
			return out, nil
		},
	}
}

// IsListIndexName reports whether qualifier name denotes a list-index
// qualifier: "first", "last", or a non-negative integer literal.
func IsListIndexName(name string) bool {
	if name == "first" || name == "last" {
		return true
	}
	_, err := strconv.ParseUint(name, 10, 64)
	return err == nil
}

// ResolveListIndex applies the list-index qualifier named by name to
// in, per spec §4.5 / §8 invariant 7: "first" is position 0, "last" is
// the final position, and a non-negative integer k is a REVERSE index
// (0 = last element, 1 = penultimate, ...). outOfRange is true when
// the computed position falls outside the sequence, in which case the
// returned Value is value.Null and the caller should attach a warning
// diagnostic.
func ResolveListIndex(in value.Value, name string) (out value.Value, outOfRange bool) {
	items, ok := in.Items()
	if !ok {
		return value.Null, true
	}
	n := len(items)
	var pos int
	switch name {
	case "first":
		pos = 0
	case "last":
		pos = n - 1
	default:
		k, err := strconv.Atoi(name)
		if err != nil {
			return value.Null, true
		}
		pos = n - 1 - k
	}
	if pos < 0 || pos >= n {
		return value.Null, true
	}
	return items[pos], false
}
