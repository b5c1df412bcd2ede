// Package levenshtein finds the names in a candidate set closest to an
// unresolved reference, for "did you mean" diagnostic hints.
package levenshtein

import (
	"sort"

	"github.com/agnivade/levenshtein"
)

// ClosestStrings returns every name in candidates within editDistance
// of name, ties included, sorted for deterministic diagnostic output.
// An empty result means nothing in candidates is close enough to be
// worth suggesting.
func ClosestStrings(name string, candidates []string, editDistance int) []string {
	best := editDistance
	var out []string
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(name, c)
		switch {
		case d > best:
			continue
		case d < best:
			best = d
			out = []string{c}
		default:
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}
