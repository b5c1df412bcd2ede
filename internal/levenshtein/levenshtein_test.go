package levenshtein

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClosestStringsPicksNearestWithinBudget(t *testing.T) {
	got := ClosestStrings("stroe", []string{"store", "compute", "retrieve"}, 2)
	require.Equal(t, []string{"store"}, got)
}

func TestClosestStringsReturnsNoneBeyondBudget(t *testing.T) {
	got := ClosestStrings("xyz", []string{"store", "compute", "retrieve"}, 1)
	require.Empty(t, got)
}

func TestClosestStringsBreaksTiesBySortingAlphabetically(t *testing.T) {
	got := ClosestStrings("cat", []string{"bat", "hat", "mat"}, 1)
	require.Equal(t, []string{"bat", "hat", "mat"}, got)
}
