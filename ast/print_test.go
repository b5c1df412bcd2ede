package ast

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/aro-lang/aro/location"
)

// roundTripOpts ignores source locations: Print reconstructs an
// equivalent program, not the original text, so reparsing it produces
// fresh locations that point into the printed (not the original)
// source (spec §8 invariant 1).
var roundTripOpts = cmp.Options{
	cmpopts.IgnoreTypes((*location.Location)(nil)),
	cmpopts.IgnoreFields(Module{}, "Diagnostics", "File"),
}

func TestPrintRoundTripsStructurallyEqualModule(t *testing.T) {
	src := `(Notify: order-placed Handler) when <event: region> == "west" {
  Retrieve <order> from <order-repository>.
  Compute <total> from <order: amount>.
  Store <order> in the <fulfillment-repository> with { priority: "high", attempts: 3 }.
  Publish <order> into <order-fulfilled>.
}
`
	original := ParseModule("original.aro", []byte(src))
	require.Empty(t, original.Diagnostics.Errors())

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, original))

	reprinted := ParseModule("reprinted.aro", buf.Bytes())
	require.Empty(t, reprinted.Diagnostics.Errors())

	if diff := cmp.Diff(original, reprinted, roundTripOpts); diff != "" {
		t.Fatalf("Print output did not reparse to a structurally-equal module (-original +reprinted):\n%s", diff)
	}
}

func TestPrintRoundTripsBareLiteralAndQualifiedDescriptors(t *testing.T) {
	src := `(Application-Start: boot the application) {
  Log "booting" to the <console>.
  Return <success: boolean>.
}
`
	original := ParseModule("original.aro", []byte(src))
	require.Empty(t, original.Diagnostics.Errors())

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, original))

	reprinted := ParseModule("reprinted.aro", buf.Bytes())
	require.Empty(t, reprinted.Diagnostics.Errors())

	require.Empty(t, cmp.Diff(original, reprinted, roundTripOpts))
}
