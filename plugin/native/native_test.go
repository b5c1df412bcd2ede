package native

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/aro-lang/aro/plugin/manifest"
	"github.com/aro-lang/aro/value"
)

func TestActionEntryUnmarshalsBareVerbString(t *testing.T) {
	var a actionEntry
	require.NoError(t, json.Unmarshal([]byte(`"store"`), &a))
	require.Equal(t, "store", a.Name)
	require.Equal(t, []string{"store"}, a.Verbs)
}

func TestActionEntryUnmarshalsNameAndVerbsObject(t *testing.T) {
	var a actionEntry
	require.NoError(t, json.Unmarshal([]byte(`{"name":"billing","verbs":["charge","refund"]}`), &a))
	require.Equal(t, "billing", a.Name)
	require.Equal(t, []string{"charge", "refund"}, a.Verbs)
}

func TestActionEntryDefaultsVerbsToName(t *testing.T) {
	var a actionEntry
	require.NoError(t, json.Unmarshal([]byte(`{"name":"archive"}`), &a))
	require.Equal(t, []string{"archive"}, a.Verbs)
}

func TestGoStringFromPtrStopsAtNulTerminator(t *testing.T) {
	data := append([]byte("hello"), 0, 'x', 'x')
	ptr := uintptr(unsafe.Pointer(&data[0]))
	require.Equal(t, "hello", goStringFromPtr(ptr))
}

func TestLocateLibraryPrefersExplicitBuildOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "custom.so")
	require.NoError(t, os.WriteFile(out, []byte{}, 0o644))

	m := &manifest.Manifest{Name: "widgets", Dir: dir}
	p := manifest.Provide{Build: &manifest.BuildConfig{Output: "custom.so"}}

	got, err := locateLibrary(m, p)
	require.NoError(t, err)
	require.Equal(t, out, got)
}

func TestLocateLibraryFallsBackToConventionalName(t *testing.T) {
	dir := t.TempDir()
	conventional := filepath.Join(dir, "libwidgets"+platformExt())
	require.NoError(t, os.WriteFile(conventional, []byte{}, 0o644))

	m := &manifest.Manifest{Name: "widgets", Dir: dir}
	got, err := locateLibrary(m, manifest.Provide{})
	require.NoError(t, err)
	require.Equal(t, conventional, got)
}

func TestLocateLibraryErrorsWhenNothingFound(t *testing.T) {
	dir := t.TempDir()
	m := &manifest.Manifest{Name: "widgets", Dir: dir}
	_, err := locateLibrary(m, manifest.Provide{})
	require.Error(t, err)
}

func TestMergeValueFieldFlattensMappingKeys(t *testing.T) {
	dst := map[string]interface{}{}
	with := value.NewMapping().WithField("limit", value.Int(5))
	mergeValueField(dst, "_with_", with)

	require.Contains(t, dst, "_with_")
	require.Contains(t, dst, "limit")
}

func TestMergeValueFieldSkipsNull(t *testing.T) {
	dst := map[string]interface{}{}
	mergeValueField(dst, "_expression_", value.Null)
	require.NotContains(t, dst, "_expression_")
}

func TestKindFromLabelRoundTrips(t *testing.T) {
	labels := []string{"string", "integer", "double", "boolean", "sequence", "mapping"}
	for _, label := range labels {
		require.Equal(t, label, kindFromLabel(label).TypeLabel())
	}
}
