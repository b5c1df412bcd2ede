package scripted

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aro-lang/aro/value"
)

func TestSnakeCaseConvertsCamelCaseVerbs(t *testing.T) {
	require.Equal(t, "keep_alive", snakeCase("keepAlive"))
	require.Equal(t, "store", snakeCase("store"))
}

func TestLocateMainFilePrefersPluginDotExt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.py"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte(""), 0o644))

	got, err := locateMainFile(dir, "widgets", pythonInterpreter)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "plugin.py"), got)
}

func TestLocateMainFileFallsBackThroughCandidates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "__init__.py"), []byte(""), 0o644))

	got, err := locateMainFile(dir, "widgets", pythonInterpreter)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "__init__.py"), got)
}

func TestLocateMainFileErrorsWhenNoneFound(t *testing.T) {
	dir := t.TempDir()
	_, err := locateMainFile(dir, "widgets", pythonInterpreter)
	require.Error(t, err)
}

func TestLocateInterpreterHonorsEnvOverride(t *testing.T) {
	dir := t.TempDir()
	fake := filepath.Join(dir, "fakepython")
	require.NoError(t, os.WriteFile(fake, []byte("#!/bin/sh\n"), 0o755))
	t.Setenv("ARO_PYTHON", fake)

	got, err := locateInterpreter(pythonInterpreter)
	require.NoError(t, err)
	require.Equal(t, fake, got)
}

func TestLocateInterpreterRejectsMissingOverride(t *testing.T) {
	t.Setenv("ARO_PYTHON", "/nonexistent/python3")
	_, err := locateInterpreter(pythonInterpreter)
	require.Error(t, err)
}

func TestActionEntryUnmarshalsBareVerbString(t *testing.T) {
	var a actionEntry
	require.NoError(t, json.Unmarshal([]byte(`"store"`), &a))
	require.Equal(t, []string{"store"}, a.Verbs)
}

func TestActionEntryUnmarshalsRichObject(t *testing.T) {
	var a actionEntry
	require.NoError(t, json.Unmarshal([]byte(`{"name":"billing","verbs":["charge","refund"]}`), &a))
	require.Equal(t, []string{"charge", "refund"}, a.Verbs)
}

func TestMergeValueFieldFlattensMapping(t *testing.T) {
	dst := map[string]interface{}{}
	with := value.NewMapping().WithField("limit", value.Int(5))
	mergeValueField(dst, "_with_", with)
	require.Contains(t, dst, "_with_")
	require.Contains(t, dst, "limit")
}

func TestKindFromLabelRoundTrips(t *testing.T) {
	labels := []string{"string", "integer", "double", "boolean", "sequence", "mapping"}
	for _, label := range labels {
		require.Equal(t, label, kindFromLabel(label).TypeLabel())
	}
}
