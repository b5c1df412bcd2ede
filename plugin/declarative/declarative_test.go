package declarative

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aro-lang/aro/ast"
	"github.com/aro-lang/aro/compile"
	"github.com/aro-lang/aro/plugin/manifest"
)

const sampleFeatureSet = `(Tax-Calculate: compute the applicable tax rate) {
  Compute <rate> from <amount>.
  Return <rate>.
}
`

func writePlugin(t *testing.T, dir, filename, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(contents), 0o644))
}

func parseFirst(t *testing.T, src string) *compile.AnalyzedFeatureSet {
	t.Helper()
	mod := ast.ParseModule("test.aro", []byte(src))
	require.Empty(t, mod.Diagnostics.Errors())
	require.NotEmpty(t, mod.FeatureSets)
	return compile.AnalyzeFeatureSet(mod.FeatureSets[0])
}

func TestLoadRegistersUnderQualifiedNameAndAlias(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "tax.aro", sampleFeatureSet)

	m := &manifest.Manifest{Name: "taxes", Dir: dir}
	r := NewRegistry()
	diags := r.Load(m, manifest.Provide{Type: manifest.ProvideAroFiles})
	require.Empty(t, diags.Errors())

	qualified, ok := r.Lookup("taxes:Tax-Calculate")
	require.True(t, ok)
	require.Equal(t, "taxes:Tax-Calculate", qualified.FeatureSet.Name)

	aliased, ok := r.Lookup("Tax-Calculate")
	require.True(t, ok)
	require.Same(t, qualified, aliased)
}

func TestUserFeatureSetsWinAliasCollisions(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "tax.aro", sampleFeatureSet)

	userSet := parseFirst(t, sampleFeatureSet)

	r := NewRegistry()
	r.RegisterUserFeatureSets([]*compile.AnalyzedFeatureSet{userSet})

	m := &manifest.Manifest{Name: "taxes", Dir: dir}
	diags := r.Load(m, manifest.Provide{Type: manifest.ProvideAroFiles})
	require.Empty(t, diags.Errors())

	resolved, ok := r.Lookup("Tax-Calculate")
	require.True(t, ok)
	require.Same(t, userSet, resolved)

	qualified, ok := r.Lookup("taxes:Tax-Calculate")
	require.True(t, ok)
	require.NotSame(t, userSet, qualified)
}

func TestLoadReportsPerFileErrorsWithoutAbortingOthers(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "broken.aro", "(not valid aro source\n")
	writePlugin(t, dir, "good.aro", sampleFeatureSet)

	m := &manifest.Manifest{Name: "mixed", Dir: dir}
	r := NewRegistry()
	diags := r.Load(m, manifest.Provide{Type: manifest.ProvideAroFiles})

	_, ok := r.Lookup("mixed:Tax-Calculate")
	require.True(t, ok)
	if len(diags.Errors()) > 0 {
		require.Contains(t, diags.Errors()[0].Message, "[plugin mixed]")
	}
}

func TestLoadRejectsNonDeclarativeProvideType(t *testing.T) {
	dir := t.TempDir()
	m := &manifest.Manifest{Name: "natives", Dir: dir}
	r := NewRegistry()
	diags := r.Load(m, manifest.Provide{Type: manifest.ProvideRustPlugin})
	require.NotEmpty(t, diags.Errors())
}
