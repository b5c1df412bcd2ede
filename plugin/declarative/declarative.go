// Package declarative implements the Declarative Plugin Loader: parsing
// and analyzing an `aro-files` plugin's own `.aro` sources exactly as
// user code is parsed and analyzed, then registering its feature sets
// under fully-qualified names with short-name aliasing (spec §4.11).
package declarative

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aro-lang/aro/ast"
	"github.com/aro-lang/aro/compile"
	"github.com/aro-lang/aro/plugin/manifest"
)

// Registry holds every feature set known to the running application:
// the user program's own feature sets registered by their bare name,
// plus each declarative plugin's feature sets registered under
// `<plugin>:<feature-set>` and aliased under their bare name only when
// that name is not already taken (spec §4.11).
type Registry struct {
	byQualifiedName map[string]*compile.AnalyzedFeatureSet
	aliases         map[string]string // short name -> qualified name
	aliasOwners     map[string]string // short name -> owning plugin, "" for user code
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byQualifiedName: make(map[string]*compile.AnalyzedFeatureSet),
		aliases:         make(map[string]string),
		aliasOwners:     make(map[string]string),
	}
}

// RegisterUserFeatureSets registers the application's own feature sets
// under their bare names, taking priority over any plugin alias
// registered afterward (spec §4.11: "short names are also aliased when
// they do not collide with user code").
func (r *Registry) RegisterUserFeatureSets(sets []*compile.AnalyzedFeatureSet) {
	for _, a := range sets {
		name := a.FeatureSet.Name
		r.byQualifiedName[name] = a
		r.aliases[name] = name
		r.aliasOwners[name] = ""
	}
}

// Lookup resolves name against the qualified table first, then the
// alias table, mirroring how a feature-set reference in user code
// might already be written fully-qualified (`payments:Charge-Card`)
// or left as a short name relying on aliasing.
func (r *Registry) Lookup(name string) (*compile.AnalyzedFeatureSet, bool) {
	if a, ok := r.byQualifiedName[name]; ok {
		return a, ok
	}
	qualified, ok := r.aliases[name]
	if !ok {
		return nil, false
	}
	a, ok := r.byQualifiedName[qualified]
	return a, ok
}

// All returns every registered feature set across user code and every
// loaded declarative plugin, in no particular order.
func (r *Registry) All() []*compile.AnalyzedFeatureSet {
	out := make([]*compile.AnalyzedFeatureSet, 0, len(r.byQualifiedName))
	for _, a := range r.byQualifiedName {
		out = append(out, a)
	}
	return out
}

// Load discovers, parses, and analyzes an aro-files plugin's sources
// and registers them into r. Per-file compile errors are returned
// alongside whatever feature sets parsed cleanly; they never abort
// loading of the caller's other plugins (spec §4.11).
func (r *Registry) Load(m *manifest.Manifest, p manifest.Provide) ast.Diagnostics {
	if !p.Type.IsDeclarative() {
		return ast.Diagnostics{ast.NewError(nil, nil, "declarative: %s: provide type %q is not aro-files", m.Name, p.Type)}
	}

	dir := m.ResolvePath(p)
	files, err := findAroFiles(dir)
	if err != nil {
		return ast.Diagnostics{ast.NewError(nil, nil, "declarative: %s: %v", m.Name, err)}
	}
	if len(files) == 0 {
		return ast.Diagnostics{ast.NewError(nil, nil, "declarative: %s: no .aro files found in %s", m.Name, dir)}
	}

	var diags ast.Diagnostics
	var analyzed []*compile.AnalyzedFeatureSet
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			diags = append(diags, ast.NewError(nil, nil, "declarative: %s: reading %s: %v", m.Name, file, err))
			continue
		}
		mod := ast.ParseModule(file, src)
		diags = append(diags, taggedOrigin(m.Name, mod.Diagnostics)...)
		for _, fs := range mod.FeatureSets {
			analyzed = append(analyzed, compile.AnalyzeFeatureSet(fs))
		}
	}

	for _, a := range analyzed {
		diags = append(diags, taggedOrigin(m.Name, a.Diagnostics)...)
	}

	r.registerPlugin(m.Name, analyzed)
	return diags
}

// registerPlugin installs analyzed under the plugin's fully-qualified
// namespace and aliases each short name when it is not already taken.
func (r *Registry) registerPlugin(pluginName string, analyzed []*compile.AnalyzedFeatureSet) {
	for _, a := range analyzed {
		shortName := a.FeatureSet.Name
		qualified := pluginName + ":" + shortName
		a.FeatureSet.Name = qualified
		r.byQualifiedName[qualified] = a

		if _, taken := r.aliases[shortName]; taken {
			continue
		}
		r.aliases[shortName] = qualified
		r.aliasOwners[shortName] = pluginName
	}
}

// taggedOrigin prepends the plugin name to every diagnostic's message
// so a reader can tell a plugin's own compile error apart from the
// application's (spec §4.11: "reported with the plugin's origin").
func taggedOrigin(pluginName string, diags ast.Diagnostics) ast.Diagnostics {
	tagged := make(ast.Diagnostics, len(diags))
	for i, d := range diags {
		clone := *d
		clone.Message = fmt.Sprintf("[plugin %s] %s", pluginName, d.Message)
		tagged[i] = &clone
	}
	return tagged
}

// findAroFiles returns every *.aro file directly inside dir, sorted for
// deterministic load order.
func findAroFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".aro") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}
