// Package manifest parses plugin.yaml manifests and discovers managed
// plugin directories under an application's Plugins/ directory (spec
// §4.8 step 2, §6 "Plugin manifest").
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProvideType is one of the recognized `provides[].type` values.
type ProvideType string

const (
	ProvideAroFiles    ProvideType = "aro-files"
	ProvideSwiftPlugin ProvideType = "swift-plugin"
	ProvideRustPlugin  ProvideType = "rust-plugin"
	ProvideCPlugin     ProvideType = "c-plugin"
	ProvideCppPlugin   ProvideType = "cpp-plugin"
	ProvidePython      ProvideType = "python-plugin"
)

// IsDeclarative reports whether t is the aro-files provide type, the
// only kind the Declarative Plugin Loader (not the native/scripted
// hosts) handles.
func (t ProvideType) IsDeclarative() bool { return t == ProvideAroFiles }

// IsNative reports whether t is built from a C-ABI-compatible source
// language that the Native Plugin Host loads as a shared library.
func (t ProvideType) IsNative() bool {
	switch t {
	case ProvideSwiftPlugin, ProvideRustPlugin, ProvideCPlugin, ProvideCppPlugin:
		return true
	}
	return false
}

// IsScripted reports whether t is interpreted by an external runtime
// the Scripted Plugin Host launches as a subprocess.
func (t ProvideType) IsScripted() bool { return t == ProvidePython }

// BuildConfig is a provide entry's optional `build` block: compiler,
// flags, and expected output path for non-declarative, non-prebuilt
// sources (spec §4.12).
type BuildConfig struct {
	Compiler string   `yaml:"compiler"`
	Flags    []string `yaml:"flags"`
	Output   string   `yaml:"output"`
}

// PythonConfig is a provide entry's optional `python` block.
type PythonConfig struct {
	MinVersion       string `yaml:"min_version"`
	RequirementsFile string `yaml:"requirements_file"`
}

// Dependency is one entry of the manifest's top-level `dependencies`
// map.
type Dependency struct {
	Git string `yaml:"git"`
	Ref string `yaml:"ref"`
}

// Provide is one entry of `provides`.
type Provide struct {
	Type    ProvideType   `yaml:"type"`
	Path    string        `yaml:"path"`
	Handler string        `yaml:"handler"`
	Build   *BuildConfig  `yaml:"build"`
	Python  *PythonConfig `yaml:"python"`
}

// Manifest is a parsed plugin.yaml.
type Manifest struct {
	Name         string                `yaml:"name"`
	Version      string                `yaml:"version"`
	Description  string                `yaml:"description"`
	Author       string                `yaml:"author"`
	License      string                `yaml:"license"`
	AroVersion   string                `yaml:"aro-version"`
	Source       string                `yaml:"source"`
	Dependencies map[string]Dependency `yaml:"dependencies"`
	Provides     []Provide             `yaml:"provides"`

	// Dir is the plugin's directory, set by Load/Discover rather than
	// decoded from YAML, so every downstream consumer can resolve a
	// provide entry's relative Path against it.
	Dir string `yaml:"-"`
}

// ResolvePath joins p's Path against the manifest's directory, unless
// p.Path is already absolute.
func (m *Manifest) ResolvePath(p Provide) string {
	if p.Path == "" {
		return m.Dir
	}
	if filepath.IsAbs(p.Path) {
		return p.Path
	}
	return filepath.Join(m.Dir, p.Path)
}

// Validate checks the required keys (spec §6: "Required keys: name,
// version, provides").
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest: missing required key %q", "name")
	}
	if m.Version == "" {
		return fmt.Errorf("manifest: missing required key %q", "version")
	}
	if len(m.Provides) == 0 {
		return fmt.Errorf("manifest: %q must declare at least one provide entry", m.Name)
	}
	for i, p := range m.Provides {
		if p.Type == "" {
			return fmt.Errorf("manifest: %q provide entry %d missing a type", m.Name, i)
		}
	}
	return nil
}

// Load parses the plugin.yaml found at dir/plugin.yaml.
func Load(dir string) (*Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "plugin.yaml"))
	if err != nil {
		return nil, fmt.Errorf("manifest: reading %s: %w", dir, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("manifest: parsing %s/plugin.yaml: %w", dir, err)
	}
	m.Dir = dir
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Discover finds every managed plugin directory under root (an
// application's Plugins/ directory): immediate subdirectories
// carrying a plugin.yaml. A subdirectory that fails to parse is
// reported in the returned errs slice rather than aborting discovery
// of the others (spec §4.11: "do not abort loading of other
// plugins" generalized to every plugin kind).
func Discover(root string) ([]*Manifest, []error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []error{fmt.Errorf("manifest: scanning %s: %w", root, err)}
	}

	var manifests []*Manifest
	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, "plugin.yaml")); err != nil {
			continue
		}
		m, err := Load(dir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		manifests = append(manifests, m)
	}
	return manifests, errs
}
