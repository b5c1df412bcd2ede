// Package driver implements the Application Driver: the process that
// parses an ARO application's source files, merges them into one
// Program, loads its plugins, and runs Application-Start through to
// shutdown (spec §4.8).
package driver

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aro-lang/aro/actions"
	"github.com/aro-lang/aro/ast"
	"github.com/aro-lang/aro/compile"
	"github.com/aro-lang/aro/config"
	"github.com/aro-lang/aro/internal/metrics"
	"github.com/aro-lang/aro/internal/restclient"
	"github.com/aro-lang/aro/logging"
	"github.com/aro-lang/aro/plugin/declarative"
	"github.com/aro-lang/aro/plugin/manifest"
	"github.com/aro-lang/aro/plugin/native"
	"github.com/aro-lang/aro/plugin/scripted"
	"github.com/aro-lang/aro/qualifiers"
	"github.com/aro-lang/aro/repo"
	"github.com/aro-lang/aro/runtime"
	"github.com/aro-lang/aro/runtime/eventbus"
	"github.com/aro-lang/aro/runtime/globals"
)

// pluginsDirName is the well-known subdirectory an application's
// managed plugins live under (spec §4.8 step 2/3, §6).
const pluginsDirName = "Plugins"

// Driver wires every runtime collaborator together for one running
// application and carries out spec §4.8's six-step procedure.
type Driver struct {
	appDir string

	Config      *config.Config
	Program     *compile.Program
	FeatureSets *declarative.Registry

	Actions    *actions.Registry
	Qualifiers *qualifiers.Registry
	Globals    *globals.Registry
	Store      *repo.Store
	Bus        *eventbus.Bus
	Runner     *runtime.Runner

	Log     logging.Logger
	Metrics *metrics.Metrics

	nativeHosts   []*native.Host
	scriptedHosts []*scripted.Host

	// shutdownC receives a value when user code or an operator
	// requests an orderly shutdown (spec §4.8 step 5: "explicit
	// request from within user code"); fatalC receives a value when a
	// persistent service reports it can no longer continue (the same
	// step's "unrecoverable error in a persistent service"). Nothing
	// in this tree currently writes to fatalC — it is the hook a
	// future plugin host uses to report a crashed subprocess or a
	// dropped native library without the driver polling for it.
	shutdownC chan struct{}
	fatalC    chan error
}

// Load performs spec §4.8 steps 1 through 3: parse and merge the
// application's own source files, then load every declarative,
// native, and scripted plugin discovered under appDir/Plugins. It
// returns as soon as the program fails to compile; plugin load
// failures are logged and skipped rather than aborting the whole
// application, matching the declarative loader's own per-plugin
// isolation (spec §4.11) generalized to every plugin kind.
func Load(appDir string) (*Driver, error) {
	files, err := findSourceFiles(appDir)
	if err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("driver: no .aro source files found under %s", appDir)
	}

	var perFile [][]*compile.AnalyzedFeatureSet
	var diags ast.Diagnostics
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("driver: reading %s: %w", file, err)
		}
		mod := ast.ParseModule(file, src)
		diags = append(diags, mod.Diagnostics...)
		perFile = append(perFile, compile.AnalyzeModule(mod))
	}

	program, mergeDiags := compile.Merge(perFile)
	diags = append(diags, mergeDiags...)
	diags = append(diags, program.ResolveUnresolvedReferences()...)
	if diags.HasErrors() {
		return nil, diags.Errors()
	}

	cfg, err := loadConfig(appDir)
	if err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}

	log := logging.Get()
	m := metrics.New(prometheus.NewRegistry())
	bus := eventbus.New(log, m)
	store := repo.New(bus)
	actionsReg := actions.NewRegistry()
	qualifiersReg := qualifiers.New()
	globalsReg := globals.New()

	services, err := restclient.ParseServices(cfg.Services)
	if err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}

	env := &actions.Env{
		Store:    store,
		Bus:      bus,
		Globals:  globalsReg,
		Log:      log,
		Metrics:  m,
		Services: services,
	}

	d := &Driver{
		appDir:      appDir,
		Config:      cfg,
		Program:     program,
		FeatureSets: declarative.NewRegistry(),
		Actions:     actionsReg,
		Qualifiers:  qualifiersReg,
		Globals:     globalsReg,
		Store:       store,
		Bus:         bus,
		Runner:      runtime.New(actionsReg, qualifiersReg, globalsReg, env),
		Log:         log,
		Metrics:     m,
		shutdownC:   make(chan struct{}, 1),
		fatalC:      make(chan error, 1),
	}
	d.FeatureSets.RegisterUserFeatureSets(program.FeatureSets)

	for _, warn := range diags {
		d.Log.Warn("%s", warn.Error())
	}

	d.loadPlugins()
	return d, nil
}

// loadPlugins discovers every managed plugin under appDir/Plugins and
// loads each provide entry by kind (spec §4.8 steps 2-3). A plugin
// directory that fails to parse, or a provide entry that fails to
// load, is logged and skipped; it never aborts discovery of the
// application's other plugins.
func (d *Driver) loadPlugins() {
	root := filepath.Join(d.appDir, pluginsDirName)
	manifests, errs := manifest.Discover(root)
	for _, err := range errs {
		d.Log.Warn("driver: %v", err)
	}

	for _, m := range manifests {
		for _, p := range m.Provides {
			d.loadProvide(m, p)
		}
	}
}

func (d *Driver) loadProvide(m *manifest.Manifest, p manifest.Provide) {
	switch {
	case p.Type.IsDeclarative():
		diags := d.FeatureSets.Load(m, p)
		for _, diag := range diags {
			d.Log.Warn("%s", diag.Error())
		}
	case p.Type.IsNative():
		host, err := native.Load(m, p, d.Actions, d.Qualifiers)
		if err != nil {
			d.Log.Error("driver: loading native plugin %q: %v", m.Name, err)
			return
		}
		d.nativeHosts = append(d.nativeHosts, host)
	case p.Type.IsScripted():
		host, err := scripted.Load(m, p, d.Actions, d.Qualifiers)
		if err != nil {
			d.Log.Error("driver: loading scripted plugin %q: %v", m.Name, err)
			return
		}
		d.scriptedHosts = append(d.scriptedHosts, host)
	default:
		d.Log.Warn("driver: plugin %q: unrecognized provide type %q", m.Name, p.Type)
	}
}

// unloadPlugins unregisters every loaded native and scripted host's
// actions and qualifiers (spec §4.9/§4.10 "Unloading", and §4.8 step
// 6's "plugins are unloaded after Application-End:* completes").
func (d *Driver) unloadPlugins() {
	for _, host := range d.nativeHosts {
		host.Unregister(d.Actions, d.Qualifiers)
	}
	for _, host := range d.scriptedHosts {
		host.Unregister(d.Actions, d.Qualifiers)
	}
}

// RequestShutdown signals an orderly shutdown from outside the
// running feature sets (spec §4.8 step 5's "explicit request"). It is
// safe to call more than once or concurrently with Run's own select.
func (d *Driver) RequestShutdown() {
	select {
	case d.shutdownC <- struct{}{}:
	default:
	}
}

// ReportFatal signals that a persistent service (a plugin host, a
// long-lived connection) failed unrecoverably, the third wakeup
// condition of spec §4.8 step 5.
func (d *Driver) ReportFatal(err error) {
	select {
	case d.fatalC <- err:
	default:
	}
}

// loadConfig reads appDir/aro.yaml if present; a missing file yields
// an empty, defaulted Config rather than an error, since aro.yaml is
// optional (spec §6).
func loadConfig(appDir string) (*config.Config, error) {
	raw, err := os.ReadFile(filepath.Join(appDir, "aro.yaml"))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading aro.yaml: %w", err)
		}
		raw = nil
	}
	return config.ParseConfig(raw, filepath.Base(appDir))
}

// findSourceFiles walks appDir for *.aro files, skipping the managed
// Plugins directory (those sources are loaded by the declarative
// loader under their own namespace, not merged as application code).
func findSourceFiles(appDir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(appDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == pluginsDirName && path != appDir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".aro") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", appDir, err)
	}
	sort.Strings(files)
	return files, nil
}
