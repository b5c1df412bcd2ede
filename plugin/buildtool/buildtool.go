// Package buildtool implements the Plugin Compiler Driver: detecting
// a non-declarative plugin's source language from the files present
// and invoking the matching toolchain (spec §4.12), in the style of
// the teacher's optimizeBinaryen's exec.CommandContext-with-captured-
// stderr pattern.
package buildtool

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/aro-lang/aro/plugin/manifest"
)

// buildTimeout bounds how long a plugin's compiler is allowed to run.
const buildTimeout = 2 * time.Minute

// Flavor is a detected plugin source language.
type Flavor string

const (
	FlavorRust    Flavor = "rust"
	FlavorC       Flavor = "c"
	FlavorCpp     Flavor = "cpp"
	FlavorSwift   Flavor = "swift"
	FlavorUnknown Flavor = ""
)

// Detect inspects dir's contents to classify which toolchain builds
// this plugin (spec §4.12's "detected by" column).
func Detect(dir string) (Flavor, error) {
	if exists(filepath.Join(dir, "Cargo.toml")) {
		return FlavorRust, nil
	}
	cFiles, err := matchAny(dir, "*.c")
	if err != nil {
		return FlavorUnknown, err
	}
	if cFiles {
		return FlavorC, nil
	}
	cppFiles, err := matchAny(dir, "*.cpp", "*.cc", "*.cxx")
	if err != nil {
		return FlavorUnknown, err
	}
	if cppFiles {
		return FlavorCpp, nil
	}
	swiftFiles, err := matchAny(dir, "*.swift")
	if err != nil {
		return FlavorUnknown, err
	}
	if swiftFiles {
		return FlavorSwift, nil
	}
	return FlavorUnknown, fmt.Errorf("buildtool: no recognized plugin sources found in %s", dir)
}

// Build compiles the plugin source at p (resolved against m's
// directory) and returns the path to the produced shared library.
func Build(ctx context.Context, m *manifest.Manifest, p manifest.Provide) (string, error) {
	dir := m.ResolvePath(p)

	if p.Build != nil && p.Build.Output != "" {
		out := filepath.Join(dir, p.Build.Output)
		if exists(out) {
			return out, nil
		}
	}

	flavor, err := Detect(dir)
	if err != nil {
		return "", err
	}

	switch flavor {
	case FlavorRust:
		return buildRust(ctx, dir, p)
	case FlavorC, FlavorCpp:
		return buildCFamily(ctx, dir, flavor, p, m.Name)
	case FlavorSwift:
		return buildSwift(ctx, dir, p, m.Name)
	default:
		return "", fmt.Errorf("buildtool: unsupported plugin flavor in %s", dir)
	}
}

func buildRust(ctx context.Context, dir string, p manifest.Provide) (string, error) {
	args := []string{"build", "--release"}
	if p.Build != nil {
		args = append(args, p.Build.Flags...)
	}
	if err := run(ctx, dir, "cargo", args...); err != nil {
		return "", err
	}
	out, err := findLibrary(filepath.Join(dir, "target", "release"))
	if err != nil {
		return "", fmt.Errorf("buildtool: cargo build produced no library in %s: %w", dir, err)
	}
	return out, nil
}

func buildCFamily(ctx context.Context, dir string, flavor Flavor, p manifest.Provide, name string) (string, error) {
	compiler := "cc"
	if flavor == FlavorCpp {
		compiler = "c++"
	}
	if p.Build != nil && p.Build.Compiler != "" {
		compiler = p.Build.Compiler
	}

	sources, err := matchFiles(dir, sourceGlobs(flavor)...)
	if err != nil {
		return "", err
	}
	if len(sources) == 0 {
		return "", fmt.Errorf("buildtool: no %s sources found in %s", flavor, dir)
	}

	out := defaultOutput(dir, name)
	if p.Build != nil && p.Build.Output != "" {
		out = filepath.Join(dir, p.Build.Output)
	}

	args := append([]string{"-shared", "-fPIC", "-o", out}, sources...)
	if p.Build != nil {
		args = append(args, p.Build.Flags...)
	}
	if err := run(ctx, dir, compiler, args...); err != nil {
		return "", err
	}
	return out, nil
}

func buildSwift(ctx context.Context, dir string, p manifest.Provide, name string) (string, error) {
	sources, err := matchFiles(dir, "*.swift")
	if err != nil {
		return "", err
	}
	if len(sources) == 0 {
		return "", fmt.Errorf("buildtool: no swift sources found in %s", dir)
	}

	out := defaultOutput(dir, name)
	if p.Build != nil && p.Build.Output != "" {
		out = filepath.Join(dir, p.Build.Output)
	}

	args := append([]string{"-emit-library", "-o", out}, sources...)
	if p.Build != nil {
		args = append(args, p.Build.Flags...)
	}
	if err := run(ctx, dir, "swiftc", args...); err != nil {
		return "", err
	}
	return out, nil
}

func sourceGlobs(flavor Flavor) []string {
	if flavor == FlavorCpp {
		return []string{"*.cpp", "*.cc", "*.cxx"}
	}
	return []string{"*.c"}
}

func defaultOutput(dir, name string) string {
	return filepath.Join(dir, "lib"+name+sharedLibExt())
}

// run invokes name with args in dir, surfacing captured stderr as the
// diagnostic on failure (spec §4.12: "Compilation failures surface
// stderr as a diagnostic").
func run(ctx context.Context, dir, name string, args ...string) error {
	buildCtx, cancel := context.WithTimeout(ctx, buildTimeout)
	defer cancel()

	cmd := exec.CommandContext(buildCtx, name, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("buildtool: %s failed: %w: %s", name, err, stderr.String())
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func matchAny(dir string, patterns ...string) (bool, error) {
	files, err := matchFiles(dir, patterns...)
	return len(files) > 0, err
}

func matchFiles(dir string, patterns ...string) ([]string, error) {
	var matches []string
	for _, pattern := range patterns {
		found, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("buildtool: globbing %s in %s: %w", pattern, dir, err)
		}
		matches = append(matches, found...)
	}
	return matches, nil
}

func findLibrary(dir string) (string, error) {
	matches, err := matchFiles(dir, "*.so", "*.dylib", "*.dll")
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no shared library found")
	}
	return matches[0], nil
}
