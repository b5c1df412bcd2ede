// Package compile implements the ARO Semantic Analyzer and Program
// Merger: walking a parsed Module into per-feature-set symbol tables,
// dependency/export sets, and diagnostics (spec §4.2), then fusing
// multiple files' analyzed output into one Program (spec §4.3).
package compile

import (
	"fmt"
	"strings"

	"github.com/aro-lang/aro/actions"
	"github.com/aro-lang/aro/ast"
)

// unknownVerbHintMaxDistance bounds how far a built-in verb name may
// be from a misspelled one and still be worth suggesting.
const unknownVerbHintMaxDistance = 2

// Visibility classifies a symbol binding the way the analyzer tags
// reads against it.
type Visibility string

const (
	VisibilityLocal     Visibility = "local"
	VisibilityExported  Visibility = "exported"
	VisibilityPublished Visibility = "published"
)

// SymbolBinding records the statement that first bound a name within
// one feature set.
type SymbolBinding struct {
	Name           string
	Statement      *ast.Statement
	StatementIndex int
	Visibility     Visibility
}

// AnalyzedFeatureSet is a FeatureSet plus the analyzer's derived
// metadata (spec §3: "AnalyzedFeatureSet").
type AnalyzedFeatureSet struct {
	FeatureSet   *ast.FeatureSet
	Symbols      map[string]*SymbolBinding
	Dependencies map[string]bool
	Exports      map[string]bool
	Diagnostics  ast.Diagnostics
}

// Identity delegates to the underlying FeatureSet.
func (a *AnalyzedFeatureSet) Identity() string { return a.FeatureSet.Identity() }

// AnalyzeFeatureSet walks fs's statements in textual order, building
// its symbol table, dependency set, export set, and diagnostics (spec
// §4.2).
func AnalyzeFeatureSet(fs *ast.FeatureSet) *AnalyzedFeatureSet {
	a := &AnalyzedFeatureSet{
		FeatureSet:   fs,
		Symbols:      make(map[string]*SymbolBinding),
		Dependencies: make(map[string]bool),
		Exports:      make(map[string]bool),
	}

	if fs.Guard != nil {
		a.recordReads(fs.Guard.Left.Descriptor)
		if fs.Guard.Right != nil {
			a.recordReads(fs.Guard.Right.Descriptor)
		}
	}

	for i, stmt := range fs.Statements {
		a.analyzeStatement(i, stmt)
	}
	return a
}

func (a *AnalyzedFeatureSet) analyzeStatement(index int, stmt *ast.Statement) {
	lowerVerb := strings.ToLower(stmt.Verb)
	spec, known := actions.Lookup(lowerVerb)
	if !known {
		hints := didYouMeanHints(lowerVerb, builtinVerbNames(), unknownVerbHintMaxDistance)
		a.Diagnostics = append(a.Diagnostics, ast.NewWarning(stmt.Location, hints,
			"verb %q is not a built-in action; it must be registered by a plugin before this program runs", stmt.Verb))
	} else if !spec.AllowsPreposition(stmt.Preposition) {
		a.Diagnostics = append(a.Diagnostics, ast.NewError(stmt.Location,
			[]string{fmt.Sprintf("legal prepositions for %q: see the actions reference", stmt.Verb)},
			"%q does not accept the preposition %q", stmt.Verb, stmt.Preposition))
	}

	a.recordReads(stmt.Object)
	if stmt.Expression != nil {
		a.recordReads(stmt.Expression.Left.Descriptor)
		if stmt.Expression.Right != nil {
			a.recordReads(stmt.Expression.Right.Descriptor)
		}
	}
	if stmt.With != nil && stmt.With.Expression != nil {
		a.recordReads(stmt.With.Expression.Left.Descriptor)
		if stmt.With.Expression.Right != nil {
			a.recordReads(stmt.With.Expression.Right.Descriptor)
		}
	}

	if stmt.Result == nil || stmt.Result.BaseName == "" {
		return
	}
	name := stmt.Result.BaseName
	if existing, rebound := a.Symbols[name]; rebound {
		a.Diagnostics = append(a.Diagnostics, ast.NewWarning(stmt.Location, nil,
			"%q rebinds a value first bound at statement %d", name, existing.StatementIndex))
	}

	visibility := VisibilityLocal
	if known && spec.Role == actions.RoleExport && lowerVerb == "publish" {
		visibility = VisibilityPublished
		a.Exports[name] = true
	}
	a.Symbols[name] = &SymbolBinding{Name: name, Statement: stmt, StatementIndex: index, Visibility: visibility}
}

// recordReads adds d's base name to the dependency set when it reads
// a name not yet locally bound at the point of the read. A descriptor
// with no angle brackets (a bare literal) reads nothing.
func (a *AnalyzedFeatureSet) recordReads(d *ast.Descriptor) {
	if d == nil || !d.HasAngleBrackets() || d.BaseName == "" {
		return
	}
	if _, bound := a.Symbols[d.BaseName]; bound {
		return
	}
	a.Dependencies[d.BaseName] = true
}

// builtinVerbNames lists every recognized verb name, canonical forms
// and aliases alike, as candidates for an unknown-verb hint.
func builtinVerbNames() []string {
	names := make([]string, 0, len(actions.Builtins))
	for name := range actions.Builtins {
		names = append(names, name)
	}
	return names
}

// UnresolvedReferences returns the dependencies that are neither
// locally bound nor satisfied by any name in externalExports (the
// union of every other feature set's exports plus the GlobalRegistry),
// the compile-time diagnostic named in spec §4.2 item 4.
func (a *AnalyzedFeatureSet) UnresolvedReferences(externalExports map[string]bool) []string {
	var out []string
	for dep := range a.Dependencies {
		if !externalExports[dep] {
			out = append(out, dep)
		}
	}
	return out
}
