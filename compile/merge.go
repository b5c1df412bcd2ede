package compile

import (
	"strings"

	"github.com/aro-lang/aro/ast"
	"github.com/aro-lang/aro/internal/levenshtein"
)

// unresolvedHintMaxDistance bounds how far a published name may be
// from an unresolved reference and still be worth suggesting; beyond
// this the names are probably unrelated, not a typo.
const unresolvedHintMaxDistance = 3

const (
	applicationStart = "Application-Start"
)

// GlobalOwner names the feature set that first published a global
// name and the statement where it did so, the runtime analogue of
// spec §3's "GlobalRegistry" entry.
type GlobalOwner struct {
	FeatureSetIdentity string
	Statement          *ast.Statement
}

// GlobalRegistry is the compile-time mapping published_name -> owner,
// validated to have exactly one owner per name once every file is
// merged (spec §3 invariant, §4.3 step 3).
type GlobalRegistry map[string]GlobalOwner

// Program is the merged, analyzed compilation unit the runner
// executes (spec §3: "Program").
type Program struct {
	FeatureSets []*AnalyzedFeatureSet
	Globals     GlobalRegistry
}

// AnalyzeModule analyzes every feature set in m, in file order.
func AnalyzeModule(m *ast.Module) []*AnalyzedFeatureSet {
	out := make([]*AnalyzedFeatureSet, len(m.FeatureSets))
	for i, fs := range m.FeatureSets {
		out[i] = AnalyzeFeatureSet(fs)
	}
	return out
}

// Merge fuses one AnalyzedFeatureSet slice per source file into a
// single Program, per spec §4.3's four-step procedure. It never
// returns a partial Program silently: validation failures are
// returned as diagnostics, and the caller (the Application Driver)
// decides whether to abort.
func Merge(perFile [][]*AnalyzedFeatureSet) (*Program, ast.Diagnostics) {
	var diags ast.Diagnostics

	var all []*AnalyzedFeatureSet
	for _, fileSets := range perFile {
		all = append(all, fileSets...)
	}

	kept := filterTestFeatureSets(all)

	globals, mergeDiags := mergeGlobalRegistries(kept)
	diags = append(diags, mergeDiags...)

	diags = append(diags, validateReservedNames(kept)...)

	return &Program{FeatureSets: kept, Globals: globals}, diags
}

// filterTestFeatureSets drops any feature set whose business activity
// ends in "Test" or "Tests", preserving Application-Start and every
// Application-End:* regardless (spec §4.3 step 2).
func filterTestFeatureSets(all []*AnalyzedFeatureSet) []*AnalyzedFeatureSet {
	kept := make([]*AnalyzedFeatureSet, 0, len(all))
	for _, a := range all {
		name := a.FeatureSet.Name
		activity := a.FeatureSet.BusinessActivity
		if name == applicationStart || strings.HasPrefix(name, "Application-End:") {
			kept = append(kept, a)
			continue
		}
		if strings.HasSuffix(activity, "Test") || strings.HasSuffix(activity, "Tests") {
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

// mergeGlobalRegistries merges every feature set's own exports into
// one GlobalRegistry, retaining the first owner on a duplicate-key
// conflict and reporting an error (spec §4.3 step 3).
func mergeGlobalRegistries(sets []*AnalyzedFeatureSet) (GlobalRegistry, ast.Diagnostics) {
	reg := make(GlobalRegistry)
	var diags ast.Diagnostics
	for _, a := range sets {
		for name := range a.Exports {
			owner := GlobalOwner{FeatureSetIdentity: a.Identity(), Statement: a.Symbols[name].Statement}
			existing, taken := reg[name]
			if !taken {
				reg[name] = owner
				continue
			}
			if existing.FeatureSetIdentity == owner.FeatureSetIdentity {
				continue
			}
			diags = append(diags, ast.NewError(owner.Statement.Location, nil,
				"%q is published by both %q and %q; a published name may have only one owner",
				name, existing.FeatureSetIdentity, owner.FeatureSetIdentity))
		}
	}
	return reg, diags
}

// validateReservedNames enforces spec §4.3 step 4: exactly one
// Application-Start, at most one Application-End:Success, at most one
// Application-End:Error.
func validateReservedNames(sets []*AnalyzedFeatureSet) ast.Diagnostics {
	var diags ast.Diagnostics
	starts := 0
	successEnds := 0
	errorEnds := 0
	for _, a := range sets {
		switch a.FeatureSet.Name {
		case applicationStart:
			starts++
		case "Application-End:Success":
			successEnds++
		case "Application-End:Error":
			errorEnds++
		}
	}
	if starts != 1 {
		diags = append(diags, ast.NewError(nil, nil,
			"a program must declare exactly one %s feature set; found %d", applicationStart, starts))
	}
	if successEnds > 1 {
		diags = append(diags, ast.NewError(nil, nil, "a program may declare at most one Application-End:Success feature set; found %d", successEnds))
	}
	if errorEnds > 1 {
		diags = append(diags, ast.NewError(nil, nil, "a program may declare at most one Application-End:Error feature set; found %d", errorEnds))
	}
	return diags
}

// ResolveUnresolvedReferences reports every feature set's reads that
// are satisfied by neither its own symbol table nor the merged
// GlobalRegistry, the cross-file half of spec §4.2 item 4 (the
// intra-file half runs during AnalyzeFeatureSet's own pass).
func (p *Program) ResolveUnresolvedReferences() ast.Diagnostics {
	var diags ast.Diagnostics
	names := p.Globals.names()
	for _, a := range p.FeatureSets {
		for dep := range a.Dependencies {
			if _, ok := p.Globals[dep]; ok {
				continue
			}
			hints := didYouMeanHints(dep, names, unresolvedHintMaxDistance)
			diags = append(diags, ast.NewWarning(a.FeatureSet.Location, hints,
				"%q in %q is never bound locally, published, nor exported by any feature set", dep, a.Identity()))
		}
	}
	return diags
}

// names returns every published name in r, for feeding did-you-mean
// hint lookups.
func (r GlobalRegistry) names() []string {
	out := make([]string, 0, len(r))
	for name := range r {
		out = append(out, name)
	}
	return out
}

// didYouMeanHints formats the closest published names to an
// unresolved reference as diagnostic hints, grounded on the teacher's
// internal/compile "did you mean" suggestions for unresolved rule
// references.
func didYouMeanHints(name string, candidates []string, maxDistance int) []string {
	closest := levenshtein.ClosestStrings(name, candidates, maxDistance)
	if len(closest) == 0 {
		return nil
	}
	hints := make([]string, len(closest))
	for i, c := range closest {
		hints[i] = "did you mean \"" + c + "\"?"
	}
	return hints
}
