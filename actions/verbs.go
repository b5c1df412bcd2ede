// Package actions implements the ARO Action Registry: the table of
// built-in verbs and their (role, prepositions, aliases), plus the
// concurrent verb-to-handler dispatch table the runner consults.
package actions

// Role classifies a verb's data-flow shape (spec §4.2, §6).
type Role string

const (
	// RoleRequest verbs read from or mutate a named collaborator
	// (a repository, an external service) using the object descriptor
	// as the collaborator's name.
	RoleRequest Role = "request"
	// RoleOwn verbs perform a local, synchronous computation or
	// side effect owned entirely by the current activation.
	RoleOwn Role = "own"
	// RoleResponse verbs complete the current feature-set activation.
	RoleResponse Role = "response"
	// RoleExport verbs publish a value beyond the current activation,
	// either to the GlobalRegistry or to the event bus.
	RoleExport Role = "export"
	// RoleServer verbs block or perform long-lived/out-of-process work.
	RoleServer Role = "server"
	// RoleTest verbs are meaningful only inside Test feature sets.
	RoleTest Role = "test"
)

// VerbSpec is one row of the built-in verb table: a verb's role, the
// prepositions legal after its result descriptor, and any aliases
// that dispatch to the same handler.
type VerbSpec struct {
	Verb            string
	Role            Role
	Prepositions    map[string]bool
	NoPrepositionOK bool
	Aliases         []string
}

// AllowsPreposition reports whether prep is legal for this verb. An
// empty prep (no object clause) is legal only when NoPrepositionOK.
func (v VerbSpec) AllowsPreposition(prep string) bool {
	if prep == "" {
		return v.NoPrepositionOK
	}
	return v.Prepositions[prep]
}

func prepSet(preps ...string) map[string]bool {
	m := make(map[string]bool, len(preps))
	for _, p := range preps {
		m[p] = true
	}
	return m
}

// Builtins is the normative verb table (spec §6: "the table in the
// actions reference ... is normative"). Keys are lowercase verbs;
// aliases are expanded into their own entries pointing at the same
// VerbSpec by canonical verb name.
var Builtins = buildBuiltins()

func buildBuiltins() map[string]VerbSpec {
	specs := []VerbSpec{
		{Verb: "log", Role: RoleOwn, Prepositions: prepSet("to", "on"), NoPrepositionOK: true},
		{Verb: "store", Role: RoleRequest, Prepositions: prepSet("in", "into", "to")},
		{Verb: "retrieve", Role: RoleRequest, Prepositions: prepSet("from"), Aliases: []string{"fetch"}},
		{Verb: "update", Role: RoleRequest, Prepositions: prepSet("in", "for")},
		{Verb: "delete", Role: RoleRequest, Prepositions: prepSet("from", "in"), Aliases: []string{"remove"}},
		{Verb: "compute", Role: RoleOwn, Prepositions: prepSet("from", "for", "on", "with"), NoPrepositionOK: true},
		{Verb: "return", Role: RoleResponse, Prepositions: prepSet("for", "to"), NoPrepositionOK: true},
		{Verb: "throw", Role: RoleResponse, Prepositions: prepSet("for"), NoPrepositionOK: true},
		{Verb: "publish", Role: RoleExport, Prepositions: prepSet("to"), NoPrepositionOK: true},
		{Verb: "emit", Role: RoleExport, Prepositions: prepSet("to", "on"), NoPrepositionOK: true},
		{Verb: "keepalive", Role: RoleServer, NoPrepositionOK: true},
		{Verb: "require", Role: RoleOwn, Prepositions: prepSet("from", "in")},
		{Verb: "call", Role: RoleRequest, Prepositions: prepSet("from", "with", "via")},
		{Verb: "assert", Role: RoleTest, Prepositions: prepSet("against", "for"), NoPrepositionOK: true},
	}

	table := make(map[string]VerbSpec, len(specs)*2)
	for _, spec := range specs {
		table[spec.Verb] = spec
		for _, alias := range spec.Aliases {
			table[alias] = spec
		}
	}
	return table
}

// Lookup returns the VerbSpec for verb (case-insensitively handled by
// the caller, which should lowercase first) and whether it is a
// recognized built-in.
func Lookup(verbLower string) (VerbSpec, bool) {
	spec, ok := Builtins[verbLower]
	return spec, ok
}
