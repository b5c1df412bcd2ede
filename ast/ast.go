package ast

import "github.com/aro-lang/aro/location"

// LiteralKind classifies the literal a Descriptor or Value node carries.
type LiteralKind int

const (
	// LiteralNone means no literal is present.
	LiteralNone LiteralKind = iota
	LiteralString
	LiteralInt
	LiteralFloat
	LiteralBool
	LiteralNull
)

// Literal is a parsed literal value. For LiteralString/Int/Float/Bool the
// matching field holds the decoded value; composite literals (used in
// `with` mapping clauses) are represented by Array/Object.
type Literal struct {
	Kind   LiteralKind
	Str    string
	Int    int64
	Float  float64
	Bool   bool
	Array  []*Literal
	Object []ObjectField
}

// ObjectField is one key/value pair of an object literal.
type ObjectField struct {
	Key   string
	Value *Literal
}

// Qualifier is the optional tag after a colon inside a descriptor. It
// either selects a property (single part, e.g. "email"), names a
// qualifier transformation (single part, e.g. "uppercase"), or
// references a namespaced plugin-provided qualifier (two parts,
// e.g. "collections.reverse"). A bare integer or "first"/"last" name
// is a list-index qualifier (spec §4.5).
type Qualifier struct {
	Namespace string // empty unless the qualifier was written "ns.name"
	Name      string
}

// String reconstructs the qualifier's source spelling.
func (q *Qualifier) String() string {
	if q == nil {
		return ""
	}
	if q.Namespace != "" {
		return q.Namespace + "." + q.Name
	}
	return q.Name
}

// Descriptor is `(base_name, optional_qualifier, optional_specifiers,
// optional_literal_value)` from spec §3. Specifiers are not otherwise
// named in the grammar beyond the qualifier chain, so they are folded
// into Qualifier here; a bare literal descriptor (no angle brackets,
// e.g. a Log statement's plain string message) has an empty BaseName
// and a non-nil Literal.
type Descriptor struct {
	BaseName  string
	Qualifier *Qualifier
	Literal   *Literal
	Location  *location.Location
}

// HasAngleBrackets reports whether the descriptor was written as
// <name[:qualifier]> rather than as a bare literal.
func (d *Descriptor) HasAngleBrackets() bool {
	return d.BaseName != "" || d.Qualifier != nil
}

// CompareOp is a guard-expression comparison operator.
type CompareOp string

const (
	OpEq CompareOp = "=="
	OpNe CompareOp = "!="
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
)

// Operand is one side of a guard-expression comparison: either a
// descriptor read (`<age>`, `<age: years>`) or a literal.
type Operand struct {
	Descriptor *Descriptor
	Literal    *Literal
}

// Expression is a handler guard or a `with` clause's inline expression.
// A bare Operand with no comparison is itself a legal expression (a
// single descriptor/literal value); Op is empty in that case.
type Expression struct {
	Left     Operand
	Op       CompareOp
	Right    *Operand // nil when Op == ""
	Location *location.Location
}

// IsComparison reports whether the expression is `left op right`
// rather than a bare operand.
func (e *Expression) IsComparison() bool { return e != nil && e.Op != "" }

// WithClause is the optional `with <expression-or-mapping>` tail of a
// statement.
type WithClause struct {
	Mapping    []ObjectField // set when `with` carried a `{...}` literal
	Expression *Expression   // set when `with` carried a descriptor/literal
	Location   *location.Location
}

// Statement is `(action_verb, result_descriptor, preposition,
// object_descriptor, optional_expression, optional_with_clause,
// source_span)` from spec §3. Immutable after parsing.
type Statement struct {
	Verb        string
	Result      *Descriptor
	Preposition string // empty if the statement has no object clause
	Object      *Descriptor
	Expression  *Expression // inline computation operand, e.g. a guard-like comparison used as the object
	With        *WithClause
	Location    *location.Location
}

// FeatureSet is `(name, business_activity, optional_guard_expression,
// ordered list of Statements, source_span)` from spec §3.
type FeatureSet struct {
	Name            string
	BusinessActivity string
	Guard           *Expression
	Statements      []*Statement
	Location        *location.Location
}

// Identity returns the "name:business_activity" string used to match
// reserved names (spec §3).
func (fs *FeatureSet) Identity() string {
	return fs.Name + ":" + fs.BusinessActivity
}

// Module is the parsed form of a single source file: an ordered list
// of feature sets plus any diagnostics accumulated while parsing it.
// The parser never throws; it always returns a best-effort Module.
type Module struct {
	File        string
	FeatureSets []*FeatureSet
	Diagnostics Diagnostics
}
