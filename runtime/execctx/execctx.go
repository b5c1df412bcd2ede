// Package execctx implements the ARO Execution Context: the
// per-activation variable store a Feature-Set Runner consults to
// resolve descriptors and bind results (spec §4.5).
package execctx

import (
	"fmt"

	"github.com/aro-lang/aro/ast"
	"github.com/aro-lang/aro/location"
	"github.com/aro-lang/aro/logging"
	"github.com/aro-lang/aro/qualifiers"
	"github.com/aro-lang/aro/runtime/globals"
	"github.com/aro-lang/aro/value"
)

// Reserved slot names, bound by the runner before a handler is
// invoked (spec §4.5 step 2).
const (
	SlotWith       = "_with_"
	SlotExpression = "_expression_"
)

// Context is the activation-local mapping base_name -> RuntimeValue.
// It is not safe for concurrent use; each activation (the top-level
// Application-Start run, or a spawned event-handler activation) owns
// exactly one Context.
type Context struct {
	parent     *Context
	vars       map[string]value.Value
	qualifiers *qualifiers.Registry
	globals    *globals.Registry
	log        logging.Logger
}

// New creates a root Context backed by the given qualifier registry.
// globalReg may be nil, in which case descriptor resolution never
// falls back to a published value. log receives non-fatal runtime
// diagnostics (e.g. an out-of-range list-index qualifier); a nil log
// is replaced with a NoOpLogger so callers never need a nil check.
func New(reg *qualifiers.Registry, globalReg *globals.Registry, log logging.Logger) *Context {
	if log == nil {
		log = logging.NewNoOpLogger()
	}
	return &Context{vars: make(map[string]value.Value), qualifiers: reg, globals: globalReg, log: log}
}

// Child creates a fresh child activation context (spec §4.6: "spawns a
// new activation with a fresh child context"). The child shares the
// parent's qualifier registry, global registry, and diagnostics log
// but starts with an empty variable map; seed maps the reserved
// "event" binding (or any other seed values) into it.
func (c *Context) Child(seed map[string]value.Value) *Context {
	child := &Context{parent: c, vars: make(map[string]value.Value, len(seed)), qualifiers: c.qualifiers, globals: c.globals, log: c.log}
	for k, v := range seed {
		child.vars[k] = v
	}
	return child
}

// Bind sets base_name to val in this context, overwriting any
// previous binding. Used both for ordinary result binding and for the
// reserved _with_/_expression_ slots.
func (c *Context) Bind(baseName string, val value.Value) {
	c.vars[baseName] = val
}

// Lookup returns the raw binding for base_name, without qualifier
// resolution.
func (c *Context) Lookup(baseName string) (value.Value, bool) {
	v, ok := c.vars[baseName]
	return v, ok
}

// Resolve resolves a Descriptor against the context, implementing
// spec §4.5 step 1 and the qualifier-resolution rule of the paragraph
// following step 5:
//
//   - A bare literal descriptor (no angle brackets) resolves to its
//     own literal value.
//   - <base_name> with no qualifier resolves to the bound value.
//   - <base_name: qualifier> first tries qualifier as a property of
//     the bound value (when the bound value is a mapping and has that
//     field); if that fails, it consults the qualifier registry under
//     (namespace, qualifier_name) — using the qualifier's own
//     namespace if written "ns.name", else the default namespace.
//   - A list-index qualifier (first/last/integer) is resolved
//     directly against a sequence-kinded bound value, bypassing the
//     registry's table lookup (the registry still holds "first"/
//     "last" as real registrations for uniformity, but bare integers
//     have no finite table entry).
//
// missing reports whether base_name had no binding and no literal to
// fall back on; the caller (the runner) decides whether that is fatal
// for the current verb (spec §4.5 step 1: "otherwise the action must
// accept an empty input").
func (c *Context) Resolve(d *ast.Descriptor) (resolved value.Value, missing bool, err error) {
	if d == nil {
		return value.Null, true, nil
	}
	if !d.HasAngleBrackets() {
		return literalToValue(d.Literal), false, nil
	}

	bound, ok := c.lookupChain(d.BaseName)
	if !ok && c.globals != nil {
		bound, ok = c.globals.Lookup(d.BaseName)
	}
	if !ok {
		if d.Literal != nil {
			return literalToValue(d.Literal), false, nil
		}
		return value.Null, true, nil
	}
	if d.Qualifier == nil {
		return bound, false, nil
	}
	return c.resolveQualifier(bound, d.Qualifier, d.Location)
}

// lookupChain checks this context, then ancestor contexts, the way a
// nested handler activation can still see bindings a parent made
// before spawning it (e.g. the "event" seed is only ever in the
// immediate child, but a plugin-provided activation may nest further).
func (c *Context) lookupChain(baseName string) (value.Value, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[baseName]; ok {
			return v, true
		}
	}
	return value.Null, false
}

func (c *Context) resolveQualifier(bound value.Value, q *ast.Qualifier, loc *location.Location) (value.Value, bool, error) {
	if q.Namespace == "" && qualifiers.IsListIndexName(q.Name) {
		out, outOfRange := qualifiers.ResolveListIndex(bound, q.Name)
		if outOfRange {
			c.log.Warn("execctx: %s: list-index qualifier %q is out of range for a %d-element sequence", loc.String(), q.Name, sequenceLen(bound))
			return value.Null, false, nil
		}
		return out, false, nil
	}
	if q.Namespace == "" {
		if field, ok := bound.Field(q.Name); ok {
			return field, false, nil
		}
	}
	out, err := c.qualifiers.Apply(q.Namespace, q.Name, bound)
	if err != nil {
		return value.Null, false, fmt.Errorf("execctx: resolving qualifier %q: %w", q.String(), err)
	}
	return out, false, nil
}

func sequenceLen(v value.Value) int {
	items, ok := v.Items()
	if !ok {
		return 0
	}
	return len(items)
}

func literalToValue(lit *ast.Literal) value.Value {
	if lit == nil {
		return value.Null
	}
	switch lit.Kind {
	case ast.LiteralString:
		return value.String(lit.Str)
	case ast.LiteralInt:
		return value.Int(lit.Int)
	case ast.LiteralFloat:
		return value.Float(lit.Float)
	case ast.LiteralBool:
		return value.Bool(lit.Bool)
	case ast.LiteralNull:
		return value.Null
	default:
		if lit.Array != nil {
			items := make([]value.Value, len(lit.Array))
			for i, elem := range lit.Array {
				items[i] = literalToValue(elem)
			}
			return value.Sequence(items...)
		}
		if lit.Object != nil {
			out := value.NewMapping()
			for _, field := range lit.Object {
				out = out.WithField(field.Key, literalToValue(field.Value))
			}
			return out
		}
		return value.Null
	}
}

// BindWith evaluates a WithClause and binds it into the reserved
// _with_ slot (spec §4.5 step 2). A mapping-literal with-clause
// becomes a RuntimeValue mapping; an expression with-clause evaluates
// to its operand's resolved value (or a boolean for a comparison).
func (c *Context) BindWith(w *ast.WithClause) error {
	if w == nil {
		c.Bind(SlotWith, value.Null)
		return nil
	}
	if w.Mapping != nil {
		out := value.NewMapping()
		for _, field := range w.Mapping {
			out = out.WithField(field.Key, literalToValue(field.Value))
		}
		c.Bind(SlotWith, out)
		return nil
	}
	v, err := c.EvalExpression(w.Expression)
	if err != nil {
		return fmt.Errorf("execctx: evaluating with-clause: %w", err)
	}
	c.Bind(SlotWith, v)
	return nil
}

// BindExpression evaluates an inline statement expression and binds
// it into the reserved _expression_ slot.
func (c *Context) BindExpression(e *ast.Expression) error {
	if e == nil {
		c.Bind(SlotExpression, value.Null)
		return nil
	}
	v, err := c.EvalExpression(e)
	if err != nil {
		return fmt.Errorf("execctx: evaluating expression: %w", err)
	}
	c.Bind(SlotExpression, v)
	return nil
}

// EvalExpression evaluates a guard-shaped Expression: a bare operand
// resolves to its own value, while a comparison resolves to a
// boolean.
func (c *Context) EvalExpression(e *ast.Expression) (value.Value, error) {
	if e == nil {
		return value.Null, nil
	}
	left, err := c.evalOperand(&e.Left)
	if err != nil {
		return value.Null, err
	}
	if !e.IsComparison() {
		return left, nil
	}
	right, err := c.evalOperand(e.Right)
	if err != nil {
		return value.Null, err
	}
	result, err := compare(left, e.Op, right)
	if err != nil {
		return value.Null, err
	}
	return value.Bool(result), nil
}

func (c *Context) evalOperand(op *ast.Operand) (value.Value, error) {
	if op == nil {
		return value.Null, nil
	}
	if op.Descriptor != nil {
		v, _, err := c.Resolve(op.Descriptor)
		return v, err
	}
	return literalToValue(op.Literal), nil
}

func compare(left value.Value, op ast.CompareOp, right value.Value) (bool, error) {
	if op == ast.OpEq {
		return value.Equal(left, right), nil
	}
	if op == ast.OpNe {
		return !value.Equal(left, right), nil
	}
	lf, lok := left.Float()
	rf, rok := right.Float()
	if lok && rok {
		switch op {
		case ast.OpLt:
			return lf < rf, nil
		case ast.OpLe:
			return lf <= rf, nil
		case ast.OpGt:
			return lf > rf, nil
		case ast.OpGe:
			return lf >= rf, nil
		}
	}
	ls, lsok := left.Str()
	rs, rsok := right.Str()
	if lsok && rsok {
		switch op {
		case ast.OpLt:
			return ls < rs, nil
		case ast.OpLe:
			return ls <= rs, nil
		case ast.OpGt:
			return ls > rs, nil
		case ast.OpGe:
			return ls >= rs, nil
		}
	}
	return false, fmt.Errorf("execctx: cannot compare values of type %q and %q with %q", left.Kind().TypeLabel(), right.Kind().TypeLabel(), op)
}
