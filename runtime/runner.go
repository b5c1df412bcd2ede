// Package runtime implements the ARO Feature-Set Runner: sequential
// execution of one feature set's statements against an Execution
// Context, dispatching through the Action Registry (spec §4.5).
package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/aro-lang/aro/actions"
	"github.com/aro-lang/aro/ast"
	"github.com/aro-lang/aro/compile"
	"github.com/aro-lang/aro/qualifiers"
	"github.com/aro-lang/aro/runtime/execctx"
	"github.com/aro-lang/aro/runtime/globals"
	"github.com/aro-lang/aro/value"
)

// Runner evaluates AnalyzedFeatureSets against the shared action and
// qualifier registries.
type Runner struct {
	Actions    *actions.Registry
	Qualifiers *qualifiers.Registry
	Globals    *globals.Registry
	Env        *actions.Env
}

// New creates a Runner wired to the given collaborators.
func New(reg *actions.Registry, qreg *qualifiers.Registry, greg *globals.Registry, env *actions.Env) *Runner {
	return &Runner{Actions: reg, Qualifiers: qreg, Globals: greg, Env: env}
}

// EvaluateGuard reports whether fs's guard expression (if any) passes
// against seed. A feature set with no guard always passes. Guards are
// pure (spec §3 invariant: "side-effect-free"), so evaluation never
// dispatches an action.
func (r *Runner) EvaluateGuard(fs *ast.FeatureSet, seed map[string]value.Value) (bool, error) {
	if fs.Guard == nil {
		return true, nil
	}
	ctx := execctx.New(r.Qualifiers, r.Globals, r.Env.Log)
	for k, v := range seed {
		ctx.Bind(k, v)
	}
	v, err := ctx.EvalExpression(fs.Guard)
	if err != nil {
		return false, err
	}
	b, ok := v.Bool()
	if !ok {
		return false, fmt.Errorf("runtime: guard for %q did not evaluate to a boolean", fs.Identity())
	}
	return b, nil
}

// Run executes one AnalyzedFeatureSet's statements in textual order,
// seeding a fresh root Execution Context with seed (e.g. {"event":
// payload} for an event-handler activation). It implements spec
// §4.5's five-step statement loop plus the "no explicit Return"
// fallback.
func (r *Runner) Run(goCtx context.Context, a *compile.AnalyzedFeatureSet, seed map[string]value.Value) (value.Value, error) {
	ctx := execctx.New(r.Qualifiers, r.Globals, r.Env.Log)
	for k, v := range seed {
		ctx.Bind(k, v)
	}

	var last value.Value
	for _, stmt := range a.FeatureSet.Statements {
		result, err := r.runStatement(goCtx, ctx, stmt)
		if err != nil {
			return value.Null, fmt.Errorf("runtime: %s: %w", stmt.Location.String(), err)
		}
		last = result.value
		if result.complete {
			return result.value, result.throwErr
		}
	}
	return last, nil
}

type stepResult struct {
	value    value.Value
	complete bool
	throwErr error
}

// runStatement performs spec §4.5's per-statement steps 1 through 5.
//
// Both descriptors are resolved before dispatch, but which one a
// handler actually treats as "the data" depends on the verb's role
// (spec §4.2): the Result descriptor's own value is handed to
// handlers as Subject (the thing being stored, returned, published),
// while the Object descriptor is resolved both as a value (Object,
// for OWN verbs like Compute reading "from the <items>") and as a
// raw name (ObjectName, for REQUEST verbs naming a repository or sink
// rather than data to resolve).
func (r *Runner) runStatement(goCtx context.Context, ctx *execctx.Context, stmt *ast.Statement) (stepResult, error) {
	subjVal, subjMissing, err := ctx.Resolve(stmt.Result)
	if err != nil {
		return stepResult{}, err
	}
	objVal, missing, err := ctx.Resolve(stmt.Object)
	if err != nil {
		return stepResult{}, err
	}

	if err := ctx.BindWith(stmt.With); err != nil {
		return stepResult{}, err
	}
	if err := ctx.BindExpression(stmt.Expression); err != nil {
		return stepResult{}, err
	}
	withVal, _ := ctx.Lookup(execctx.SlotWith)
	exprVal, _ := ctx.Lookup(execctx.SlotExpression)

	verb := strings.ToLower(stmt.Verb)
	req := actions.Request{
		Statement:      stmt,
		Subject:        subjVal,
		SubjectMissing: subjMissing,
		Object:         objVal,
		ObjectMissing:  missing,
		ObjectName:     objectBaseName(stmt.Object),
		With:           withVal,
		Expression:     exprVal,
	}

	res, err := r.Actions.Dispatch(goCtx, r.Env, verb, req)
	if err != nil {
		return stepResult{}, err
	}

	final := res.Value
	if stmt.Result != nil && stmt.Result.Qualifier != nil {
		transformed, terr := r.applyResultTransform(final, stmt.Result.Qualifier)
		if terr != nil {
			return stepResult{}, terr
		}
		final = transformed
	}
	if stmt.Result != nil && stmt.Result.BaseName != "" {
		ctx.Bind(stmt.Result.BaseName, final)
	}

	return stepResult{value: final, complete: res.Complete, throwErr: res.Err}, nil
}

// applyResultTransform implements the decision that a Result
// descriptor's qualifier (when present) names a transform applied to
// the handler's own return value rather than a property access —
// there is nothing bound under the result's name yet to read a
// property from (spec §4.5's <flipped: collections.reverse> example).
// List-index qualifiers make no sense as a transform target and are
// rejected with a diagnostic-shaped error instead of silently no-oping.
func (r *Runner) applyResultTransform(in value.Value, q *ast.Qualifier) (value.Value, error) {
	if q.Namespace == "" && qualifiers.IsListIndexName(q.Name) {
		return value.Null, fmt.Errorf("runtime: %q is a list-index qualifier and cannot be used as a result transform", q.Name)
	}
	return r.Qualifiers.Apply(q.Namespace, q.Name, in)
}

func objectBaseName(d *ast.Descriptor) string {
	if d == nil {
		return ""
	}
	return d.BaseName
}
