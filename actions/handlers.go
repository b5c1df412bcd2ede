package actions

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aro-lang/aro/ast"
	"github.com/aro-lang/aro/repo"
	"github.com/aro-lang/aro/value"
)

// builtinHandlers implements every verb named in verbs.go's Builtins
// table. The runner resolves both descriptors before dispatch
// (spec §4.5 step 1) and applies any transform the Result descriptor's
// own qualifier names to whatever a handler returns (spec §4.5's
// Compute example), so handlers themselves stay narrowly about the
// verb's own effect.
var builtinHandlers = map[string]Handler{
	"log":       logHandler,
	"store":     storeHandler,
	"retrieve":  retrieveHandler,
	"fetch":     retrieveHandler,
	"update":    updateHandler,
	"delete":    deleteHandler,
	"remove":    deleteHandler,
	"compute":   computeHandler,
	"return":    returnHandler,
	"throw":     throwHandler,
	"publish":   publishHandler,
	"emit":      emitHandler,
	"keepalive": keepaliveHandler,
	"require":   requireHandler,
	"call":      callHandler,
	"assert":    assertHandler,
}

// logHandler writes the resolved message to the log at info level.
// The object clause (e.g. "to the <console>") names a sink; only the
// "console" sink is meaningful to a process-local logger, so any
// other named sink still logs but tags the entry with its name.
func logHandler(ctx context.Context, env *Env, req Request) (Result, error) {
	msg := stringify(req.Subject)
	if req.ObjectName != "" && req.ObjectName != "console" {
		env.Log.WithFields(map[string]interface{}{"sink": req.ObjectName}).Info("%s", msg)
	} else {
		env.Log.Info("%s", msg)
	}
	return Result{Value: req.Subject}, nil
}

// storeHandler persists the Result descriptor's own value into the
// repository repo.RepositoryName derives from the object descriptor's
// name ("Store the <order> in the <order>." stores into
// "order-repository").
func storeHandler(ctx context.Context, env *Env, req Request) (Result, error) {
	repoName, err := collaboratorRepoName(req)
	if err != nil {
		return Result{}, err
	}
	stored, err := env.Store.Store(repoName, requireMapping(req.Subject))
	if err != nil {
		return Result{}, fmt.Errorf("store: %w", err)
	}
	return Result{Value: stored.AsValue()}, nil
}

// retrieveHandler returns every entity in the named repository as a
// sequence. A with-clause mapping is treated as an equality predicate
// over the stored entities' fields.
func retrieveHandler(ctx context.Context, env *Env, req Request) (Result, error) {
	repoName, err := collaboratorRepoName(req)
	if err != nil {
		return Result{}, err
	}
	if req.With.Kind() == value.KindMapping && len(req.With.Keys()) > 0 {
		pred := fieldEqualityPredicate(req.With)
		return Result{Value: value.Sequence(env.Store.RetrieveByPredicate(repoName, pred)...)}, nil
	}
	return Result{Value: value.Sequence(env.Store.RetrieveAll(repoName)...)}, nil
}

// updateHandler mutates every entity in the named repository matching
// the expression predicate by merging the with-clause's fields into
// it, returning the updated entities.
func updateHandler(ctx context.Context, env *Env, req Request) (Result, error) {
	repoName, err := collaboratorRepoName(req)
	if err != nil {
		return Result{}, err
	}
	pred := fieldEqualityPredicate(req.Expression)
	matches := env.Store.RetrieveByPredicate(repoName, pred)
	updated := make([]value.Value, 0, len(matches))
	for _, entity := range matches {
		id, _ := entity.Field("id")
		idStr, _ := id.Str()
		out, err := env.Store.Update(repoName, idStr, func(e value.Value) (value.Value, error) {
			return mergeFields(e, req.With), nil
		})
		if err != nil {
			return Result{}, fmt.Errorf("update: %w", err)
		}
		updated = append(updated, out)
	}
	return Result{Value: value.Sequence(updated...)}, nil
}

// deleteHandler removes every entity in the named repository matching
// the expression predicate, returning the count deleted.
func deleteHandler(ctx context.Context, env *Env, req Request) (Result, error) {
	repoName, err := collaboratorRepoName(req)
	if err != nil {
		return Result{}, err
	}
	pred := fieldEqualityPredicate(req.Expression)
	n, err := env.Store.Delete(repoName, pred)
	if err != nil {
		return Result{}, fmt.Errorf("delete: %w", err)
	}
	return Result{Value: value.Int(int64(n))}, nil
}

// computeHandler performs no computation of its own: Result names a
// fresh local the statement is about to bind, so there is no Subject
// to read. The value it hands back is the inline expression when
// present, else the object clause's data ("Compute the <flipped:
// collections.reverse> from the <items>."); any transform named by
// the Result descriptor's own qualifier is layered on afterward by
// the runner. This keeps Compute a thin pass-through verb, with the
// real transformation logic living in the qualifier the statement
// names.
func computeHandler(ctx context.Context, env *Env, req Request) (Result, error) {
	if !req.Expression.IsNull() {
		return Result{Value: req.Expression}, nil
	}
	return Result{Value: req.Object}, nil
}

// returnHandler completes the activation with the Result descriptor's
// own value as the feature set's final result ("Return an <OK:
// status> for the <startup>."). The object clause names what the
// return is completing, not data, and is not otherwise consulted.
func returnHandler(ctx context.Context, env *Env, req Request) (Result, error) {
	return Result{Value: req.Subject, Complete: true}, nil
}

func throwHandler(ctx context.Context, env *Env, req Request) (Result, error) {
	return Result{Value: req.Subject, Complete: true, Err: fmt.Errorf("thrown: %s", stringify(req.Subject))}, nil
}

// publishHandler writes the Result descriptor's own current value
// into the GlobalRegistry under its base name, synchronously visible
// to any later read (spec §4: "Publish ... writes to the global
// registry").
func publishHandler(ctx context.Context, env *Env, req Request) (Result, error) {
	name := descriptorBaseName(req.Statement.Result)
	if name == "" {
		return Result{}, fmt.Errorf("publish: statement has no result name to publish under")
	}
	env.Globals.Publish(name, req.Subject)
	return Result{Value: req.Subject}, nil
}

// emitHandler enqueues an event on the bus and returns immediately
// (spec §5: "Emit returns immediately"). The Result descriptor names
// the event; the with-clause, when present, is the richer payload,
// falling back to the Result's own resolved value.
func emitHandler(ctx context.Context, env *Env, req Request) (Result, error) {
	eventName := descriptorBaseName(req.Statement.Result)
	if eventName == "" {
		return Result{}, fmt.Errorf("emit: statement has no event name")
	}
	payload := req.Subject
	if req.With.Kind() == value.KindMapping {
		payload = req.With
	}
	if env.Bus != nil {
		env.Bus.Emit(eventName, payload)
	}
	return Result{Value: payload}, nil
}

// keepaliveHandler is a no-op that returns immediately without
// completing the activation. The blocking itself is done by the
// Application Driver, which waits for shutdown after Application-Start
// returns whenever any feature set uses Keepalive (spec §4.8 step 5).
func keepaliveHandler(ctx context.Context, env *Env, req Request) (Result, error) {
	return Result{Value: value.Null}, nil
}

// requireHandler validates that the Result descriptor's own value is
// present and non-null, failing the statement otherwise.
func requireHandler(ctx context.Context, env *Env, req Request) (Result, error) {
	if req.SubjectMissing || req.Subject.IsNull() {
		return Result{}, fmt.Errorf("require: %s is missing", subjectName(req))
	}
	return Result{Value: req.Subject}, nil
}

// callHandler performs an outbound request against a named service
// from aro.yaml's services block (e.g. "Call the <quote> from the
// <pricing-service> with { method: \"POST\", path: \"/quote\" }.").
// The with-clause's "method" and "path" fields configure the request;
// its "body" field, or else the Result descriptor's own value, is the
// request body. A verb a native or scripted plugin provides under the
// name "call" replaces this registration entirely (spec §4.9 step 6).
func callHandler(ctx context.Context, env *Env, req Request) (Result, error) {
	client, ok := env.Services[req.ObjectName]
	if !ok {
		return Result{}, fmt.Errorf("call: unknown service %q", req.ObjectName)
	}

	method := http.MethodGet
	path := ""
	body := req.Subject
	if req.With.Kind() == value.KindMapping {
		if m, ok := req.With.Field("method"); ok {
			if s, ok := m.Str(); ok {
				method = strings.ToUpper(s)
			}
		}
		if p, ok := req.With.Field("path"); ok {
			if s, ok := p.Str(); ok {
				path = s
			}
		}
		if b, ok := req.With.Field("body"); ok {
			body = b
		}
	}

	out, err := client.Do(ctx, method, path, body)
	if err != nil {
		return Result{}, fmt.Errorf("call: %w", err)
	}
	return Result{Value: out}, nil
}

// assertHandler is meaningful inside Test feature sets: it fails the
// activation (as a Throw-shaped completion) when the with-clause
// comparison evaluates false.
func assertHandler(ctx context.Context, env *Env, req Request) (Result, error) {
	ok, isBool := req.Expression.Bool()
	if isBool && !ok {
		return Result{Value: req.Expression, Complete: true, Err: fmt.Errorf("assertion failed: %s", subjectName(req))}, nil
	}
	return Result{Value: req.Expression}, nil
}

func stringify(v value.Value) string {
	switch v.Kind() {
	case value.KindString:
		s, _ := v.Str()
		return s
	case value.KindNull:
		return ""
	default:
		b, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func descriptorBaseName(d *ast.Descriptor) string {
	if d == nil {
		return ""
	}
	return d.BaseName
}

func subjectName(req Request) string {
	if name := descriptorBaseName(req.Statement.Result); name != "" {
		return name
	}
	return "<subject>"
}

func collaboratorRepoName(req Request) (string, error) {
	if req.ObjectName == "" {
		return "", fmt.Errorf("%s: statement has no repository object", req.Statement.Verb)
	}
	return repo.RepositoryName(req.ObjectName), nil
}

func fieldEqualityPredicate(criteria value.Value) repo.Predicate {
	if criteria.Kind() != value.KindMapping {
		return nil
	}
	keys := criteria.Keys()
	return func(entity value.Value) bool {
		for _, k := range keys {
			want, _ := criteria.Field(k)
			got, ok := entity.Field(k)
			if !ok || !value.Equal(want, got) {
				return false
			}
		}
		return true
	}
}

func mergeFields(base, overlay value.Value) value.Value {
	if overlay.Kind() != value.KindMapping {
		return base
	}
	out := base
	for _, k := range overlay.Keys() {
		v, _ := overlay.Field(k)
		out = out.WithField(k, v)
	}
	return out
}
