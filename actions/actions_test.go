package actions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aro-lang/aro/ast"
	"github.com/aro-lang/aro/logging"
	"github.com/aro-lang/aro/repo"
	"github.com/aro-lang/aro/runtime/globals"
	"github.com/aro-lang/aro/value"
)

func testEnv() *Env {
	return &Env{
		Store:   repo.New(nil),
		Bus:     nil,
		Globals: globals.New(),
		Log:     logging.NewNoOpLogger(),
		Metrics: nil,
	}
}

func TestRegistryDispatchesBuiltinVerb(t *testing.T) {
	r := NewRegistry()
	env := testEnv()
	stmt := &ast.Statement{Verb: "return", Result: &ast.Descriptor{BaseName: "ok"}}
	req := Request{Statement: stmt, Subject: value.String("done")}

	res, err := r.Dispatch(context.Background(), env, "return", req)
	require.NoError(t, err)
	require.True(t, res.Complete)
	s, _ := res.Value.Str()
	require.Equal(t, "done", s)
}

func TestDispatchUnknownVerbErrors(t *testing.T) {
	r := NewRegistry()
	env := testEnv()
	_, err := r.Dispatch(context.Background(), env, "nonexistent", Request{Statement: &ast.Statement{Verb: "nonexistent"}})
	require.Error(t, err)
}

func TestStoreThenRetrieve(t *testing.T) {
	r := NewRegistry()
	env := testEnv()
	storeStmt := &ast.Statement{Verb: "store", Result: &ast.Descriptor{BaseName: "order"}, Preposition: "in", Object: &ast.Descriptor{BaseName: "order"}}
	entity := value.NewMapping().WithField("total", value.Int(10))
	res, err := r.Dispatch(context.Background(), env, "store", Request{Statement: storeStmt, Subject: entity, ObjectName: "order"})
	require.NoError(t, err)
	id, ok := res.Value.Field("id")
	require.True(t, ok)
	require.NotEmpty(t, id)

	retrieveStmt := &ast.Statement{Verb: "retrieve", Result: &ast.Descriptor{BaseName: "orders"}, Preposition: "from", Object: &ast.Descriptor{BaseName: "order"}}
	all, err := r.Dispatch(context.Background(), env, "retrieve", Request{Statement: retrieveStmt, ObjectName: "order"})
	require.NoError(t, err)
	require.Equal(t, 1, all.Value.Len())
}

func TestPublishWritesGlobalRegistry(t *testing.T) {
	r := NewRegistry()
	env := testEnv()
	stmt := &ast.Statement{Verb: "publish", Result: &ast.Descriptor{BaseName: "config"}}
	_, err := r.Dispatch(context.Background(), env, "publish", Request{Statement: stmt, Subject: value.String("test")})
	require.NoError(t, err)

	v, ok := env.Globals.Lookup("config")
	require.True(t, ok)
	s, _ := v.Str()
	require.Equal(t, "test", s)
}

func TestRegisterDynamicOverridesVerb(t *testing.T) {
	r := NewRegistry()
	called := false
	err := r.RegisterDynamic(&Registration{
		Verb:         "log",
		OwningPlugin: "custom-logger",
		Handler: func(ctx context.Context, env *Env, req Request) (Result, error) {
			called = true
			return Result{Value: req.Object}, nil
		},
	})
	require.NoError(t, err)

	env := testEnv()
	stmt := &ast.Statement{Verb: "log", Result: &ast.Descriptor{Literal: &ast.Literal{Kind: ast.LiteralString, Str: "hi"}}, Object: nil}
	_, err = r.Dispatch(context.Background(), env, "log", Request{Statement: stmt, Object: value.String("hi")})
	require.NoError(t, err)
	require.True(t, called)
}

func TestUnregisterRemovesOnlyPluginVerbs(t *testing.T) {
	r := NewRegistry()
	_ = r.RegisterDynamic(&Registration{Verb: "widget", OwningPlugin: "widget-plugin", Handler: func(ctx context.Context, env *Env, req Request) (Result, error) {
		return Result{Value: req.Object}, nil
	}})
	r.Unregister("widget-plugin")
	_, ok := r.Lookup("widget")
	require.False(t, ok)

	_, ok = r.Lookup("log")
	require.True(t, ok, "built-in verbs survive unrelated unregister calls")
}

func TestAssertFailureCompletesWithError(t *testing.T) {
	r := NewRegistry()
	env := testEnv()
	stmt := &ast.Statement{Verb: "assert"}
	res, err := r.Dispatch(context.Background(), env, "assert", Request{Statement: stmt, Expression: value.Bool(false)})
	require.NoError(t, err)
	require.True(t, res.Complete)
	require.Error(t, res.Err)
}
