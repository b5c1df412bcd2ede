package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aro-lang/aro/actions"
	"github.com/aro-lang/aro/ast"
	"github.com/aro-lang/aro/compile"
	"github.com/aro-lang/aro/logging"
	"github.com/aro-lang/aro/qualifiers"
	"github.com/aro-lang/aro/repo"
	"github.com/aro-lang/aro/runtime/globals"
	"github.com/aro-lang/aro/value"
)

func newTestRunner() *Runner {
	qreg := qualifiers.New()
	greg := globals.New()
	env := &actions.Env{
		Store:   repo.New(nil),
		Bus:     nil,
		Globals: greg,
		Log:     logging.NewNoOpLogger(),
		Metrics: nil,
	}
	return New(actions.NewRegistry(), qreg, greg, env)
}

func TestRunHelloWorld(t *testing.T) {
	r := newTestRunner()
	fs := &ast.FeatureSet{
		Name:             "Application-Start",
		BusinessActivity: "Hello",
		Statements: []*ast.Statement{
			{Verb: "Log", Result: &ast.Descriptor{Literal: &ast.Literal{Kind: ast.LiteralString, Str: "Hello from ARO!"}}, Preposition: "to", Object: &ast.Descriptor{BaseName: "console"}},
			{Verb: "Return", Result: &ast.Descriptor{BaseName: "OK", Qualifier: nil, Literal: &ast.Literal{Kind: ast.LiteralString, Str: "OK"}}, Preposition: "for", Object: &ast.Descriptor{BaseName: "startup"}},
		},
	}
	analyzed := compile.AnalyzeFeatureSet(fs)

	result, err := r.Run(context.Background(), analyzed, nil)
	require.NoError(t, err)
	s, _ := result.Str()
	require.Equal(t, "OK", s)
}

func TestRunImplicitResultWhenNoReturn(t *testing.T) {
	r := newTestRunner()
	fs := &ast.FeatureSet{
		Name:             "Compute",
		BusinessActivity: "Tally",
		Statements: []*ast.Statement{
			{Verb: "Compute", Result: &ast.Descriptor{BaseName: "total"}, Expression: &ast.Expression{Left: ast.Operand{Literal: &ast.Literal{Kind: ast.LiteralInt, Int: 42}}}},
		},
	}
	analyzed := compile.AnalyzeFeatureSet(fs)
	result, err := r.Run(context.Background(), analyzed, nil)
	require.NoError(t, err)
	i, _ := result.Int()
	require.Equal(t, int64(42), i)
}

func TestRunResultQualifierAppliesTransform(t *testing.T) {
	r := newTestRunner()
	require.NoError(t, r.Qualifiers.Register(&qualifiers.Registration{
		Namespace:    "collections",
		Name:         "reverse",
		OwningPlugin: "collections-plugin",
		Handler: func(in value.Value) (value.Value, error) {
			items, _ := in.Items()
			out := make([]value.Value, len(items))
			for i, it := range items {
				out[len(items)-1-i] = it
			}
			return value.Sequence(out...), nil
		},
	}))

	fs := &ast.FeatureSet{
		Name:             "Flip",
		BusinessActivity: "Reverse",
		Statements: []*ast.Statement{
			{
				Verb:        "Compute",
				Result:      &ast.Descriptor{BaseName: "flipped", Qualifier: &ast.Qualifier{Namespace: "collections", Name: "reverse"}},
				Preposition: "from",
				Object:      &ast.Descriptor{BaseName: "items"},
			},
		},
	}
	analyzed := compile.AnalyzeFeatureSet(fs)

	seed := map[string]value.Value{"items": value.Sequence(value.Int(1), value.Int(2), value.Int(3))}
	result, err := r.Run(context.Background(), analyzed, seed)
	require.NoError(t, err)
	items, _ := result.Items()
	require.Len(t, items, 3)
	first, _ := items[0].Int()
	require.Equal(t, int64(3), first)
}

func TestRunThrowCompletesWithError(t *testing.T) {
	r := newTestRunner()
	fs := &ast.FeatureSet{
		Name:             "Faulty",
		BusinessActivity: "Fail",
		Statements: []*ast.Statement{
			{Verb: "Throw", Result: &ast.Descriptor{Literal: &ast.Literal{Kind: ast.LiteralString, Str: "boom"}}},
		},
	}
	analyzed := compile.AnalyzeFeatureSet(fs)
	_, err := r.Run(context.Background(), analyzed, nil)
	require.Error(t, err)
}

func TestEvaluateGuardWithSeed(t *testing.T) {
	r := newTestRunner()
	fs := &ast.FeatureSet{
		Name:             "Welcome",
		BusinessActivity: "UserCreated Handler",
		Guard: &ast.Expression{
			Left:  ast.Operand{Descriptor: &ast.Descriptor{BaseName: "age"}},
			Op:    ast.OpGe,
			Right: &ast.Operand{Literal: &ast.Literal{Kind: ast.LiteralInt, Int: 18}},
		},
	}

	pass, err := r.EvaluateGuard(fs, map[string]value.Value{"age": value.Int(21)})
	require.NoError(t, err)
	require.True(t, pass)

	pass, err = r.EvaluateGuard(fs, map[string]value.Value{"age": value.Int(17)})
	require.NoError(t, err)
	require.False(t, pass)
}
