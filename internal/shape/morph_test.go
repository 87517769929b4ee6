package shape

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comp-lang/comp/internal/ast"
	"github.com/comp-lang/comp/internal/core"
)

// litEnv evaluates literal defaults; constraints are driven by a
// test-provided function.
type litEnv struct {
	constraint func(c *ast.Call, v core.Value) (core.Value, error)
}

func (e *litEnv) EvalDefault(expr ast.Expr, _ *core.Frame) (core.Value, error) {
	switch n := expr.(type) {
	case *ast.NumberLit:
		return core.Num(n.Value), nil
	case *ast.StringLit:
		return core.String(n.Value), nil
	case *ast.BoolLit:
		return core.Bool(n.Value), nil
	default:
		return nil, fmt.Errorf("unsupported default %T", expr)
	}
}

func (e *litEnv) EvalConstraint(c *ast.Call, v core.Value, _ *core.Frame) (core.Value, error) {
	if e.constraint == nil {
		return core.Bool(true), nil
	}
	return e.constraint(c, v)
}

// serverShape mirrors the host/port/debug configuration shape.
func serverShape() *Shape {
	return &Shape{Fields: []Field{
		{Name: "host", Type: Type{Prim: "string"}, Default: &ast.StringLit{Value: "localhost"}},
		{Name: "port", Type: Type{Prim: "number"}, Default: &ast.NumberLit{Value: 8080}},
		{Name: "debug", Type: Type{Prim: "bool"}, Default: &ast.BoolLit{Value: false}},
	}}
}

func serverInput() *core.Structure {
	return core.NewStructure(
		core.Field{Value: core.String("192.168.1.1")},
		core.Field{Name: "debug", Value: core.Bool(true)},
		core.Field{Name: "extra", Value: core.String("x")},
	)
}

func TestThreePhaseBinding(t *testing.T) {
	res, err := Morph(serverInput(), serverShape(), Normal, ast.Normal, &litEnv{}, nil)
	require.NoError(t, err)
	require.True(t, res.Ok(), "morph failed: %v", res.Failure)

	out := res.Value.(*core.Structure)
	host, _ := out.Get("host")
	assert.Equal(t, core.String("192.168.1.1"), host, "positional match")
	port, _ := out.Get("port")
	assert.Equal(t, core.Num(8080), port, "default applied")
	debug, _ := out.Get("debug")
	assert.Equal(t, core.Bool(true), debug, "named match")
	extra, ok := out.Get("extra")
	require.True(t, ok, "extras preserved under normal morph")
	assert.Equal(t, core.String("x"), extra)

	assert.Equal(t, 1, res.Score.Named)
	assert.Equal(t, 1, res.Score.Positional)
}

func TestStrongMorphRejectsExtras(t *testing.T) {
	res, err := Morph(serverInput(), serverShape(), Strong, ast.Normal, &litEnv{}, nil)
	require.NoError(t, err)
	require.False(t, res.Ok())
	kind, ok := core.FailureKind(res.Failure)
	require.True(t, ok)
	assert.Equal(t, core.FailShape, kind)
}

func TestWeakMorphToleratesMissingSkipsDefaults(t *testing.T) {
	src := core.NewStructure(core.Field{Name: "debug", Value: core.Bool(true)})
	res, err := Morph(src, serverShape(), Weak, ast.Normal, &litEnv{}, nil)
	require.NoError(t, err)
	require.True(t, res.Ok())

	out := res.Value.(*core.Structure)
	_, ok := out.Get("host")
	assert.False(t, ok, "weak morph applies no defaults")
	_, ok = out.Get("port")
	assert.False(t, ok)
	debug, _ := out.Get("debug")
	assert.Equal(t, core.Bool(true), debug)
}

func TestMissingRequiredField(t *testing.T) {
	sh := &Shape{Fields: []Field{
		{Name: "id", Type: Type{Prim: "number"}},
	}}
	res, err := Morph(core.Empty(), sh, Normal, ast.Normal, &litEnv{}, nil)
	require.NoError(t, err)
	require.False(t, res.Ok())
	kind, _ := core.FailureKind(res.Failure)
	assert.Equal(t, core.FailMissing, kind)
}

func TestTypeMismatchOnNamedMatch(t *testing.T) {
	sh := &Shape{Fields: []Field{
		{Name: "port", Type: Type{Prim: "number"}},
	}}
	src := core.NewStructure(core.Field{Name: "port", Value: core.String("eighty")})
	res, err := Morph(src, sh, Normal, ast.Normal, &litEnv{}, nil)
	require.NoError(t, err)
	require.False(t, res.Ok())
	kind, _ := core.FailureKind(res.Failure)
	assert.Equal(t, core.FailShape, kind)
}

func TestMorphIdempotence(t *testing.T) {
	for _, variant := range []Variant{Normal, Strong} {
		src := serverInput()
		sh := serverShape()
		if variant == Strong {
			src = core.NewStructure(
				core.Field{Value: core.String("h")},
				core.Field{Name: "debug", Value: core.Bool(true)},
			)
		}
		first, err := Morph(src, sh, variant, ast.Normal, &litEnv{}, nil)
		require.NoError(t, err)
		require.True(t, first.Ok(), "variant %v", variant)

		second, err := Morph(first.Value, sh, variant, ast.Normal, &litEnv{}, nil)
		require.NoError(t, err)
		require.True(t, second.Ok())
		assert.True(t, core.Equal(first.Value, second.Value),
			"morph not idempotent under %v", variant)
	}
}

func TestTagFamilyMatchPicksDeepest(t *testing.T) {
	ts := core.NewTagSet()
	animal := &core.TagDef{Name: "animal", Module: "zoo"}
	ts.Define(nil, animal)
	cat := &core.TagDef{Name: "cat", Module: "zoo"}
	ts.Define(animal, cat)
	tabby := &core.TagDef{Name: "tabby", Module: "zoo"}
	ts.Define(cat, tabby)

	sh := &Shape{Fields: []Field{
		{Name: "kind", Type: Type{Tag: animal}},
	}}
	src := core.NewStructure(
		core.Field{Name: "a", Value: core.TagRef{Def: cat}},
		core.Field{Name: "b", Value: core.TagRef{Def: tabby}},
	)
	res, err := Morph(src, sh, Normal, ast.Normal, &litEnv{}, nil)
	require.NoError(t, err)
	require.True(t, res.Ok())

	out := res.Value.(*core.Structure)
	kind, _ := out.Get("kind")
	assert.Equal(t, tabby, kind.(core.TagRef).Def, "deepest tag wins")
	assert.Equal(t, 3, res.Score.Depth)
}

func TestReleasedHandleFailsMorph(t *testing.T) {
	def := &core.HandleDef{Path: "test.h", Module: "test"}
	h := core.NewHandle(def, nil)
	sh := &Shape{Fields: []Field{
		{Name: "self", Type: Type{Handle: def}},
	}}

	src := core.NewStructure(core.Field{Name: "self", Value: core.HandleRef{H: h}})
	res, err := Morph(src, sh, Normal, ast.Normal, &litEnv{}, nil)
	require.NoError(t, err)
	require.True(t, res.Ok(), "live handle must match")

	require.NoError(t, h.Release())
	res, err = Morph(src, sh, Normal, ast.Normal, &litEnv{}, nil)
	require.NoError(t, err)
	require.False(t, res.Ok(), "released handle must not match")
	kind, _ := core.FailureKind(res.Failure)
	assert.Equal(t, core.FailReleased, kind)
}

func TestConstraintRejection(t *testing.T) {
	call := &ast.Call{Name: "positive"}
	sh := &Shape{Fields: []Field{
		{Name: "n", Type: Type{Prim: "number"}, Constraints: []*ast.Call{call}},
	}}
	env := &litEnv{constraint: func(_ *ast.Call, v core.Value) (core.Value, error) {
		return core.Bool(float64(v.(core.Number)) > 0), nil
	}}

	res, err := Morph(core.NewStructure(core.Field{Name: "n", Value: core.Num(5)}), sh, Normal, ast.Normal, env, nil)
	require.NoError(t, err)
	assert.True(t, res.Ok())

	res, err = Morph(core.NewStructure(core.Field{Name: "n", Value: core.Num(-5)}), sh, Normal, ast.Normal, env, nil)
	require.NoError(t, err)
	require.False(t, res.Ok())
	kind, _ := core.FailureKind(res.Failure)
	assert.Equal(t, core.FailShape, kind)
}

func TestConstraintFailurePropagates(t *testing.T) {
	call := &ast.Call{Name: "check"}
	sh := &Shape{Fields: []Field{
		{Name: "n", Constraints: []*ast.Call{call}},
	}}
	env := &litEnv{constraint: func(_ *ast.Call, _ core.Value) (core.Value, error) {
		return core.NewFailure(core.FailUser, "constraint blew up"), nil
	}}

	res, err := Morph(core.NewStructure(core.Field{Name: "n", Value: core.Num(1)}), sh, Normal, ast.Normal, env, nil)
	require.NoError(t, err)
	require.False(t, res.Ok())
	kind, _ := core.FailureKind(res.Failure)
	assert.Equal(t, core.FailUser, kind)
}

func TestNilShapeAcceptsAnything(t *testing.T) {
	v := core.NewStructure(core.Field{Value: core.Num(1)})
	res, err := Morph(v, nil, Strong, ast.Strong, nil, nil)
	require.NoError(t, err)
	require.True(t, res.Ok())
	assert.Same(t, v, res.Value.(*core.Structure))
	assert.Equal(t, int(ast.Strong), res.Score.Strength)
}

func TestArrayFieldConsumesPositionalRun(t *testing.T) {
	sh := &Shape{Fields: []Field{
		{Name: "first", Type: Type{Prim: "string"}},
		{Name: "rest", Type: Type{Prim: "number"}, Array: -1},
	}}
	src := core.NewStructure(
		core.Field{Value: core.String("head")},
		core.Field{Value: core.Num(1)},
		core.Field{Value: core.Num(2)},
		core.Field{Value: core.Num(3)},
	)
	res, err := Morph(src, sh, Normal, ast.Normal, &litEnv{}, nil)
	require.NoError(t, err)
	require.True(t, res.Ok())

	out := res.Value.(*core.Structure)
	rest, _ := out.Get("rest")
	assert.Len(t, rest.(*core.Structure).Unnamed(), 3)
	assert.Equal(t, 4, res.Score.Positional)
}

func TestScoreCompareLexicographic(t *testing.T) {
	tests := []struct {
		name string
		a, b Score
		want int
	}{
		{"named dominates depth", Score{Named: 2}, Score{Named: 1, Depth: 10}, 1},
		{"depth dominates strength", Score{Named: 1, Depth: 3}, Score{Named: 1, Depth: 2, Strength: 9}, 1},
		{"strength dominates positional", Score{Strength: 2}, Score{Strength: 1, Positional: 9}, 1},
		{"positional breaks ties", Score{Positional: 1}, Score{}, 1},
		{"equal", Score{Named: 1, Depth: 2, Strength: 1, Positional: 3}, Score{Named: 1, Depth: 2, Strength: 1, Positional: 3}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
			assert.Equal(t, -tt.want, tt.b.Compare(tt.a))
		})
	}
}

func TestNestedShapeMorph(t *testing.T) {
	inner := &Shape{Fields: []Field{
		{Name: "x", Type: Type{Prim: "number"}, Default: &ast.NumberLit{Value: 0}},
	}}
	outer := &Shape{Fields: []Field{
		{Name: "point", Type: Type{Shape: inner}},
	}}
	src := core.NewStructure(core.Field{Name: "point", Value: core.NewStructure(
		core.Field{Value: core.Num(4)},
	)})
	res, err := Morph(src, outer, Normal, ast.Normal, &litEnv{}, nil)
	require.NoError(t, err)
	require.True(t, res.Ok())

	point, _ := res.Value.(*core.Structure).Get("point")
	x, _ := point.(*core.Structure).Get("x")
	assert.Equal(t, core.Num(4), x, "nested morph rebinds positionally")
}
