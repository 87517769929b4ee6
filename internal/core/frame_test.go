package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comp-lang/comp/internal/ast"
)

type fakeModuleScope struct {
	vals    map[string]Value
	runtime map[string]bool
}

func (f *fakeModuleScope) ModuleGet(name string) (Value, bool) {
	v, ok := f.vals[name]
	return v, ok
}

func (f *fakeModuleScope) ModuleRuntime(name string) bool { return f.runtime[name] }

func TestResolutionOrder(t *testing.T) {
	mod := &fakeModuleScope{vals: map[string]Value{"x": String("module")}}

	fs := NewFrames()
	f := fs.Push(PushOptions{Module: mod})
	f.SetCtx("x", String("context"))
	f.SetArg("x", String("argument"))
	require.NoError(t, f.SetVar("x", String("variable")))

	v, ok := f.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, String("variable"), v)

	v, ok = f.LookupScoped(ast.ScopeArgument, "x")
	require.True(t, ok)
	assert.Equal(t, String("argument"), v)

	v, ok = f.LookupScoped(ast.ScopeContext, "x")
	require.True(t, ok)
	assert.Equal(t, String("context"), v)

	v, ok = f.LookupScoped(ast.ScopeModule, "x")
	require.True(t, ok)
	assert.Equal(t, String("module"), v)
}

func TestVarOnceAssigned(t *testing.T) {
	fs := NewFrames()
	f := fs.Push(PushOptions{})
	require.NoError(t, f.SetVar("x", Num(1)))
	assert.Error(t, f.SetVar("x", Num(2)))
}

func TestPurityIsSticky(t *testing.T) {
	fs := NewFrames()
	fs.Push(PushOptions{Pure: true})
	child := fs.Push(PushOptions{})
	assert.True(t, child.Pure, "child of pure frame is pure")

	grandchild := fs.Push(PushOptions{Pure: false})
	assert.True(t, grandchild.Pure, "purity cannot be shed")
}

func TestDisarmBypassInherited(t *testing.T) {
	fs := NewFrames()
	fs.Push(PushOptions{DisarmBypass: true})
	child := fs.Push(PushOptions{})
	assert.True(t, child.DisarmBypass)
}

func TestContextFlowsAcrossChain(t *testing.T) {
	fs := NewFrames()
	parent := fs.Push(PushOptions{})
	child := fs.Push(PushOptions{})
	child.SetCtx("trace", String("t-1"))

	// Context writes are visible to the whole chain.
	v, ok := parent.LookupScoped(ast.ScopeContext, "trace")
	require.True(t, ok)
	assert.Equal(t, String("t-1"), v)
}

func TestSnapshotCapturesAndShadows(t *testing.T) {
	fs := NewFrames()
	f := fs.Push(PushOptions{})
	require.NoError(t, f.SetVar("a", Num(1)))
	f.SetArg("b", Num(2))
	f.SetInput(String("in"))

	snap := f.Snapshot()
	assert.Equal(t, String("in"), snap.Input)
	assert.Equal(t, Num(1), snap.Vars["a"])
	assert.Equal(t, Num(2), snap.Args["b"])

	// Mutating the frame after capture does not alter the snapshot.
	require.NoError(t, f.SetVar("c", Num(3)))
	_, ok := snap.Vars["c"]
	assert.False(t, ok)

	// Block frames resolve against the capture, not the invoker.
	blockFrame := fs.Push(PushOptions{Captured: snap})
	v, ok := blockFrame.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, Num(1), v)

	// Nested capture folds outer bindings under inner ones.
	require.NoError(t, blockFrame.SetVar("a", Num(10)))
	nested := blockFrame.Snapshot()
	assert.Equal(t, Num(10), nested.Vars["a"])
	assert.Equal(t, Num(2), nested.Args["b"])
}

func TestBlockCapturePurity(t *testing.T) {
	fs := NewFrames()
	pureFrame := fs.Push(PushOptions{Pure: true})
	snap := pureFrame.Snapshot()
	require.NoError(t, fs.Pop())

	// Invoked from an impure frame, the block frame keeps the
	// captured purity.
	fs.Push(PushOptions{})
	blockFrame := fs.Push(PushOptions{Captured: snap})
	assert.True(t, blockFrame.Pure)
}

func TestPipeAccumulation(t *testing.T) {
	fs := NewFrames()
	f := fs.Push(PushOptions{})
	f.PipeSet("a", Num(1), ast.Normal)
	f.PipeAppend(Num(2))
	f.PipeSet("a", Num(3), ast.Weak)
	f.PipeSet("b", Num(4), ast.Strong)

	out := f.Pipe().Build()
	v, _ := out.Get("a")
	assert.Equal(t, Num(1), v, "weak assignment yields to existing field")
	v, _ = out.Get("b")
	assert.Equal(t, Num(4), v)
	u, ok := out.At(0)
	require.True(t, ok)
	assert.Equal(t, Num(2), u)
}

func TestBuilderSpread(t *testing.T) {
	src := NewStructure(
		Field{Name: "a", Value: Num(1)},
		Field{Value: Num(2)},
	)
	b := NewBuilder()
	b.Set("a", Num(0), ast.Normal)
	b.Spread(src, ast.Weak)
	out := b.Build()

	v, _ := out.Get("a")
	assert.Equal(t, Num(0), v, "weak spread yields to existing field")
	u, ok := out.At(0)
	require.True(t, ok)
	assert.Equal(t, Num(2), u)
}
