package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comp-lang/comp/internal/ast"
	"github.com/comp-lang/comp/internal/core"
	"github.com/comp-lang/comp/internal/errors"
	"github.com/comp-lang/comp/internal/shape"
)

// twoModules installs lib (with public and private members) and app
// importing lib.
func twoModules(t *testing.T) (*Registry, *Module, *Module) {
	t.Helper()
	reg := NewRegistry()

	lib := New("lib")
	lib.Family("pub").Add(&Overload{Expr: &ast.NumberLit{Value: 1}})
	secret := lib.Family("secret")
	secret.Private = true
	secret.Add(&Overload{Expr: &ast.NumberLit{Value: 2}})
	require.NoError(t, lib.Shapes.Define(&shape.Shape{Name: "open", Module: "lib"}))
	require.NoError(t, lib.Shapes.Define(&shape.Shape{Name: "hidden", Module: "lib", Private: true}))
	lib.Handles["pubh"] = &core.HandleDef{Path: "lib.pubh", Module: "lib"}
	lib.Handles["privh"] = &core.HandleDef{Path: "lib.privh", Module: "lib", Private: true}
	require.NoError(t, reg.Install(lib))

	app := New("app")
	app.Imports["lib"] = lib
	require.NoError(t, reg.Install(app))
	return reg, lib, app
}

func TestLookupFuncPrivacy(t *testing.T) {
	reg, lib, app := twoModules(t)

	fam, err := reg.LookupFunc(app, "lib", "pub")
	require.NoError(t, err)
	assert.Equal(t, "pub", fam.FamilyName())
	assert.Equal(t, "lib", fam.FamilyModule())

	_, err = reg.LookupFunc(app, "lib", "secret")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	// The defining module sees its own private family.
	fam, err = reg.LookupFunc(lib, "", "secret")
	require.NoError(t, err)
	assert.Equal(t, "secret", fam.Name)
}

func TestLookupShapeAndHandlePrivacy(t *testing.T) {
	reg, lib, app := twoModules(t)

	_, err := reg.LookupShape(app, "lib", "open")
	require.NoError(t, err)
	_, err = reg.LookupShape(app, "lib", "hidden")
	assert.ErrorIs(t, err, errors.ErrNotFound)
	_, err = reg.LookupShape(lib, "", "hidden")
	require.NoError(t, err)

	_, err = reg.LookupHandle(app, "lib", "pubh")
	require.NoError(t, err)
	_, err = reg.LookupHandle(app, "lib", "privh")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestLookupUnknownImport(t *testing.T) {
	reg, _, app := twoModules(t)
	_, err := reg.LookupFunc(app, "nope", "pub")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestModuleScopeRuntimeSlots(t *testing.T) {
	m := New("m")
	require.NoError(t, m.SetScope("k", core.Num(1), false))
	assert.False(t, m.ModuleRuntime("k"))

	require.NoError(t, m.SetScope("state", core.String("up"), true))
	assert.True(t, m.ModuleRuntime("state"))

	// Runtime slots are written at most once.
	assert.Error(t, m.SetScope("state", core.String("again"), true))

	v, ok := m.ModuleGet("k")
	require.True(t, ok)
	assert.Equal(t, core.Num(1), v)
}

func TestModuleAnchorsScopeHandles(t *testing.T) {
	m := New("m")
	count := 0
	def := &core.HandleDef{Path: "m.h", Module: "m", Cleanup: func(any) error {
		count++
		return nil
	}}
	h := core.NewHandle(def, nil)
	require.NoError(t, m.SetScope("conn", core.HandleRef{H: h}, false))

	// The module's anchor frame keeps the handle alive with no call
	// frames referencing it.
	assert.Equal(t, 1, h.FrameCount())
	assert.False(t, h.Released())
	assert.Equal(t, 0, count)
}

func TestSees(t *testing.T) {
	_, lib, app := twoModules(t)
	assert.True(t, app.Sees("app"))
	assert.True(t, app.Sees("lib"), "direct imports are visible")
	assert.True(t, app.Sees("builtin"))
	assert.False(t, lib.Sees("app"), "importing is not symmetric")
}

func TestRegisterAndPending(t *testing.T) {
	reg := NewRegistry()
	decl := &ast.Module{Path: "m"}
	require.NoError(t, reg.Register(decl))
	assert.True(t, reg.HasPending("m"))
	assert.Error(t, reg.Register(decl), "double registration rejected")

	got, ok := reg.Pending("m")
	require.True(t, ok)
	assert.Same(t, decl, got)
	assert.False(t, reg.HasPending("m"), "claiming removes the pending entry")
}

func TestFamilyOverloadOrder(t *testing.T) {
	m := New("m")
	fam := m.Family("f")
	fam.Add(&Overload{})
	fam.Add(&Overload{})
	assert.Equal(t, 0, fam.Overloads[0].Order)
	assert.Equal(t, 1, fam.Overloads[1].Order)
	assert.Same(t, fam, m.Family("f"), "family is created once")
}
