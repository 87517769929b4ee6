// Package native installs the std module: host-implemented functions
// behind the standard-library bridge contract. Each native declares
// its input shape, argument shape, and purity; natives that acquire
// handles are impure and follow the handle lifecycle protocol.
package native

import (
	"github.com/spf13/afero"

	"github.com/comp-lang/comp/internal/core"
	"github.com/comp-lang/comp/internal/module"
	"github.com/comp-lang/comp/internal/shape"
)

// Invoker runs captured blocks; implemented by the evaluator.
type Invoker interface {
	InvokeBlock(b *core.Block, input core.Value) (core.Value, error)
}

// Options configures the std module.
type Options struct {
	// Fs backs the file natives; defaults to the OS filesystem.
	Fs afero.Fs

	// Invoker runs blocks for std.do; nil disables it.
	Invoker Invoker
}

// Path is the std module's import path.
const Path = "std"

// Install builds the std module and installs it into the registry.
func Install(reg *module.Registry, opts Options) (*module.Module, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	m := module.New(Path)
	installNumeric(m)
	installStrings(m)
	installCompare(m)
	installFailure(m)
	installLogging(m)
	installBlocks(m, opts.Invoker)
	installFiles(m, opts.Fs)

	if err := reg.Install(m); err != nil {
		return nil, err
	}
	return m, nil
}

// pure registers a pure native overload.
func pure(m *module.Module, name string, input, args *shape.Shape, fn module.NativeFunc) {
	m.Family(name).Add(&module.Overload{
		Input:  input,
		Args:   args,
		Native: fn,
		Pure:   true,
	})
}

// impure registers a side-effecting native overload.
func impure(m *module.Module, name string, input, args *shape.Shape, fn module.NativeFunc) {
	m.Family(name).Add(&module.Overload{
		Input:  input,
		Args:   args,
		Native: fn,
	})
}

// oneShape matches a single positional value of one primitive kind.
func oneShape(prim string) *shape.Shape {
	return &shape.Shape{Fields: []shape.Field{
		{Name: "x", Type: shape.Type{Prim: prim}},
	}}
}
