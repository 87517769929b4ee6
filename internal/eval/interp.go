// Package eval implements the pipeline evaluator: tree-walking
// evaluation over the AST, overload dispatch through the morph engine,
// module materialization, and the failure propagation rules.
package eval

import (
	"context"
	"fmt"

	"github.com/comp-lang/comp/internal/ast"
	"github.com/comp-lang/comp/internal/core"
	"github.com/comp-lang/comp/internal/errors"
	"github.com/comp-lang/comp/internal/module"
	"github.com/comp-lang/comp/internal/output"
	"github.com/comp-lang/comp/internal/shape"
)

// Interp is the evaluator. It owns the frame stack and drives module
// loading on first use. One pipeline runs at a time on one goroutine;
// the embedder may cancel between statements via the run context.
type Interp struct {
	reg    *module.Registry
	frames *core.Frames

	// ctx is the embedder's cancellation signal, checked at statement
	// boundaries.
	ctx context.Context

	// moduleWrite is non-nil while module-level statements or an
	// !entry block run; it is the only window where module-scope
	// assignment is legal.
	moduleWrite *module.Module
}

// New creates an evaluator over a module registry.
func New(reg *module.Registry) *Interp {
	return &Interp{
		reg:    reg,
		frames: core.NewFrames(),
		ctx:    context.Background(),
	}
}

// Registry returns the evaluator's module registry.
func (in *Interp) Registry() *module.Registry { return in.reg }

// cancelled synthesizes the cancellation failure when the embedder's
// context is done.
func (in *Interp) cancelled() (core.Value, bool) {
	if in.ctx.Err() != nil {
		return core.NewFailure(core.FailCancelled, "evaluation cancelled"), true
	}
	return nil, false
}

// Call invokes a function of a module with the given input value,
// loading the module first if needed. This is the embedder's entry
// point; the call runs in an impure root frame.
func (in *Interp) Call(ctx context.Context, modulePath, name string, input core.Value) (core.Value, error) {
	in.ctx = ctx
	m, err := in.ensureLoaded(modulePath)
	if err != nil {
		return nil, err
	}
	root := in.frames.Push(core.PushOptions{Module: m, ModulePath: m.Path})
	defer in.pop()
	root.SetInput(input)
	if err := in.ensureEntry(m, root); err != nil {
		return nil, err
	}
	return in.call(&ast.Call{Name: name}, input, root)
}

// Eval evaluates a bare expression against a module's view in an
// impure root frame seeded with the empty structure.
func (in *Interp) Eval(ctx context.Context, modulePath string, e ast.Expr) (core.Value, error) {
	in.ctx = ctx
	m, err := in.ensureLoaded(modulePath)
	if err != nil {
		return nil, err
	}
	root := in.frames.Push(core.PushOptions{Module: m, ModulePath: m.Path})
	defer in.pop()
	root.SetInput(core.Empty())
	return in.evalExpr(e, root)
}

// pop discards the innermost frame, logging cleanup errors: a failing
// cleanup hook must not mask the evaluation result.
func (in *Interp) pop() {
	if err := in.frames.Pop(); err != nil {
		output.Warn("handle cleanup failed", "error", err)
	}
}

// ensureLoaded returns the module, materializing it from its queued
// declaration on first use.
func (in *Interp) ensureLoaded(path string) (*module.Module, error) {
	if m, ok := in.reg.Resolve(path); ok {
		return m, nil
	}
	decl, ok := in.reg.Pending(path)
	if !ok {
		return nil, errors.NewNotFoundError(
			fmt.Sprintf("module %s is not registered", path), path,
			"register the module's AST document before evaluating")
	}
	return in.materialize(decl)
}

// materialize builds a module from its declaration: definitions in
// order (tags, shapes, handles, functions), then tag values, then
// module-level assignments — the latter all under pure + disarm-bypass
// frames so tag values may themselves be failure-tagged structures.
func (in *Interp) materialize(decl *ast.Module) (*module.Module, error) {
	m := module.New(decl.Path)
	m.Decl = decl
	in.reg.Claim(m)

	for _, imp := range decl.Imports {
		dep, err := in.ensureLoaded(imp.Path)
		if err != nil {
			return nil, fmt.Errorf("module %s: import %s: %w", decl.Path, imp.Path, err)
		}
		alias := imp.Alias
		if alias == "" {
			alias = imp.Path
		}
		m.Imports[alias] = dep
	}

	tagDefs, err := in.defineTags(m, decl.Tags)
	if err != nil {
		return nil, err
	}
	if err := in.defineShapes(m, decl.Shapes); err != nil {
		return nil, err
	}
	in.defineHandles(m, decl.Handles)
	for i := range decl.Funcs {
		if err := in.defineFunc(m, &decl.Funcs[i]); err != nil {
			return nil, err
		}
	}
	if err := in.generateTagValues(m, tagDefs); err != nil {
		return nil, err
	}
	if err := in.runModuleStmts(m, decl.Stmts); err != nil {
		return nil, err
	}

	m.Loaded = true
	output.Debug("module loaded",
		"path", m.Path,
		"tags", len(m.Tags),
		"shapes", len(m.Shapes.All()),
		"funcs", len(m.Funcs),
	)
	return m, nil
}

// taggedDecl pairs a built definition with its declaration so values
// and generators can run after functions are registered.
type taggedDecl struct {
	def  *core.TagDef
	decl *ast.TagDecl
}

// defineTags materializes a module's tag declarations: new roots and
// subtrees in the base hierarchy, extension subtrees as view deltas.
// The returned pairs cover every definition in declaration pre-order.
func (in *Interp) defineTags(m *module.Module, decls []ast.TagDecl) ([]taggedDecl, error) {
	var pairs []taggedDecl
	for i := range decls {
		decl := &decls[i]
		if len(decl.Extends) > 0 {
			parent, err := in.reg.LookupTag(m, decl.ExtModule, decl.Extends)
			if err != nil {
				return nil, fmt.Errorf("module %s: extending tag: %w", m.Path, err)
			}
			def := in.buildTagSubtree(m, decl, &pairs)
			in.reg.Tags().Extend(parent, def)
			continue
		}
		def := in.buildTagSubtree(m, decl, &pairs)
		in.reg.Tags().Define(nil, def)
		m.Tags[def.Name] = def
	}
	return pairs, nil
}

// buildTagSubtree constructs a declaration's subtree; values are
// generated later, once functions are registered.
func (in *Interp) buildTagSubtree(m *module.Module, decl *ast.TagDecl, pairs *[]taggedDecl) *core.TagDef {
	def := &core.TagDef{
		Name:      decl.Name,
		Module:    m.Path,
		Private:   decl.Private,
		Generator: decl.Generator,
	}
	*pairs = append(*pairs, taggedDecl{def: def, decl: decl})
	for i := range decl.Children {
		child := in.buildTagSubtree(m, &decl.Children[i], pairs)
		in.reg.Tags().Define(def, child)
	}
	return def
}

// generateTagValues evaluates tag value expressions and generator
// calls under pure + disarm-bypass frames, so a tag value may itself
// be a failure-tagged structure without aborting the load.
func (in *Interp) generateTagValues(m *module.Module, pairs []taggedDecl) error {
	evalValue := func(e ast.Expr) (core.Value, error) {
		fr := in.frames.Push(core.PushOptions{
			Pure: true, DisarmBypass: true, Module: m, ModulePath: m.Path,
		})
		defer in.pop()
		fr.SetInput(core.Empty())
		return in.evalExpr(e, fr)
	}
	for _, p := range pairs {
		switch {
		case p.decl.Value != nil:
			v, err := evalValue(p.decl.Value)
			if err != nil {
				return fmt.Errorf("module %s: tag #%s value: %w", m.Path, p.def.PathString(), err)
			}
			p.def.Value = v
		case p.def.Generator != nil:
			fr := in.frames.Push(core.PushOptions{
				Pure: true, DisarmBypass: true, Module: m, ModulePath: m.Path,
			})
			fr.SetInput(core.Empty())
			v, err := in.call(p.def.Generator, core.Empty(), fr)
			in.pop()
			if err != nil {
				return fmt.Errorf("module %s: tag #%s generator: %w", m.Path, p.def.PathString(), err)
			}
			p.def.Value = v
		}
	}
	return nil
}

// defineShapes resolves and registers named shapes in order; forward
// references within a module are rejected (definitions materialize in
// order).
func (in *Interp) defineShapes(m *module.Module, decls []ast.ShapeDecl) error {
	for i := range decls {
		decl := &decls[i]
		s, err := in.resolveShape(m, &decl.Shape)
		if err != nil {
			return fmt.Errorf("module %s: shape %s: %w", m.Path, decl.Name, err)
		}
		s.Name = decl.Name
		s.Module = m.Path
		s.Private = decl.Private
		if err := m.Shapes.Define(s); err != nil {
			return fmt.Errorf("module %s: %w", m.Path, err)
		}
	}
	return nil
}

// resolveShape materializes a shape literal, resolving its field type
// references against the module's view.
func (in *Interp) resolveShape(m *module.Module, lit *ast.ShapeLit) (*shape.Shape, error) {
	s := &shape.Shape{AcceptExtras: lit.AcceptExtras}
	for i := range lit.Fields {
		fd := &lit.Fields[i]
		t, err := in.resolveType(m, fd.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", fd.Name, err)
		}
		s.Fields = append(s.Fields, shape.Field{
			Name:        fd.Name,
			Type:        t,
			Default:     fd.Default,
			Constraints: fd.Constraints,
			Array:       fd.Array,
		})
	}
	return s, nil
}

// resolveType maps an AST type reference onto resolved definitions.
func (in *Interp) resolveType(m *module.Module, ref ast.TypeRef) (shape.Type, error) {
	switch {
	case ref.IsZero():
		return shape.Type{}, nil
	case ref.Prim != "":
		return shape.Type{Prim: ref.Prim}, nil
	case len(ref.Tag) > 0:
		def, err := in.reg.LookupTag(m, ref.TagModule, ref.Tag)
		if err != nil {
			return shape.Type{}, err
		}
		return shape.Type{Tag: def}, nil
	case ref.Handle != "":
		def, err := in.reg.LookupHandle(m, ref.HandleModule, ref.Handle)
		if err != nil {
			return shape.Type{}, err
		}
		return shape.Type{Handle: def}, nil
	case ref.ShapeName != "":
		s, err := in.reg.LookupShape(m, ref.ShapeModule, ref.ShapeName)
		if err != nil {
			return shape.Type{}, err
		}
		return shape.Type{Shape: s}, nil
	default:
		s, err := in.resolveShape(m, ref.Inline)
		if err != nil {
			return shape.Type{}, err
		}
		return shape.Type{Shape: s}, nil
	}
}

// defineHandles registers handle definitions. A declared cleanup
// function is invoked with the handle's payload value when the handle
// is released. Hook errors raised when a frame pops surface as cleanup
// warnings; std.release reports them as a failure value.
func (in *Interp) defineHandles(m *module.Module, decls []ast.HandleDecl) {
	for i := range decls {
		decl := &decls[i]
		def := &core.HandleDef{
			Path:    m.Path + "." + decl.Name,
			Module:  m.Path,
			Private: decl.Private,
		}
		if cleanup := decl.Cleanup; cleanup != "" {
			def.Cleanup = func(payload any) error {
				input, ok := payload.(core.Value)
				if !ok {
					input = core.Empty()
				}
				fr := in.frames.Push(core.PushOptions{Module: m, ModulePath: m.Path, DisarmBypass: true})
				defer in.pop()
				fr.SetInput(input)
				res, err := in.call(&ast.Call{Name: cleanup}, input, fr)
				if err != nil {
					return err
				}
				if core.IsFailure(res) {
					kind, _ := core.FailureKind(res)
					return fmt.Errorf("cleanup %s failed: #%s", cleanup, kind.PathString())
				}
				return nil
			}
		}
		m.Handles[decl.Name] = def
	}
}

// defineFunc resolves an overload's shapes and adds it to its family.
func (in *Interp) defineFunc(m *module.Module, decl *ast.FuncDecl) error {
	o := &module.Overload{
		Body:     decl.Body,
		Expr:     decl.Expr,
		Pure:     decl.Pure,
		Strength: decl.Strength,
	}
	if decl.Input != nil {
		s, err := in.resolveShape(m, decl.Input)
		if err != nil {
			return fmt.Errorf("module %s: func %s input: %w", m.Path, decl.Name, err)
		}
		o.Input = s
	}
	if decl.Args != nil {
		s, err := in.resolveShape(m, decl.Args)
		if err != nil {
			return fmt.Errorf("module %s: func %s args: %w", m.Path, decl.Name, err)
		}
		o.Args = s
	}
	fam := m.Family(decl.Name)
	fam.Private = fam.Private || decl.Private
	fam.Add(o)
	return nil
}

// runModuleStmts evaluates module-level assignments once, at load,
// under a pure + disarm-bypass frame.
func (in *Interp) runModuleStmts(m *module.Module, stmts []ast.Stmt) error {
	if len(stmts) == 0 {
		return nil
	}
	fr := in.frames.Push(core.PushOptions{
		Pure: true, DisarmBypass: true, Module: m, ModulePath: m.Path,
	})
	defer in.pop()

	prev := in.moduleWrite
	in.moduleWrite = m
	defer func() { in.moduleWrite = prev }()

	for i := range stmts {
		st := &stmts[i]
		if st.Kind != ast.StmtModule && st.Kind != ast.StmtVar {
			return errors.NewValidationError(
				fmt.Sprintf("module %s: statement %d must assign a module slot or local", m.Path, i),
				m.Path, "only module and local assignments are allowed at module level")
		}
		fr.SetInput(core.Empty())
		v, err := in.evalExpr(st.Value, fr)
		if err != nil {
			return err
		}
		switch st.Kind {
		case ast.StmtVar:
			if err := fr.SetVar(st.Name, v); err != nil {
				return errors.NewValidationError(err.Error(), m.Path, "")
			}
		case ast.StmtModule:
			if err := m.SetScope(st.Name, v, false); err != nil {
				return errors.NewValidationError(err.Error(), m.Path, "")
			}
		}
	}
	return nil
}

// ensureEntry runs a module's !entry block once, on first external
// reference from an impure frame. It is the only writer of runtime
// module state.
func (in *Interp) ensureEntry(m *module.Module, fr *core.Frame) error {
	if m.EntryRan || m.Decl == nil || m.Decl.Entry == nil || fr.Pure {
		return nil
	}
	m.EntryRan = true

	prev := in.moduleWrite
	in.moduleWrite = m
	defer func() { in.moduleWrite = prev }()

	entry := in.frames.Push(core.PushOptions{Module: m, ModulePath: m.Path})
	defer in.pop()
	_, err := in.runBody(m.Decl.Entry.Body, entry, core.Empty())
	return err
}
