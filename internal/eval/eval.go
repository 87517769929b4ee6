package eval

import (
	"fmt"

	"github.com/comp-lang/comp/internal/ast"
	"github.com/comp-lang/comp/internal/core"
	"github.com/comp-lang/comp/internal/errors"
	"github.com/comp-lang/comp/internal/module"
	"github.com/comp-lang/comp/internal/shape"
)

// evalExpr evaluates one expression in a frame. Language-level
// problems come back as failure values; the error return is reserved
// for host faults (unregistered modules, malformed trees).
func (in *Interp) evalExpr(e ast.Expr, fr *core.Frame) (core.Value, error) {
	switch n := e.(type) {
	case *ast.NumberLit:
		return core.Num(n.Value), nil
	case *ast.StringLit:
		return core.String(n.Value), nil
	case *ast.BoolLit:
		return core.Bool(n.Value), nil
	case *ast.TagLit:
		return in.evalTagLit(n, fr)
	case *ast.Ident:
		return in.evalIdent(n, fr)
	case *ast.Access:
		return in.evalAccess(n, fr)
	case *ast.StructLit:
		return in.evalStructLit(n, fr)
	case *ast.Pipeline:
		return in.evalPipeline(n, fr)
	case *ast.Call:
		return in.call(n, fr.Input(), fr)
	case *ast.Block:
		return core.NewBlock(n.Body, fr.Snapshot(), fr.Pure), nil
	case *ast.Morph:
		return in.evalMorph(n, fr.Input(), fr)
	case *ast.Disarm:
		return in.evalDisarm(n, fr)
	case *ast.Placeholder:
		return core.NewFailure(core.FailTodo, "placeholder expression evaluated"), nil
	case *ast.FuncRef:
		return in.evalFuncRef(n, fr)
	case *ast.Fallback:
		return nil, errors.NewValidationError(
			"fallback operator outside a pipeline", "", "")
	case *ast.Spread:
		return nil, errors.NewValidationError(
			"spread outside a structure literal", "", "")
	default:
		return nil, errors.NewValidationError(
			fmt.Sprintf("unknown expression kind %T", e), "", "")
	}
}

func (in *Interp) evalTagLit(n *ast.TagLit, fr *core.Frame) (core.Value, error) {
	m := in.currentModule(fr)
	def, err := in.reg.LookupTag(m, n.Module, n.Path)
	if err != nil {
		return core.NewFailure(core.FailUser, err.Error()), nil
	}
	return core.TagRef{Def: def}, nil
}

func (in *Interp) evalIdent(n *ast.Ident, fr *core.Frame) (core.Value, error) {
	switch n.Scope {
	case ast.ScopeInput:
		return fr.Input(), nil
	case ast.ScopePipe:
		return fr.Pipe().Build(), nil
	case ast.ScopeUnqualified:
		for _, scope := range []ast.ScopeKind{ast.ScopeVariable, ast.ScopeArgument, ast.ScopeContext} {
			if v, ok := fr.LookupScoped(scope, n.Name); ok {
				return v, nil
			}
		}
		if fr.Module != nil {
			if v, ok := fr.Module.ModuleGet(n.Name); ok {
				if fail, bad := in.pureModuleRead(n.Name, fr); bad {
					return fail, nil
				}
				return v, nil
			}
		}
		return core.NewFailure(core.FailUser,
			fmt.Sprintf("name %q is not bound", n.Name)), nil
	case ast.ScopeModule:
		if fail, bad := in.pureModuleRead(n.Name, fr); bad {
			return fail, nil
		}
		fallthrough
	default:
		if v, ok := fr.LookupScoped(n.Scope, n.Name); ok {
			return v, nil
		}
		return core.NewFailure(core.FailUser,
			fmt.Sprintf("name %q is not bound in %s scope", n.Name, n.Scope)), nil
	}
}

// pureModuleRead rejects reads of runtime module state from pure
// frames. Load-time constants stay visible.
func (in *Interp) pureModuleRead(name string, fr *core.Frame) (core.Value, bool) {
	if !fr.Pure || fr.Module == nil {
		return nil, false
	}
	if fr.Module.ModuleRuntime(name) {
		return core.NewFailure(core.FailPurity,
			fmt.Sprintf("module slot %q holds runtime state, unreadable from a pure frame", name)), true
	}
	return nil, false
}

func (in *Interp) evalAccess(n *ast.Access, fr *core.Frame) (core.Value, error) {
	base, err := in.evalExpr(n.Base, fr)
	if err != nil {
		return nil, err
	}
	if core.IsFailure(base) && !fr.DisarmBypass {
		return base, nil
	}
	s, ok := base.(*core.Structure)
	if !ok {
		s = core.Promote(base)
	}
	if n.Name != "" {
		if v, found := s.Get(n.Name); found {
			return v, nil
		}
		return core.NewFailure(core.FailMissing,
			fmt.Sprintf("no field named %q", n.Name)), nil
	}
	if v, found := s.At(n.Index); found {
		return v, nil
	}
	return core.NewFailure(core.FailMissing,
		fmt.Sprintf("no unnamed field at index %d", n.Index)), nil
}

// evalStructLit builds a structure literal. Lazy literals defer each
// field into a block capturing the current frame. A spread splices the
// spread value's fields with the spread's strength.
func (in *Interp) evalStructLit(n *ast.StructLit, fr *core.Frame) (core.Value, error) {
	b := core.NewBuilder()
	for i := range n.Fields {
		f := &n.Fields[i]
		if sp, ok := f.Value.(*ast.Spread); ok {
			v, err := in.evalExpr(sp.Value, fr)
			if err != nil {
				return nil, err
			}
			if core.IsFailure(v) && !fr.DisarmBypass {
				return v, nil
			}
			b.Spread(core.Promote(v), sp.Strength)
			continue
		}
		if n.Lazy {
			stmt := ast.Stmt{Kind: ast.StmtBare, Value: f.Value}
			blk := core.NewBlock([]ast.Stmt{stmt}, fr.Snapshot(), fr.Pure)
			if f.Name != "" {
				b.Set(f.Name, blk, f.Strength)
			} else {
				b.Append(blk)
			}
			continue
		}
		v, err := in.evalExpr(f.Value, fr)
		if err != nil {
			return nil, err
		}
		if f.Name != "" {
			b.Set(f.Name, v, f.Strength)
		} else {
			b.Append(v)
		}
	}
	return b.Build(), nil
}

// evalPipeline drives a pipeline: seed (or the empty structure), then
// operations strictly left to right. A failing value skips remaining
// operations until a fallback handler, which receives the failure as
// its input under disarm bypass. A disarm operation suppresses failure
// checks for the rest of the pipeline.
func (in *Interp) evalPipeline(p *ast.Pipeline, fr *core.Frame) (core.Value, error) {
	var v core.Value = core.Empty()
	if p.Seed != nil {
		seed, err := in.evalExpr(p.Seed, fr)
		if err != nil {
			return nil, err
		}
		v = seed
	}

	disarmed := fr.DisarmBypass
	for _, op := range p.Ops {
		failed := !disarmed && core.IsFailure(v)
		if fb, ok := op.(*ast.Fallback); ok {
			if !failed {
				continue
			}
			res, err := in.runFallback(fb, v, fr)
			if err != nil {
				return nil, err
			}
			v = res
			continue
		}
		if failed {
			continue
		}
		if d, ok := op.(*ast.Disarm); ok {
			res, err := in.evalOp(d.Value, v, fr, true)
			if err != nil {
				return nil, err
			}
			v = res
			disarmed = true
			continue
		}
		res, err := in.evalOp(op, v, fr, disarmed)
		if err != nil {
			return nil, err
		}
		v = res
	}
	return v, nil
}

// evalOp applies one pipeline operation to the current value. The
// result is registered with the surrounding frame before the
// operation frame pops, so handles riding the pipeline stay alive.
func (in *Interp) evalOp(op ast.Expr, v core.Value, fr *core.Frame, bypass bool) (res core.Value, err error) {
	opFrame := in.frames.Push(core.PushOptions{DisarmBypass: bypass})
	defer func() {
		if res != nil {
			fr.Register(res)
		}
		in.pop()
	}()
	opFrame.SetInput(v)
	switch n := op.(type) {
	case *ast.Call:
		return in.call(n, v, opFrame)
	case *ast.Morph:
		return in.evalMorph(n, v, opFrame)
	default:
		return in.evalExpr(op, opFrame)
	}
}

// runFallback invokes a fallback handler with the failure as input.
// The handler frame carries disarm bypass so the handler may read the
// failure's fields without re-tripping propagation.
func (in *Interp) runFallback(fb *ast.Fallback, failure core.Value, fr *core.Frame) (res core.Value, err error) {
	hf := in.frames.Push(core.PushOptions{DisarmBypass: true})
	defer func() {
		if res != nil {
			fr.Register(res)
		}
		in.pop()
	}()
	hf.SetInput(failure)
	switch h := fb.Handler.(type) {
	case *ast.Call:
		return in.call(h, failure, hf)
	case *ast.Block:
		blk := core.NewBlock(h.Body, hf.Snapshot(), hf.Pure)
		return in.InvokeBlock(blk, failure)
	default:
		return in.evalExpr(fb.Handler, hf)
	}
}

func (in *Interp) evalMorph(n *ast.Morph, v core.Value, fr *core.Frame) (core.Value, error) {
	m := in.currentModule(fr)
	t, err := in.resolveType(m, n.Shape)
	if err != nil {
		return core.NewFailure(core.FailUser, err.Error()), nil
	}
	target := t.Shape
	if target == nil {
		// Non-shape targets morph through a single-field wrapper.
		target = &shape.Shape{Fields: []shape.Field{{Type: t}}}
		res, merr := shape.Morph(v, target, shape.FromAST(n.Variant), ast.Normal, in, fr)
		if merr != nil {
			return nil, merr
		}
		if !res.Ok() {
			return res.Failure, nil
		}
		if inner, ok := res.Value.(*core.Structure).At(0); ok {
			return inner, nil
		}
		return res.Value, nil
	}
	res, merr := shape.Morph(v, target, shape.FromAST(n.Variant), ast.Normal, in, fr)
	if merr != nil {
		return nil, merr
	}
	if !res.Ok() {
		return res.Failure, nil
	}
	return res.Value, nil
}

func (in *Interp) evalDisarm(n *ast.Disarm, fr *core.Frame) (res core.Value, err error) {
	df := in.frames.Push(core.PushOptions{DisarmBypass: true})
	defer func() {
		if res != nil {
			fr.Register(res)
		}
		in.pop()
	}()
	df.SetInput(fr.Input())
	return in.evalExpr(n.Value, df)
}

func (in *Interp) evalFuncRef(n *ast.FuncRef, fr *core.Frame) (core.Value, error) {
	m := in.currentModule(fr)
	fam, err := in.reg.LookupFunc(m, n.Module, n.Name)
	if err != nil {
		return core.NewFailure(core.FailUser, err.Error()), nil
	}
	return core.FuncRef{Family: fam}, nil
}

// runBody evaluates a statement sequence. Every statement sees input
// as its initial value; a statement whose result is a failure (and the
// frame is not disarmed) aborts the rest and becomes the body's
// result. Cancellation is checked at statement boundaries.
func (in *Interp) runBody(body []ast.Stmt, fr *core.Frame, input core.Value) (core.Value, error) {
	for i := range body {
		st := &body[i]
		if fail, done := in.cancelled(); done {
			return fail, nil
		}
		fr.SetInput(input)
		v, err := in.evalExpr(st.Value, fr)
		if err != nil {
			return nil, err
		}
		if core.IsFailure(v) && !fr.DisarmBypass {
			return v, nil
		}
		switch st.Kind {
		case ast.StmtOut:
			fr.PipeSet(st.Name, v, st.Strength)
		case ast.StmtAppend, ast.StmtBare:
			fr.PipeAppend(v)
		case ast.StmtVar:
			if err := fr.SetVar(st.Name, v); err != nil {
				return core.NewFailure(core.FailUser, err.Error()), nil
			}
		case ast.StmtContext:
			fr.SetCtx(st.Name, v)
		case ast.StmtModule:
			if fail := in.writeModuleSlot(st.Name, v, fr); fail != nil {
				return fail, nil
			}
		}
	}
	return fr.Pipe().Build(), nil
}

// writeModuleSlot stores runtime module state. Legal only while module
// statements or !entry run; anywhere else it is a purity violation.
func (in *Interp) writeModuleSlot(name string, v core.Value, fr *core.Frame) core.Value {
	m := in.moduleWrite
	if m == nil {
		return core.NewFailure(core.FailPurity,
			fmt.Sprintf("module slot %q may only be written at load or in !entry", name))
	}
	if err := m.SetScope(name, v, m.Loaded); err != nil {
		return core.NewFailure(core.FailUser, err.Error())
	}
	fr.Register(v)
	return nil
}

// InvokeBlock runs a block against its captured scope chain. The new
// frame's purity is the captured flag; it is not weakened when invoked
// from an impure caller, and a pure capture stays pure.
func (in *Interp) InvokeBlock(b *core.Block, input core.Value) (core.Value, error) {
	fr := in.frames.Push(core.PushOptions{Captured: b.Captured})
	defer in.pop()
	result, err := in.runBody(b.Body, fr, input)
	if err != nil {
		return nil, err
	}
	// Single bare statement bodies collapse to their value.
	if s, ok := result.(*core.Structure); ok && len(b.Body) == 1 && b.Body[0].Kind == ast.StmtBare {
		if v, found := s.At(0); found && s.Len() == 1 {
			return v, nil
		}
	}
	if caller := in.frames.Current(); caller != nil {
		caller.Register(result)
	}
	return result, nil
}

// currentModule resolves the frame's module view.
func (in *Interp) currentModule(fr *core.Frame) *module.Module {
	if fr != nil && fr.ModulePath != "" {
		if m, ok := in.reg.Resolve(fr.ModulePath); ok {
			return m
		}
	}
	return nil
}

// EvalDefault implements shape.Env: field defaults evaluate lazily in
// the surrounding scope chain.
func (in *Interp) EvalDefault(e ast.Expr, fr *core.Frame) (core.Value, error) {
	if fr == nil {
		fr = in.frames.Current()
	}
	return in.evalExpr(e, fr)
}

// EvalConstraint implements shape.Env: a constraint call runs with the
// bound value as its input.
func (in *Interp) EvalConstraint(c *ast.Call, v core.Value, fr *core.Frame) (core.Value, error) {
	cf := in.frames.Push(core.PushOptions{Pure: true})
	defer in.pop()
	cf.SetInput(v)
	return in.call(c, v, cf)
}
