package eval

import (
	"fmt"

	"github.com/comp-lang/comp/internal/ast"
	"github.com/comp-lang/comp/internal/core"
	"github.com/comp-lang/comp/internal/errors"
	"github.com/comp-lang/comp/internal/module"
	"github.com/comp-lang/comp/internal/output"
	"github.com/comp-lang/comp/internal/shape"
)

// call dispatches a function call: candidate collection, input and
// argument morphing, lexicographic score maximization, then invocation
// in a fresh frame. No morphing candidate yields a dispatch failure.
func (in *Interp) call(c *ast.Call, input core.Value, fr *core.Frame) (core.Value, error) {
	from := in.currentModule(fr)
	if from == nil {
		return nil, errors.NewValidationError(
			fmt.Sprintf("call to %s outside any module view", c.Name), "", "")
	}

	fam, fail := in.resolveFamily(c, input, from)
	if fail != nil {
		return fail, nil
	}

	target, _ := in.reg.Resolve(fam.Module)
	if target != nil && target != from {
		if err := in.ensureEntry(target, fr); err != nil {
			return nil, err
		}
	}

	argsVal := core.Value(core.Empty())
	if c.Args != nil {
		v, err := in.evalExpr(c.Args, fr)
		if err != nil {
			return nil, err
		}
		if core.IsFailure(v) && !fr.DisarmBypass {
			return v, nil
		}
		argsVal = v
	}
	args := core.Promote(argsVal)

	best, morphedIn, morphedArgs, err := in.selectOverload(fam, input, args, fr)
	if err != nil {
		return nil, err
	}
	if best == nil {
		return core.NewFailure(core.FailDispatch,
			fmt.Sprintf("no overload of %s.%s morphs the call", fam.Module, fam.Name)), nil
	}
	if fr.Pure && !best.Pure {
		return core.NewFailure(core.FailPurity,
			fmt.Sprintf("pure frame cannot call impure function %s.%s", fam.Module, fam.Name)), nil
	}

	return in.invoke(best, target, morphedIn, morphedArgs, fr)
}

// resolveFamily collects the candidate family: by name through the
// caller's imports, or — under polymorphic tag dispatch — from the
// module that defines the tag carried by the named input field.
func (in *Interp) resolveFamily(c *ast.Call, input core.Value, from *module.Module) (*module.Family, core.Value) {
	if c.Dispatch == "" {
		fam, err := in.reg.LookupFunc(from, c.Module, c.Name)
		if err != nil {
			return nil, core.NewFailure(core.FailDispatch, err.Error())
		}
		return fam, nil
	}

	fieldVal, ok := core.Promote(input).Get(c.Dispatch)
	if !ok {
		return nil, core.NewFailure(core.FailDispatch,
			fmt.Sprintf("dispatch field %q is absent from the input", c.Dispatch))
	}
	tag, ok := fieldVal.(core.TagRef)
	if !ok {
		return nil, core.NewFailure(core.FailDispatch,
			fmt.Sprintf("dispatch field %q does not hold a tag", c.Dispatch))
	}
	home, ok := in.reg.Resolve(tag.Def.Resolve().Module)
	if !ok {
		return nil, core.NewFailure(core.FailDispatch,
			fmt.Sprintf("tag #%s has no loaded defining module", tag.Def.PathString()))
	}
	fam, found := home.Funcs[c.Name]
	if !found || (fam.Private && home != from) {
		return nil, core.NewFailure(core.FailDispatch,
			fmt.Sprintf("function %s not dispatchable in module %s", c.Name, home.Path))
	}
	return fam, nil
}

// selectOverload scores every candidate and keeps the lexicographic
// maximum. Ties fall to the earlier definition (Add order), so the
// chosen candidate's score is the strict maximum among later ones.
func (in *Interp) selectOverload(fam *module.Family, input core.Value, args *core.Structure, fr *core.Frame) (*module.Overload, core.Value, *core.Structure, error) {
	var (
		best        *module.Overload
		bestScore   shape.Score
		morphedIn   core.Value
		morphedArgs *core.Structure
	)
	for _, o := range fam.Overloads {
		ri, err := shape.Morph(input, o.Input, shape.Normal, o.Strength, in, fr)
		if err != nil {
			return nil, nil, nil, err
		}
		if !ri.Ok() {
			continue
		}
		ra, err := shape.Morph(args, o.Args, shape.Normal, o.Strength, in, fr)
		if err != nil {
			return nil, nil, nil, err
		}
		if !ra.Ok() {
			continue
		}
		score := shape.Score{
			Named:      ri.Score.Named + ra.Score.Named,
			Depth:      ri.Score.Depth + ra.Score.Depth,
			Strength:   int(o.Strength),
			Positional: ri.Score.Positional + ra.Score.Positional,
		}
		if best == nil || score.Compare(bestScore) > 0 {
			best = o
			bestScore = score
			morphedIn = ri.Value
			morphedArgs = core.Promote(ra.Value)
		}
	}
	if best != nil {
		output.Debug("dispatch",
			"func", fam.Module+"."+fam.Name,
			"overload", best.Order,
			"score", bestScore.String(),
		)
	}
	return best, morphedIn, morphedArgs, nil
}

// invoke runs the chosen overload in a fresh frame with the morphed
// input and argument values installed. The result registers with the
// caller's frame before the callee frame pops, so handles riding the
// return value survive the callee's cleanup.
func (in *Interp) invoke(o *module.Overload, target *module.Module, input core.Value, args *core.Structure, caller *core.Frame) (res core.Value, err error) {
	opts := core.PushOptions{Pure: o.Pure}
	if target != nil {
		opts.Module = target
		opts.ModulePath = target.Path
	}
	callFrame := in.frames.Push(opts)
	defer func() {
		if res != nil {
			caller.Register(res)
		}
		in.pop()
	}()
	callFrame.SetInput(input)
	callFrame.SetArgs(args)

	switch {
	case o.Native != nil:
		return o.Native(input, args, callFrame)
	case o.Expr != nil:
		return in.evalExpr(o.Expr, callFrame)
	default:
		return in.runBody(o.Body, callFrame, input)
	}
}
