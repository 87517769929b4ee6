package shape

import (
	"fmt"

	"github.com/comp-lang/comp/internal/ast"
	"github.com/comp-lang/comp/internal/core"
)

// Morph transforms v into a value conforming to sh, producing the
// morphed value with its score or a failure value. strength is the
// defining function's assignment-strength marker and lands in the
// score's third position.
//
// Binding runs in three phases per target field — named match, then
// deepest tag/handle match, then positional consumption of the
// source's unnamed head — followed by lazy defaults for the variants
// that apply them. A nil shape accepts any value unchanged.
//
// The returned error is host-level only (a default or constraint that
// needed an evaluator with env == nil); language-level problems are
// failures in the Result.
func Morph(v core.Value, sh *Shape, variant Variant, strength ast.Strength, env Env, frame *core.Frame) (Result, error) {
	score := Score{Strength: int(strength)}
	if sh == nil {
		return Result{Value: v, Score: score}, nil
	}

	src := core.Promote(v)
	fields := src.Fields()
	consumed := make([]bool, len(fields))

	n := len(sh.Fields)
	bound := make([]core.Value, n)
	isBound := make([]bool, n)
	releasedHit := make([]bool, n)

	// Phase 1: named match.
	for ti := range sh.Fields {
		tf := &sh.Fields[ti]
		if tf.Name == "" {
			continue
		}
		for si, f := range fields {
			if consumed[si] || f.Name != tf.Name {
				continue
			}
			val, fail, err := bindValue(f.Value, tf.Type, variant, strength, env, frame)
			if err != nil {
				return Result{}, err
			}
			if fail != nil {
				return Result{Failure: fail}, nil
			}
			bound[ti], isBound[ti], consumed[si] = val, true, true
			score.Named++
			score.Depth += constraintDepth(tf.Type, val)
			break
		}
	}

	// Phase 2: tag/handle family match, deepest value wins.
	for ti := range sh.Fields {
		tf := &sh.Fields[ti]
		if isBound[ti] || (tf.Type.Tag == nil && tf.Type.Handle == nil) {
			continue
		}
		best, bestDepth := -1, -1
		for si, f := range fields {
			if consumed[si] {
				continue
			}
			d, ok, released := familyDepth(f.Value, tf.Type)
			if released {
				releasedHit[ti] = true
				continue
			}
			if ok && d > bestDepth {
				best, bestDepth = si, d
			}
		}
		if best >= 0 {
			bound[ti], isBound[ti], consumed[best] = fields[best].Value, true, true
			score.Depth += bestDepth
		}
	}

	// Phase 3: positional — unbound target fields consume the head of
	// the source's unnamed fields in order.
	nextUnnamed := 0
	takeUnnamed := func() (int, bool) {
		for ; nextUnnamed < len(fields); nextUnnamed++ {
			if fields[nextUnnamed].Name == "" && !consumed[nextUnnamed] {
				si := nextUnnamed
				nextUnnamed++
				return si, true
			}
		}
		return 0, false
	}
	for ti := range sh.Fields {
		tf := &sh.Fields[ti]
		if isBound[ti] {
			continue
		}
		if tf.Array != 0 {
			var elems []core.Field
			for tf.Array < 0 || len(elems) < tf.Array {
				si, ok := takeUnnamed()
				if !ok {
					break
				}
				val, fail, err := bindValue(fields[si].Value, tf.Type, variant, strength, env, frame)
				if err != nil {
					return Result{}, err
				}
				if fail != nil {
					return Result{Failure: fail}, nil
				}
				consumed[si] = true
				elems = append(elems, core.Field{Value: val})
				score.Positional++
			}
			if len(elems) > 0 {
				bound[ti], isBound[ti] = core.NewStructure(elems...), true
			}
			continue
		}
		si, ok := takeUnnamed()
		if !ok {
			continue
		}
		val, fail, err := bindValue(fields[si].Value, tf.Type, variant, strength, env, frame)
		if err != nil {
			return Result{}, err
		}
		if fail != nil {
			return Result{Failure: fail}, nil
		}
		bound[ti], isBound[ti], consumed[si] = val, true, true
		score.Positional++
	}

	// Phase 4: defaults, lazily evaluated in the surrounding scope
	// chain; then required-field enforcement.
	for ti := range sh.Fields {
		tf := &sh.Fields[ti]
		if isBound[ti] {
			continue
		}
		if tf.Default != nil && variant.appliesDefaults() {
			if env == nil {
				return Result{}, fmt.Errorf("shape field %q needs an evaluator for its default", tf.Name)
			}
			val, err := env.EvalDefault(tf.Default, frame)
			if err != nil {
				return Result{}, err
			}
			if fs, isFail := val.(*core.Structure); isFail && core.IsFailure(fs) {
				return Result{Failure: fs}, nil
			}
			bound[ti], isBound[ti] = val, true
			continue
		}
		if variant.toleratesMissing() {
			continue
		}
		if releasedHit[ti] {
			return Result{Failure: core.NewFailure(core.FailReleased,
				fmt.Sprintf("field %q only matched a released handle", tf.Name))}, nil
		}
		return Result{Failure: core.NewFailure(core.FailMissing,
			fmt.Sprintf("required field %q is unbound and has no default", tf.Name))}, nil
	}

	// Extras.
	var extras []core.Field
	for si, f := range fields {
		if !consumed[si] {
			extras = append(extras, f)
		}
	}
	if len(extras) > 0 && !variant.allowsExtras() {
		return Result{Failure: core.NewFailure(core.FailShape,
			fmt.Sprintf("%d extra field(s) rejected under strong morph", len(extras)))}, nil
	}

	// Constraints run after binding; a failure result propagates, a
	// non-true result is a shape mismatch.
	for ti := range sh.Fields {
		tf := &sh.Fields[ti]
		if !isBound[ti] || len(tf.Constraints) == 0 {
			continue
		}
		for _, c := range tf.Constraints {
			if env == nil {
				return Result{}, fmt.Errorf("shape field %q needs an evaluator for its constraints", tf.Name)
			}
			res, err := env.EvalConstraint(c, bound[ti], frame)
			if err != nil {
				return Result{}, err
			}
			if core.IsFailure(res) {
				return Result{Failure: res.(*core.Structure)}, nil
			}
			if !truthy(res) {
				return Result{Failure: core.NewFailure(core.FailShape,
					fmt.Sprintf("constraint %s rejected field %q", c.Name, tf.Name))}, nil
			}
		}
	}

	// Assemble: shape fields in shape order, extras preserved after.
	out := make([]core.Field, 0, n+len(extras))
	for ti := range sh.Fields {
		if isBound[ti] {
			out = append(out, core.Field{Name: sh.Fields[ti].Name, Value: bound[ti]})
		}
	}
	out = append(out, extras...)
	return Result{Value: core.NewStructure(out...), Score: score}, nil
}

// bindValue checks (and for nested shapes, recursively morphs) a
// source value against a field type. Returns the possibly-replaced
// value, or a failure, or a host error.
func bindValue(v core.Value, t Type, variant Variant, strength ast.Strength, env Env, frame *core.Frame) (core.Value, *core.Structure, error) {
	switch {
	case t.IsZero() || t.Prim == "any":
		return v, nil, nil
	case t.Prim != "":
		if primMatches(v, t.Prim) {
			return v, nil, nil
		}
		return nil, core.NewFailure(core.FailShape,
			fmt.Sprintf("value is not a %s", t.Prim)), nil
	case t.Tag != nil:
		if tr, ok := v.(core.TagRef); ok && tr.Def.DescendsFrom(t.Tag) {
			return v, nil, nil
		}
		return nil, core.NewFailure(core.FailShape,
			fmt.Sprintf("value is not a #%s tag", t.Tag.PathString())), nil
	case t.Handle != nil:
		hr, ok := v.(core.HandleRef)
		if !ok || hr.H.Def != t.Handle {
			return nil, core.NewFailure(core.FailShape,
				fmt.Sprintf("value is not a %s handle", t.Handle.Path)), nil
		}
		if hr.H.Released() {
			return nil, core.NewFailure(core.FailReleased,
				fmt.Sprintf("handle %s is released", t.Handle.Path)), nil
		}
		return v, nil, nil
	default:
		res, err := Morph(v, t.Shape, variant, strength, env, frame)
		if err != nil {
			return nil, nil, err
		}
		if !res.Ok() {
			return nil, res.Failure, nil
		}
		return res.Value, nil, nil
	}
}

// familyDepth reports whether v belongs to the field type's tag or
// handle family, and how specific the match is. released flags a
// handle that would have matched but was already released.
func familyDepth(v core.Value, t Type) (depth int, ok, released bool) {
	if t.Tag != nil {
		if tr, isTag := v.(core.TagRef); isTag && tr.Def.DescendsFrom(t.Tag) {
			return tr.Def.Depth(), true, false
		}
		return 0, false, false
	}
	if t.Handle != nil {
		if hr, isHandle := v.(core.HandleRef); isHandle && hr.H.Def == t.Handle {
			if hr.H.Released() {
				return 0, false, true
			}
			return 1, true, false
		}
	}
	return 0, false, false
}

// constraintDepth contributes tag/handle specificity for a named-phase
// match to the combined depth.
func constraintDepth(t Type, v core.Value) int {
	d, ok, _ := familyDepth(v, t)
	if ok {
		return d
	}
	return 0
}

func primMatches(v core.Value, prim string) bool {
	switch prim {
	case "number":
		_, ok := v.(core.Number)
		return ok
	case "string":
		_, ok := v.(core.String)
		return ok
	case "bool":
		_, ok := v.(core.Bool)
		return ok
	case "tag":
		_, ok := v.(core.TagRef)
		return ok
	case "block":
		_, ok := v.(*core.Block)
		return ok
	case "func":
		_, ok := v.(core.FuncRef)
		return ok
	case "struct":
		_, ok := v.(*core.Structure)
		return ok
	default:
		return false
	}
}

func truthy(v core.Value) bool {
	switch b := v.(type) {
	case core.Bool:
		return bool(b)
	case core.TagRef:
		return b.Def.Resolve() == core.TagTrue
	default:
		return false
	}
}
