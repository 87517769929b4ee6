// Package shape implements structural shapes and the morph engine:
// validation of values against shapes, three-phase field binding, and
// the lexicographic scoring that drives overload dispatch.
package shape

import (
	"fmt"

	"github.com/comp-lang/comp/internal/ast"
	"github.com/comp-lang/comp/internal/core"
)

// Type is a resolved field type constraint. At most one member is set;
// the zero Type accepts anything.
type Type struct {
	// Prim accepts one primitive kind: "number", "string", "bool",
	// "tag", "block", "func", "struct", "any".
	Prim string

	// Tag accepts tag references descending from this definition.
	Tag *core.TagDef

	// Handle accepts live (unreleased) handles of this definition.
	Handle *core.HandleDef

	// Shape recursively morphs structures against another shape.
	Shape *Shape
}

// IsZero reports whether the type accepts anything.
func (t Type) IsZero() bool {
	return t.Prim == "" && t.Tag == nil && t.Handle == nil && t.Shape == nil
}

// Field is one field of a shape.
type Field struct {
	Name string
	Type Type

	// Default is evaluated lazily in the surrounding scope chain when
	// the field stays unbound under a defaults-applying variant. A nil
	// Default makes the field required.
	Default ast.Expr

	// Constraints are pure boolean-returning calls evaluated after
	// type binding; the bound value is the call's input.
	Constraints []*ast.Call

	// Array marks a field consuming repeated positional values:
	// 0 = scalar, -1 = unbounded, n > 0 = at most n.
	Array int
}

// Shape is an ordered field sequence plus the accept-extras flag.
type Shape struct {
	Name         string
	Module       string
	Private      bool
	Fields       []Field
	AcceptExtras bool
}

// Registry holds a module's named shapes.
type Registry struct {
	byName map[string]*Shape
	order  []*Shape
}

// NewRegistry returns an empty shape registry.
func NewRegistry() *Registry {
	return &Registry{byName: map[string]*Shape{}}
}

// Define registers a named shape. Redefinition is rejected; shape
// definitions are immutable after load.
func (r *Registry) Define(s *Shape) error {
	if _, ok := r.byName[s.Name]; ok {
		return fmt.Errorf("shape %q already defined", s.Name)
	}
	r.byName[s.Name] = s
	r.order = append(r.order, s)
	return nil
}

// Lookup returns the named shape.
func (r *Registry) Lookup(name string) (*Shape, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// All returns shapes in definition order.
func (r *Registry) All() []*Shape { return r.order }

// Variant selects the morph behavior:
//
//	            extras      missing     defaults
//	Normal      preserved   failure     applied
//	Strong      failure     failure     applied
//	Weak        preserved   tolerated   not applied
//	Extras      preserved   failure     applied
type Variant int

// Morph variants.
const (
	Normal Variant = iota
	Strong
	Weak
	Extras
)

// FromAST maps the AST morph variant spelling.
func FromAST(v ast.MorphVariant) Variant {
	switch v {
	case ast.MorphStrong:
		return Strong
	case ast.MorphWeak:
		return Weak
	case ast.MorphExtras:
		return Extras
	default:
		return Normal
	}
}

// String returns the variant's document spelling.
func (v Variant) String() string {
	switch v {
	case Strong:
		return "strong"
	case Weak:
		return "weak"
	case Extras:
		return "extras"
	default:
		return "normal"
	}
}

func (v Variant) appliesDefaults() bool { return v != Weak }
func (v Variant) toleratesMissing() bool { return v == Weak }
func (v Variant) allowsExtras() bool    { return v != Strong }

// Env evaluates lazy defaults and constraint calls for the morph
// engine. Implemented by the evaluator; a nil Env rejects shapes that
// need either.
type Env interface {
	// EvalDefault evaluates a field default in the frame's scope chain.
	EvalDefault(e ast.Expr, f *core.Frame) (core.Value, error)

	// EvalConstraint invokes a constraint call with the bound value as
	// input and returns the call's result.
	EvalConstraint(c *ast.Call, v core.Value, f *core.Frame) (core.Value, error)
}

// Score is the morph score tuple, compared lexicographically for
// dispatch: named matches, combined tag/handle depth, assignment
// strength, positional matches.
type Score struct {
	Named      int
	Depth      int
	Strength   int
	Positional int
}

// Compare returns -1, 0, or 1 ordering s against o.
func (s Score) Compare(o Score) int {
	for _, d := range [4]int{
		s.Named - o.Named,
		s.Depth - o.Depth,
		s.Strength - o.Strength,
		s.Positional - o.Positional,
	} {
		if d < 0 {
			return -1
		}
		if d > 0 {
			return 1
		}
	}
	return 0
}

// String renders the tuple for debug logging.
func (s Score) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", s.Named, s.Depth, s.Strength, s.Positional)
}

// Result is a morph outcome: either Value with its Score, or Failure.
type Result struct {
	Value   core.Value
	Score   Score
	Failure *core.Structure
}

// Ok reports whether the morph succeeded.
func (r Result) Ok() bool { return r.Failure == nil }
