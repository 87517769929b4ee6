// Package core implements the Comp value universe: the immutable value
// union, the tag hierarchy, handles with frame-based lifecycle, and the
// frame/scope machinery the evaluator runs on.
package core

import (
	"math"
	"sync/atomic"

	"github.com/comp-lang/comp/internal/ast"
)

// Value is the sealed union of runtime values. All variants are
// immutable; operations produce new values.
//
// Every value exposes its cached handle set, computed once at
// construction. Leaves other than HandleRef carry none.
type Value interface {
	value()

	// Handles returns the handles reachable from this value. The
	// returned slice is shared and must not be mutated.
	Handles() []*Handle
}

// Number is a 64-bit float value. NaN payloads are normalized at
// construction so equality and ordering stay total.
type Number float64

// Num constructs a Number, canonicalizing NaN and negative zero.
func Num(f float64) Number {
	if math.IsNaN(f) {
		return Number(math.NaN())
	}
	if f == 0 {
		return Number(0)
	}
	return Number(f)
}

// String is an immutable UTF-8 string value.
type String string

// Bool is a boolean value. The builtin tags #true and #false carry the
// two Bool values.
type Bool bool

// TagRef references a tag definition.
type TagRef struct {
	Def *TagDef
}

// HandleRef wraps a live handle as a value.
type HandleRef struct {
	H *Handle
}

// FuncFamily is implemented by the module registry's overload families.
// core only needs identity; the evaluator resolves the concrete type.
type FuncFamily interface {
	FamilyName() string
	FamilyModule() string
}

// FuncRef references a named, overloaded function family.
type FuncRef struct {
	Family FuncFamily
}

var blockSeq atomic.Int64

// Block is a deferred statement list with its captured scope snapshot
// and captured purity. Invoking a block runs its body against the
// snapshot, not the invoker's frame; Pure is the captured flag and is
// never weakened by an impure invoker.
type Block struct {
	Body     []ast.Stmt
	Captured *Snapshot
	Pure     bool

	seq int64
}

// NewBlock captures a block over a scope snapshot.
func NewBlock(body []ast.Stmt, captured *Snapshot, pure bool) *Block {
	return &Block{Body: body, Captured: captured, Pure: pure, seq: blockSeq.Add(1)}
}

func (Number) value()     {}
func (String) value()     {}
func (Bool) value()       {}
func (TagRef) value()     {}
func (HandleRef) value()  {}
func (FuncRef) value()    {}
func (*Block) value()     {}
func (*Structure) value() {}

func (Number) Handles() []*Handle  { return nil }
func (String) Handles() []*Handle  { return nil }
func (Bool) Handles() []*Handle    { return nil }
func (TagRef) Handles() []*Handle  { return nil }
func (FuncRef) Handles() []*Handle { return nil }
func (*Block) Handles() []*Handle  { return nil }

func (h HandleRef) Handles() []*Handle { return []*Handle{h.H} }

// IsFailure reports whether v is a failure: a structure with at least
// one unnamed field that is a #fail-descended tag reference or is
// itself a failure. Failure-tagged values in named fields do not make
// the container a failure; that containment is the language's error
// carrying pattern.
func IsFailure(v Value) bool {
	s, ok := v.(*Structure)
	return ok && s.failure
}

// Promote treats a non-structure value as pipeline input by wrapping
// it in a single-element unnamed-field structure. Structures pass
// through unchanged.
func Promote(v Value) *Structure {
	if s, ok := v.(*Structure); ok {
		return s
	}
	return NewStructure(Field{Value: v})
}

// kindRank orders values of different kinds for the total ordering.
func kindRank(v Value) int {
	switch v.(type) {
	case Number:
		return 0
	case String:
		return 1
	case Bool:
		return 2
	case TagRef:
		return 3
	case HandleRef:
		return 4
	case *Block:
		return 5
	case FuncRef:
		return 6
	case *Structure:
		return 7
	default:
		return 8
	}
}
