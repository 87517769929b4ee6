package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failureValue() *Structure {
	return NewFailure(FailUser, "boom")
}

func TestIsFailure(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"empty structure", Empty(), false},
		{"number", Num(1), false},
		{"failure tag in unnamed field", NewStructure(Field{Value: TagRef{Def: FailUser}}), true},
		{"failure tag in named field", NewStructure(Field{Name: "err", Value: TagRef{Def: FailUser}}), false},
		{"nested failure in named field", NewStructure(Field{Name: "err", Value: failureValue()}), false},
		{"nested failure in unnamed field", NewStructure(Field{Value: failureValue()}), true},
		{"non-fail tag in unnamed field", NewStructure(Field{Value: TagRef{Def: TagTrue}}), false},
		{"deeply nested unnamed failure", NewStructure(Field{Value: NewStructure(Field{Value: failureValue()})}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFailure(tt.v))
		})
	}
}

func TestFailureKind(t *testing.T) {
	kind, ok := FailureKind(NewFailure(FailDispatch, "no overload"))
	require.True(t, ok)
	assert.Equal(t, FailDispatch, kind)

	_, ok = FailureKind(NewStructure(Field{Name: "err", Value: failureValue()}))
	assert.False(t, ok)

	kind, ok = FailureKind(NewStructure(Field{Value: NewFailure(FailPurity, "inner")}))
	require.True(t, ok)
	assert.Equal(t, FailPurity, kind)
}

func TestPromote(t *testing.T) {
	s := Promote(Num(7))
	require.Equal(t, 1, s.Len())
	v, ok := s.At(0)
	require.True(t, ok)
	assert.Equal(t, Num(7), v)

	orig := NewStructure(Field{Name: "x", Value: Num(1)})
	assert.Same(t, orig, Promote(orig))
}

func TestStructureAccess(t *testing.T) {
	s := NewStructure(
		Field{Value: String("first")},
		Field{Name: "a", Value: Num(1)},
		Field{Value: String("second")},
		Field{Name: "b", Value: Num(2)},
	)

	assert.Equal(t, 4, s.Len())
	assert.Equal(t, 2, s.NamedCount())

	v, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, Num(1), v)

	_, ok = s.Get("missing")
	assert.False(t, ok)

	v, ok = s.At(1)
	require.True(t, ok)
	assert.Equal(t, String("second"), v)

	_, ok = s.At(2)
	assert.False(t, ok)

	assert.Equal(t, []string{"a", "b"}, s.Names())
}

func TestStructureDuplicateNameReplacesInPlace(t *testing.T) {
	s := NewStructure(
		Field{Name: "x", Value: Num(1)},
		Field{Name: "y", Value: Num(2)},
		Field{Name: "x", Value: Num(3)},
	)
	assert.Equal(t, 2, s.Len())
	v, _ := s.Get("x")
	assert.Equal(t, Num(3), v)
	assert.Equal(t, []string{"x", "y"}, s.Names())
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"numbers", Num(1), Num(1), true},
		{"numbers differ", Num(1), Num(2), false},
		{"nan equals nan", Num(math.NaN()), Num(math.NaN()), true},
		{"kinds differ", Num(1), String("1"), false},
		{"strings", String("a"), String("a"), true},
		{"bools", Bool(true), Bool(true), true},
		{"tags by identity", TagRef{Def: FailUser}, TagRef{Def: FailUser}, true},
		{"tags differ", TagRef{Def: FailUser}, TagRef{Def: FailPurity}, false},
		{
			"named order-insensitive",
			NewStructure(Field{Name: "a", Value: Num(1)}, Field{Name: "b", Value: Num(2)}),
			NewStructure(Field{Name: "b", Value: Num(2)}, Field{Name: "a", Value: Num(1)}),
			true,
		},
		{
			"unnamed pointwise",
			NewStructure(Field{Value: Num(1)}, Field{Value: Num(2)}),
			NewStructure(Field{Value: Num(2)}, Field{Value: Num(1)}),
			false,
		},
		{
			"named and unnamed mixed",
			NewStructure(Field{Value: Num(1)}, Field{Name: "k", Value: Num(2)}),
			NewStructure(Field{Name: "k", Value: Num(2)}, Field{Value: Num(1)}),
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
			assert.Equal(t, tt.want, Equal(tt.b, tt.a))
		})
	}
}

func TestTagAliasEquality(t *testing.T) {
	alias := &TagDef{Name: "boom", Module: "m", Alias: FailUser}
	assert.True(t, Equal(TagRef{Def: alias}, TagRef{Def: FailUser}))
}

func TestCompareTotalOrder(t *testing.T) {
	values := []Value{
		Num(math.NaN()),
		Num(-1),
		Num(0),
		Num(1),
		String("a"),
		String("b"),
		Bool(false),
		Bool(true),
		TagRef{Def: FailTag},
		Empty(),
		NewStructure(Field{Name: "a", Value: Num(1)}),
	}
	for i, a := range values {
		assert.Zero(t, Compare(a, a), "value %d not equal to itself", i)
		for j, b := range values {
			ab, ba := Compare(a, b), Compare(b, a)
			assert.Equal(t, -ba, ab, "antisymmetry %d vs %d", i, j)
			if i < j {
				assert.Equal(t, -1, ab, "expected %d < %d", i, j)
			}
		}
	}
}

func TestCompareStructures(t *testing.T) {
	a := NewStructure(Field{Name: "a", Value: Num(1)})
	b := NewStructure(Field{Name: "b", Value: Num(1)})
	assert.Equal(t, -1, Compare(a, b))

	x := NewStructure(Field{Name: "k", Value: Num(1)}, Field{Value: Num(1)})
	y := NewStructure(Field{Name: "k", Value: Num(1)}, Field{Value: Num(2)})
	assert.Equal(t, -1, Compare(x, y))
}
