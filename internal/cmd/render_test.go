package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comp-lang/comp/internal/core"
)

func TestValueToAny(t *testing.T) {
	tests := []struct {
		name string
		v    core.Value
		want any
	}{
		{"number", core.Num(1.5), 1.5},
		{"string", core.String("s"), "s"},
		{"bool", core.Bool(true), true},
		{"tag", core.TagRef{Def: core.FailUser}, "#fail.user"},
		{
			"named only",
			core.NewStructure(core.Field{Name: "a", Value: core.Num(1)}),
			map[string]any{"a": float64(1)},
		},
		{
			"unnamed only",
			core.NewStructure(core.Field{Value: core.Num(1)}, core.Field{Value: core.Num(2)}),
			[]any{float64(1), float64(2)},
		},
		{
			"mixed",
			core.NewStructure(
				core.Field{Name: "a", Value: core.Num(1)},
				core.Field{Value: core.String("u")},
			),
			map[string]any{"a": float64(1), "_": []any{"u"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, valueToAny(tt.v))
		})
	}
}

func TestRenderValueYAML(t *testing.T) {
	v := core.NewStructure(core.Field{Name: "greeting", Value: core.String("hi")})
	out, err := renderValue(v, "yaml")
	require.NoError(t, err)
	assert.Equal(t, "greeting: hi\n", out)
}

func TestRenderValueText(t *testing.T) {
	v := core.NewStructure(
		core.Field{Name: "a", Value: core.Num(1)},
		core.Field{Value: core.Bool(true)},
	)
	out, err := renderValue(v, "text")
	require.NoError(t, err)
	assert.Equal(t, "{a: 1, true}", out)
}

func TestRenderValueUnknownFormat(t *testing.T) {
	_, err := renderValue(core.Num(1), "xml")
	assert.Error(t, err)
}
