package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTree defines color {red {crimson}, green} in module "palette".
func buildTree(ts *TagSet) (color, red, crimson, green *TagDef) {
	color = &TagDef{Name: "color", Module: "palette"}
	ts.Define(nil, color)
	red = &TagDef{Name: "red", Module: "palette", Value: Num(1)}
	ts.Define(color, red)
	crimson = &TagDef{Name: "crimson", Module: "palette", Value: Num(2)}
	ts.Define(red, crimson)
	green = &TagDef{Name: "green", Module: "palette", Value: Num(3)}
	ts.Define(color, green)
	return
}

func TestTagHierarchy(t *testing.T) {
	ts := NewTagSet()
	color, red, crimson, green := buildTree(ts)

	assert.Equal(t, []string{"color", "red", "crimson"}, crimson.Path())
	assert.Equal(t, "color.red.crimson", crimson.PathString())
	assert.Equal(t, 1, color.Depth())
	assert.Equal(t, 3, crimson.Depth())

	assert.True(t, crimson.DescendsFrom(color))
	assert.True(t, crimson.DescendsFrom(crimson))
	assert.False(t, green.DescendsFrom(red))
	assert.False(t, color.DescendsFrom(red))

	desc := ts.Descendants(color, AllView{})
	require.Len(t, desc, 3)
	assert.Equal(t, []*TagDef{red, crimson, green}, desc)
}

func TestTagLookup(t *testing.T) {
	ts := NewTagSet()
	buildTree(ts)

	def, ok := ts.Lookup([]string{"color", "red", "crimson"}, AllView{})
	require.True(t, ok)
	assert.Equal(t, "crimson", def.Name)

	_, ok = ts.Lookup([]string{"color", "blue"}, AllView{})
	assert.False(t, ok)

	def, ok = ts.Lookup([]string{"fail", "purity"}, AllView{})
	require.True(t, ok)
	assert.Equal(t, FailPurity, def)
}

func TestFindByValue(t *testing.T) {
	ts := NewTagSet()
	color, _, crimson, _ := buildTree(ts)

	// Pre-order, first-defined-wins.
	def, ok := ts.FindByValue(color, Num(2), AllView{})
	require.True(t, ok)
	assert.Equal(t, crimson, def)

	_, ok = ts.FindByValue(color, Num(99), AllView{})
	assert.False(t, ok)
}

type viewerFunc func(string) bool

func (f viewerFunc) Sees(m string) bool { return f(m) }

func TestTagExtensionVisibility(t *testing.T) {
	ts := NewTagSet()
	color, _, _, _ := buildTree(ts)

	// Module "theme" imports palette and extends color with teal.
	teal := &TagDef{Name: "teal", Module: "theme", Value: Num(4)}
	ts.Extend(color, teal)

	themeView := viewerFunc(func(m string) bool { return m == "theme" || m == "palette" })
	paletteView := viewerFunc(func(m string) bool { return m == "palette" })

	themeChildren := ts.Children(color, themeView)
	assert.Len(t, themeChildren, 3)
	assert.Contains(t, themeChildren, teal)

	// The defining module does not see the extension.
	paletteChildren := ts.Children(color, paletteView)
	assert.Len(t, paletteChildren, 2)
	assert.NotContains(t, paletteChildren, teal)

	// Extension children keep the parent chain for descent checks.
	assert.True(t, teal.DescendsFrom(color))

	// Find-by-value sees the extension only through the extending view.
	_, ok := ts.FindByValue(color, Num(4), paletteView)
	assert.False(t, ok)
	def, ok := ts.FindByValue(color, Num(4), themeView)
	require.True(t, ok)
	assert.Equal(t, teal, def)
}

func TestCompareTagsParentFirst(t *testing.T) {
	ts := NewTagSet()
	color, red, crimson, green := buildTree(ts)

	assert.Equal(t, -1, compareTags(color, red), "parent before child")
	assert.Equal(t, -1, compareTags(red, crimson))
	assert.Equal(t, -1, compareTags(green, crimson), "green sorts before the red subtree")
	assert.Equal(t, 0, compareTags(red, red))
}
