package core

import (
	"strings"

	"github.com/comp-lang/comp/internal/ast"
)

// TagDef is a tag definition. Tags form a forest; identity is the
// definition site. Aliases carry a pointer to their target and compare
// equal to it.
type TagDef struct {
	Name    string
	Parent  *TagDef
	Module  string
	Private bool

	// Value is the tag's constant value, possibly produced by
	// Generator at module load.
	Value     Value
	Generator *ast.Call

	// Alias points at the aliased definition; nil for real tags.
	Alias *TagDef

	children []*TagDef
}

// Resolve follows alias links to the real definition.
func (t *TagDef) Resolve() *TagDef {
	for t.Alias != nil {
		t = t.Alias
	}
	return t
}

// Path returns the path segments from the root to this tag.
func (t *TagDef) Path() []string {
	t = t.Resolve()
	var segs []string
	for d := t; d != nil; d = d.Parent {
		segs = append(segs, d.Name)
	}
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return segs
}

// PathString returns the dotted path, e.g. "fail.purity".
func (t *TagDef) PathString() string {
	return strings.Join(t.Path(), ".")
}

// Depth returns the distance from the root (root = 1).
func (t *TagDef) Depth() int {
	t = t.Resolve()
	d := 0
	for ; t != nil; t = t.Parent {
		d++
	}
	return d
}

// DescendsFrom reports whether t transitively descends from ancestor
// (a tag descends from itself).
func (t *TagDef) DescendsFrom(ancestor *TagDef) bool {
	ancestor = ancestor.Resolve()
	for d := t.Resolve(); d != nil; d = d.Parent {
		if d == ancestor {
			return true
		}
	}
	return false
}

// View scopes tag visibility: a module's view sees the base hierarchy
// plus extensions defined by modules the viewer imports (and itself).
type View interface {
	Sees(module string) bool
}

// AllView sees every extension. Used by the runtime's own machinery
// (failure classification ignores visibility).
type AllView struct{}

// Sees always reports true.
func (AllView) Sees(string) bool { return true }

// TagSet is the tag registry: base definitions plus cross-module
// extension deltas. The base hierarchy is immutable after load;
// extensions are merged into importing modules' views only.
type TagSet struct {
	roots []*TagDef
	// ext maps a base definition to children added by other modules.
	ext map[*TagDef][]*TagDef
}

// NewTagSet returns a registry pre-seeded with the builtin roots.
func NewTagSet() *TagSet {
	return &TagSet{
		roots: []*TagDef{TagTrue, TagFalse, FailTag},
		ext:   map[*TagDef][]*TagDef{},
	}
}

// Roots returns the root definitions.
func (ts *TagSet) Roots() []*TagDef { return ts.roots }

// Define adds a tag under parent (nil = new root) in the base
// hierarchy. Used by module load for tags the module itself declares.
func (ts *TagSet) Define(parent *TagDef, def *TagDef) {
	def.Parent = parent
	if parent == nil {
		ts.roots = append(ts.roots, def)
		return
	}
	parent = parent.Resolve()
	parent.children = append(parent.children, def)
}

// Extend adds a child to an imported tag on behalf of the extending
// module. The child is visible only to views that see that module; the
// defining module's own view is unchanged. Extensions cannot change
// existing values, only add children.
func (ts *TagSet) Extend(parent *TagDef, def *TagDef) {
	parent = parent.Resolve()
	def.Parent = parent
	ts.ext[parent] = append(ts.ext[parent], def)
}

// Children returns parent's children visible to the view: base
// children first, then visible extensions in definition order.
func (ts *TagSet) Children(parent *TagDef, view View) []*TagDef {
	parent = parent.Resolve()
	out := make([]*TagDef, 0, len(parent.children))
	out = append(out, parent.children...)
	for _, e := range ts.ext[parent] {
		if view.Sees(e.Module) {
			out = append(out, e)
		}
	}
	return out
}

// Descendants returns the subtree under root in pre-order, excluding
// root itself.
func (ts *TagSet) Descendants(root *TagDef, view View) []*TagDef {
	var out []*TagDef
	for _, c := range ts.Children(root, view) {
		out = append(out, c)
		out = append(out, ts.Descendants(c, view)...)
	}
	return out
}

// FindByValue returns the first tag in pre-order under root whose
// value equals v. Collisions resolve first-defined-wins; root itself
// is considered first.
func (ts *TagSet) FindByValue(root *TagDef, v Value, view View) (*TagDef, bool) {
	root = root.Resolve()
	if root.Value != nil && Equal(root.Value, v) {
		return root, true
	}
	for _, c := range ts.Children(root, view) {
		if found, ok := ts.FindByValue(c, v, view); ok {
			return found, true
		}
	}
	return nil, false
}

// Lookup resolves a path from the registry roots, consulting the view
// for extension children.
func (ts *TagSet) Lookup(path []string, view View) (*TagDef, bool) {
	if len(path) == 0 {
		return nil, false
	}
	var cur *TagDef
	for _, r := range ts.roots {
		if r.Name == path[0] {
			cur = r
			break
		}
	}
	if cur == nil {
		return nil, false
	}
	for _, seg := range path[1:] {
		var next *TagDef
		for _, c := range ts.Children(cur, view) {
			if c.Name == seg {
				next = c
				break
			}
		}
		if next == nil {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// compareTags orders tag definitions lexicographically by path
// segment, parent-first.
func compareTags(a, b *TagDef) int {
	pa, pb := a.Path(), b.Path()
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] != pb[i] {
			if pa[i] < pb[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(pa) < len(pb):
		return -1
	case len(pa) > len(pb):
		return 1
	default:
		return 0
	}
}

// Builtin tags. Every registry includes these roots; failure
// classification keys off FailTag regardless of module views.
var (
	TagTrue  = &TagDef{Name: "true", Module: "builtin", Value: Bool(true)}
	TagFalse = &TagDef{Name: "false", Module: "builtin", Value: Bool(false)}

	FailTag = &TagDef{Name: "fail", Module: "builtin"}

	// Error kinds under #fail.
	FailDispatch  = &TagDef{Name: "dispatch", Module: "builtin"}
	FailShape     = &TagDef{Name: "shape", Module: "builtin"}
	FailMissing   = &TagDef{Name: "missing", Module: "builtin"}
	FailPurity    = &TagDef{Name: "purity", Module: "builtin"}
	FailReleased  = &TagDef{Name: "released", Module: "builtin"}
	FailTodo      = &TagDef{Name: "todo", Module: "builtin"}
	FailCancelled = &TagDef{Name: "cancelled", Module: "builtin"}
	FailUser      = &TagDef{Name: "user", Module: "builtin"}
)

func init() {
	kinds := []*TagDef{
		FailDispatch, FailShape, FailMissing, FailPurity,
		FailReleased, FailTodo, FailCancelled, FailUser,
	}
	for _, k := range kinds {
		k.Parent = FailTag
	}
	FailTag.children = kinds
}

// NewFailure builds the canonical failure value: the kind tag in an
// unnamed field (which is what makes the structure propagate) plus a
// named message field that stays readable under disarm.
func NewFailure(kind *TagDef, message string) *Structure {
	return NewStructure(
		Field{Value: TagRef{Def: kind}},
		Field{Name: "message", Value: String(message)},
	)
}

// FailureKind returns the first #fail-descended tag in v's unnamed
// fields, descending into nested failures.
func FailureKind(v Value) (*TagDef, bool) {
	s, ok := v.(*Structure)
	if !ok || !s.failure {
		return nil, false
	}
	for _, f := range s.fields {
		if f.Name != "" {
			continue
		}
		switch fv := f.Value.(type) {
		case TagRef:
			if fv.Def.DescendsFrom(FailTag) {
				return fv.Def.Resolve(), true
			}
		case *Structure:
			if k, found := FailureKind(fv); found {
				return k, true
			}
		}
	}
	return nil, false
}
