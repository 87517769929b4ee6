// Package module implements the module registry: per-module
// namespaces for tags, shapes, handles, and function families, import
// resolution, and privacy filtering on cross-module lookup.
//
// The registry holds definitions and runtime scope; materializing a
// module from its AST (which needs the evaluator for module-level
// assignments, tag generators, and !entry) is driven by internal/eval.
package module

import (
	"fmt"

	"github.com/comp-lang/comp/internal/ast"
	"github.com/comp-lang/comp/internal/core"
	"github.com/comp-lang/comp/internal/errors"
	"github.com/comp-lang/comp/internal/shape"
)

// NativeFunc is the standard-library bridge contract: a host function
// invoked with the morphed input, the morphed arguments, and the
// current frame. Natives that acquire handles must be impure and use
// the handle lifecycle protocol.
type NativeFunc func(input core.Value, args *core.Structure, frame *core.Frame) (core.Value, error)

// Overload is one candidate of a function family.
type Overload struct {
	Input    *shape.Shape // nil accepts any input
	Args     *shape.Shape // nil accepts any args
	Body     []ast.Stmt
	Expr     ast.Expr
	Native   NativeFunc
	Pure     bool
	Strength ast.Strength

	// Order is the source definition position; it breaks score ties.
	Order int
}

// Family is a named overload set. Dispatch scores every overload and
// picks the lexicographic maximum.
type Family struct {
	Name      string
	Module    string
	Private   bool
	Overloads []*Overload
}

// FamilyName implements core.FuncFamily.
func (f *Family) FamilyName() string { return f.Name }

// FamilyModule implements core.FuncFamily.
func (f *Family) FamilyModule() string { return f.Module }

// Add appends an overload in definition order.
func (f *Family) Add(o *Overload) {
	o.Order = len(f.Overloads)
	f.Overloads = append(f.Overloads, o)
}

// Module is a loaded (or loading) module: four definition namespaces,
// resolved imports, and the module scope.
type Module struct {
	Path string

	// Decl is the AST document the module was materialized from; nil
	// for natively-registered modules.
	Decl *ast.Module

	Imports map[string]*Module

	Tags    map[string]*core.TagDef
	Shapes  *shape.Registry
	Handles map[string]*core.HandleDef
	Funcs   map[string]*Family

	// Loaded flips once definitions are materialized and module-level
	// assignments have run. EntryRan flips when !entry has run.
	Loaded   bool
	EntryRan bool

	scope   map[string]core.Value
	runtime map[string]bool
	anchor  *core.Frame
}

// New creates an empty module shell.
func New(path string) *Module {
	return &Module{
		Path:    path,
		Imports: map[string]*Module{},
		Tags:    map[string]*core.TagDef{},
		Shapes:  shape.NewRegistry(),
		Handles: map[string]*core.HandleDef{},
		Funcs:   map[string]*Family{},
		scope:   map[string]core.Value{},
		runtime: map[string]bool{},
		anchor:  core.NewDetachedFrame(core.PushOptions{}),
	}
}

// ModuleGet implements core.ModuleScope.
func (m *Module) ModuleGet(name string) (core.Value, bool) {
	v, ok := m.scope[name]
	return v, ok
}

// ModuleRuntime implements core.ModuleScope: true for slots written by
// !entry rather than at load. Pure frames must not read those.
func (m *Module) ModuleRuntime(name string) bool {
	return m.runtime[name]
}

// SetScope writes a module-scope slot. Handles in the value anchor to
// the module's own frame so they outlive call frames. Runtime slots
// (written by !entry) are written at most once.
func (m *Module) SetScope(name string, v core.Value, runtime bool) error {
	if runtime {
		if m.runtime[name] {
			return fmt.Errorf("module %s: runtime slot %q already written", m.Path, name)
		}
		m.runtime[name] = true
	}
	m.scope[name] = v
	m.anchor.Register(v)
	return nil
}

// Anchor returns the module's lifetime frame for module-held handles.
func (m *Module) Anchor() *core.Frame { return m.anchor }

// Sees implements core.View: a module's tag view includes its own
// extensions and those of its direct imports.
func (m *Module) Sees(modulePath string) bool {
	if modulePath == m.Path || modulePath == "builtin" {
		return true
	}
	for _, imp := range m.Imports {
		if imp.Path == modulePath {
			return true
		}
	}
	return false
}

// Family returns the named family, creating it on first definition.
func (m *Module) Family(name string) *Family {
	f, ok := m.Funcs[name]
	if !ok {
		f = &Family{Name: name, Module: m.Path}
		m.Funcs[name] = f
	}
	return f
}

// Registry is the process-wide module table plus the shared tag set.
type Registry struct {
	tags    *core.TagSet
	modules map[string]*Module
	pending map[string]*ast.Module
}

// NewRegistry returns a registry seeded with the builtin tag roots.
func NewRegistry() *Registry {
	return &Registry{
		tags:    core.NewTagSet(),
		modules: map[string]*Module{},
		pending: map[string]*ast.Module{},
	}
}

// Tags returns the shared tag registry.
func (r *Registry) Tags() *core.TagSet { return r.tags }

// Register queues a parsed module document for load-on-first-use.
func (r *Registry) Register(decl *ast.Module) error {
	if _, ok := r.modules[decl.Path]; ok {
		return errors.Wrap(errors.ErrValidation, fmt.Sprintf("module %s already loaded", decl.Path))
	}
	if _, ok := r.pending[decl.Path]; ok {
		return errors.Wrap(errors.ErrValidation, fmt.Sprintf("module %s already registered", decl.Path))
	}
	r.pending[decl.Path] = decl
	return nil
}

// Install adds a fully-built module (used for native modules like std).
func (r *Registry) Install(m *Module) error {
	if _, ok := r.modules[m.Path]; ok {
		return errors.Wrap(errors.ErrValidation, fmt.Sprintf("module %s already loaded", m.Path))
	}
	m.Loaded = true
	r.modules[m.Path] = m
	return nil
}

// Resolve returns the loaded module for a path.
func (r *Registry) Resolve(path string) (*Module, bool) {
	m, ok := r.modules[path]
	return m, ok
}

// Pending returns the queued declaration for a path, removing it; the
// evaluator claims it when materializing.
func (r *Registry) Pending(path string) (*ast.Module, bool) {
	decl, ok := r.pending[path]
	if ok {
		delete(r.pending, path)
	}
	return decl, ok
}

// HasPending reports whether a declaration is queued for the path.
func (r *Registry) HasPending(path string) bool {
	_, ok := r.pending[path]
	return ok
}

// Claim reserves the module table slot for a module being
// materialized, so recursive imports observe the shell.
func (r *Registry) Claim(m *Module) {
	r.modules[m.Path] = m
}

// resolveTarget maps an alias from the requesting module to its
// target: empty alias means the module itself.
func resolveTarget(from *Module, alias string) (*Module, error) {
	if alias == "" {
		return from, nil
	}
	target, ok := from.Imports[alias]
	if !ok {
		return nil, errors.Wrap(errors.ErrNotFound,
			fmt.Sprintf("module %s does not import %q", from.Path, alias))
	}
	return target, nil
}

// LookupFunc resolves a function family through the requesting
// module's imports. Private families are rejected cross-module.
func (r *Registry) LookupFunc(from *Module, alias, name string) (*Family, error) {
	target, err := resolveTarget(from, alias)
	if err != nil {
		return nil, err
	}
	fam, ok := target.Funcs[name]
	if !ok {
		return nil, errors.Wrap(errors.ErrNotFound,
			fmt.Sprintf("function %s not defined in module %s", name, target.Path))
	}
	if fam.Private && target != from {
		return nil, errors.Wrap(errors.ErrNotFound,
			fmt.Sprintf("function %s in module %s is private", name, target.Path))
	}
	return fam, nil
}

// LookupShape resolves a named shape with privacy filtering.
func (r *Registry) LookupShape(from *Module, alias, name string) (*shape.Shape, error) {
	target, err := resolveTarget(from, alias)
	if err != nil {
		return nil, err
	}
	s, ok := target.Shapes.Lookup(name)
	if !ok {
		return nil, errors.Wrap(errors.ErrNotFound,
			fmt.Sprintf("shape %s not defined in module %s", name, target.Path))
	}
	if s.Private && target != from {
		return nil, errors.Wrap(errors.ErrNotFound,
			fmt.Sprintf("shape %s in module %s is private", name, target.Path))
	}
	return s, nil
}

// LookupHandle resolves a handle definition with privacy filtering.
func (r *Registry) LookupHandle(from *Module, alias, name string) (*core.HandleDef, error) {
	target, err := resolveTarget(from, alias)
	if err != nil {
		return nil, err
	}
	def, ok := target.Handles[name]
	if !ok {
		return nil, errors.Wrap(errors.ErrNotFound,
			fmt.Sprintf("handle %s not defined in module %s", name, target.Path))
	}
	if def.Private && target != from {
		return nil, errors.Wrap(errors.ErrNotFound,
			fmt.Sprintf("handle %s in module %s is private", name, target.Path))
	}
	return def, nil
}

// LookupTag resolves a tag path. Builtin roots (#fail, #true, #false)
// are visible from every module; otherwise the path's head must be a
// root declared by the target module, and descent consults the
// requesting module's extension view.
func (r *Registry) LookupTag(from *Module, alias string, path []string) (*core.TagDef, error) {
	if len(path) == 0 {
		return nil, errors.Wrap(errors.ErrValidation, "empty tag path")
	}
	target, err := resolveTarget(from, alias)
	if err != nil {
		return nil, err
	}
	root, ok := target.Tags[path[0]]
	if !ok {
		if alias == "" {
			if def, found := r.tags.Lookup(path, from); found {
				top := def
				for top.Parent != nil {
					top = top.Parent
				}
				if top.Module == "builtin" {
					return def, nil
				}
			}
		}
		return nil, errors.Wrap(errors.ErrNotFound,
			fmt.Sprintf("tag #%s not defined in module %s", path[0], target.Path))
	}
	if root.Private && target != from {
		return nil, errors.Wrap(errors.ErrNotFound,
			fmt.Sprintf("tag #%s in module %s is private", path[0], target.Path))
	}
	cur := root
	for _, seg := range path[1:] {
		var next *core.TagDef
		for _, c := range r.tags.Children(cur, from) {
			if c.Name == seg {
				next = c
				break
			}
		}
		if next == nil {
			return nil, errors.Wrap(errors.ErrNotFound,
				fmt.Sprintf("tag #%s has no child %q", cur.PathString(), seg))
		}
		cur = next
	}
	return cur, nil
}
