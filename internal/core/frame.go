package core

import (
	"fmt"

	"github.com/comp-lang/comp/internal/ast"
)

// ModuleScope is the read surface of a module's runtime scope,
// implemented by the module registry. Load-time constants are always
// visible; runtime state stashed by !entry is withheld from pure
// frames by the evaluator.
type ModuleScope interface {
	ModuleGet(name string) (Value, bool)
	// ModuleRuntime reports whether the named slot was written at
	// runtime (via !entry) rather than at load.
	ModuleRuntime(name string) bool
}

// Snapshot is a block's captured view of a frame: the scope chain and
// purity at capture time. Vars and args are copied (the capturing
// frame may pop); the context map is shared by design — context flows
// across the call chain.
type Snapshot struct {
	Input      Value
	Vars       map[string]Value
	Args       map[string]Value
	Ctx        map[string]Value
	Module     ModuleScope
	ModulePath string
	Pure       bool
}

// Frame is one execution scope: a function, block, or module-load
// activation. It owns the local scopes and the set of handles
// registered while it was live.
type Frame struct {
	parent *Frame

	// Pure forbids side effects in this frame and is sticky: child
	// frames of a pure frame are pure.
	Pure bool

	// DisarmBypass makes failure checks short-circuit to "not a
	// failure" for pipelines evaluated in this frame.
	DisarmBypass bool

	// ModulePath names the module whose view governs lookups.
	ModulePath string

	// Module is the module runtime scope for unqualified resolution.
	Module ModuleScope

	// captured is non-nil for block-invocation frames: resolution
	// falls through to the snapshot instead of the invoker.
	captured *Snapshot

	input Value
	vars  map[string]Value
	args  map[string]Value
	ctx   map[string]Value
	pipe  *Builder

	handles   []*Handle
	handleSet map[*Handle]struct{}
}

// PushOptions configures a frame push.
type PushOptions struct {
	Pure         bool
	DisarmBypass bool
	ModulePath   string
	Module       ModuleScope
	// Captured switches the frame to a block's snapshot chain.
	Captured *Snapshot
}

// Frames is the evaluator's frame stack. Frames are created on
// function/block entry and destroyed on exit; destruction triggers
// handle unregistration.
type Frames struct {
	stack []*Frame
}

// NewFrames returns an empty frame stack.
func NewFrames() *Frames {
	return &Frames{}
}

// Depth returns the number of live frames.
func (fs *Frames) Depth() int { return len(fs.stack) }

// Current returns the innermost frame, or nil when the stack is empty.
func (fs *Frames) Current() *Frame {
	if len(fs.stack) == 0 {
		return nil
	}
	return fs.stack[len(fs.stack)-1]
}

// Push creates a child frame. Purity and disarm bypass are sticky:
// the child inherits them from its parent unless explicitly set.
func (fs *Frames) Push(opts PushOptions) *Frame {
	parent := fs.Current()
	f := newFrame(parent, opts)
	fs.stack = append(fs.stack, f)
	return f
}

// Pop destroys the innermost frame, running handle cleanup. Handles
// whose frame set empties are cleaned in reverse registration order.
func (fs *Frames) Pop() error {
	if len(fs.stack) == 0 {
		return fmt.Errorf("frame stack underflow")
	}
	f := fs.stack[len(fs.stack)-1]
	fs.stack = fs.stack[:len(fs.stack)-1]
	return f.release()
}

func newFrame(parent *Frame, opts PushOptions) *Frame {
	f := &Frame{
		parent:       parent,
		Pure:         opts.Pure,
		DisarmBypass: opts.DisarmBypass,
		ModulePath:   opts.ModulePath,
		Module:       opts.Module,
		captured:     opts.Captured,
		vars:         map[string]Value{},
		args:         map[string]Value{},
		handleSet:    map[*Handle]struct{}{},
	}
	if snap := opts.Captured; snap != nil {
		// Block frames resolve against the capture, not the invoker.
		f.Pure = snap.Pure
		f.ctx = snap.Ctx
		f.input = snap.Input
		if f.Module == nil {
			f.Module = snap.Module
		}
		if f.ModulePath == "" {
			f.ModulePath = snap.ModulePath
		}
		if parent != nil {
			f.DisarmBypass = opts.DisarmBypass || parent.DisarmBypass
		}
		return f
	}
	if parent != nil {
		f.Pure = opts.Pure || parent.Pure
		f.DisarmBypass = opts.DisarmBypass || parent.DisarmBypass
		f.ctx = parent.ctx
		if f.Module == nil {
			f.Module = parent.Module
		}
		if f.ModulePath == "" {
			f.ModulePath = parent.ModulePath
		}
	}
	if f.ctx == nil {
		f.ctx = map[string]Value{}
	}
	return f
}

// NewDetachedFrame creates a frame outside any stack. The module
// registry uses one per module as the lifetime anchor of module-scope
// handles (module state outlives every call frame).
func NewDetachedFrame(opts PushOptions) *Frame {
	return newFrame(nil, opts)
}

// Input returns the frame's current pipeline input value.
func (f *Frame) Input() Value {
	if f.input == nil {
		return Empty()
	}
	return f.input
}

// SetInput installs the input value for the current statement.
func (f *Frame) SetInput(v Value) {
	f.input = v
	f.Register(v)
}

// SetVar binds a once-assigned local variable.
func (f *Frame) SetVar(name string, v Value) error {
	if _, ok := f.vars[name]; ok {
		return fmt.Errorf("variable %q already bound", name)
	}
	f.vars[name] = v
	f.Register(v)
	return nil
}

// SetArg installs a morphed argument binding.
func (f *Frame) SetArg(name string, v Value) {
	f.args[name] = v
	f.Register(v)
}

// SetCtx assigns into the context scope, visible along the call chain.
func (f *Frame) SetCtx(name string, v Value) {
	f.ctx[name] = v
	f.Register(v)
}

// Args returns the argument scope as a structure.
func (f *Frame) Args() *Structure {
	b := NewBuilder()
	for name, v := range f.args {
		b.Set(name, v, ast.Normal)
	}
	return b.Build()
}

// SetArgs installs every field of a morphed argument structure.
func (f *Frame) SetArgs(args *Structure) {
	for _, fld := range args.Fields() {
		if fld.Name != "" {
			f.SetArg(fld.Name, fld.Value)
		}
	}
}

// Pipe returns the currently-building output structure, creating it on
// first use.
func (f *Frame) Pipe() *Builder {
	if f.pipe == nil {
		f.pipe = NewBuilder()
	}
	return f.pipe
}

// PipeSet assigns a named output field.
func (f *Frame) PipeSet(name string, v Value, strength ast.Strength) {
	f.Pipe().Set(name, v, strength)
	f.Register(v)
}

// PipeAppend appends an unnamed output field.
func (f *Frame) PipeAppend(v Value) {
	f.Pipe().Append(v)
	f.Register(v)
}

// Lookup resolves an unqualified name: variable → argument → context →
// module. Block frames fall through to their capture's scopes.
func (f *Frame) Lookup(name string) (Value, bool) {
	if v, ok := f.vars[name]; ok {
		return v, true
	}
	if f.captured != nil {
		if v, ok := f.captured.Vars[name]; ok {
			return v, true
		}
		if v, ok := f.captured.Args[name]; ok {
			return v, true
		}
	}
	if v, ok := f.args[name]; ok {
		return v, true
	}
	if f.ctx != nil {
		if v, ok := f.ctx[name]; ok {
			return v, true
		}
	}
	if f.Module != nil {
		if v, ok := f.Module.ModuleGet(name); ok {
			return v, true
		}
	}
	return nil, false
}

// LookupScoped resolves a name in one specific scope.
func (f *Frame) LookupScoped(scope ast.ScopeKind, name string) (Value, bool) {
	switch scope {
	case ast.ScopeVariable:
		if v, ok := f.vars[name]; ok {
			return v, true
		}
		if f.captured != nil {
			v, ok := f.captured.Vars[name]
			return v, ok
		}
		return nil, false
	case ast.ScopeArgument:
		if f.captured != nil {
			if v, ok := f.captured.Args[name]; ok {
				return v, true
			}
		}
		v, ok := f.args[name]
		return v, ok
	case ast.ScopeContext:
		if f.ctx == nil {
			return nil, false
		}
		v, ok := f.ctx[name]
		return v, ok
	case ast.ScopeModule:
		if f.Module == nil {
			return nil, false
		}
		return f.Module.ModuleGet(name)
	default:
		return nil, false
	}
}

// Snapshot captures the frame's scope chain and purity for a block.
func (f *Frame) Snapshot() *Snapshot {
	snap := &Snapshot{
		Input:      f.Input(),
		Vars:       make(map[string]Value, len(f.vars)),
		Args:       make(map[string]Value, len(f.args)),
		Ctx:        f.ctx,
		Module:     f.Module,
		ModulePath: f.ModulePath,
		Pure:       f.Pure,
	}
	for k, v := range f.vars {
		snap.Vars[k] = v
	}
	for k, v := range f.args {
		snap.Args[k] = v
	}
	if f.captured != nil {
		// Nested capture: fold the outer capture's bindings under the
		// current frame's (inner bindings shadow).
		for k, v := range f.captured.Vars {
			if _, ok := snap.Vars[k]; !ok {
				snap.Vars[k] = v
			}
		}
		for k, v := range f.captured.Args {
			if _, ok := snap.Args[k]; !ok {
				snap.Args[k] = v
			}
		}
	}
	return snap
}

// Register adds every handle reachable from v to this frame's handle
// set, and this frame to each handle's frame set. O(k) in the number
// of distinct handles in the value.
func (f *Frame) Register(v Value) {
	for _, h := range v.Handles() {
		if _, ok := f.handleSet[h]; ok {
			continue
		}
		f.handleSet[h] = struct{}{}
		f.handles = append(f.handles, h)
		h.attach(f)
	}
}

// Handles returns the frame's registered handles in insertion order.
func (f *Frame) Handles() []*Handle { return f.handles }

// forgetHandle drops a handle from the frame's set without detaching
// (the handle side is already cleared by explicit release).
func (f *Frame) forgetHandle(h *Handle) {
	if _, ok := f.handleSet[h]; !ok {
		return
	}
	delete(f.handleSet, h)
	for i, x := range f.handles {
		if x == h {
			f.handles = append(f.handles[:i], f.handles[i+1:]...)
			break
		}
	}
}

// release detaches all registered handles in LIFO order, cleaning up
// those whose frame set empties. The first cleanup error is returned;
// remaining handles are still detached.
func (f *Frame) release() error {
	var first error
	for i := len(f.handles) - 1; i >= 0; i-- {
		if err := f.handles[i].detach(f); err != nil && first == nil {
			first = err
		}
	}
	f.handles = nil
	f.handleSet = map[*Handle]struct{}{}
	return first
}
