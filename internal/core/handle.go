package core

import "sync/atomic"

// CleanupFunc releases a handle's underlying resource. It runs exactly
// once per handle: at explicit release, or when the last referencing
// frame pops.
type CleanupFunc func(payload any) error

// HandleDef is a handle definition: a named kind of external resource
// with its cleanup hook.
type HandleDef struct {
	Path    string
	Module  string
	Private bool
	Cleanup CleanupFunc
}

var handleSeq atomic.Int64

// Handle is a live instance of a handle definition. Handles are the
// only shared-mutable entities visible to user code; they are owned by
// the evaluator thread.
type Handle struct {
	Def     *HandleDef
	Payload any

	frames   map[*Frame]struct{}
	released bool
	private  map[string]Value

	seq int64
}

// NewHandle allocates an unreleased handle instance. The caller (the
// acquire intrinsic) registers it with the acquiring frame.
func NewHandle(def *HandleDef, payload any) *Handle {
	return &Handle{
		Def:     def,
		Payload: payload,
		frames:  map[*Frame]struct{}{},
		private: map[string]Value{},
		seq:     handleSeq.Add(1),
	}
}

// Released reports whether the cleanup hook has run. A released handle
// fails to match any handle-shape constraint, so use-after-release
// surfaces at dispatch time.
func (h *Handle) Released() bool { return h.released }

// FrameCount returns the number of frames currently referencing h.
func (h *Handle) FrameCount() int { return len(h.frames) }

// PrivateGet reads a private-data entry. Private data is only
// reachable from impure frames; the evaluator enforces that.
func (h *Handle) PrivateGet(key string) (Value, bool) {
	v, ok := h.private[key]
	return v, ok
}

// PrivateSet stores a private-data entry.
func (h *Handle) PrivateSet(key string, v Value) {
	h.private[key] = v
}

// Release detaches h from every referencing frame and runs the cleanup
// hook. Releasing an already-released handle is a no-op returning nil.
func (h *Handle) Release() error {
	if h.released {
		return nil
	}
	h.released = true
	for f := range h.frames {
		f.forgetHandle(h)
	}
	h.frames = map[*Frame]struct{}{}
	return h.cleanup()
}

// cleanup invokes the definition's hook and drops the payload.
func (h *Handle) cleanup() error {
	var err error
	if h.Def.Cleanup != nil {
		err = h.Def.Cleanup(h.Payload)
	}
	h.Payload = nil
	return err
}

// attach records a bidirectional frame reference.
func (h *Handle) attach(f *Frame) {
	h.frames[f] = struct{}{}
}

// detach removes f from h's frame set. When the set empties and the
// handle is still unreleased, the cleanup hook runs.
func (h *Handle) detach(f *Frame) error {
	delete(h.frames, f)
	if len(h.frames) == 0 && !h.released {
		h.released = true
		return h.cleanup()
	}
	return nil
}
