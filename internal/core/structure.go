package core

import "github.com/comp-lang/comp/internal/ast"

// Field is one entry of a structure: an optionally named value.
type Field struct {
	Name  string
	Value Value
}

// Structure is the ordered named+unnamed field sequence. Field order is
// insertion order and is stable across equivalence-preserving
// operations. The handle set and failure bit are computed once at
// construction.
type Structure struct {
	fields  []Field
	named   map[string]int
	handles []*Handle
	failure bool
}

var emptyStructure = &Structure{named: map[string]int{}}

// Empty returns the empty structure, the seed of unseeded pipelines.
func Empty() *Structure {
	return emptyStructure
}

// NewStructure constructs a structure from fields in order. A repeated
// field name replaces the earlier value in place, keeping the original
// position.
func NewStructure(fields ...Field) *Structure {
	s := &Structure{
		fields: make([]Field, 0, len(fields)),
		named:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if f.Name != "" {
			if i, ok := s.named[f.Name]; ok {
				s.fields[i].Value = f.Value
				continue
			}
			s.named[f.Name] = len(s.fields)
		}
		s.fields = append(s.fields, f)
	}
	s.seal()
	return s
}

// seal computes the cached handle set and failure bit.
func (s *Structure) seal() {
	for _, f := range s.fields {
		for _, h := range f.Value.Handles() {
			if !containsHandle(s.handles, h) {
				s.handles = append(s.handles, h)
			}
		}
		if f.Name != "" {
			continue
		}
		switch v := f.Value.(type) {
		case TagRef:
			if v.Def.DescendsFrom(FailTag) {
				s.failure = true
			}
		case *Structure:
			if v.failure {
				s.failure = true
			}
		}
	}
}

func containsHandle(hs []*Handle, h *Handle) bool {
	for _, x := range hs {
		if x == h {
			return true
		}
	}
	return false
}

// Handles returns the cached handle set.
func (s *Structure) Handles() []*Handle { return s.handles }

// Len returns the total field count.
func (s *Structure) Len() int { return len(s.fields) }

// Fields returns the ordered field sequence. Shared; do not mutate.
func (s *Structure) Fields() []Field { return s.fields }

// Get returns the named field's value.
func (s *Structure) Get(name string) (Value, bool) {
	if i, ok := s.named[name]; ok {
		return s.fields[i].Value, true
	}
	return nil, false
}

// At returns the i-th unnamed field's value.
func (s *Structure) At(i int) (Value, bool) {
	n := 0
	for _, f := range s.fields {
		if f.Name != "" {
			continue
		}
		if n == i {
			return f.Value, true
		}
		n++
	}
	return nil, false
}

// Unnamed returns the unnamed field values in order.
func (s *Structure) Unnamed() []Value {
	var out []Value
	for _, f := range s.fields {
		if f.Name == "" {
			out = append(out, f.Value)
		}
	}
	return out
}

// NamedCount returns the number of named fields.
func (s *Structure) NamedCount() int { return len(s.named) }

// Names returns the named field names in insertion order.
func (s *Structure) Names() []string {
	out := make([]string, 0, len(s.named))
	for _, f := range s.fields {
		if f.Name != "" {
			out = append(out, f.Name)
		}
	}
	return out
}

// Builder accumulates fields into a structure, applying assignment
// strength: weak assignments yield to an existing named field, normal
// and strong replace it in place.
type Builder struct {
	fields []Field
	named  map[string]int
}

// NewBuilder returns an empty structure builder.
func NewBuilder() *Builder {
	return &Builder{named: map[string]int{}}
}

// Set assigns a named field with the given strength.
func (b *Builder) Set(name string, v Value, strength ast.Strength) {
	if i, ok := b.named[name]; ok {
		if strength == ast.Weak {
			return
		}
		b.fields[i].Value = v
		return
	}
	b.named[name] = len(b.fields)
	b.fields = append(b.fields, Field{Name: name, Value: v})
}

// Append adds an unnamed field.
func (b *Builder) Append(v Value) {
	b.fields = append(b.fields, Field{Value: v})
}

// Spread splices another structure's fields in: named fields via Set
// with the spread's strength, unnamed fields appended.
func (b *Builder) Spread(s *Structure, strength ast.Strength) {
	for _, f := range s.fields {
		if f.Name != "" {
			b.Set(f.Name, f.Value, strength)
		} else {
			b.Append(f.Value)
		}
	}
}

// Len returns the number of accumulated fields.
func (b *Builder) Len() int { return len(b.fields) }

// Build seals the accumulated fields into a structure.
func (b *Builder) Build() *Structure {
	return NewStructure(b.fields...)
}
