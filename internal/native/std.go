package native

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"

	"github.com/comp-lang/comp/internal/core"
	"github.com/comp-lang/comp/internal/module"
	"github.com/comp-lang/comp/internal/output"
	"github.com/comp-lang/comp/internal/shape"
)

// operands gathers a call's working values: named a/b fields first,
// otherwise the input's unnamed fields followed by the args' unnamed
// fields. This lets `3 |> add {4}` and `{10, 4} |> sub` both bind.
func operands(input core.Value, args *core.Structure) []core.Value {
	s := core.Promote(input)
	var out []core.Value
	if a, ok := s.Get("a"); ok {
		out = append(out, a)
		if b, ok := s.Get("b"); ok {
			out = append(out, b)
		}
	} else {
		out = append(out, s.Unnamed()...)
	}
	if args != nil {
		out = append(out, args.Unnamed()...)
	}
	return out
}

// numbers extracts n numeric operands or reports a shape failure.
func numbers(input core.Value, args *core.Structure, n int) ([]float64, *core.Structure) {
	ops := operands(input, args)
	if len(ops) < n {
		return nil, core.NewFailure(core.FailMissing,
			fmt.Sprintf("need %d numeric operand(s), have %d", n, len(ops)))
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		num, ok := ops[i].(core.Number)
		if !ok {
			return nil, core.NewFailure(core.FailShape,
				fmt.Sprintf("operand %d is not a number", i))
		}
		out[i] = float64(num)
	}
	return out, nil
}

// texts extracts n string operands or reports a shape failure.
func texts(input core.Value, args *core.Structure, n int) ([]string, *core.Structure) {
	ops := operands(input, args)
	if len(ops) < n {
		return nil, core.NewFailure(core.FailMissing,
			fmt.Sprintf("need %d string operand(s), have %d", n, len(ops)))
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		str, ok := ops[i].(core.String)
		if !ok {
			return nil, core.NewFailure(core.FailShape,
				fmt.Sprintf("operand %d is not a string", i))
		}
		out[i] = string(str)
	}
	return out, nil
}

func installNumeric(m *module.Module) {
	binary := func(name string, op func(a, b float64) float64) {
		pure(m, name, nil, nil,
			func(input core.Value, args *core.Structure, _ *core.Frame) (core.Value, error) {
				ns, fail := numbers(input, args, 2)
				if fail != nil {
					return fail, nil
				}
				return core.Num(op(ns[0], ns[1])), nil
			})
	}
	binary("add", func(a, b float64) float64 { return a + b })
	binary("sub", func(a, b float64) float64 { return a - b })
	binary("mul", func(a, b float64) float64 { return a * b })

	pure(m, "div", nil, nil,
		func(input core.Value, args *core.Structure, _ *core.Frame) (core.Value, error) {
			ns, fail := numbers(input, args, 2)
			if fail != nil {
				return fail, nil
			}
			if ns[1] == 0 {
				return core.NewFailure(core.FailUser, "division by zero"), nil
			}
			return core.Num(ns[0] / ns[1]), nil
		})

	pure(m, "neg", nil, nil,
		func(input core.Value, args *core.Structure, _ *core.Frame) (core.Value, error) {
			ns, fail := numbers(input, args, 1)
			if fail != nil {
				return fail, nil
			}
			return core.Num(-ns[0]), nil
		})
}

func installStrings(m *module.Module) {
	pure(m, "concat", nil, nil,
		func(input core.Value, args *core.Structure, _ *core.Frame) (core.Value, error) {
			ss, fail := texts(input, args, 2)
			if fail != nil {
				return fail, nil
			}
			return core.String(ss[0] + ss[1]), nil
		})

	pure(m, "upper", nil, nil,
		func(input core.Value, args *core.Structure, _ *core.Frame) (core.Value, error) {
			ss, fail := texts(input, args, 1)
			if fail != nil {
				return fail, nil
			}
			return core.String(strings.ToUpper(ss[0])), nil
		})

	pure(m, "length", nil, nil,
		func(input core.Value, args *core.Structure, _ *core.Frame) (core.Value, error) {
			ss, fail := texts(input, args, 1)
			if fail != nil {
				return fail, nil
			}
			return core.Num(float64(len(ss[0]))), nil
		})
}

func installCompare(m *module.Module) {
	pure(m, "eq", nil, nil,
		func(input core.Value, args *core.Structure, _ *core.Frame) (core.Value, error) {
			ops := operands(input, args)
			if len(ops) < 2 {
				return core.NewFailure(core.FailMissing, "eq needs two operands"), nil
			}
			return core.Bool(core.Equal(ops[0], ops[1])), nil
		})

	pure(m, "lt", nil, nil,
		func(input core.Value, args *core.Structure, _ *core.Frame) (core.Value, error) {
			ops := operands(input, args)
			if len(ops) < 2 {
				return core.NewFailure(core.FailMissing, "lt needs two operands"), nil
			}
			return core.Bool(core.Compare(ops[0], ops[1]) < 0), nil
		})
}

func installFailure(m *module.Module) {
	pure(m, "fail", nil, nil,
		func(input core.Value, args *core.Structure, _ *core.Frame) (core.Value, error) {
			ss, fail := texts(input, args, 1)
			if fail != nil {
				return fail, nil
			}
			return core.NewFailure(core.FailUser, ss[0]), nil
		})
}

func installLogging(m *module.Module) {
	impure(m, "log", nil, nil,
		func(input core.Value, _ *core.Structure, _ *core.Frame) (core.Value, error) {
			output.Info("std.log", "value", Render(input))
			return input, nil
		})
}

func installBlocks(m *module.Module, invoker Invoker) {
	if invoker == nil {
		return
	}
	doShape := &shape.Shape{Fields: []shape.Field{
		{Name: "body", Type: shape.Type{Prim: "block"}},
	}}
	impure(m, "do", doShape, nil,
		func(input core.Value, _ *core.Structure, fr *core.Frame) (core.Value, error) {
			body, _ := core.Promote(input).Get("body")
			return invoker.InvokeBlock(body.(*core.Block), core.Empty())
		})
}

// installFiles wires the file handle family: open acquires a handle
// over an afero file, read consumes it, release closes it eagerly.
func installFiles(m *module.Module, fs afero.Fs) {
	fileDef := &core.HandleDef{
		Path:   Path + ".file",
		Module: Path,
		Cleanup: func(payload any) error {
			f, ok := payload.(afero.File)
			if !ok {
				return nil
			}
			return f.Close()
		},
	}
	m.Handles["file"] = fileDef

	fileShape := &shape.Shape{Fields: []shape.Field{
		{Name: "file", Type: shape.Type{Handle: fileDef}},
	}}

	impure(m, "open", oneShape("string"), nil,
		func(input core.Value, _ *core.Structure, fr *core.Frame) (core.Value, error) {
			x, _ := core.Promote(input).Get("x")
			path := string(x.(core.String))
			f, err := fs.Open(path)
			if err != nil {
				return core.NewFailure(core.FailUser, fmt.Sprintf("open %s: %v", path, err)), nil
			}
			h := core.NewHandle(fileDef, f)
			ref := core.HandleRef{H: h}
			fr.Register(ref)
			return ref, nil
		})

	impure(m, "read", fileShape, nil,
		func(input core.Value, _ *core.Structure, _ *core.Frame) (core.Value, error) {
			v, _ := core.Promote(input).Get("file")
			h := v.(core.HandleRef).H
			f, ok := h.Payload.(afero.File)
			if !ok {
				return core.NewFailure(core.FailReleased, "file handle has no payload"), nil
			}
			data, err := io.ReadAll(f)
			if err != nil {
				return core.NewFailure(core.FailUser, fmt.Sprintf("read: %v", err)), nil
			}
			return core.String(data), nil
		})

	impure(m, "release", fileShape, nil,
		func(input core.Value, _ *core.Structure, _ *core.Frame) (core.Value, error) {
			v, _ := core.Promote(input).Get("file")
			h := v.(core.HandleRef).H
			if err := h.Release(); err != nil {
				return core.NewFailure(core.FailUser, fmt.Sprintf("release: %v", err)), nil
			}
			return core.Empty(), nil
		})

	// stash/fetch exercise handle private data; impure by contract —
	// private data is invisible to pure frames.
	stashShape := &shape.Shape{
		Fields: []shape.Field{
			{Name: "file", Type: shape.Type{Handle: fileDef}},
			{Name: "key", Type: shape.Type{Prim: "string"}},
			{Name: "value"},
		},
	}
	impure(m, "stash", stashShape, nil,
		func(input core.Value, _ *core.Structure, _ *core.Frame) (core.Value, error) {
			s := core.Promote(input)
			v, _ := s.Get("file")
			key, _ := s.Get("key")
			val, _ := s.Get("value")
			v.(core.HandleRef).H.PrivateSet(string(key.(core.String)), val)
			return input, nil
		})

	fetchShape := &shape.Shape{
		Fields: []shape.Field{
			{Name: "file", Type: shape.Type{Handle: fileDef}},
			{Name: "key", Type: shape.Type{Prim: "string"}},
		},
	}
	impure(m, "fetch", fetchShape, nil,
		func(input core.Value, _ *core.Structure, _ *core.Frame) (core.Value, error) {
			s := core.Promote(input)
			v, _ := s.Get("file")
			key, _ := s.Get("key")
			val, ok := v.(core.HandleRef).H.PrivateGet(string(key.(core.String)))
			if !ok {
				return core.NewFailure(core.FailMissing,
					fmt.Sprintf("no private entry %q", key.(core.String))), nil
			}
			return val, nil
		})
}

// Render formats a value for log output: structures as {k: v, ...},
// leaves via their natural spelling.
func Render(v core.Value) string {
	switch x := v.(type) {
	case core.Number:
		return fmt.Sprintf("%g", float64(x))
	case core.String:
		return string(x)
	case core.Bool:
		return fmt.Sprintf("%t", bool(x))
	case core.TagRef:
		return "#" + x.Def.PathString()
	case core.HandleRef:
		return "<handle " + x.H.Def.Path + ">"
	case *core.Block:
		return "<block>"
	case core.FuncRef:
		return "<func " + x.Family.FamilyModule() + "." + x.Family.FamilyName() + ">"
	case *core.Structure:
		var b strings.Builder
		b.WriteString("{")
		for i, f := range x.Fields() {
			if i > 0 {
				b.WriteString(", ")
			}
			if f.Name != "" {
				b.WriteString(f.Name)
				b.WriteString(": ")
			}
			b.WriteString(Render(f.Value))
		}
		b.WriteString("}")
		return b.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
