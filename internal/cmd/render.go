package cmd

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/comp-lang/comp/internal/core"
	"github.com/comp-lang/comp/internal/native"
)

// renderValue formats an evaluation result for stdout.
func renderValue(v core.Value, format string) (string, error) {
	switch format {
	case "text":
		return native.Render(v), nil
	case "yaml", "":
		data, err := yaml.Marshal(valueToAny(v))
		if err != nil {
			return "", fmt.Errorf("rendering result: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown output format %q", format)
	}
}

// valueToAny maps a value onto plain Go data for YAML rendering.
// Structures with only named fields become mappings; only unnamed
// fields become sequences; mixed structures become a mapping with the
// unnamed tail under "_".
func valueToAny(v core.Value) any {
	switch x := v.(type) {
	case core.Number:
		return float64(x)
	case core.String:
		return string(x)
	case core.Bool:
		return bool(x)
	case core.TagRef:
		return "#" + x.Def.PathString()
	case core.HandleRef:
		return "<handle " + x.H.Def.Path + ">"
	case *core.Block:
		return "<block>"
	case core.FuncRef:
		return "<func " + x.Family.FamilyModule() + "." + x.Family.FamilyName() + ">"
	case *core.Structure:
		unnamed := x.Unnamed()
		if x.NamedCount() == 0 {
			seq := make([]any, 0, len(unnamed))
			for _, u := range unnamed {
				seq = append(seq, valueToAny(u))
			}
			return seq
		}
		out := map[string]any{}
		for _, f := range x.Fields() {
			if f.Name != "" {
				out[f.Name] = valueToAny(f.Value)
			}
		}
		if len(unnamed) > 0 {
			seq := make([]any, 0, len(unnamed))
			for _, u := range unnamed {
				seq = append(seq, valueToAny(u))
			}
			out["_"] = seq
		}
		return out
	default:
		return fmt.Sprintf("%v", v)
	}
}
