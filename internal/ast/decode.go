package ast

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DecodeModule decodes a serialized AST document into a Module. The
// document is the parser's output format: YAML mappings discriminated
// by a "kind" key for expressions and a "stmt" key for statements.
func DecodeModule(data []byte) (*Module, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding AST document: %w", err)
	}
	d := &decoder{}
	mod := d.module(raw)
	if d.err != nil {
		return nil, d.err
	}
	return mod, nil
}

// DecodeExpr decodes a single serialized expression. Used by `comp eval`
// and tests.
func DecodeExpr(data []byte) (Expr, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding AST expression: %w", err)
	}
	d := &decoder{}
	e := d.expr("$", raw)
	if d.err != nil {
		return nil, d.err
	}
	return e, nil
}

// decoder accumulates the first error with its document path; later
// calls are no-ops once err is set.
type decoder struct {
	err error
}

func (d *decoder) fail(path, format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%s: %s", path, fmt.Sprintf(format, args...))
	}
}

func (d *decoder) module(raw map[string]any) *Module {
	mod := &Module{Path: str(raw["module"])}
	if mod.Path == "" {
		d.fail("$", "missing module path")
		return mod
	}
	for i, ri := range list(raw["imports"]) {
		m := mapping(ri)
		mod.Imports = append(mod.Imports, Import{Alias: str(m["alias"]), Path: str(m["path"])})
		if mod.Imports[i].Path == "" {
			d.fail(fmt.Sprintf("imports[%d]", i), "missing path")
		}
	}
	for i, rt := range list(raw["tags"]) {
		mod.Tags = append(mod.Tags, d.tagDecl(fmt.Sprintf("tags[%d]", i), mapping(rt)))
	}
	for i, rs := range list(raw["shapes"]) {
		p := fmt.Sprintf("shapes[%d]", i)
		m := mapping(rs)
		mod.Shapes = append(mod.Shapes, ShapeDecl{
			Name:    str(m["name"]),
			Shape:   d.shapeLit(p, m),
			Private: boolean(m["private"]),
		})
		if mod.Shapes[i].Name == "" {
			d.fail(p, "missing name")
		}
	}
	for i, rh := range list(raw["handles"]) {
		m := mapping(rh)
		mod.Handles = append(mod.Handles, HandleDecl{
			Name:    str(m["name"]),
			Cleanup: str(m["cleanup"]),
			Private: boolean(m["private"]),
		})
		if mod.Handles[i].Name == "" {
			d.fail(fmt.Sprintf("handles[%d]", i), "missing name")
		}
	}
	for i, rf := range list(raw["funcs"]) {
		mod.Funcs = append(mod.Funcs, d.funcDecl(fmt.Sprintf("funcs[%d]", i), mapping(rf)))
	}
	for i, rs := range list(raw["stmts"]) {
		mod.Stmts = append(mod.Stmts, d.stmt(fmt.Sprintf("stmts[%d]", i), rs))
	}
	if re, ok := raw["entry"]; ok && re != nil {
		blk := &Block{}
		for i, rs := range list(re) {
			blk.Body = append(blk.Body, d.stmt(fmt.Sprintf("entry[%d]", i), rs))
		}
		mod.Entry = blk
	}
	return mod
}

func (d *decoder) tagDecl(path string, m map[string]any) TagDecl {
	decl := TagDecl{
		Name:      str(m["name"]),
		Extends:   pathSegs(m["extends"]),
		ExtModule: str(m["extModule"]),
		Private:   boolean(m["private"]),
	}
	if decl.Name == "" {
		d.fail(path, "missing name")
	}
	if rv, ok := m["value"]; ok && rv != nil {
		decl.Value = d.expr(path+".value", rv)
	}
	if rg, ok := m["generator"]; ok && rg != nil {
		e := d.expr(path+".generator", rg)
		if c, isCall := e.(*Call); isCall {
			decl.Generator = c
		} else if d.err == nil {
			d.fail(path+".generator", "generator must be a call")
		}
	}
	for i, rc := range list(m["children"]) {
		decl.Children = append(decl.Children, d.tagDecl(fmt.Sprintf("%s.children[%d]", path, i), mapping(rc)))
	}
	return decl
}

func (d *decoder) funcDecl(path string, m map[string]any) FuncDecl {
	decl := FuncDecl{
		Name:     str(m["name"]),
		Pure:     boolean(m["pure"]),
		Strength: d.strength(path, m["strength"]),
		Private:  boolean(m["private"]),
	}
	if decl.Name == "" {
		d.fail(path, "missing name")
	}
	if ri, ok := m["input"]; ok && ri != nil {
		s := d.shapeLit(path+".input", mapping(ri))
		decl.Input = &s
	}
	if ra, ok := m["args"]; ok && ra != nil {
		s := d.shapeLit(path+".args", mapping(ra))
		decl.Args = &s
	}
	if re, ok := m["expr"]; ok && re != nil {
		decl.Expr = d.expr(path+".expr", re)
	}
	for i, rs := range list(m["body"]) {
		decl.Body = append(decl.Body, d.stmt(fmt.Sprintf("%s.body[%d]", path, i), rs))
	}
	if decl.Expr != nil && len(decl.Body) > 0 {
		d.fail(path, "expr and body are exclusive")
	}
	return decl
}

func (d *decoder) shapeLit(path string, m map[string]any) ShapeLit {
	lit := ShapeLit{AcceptExtras: boolean(m["acceptExtras"])}
	for i, rf := range list(m["fields"]) {
		p := fmt.Sprintf("%s.fields[%d]", path, i)
		fm := mapping(rf)
		f := ShapeField{
			Name:  str(fm["name"]),
			Type:  d.typeRef(p+".type", fm["type"]),
			Array: integer(fm["array"]),
		}
		if rd, ok := fm["default"]; ok && rd != nil {
			f.Default = d.expr(p+".default", rd)
		}
		for j, rc := range list(fm["constraints"]) {
			e := d.expr(fmt.Sprintf("%s.constraints[%d]", p, j), rc)
			if c, isCall := e.(*Call); isCall {
				f.Constraints = append(f.Constraints, c)
			} else if d.err == nil {
				d.fail(p, "constraint must be a call")
			}
		}
		lit.Fields = append(lit.Fields, f)
	}
	return lit
}

func (d *decoder) typeRef(path string, raw any) TypeRef {
	if raw == nil {
		return TypeRef{}
	}
	if s, ok := raw.(string); ok {
		return TypeRef{Prim: s}
	}
	m := mapping(raw)
	ref := TypeRef{
		Prim:         str(m["prim"]),
		TagModule:    str(m["tagModule"]),
		Tag:          pathSegs(m["tag"]),
		HandleModule: str(m["handleModule"]),
		Handle:       str(m["handle"]),
		ShapeModule:  str(m["shapeModule"]),
		ShapeName:    str(m["shape"]),
	}
	if ri, ok := m["inline"]; ok && ri != nil {
		s := d.shapeLit(path+".inline", mapping(ri))
		ref.Inline = &s
	}
	return ref
}

func (d *decoder) stmt(path string, raw any) Stmt {
	m := mapping(raw)
	s := Stmt{
		Name:     str(m["name"]),
		Strength: d.strength(path, m["strength"]),
	}
	switch kind := str(m["stmt"]); kind {
	case "out":
		s.Kind = StmtOut
	case "append":
		s.Kind = StmtAppend
	case "var":
		s.Kind = StmtVar
	case "context":
		s.Kind = StmtContext
	case "module":
		s.Kind = StmtModule
	case "bare", "":
		s.Kind = StmtBare
	default:
		d.fail(path, "unknown statement kind %q", kind)
	}
	switch s.Kind {
	case StmtOut, StmtVar, StmtContext, StmtModule:
		if s.Name == "" {
			d.fail(path, "statement requires a name")
		}
	}
	if rv, ok := m["value"]; ok && rv != nil {
		s.Value = d.expr(path+".value", rv)
	} else {
		d.fail(path, "missing value")
	}
	return s
}

func (d *decoder) expr(path string, raw any) Expr {
	if raw == nil {
		d.fail(path, "missing expression")
		return nil
	}
	// Scalar shorthands for literals.
	switch v := raw.(type) {
	case bool:
		return &BoolLit{Value: v}
	case int:
		return &NumberLit{Value: float64(v)}
	case int64:
		return &NumberLit{Value: float64(v)}
	case float64:
		return &NumberLit{Value: v}
	case string:
		return &StringLit{Value: v}
	}
	m := mapping(raw)
	kind := str(m["kind"])
	switch kind {
	case "number":
		return &NumberLit{Value: number(m["value"])}
	case "string":
		return &StringLit{Value: str(m["value"])}
	case "bool":
		return &BoolLit{Value: boolean(m["value"])}
	case "tag":
		t := &TagLit{Module: str(m["module"]), Path: pathSegs(m["path"])}
		if len(t.Path) == 0 {
			d.fail(path, "tag requires a path")
		}
		return t
	case "ident":
		return &Ident{Scope: d.scope(path, m["scope"]), Name: str(m["name"])}
	case "access":
		a := &Access{Base: d.expr(path+".base", m["base"]), Name: str(m["name"])}
		if a.Name == "" {
			a.Index = integer(m["index"])
		}
		return a
	case "struct":
		lit := &StructLit{Lazy: boolean(m["lazy"])}
		for i, rf := range list(m["fields"]) {
			p := fmt.Sprintf("%s.fields[%d]", path, i)
			fm := mapping(rf)
			lit.Fields = append(lit.Fields, Field{
				Name:     str(fm["name"]),
				Strength: d.strength(p, fm["strength"]),
				Value:    d.expr(p+".value", fm["value"]),
			})
		}
		return lit
	case "pipeline":
		p := &Pipeline{}
		if rs, ok := m["seed"]; ok && rs != nil {
			p.Seed = d.expr(path+".seed", rs)
		}
		for i, ro := range list(m["ops"]) {
			p.Ops = append(p.Ops, d.expr(fmt.Sprintf("%s.ops[%d]", path, i), ro))
		}
		return p
	case "call":
		c := &Call{Module: str(m["module"]), Name: str(m["name"]), Dispatch: str(m["dispatch"])}
		if c.Name == "" {
			d.fail(path, "call requires a name")
		}
		if ra, ok := m["args"]; ok && ra != nil {
			c.Args = d.expr(path+".args", ra)
		}
		return c
	case "block":
		blk := &Block{}
		for i, rs := range list(m["body"]) {
			blk.Body = append(blk.Body, d.stmt(fmt.Sprintf("%s.body[%d]", path, i), rs))
		}
		return blk
	case "morph":
		return &Morph{Shape: d.typeRef(path+".shape", m["shape"]), Variant: d.morphVariant(path, m["variant"])}
	case "fallback":
		return &Fallback{Handler: d.expr(path+".handler", m["handler"])}
	case "disarm":
		return &Disarm{Value: d.expr(path+".value", m["value"])}
	case "spread":
		return &Spread{Value: d.expr(path+".value", m["value"]), Strength: d.strength(path, m["strength"])}
	case "placeholder":
		return &Placeholder{}
	case "funcref":
		f := &FuncRef{Module: str(m["module"]), Name: str(m["name"])}
		if f.Name == "" {
			d.fail(path, "funcref requires a name")
		}
		return f
	default:
		d.fail(path, "unknown expression kind %q", kind)
		return nil
	}
}

func (d *decoder) strength(path string, raw any) Strength {
	switch str(raw) {
	case "", "normal":
		return Normal
	case "weak":
		return Weak
	case "strong":
		return Strong
	default:
		d.fail(path, "unknown strength %q", str(raw))
		return Normal
	}
}

func (d *decoder) morphVariant(path string, raw any) MorphVariant {
	switch str(raw) {
	case "", "normal":
		return MorphNormal
	case "strong":
		return MorphStrong
	case "weak":
		return MorphWeak
	case "extras":
		return MorphExtras
	default:
		d.fail(path, "unknown morph variant %q", str(raw))
		return MorphNormal
	}
}

func (d *decoder) scope(path string, raw any) ScopeKind {
	switch str(raw) {
	case "", "unqualified":
		return ScopeUnqualified
	case "input":
		return ScopeInput
	case "variable":
		return ScopeVariable
	case "argument":
		return ScopeArgument
	case "context":
		return ScopeContext
	case "module":
		return ScopeModule
	case "pipe":
		return ScopePipe
	default:
		d.fail(path, "unknown scope %q", str(raw))
		return ScopeUnqualified
	}
}

// Loose accessors over the decoded YAML tree. YAML unmarshals mappings
// as map[string]any and sequences as []any; missing keys read as zero.

func mapping(raw any) map[string]any {
	if m, ok := raw.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func list(raw any) []any {
	if l, ok := raw.([]any); ok {
		return l
	}
	return nil
}

func str(raw any) string {
	if s, ok := raw.(string); ok {
		return s
	}
	return ""
}

func boolean(raw any) bool {
	if b, ok := raw.(bool); ok {
		return b
	}
	return false
}

func integer(raw any) int {
	switch v := raw.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func number(raw any) float64 {
	switch v := raw.(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	}
	return 0
}

// pathSegs accepts either a dotted string or a string sequence.
func pathSegs(raw any) []string {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return nil
		}
		return strings.Split(v, ".")
	case []any:
		segs := make([]string, 0, len(v))
		for _, s := range v {
			segs = append(segs, str(s))
		}
		return segs
	}
	return nil
}
