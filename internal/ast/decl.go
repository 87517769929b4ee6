package ast

// StmtKind identifies a statement variant within a function or block body.
type StmtKind int

// Statement kinds. Each statement sees the enclosing function's input
// value fresh; the target decides where the statement's result lands.
const (
	// StmtOut assigns a named field of the output structure.
	StmtOut StmtKind = iota
	// StmtAppend appends an unnamed field to the output structure.
	StmtAppend
	// StmtVar binds a function-local variable (once-assigned).
	StmtVar
	// StmtContext assigns into the context scope.
	StmtContext
	// StmtModule assigns into the module scope (load time or !entry only).
	StmtModule
	// StmtBare is a bare pipeline; its value contributes an unnamed field.
	StmtBare
)

// Stmt is one statement of a function, block, or module body.
type Stmt struct {
	Kind     StmtKind
	Name     string // target name for StmtOut/StmtVar/StmtContext/StmtModule
	Strength Strength
	Value    Expr
}

// TypeRef is a shape-field type constraint. Exactly one of the members
// is set; a zero TypeRef constrains nothing.
type TypeRef struct {
	// Prim constrains to a primitive kind: "number", "string", "bool",
	// "tag", "block", "func", "struct", "any".
	Prim string

	// Tag constrains to values carrying a tag descending from this path.
	TagModule string
	Tag       []string

	// Handle constrains to live handles of this definition.
	HandleModule string
	Handle       string

	// Shape recursively constrains to a named or inline shape.
	ShapeModule string
	ShapeName   string
	Inline      *ShapeLit
}

// IsZero reports whether the reference constrains nothing.
func (t TypeRef) IsZero() bool {
	return t.Prim == "" && len(t.Tag) == 0 && t.Handle == "" && t.ShapeName == "" && t.Inline == nil
}

// ShapeField is one field of a shape literal.
type ShapeField struct {
	Name        string
	Type        TypeRef
	Default     Expr // lazily evaluated when unbound; nil = required
	Constraints []*Call
	// Array marks the field as consuming repeated positional values.
	// 0 = scalar; -1 = unbounded; n>0 = at most n.
	Array int
}

// ShapeLit is an inline shape definition.
type ShapeLit struct {
	Fields       []ShapeField
	AcceptExtras bool
}

// ShapeDecl is a named module-level shape definition.
type ShapeDecl struct {
	Name    string
	Shape   ShapeLit
	Private bool
}

// TagDecl declares a tag and its subtree. Extends names an imported
// tag path the subtree attaches to; when empty the tag is a new root
// in the declaring module.
type TagDecl struct {
	Name      string
	Value     Expr // optional constant value expression
	Generator *Call
	Children  []TagDecl
	Extends   []string
	ExtModule string
	Private   bool
}

// HandleDecl declares a handle definition. Cleanup names a function in
// the declaring module invoked with the handle's payload on release.
type HandleDecl struct {
	Name    string
	Cleanup string
	Private bool
}

// FuncDecl is one overload of a function family. Overloads sharing a
// Name form the family; definition order breaks dispatch ties.
type FuncDecl struct {
	Name     string
	Input    *ShapeLit // nil accepts any input
	Args     *ShapeLit // nil accepts any args
	Body     []Stmt
	Expr     Expr // single-expression body; exclusive with Body
	Pure     bool
	Strength Strength
	Private  bool
}

// Import binds a module path to a local alias.
type Import struct {
	Alias string
	Path  string
}

// Module is a parsed module document: four definition namespaces plus
// load-time statements and the optional !entry block.
type Module struct {
	Path    string
	Imports []Import
	Tags    []TagDecl
	Shapes  []ShapeDecl
	Handles []HandleDecl
	Funcs   []FuncDecl
	Stmts   []Stmt // module-level assignments, evaluated once at load
	Entry   *Block // runs once on first external reference, impure
}
