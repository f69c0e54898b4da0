package ast

import (
	"fmt"

	"github.com/slowlang/minijava/compiler/tp"
)

type (
	Node interface {
		Position() Pos
	}

	Pos struct {
		File string
		Line int
		Col  int
	}

	Base struct {
		Pos Pos
	}

	Package struct {
		Classes []*Class
	}

	Class struct {
		Base `tlog:",embed"`

		Name    string
		Fields  []*Field
		Methods []*Method

		// InstanceSize is the sum of non-static field sizes, set by the layout pass.
		InstanceSize int
	}

	Field struct {
		Base `tlog:",embed"`

		Class *Class
		Name  string
		Type  tp.Type

		Static  bool
		Private bool

		// Offset is into the static region for static fields,
		// into an instance of Class otherwise.
		Offset int
	}

	Method struct {
		Base `tlog:",embed"`

		Class *Class
		Name  string
		Type  tp.Type

		Static  bool
		Private bool

		Params []*Param
		Body   []Stmt

		// Placeholder is the instruction stream index of the method table jump.
		Placeholder int
		// Entry is the byte offset of the first instruction of the body, -1 until generated.
		Entry int

		EntryPoint bool
	}

	Param struct {
		Base `tlog:",embed"`

		Name string
		Type tp.Type

		// Offset is relative to the frame pointer.
		Offset int
	}

	Stmt interface {
		Node
	}

	Expr interface {
		Node
	}

	Block struct {
		Base `tlog:",embed"`

		Stmts []Stmt
	}

	VarDecl struct {
		Base `tlog:",embed"`

		Name string
		Type tp.Type
		Init Expr

		Offset int
	}

	Assign struct {
		Base `tlog:",embed"`

		Target Expr
		Value  Expr
	}

	Return struct {
		Base `tlog:",embed"`

		Value Expr
	}

	ExprStmt struct {
		Base `tlog:",embed"`

		X Expr
	}

	If struct {
		Base `tlog:",embed"`

		Cond Expr
		Then Stmt
		Else Stmt
	}

	While struct {
		Base `tlog:",embed"`

		Cond Expr
		Body Stmt
	}

	IntLit struct {
		Base `tlog:",embed"`

		Value int64
	}

	BoolLit struct {
		Base `tlog:",embed"`

		Value bool
	}

	Null struct {
		Base `tlog:",embed"`
	}

	This struct {
		Base `tlog:",embed"`
	}

	LocalRef struct {
		Base `tlog:",embed"`

		Decl *VarDecl
	}

	ParamRef struct {
		Base `tlog:",embed"`

		Param *Param
	}

	// FieldRef with a nil Recv refers to a static field or to a field of this.
	FieldRef struct {
		Base `tlog:",embed"`

		Recv  Expr
		Field *Field
	}

	Binary struct {
		Base `tlog:",embed"`

		Op   string
		X, Y Expr
	}

	// Call with a nil Recv on an instance method calls it on this.
	Call struct {
		Base `tlog:",embed"`

		Recv   Expr
		Method *Method
		Args   []Expr
	}

	New struct {
		Base `tlog:",embed"`

		Class *Class
	}
)

func (b Base) Position() Pos { return b.Pos }

func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}

	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

func (m *Method) FullName() string {
	if m.Class == nil {
		return m.Name
	}

	return m.Class.Name + "." + m.Name
}

// Slots is the number of 8-byte stack slots the caller pushes: parameters plus the receiver.
func (m *Method) Slots() int {
	n := len(m.Params)

	if !m.Static {
		n++
	}

	return n
}
