package back

import (
	"context"
	"math"

	"tlog.app/go/errors"

	"github.com/slowlang/minijava/compiler/asm"
	"github.com/slowlang/minijava/compiler/asm/x64"
	"github.com/slowlang/minijava/compiler/ast"
)

type (
	// Statements is the default Translator.
	// Expressions are evaluated into rax; rcx is scratch.
	Statements struct{}

	gen struct {
		*Emitter
		f *Frame
		s *asm.Stream
	}
)

var binops = map[string]x64.Cond{
	"<":  x64.CondL,
	"<=": x64.CondLE,
	">":  x64.CondG,
	">=": x64.CondGE,
	"==": x64.CondE,
	"!=": x64.CondNE,
}

func (Statements) Translate(ctx context.Context, e *Emitter, f *Frame, body []ast.Stmt) error {
	g := &gen{Emitter: e, f: f, s: e.Asm}

	for _, x := range body {
		err := g.stmt(ctx, x)
		if err != nil {
			return err
		}
	}

	return nil
}

func (g *gen) stmt(ctx context.Context, x ast.Stmt) (err error) {
	switch x := x.(type) {
	case *ast.Block:
		g.f.OpenScope()

		for _, s := range x.Stmts {
			err = g.stmt(ctx, s)
			if err != nil {
				return err
			}
		}

		g.closeScope()
	case *ast.VarDecl:
		if x.Init != nil {
			err = g.expr(ctx, x.Init)
		} else {
			g.s.Add(x64.Xor{Dst: x64.RAX, Src: x64.RAX})
		}

		if err != nil {
			return err
		}

		x.Offset = g.f.AllocSlot()
		g.s.Add(x64.Push{R: x64.RAX})
	case *ast.Assign:
		err = g.expr(ctx, x.Value)
		if err != nil {
			return err
		}

		return g.store(ctx, x.Target)
	case *ast.Return:
		if x.Value != nil {
			err = g.expr(ctx, x.Value)
			if err != nil {
				return err
			}
		}

		g.f.AddReturn(g.s.Reserve(x64.Jmp{}))
	case *ast.ExprStmt:
		return g.expr(ctx, x.X)
	case *ast.If:
		err = g.expr(ctx, x.Cond)
		if err != nil {
			return err
		}

		g.s.Add(x64.Test{Dst: x64.RAX, Src: x64.RAX})
		skip := g.s.Reserve(x64.Jcc{Cond: x64.CondE})

		err = g.scoped(ctx, x.Then)
		if err != nil {
			return err
		}

		if x.Else == nil {
			g.patchJcc(skip, g.s.Offset())

			break
		}

		end := g.s.Reserve(x64.Jmp{})

		g.patchJcc(skip, g.s.Offset())

		err = g.scoped(ctx, x.Else)
		if err != nil {
			return err
		}

		g.patchJmp(end, g.s.Offset())
	case *ast.While:
		top := g.s.Offset()

		err = g.expr(ctx, x.Cond)
		if err != nil {
			return err
		}

		g.s.Add(x64.Test{Dst: x64.RAX, Src: x64.RAX})
		exit := g.s.Reserve(x64.Jcc{Cond: x64.CondE})

		err = g.scoped(ctx, x.Body)
		if err != nil {
			return err
		}

		g.s.Add(x64.JmpTo(g.s.Offset(), top))

		g.patchJcc(exit, g.s.Offset())
	default:
		return NewUnsupportedNode(x)
	}

	return nil
}

// scoped generates x in its own scope so locals it declares are released after it.
func (g *gen) scoped(ctx context.Context, x ast.Stmt) error {
	if x == nil {
		return nil
	}

	g.f.OpenScope()

	err := g.stmt(ctx, x)
	if err != nil {
		return err
	}

	g.closeScope()

	return nil
}

func (g *gen) closeScope() {
	if n := g.f.CloseScope(); n != 0 {
		g.s.Add(x64.AddImm{Dst: x64.RSP, Imm: int32(n)})
	}
}

func (g *gen) expr(ctx context.Context, x ast.Expr) (err error) {
	switch x := x.(type) {
	case *ast.IntLit:
		if x.Value < math.MinInt32 || x.Value > math.MaxInt32 {
			return errors.New("%v: integer literal out of range: %d", x.Pos, x.Value)
		}

		g.s.Add(x64.MovImm{Dst: x64.RAX, Imm: int32(x.Value)})
	case *ast.BoolLit:
		var v int32
		if x.Value {
			v = 1
		}

		g.s.Add(x64.MovImm{Dst: x64.RAX, Imm: v})
	case *ast.Null:
		g.s.Add(x64.Xor{Dst: x64.RAX, Src: x64.RAX})
	case *ast.This:
		return g.this(x.Pos)
	case *ast.LocalRef:
		g.s.Add(x64.Load{Dst: x64.RAX, Base: x64.RBP, Disp: int32(x.Decl.Offset), Size: 8})
	case *ast.ParamRef:
		g.s.Add(x64.Load{Dst: x64.RAX, Base: x64.RBP, Disp: int32(x.Param.Offset), Size: 8})
	case *ast.FieldRef:
		fd := x.Field

		if fd.Static {
			g.s.Add(x64.Load{Dst: x64.RAX, Base: g.StaticBase, Disp: int32(fd.Offset), Size: fd.Type.Size()})

			break
		}

		err = g.recv(ctx, x.Pos, x.Recv)
		if err != nil {
			return err
		}

		g.s.Add(x64.Load{Dst: x64.RAX, Base: x64.RAX, Disp: int32(fd.Offset), Size: fd.Type.Size()})
	case *ast.Binary:
		return g.binary(ctx, x)
	case *ast.Call:
		return g.call(ctx, x)
	case *ast.New:
		if x.Class.InstanceSize > int(g.PageSize) {
			return errors.New("%v: instance of %v takes %d bytes, more than a page (%d)", x.Pos, x.Class.Name, x.Class.InstanceSize, g.PageSize)
		}

		g.s.Add(x64.CallTo(g.s.Offset(), g.Runtime.Alloc))
	default:
		return NewUnsupportedNode(x)
	}

	return nil
}

func (g *gen) binary(ctx context.Context, x *ast.Binary) (err error) {
	err = g.expr(ctx, x.X)
	if err != nil {
		return err
	}

	g.s.Add(x64.Push{R: x64.RAX})

	err = g.expr(ctx, x.Y)
	if err != nil {
		return err
	}

	g.s.Add(x64.Mov{Dst: x64.RCX, Src: x64.RAX})
	g.s.Add(x64.Pop{R: x64.RAX})

	switch x.Op {
	case "+":
		g.s.Add(x64.Add{Dst: x64.RAX, Src: x64.RCX})
	case "-":
		g.s.Add(x64.Sub{Dst: x64.RAX, Src: x64.RCX})
	case "*":
		g.s.Add(x64.IMul{Dst: x64.RAX, Src: x64.RCX})
	default:
		cc, ok := binops[x.Op]
		if !ok {
			return errors.New("%v: unsupported operator: %q", x.Pos, x.Op)
		}

		g.s.Add(x64.Cmp{Dst: x64.RAX, Src: x64.RCX})
		g.s.Add(x64.SetCC{Cond: cc, Dst: x64.RAX})
	}

	return nil
}

// call pushes arguments last to first, then the receiver, so the first parameter
// ends up right above the receiver. The callee pops them all.
func (g *gen) call(ctx context.Context, x *ast.Call) (err error) {
	m := x.Method

	if len(x.Args) != len(m.Params) {
		return errors.New("%v: %v takes %d arguments, got %d", x.Pos, m.FullName(), len(m.Params), len(x.Args))
	}

	if m.Static && x.Recv != nil {
		return errors.New("%v: static method %v called on a receiver", x.Pos, m.FullName())
	}

	for i := len(x.Args) - 1; i >= 0; i-- {
		err = g.expr(ctx, x.Args[i])
		if err != nil {
			return errors.Wrap(err, "arg %d", i)
		}

		g.s.Add(x64.Push{R: x64.RAX})
	}

	if !m.Static {
		err = g.recv(ctx, x.Pos, x.Recv)
		if err != nil {
			return err
		}

		g.s.Add(x64.Push{R: x64.RAX})
	}

	g.s.Add(x64.CallTo(g.s.Offset(), g.Target(m)))

	return nil
}

// store writes rax to the location x.
func (g *gen) store(ctx context.Context, x ast.Expr) (err error) {
	switch x := x.(type) {
	case *ast.LocalRef:
		g.s.Add(x64.Store{Base: x64.RBP, Disp: int32(x.Decl.Offset), Src: x64.RAX, Size: 8})
	case *ast.ParamRef:
		g.s.Add(x64.Store{Base: x64.RBP, Disp: int32(x.Param.Offset), Src: x64.RAX, Size: 8})
	case *ast.FieldRef:
		fd := x.Field

		if fd.Static {
			g.s.Add(x64.Store{Base: g.StaticBase, Disp: int32(fd.Offset), Src: x64.RAX, Size: fd.Type.Size()})

			break
		}

		g.s.Add(x64.Push{R: x64.RAX})

		err = g.recv(ctx, x.Pos, x.Recv)
		if err != nil {
			return err
		}

		g.s.Add(x64.Mov{Dst: x64.RCX, Src: x64.RAX})
		g.s.Add(x64.Pop{R: x64.RAX})
		g.s.Add(x64.Store{Base: x64.RCX, Disp: int32(fd.Offset), Src: x64.RAX, Size: fd.Type.Size()})
	default:
		return errors.New("%v: not assignable: %T", x.Position(), x)
	}

	return nil
}

// recv evaluates a receiver, this if x is nil.
func (g *gen) recv(ctx context.Context, pos ast.Pos, x ast.Expr) error {
	if x == nil {
		return g.this(pos)
	}

	return g.expr(ctx, x)
}

func (g *gen) this(pos ast.Pos) error {
	if g.f.Method.Static {
		return errors.New("%v: this in static method %v", pos, g.f.Method.FullName())
	}

	g.s.Add(x64.Load{Dst: x64.RAX, Base: x64.RBP, Disp: 16, Size: 8})

	return nil
}

func (g *gen) patchJmp(i, to int) {
	g.s.Patch(i, x64.JmpTo(g.s.Start(i), to))
}

func (g *gen) patchJcc(i, to int) {
	j := g.s.Instr(i).(x64.Jcc)

	g.s.Patch(i, x64.JccTo(j.Cond, g.s.Start(i), to))
}
