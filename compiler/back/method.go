package back

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/minijava/compiler/asm/x64"
	"github.com/slowlang/minijava/compiler/ast"
	"github.com/slowlang/minijava/compiler/tp"
)

type (
	// Frame is the addressing state of the method being generated.
	//
	// Stack layout after the prologue:
	//
	//	[params...] [this] [return addr] [old rbp] [locals...]
	//	            rbp+16               rbp       rbp-8
	Frame struct {
		Method *ast.Method

		// Returns are stream indexes of return jmps, patched to the epilogue.
		Returns []int

		scopes []int
		next   int
	}
)

func newFrame(m *ast.Method) *Frame {
	return &Frame{
		Method: m,
		scopes: []int{0},
		next:   -8,
	}
}

// claimEntryPoint marks the first entry point candidate in declaration order.
// Later candidates are reported as duplicates whatever the generation order is.
func claimEntryPoint(ctx context.Context, p *pkgContext, methods []*ast.Method) {
	for _, m := range methods {
		if !IsEntryPoint(m) {
			continue
		}

		if p.main != nil {
			p.rep.Report(ctx, DuplicateEntryPointError{Method: m.FullName(), Pos: m.Pos, First: p.main.Pos})
			continue
		}

		p.main = m
		m.EntryPoint = true
	}
}

// IsEntryPoint reports whether m has the signature public static void main(String[] args).
func IsEntryPoint(m *ast.Method) bool {
	if m.Name != "main" || !m.Static || m.Private || !tp.IsVoid(m.Type) || len(m.Params) != 1 {
		return false
	}

	a, ok := m.Params[0].Type.(tp.Array)
	if !ok {
		return false
	}

	c, ok := a.X.(tp.Class)

	return ok && c.Name == "String"
}

func (c *Compiler) compileMethod(ctx context.Context, p *pkgContext, m *ast.Method) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile method", "name", m.FullName(), "pos", m.Pos)
	defer tr.Finish("err", &err)

	if m.Entry != -1 {
		return errors.New("method generated twice")
	}

	s := p.Asm
	f := newFrame(m)

	s.Mark()

	if m.EntryPoint {
		p.mainEntry = s.Offset()

		if p.StaticSize > 0 {
			s.Add(x64.SubImm{Dst: x64.RSP, Imm: int32(p.StaticSize)})
			s.Add(x64.Mov{Dst: p.StaticBase, Src: x64.RSP})
		}
	}

	m.Entry = s.Offset()
	s.Patch(m.Placeholder, x64.JmpTo(s.Start(m.Placeholder), m.Entry))

	emitPrologue(s)

	off := 16
	if !m.Static {
		off += 8
	}

	for _, prm := range m.Params {
		prm.Offset = off
		off += 8
	}

	err = c.Translator.Translate(ctx, p.Emitter, f, m.Body)
	if err != nil {
		return errors.Wrap(err, "body")
	}

	epilogue := s.Offset()

	for _, i := range f.Returns {
		s.Patch(i, x64.JmpTo(s.Start(i), epilogue))
	}

	emitLeave(s)

	if m.EntryPoint {
		s.Add(x64.MovImm{Dst: x64.RAX, Imm: sysExit})
		s.Add(x64.Xor{Dst: x64.RDI, Src: x64.RDI})
		s.Add(x64.Syscall{})
	} else {
		s.Add(x64.Ret{Pop: uint16(8 * m.Slots())})
	}

	tr.Printw("method generated", "entry", m.Entry, "returns", len(f.Returns), "epilogue", epilogue, "main", m.EntryPoint)

	if tr.If("dump_asm") {
		tr.Printw("listing", "asm", string(s.AppendListing(nil)))
	}

	return nil
}

// AddReturn registers return jmp i to be patched to the epilogue.
func (f *Frame) AddReturn(i int) {
	f.Returns = append(f.Returns, i)
}

// OpenScope starts a block of locals.
func (f *Frame) OpenScope() {
	f.scopes = append(f.scopes, 0)
}

// CloseScope ends the innermost block and returns the number of bytes its locals take on the stack.
func (f *Frame) CloseScope() (size int) {
	l := len(f.scopes) - 1
	if l == 0 {
		panic("close of method scope")
	}

	size = f.scopes[l]
	f.scopes = f.scopes[:l]
	f.next += size

	return size
}

// AllocSlot takes the next 8-byte local slot and returns its frame offset.
// The caller pushes the value right after.
func (f *Frame) AllocSlot() int {
	off := f.next

	f.next -= 8
	f.scopes[len(f.scopes)-1] += 8

	return off
}

// Depth is the number of open scopes including the method scope.
func (f *Frame) Depth() int { return len(f.scopes) }

// StackSize is the bytes of locals currently allocated.
func (f *Frame) StackSize() int { return -8 - f.next }
