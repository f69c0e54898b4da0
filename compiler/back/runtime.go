package back

import (
	"github.com/slowlang/minijava/compiler/asm"
	"github.com/slowlang/minijava/compiler/asm/x64"
)

type (
	// Runtime holds the code offsets of the runtime stubs.
	//
	// Alloc maps one page and returns its base in rax.
	// Free unmaps the page at rdi.
	// Both are reached with call and take nothing on the stack.
	Runtime struct {
		Alloc int
		Free  int
	}
)

const (
	sysMmap   = 9
	sysMunmap = 11
	sysExit   = 60

	protReadWrite       = 0x3
	mapPrivateAnonymous = 0x22
)

// emitRuntime must run first: nothing it emits depends on later code.
func emitRuntime(s *asm.Stream, page int32) (rt Runtime) {
	rt.Alloc = s.Offset()

	emitPrologue(s)

	s.Add(x64.MovImm{Dst: x64.RAX, Imm: sysMmap})
	s.Add(x64.Xor{Dst: x64.RDI, Src: x64.RDI})                // addr
	s.Add(x64.MovImm{Dst: x64.RSI, Imm: page})                // len
	s.Add(x64.MovImm{Dst: x64.RDX, Imm: protReadWrite})       // prot
	s.Add(x64.MovImm{Dst: x64.R10, Imm: mapPrivateAnonymous}) // flags
	s.Add(x64.MovImm{Dst: x64.R8, Imm: -1})                   // fd
	s.Add(x64.Xor{Dst: x64.R9, Src: x64.R9})                  // offset
	s.Add(x64.Syscall{})

	emitLeave(s)
	s.Add(x64.Ret{})

	rt.Free = s.Offset()

	emitPrologue(s)

	s.Add(x64.MovImm{Dst: x64.RAX, Imm: sysMunmap})
	s.Add(x64.MovImm{Dst: x64.RSI, Imm: page})
	s.Add(x64.Syscall{})

	emitLeave(s)
	s.Add(x64.Ret{})

	return rt
}

func emitPrologue(s *asm.Stream) {
	s.Add(x64.Push{R: x64.RBP})
	s.Add(x64.Mov{Dst: x64.RBP, Src: x64.RSP})
}

func emitLeave(s *asm.Stream) {
	s.Add(x64.Mov{Dst: x64.RSP, Src: x64.RBP})
	s.Add(x64.Pop{R: x64.RBP})
}
