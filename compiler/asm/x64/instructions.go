package x64

import (
	"encoding/binary"
	"fmt"
)

type (
	Reg  int
	Cond byte

	Instr interface {
		Append(b []byte) []byte
	}

	Push struct{ R Reg }
	Pop  struct{ R Reg }

	// Mov is mov Dst, Src.
	Mov struct{ Dst, Src Reg }

	// MovImm is mov Dst, sign-extended imm32. Always 7 bytes.
	MovImm struct {
		Dst Reg
		Imm int32
	}

	Xor  struct{ Dst, Src Reg }
	Add  struct{ Dst, Src Reg }
	Sub  struct{ Dst, Src Reg }
	IMul struct{ Dst, Src Reg }
	Cmp  struct{ Dst, Src Reg }
	Test struct{ Dst, Src Reg }

	// AddImm and SubImm always carry a full imm32.
	AddImm struct {
		Dst Reg
		Imm int32
	}

	SubImm struct {
		Dst Reg
		Imm int32
	}

	// SetCC sets Dst to 0 or 1 by the flags: setcc Dst8 then movzx Dst, Dst8.
	SetCC struct {
		Cond Cond
		Dst  Reg
	}

	// Load is Dst = [Base+Disp] of Size bytes; 4 byte loads sign-extend, 1 byte loads zero-extend.
	Load struct {
		Dst  Reg
		Base Reg
		Disp int32
		Size int
	}

	// Store is [Base+Disp] = low Size bytes of Src.
	Store struct {
		Base Reg
		Disp int32
		Src  Reg
		Size int
	}

	Syscall struct{}

	// Ret pops Pop extra bytes after the return address if non-zero.
	Ret struct{ Pop uint16 }

	// Jmp is jmp rel32, relative to the end of the instruction. Always 5 bytes.
	Jmp struct{ Rel int32 }

	// Jcc is a conditional jmp rel32. Always 6 bytes.
	Jcc struct {
		Cond Cond
		Rel  int32
	}

	// Call is call rel32. Always 5 bytes.
	Call struct{ Rel int32 }
)

const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

const (
	CondE  Cond = 0x4
	CondNE Cond = 0x5
	CondL  Cond = 0xc
	CondGE Cond = 0xd
	CondLE Cond = 0xe
	CondG  Cond = 0xf
)

const (
	JmpSize  = 5
	JccSize  = 6
	CallSize = 5
)

var regNames = [...]string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"}

var condNames = map[Cond]string{CondE: "e", CondNE: "ne", CondL: "l", CondGE: "ge", CondLE: "le", CondG: "g"}

// JmpTo is a jmp placed at from targeting to.
func JmpTo(from, to int) Jmp {
	return Jmp{Rel: int32(to - (from + JmpSize))}
}

func JccTo(c Cond, from, to int) Jcc {
	return Jcc{Cond: c, Rel: int32(to - (from + JccSize))}
}

func CallTo(from, to int) Call {
	return Call{Rel: int32(to - (from + CallSize))}
}

func rex(w bool, r, b Reg) byte {
	x := byte(0x40)

	if w {
		x |= 0x08
	}
	if r >= 8 {
		x |= 0x04
	}
	if b >= 8 {
		x |= 0x01
	}

	return x
}

func modrmRR(reg, rm Reg) byte {
	return 0xc0 | byte(reg&7)<<3 | byte(rm&7)
}

// appendMem appends modrm [+sib] + disp32 for [base+disp].
func appendMem(b []byte, reg, base Reg, disp int32) []byte {
	b = append(b, 0x80|byte(reg&7)<<3|byte(base&7))

	if base&7 == RSP {
		b = append(b, 0x24)
	}

	return binary.LittleEndian.AppendUint32(b, uint32(disp))
}

func appendRR(b []byte, op byte, reg, rm Reg) []byte {
	return append(b, rex(true, reg, rm), op, modrmRR(reg, rm))
}

func (x Push) Append(b []byte) []byte {
	if x.R >= 8 {
		b = append(b, 0x41)
	}

	return append(b, 0x50+byte(x.R&7))
}

func (x Pop) Append(b []byte) []byte {
	if x.R >= 8 {
		b = append(b, 0x41)
	}

	return append(b, 0x58+byte(x.R&7))
}

func (x Mov) Append(b []byte) []byte  { return appendRR(b, 0x89, x.Src, x.Dst) }
func (x Xor) Append(b []byte) []byte  { return appendRR(b, 0x31, x.Src, x.Dst) }
func (x Add) Append(b []byte) []byte  { return appendRR(b, 0x01, x.Src, x.Dst) }
func (x Sub) Append(b []byte) []byte  { return appendRR(b, 0x29, x.Src, x.Dst) }
func (x Cmp) Append(b []byte) []byte  { return appendRR(b, 0x39, x.Src, x.Dst) }
func (x Test) Append(b []byte) []byte { return appendRR(b, 0x85, x.Src, x.Dst) }

func (x IMul) Append(b []byte) []byte {
	return append(b, rex(true, x.Dst, x.Src), 0x0f, 0xaf, modrmRR(x.Dst, x.Src))
}

func (x MovImm) Append(b []byte) []byte {
	b = append(b, rex(true, 0, x.Dst), 0xc7, modrmRR(0, x.Dst))
	return binary.LittleEndian.AppendUint32(b, uint32(x.Imm))
}

func (x AddImm) Append(b []byte) []byte {
	b = append(b, rex(true, 0, x.Dst), 0x81, modrmRR(0, x.Dst))
	return binary.LittleEndian.AppendUint32(b, uint32(x.Imm))
}

func (x SubImm) Append(b []byte) []byte {
	b = append(b, rex(true, 0, x.Dst), 0x81, modrmRR(5, x.Dst))
	return binary.LittleEndian.AppendUint32(b, uint32(x.Imm))
}

func (x SetCC) Append(b []byte) []byte {
	b = append(b, rex(false, 0, x.Dst), 0x0f, 0x90|byte(x.Cond), modrmRR(0, x.Dst))
	return append(b, rex(true, x.Dst, x.Dst), 0x0f, 0xb6, modrmRR(x.Dst, x.Dst))
}

func (x Load) Append(b []byte) []byte {
	switch x.Size {
	case 8:
		b = append(b, rex(true, x.Dst, x.Base), 0x8b)
	case 4:
		b = append(b, rex(true, x.Dst, x.Base), 0x63)
	case 1:
		b = append(b, rex(true, x.Dst, x.Base), 0x0f, 0xb6)
	default:
		panic(fmt.Sprintf("load: unsupported size %d", x.Size))
	}

	return appendMem(b, x.Dst, x.Base, x.Disp)
}

func (x Store) Append(b []byte) []byte {
	switch x.Size {
	case 8:
		b = append(b, rex(true, x.Src, x.Base), 0x89)
	case 4:
		b = append(b, rex(false, x.Src, x.Base), 0x89)
	case 1:
		b = append(b, rex(false, x.Src, x.Base), 0x88)
	default:
		panic(fmt.Sprintf("store: unsupported size %d", x.Size))
	}

	return appendMem(b, x.Src, x.Base, x.Disp)
}

func (x Syscall) Append(b []byte) []byte { return append(b, 0x0f, 0x05) }

func (x Ret) Append(b []byte) []byte {
	if x.Pop == 0 {
		return append(b, 0xc3)
	}

	return binary.LittleEndian.AppendUint16(append(b, 0xc2), x.Pop)
}

func (x Jmp) Append(b []byte) []byte {
	return binary.LittleEndian.AppendUint32(append(b, 0xe9), uint32(x.Rel))
}

func (x Jcc) Append(b []byte) []byte {
	return binary.LittleEndian.AppendUint32(append(b, 0x0f, 0x80|byte(x.Cond)), uint32(x.Rel))
}

func (x Call) Append(b []byte) []byte {
	return binary.LittleEndian.AppendUint32(append(b, 0xe8), uint32(x.Rel))
}

func (r Reg) String() string {
	if r < 0 || int(r) >= len(regNames) {
		return fmt.Sprintf("reg%d", int(r))
	}

	return regNames[r]
}

func (c Cond) String() string {
	if n, ok := condNames[c]; ok {
		return n
	}

	return fmt.Sprintf("cc%x", byte(c))
}

func (x Push) String() string    { return fmt.Sprintf("push %v", x.R) }
func (x Pop) String() string     { return fmt.Sprintf("pop %v", x.R) }
func (x Mov) String() string     { return fmt.Sprintf("mov %v, %v", x.Dst, x.Src) }
func (x MovImm) String() string  { return fmt.Sprintf("mov %v, %d", x.Dst, x.Imm) }
func (x Xor) String() string     { return fmt.Sprintf("xor %v, %v", x.Dst, x.Src) }
func (x Add) String() string     { return fmt.Sprintf("add %v, %v", x.Dst, x.Src) }
func (x Sub) String() string     { return fmt.Sprintf("sub %v, %v", x.Dst, x.Src) }
func (x IMul) String() string    { return fmt.Sprintf("imul %v, %v", x.Dst, x.Src) }
func (x Cmp) String() string     { return fmt.Sprintf("cmp %v, %v", x.Dst, x.Src) }
func (x Test) String() string    { return fmt.Sprintf("test %v, %v", x.Dst, x.Src) }
func (x AddImm) String() string  { return fmt.Sprintf("add %v, %d", x.Dst, x.Imm) }
func (x SubImm) String() string  { return fmt.Sprintf("sub %v, %d", x.Dst, x.Imm) }
func (x SetCC) String() string   { return fmt.Sprintf("set%v %v", x.Cond, x.Dst) }
func (x Syscall) String() string { return "syscall" }
func (x Jmp) String() string     { return fmt.Sprintf("jmp %+d", x.Rel) }
func (x Jcc) String() string     { return fmt.Sprintf("j%v %+d", x.Cond, x.Rel) }
func (x Call) String() string    { return fmt.Sprintf("call %+d", x.Rel) }

func (x Load) String() string {
	return fmt.Sprintf("mov%d %v, [%v%+d]", x.Size*8, x.Dst, x.Base, x.Disp)
}

func (x Store) String() string {
	return fmt.Sprintf("mov%d [%v%+d], %v", x.Size*8, x.Base, x.Disp, x.Src)
}

func (x Ret) String() string {
	if x.Pop == 0 {
		return "ret"
	}

	return fmt.Sprintf("ret %d", x.Pop)
}
