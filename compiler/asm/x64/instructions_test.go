package x64

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncoding(t *testing.T) {
	for _, tc := range []struct {
		X   Instr
		Exp []byte
	}{
		{Push{R: RBP}, []byte{0x55}},
		{Push{R: R15}, []byte{0x41, 0x57}},
		{Pop{R: RBP}, []byte{0x5d}},
		{Pop{R: R12}, []byte{0x41, 0x5c}},
		{Mov{Dst: RBP, Src: RSP}, []byte{0x48, 0x89, 0xe5}},
		{Mov{Dst: RSP, Src: RBP}, []byte{0x48, 0x89, 0xec}},
		{Mov{Dst: R15, Src: RSP}, []byte{0x49, 0x89, 0xe7}},
		{Mov{Dst: RCX, Src: RAX}, []byte{0x48, 0x89, 0xc1}},
		{MovImm{Dst: RAX, Imm: 9}, []byte{0x48, 0xc7, 0xc0, 9, 0, 0, 0}},
		{MovImm{Dst: R10, Imm: 0x22}, []byte{0x49, 0xc7, 0xc2, 0x22, 0, 0, 0}},
		{MovImm{Dst: R8, Imm: -1}, []byte{0x49, 0xc7, 0xc0, 0xff, 0xff, 0xff, 0xff}},
		{Xor{Dst: RDI, Src: RDI}, []byte{0x48, 0x31, 0xff}},
		{Xor{Dst: R9, Src: R9}, []byte{0x4d, 0x31, 0xc9}},
		{Add{Dst: RAX, Src: RCX}, []byte{0x48, 0x01, 0xc8}},
		{Sub{Dst: RAX, Src: RCX}, []byte{0x48, 0x29, 0xc8}},
		{IMul{Dst: RAX, Src: RCX}, []byte{0x48, 0x0f, 0xaf, 0xc1}},
		{Cmp{Dst: RAX, Src: RCX}, []byte{0x48, 0x39, 0xc8}},
		{Test{Dst: RAX, Src: RAX}, []byte{0x48, 0x85, 0xc0}},
		{SubImm{Dst: RSP, Imm: 16}, []byte{0x48, 0x81, 0xec, 16, 0, 0, 0}},
		{AddImm{Dst: RSP, Imm: 8}, []byte{0x48, 0x81, 0xc4, 8, 0, 0, 0}},
		{SetCC{Cond: CondL, Dst: RAX}, []byte{0x40, 0x0f, 0x9c, 0xc0, 0x48, 0x0f, 0xb6, 0xc0}},
		{Load{Dst: RAX, Base: RBP, Disp: 16, Size: 8}, []byte{0x48, 0x8b, 0x85, 16, 0, 0, 0}},
		{Load{Dst: RAX, Base: RBP, Disp: -8, Size: 8}, []byte{0x48, 0x8b, 0x85, 0xf8, 0xff, 0xff, 0xff}},
		{Load{Dst: RAX, Base: R15, Disp: 4, Size: 4}, []byte{0x49, 0x63, 0x87, 4, 0, 0, 0}},
		{Load{Dst: RAX, Base: RAX, Disp: 1, Size: 1}, []byte{0x48, 0x0f, 0xb6, 0x80, 1, 0, 0, 0}},
		{Load{Dst: RAX, Base: RSP, Disp: 0, Size: 8}, []byte{0x48, 0x8b, 0x84, 0x24, 0, 0, 0, 0}},
		{Store{Base: RBP, Disp: -16, Src: RAX, Size: 8}, []byte{0x48, 0x89, 0x85, 0xf0, 0xff, 0xff, 0xff}},
		{Store{Base: RCX, Disp: 8, Src: RAX, Size: 4}, []byte{0x40, 0x89, 0x81, 8, 0, 0, 0}},
		{Store{Base: R15, Disp: 0, Src: RAX, Size: 1}, []byte{0x41, 0x88, 0x87, 0, 0, 0, 0}},
		{Syscall{}, []byte{0x0f, 0x05}},
		{Ret{}, []byte{0xc3}},
		{Ret{Pop: 24}, []byte{0xc2, 24, 0}},
		{Jmp{Rel: -5}, []byte{0xe9, 0xfb, 0xff, 0xff, 0xff}},
		{Jcc{Cond: CondE, Rel: 16}, []byte{0x0f, 0x84, 16, 0, 0, 0}},
		{Call{Rel: 0x100}, []byte{0xe8, 0, 1, 0, 0}},
	} {
		assert.Equal(t, tc.Exp, tc.X.Append(nil), "%v", tc.X)
	}
}

func TestBranchWidthFixed(t *testing.T) {
	for _, rel := range []int32{0, 1, -1, 127, -128, 1 << 20, -(1 << 30)} {
		assert.Len(t, Jmp{Rel: rel}.Append(nil), JmpSize)
		assert.Len(t, Jcc{Cond: CondNE, Rel: rel}.Append(nil), JccSize)
		assert.Len(t, Call{Rel: rel}.Append(nil), CallSize)
	}
}

func TestRelativeTargets(t *testing.T) {
	assert.Equal(t, Jmp{Rel: 95}, JmpTo(0, 100))
	assert.Equal(t, Jmp{Rel: -15}, JmpTo(10, 0))
	assert.Equal(t, Jcc{Cond: CondE, Rel: 14}, JccTo(CondE, 10, 30))
	assert.Equal(t, Call{Rel: -25}, CallTo(20, 0))
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "mov rbp, rsp", Mov{Dst: RBP, Src: RSP}.String())
	assert.Equal(t, "mov64 rax, [r15+8]", Load{Dst: RAX, Base: R15, Disp: 8, Size: 8}.String())
	assert.Equal(t, "ret 16", Ret{Pop: 16}.String())
	assert.Equal(t, "jne +6", Jcc{Cond: CondNE, Rel: 6}.String())
}
