package asm

import (
	"fmt"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/loc"
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/minijava/compiler/set"
)

type (
	Instr interface {
		Append(b []byte) []byte
	}

	// Stream is an append-only list of encoded instructions.
	// Instructions are never moved, only rewritten in place by Patch.
	Stream struct {
		b   []byte
		ins []entry

		// pending are reserved instructions not yet patched.
		pending set.Bits[int]

		mark int
	}

	entry struct {
		x    Instr
		off  int
		size int
	}

	// PatchSizeError means an instruction was replaced by one of a different encoded length.
	// It's an internal defect and is raised with panic.
	PatchSizeError struct {
		Index int
		Old   int
		New   int
		From  loc.PC
	}
)

func New() *Stream {
	return &Stream{}
}

// Add appends x and returns its index.
func (s *Stream) Add(x Instr) int {
	off := len(s.b)
	s.b = x.Append(s.b)

	s.ins = append(s.ins, entry{x: x, off: off, size: len(s.b) - off})

	return len(s.ins) - 1
}

// Reserve appends placeholder x to be patched later with its real operands.
func (s *Stream) Reserve(x Instr) int {
	i := s.Add(x)

	s.pending.Set(i)

	return i
}

// Pending returns reserved instructions not patched yet.
func (s *Stream) Pending() []int { return s.pending.Append(nil) }

// Offset is where the next instruction lands.
func (s *Stream) Offset() int { return len(s.b) }

// Len is the number of instructions.
func (s *Stream) Len() int { return len(s.ins) }

// Start is the byte offset of instruction i.
func (s *Stream) Start(i int) int { return s.ins[i].off }

func (s *Stream) Size(i int) int { return s.ins[i].size }

func (s *Stream) Instr(i int) Instr { return s.ins[i].x }

// Patch replaces instruction i with x.
// x must encode to exactly the same number of bytes.
func (s *Stream) Patch(i int, x Instr) {
	e := &s.ins[i]

	var buf [16]byte
	enc := x.Append(buf[:0])

	if len(enc) != e.size {
		panic(PatchSizeError{Index: i, Old: e.size, New: len(enc), From: loc.Caller(1)})
	}

	copy(s.b[e.off:], enc)
	e.x = x

	s.pending.Clear(i)
}

// Bytes returns the serialized stream. The result aliases the stream until the next Add.
func (s *Stream) Bytes() []byte { return s.b }

// Mark remembers the current instruction index for AppendListing.
func (s *Stream) Mark() { s.mark = len(s.ins) }

// AppendListing appends a listing of instructions added since the last Mark.
func (s *Stream) AppendListing(b []byte) []byte {
	return s.AppendListingRange(b, s.mark, len(s.ins))
}

func (s *Stream) AppendListingRange(b []byte, from, to int) []byte {
	for i := from; i < to; i++ {
		e := s.ins[i]

		b = hfmt.Appendf(b, "%5d  %06x  %-24x  %v\n", i, e.off, s.b[e.off:e.off+e.size], e.x)
	}

	return b
}

func (s *Stream) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	b = e.AppendTag(b, tlwire.Map, 3)

	b = e.AppendString(b, "instrs")
	b = e.AppendInt(b, len(s.ins))

	b = e.AppendString(b, "bytes")
	b = e.AppendInt(b, len(s.b))

	b = e.AppendString(b, "pending")
	b = s.pending.TlogAppend(b)

	return b
}

func (e PatchSizeError) Error() string {
	return fmt.Sprintf("patch instruction %d: encoded size %d, want %d (from %v)", e.Index, e.New, e.Old, e.From)
}
