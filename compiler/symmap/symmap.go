// Package symmap is the symbol map written next to an executable.
// It tells a debugger or a test harness where every method and runtime stub landed.
package symmap

import (
	"github.com/fxamacker/cbor/v2"
	"tlog.app/go/errors"

	"github.com/slowlang/minijava/compiler/back"
	"github.com/slowlang/minijava/compiler/exe"
)

type (
	Map struct {
		Entry uint64 `cbor:"1,keyasint"`

		Alloc uint64 `cbor:"2,keyasint"`
		Free  uint64 `cbor:"3,keyasint"`

		StaticSize int `cbor:"4,keyasint"`

		Methods []Method `cbor:"5,keyasint"`
	}

	Method struct {
		Class  string `cbor:"1,keyasint"`
		Name   string `cbor:"2,keyasint"`
		Static bool   `cbor:"3,keyasint,omitempty"`

		// Slot is the method table index.
		Slot        int    `cbor:"4,keyasint"`
		Placeholder uint64 `cbor:"5,keyasint"`
		Entry       uint64 `cbor:"6,keyasint"`
	}
)

var encMode cbor.EncMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// FromResult collects the addresses of a compiled package as loaded by exe.
func FromResult(r *back.Result) *Map {
	addr := func(off int) uint64 { return exe.CodeAddr() + uint64(off) }

	m := &Map{
		Entry:      addr(r.Entry),
		Alloc:      addr(r.Runtime.Alloc),
		Free:       addr(r.Runtime.Free),
		StaticSize: r.StaticSize,
	}

	for i, x := range r.Methods {
		m.Methods = append(m.Methods, Method{
			Class:       x.Class.Name,
			Name:        x.Name,
			Static:      x.Static,
			Slot:        i,
			Placeholder: addr(r.Asm.Start(x.Placeholder)),
			Entry:       addr(x.Entry),
		})
	}

	return m
}

func Encode(m *Map) ([]byte, error) {
	data, err := encMode.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "marshal symbol map")
	}

	return data, nil
}

func Decode(data []byte) (*Map, error) {
	var m Map

	err := cbor.Unmarshal(data, &m)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal symbol map")
	}

	return &m, nil
}

// Lookup finds a method by its Class.name.
func (m *Map) Lookup(full string) (Method, bool) {
	for _, x := range m.Methods {
		if x.FullName() == full {
			return x, true
		}
	}

	return Method{}, false
}

func (x Method) FullName() string { return x.Class + "." + x.Name }
