package tp

import (
	"fmt"
	"strings"

	"tlog.app/go/errors"
)

type (
	Type interface {
		Size() int
	}

	Int struct {
		Bits   int16
		Signed bool
	}

	Bool struct{}

	Void struct{}

	// Class is a reference to an instance of the named class.
	Class struct {
		Name string
	}

	// Array is a reference to a heap array of X.
	Array struct {
		X Type
	}
)

const RefSize = 8

func (x Int) Size() int {
	return int(x.Bits) / 8
}

func (x Bool) Size() int { return 1 }
func (x Void) Size() int { return 0 }

func (x Class) Size() int { return RefSize }
func (x Array) Size() int { return RefSize }

func (x Int) String() string {
	if x.Bits == 32 && x.Signed {
		return "int"
	}

	if x.Signed {
		return fmt.Sprintf("int%d", x.Bits)
	}

	return fmt.Sprintf("uint%d", x.Bits)
}

func (x Bool) String() string  { return "boolean" }
func (x Void) String() string  { return "void" }
func (x Class) String() string { return x.Name }
func (x Array) String() string { return fmt.Sprintf("%v[]", x.X) }

// Parse parses a type spelling: int, boolean, void, a class name, or any of those followed by [].
func Parse(s string) (Type, error) {
	s = strings.TrimSpace(s)

	if e, ok := strings.CutSuffix(s, "[]"); ok {
		x, err := Parse(e)
		if err != nil {
			return nil, err
		}

		if _, ok := x.(Void); ok {
			return nil, errors.New("array of void")
		}

		return Array{X: x}, nil
	}

	switch s {
	case "":
		return nil, errors.New("empty type")
	case "int":
		return Int{Bits: 32, Signed: true}, nil
	case "boolean":
		return Bool{}, nil
	case "void":
		return Void{}, nil
	}

	for i, r := range s {
		if r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || i != 0 && r >= '0' && r <= '9' {
			continue
		}

		return nil, errors.New("bad type name: %q", s)
	}

	return Class{Name: s}, nil
}

// Slot is the stack footprint of a value of type x: every parameter and local takes whole 8-byte slots.
func Slot(x Type) int {
	return (x.Size() + 7) &^ 7
}

func IsVoid(x Type) bool {
	_, ok := x.(Void)
	return ok
}
