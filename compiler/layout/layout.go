package layout

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/slowlang/minijava/compiler/ast"
)

type (
	// Layout is the result of planning storage for a package.
	Layout struct {
		// StaticRaw is the sum of static field sizes.
		StaticRaw int
		// StaticSize is StaticRaw rounded up to a multiple of 8.
		StaticSize int
	}
)

// Plan assigns every field its offset and every class its instance size.
// Static fields of all classes share one region; instance fields are laid out per class.
// Offsets follow declaration order.
func Plan(ctx context.Context, pkg *ast.Package) (l Layout) {
	tr := tlog.SpanFromContext(ctx)

	static := 0

	for _, c := range pkg.Classes {
		inst := 0

		for _, f := range c.Fields {
			size := f.Type.Size()

			if f.Static {
				f.Offset = static
				static += size
			} else {
				f.Offset = inst
				inst += size
			}

			tr.V("layout").Printw("field", "class", c.Name, "field", f.Name, "static", f.Static, "size", size, "offset", f.Offset)
		}

		c.InstanceSize = inst
	}

	l.StaticRaw = static
	l.StaticSize = RoundUp(static, 8)

	tr.Printw("layout planned", "classes", len(pkg.Classes), "static_raw", l.StaticRaw, "static_size", l.StaticSize)

	return l
}

func RoundUp(x, a int) int {
	return (x + a - 1) &^ (a - 1)
}
