package back

import (
	"github.com/slowlang/minijava/compiler/asm"
	"github.com/slowlang/minijava/compiler/asm/x64"
	"github.com/slowlang/minijava/compiler/ast"
)

// reserveTable appends a placeholder jmp for every method.
// Call sites target the placeholder, so they never need patching;
// the placeholder itself is patched once its method body starts.
func reserveTable(s *asm.Stream, pkg *ast.Package) (ms []*ast.Method) {
	for _, c := range pkg.Classes {
		for _, m := range c.Methods {
			m.Placeholder = s.Reserve(x64.Jmp{})
			m.Entry = -1
			m.EntryPoint = false

			ms = append(ms, m)
		}
	}

	return ms
}
