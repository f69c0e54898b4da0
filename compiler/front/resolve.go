package front

import (
	"context"
	"fmt"

	"tlog.app/go/tlog"

	"github.com/slowlang/minijava/compiler/ast"
	"github.com/slowlang/minijava/compiler/tp"
)

type (
	resolver struct {
		file string

		classes map[string]*ast.Class
		methods int

		// per method
		m      *ast.Method
		params map[string]*ast.Param
		scopes []map[string]*ast.VarDecl
	}
)

// builtin class names usable as types without a declaration.
var builtin = map[string]bool{
	"String": true,
}

func newResolver(file string) *resolver {
	return &resolver{
		file:    file,
		classes: map[string]*ast.Class{},
	}
}

func (r *resolver) errorf(p posDesc, format string, args ...interface{}) error {
	return Error{Pos: p.pos(r.file), Msg: fmt.Sprintf(format, args...)}
}

func (r *resolver) pkg(ctx context.Context, d *desc) (*ast.Package, error) {
	pkg := &ast.Package{}

	// declarations first, so bodies can refer to anything declared later
	for i := range d.Class {
		cd := &d.Class[i]

		if cd.Name == "" {
			return nil, r.errorf(cd.posDesc, "class without a name")
		}

		if r.classes[cd.Name] != nil || builtin[cd.Name] {
			return nil, r.errorf(cd.posDesc, "class %v redeclared", cd.Name)
		}

		cl := &ast.Class{Base: r.base(cd.posDesc), Name: cd.Name}

		r.classes[cl.Name] = cl
		pkg.Classes = append(pkg.Classes, cl)
	}

	for i := range d.Class {
		err := r.members(&d.Class[i], pkg.Classes[i])
		if err != nil {
			return nil, err
		}
	}

	for i := range d.Class {
		cd := &d.Class[i]
		cl := pkg.Classes[i]

		for j := range cd.Method {
			err := r.body(ctx, &cd.Method[j], cl.Methods[j])
			if err != nil {
				return nil, err
			}
		}
	}

	return pkg, nil
}

func (r *resolver) members(cd *classDesc, cl *ast.Class) error {
	seen := map[string]bool{}

	for _, fd := range cd.Field {
		if fd.Name == "" || seen[fd.Name] {
			return r.errorf(fd.posDesc, "bad or duplicate field name in %v: %q", cl.Name, fd.Name)
		}

		seen[fd.Name] = true

		t, err := r.typ(fd.posDesc, fd.Type)
		if err != nil {
			return err
		}

		if tp.IsVoid(t) {
			return r.errorf(fd.posDesc, "field %v.%v of type void", cl.Name, fd.Name)
		}

		cl.Fields = append(cl.Fields, &ast.Field{
			Base:    r.base(fd.posDesc),
			Class:   cl,
			Name:    fd.Name,
			Type:    t,
			Static:  fd.Static,
			Private: fd.Private,
		})
	}

	seen = map[string]bool{}

	for _, md := range cd.Method {
		if md.Name == "" || seen[md.Name] {
			return r.errorf(md.posDesc, "bad or duplicate method name in %v: %q", cl.Name, md.Name)
		}

		seen[md.Name] = true

		t, err := r.typ(md.posDesc, md.Type)
		if err != nil {
			return err
		}

		m := &ast.Method{
			Base:    r.base(md.posDesc),
			Class:   cl,
			Name:    md.Name,
			Type:    t,
			Static:  md.Static,
			Private: md.Private,
			Entry:   -1,
		}

		pseen := map[string]bool{}

		for _, pd := range md.Params {
			if pd.Name == "" || pseen[pd.Name] {
				return r.errorf(pd.posDesc, "bad or duplicate parameter name in %v: %q", m.FullName(), pd.Name)
			}

			pseen[pd.Name] = true

			pt, err := r.typ(pd.posDesc, pd.Type)
			if err != nil {
				return err
			}

			m.Params = append(m.Params, &ast.Param{Base: r.base(pd.posDesc), Name: pd.Name, Type: pt})
		}

		cl.Methods = append(cl.Methods, m)
		r.methods++
	}

	return nil
}

func (r *resolver) typ(p posDesc, s string) (tp.Type, error) {
	t, err := tp.Parse(s)
	if err != nil {
		return nil, r.errorf(p, "type %q: %v", s, err)
	}

	base := t
	for {
		a, ok := base.(tp.Array)
		if !ok {
			break
		}

		base = a.X
	}

	if c, ok := base.(tp.Class); ok && r.classes[c.Name] == nil && !builtin[c.Name] {
		return nil, r.errorf(p, "undefined type: %v", c.Name)
	}

	return t, nil
}

func (r *resolver) body(ctx context.Context, md *methodDesc, m *ast.Method) (err error) {
	r.m = m
	r.params = map[string]*ast.Param{}
	r.scopes = []map[string]*ast.VarDecl{{}}

	for _, p := range m.Params {
		r.params[p.Name] = p
	}

	m.Body, err = r.stmts(md.Body)
	if err != nil {
		return err
	}

	if tr := tlog.SpanFromContext(ctx); tr.If("front") {
		tr.Printw("method bound", "method", m.FullName(), "stmts", len(m.Body))
	}

	return nil
}

func (r *resolver) base(p posDesc) ast.Base {
	return ast.Base{Pos: p.pos(r.file)}
}
