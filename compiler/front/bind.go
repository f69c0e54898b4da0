package front

import (
	"github.com/slowlang/minijava/compiler/ast"
)

func (r *resolver) stmts(l []stmtDesc) (res []ast.Stmt, err error) {
	for i := range l {
		s, err := r.stmt(&l[i])
		if err != nil {
			return nil, err
		}

		res = append(res, s)
	}

	return res, nil
}

// block binds l in its own scope. Empty l is nil.
func (r *resolver) block(p posDesc, l []stmtDesc) (ast.Stmt, error) {
	if l == nil {
		return nil, nil
	}

	r.scopes = append(r.scopes, map[string]*ast.VarDecl{})
	defer func() { r.scopes = r.scopes[:len(r.scopes)-1] }()

	ss, err := r.stmts(l)
	if err != nil {
		return nil, err
	}

	return &ast.Block{Base: r.base(p), Stmts: ss}, nil
}

func (r *resolver) stmt(d *stmtDesc) (_ ast.Stmt, err error) {
	b := r.base(d.posDesc)

	switch d.Kind {
	case "block":
		if d.Stmts == nil {
			d.Stmts = []stmtDesc{}
		}

		return r.block(d.posDesc, d.Stmts)
	case "var":
		x := &ast.VarDecl{Base: b, Name: d.Name}

		if d.Name == "" {
			return nil, r.errorf(d.posDesc, "variable without a name")
		}

		if r.local(d.Name) != nil || r.params[d.Name] != nil {
			return nil, r.errorf(d.posDesc, "variable %v redeclared", d.Name)
		}

		x.Type, err = r.typ(d.posDesc, d.Type)
		if err != nil {
			return nil, err
		}

		if d.Value != nil {
			x.Init, err = r.expr(d.Value, d.posDesc)
			if err != nil {
				return nil, err
			}
		}

		r.scopes[len(r.scopes)-1][d.Name] = x

		return x, nil
	case "assign":
		x := &ast.Assign{Base: b}

		x.Target, err = r.required(d.posDesc, "target", d.Target)
		if err != nil {
			return nil, err
		}

		x.Value, err = r.required(d.posDesc, "value", d.Value)
		if err != nil {
			return nil, err
		}

		return x, nil
	case "return":
		x := &ast.Return{Base: b}

		if d.Value != nil {
			x.Value, err = r.expr(d.Value, d.posDesc)
			if err != nil {
				return nil, err
			}
		}

		return x, nil
	case "expr":
		x := &ast.ExprStmt{Base: b}

		x.X, err = r.required(d.posDesc, "value", d.Value)
		if err != nil {
			return nil, err
		}

		return x, nil
	case "if":
		x := &ast.If{Base: b}

		x.Cond, err = r.required(d.posDesc, "cond", d.Cond)
		if err != nil {
			return nil, err
		}

		x.Then, err = r.block(d.posDesc, nonNil(d.Then))
		if err != nil {
			return nil, err
		}

		x.Else, err = r.block(d.posDesc, d.Else)
		if err != nil {
			return nil, err
		}

		return x, nil
	case "while":
		x := &ast.While{Base: b}

		x.Cond, err = r.required(d.posDesc, "cond", d.Cond)
		if err != nil {
			return nil, err
		}

		x.Body, err = r.block(d.posDesc, nonNil(d.Body))
		if err != nil {
			return nil, err
		}

		return x, nil
	case "":
		return nil, r.errorf(d.posDesc, "statement without a kind")
	}

	return nil, r.errorf(d.posDesc, "unknown statement kind: %q", d.Kind)
}

func (r *resolver) required(p posDesc, what string, d *exprDesc) (ast.Expr, error) {
	if d == nil {
		return nil, r.errorf(p, "missing %v", what)
	}

	return r.expr(d, p)
}

// expr binds d. Expressions without a line of their own take the position of the enclosing node.
func (r *resolver) expr(d *exprDesc, parent posDesc) (_ ast.Expr, err error) {
	if d.Line == 0 {
		d.posDesc = parent
	}

	b := r.base(d.posDesc)

	switch d.Kind {
	case "int":
		return &ast.IntLit{Base: b, Value: d.Int}, nil
	case "bool":
		return &ast.BoolLit{Base: b, Value: d.Bool}, nil
	case "null":
		return &ast.Null{Base: b}, nil
	case "this":
		return &ast.This{Base: b}, nil
	case "ref":
		if x := r.local(d.Name); x != nil {
			return &ast.LocalRef{Base: b, Decl: x}, nil
		}

		if x := r.params[d.Name]; x != nil {
			return &ast.ParamRef{Base: b, Param: x}, nil
		}

		for _, f := range r.m.Class.Fields {
			if f.Name == d.Name {
				return &ast.FieldRef{Base: b, Field: f}, nil
			}
		}

		return nil, r.errorf(d.posDesc, "undefined: %v", d.Name)
	case "field":
		x := &ast.FieldRef{Base: b}

		cl, err := r.class(d)
		if err != nil {
			return nil, err
		}

		for _, f := range cl.Fields {
			if f.Name == d.Name {
				x.Field = f
			}
		}

		if x.Field == nil {
			return nil, r.errorf(d.posDesc, "%v has no field %v", cl.Name, d.Name)
		}

		x.Recv, err = r.optional(d.posDesc, d.Recv)
		if err != nil {
			return nil, err
		}

		return x, nil
	case "call":
		x := &ast.Call{Base: b}

		cl, err := r.class(d)
		if err != nil {
			return nil, err
		}

		for _, m := range cl.Methods {
			if m.Name == d.Name {
				x.Method = m
			}
		}

		if x.Method == nil {
			return nil, r.errorf(d.posDesc, "%v has no method %v", cl.Name, d.Name)
		}

		x.Recv, err = r.optional(d.posDesc, d.Recv)
		if err != nil {
			return nil, err
		}

		for i := range d.Args {
			a, err := r.expr(&d.Args[i], d.posDesc)
			if err != nil {
				return nil, err
			}

			x.Args = append(x.Args, a)
		}

		return x, nil
	case "new":
		cl := r.classes[d.Class]
		if cl == nil {
			return nil, r.errorf(d.posDesc, "undefined class: %q", d.Class)
		}

		return &ast.New{Base: b, Class: cl}, nil
	case "binary":
		x := &ast.Binary{Base: b, Op: d.Op}

		if d.Op == "" {
			return nil, r.errorf(d.posDesc, "binary expression without an operator")
		}

		x.X, err = r.required(d.posDesc, "x", d.X)
		if err != nil {
			return nil, err
		}

		x.Y, err = r.required(d.posDesc, "y", d.Y)
		if err != nil {
			return nil, err
		}

		return x, nil
	case "":
		return nil, r.errorf(d.posDesc, "expression without a kind")
	}

	return nil, r.errorf(d.posDesc, "unknown expression kind: %q", d.Kind)
}

func (r *resolver) optional(p posDesc, d *exprDesc) (ast.Expr, error) {
	if d == nil {
		return nil, nil
	}

	return r.expr(d, p)
}

// class is the class qualifying a field or call, the current one by default.
func (r *resolver) class(d *exprDesc) (*ast.Class, error) {
	if d.Class == "" {
		return r.m.Class, nil
	}

	cl := r.classes[d.Class]
	if cl == nil {
		return nil, r.errorf(d.posDesc, "undefined class: %q", d.Class)
	}

	return cl, nil
}

func (r *resolver) local(name string) *ast.VarDecl {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if x := r.scopes[i][name]; x != nil {
			return x
		}
	}

	return nil
}

func nonNil(l []stmtDesc) []stmtDesc {
	if l == nil {
		return []stmtDesc{}
	}

	return l
}
