// Package front decodes a typed syntax tree description into ast.
//
// The description is TOML: a list of classes with their fields and methods,
// method bodies are nested statement and expression tables.
// Every name is bound to its declaration here, so back gets a fully resolved tree.
//
//	[[class]]
//	name = "Main"
//
//	[[class.method]]
//	name = "main"
//	type = "void"
//	static = true
//	params = [{ name = "args", type = "String[]" }]
//	body = [
//	  { kind = "var", name = "i", type = "int", value = { kind = "int", int = 3 } },
//	]
package front

import (
	"context"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/minijava/compiler/ast"
)

type (
	Error struct {
		Pos ast.Pos
		Msg string
	}

	desc struct {
		Class []classDesc `toml:"class"`
	}

	classDesc struct {
		posDesc

		Name   string       `toml:"name"`
		Field  []fieldDesc  `toml:"field"`
		Method []methodDesc `toml:"method"`
	}

	fieldDesc struct {
		posDesc

		Name    string `toml:"name"`
		Type    string `toml:"type"`
		Static  bool   `toml:"static"`
		Private bool   `toml:"private"`
	}

	methodDesc struct {
		posDesc

		Name    string      `toml:"name"`
		Type    string      `toml:"type"`
		Static  bool        `toml:"static"`
		Private bool        `toml:"private"`
		Params  []paramDesc `toml:"params"`
		Body    []stmtDesc  `toml:"body"`
	}

	paramDesc struct {
		posDesc

		Name string `toml:"name"`
		Type string `toml:"type"`
	}

	stmtDesc struct {
		posDesc

		Kind string `toml:"kind"`

		Name   string     `toml:"name"`
		Type   string     `toml:"type"`
		Target *exprDesc  `toml:"target"`
		Value  *exprDesc  `toml:"value"`
		Cond   *exprDesc  `toml:"cond"`
		Stmts  []stmtDesc `toml:"stmts"`
		Then   []stmtDesc `toml:"then"`
		Else   []stmtDesc `toml:"else"`
		Body   []stmtDesc `toml:"body"`
	}

	exprDesc struct {
		posDesc

		Kind string `toml:"kind"`

		Int  int64  `toml:"int"`
		Bool bool   `toml:"bool"`
		Op   string `toml:"op"`

		// Name is a variable, field or method name for refs, fields and calls.
		Name string `toml:"name"`
		// Class qualifies fields and calls, the current class if empty. Class to construct for new.
		Class string `toml:"class"`

		Recv *exprDesc  `toml:"recv"`
		X    *exprDesc  `toml:"x"`
		Y    *exprDesc  `toml:"y"`
		Args []exprDesc `toml:"args"`
	}

	posDesc struct {
		Line int `toml:"line"`
		Col  int `toml:"col"`
	}
)

func DecodeFile(ctx context.Context, name string) (*ast.Package, error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	return Decode(ctx, name, text)
}

// Decode decodes the description and binds every reference.
// name is used in positions only.
func Decode(ctx context.Context, name string, text []byte) (pkg *ast.Package, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "front: decode", "file", name, "size", len(text))
	defer tr.Finish("err", &err)

	var d desc

	md, err := toml.Decode(string(text), &d)
	if err != nil {
		return nil, errors.Wrap(err, "decode %v", name)
	}

	if u := md.Undecoded(); len(u) != 0 {
		return nil, errors.New("%v: unknown key: %v", name, u[0])
	}

	r := newResolver(name)

	pkg, err = r.pkg(ctx, &d)
	if err != nil {
		return nil, err
	}

	tr.Printw("package decoded", "classes", len(pkg.Classes), "methods", r.methods)

	return pkg, nil
}

func (e Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Pos, e.Msg)
}

func (p posDesc) pos(file string) ast.Pos {
	return ast.Pos{File: file, Line: p.Line, Col: p.Col}
}
