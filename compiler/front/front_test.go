package front

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/minijava/compiler/ast"
	"github.com/slowlang/minijava/compiler/tp"
)

const counter = `
[[class]]
name = "Main"
line = 1

[[class.method]]
name = "main"
type = "void"
static = true
line = 2
params = [{ name = "args", type = "String[]" }]
body = [
  { kind = "var", name = "c", type = "Counter", value = { kind = "new", class = "Counter" } },
  { kind = "expr", line = 4, value = { kind = "call", class = "Counter", name = "add", recv = { kind = "ref", name = "c" }, args = [{ kind = "int", int = 5 }] } },
]

[[class]]
name = "Counter"

[[class.field]]
name = "total"
type = "int"

[[class.field]]
name = "created"
type = "int"
static = true

[[class.method]]
name = "add"
type = "int"
params = [{ name = "n", type = "int" }]
body = [
  { kind = "assign", target = { kind = "ref", name = "total" }, value = { kind = "binary", op = "+", x = { kind = "ref", name = "total" }, y = { kind = "ref", name = "n" } } },
  { kind = "if", cond = { kind = "binary", op = ">", x = { kind = "ref", name = "total" }, y = { kind = "int", int = 10 } }, then = [{ kind = "var", name = "t", type = "int", value = { kind = "field", name = "total", recv = { kind = "this" } } }, { kind = "return", value = { kind = "ref", name = "t" } }] },
  { kind = "while", cond = { kind = "bool", bool = false }, body = [] },
  { kind = "return", value = { kind = "ref", name = "created" } },
]
`

func TestDecode(t *testing.T) {
	pkg, err := Decode(context.Background(), "counter.toml", []byte(counter))
	require.NoError(t, err)

	require.Len(t, pkg.Classes, 2)

	mainc, cnt := pkg.Classes[0], pkg.Classes[1]

	assert.Equal(t, "Main", mainc.Name)
	assert.Equal(t, ast.Pos{File: "counter.toml", Line: 1}, mainc.Pos)

	require.Len(t, mainc.Methods, 1)
	m := mainc.Methods[0]

	assert.Equal(t, "Main.main", m.FullName())
	assert.Equal(t, -1, m.Entry)
	assert.Equal(t, tp.Array{X: tp.Class{Name: "String"}}, m.Params[0].Type)
	require.Len(t, m.Body, 2)

	v := m.Body[0].(*ast.VarDecl)
	assert.Equal(t, tp.Class{Name: "Counter"}, v.Type)
	assert.Equal(t, cnt, v.Init.(*ast.New).Class)

	call := m.Body[1].(*ast.ExprStmt).X.(*ast.Call)
	assert.Equal(t, 4, call.Pos.Line)
	assert.Same(t, cnt.Methods[0], call.Method)
	assert.Same(t, v, call.Recv.(*ast.LocalRef).Decl)
	assert.Equal(t, []ast.Expr{&ast.IntLit{Base: ast.Base{Pos: ast.Pos{File: "counter.toml", Line: 4}}, Value: 5}}, call.Args, "position of the statement")
	assert.Equal(t, 4, call.Recv.Position().Line)

	require.Len(t, cnt.Fields, 2)
	assert.True(t, cnt.Fields[1].Static)
	assert.Same(t, cnt, cnt.Fields[0].Class)

	add := cnt.Methods[0]
	require.Len(t, add.Body, 4)

	as := add.Body[0].(*ast.Assign)
	assert.Same(t, cnt.Fields[0], as.Target.(*ast.FieldRef).Field)
	assert.Nil(t, as.Target.(*ast.FieldRef).Recv)
	assert.Same(t, add.Params[0], as.Value.(*ast.Binary).Y.(*ast.ParamRef).Param)

	iff := add.Body[1].(*ast.If)
	assert.Nil(t, iff.Else)

	then := iff.Then.(*ast.Block)
	require.Len(t, then.Stmts, 2)
	assert.IsType(t, &ast.This{}, then.Stmts[0].(*ast.VarDecl).Init.(*ast.FieldRef).Recv)
	assert.Same(t, then.Stmts[0], then.Stmts[1].(*ast.Return).Value.(*ast.LocalRef).Decl)

	wh := add.Body[2].(*ast.While)
	assert.Empty(t, wh.Body.(*ast.Block).Stmts)

	ret := add.Body[3].(*ast.Return)
	assert.Same(t, cnt.Fields[1], ret.Value.(*ast.FieldRef).Field)
}

func TestDecodeFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "p.toml")

	err := os.WriteFile(name, []byte(counter), 0o644)
	require.NoError(t, err)

	pkg, err := DecodeFile(context.Background(), name)
	require.NoError(t, err)
	assert.Equal(t, name, pkg.Classes[0].Pos.File)

	_, err = DecodeFile(context.Background(), name+".missing")
	assert.Error(t, err)
}

func TestScopes(t *testing.T) {
	const text = `
[[class]]
name = "A"

[[class.method]]
name = "f"
type = "void"
static = true
body = [
  { kind = "block", stmts = [{ kind = "var", name = "x", type = "int" }] },
  { kind = "var", name = "x", type = "boolean" },
]
`

	pkg, err := Decode(context.Background(), "", []byte(text))
	require.NoError(t, err)

	body := pkg.Classes[0].Methods[0].Body
	assert.Equal(t, tp.Bool{}, body[1].(*ast.VarDecl).Type, "x is free again after its block")
}

func TestDecodeErrors(t *testing.T) {
	for name, text := range map[string]string{
		"syntax":        `[[class]`,
		"unknown key":   "[[class]]\nname = \"A\"\ncolor = 1\n",
		"no name":       "[[class]]\n",
		"dup class":     "[[class]]\nname = \"A\"\n[[class]]\nname = \"A\"\n",
		"builtin class": "[[class]]\nname = \"String\"\n",
		"dup field":     "[[class]]\nname = \"A\"\n[[class.field]]\nname = \"x\"\ntype = \"int\"\n[[class.field]]\nname = \"x\"\ntype = \"int\"\n",
		"void field":    "[[class]]\nname = \"A\"\n[[class.field]]\nname = \"x\"\ntype = \"void\"\n",
		"bad type":      "[[class]]\nname = \"A\"\n[[class.field]]\nname = \"x\"\ntype = \"B\"\n",
		"dup method":    "[[class]]\nname = \"A\"\n[[class.method]]\nname = \"f\"\ntype = \"void\"\n[[class.method]]\nname = \"f\"\ntype = \"void\"\n",
		"dup param":     "[[class]]\nname = \"A\"\n[[class.method]]\nname = \"f\"\ntype = \"void\"\nparams = [{name = \"a\", type = \"int\"}, {name = \"a\", type = \"int\"}]\n",
		"undefined":     "[[class]]\nname = \"A\"\n[[class.method]]\nname = \"f\"\ntype = \"void\"\nbody = [{kind = \"expr\", value = {kind = \"ref\", name = \"y\"}}]\n",
		"redeclared":    "[[class]]\nname = \"A\"\n[[class.method]]\nname = \"f\"\ntype = \"void\"\nparams = [{name = \"a\", type = \"int\"}]\nbody = [{kind = \"var\", name = \"a\", type = \"int\"}]\n",
		"stmt kind":     "[[class]]\nname = \"A\"\n[[class.method]]\nname = \"f\"\ntype = \"void\"\nbody = [{kind = \"goto\"}]\n",
		"expr kind":     "[[class]]\nname = \"A\"\n[[class.method]]\nname = \"f\"\ntype = \"void\"\nbody = [{kind = \"expr\", value = {kind = \"lambda\"}}]\n",
		"no method":     "[[class]]\nname = \"A\"\n[[class.method]]\nname = \"f\"\ntype = \"void\"\nbody = [{kind = \"expr\", value = {kind = \"call\", name = \"g\"}}]\n",
		"no field":      "[[class]]\nname = \"A\"\n[[class.method]]\nname = \"f\"\ntype = \"void\"\nbody = [{kind = \"expr\", value = {kind = \"field\", name = \"g\"}}]\n",
		"new unknown":   "[[class]]\nname = \"A\"\n[[class.method]]\nname = \"f\"\ntype = \"void\"\nbody = [{kind = \"expr\", value = {kind = \"new\", class = \"B\"}}]\n",
		"missing value": "[[class]]\nname = \"A\"\n[[class.method]]\nname = \"f\"\ntype = \"void\"\nbody = [{kind = \"expr\"}]\n",
		"no op":         "[[class]]\nname = \"A\"\n[[class.method]]\nname = \"f\"\ntype = \"void\"\nbody = [{kind = \"expr\", value = {kind = \"binary\", x = {kind = \"int\"}, y = {kind = \"int\"}}}]\n",
	} {
		_, err := Decode(context.Background(), "bad.toml", []byte(text))
		assert.Error(t, err, name)
	}
}

func TestExprInheritsPosition(t *testing.T) {
	const text = `
[[class]]
name = "A"

[[class.method]]
name = "f"
type = "int"
static = true
body = [
  { kind = "var", line = 3, col = 2, name = "v", type = "int", value = { kind = "binary", op = "+", x = { kind = "int", int = 1 }, y = { kind = "int", line = 4, col = 7, int = 2 } } },
  { kind = "return", line = 5, value = { kind = "ref", name = "v" } },
]
`

	pkg, err := Decode(context.Background(), "a.toml", []byte(text))
	require.NoError(t, err)

	body := pkg.Classes[0].Methods[0].Body

	bin := body[0].(*ast.VarDecl).Init.(*ast.Binary)
	assert.Equal(t, ast.Pos{File: "a.toml", Line: 3, Col: 2}, bin.Pos)
	assert.Equal(t, ast.Pos{File: "a.toml", Line: 3, Col: 2}, bin.X.Position())
	assert.Equal(t, ast.Pos{File: "a.toml", Line: 4, Col: 7}, bin.Y.Position(), "own position wins")

	assert.Equal(t, 5, body[1].(*ast.Return).Value.Position().Line)
}

func TestErrorPosition(t *testing.T) {
	const text = `
[[class]]
name = "A"

[[class.method]]
name = "f"
type = "void"
body = [{ kind = "expr", line = 7, col = 3, value = { kind = "ref", line = 7, col = 9, name = "nope" } }]
`

	_, err := Decode(context.Background(), "a.toml", []byte(text))
	require.Error(t, err)

	var fe Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ast.Pos{File: "a.toml", Line: 7, Col: 9}, fe.Pos)
	assert.Equal(t, "a.toml:7:9: undefined: nope", err.Error())
}
