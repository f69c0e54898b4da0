package compiler

import (
	"context"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/minijava/compiler/back"
	"github.com/slowlang/minijava/compiler/exe"
	"github.com/slowlang/minijava/compiler/front"
)

func CompileFile(ctx context.Context, name string, cfg back.Config) (*back.Result, error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Compile(ctx, name, text, cfg)
}

func Compile(ctx context.Context, name string, text []byte, cfg back.Config) (*back.Result, error) {
	pkg, err := front.Decode(ctx, name, text)
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	res, err := back.New(cfg).CompilePackage(ctx, pkg)
	if err != nil {
		return nil, errors.Wrap(err, "compile")
	}

	return res, nil
}

// Link makes the executable image out of a compiled package.
func Link(r *back.Result) exe.Image {
	return exe.Image{
		Code:  r.Code(),
		Entry: r.Entry,
		BSS:   r.BSS(),
	}
}
