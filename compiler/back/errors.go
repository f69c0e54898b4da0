package back

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"tlog.app/go/tlog"

	"github.com/slowlang/minijava/compiler/ast"
)

type (
	// NoEntryPointError means no method has the entry point signature.
	NoEntryPointError struct{}

	DuplicateEntryPointError struct {
		Method string
		Pos    ast.Pos
		First  ast.Pos
	}

	UnsupportedNodeError struct {
		N ast.Node
	}

	// Reporter collects fatal diagnostics. Any of them suppresses the image.
	Reporter struct {
		errs []error
	}

	// Diagnostics is every fatal error reported during one compilation.
	Diagnostics []error
)

func (r *Reporter) Report(ctx context.Context, err error) {
	tlog.SpanFromContext(ctx).Printw("fatal", "err", err)

	r.errs = append(r.errs, err)
}

// Fatalf reports a message with optional position text.
func (r *Reporter) Fatalf(ctx context.Context, pos string, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)

	if pos != "" {
		msg = pos + ": " + msg
	}

	r.Report(ctx, diagnostic(msg))
}

func (r *Reporter) Err() error {
	if len(r.errs) == 0 {
		return nil
	}

	return Diagnostics(r.errs)
}

type diagnostic string

func (d diagnostic) Error() string { return string(d) }

func (e Diagnostics) Error() string {
	var b strings.Builder

	for i, err := range e {
		if i != 0 {
			b.WriteString("; ")
		}

		b.WriteString(err.Error())
	}

	return b.String()
}

func (e Diagnostics) Unwrap() []error { return e }

func (NoEntryPointError) Error() string { return "main method not declared" }

func (e DuplicateEntryPointError) Error() string {
	return fmt.Sprintf("%v: duplicate main method %v (first declared at %v)", e.Pos, e.Method, e.First)
}

func NewUnsupportedNode(x ast.Node) UnsupportedNodeError {
	return UnsupportedNodeError{N: x}
}

func (e UnsupportedNodeError) Error() string {
	return fmt.Sprintf("%v: unsupported node: %v", e.N.Position(), reflect.TypeOf(e.N))
}
