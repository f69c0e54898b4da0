package back

import (
	"context"

	"nikand.dev/go/heap"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/minijava/compiler/asm"
	"github.com/slowlang/minijava/compiler/asm/x64"
	"github.com/slowlang/minijava/compiler/ast"
	"github.com/slowlang/minijava/compiler/layout"
)

type (
	// Order is the order method bodies are generated in.
	Order int

	Config struct {
		Order    Order
		PageSize int32

		Translator Translator
	}

	Compiler struct {
		Config
	}

	// Translator generates the statements of a method body.
	// Every return it emits is a placeholder jmp registered with Frame.AddReturn.
	Translator interface {
		Translate(ctx context.Context, e *Emitter, f *Frame, body []ast.Stmt) error
	}

	// Emitter is the state shared by every method body of a package.
	Emitter struct {
		Asm *asm.Stream

		Runtime    Runtime
		StaticBase x64.Reg
		StaticSize int
		PageSize   int32
	}

	Result struct {
		Asm *asm.Stream

		// Entry is the code offset execution starts at.
		Entry int

		StaticSize int
		Runtime    Runtime

		// Methods in method table order.
		Methods []*ast.Method
		Main    *ast.Method
	}

	pkgContext struct {
		*Emitter
		*ast.Package

		rep *Reporter

		main      *ast.Method
		mainEntry int
	}

	jobs struct {
		heap.Heap[job]
	}

	job struct {
		seq int
		m   *ast.Method
	}
)

const (
	OrderDecl Order = iota
	OrderReverse
)

const (
	// StaticBase holds the static region base for the whole program run.
	StaticBase = x64.R15

	// StaticHeader is reserved in the data segment in addition to the static region.
	StaticHeader = 8

	DefaultPageSize = 4096
)

func DefaultConfig() Config {
	return Config{
		Order:      OrderDecl,
		PageSize:   DefaultPageSize,
		Translator: Statements{},
	}
}

func New(cfg Config) *Compiler {
	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultPageSize
	}

	if cfg.Translator == nil {
		cfg.Translator = Statements{}
	}

	return &Compiler{Config: cfg}
}

func (c *Compiler) CompilePackage(ctx context.Context, pkg *ast.Package) (_ *Result, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back: compile package", "classes", len(pkg.Classes), "order", c.Order)
	defer tr.Finish("err", &err)

	l := layout.Plan(ctx, pkg)

	s := asm.New()

	p := &pkgContext{
		Emitter: &Emitter{
			Asm:        s,
			StaticBase: StaticBase,
			StaticSize: l.StaticSize,
			PageSize:   c.PageSize,
		},
		Package:   pkg,
		rep:       &Reporter{},
		mainEntry: -1,
	}

	p.Runtime = emitRuntime(s, c.PageSize)

	if tr.If("dump_asm") {
		tr.Printw("runtime", "alloc", p.Runtime.Alloc, "free", p.Runtime.Free, "asm", string(s.AppendListingRange(nil, 0, s.Len())))
	}

	methods := reserveTable(s, pkg)

	tr.Printw("method table reserved", "methods", len(methods), "asm", s)

	claimEntryPoint(ctx, p, methods)

	q := c.queue(methods)

	for q.Len() != 0 {
		j := q.Pop()

		err = c.compileMethod(ctx, p, j.m)
		if err != nil {
			p.rep.Report(ctx, errors.Wrap(err, "method %v", j.m.FullName()))
		}
	}

	if p.main == nil {
		p.rep.Report(ctx, NoEntryPointError{})
	}

	if l := s.Pending(); len(l) != 0 && p.rep.Err() == nil {
		p.rep.Report(ctx, errors.New("instructions left unpatched: %v", l))
	}

	if err = p.rep.Err(); err != nil {
		return nil, err
	}

	tr.Printw("package compiled", "asm", s, "entry", p.mainEntry, "main", p.main.FullName())

	return &Result{
		Asm:        s,
		Entry:      p.mainEntry,
		StaticSize: l.StaticSize,
		Runtime:    p.Runtime,
		Methods:    methods,
		Main:       p.main,
	}, nil
}

func (c *Compiler) queue(methods []*ast.Method) *jobs {
	q := &jobs{}

	q.Less = func(d []job, i, j int) bool {
		if c.Order == OrderReverse {
			return d[i].seq > d[j].seq
		}

		return d[i].seq < d[j].seq
	}

	for i, m := range methods {
		q.Push(job{seq: i, m: m})
	}

	return q
}

// Code is the serialized instruction stream.
func (r *Result) Code() []byte { return r.Asm.Bytes() }

// BSS is the data segment size: the static region plus its header reservation.
func (r *Result) BSS() int { return r.StaticSize + StaticHeader }

// Target is the call target of m: its method table placeholder.
func (e *Emitter) Target(m *ast.Method) int {
	return e.Asm.Start(m.Placeholder)
}

func (o Order) String() string {
	switch o {
	case OrderDecl:
		return "decl"
	case OrderReverse:
		return "reverse"
	}

	return "unknown"
}

func ParseOrder(s string) (Order, error) {
	switch s {
	case "", "decl":
		return OrderDecl, nil
	case "reverse":
		return OrderReverse, nil
	}

	return 0, errors.New("unknown order: %q", s)
}
