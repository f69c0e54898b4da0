package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nikandfor/hacked/hfmt"
	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/minijava/compiler"
	"github.com/slowlang/minijava/compiler/back"
	"github.com/slowlang/minijava/compiler/exe"
	"github.com/slowlang/minijava/compiler/symmap"
)

func main() {
	compileCmd := &cli.Command{
		Name:        "compile",
		Description: "compile typed tree description into an executable",
		Action:      compileAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("output,o", "a.out", "executable to write"),
			cli.NewFlag("map", "", "symbol map to write (cbor)"),
			cli.NewFlag("order", "decl", "method body generation order: decl or reverse"),
		},
	}

	listingCmd := &cli.Command{
		Name:        "listing",
		Description: "print the annotated instruction listing",
		Action:      listingAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("order", "decl", "method body generation order: decl or reverse"),
		},
	}

	symbolsCmd := &cli.Command{
		Name:        "symbols",
		Description: "print a symbol map",
		Action:      symbolsAct,
		Args:        cli.Args{},
	}

	app := &cli.Command{
		Name:        "mjc",
		Description: "mjc compiles resolved MiniJava syntax trees into x86-64 Linux executables",
		Before:      before,
		Flags: []*cli.Flag{
			cli.NewFlag("verbosity,v", "", "logger verbosity topics (dump_asm, layout, front)"),
			cli.HelpFlag,
		},
		Commands: []*cli.Command{
			compileCmd,
			listingCmd,
			symbolsCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func before(c *cli.Command) error {
	tlog.SetVerbosity(c.String("verbosity"))

	return nil
}

func config(c *cli.Command) (cfg back.Config, err error) {
	cfg = back.DefaultConfig()

	cfg.Order, err = back.ParseOrder(c.String("order"))
	if err != nil {
		return cfg, errors.Wrap(err, "order flag")
	}

	return cfg, nil
}

func compileAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	if len(c.Args) != 1 {
		return errors.New("expected one input file")
	}

	cfg, err := config(c)
	if err != nil {
		return err
	}

	res, err := compiler.CompileFile(ctx, c.Args[0], cfg)
	if err != nil {
		return errors.Wrap(err, "compile %v", c.Args[0])
	}

	err = exe.WriteFile(ctx, c.String("output"), compiler.Link(res))
	if err != nil {
		return errors.Wrap(err, "write executable")
	}

	if name := c.String("map"); name != "" {
		data, err := symmap.Encode(symmap.FromResult(res))
		if err != nil {
			return errors.Wrap(err, "symbol map")
		}

		err = os.WriteFile(name, data, 0o644)
		if err != nil {
			return errors.Wrap(err, "write symbol map")
		}
	}

	return nil
}

func listingAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	cfg, err := config(c)
	if err != nil {
		return err
	}

	for _, a := range c.Args {
		res, err := compiler.CompileFile(ctx, a, cfg)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		b := hfmt.Appendf(nil, "%v: entry %#x  alloc %#x  free %#x  static %d\n", a, res.Entry, res.Runtime.Alloc, res.Runtime.Free, res.StaticSize)
		b = res.Asm.AppendListingRange(b, 0, res.Asm.Len())

		_, err = os.Stdout.Write(b)
		if err != nil {
			return errors.Wrap(err, "write")
		}
	}

	return nil
}

func symbolsAct(c *cli.Command) (err error) {
	for _, a := range c.Args {
		data, err := os.ReadFile(a)
		if err != nil {
			return errors.Wrap(err, "read %v", a)
		}

		m, err := symmap.Decode(data)
		if err != nil {
			return errors.Wrap(err, "%v", a)
		}

		fmt.Printf("entry   %#x\nalloc   %#x\nfree    %#x\nstatic  %d\n", m.Entry, m.Alloc, m.Free, m.StaticSize)

		for _, x := range m.Methods {
			fmt.Printf("%4d  %#x  %#x  %v\n", x.Slot, x.Placeholder, x.Entry, x.FullName())
		}
	}

	return nil
}
