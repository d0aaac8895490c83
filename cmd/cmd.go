package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/rubiojr/bindgen/binderr"
	"github.com/rubiojr/bindgen/codesink"
	"github.com/rubiojr/bindgen/config"
	"github.com/rubiojr/bindgen/descfile"
	"github.com/rubiojr/bindgen/doc"
	"github.com/rubiojr/bindgen/engine"
	"github.com/rubiojr/bindgen/logging"
	"github.com/rubiojr/bindgen/model"
	"github.com/rubiojr/bindgen/typehandlers"
)

// Execute runs the bindgen CLI with the given version string.
func Execute(version string) {
	if err := newApp(version, os.Stdout, os.Stderr).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(version string, stdout, stderr io.Writer) *cli.Command {
	a := &app{stdout: stdout, stderr: stderr}
	return &cli.Command{
		Name:                   "bindgen",
		Usage:                  "Generate C++ extension glue from module descriptors",
		Version:                version,
		UseShortOptionHandling: true,
		Writer:                 stdout,
		ErrWriter:              stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Generator settings (TOML)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:    "no-color",
				Aliases: []string{"C"},
				Usage:   "Disable ANSI color output",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "generate",
				Usage:     "Generate the glue source of a module",
				ArgsUsage: "<module.yaml>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (default stdout)",
					},
					&cli.BoolFlag{
						Name:    "keep-going",
						Aliases: []string{"k"},
						Usage:   "Skip members that cannot be generated instead of failing",
					},
				},
				Action: a.generateAction,
			},
			{
				Name:      "check",
				Usage:     "Report every member of a module that cannot be generated",
				ArgsUsage: "<module.yaml>",
				Action:    a.checkAction,
			},
			{
				Name:   "types",
				Usage:  "List the type signatures with a builtin or configured handler",
				Action: a.typesAction,
			},
			{
				Name:      "doc",
				Usage:     "Summarize what a module exposes",
				ArgsUsage: "<module.yaml>",
				Action:    a.docAction,
			},
		},
	}
}

type app struct {
	stdout, stderr io.Writer
}

// setup loads the settings, configures logging and prepares a registry.
func (a *app) setup(cmd *cli.Command) (*config.Config, *typehandlers.Registry, error) {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, nil, err
		}
	}
	level := cfg.LogLevel
	if l := cmd.String("log-level"); l != "" {
		level = l
	}
	if err := logging.Configure(level); err != nil {
		return nil, nil, err
	}
	reg := typehandlers.NewRegistry()
	if err := cfg.Apply(reg); err != nil {
		return nil, nil, err
	}
	return cfg, reg, nil
}

func moduleArg(cmd *cli.Command, usage string) (string, error) {
	if cmd.NArg() < 1 {
		return "", fmt.Errorf("usage: bindgen %s", usage)
	}
	return cmd.Args().First(), nil
}

func (a *app) generateAction(ctx context.Context, cmd *cli.Command) error {
	path, err := moduleArg(cmd, "generate [-o output] [--keep-going] <module.yaml>")
	if err != nil {
		return err
	}
	cfg, reg, err := a.setup(cmd)
	if err != nil {
		return err
	}
	mod, err := descfile.Load(path)
	if err != nil {
		return err
	}

	handler := engine.AbortOnError
	if cmd.Bool("keep-going") || cfg.ErrorPolicy == config.PolicyContinue {
		handler = engine.LogAndContinue(logging.Logger())
	}
	var buf bytes.Buffer
	res, err := engine.New(reg,
		engine.WithDialect(cfg.HostDialect()),
		engine.WithErrorHandler(handler),
		engine.WithLogger(logging.Logger()),
	).Generate(mod, codesink.NewWriterSink(&buf))
	if err != nil {
		return err
	}

	if out := cmd.String("output"); out != "" {
		if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
	} else if _, err := a.stdout.Write(buf.Bytes()); err != nil {
		return err
	}
	if res.Suppressed > 0 {
		c := newColors(cmd.Bool("no-color"))
		fmt.Fprintf(a.stderr, "%sskipped %d member(s)%s, run 'bindgen check %s' for details\n",
			c.warn, res.Suppressed, c.reset, path)
	}
	return nil
}

func (a *app) checkAction(ctx context.Context, cmd *cli.Command) error {
	path, err := moduleArg(cmd, "check <module.yaml>")
	if err != nil {
		return err
	}
	cfg, reg, err := a.setup(cmd)
	if err != nil {
		return err
	}
	mod, err := descfile.Load(path)
	if err != nil {
		return err
	}
	keepGoing := engine.HandlerFunc(func(d model.Descriptor, err error) engine.Decision { return engine.Continue })
	res, err := engine.New(reg,
		engine.WithDialect(cfg.HostDialect()),
		engine.WithErrorHandler(keepGoing),
		engine.WithLogger(logging.Logger()),
	).Generate(mod, codesink.Discard)
	if err != nil {
		return err
	}

	c := newColors(cmd.Bool("no-color"))
	for _, f := range res.Failures {
		kind := binderr.KindOf(f.Err)
		color := c.fail
		if kind == binderr.KindGeneration {
			color = c.warn
		}
		fmt.Fprintf(a.stdout, "%s%-13s%s %s: %v\n", color, kind, c.reset, engine.Describe(f.Desc), f.Err)
	}
	excluded := res.Excluded(mod)
	if len(res.Failures) == 0 {
		fmt.Fprintf(a.stdout, "%sok%s %s: %d wrappers\n", c.ok, c.reset, mod.Name, res.Wrappers)
		return nil
	}
	fmt.Fprintf(a.stdout, "\n%d wrappers, %s%d problem(s)%s, %d class(es) excluded\n",
		res.Wrappers, c.fail, len(res.Failures), c.reset, len(excluded))
	return fmt.Errorf("%s: %d problem(s)", path, len(res.Failures))
}

func (a *app) typesAction(ctx context.Context, cmd *cli.Command) error {
	_, reg, err := a.setup(cmd)
	if err != nil {
		return err
	}
	width := 0
	if f, ok := a.stdout.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil {
			width = w
		}
	}
	fmt.Fprint(a.stdout, doc.FormatSignatures("Parameter types", reg.ParamSignatures(), width))
	fmt.Fprintln(a.stdout)
	fmt.Fprint(a.stdout, doc.FormatSignatures("Return types", reg.ReturnSignatures(), width))
	for _, t := range reg.Transformations() {
		fmt.Fprintf(a.stdout, "\ntransformation %s\n", t.Name())
	}
	return nil
}

func (a *app) docAction(ctx context.Context, cmd *cli.Command) error {
	path, err := moduleArg(cmd, "doc <module.yaml>")
	if err != nil {
		return err
	}
	mod, err := descfile.Load(path)
	if err != nil {
		return err
	}
	fmt.Fprint(a.stdout, doc.FormatModule(doc.Extract(mod)))
	return nil
}
