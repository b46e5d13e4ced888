// Package driver sequences a compilation: it resolves the command line,
// preprocesses, parses, lowers through the backend and hands the result to
// the external assembler and linker.
package driver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"cfront/pkg/backend"
	"cfront/pkg/compiler"
	"cfront/pkg/types"
)

// Version is printed by --version.
const Version = "cfront 0.1.0"

// Driver runs compilations against a set of standard streams.
type Driver struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Runner Runner
	Log    *logrus.Logger

	// Config is the toolchain before --config is merged in. Nil means
	// DefaultConfig.
	Config *Config
}

// Run compiles according to args and returns the process exit status.
func (d *Driver) Run(ctx context.Context, args []string) int {
	opts, err := ParseArgs(args)
	if err != nil {
		fmt.Fprintf(d.Stderr, "error: %v\n", err)
		fmt.Fprintln(d.Stderr, "Usage: cfront input [-o output] [-c]")
		return 1
	}
	for _, note := range opts.Notes {
		fmt.Fprintf(d.Stderr, "warning: %s\n", note)
	}
	switch {
	case opts.Help:
		Usage(d.Stdout)
		return 0
	case opts.Version:
		fmt.Fprintln(d.Stdout, Version)
		return 0
	}

	cfg := DefaultConfig()
	if d.Config != nil {
		c := *d.Config
		cfg = &c
	}
	if opts.ConfigFile != "" {
		if err := cfg.LoadFile(opts.ConfigFile); err != nil {
			return d.exitCode(err)
		}
	}
	if opts.Verbose {
		d.Log.SetLevel(logrus.DebugLevel)
	}

	id := uuid.New()
	log := d.Log.WithFields(logrus.Fields{"session": id.String(), "mode": opts.Mode.String()})
	c := &compilation{
		d:     d,
		opts:  opts,
		cfg:   cfg,
		log:   log,
		scope: newTempScope(id, cfg.TempDir, log),
	}
	err = c.run(ctx)
	if err == nil || c.keepOutput {
		for _, p := range c.outputs {
			c.scope.keep(p)
		}
	}
	if cerr := c.scope.Close(); cerr != nil && err == nil {
		err = errors.Wrap(cerr, "cleaning up")
	}
	return d.exitCode(err)
}

func (d *Driver) exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		if ee.Err != nil {
			fmt.Fprintf(d.Stderr, "error: %v\n", ee.Err)
		}
		return ee.Code
	}
	fmt.Fprintf(d.Stderr, "error: %v\n", err)
	return 1
}

// failed ends a run with status 1 after the reason was already reported.
var failed = &ExitError{Code: 1}

// compilation is the state of one run.
type compilation struct {
	d     *Driver
	opts  *Options
	cfg   *Config
	log   *logrus.Entry
	scope *tempScope

	// outputs are the result files; they are removed unless the run
	// succeeds or keepOutput is set.
	outputs    []string
	keepOutput bool
}

// output is where a mode writes its result.
type output struct {
	io.Writer
	f *os.File // nil for stdout
}

func (o *output) Close() error {
	if o.f == nil {
		return nil
	}
	return o.f.Close()
}

func (c *compilation) openOutput(path string) (*output, error) {
	if path == "-" {
		return &output{Writer: c.d.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't open '%s' for writing", path)
	}
	c.outputs = append(c.outputs, path)
	c.scope.track(path)
	return &output{Writer: f, f: f}, nil
}

func (c *compilation) run(ctx context.Context) (err error) {
	opts := c.opts
	c.log.Debug("starting compilation")

	if opts.Mode == Link {
		return c.link(ctx, opts.Objects, opts.OutputPath(), false)
	}

	var out *output
	switch opts.Mode {
	case CompileAssemble, CompileAssembleLink, ParseOnly:
		// the result, if any, comes from an external tool
	case PreprocessOnly:
		path := opts.OutputPath()
		if path == "" {
			path = "-"
		}
		if out, err = c.openOutput(path); err != nil {
			return err
		}
	default:
		if out, err = c.openOutput(opts.OutputPath()); err != nil {
			return err
		}
	}
	if out != nil {
		defer func() {
			if cerr := out.Close(); cerr != nil && err == nil {
				err = errors.Wrap(cerr, "closing output")
			}
		}()
	}

	name, src, err := c.readInput()
	if err != nil {
		return err
	}

	if opts.Mode == LexTest {
		return c.lexTest(out, name, src)
	}

	text, err := c.preprocess(ctx, name, src, out)
	if err != nil || opts.Mode == PreprocessOnly {
		return err
	}

	target, err := c.cfg.Target(opts)
	if err != nil {
		return err
	}
	tgt, err := types.NewTarget(target)
	if err != nil {
		return err
	}
	sess := types.NewSession(tgt)
	defer sess.Close()

	start := time.Now()
	unit, diag, _ := compiler.Compile(sess, name, text, compiler.Options{
		Dialect:  opts.Dialect,
		Builtins: opts.Builtins,
		Quiet:    opts.NoWarnings,
		Strict:   opts.Strict,
	}, c.d.Stderr)
	elapsed := time.Since(start)
	if summary := diag.Summary(); summary != "" {
		fmt.Fprintln(c.d.Stderr, summary)
	}
	hasErrors := diag.HasErrors()

	switch opts.Mode {
	case BenchmarkParse:
		fmt.Fprintf(out, "parsed %s in %v, %s declarations\n",
			humanize.Bytes(uint64(len(text))), elapsed.Round(time.Microsecond),
			humanize.Comma(int64(len(unit.Decls)-unit.Builtins)))
		if hasErrors {
			return failed
		}
		return nil

	case PrintAst:
		// printed even with errors
		c.keepOutput = true
		if err := compiler.PrintAST(out, unit, compiler.AstPrintOptions{
			Dialect:       opts.Dialect,
			ImplicitCasts: opts.PrintImplicitCasts,
			Parenthesis:   opts.PrintParenthesis,
		}); err != nil {
			return errors.Wrap(err, "printing AST")
		}
		if hasErrors {
			return failed
		}
		return nil
	}

	if hasErrors {
		return failed
	}

	switch opts.Mode {
	case PrintFluffy:
		return errors.Wrap(compiler.WriteFluffyDecls(out, sess, unit), "writing fluffy declarations")
	case PrintCaml:
		return errors.Wrap(compiler.WriteCamlDecls(out, sess, unit), "writing caml declarations")
	case ParseOnly:
		return nil
	}

	gen, err := backend.New(sess, opts.Backend)
	if err != nil {
		return err
	}
	if err := gen.Lower(unit); err != nil {
		return errors.Wrap(err, "code generation")
	}
	return c.emit(ctx, gen, name, out)
}

// emit writes the lowered unit in the form the mode asks for.
func (c *compilation) emit(ctx context.Context, gen backend.Service, name string, out *output) error {
	opts := c.opts
	switch opts.Mode {
	case CompileDump:
		if err := gen.DumpFunction(opts.DumpFunction, out); err != nil {
			return &ExitError{Code: 1, Err: errors.Errorf("no graph for function '%s' found", opts.DumpFunction)}
		}
		return nil
	case Compile:
		return errors.Wrap(gen.Finish(out, name), "writing assembly")
	}

	asmFile, err := c.scope.create("cc", ".s")
	if err != nil {
		return err
	}
	if err := gen.Finish(asmFile, name); err != nil {
		asmFile.Close()
		return errors.Wrap(err, "writing assembly")
	}
	if err := asmFile.Close(); err != nil {
		return errors.Wrap(err, "writing assembly")
	}

	if opts.Mode == CompileAssemble {
		return c.assemble(ctx, asmFile.Name(), opts.OutputPath())
	}

	objFile, err := c.scope.create("cc", ".o")
	if err != nil {
		return err
	}
	objFile.Close()
	if err := c.assemble(ctx, asmFile.Name(), objFile.Name()); err != nil {
		return err
	}
	return c.link(ctx, []string{objFile.Name()}, opts.OutputPath(), true)
}

// readInput returns the name diagnostics use for the input and its text.
func (c *compilation) readInput() (string, string, error) {
	if c.opts.Input == "-" {
		if c.d.Stdin == nil {
			return "<stdin>", "", nil
		}
		data, err := io.ReadAll(c.d.Stdin)
		if err != nil {
			return "", "", errors.Wrap(err, "reading standard input")
		}
		return "<stdin>", string(data), nil
	}
	data, err := os.ReadFile(c.opts.Input)
	if err != nil {
		return "", "", errors.Wrapf(err, "couldn't open '%s'", c.opts.Input)
	}
	return c.opts.Input, string(data), nil
}

func (c *compilation) lexTest(out io.Writer, name, src string) error {
	diag := compiler.NewDiagnostics(c.d.Stderr)
	for _, tok := range compiler.LexFile(name, src, c.opts.Dialect, diag) {
		if _, err := fmt.Fprintln(out, tok); err != nil {
			return errors.Wrap(err, "writing tokens")
		}
	}
	if diag.HasErrors() {
		return failed
	}
	return nil
}

// preprocess returns the preprocessed text of src. In PreprocessOnly mode
// the text goes to out instead and the result is empty.
func (c *compilation) preprocess(ctx context.Context, name, src string, out io.Writer) (string, error) {
	if c.cfg.Preprocessor == BuiltinPreprocessor {
		text, err := compiler.Preprocess(name, src, builtinCPPOptions(c.opts.CPPFlags))
		if err != nil {
			return "", err
		}
		if c.opts.Mode == PreprocessOnly {
			_, err := io.WriteString(out, text)
			return "", errors.Wrap(err, "writing preprocessed output")
		}
		return text, nil
	}

	args, err := command("preprocessor", c.cfg.Preprocessor)
	if err != nil {
		return "", err
	}
	args = append(args, c.opts.CPPFlags...)
	cmd := Command{Tool: "preprocessor", Stderr: c.d.Stderr}
	if c.opts.Input == "-" {
		args = append(args, "-")
		cmd.Stdin = strings.NewReader(src)
	} else {
		args = append(args, c.opts.Input)
	}
	cmd.Args = args

	var buf bytes.Buffer
	cmd.Stdout = &buf
	if c.opts.Mode == PreprocessOnly {
		cmd.Stdout = out
	}
	c.log.WithField("tool", cmd.Tool).Debug(cmd.String())
	if err := c.d.Runner.Run(ctx, cmd); err != nil {
		var ee *ExitError
		if errors.As(err, &ee) {
			// the preprocessor has reported the problem itself
			return "", &ExitError{Code: ee.Code}
		}
		return "", &ExitError{Code: 1, Err: errors.Wrap(err, "invoking preprocessor failed")}
	}
	return buf.String(), nil
}

// builtinCPPOptions converts forwarded preprocessor flags back into options
// for the builtin preprocessor.
func builtinCPPOptions(flags []string) compiler.PreprocessOptions {
	var o compiler.PreprocessOptions
	for _, f := range flags {
		switch {
		case strings.HasPrefix(f, "-I"):
			o.IncludeDirs = append(o.IncludeDirs, f[2:])
		case strings.HasPrefix(f, "-D"):
			o.Defines = append(o.Defines, f[2:])
		case strings.HasPrefix(f, "-U"):
			o.Undefines = append(o.Undefines, f[2:])
		}
	}
	return o
}

func (c *compilation) assemble(ctx context.Context, in, out string) error {
	args, err := command("assembler", c.cfg.Assembler)
	if err != nil {
		return err
	}
	if c.opts.Mode == CompileAssemble {
		c.outputs = append(c.outputs, out)
		c.scope.track(out)
	}
	return c.tool(ctx, Command{Tool: "assembler", Args: append(args, in, "-o", out)})
}

// link runs the linker. Objects of a compilation follow the output name;
// objects given directly precede it.
func (c *compilation) link(ctx context.Context, objects []string, out string, compiled bool) error {
	args, err := command("linker", c.cfg.Linker)
	if err != nil {
		return err
	}
	if compiled {
		args = append(args, c.opts.LDFlags...)
		args = append(args, "-o", out)
		args = append(args, objects...)
	} else {
		args = append(args, objects...)
		args = append(args, "-o", out)
		args = append(args, c.opts.LDFlags...)
	}
	c.outputs = append(c.outputs, out)
	c.scope.track(out)
	return c.tool(ctx, Command{Tool: "linker", Args: args})
}

// tool runs an assembler or linker command.
func (c *compilation) tool(ctx context.Context, cmd Command) error {
	if cmd.Stdout == nil {
		cmd.Stdout = c.d.Stderr
	}
	if cmd.Stderr == nil {
		cmd.Stderr = c.d.Stderr
	}
	c.log.WithField("tool", cmd.Tool).Debug(cmd.String())
	if err := c.d.Runner.Run(ctx, cmd); err != nil {
		var ee *ExitError
		if errors.As(err, &ee) {
			return &ExitError{Code: 1, Err: errors.Errorf("%s reported an error", cmd.Tool)}
		}
		return &ExitError{Code: 1, Err: errors.Wrapf(err, "invoking %s failed", cmd.Tool)}
	}
	return nil
}
