package driver

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"cfront/pkg/backend"
	"cfront/pkg/types"
)

// Mode is what a run of the driver produces. It is chosen once from the
// arguments before any stage runs.
type Mode int

const (
	BenchmarkParse Mode = iota
	PreprocessOnly
	ParseOnly
	Compile
	CompileDump
	CompileAssemble
	CompileAssembleLink
	LexTest
	PrintAst
	PrintFluffy
	PrintCaml
	Link
)

var modeNames = [...]string{
	BenchmarkParse:      "benchmark",
	PreprocessOnly:      "preprocess",
	ParseOnly:           "parse",
	Compile:             "compile",
	CompileDump:         "dump",
	CompileAssemble:     "assemble",
	CompileAssembleLink: "link-executable",
	LexTest:             "lextest",
	PrintAst:            "print-ast",
	PrintFluffy:         "print-fluffy",
	PrintCaml:           "print-caml",
	Link:                "link",
}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// Options is the resolved command line.
type Options struct {
	Mode         Mode
	Input        string   // the C source; "-" reads stdin
	Objects      []string // .o files for Link
	Output       string   // -o; empty selects the mode's default
	DumpFunction string
	ConfigFile   string

	OptLevel int
	Passes   map[string]bool // optimisation passes switched on
	Builtins bool            // parse the builtin declarations first
	Backend  backend.Options

	Dialect    types.Dialect
	WordSize   int   // -m; 0 keeps the toolchain default
	CharSigned *bool // nil keeps the toolchain default

	Strict             bool // warnings are errors
	NoWarnings         bool
	Verbose            bool
	PrintImplicitCasts bool
	PrintParenthesis   bool
	Version            bool
	Help               bool

	// CPPFlags and LDFlags are forwarded verbatim to the external
	// preprocessor and linker, in command line order.
	CPPFlags []string
	LDFlags  []string

	// Notes are warnings about ignored arguments.
	Notes []string
}

// OutputPath returns the file the run writes, "-" for stdout, or "" when
// the mode writes nothing itself.
func (o *Options) OutputPath() string {
	if o.Output != "" {
		return o.Output
	}
	switch o.Mode {
	case BenchmarkParse, PrintAst, PrintFluffy, PrintCaml, LexTest:
		return "-"
	case Compile:
		return OutputName(o.Input, ".s")
	case CompileAssemble:
		return OutputName(o.Input, ".o")
	case CompileDump:
		return OutputName(o.DumpFunction, ".vcg")
	case Link, CompileAssembleLink:
		return "a.out"
	}
	return ""
}

// recorded is one ordered command line effect.
type recorded struct {
	name, value string
}

// recorder is a pflag.Value that appends every occurrence of its flag to a
// shared list, so effects that depend on argument order are applied in the
// order they were given.
type recorder struct {
	name    string
	list    *[]recorded
	boolean bool
}

func (r *recorder) String() string { return "" }

func (r *recorder) Set(v string) error {
	if r.boolean {
		if _, err := strconv.ParseBool(v); err != nil {
			return err
		}
	}
	*r.list = append(*r.list, recorded{r.name, v})
	return nil
}

func (r *recorder) Type() string {
	if r.boolean {
		return "bool"
	}
	return "string"
}

// singleDashLong are the gcc options spelled with one dash that pflag would
// otherwise read as a cluster of shorthands.
var singleDashLong = []string{"std=", "pg", "pedantic", "version"}

// normalizeArgs rewrites gcc spellings pflag cannot parse as they are.
func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i, a := range args {
		if a == "--" {
			return append(out, args[i:]...)
		}
		switch {
		case a == "-O":
			a = "-O1"
		case strings.HasPrefix(a, "-g") && !strings.HasPrefix(a, "-g="):
			a = "-g"
		case strings.HasPrefix(a, "-") && !strings.HasPrefix(a, "--"):
			for _, l := range singleDashLong {
				if a[1:] == l || (strings.HasSuffix(l, "=") && strings.HasPrefix(a[1:], l)) {
					a = "-" + a
					break
				}
			}
		}
		out = append(out, a)
	}
	return out
}

type flagSet struct {
	*pflag.FlagSet
	opts *Options
	list []recorded
}

func newFlagSet(opts *Options) *flagSet {
	fs := &flagSet{FlagSet: pflag.NewFlagSet("cfront", pflag.ContinueOnError), opts: opts}
	fs.SortFlags = false

	fs.StringVarP(&opts.Output, "output", "o", "", "write output to `file`")
	fs.StringVar(&opts.ConfigFile, "config", "", "read the toolchain configuration from `file`")
	fs.BoolVarP(&opts.Verbose, "verbose", "v", false, "log external commands")
	fs.BoolVarP(&opts.NoWarnings, "no-warnings", "w", false, "inhibit all warnings")
	fs.BoolVar(&opts.Strict, "strict", false, "treat warnings as errors")
	fs.BoolVar(&opts.PrintImplicitCasts, "print-implicit-cast", false, "show implicit conversions in --print-ast")
	fs.BoolVar(&opts.PrintParenthesis, "print-parenthesis", false, "fully parenthesise expressions in --print-ast")
	fs.BoolVar(&opts.Version, "version", false, "print the version and exit")

	fs.toggle("preprocess", "E", "preprocess only")
	fs.toggle("assembly", "S", "compile to assembly")
	fs.toggle("object", "c", "compile and assemble to an object file")
	fs.toggle("debug", "g", "emit debug information")
	fs.toggle("lextest", "", "print the tokens of the input")
	fs.toggle("benchmark", "", "parse and report timing")
	fs.toggle("print-ast", "", "print the parsed translation unit as C")
	fs.toggle("print-fluffy", "", "print declarations as fluffy")
	fs.toggle("print-caml", "", "print declarations as OCaml externals")
	fs.toggle("gcc", "", "enable GNU extensions")
	fs.toggle("no-gcc", "", "disable GNU extensions")
	fs.toggle("ms", "", "enable Microsoft extensions")
	fs.toggle("no-ms", "", "disable Microsoft extensions")
	fs.toggle("signed-chars", "", "plain char is signed")
	fs.toggle("unsigned-chars", "", "plain char is unsigned")
	fs.toggle("pg", "", "generate profiling code")
	fs.toggle("pedantic", "", "accepted for gcc compatibility")

	fs.value("dump-function", "", "write the block graph of `function` as VCG")
	fs.value("optimize", "O", "optimisation `level` 0 to 4")
	fs.value("include-dir", "I", "add `dir` to the include path")
	fs.value("define", "D", "define `macro`")
	fs.value("undefine", "U", "undefine `macro`")
	fs.value("library", "l", "link with `library`")
	fs.value("library-dir", "L", "search `dir` for libraries")
	fs.value("feature", "f", "switch optimisation `option`")
	fs.value("backend", "b", "set backend `option`")
	fs.value("warn", "W", "warning `option`")
	fs.value("machine", "m", "machine `option`: 16, 32, 64, arch=, tune=, cpu=, fpmath=")
	fs.value("std", "", "language `standard`: c89, c99, gnu99, microsoft")
	return fs
}

func (fs *flagSet) toggle(name, short, usage string) {
	f := fs.VarPF(&recorder{name: name, list: &fs.list, boolean: true}, name, short, usage)
	f.NoOptDefVal = "true"
}

func (fs *flagSet) value(name, short, usage string) {
	fs.VarP(&recorder{name: name, list: &fs.list}, name, short, usage)
}

// Usage writes the command line summary to w.
func Usage(w io.Writer) {
	fs := newFlagSet(&Options{})
	fmt.Fprintln(w, "Usage: cfront input [-o output] [-c]")
	fs.SetOutput(w)
	fs.PrintDefaults()
}

// ParseArgs resolves the command line into Options.
func ParseArgs(args []string) (*Options, error) {
	opts := &Options{
		Mode:     CompileAssembleLink,
		OptLevel: 1,
		Dialect:  types.DefaultDialect,
	}
	fs := newFlagSet(opts)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(normalizeArgs(args)); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			opts.Help = true
			return opts, nil
		}
		return nil, err
	}
	if opts.Version {
		return opts, nil
	}
	late, err := opts.apply(fs.list)
	if err != nil {
		return nil, err
	}

	policy := PolicyFor(opts.OptLevel)
	opts.Passes = policy.Passes
	opts.Builtins = policy.Builtins
	opts.Backend.OmitFramePointer = policy.OmitFramePointer
	for _, r := range late {
		if err := opts.applyLate(r); err != nil {
			return nil, err
		}
	}

	if err := opts.classify(fs.Args()); err != nil {
		return nil, err
	}
	return opts, nil
}

func enabled(r recorded) bool {
	b, _ := strconv.ParseBool(r.value)
	return b
}

// apply runs the ordered effects and returns the ones that must follow the
// optimisation level.
func (o *Options) apply(list []recorded) ([]recorded, error) {
	var late []recorded
	for _, r := range list {
		switch r.name {
		case "preprocess", "assembly", "object", "lextest", "benchmark", "print-ast", "print-fluffy", "print-caml":
			if !enabled(r) {
				continue
			}
			o.Mode = map[string]Mode{
				"preprocess":   PreprocessOnly,
				"assembly":     Compile,
				"object":       CompileAssemble,
				"lextest":      LexTest,
				"benchmark":    BenchmarkParse,
				"print-ast":    PrintAst,
				"print-fluffy": PrintFluffy,
				"print-caml":   PrintCaml,
			}[r.name]
		case "dump-function":
			o.Mode = CompileDump
			o.DumpFunction = r.value
		case "feature":
			if r.value == "syntax-only" {
				o.Mode = ParseOnly
				continue
			}
			late = append(late, r)
		case "debug", "backend":
			late = append(late, r)
		case "optimize":
			level, err := parseLevel(r.value)
			if err != nil {
				return nil, err
			}
			o.OptLevel = level
		case "gcc", "no-gcc", "ms", "no-ms":
			if !enabled(r) {
				continue
			}
			bit := types.GNUC
			if strings.HasSuffix(r.name, "ms") {
				bit = types.MS
			}
			if strings.HasPrefix(r.name, "no-") {
				o.Dialect &^= bit
			} else {
				o.Dialect |= bit
			}
		case "std":
			switch r.value {
			case "c99":
				o.Dialect = types.C89 | types.C99
			case "c89":
				o.Dialect = types.C89
			case "gnu99":
				o.Dialect = types.C89 | types.C99 | types.GNUC
			case "microsoft":
				o.Dialect = types.C89 | types.C99 | types.MS
			default:
				o.Notes = append(o.Notes, fmt.Sprintf("ignoring gcc option '-std=%s'", r.value))
			}
		case "signed-chars", "unsigned-chars":
			if !enabled(r) {
				continue
			}
			signed := r.name == "signed-chars"
			o.CharSigned = &signed
		case "include-dir":
			o.CPPFlags = append(o.CPPFlags, "-I"+r.value)
		case "define":
			o.CPPFlags = append(o.CPPFlags, "-D"+r.value)
		case "undefine":
			o.CPPFlags = append(o.CPPFlags, "-U"+r.value)
		case "library":
			o.LDFlags = append(o.LDFlags, "-l"+r.value)
		case "library-dir":
			o.LDFlags = append(o.LDFlags, "-L"+r.value)
		case "pg":
			if enabled(r) {
				o.Backend.Profile = true
				o.LDFlags = append(o.LDFlags, "-pg")
			}
		case "pedantic":
			o.Notes = append(o.Notes, "ignoring gcc option '-pedantic'")
		case "warn":
			switch r.value {
			case "error":
				o.Strict = true
			case "no-error":
				o.Strict = false
			}
		case "machine":
			if err := o.machine(r.value); err != nil {
				return nil, err
			}
		}
	}
	return late, nil
}

func parseLevel(v string) (int, error) {
	switch v {
	case "s", "z":
		return 2, nil
	}
	level, err := strconv.Atoi(v)
	if err != nil || level < 0 {
		return 0, errors.Errorf("invalid optimization level '-O%s'", v)
	}
	return level, nil
}

// machine handles the -m family.
func (o *Options) machine(v string) error {
	key, val, hasVal := strings.Cut(v, "=")
	if hasVal {
		switch key {
		case "arch", "cpu":
			o.Backend.Arch = val
			return nil
		case "tune":
			o.Backend.Tune = val
			return nil
		case "fpmath":
			if val != "387" && val != "sse" {
				return errors.New("option -mfpmath supports only 387 or sse")
			}
			o.Backend.FPMath = val
			return nil
		case "preferred-stack-boundary":
			n, err := strconv.Atoi(val)
			if err != nil {
				return errors.Errorf("wrong option '-m%s'", v)
			}
			o.Backend.StackBoundary = n
			return nil
		}
		return errors.Errorf("wrong option '-m%s'", v)
	}
	switch v {
	case "omit-leaf-frame-pointer", "no-omit-leaf-frame-pointer":
		o.Notes = append(o.Notes, fmt.Sprintf("ignoring gcc option '-m%s'", v))
		return nil
	}
	size, err := strconv.Atoi(v)
	if err != nil {
		return errors.Errorf("wrong option '-m%s'", v)
	}
	if size != 16 && size != 32 && size != 64 {
		return errors.New("option -m supports only 16, 32 or 64")
	}
	o.WordSize = size
	return nil
}

// applyLate handles -f, -b and -g, which refine the optimisation policy.
func (o *Options) applyLate(r recorded) error {
	switch r.name {
	case "debug":
		if enabled(r) {
			o.Backend.Debug = true
			o.Backend.OmitFramePointer = false
		}
	case "feature":
		switch r.value {
		case "omit-frame-pointer":
			o.Backend.OmitFramePointer = true
		case "no-omit-frame-pointer":
			o.Backend.OmitFramePointer = false
		case "builtins":
			o.Builtins = true
		case "no-builtins":
			o.Builtins = false
		default:
			if name, off := strings.CutPrefix(r.value, "no-"); off && knownPass(name) {
				o.Passes[name] = false
				break
			}
			if !knownPass(r.value) {
				return errors.Errorf("unknown optimization option '-f%s'", r.value)
			}
			o.Passes[r.value] = true
		}
	case "backend":
		switch key, val, _ := strings.Cut(r.value, "="); key {
		case "omitfp":
			o.Backend.OmitFramePointer = val != "no"
		case "debuginfo":
			o.Backend.Debug = val != "none"
		case "gprof":
			o.Backend.Profile = true
		case "isa":
			if val != "ia32" {
				return errors.Errorf("unknown backend option '-b%s'", r.value)
			}
		default:
			return errors.Errorf("unknown backend option '-b%s'", r.value)
		}
	}
	return nil
}

// classify sorts the positional arguments into the C input and objects.
func (o *Options) classify(args []string) error {
	var cFiles, sFiles []string
	for _, a := range args {
		switch {
		case a == "-":
			cFiles = append(cFiles, a)
		case strings.HasSuffix(a, ".c"), strings.HasSuffix(a, ".h"):
			cFiles = append(cFiles, a)
		case strings.HasSuffix(a, ".s"):
			sFiles = append(sFiles, a)
		case strings.HasSuffix(a, ".o"):
			o.Objects = append(o.Objects, a)
		default:
			o.Notes = append(o.Notes, fmt.Sprintf("'%s': file format not recognized", a))
		}
	}
	switch {
	case len(cFiles) == 0 && len(sFiles) == 0 && len(o.Objects) > 0:
		o.Mode = Link
	case len(cFiles) == 1:
		o.Input = cFiles[0]
	case len(cFiles) == 0:
		return errors.New("no input files specified")
	default:
		return errors.New("multiple input files specified")
	}
	return nil
}

// OutputName replaces the extension of input's base name with ext. An empty
// input, or "-" for stdin, gives "a"+ext.
func OutputName(input, ext string) string {
	if input == "" || input == "-" {
		return "a" + ext
	}
	base := input
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	return base + ext
}
