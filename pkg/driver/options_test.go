package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfront/pkg/types"
)

func TestParseArgsModes(t *testing.T) {
	tests := []struct {
		args []string
		mode Mode
	}{
		{[]string{"a.c"}, CompileAssembleLink},
		{[]string{"-c", "a.c"}, CompileAssemble},
		{[]string{"-S", "a.c"}, Compile},
		{[]string{"-E", "a.c"}, PreprocessOnly},
		{[]string{"-S", "-c", "a.c"}, CompileAssemble},
		{[]string{"-c", "-S", "a.c"}, Compile},
		{[]string{"-fsyntax-only", "a.c"}, ParseOnly},
		{[]string{"--lextest", "a.c"}, LexTest},
		{[]string{"--benchmark", "a.c"}, BenchmarkParse},
		{[]string{"--print-ast", "a.c"}, PrintAst},
		{[]string{"--print-fluffy", "a.c"}, PrintFluffy},
		{[]string{"--print-caml", "a.h"}, PrintCaml},
		{[]string{"--print-ast", "--print-ast=false", "a.c"}, PrintAst},
		{[]string{"--dump-function", "main", "a.c"}, CompileDump},
		{[]string{"a.o", "b.o"}, Link},
		{[]string{"-c", "a.o"}, Link},
		{[]string{"-"}, CompileAssembleLink},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			opts, err := ParseArgs(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.mode, opts.Mode)
		})
	}
}

func TestParseArgsInputs(t *testing.T) {
	opts, err := ParseArgs([]string{"-o", "prog", "main.c", "-v"})
	require.NoError(t, err)
	assert.Equal(t, "main.c", opts.Input)
	assert.Equal(t, "prog", opts.Output)
	assert.True(t, opts.Verbose)

	opts, err = ParseArgs([]string{"x.o", "y.o", "-oprog"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x.o", "y.o"}, opts.Objects)
	assert.Equal(t, "prog", opts.Output)

	opts, err = ParseArgs([]string{"--dump-function=walk", "a.c"})
	require.NoError(t, err)
	assert.Equal(t, "walk", opts.DumpFunction)

	opts, err = ParseArgs([]string{"a.c", "notes.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"'notes.txt': file format not recognized"}, opts.Notes)
}

func TestParseArgsErrors(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, "no input files specified"},
		{[]string{"a.c", "b.c"}, "multiple input files specified"},
		{[]string{"--bogus", "a.c"}, "unknown flag: --bogus"},
		{[]string{"-q", "a.c"}, "unknown shorthand flag: 'q'"},
		{[]string{"a.c", "-o"}, "flag needs an argument"},
		{[]string{"-m48", "a.c"}, "option -m supports only 16, 32 or 64"},
		{[]string{"-mfoo", "a.c"}, "wrong option '-mfoo'"},
		{[]string{"-mfoo=1", "a.c"}, "wrong option '-mfoo=1'"},
		{[]string{"-mfpmath=neon", "a.c"}, "option -mfpmath supports only 387 or sse"},
		{[]string{"-fbogus", "a.c"}, "unknown optimization option '-fbogus'"},
		{[]string{"-bisa=arm", "a.c"}, "unknown backend option '-bisa=arm'"},
		{[]string{"-bfoo", "a.c"}, "unknown backend option '-bfoo'"},
		{[]string{"-Ofast", "a.c"}, "invalid optimization level '-Ofast'"},
		{[]string{"--gcc=maybe", "a.c"}, "invalid syntax"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			_, err := ParseArgs(tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseArgsHelpAndVersion(t *testing.T) {
	opts, err := ParseArgs([]string{"--help"})
	require.NoError(t, err)
	assert.True(t, opts.Help)

	for _, arg := range []string{"--version", "-version"} {
		opts, err := ParseArgs([]string{arg})
		require.NoError(t, err, arg)
		assert.True(t, opts.Version, arg)
	}
}

func TestParseArgsForwarding(t *testing.T) {
	opts, err := ParseArgs([]string{"-Iinc", "-I", "sys", "-DX=1", "-UY", "-DZ", "-lm", "-L/opt/lib", "-pg", "a.c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"-Iinc", "-Isys", "-DX=1", "-UY", "-DZ"}, opts.CPPFlags)
	assert.Equal(t, []string{"-lm", "-L/opt/lib", "-pg"}, opts.LDFlags)
	assert.True(t, opts.Backend.Profile)

	cpp := builtinCPPOptions(opts.CPPFlags)
	assert.Equal(t, []string{"inc", "sys"}, cpp.IncludeDirs)
	assert.Equal(t, []string{"X=1", "Z"}, cpp.Defines)
	assert.Equal(t, []string{"Y"}, cpp.Undefines)
}

func TestParseArgsDialect(t *testing.T) {
	tests := []struct {
		args []string
		want types.Dialect
	}{
		{nil, types.DefaultDialect},
		{[]string{"-std=c89"}, types.C89},
		{[]string{"-std=c99"}, types.C89 | types.C99},
		{[]string{"-std=gnu99"}, types.C89 | types.C99 | types.GNUC},
		{[]string{"-std=microsoft"}, types.C89 | types.C99 | types.MS},
		{[]string{"-std=c99", "--gcc"}, types.C89 | types.C99 | types.GNUC},
		{[]string{"--gcc", "-std=c99"}, types.C89 | types.C99},
		{[]string{"--no-gcc"}, types.C89 | types.C99},
		{[]string{"--ms"}, types.DefaultDialect | types.MS},
		{[]string{"--ms", "--no-ms"}, types.DefaultDialect},
	}
	for _, tt := range tests {
		opts, err := ParseArgs(append(tt.args, "a.c"))
		require.NoError(t, err)
		assert.Equal(t, tt.want, opts.Dialect, "%v", tt.args)
	}

	opts, err := ParseArgs([]string{"-std=c11", "-pedantic", "a.c"})
	require.NoError(t, err)
	assert.Equal(t, types.DefaultDialect, opts.Dialect)
	assert.Equal(t, []string{"ignoring gcc option '-std=c11'", "ignoring gcc option '-pedantic'"}, opts.Notes)
}

func TestParseArgsTarget(t *testing.T) {
	opts, err := ParseArgs([]string{"a.c"})
	require.NoError(t, err)
	assert.Zero(t, opts.WordSize)
	assert.Nil(t, opts.CharSigned)

	opts, err = ParseArgs([]string{"-m64", "--unsigned-chars", "-march=i686", "-mtune=pentium4",
		"-mfpmath=sse", "-mpreferred-stack-boundary=4", "a.c"})
	require.NoError(t, err)
	assert.Equal(t, 64, opts.WordSize)
	require.NotNil(t, opts.CharSigned)
	assert.False(t, *opts.CharSigned)
	assert.Equal(t, "i686", opts.Backend.Arch)
	assert.Equal(t, "pentium4", opts.Backend.Tune)
	assert.Equal(t, "sse", opts.Backend.FPMath)
	assert.Equal(t, 4, opts.Backend.StackBoundary)

	opts, err = ParseArgs([]string{"--unsigned-chars", "--signed-chars", "-mcpu=k6", "a.c"})
	require.NoError(t, err)
	assert.True(t, *opts.CharSigned)
	assert.Equal(t, "k6", opts.Backend.Arch)
}

func TestParseArgsDiagnosticSwitches(t *testing.T) {
	opts, err := ParseArgs([]string{"-w", "-Wall", "a.c"})
	require.NoError(t, err)
	assert.True(t, opts.NoWarnings)
	assert.False(t, opts.Strict)

	opts, err = ParseArgs([]string{"-Werror", "a.c"})
	require.NoError(t, err)
	assert.True(t, opts.Strict)

	opts, err = ParseArgs([]string{"-Werror", "-Wno-error", "a.c"})
	require.NoError(t, err)
	assert.False(t, opts.Strict)

	opts, err = ParseArgs([]string{"--strict", "--print-implicit-cast", "--print-parenthesis", "a.c"})
	require.NoError(t, err)
	assert.True(t, opts.Strict)
	assert.True(t, opts.PrintImplicitCasts)
	assert.True(t, opts.PrintParenthesis)
}

func TestOptimizationLevels(t *testing.T) {
	tests := []struct {
		flag     string
		level    int
		passes   []string
		omitFP   bool
		builtins bool
	}{
		{"", 1, []string{"no-inline"}, false, false},
		{"-O0", 0, []string{"no-opt"}, false, false},
		{"-O", 1, []string{"no-inline"}, false, false},
		{"-O1", 1, []string{"no-inline"}, false, false},
		{"-O2", 2, []string{"inline", "deconv"}, true, false},
		{"-Os", 2, []string{"inline", "deconv"}, true, false},
		{"-O3", 3, []string{"inline", "deconv", "cond-eval", "if-conv"}, true, true},
		{"-O4", 4, []string{"inline", "deconv", "cond-eval", "if-conv", "strict-aliasing"}, true, true},
		{"-O9", 9, []string{"inline", "deconv", "cond-eval", "if-conv", "strict-aliasing"}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			args := []string{"a.c"}
			if tt.flag != "" {
				args = append(args, tt.flag)
			}
			opts, err := ParseArgs(args)
			require.NoError(t, err)
			assert.Equal(t, tt.level, opts.OptLevel)
			want := make(map[string]bool)
			for _, p := range tt.passes {
				want[p] = true
			}
			assert.Equal(t, want, opts.Passes)
			assert.Equal(t, tt.omitFP, opts.Backend.OmitFramePointer)
			assert.Equal(t, tt.builtins, opts.Builtins)
		})
	}
}

func TestPolicyFor(t *testing.T) {
	assert.Equal(t, []string{"O0"}, PolicyFor(-1).Tiers)
	assert.Equal(t, []string{"O0"}, PolicyFor(0).Tiers)
	assert.Equal(t, []string{"O1"}, PolicyFor(1).Tiers)
	assert.Equal(t, []string{"O2"}, PolicyFor(2).Tiers)
	assert.Equal(t, []string{"O2", "O3"}, PolicyFor(3).Tiers)
	assert.Equal(t, []string{"O2", "O3", "O4"}, PolicyFor(4).Tiers)
	assert.Equal(t, PolicyFor(4), PolicyFor(12))

	// each level keeps everything the level below it switched on
	for level := 3; level <= MaxLevel; level++ {
		hi, lo := PolicyFor(level), PolicyFor(level-1)
		for name := range lo.Passes {
			assert.True(t, hi.Passes[name], "level %d lost %s", level, name)
		}
	}
}

func TestLateOptions(t *testing.T) {
	parse := func(args ...string) *Options {
		t.Helper()
		opts, err := ParseArgs(append(args, "a.c"))
		require.NoError(t, err)
		return opts
	}

	assert.False(t, parse("-O2", "-fno-omit-frame-pointer").Backend.OmitFramePointer)
	assert.False(t, parse("-fno-omit-frame-pointer", "-O2").Backend.OmitFramePointer)
	assert.True(t, parse("-fomit-frame-pointer").Backend.OmitFramePointer)
	assert.True(t, parse("-bomitfp").Backend.OmitFramePointer)
	assert.False(t, parse("-O2", "-bomitfp=no").Backend.OmitFramePointer)

	o := parse("-g", "-O2")
	assert.True(t, o.Backend.Debug)
	assert.False(t, o.Backend.OmitFramePointer)
	assert.True(t, parse("-g3").Backend.Debug)
	assert.True(t, parse("-bdebuginfo=stabs").Backend.Debug)
	assert.True(t, parse("-bgprof").Backend.Profile)
	parse("-bisa=ia32")

	o = parse("-O3", "-fno-inline", "-fstrict-aliasing")
	assert.False(t, o.Passes["inline"])
	assert.True(t, o.Passes["strict-aliasing"])
	assert.True(t, parse("-fno-inline").Passes["no-inline"])

	assert.True(t, parse("-fbuiltins").Builtins)
	assert.False(t, parse("-O3", "-fno-builtins").Builtins)
}

func TestNormalizeArgs(t *testing.T) {
	in := []string{"-O", "-O2", "-g3", "-std=c99", "-pg", "-pedantic", "-version", "-o", "x", "--", "-pg"}
	want := []string{"-O1", "-O2", "-g", "--std=c99", "--pg", "--pedantic", "--version", "-o", "x", "--", "-pg"}
	assert.Equal(t, want, normalizeArgs(in))
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		input, ext, want string
	}{
		{"foo.c", ".o", "foo.o"},
		{"foo", ".o", "foo.o"},
		{"", ".o", "a.o"},
		{"-", ".s", "a.s"},
		{"src/foo.c", ".s", "foo.s"},
		{"src.d/foo", ".s", "foo.s"},
		{"a.b.c", ".s", "a.b.s"},
		{"main", ".vcg", "main.vcg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OutputName(tt.input, tt.ext), "%q", tt.input)
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"-S", "dir/prog.c"}, "prog.s"},
		{[]string{"-c", "prog.c"}, "prog.o"},
		{[]string{"prog.c"}, "a.out"},
		{[]string{"prog.o"}, "a.out"},
		{[]string{"--dump-function", "walk", "prog.c"}, "walk.vcg"},
		{[]string{"--print-ast", "prog.c"}, "-"},
		{[]string{"--lextest", "prog.c"}, "-"},
		{[]string{"-E", "prog.c"}, ""},
		{[]string{"-fsyntax-only", "prog.c"}, ""},
		{[]string{"-S", "prog.c", "-o", "out.s"}, "out.s"},
	}
	for _, tt := range tests {
		opts, err := ParseArgs(tt.args)
		require.NoError(t, err)
		assert.Equal(t, tt.want, opts.OutputPath(), "%v", tt.args)
	}
}
