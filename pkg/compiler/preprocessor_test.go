package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocessor(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected string
	}{
		{
			name:     "simple define",
			src:      "#define X 10\nint a = X;",
			expected: "int a = 10;",
		},
		{
			name:     "nested defines expand eagerly",
			src:      "#define ONE 1\n#define TWO (ONE+ONE)\nint b = TWO;",
			expected: "int b = (1+1);",
		},
		{
			name:     "function-like macro",
			src:      "#define ADD(a, b) a + b\nint x = ADD(10, 20);",
			expected: "int x = 10 + 20;",
		},
		{
			name:     "arguments with parentheses",
			src:      "#define MIN(a,b) ((a)<(b)?(a):(b))\nMIN(f(x, 1), y)",
			expected: "((f(x, 1))<(y)?(f(x, 1)):(y))",
		},
		{
			name:     "function-like name without call",
			src:      "#define F(x) x\nint F;",
			expected: "int F;",
		},
		{
			name:     "self reference stops",
			src:      "#define foo foo + 1\nfoo",
			expected: "foo + 1",
		},
		{
			name:     "literals and longer words untouched",
			src:      "#define X 1\n\"X\" 'X' X1 1X X",
			expected: "\"X\" 'X' X1 1X 1",
		},
		{
			name:     "undef",
			src:      "#define X 1\n#undef X\nX",
			expected: "X",
		},
		{
			name:     "if with defined and arithmetic",
			src:      "#define A 2\n#if A > 1 && defined(A)\nyes\n#elif 1\nno\n#else\nno2\n#endif",
			expected: "yes",
		},
		{
			name:     "elif taken",
			src:      "#if 0\na\n#elif 2 * 3 == 6\nb\n#else\nc\n#endif",
			expected: "b",
		},
		{
			name:     "ifndef else",
			src:      "#ifndef B\nmissing\n#else\nthere\n#endif",
			expected: "missing",
		},
		{
			name:     "skipped branch hides nested if",
			src:      "#if 0\n#if 1\nx\n#endif\n#else\ny\n#endif",
			expected: "y",
		},
		{
			name:     "undefined identifiers are zero",
			src:      "#if UNKNOWN || !defined UNKNOWN\nz\n#endif",
			expected: "z",
		},
		{
			name:     "predefined",
			src:      "__STDC__ __STDC_VERSION__",
			expected: "1 199901L",
		},
		{
			name:     "continuation",
			src:      "#define SUM 1 + \\\n2\nSUM",
			expected: "1 + 2",
		},
		{
			name:     "pragma is dropped",
			src:      "#pragma once\nkept",
			expected: "kept",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Preprocess("t.c", tt.src, PreprocessOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, strings.TrimSpace(out))
		})
	}
}

func TestPreprocessKeepsLineCount(t *testing.T) {
	out, err := Preprocess("t.c", "#define A 1\n\n#if 0\nx\n#endif\nA", PreprocessOptions{})
	require.NoError(t, err)
	assert.Equal(t, "\n\n\n\n\n1\n", out)
}

func TestPreprocessCommandLineDefines(t *testing.T) {
	opts := PreprocessOptions{
		Defines:   []string{"DEBUG", "LEVEL=3"},
		Undefines: []string{"__i386__"},
	}
	out, err := Preprocess("t.c", "DEBUG LEVEL __i386__", opts)
	require.NoError(t, err)
	assert.Equal(t, "1 3 __i386__", strings.TrimSpace(out))
}

func TestPreprocessErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"elif without if", "#elif 1", "t.c:1: #elif without #if"},
		{"else without if", "x\n#else", "t.c:2: #else without #if"},
		{"endif without if", "#endif", "t.c:1: #endif without #if"},
		{"unterminated", "#if 1\nx", "t.c:2: unterminated conditional directive"},
		{"error directive", "#error boom", "t.c:1: #error boom"},
		{"unknown directive", "#frobnicate", "t.c:1: invalid preprocessing directive #frobnicate"},
		{"division by zero", "#if 1/0\n#endif", "t.c:1: division by zero"},
		{"unbalanced", "#if (1\n#endif", "t.c:1: missing ')' in expression"},
		{"empty define", "#define", "t.c:1: no macro name given in #define directive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Preprocess("t.c", tt.src, PreprocessOptions{})
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestPreprocessInclude(t *testing.T) {
	dir := t.TempDir()
	header := filepath.Join(dir, "defs.h")
	writeFile(t, header, "#define SIZE 4\nint table[SIZE];")
	main := filepath.Join(dir, "main.c")

	out, err := Preprocess(main, "#include \"defs.h\"\nint n = SIZE;", PreprocessOptions{})
	require.NoError(t, err)

	assert.Contains(t, out, fmt.Sprintf("# 1 %q\n", header))
	assert.Contains(t, out, "int table[4];")
	assert.Contains(t, out, fmt.Sprintf("# 2 %q\n", main))
	assert.Contains(t, out, "int n = 4;")
}

func TestPreprocessIncludeSearchPath(t *testing.T) {
	dir := t.TempDir()
	inc := filepath.Join(dir, "inc")
	writeFile(t, filepath.Join(inc, "lib.h"), "int lib;")
	main := filepath.Join(dir, "main.c")

	out, err := Preprocess(main, "#include <lib.h>", PreprocessOptions{IncludeDirs: []string{inc}})
	require.NoError(t, err)
	assert.Contains(t, out, "int lib;")

	_, err = Preprocess(main, "#include <lib.h>", PreprocessOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lib.h: no such file in include path")
}

func TestPreprocessIncludeOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.h"), "int once;")

	out, err := Preprocess(filepath.Join(dir, "main.c"), "#include \"a.h\"\n#include \"a.h\"", PreprocessOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "int once;"))
}

func TestPreprocessIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.h"), "#include \"b.h\"")
	writeFile(t, filepath.Join(dir, "b.h"), "#include \"a.h\"")

	_, err := Preprocess(filepath.Join(dir, "main.c"), "#include \"a.h\"", PreprocessOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular include detected: a.h")
}
