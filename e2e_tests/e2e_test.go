package main

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfront/pkg/driver"
)

const fibSource = `
int fib(int n) {
    if (n == 0) { return 0; }
    if (n == 1) { return 1; }
    return fib(n - 1) + fib(n - 2);
}

int main() {
    int limit = 6;
    int result = fib(limit);
    return result;
}
`

// run drives one compilation with the builtin preprocessor and cfg's tools.
func run(t *testing.T, cfg *driver.Config, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	log := logrus.New()
	log.SetOutput(&stderr)
	d := &driver.Driver{
		Stdin:  strings.NewReader(""),
		Stdout: &stdout,
		Stderr: &stderr,
		Runner: driver.ExecRunner{},
		Log:    log,
		Config: cfg,
	}
	code := d.Run(context.Background(), args)
	return code, stdout.String(), stderr.String()
}

func builtinConfig(t *testing.T) *driver.Config {
	cfg := driver.DefaultConfig()
	cfg.Preprocessor = driver.BuiltinPreprocessor
	cfg.TempDir = t.TempDir()
	return cfg
}

func TestCompilerToAssembly(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "fib.c")
	require.NoError(t, os.WriteFile(src, []byte(fibSource), 0o644))
	out := filepath.Join(dir, "fib.s")

	code, _, stderr := run(t, builtinConfig(t), "-S", src, "-o", out)
	require.Equal(t, 0, code, stderr)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	asm := string(data)
	t.Logf("Generated Assembly:\n%s", asm)
	assert.Contains(t, asm, "\t.globl\tfib\nfib:\n")
	assert.Contains(t, asm, "\t.globl\tmain\nmain:\n")
	assert.Regexp(t, `call\s+fib`, asm)
}

// Stages a mode does not reach must not run. The tools here do not exist,
// so any mode that touched them would fail.
func TestModesStopAtTheirStage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "fib.c")
	require.NoError(t, os.WriteFile(src, []byte(fibSource), 0o644))

	cfg := builtinConfig(t)
	cfg.Assembler = "cfront-test-no-such-assembler"
	cfg.Linker = "cfront-test-no-such-linker"

	for _, args := range [][]string{
		{"-E", src},
		{"--lextest", src},
		{"-fsyntax-only", src},
		{"--print-ast", src},
		{"--print-fluffy", src},
		{"--print-caml", src},
		{"--benchmark", src},
		{"-S", src, "-o", filepath.Join(dir, "out.s")},
		{"--dump-function", "fib", src, "-o", filepath.Join(dir, "fib.vcg")},
	} {
		t.Run(args[0], func(t *testing.T) {
			code, _, stderr := run(t, cfg, args...)
			assert.Equal(t, 0, code, stderr)
		})
	}

	code, _, stderr := run(t, cfg, "-c", src, "-o", filepath.Join(dir, "fib.o"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invoking assembler failed")
	assert.NoFileExists(t, filepath.Join(dir, "fib.o"))
}

// Set CFRONT_E2E_TOOLCHAIN to run the program through a real 32-bit
// assembler and linker.
func TestCompilerAndToolchain(t *testing.T) {
	if os.Getenv("CFRONT_E2E_TOOLCHAIN") == "" {
		t.Skip("CFRONT_E2E_TOOLCHAIN not set")
	}
	dir := t.TempDir()
	src := filepath.Join(dir, "fib.c")
	require.NoError(t, os.WriteFile(src, []byte(fibSource), 0o644))
	exe := filepath.Join(dir, "fib")

	code, _, stderr := run(t, builtinConfig(t), src, "-o", exe)
	require.Equal(t, 0, code, stderr)

	err := exec.Command(exe).Run()
	var ee *exec.ExitError
	require.ErrorAs(t, err, &ee)
	// the 6th Fibonacci number: 0, 1, 1, 2, 3, 5, 8
	assert.Equal(t, 8, ee.ExitCode())
}
