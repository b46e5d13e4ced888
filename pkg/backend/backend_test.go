package backend

import (
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfront/pkg/compiler"
	"cfront/pkg/types"
)

func newSession(t *testing.T) *types.Session {
	t.Helper()
	sess := types.NewSession(types.MustTarget(types.DefaultTargetConfig()))
	t.Cleanup(sess.Close)
	return sess
}

func parse(t *testing.T, sess *types.Session, src string, builtins bool) *compiler.TranslationUnit {
	t.Helper()
	unit, _, err := compiler.Compile(sess, "test.c", src, compiler.Options{Dialect: types.DefaultDialect, Builtins: builtins}, io.Discard)
	require.NoError(t, err)
	return unit
}

// lower compiles src and returns the backend with the assembly it wrote.
func lower(t *testing.T, src string, opts Options) (*I386, string) {
	t.Helper()
	sess := newSession(t)
	unit := parse(t, sess, src, false)
	g, err := New(sess, opts)
	require.NoError(t, err)
	require.NoError(t, g.Lower(unit))
	var sb strings.Builder
	require.NoError(t, g.Finish(&sb, "test.c"))
	return g, sb.String()
}

func hasInstr(fn *Function, op string, args ...string) bool {
	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			if in.Op == op && slices.Equal(in.Args, args) {
				return true
			}
		}
	}
	return false
}

func mustFunction(t *testing.T, g *I386, name string) *Function {
	t.Helper()
	fn, ok := g.Function(name)
	require.True(t, ok, "function %s not lowered", name)
	return fn
}

func TestReturnConstant(t *testing.T) {
	g, out := lower(t, "int main(void) { return 42; }", Options{})
	fn := mustFunction(t, g, "main")

	assert.True(t, fn.Global)
	assert.True(t, hasInstr(fn, "pushl", "%ebp"))
	assert.True(t, hasInstr(fn, "movl", "$42", "%eax"))
	assert.Contains(t, out, "\t.globl\tmain\nmain:\n")
	assert.Contains(t, out, "\tleave\n\tret\n")
	assert.Contains(t, out, ".note.GNU-stack")
}

func TestOmitFramePointer(t *testing.T) {
	g, out := lower(t, "int f(int a) { int b = a; return b; }", Options{OmitFramePointer: true})
	fn := mustFunction(t, g, "f")

	assert.Equal(t, 4, fn.FrameSize)
	assert.True(t, hasInstr(fn, "subl", "$4", "%esp"))
	assert.True(t, hasInstr(fn, "leal", "8(%esp)", "%eax"), "parameter above the return address")
	assert.NotContains(t, out, "%ebp")
	assert.Contains(t, out, "\taddl   $4, %esp\n\tret\n")
}

func TestFramePointerSlots(t *testing.T) {
	g, _ := lower(t, "int f(int a, char c) { int b = a + c; return b; }", Options{})
	fn := mustFunction(t, g, "f")

	assert.True(t, hasInstr(fn, "leal", "8(%ebp)", "%eax"))
	assert.True(t, hasInstr(fn, "leal", "12(%ebp)", "%eax"))
	assert.True(t, hasInstr(fn, "movsbl", "(%eax)", "%eax"), "char parameter is sign extended")
	assert.True(t, hasInstr(fn, "leal", "-4(%ebp)", "%ecx"))
}

func TestPointerArithmeticScales(t *testing.T) {
	g, _ := lower(t, `
int get(int *p, int i) { return p[i]; }
int diff(int *a, int *b) { return a - b; }
`, Options{})

	assert.True(t, hasInstr(mustFunction(t, g, "get"), "imull", "$4", "%eax", "%eax"))
	d := mustFunction(t, g, "diff")
	assert.True(t, hasInstr(d, "subl", "%ecx", "%eax"))
	assert.True(t, hasInstr(d, "idivl", "%ecx"))
}

func TestUnsignedOperations(t *testing.T) {
	g, _ := lower(t, `
unsigned q(unsigned a, unsigned b) { return a / b; }
int lt(unsigned a, unsigned b) { return a < b; }
int slt(int a, int b) { return a < b; }
unsigned sh(unsigned a) { return a >> 2; }
`, Options{})

	assert.True(t, hasInstr(mustFunction(t, g, "q"), "divl", "%ecx"))
	assert.True(t, hasInstr(mustFunction(t, g, "lt"), "setb", "%al"))
	assert.True(t, hasInstr(mustFunction(t, g, "slt"), "setl", "%al"))
	assert.True(t, hasInstr(mustFunction(t, g, "sh"), "shrl", "%cl", "%eax"))
}

func TestSwitchComparesEveryCase(t *testing.T) {
	g, _ := lower(t, `
int f(int x) {
	switch (x) {
	case 1: return 10;
	case 3: return 30;
	default: return 0;
	}
}`, Options{})
	fn := mustFunction(t, g, "f")

	assert.True(t, hasInstr(fn, "cmpl", "$1", "%eax"))
	assert.True(t, hasInstr(fn, "cmpl", "$3", "%eax"))
	branches := 0
	for _, b := range fn.Blocks {
		if b.Term.Kind == TermBranch && b.Term.Op == "je" {
			branches++
		}
	}
	assert.Equal(t, 2, branches)
}

func TestLoopsAndLogical(t *testing.T) {
	g, _ := lower(t, `
int count(int n) {
	int i, c = 0;
	for (i = 0; i < n; i++) {
		if (i == 3 || i == 5)
			continue;
		if (i > 8 && n > 10)
			break;
		c += 2;
	}
	do { c--; } while (c > 100);
	return c;
}`, Options{})
	fn := mustFunction(t, g, "count")

	var jumps, rets int
	for _, b := range fn.Blocks {
		switch b.Term.Kind {
		case TermJump:
			jumps++
		case TermReturn:
			rets++
		}
	}
	assert.Positive(t, jumps)
	assert.Equal(t, 1, rets)
	assert.True(t, hasInstr(fn, "addl", "%ecx", "%eax"))
}

func TestStructMembersAndBitfields(t *testing.T) {
	g, _ := lower(t, `
struct rec { char tag; int value; unsigned lo:4, hi:4; };
int get(struct rec *r) { return r->value; }
unsigned hi(struct rec *r) { return r->hi; }
void set(struct rec *r, unsigned v) { r->hi = v; }
`, Options{})

	assert.True(t, hasInstr(mustFunction(t, g, "get"), "addl", "$4", "%eax"))
	h := mustFunction(t, g, "hi")
	assert.True(t, hasInstr(h, "shrl", "$4", "%eax"))
	assert.True(t, hasInstr(h, "andl", "$15", "%eax"))
	s := mustFunction(t, g, "set")
	assert.True(t, hasInstr(s, "andl", "$-241", "%edx"))
	assert.True(t, hasInstr(s, "orl", "%edx", "%eax"))
}

func TestStructCopy(t *testing.T) {
	g, _ := lower(t, `
struct pair { int a, b; };
void assign(struct pair *d, struct pair *s) { *d = *s; }
`, Options{})
	fn := mustFunction(t, g, "assign")

	assert.True(t, hasInstr(fn, "movl", "$8", "%ecx"))
	assert.True(t, hasInstr(fn, "rep movsb"))
}

func TestGlobalData(t *testing.T) {
	_, out := lower(t, `
int x = 5;
static char buf[8];
int *p = &x;
char s[] = "hi";
int y;
int y;
short list[4] = { 1, 2 };
extern int elsewhere;
`, Options{})

	assert.Contains(t, out, "\t.globl\tx\n\t.balign\t4\nx:\n\t.long\t5\n")
	assert.Contains(t, out, "\t.local\tbuf\n\t.comm\tbuf,8,1\n")
	assert.Contains(t, out, "p:\n\t.long\tx\n")
	assert.Contains(t, out, "s:\n\t.ascii\t\"hi\"\n\t.zero\t1\n")
	assert.Equal(t, 1, strings.Count(out, ".comm\ty,4,4"))
	assert.Contains(t, out, "list:\n\t.short\t1\n\t.short\t2\n\t.zero\t4\n")
	assert.NotContains(t, out, "elsewhere")
}

func TestBitfieldInitializer(t *testing.T) {
	_, out := lower(t, "struct s { int a:3; int b:5; char c; } v = { 1, 2, 'x' };", Options{})
	assert.Contains(t, out, "v:\n\t.long\t17\n\t.byte\t120\n\t.zero\t3\n")
}

func TestStringsArePooled(t *testing.T) {
	_, out := lower(t, `
const char *a = "same";
const char *b = "same";
const char *c = "other" + 1;
`, Options{})

	assert.Equal(t, 1, strings.Count(out, "\t.string \"same\""))
	assert.Contains(t, out, "a:\n\t.long\t.LC0\n")
	assert.Contains(t, out, "b:\n\t.long\t.LC0\n")
	assert.Contains(t, out, "c:\n\t.long\t.LC1+1\n")
}

func TestNonConstantInitializer(t *testing.T) {
	sess := newSession(t)
	unit := parse(t, sess, "static int k; int *q = &k; int w = sizeof(k) * 2;", false)
	g, err := New(sess, Options{})
	require.NoError(t, err)
	require.NoError(t, g.Lower(unit))
	var sb strings.Builder
	require.NoError(t, g.Finish(&sb, "test.c"))
	assert.Contains(t, sb.String(), "q:\n\t.long\tk\n")
	assert.Contains(t, sb.String(), "w:\n\t.long\t8\n")

	sess = newSession(t)
	unit = parse(t, sess, "int b = 1; int c = b;", false)
	g, err = New(sess, Options{})
	require.NoError(t, err)
	assert.EqualError(t, g.Lower(unit), "c: initializer element is not constant")
}

func TestStaticLocal(t *testing.T) {
	_, out := lower(t, "int counter(void) { static int n; static int start = 7; return ++n + start; }", Options{})

	assert.Contains(t, out, "\t.local\tn.")
	assert.Contains(t, out, "\t.long\t7\n")
	assert.NotContains(t, out, "\t.globl\tstart")
}

func TestLocalInitializers(t *testing.T) {
	g, _ := lower(t, `
int f(void) {
	int v[4] = { 1, 2 };
	char s[8] = "abc";
	return v[1] + s[0];
}`, Options{})
	fn := mustFunction(t, g, "f")

	assert.True(t, hasInstr(fn, "rep stosb"))
	assert.True(t, hasInstr(fn, "movl", "$.LC0", "%eax"))
	assert.True(t, hasInstr(fn, "movl", "$4", "%ecx"), "string copied with its terminator")
}

func TestDeadStaticFunctionsDropped(t *testing.T) {
	g, out := lower(t, `
static int unused(void) { return 1; }
static int used(void) { return 2; }
static int viaPointer(void) { return 3; }
int (*fp)(void) = viaPointer;
int main(void) { return used(); }
`, Options{})

	_, ok := g.Function("unused")
	assert.False(t, ok)
	used := mustFunction(t, g, "used")
	assert.False(t, used.Global)
	mustFunction(t, g, "viaPointer")
	assert.Contains(t, out, "fp:\n\t.long\tviaPointer\n")
	assert.NotContains(t, out, "\nunused:")
}

func TestBuiltins(t *testing.T) {
	sess := newSession(t)
	unit := parse(t, sess, `int main(void) { return __builtin_abs(-3) + (int)__builtin_strlen("ab"); }`, true)
	g, err := New(sess, Options{})
	require.NoError(t, err)
	require.NoError(t, g.Lower(unit))

	mustFunction(t, g, "__builtin_abs")
	_, ok := g.Function("__builtin_isdigit")
	assert.False(t, ok, "unused builtins are dropped")
	main := mustFunction(t, g, "main")
	assert.True(t, hasInstr(main, "call", "__builtin_abs"))
	assert.True(t, hasInstr(main, "call", "strlen"))
}

func TestProfileAndDebug(t *testing.T) {
	g, out := lower(t, "int v = 1; void f(void) {}", Options{Profile: true, Debug: true})

	assert.True(t, hasInstr(mustFunction(t, g, "f"), "call", "mcount"))
	assert.Contains(t, out, "\t.type\tf, @function\n")
	assert.Contains(t, out, "\t.size\tf, .-f\n")
	assert.Contains(t, out, "\t.type\tv, @object\n\t.size\tv, 4\n")
}

func TestUnsupportedConstructs(t *testing.T) {
	tests := []struct {
		name string
		src  string
		opts Options
		want string
	}{
		{"double", "double f(double x) { return x; }", Options{}, "floating point"},
		{"long long", "long long f(long long x) { return x + 1; }", Options{}, "64-bit integers"},
		{"struct return", "struct p { int a; }; struct p f(void) { struct p v = { 1 }; return v; }", Options{}, "returning a struct"},
		{"alloca without frame pointer", "void *f(void) { return __builtin_alloca(8); }", Options{OmitFramePointer: true}, "frame pointer"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sess := newSession(t)
			unit := parse(t, sess, "void *__builtin_alloca(unsigned int);\n"+tc.src, false)
			g, err := New(sess, tc.opts)
			require.NoError(t, err)
			err = g.Lower(unit)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
			assert.Contains(t, err.Error(), "in function 'f'")
		})
	}
}

func TestNewValidatesOptions(t *testing.T) {
	sess := newSession(t)
	for _, opts := range []Options{
		{Arch: "z80"},
		{Tune: "vax"},
		{FPMath: "neon"},
		{StackBoundary: 13},
	} {
		_, err := New(sess, opts)
		assert.Error(t, err, "%+v", opts)
	}
	_, err := New(sess, Options{Arch: "i686", Tune: "pentium4", FPMath: "387", StackBoundary: 4})
	assert.NoError(t, err)

	wide := types.NewSession(types.MustTarget(types.TargetConfig{WordSize: 64, CharIsSigned: true, WcharKind: types.Int}))
	defer wide.Close()
	_, err = New(wide, Options{})
	assert.ErrorContains(t, err, "32-bit")
}

func TestStackBoundaryAlignsFrame(t *testing.T) {
	g, _ := lower(t, "int f(void) { char c = 1; return c; }", Options{StackBoundary: 4})
	assert.Equal(t, 16, mustFunction(t, g, "f").FrameSize)
}

func TestDumpFunction(t *testing.T) {
	g, _ := lower(t, "int f(int n) { while (n) n--; return n; }", Options{})

	var sb strings.Builder
	require.NoError(t, g.DumpFunction("f", &sb))
	out := sb.String()
	assert.True(t, strings.HasPrefix(out, "graph: {\n\ttitle: \"f\"\n"))
	assert.Contains(t, out, `node: { title: "f.0"`)
	assert.Contains(t, out, `edge: { sourcename: "f.0"`)
	assert.Contains(t, out, `label: "taken"`)
	assert.True(t, strings.HasSuffix(out, "}\n"))

	assert.ErrorContains(t, g.DumpFunction("missing", &sb), "function 'missing' not found")
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"a\"b\n\001\\"`, quote("a\"b\n\x01\\"))
	assert.Equal(t, `""`, quote(""))
}
