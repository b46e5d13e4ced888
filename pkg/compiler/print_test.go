package compiler

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfront/pkg/types"
)

func printAST(t *testing.T, p *parsed, opts AstPrintOptions) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, PrintAST(&buf, p.unit, opts))
	return buf.String()
}

func TestPrintAST(t *testing.T) {
	p := clean(t, `
struct point {
	int x;
	int y;
};
typedef unsigned int uint;
static int counter = 3;
int scale(struct point *p, int k)
{
	uint n = k;
	if (n > 2)
		p->x *= k;
	else
		return -1;
	while (k--)
		p->y = p->y + 1;
	return p->x + (p->y << 1) * 2;
}`)
	want := "struct point {\n\tint x;\n\tint y;\n};\n" +
		"\n" +
		"typedef unsigned int uint;\n" +
		"\n" +
		"static int counter = 3;\n" +
		"\n" +
		"int scale(struct point* p, int k)\n" +
		"{\n" +
		"\tuint n = k;\n" +
		"\tif (n > 2)\n" +
		"\t\tp->x *= k;\n" +
		"\telse\n" +
		"\t\treturn -1;\n" +
		"\twhile (k--)\n" +
		"\t\tp->y = p->y + 1;\n" +
		"\treturn p->x + (p->y << 1) * 2;\n" +
		"}\n"
	assert.Equal(t, want, printAST(t, p, AstPrintOptions{Dialect: types.DefaultDialect}))
}

func TestPrintASTParenthesis(t *testing.T) {
	p := clean(t, "int f(int a, int b, int c) { return a + b * c; }")
	opts := AstPrintOptions{Dialect: types.DefaultDialect}
	assert.Contains(t, printAST(t, p, opts), "\treturn a + b * c;\n")

	opts.Parenthesis = true
	assert.Contains(t, printAST(t, p, opts), "\treturn a + (b * c);\n")
}

func TestPrintASTImplicitCasts(t *testing.T) {
	p := clean(t, "long f(char c) { return c; }")
	opts := AstPrintOptions{Dialect: types.DefaultDialect}
	assert.Contains(t, printAST(t, p, opts), "\treturn c;\n")

	opts.ImplicitCasts = true
	assert.Contains(t, printAST(t, p, opts), "\treturn (long)")
}

func TestPrintASTAnonymousMembers(t *testing.T) {
	p := clean(t, `
struct outer { union { int i; char c; }; } o;
int f(void) { return o.i; }`)
	out := printAST(t, p, AstPrintOptions{Dialect: types.DefaultDialect})
	assert.Contains(t, out, "\treturn o.i;\n")
}

func TestPrintASTBuiltins(t *testing.T) {
	sess := newSession(t)
	var diag bytes.Buffer
	unit, _, err := Compile(sess, "t.c", "int x;", Options{Dialect: types.DefaultDialect, Builtins: true}, &diag)
	require.NoError(t, err, diag.String())
	require.Greater(t, unit.Builtins, 0)

	var buf bytes.Buffer
	require.NoError(t, PrintAST(&buf, unit, AstPrintOptions{Dialect: types.DefaultDialect}))
	assert.Equal(t, "int x;\n", buf.String())

	buf.Reset()
	require.NoError(t, PrintAST(&buf, unit, AstPrintOptions{Dialect: types.DefaultDialect, Builtins: true}))
	assert.Contains(t, buf.String(), "__builtin_abs(int x)")
	assert.Contains(t, buf.String(), "int x;\n")
}

func TestWriteFluffyDecls(t *testing.T) {
	p := clean(t, `
struct point { int x; char *name; };
typedef struct { unsigned char r, g; } color;
typedef unsigned int uint;
enum mode { OFF, ON = 4 };
int draw(struct point *p, const char *, ...);
extern int count;
static int hidden;
int draw(struct point *p, const char *s, ...);
int table[8];
void (*handler)(int);
static int helper(void) { return 0; }`)
	var buf bytes.Buffer
	require.NoError(t, WriteFluffyDecls(&buf, p.sess, p.unit))
	want := "struct point:\n\tx : int\n\tname : byte*\n\n" +
		"struct color:\n\tr : unsigned byte\n\tg : unsigned byte\n\n" +
		"typealias uint <- unsigned int\n\n" +
		"enum mode:\n\tOFF = 0\n\tON = 4\n\n" +
		"func extern draw(p : point*, arg1 : byte*, ...) : int\n\n" +
		"var extern count : int\n\n" +
		"var extern table : int[8]\n\n" +
		"var extern handler : (func(int) : void)*\n\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCamlDecls(t *testing.T) {
	p := clean(t, `
struct Window;
typedef struct Window Window;
typedef struct { int a; } anon;
int _init(void);
Window *open_window(const char *title, int w, double scale);
void close_window(Window *w);
_Bool is_open(Window *w);
static int helper(int x) { return x; }
int _init(void);`)
	var buf bytes.Buffer
	require.NoError(t, WriteCamlDecls(&buf, p.sess, p.unit))
	want := "type window\n" +
		"external c_init : unit -> int = \"_init\"\n" +
		"external open_window : string -> int -> float -> window = \"open_window\"\n" +
		"external close_window : window -> unit = \"close_window\"\n" +
		"external is_open : window -> bool = \"is_open\"\n"
	assert.Equal(t, want, buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWritersReportErrors(t *testing.T) {
	p := clean(t, "struct s { int a; }; int f(int x);")
	assert.ErrorIs(t, PrintAST(failingWriter{}, p.unit, AstPrintOptions{}), io.ErrClosedPipe)
	assert.ErrorIs(t, WriteFluffyDecls(failingWriter{}, p.sess, p.unit), io.ErrClosedPipe)
	assert.ErrorIs(t, WriteCamlDecls(failingWriter{}, p.sess, p.unit), io.ErrClosedPipe)
}
