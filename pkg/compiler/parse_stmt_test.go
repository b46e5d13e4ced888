package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfront/pkg/types"
)

// body parses src and returns the statements of the function called f.
func body(t *testing.T, src string) []Stmt {
	t.Helper()
	return clean(t, src).function(t, "f").Body.Stmts
}

func TestControlFlowStatements(t *testing.T) {
	stmts := body(t, `
int f(int n) {
	int total = 0;
	if (n < 0)
		return -1;
	else if (n == 0)
		return 0;
	while (n > 100)
		n /= 2;
	do n--; while (n > 50);
	for (int i = 0; i < n; i++) {
		if (i & 1)
			continue;
		total += i;
	}
	for (;;)
		break;
	return total;
}`)
	require.Len(t, stmts, 7)

	_, ok := stmts[0].(*DeclStmt)
	assert.True(t, ok)

	ifs := stmts[1].(*IfStmt)
	assert.Equal(t, "(n < 0)", ifs.Condition.String())
	_, ok = ifs.ElseBody.(*IfStmt)
	assert.True(t, ok, "else if nests")

	_, ok = stmts[2].(*WhileStmt)
	assert.True(t, ok)
	do := stmts[3].(*DoWhileStmt)
	assert.Equal(t, "(n > 50)", do.Condition.String())

	loop := stmts[4].(*ForStmt)
	init, ok := loop.Init.(*DeclStmt)
	require.True(t, ok)
	assert.Equal(t, "i", init.Decls[0].Name)
	assert.Equal(t, "(i < n)", loop.Cond.String())
	assert.Equal(t, "(i++)", loop.Post.String())
	assert.Len(t, loop.Body.(*BlockStmt).Stmts, 2)

	forever := stmts[5].(*ForStmt)
	assert.Nil(t, forever.Init)
	assert.Nil(t, forever.Cond)
	assert.Nil(t, forever.Post)
	_, ok = forever.Body.(*BreakStmt)
	assert.True(t, ok)

	ret := stmts[6].(*ReturnStmt)
	assert.Equal(t, "total", ret.Expr.String())
}

func TestForScope(t *testing.T) {
	p := parse(t, "void f(void) { for (int i = 0; i < 3; i++) ; i = 1; }")
	assert.Contains(t, p.out, "error: 'i' undeclared")
}

func TestSwitchClauses(t *testing.T) {
	stmts := body(t, `
enum { LOW = 1, HIGH = 9 };
int f(char c) {
	switch (c) {
	case LOW:
	case 'a':
		c++;
		break;
	default:
		return 0;
	case HIGH + 1:
		return 2;
	}
	return 1;
}`)
	sw := stmts[0].(*SwitchStmt)
	assert.Equal(t, "int", types.TypeString(sw.Target.StaticType()))
	require.Len(t, sw.Clauses, 4)

	assert.Equal(t, int64(1), sw.Clauses[0].Const)
	assert.Empty(t, sw.Clauses[0].Body, "falls through to the next clause")
	assert.Equal(t, int64(97), sw.Clauses[1].Const)
	assert.Len(t, sw.Clauses[1].Body, 2)
	assert.True(t, sw.Clauses[2].IsDefault)
	assert.Nil(t, sw.Clauses[2].Value)
	assert.Equal(t, int64(10), sw.Clauses[3].Const)
}

func TestLabelsAndGoto(t *testing.T) {
	stmts := body(t, `
void f(int n) {
again:
	if (n-- > 0)
		goto again;
	goto done;
done:
	;
}`)
	require.Len(t, stmts, 3)
	l := stmts[0].(*LabeledStmt)
	assert.Equal(t, "again", l.Label)
	_, ok := l.Body.(*IfStmt)
	assert.True(t, ok)
	assert.Equal(t, "done", stmts[1].(*GotoStmt).Label)
	_, ok = stmts[2].(*LabeledStmt).Body.(*EmptyStmt)
	assert.True(t, ok)
}

func TestLocalDeclarationGroups(t *testing.T) {
	stmts := body(t, `
void f(void) {
	int a = 1, b;
	typedef int T;
	T c;
	struct pt { int x, y; };
	struct pt p = { 1, 2 };
	{
		char a = 'x';
		b = a;
	}
}`)
	require.Len(t, stmts, 6)
	assert.Len(t, stmts[0].(*DeclStmt).Decls, 2)
	assert.Equal(t, "T", stmts[1].(*TypedefStmt).Decl.Name)
	assert.Equal(t, "T", types.TypeString(stmts[2].(*DeclStmt).Decls[0].Type))
	assert.Equal(t, "struct pt", types.TypeString(stmts[3].(*TagDecl).Type))
	init := stmts[4].(*DeclStmt).Decls[0].Init
	assert.Equal(t, "{1, 2}", init.String())

	inner := stmts[5].(*BlockStmt)
	assign := inner.Stmts[1].(*ExprStmt).Expr.(*AssignExpr)
	assert.Equal(t, "char", types.TypeString(assign.Right.(*CastExpr).Expr.StaticType()))
}

func TestAsmStatement(t *testing.T) {
	p := clean(t, `
asm("nop");
void f(void) {
	asm volatile ("movl %0, %%eax" : : "r"(1));
	__asm__("hlt");
}`)
	top := p.decl(t, 0).(*AsmStmt)
	assert.Equal(t, "nop", top.Instruction)

	stmts := p.function(t, "f").Body.Stmts
	require.Len(t, stmts, 2)
	assert.Equal(t, "movl %0, %%eax", stmts[0].(*AsmStmt).Instruction)
	assert.Equal(t, "hlt", stmts[1].(*AsmStmt).Instruction)
}

func TestStatementErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"break", "void f(void) { break; }", "break statement not within loop or switch"},
		{"continue", "void f(void) { continue; }", "continue statement not within a loop"},
		{"continue in switch", "void f(int x) { switch (x) { case 1: continue; } }", "continue statement not within a loop"},
		{"undefined label", "void f(void) { goto out; }", "label 'out' used but not defined"},
		{"duplicate label", "void f(void) { a: ; a: ; }", "duplicate label 'a'"},
		{"duplicate case", "void f(int x) { switch (x) { case 1: ; case 2 - 1: ; } }", "duplicate case value"},
		{"two defaults", "void f(int x) { switch (x) { default: ; default: ; } }", "multiple default labels in one switch"},
		{"float switch", "void f(double d) { switch (d) { } }", "switch quantity not an integer"},
		{"variable case", "void f(int x, int y) { switch (x) { case y: ; } }", "case label does not reduce to an integer constant"},
		{"case outside switch", "void f(void) { case 1: ; }", "'case' label not within a switch statement"},
		{"default outside switch", "void f(void) { default: ; }", "'default' label not within a switch statement"},
		{"nested case", "void f(int x) { switch (x) { case 1: { case 2: ; } } }", "'case' label in a nested block is not supported"},
		{"aggregate condition", "struct s { int a; } v; void f(void) { if (v) ; }", "used value where scalar is required"},
		{"missing statement", "void f(void) { while (1) }", "expected expression before '}'"},
		{"missing while", "void f(void) { do ; (1); }", "expected 'while' before '('"},
		{"missing paren", "void f(void) { if 1) ; }", "expected '(' before '1'"},
		{"asm operand", "void f(void) { asm(1); }", "expected string literal before '1'"},
		{"unterminated body", "void f(void) { int x;", "expected '}' before end of input"},
		{"incomplete return", "struct s; struct s f(void) { }", "return type is an incomplete type"},
		{"parameter name", "void f(int) { }", "parameter name omitted"},
		{"parameter twice", "void f(int a, int a) { }", "redefinition of parameter 'a'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := parse(t, tt.src)
			assert.True(t, p.diag.HasErrors())
			assert.Contains(t, p.out, "error: "+tt.want)
		})
	}
}

func TestStatementWarnings(t *testing.T) {
	tests := []struct {
		name    string
		dialect types.Dialect
		src     string
		want    string
	}{
		{"bare return", types.DefaultDialect, "int f(void) { return; }", "'return' with no value, in function returning non-void"},
		{"void return value", types.DefaultDialect, "void f(void) { return 1; }", "'return' with a value, in function returning void"},
		{"return pointer", types.DefaultDialect, "int f(int *p) { return p; }", "return makes integer from pointer without a cast"},
		{"trailing label", types.DefaultDialect, "void f(void) { a: }", "label at end of compound statement"},
		{"dead switch code", types.DefaultDialect, "void f(int x) { switch (x) { x++; case 1: ; } }", "statement will never be executed"},
		{"mixed declarations", types.C89, "void f(void) { int a; a = 1; int b; }", "ISO C90 forbids mixed declarations and code"},
		{"for declaration", types.C89, "void f(void) { for (int i = 0; i < 3; i++) ; }", "'for' loop initial declarations are only allowed in C99 mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := parseDialect(t, tt.src, tt.dialect)
			assert.False(t, p.diag.HasErrors(), p.out)
			assert.Contains(t, p.out, "warning: "+tt.want)
		})
	}
}

func TestStatementRecovery(t *testing.T) {
	p := parse(t, `
int f(int x) {
	x = ;
	x = 2;
	return x;
}
int g(void) { return 1; }`)
	assert.Equal(t, 1, p.diag.ErrorCount())
	assert.Contains(t, p.out, "t.c:3: error: expected expression before ';'")
	assert.Len(t, p.function(t, "f").Body.Stmts, 2)
	p.function(t, "g")
}
