package compiler

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"cfront/pkg/types"
)

// AstPrintOptions control PrintAST.
type AstPrintOptions struct {
	Dialect types.Dialect
	// ImplicitCasts shows the conversions inserted by the type checks as
	// explicit casts.
	ImplicitCasts bool
	// Parenthesis wraps every compound expression in parentheses instead
	// of only where precedence needs them.
	Parenthesis bool
	// Builtins includes the builtin declarations.
	Builtins bool
}

// astPrinter writes a translation unit back out as C source.
type astPrinter struct {
	w      io.Writer
	tp     *types.Printer
	opts   AstPrintOptions
	indent int
	err    error
}

// PrintAST writes unit as C source text to w.
func PrintAST(w io.Writer, unit *TranslationUnit, opts AstPrintOptions) error {
	ap := &astPrinter{
		w:    w,
		tp:   types.NewPrinter(w, types.PrinterOptions{Dialect: opts.Dialect}),
		opts: opts,
	}
	decls := unit.Decls
	if !opts.Builtins {
		decls = decls[unit.Builtins:]
	}
	for i, d := range decls {
		if i > 0 {
			ap.puts("\n")
		}
		ap.topLevel(d)
	}
	if ap.err != nil {
		return ap.err
	}
	return ap.tp.Err()
}

func (ap *astPrinter) puts(s string) {
	if ap.err != nil {
		return
	}
	_, ap.err = io.WriteString(ap.w, s)
}

func (ap *astPrinter) printf(format string, args ...any) {
	ap.puts(fmt.Sprintf(format, args...))
}

func (ap *astPrinter) printIndent() {
	ap.puts(strings.Repeat("\t", ap.indent))
}

func (ap *astPrinter) declType(t *types.Type, name string, params []*types.Parameter) {
	ap.tp.SetIndent(ap.indent)
	ap.tp.PrintTypeExt(t, name, params)
}

func (ap *astPrinter) topLevel(s Stmt) {
	switch s := s.(type) {
	case *FunctionDecl:
		ap.storage(s.Storage)
		if s.Inline {
			ap.puts("inline ")
		}
		ap.declType(s.Type, s.Name, s.Params)
		if s.Body == nil {
			ap.puts(";\n")
			return
		}
		ap.puts("\n")
		ap.block(s.Body)
	default:
		ap.stmt(s)
	}
}

func (ap *astPrinter) storage(s StorageClass) {
	if s != StorageNone {
		ap.puts(s.String())
		ap.puts(" ")
	}
}

func (ap *astPrinter) variable(d *VariableDecl) {
	ap.storage(d.Storage)
	ap.declType(d.Type, d.Name, nil)
	if d.Init != nil {
		ap.puts(" = ")
		ap.expr(d.Init, precAssign)
	}
}

// tagDefinition writes a struct, union or enum declaration with its body.
func (ap *astPrinter) tagDefinition(t *types.Type) {
	ap.tp.SetIndent(ap.indent)
	switch t.Kind {
	case types.KindEnum:
		ap.puts("enum ")
		if t.Enum.Name != "" {
			ap.puts(t.Enum.Name + " ")
		}
		if t.Enum.Values != nil {
			ap.tp.PrintEnumDefinition(t.Enum)
		}
	case types.KindStruct, types.KindUnion:
		ap.puts(compoundWord(t) + " ")
		if t.Compound.Name != "" {
			ap.puts(t.Compound.Name + " ")
		}
		if t.Compound.Complete {
			ap.tp.PrintCompoundDefinition(t.Compound)
		}
	default:
		ap.tp.PrintType(t)
	}
}

func (ap *astPrinter) block(b *BlockStmt) {
	ap.printIndent()
	ap.puts("{\n")
	ap.indent++
	for _, s := range b.Stmts {
		ap.stmt(s)
	}
	ap.indent--
	ap.printIndent()
	ap.puts("}\n")
}

// body prints the statement controlled by if, while, for or do.
func (ap *astPrinter) body(s Stmt) {
	if b, ok := s.(*BlockStmt); ok {
		ap.block(b)
		return
	}
	ap.indent++
	ap.stmt(s)
	ap.indent--
}

func (ap *astPrinter) stmt(s Stmt) {
	switch s := s.(type) {
	case *BlockStmt:
		ap.block(s)
	case *DeclStmt:
		for _, d := range s.Decls {
			ap.printIndent()
			ap.variable(d)
			ap.puts(";\n")
		}
	case *VariableDecl:
		ap.printIndent()
		ap.variable(s)
		ap.puts(";\n")
	case *TypedefStmt:
		ap.printIndent()
		ap.puts("typedef ")
		ap.declType(s.Decl.Type, s.Decl.Name, nil)
		ap.puts(";\n")
	case *TagDecl:
		ap.printIndent()
		ap.tagDefinition(s.Type)
		ap.puts(";\n")
	case *FunctionDecl:
		ap.printIndent()
		ap.topLevel(s)
	case *ExprStmt:
		ap.printIndent()
		ap.expr(s.Expr, precComma)
		ap.puts(";\n")
	case *EmptyStmt:
		ap.printIndent()
		ap.puts(";\n")
	case *ReturnStmt:
		ap.printIndent()
		ap.puts("return")
		if s.Expr != nil {
			ap.puts(" ")
			ap.expr(s.Expr, precComma)
		}
		ap.puts(";\n")
	case *IfStmt:
		ap.printIndent()
		ap.puts("if (")
		ap.expr(s.Condition, precComma)
		ap.puts(")\n")
		ap.body(s.Body)
		if s.ElseBody != nil {
			ap.printIndent()
			ap.puts("else\n")
			ap.body(s.ElseBody)
		}
	case *WhileStmt:
		ap.printIndent()
		ap.puts("while (")
		ap.expr(s.Condition, precComma)
		ap.puts(")\n")
		ap.body(s.Body)
	case *DoWhileStmt:
		ap.printIndent()
		ap.puts("do\n")
		ap.body(s.Body)
		ap.printIndent()
		ap.puts("while (")
		ap.expr(s.Condition, precComma)
		ap.puts(");\n")
	case *ForStmt:
		ap.printIndent()
		ap.puts("for (")
		ap.forInit(s.Init)
		ap.puts(";")
		if s.Cond != nil {
			ap.puts(" ")
			ap.expr(s.Cond, precComma)
		}
		ap.puts(";")
		if s.Post != nil {
			ap.puts(" ")
			ap.expr(s.Post, precComma)
		}
		ap.puts(")\n")
		ap.body(s.Body)
	case *SwitchStmt:
		ap.printIndent()
		ap.puts("switch (")
		ap.expr(s.Target, precComma)
		ap.puts(") {\n")
		for _, c := range s.Clauses {
			ap.printIndent()
			if c.IsDefault {
				ap.puts("default:\n")
			} else {
				ap.puts("case ")
				ap.expr(c.Value, precConditional)
				ap.puts(":\n")
			}
			ap.indent++
			for _, b := range c.Body {
				ap.stmt(b)
			}
			ap.indent--
		}
		ap.printIndent()
		ap.puts("}\n")
	case *BreakStmt:
		ap.printIndent()
		ap.puts("break;\n")
	case *ContinueStmt:
		ap.printIndent()
		ap.puts("continue;\n")
	case *GotoStmt:
		ap.printIndent()
		ap.printf("goto %s;\n", s.Label)
	case *LabeledStmt:
		ap.printf("%s:\n", s.Label)
		ap.stmt(s.Body)
	case *AsmStmt:
		ap.printIndent()
		ap.printf("asm(%s);\n", strconv.Quote(s.Instruction))
	default:
		ap.printIndent()
		ap.printf("/* %s */\n", s)
	}
}

func (ap *astPrinter) forInit(s Stmt) {
	switch s := s.(type) {
	case nil:
	case *ExprStmt:
		ap.expr(s.Expr, precComma)
	case *DeclStmt:
		for i, d := range s.Decls {
			if i > 0 {
				ap.puts(", ")
			}
			ap.variable(d)
		}
	default:
		ap.printf("/* %s */", s)
	}
}

// Expression precedence levels, loosest first.
const (
	precComma = iota
	precAssign
	precConditional
	precLogicalOr
	precLogicalAnd
	precBitOr
	precBitXor
	precBitAnd
	precEquality
	precRelational
	precShift
	precAdditive
	precMultiplicative
	precUnary
	precPostfix
	precPrimary
)

func binaryLevel(op TokenType) int {
	switch op {
	case OR_LOGICAL:
		return precLogicalOr
	case AND_LOGICAL:
		return precLogicalAnd
	case PIPE:
		return precBitOr
	case CARET:
		return precBitXor
	case AND:
		return precBitAnd
	case EQUALS, NOT_EQ:
		return precEquality
	case LESS, GREATER, LESS_EQ, GREATER_EQ:
		return precRelational
	case SHL_OP, SHR_OP:
		return precShift
	case PLUS, MINUS:
		return precAdditive
	}
	return precMultiplicative
}

// expr writes e, parenthesised when its own level is looser than the
// context requires.
func (ap *astPrinter) expr(e Expr, ctx int) {
	level := ap.level(e)
	paren := level < ctx || (ap.opts.Parenthesis && level < precPrimary && ctx > precComma)
	if paren {
		ap.puts("(")
	}
	ap.exprBody(e, level)
	if paren {
		ap.puts(")")
	}
}

func (ap *astPrinter) level(e Expr) int {
	switch e := e.(type) {
	case *CommaExpr:
		return precComma
	case *AssignExpr:
		return precAssign
	case *ConditionalExpr:
		return precConditional
	case *BinaryExpr:
		return binaryLevel(e.Op)
	case *LogicalExpr:
		return binaryLevel(e.Op)
	case *UnaryExpr, *SizeofExpr:
		return precUnary
	case *CastExpr:
		if e.Implicit && !ap.opts.ImplicitCasts {
			return ap.level(e.Expr)
		}
		return precUnary
	case *CallExpr, *IndexExpr, *MemberExpr, *PostfixExpr:
		return precPostfix
	}
	return precPrimary
}

func (ap *astPrinter) exprBody(e Expr, level int) {
	switch e := e.(type) {
	case *IntLiteral:
		ap.puts(e.String())
	case *FloatLiteral:
		ap.puts(e.Text)
	case *StringLiteral:
		ap.puts(strconv.Quote(e.Value))
	case *VarRef:
		ap.puts(e.Name)
	case *InitializerList:
		ap.puts("{ ")
		for i, el := range e.Elements {
			if i > 0 {
				ap.puts(", ")
			}
			ap.expr(el, precAssign)
		}
		ap.puts(" }")
	case *CommaExpr:
		ap.expr(e.Left, precComma)
		ap.puts(", ")
		ap.expr(e.Right, precAssign)
	case *AssignExpr:
		ap.expr(e.Left, precUnary)
		ap.printf(" %s ", OpText(e.Op))
		ap.expr(e.Right, precAssign)
	case *ConditionalExpr:
		ap.expr(e.Cond, precLogicalOr)
		ap.puts(" ? ")
		ap.expr(e.Then, precComma)
		ap.puts(" : ")
		ap.expr(e.Else, precConditional)
	case *BinaryExpr:
		ap.expr(e.Left, level)
		ap.printf(" %s ", OpText(e.Op))
		ap.expr(e.Right, level+1)
	case *LogicalExpr:
		ap.expr(e.Left, level)
		ap.printf(" %s ", OpText(e.Op))
		ap.expr(e.Right, level+1)
	case *UnaryExpr:
		ap.puts(OpText(e.Op))
		ap.expr(e.Right, precUnary)
	case *PostfixExpr:
		ap.expr(e.Left, precPostfix)
		ap.puts(OpText(e.Op))
	case *SizeofExpr:
		if e.Expr != nil {
			ap.puts("sizeof ")
			ap.expr(e.Expr, precUnary)
			return
		}
		ap.puts("sizeof(")
		ap.declType(e.Of, "", nil)
		ap.puts(")")
	case *CastExpr:
		if e.Implicit && !ap.opts.ImplicitCasts {
			ap.exprBody(e.Expr, level)
			return
		}
		ap.puts("(")
		ap.declType(e.Type, "", nil)
		ap.puts(")")
		ap.expr(e.Expr, precUnary)
	case *CallExpr:
		ap.expr(e.Func, precPostfix)
		ap.puts("(")
		for i, a := range e.Args {
			if i > 0 {
				ap.puts(", ")
			}
			ap.expr(a, precAssign)
		}
		ap.puts(")")
	case *IndexExpr:
		ap.expr(e.Left, precPostfix)
		ap.puts("[")
		ap.expr(e.Index, precComma)
		ap.puts("]")
	case *MemberExpr:
		left, arrow := e.Left, e.Arrow
		// anonymous members are not spelled in the source
		for {
			m, ok := left.(*MemberExpr)
			if !ok || m.Member != "" {
				break
			}
			left, arrow = m.Left, m.Arrow
		}
		ap.expr(left, precPostfix)
		if arrow {
			ap.puts("->")
		} else {
			ap.puts(".")
		}
		ap.puts(e.Member)
	default:
		ap.puts(e.String())
	}
}
