package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"cfront/pkg/types"
)

//  Expression nodes

// Expr is implemented by every node that produces a value. After parsing,
// StaticType returns the expression's canonical type; expressions that
// failed to check have the error type.
type Expr interface {
	exprNode()
	String() string
	StaticType() *types.Type
}

// typed carries the static type of an expression node.
type typed struct {
	Type *types.Type
}

func (t *typed) StaticType() *types.Type { return t.Type }

// opText is the C spelling of operator tokens, used when rendering
// expressions back to source form.
var opText = map[TokenType]string{
	PLUS: "+", MINUS: "-", STAR: "*", SLASH: "/", PERCENT: "%",
	AND: "&", PIPE: "|", CARET: "^", TILDE: "~", NOT: "!",
	SHL_OP: "<<", SHR_OP: ">>", AND_LOGICAL: "&&", OR_LOGICAL: "||",
	PLUS_PLUS: "++", MINUS_MINUS: "--",
	ASSIGN: "=", PLUS_ASSIGN: "+=", MINUS_ASSIGN: "-=", STAR_ASSIGN: "*=",
	SLASH_ASSIGN: "/=", PERCENT_ASSIGN: "%=", AND_ASSIGN: "&=", OR_ASSIGN: "|=",
	XOR_ASSIGN: "^=", SHL_ASSIGN: "<<=", SHR_ASSIGN: ">>=",
	EQUALS: "==", NOT_EQ: "!=", LESS: "<", GREATER: ">", LESS_EQ: "<=", GREATER_EQ: ">=",
}

// OpText returns the source spelling of an operator token.
func OpText(tt TokenType) string {
	if s, ok := opText[tt]; ok {
		return s
	}
	return tt.String()
}

// IntLiteral is an integer constant, including folded character literals.
//
//	int x = 10;
//	        ^^  IntLiteral{Value: 10}
type IntLiteral struct {
	typed
	Value uint64
	Text  string
}

func (*IntLiteral) exprNode() {}
func (l *IntLiteral) String() string {
	if l.Text != "" {
		return l.Text
	}
	return strconv.FormatUint(l.Value, 10)
}

// FloatLiteral is a floating constant.
type FloatLiteral struct {
	typed
	Value float64
	Text  string
}

func (*FloatLiteral) exprNode()        {}
func (l *FloatLiteral) String() string { return l.Text }

// StringLiteral is a string constant "...". Adjacent literals are joined.
type StringLiteral struct {
	typed
	Value string
}

func (*StringLiteral) exprNode()        {}
func (s *StringLiteral) String() string { return strconv.Quote(s.Value) }

// InitializerList represents { expr, expr, ... }
type InitializerList struct {
	typed
	Elements []Expr
}

func (*InitializerList) exprNode() {}
func (l *InitializerList) String() string {
	parts := make([]string, len(l.Elements))
	for i, e := range l.Elements {
		parts[i] = e.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// VarRef is a use of a named object, function or enumeration constant.
//
//	return x;
//	       ^  VarRef{Name: "x"}
type VarRef struct {
	typed
	Name string
	Sym  *Symbol // nil when undeclared
}

func (*VarRef) exprNode()        {}
func (v *VarRef) String() string { return v.Name }

// BinaryExpr represents a binary operation: Left Op Right.
//
//	x + 1
//	^ ^ ^
//	| | |
//	| | Right
//	| Op
//	Left
type BinaryExpr struct {
	typed
	Op    TokenType
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}
func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, OpText(b.Op), b.Right)
}

// LogicalExpr represents a logical operation: Left && Right or Left || Right.
// It is separate from BinaryExpr to allow short-circuit evaluation in code generation.
type LogicalExpr struct {
	typed
	Op    TokenType
	Left  Expr
	Right Expr
}

func (*LogicalExpr) exprNode() {}
func (l *LogicalExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", l.Left, OpText(l.Op), l.Right)
}

// AssignExpr represents Left = Right and the compound assignments.
type AssignExpr struct {
	typed
	Op    TokenType
	Left  Expr
	Right Expr
}

func (*AssignExpr) exprNode() {}
func (a *AssignExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", a.Left, OpText(a.Op), a.Right)
}

// UnaryExpr represents Op Right (e.g., &x, *p, -x, ++x).
type UnaryExpr struct {
	typed
	Op    TokenType
	Right Expr
}

func (*UnaryExpr) exprNode()        {}
func (u *UnaryExpr) String() string { return fmt.Sprintf("(%s%s)", OpText(u.Op), u.Right) }

// PostfixExpr represents Left++ or Left--
type PostfixExpr struct {
	typed
	Op   TokenType
	Left Expr
}

func (*PostfixExpr) exprNode()        {}
func (p *PostfixExpr) String() string { return fmt.Sprintf("(%s%s)", p.Left, OpText(p.Op)) }

// CallExpr represents Func(Args)
type CallExpr struct {
	typed
	Func Expr
	Args []Expr
}

func (*CallExpr) exprNode() {}
func (c *CallExpr) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Func, strings.Join(parts, ", "))
}

// CastExpr converts Expr to the cast's static type. Implicit casts are
// inserted by the semantic checks for conversions the source leaves
// unwritten.
type CastExpr struct {
	typed
	Expr     Expr
	Implicit bool
}

func (*CastExpr) exprNode() {}
func (c *CastExpr) String() string {
	if c.Implicit {
		return c.Expr.String()
	}
	return fmt.Sprintf("((%s)%s)", types.TypeString(c.Type), c.Expr)
}

// IndexExpr represents Left[Index]
type IndexExpr struct {
	typed
	Left  Expr
	Index Expr
}

func (*IndexExpr) exprNode()        {}
func (e *IndexExpr) String() string { return fmt.Sprintf("%s[%s]", e.Left, e.Index) }

// MemberExpr represents Left.Member or Left->Member
type MemberExpr struct {
	typed
	Left   Expr
	Member string
	Arrow  bool
	Field  *types.Member // nil when the lookup failed
}

func (*MemberExpr) exprNode() {}
func (e *MemberExpr) String() string {
	if e.Arrow {
		return fmt.Sprintf("%s->%s", e.Left, e.Member)
	}
	return fmt.Sprintf("%s.%s", e.Left, e.Member)
}

// ConditionalExpr represents Cond ? Then : Else
type ConditionalExpr struct {
	typed
	Cond Expr
	Then Expr
	Else Expr
}

func (*ConditionalExpr) exprNode() {}
func (c *ConditionalExpr) String() string {
	return fmt.Sprintf("(%s ? %s : %s)", c.Cond, c.Then, c.Else)
}

// SizeofExpr represents sizeof Expr or sizeof(Type). Size is -1 when it
// could not be computed.
type SizeofExpr struct {
	typed
	Expr Expr        // nil for sizeof(Type)
	Of   *types.Type // operand type
	Size int
}

func (*SizeofExpr) exprNode() {}
func (s *SizeofExpr) String() string {
	if s.Expr != nil {
		return fmt.Sprintf("sizeof %s", s.Expr)
	}
	return fmt.Sprintf("sizeof(%s)", types.TypeString(s.Of))
}

// CommaExpr represents Left, Right
type CommaExpr struct {
	typed
	Left  Expr
	Right Expr
}

func (*CommaExpr) exprNode()        {}
func (c *CommaExpr) String() string { return fmt.Sprintf("(%s, %s)", c.Left, c.Right) }

//  Statement nodes

// Stmt is implemented by every node that does not produce a value.
type Stmt interface {
	stmtNode()
	String() string
}

// VariableDecl represents  int name = expr;
type VariableDecl struct {
	Tok     Token
	Name    string
	Type    *types.Type
	Storage StorageClass
	Init    Expr // nil when absent
	Sym     *Symbol
}

func (*VariableDecl) stmtNode() {}
func (d *VariableDecl) String() string {
	if d.Init != nil {
		return fmt.Sprintf("VariableDecl(%s = %s)", types.TypeString(d.Type), d.Init)
	}
	return fmt.Sprintf("VariableDecl(%s %s)", types.TypeString(d.Type), d.Name)
}

// DeclStmt groups the declarators of one block-scope declaration.
type DeclStmt struct {
	Decls []*VariableDecl
}

func (*DeclStmt) stmtNode() {}
func (d *DeclStmt) String() string {
	return fmt.Sprintf("DeclStmt(len=%d)", len(d.Decls))
}

// TypedefStmt represents typedef Type Name;
type TypedefStmt struct {
	Tok  Token
	Decl *types.TypedefDecl
}

func (*TypedefStmt) stmtNode() {}
func (t *TypedefStmt) String() string {
	return fmt.Sprintf("TypedefStmt(%s = %s)", t.Decl.Name, types.TypeString(t.Decl.Type))
}

// TagDecl represents a struct, union or enum declaration that declares no
// object, such as  struct point { int x, y; };
type TagDecl struct {
	Tok  Token
	Type *types.Type
}

func (*TagDecl) stmtNode() {}
func (t *TagDecl) String() string {
	return fmt.Sprintf("TagDecl(%s)", types.TypeString(t.Type))
}

// ReturnStmt represents  return expr;
type ReturnStmt struct {
	Tok  Token
	Expr Expr // nil for a bare return
}

func (*ReturnStmt) stmtNode() {}
func (r *ReturnStmt) String() string {
	return fmt.Sprintf("ReturnStmt(%s)", r.Expr)
}

// BlockStmt represents { statement; ... }
type BlockStmt struct {
	Stmts []Stmt
}

func (*BlockStmt) stmtNode() {}
func (b *BlockStmt) String() string {
	return fmt.Sprintf("BlockStmt(len=%d)", len(b.Stmts))
}

// IfStmt represents if (cond) body [else elseBody]
type IfStmt struct {
	Condition Expr
	Body      Stmt
	ElseBody  Stmt // may be nil
}

func (*IfStmt) stmtNode() {}
func (i *IfStmt) String() string {
	if i.ElseBody != nil {
		return fmt.Sprintf("IfStmt(if %s then %s else %s)", i.Condition, i.Body, i.ElseBody)
	}
	return fmt.Sprintf("IfStmt(if %s then %s)", i.Condition, i.Body)
}

// WhileStmt represents while (cond) body
type WhileStmt struct {
	Condition Expr
	Body      Stmt
}

func (*WhileStmt) stmtNode() {}
func (w *WhileStmt) String() string {
	return fmt.Sprintf("WhileStmt(while %s do %s)", w.Condition, w.Body)
}

// DoWhileStmt represents do body while (cond);
type DoWhileStmt struct {
	Body      Stmt
	Condition Expr
}

func (*DoWhileStmt) stmtNode() {}
func (d *DoWhileStmt) String() string {
	return fmt.Sprintf("DoWhileStmt(do %s while %s)", d.Body, d.Condition)
}

// ForStmt represents for (init; cond; post) body
type ForStmt struct {
	Init Stmt // ExprStmt, DeclStmt or nil
	Cond Expr // may be nil
	Post Expr // may be nil
	Body Stmt
}

func (*ForStmt) stmtNode() {}
func (f *ForStmt) String() string {
	return fmt.Sprintf("ForStmt(init=%s, cond=%s, post=%s, body=%s)", f.Init, f.Cond, f.Post, f.Body)
}

// FunctionDecl represents a function definition, or a prototype when Body
// is nil.
type FunctionDecl struct {
	Tok     Token
	Name    string
	Type    *types.Type        // canonical function type
	Params  []*types.Parameter // with names, as declared
	Storage StorageClass
	Inline  bool
	Body    *BlockStmt
	Sym     *Symbol

	ParamSyms []*Symbol // parameter objects, in order
	Locals    []*Symbol // every block-scope object, in declaration order
}

func (*FunctionDecl) stmtNode() {}
func (f *FunctionDecl) String() string {
	return fmt.Sprintf("FunctionDecl(%s, body=%v)", types.TypeString(f.Type), f.Body != nil)
}

// ExprStmt represents an expression evaluated for its side effects (e.g. a function call).
type ExprStmt struct {
	Expr Expr
}

func (*ExprStmt) stmtNode() {}
func (e *ExprStmt) String() string {
	return fmt.Sprintf("ExprStmt(%s)", e.Expr)
}

// EmptyStmt represents a lone ;
type EmptyStmt struct{}

func (*EmptyStmt) stmtNode()        {}
func (*EmptyStmt) String() string { return "EmptyStmt" }

// AsmStmt represents asm("instruction");
type AsmStmt struct {
	Instruction string
}

func (*AsmStmt) stmtNode() {}
func (a *AsmStmt) String() string {
	return fmt.Sprintf("AsmStmt(%q)", a.Instruction)
}

// CaseClause represents case Value: Body, or default: Body.
type CaseClause struct {
	Value     Expr // nil for default
	Const     int64
	IsDefault bool
	Body      []Stmt
}

// SwitchStmt represents switch (Target) { clauses... }. Clauses keep their
// source order so control falls through from one to the next.
type SwitchStmt struct {
	Target  Expr
	Clauses []*CaseClause
}

func (*SwitchStmt) stmtNode() {}
func (s *SwitchStmt) String() string {
	return fmt.Sprintf("SwitchStmt(target=%s, clauses=%d)", s.Target, len(s.Clauses))
}

// BreakStmt represents break;
type BreakStmt struct{}

func (*BreakStmt) stmtNode()        {}
func (s *BreakStmt) String() string { return "BreakStmt" }

// ContinueStmt represents continue;
type ContinueStmt struct{}

func (*ContinueStmt) stmtNode()        {}
func (s *ContinueStmt) String() string { return "ContinueStmt" }

// GotoStmt represents goto Label;
type GotoStmt struct {
	Tok   Token
	Label string
}

func (*GotoStmt) stmtNode()        {}
func (g *GotoStmt) String() string { return fmt.Sprintf("GotoStmt(%s)", g.Label) }

// LabeledStmt represents Label: Body
type LabeledStmt struct {
	Label string
	Body  Stmt
}

func (*LabeledStmt) stmtNode()        {}
func (l *LabeledStmt) String() string { return fmt.Sprintf("LabeledStmt(%s)", l.Label) }

// TranslationUnit is the result of parsing every source of one compilation.
type TranslationUnit struct {
	Name  string
	Decls []Stmt // *VariableDecl, *FunctionDecl, *TypedefStmt, *TagDecl
	Syms  *SymbolTable

	// Builtins counts the leading Decls that came from the builtin
	// declarations rather than the user's source.
	Builtins int
}

// Functions returns the function definitions of the unit, in source order.
func (u *TranslationUnit) Functions() []*FunctionDecl {
	var out []*FunctionDecl
	for _, d := range u.Decls {
		if f, ok := d.(*FunctionDecl); ok && f.Body != nil {
			out = append(out, f)
		}
	}
	return out
}
