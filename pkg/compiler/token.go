package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	// Literals
	IDENTIFIER // variable / function / typedef name
	INTEGER    // integer literal, suffix included; char literals are folded here
	FLOAT_LIT  // floating literal, suffix included
	STRING     // string literal "...", escapes resolved

	// Keywords
	AUTO
	BREAK
	CASE
	CHAR
	CONST
	CONTINUE
	DEFAULT
	DO
	DOUBLE
	ELSE
	ENUM
	EXTERN
	FLOAT
	FOR
	GOTO
	IF
	INLINE
	INT
	LONG
	REGISTER
	RESTRICT
	RETURN
	SHORT
	SIGNED
	SIZEOF
	STATIC
	STRUCT
	SWITCH
	TYPEDEF
	UNION
	UNSIGNED
	VOID
	VOLATILE
	WHILE
	BOOL      // _Bool
	COMPLEX   // _Complex
	IMAGINARY // _Imaginary
	TYPEOF    // typeof, __typeof__
	ATTRIBUTE // __attribute__
	EXTENSION // __extension__
	ASM       // asm, __asm__
	BASED     // __based
	CDECL     // __cdecl
	STDCALL   // __stdcall
	FASTCALL  // __fastcall
	THISCALL  // __thiscall
	VA_LIST   // __builtin_va_list

	// Paired delimiters
	LBRACE   // {
	RBRACE   // }
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]

	// Punctuation
	DOT       // .
	ARROW     // ->
	SEMICOLON // ;
	COMMA     // ,
	COLON     // :
	QUESTION  // ?
	ELLIPSIS  // ...

	// Arithmetic operators
	PLUS        // +
	MINUS       // -
	STAR        // *
	SLASH       // /
	AND         // & (binary bitwise AND, or unary address-of)
	PIPE        // |
	CARET       // ^
	TILDE       // ~
	PERCENT     // %
	SHL_OP      // <<
	SHR_OP      // >>
	AND_LOGICAL // &&
	OR_LOGICAL  // ||
	NOT         // !

	PLUS_PLUS   // ++
	MINUS_MINUS // --

	// Assignment / comparison  (order matters: ASSIGN before EQUALS)
	ASSIGN         // =
	PLUS_ASSIGN    // +=
	MINUS_ASSIGN   // -=
	STAR_ASSIGN    // *=
	SLASH_ASSIGN   // /=
	PERCENT_ASSIGN // %=
	AND_ASSIGN     // &=
	OR_ASSIGN      // |=
	XOR_ASSIGN     // ^=
	SHL_ASSIGN     // <<=
	SHR_ASSIGN     // >>=

	EQUALS  // ==
	NOT_EQ  // !=
	LESS    // <
	GREATER // >

	LESS_EQ    // <=
	GREATER_EQ // >=
)

// tokenNames is indexed by TokenType.
var tokenNames = [...]string{
	EOF:            "EOF",
	IDENTIFIER:     "IDENTIFIER",
	INTEGER:        "INTEGER",
	FLOAT_LIT:      "FLOAT_LIT",
	STRING:         "STRING",
	AUTO:           "AUTO",
	BREAK:          "BREAK",
	CASE:           "CASE",
	CHAR:           "CHAR",
	CONST:          "CONST",
	CONTINUE:       "CONTINUE",
	DEFAULT:        "DEFAULT",
	DO:             "DO",
	DOUBLE:         "DOUBLE",
	ELSE:           "ELSE",
	ENUM:           "ENUM",
	EXTERN:         "EXTERN",
	FLOAT:          "FLOAT",
	FOR:            "FOR",
	GOTO:           "GOTO",
	IF:             "IF",
	INLINE:         "INLINE",
	INT:            "INT",
	LONG:           "LONG",
	REGISTER:       "REGISTER",
	RESTRICT:       "RESTRICT",
	RETURN:         "RETURN",
	SHORT:          "SHORT",
	SIGNED:         "SIGNED",
	SIZEOF:         "SIZEOF",
	STATIC:         "STATIC",
	STRUCT:         "STRUCT",
	SWITCH:         "SWITCH",
	TYPEDEF:        "TYPEDEF",
	UNION:          "UNION",
	UNSIGNED:       "UNSIGNED",
	VOID:           "VOID",
	VOLATILE:       "VOLATILE",
	WHILE:          "WHILE",
	BOOL:           "BOOL",
	COMPLEX:        "COMPLEX",
	IMAGINARY:      "IMAGINARY",
	TYPEOF:         "TYPEOF",
	ATTRIBUTE:      "ATTRIBUTE",
	EXTENSION:      "EXTENSION",
	ASM:            "ASM",
	BASED:          "BASED",
	CDECL:          "CDECL",
	STDCALL:        "STDCALL",
	FASTCALL:       "FASTCALL",
	THISCALL:       "THISCALL",
	VA_LIST:        "VA_LIST",
	LBRACE:         "LBRACE",
	RBRACE:         "RBRACE",
	LPAREN:         "LPAREN",
	RPAREN:         "RPAREN",
	LBRACKET:       "LBRACKET",
	RBRACKET:       "RBRACKET",
	DOT:            "DOT",
	ARROW:          "ARROW",
	SEMICOLON:      "SEMICOLON",
	COMMA:          "COMMA",
	COLON:          "COLON",
	QUESTION:       "QUESTION",
	ELLIPSIS:       "ELLIPSIS",
	PLUS:           "PLUS",
	MINUS:          "MINUS",
	STAR:           "STAR",
	SLASH:          "SLASH",
	AND:            "AND",
	PIPE:           "PIPE",
	CARET:          "CARET",
	TILDE:          "TILDE",
	PERCENT:        "PERCENT",
	SHL_OP:         "SHL_OP",
	SHR_OP:         "SHR_OP",
	AND_LOGICAL:    "AND_LOGICAL",
	OR_LOGICAL:     "OR_LOGICAL",
	NOT:            "NOT",
	PLUS_PLUS:      "PLUS_PLUS",
	MINUS_MINUS:    "MINUS_MINUS",
	ASSIGN:         "ASSIGN",
	PLUS_ASSIGN:    "PLUS_ASSIGN",
	MINUS_ASSIGN:   "MINUS_ASSIGN",
	STAR_ASSIGN:    "STAR_ASSIGN",
	SLASH_ASSIGN:   "SLASH_ASSIGN",
	PERCENT_ASSIGN: "PERCENT_ASSIGN",
	AND_ASSIGN:     "AND_ASSIGN",
	OR_ASSIGN:      "OR_ASSIGN",
	XOR_ASSIGN:     "XOR_ASSIGN",
	SHL_ASSIGN:     "SHL_ASSIGN",
	SHR_ASSIGN:     "SHR_ASSIGN",
	EQUALS:         "EQUALS",
	NOT_EQ:         "NOT_EQ",
	LESS:           "LESS",
	GREATER:        "GREATER",
	LESS_EQ:        "LESS_EQ",
	GREATER_EQ:     "GREATER_EQ",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string // the exact source text that was matched
	Line   int    // 1-based source line
	File   string // set from line markers; empty for the primary input
}

func (t Token) String() string {
	return fmt.Sprintf("%-10s %-14q  line %d", t.Type, t.Lexeme, t.Line)
}
