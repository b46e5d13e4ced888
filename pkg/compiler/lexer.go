package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"cfront/pkg/types"
)

// keywords maps source text to its keyword TokenType in every dialect.
var keywords = map[string]TokenType{
	"auto":              AUTO,
	"break":             BREAK,
	"case":              CASE,
	"char":              CHAR,
	"const":             CONST,
	"continue":          CONTINUE,
	"default":           DEFAULT,
	"do":                DO,
	"double":            DOUBLE,
	"else":              ELSE,
	"enum":              ENUM,
	"extern":            EXTERN,
	"float":             FLOAT,
	"for":               FOR,
	"goto":              GOTO,
	"if":                IF,
	"int":               INT,
	"long":              LONG,
	"register":          REGISTER,
	"return":            RETURN,
	"short":             SHORT,
	"signed":            SIGNED,
	"sizeof":            SIZEOF,
	"static":            STATIC,
	"struct":            STRUCT,
	"switch":            SWITCH,
	"typedef":           TYPEDEF,
	"union":             UNION,
	"unsigned":          UNSIGNED,
	"void":              VOID,
	"volatile":          VOLATILE,
	"while":             WHILE,
	"__builtin_va_list": VA_LIST,
}

var c99Keywords = map[string]TokenType{
	"inline":     INLINE,
	"restrict":   RESTRICT,
	"_Bool":      BOOL,
	"_Complex":   COMPLEX,
	"_Imaginary": IMAGINARY,
}

var gnuKeywords = map[string]TokenType{
	"asm":           ASM,
	"__asm":         ASM,
	"__asm__":       ASM,
	"typeof":        TYPEOF,
	"__typeof":      TYPEOF,
	"__typeof__":    TYPEOF,
	"__attribute":   ATTRIBUTE,
	"__attribute__": ATTRIBUTE,
	"__extension__": EXTENSION,
	"__const":       CONST,
	"__const__":     CONST,
	"__inline":      INLINE,
	"__inline__":    INLINE,
	"__restrict":    RESTRICT,
	"__restrict__":  RESTRICT,
	"__signed":      SIGNED,
	"__signed__":    SIGNED,
	"__volatile":    VOLATILE,
	"__volatile__":  VOLATILE,
	"__complex__":   COMPLEX,
	"_Bool":         BOOL,
}

var msKeywords = map[string]TokenType{
	"__based":    BASED,
	"__cdecl":    CDECL,
	"_cdecl":     CDECL,
	"__stdcall":  STDCALL,
	"_stdcall":   STDCALL,
	"__fastcall": FASTCALL,
	"__thiscall": THISCALL,
	"__inline":   INLINE,
	"__asm":      ASM,
}

// keywordType looks lexeme up in the keyword tables enabled by dialect.
func keywordType(lexeme string, dialect types.Dialect) (TokenType, bool) {
	if tt, ok := keywords[lexeme]; ok {
		return tt, true
	}
	if dialect&types.C99 != 0 {
		if tt, ok := c99Keywords[lexeme]; ok {
			return tt, true
		}
	}
	if dialect&types.GNUC != 0 {
		if tt, ok := gnuKeywords[lexeme]; ok {
			return tt, true
		}
	}
	if dialect&types.MS != 0 {
		if tt, ok := msKeywords[lexeme]; ok {
			return tt, true
		}
	}
	return IDENTIFIER, false
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src       []rune
	pos       int // index of the next rune to consume
	line      int // current 1-based source line
	file      string
	dialect   types.Dialect
	lineStart bool
}

func newLexer(src string, dialect types.Dialect) *Lexer {
	return &Lexer{src: []rune(src), pos: 0, line: 1, dialect: dialect, lineStart: true}
}

func (l *Lexer) errorf(line int, format string, args ...any) error {
	return &PosError{File: l.file, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (l *Lexer) tok(tt TokenType, lexeme string, line int) Token {
	return Token{Type: tt, Lexeme: lexeme, Line: line, File: l.file}
}

// peek returns the rune at the current position without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// peek2 returns the rune one position ahead of the current position.
func (l *Lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.lineStart = true
	}
	return r
}

// skipWhitespace also swallows backslash-newline continuations.
func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) {
		r := l.peek()
		if r == '\\' && l.peek2() == '\n' {
			l.advance()
			l.advance()
			continue
		}
		if !unicode.IsSpace(r) {
			return
		}
		l.advance()
	}
}

// skipLineComment discards everything from the current position to end-of-line.
// The opening "//" must already have been consumed.
func (l *Lexer) skipLineComment() {
	for l.pos < len(l.src) && l.peek() != '\n' {
		l.advance()
	}
}

// skipBlockComment discards everything up to and including the closing "*/".
// The opening "/*" must already have been consumed.
func (l *Lexer) skipBlockComment() error {
	startLine := l.line
	for l.pos < len(l.src) {
		if l.peek() == '*' && l.peek2() == '/' {
			l.advance() // *
			l.advance() // /
			return nil
		}
		l.advance()
	}
	return l.errorf(startLine, "unterminated block comment")
}

// directive handles a '#' at the start of a line. Line markers of the form
// `# 12 "file.h"` (or `#line 12 "file.h"`) reposition the lexer; every other
// directive, such as #pragma or #ident, is skipped.
func (l *Lexer) directive() {
	l.advance() // #
	start := l.pos
	for l.pos < len(l.src) && l.peek() != '\n' {
		l.advance()
	}
	text := strings.TrimSpace(string(l.src[start:l.pos]))
	text = strings.TrimSpace(strings.TrimPrefix(text, "line"))
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return
	}
	if len(fields) > 1 {
		if name, err := strconv.Unquote(fields[1]); err == nil {
			l.file = name
		}
	}
	// The marker names the line that follows it.
	if l.pos < len(l.src) {
		l.advance()
	}
	l.line = n
}

// scanIdent collects a full identifier or keyword token.
// The first character (letter or '_') must still be at l.peek().
func (l *Lexer) scanIdent() Token {
	line := l.line
	start := l.pos
	for l.pos < len(l.src) {
		r := l.peek()
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '$' {
			break
		}
		l.advance()
	}
	lexeme := string(l.src[start:l.pos])
	tt, _ := keywordType(lexeme, l.dialect)
	return l.tok(tt, lexeme, line)
}

func isHexDigit(r rune) bool {
	return unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// scanNumber collects an integer or floating literal together with its
// suffix. The first digit (or the leading '.') must still be at l.peek().
func (l *Lexer) scanNumber() (Token, error) {
	line := l.line
	start := l.pos
	isFloat := false

	if l.peek() == '0' && (l.peek2() == 'x' || l.peek2() == 'X') {
		l.advance() // consume '0'
		l.advance() // consume 'x'
		for l.pos < len(l.src) && isHexDigit(l.peek()) {
			l.advance()
		}
		if l.pos-start == 2 {
			return Token{}, l.errorf(line, "invalid hexadecimal literal")
		}
	} else {
		for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
			l.advance()
		}
		if l.peek() == '.' {
			isFloat = true
			l.advance()
			for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
				l.advance()
			}
		}
		if r := l.peek(); r == 'e' || r == 'E' {
			isFloat = true
			l.advance()
			if r := l.peek(); r == '+' || r == '-' {
				l.advance()
			}
			if !unicode.IsDigit(l.peek()) {
				return Token{}, l.errorf(line, "exponent has no digits")
			}
			for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
				l.advance()
			}
		}
	}

	for l.pos < len(l.src) && strings.ContainsRune("uUlLfF", l.peek()) {
		l.advance()
	}
	if unicode.IsLetter(l.peek()) || unicode.IsDigit(l.peek()) {
		return Token{}, l.errorf(line, "invalid suffix on numeric literal")
	}

	lexeme := string(l.src[start:l.pos])
	if isFloat {
		return l.tok(FLOAT_LIT, lexeme, line), nil
	}
	return l.tok(INTEGER, lexeme, line), nil
}

// scanEscape decodes the escape sequence after a consumed backslash.
func (l *Lexer) scanEscape(line int) (rune, error) {
	next := l.advance()
	switch next {
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 't':
		return '\t', nil
	case 'a':
		return '\a', nil
	case 'b':
		return '\b', nil
	case 'f':
		return '\f', nil
	case 'v':
		return '\v', nil
	case '\\', '\'', '"', '?':
		return next, nil
	case 'x':
		var v rune
		if !isHexDigit(l.peek()) {
			return 0, l.errorf(line, "\\x used with no following hex digits")
		}
		for isHexDigit(l.peek()) {
			d, _ := strconv.ParseUint(string(l.advance()), 16, 8)
			v = v*16 + rune(d)
		}
		return v, nil
	}
	if next >= '0' && next <= '7' {
		v := next - '0'
		for i := 0; i < 2 && l.peek() >= '0' && l.peek() <= '7'; i++ {
			v = v*8 + (l.advance() - '0')
		}
		return v, nil
	}
	return 0, l.errorf(line, "unknown escape sequence \\%c", next)
}

// scanChar collects a character literal 'c'
func (l *Lexer) scanChar() (Token, error) {
	line := l.line
	l.advance() // consume opening '

	r := l.peek()
	var val rune

	if r == '\'' {
		l.advance()
		return Token{}, l.errorf(line, "empty character literal")
	}

	if r == '\\' {
		l.advance() // consume backslash
		v, err := l.scanEscape(line)
		if err != nil {
			return Token{}, err
		}
		val = v
	} else {
		val = r
		l.advance()
	}

	if l.peek() != '\'' {
		return Token{}, l.errorf(line, "unterminated character literal")
	}
	l.advance() // consume closing '

	// Character literals are emitted as INTEGER tokens with their value
	return l.tok(INTEGER, fmt.Sprintf("%d", val), line), nil
}

// scanString collects a string literal "..."
func (l *Lexer) scanString() (Token, error) {
	line := l.line
	l.advance() // consume opening "
	var val []rune

	for l.pos < len(l.src) {
		r := l.peek()
		if r == '"' {
			break
		}
		if r == '\n' {
			return Token{}, l.errorf(line, "unterminated string literal")
		}
		if r == '\\' {
			l.advance() // consume backslash
			if l.peek() == '\n' {
				l.advance()
				continue
			}
			v, err := l.scanEscape(line)
			if err != nil {
				return Token{}, err
			}
			val = append(val, v)
			continue
		}
		val = append(val, r)
		l.advance()
	}

	if l.pos >= len(l.src) {
		return Token{}, l.errorf(line, "unterminated string literal")
	}
	l.advance() // consume closing "

	return l.tok(STRING, string(val), line), nil
}

// nextToken skips whitespace/comments and returns the next Token.
func (l *Lexer) nextToken() (Token, error) {
	// Skip whitespace, comments and directives in a loop so that
	// a comment followed immediately by more whitespace is handled.
	for {
		l.skipWhitespace()
		if l.pos >= len(l.src) {
			return l.tok(EOF, "", l.line), nil
		}
		if l.peek() == '#' && l.lineStart {
			l.directive()
			continue
		}
		if l.peek() == '/' && l.peek2() == '/' {
			l.advance()
			l.advance()
			l.skipLineComment()
			continue
		}
		if l.peek() == '/' && l.peek2() == '*' {
			l.advance()
			l.advance()
			if err := l.skipBlockComment(); err != nil {
				return Token{}, err
			}
			continue
		}
		break
	}
	l.lineStart = false

	ch := l.peek()
	line := l.line

	if ch == 'L' && (l.peek2() == '\'' || l.peek2() == '"') {
		l.advance() // wide prefix
		ch = l.peek()
	} else if unicode.IsLetter(ch) || ch == '_' || ch == '$' {
		return l.scanIdent(), nil
	}
	if unicode.IsDigit(ch) || (ch == '.' && unicode.IsDigit(l.peek2())) {
		return l.scanNumber()
	}

	if ch == '"' {
		return l.scanString()
	}

	if ch == '\'' {
		return l.scanChar()
	}

	l.advance() // consume the character before the switch
	switch ch {
	case '{':
		return l.tok(LBRACE, "{", line), nil
	case '}':
		return l.tok(RBRACE, "}", line), nil
	case '(':
		return l.tok(LPAREN, "(", line), nil
	case ')':
		return l.tok(RPAREN, ")", line), nil
	case '[':
		return l.tok(LBRACKET, "[", line), nil
	case ']':
		return l.tok(RBRACKET, "]", line), nil
	case '.':
		if l.peek() == '.' && l.peek2() == '.' {
			l.advance()
			l.advance()
			return l.tok(ELLIPSIS, "...", line), nil
		}
		return l.tok(DOT, ".", line), nil
	case ';':
		return l.tok(SEMICOLON, ";", line), nil
	case ',':
		return l.tok(COMMA, ",", line), nil
	case ':':
		return l.tok(COLON, ":", line), nil
	case '?':
		return l.tok(QUESTION, "?", line), nil

	case '+':
		if l.peek() == '+' {
			l.advance()
			return l.tok(PLUS_PLUS, "++", line), nil
		}
		if l.peek() == '=' {
			l.advance()
			return l.tok(PLUS_ASSIGN, "+=", line), nil
		}
		return l.tok(PLUS, "+", line), nil
	case '-':
		if l.peek() == '-' {
			l.advance()
			return l.tok(MINUS_MINUS, "--", line), nil
		}
		if l.peek() == '=' {
			l.advance()
			return l.tok(MINUS_ASSIGN, "-=", line), nil
		}
		if l.peek() == '>' {
			l.advance()
			return l.tok(ARROW, "->", line), nil
		}
		return l.tok(MINUS, "-", line), nil
	case '*':
		if l.peek() == '=' {
			l.advance()
			return l.tok(STAR_ASSIGN, "*=", line), nil
		}
		return l.tok(STAR, "*", line), nil
	case '/':
		if l.peek() == '=' {
			l.advance()
			return l.tok(SLASH_ASSIGN, "/=", line), nil
		}
		return l.tok(SLASH, "/", line), nil
	case '%':
		if l.peek() == '=' {
			l.advance()
			return l.tok(PERCENT_ASSIGN, "%=", line), nil
		}
		return l.tok(PERCENT, "%", line), nil
	case '&':
		if l.peek() == '&' {
			l.advance()
			return l.tok(AND_LOGICAL, "&&", line), nil
		}
		if l.peek() == '=' {
			l.advance()
			return l.tok(AND_ASSIGN, "&=", line), nil
		}
		return l.tok(AND, "&", line), nil
	case '|':
		if l.peek() == '|' {
			l.advance()
			return l.tok(OR_LOGICAL, "||", line), nil
		}
		if l.peek() == '=' {
			l.advance()
			return l.tok(OR_ASSIGN, "|=", line), nil
		}
		return l.tok(PIPE, "|", line), nil
	case '^':
		if l.peek() == '=' {
			l.advance()
			return l.tok(XOR_ASSIGN, "^=", line), nil
		}
		return l.tok(CARET, "^", line), nil
	case '~':
		return l.tok(TILDE, "~", line), nil
	case '!':
		if l.peek() == '=' {
			l.advance()
			return l.tok(NOT_EQ, "!=", line), nil
		}
		return l.tok(NOT, "!", line), nil
	case '<':
		if l.peek() == '=' {
			l.advance()
			return l.tok(LESS_EQ, "<=", line), nil
		}
		if l.peek() == '<' {
			l.advance()
			if l.peek() == '=' {
				l.advance()
				return l.tok(SHL_ASSIGN, "<<=", line), nil
			}
			return l.tok(SHL_OP, "<<", line), nil
		}
		return l.tok(LESS, "<", line), nil
	case '>':
		if l.peek() == '=' {
			l.advance()
			return l.tok(GREATER_EQ, ">=", line), nil
		}
		if l.peek() == '>' {
			l.advance()
			if l.peek() == '=' {
				l.advance()
				return l.tok(SHR_ASSIGN, ">>=", line), nil
			}
			return l.tok(SHR_OP, ">>", line), nil
		}
		return l.tok(GREATER, ">", line), nil
	case '=':
		if l.peek() == '=' { // lookahead: distinguish = vs ==
			l.advance()
			return l.tok(EQUALS, "==", line), nil
		}
		return l.tok(ASSIGN, "=", line), nil
	default:
		return Token{}, l.errorf(line, "unexpected character %q", ch)
	}
}

// Lex tokenises src in the default dialect and returns all tokens including
// the final EOF token. It returns a non-nil error on the first illegal
// character or unterminated comment.
func Lex(src string) ([]Token, error) {
	l := newLexer(src, types.DefaultDialect)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}

// LexFile tokenises src named file, reporting every error to diag and
// continuing after it. The result always ends with EOF.
func LexFile(file, src string, dialect types.Dialect, diag *Diagnostics) []Token {
	l := newLexer(src, dialect)
	l.file = file
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			diag.Report(err)
			continue
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens
		}
	}
}
