package compiler

import (
	"fmt"

	"cfront/pkg/types"
)

// Parser consumes the token slice produced by the Lexer and builds a typed
// AST. Every type it creates is canonical in the parser's Session, so two
// declarations have the same type exactly when their types are the same
// pointer. Syntax errors abandon the current declaration or statement,
// resynchronise at the next ';' or '}' and parsing carries on; all errors
// and warnings are counted in the Diagnostics.
//
// Grammar (C89/C99 with GNU and Microsoft extensions):
//
//	unit        = (declaration | functionDef | asmDecl)* EOF
//	declaration = declSpec (initDeclarator ("," initDeclarator)*)? ";"
//	functionDef = declSpec declarator krDecl* block
//	declSpec    = (storage | qualifier | typeSpec | "inline" | attribute)+
//	declarator  = ("*" qualifier* | "__based" "(" IDENT ")" "*" | callconv)* direct
//	direct      = (IDENT | "(" declarator ")")? ("[" size? "]" | "(" params ")")*
//	statement   = block | if | while | do | for | switch | case | default
//	            | return | break | continue | goto | label | asm | expr? ";"
//	expression  = assignment ("," assignment)*
//	assignment  = conditional (assignOp assignment)?
//	conditional = logical_or ("?" expression ":" conditional)?
//	     logical_or  = logical_and ("||" logical_and)*
//	     logical_and = bitwise_or ("&&" bitwise_or)*
//	     bitwise_or  = bitwise_xor ("|" bitwise_xor)*
//	     bitwise_xor = bitwise_and ("^" bitwise_and)*
//	     bitwise_and = equality ("&" equality)*
//	     equality    = relational (("=="|"!=") relational)*
//	     relational  = shift (("<"|">"|"<="|">=") shift)*
//	     shift       = additive (("<<"|">>") additive)*
//	     additive    = multiplicative (("+" | "-") multiplicative)*
//	     multiplicative = cast (("*" | "/" | "%") cast)*
//	cast        = "(" typeName ")" cast | unary
//	unary       = ("&"|"*"|"+"|"-"|"~"|"!"|"++"|"--") cast | "sizeof" unary
//	            | "sizeof" "(" typeName ")" | postfix
//	postfix     = primary ("[" expression "]" | "(" args ")" | "." IDENT
//	            | "->" IDENT | "++" | "--")*
//	primary     = INTEGER | FLOAT | STRING+ | IDENT | "(" expression ")"
type Parser struct {
	sess    *types.Session
	diag    *Diagnostics
	dialect types.Dialect
	syms    *SymbolTable
	unit    *TranslationUnit

	tokens []Token
	pos    int

	// state of the function being parsed
	fn        *FunctionDecl
	labels    map[string]bool
	gotos     []*GotoStmt
	loopDepth int
	inSwitch  int
}

// NewParser returns a parser that builds types in sess and reports to diag.
func NewParser(sess *types.Session, diag *Diagnostics, dialect types.Dialect) *Parser {
	return &Parser{
		sess:    sess,
		diag:    diag,
		dialect: dialect,
		syms:    NewSymbolTable(),
		unit:    &TranslationUnit{},
	}
}

// Session returns the type session the parser builds into.
func (p *Parser) Session() *types.Session { return p.sess }

// ParseSource lexes and parses src, the text of the file called name, and
// appends its declarations to the translation unit. It may be called more
// than once; later sources see the declarations of earlier ones.
func (p *Parser) ParseSource(name, src string) {
	p.ParseTokens(name, LexFile(name, src, p.dialect, p.diag))
}

// ParseTokens parses an already lexed token stream ending in EOF.
func (p *Parser) ParseTokens(name string, tokens []Token) {
	p.tokens = tokens
	p.pos = 0
	if p.unit.Name == "" {
		p.unit.Name = name
	}
	for p.peek().Type != EOF {
		if err := p.parseExternal(); err != nil {
			p.diag.Report(err)
			p.synchronize()
		}
	}
}

// MarkBuiltins records every declaration parsed so far as builtin.
func (p *Parser) MarkBuiltins() {
	p.unit.Builtins = len(p.unit.Decls)
}

// Finish completes the translation unit after the last source.
func (p *Parser) Finish() *TranslationUnit {
	warned := make(map[*Symbol]bool)
	for _, d := range p.unit.Decls {
		fn, ok := d.(*FunctionDecl)
		if !ok || fn.Storage != StorageStatic || fn.Sym.Defined || warned[fn.Sym] {
			continue
		}
		p.diag.Warnf(fn.Tok, "'%s' declared 'static' but never defined", fn.Name)
		warned[fn.Sym] = true
	}
	p.unit.Syms = p.syms
	return p.unit
}

// fmtError builds a syntax error positioned at tok.
func (p *Parser) fmtError(tok Token, format string, args ...any) error {
	return &PosError{File: tok.File, Line: tok.Line, Msg: fmt.Sprintf(format, args...)}
}

// errorf reports a semantic error at tok; parsing continues.
func (p *Parser) errorf(tok Token, format string, args ...any) {
	p.diag.Errorf(tok, format, args...)
}

// warnf reports a warning at tok.
func (p *Parser) warnf(tok Token, format string, args ...any) {
	p.diag.Warnf(tok, format, args...)
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos]
}

// peekAt returns the token at the given offset from the current position.
func (p *Parser) peekAt(offset int) Token {
	if p.pos+offset >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos+offset]
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// accept consumes the current token if it has type tt.
func (p *Parser) accept(tt TokenType) bool {
	if p.peek().Type == tt {
		p.advance()
		return true
	}
	return false
}

// expect consumes the current token if it matches tt, otherwise returns an error.
func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.peek()
	if tok.Type != tt {
		return tok, p.fmtError(tok, "expected %s before %s", describe(tt), quoteTok(tok))
	}
	return p.advance(), nil
}

// describe renders a token type the way diagnostics name it.
func describe(tt TokenType) string {
	switch tt {
	case IDENTIFIER:
		return "identifier"
	case LPAREN:
		return "'('"
	case RPAREN:
		return "')'"
	case LBRACE:
		return "'{'"
	case RBRACE:
		return "'}'"
	case LBRACKET:
		return "'['"
	case RBRACKET:
		return "']'"
	case SEMICOLON:
		return "';'"
	case COLON:
		return "':'"
	case COMMA:
		return "','"
	case WHILE:
		return "'while'"
	}
	return "'" + OpText(tt) + "'"
}

func quoteTok(tok Token) string {
	if tok.Type == EOF {
		return "end of input"
	}
	return fmt.Sprintf("'%s'", tok.Lexeme)
}

// synchronize skips to the end of the broken external declaration: past the
// next ';' outside braces, or past the '}' closing a brace it entered.
func (p *Parser) synchronize() {
	depth := 0
	for {
		tok := p.advance()
		switch tok.Type {
		case EOF:
			p.pos--
			return
		case LBRACE:
			depth++
		case RBRACE:
			depth--
			if depth <= 0 {
				return
			}
		case SEMICOLON:
			if depth == 0 {
				return
			}
		}
	}
}

// syncStatement skips to the end of a broken statement without leaving the
// enclosing block.
func (p *Parser) syncStatement() {
	depth := 0
	first := true
	for {
		tok := p.peek()
		switch tok.Type {
		case EOF:
			return
		case RBRACE:
			if depth == 0 {
				if first {
					p.advance()
				}
				return
			}
			depth--
			p.advance()
			if depth == 0 {
				return
			}
		case LBRACE:
			depth++
			p.advance()
		case SEMICOLON:
			p.advance()
			if depth == 0 {
				return
			}
		default:
			p.advance()
		}
		first = false
	}
}

// parseExternal parses one external declaration or function definition.
func (p *Parser) parseExternal() error {
	tok := p.peek()
	switch tok.Type {
	case SEMICOLON:
		p.advance()
		if p.dialect&types.GNUC == 0 {
			p.warnf(tok, "ISO C does not allow extra ';' outside of a function")
		}
		return nil
	case ASM:
		st, err := p.parseAsm()
		if err != nil {
			return err
		}
		p.unit.Decls = append(p.unit.Decls, st)
		return nil
	}

	spec, err := p.parseDeclSpec(true)
	if err != nil {
		return err
	}
	if p.accept(SEMICOLON) {
		p.declareNothing(spec)
		return nil
	}

	for first := true; ; first = false {
		d, err := p.parseDeclarator(spec.typ, false)
		if err != nil {
			return err
		}
		if first && types.IsFunction(p.resolve(d.typ)) && spec.storage != StorageTypedef &&
			(p.peek().Type == LBRACE || (d.kr && p.peek().Type != SEMICOLON && p.peek().Type != COMMA)) {
			return p.parseFunctionDefinition(spec, d)
		}
		if err := p.parseInitDeclarator(spec, d, &p.unit.Decls); err != nil {
			return err
		}
		if !p.accept(COMMA) {
			break
		}
	}
	_, err = p.expect(SEMICOLON)
	return err
}

// declareNothing handles a declaration without declarators, which is only
// useful when it declares a tag.
func (p *Parser) declareNothing(spec *declSpec) {
	if spec.tag != nil {
		p.unit.Decls = appendTagDecl(p.unit.Decls, spec)
		return
	}
	p.warnf(spec.tok, "declaration does not declare anything")
}

func appendTagDecl(decls []Stmt, spec *declSpec) []Stmt {
	return append(decls, &TagDecl{Tok: spec.tok, Type: spec.tag})
}

// parseInitDeclarator declares d, parses its initializer if any and appends
// the resulting declaration to out.
func (p *Parser) parseInitDeclarator(spec *declSpec, d *declarator, out *[]Stmt) error {
	if d.name == "" {
		return p.fmtError(d.tok, "expected identifier or '('")
	}
	if spec.storage == StorageTypedef {
		st := p.declareTypedef(d)
		*out = append(*out, st)
		return nil
	}

	rt := p.resolve(d.typ)
	if types.IsFunction(rt) {
		sym := p.declareObject(spec, d)
		*out = append(*out, &FunctionDecl{
			Tok: d.tok, Name: d.name, Type: sym.Type, Params: d.params,
			Storage: spec.storage, Inline: spec.inline, Sym: sym,
		})
		if p.peek().Type == ASSIGN {
			return p.fmtError(p.peek(), "function '%s' is initialized like a variable", d.name)
		}
		return nil
	}

	decl := &VariableDecl{Tok: d.tok, Name: d.name, Type: d.typ, Storage: spec.storage}
	if p.accept(ASSIGN) {
		if spec.storage == StorageExtern && !p.syms.AtFileScope() {
			p.errorf(d.tok, "'%s' has both 'extern' and initializer", d.name)
		}
		init, typ, err := p.parseInitializer(d.typ)
		if err != nil {
			return err
		}
		decl.Init = init
		decl.Type = typ
		d.typ = typ
	}
	rt = p.resolve(decl.Type)
	if rt.Kind == types.KindAtomic && rt.Atomic == types.Void {
		p.errorf(d.tok, "variable '%s' declared void", d.name)
	} else if spec.storage != StorageExtern && !p.syms.AtFileScope() && p.incompleteObject(rt) {
		p.errorf(d.tok, "storage size of '%s' isn't known", d.name)
	}

	sym := p.declareObject(spec, d)
	if decl.Init != nil {
		if sym.Defined && sym.Global {
			p.errorf(d.tok, "redefinition of '%s'", d.name)
		}
		sym.Defined = true
	}
	decl.Sym = sym
	if p.fn != nil && spec.storage != StorageExtern && sym.Kind == SymVar {
		p.fn.Locals = append(p.fn.Locals, sym)
	}
	*out = append(*out, decl)
	return nil
}

// incompleteObject reports whether an object of type t cannot be allocated.
func (p *Parser) incompleteObject(t *types.Type) bool {
	if t.Kind == types.KindError {
		return false
	}
	if t.Kind == types.KindArray && t.SizeExpr != nil {
		return false // variable length array
	}
	return p.sess.IsIncomplete(t)
}

// declareTypedef enters the typedef named by d.
func (p *Parser) declareTypedef(d *declarator) *TypedefStmt {
	decl := &types.TypedefDecl{Name: d.name, Type: d.typ}
	sym := &Symbol{Name: d.name, Kind: SymTypedef, Typedef: decl, Type: p.sess.MakeTypedef(decl, types.QualNone), Tok: d.tok}
	if prev, exists := p.syms.Declare(sym); exists {
		switch {
		case prev.Kind != SymTypedef:
			p.errorf(d.tok, "'%s' redeclared as different kind of symbol", d.name)
		case !p.sess.Compatible(p.resolve(prev.Typedef.Type), p.resolve(d.typ)):
			p.errorf(d.tok, "conflicting types for '%s'", d.name)
		}
		return &TypedefStmt{Tok: d.tok, Decl: prev.Typedef}
	}
	return &TypedefStmt{Tok: d.tok, Decl: decl}
}

// declareObject enters the variable or function named by d, merging it with
// a compatible earlier declaration of the same name.
func (p *Parser) declareObject(spec *declSpec, d *declarator) *Symbol {
	kind := SymVar
	if types.IsFunction(p.resolve(d.typ)) {
		kind = SymFunc
		if spec.storage != StorageNone && spec.storage != StorageExtern && spec.storage != StorageStatic {
			p.errorf(d.tok, "invalid storage class for function '%s'", d.name)
		}
		if spec.storage == StorageStatic && !p.syms.AtFileScope() {
			p.errorf(d.tok, "invalid storage class for function '%s'", d.name)
		}
	}
	sym := &Symbol{Name: d.name, Kind: kind, Type: d.typ, Storage: spec.storage, Tok: d.tok}
	prev, exists := p.syms.Declare(sym)
	if !exists {
		return sym
	}

	linked := prev.Global || prev.Storage == StorageExtern || kind == SymFunc
	switch {
	case prev.Kind != kind:
		p.errorf(d.tok, "'%s' redeclared as different kind of symbol", d.name)
		return sym
	case !linked || (spec.storage != StorageExtern && kind == SymVar && !p.syms.AtFileScope()):
		p.errorf(d.tok, "redeclaration of '%s' with no linkage", d.name)
		return prev
	case !p.sess.Compatible(p.resolve(prev.Type), p.resolve(d.typ)):
		p.errorf(d.tok, "conflicting types for '%s'", d.name)
		return prev
	}

	// Keep the more complete of the two declarations.
	old, cur := p.resolve(prev.Type), p.resolve(d.typ)
	switch {
	case old.Kind == types.KindFunction && old.UnspecifiedParams && !cur.UnspecifiedParams:
		prev.Type = d.typ
	case old.Kind == types.KindArray && !old.SizeConstant && cur.SizeConstant:
		prev.Type = d.typ
	}
	if prev.Storage == StorageNone && spec.storage == StorageStatic && kind == SymFunc {
		p.errorf(d.tok, "static declaration of '%s' follows non-static declaration", d.name)
	}
	return prev
}

// parseFunctionDefinition parses the body of the function declared by d.
func (p *Parser) parseFunctionDefinition(spec *declSpec, d *declarator) error {
	if d.kr {
		if err := p.parseKRDeclarations(d); err != nil {
			return err
		}
	}
	sym := p.declareObject(spec, d)
	if sym.Defined {
		p.errorf(d.tok, "redefinition of '%s'", d.name)
	}
	sym.Defined = true

	ft := p.resolve(d.typ)
	fn := &FunctionDecl{
		Tok: d.tok, Name: d.name, Type: d.typ, Params: d.params,
		Storage: spec.storage, Inline: spec.inline, Sym: sym,
	}
	ret := p.resolve(ft.Return)
	if !(ret.Kind == types.KindAtomic && ret.Atomic == types.Void) && p.incompleteObject(ret) {
		p.errorf(d.tok, "return type is an incomplete type")
	}

	p.fn = fn
	p.labels = make(map[string]bool)
	p.gotos = nil
	defer func() { p.fn = nil }()

	p.syms.EnterScope()
	defer p.syms.ExitScope()
	for _, prm := range d.params {
		if prm.Name == "" {
			p.errorf(d.tok, "parameter name omitted")
			continue
		}
		psym := &Symbol{Name: prm.Name, Kind: SymVar, Type: prm.Type, Tok: d.tok, Defined: true}
		if _, exists := p.syms.Declare(psym); exists {
			p.errorf(d.tok, "redefinition of parameter '%s'", prm.Name)
		}
		fn.ParamSyms = append(fn.ParamSyms, psym)
	}

	body, err := p.parseBlock(false)
	if err != nil {
		return err
	}
	fn.Body = body
	for _, g := range p.gotos {
		if !p.labels[g.Label] {
			p.errorf(g.Tok, "label '%s' used but not defined", g.Label)
		}
	}
	p.unit.Decls = append(p.unit.Decls, fn)
	return nil
}

// parseKRDeclarations reads the parameter declarations of an old-style
// definition, `int f(a, b) int a; char *b; { ... }`.
func (p *Parser) parseKRDeclarations(d *declarator) error {
	byName := make(map[string]*types.Parameter, len(d.params))
	for _, prm := range d.params {
		byName[prm.Name] = prm
	}
	for p.peek().Type != LBRACE && p.peek().Type != EOF {
		spec, err := p.parseDeclSpec(true)
		if err != nil {
			return err
		}
		for {
			pd, err := p.parseDeclarator(spec.typ, false)
			if err != nil {
				return err
			}
			prm, ok := byName[pd.name]
			if !ok {
				p.errorf(pd.tok, "declaration for parameter '%s' but no such parameter", pd.name)
			} else {
				prm.Type = p.adjustParam(pd.typ)
			}
			if !p.accept(COMMA) {
				break
			}
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return err
		}
	}
	for _, prm := range d.params {
		if prm.Type == nil {
			p.warnf(d.tok, "type of '%s' defaults to 'int'", prm.Name)
			prm.Type = p.atomic(types.Int)
		}
	}
	return nil
}

// resolve looks through typedefs and typeof.
func (p *Parser) resolve(t *types.Type) *types.Type {
	return p.sess.SkipTyperef(t)
}

func (p *Parser) atomic(k types.AtomicKind) *types.Type {
	return p.sess.MakeAtomic(k, types.QualNone)
}

func (p *Parser) linkage() types.Linkage {
	if p.dialect&types.CXX != 0 {
		return types.LinkageCXX
	}
	return types.LinkageC
}
