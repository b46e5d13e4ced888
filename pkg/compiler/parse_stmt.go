package compiler

import (
	"strings"

	"cfront/pkg/types"
)

// parseBlock parses { ... }. Function bodies share the parameter scope, so
// they pass newScope=false.
func (p *Parser) parseBlock(newScope bool) (*BlockStmt, error) {
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}
	if newScope {
		p.syms.EnterScope()
		defer p.syms.ExitScope()
	}
	block := &BlockStmt{}
	seenStmt := false
	for p.peek().Type != RBRACE {
		if p.peek().Type == EOF {
			return nil, p.fmtError(p.peek(), "expected '}' before end of input")
		}
		if err := p.parseBlockItem(&block.Stmts, &seenStmt); err != nil {
			p.diag.Report(err)
			p.syncStatement()
		}
	}
	p.advance()
	return block, nil
}

// parseBlockItem parses one declaration or statement into out.
func (p *Parser) parseBlockItem(out *[]Stmt, seenStmt *bool) error {
	tok := p.peek()
	if p.isDeclStart(tok) && !(tok.Type == IDENTIFIER && p.peekAt(1).Type == COLON) {
		if *seenStmt && p.dialect&types.C99 == 0 {
			p.warnf(tok, "ISO C90 forbids mixed declarations and code")
		}
		return p.parseLocalDeclaration(out)
	}
	*seenStmt = true
	st, err := p.parseStatement()
	if err != nil {
		return err
	}
	*out = append(*out, st)
	return nil
}

// parseLocalDeclaration parses a block-scope declaration. The objects it
// declares are grouped into one DeclStmt.
func (p *Parser) parseLocalDeclaration(out *[]Stmt) error {
	spec, err := p.parseDeclSpec(true)
	if err != nil {
		return err
	}
	if p.accept(SEMICOLON) {
		if spec.tag != nil {
			*out = appendTagDecl(*out, spec)
		} else {
			p.warnf(spec.tok, "declaration does not declare anything")
		}
		return nil
	}

	var decls []Stmt
	for {
		d, err := p.parseDeclarator(spec.typ, false)
		if err != nil {
			return err
		}
		if types.IsFunction(p.resolve(d.typ)) && p.peek().Type == LBRACE {
			return p.fmtError(p.peek(), "nested functions are not supported")
		}
		if err := p.parseInitDeclarator(spec, d, &decls); err != nil {
			return err
		}
		if !p.accept(COMMA) {
			break
		}
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return err
	}

	group := &DeclStmt{}
	flush := func() {
		if len(group.Decls) > 0 {
			*out = append(*out, group)
			group = &DeclStmt{}
		}
	}
	for _, d := range decls {
		if v, ok := d.(*VariableDecl); ok {
			group.Decls = append(group.Decls, v)
			continue
		}
		flush()
		*out = append(*out, d)
	}
	flush()
	return nil
}

// parseStatement dispatches on the leading token.
func (p *Parser) parseStatement() (Stmt, error) {
	tok := p.peek()
	switch tok.Type {
	case LBRACE:
		b, err := p.parseBlock(true)
		if err != nil {
			return nil, err
		}
		return b, nil
	case IF:
		return p.parseIf()
	case WHILE:
		return p.parseWhile()
	case DO:
		return p.parseDoWhile()
	case FOR:
		return p.parseFor()
	case SWITCH:
		return p.parseSwitch()
	case RETURN:
		return p.parseReturn()
	case ASM:
		a, err := p.parseAsm()
		if err != nil {
			return nil, err
		}
		return a, nil

	case BREAK:
		p.advance()
		if p.loopDepth == 0 && p.inSwitch == 0 {
			p.errorf(tok, "break statement not within loop or switch")
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &BreakStmt{}, nil

	case CONTINUE:
		p.advance()
		if p.loopDepth == 0 {
			p.errorf(tok, "continue statement not within a loop")
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &ContinueStmt{}, nil

	case GOTO:
		p.advance()
		label, err := p.expect(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		g := &GotoStmt{Tok: label, Label: label.Lexeme}
		p.gotos = append(p.gotos, g)
		return g, nil

	case CASE, DEFAULT:
		if p.inSwitch == 0 {
			return nil, p.fmtError(tok, "'%s' label not within a switch statement", tok.Lexeme)
		}
		return nil, p.fmtError(tok, "'%s' label in a nested block is not supported", tok.Lexeme)

	case SEMICOLON:
		p.advance()
		return &EmptyStmt{}, nil

	case IDENTIFIER:
		if p.peekAt(1).Type == COLON {
			return p.parseLabeled()
		}
	}

	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &ExprStmt{Expr: e}, nil
}

func (p *Parser) parseLabeled() (Stmt, error) {
	label := p.advance()
	p.advance() // :
	if p.labels[label.Lexeme] {
		p.errorf(label, "duplicate label '%s'", label.Lexeme)
	}
	p.labels[label.Lexeme] = true
	if p.peek().Type == RBRACE {
		p.warnf(label, "label at end of compound statement")
		return &LabeledStmt{Label: label.Lexeme, Body: &EmptyStmt{}}, nil
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &LabeledStmt{Label: label.Lexeme, Body: body}, nil
}

// parseCondition parses ( expression ) used by if, while, do and switch.
func (p *Parser) parseCondition(what string) (Expr, error) {
	open, err := p.expect(LPAREN)
	if err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	if what == "" {
		return p.rvalue(cond), nil
	}
	return p.checkScalar(open, cond, what), nil
}

func (p *Parser) parseIf() (Stmt, error) {
	p.advance()
	cond, err := p.parseCondition("value")
	if err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	st := &IfStmt{Condition: cond, Body: body}
	if p.accept(ELSE) {
		if st.ElseBody, err = p.parseStatement(); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// loopBody parses the body of a loop.
func (p *Parser) loopBody() (Stmt, error) {
	p.loopDepth++
	defer func() { p.loopDepth-- }()
	return p.parseStatement()
}

func (p *Parser) parseWhile() (Stmt, error) {
	p.advance()
	cond, err := p.parseCondition("value")
	if err != nil {
		return nil, err
	}
	body, err := p.loopBody()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Condition: cond, Body: body}, nil
}

func (p *Parser) parseDoWhile() (Stmt, error) {
	p.advance()
	body, err := p.loopBody()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(WHILE); err != nil {
		return nil, err
	}
	cond, err := p.parseCondition("value")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &DoWhileStmt{Body: body, Condition: cond}, nil
}

func (p *Parser) parseFor() (Stmt, error) {
	p.advance()
	open, err := p.expect(LPAREN)
	if err != nil {
		return nil, err
	}
	// C99 for-init declarations get their own scope
	p.syms.EnterScope()
	defer p.syms.ExitScope()

	st := &ForStmt{}
	switch {
	case p.accept(SEMICOLON):
	case p.isDeclStart(p.peek()):
		if p.dialect&types.C99 == 0 {
			p.warnf(open, "'for' loop initial declarations are only allowed in C99 mode")
		}
		var decls []Stmt
		if err := p.parseLocalDeclaration(&decls); err != nil {
			return nil, err
		}
		if len(decls) == 1 {
			st.Init = decls[0]
		} else {
			st.Init = &BlockStmt{Stmts: decls}
		}
	default:
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		st.Init = &ExprStmt{Expr: e}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
	}

	if p.peek().Type != SEMICOLON {
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		st.Cond = p.checkScalar(open, cond, "value")
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	if p.peek().Type != RPAREN {
		if st.Post, err = p.parseExpression(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	if st.Body, err = p.loopBody(); err != nil {
		return nil, err
	}
	return st, nil
}

// parseSwitch parses switch (e) { case ...: ... }. Case and default labels
// must appear directly in the switch body; statements between labels belong
// to the preceding clause.
func (p *Parser) parseSwitch() (Stmt, error) {
	kw := p.advance()
	target, err := p.parseCondition("")
	if err != nil {
		return nil, err
	}
	tt := p.typeOf(target)
	if !isErr(tt) {
		if !p.sess.IsInteger(tt) {
			p.errorf(kw, "switch quantity not an integer")
			target = &CastExpr{typed: typed{p.sess.ErrorType()}, Expr: target, Implicit: true}
		} else {
			target = p.promote(target)
		}
	}
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}

	p.inSwitch++
	defer func() { p.inSwitch-- }()
	p.syms.EnterScope()
	defer p.syms.ExitScope()

	st := &SwitchStmt{Target: target}
	seen := make(map[int64]bool)
	hasDefault := false
	var cur *CaseClause
	seenStmt := true

	for !p.accept(RBRACE) {
		tok := p.peek()
		switch tok.Type {
		case EOF:
			return nil, p.fmtError(tok, "expected '}' before end of input")

		case CASE:
			p.advance()
			e, err := p.parseConditional()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(COLON); err != nil {
				return nil, err
			}
			cur = &CaseClause{Value: e}
			st.Clauses = append(st.Clauses, cur)
			v, ok := p.constValue(e)
			if !ok {
				p.errorf(tok, "case label does not reduce to an integer constant")
				continue
			}
			if ttype := p.typeOf(target); !isErr(ttype) {
				v = p.truncate(v, ttype)
			}
			if seen[v] {
				p.errorf(tok, "duplicate case value")
			}
			seen[v] = true
			cur.Const = v

		case DEFAULT:
			p.advance()
			if _, err := p.expect(COLON); err != nil {
				return nil, err
			}
			if hasDefault {
				p.errorf(tok, "multiple default labels in one switch")
			}
			hasDefault = true
			cur = &CaseClause{IsDefault: true}
			st.Clauses = append(st.Clauses, cur)

		default:
			var stmts []Stmt
			if err := p.parseBlockItem(&stmts, &seenStmt); err != nil {
				p.diag.Report(err)
				p.syncStatement()
				continue
			}
			if cur == nil {
				p.warnf(tok, "statement will never be executed")
				continue
			}
			cur.Body = append(cur.Body, stmts...)
		}
	}
	return st, nil
}

func (p *Parser) parseReturn() (Stmt, error) {
	tok := p.advance()
	st := &ReturnStmt{Tok: tok}
	ret := p.resolve(p.resolve(p.fn.Type).Return)
	if p.accept(SEMICOLON) {
		if !isVoid(ret) && !isErr(ret) {
			p.warnf(tok, "'return' with no value, in function returning non-void")
		}
		return st, nil
	}
	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	switch {
	case isVoid(ret):
		if !isVoid(p.typeOf(e)) {
			p.warnf(tok, "'return' with a value, in function returning void")
		}
		st.Expr = p.rvalue(e)
	default:
		st.Expr = p.convertAssign(tok, e, p.resolve(p.fn.Type).Return, "return")
	}
	return st, nil
}

// parseAsm parses asm [volatile] ("text" [: operands...]); Operands are
// accepted and ignored.
func (p *Parser) parseAsm() (*AsmStmt, error) {
	p.advance()
	for p.peek().Type == VOLATILE || p.peek().Type == GOTO || p.peek().Type == INLINE {
		p.advance()
	}
	openAt := p.pos
	open, err := p.expect(LPAREN)
	if err != nil {
		return nil, err
	}
	var text strings.Builder
	for p.peek().Type == STRING {
		text.WriteString(p.advance().Lexeme)
	}
	if tok := p.peek(); text.Len() == 0 && tok.Type != RPAREN {
		return nil, p.fmtError(tok, "expected string literal before %s", quoteTok(tok))
	}
	if p.peek().Type == COLON {
		end := p.matchParen(openAt)
		if end < 0 {
			return nil, p.fmtError(open, "expected ')' before end of input")
		}
		p.pos = end
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &AsmStmt{Instruction: text.String()}, nil
}
