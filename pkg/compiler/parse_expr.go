package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"cfront/pkg/types"
)

// parseExpression parses a comma expression.
func (p *Parser) parseExpression() (Expr, error) {
	left, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == COMMA {
		p.advance()
		right, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		right = p.rvalue(right)
		left = &CommaExpr{typed: typed{right.StaticType()}, Left: left, Right: right}
	}
	return left, nil
}

func isAssignOp(tt TokenType) bool {
	switch tt {
	case ASSIGN, PLUS_ASSIGN, MINUS_ASSIGN, STAR_ASSIGN, SLASH_ASSIGN, PERCENT_ASSIGN,
		AND_ASSIGN, OR_ASSIGN, XOR_ASSIGN, SHL_ASSIGN, SHR_ASSIGN:
		return true
	}
	return false
}

// compoundOp maps a compound assignment to its binary operator.
var compoundOp = map[TokenType]TokenType{
	PLUS_ASSIGN: PLUS, MINUS_ASSIGN: MINUS, STAR_ASSIGN: STAR, SLASH_ASSIGN: SLASH,
	PERCENT_ASSIGN: PERCENT, AND_ASSIGN: AND, OR_ASSIGN: PIPE, XOR_ASSIGN: CARET,
	SHL_ASSIGN: SHL_OP, SHR_ASSIGN: SHR_OP,
}

// parseAssignment parses assignment expressions (right-associative).
func (p *Parser) parseAssignment() (Expr, error) {
	left, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	if !isAssignOp(p.peek().Type) {
		return left, nil
	}
	op := p.advance()
	right, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	return p.assign(op, left, right), nil
}

func (p *Parser) assign(op Token, left, right Expr) Expr {
	lt := p.typeOf(left)
	if !p.checkModifiable(op, left, "left operand of assignment") {
		return &AssignExpr{typed: typed{p.sess.ErrorType()}, Op: op.Type, Left: left, Right: right}
	}
	result := p.sess.UnqualifiedType(lt)
	if op.Type == ASSIGN {
		right = p.convertAssign(op, right, left.StaticType(), "assignment")
		return &AssignExpr{typed: typed{result}, Op: op.Type, Left: left, Right: right}
	}

	// a op= b is checked as a = a op b
	bin := p.binary(Token{Type: compoundOp[op.Type], Lexeme: OpText(compoundOp[op.Type]), Line: op.Line, File: op.File}, left, right)
	if isErr(p.typeOf(bin)) {
		return &AssignExpr{typed: typed{p.sess.ErrorType()}, Op: op.Type, Left: left, Right: right}
	}
	if b, ok := bin.(*BinaryExpr); ok {
		right = b.Right
	}
	if lt.Kind == types.KindPointer {
		if op.Type != PLUS_ASSIGN && op.Type != MINUS_ASSIGN {
			p.errorf(op, "invalid operands to binary %s", OpText(compoundOp[op.Type]))
		}
	} else {
		p.convertAssign(op, bin, left.StaticType(), "assignment")
	}
	return &AssignExpr{typed: typed{result}, Op: op.Type, Left: left, Right: right}
}

// parseConditional parses cond ? a : b.
func (p *Parser) parseConditional() (Expr, error) {
	cond, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}
	if p.peek().Type != QUESTION {
		return cond, nil
	}
	q := p.advance()
	var then Expr
	if p.peek().Type == COLON && p.dialect&types.GNUC != 0 {
		then = cond // GNU a ?: b
	} else if then, err = p.parseExpression(); err != nil {
		return nil, err
	}
	if _, err := p.expect(COLON); err != nil {
		return nil, err
	}
	els, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	return p.conditional(q, cond, then, els), nil
}

func (p *Parser) conditional(tok Token, cond, then, els Expr) Expr {
	cond = p.checkScalar(tok, cond, "value")
	then, els = p.rvalue(then), p.rvalue(els)
	tt, et := scalarOf(p.typeOf(then)), scalarOf(p.typeOf(els))
	out := &ConditionalExpr{Cond: cond, Then: then, Else: els}

	switch {
	case isErr(tt) || isErr(et):
		out.Type = p.sess.ErrorType()
	case p.sess.IsArithmetic(tt) && p.sess.IsArithmetic(et):
		out.Then, out.Else, out.Type = p.arithConvert(then, els)
	case isVoid(tt) && isVoid(et):
		out.Type = p.atomic(types.Void)
	case tt.Kind == types.KindPointer && p.isNullPointer(els):
		out.Type = tt
		out.Else = p.implicit(els, tt)
	case et.Kind == types.KindPointer && p.isNullPointer(then):
		out.Type = et
		out.Then = p.implicit(then, et)
	case tt.Kind == types.KindPointer && et.Kind == types.KindPointer:
		tp, ep := p.resolve(tt.PointsTo), p.resolve(et.PointsTo)
		q := p.sess.TypeQualifiers(tt.PointsTo, true) | p.sess.TypeQualifiers(et.PointsTo, true)
		switch {
		case isVoid(tp) || isVoid(ep):
			out.Type = p.sess.MakePointer(p.sess.MakeAtomic(types.Void, q), types.QualNone)
		case p.pointeesCompatible(tp, ep):
			out.Type = p.sess.MakePointer(p.sess.QualifiedType(tt.PointsTo, q), types.QualNone)
		default:
			p.warnf(tok, "pointer type mismatch in conditional expression")
			out.Type = p.sess.MakePointer(p.sess.MakeAtomic(types.Void, q), types.QualNone)
		}
		out.Then, out.Else = p.implicit(then, out.Type), p.implicit(els, out.Type)
	case tt.Kind == types.KindPointer && p.sess.IsInteger(et), et.Kind == types.KindPointer && p.sess.IsInteger(tt):
		p.warnf(tok, "pointer/integer type mismatch in conditional expression")
		if tt.Kind == types.KindPointer {
			out.Type = tt
		} else {
			out.Type = et
		}
		out.Then, out.Else = p.implicit(then, out.Type), p.implicit(els, out.Type)
	case types.IsCompound(tt) && p.sess.Compatible(p.sess.UnqualifiedType(tt), p.sess.UnqualifiedType(et)):
		out.Type = p.sess.UnqualifiedType(tt)
	default:
		p.errorf(tok, "type mismatch in conditional expression")
		out.Type = p.sess.ErrorType()
	}
	return out
}

// binaryPrec is the precedence of the binary operators, lowest first.
var binaryPrec = map[TokenType]int{
	OR_LOGICAL:  1,
	AND_LOGICAL: 2,
	PIPE:        3,
	CARET:       4,
	AND:         5,
	EQUALS:      6, NOT_EQ: 6,
	LESS: 7, GREATER: 7, LESS_EQ: 7, GREATER_EQ: 7,
	SHL_OP: 8, SHR_OP: 8,
	PLUS: 9, MINUS: 9,
	STAR: 10, SLASH: 10, PERCENT: 10,
}

// parseBinary parses the left-associative binary operators by precedence
// climbing.
func (p *Parser) parseBinary(minPrec int) (Expr, error) {
	left, err := p.parseCast()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		prec, ok := binaryPrec[op.Type]
		if !ok || prec <= minPrec {
			return left, nil
		}
		p.advance()
		right, err := p.parseBinary(prec)
		if err != nil {
			return nil, err
		}
		left = p.binary(op, left, right)
	}
}

// binary type checks left op right.
func (p *Parser) binary(op Token, left, right Expr) Expr {
	left, right = p.rvalue(left), p.rvalue(right)
	lt, rt := scalarOf(p.typeOf(left)), scalarOf(p.typeOf(right))
	errExpr := func() Expr {
		return &BinaryExpr{typed: typed{p.sess.ErrorType()}, Op: op.Type, Left: left, Right: right}
	}
	if isErr(lt) || isErr(rt) {
		return errExpr()
	}
	invalid := func() Expr {
		p.errorf(op, "invalid operands to binary %s (have '%s' and '%s')",
			OpText(op.Type), types.TypeString(left.StaticType()), types.TypeString(right.StaticType()))
		return errExpr()
	}
	intType := p.atomic(types.Int)

	switch op.Type {
	case AND_LOGICAL, OR_LOGICAL:
		if !p.sess.IsScalar(lt) || !p.sess.IsScalar(rt) {
			return invalid()
		}
		return &LogicalExpr{typed: typed{intType}, Op: op.Type, Left: left, Right: right}

	case STAR, SLASH:
		if !p.sess.IsArithmetic(lt) || !p.sess.IsArithmetic(rt) {
			return invalid()
		}
		l, r, t := p.arithConvert(left, right)
		p.checkDivision(op, r)
		return &BinaryExpr{typed: typed{t}, Op: op.Type, Left: l, Right: r}

	case PERCENT, AND, PIPE, CARET:
		if !p.sess.IsInteger(lt) || !p.sess.IsInteger(rt) {
			return invalid()
		}
		l, r, t := p.arithConvert(left, right)
		p.checkDivision(op, r)
		return &BinaryExpr{typed: typed{t}, Op: op.Type, Left: l, Right: r}

	case SHL_OP, SHR_OP:
		if !p.sess.IsInteger(lt) || !p.sess.IsInteger(rt) {
			return invalid()
		}
		l, r := p.promote(left), p.promote(right)
		if v, ok := p.constValue(r); ok && (v < 0 || v >= int64(p.sess.SizeOf(p.typeOf(l))*8)) {
			p.warnf(op, "shift count is negative or too large")
		}
		return &BinaryExpr{typed: typed{l.StaticType()}, Op: op.Type, Left: l, Right: r}

	case PLUS:
		switch {
		case p.sess.IsArithmetic(lt) && p.sess.IsArithmetic(rt):
			l, r, t := p.arithConvert(left, right)
			return &BinaryExpr{typed: typed{t}, Op: op.Type, Left: l, Right: r}
		case lt.Kind == types.KindPointer && p.sess.IsInteger(rt):
			if !p.completePointee(op, lt.PointsTo) {
				return errExpr()
			}
			return &BinaryExpr{typed: typed{lt}, Op: op.Type, Left: left, Right: p.promote(right)}
		case rt.Kind == types.KindPointer && p.sess.IsInteger(lt):
			if !p.completePointee(op, rt.PointsTo) {
				return errExpr()
			}
			return &BinaryExpr{typed: typed{rt}, Op: op.Type, Left: p.promote(left), Right: right}
		}
		return invalid()

	case MINUS:
		switch {
		case p.sess.IsArithmetic(lt) && p.sess.IsArithmetic(rt):
			l, r, t := p.arithConvert(left, right)
			return &BinaryExpr{typed: typed{t}, Op: op.Type, Left: l, Right: r}
		case lt.Kind == types.KindPointer && p.sess.IsInteger(rt):
			if !p.completePointee(op, lt.PointsTo) {
				return errExpr()
			}
			return &BinaryExpr{typed: typed{lt}, Op: op.Type, Left: left, Right: p.promote(right)}
		case lt.Kind == types.KindPointer && rt.Kind == types.KindPointer:
			if !p.pointeesCompatible(lt.PointsTo, rt.PointsTo) {
				p.errorf(op, "invalid operands to binary - (pointers to incompatible types)")
				return errExpr()
			}
			if !p.completePointee(op, lt.PointsTo) {
				return errExpr()
			}
			return &BinaryExpr{typed: typed{p.ptrdiffType()}, Op: op.Type, Left: left, Right: right}
		}
		return invalid()

	case EQUALS, NOT_EQ, LESS, GREATER, LESS_EQ, GREATER_EQ:
		switch {
		case p.sess.IsArithmetic(lt) && p.sess.IsArithmetic(rt):
			if (lt.Kind == types.KindComplex || rt.Kind == types.KindComplex) && op.Type != EQUALS && op.Type != NOT_EQ {
				return invalid()
			}
			l, r, _ := p.arithConvert(left, right)
			return &BinaryExpr{typed: typed{intType}, Op: op.Type, Left: l, Right: r}
		case lt.Kind == types.KindPointer && rt.Kind == types.KindPointer:
			lp, rp := p.resolve(lt.PointsTo), p.resolve(rt.PointsTo)
			equality := op.Type == EQUALS || op.Type == NOT_EQ
			switch {
			case p.pointeesCompatible(lp, rp):
			case equality && (isVoid(lp) || isVoid(rp) || p.isNullPointer(left) || p.isNullPointer(right)):
			default:
				p.warnf(op, "comparison of distinct pointer types lacks a cast")
			}
			return &BinaryExpr{typed: typed{intType}, Op: op.Type, Left: left, Right: right}
		case lt.Kind == types.KindPointer && p.sess.IsInteger(rt), rt.Kind == types.KindPointer && p.sess.IsInteger(lt):
			if !p.isNullPointer(left) && !p.isNullPointer(right) {
				p.warnf(op, "comparison between pointer and integer")
			}
			if lt.Kind == types.KindPointer {
				right = p.implicit(right, lt)
			} else {
				left = p.implicit(left, rt)
			}
			return &BinaryExpr{typed: typed{intType}, Op: op.Type, Left: left, Right: right}
		}
		return invalid()
	}
	return invalid()
}

func (p *Parser) checkDivision(op Token, divisor Expr) {
	if op.Type != SLASH && op.Type != PERCENT {
		return
	}
	if !p.sess.IsInteger(p.typeOf(divisor)) {
		return
	}
	if v, ok := p.constValue(divisor); ok && v == 0 {
		p.warnf(op, "division by zero")
	}
}

// parseCast parses (type-name) cast-expression, or a unary expression.
func (p *Parser) parseCast() (Expr, error) {
	if p.peek().Type == LPAREN && p.isTypeNameStart(p.peekAt(1)) {
		open := p.advance()
		t, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		if p.peek().Type == LBRACE {
			// C99 compound literal
			init, typ, err := p.parseInitializer(t)
			if err != nil {
				return nil, err
			}
			if il, ok := init.(*InitializerList); ok {
				il.Type = typ
				return p.parsePostfixOps(il)
			}
			return p.parsePostfixOps(p.implicit(init, typ))
		}
		operand, err := p.parseCast()
		if err != nil {
			return nil, err
		}
		return p.explicitCast(open, t, operand), nil
	}
	return p.parseUnary()
}

// parseUnary handles prefix operators.
func (p *Parser) parseUnary() (Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case PLUS_PLUS, MINUS_MINUS:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return p.incDec(tok, operand, false), nil

	case AND, STAR, PLUS, MINUS, TILDE, NOT:
		p.advance()
		operand, err := p.parseCast()
		if err != nil {
			return nil, err
		}
		return p.unary(tok, operand), nil

	case SIZEOF:
		p.advance()
		if p.peek().Type == LPAREN && p.isTypeNameStart(p.peekAt(1)) {
			p.advance()
			t, err := p.parseTypeName()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RPAREN); err != nil {
				return nil, err
			}
			if p.peek().Type == LBRACE {
				_, typ, err := p.parseInitializer(t)
				if err != nil {
					return nil, err
				}
				t = typ
			}
			return p.sizeof(tok, nil, t), nil
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return p.sizeof(tok, operand, operand.StaticType()), nil

	case EXTENSION:
		p.advance()
		return p.parseCast()
	}
	return p.parsePostfix()
}

func (p *Parser) unary(op Token, operand Expr) Expr {
	errExpr := func() Expr {
		return &UnaryExpr{typed: typed{p.sess.ErrorType()}, Op: op.Type, Right: operand}
	}
	if op.Type == AND {
		return p.addressOf(op, operand)
	}
	operand = p.rvalue(operand)
	t := scalarOf(p.typeOf(operand))
	if isErr(t) {
		return errExpr()
	}
	switch op.Type {
	case STAR:
		if t.Kind != types.KindPointer {
			p.errorf(op, "invalid type argument of unary '*' (have '%s')", types.TypeString(operand.StaticType()))
			return errExpr()
		}
		pt := p.resolve(t.PointsTo)
		if isVoid(pt) {
			p.warnf(op, "dereferencing 'void *' pointer")
		}
		return &UnaryExpr{typed: typed{t.PointsTo}, Op: op.Type, Right: operand}
	case PLUS, MINUS:
		if !p.sess.IsArithmetic(t) {
			p.errorf(op, "wrong type argument to unary %s", OpText(op.Type))
			return errExpr()
		}
		operand = p.promote(operand)
		return &UnaryExpr{typed: typed{operand.StaticType()}, Op: op.Type, Right: operand}
	case TILDE:
		if !p.sess.IsInteger(t) && t.Kind != types.KindComplex {
			p.errorf(op, "wrong type argument to bit-complement")
			return errExpr()
		}
		operand = p.promote(operand)
		return &UnaryExpr{typed: typed{operand.StaticType()}, Op: op.Type, Right: operand}
	case NOT:
		if !p.sess.IsScalar(t) {
			p.errorf(op, "wrong type argument to unary exclamation mark")
			return errExpr()
		}
		return &UnaryExpr{typed: typed{p.atomic(types.Int)}, Op: op.Type, Right: operand}
	}
	return errExpr()
}

func (p *Parser) addressOf(op Token, operand Expr) Expr {
	t := p.typeOf(operand)
	out := &UnaryExpr{typed: typed{p.sess.ErrorType()}, Op: AND, Right: operand}
	switch {
	case isErr(t):
		return out
	case types.IsFunction(t):
	case !p.isLvalue(operand):
		p.errorf(op, "lvalue required as unary '&' operand")
		return out
	}
	if m, ok := operand.(*MemberExpr); ok && m.Field != nil && p.resolve(m.Field.Type).Kind == types.KindBitfield {
		p.errorf(op, "cannot take address of bit-field '%s'", m.Member)
		return out
	}
	if v, ok := operand.(*VarRef); ok && v.Sym != nil && v.Sym.Storage == StorageRegister {
		p.errorf(op, "address of register variable '%s' requested", v.Name)
		return out
	}
	out.Type = p.sess.MakePointer(operand.StaticType(), types.QualNone)
	return out
}

func (p *Parser) incDec(op Token, operand Expr, postfix bool) Expr {
	what := "increment operand"
	if op.Type == MINUS_MINUS {
		what = "decrement operand"
	}
	t := p.typeOf(operand)
	typ := p.sess.ErrorType()
	if p.checkModifiable(op, operand, what) {
		switch {
		case t.Kind == types.KindPointer:
			if p.completePointee(op, t.PointsTo) {
				typ = p.sess.UnqualifiedType(t)
			}
		case p.sess.IsArithmetic(t):
			typ = p.sess.UnqualifiedType(t)
		default:
			p.errorf(op, "wrong type argument to %s", what[:len(what)-len(" operand")])
		}
	}
	if postfix {
		return &PostfixExpr{typed: typed{typ}, Op: op.Type, Left: operand}
	}
	return &UnaryExpr{typed: typed{typ}, Op: op.Type, Right: operand}
}

func (p *Parser) sizeof(tok Token, operand Expr, of *types.Type) Expr {
	out := &SizeofExpr{typed: typed{p.sizeType()}, Expr: operand, Of: of, Size: -1}
	t := p.resolve(of)
	if m, ok := operand.(*MemberExpr); ok && m.Field != nil && p.resolve(m.Field.Type).Kind == types.KindBitfield {
		p.errorf(tok, "'sizeof' applied to a bit-field")
		return out
	}
	switch {
	case isErr(t):
	case types.IsFunction(t):
		if p.dialect&types.GNUC != 0 {
			p.warnf(tok, "invalid application of 'sizeof' to a function type")
			out.Size = 1
		} else {
			p.errorf(tok, "invalid application of 'sizeof' to a function type")
		}
	case isVoid(t):
		if p.dialect&types.GNUC != 0 {
			p.warnf(tok, "invalid application of 'sizeof' to a void type")
			out.Size = 1
		} else {
			p.errorf(tok, "invalid application of 'sizeof' to a void type")
		}
	case p.sess.IsIncomplete(t):
		p.errorf(tok, "invalid application of 'sizeof' to incomplete type '%s'", types.TypeString(of))
	case p.isVariable(t):
		// evaluated at run time
	default:
		out.Size = p.sess.SizeOf(t)
	}
	return out
}

// isVariable reports whether t is, or contains, a variable length array.
func (p *Parser) isVariable(t *types.Type) bool {
	for t.Kind == types.KindArray {
		if !t.SizeConstant {
			return true
		}
		t = p.resolve(t.Element)
	}
	return false
}

// parsePostfix parses a primary expression and its postfix operators.
func (p *Parser) parsePostfix() (Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return p.parsePostfixOps(expr)
}

func (p *Parser) parsePostfixOps(expr Expr) (Expr, error) {
	for {
		tok := p.peek()
		switch tok.Type {
		case LBRACKET:
			p.advance()
			index, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RBRACKET); err != nil {
				return nil, err
			}
			expr = p.index(tok, expr, index)

		case LPAREN:
			p.advance()
			var args []Expr
			if p.peek().Type != RPAREN {
				for {
					arg, err := p.parseAssignment()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if !p.accept(COMMA) {
						break
					}
				}
			}
			if _, err := p.expect(RPAREN); err != nil {
				return nil, err
			}
			expr = p.call(tok, expr, args)

		case DOT, ARROW:
			p.advance()
			name, err := p.expect(IDENTIFIER)
			if err != nil {
				return nil, err
			}
			expr = p.member(tok, expr, name.Lexeme, tok.Type == ARROW)

		case PLUS_PLUS, MINUS_MINUS:
			p.advance()
			expr = p.incDec(tok, expr, true)

		default:
			return expr, nil
		}
	}
}

func (p *Parser) index(tok Token, base, index Expr) Expr {
	base, index = p.rvalue(base), p.rvalue(index)
	bt, it := p.typeOf(base), p.typeOf(index)
	out := &IndexExpr{typed: typed{p.sess.ErrorType()}, Left: base, Index: index}
	if isErr(bt) || isErr(it) {
		return out
	}
	// i[a] is a[i]
	if it.Kind == types.KindPointer && p.sess.IsInteger(bt) {
		out.Left, out.Index = index, base
		bt, it = it, bt
	}
	switch {
	case bt.Kind != types.KindPointer:
		p.errorf(tok, "subscripted value is neither array nor pointer")
	case !p.sess.IsInteger(it):
		p.errorf(tok, "array subscript is not an integer")
	case !p.completePointee(tok, bt.PointsTo):
	default:
		out.Index = p.promote(out.Index)
		out.Type = bt.PointsTo
	}
	return out
}

func (p *Parser) member(tok Token, base Expr, name string, arrow bool) Expr {
	out := &MemberExpr{typed: typed{p.sess.ErrorType()}, Left: base, Member: name, Arrow: arrow}
	var outer *types.Type
	if arrow {
		base = p.rvalue(base)
		out.Left = base
		bt := p.typeOf(base)
		if isErr(bt) {
			return out
		}
		if bt.Kind != types.KindPointer || !types.IsCompound(p.resolve(bt.PointsTo)) {
			p.errorf(tok, "invalid type argument of '->' (have '%s')", types.TypeString(base.StaticType()))
			return out
		}
		outer = bt.PointsTo
	} else {
		bt := p.typeOf(base)
		if isErr(bt) {
			return out
		}
		if !types.IsCompound(bt) {
			p.errorf(tok, "request for member '%s' in something not a structure or union", name)
			return out
		}
		outer = base.StaticType()
	}

	c := p.resolve(outer).Compound
	if !c.Complete {
		if arrow {
			p.errorf(tok, "dereferencing pointer to incomplete type")
		} else {
			p.errorf(tok, "invalid use of incomplete type '%s'", types.TypeString(outer))
		}
		return out
	}
	path := p.findMember(c, name)
	if path == nil {
		p.errorf(tok, "'%s' has no member named '%s'", types.TypeString(outer), name)
		return out
	}
	// anonymous members become explicit accesses
	for _, m := range path[:len(path)-1] {
		base = &MemberExpr{typed: typed{p.memberType(outer, m)}, Left: base, Arrow: arrow, Field: m}
		outer = base.StaticType()
		arrow = false
	}
	last := path[len(path)-1]
	return &MemberExpr{typed: typed{p.memberType(outer, last)}, Left: base, Member: name, Arrow: arrow, Field: last}
}

// call checks a function call against the callee's type.
func (p *Parser) call(tok Token, callee Expr, args []Expr) Expr {
	out := &CallExpr{typed: typed{p.sess.ErrorType()}, Func: callee, Args: args}
	callee = p.rvalue(callee)
	out.Func = callee
	ct := p.typeOf(callee)
	if isErr(ct) {
		for i, a := range args {
			out.Args[i] = p.rvalue(a)
		}
		return out
	}
	var ft *types.Type
	if ct.Kind == types.KindPointer {
		ft = p.resolve(ct.PointsTo)
	}
	if ft == nil || ft.Kind != types.KindFunction {
		p.errorf(tok, "called object '%s' is not a function", callee)
		return out
	}

	name := callee.String()
	prototyped := !ft.UnspecifiedParams
	if prototyped {
		switch {
		case len(args) < len(ft.Params):
			p.errorf(tok, "too few arguments to function '%s'", name)
			return out
		case len(args) > len(ft.Params) && !ft.Variadic:
			p.errorf(tok, "too many arguments to function '%s'", name)
			return out
		}
	}
	for i, a := range args {
		if prototyped && i < len(ft.Params) {
			out.Args[i] = p.convertAssign(tok, a, ft.Params[i].Type, fmt.Sprintf("passing argument %d of '%s'", i+1, name))
			continue
		}
		a = p.defaultPromote(a)
		if at := p.typeOf(a); isVoid(at) {
			p.errorf(tok, "invalid use of void expression")
		}
		out.Args[i] = a
	}

	ret := p.resolve(ft.Return)
	if !isVoid(ret) && p.incompleteObject(ret) {
		p.errorf(tok, "invalid use of undefined type '%s'", types.TypeString(ft.Return))
		return out
	}
	out.Type = ft.Return
	return out
}

// parsePrimary parses literals, identifiers and parenthesised expressions.
func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case INTEGER:
		p.advance()
		return p.intLiteral(tok), nil

	case FLOAT_LIT:
		p.advance()
		return p.floatLiteral(tok), nil

	case STRING:
		var sb strings.Builder
		for p.peek().Type == STRING {
			sb.WriteString(p.advance().Lexeme)
		}
		s := sb.String()
		return &StringLiteral{
			typed: typed{p.sess.MakeArray(p.atomic(types.Char), len(s)+1, types.QualNone)},
			Value: s,
		}, nil

	case IDENTIFIER:
		p.advance()
		return p.identifier(tok), nil

	case LPAREN:
		p.advance()
		if p.peek().Type == LBRACE && p.dialect&types.GNUC != 0 {
			return nil, p.fmtError(p.peek(), "statement expressions are not supported")
		}
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil, p.fmtError(tok, "expected expression before %s", quoteTok(tok))
}

func (p *Parser) identifier(tok Token) Expr {
	sym, ok := p.syms.Lookup(tok.Lexeme)
	if !ok {
		if p.peek().Type == LPAREN {
			// implicit declaration: int name()
			if p.dialect&types.C99 != 0 {
				p.warnf(tok, "implicit declaration of function '%s'", tok.Lexeme)
			}
			ft := p.sess.MakeFunction(p.atomic(types.Int), types.FunctionSpec{
				UnspecifiedParams: true,
				Linkage:           p.linkage(),
			})
			sym = &Symbol{Name: tok.Lexeme, Kind: SymFunc, Type: ft, Storage: StorageExtern, Tok: tok}
		} else {
			p.errorf(tok, "'%s' undeclared", tok.Lexeme)
			sym = &Symbol{Name: tok.Lexeme, Kind: SymVar, Type: p.sess.ErrorType(), Tok: tok}
		}
		p.syms.Declare(sym)
	}
	switch sym.Kind {
	case SymTypedef:
		p.errorf(tok, "expected expression before '%s'", tok.Lexeme)
		return &VarRef{typed: typed{p.sess.ErrorType()}, Name: tok.Lexeme}
	case SymEnumConst:
		return &VarRef{typed: typed{p.atomic(types.Int)}, Name: tok.Lexeme, Sym: sym}
	}
	return &VarRef{typed: typed{sym.Type}, Name: tok.Lexeme, Sym: sym}
}

// intLiteral types an integer constant by its value and suffix.
func (p *Parser) intLiteral(tok Token) Expr {
	v, suf, err := parseIntLiteral(tok.Lexeme)
	if err != nil {
		p.errorf(tok, "%v", err)
		return &IntLiteral{typed: typed{p.sess.ErrorType()}, Text: tok.Lexeme}
	}
	decimal := tok.Lexeme[0] != '0'

	var candidates []types.AtomicKind
	switch {
	case suf.longs == 0 && suf.unsigned:
		candidates = []types.AtomicKind{types.UInt, types.ULong, types.ULongLong}
	case suf.longs == 0 && decimal:
		candidates = []types.AtomicKind{types.Int, types.Long, types.LongLong, types.ULongLong}
	case suf.longs == 0:
		candidates = []types.AtomicKind{types.Int, types.UInt, types.Long, types.ULong, types.LongLong, types.ULongLong}
	case suf.longs == 1 && suf.unsigned:
		candidates = []types.AtomicKind{types.ULong, types.ULongLong}
	case suf.longs == 1 && decimal:
		candidates = []types.AtomicKind{types.Long, types.LongLong, types.ULongLong}
	case suf.longs == 1:
		candidates = []types.AtomicKind{types.Long, types.ULong, types.LongLong, types.ULongLong}
	case suf.unsigned:
		candidates = []types.AtomicKind{types.ULongLong}
	default:
		candidates = []types.AtomicKind{types.LongLong, types.ULongLong}
	}
	kind := types.ULongLong
	for _, k := range candidates {
		if p.fits(v, k) {
			kind = k
			break
		}
	}
	if kind == types.ULongLong && !suf.unsigned && decimal {
		p.warnf(tok, "integer constant is so large that it is unsigned")
	}
	return &IntLiteral{typed: typed{p.atomic(kind)}, Value: v, Text: tok.Lexeme}
}

// fits reports whether v is representable in kind.
func (p *Parser) fits(v uint64, k types.AtomicKind) bool {
	bits := p.sess.Target().SizeOf(k) * 8
	if p.sess.Target().FlagsOf(k)&types.FlagSigned != 0 {
		bits--
	}
	return bits >= 64 || v < uint64(1)<<bits
}

func (p *Parser) floatLiteral(tok Token) Expr {
	text := tok.Lexeme
	kind := types.Double
	switch text[len(text)-1] {
	case 'f', 'F':
		kind = types.Float
		text = text[:len(text)-1]
	case 'l', 'L':
		kind = types.LongDouble
		text = text[:len(text)-1]
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		p.warnf(tok, "floating constant exceeds range of '%s'", kind)
	}
	return &FloatLiteral{typed: typed{p.atomic(kind)}, Value: v, Text: tok.Lexeme}
}
