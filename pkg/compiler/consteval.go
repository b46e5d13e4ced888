package compiler

import (
	"cfront/pkg/types"
)

// EvalConst evaluates e, an expression whose types live in sess, as an
// integer constant expression.
func EvalConst(sess *types.Session, e Expr) (int64, bool) {
	return (&Parser{sess: sess}).constValue(e)
}

// constValue evaluates e as an integer constant expression. Results are
// truncated to the width of each subexpression's type, so (unsigned char)300
// is 44 and unsigned arithmetic wraps.
func (p *Parser) constValue(e Expr) (int64, bool) {
	t := p.typeOf(e)
	if isErr(t) {
		return 0, false
	}
	switch e := e.(type) {
	case *IntLiteral:
		return p.truncate(int64(e.Value), t), true

	case *VarRef:
		if e.Sym != nil && e.Sym.Kind == SymEnumConst {
			return e.Sym.Value, true
		}
		return 0, false

	case *SizeofExpr:
		return int64(e.Size), e.Size >= 0

	case *CastExpr:
		if !p.sess.IsInteger(t) && t.Kind != types.KindPointer {
			return 0, false
		}
		inner := p.typeOf(e.Expr)
		if !p.sess.IsInteger(inner) && inner.Kind != types.KindPointer {
			return 0, false
		}
		v, ok := p.constValue(e.Expr)
		if !ok {
			return 0, false
		}
		return p.truncate(v, t), true

	case *UnaryExpr:
		v, ok := p.constValue(e.Right)
		if !ok {
			return 0, false
		}
		switch e.Op {
		case PLUS:
			return v, true
		case MINUS:
			return p.truncate(-v, t), true
		case TILDE:
			return p.truncate(^v, t), true
		case NOT:
			return boolInt(v == 0), true
		}
		return 0, false

	case *BinaryExpr:
		l, ok := p.constValue(e.Left)
		if !ok {
			return 0, false
		}
		r, ok := p.constValue(e.Right)
		if !ok {
			return 0, false
		}
		// comparisons take their signedness from the operands
		opType := p.typeOf(e.Left)
		switch e.Op {
		case SHL_OP, SHR_OP:
		default:
			if p.sess.IsInteger(p.typeOf(e.Right)) && p.sess.IsInteger(opType) {
				opType = p.arithType(opType, p.typeOf(e.Right))
			}
		}
		v, ok := p.fold(e.Op, l, r, p.isUnsigned(opType))
		if !ok {
			return 0, false
		}
		return p.truncate(v, t), true

	case *LogicalExpr:
		l, ok := p.constValue(e.Left)
		if !ok {
			return 0, false
		}
		if e.Op == AND_LOGICAL && l == 0 {
			return 0, true
		}
		if e.Op == OR_LOGICAL && l != 0 {
			return 1, true
		}
		r, ok := p.constValue(e.Right)
		if !ok {
			return 0, false
		}
		return boolInt(r != 0), true

	case *ConditionalExpr:
		c, ok := p.constValue(e.Cond)
		if !ok {
			return 0, false
		}
		if c != 0 {
			return p.constValue(e.Then)
		}
		return p.constValue(e.Else)
	}
	return 0, false
}

func (p *Parser) isUnsigned(t *types.Type) bool {
	return t.Kind == types.KindPointer || (p.sess.IsInteger(t) && !p.sess.IsSigned(t))
}

// fold applies op with C's unsigned semantics where they differ from the
// signed ones.
func (p *Parser) fold(op TokenType, l, r int64, unsigned bool) (int64, bool) {
	if unsigned {
		ul, ur := uint64(l), uint64(r)
		switch op {
		case SLASH, PERCENT:
			if ur == 0 {
				return 0, false
			}
			if op == SLASH {
				return int64(ul / ur), true
			}
			return int64(ul % ur), true
		case SHR_OP:
			return int64(ul >> ur), true
		case LESS:
			return boolInt(ul < ur), true
		case GREATER:
			return boolInt(ul > ur), true
		case LESS_EQ:
			return boolInt(ul <= ur), true
		case GREATER_EQ:
			return boolInt(ul >= ur), true
		}
	}
	if (op == SHL_OP || op == SHR_OP) && (r < 0 || r >= 64) {
		return 0, false
	}
	v, err := foldBinary(op, l, r)
	return v, err == nil
}

// truncate reduces v to the range of t.
func (p *Parser) truncate(v int64, t *types.Type) int64 {
	if t.Kind == types.KindAtomic && t.Atomic == types.Bool {
		return boolInt(v != 0)
	}
	if !p.sess.IsInteger(t) && t.Kind != types.KindPointer {
		return v
	}
	bits := p.sess.SizeOf(t) * 8
	if t.Kind == types.KindBitfield {
		bits = t.Width
	}
	if bits >= 64 {
		return v
	}
	mask := int64(1)<<bits - 1
	v &= mask
	if !p.isUnsigned(t) && v&(int64(1)<<(bits-1)) != 0 {
		v |= ^mask
	}
	return v
}
