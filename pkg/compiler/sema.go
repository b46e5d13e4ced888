package compiler

import (
	"cfront/pkg/types"
)

// The helpers in this file attach types to expressions and insert the
// implicit conversions C leaves unwritten. They report problems through
// the parser's Diagnostics and return expressions of the error type, which
// every later check accepts silently.

// typeOf returns the resolved static type of e.
func (p *Parser) typeOf(e Expr) *types.Type {
	return p.resolve(e.StaticType())
}

func isErr(t *types.Type) bool {
	return t.Kind == types.KindError || t.Kind == types.KindInvalid
}

func isVoid(t *types.Type) bool {
	return t.Kind == types.KindAtomic && t.Atomic == types.Void
}

// scalarOf maps builtins to the type that represents them.
func scalarOf(t *types.Type) *types.Type {
	for t.Kind == types.KindBuiltin {
		t = t.RealType
	}
	return t
}

// implicit wraps e in an implicit conversion to t unless it already has
// that type.
func (p *Parser) implicit(e Expr, t *types.Type) Expr {
	if e.StaticType() == t || isErr(p.typeOf(e)) {
		return e
	}
	return &CastExpr{typed: typed{t}, Expr: e, Implicit: true}
}

// rvalue applies the array-to-pointer and function-to-pointer decays.
func (p *Parser) rvalue(e Expr) Expr {
	t := p.typeOf(e)
	switch t.Kind {
	case types.KindArray:
		return p.implicit(e, p.sess.MakePointer(t.Element, types.QualNone))
	case types.KindFunction:
		return p.implicit(e, p.sess.MakePointer(e.StaticType(), types.QualNone))
	}
	return e
}

// rank orders the integer kinds for the usual arithmetic conversions.
func (p *Parser) rank(t *types.Type) int {
	switch t.Kind {
	case types.KindEnum:
		return p.rank(p.atomic(types.Int))
	case types.KindBitfield:
		return p.rank(p.resolve(t.Base))
	}
	switch t.Atomic {
	case types.Bool:
		return 1
	case types.Char, types.SChar, types.UChar:
		return 2
	case types.Short, types.UShort:
		return 3
	case types.Int, types.UInt:
		return 4
	case types.WChar:
		return 4
	case types.Long, types.ULong:
		return 5
	case types.LongLong, types.ULongLong:
		return 6
	}
	return 0
}

// promotedType returns the type t has after the integer promotions.
func (p *Parser) promotedType(t *types.Type) *types.Type {
	switch {
	case isErr(t):
		return t
	case t.Kind == types.KindEnum:
		return p.atomic(types.Int)
	case t.Kind == types.KindBitfield:
		base := p.resolve(t.Base)
		if t.Width < p.sess.SizeOf(p.atomic(types.Int))*8 || p.rank(base) < 4 {
			return p.atomic(types.Int)
		}
		return p.sess.UnqualifiedType(base)
	case t.Kind == types.KindAtomic && p.sess.IsInteger(t) && p.rank(t) < 4:
		if !p.sess.IsSigned(t) && p.sess.SizeOf(t) >= p.sess.SizeOf(p.atomic(types.Int)) {
			return p.atomic(types.UInt)
		}
		return p.atomic(types.Int)
	case t.Kind == types.KindAtomic || t.Kind == types.KindPointer:
		return p.sess.UnqualifiedType(t)
	}
	return t
}

// promote applies the integer promotions to e.
func (p *Parser) promote(e Expr) Expr {
	e = p.rvalue(e)
	return p.implicit(e, p.promotedType(p.typeOf(e)))
}

// defaultPromote applies the default argument promotions.
func (p *Parser) defaultPromote(e Expr) Expr {
	e = p.rvalue(e)
	t := p.typeOf(e)
	if t.Kind == types.KindAtomic && t.Atomic == types.Float {
		return p.implicit(e, p.atomic(types.Double))
	}
	return p.promote(e)
}

// arithType returns the common real type of a and b under the usual
// arithmetic conversions. Both must be arithmetic.
func (p *Parser) arithType(a, b *types.Type) *types.Type {
	complexPart := a.Kind == types.KindComplex || b.Kind == types.KindComplex
	floating := func(t *types.Type, k types.AtomicKind) bool {
		switch t.Kind {
		case types.KindAtomic, types.KindComplex, types.KindImaginary:
			return t.Atomic == k
		}
		return false
	}
	for _, k := range []types.AtomicKind{types.LongDouble, types.Double, types.Float} {
		if floating(a, k) || floating(b, k) {
			if complexPart {
				return p.sess.MakeComplex(k, types.QualNone)
			}
			return p.atomic(k)
		}
	}

	a, b = p.promotedType(a), p.promotedType(b)
	if a == b {
		return a
	}
	sa, sb := p.sess.IsSigned(a), p.sess.IsSigned(b)
	ra, rb := p.rank(a), p.rank(b)
	switch {
	case sa == sb:
		if ra >= rb {
			return a
		}
		return b
	case !sa && ra >= rb:
		return a
	case !sb && rb >= ra:
		return b
	}
	// the signed operand has greater rank
	signed, unsigned := a, b
	if sb {
		signed, unsigned = b, a
	}
	if p.sess.SizeOf(signed) > p.sess.SizeOf(unsigned) {
		return signed
	}
	return p.atomic(p.sess.Target().UnsignedKindForSize(p.sess.SizeOf(signed)))
}

// arithConvert converts both operands to their common arithmetic type.
func (p *Parser) arithConvert(l, r Expr) (Expr, Expr, *types.Type) {
	t := p.arithType(p.typeOf(l), p.typeOf(r))
	return p.implicit(l, t), p.implicit(r, t), t
}

// isLvalue reports whether e designates an object.
func (p *Parser) isLvalue(e Expr) bool {
	switch e := e.(type) {
	case *VarRef:
		return e.Sym != nil && e.Sym.Kind == SymVar
	case *UnaryExpr:
		return e.Op == STAR
	case *IndexExpr, *StringLiteral:
		return true
	case *MemberExpr:
		return e.Arrow || p.isLvalue(e.Left)
	}
	return false
}

// isConstObject reports whether e has a const-qualified type, or is a
// struct or union with a const member.
func (p *Parser) isConstObject(e Expr) bool {
	t := e.StaticType()
	if p.sess.TypeQualifiers(t, true)&types.Const != 0 {
		return true
	}
	r := p.resolve(t)
	if types.IsCompound(r) && r.Compound.Complete {
		return p.hasConstMember(r.Compound)
	}
	return false
}

func (p *Parser) hasConstMember(c *types.CompoundDecl) bool {
	for _, m := range c.Members {
		if p.sess.TypeQualifiers(m.Type, true)&types.Const != 0 {
			return true
		}
		if r := p.resolve(m.Type); types.IsCompound(r) && r.Compound.Complete && p.hasConstMember(r.Compound) {
			return true
		}
	}
	return false
}

// checkModifiable reports an error unless e is a modifiable lvalue.
func (p *Parser) checkModifiable(tok Token, e Expr, what string) bool {
	t := p.typeOf(e)
	switch {
	case isErr(t):
		return false
	case !p.isLvalue(e):
		p.errorf(tok, "lvalue required as %s", what)
		return false
	case t.Kind == types.KindArray:
		p.errorf(tok, "assignment to expression with array type")
		return false
	case p.isConstObject(e):
		if v, ok := e.(*VarRef); ok {
			p.errorf(tok, "assignment of read-only variable '%s'", v.Name)
		} else {
			p.errorf(tok, "assignment of read-only location")
		}
		return false
	}
	return true
}

// isNullPointer reports whether e is a null pointer constant.
func (p *Parser) isNullPointer(e Expr) bool {
	if c, ok := e.(*CastExpr); ok {
		t := p.typeOf(c)
		if t.Kind == types.KindPointer {
			pt := p.resolve(t.PointsTo)
			if !isVoid(pt) || pt.Qualifiers != types.QualNone {
				return false
			}
			e = c.Expr
		}
	}
	t := p.typeOf(e)
	if !p.sess.IsInteger(t) {
		return false
	}
	v, ok := p.constValue(e)
	return ok && v == 0
}

// pointeesCompatible compares pointer targets ignoring their qualifiers.
func (p *Parser) pointeesCompatible(a, b *types.Type) bool {
	ra := p.sess.UnqualifiedType(p.resolve(a))
	rb := p.sess.UnqualifiedType(p.resolve(b))
	if ra.Kind == types.KindBitfield || rb.Kind == types.KindBitfield {
		return false
	}
	return p.sess.Compatible(ra, rb)
}

// convertAssign converts e to target as by assignment. ctx names the
// conversion in diagnostics, such as "assignment" or "passing argument 1
// of 'f'".
func (p *Parser) convertAssign(tok Token, e Expr, target *types.Type, ctx string) Expr {
	e = p.rvalue(e)
	tt := scalarOf(p.resolve(target))
	st := scalarOf(p.typeOf(e))
	if isErr(tt) || isErr(st) {
		return e
	}
	target = p.sess.UnqualifiedType(tt)

	switch {
	case isVoid(st):
		p.errorf(tok, "void value not ignored as it ought to be")
		return e
	case p.sess.IsArithmetic(tt) && p.sess.IsArithmetic(st):
		return p.implicit(e, target)
	case tt.Kind == types.KindAtomic && tt.Atomic == types.Bool && st.Kind == types.KindPointer:
		return p.implicit(e, target)

	case tt.Kind == types.KindPointer:
		switch {
		case p.isNullPointer(e):
			return p.implicit(e, target)
		case st.Kind == types.KindPointer:
			tp, sp := p.resolve(tt.PointsTo), p.resolve(st.PointsTo)
			switch {
			case isVoid(tp) || isVoid(sp) || p.pointeesCompatible(tp, sp):
				lost := p.sess.TypeQualifiers(st.PointsTo, true) &^ p.sess.TypeQualifiers(tt.PointsTo, true)
				if lost != types.QualNone {
					p.warnf(tok, "%s discards qualifiers from pointer target type", ctx)
				}
			default:
				p.warnf(tok, "%s from incompatible pointer type", ctx)
			}
			return p.implicit(e, target)
		case p.sess.IsInteger(st):
			p.warnf(tok, "%s makes pointer from integer without a cast", ctx)
			return p.implicit(e, target)
		}

	case p.sess.IsInteger(tt) && st.Kind == types.KindPointer:
		p.warnf(tok, "%s makes integer from pointer without a cast", ctx)
		return p.implicit(e, target)

	case types.IsCompound(tt):
		if p.sess.Compatible(target, p.sess.UnqualifiedType(st)) {
			return e
		}
		if tt.Modifiers&types.TransparentUnion != 0 && tt.Compound.Complete {
			for _, m := range tt.Compound.Members {
				if p.sess.Compatible(p.sess.UnqualifiedType(p.resolve(m.Type)), p.sess.UnqualifiedType(st)) {
					return p.implicit(e, target)
				}
			}
		}
	}
	p.errorf(tok, "incompatible types in %s", ctx)
	return &CastExpr{typed: typed{p.sess.ErrorType()}, Expr: e, Implicit: true}
}

// explicitCast checks and builds the cast (t)e.
func (p *Parser) explicitCast(tok Token, t *types.Type, e Expr) Expr {
	e = p.rvalue(e)
	tt := scalarOf(p.resolve(t))
	st := scalarOf(p.typeOf(e))
	switch {
	case isErr(tt) || isErr(st):
		return &CastExpr{typed: typed{p.sess.ErrorType()}, Expr: e}
	case isVoid(tt):
	case !p.sess.IsScalar(tt):
		if types.IsCompound(tt) && p.sess.Compatible(p.sess.UnqualifiedType(tt), p.sess.UnqualifiedType(st)) {
			p.warnf(tok, "ISO C forbids casting nonscalar to the same type")
			break
		}
		p.errorf(tok, "conversion to non-scalar type requested")
		return &CastExpr{typed: typed{p.sess.ErrorType()}, Expr: e}
	case !p.sess.IsScalar(st):
		p.errorf(tok, "aggregate value used where a scalar was expected")
		return &CastExpr{typed: typed{p.sess.ErrorType()}, Expr: e}
	case tt.Kind == types.KindPointer && (p.sess.IsFloat(st) || st.Kind == types.KindComplex):
		p.errorf(tok, "cannot convert to a pointer type")
		return &CastExpr{typed: typed{p.sess.ErrorType()}, Expr: e}
	case st.Kind == types.KindPointer && (p.sess.IsFloat(tt) || tt.Kind == types.KindComplex):
		p.errorf(tok, "pointer value used where a floating point value was expected")
		return &CastExpr{typed: typed{p.sess.ErrorType()}, Expr: e}
	case tt.Kind == types.KindPointer && p.sess.IsInteger(st) && p.sess.SizeOf(st) != p.sess.SizeOf(tt) && !p.isNullPointer(e):
		p.warnf(tok, "cast to pointer from integer of different size")
	case st.Kind == types.KindPointer && p.sess.IsInteger(tt) && p.sess.SizeOf(st) != p.sess.SizeOf(tt):
		p.warnf(tok, "cast from pointer to integer of different size")
	}
	return &CastExpr{typed: typed{t}, Expr: e}
}

// checkScalar reports an error unless e may be used as a condition.
func (p *Parser) checkScalar(tok Token, e Expr, what string) Expr {
	e = p.rvalue(e)
	t := scalarOf(p.typeOf(e))
	if !isErr(t) && !p.sess.IsScalar(t) {
		p.errorf(tok, "used %s where scalar is required", what)
	}
	return e
}

// completePointee reports whether arithmetic on a pointer to t is allowed,
// warning for void and function pointers under GNU C.
func (p *Parser) completePointee(tok Token, t *types.Type) bool {
	r := p.resolve(t)
	switch {
	case isErr(r):
		return true
	case isVoid(r) || types.IsFunction(r):
		if p.dialect&types.GNUC != 0 {
			p.warnf(tok, "pointer of type '%s' used in arithmetic", types.TypeString(p.sess.MakePointer(t, types.QualNone)))
			return true
		}
		p.errorf(tok, "pointer of type '%s' used in arithmetic", types.TypeString(p.sess.MakePointer(t, types.QualNone)))
		return false
	case p.incompleteObject(r):
		p.errorf(tok, "arithmetic on pointer to an incomplete type")
		return false
	}
	return true
}

// findMember looks name up in c, descending into anonymous struct and
// union members. It returns the chain of members leading to it.
func (p *Parser) findMember(c *types.CompoundDecl, name string) []*types.Member {
	for _, m := range c.Members {
		if m.Name == name {
			return []*types.Member{m}
		}
		if m.Name == "" {
			if r := p.resolve(m.Type); types.IsCompound(r) {
				if path := p.findMember(r.Compound, name); path != nil {
					return append([]*types.Member{m}, path...)
				}
			}
		}
	}
	return nil
}

// memberType returns the type of member m accessed through an object of
// type outer, carrying over the object's qualifiers.
func (p *Parser) memberType(outer *types.Type, m *types.Member) *types.Type {
	q := p.sess.TypeQualifiers(outer, true)
	r := p.resolve(m.Type)
	if r.Kind == types.KindBitfield {
		return p.sess.QualifiedType(r.Base, q)
	}
	if q == types.QualNone {
		return m.Type
	}
	return p.sess.QualifiedType(m.Type, q)
}

// sizeType is size_t.
func (p *Parser) sizeType() *types.Type {
	return p.atomic(p.sess.Target().UintPtrKind())
}

// ptrdiffType is ptrdiff_t.
func (p *Parser) ptrdiffType() *types.Type {
	return p.atomic(p.sess.Target().IntPtrKind())
}
