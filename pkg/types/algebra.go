package types

// MakeAtomic returns the canonical atomic type of kind k.
func (s *Session) MakeAtomic(k AtomicKind, q Qualifiers) *Type {
	t := s.scratch(KindAtomic)
	t.Atomic = k
	t.Qualifiers = q
	t.Alignment = s.target.AlignmentOf(k)
	return s.Identify(t)
}

// MakeComplex returns the canonical _Complex type over k.
func (s *Session) MakeComplex(k AtomicKind, q Qualifiers) *Type {
	t := s.scratch(KindComplex)
	t.Atomic = k
	t.Qualifiers = q
	t.Alignment = s.target.AlignmentOf(k)
	return s.Identify(t)
}

// MakeImaginary returns the canonical _Imaginary type over k.
func (s *Session) MakeImaginary(k AtomicKind, q Qualifiers) *Type {
	t := s.scratch(KindImaginary)
	t.Atomic = k
	t.Qualifiers = q
	t.Alignment = s.target.AlignmentOf(k)
	return s.Identify(t)
}

// MakePointer returns the canonical pointer to pointsTo.
func (s *Session) MakePointer(pointsTo *Type, q Qualifiers) *Type {
	t := s.scratch(KindPointer)
	t.PointsTo = pointsTo
	t.Qualifiers = q
	return s.Identify(t)
}

// MakeBasedPointer returns a pointer relative to the named variable, as
// declared with __based(variable).
func (s *Session) MakeBasedPointer(pointsTo *Type, q Qualifiers, variable string) *Type {
	t := s.scratch(KindPointer)
	t.PointsTo = pointsTo
	t.Qualifiers = q
	t.BaseVariable = variable
	return s.Identify(t)
}

// MakeReference returns the canonical reference to refersTo.
func (s *Session) MakeReference(refersTo *Type) *Type {
	t := s.scratch(KindReference)
	t.RefersTo = refersTo
	return s.Identify(t)
}

// MakeArray returns the array of size elements of element.
func (s *Session) MakeArray(element *Type, size int, q Qualifiers) *Type {
	t := s.scratch(KindArray)
	t.Element = element
	t.Size = size
	t.SizeConstant = true
	t.Qualifiers = q
	return s.Identify(t)
}

// ArraySpec describes an array declarator whose size is not a plain
// constant.
type ArraySpec struct {
	SizeExpr        Expr // nil for []
	Static          bool
	HasImplicitSize bool
	Qualifiers      Qualifiers
}

// MakeVariableArray returns an array whose size is an expression or
// unknown. Arrays with distinct size expressions are distinct types.
func (s *Session) MakeVariableArray(element *Type, spec ArraySpec) *Type {
	t := s.scratch(KindArray)
	t.Element = element
	t.SizeExpr = spec.SizeExpr
	t.IsStatic = spec.Static
	t.HasImplicitSize = spec.HasImplicitSize
	t.Qualifiers = spec.Qualifiers
	return s.Identify(t)
}

// CompleteArray returns arr with its size fixed to n, as when an
// initializer determines the length of an int[] declaration.
func (s *Session) CompleteArray(arr *Type, n int) *Type {
	if arr.Kind != KindArray {
		panic("types: CompleteArray on " + arr.Kind.String())
	}
	c := s.Duplicate(arr)
	c.Size = n
	c.SizeConstant = true
	c.SizeExpr = nil
	c.HasImplicitSize = true
	return s.Identify(c)
}

// FunctionSpec collects the attributes of a function type.
type FunctionSpec struct {
	Params            []*Parameter
	Variadic          bool
	UnspecifiedParams bool
	Linkage           Linkage
	CallingConvention CallingConvention
	Qualifiers        Qualifiers
}

// MakeFunction returns the canonical function type returning ret.
func (s *Session) MakeFunction(ret *Type, spec FunctionSpec) *Type {
	t := s.scratch(KindFunction)
	t.Return = ret
	t.Params = spec.Params
	t.Variadic = spec.Variadic
	t.UnspecifiedParams = spec.UnspecifiedParams
	t.Linkage = spec.Linkage
	t.CallingConvention = spec.CallingConvention
	t.Qualifiers = spec.Qualifiers
	return s.Identify(t)
}

// MakeBitfield returns a bitfield of width bits over base.
func (s *Session) MakeBitfield(base *Type, width int, widthExpr Expr) *Type {
	t := s.scratch(KindBitfield)
	t.Base = base
	t.Width = width
	t.WidthExpr = widthExpr
	return s.Identify(t)
}

// MakeEnum returns the type of the enum declared by decl.
func (s *Session) MakeEnum(decl *EnumDecl, q Qualifiers) *Type {
	t := s.scratch(KindEnum)
	t.Enum = decl
	t.Qualifiers = q
	return s.Identify(t)
}

// MakeCompound returns the struct or union type declared by decl.
func (s *Session) MakeCompound(decl *CompoundDecl, q Qualifiers) *Type {
	kind := KindStruct
	if decl.Union {
		kind = KindUnion
	}
	t := s.scratch(kind)
	t.Compound = decl
	t.Qualifiers = q
	t.Modifiers = decl.Modifiers
	return s.Identify(t)
}

// MakeTypedef returns the alias type naming decl.
func (s *Session) MakeTypedef(decl *TypedefDecl, q Qualifiers) *Type {
	t := s.scratch(KindTypedef)
	t.Typedef = decl
	t.Qualifiers = q
	return s.Identify(t)
}

// MakeTypeofExpr returns typeof(e).
func (s *Session) MakeTypeofExpr(e TypedExpr, q Qualifiers) *Type {
	t := s.scratch(KindTypeof)
	t.TypeofExpr = e
	t.TypeofType = e.StaticType()
	t.Qualifiers = q
	return s.Identify(t)
}

// MakeTypeofType returns typeof(typ).
func (s *Session) MakeTypeofType(typ *Type, q Qualifiers) *Type {
	t := s.scratch(KindTypeof)
	t.TypeofType = typ
	t.Qualifiers = q
	return s.Identify(t)
}

// MakeBuiltin returns a compiler builtin type such as __builtin_va_list,
// represented by real.
func (s *Session) MakeBuiltin(name string, real *Type) *Type {
	t := s.scratch(KindBuiltin)
	t.BuiltinName = name
	t.RealType = real
	return s.Identify(t)
}

// QualifiedType adds q to t. On arrays the qualifiers go to the element
// type. When t already carries q it is returned unchanged.
func (s *Session) QualifiedType(t *Type, q Qualifiers) *Type {
	r := s.SkipTyperef(t)
	switch {
	case r.Kind == KindArray:
		elem := s.QualifiedType(r.Element, q)
		if elem == r.Element {
			return t
		}
		c := s.Duplicate(r)
		c.Element = elem
		return s.Identify(c)
	case r.Kind == KindError || r.Kind == KindInvalid:
		return r
	default:
		if r.Qualifiers&q == q {
			return t
		}
		c := s.Duplicate(r)
		c.Qualifiers |= q
		return s.Identify(c)
	}
}

// UnqualifiedType strips the qualifiers from t, which must not be a
// typeref.
func (s *Session) UnqualifiedType(t *Type) *Type {
	if IsTyperef(t) {
		panic("types: UnqualifiedType on unresolved " + t.Kind.String())
	}
	if t.Qualifiers == QualNone {
		return t
	}
	c := s.Duplicate(t)
	c.Qualifiers = QualNone
	return s.Identify(c)
}
