package types

// The predicates below classify resolved types. Passing a typedef or
// typeof type is a programming error; call SkipTyperef first.

func mustResolved(t *Type, fn string) {
	if IsTyperef(t) {
		panic("types: " + fn + " called on unresolved " + t.Kind.String())
	}
}

func (s *Session) hasFlag(k AtomicKind, f AtomicFlags) bool {
	return s.target.FlagsOf(k)&f != 0
}

// IsInteger reports whether t is an integer type. Enums and bitfields
// count as integers.
func (s *Session) IsInteger(t *Type) bool {
	mustResolved(t, "IsInteger")
	switch t.Kind {
	case KindEnum, KindBitfield:
		return true
	case KindAtomic:
		return s.hasFlag(t.Atomic, FlagInteger)
	}
	return false
}

// IsEnum reports whether t is an enum type.
func (s *Session) IsEnum(t *Type) bool {
	mustResolved(t, "IsEnum")
	return t.Kind == KindEnum
}

// IsFloat reports whether t is a real floating type.
func (s *Session) IsFloat(t *Type) bool {
	mustResolved(t, "IsFloat")
	return t.Kind == KindAtomic && s.hasFlag(t.Atomic, FlagFloat)
}

// IsComplex reports whether t is an atomic type flagged complex.
func (s *Session) IsComplex(t *Type) bool {
	mustResolved(t, "IsComplex")
	return t.Kind == KindAtomic && s.hasFlag(t.Atomic, FlagComplex)
}

// IsSigned reports whether t is a signed arithmetic type. Enums are
// treated as int.
func (s *Session) IsSigned(t *Type) bool {
	mustResolved(t, "IsSigned")
	switch t.Kind {
	case KindEnum:
		return true
	case KindBitfield:
		return s.IsSigned(t.Base)
	case KindAtomic:
		return s.hasFlag(t.Atomic, FlagSigned)
	}
	return false
}

// IsArithmetic reports whether t is an integer, floating, complex or
// imaginary type.
func (s *Session) IsArithmetic(t *Type) bool {
	mustResolved(t, "IsArithmetic")
	switch t.Kind {
	case KindEnum, KindBitfield:
		return true
	case KindAtomic, KindComplex, KindImaginary:
		return s.hasFlag(t.Atomic, FlagArithmetic)
	}
	return false
}

// IsReal reports whether t is an integer or real floating type.
func (s *Session) IsReal(t *Type) bool {
	return s.IsInteger(t) || s.IsFloat(t)
}

// IsScalar reports whether t is an arithmetic or pointer type.
func (s *Session) IsScalar(t *Type) bool {
	mustResolved(t, "IsScalar")
	switch t.Kind {
	case KindPointer:
		return true
	case KindBuiltin:
		return s.IsScalar(t.RealType)
	}
	return s.IsArithmetic(t)
}

// IsIncomplete reports whether t has no known size: forward declared
// compounds, void and arrays of unknown size.
func (s *Session) IsIncomplete(t *Type) bool {
	switch t.Kind {
	case KindStruct, KindUnion:
		return !t.Compound.Complete
	case KindEnum:
		return false
	case KindArray:
		return t.SizeExpr == nil && !t.SizeConstant
	case KindAtomic, KindComplex, KindImaginary:
		return t.Atomic == Void
	case KindBitfield, KindFunction, KindPointer, KindReference, KindBuiltin, KindError:
		return false
	case KindTypedef, KindTypeof:
		panic("types: IsIncomplete called on unresolved " + t.Kind.String())
	}
	panic("types: invalid type in IsIncomplete")
}

// IsObject reports whether t describes an object of known size.
func (s *Session) IsObject(t *Type) bool {
	return !IsFunction(t) && !s.IsIncomplete(t)
}

// IsPointer reports whether t is a pointer type.
func IsPointer(t *Type) bool {
	mustResolved(t, "IsPointer")
	return t.Kind == KindPointer
}

// IsArray reports whether t is an array type.
func IsArray(t *Type) bool {
	mustResolved(t, "IsArray")
	return t.Kind == KindArray
}

// IsFunction reports whether t is a function type.
func IsFunction(t *Type) bool {
	mustResolved(t, "IsFunction")
	return t.Kind == KindFunction
}

// IsCompound reports whether t is a struct or union type.
func IsCompound(t *Type) bool {
	mustResolved(t, "IsCompound")
	return t.Kind == KindStruct || t.Kind == KindUnion
}

// VaListName is the name of the builtin variadic argument list type.
const VaListName = "__builtin_va_list"

// IsBuiltinVaList reports whether t resolves to __builtin_va_list.
func (s *Session) IsBuiltinVaList(t *Type) bool {
	r := s.SkipTyperef(t)
	return r.Kind == KindBuiltin && r.BuiltinName == VaListName
}

// VaListType returns the __builtin_va_list type, a char pointer.
func (s *Session) VaListType() *Type {
	return s.MakeBuiltin(VaListName, s.MakePointer(s.MakeAtomic(Char, QualNone), QualNone))
}
