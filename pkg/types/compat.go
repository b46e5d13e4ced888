package types

// Compatible reports whether a and b are compatible types in the C sense.
// Both must already be resolved with SkipTyperef.
//
// Error and invalid types are compatible with everything so one bad
// declaration does not cascade into more diagnostics. Structs, unions,
// enums and builtins are only compatible with themselves.
func (s *Session) Compatible(a, b *Type) bool {
	if IsTyperef(a) || IsTyperef(b) {
		panic("types: Compatible called on unresolved types")
	}
	if a == b {
		return true
	}
	if !validOrError(a) || !validOrError(b) {
		return true
	}
	if a.Qualifiers != b.Qualifiers || a.Kind != b.Kind {
		return false
	}

	switch a.Kind {
	case KindFunction:
		return s.functionsCompatible(a, b)
	case KindAtomic, KindComplex, KindImaginary:
		return a.Atomic == b.Atomic
	case KindArray:
		return s.arraysCompatible(a, b)
	case KindPointer:
		return s.Compatible(s.SkipTyperef(a.PointsTo), s.SkipTyperef(b.PointsTo))
	case KindReference:
		return s.Compatible(s.SkipTyperef(a.RefersTo), s.SkipTyperef(b.RefersTo))
	case KindStruct, KindUnion, KindEnum, KindBuiltin:
		// Identity was checked above.
		return false
	case KindBitfield:
		panic("types: compatibility check for bitfield type")
	}
	panic("types: unknown type kind " + a.Kind.String() + " in Compatible")
}

// validOrError is false for the error and invalid types.
func validOrError(t *Type) bool {
	return t.Kind != KindError && t.Kind != KindInvalid
}

func (s *Session) functionsCompatible(a, b *Type) bool {
	if !s.Compatible(s.SkipTyperef(a.Return), s.SkipTyperef(b.Return)) {
		return false
	}
	if a.Linkage != b.Linkage || a.CallingConvention != b.CallingConvention {
		return false
	}
	if a.UnspecifiedParams || b.UnspecifiedParams {
		return true
	}
	if a.Variadic != b.Variadic || len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		pa := s.UnqualifiedType(s.SkipTyperef(a.Params[i].Type))
		pb := s.UnqualifiedType(s.SkipTyperef(b.Params[i].Type))
		if !s.Compatible(pa, pb) {
			return false
		}
	}
	return true
}

func (s *Session) arraysCompatible(a, b *Type) bool {
	if !s.Compatible(s.SkipTyperef(a.Element), s.SkipTyperef(b.Element)) {
		return false
	}
	if !a.SizeConstant || !b.SizeConstant {
		return true
	}
	return a.Size == b.Size
}
