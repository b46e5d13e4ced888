package types

// SkipTyperef follows typedef and typeof chains down to the underlying
// type. Qualifiers and modifiers met on the way are merged and the largest
// alignment wins; if that adds anything to the underlying type a qualified
// canonical copy is returned instead. For arrays the additions apply to the
// element type. Error types resolve to themselves.
//
// SkipTyperef is idempotent: a type that is not a typeref comes back
// unchanged, so resolving an already resolved type is always safe.
func (s *Session) SkipTyperef(t *Type) *Type {
	var (
		quals Qualifiers
		mods  Modifiers
		align int
	)
loop:
	for {
		if align < t.Alignment {
			align = t.Alignment
		}
		switch t.Kind {
		case KindError:
			return t
		case KindTypedef:
			quals |= t.Qualifiers
			mods |= t.Modifiers
			if t.resolved == nil {
				t.resolved = s.SkipTyperef(t.Typedef.Type)
			}
			t = t.resolved
			break loop
		case KindTypeof:
			quals |= t.Qualifiers
			mods |= t.Modifiers
			t = t.TypeofType
		default:
			break loop
		}
	}

	if t.Kind == KindError || t.Kind == KindInvalid {
		return t
	}

	if t.Kind == KindArray {
		elem := t.Element
		if !exceeds(elem, quals, mods, align) {
			return t
		}
		e := s.Duplicate(elem)
		e.Qualifiers |= quals
		e.Modifiers |= mods
		e.Alignment = max(align, elem.Alignment)
		e = s.Identify(e)

		c := s.Duplicate(t)
		c.Element = e
		return s.Identify(c)
	}

	if !exceeds(t, quals, mods, align) {
		return t
	}
	c := s.Duplicate(t)
	c.Qualifiers |= quals
	c.Modifiers |= mods
	c.Alignment = max(align, t.Alignment)
	return s.Identify(c)
}

func exceeds(t *Type, quals Qualifiers, mods Modifiers, align int) bool {
	return quals&^t.Qualifiers != 0 || mods&^t.Modifiers != 0 || align > t.Alignment
}

// TypeQualifiers returns the qualifiers that apply to t once typedefs are
// looked through. With skipArray the qualifiers of the innermost array
// element are reported.
func (s *Session) TypeQualifiers(t *Type, skipArray bool) Qualifiers {
	var quals Qualifiers
	for {
		switch t.Kind {
		case KindError:
			return QualNone
		case KindTypedef:
			quals |= t.Qualifiers
			if t.resolved != nil {
				t = t.resolved
			} else {
				t = t.Typedef.Type
			}
			continue
		case KindTypeof:
			t = t.TypeofType
			continue
		case KindArray:
			if skipArray {
				t = t.Element
				continue
			}
		}
		return t.Qualifiers | quals
	}
}
