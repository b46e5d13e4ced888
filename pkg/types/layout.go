package types

import "fmt"

// SizeOf returns the storage size of t in bytes. It panics on types whose
// size is unknown.
func (s *Session) SizeOf(t *Type) int {
	t = s.SkipTyperef(t)
	switch t.Kind {
	case KindAtomic:
		return s.target.SizeOf(t.Atomic)
	case KindComplex:
		return 2 * s.target.SizeOf(t.Atomic)
	case KindImaginary:
		return s.target.SizeOf(t.Atomic)
	case KindPointer, KindReference:
		return s.target.PointerSize()
	case KindEnum:
		return s.target.SizeOf(Int)
	case KindBitfield:
		return s.SizeOf(t.Base)
	case KindBuiltin:
		return s.SizeOf(t.RealType)
	case KindArray:
		if !t.SizeConstant {
			panic(fmt.Sprintf("types: size of variable array %s", TypeString(t)))
		}
		return t.Size * s.SizeOf(t.Element)
	case KindStruct, KindUnion:
		if !t.Compound.Complete {
			panic(fmt.Sprintf("types: size of incomplete %s", TypeString(t)))
		}
		s.Layout(t.Compound)
		return t.Compound.Size
	}
	panic(fmt.Sprintf("types: size of %s type", t.Kind))
}

// AlignOf returns the alignment of t in bytes. An explicit alignment on
// the type wins when it is larger than the natural one.
func (s *Session) AlignOf(t *Type) int {
	t = s.SkipTyperef(t)
	natural := 1
	switch t.Kind {
	case KindAtomic, KindComplex, KindImaginary:
		natural = s.target.AlignmentOf(t.Atomic)
	case KindPointer, KindReference:
		natural = s.target.PointerSize()
	case KindEnum:
		natural = s.target.AlignmentOf(Int)
	case KindBitfield:
		natural = s.AlignOf(t.Base)
	case KindBuiltin:
		natural = s.AlignOf(t.RealType)
	case KindArray:
		natural = s.AlignOf(t.Element)
	case KindStruct, KindUnion:
		s.Layout(t.Compound)
		natural = t.Compound.Align
	}
	return max(natural, t.Alignment, 1)
}

// Layout assigns member offsets and the total size and alignment of a
// complete struct or union. Consecutive bitfields share a storage unit
// while they fit. Layout is computed once.
func (s *Session) Layout(c *CompoundDecl) {
	if c.laid || !c.Complete {
		return
	}
	size, align := 0, 1
	unitStart, unitSize, bitPos := 0, 0, 0

	for _, m := range c.Members {
		mt := s.SkipTyperef(m.Type)
		ma := s.AlignOf(mt)
		align = max(align, ma)

		if c.Union {
			m.Offset = 0
			size = max(size, s.SizeOf(mt))
			continue
		}

		if mt.Kind == KindBitfield {
			bs := s.SizeOf(mt.Base)
			if unitSize == bs && bitPos+mt.Width <= bs*8 && mt.Width > 0 {
				m.Offset = unitStart
				m.Bit = bitPos
				bitPos += mt.Width
				continue
			}
			size = alignTo(size, ma)
			m.Offset = size
			m.Bit = 0
			unitStart, unitSize, bitPos = size, bs, mt.Width
			size += bs
			continue
		}

		unitSize = 0
		size = alignTo(size, ma)
		m.Offset = size
		size += s.SizeOf(mt)
	}

	c.Size = alignTo(size, align)
	c.Align = align
	c.laid = true
}

func alignTo(n, a int) int {
	if a <= 1 {
		return n
	}
	return (n + a - 1) / a * a
}
