package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleTypes(s *Session) []*Type {
	i := s.MakeAtomic(Int, QualNone)
	c := s.MakeAtomic(Char, QualNone)
	return []*Type{
		i,
		s.MakeAtomic(Int, Const),
		c,
		s.MakeComplex(Float, QualNone),
		s.MakeImaginary(Float, QualNone),
		s.MakePointer(i, QualNone),
		s.MakePointer(c, QualNone),
		s.MakeReference(i),
		s.MakeArray(i, 5, QualNone),
		s.MakeArray(i, 10, QualNone),
		s.MakeVariableArray(i, ArraySpec{}),
		s.MakeFunction(i, FunctionSpec{}),
		s.MakeFunction(i, FunctionSpec{UnspecifiedParams: true}),
		s.MakeFunction(i, FunctionSpec{Params: []*Parameter{{Type: i}}}),
		s.MakeFunction(c, FunctionSpec{Params: []*Parameter{{Type: i}}, Variadic: true}),
		s.MakeCompound(&CompoundDecl{Name: "a", Complete: true}, QualNone),
		s.MakeCompound(&CompoundDecl{Name: "a", Complete: true}, QualNone),
		s.MakeEnum(&EnumDecl{Name: "e"}, QualNone),
		s.VaListType(),
		s.ErrorType(),
	}
}

func TestCompatibleReflexiveAndSymmetric(t *testing.T) {
	s := newSession(t)
	all := sampleTypes(s)
	for _, a := range all {
		assert.True(t, s.Compatible(a, a), "compatible(%s, %s)", TypeString(a), TypeString(a))
		for _, b := range all {
			assert.Equal(t, s.Compatible(a, b), s.Compatible(b, a),
				"symmetry of %s and %s", TypeString(a), TypeString(b))
		}
	}
}

func TestCompatibleRules(t *testing.T) {
	s := newSession(t)
	i := s.MakeAtomic(Int, QualNone)
	c := s.MakeAtomic(Char, QualNone)
	td := s.MakeTypedef(&TypedefDecl{Name: "myint", Type: i}, QualNone)

	tests := []struct {
		name string
		a, b *Type
		want bool
	}{
		{"same atomic", i, s.MakeAtomic(Int, QualNone), true},
		{"different atomic", i, c, false},
		{"qualifiers differ", i, s.MakeAtomic(Int, Const), false},
		{"kinds differ", i, s.MakePointer(i, QualNone), false},
		{"complex vs complex", s.MakeComplex(Double, QualNone), s.MakeComplex(Float, QualNone), false},
		{"pointer through typedef", s.MakePointer(td, QualNone), s.MakePointer(i, QualNone), true},
		{"pointer to different", s.MakePointer(c, QualNone), s.MakePointer(i, QualNone), false},
		{"reference", s.MakeReference(td), s.MakeReference(i), true},
		{"unknown size array", s.MakeVariableArray(i, ArraySpec{}), s.MakeArray(i, 10, QualNone), true},
		{"array sizes differ", s.MakeArray(i, 5, QualNone), s.MakeArray(i, 10, QualNone), false},
		{"array elements differ", s.MakeArray(c, 5, QualNone), s.MakeArray(i, 5, QualNone), false},
		{"error absorbs", s.ErrorType(), s.MakePointer(i, QualNone), true},
		{"invalid absorbs", s.InvalidType(), i, true},
		{"distinct structs", s.MakeCompound(&CompoundDecl{Name: "s"}, QualNone), s.MakeCompound(&CompoundDecl{Name: "s"}, QualNone), false},
		{"distinct enums", s.MakeEnum(&EnumDecl{Name: "e"}, QualNone), s.MakeEnum(&EnumDecl{Name: "e"}, QualNone), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Compatible(s.SkipTyperef(tt.a), s.SkipTyperef(tt.b)))
		})
	}
}

func TestCompatibleFunctions(t *testing.T) {
	s := newSession(t)
	i := s.MakeAtomic(Int, QualNone)
	c := s.MakeAtomic(Char, QualNone)
	params := func(ts ...*Type) []*Parameter {
		var ps []*Parameter
		for _, t := range ts {
			ps = append(ps, &Parameter{Type: t})
		}
		return ps
	}

	unspecified := s.MakeFunction(i, FunctionSpec{UnspecifiedParams: true})
	oneInt := s.MakeFunction(i, FunctionSpec{Params: params(i)})
	twoArgs := s.MakeFunction(i, FunctionSpec{Params: params(i, c)})
	constParam := s.MakeFunction(i, FunctionSpec{Params: params(s.MakeAtomic(Int, Const))})
	variadic := s.MakeFunction(i, FunctionSpec{Params: params(i), Variadic: true})
	charRet := s.MakeFunction(c, FunctionSpec{UnspecifiedParams: true})
	stdcall := s.MakeFunction(i, FunctionSpec{Params: params(i), CallingConvention: CCStdcall})
	cxx := s.MakeFunction(i, FunctionSpec{Params: params(i), Linkage: LinkageCXX})

	assert.True(t, s.Compatible(unspecified, oneInt))
	assert.True(t, s.Compatible(unspecified, twoArgs))
	assert.True(t, s.Compatible(twoArgs, unspecified))
	assert.False(t, s.Compatible(oneInt, twoArgs), "parameter counts differ")
	assert.True(t, s.Compatible(oneInt, constParam), "parameter qualifiers are ignored")
	assert.False(t, s.Compatible(oneInt, variadic))
	assert.False(t, s.Compatible(unspecified, charRet), "return types differ")
	assert.False(t, s.Compatible(oneInt, stdcall))
	assert.False(t, s.Compatible(oneInt, cxx))
}

func TestCompatiblePanics(t *testing.T) {
	s := newSession(t)
	i := s.MakeAtomic(Int, QualNone)
	b1 := s.MakeBitfield(i, 3, nil)
	b2 := s.MakeBitfield(i, 4, nil)
	td := s.MakeTypedef(&TypedefDecl{Name: "t", Type: i}, QualNone)

	assert.Panics(t, func() { s.Compatible(b1, b2) })
	assert.Panics(t, func() { s.Compatible(td, i) })
}
