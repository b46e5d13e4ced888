package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkipTyperefPlainTypeUnchanged(t *testing.T) {
	s := newSession(t)
	for _, typ := range []*Type{
		s.MakeAtomic(Int, QualNone),
		s.MakeAtomic(Int, Const),
		s.MakePointer(s.MakeAtomic(Char, QualNone), Restrict),
		s.MakeArray(s.MakeAtomic(Int, QualNone), 2, QualNone),
		s.ErrorType(),
	} {
		assert.Same(t, typ, s.SkipTyperef(typ), TypeString(typ))
	}
}

func TestSkipTyperefIdempotent(t *testing.T) {
	s := newSession(t)
	td := s.MakeTypedef(&TypedefDecl{Name: "T", Type: s.MakeAtomic(Int, QualNone)}, Volatile)

	once := s.SkipTyperef(td)
	assert.Same(t, once, s.SkipTyperef(once))
	assert.Same(t, s.MakeAtomic(Int, Volatile), once)
}

func TestSkipTyperefAccumulatesQualifiers(t *testing.T) {
	s := newSession(t)
	inner := s.MakeTypedef(&TypedefDecl{Name: "A", Type: s.MakeAtomic(Int, Volatile)}, QualNone)
	outer := s.MakeTypedef(&TypedefDecl{Name: "B", Type: inner}, Const)
	viaTypeof := s.MakeTypeofType(outer, Restrict)

	r := s.SkipTyperef(viaTypeof)
	require.Equal(t, KindAtomic, r.Kind)
	assert.Equal(t, Const|Volatile|Restrict, r.Qualifiers)
	assert.Same(t, s.MakeAtomic(Int, Const|Volatile|Restrict), r)
}

func TestSkipTyperefArrayQualifiesElement(t *testing.T) {
	s := newSession(t)
	arr := s.MakeArray(s.MakeAtomic(Int, QualNone), 4, QualNone)
	decl := &TypedefDecl{Name: "vec4", Type: arr}
	td := s.MakeTypedef(decl, QualNone)
	constVec := s.MakeTypedef(decl, Const)

	r := s.SkipTyperef(constVec)
	require.Equal(t, KindArray, r.Kind)
	assert.Equal(t, QualNone, r.Qualifiers)
	assert.Equal(t, 4, r.Size)
	assert.Same(t, s.MakeAtomic(Int, Const), r.Element)

	assert.Same(t, arr, s.SkipTyperef(td), "unqualified typedef resolves to the declared array")
}

func TestSkipTyperefAlignment(t *testing.T) {
	s := newSession(t)
	i := s.MakeAtomic(Int, QualNone)
	aligned := s.Duplicate(s.MakeTypedef(&TypedefDecl{Name: "aint", Type: i}, QualNone))
	aligned.Alignment = 16
	alignedRef := s.Identify(aligned)

	r := s.SkipTyperef(alignedRef)
	assert.Equal(t, 16, r.Alignment)
	assert.NotSame(t, i, r)
	assert.Equal(t, 4, i.Alignment, "shared int must not be modified")
}

func TestSkipTyperefErrorShortCircuits(t *testing.T) {
	s := newSession(t)
	td := s.MakeTypedef(&TypedefDecl{Name: "bad", Type: s.ErrorType()}, Const)
	assert.Same(t, s.ErrorType(), s.SkipTyperef(td))
}

func TestSkipTyperefTypeofExpr(t *testing.T) {
	s := newSession(t)
	ptr := s.MakePointer(s.MakeAtomic(Char, QualNone), QualNone)
	typeofX := s.MakeTypeofExpr(&typedTestExpr{text: "x", typ: ptr}, Const)

	assert.Same(t, s.MakePointer(s.MakeAtomic(Char, QualNone), Const), s.SkipTyperef(typeofX))
}

func TestTypeQualifiers(t *testing.T) {
	s := newSession(t)
	arr := s.MakeArray(s.MakeAtomic(Int, Volatile), 2, QualNone)
	td := s.MakeTypedef(&TypedefDecl{Name: "A", Type: arr}, Const)

	assert.Equal(t, Const, s.TypeQualifiers(td, false))
	assert.Equal(t, Const|Volatile, s.TypeQualifiers(td, true))
	assert.Equal(t, QualNone, s.TypeQualifiers(s.ErrorType(), true))
}
