package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession(MustTarget(DefaultTargetConfig()))
	t.Cleanup(func() {
		if !s.closed {
			s.Close()
		}
	})
	return s
}

// testExpr stands in for an AST expression.
type testExpr struct{ text string }

func (e *testExpr) String() string { return e.text }

type typedTestExpr struct {
	text string
	typ  *Type
}

func (e *typedTestExpr) String() string     { return e.text }
func (e *typedTestExpr) StaticType() *Type { return e.typ }

func TestCanonicalIdentity(t *testing.T) {
	s := newSession(t)

	a := s.MakePointer(s.MakeAtomic(Int, QualNone), QualNone)
	b := s.MakePointer(s.MakeAtomic(Int, QualNone), QualNone)
	assert.Same(t, a, b)

	arr1 := s.MakeArray(s.MakeAtomic(Char, QualNone), 10, QualNone)
	arr2 := s.MakeArray(s.MakeAtomic(Char, QualNone), 10, QualNone)
	assert.Same(t, arr1, arr2)
	assert.NotSame(t, arr1, s.MakeArray(s.MakeAtomic(Char, QualNone), 11, QualNone))

	assert.Same(t, s.MakeComplex(Double, QualNone), s.MakeComplex(Double, QualNone))
	assert.NotSame(t, s.MakeComplex(Double, QualNone), s.MakeImaginary(Double, QualNone))
	assert.Same(t, s.MakeReference(a), s.MakeReference(b))
}

func TestQualifierSensitivity(t *testing.T) {
	s := newSession(t)

	assert.NotSame(t, s.MakeAtomic(Int, Const), s.MakeAtomic(Int, QualNone))
	assert.NotSame(t, s.MakeAtomic(Int, Const), s.MakeAtomic(Int, Volatile))
	assert.Same(t, s.MakeAtomic(Int, Const|Volatile), s.MakeAtomic(Int, Volatile|Const))

	i := s.MakeAtomic(Int, QualNone)
	assert.NotSame(t, s.MakePointer(i, Const), s.MakePointer(i, QualNone))
}

func TestBasedPointerDistinctFromPlain(t *testing.T) {
	s := newSession(t)
	i := s.MakeAtomic(Int, QualNone)

	plain := s.MakePointer(i, QualNone)
	based := s.MakeBasedPointer(i, QualNone, "seg")
	assert.NotSame(t, plain, based)
	assert.Same(t, based, s.MakeBasedPointer(i, QualNone, "seg"))
	assert.NotSame(t, based, s.MakeBasedPointer(i, QualNone, "other"))
}

func TestConstantAndVariableArraysDiffer(t *testing.T) {
	s := newSession(t)
	i := s.MakeAtomic(Int, QualNone)

	fixed := s.MakeArray(i, 4, QualNone)
	open := s.MakeVariableArray(i, ArraySpec{})
	n := &testExpr{"n"}
	vla := s.MakeVariableArray(i, ArraySpec{SizeExpr: n})

	assert.NotSame(t, fixed, open)
	assert.NotSame(t, open, vla)
	assert.Same(t, open, s.MakeVariableArray(i, ArraySpec{}))
	assert.Same(t, vla, s.MakeVariableArray(i, ArraySpec{SizeExpr: n}))
	assert.NotSame(t, vla, s.MakeVariableArray(i, ArraySpec{SizeExpr: &testExpr{"n"}}))

	completed := s.CompleteArray(open, 4)
	assert.True(t, completed.SizeConstant)
	assert.True(t, completed.HasImplicitSize)
	assert.Equal(t, 4, completed.Size)
	assert.NotSame(t, fixed, completed)
}

func TestFunctionIdentityIgnoresParamNames(t *testing.T) {
	s := newSession(t)
	i := s.MakeAtomic(Int, QualNone)
	c := s.MakeAtomic(Char, QualNone)

	f1 := s.MakeFunction(i, FunctionSpec{Params: []*Parameter{{Name: "a", Type: i}, {Name: "b", Type: c}}})
	f2 := s.MakeFunction(i, FunctionSpec{Params: []*Parameter{{Name: "x", Type: i}, {Type: c}}})
	assert.Same(t, f1, f2)

	swapped := s.MakeFunction(i, FunctionSpec{Params: []*Parameter{{Type: c}, {Type: i}}})
	assert.NotSame(t, f1, swapped)

	variadic := s.MakeFunction(i, FunctionSpec{Params: []*Parameter{{Type: i}, {Type: c}}, Variadic: true})
	assert.NotSame(t, f1, variadic)

	noParams := s.MakeFunction(i, FunctionSpec{})
	unspecified := s.MakeFunction(i, FunctionSpec{UnspecifiedParams: true})
	assert.NotSame(t, noParams, unspecified)

	stdcall := s.MakeFunction(i, FunctionSpec{CallingConvention: CCStdcall})
	assert.NotSame(t, noParams, stdcall)
}

func TestDeclarationIdentity(t *testing.T) {
	s := newSession(t)

	d1 := &CompoundDecl{Name: "s", Complete: true}
	d2 := &CompoundDecl{Name: "s", Complete: true}
	assert.Same(t, s.MakeCompound(d1, QualNone), s.MakeCompound(d1, QualNone))
	assert.NotSame(t, s.MakeCompound(d1, QualNone), s.MakeCompound(d2, QualNone))
	assert.Equal(t, KindUnion, s.MakeCompound(&CompoundDecl{Union: true}, QualNone).Kind)

	e := &EnumDecl{Name: "color"}
	assert.Same(t, s.MakeEnum(e, QualNone), s.MakeEnum(e, QualNone))

	td := &TypedefDecl{Name: "myint", Type: s.MakeAtomic(Int, QualNone)}
	assert.Same(t, s.MakeTypedef(td, QualNone), s.MakeTypedef(td, QualNone))
	assert.NotSame(t, s.MakeTypedef(td, QualNone), s.MakeTypedef(td, Const))
}

func TestIdentifyReclaimsDiscardedCandidate(t *testing.T) {
	s := newSession(t)
	s.MakeAtomic(Long, QualNone)
	before := s.arena.total

	s.MakeAtomic(Long, QualNone)
	assert.Equal(t, before, s.arena.total, "duplicate candidate should be returned to the arena")

	s.MakeAtomic(ULong, QualNone)
	assert.Equal(t, before+1, s.arena.total)
}

func TestArenaSpansChunks(t *testing.T) {
	s := newSession(t)
	c := s.MakeAtomic(Char, QualNone)
	var last *Type
	for i := 0; i < chunkSize*2+3; i++ {
		last = s.MakeArray(c, i, QualNone)
	}
	assert.GreaterOrEqual(t, len(s.arena.chunks), 3)
	assert.Same(t, last, s.MakeArray(c, chunkSize*2+2, QualNone))
	assert.Equal(t, chunkSize*2+2, last.Size)
}

func TestDuplicateClearsBackendSlot(t *testing.T) {
	s := newSession(t)
	i := s.MakeAtomic(Int, QualNone)
	i.Backend = "cached"

	d := s.Duplicate(i)
	assert.Nil(t, d.Backend)
	assert.Equal(t, Int, d.Atomic)
	assert.Equal(t, "cached", i.Backend)
}

func TestSessionClose(t *testing.T) {
	s := NewSession(MustTarget(DefaultTargetConfig()))
	s.MakeAtomic(Int, QualNone)
	s.Close()

	assert.Panics(t, func() { s.MakeAtomic(Int, QualNone) })
	assert.Panics(t, func() { s.Close() })
}

func TestErrorAndInvalidSingletons(t *testing.T) {
	s := newSession(t)
	require.NotNil(t, s.ErrorType())
	assert.Equal(t, KindError, s.ErrorType().Kind)
	assert.Equal(t, KindInvalid, s.InvalidType().Kind)
	assert.False(t, IsValid(s.InvalidType()))
	assert.Panics(t, func() { s.Duplicate(s.ErrorType()) })
}

func TestQualifiedTypeIdempotent(t *testing.T) {
	s := newSession(t)
	i := s.MakeAtomic(Int, QualNone)

	once := s.QualifiedType(i, Const)
	twice := s.QualifiedType(once, Const)
	assert.Same(t, once, twice)
	assert.Same(t, s.MakeAtomic(Int, Const), once)

	both := s.QualifiedType(once, Volatile)
	assert.Equal(t, Const|Volatile, both.Qualifiers)
	assert.Same(t, i, s.UnqualifiedType(both))
	assert.Same(t, i, s.UnqualifiedType(i))
}

func TestQualifiedArrayQualifiesElement(t *testing.T) {
	s := newSession(t)
	i := s.MakeAtomic(Int, QualNone)
	arr := s.MakeArray(i, 3, QualNone)

	q := s.QualifiedType(arr, Const)
	require.Equal(t, KindArray, q.Kind)
	assert.Equal(t, QualNone, q.Qualifiers)
	assert.Same(t, s.MakeAtomic(Int, Const), q.Element)
	assert.Same(t, q, s.QualifiedType(q, Const))
}

func TestQualifiedErrorPassesThrough(t *testing.T) {
	s := newSession(t)
	assert.Same(t, s.ErrorType(), s.QualifiedType(s.ErrorType(), Const))
}

func TestUnqualifiedTypeRejectsTyperef(t *testing.T) {
	s := newSession(t)
	td := s.MakeTypedef(&TypedefDecl{Name: "t", Type: s.MakeAtomic(Int, QualNone)}, Const)
	assert.Panics(t, func() { s.UnqualifiedType(td) })
}

func TestTypeofIdentity(t *testing.T) {
	s := newSession(t)
	i := s.MakeAtomic(Int, QualNone)
	e := &typedTestExpr{text: "x", typ: i}

	assert.Same(t, s.MakeTypeofExpr(e, QualNone), s.MakeTypeofExpr(e, QualNone))
	assert.Same(t, s.MakeTypeofType(i, QualNone), s.MakeTypeofType(i, QualNone))
	assert.NotSame(t, s.MakeTypeofExpr(e, QualNone), s.MakeTypeofType(i, QualNone))
}
