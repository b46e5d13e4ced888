package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeAndAlign(t *testing.T) {
	s := newSession(t)
	i := s.MakeAtomic(Int, QualNone)
	c := s.MakeAtomic(Char, QualNone)

	assert.Equal(t, 4, s.SizeOf(i))
	assert.Equal(t, 4, s.SizeOf(s.MakePointer(c, QualNone)))
	assert.Equal(t, 40, s.SizeOf(s.MakeArray(i, 10, QualNone)))
	assert.Equal(t, 16, s.SizeOf(s.MakeComplex(Double, QualNone)))
	assert.Equal(t, 4, s.SizeOf(s.MakeEnum(&EnumDecl{Name: "e"}, QualNone)))
	assert.Equal(t, 4, s.SizeOf(s.MakeTypedef(&TypedefDecl{Name: "t", Type: i}, Const)))
	assert.Equal(t, 1, s.AlignOf(c))
	assert.Equal(t, 4, s.AlignOf(s.MakeArray(i, 2, QualNone)))

	assert.Panics(t, func() { s.SizeOf(s.MakeVariableArray(i, ArraySpec{})) })
	assert.Panics(t, func() { s.SizeOf(s.MakeCompound(&CompoundDecl{Name: "fwd"}, QualNone)) })
	assert.Panics(t, func() { s.SizeOf(s.MakeFunction(i, FunctionSpec{})) })
}

func TestStructLayout(t *testing.T) {
	s := newSession(t)
	i := s.MakeAtomic(Int, QualNone)
	c := s.MakeAtomic(Char, QualNone)
	sh := s.MakeAtomic(Short, QualNone)

	decl := &CompoundDecl{Name: "rec", Complete: true, Members: []*Member{
		{Name: "tag", Type: c},
		{Name: "value", Type: i},
		{Name: "small", Type: sh},
	}}
	st := s.MakeCompound(decl, QualNone)

	assert.Equal(t, 12, s.SizeOf(st))
	assert.Equal(t, 4, s.AlignOf(st))
	assert.Equal(t, []int{0, 4, 8}, offsets(decl))
}

func TestUnionLayout(t *testing.T) {
	s := newSession(t)
	decl := &CompoundDecl{Name: "u", Union: true, Complete: true, Members: []*Member{
		{Name: "c", Type: s.MakeAtomic(Char, QualNone)},
		{Name: "d", Type: s.MakeAtomic(Double, QualNone)},
	}}
	u := s.MakeCompound(decl, QualNone)
	assert.Equal(t, 8, s.SizeOf(u))
	assert.Equal(t, []int{0, 0}, offsets(decl))
}

func TestBitfieldsShareUnit(t *testing.T) {
	s := newSession(t)
	ui := s.MakeAtomic(UInt, QualNone)
	decl := &CompoundDecl{Name: "flags", Complete: true, Members: []*Member{
		{Name: "a", Type: s.MakeBitfield(ui, 3, nil)},
		{Name: "b", Type: s.MakeBitfield(ui, 5, nil)},
		{Name: "c", Type: s.MakeBitfield(ui, 30, nil)},
		{Name: "d", Type: s.MakeAtomic(Char, QualNone)},
	}}
	st := s.MakeCompound(decl, QualNone)
	// layout is computed on first use
	assert.Equal(t, 12, s.SizeOf(st))
	assert.Equal(t, []int{0, 0, 4, 8}, offsets(decl))
	assert.Equal(t, 3, decl.Members[1].Bit)
	assert.Equal(t, 0, decl.Members[2].Bit)
}

func offsets(c *CompoundDecl) []int {
	var out []int
	for _, m := range c.Members {
		out = append(out, m.Offset)
	}
	return out
}
