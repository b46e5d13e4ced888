// Package types implements the C type system: the atomic property table,
// canonical type construction, typedef resolution, compatibility and
// declarator printing.
//
// Every type is created through a Session, which interns it so that
// structurally equal types are one pointer. Compare types with ==.
package types

import "fmt"

// Kind tags the variant held by a Type.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindError
	KindAtomic
	KindComplex
	KindImaginary
	KindPointer
	KindReference
	KindArray
	KindFunction
	KindEnum
	KindStruct
	KindUnion
	KindBitfield
	KindBuiltin
	KindTypedef
	KindTypeof
)

var kindNames = [...]string{
	KindInvalid:   "invalid",
	KindError:     "error",
	KindAtomic:    "atomic",
	KindComplex:   "complex",
	KindImaginary: "imaginary",
	KindPointer:   "pointer",
	KindReference: "reference",
	KindArray:     "array",
	KindFunction:  "function",
	KindEnum:      "enum",
	KindStruct:    "struct",
	KindUnion:     "union",
	KindBitfield:  "bitfield",
	KindBuiltin:   "builtin",
	KindTypedef:   "typedef",
	KindTypeof:    "typeof",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Qualifiers is a set of C type qualifiers.
type Qualifiers uint8

const (
	Const Qualifiers = 1 << iota
	Volatile
	Restrict

	QualNone Qualifiers = 0
)

// Modifiers is a set of declaration modifiers carried by a type.
type Modifiers uint8

const (
	TransparentUnion Modifiers = 1 << iota

	ModNone Modifiers = 0
)

// Linkage is the language linkage of a function type.
type Linkage uint8

const (
	LinkageInvalid Linkage = iota
	LinkageC
	LinkageCXX
)

// CallingConvention of a function type.
type CallingConvention uint8

const (
	CCDefault CallingConvention = iota
	CCCdecl
	CCStdcall
	CCFastcall
	CCThiscall
)

var ccKeywords = [...]string{
	CCDefault:  "",
	CCCdecl:    "__cdecl",
	CCStdcall:  "__stdcall",
	CCFastcall: "__fastcall",
	CCThiscall: "__thiscall",
}

func (c CallingConvention) String() string {
	if int(c) < len(ccKeywords) && c != CCDefault {
		return ccKeywords[c]
	}
	return "default"
}

// Dialect is the set of language modes in effect.
type Dialect uint8

const (
	C89 Dialect = 1 << iota
	C99
	GNUC
	MS
	CXX
)

// DefaultDialect is gnu99.
const DefaultDialect = C89 | C99 | GNUC

// Expr is the view of an AST expression the type engine needs. Types only
// borrow expressions; implementations must be pointer types so they can be
// compared by identity.
type Expr interface {
	String() string
}

// TypedExpr is an expression whose static type is known, as used by typeof.
type TypedExpr interface {
	Expr
	StaticType() *Type
}

// Parameter is one entry of a function parameter list.
type Parameter struct {
	Name string
	Type *Type
}

// TypedefDecl is the declaration a typedef type refers to.
type TypedefDecl struct {
	Name string
	Type *Type
}

// EnumValue is one enumerator. Value is the source expression, if any.
type EnumValue struct {
	Name  string
	Value Expr
	Const int64
}

// EnumDecl is an enum declaration. A nil Values slice means the enum was
// only forward declared.
type EnumDecl struct {
	Name   string
	Values []*EnumValue
}

// Member is a struct or union member. Offset is set by layout.
type Member struct {
	Name   string
	Type   *Type
	Offset int
	Bit    int // first bit inside the storage unit at Offset, bitfields only
}

// CompoundDecl is a struct or union declaration.
type CompoundDecl struct {
	Name      string
	Union     bool
	Members   []*Member
	Complete  bool
	Modifiers Modifiers

	Size  int
	Align int
	laid  bool
}

// Type is a C type. Instances returned by a Session are canonical: two
// canonical types are the same type exactly when they are the same pointer.
// Canonical types must not be mutated.
type Type struct {
	Kind       Kind
	Qualifiers Qualifiers
	Modifiers  Modifiers
	Alignment  int // bytes, 0 means natural

	// Backend is a cache slot owned by the code generator. Duplicate
	// clears it.
	Backend any

	// KindAtomic, KindComplex, KindImaginary
	Atomic AtomicKind

	// KindPointer
	PointsTo     *Type
	BaseVariable string // __based(var); empty for plain pointers

	// KindReference
	RefersTo *Type

	// KindArray
	Element         *Type
	Size            int
	SizeConstant    bool
	SizeExpr        Expr
	IsStatic        bool
	HasImplicitSize bool

	// KindFunction
	Return            *Type
	Params            []*Parameter
	Variadic          bool
	UnspecifiedParams bool
	Linkage           Linkage
	CallingConvention CallingConvention

	// KindBitfield
	Base      *Type
	Width     int
	WidthExpr Expr

	// KindEnum
	Enum *EnumDecl

	// KindStruct, KindUnion
	Compound *CompoundDecl

	// KindBuiltin
	BuiltinName string
	RealType    *Type

	// KindTypedef
	Typedef  *TypedefDecl
	resolved *Type

	// KindTypeof
	TypeofExpr TypedExpr
	TypeofType *Type
}

// IsTyperef reports whether t is an alias that must be resolved before
// its structure can be inspected.
func IsTyperef(t *Type) bool {
	return t.Kind == KindTypedef || t.Kind == KindTypeof
}

// IsValid reports whether t is not the invalid type.
func IsValid(t *Type) bool {
	return t.Kind != KindInvalid
}

func (t *Type) String() string {
	return TypeString(t)
}
