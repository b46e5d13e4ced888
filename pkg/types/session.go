package types

// chunkSize is the number of types held by one arena slab.
const chunkSize = 256

// arena hands out Type slots from fixed-size slabs. Only the most recent
// allocation can be given back; everything else lives until the arena is
// released as a whole.
type arena struct {
	chunks [][]Type
	used   int // slots used in the last chunk
	total  int
}

func (a *arena) alloc() *Type {
	if len(a.chunks) == 0 || a.used == chunkSize {
		a.chunks = append(a.chunks, make([]Type, chunkSize))
		a.used = 0
	}
	t := &a.chunks[len(a.chunks)-1][a.used]
	a.used++
	a.total++
	return t
}

// free returns t to the arena when it is the last allocation.
func (a *arena) free(t *Type) bool {
	if a.used == 0 {
		return false
	}
	last := &a.chunks[len(a.chunks)-1][a.used-1]
	if last != t {
		return false
	}
	*last = Type{}
	a.used--
	a.total--
	return true
}

func (a *arena) release() {
	a.chunks = nil
	a.used = 0
	a.total = 0
}

// typeKey is the structural identity of a type. Children are compared by
// pointer, so they must already be canonical.
type typeKey struct {
	kind  Kind
	quals Qualifiers
	mods  Modifiers
	align int

	atomic  AtomicKind
	child   *Type
	baseVar string

	size      int
	sizeConst bool
	sizeExpr  Expr
	static    bool
	implicit  bool

	params      int
	variadic    bool
	unspecified bool
	linkage     Linkage
	cc          CallingConvention

	width  int
	decl   any
	name   string
	typeof TypedExpr
}

// paramKey links one parameter type onto an already interned prefix list.
type paramKey struct {
	prev int
	typ  *Type
}

// Session owns every type created during one compilation: the arena the
// types live in and the table that makes them canonical. A Session is not
// safe for concurrent use.
type Session struct {
	target *Target

	arena      arena
	index      map[typeKey]*Type
	paramLists map[paramKey]int

	errorType   *Type
	invalidType *Type
	closed      bool
}

// NewSession returns a session building types for target.
func NewSession(target *Target) *Session {
	s := &Session{
		target:     target,
		index:      make(map[typeKey]*Type, 128),
		paramLists: make(map[paramKey]int),
	}
	s.errorType = s.Identify(s.scratch(KindError))
	s.invalidType = s.Identify(s.scratch(KindInvalid))
	return s
}

// Target returns the atomic property table of the session.
func (s *Session) Target() *Target { return s.target }

// Len is the number of canonical types in the session.
func (s *Session) Len() int { return len(s.index) }

// Close releases the arena and the intern table. The session and every
// type it produced must not be used afterwards.
func (s *Session) Close() {
	if s.closed {
		panic("types: session closed twice")
	}
	s.closed = true
	s.arena.release()
	s.index = nil
	s.paramLists = nil
}

func (s *Session) checkOpen() {
	if s.closed {
		panic("types: use of closed session")
	}
}

// ErrorType is the type of erroneous constructs. It is compatible with
// every type.
func (s *Session) ErrorType() *Type { return s.errorType }

// InvalidType marks a type that could not be determined.
func (s *Session) InvalidType() *Type { return s.invalidType }

func (s *Session) scratch(kind Kind) *Type {
	s.checkOpen()
	t := s.arena.alloc()
	t.Kind = kind
	return t
}

// Duplicate returns a shallow, non-canonical copy of t with the backend
// cache cleared. The copy must be passed to Identify once modified.
func (s *Session) Duplicate(t *Type) *Type {
	if t.Kind == KindError {
		panic("types: duplicate of error type")
	}
	if t.Kind == KindInvalid {
		panic("types: duplicate of invalid type")
	}
	c := s.scratch(t.Kind)
	*c = *t
	c.Backend = nil
	return c
}

// Identify returns the canonical instance structurally equal to candidate.
// When one exists the candidate is discarded.
func (s *Session) Identify(candidate *Type) *Type {
	s.checkOpen()
	key := s.keyOf(candidate)
	if found, ok := s.index[key]; ok {
		if found != candidate {
			s.arena.free(candidate)
		}
		return found
	}
	s.index[key] = candidate
	return candidate
}

func (s *Session) keyOf(t *Type) typeKey {
	k := typeKey{
		kind:  t.Kind,
		quals: t.Qualifiers,
		mods:  t.Modifiers,
		align: t.Alignment,
	}
	switch t.Kind {
	case KindAtomic, KindComplex, KindImaginary:
		k.atomic = t.Atomic
	case KindPointer:
		k.child = t.PointsTo
		k.baseVar = t.BaseVariable
	case KindReference:
		k.child = t.RefersTo
	case KindArray:
		k.child = t.Element
		k.sizeConst = t.SizeConstant
		k.static = t.IsStatic
		k.implicit = t.HasImplicitSize
		if t.SizeConstant {
			k.size = t.Size
		} else {
			k.sizeExpr = t.SizeExpr
		}
	case KindFunction:
		k.child = t.Return
		k.params = s.paramListID(t.Params)
		k.variadic = t.Variadic
		k.unspecified = t.UnspecifiedParams
		k.linkage = t.Linkage
		k.cc = t.CallingConvention
	case KindBitfield:
		k.child = t.Base
		k.width = t.Width
		k.sizeExpr = t.WidthExpr
	case KindEnum:
		k.decl = t.Enum
	case KindStruct, KindUnion:
		k.decl = t.Compound
	case KindTypedef:
		k.decl = t.Typedef
	case KindTypeof:
		if t.TypeofExpr != nil {
			k.typeof = t.TypeofExpr
		} else {
			k.child = t.TypeofType
		}
	case KindBuiltin:
		k.name = t.BuiltinName
		k.child = t.RealType
	case KindError, KindInvalid:
	default:
		panic("types: unknown type kind " + t.Kind.String())
	}
	return k
}

// paramListID interns the sequence of parameter types and returns its id.
// Parameter names do not take part in identity. The empty list is 0.
func (s *Session) paramListID(params []*Parameter) int {
	id := 0
	for _, p := range params {
		key := paramKey{prev: id, typ: p.Type}
		next, ok := s.paramLists[key]
		if !ok {
			next = len(s.paramLists) + 1
			s.paramLists[key] = next
		}
		id = next
	}
	return id
}
