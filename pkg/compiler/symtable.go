package compiler

import (
	"fmt"
	"sort"
	"strings"

	"cfront/pkg/types"
)

// SymbolKind says what an ordinary identifier names.
type SymbolKind int

const (
	SymVar SymbolKind = iota
	SymFunc
	SymTypedef
	SymEnumConst
)

var symbolKindNames = [...]string{
	SymVar:       "var",
	SymFunc:      "func",
	SymTypedef:   "typedef",
	SymEnumConst: "enumconst",
}

func (k SymbolKind) String() string { return symbolKindNames[k] }

// StorageClass of a declaration.
type StorageClass int

const (
	StorageNone StorageClass = iota
	StorageExtern
	StorageStatic
	StorageAuto
	StorageRegister
	StorageTypedef
)

var storageNames = [...]string{
	StorageNone:     "",
	StorageExtern:   "extern",
	StorageStatic:   "static",
	StorageAuto:     "auto",
	StorageRegister: "register",
	StorageTypedef:  "typedef",
}

func (s StorageClass) String() string { return storageNames[s] }

// Symbol is an entry in the ordinary identifier namespace.
type Symbol struct {
	Name    string
	Kind    SymbolKind
	Type    *types.Type
	Storage StorageClass
	Global  bool
	Defined bool  // a function body or an initializer was seen
	Value   int64 // SymEnumConst
	Tok     Token

	Typedef *types.TypedefDecl // SymTypedef
}

// Tag is an entry in the struct/union/enum tag namespace.
type Tag struct {
	Name     string
	Kind     TokenType // STRUCT, UNION or ENUM
	Type     *types.Type
	Compound *types.CompoundDecl
	Enum     *types.EnumDecl
}

type scope struct {
	ordinary map[string]*Symbol
	tags     map[string]*Tag
}

func newScope() *scope {
	return &scope{ordinary: make(map[string]*Symbol), tags: make(map[string]*Tag)}
}

// SymbolTable is the stack of block scopes. The bottom entry is file scope
// and is never popped.
type SymbolTable struct {
	scopes []*scope
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{scopes: []*scope{newScope()}}
}

func (s *SymbolTable) EnterScope() {
	s.scopes = append(s.scopes, newScope())
}

func (s *SymbolTable) ExitScope() {
	if len(s.scopes) == 1 {
		panic("ExitScope called at file scope")
	}
	s.scopes = s.scopes[:len(s.scopes)-1]
}

// AtFileScope reports whether no block scope is open.
func (s *SymbolTable) AtFileScope() bool {
	return len(s.scopes) == 1
}

func (s *SymbolTable) top() *scope {
	return s.scopes[len(s.scopes)-1]
}

// Declare adds sym to the innermost scope. If the name is already declared
// there the existing symbol is returned with true and sym is not added.
func (s *SymbolTable) Declare(sym *Symbol) (*Symbol, bool) {
	cur := s.top()
	if prev, ok := cur.ordinary[sym.Name]; ok {
		return prev, true
	}
	sym.Global = s.AtFileScope()
	cur.ordinary[sym.Name] = sym
	return sym, false
}

// Lookup returns the innermost symbol called name.
func (s *SymbolTable) Lookup(name string) (*Symbol, bool) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if sym, ok := s.scopes[i].ordinary[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// DeclareTag adds tag to the innermost scope, returning an existing tag of
// the same name in that scope instead.
func (s *SymbolTable) DeclareTag(tag *Tag) (*Tag, bool) {
	cur := s.top()
	if prev, ok := cur.tags[tag.Name]; ok {
		return prev, true
	}
	cur.tags[tag.Name] = tag
	return tag, false
}

// LookupTag returns the innermost tag called name.
func (s *SymbolTable) LookupTag(name string) (*Tag, bool) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if tag, ok := s.scopes[i].tags[name]; ok {
			return tag, true
		}
	}
	return nil, false
}

// LookupTagCurrent looks name up in the innermost scope only.
func (s *SymbolTable) LookupTagCurrent(name string) (*Tag, bool) {
	tag, ok := s.top().tags[name]
	return tag, ok
}

// IsTypedefName reports whether name currently denotes a typedef.
func (s *SymbolTable) IsTypedefName(name string) bool {
	sym, ok := s.Lookup(name)
	return ok && sym.Kind == SymTypedef
}

// String returns a deterministically ordered dump of the table.
func (s *SymbolTable) String() string {
	var sb strings.Builder
	for i, sc := range s.scopes {
		if i == 0 {
			sb.WriteString("File scope:\n")
		} else {
			fmt.Fprintf(&sb, "Scope %d:\n", i)
		}
		names := make([]string, 0, len(sc.ordinary))
		for name := range sc.ordinary {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			sym := sc.ordinary[name]
			fmt.Fprintf(&sb, "  %-20s  %-9s %s\n", name, sym.Kind, types.TypeString(sym.Type))
		}
		tags := make([]string, 0, len(sc.tags))
		for name := range sc.tags {
			tags = append(tags, name)
		}
		sort.Strings(tags)
		for _, name := range tags {
			fmt.Fprintf(&sb, "  %-20s  tag       %s\n", name, types.TypeString(sc.tags[name].Type))
		}
	}
	return sb.String()
}
