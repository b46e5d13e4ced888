package compiler

import (
	"cfront/pkg/types"
)

// declSpec is the result of parsing declaration specifiers.
type declSpec struct {
	tok     Token
	storage StorageClass
	inline  bool
	typ     *types.Type
	tag     *types.Type // struct, union or enum named or defined by the specifiers
}

// declarator is one parsed declarator applied to the specifier type.
type declarator struct {
	tok    Token // name token, or where an abstract declarator began
	name   string
	typ    *types.Type
	params []*types.Parameter // of the function declarator around the name
	kr     bool               // params is an old-style identifier list
}

// attributes collects what the parser understands of __attribute__ lists.
type attributes struct {
	mods  types.Modifiers
	align int
}

// typeCounts tallies the basic type specifier keywords.
type typeCounts struct {
	void, char, short, int, long, float, double int
	signed, unsigned, boolean, complex, imaginary int
}

func (c *typeCounts) any() bool {
	return c.void+c.char+c.short+c.int+c.long+c.float+c.double+
		c.signed+c.unsigned+c.boolean+c.complex+c.imaginary > 0
}

// isTypeNameStart reports whether tok can begin a type name.
func (p *Parser) isTypeNameStart(tok Token) bool {
	switch tok.Type {
	case VOID, CHAR, SHORT, INT, LONG, FLOAT, DOUBLE, SIGNED, UNSIGNED, BOOL,
		COMPLEX, IMAGINARY, STRUCT, UNION, ENUM, CONST, VOLATILE, RESTRICT,
		TYPEOF, VA_LIST, ATTRIBUTE:
		return true
	case IDENTIFIER:
		return p.syms.IsTypedefName(tok.Lexeme)
	}
	return false
}

// isDeclStart reports whether tok can begin a declaration.
func (p *Parser) isDeclStart(tok Token) bool {
	switch tok.Type {
	case TYPEDEF, EXTERN, STATIC, AUTO, REGISTER, INLINE:
		return true
	case EXTENSION:
		return p.isDeclStart(p.peekAt(1))
	}
	return p.isTypeNameStart(tok)
}

// parseDeclSpec parses declaration specifiers. Storage classes are only
// accepted when allowStorage is set.
func (p *Parser) parseDeclSpec(allowStorage bool) (*declSpec, error) {
	spec := &declSpec{tok: p.peek()}
	var (
		counts  typeCounts
		quals   types.Qualifiers
		attrs   attributes
		base    *types.Type
		typedef *types.TypedefDecl
		typeofE Expr
		typeofT *types.Type
	)
	explicit := func() bool {
		return counts.any() || base != nil || typedef != nil || typeofE != nil || typeofT != nil
	}

loop:
	for {
		tok := p.peek()
		switch tok.Type {
		case TYPEDEF, EXTERN, STATIC, AUTO, REGISTER:
			p.advance()
			if !allowStorage {
				p.errorf(tok, "storage class specified for type name")
				continue
			}
			if spec.storage != StorageNone {
				p.errorf(tok, "multiple storage classes in declaration specifiers")
			}
			spec.storage = storageOf(tok.Type)
		case INLINE:
			p.advance()
			spec.inline = true
		case CONST:
			p.advance()
			quals |= types.Const
		case VOLATILE:
			p.advance()
			quals |= types.Volatile
		case RESTRICT:
			p.advance()
			quals |= types.Restrict
		case ATTRIBUTE:
			a, err := p.parseAttributes()
			if err != nil {
				return nil, err
			}
			attrs.mods |= a.mods
			attrs.align = max(attrs.align, a.align)
		case EXTENSION:
			p.advance()
		case VOID:
			p.advance()
			counts.void++
		case CHAR:
			p.advance()
			counts.char++
		case SHORT:
			p.advance()
			counts.short++
		case INT:
			p.advance()
			counts.int++
		case LONG:
			p.advance()
			counts.long++
		case FLOAT:
			p.advance()
			counts.float++
		case DOUBLE:
			p.advance()
			counts.double++
		case SIGNED:
			p.advance()
			counts.signed++
		case UNSIGNED:
			p.advance()
			counts.unsigned++
		case BOOL:
			p.advance()
			counts.boolean++
		case COMPLEX:
			p.advance()
			counts.complex++
		case IMAGINARY:
			p.advance()
			counts.imaginary++
		case STRUCT, UNION, ENUM:
			if explicit() {
				return nil, p.fmtError(tok, "two or more data types in declaration specifiers")
			}
			var t *types.Type
			var err error
			if tok.Type == ENUM {
				t, err = p.parseEnumSpec()
			} else {
				t, err = p.parseStructSpec()
			}
			if err != nil {
				return nil, err
			}
			base, spec.tag = t, t
		case TYPEOF:
			if explicit() {
				return nil, p.fmtError(tok, "two or more data types in declaration specifiers")
			}
			p.advance()
			if _, err := p.expect(LPAREN); err != nil {
				return nil, err
			}
			if p.isTypeNameStart(p.peek()) {
				t, err := p.parseTypeName()
				if err != nil {
					return nil, err
				}
				typeofT = t
			} else {
				e, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				typeofE = e
			}
			if _, err := p.expect(RPAREN); err != nil {
				return nil, err
			}
		case VA_LIST:
			if explicit() {
				return nil, p.fmtError(tok, "two or more data types in declaration specifiers")
			}
			p.advance()
			base = p.sess.VaListType()
		case IDENTIFIER:
			if explicit() {
				break loop
			}
			sym, ok := p.syms.Lookup(tok.Lexeme)
			if !ok || sym.Kind != SymTypedef {
				break loop
			}
			p.advance()
			typedef = sym.Typedef
		default:
			break loop
		}
	}

	var t *types.Type
	switch {
	case typedef != nil:
		t = p.sess.MakeTypedef(typedef, quals)
	case typeofE != nil:
		t = p.sess.MakeTypeofExpr(typeofE, quals)
	case typeofT != nil:
		t = p.sess.MakeTypeofType(typeofT, quals)
	case base != nil:
		t = p.sess.QualifiedType(base, quals)
	default:
		var err error
		t, err = p.basicType(spec.tok, &counts, quals)
		if err != nil {
			return nil, err
		}
	}
	spec.typ = p.withAttributes(t, attrs)
	return spec, nil
}

func storageOf(tt TokenType) StorageClass {
	switch tt {
	case TYPEDEF:
		return StorageTypedef
	case EXTERN:
		return StorageExtern
	case STATIC:
		return StorageStatic
	case AUTO:
		return StorageAuto
	case REGISTER:
		return StorageRegister
	}
	return StorageNone
}

// basicType maps the counted keywords to an arithmetic type.
func (p *Parser) basicType(tok Token, c *typeCounts, quals types.Qualifiers) (*types.Type, error) {
	invalid := func() (*types.Type, error) {
		return nil, p.fmtError(tok, "invalid combination of type specifiers")
	}
	if c.signed > 0 && c.unsigned > 0 || c.signed > 1 || c.unsigned > 1 || c.long > 2 || c.short > 1 {
		return invalid()
	}
	if c.short > 0 && c.long > 0 {
		return invalid()
	}
	sign := c.signed + c.unsigned
	mk := func(k types.AtomicKind) (*types.Type, error) {
		switch {
		case c.complex > 0:
			return p.sess.MakeComplex(k, quals), nil
		case c.imaginary > 0:
			return p.sess.MakeImaginary(k, quals), nil
		}
		return p.sess.MakeAtomic(k, quals), nil
	}

	switch {
	case c.void > 0:
		if c.void > 1 || c.char+c.short+c.int+c.long+c.float+c.double+sign+c.boolean+c.complex+c.imaginary > 0 {
			return invalid()
		}
		return p.sess.MakeAtomic(types.Void, quals), nil
	case c.boolean > 0:
		if c.boolean > 1 || c.char+c.short+c.int+c.long+c.float+c.double+sign+c.complex+c.imaginary > 0 {
			return invalid()
		}
		return p.sess.MakeAtomic(types.Bool, quals), nil
	case c.float > 0 || c.double > 0:
		if c.float+c.double > 1 || c.char+c.short+c.int+sign > 0 || (c.float > 0 && c.long > 0) || c.long > 1 {
			return invalid()
		}
		switch {
		case c.float > 0:
			return mk(types.Float)
		case c.long > 0:
			return mk(types.LongDouble)
		}
		return mk(types.Double)
	case c.complex > 0 || c.imaginary > 0:
		if p.dialect&types.GNUC == 0 {
			p.warnf(tok, "ISO C does not support plain '_Complex' meaning '_Complex double'")
		}
		return mk(types.Double)
	case c.char > 0:
		if c.char > 1 || c.int+c.short+c.long > 0 {
			return invalid()
		}
		switch {
		case c.signed > 0:
			return mk(types.SChar)
		case c.unsigned > 0:
			return mk(types.UChar)
		}
		return mk(types.Char)
	case c.short > 0:
		if c.int > 1 {
			return invalid()
		}
		if c.unsigned > 0 {
			return mk(types.UShort)
		}
		return mk(types.Short)
	case c.long > 1:
		if c.int > 1 {
			return invalid()
		}
		if c.unsigned > 0 {
			return mk(types.ULongLong)
		}
		return mk(types.LongLong)
	case c.long > 0:
		if c.int > 1 {
			return invalid()
		}
		if c.unsigned > 0 {
			return mk(types.ULong)
		}
		return mk(types.Long)
	case c.int > 0 || sign > 0:
		if c.int > 1 {
			return invalid()
		}
		if c.unsigned > 0 {
			return mk(types.UInt)
		}
		return mk(types.Int)
	}

	if p.dialect&types.C99 != 0 {
		p.warnf(tok, "type defaults to 'int' in declaration")
	}
	return p.sess.MakeAtomic(types.Int, quals), nil
}

// withAttributes applies attribute alignment and modifiers to t.
func (p *Parser) withAttributes(t *types.Type, a attributes) *types.Type {
	if a.mods == types.ModNone && a.align == 0 {
		return t
	}
	if t.Kind == types.KindError || t.Kind == types.KindInvalid {
		return t
	}
	c := p.sess.Duplicate(t)
	c.Modifiers |= a.mods
	c.Alignment = max(c.Alignment, a.align)
	return p.sess.Identify(c)
}

// parseAttributes consumes one or more __attribute__((...)) lists. Only
// aligned(N) and transparent_union have an effect; the rest are skipped.
func (p *Parser) parseAttributes() (attributes, error) {
	var a attributes
	for p.peek().Type == ATTRIBUTE {
		p.advance()
		if _, err := p.expect(LPAREN); err != nil {
			return a, err
		}
		if _, err := p.expect(LPAREN); err != nil {
			return a, err
		}
		for p.peek().Type != RPAREN && p.peek().Type != EOF {
			tok := p.advance()
			name := trimUnderscores(tok.Lexeme)
			switch {
			case name == "transparent_union":
				a.mods |= types.TransparentUnion
			case name == "aligned" && p.peek().Type == LPAREN:
				p.advance()
				e, err := p.parseConditional()
				if err != nil {
					return a, err
				}
				if v, ok := p.constValue(e); ok && v > 0 {
					a.align = max(a.align, int(v))
				} else {
					p.errorf(tok, "requested alignment is not a positive integer constant")
				}
				if _, err := p.expect(RPAREN); err != nil {
					return a, err
				}
			case p.peek().Type == LPAREN:
				if err := p.skipParens(); err != nil {
					return a, err
				}
			}
			p.accept(COMMA)
		}
		if _, err := p.expect(RPAREN); err != nil {
			return a, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return a, err
		}
	}
	return a, nil
}

func trimUnderscores(s string) string {
	if len(s) > 4 && s[:2] == "__" && s[len(s)-2:] == "__" {
		return s[2 : len(s)-2]
	}
	return s
}

// skipParens consumes a balanced parenthesised token group.
func (p *Parser) skipParens() error {
	end := p.matchParen(p.pos)
	if end < 0 {
		return p.fmtError(p.peek(), "expected ')' before end of input")
	}
	p.pos = end + 1
	return nil
}

// matchParen returns the index of the ')' matching the '(' at index open,
// or -1.
func (p *Parser) matchParen(open int) int {
	depth := 0
	for i := open; i < len(p.tokens); i++ {
		switch p.tokens[i].Type {
		case LPAREN:
			depth++
		case RPAREN:
			depth--
			if depth == 0 {
				return i
			}
		case EOF:
			return -1
		}
	}
	return -1
}

// parseQualifiers reads the qualifier list following a '*'.
func (p *Parser) parseQualifiers() (types.Qualifiers, error) {
	var q types.Qualifiers
	for {
		switch p.peek().Type {
		case CONST:
			q |= types.Const
		case VOLATILE:
			q |= types.Volatile
		case RESTRICT:
			q |= types.Restrict
		case ATTRIBUTE:
			if _, err := p.parseAttributes(); err != nil {
				return q, err
			}
			continue
		default:
			return q, nil
		}
		p.advance()
	}
}

func callingConvention(tt TokenType) (types.CallingConvention, bool) {
	switch tt {
	case CDECL:
		return types.CCCdecl, true
	case STDCALL:
		return types.CCStdcall, true
	case FASTCALL:
		return types.CCFastcall, true
	case THISCALL:
		return types.CCThiscall, true
	}
	return types.CCDefault, false
}

// parseDeclarator applies a declarator to base. Abstract declarators (no
// name) are accepted when abstract is set. A calling convention keyword
// belongs to the function formed by the direct declarator; one written
// before a '*' or '__based' was consumed by an enclosing declarator.
func (p *Parser) parseDeclarator(base *types.Type, abstract bool) (*declarator, error) {
	cc := types.CCDefault
	for {
		tok := p.peek()
		if c, ok := callingConvention(tok.Type); ok {
			p.advance()
			cc = c
			continue
		}
		switch tok.Type {
		case STAR:
			p.advance()
			cc = types.CCDefault
			q, err := p.parseQualifiers()
			if err != nil {
				return nil, err
			}
			base = p.sess.MakePointer(base, q)
			continue
		case BASED:
			p.advance()
			cc = types.CCDefault
			if _, err := p.expect(LPAREN); err != nil {
				return nil, err
			}
			v, err := p.expect(IDENTIFIER)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RPAREN); err != nil {
				return nil, err
			}
			if _, err := p.expect(STAR); err != nil {
				return nil, err
			}
			q, err := p.parseQualifiers()
			if err != nil {
				return nil, err
			}
			base = p.sess.MakeBasedPointer(base, q, v.Lexeme)
			continue
		case ATTRIBUTE:
			if _, err := p.parseAttributes(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	d, err := p.parseDirectDeclarator(base, abstract, cc)
	if err != nil {
		return nil, err
	}
	// trailing attributes and asm labels
	for {
		switch p.peek().Type {
		case ATTRIBUTE:
			a, err := p.parseAttributes()
			if err != nil {
				return nil, err
			}
			d.typ = p.withAttributes(d.typ, a)
			continue
		case ASM:
			p.advance()
			if err := p.skipParens(); err != nil {
				return nil, err
			}
			continue
		}
		return d, nil
	}
}

// isNestedDeclarator reports whether the '(' at the current position opens
// a parenthesised declarator rather than a parameter list.
func (p *Parser) isNestedDeclarator(abstract bool) bool {
	next := p.peekAt(1)
	if _, ok := callingConvention(next.Type); ok {
		return true
	}
	switch next.Type {
	case STAR, BASED, ATTRIBUTE:
		return true
	case IDENTIFIER:
		return !abstract && !p.syms.IsTypedefName(next.Lexeme)
	case LBRACKET:
		return abstract
	}
	return false
}

// ccInRange finds a calling convention keyword at nesting depth zero in
// tokens[start:end] that precedes the first pointer. One after a pointer
// belongs to the declarator further in.
func (p *Parser) ccInRange(start, end int) types.CallingConvention {
	depth := 0
	for i := start; i < end; i++ {
		switch p.tokens[i].Type {
		case LPAREN, LBRACKET:
			depth++
		case RPAREN, RBRACKET:
			depth--
		case STAR, BASED:
			if depth == 0 {
				return types.CCDefault
			}
		default:
			if c, ok := callingConvention(p.tokens[i].Type); ok && depth == 0 {
				return c
			}
		}
	}
	return types.CCDefault
}

func (p *Parser) parseDirectDeclarator(base *types.Type, abstract bool, cc types.CallingConvention) (*declarator, error) {
	tok := p.peek()
	switch {
	case tok.Type == IDENTIFIER && !(abstract && p.syms.IsTypedefName(tok.Lexeme)):
		p.advance()
		typ, params, kr, err := p.parseSuffix(base, cc)
		if err != nil {
			return nil, err
		}
		return &declarator{tok: tok, name: tok.Lexeme, typ: typ, params: params, kr: kr}, nil

	case tok.Type == LPAREN && p.isNestedDeclarator(abstract):
		// The suffixes after the parentheses bind tighter than the
		// declarator inside them, so parse those first.
		start := p.pos + 1
		end := p.matchParen(p.pos)
		if end < 0 {
			return nil, p.fmtError(tok, "expected ')' before end of input")
		}
		p.pos = end + 1
		outer := p.ccInRange(start, end)
		if outer == types.CCDefault {
			// int __stdcall (*f)(void)
			outer = cc
		}
		typ, _, _, err := p.parseSuffix(base, outer)
		if err != nil {
			return nil, err
		}
		after := p.pos
		p.pos = start
		inner, err := p.parseDeclarator(typ, abstract)
		if err != nil {
			return nil, err
		}
		if p.pos != end {
			return nil, p.fmtError(p.peek(), "expected ')' before %s", quoteTok(p.peek()))
		}
		p.pos = after
		return inner, nil
	}

	if !abstract {
		return nil, p.fmtError(tok, "expected identifier or '(' before %s", quoteTok(tok))
	}
	typ, params, kr, err := p.parseSuffix(base, cc)
	if err != nil {
		return nil, err
	}
	return &declarator{tok: tok, typ: typ, params: params, kr: kr}, nil
}

// parseSuffix parses the array and function suffixes of a direct
// declarator and applies them to base.
func (p *Parser) parseSuffix(base *types.Type, cc types.CallingConvention) (*types.Type, []*types.Parameter, bool, error) {
	tok := p.peek()
	switch tok.Type {
	case LPAREN:
		p.advance()
		spec, params, kr, err := p.parseParams()
		if err != nil {
			return nil, nil, false, err
		}
		base, _, _, err = p.parseSuffix(base, types.CCDefault)
		if err != nil {
			return nil, nil, false, err
		}
		ret := p.resolve(base)
		switch {
		case types.IsFunction(ret):
			p.errorf(tok, "function returning a function")
			base = p.sess.ErrorType()
		case types.IsArray(ret):
			p.errorf(tok, "function returning an array")
			base = p.sess.ErrorType()
		}
		spec.CallingConvention = cc
		spec.Linkage = p.linkage()
		return p.sess.MakeFunction(base, spec), params, kr, nil

	case LBRACKET:
		p.advance()
		var as types.ArraySpec
		for {
			switch p.peek().Type {
			case STATIC:
				p.advance()
				as.Static = true
				continue
			case CONST, VOLATILE, RESTRICT:
				q, err := p.parseQualifiers()
				if err != nil {
					return nil, nil, false, err
				}
				as.Qualifiers |= q
				continue
			}
			break
		}
		var size Expr
		if p.peek().Type != RBRACKET {
			if p.peek().Type == STAR && p.peekAt(1).Type == RBRACKET {
				p.advance() // [*]: unspecified variable length
			} else {
				e, err := p.parseAssignment()
				if err != nil {
					return nil, nil, false, err
				}
				size = p.rvalue(e)
			}
		}
		if _, err := p.expect(RBRACKET); err != nil {
			return nil, nil, false, err
		}
		elem, _, _, err := p.parseSuffix(base, cc)
		if err != nil {
			return nil, nil, false, err
		}
		return p.arrayOf(tok, elem, size, as), nil, false, nil
	}
	return base, nil, false, nil
}

// arrayOf builds the array type for a [size] suffix.
func (p *Parser) arrayOf(tok Token, elem *types.Type, size Expr, as types.ArraySpec) *types.Type {
	re := p.resolve(elem)
	switch {
	case re.Kind == types.KindError:
		return re
	case types.IsFunction(re):
		p.errorf(tok, "declaration of array of functions")
		return p.sess.ErrorType()
	case re.Kind == types.KindAtomic && re.Atomic == types.Void:
		p.errorf(tok, "declaration of array of voids")
		return p.sess.ErrorType()
	}
	if size == nil {
		return p.sess.MakeVariableArray(elem, as)
	}
	st := p.resolve(size.StaticType())
	if st.Kind != types.KindError && !p.sess.IsInteger(st) {
		p.errorf(tok, "size of array has non-integer type")
		return p.sess.ErrorType()
	}
	n, ok := p.constValue(size)
	if !ok {
		if p.syms.AtFileScope() {
			p.errorf(tok, "variable length array declared outside of any function")
			return p.sess.ErrorType()
		}
		as.SizeExpr = size
		return p.sess.MakeVariableArray(elem, as)
	}
	if n < 0 {
		p.errorf(tok, "size of array is negative")
		return p.sess.ErrorType()
	}
	if as.Static || as.Qualifiers != types.QualNone {
		as.SizeExpr = size
		return p.sess.MakeVariableArray(elem, as)
	}
	return p.sess.MakeArray(elem, int(n), types.QualNone)
}

// parseParams parses a parameter list after its '('.
func (p *Parser) parseParams() (types.FunctionSpec, []*types.Parameter, bool, error) {
	var spec types.FunctionSpec
	if p.accept(RPAREN) {
		spec.UnspecifiedParams = p.dialect&types.CXX == 0
		return spec, nil, false, nil
	}
	if p.peek().Type == VOID && p.peekAt(1).Type == RPAREN {
		p.advance()
		p.advance()
		return spec, nil, false, nil
	}

	// old-style identifier list
	if tok := p.peek(); tok.Type == IDENTIFIER && !p.syms.IsTypedefName(tok.Lexeme) {
		var params []*types.Parameter
		for {
			name, err := p.expect(IDENTIFIER)
			if err != nil {
				return spec, nil, false, err
			}
			params = append(params, &types.Parameter{Name: name.Lexeme})
			if !p.accept(COMMA) {
				break
			}
		}
		if _, err := p.expect(RPAREN); err != nil {
			return spec, nil, false, err
		}
		spec.UnspecifiedParams = true
		return spec, params, true, nil
	}

	var params []*types.Parameter
	for {
		if p.accept(ELLIPSIS) {
			if len(params) == 0 {
				p.errorf(p.peek(), "ISO C requires a named argument before '...'")
			}
			spec.Variadic = true
			break
		}
		ds, err := p.parseDeclSpec(true)
		if err != nil {
			return spec, nil, false, err
		}
		if ds.storage != StorageNone && ds.storage != StorageRegister {
			p.errorf(ds.tok, "storage class specified for parameter")
		}
		d, err := p.parseDeclarator(ds.typ, true)
		if err != nil {
			return spec, nil, false, err
		}
		rt := p.resolve(d.typ)
		if rt.Kind == types.KindAtomic && rt.Atomic == types.Void {
			p.errorf(ds.tok, "'void' must be the only parameter")
		}
		params = append(params, &types.Parameter{Name: d.name, Type: p.adjustParam(d.typ)})
		if !p.accept(COMMA) {
			break
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return spec, nil, false, err
	}
	spec.Params = params
	return spec, params, false, nil
}

// adjustParam rewrites array and function parameter types to pointers.
func (p *Parser) adjustParam(t *types.Type) *types.Type {
	r := p.resolve(t)
	switch r.Kind {
	case types.KindArray:
		return p.sess.MakePointer(r.Element, r.Qualifiers)
	case types.KindFunction:
		return p.sess.MakePointer(t, types.QualNone)
	}
	return t
}

// parseTypeName parses a type name as used by casts, sizeof and typeof.
func (p *Parser) parseTypeName() (*types.Type, error) {
	spec, err := p.parseDeclSpec(false)
	if err != nil {
		return nil, err
	}
	d, err := p.parseDeclarator(spec.typ, true)
	if err != nil {
		return nil, err
	}
	if d.name != "" {
		return nil, p.fmtError(d.tok, "unexpected identifier '%s' in type name", d.name)
	}
	return d.typ, nil
}

// tagFor finds or creates the tag called name for a reference or a
// definition. A definition only looks in the current scope.
func (p *Parser) tagFor(kw Token, name string, definition bool) *Tag {
	var tag *Tag
	var ok bool
	if definition {
		tag, ok = p.syms.LookupTagCurrent(name)
	} else {
		tag, ok = p.syms.LookupTag(name)
	}
	if ok {
		if tag.Kind != kw.Type {
			p.errorf(kw, "'%s' defined as wrong kind of tag", name)
			return nil
		}
		return tag
	}
	tag = &Tag{Name: name, Kind: kw.Type}
	switch kw.Type {
	case ENUM:
		tag.Enum = &types.EnumDecl{Name: name}
		tag.Type = p.sess.MakeEnum(tag.Enum, types.QualNone)
	default:
		tag.Compound = &types.CompoundDecl{Name: name, Union: kw.Type == UNION}
		tag.Type = p.sess.MakeCompound(tag.Compound, types.QualNone)
	}
	p.syms.DeclareTag(tag)
	return tag
}

// parseStructSpec parses a struct or union specifier.
func (p *Parser) parseStructSpec() (*types.Type, error) {
	kw := p.advance()
	pre, err := p.parseAttributes()
	if err != nil {
		return nil, err
	}
	name := ""
	if p.peek().Type == IDENTIFIER {
		name = p.advance().Lexeme
	}
	if p.peek().Type != LBRACE {
		if name == "" {
			return nil, p.fmtError(p.peek(), "expected '{' or identifier after '%s'", kw.Lexeme)
		}
		if tag := p.tagFor(kw, name, false); tag != nil {
			return tag.Type, nil
		}
		return p.sess.ErrorType(), nil
	}

	decl := &types.CompoundDecl{Name: name, Union: kw.Type == UNION}
	var tag *Tag
	if name != "" {
		tag = p.tagFor(kw, name, true)
		switch {
		case tag == nil:
		case tag.Compound.Complete:
			p.errorf(kw, "redefinition of '%s %s'", kw.Lexeme, name)
			tag = nil
		default:
			decl = tag.Compound
		}
	}

	p.advance() // {
	if err := p.parseMembers(decl); err != nil {
		return nil, err
	}
	post, err := p.parseAttributes()
	if err != nil {
		return nil, err
	}
	decl.Modifiers |= pre.mods | post.mods
	if decl.Modifiers&types.TransparentUnion != 0 && !decl.Union {
		p.warnf(kw, "'transparent_union' attribute ignored on non-union")
		decl.Modifiers &^= types.TransparentUnion
	}
	decl.Complete = true
	t := p.sess.MakeCompound(decl, types.QualNone)
	if align := max(pre.align, post.align); align > 0 {
		t = p.withAttributes(t, attributes{align: align})
	}
	if tag != nil {
		// later references see the attributes of the definition
		tag.Type = t
	}
	return t, nil
}

// parseMembers parses a struct-declaration-list up to and including '}'.
func (p *Parser) parseMembers(decl *types.CompoundDecl) error {
	seen := make(map[string]bool)
	add := func(tok Token, m *types.Member) {
		if m.Name != "" {
			if seen[m.Name] {
				p.errorf(tok, "duplicate member '%s'", m.Name)
				return
			}
			seen[m.Name] = true
		}
		decl.Members = append(decl.Members, m)
	}

	for !p.accept(RBRACE) {
		if p.peek().Type == EOF {
			return p.fmtError(p.peek(), "expected '}' before end of input")
		}
		spec, err := p.parseDeclSpec(false)
		if err != nil {
			return err
		}
		if p.accept(SEMICOLON) {
			if spec.tag != nil && types.IsCompound(p.resolve(spec.tag)) && p.resolve(spec.tag).Compound.Name == "" {
				add(spec.tok, &types.Member{Type: spec.typ})
			} else {
				p.warnf(spec.tok, "declaration does not declare anything")
			}
			continue
		}
		for {
			var d *declarator
			if p.peek().Type == COLON {
				d = &declarator{tok: p.peek(), typ: spec.typ}
			} else {
				d, err = p.parseDeclarator(spec.typ, false)
				if err != nil {
					return err
				}
			}
			mt := d.typ
			if p.accept(COLON) {
				mt, err = p.parseBitfield(d)
				if err != nil {
					return err
				}
			} else {
				rt := p.resolve(mt)
				last := p.peek().Type == SEMICOLON && p.peekAt(1).Type == RBRACE
				flexible := rt.Kind == types.KindArray && !rt.SizeConstant && rt.SizeExpr == nil && last && !decl.Union
				if types.IsFunction(rt) {
					p.errorf(d.tok, "field '%s' declared as a function", d.name)
					mt = p.sess.ErrorType()
				} else if !flexible && p.incompleteObject(rt) {
					p.errorf(d.tok, "field '%s' has incomplete type", d.name)
					mt = p.sess.ErrorType()
				}
			}
			add(d.tok, &types.Member{Name: d.name, Type: mt})
			if !p.accept(COMMA) {
				break
			}
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return err
		}
	}
	return nil
}

// parseBitfield parses the width after ':' and returns the bitfield type.
func (p *Parser) parseBitfield(d *declarator) (*types.Type, error) {
	e, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	base := p.resolve(d.typ)
	if base.Kind == types.KindError {
		return base, nil
	}
	if !p.sess.IsInteger(base) || base.Kind == types.KindBitfield {
		p.errorf(d.tok, "bit-field '%s' has invalid type", d.name)
		return p.sess.ErrorType(), nil
	}
	w, ok := p.constValue(e)
	switch {
	case !ok:
		p.errorf(d.tok, "bit-field '%s' width not an integer constant", d.name)
		return p.sess.ErrorType(), nil
	case w < 0:
		p.errorf(d.tok, "negative width in bit-field '%s'", d.name)
		return p.sess.ErrorType(), nil
	case w > int64(p.sess.SizeOf(base)*8):
		p.errorf(d.tok, "width of '%s' exceeds its type", d.name)
		return p.sess.ErrorType(), nil
	case w == 0 && d.name != "":
		p.errorf(d.tok, "zero width for bit-field '%s'", d.name)
		return p.sess.ErrorType(), nil
	}
	return p.sess.MakeBitfield(base, int(w), nil), nil
}

// parseEnumSpec parses an enum specifier.
func (p *Parser) parseEnumSpec() (*types.Type, error) {
	kw := p.advance()
	if _, err := p.parseAttributes(); err != nil {
		return nil, err
	}
	name := ""
	if p.peek().Type == IDENTIFIER {
		name = p.advance().Lexeme
	}
	if p.peek().Type != LBRACE {
		if name == "" {
			return nil, p.fmtError(p.peek(), "expected '{' or identifier after 'enum'")
		}
		if tag := p.tagFor(kw, name, false); tag != nil {
			return tag.Type, nil
		}
		return p.sess.ErrorType(), nil
	}

	decl := &types.EnumDecl{Name: name}
	typ := p.sess.MakeEnum(decl, types.QualNone)
	if name != "" {
		tag := p.tagFor(kw, name, true)
		switch {
		case tag == nil:
		case tag.Enum.Values != nil:
			p.errorf(kw, "redefinition of 'enum %s'", name)
		default:
			decl, typ = tag.Enum, tag.Type
		}
	}

	p.advance() // {
	values := []*types.EnumValue{}
	next := int64(0)
	for !p.accept(RBRACE) {
		tok, err := p.expect(IDENTIFIER)
		if err != nil {
			return nil, err
		}
		v := &types.EnumValue{Name: tok.Lexeme}
		if p.accept(ASSIGN) {
			e, err := p.parseConditional()
			if err != nil {
				return nil, err
			}
			c, ok := p.constValue(e)
			if !ok {
				p.errorf(tok, "enumerator value for '%s' is not an integer constant", tok.Lexeme)
			} else {
				next = c
			}
			v.Value = e
		}
		v.Const = next
		next++
		values = append(values, v)

		sym := &Symbol{Name: tok.Lexeme, Kind: SymEnumConst, Type: p.atomic(types.Int), Value: v.Const, Tok: tok, Defined: true}
		if _, exists := p.syms.Declare(sym); exists {
			p.errorf(tok, "redeclaration of '%s'", tok.Lexeme)
		}
		if !p.accept(COMMA) {
			if _, err := p.expect(RBRACE); err != nil {
				return nil, err
			}
			break
		}
	}
	if len(values) == 0 {
		p.errorf(kw, "empty enum is invalid")
	}
	decl.Values = values
	return typ, nil
}

// parseInitializer parses the initializer of an object of type target and
// returns it with the object's final type, which differs from target when
// an initializer completes an array of unknown size.
func (p *Parser) parseInitializer(target *types.Type) (Expr, *types.Type, error) {
	rt := p.resolve(target)
	if rt.Kind == types.KindError {
		if p.peek().Type == LBRACE {
			return nil, target, p.skipBraces()
		}
		e, err := p.parseAssignment()
		return e, target, err
	}

	if p.peek().Type != LBRACE {
		tok := p.peek()
		e, err := p.parseAssignment()
		if err != nil {
			return nil, nil, err
		}
		// char s[] = "..."
		if s, ok := e.(*StringLiteral); ok && rt.Kind == types.KindArray && p.isCharType(rt.Element) {
			n := len(s.Value) + 1
			if !rt.SizeConstant && rt.SizeExpr == nil {
				target = p.sess.CompleteArray(rt, n)
			} else if rt.SizeConstant && rt.Size < n-1 {
				p.warnf(tok, "initializer-string for array of chars is too long")
			}
			s.Type = target
			return s, target, nil
		}
		if rt.Kind == types.KindArray {
			p.errorf(tok, "invalid initializer")
			return e, target, nil
		}
		return p.convertAssign(tok, e, target, "initialization"), target, nil
	}

	open := p.advance()
	list := &InitializerList{}
	switch {
	case rt.Kind == types.KindArray:
		for p.peek().Type != RBRACE {
			e, _, err := p.parseInitializer(rt.Element)
			if err != nil {
				return nil, nil, err
			}
			list.Elements = append(list.Elements, e)
			if !p.accept(COMMA) {
				break
			}
		}
		if !rt.SizeConstant && rt.SizeExpr == nil {
			target = p.sess.CompleteArray(rt, len(list.Elements))
		} else if rt.SizeConstant && len(list.Elements) > rt.Size {
			p.warnf(open, "excess elements in array initializer")
		}
	case types.IsCompound(rt):
		if !rt.Compound.Complete {
			p.errorf(open, "variable has incomplete type")
			return nil, target, p.skipBracesFromInside()
		}
		i := 0
		for p.peek().Type != RBRACE {
			var mt *types.Type = p.sess.ErrorType()
			if i < len(rt.Compound.Members) && !(rt.Compound.Union && i > 0) {
				mt = rt.Compound.Members[i].Type
				if r := p.resolve(mt); r.Kind == types.KindBitfield {
					mt = r.Base
				}
			} else if i == len(rt.Compound.Members) || (rt.Compound.Union && i == 1) {
				p.warnf(p.peek(), "excess elements in %s initializer", compoundWord(rt))
			}
			e, _, err := p.parseInitializer(mt)
			if err != nil {
				return nil, nil, err
			}
			list.Elements = append(list.Elements, e)
			i++
			if !p.accept(COMMA) {
				break
			}
		}
	default:
		// scalar in braces
		for p.peek().Type != RBRACE {
			e, _, err := p.parseInitializer(target)
			if err != nil {
				return nil, nil, err
			}
			if len(list.Elements) > 0 {
				p.warnf(open, "excess elements in scalar initializer")
			}
			list.Elements = append(list.Elements, e)
			if !p.accept(COMMA) {
				break
			}
		}
		if _, err := p.expect(RBRACE); err != nil {
			return nil, nil, err
		}
		if len(list.Elements) == 0 {
			p.errorf(open, "empty scalar initializer")
			return &IntLiteral{typed: typed{target}}, target, nil
		}
		return list.Elements[0], target, nil
	}
	if _, err := p.expect(RBRACE); err != nil {
		return nil, nil, err
	}
	list.Type = target
	return list, target, nil
}

func compoundWord(t *types.Type) string {
	if t.Kind == types.KindUnion {
		return "union"
	}
	return "struct"
}

// skipBraces consumes a balanced { ... } group.
func (p *Parser) skipBraces() error {
	p.advance()
	return p.skipBracesFromInside()
}

func (p *Parser) skipBracesFromInside() error {
	depth := 1
	for depth > 0 {
		switch p.advance().Type {
		case LBRACE:
			depth++
		case RBRACE:
			depth--
		case EOF:
			return p.fmtError(p.peek(), "expected '}' before end of input")
		}
	}
	return nil
}

func (p *Parser) isCharType(t *types.Type) bool {
	r := p.resolve(t)
	if r.Kind != types.KindAtomic {
		return false
	}
	switch r.Atomic {
	case types.Char, types.SChar, types.UChar:
		return true
	}
	return false
}
