package types

import (
	"io"
	"strconv"
	"strings"
)

// PrinterOptions control how types are rendered.
type PrinterOptions struct {
	Dialect Dialect
	// ImplicitArraySize prints sizes that were derived from an
	// initializer rather than written in the source.
	ImplicitArraySize bool
}

// Printer renders types as C declarator text. Write errors are sticky:
// after the first failure nothing more is written and every method
// returns that error.
//
// A declarator is printed in two passes. The prefix pass writes the base
// type and pointer stars left of the name; the postfix pass writes array
// bounds and parameter lists right of it. A pointer to an array or
// function wraps its part of the declarator in parentheses.
type Printer struct {
	w      io.Writer
	opts   PrinterOptions
	indent int
	err    error
}

// NewPrinter returns a printer writing to w.
func NewPrinter(w io.Writer, opts PrinterOptions) *Printer {
	return &Printer{w: w, opts: opts}
}

// TypeString renders t with default options. It is meant for diagnostics.
func TypeString(t *Type) string {
	var sb strings.Builder
	NewPrinter(&sb, PrinterOptions{Dialect: DefaultDialect}).PrintType(t)
	return sb.String()
}

// AtomicName spells k in dialect d.
func AtomicName(k AtomicKind, d Dialect) string {
	if k == Bool && d&CXX != 0 {
		return "bool"
	}
	return k.String()
}

// Err returns the first write error, if any.
func (p *Printer) Err() error { return p.err }

// SetIndent sets the tab depth used for definition bodies.
func (p *Printer) SetIndent(n int) { p.indent = n }

func (p *Printer) puts(s string) {
	if p.err != nil || s == "" {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *Printer) printIndent() {
	p.puts(strings.Repeat("\t", p.indent))
}

// PrintQualifiers writes q space separated, without surrounding spaces.
func (p *Printer) PrintQualifiers(q Qualifiers) error {
	p.puts(qualifierString(q))
	return p.err
}

func qualifierString(q Qualifiers) string {
	var parts []string
	if q&Const != 0 {
		parts = append(parts, "const")
	}
	if q&Volatile != 0 {
		parts = append(parts, "volatile")
	}
	if q&Restrict != 0 {
		parts = append(parts, "restrict")
	}
	return strings.Join(parts, " ")
}

// qualified writes q followed by sep when q is not empty.
func (p *Printer) qualified(q Qualifiers, sep string) {
	if q != QualNone {
		p.puts(qualifierString(q))
		p.puts(sep)
	}
}

// PrintType writes t as an abstract declarator.
func (p *Printer) PrintType(t *Type) error {
	return p.PrintTypeExt(t, "", nil)
}

// PrintTypeExt writes t declaring name. When params is not nil it is used
// for a function's parameter list so parameter names are printed too.
func (p *Printer) PrintTypeExt(t *Type, name string, params []*Parameter) error {
	if t == nil {
		p.puts("nil type")
		return p.err
	}
	p.pre(t)
	if name != "" {
		p.puts(" ")
		p.puts(name)
	}
	if t.Kind == KindFunction {
		p.functionPost(t, params)
	} else {
		p.post(t)
	}
	return p.err
}

// PrintEnumDefinition writes the braced enumerator list of e.
func (p *Printer) PrintEnumDefinition(e *EnumDecl) error {
	p.puts("{\n")
	p.indent++
	for _, v := range e.Values {
		p.printIndent()
		p.puts(v.Name)
		if v.Value != nil {
			p.puts(" = ")
			p.puts(v.Value.String())
		}
		p.puts(",\n")
	}
	p.indent--
	p.printIndent()
	p.puts("}")
	return p.err
}

// PrintCompoundDefinition writes the braced member list of c.
func (p *Printer) PrintCompoundDefinition(c *CompoundDecl) error {
	p.puts("{\n")
	p.indent++
	for _, m := range c.Members {
		p.printIndent()
		p.PrintTypeExt(m.Type, m.Name, nil)
		p.puts(";\n")
	}
	p.indent--
	p.printIndent()
	p.puts("}")
	if c.Modifiers&TransparentUnion != 0 {
		p.puts("__attribute__((__transparent_union__))")
	}
	return p.err
}

func wrapsDeclarator(t *Type) bool {
	return t.Kind == KindArray || t.Kind == KindFunction
}

func (p *Printer) pre(t *Type) {
	switch t.Kind {
	case KindError:
		p.puts("<error>")
	case KindInvalid:
		p.puts("<invalid>")
	case KindAtomic:
		p.qualified(t.Qualifiers, " ")
		p.puts(AtomicName(t.Atomic, p.opts.Dialect))
	case KindComplex:
		p.qualified(t.Qualifiers, " ")
		p.puts("_Complex ")
		p.puts(AtomicName(t.Atomic, p.opts.Dialect))
	case KindImaginary:
		p.qualified(t.Qualifiers, " ")
		p.puts("_Imaginary ")
		p.puts(AtomicName(t.Atomic, p.opts.Dialect))
	case KindEnum:
		p.qualified(t.Qualifiers, " ")
		p.puts("enum ")
		if t.Enum.Name != "" {
			p.puts(t.Enum.Name)
		} else {
			p.PrintEnumDefinition(t.Enum)
		}
	case KindStruct, KindUnion:
		p.qualified(t.Qualifiers, " ")
		if t.Kind == KindStruct {
			p.puts("struct ")
		} else {
			p.puts("union ")
		}
		if t.Compound.Name != "" {
			p.puts(t.Compound.Name)
		} else {
			p.PrintCompoundDefinition(t.Compound)
		}
	case KindBuiltin:
		p.puts(t.BuiltinName)
	case KindFunction:
		p.functionPre(t)
		if t.CallingConvention != CCDefault {
			p.puts(" ")
			p.puts(ccKeywords[t.CallingConvention])
		}
	case KindPointer:
		p.wrappedPre(t.PointsTo)
		if t.BaseVariable != "" {
			p.puts(" __based(")
			p.puts(t.BaseVariable)
			p.puts(") ")
		}
		p.puts("*")
		if t.Qualifiers != QualNone {
			p.puts(" ")
			p.puts(qualifierString(t.Qualifiers))
		}
	case KindReference:
		p.wrappedPre(t.RefersTo)
		p.puts("&")
	case KindBitfield:
		p.pre(t.Base)
	case KindArray:
		p.pre(t.Element)
	case KindTypedef:
		p.qualified(t.Qualifiers, " ")
		p.puts(t.Typedef.Name)
	case KindTypeof:
		p.puts("typeof(")
		if t.TypeofExpr != nil {
			p.puts(t.TypeofExpr.String())
		} else {
			p.PrintType(t.TypeofType)
		}
		p.puts(")")
	default:
		p.puts("unknown")
	}
}

func (p *Printer) post(t *Type) {
	switch t.Kind {
	case KindFunction:
		p.functionPost(t, nil)
		return
	case KindPointer:
		if wrapsDeclarator(t.PointsTo) {
			p.puts(")")
		}
		p.post(t.PointsTo)
		return
	case KindReference:
		if wrapsDeclarator(t.RefersTo) {
			p.puts(")")
		}
		p.post(t.RefersTo)
		return
	case KindArray:
		p.arrayPost(t)
		return
	case KindBitfield:
		p.puts(" : ")
		if t.WidthExpr != nil {
			p.puts(t.WidthExpr.String())
		} else {
			p.puts(strconv.Itoa(t.Width))
		}
		p.post(t.Base)
		return
	}
	if t.Modifiers&TransparentUnion != 0 {
		p.puts("__attribute__((__transparent_union__))")
	}
}

func (p *Printer) functionPre(t *Type) {
	switch t.Linkage {
	case LinkageC:
		if p.opts.Dialect&CXX != 0 {
			p.puts(`extern "C" `)
		}
	case LinkageCXX:
		if p.opts.Dialect&CXX == 0 {
			p.puts(`extern "C++" `)
		}
	}
	p.qualified(t.Qualifiers, " ")
	p.pre(t.Return)
}

// wrappedPre writes the prefix of the target of a pointer or reference. An
// array or function target opens a parenthesised declarator, and a
// function's calling convention goes inside it: int (__stdcall * f)(void).
func (p *Printer) wrappedPre(t *Type) {
	if t.Kind != KindFunction {
		p.pre(t)
	} else {
		p.functionPre(t)
	}
	if !wrapsDeclarator(t) {
		return
	}
	p.puts(" (")
	if t.Kind == KindFunction && t.CallingConvention != CCDefault {
		p.puts(ccKeywords[t.CallingConvention])
		p.puts(" ")
	}
}

func (p *Printer) functionPost(t *Type, params []*Parameter) {
	p.puts("(")
	first := true
	sep := func() {
		if !first {
			p.puts(", ")
		}
		first = false
	}
	if params == nil {
		for _, param := range t.Params {
			sep()
			p.PrintType(param.Type)
		}
	} else {
		for _, param := range params {
			sep()
			if param.Type == nil {
				p.puts(param.Name)
			} else {
				p.PrintTypeExt(param.Type, param.Name, nil)
			}
		}
	}
	if t.Variadic {
		sep()
		p.puts("...")
	}
	if first && !t.UnspecifiedParams {
		p.puts("void")
	}
	p.puts(")")
	p.post(t.Return)
}

func (p *Printer) arrayPost(t *Type) {
	p.puts("[")
	if t.IsStatic {
		p.puts("static ")
	}
	p.qualified(t.Qualifiers, " ")
	if p.opts.ImplicitArraySize || !t.HasImplicitSize {
		switch {
		case t.SizeExpr != nil:
			p.puts(t.SizeExpr.String())
		case t.SizeConstant:
			p.puts(strconv.Itoa(t.Size))
		}
	}
	p.puts("]")
	p.post(t.Element)
}
