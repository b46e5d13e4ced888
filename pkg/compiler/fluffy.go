package compiler

import (
	"fmt"
	"io"
	"strings"

	"cfront/pkg/types"
)

// WriteFluffyDecls writes the declarations of unit in the syntax of the
// fluffy language, so C headers can be used from fluffy programs. Only
// declarations are written; function bodies and initializers are dropped.
func WriteFluffyDecls(w io.Writer, sess *types.Session, unit *TranslationUnit) error {
	fw := &fluffyWriter{w: w, sess: sess, seen: make(map[string]bool)}
	for _, d := range unit.Decls[unit.Builtins:] {
		fw.decl(d)
	}
	return fw.err
}

type fluffyWriter struct {
	w    io.Writer
	sess *types.Session
	seen map[string]bool // functions and variables already written
	err  error
}

func (fw *fluffyWriter) printf(format string, args ...any) {
	if fw.err != nil {
		return
	}
	_, fw.err = fmt.Fprintf(fw.w, format, args...)
}

func (fw *fluffyWriter) decl(d Stmt) {
	switch d := d.(type) {
	case *TagDecl:
		fw.tag(d.Type)
	case *TypedefStmt:
		// struct foo { ... } typedefs become the definition itself
		if r := fw.sess.SkipTyperef(d.Decl.Type); types.IsCompound(r) && r.Compound.Name == "" && r.Compound.Complete {
			fw.compound(d.Decl.Name, r.Compound)
			return
		}
		fw.printf("typealias %s <- %s\n\n", d.Decl.Name, fw.typ(d.Decl.Type))
	case *FunctionDecl:
		if d.Storage == StorageStatic || fw.seen[d.Name] {
			return
		}
		fw.seen[d.Name] = true
		ft := fw.sess.SkipTyperef(d.Type)
		params := d.Params
		if params == nil {
			params = ft.Params
		}
		parts := make([]string, 0, len(params)+1)
		for i, p := range params {
			name := p.Name
			if name == "" {
				name = fmt.Sprintf("arg%d", i)
			}
			parts = append(parts, fmt.Sprintf("%s : %s", name, fw.typ(p.Type)))
		}
		if ft.Variadic {
			parts = append(parts, "...")
		}
		fw.printf("func extern %s(%s) : %s\n\n", d.Name, strings.Join(parts, ", "), fw.typ(ft.Return))
	case *VariableDecl:
		if d.Storage == StorageStatic || fw.seen[d.Name] {
			return
		}
		fw.seen[d.Name] = true
		fw.printf("var extern %s : %s\n\n", d.Name, fw.typ(d.Type))
	}
}

func (fw *fluffyWriter) tag(t *types.Type) {
	switch t.Kind {
	case types.KindStruct, types.KindUnion:
		if t.Compound.Complete && t.Compound.Name != "" {
			fw.compound(t.Compound.Name, t.Compound)
		}
	case types.KindEnum:
		if t.Enum.Values == nil {
			return
		}
		fw.printf("enum %s:\n", t.Enum.Name)
		for _, v := range t.Enum.Values {
			fw.printf("\t%s = %d\n", v.Name, v.Const)
		}
		fw.printf("\n")
	}
}

func (fw *fluffyWriter) compound(name string, c *types.CompoundDecl) {
	kw := "struct"
	if c.Union {
		kw = "union"
	}
	fw.printf("%s %s:\n", kw, name)
	for _, m := range c.Members {
		fw.printf("\t%s : %s\n", m.Name, fw.typ(m.Type))
	}
	fw.printf("\n")
}

func (fw *fluffyWriter) atomic(k types.AtomicKind) string {
	switch k {
	case types.Char, types.SChar:
		return "byte"
	case types.UChar, types.Bool:
		return "unsigned byte"
	}
	return k.String()
}

// typ renders t as a fluffy type.
func (fw *fluffyWriter) typ(t *types.Type) string {
	switch t.Kind {
	case types.KindTypedef:
		return t.Typedef.Name
	case types.KindTypeof:
		return fw.typ(fw.sess.SkipTyperef(t))
	case types.KindAtomic:
		return fw.atomic(t.Atomic)
	case types.KindComplex, types.KindImaginary:
		return fw.atomic(t.Atomic)
	case types.KindPointer:
		return fw.typ(t.PointsTo) + "*"
	case types.KindReference:
		return fw.typ(t.RefersTo) + "*"
	case types.KindArray:
		if t.SizeConstant {
			return fmt.Sprintf("%s[%d]", fw.typ(t.Element), t.Size)
		}
		return fw.typ(t.Element) + "*"
	case types.KindFunction:
		parts := make([]string, 0, len(t.Params))
		for _, p := range t.Params {
			parts = append(parts, fw.typ(p.Type))
		}
		if t.Variadic {
			parts = append(parts, "...")
		}
		return fmt.Sprintf("(func(%s) : %s)", strings.Join(parts, ", "), fw.typ(t.Return))
	case types.KindEnum:
		return "int"
	case types.KindStruct, types.KindUnion:
		if t.Compound.Name == "" {
			return "byte"
		}
		return t.Compound.Name
	case types.KindBitfield:
		return fw.typ(t.Base)
	case types.KindBuiltin:
		return fw.typ(t.RealType)
	}
	return "void"
}
