package compiler

import (
	"fmt"
	"io"
	"strings"

	"cfront/pkg/types"
)

// WriteCamlDecls writes OCaml external declarations for the functions of
// unit. Named structs and unions become abstract types.
func WriteCamlDecls(w io.Writer, sess *types.Session, unit *TranslationUnit) error {
	cw := &camlWriter{w: w, sess: sess, seen: make(map[string]bool)}
	decls := unit.Decls[unit.Builtins:]
	for _, d := range decls {
		switch d := d.(type) {
		case *TagDecl:
			cw.abstract(d.Type)
		case *TypedefStmt:
			cw.abstract(d.Decl.Type)
		}
	}
	for _, d := range decls {
		fn, ok := d.(*FunctionDecl)
		if !ok || fn.Storage == StorageStatic || cw.seen["external "+fn.Name] {
			continue
		}
		cw.seen["external "+fn.Name] = true
		cw.external(fn)
	}
	return cw.err
}

type camlWriter struct {
	w    io.Writer
	sess *types.Session
	seen map[string]bool
	err  error
}

func (cw *camlWriter) printf(format string, args ...any) {
	if cw.err != nil {
		return
	}
	_, cw.err = fmt.Fprintf(cw.w, format, args...)
}

func (cw *camlWriter) abstract(t *types.Type) {
	r := cw.sess.SkipTyperef(t)
	if !types.IsCompound(r) || r.Compound.Name == "" {
		return
	}
	name := camlName(r.Compound.Name)
	if cw.seen[name] {
		return
	}
	cw.seen[name] = true
	cw.printf("type %s\n", name)
}

func (cw *camlWriter) external(fn *FunctionDecl) {
	ft := cw.sess.SkipTyperef(fn.Type)
	var parts []string
	for _, p := range ft.Params {
		parts = append(parts, cw.typ(p.Type))
	}
	if len(parts) == 0 {
		parts = append(parts, "unit")
	}
	parts = append(parts, cw.typ(ft.Return))
	cw.printf("external %s : %s = \"%s\"\n", camlName(fn.Name), strings.Join(parts, " -> "), fn.Name)
}

// camlName lowercases the first letter, as OCaml value and type names
// must start with one.
func camlName(s string) string {
	if s == "" {
		return s
	}
	if c := s[0]; c >= 'A' && c <= 'Z' {
		return string(c+'a'-'A') + s[1:]
	}
	if s[0] == '_' {
		return "c" + s
	}
	return s
}

func (cw *camlWriter) typ(t *types.Type) string {
	r := cw.sess.SkipTyperef(t)
	switch r.Kind {
	case types.KindAtomic:
		switch {
		case r.Atomic == types.Void:
			return "unit"
		case r.Atomic == types.Bool:
			return "bool"
		case cw.sess.IsFloat(r):
			return "float"
		}
		return "int"
	case types.KindEnum, types.KindBitfield:
		return "int"
	case types.KindComplex, types.KindImaginary:
		return "float"
	case types.KindPointer, types.KindArray:
		var elem *types.Type
		if r.Kind == types.KindPointer {
			elem = cw.sess.SkipTyperef(r.PointsTo)
		} else {
			elem = cw.sess.SkipTyperef(r.Element)
		}
		if elem.Kind == types.KindAtomic && (elem.Atomic == types.Char || elem.Atomic == types.SChar || elem.Atomic == types.UChar) {
			return "string"
		}
		if types.IsCompound(elem) && elem.Compound.Name != "" {
			return camlName(elem.Compound.Name)
		}
		return "nativeint"
	case types.KindStruct, types.KindUnion:
		if r.Compound.Name != "" {
			return camlName(r.Compound.Name)
		}
	}
	return "nativeint"
}
