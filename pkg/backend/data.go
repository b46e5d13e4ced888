package backend

import (
	"fmt"
	"math"
	"sort"

	"cfront/pkg/compiler"
	"cfront/pkg/types"
)

var errNotConstant = fmt.Errorf("initializer element is not constant")

// globals lays out the file-scope objects of unit. Initialized objects go
// to .data; tentative definitions nothing initializes become commons.
func (g *I386) globals(unit *compiler.TranslationUnit) error {
	var tentative []*compiler.VariableDecl
	for _, s := range unit.Decls {
		decl, ok := s.(*compiler.VariableDecl)
		if !ok {
			continue
		}
		switch {
		case decl.Init != nil:
			if g.defined[decl.Sym] {
				continue
			}
			g.defined[decl.Sym] = true
			global := decl.Sym.Storage != compiler.StorageStatic
			if err := g.defineGlobal(decl, decl.Name, global); err != nil {
				return fmt.Errorf("%s: %w", decl.Name, err)
			}
		case decl.Storage != compiler.StorageExtern:
			tentative = append(tentative, decl)
		}
	}
	for _, decl := range tentative {
		if g.defined[decl.Sym] {
			continue
		}
		g.defined[decl.Sym] = true
		if err := g.common(decl.Name, decl.Sym.Type, decl.Sym.Storage == compiler.StorageStatic); err != nil {
			return fmt.Errorf("%s: %w", decl.Name, err)
		}
	}
	return nil
}

// common reserves zeroed storage for an object of type t.
func (g *I386) common(label string, t *types.Type, local bool) error {
	t = g.resolve(t)
	if t.Kind == types.KindArray && !t.SizeConstant && t.SizeExpr == nil {
		t = g.sess.CompleteArray(t, 1) // array assumed to have one element
	}
	size, err := g.objectSize(t)
	if err != nil {
		return err
	}
	if local {
		g.bss = append(g.bss, "\t.local\t"+label)
	}
	g.bss = append(g.bss, fmt.Sprintf("\t.comm\t%s,%d,%d", label, max(size, 1), g.sess.AlignOf(t)))
	return nil
}

func (g *I386) objectSize(t *types.Type) (int, error) {
	switch {
	case t.Kind == types.KindArray && !t.SizeConstant:
		return 0, fmt.Errorf("variable length arrays are not supported by the i386 backend")
	case g.sess.IsIncomplete(t):
		return 0, fmt.Errorf("storage size of '%s' isn't known", types.TypeString(t))
	}
	return g.sess.SizeOf(t), nil
}

// defineGlobal emits decl's initialized storage under label.
func (g *I386) defineGlobal(decl *compiler.VariableDecl, label string, global bool) error {
	t := g.resolve(decl.Type)
	size, err := g.objectSize(t)
	if err != nil {
		return err
	}
	var pieces []piece
	if err := g.collect(t, decl.Init, 0, &pieces); err != nil {
		return err
	}

	if global {
		g.data = append(g.data, "\t.globl\t"+label)
	}
	g.data = append(g.data, fmt.Sprintf("\t.balign\t%d", g.sess.AlignOf(t)))
	if g.opts.Debug {
		g.data = append(g.data,
			fmt.Sprintf("\t.type\t%s, @object", label),
			fmt.Sprintf("\t.size\t%s, %d", label, size))
	}
	g.data = append(g.data, label+":")
	g.data = append(g.data, layoutPieces(pieces, size)...)
	return nil
}

// piece is one initialized run of bytes inside an object.
type piece struct {
	off, size int
	value     int64  // integer pieces
	text      string // directive for everything else
}

func layoutPieces(pieces []piece, size int) []string {
	sort.SliceStable(pieces, func(i, j int) bool { return pieces[i].off < pieces[j].off })
	var out []string
	pos := 0
	for _, p := range pieces {
		if p.off < pos {
			continue // a later union member
		}
		if p.off > pos {
			out = append(out, fmt.Sprintf("\t.zero\t%d", p.off-pos))
		}
		if p.text != "" {
			out = append(out, p.text)
		} else {
			out = append(out, fmt.Sprintf("\t%s\t%d", intDirective(p.size), p.value))
		}
		pos = p.off + p.size
	}
	if size > pos {
		out = append(out, fmt.Sprintf("\t.zero\t%d", size-pos))
	}
	return out
}

func intDirective(size int) string {
	switch size {
	case 1:
		return ".byte"
	case 2:
		return ".short"
	case 8:
		return ".quad"
	}
	return ".long"
}

// collect records the constant initializer init of an object of type t at
// offset off.
func (g *I386) collect(t *types.Type, init compiler.Expr, off int, out *[]piece) error {
	t = g.resolve(t)
	switch {
	case t.Kind == types.KindArray:
		if s, ok := init.(*compiler.StringLiteral); ok {
			b := s.Value
			if len(b) > t.Size {
				b = b[:t.Size]
			}
			if b != "" {
				*out = append(*out, piece{off: off, size: len(b), text: "\t.ascii\t" + quote(b)})
			}
			return nil
		}
		list, ok := init.(*compiler.InitializerList)
		if !ok {
			return errNotConstant
		}
		esz := g.sess.SizeOf(t.Element)
		for i, el := range list.Elements {
			if i == t.Size {
				break
			}
			if err := g.collect(t.Element, el, off+i*esz, out); err != nil {
				return err
			}
		}
		return nil

	case types.IsCompound(t):
		list, ok := init.(*compiler.InitializerList)
		if !ok {
			return errNotConstant
		}
		g.sess.Layout(t.Compound)
		for i, el := range list.Elements {
			if i == len(t.Compound.Members) || (t.Compound.Union && i > 0) {
				break
			}
			m := t.Compound.Members[i]
			if mt := g.resolve(m.Type); mt.Kind == types.KindBitfield {
				v, ok := compiler.EvalConst(g.sess, el)
				if !ok {
					return errNotConstant
				}
				g.collectBits(m, mt, off, v, out)
				continue
			}
			if err := g.collect(m.Type, el, off+m.Offset, out); err != nil {
				return err
			}
		}
		return nil
	}

	if list, ok := init.(*compiler.InitializerList); ok && len(list.Elements) > 0 {
		init = list.Elements[0]
	}
	size := g.sess.SizeOf(t)
	if g.sess.IsFloat(t) {
		f, ok := g.floatConst(init)
		if !ok {
			return errNotConstant
		}
		switch size {
		case 4:
			*out = append(*out, piece{off: off, size: 4, value: int64(math.Float32bits(float32(f)))})
		case 8:
			bits := math.Float64bits(f)
			*out = append(*out, piece{off: off, size: 8, text: fmt.Sprintf("\t.long\t%d, %d", uint32(bits), uint32(bits>>32))})
		default:
			return fmt.Errorf("long double is not supported by the i386 backend")
		}
		return nil
	}
	if t.Kind == types.KindComplex || t.Kind == types.KindImaginary {
		return fmt.Errorf("complex types are not supported by the i386 backend")
	}
	if v, ok := compiler.EvalConst(g.sess, init); ok {
		*out = append(*out, piece{off: off, size: size, value: v})
		return nil
	}
	if sym, ok := g.addrConst(init); ok {
		*out = append(*out, piece{off: off, size: 4, text: "\t.long\t" + sym})
		return nil
	}
	return errNotConstant
}

// collectBits merges a bitfield value into the storage unit it shares
// with its neighbours.
func (g *I386) collectBits(m *types.Member, bt *types.Type, off int, v int64, out *[]piece) {
	mask := int64(1)<<bt.Width - 1
	bits := (v & mask) << m.Bit
	for i := range *out {
		p := &(*out)[i]
		if p.off == off+m.Offset && p.text == "" {
			p.value |= bits
			return
		}
	}
	*out = append(*out, piece{off: off + m.Offset, size: g.sess.SizeOf(bt.Base), value: bits})
}

func (g *I386) floatConst(e compiler.Expr) (float64, bool) {
	switch e := e.(type) {
	case *compiler.FloatLiteral:
		return e.Value, true
	case *compiler.UnaryExpr:
		if e.Op == compiler.MINUS {
			f, ok := g.floatConst(e.Right)
			return -f, ok
		}
	case *compiler.CastExpr:
		if f, ok := g.floatConst(e.Expr); ok {
			return f, true
		}
	}
	if v, ok := compiler.EvalConst(g.sess, e); ok {
		return float64(v), true
	}
	return 0, false
}

// addrConst returns the assembler expression for an address constant.
func (g *I386) addrConst(e compiler.Expr) (string, bool) {
	switch n := e.(type) {
	case *compiler.CastExpr:
		return g.addrConst(n.Expr)
	case *compiler.StringLiteral:
		return g.stringLabel(n.Value), true
	case *compiler.VarRef:
		t := g.resolve(n.StaticType())
		if t.Kind == types.KindArray || t.Kind == types.KindFunction {
			return g.staticLabel(n.Sym)
		}
	case *compiler.UnaryExpr:
		if n.Op == compiler.AND {
			return g.lvalueConst(n.Right)
		}
	case *compiler.BinaryExpr:
		if n.Op != compiler.PLUS && n.Op != compiler.MINUS {
			break
		}
		base, ok := g.addrConst(n.Left)
		if !ok {
			break
		}
		v, ok := compiler.EvalConst(g.sess, n.Right)
		if !ok {
			break
		}
		lt := g.resolve(n.Left.StaticType())
		if lt.Kind != types.KindPointer {
			break
		}
		v *= int64(g.pointeeSize(lt))
		if n.Op == compiler.MINUS {
			v = -v
		}
		return offsetLabel(base, v), true
	}
	return "", false
}

func (g *I386) lvalueConst(e compiler.Expr) (string, bool) {
	switch n := e.(type) {
	case *compiler.VarRef:
		return g.staticLabel(n.Sym)
	case *compiler.StringLiteral:
		return g.stringLabel(n.Value), true
	case *compiler.UnaryExpr:
		if n.Op == compiler.STAR {
			return g.addrConst(n.Right)
		}
	case *compiler.MemberExpr:
		if n.Arrow || n.Field == nil {
			break
		}
		base, ok := g.lvalueConst(n.Left)
		if !ok {
			break
		}
		g.sess.Layout(g.resolve(n.Left.StaticType()).Compound)
		return offsetLabel(base, int64(n.Field.Offset)), true
	case *compiler.IndexExpr:
		base, ok := g.addrConst(n.Left)
		if !ok {
			break
		}
		v, ok := compiler.EvalConst(g.sess, n.Index)
		if !ok {
			break
		}
		return offsetLabel(base, v*int64(g.pointeeSize(g.resolve(n.Left.StaticType())))), true
	}
	return "", false
}

// staticLabel names an object or function with static storage.
func (g *I386) staticLabel(sym *compiler.Symbol) (string, bool) {
	if sym == nil {
		return "", false
	}
	if l, ok := g.statics[sym]; ok {
		return l, true
	}
	if sym.Kind == compiler.SymFunc {
		return calleeName(sym), true
	}
	if sym.Kind == compiler.SymVar && (sym.Global || sym.Storage == compiler.StorageExtern) {
		return sym.Name, true
	}
	return "", false
}

// calleeName maps undefined builtins to the library function they stand
// for.
func calleeName(sym *compiler.Symbol) string {
	const prefix = "__builtin_"
	if !sym.Defined && len(sym.Name) > len(prefix) && sym.Name[:len(prefix)] == prefix {
		return sym.Name[len(prefix):]
	}
	return sym.Name
}

func offsetLabel(base string, off int64) string {
	switch {
	case off > 0:
		return fmt.Sprintf("%s+%d", base, off)
	case off < 0:
		return fmt.Sprintf("%s%d", base, off)
	}
	return base
}

// pointeeSize is the scale of pointer arithmetic on t. void and function
// pointers step by one byte, as in GNU C.
func (g *I386) pointeeSize(t *types.Type) int {
	pt := g.resolve(t.PointsTo)
	switch {
	case pt.Kind == types.KindFunction, pt.Kind == types.KindAtomic && pt.Atomic == types.Void:
		return 1
	case pt.Kind == types.KindArray && !pt.SizeConstant, g.sess.IsIncomplete(pt):
		return 0
	}
	return g.sess.SizeOf(pt)
}

// resolve skips typedefs and typeof and maps builtins to their
// representation.
func (g *I386) resolve(t *types.Type) *types.Type {
	t = g.sess.SkipTyperef(t)
	for t.Kind == types.KindBuiltin {
		t = g.sess.SkipTyperef(t.RealType)
	}
	return t
}
