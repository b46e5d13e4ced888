package backend

import (
	"fmt"
	"strings"

	"cfront/pkg/compiler"
	"cfront/pkg/types"
)

// Expressions are evaluated as on a stack machine: every value ends up in
// %eax, the left operand of a binary operator waits on the stack while the
// right one is computed, and %ecx and %edx are scratch. Aggregates are
// represented by their address.

type loopLabel struct {
	End  string // where 'break' jumps to
	Post string // where 'continue' jumps to; empty for switch
}

// funcGen lowers one function definition.
type funcGen struct {
	*builder
	g    *I386
	sess *types.Session
	decl *compiler.FunctionDecl

	slots     map[*compiler.Symbol]int // frame offsets of parameters and locals
	frameSize int
	depth     int // bytes pushed since the prologue
	loopStack []loopLabel
	exit      string
	labels    map[string]string
}

var compoundOp = map[compiler.TokenType]compiler.TokenType{
	compiler.PLUS_ASSIGN:    compiler.PLUS,
	compiler.MINUS_ASSIGN:   compiler.MINUS,
	compiler.STAR_ASSIGN:    compiler.STAR,
	compiler.SLASH_ASSIGN:   compiler.SLASH,
	compiler.PERCENT_ASSIGN: compiler.PERCENT,
	compiler.AND_ASSIGN:     compiler.AND,
	compiler.OR_ASSIGN:      compiler.PIPE,
	compiler.XOR_ASSIGN:     compiler.CARET,
	compiler.SHL_ASSIGN:     compiler.SHL_OP,
	compiler.SHR_ASSIGN:     compiler.SHR_OP,
}

func alignTo(n, a int) int {
	return (n + a - 1) / a * a
}

func (g *I386) lowerFunction(f *compiler.FunctionDecl) (*Function, error) {
	fn := &Function{Name: f.Name, Global: f.Storage != compiler.StorageStatic}
	fg := &funcGen{
		builder: newBuilder(fn),
		g:       g,
		sess:    g.sess,
		decl:    f,
		slots:   make(map[*compiler.Symbol]int),
		labels:  make(map[string]string),
	}

	ft := g.resolve(f.Type)
	ret := g.resolve(ft.Return)
	if types.IsCompound(ret) {
		return nil, fmt.Errorf("returning a struct or union by value is not supported by the i386 backend")
	}
	if !isVoid(ret) {
		if err := fg.check(ret); err != nil {
			return nil, err
		}
	}

	off := 8 // return address and saved %ebp
	if g.opts.OmitFramePointer {
		off = 4
	}
	for _, ps := range f.ParamSyms {
		fg.slots[ps] = off
		off += alignTo(g.sess.SizeOf(ps.Type), 4)
	}

	size := 0
	for _, s := range f.Locals {
		if s.Storage == compiler.StorageStatic {
			continue
		}
		t := g.resolve(s.Type)
		sz, err := g.objectSize(t)
		if err != nil {
			return nil, fmt.Errorf("'%s': %w", s.Name, err)
		}
		size = alignTo(size+sz, g.sess.AlignOf(t))
		fg.slots[s] = -size
	}
	fg.frameSize = alignTo(size, 1<<g.opts.StackBoundary)
	fn.FrameSize = fg.frameSize

	if !g.opts.OmitFramePointer {
		fg.emit("pushl", "%ebp")
		fg.emit("movl", "%esp", "%ebp")
	}
	if fg.frameSize > 0 {
		fg.emit("subl", imm(fg.frameSize), "%esp")
	}
	if g.opts.Profile {
		fg.emit("call", "mcount")
	}

	fg.exit = g.newLabel()
	if err := fg.genStmt(f.Body); err != nil {
		return nil, err
	}
	if f.Name == "main" {
		fg.emit("xorl", "%eax", "%eax") // falling off main returns 0
	}
	fg.label(fg.exit)
	fg.ret()

	if fg.depth != 0 {
		panic(fmt.Sprintf("backend: unbalanced stack in %s (%d bytes)", f.Name, fg.depth))
	}
	fn.prune()
	return fn, nil
}

func isVoid(t *types.Type) bool {
	return t.Kind == types.KindAtomic && t.Atomic == types.Void
}

func (fg *funcGen) typeOf(e compiler.Expr) *types.Type {
	return fg.g.resolve(e.StaticType())
}

// check rejects values the backend has no instructions for.
func (fg *funcGen) check(t *types.Type) error {
	switch {
	case t.Kind == types.KindComplex || t.Kind == types.KindImaginary || fg.sess.IsFloat(t):
		return fmt.Errorf("floating point is not supported by the i386 backend")
	case (fg.sess.IsInteger(t) || t.Kind == types.KindPointer) && fg.sess.SizeOf(t) > 4:
		return fmt.Errorf("64-bit integers are not supported by the i386 backend")
	}
	return nil
}

func (fg *funcGen) isUnsigned(t *types.Type) bool {
	if t.Kind == types.KindPointer {
		return true
	}
	// narrower unsigned types are promoted to int
	return fg.sess.IsInteger(t) && !fg.sess.IsSigned(t) && fg.sess.SizeOf(t) >= 4
}

func isAggregate(t *types.Type) bool {
	return t.Kind == types.KindArray || t.Kind == types.KindStruct || t.Kind == types.KindUnion
}

func (fg *funcGen) push(reg string) {
	fg.emit("pushl", reg)
	fg.depth += 4
}

func (fg *funcGen) pop(reg string) {
	fg.emit("popl", reg)
	fg.depth -= 4
}

// slot addresses the frame offset off, relative to %ebp or to the
// position %ebp would have when the frame pointer is omitted.
func (fg *funcGen) slot(off int) string {
	if !fg.g.opts.OmitFramePointer {
		return fmt.Sprintf("%d(%%ebp)", off)
	}
	return fmt.Sprintf("%d(%%esp)", off+fg.frameSize+fg.depth)
}

func (fg *funcGen) newLabel() string { return fg.g.newLabel() }

func (fg *funcGen) userLabel(name string) string {
	if l, ok := fg.labels[name]; ok {
		return l
	}
	l := fg.newLabel()
	fg.labels[name] = l
	return l
}

func (fg *funcGen) elemSize(ptr *types.Type) (int, error) {
	sz := fg.g.pointeeSize(ptr)
	if sz == 0 {
		return 0, fmt.Errorf("arithmetic on a pointer to %s is not supported by the i386 backend", types.TypeString(ptr.PointsTo))
	}
	return sz, nil
}

// loadTo replaces the address in from with the value of type t stored
// there, extended to 32 bits.
func (fg *funcGen) loadTo(t *types.Type, from, to string) {
	mem := "(" + from + ")"
	switch {
	case isAggregate(t) || t.Kind == types.KindFunction:
		if from != to {
			fg.emit("movl", from, to)
		}
	case fg.sess.SizeOf(t) == 1:
		if fg.sess.IsSigned(t) {
			fg.emit("movsbl", mem, to)
		} else {
			fg.emit("movzbl", mem, to)
		}
	case fg.sess.SizeOf(t) == 2:
		if fg.sess.IsSigned(t) {
			fg.emit("movswl", mem, to)
		} else {
			fg.emit("movzwl", mem, to)
		}
	default:
		fg.emit("movl", mem, to)
	}
}

func (fg *funcGen) load(t *types.Type, from string) {
	fg.loadTo(t, from, "%eax")
}

// store writes %eax to the object of type t at the address in to.
// Aggregates are copied from the address in %eax, which then holds the
// destination.
func (fg *funcGen) store(t *types.Type, to string) {
	mem := "(" + to + ")"
	switch {
	case isAggregate(t):
		fg.copy(fg.sess.SizeOf(t), to)
		fg.emit("movl", to, "%eax")
	case fg.sess.SizeOf(t) == 1:
		fg.emit("movb", "%al", mem)
	case fg.sess.SizeOf(t) == 2:
		fg.emit("movw", "%ax", mem)
	default:
		fg.emit("movl", "%eax", mem)
	}
}

// copy moves n bytes from the address in %eax to the address in dst.
func (fg *funcGen) copy(n int, dst string) {
	fg.push("%esi")
	fg.push("%edi")
	if dst != "%edi" {
		fg.emit("movl", dst, "%edi")
	}
	fg.emit("movl", "%eax", "%esi")
	fg.emit("movl", imm(n), "%ecx")
	fg.emit("rep movsb")
	fg.emit("subl", imm(n), "%esi")
	fg.emit("movl", "%esi", "%eax")
	fg.emit("subl", imm(n), "%edi")
	fg.emit("movl", "%edi", "%ecx")
	fg.pop("%edi")
	fg.pop("%esi")
}

// zero clears n bytes of the frame from offset off.
func (fg *funcGen) zero(off, n int) {
	fg.push("%edi")
	fg.emit("leal", fg.slot(off), "%edi")
	fg.emit("xorl", "%eax", "%eax")
	fg.emit("movl", imm(n), "%ecx")
	fg.emit("rep stosb")
	fg.pop("%edi")
}

// bitfield returns the member e selects when it is a bitfield.
func (fg *funcGen) bitfield(e compiler.Expr) (*types.Member, *types.Type, bool) {
	m, ok := e.(*compiler.MemberExpr)
	if !ok || m.Field == nil {
		return nil, nil, false
	}
	bt := fg.g.resolve(m.Field.Type)
	return m.Field, bt, bt.Kind == types.KindBitfield
}

// loadBitfield extracts the field from the storage unit at from.
func (fg *funcGen) loadBitfield(m *types.Member, bt *types.Type, from string) {
	base := fg.g.resolve(bt.Base)
	fg.load(base, from)
	if fg.sess.IsSigned(base) {
		if shl := 32 - m.Bit - bt.Width; shl > 0 {
			fg.emit("sall", imm(shl), "%eax")
		}
		if sar := 32 - bt.Width; sar > 0 {
			fg.emit("sarl", imm(sar), "%eax")
		}
		return
	}
	if m.Bit > 0 {
		fg.emit("shrl", imm(m.Bit), "%eax")
	}
	if bt.Width < 32 {
		fg.emit("andl", imm(int64(1)<<bt.Width-1), "%eax")
	}
}

// storeBitfield merges %eax into the storage unit at the address in %ecx
// and leaves the field's new value in %eax.
func (fg *funcGen) storeBitfield(m *types.Member, bt *types.Type) {
	base := fg.g.resolve(bt.Base)
	mask := int64(1)<<bt.Width - 1
	fg.emit("andl", imm(int64(int32(uint32(mask)))), "%eax")
	if m.Bit > 0 {
		fg.emit("shll", imm(m.Bit), "%eax")
	}
	fg.loadTo(base, "%ecx", "%edx")
	fg.emit("andl", imm(int64(^int32(uint32(mask<<m.Bit)))), "%edx")
	fg.emit("orl", "%edx", "%eax")
	fg.store(base, "%ecx")
	fg.loadBitfield(m, bt, "%ecx")
}

// genAddress leaves the address of the lvalue e in %eax.
func (fg *funcGen) genAddress(e compiler.Expr) error {
	switch n := e.(type) {
	case *compiler.VarRef:
		if n.Sym == nil {
			return fmt.Errorf("'%s' undeclared", n.Name)
		}
		if off, ok := fg.slots[n.Sym]; ok {
			fg.emit("leal", fg.slot(off), "%eax")
			return nil
		}
		label, ok := fg.g.staticLabel(n.Sym)
		if !ok {
			return fmt.Errorf("'%s' has no storage", n.Name)
		}
		fg.emit("movl", "$"+label, "%eax")
		return nil

	case *compiler.StringLiteral:
		fg.emit("movl", "$"+fg.g.stringLabel(n.Value), "%eax")
		return nil

	case *compiler.UnaryExpr:
		if n.Op == compiler.STAR {
			return fg.genExpr(n.Right)
		}

	case *compiler.IndexExpr:
		ptr, idx := n.Left, n.Index
		if fg.typeOf(ptr).Kind != types.KindPointer {
			ptr, idx = idx, ptr
		}
		sz, err := fg.elemSize(fg.typeOf(ptr))
		if err != nil {
			return err
		}
		if err := fg.genExpr(ptr); err != nil {
			return err
		}
		fg.push("%eax")
		if err := fg.genExpr(idx); err != nil {
			return err
		}
		if sz != 1 {
			fg.emit("imull", imm(sz), "%eax", "%eax")
		}
		fg.pop("%ecx")
		fg.emit("addl", "%ecx", "%eax")
		return nil

	case *compiler.MemberExpr:
		if n.Field == nil {
			return fmt.Errorf("no member named '%s'", n.Member)
		}
		lt := fg.typeOf(n.Left)
		var err error
		if n.Arrow {
			lt = fg.g.resolve(lt.PointsTo)
			err = fg.genExpr(n.Left)
		} else {
			err = fg.genAddress(n.Left)
		}
		if err != nil {
			return err
		}
		fg.sess.Layout(lt.Compound)
		if n.Field.Offset != 0 {
			fg.emit("addl", imm(n.Field.Offset), "%eax")
		}
		return nil
	}

	if isAggregate(fg.typeOf(e)) {
		return fg.genExpr(e) // struct rvalues are already addresses
	}
	return fmt.Errorf("codegen: cannot take the address of %T", e)
}

// genExpr evaluates e into %eax.
func (fg *funcGen) genExpr(e compiler.Expr) error {
	t := fg.typeOf(e)
	if err := fg.check(t); err != nil {
		return err
	}

	switch n := e.(type) {
	case *compiler.IntLiteral:
		fg.emit("movl", imm(int64(int32(n.Value))), "%eax")

	case *compiler.StringLiteral:
		return fg.genAddress(n)

	case *compiler.VarRef:
		if n.Sym != nil && n.Sym.Kind == compiler.SymEnumConst {
			fg.emit("movl", imm(int64(int32(n.Sym.Value))), "%eax")
			return nil
		}
		if err := fg.genAddress(n); err != nil {
			return err
		}
		fg.load(t, "%eax")

	case *compiler.IndexExpr:
		if err := fg.genAddress(n); err != nil {
			return err
		}
		fg.load(t, "%eax")

	case *compiler.MemberExpr:
		if err := fg.genAddress(n); err != nil {
			return err
		}
		if m, bt, ok := fg.bitfield(n); ok {
			fg.loadBitfield(m, bt, "%eax")
			return nil
		}
		fg.load(t, "%eax")

	case *compiler.UnaryExpr:
		return fg.genUnary(n, t)

	case *compiler.PostfixExpr:
		return fg.incDec(n.Left, n.Op, true)

	case *compiler.BinaryExpr:
		lt, rt := fg.typeOf(n.Left), fg.typeOf(n.Right)
		if err := fg.genExpr(n.Left); err != nil {
			return err
		}
		fg.push("%eax")
		if err := fg.genExpr(n.Right); err != nil {
			return err
		}
		fg.emit("movl", "%eax", "%ecx")
		fg.pop("%eax")
		return fg.arith(n.Op, lt, rt)

	case *compiler.LogicalExpr:
		return fg.genLogical(n)

	case *compiler.AssignExpr:
		return fg.genAssign(n)

	case *compiler.ConditionalExpr:
		elseLabel := fg.newLabel()
		endLabel := fg.newLabel()
		if err := fg.genCond(n.Cond, elseLabel); err != nil {
			return err
		}
		if err := fg.genExpr(n.Then); err != nil {
			return err
		}
		fg.jump(endLabel)
		fg.label(elseLabel)
		if err := fg.genExpr(n.Else); err != nil {
			return err
		}
		fg.label(endLabel)

	case *compiler.CommaExpr:
		if err := fg.genExpr(n.Left); err != nil {
			return err
		}
		return fg.genExpr(n.Right)

	case *compiler.CastExpr:
		if err := fg.genExpr(n.Expr); err != nil {
			return err
		}
		if !isVoid(t) {
			fg.convert(t)
		}

	case *compiler.CallExpr:
		return fg.genCall(n)

	case *compiler.SizeofExpr:
		if n.Size < 0 {
			return fmt.Errorf("sizeof of a variable length array is not supported by the i386 backend")
		}
		fg.emit("movl", imm(n.Size), "%eax")

	case *compiler.InitializerList:
		return fmt.Errorf("compound literals are not supported by the i386 backend")

	default:
		return fmt.Errorf("codegen: unknown expression node %T", e)
	}
	return nil
}

// convert narrows or normalises %eax to type t.
func (fg *funcGen) convert(t *types.Type) {
	switch {
	case t.Kind == types.KindAtomic && t.Atomic == types.Bool:
		fg.emit("testl", "%eax", "%eax")
		fg.emit("setne", "%al")
		fg.emit("movzbl", "%al", "%eax")
	case isAggregate(t) || t.Kind == types.KindFunction || !fg.sess.IsScalar(t):
	case fg.sess.SizeOf(t) == 1:
		if fg.sess.IsSigned(t) {
			fg.emit("movsbl", "%al", "%eax")
		} else {
			fg.emit("movzbl", "%al", "%eax")
		}
	case fg.sess.SizeOf(t) == 2:
		if fg.sess.IsSigned(t) {
			fg.emit("movswl", "%ax", "%eax")
		} else {
			fg.emit("movzwl", "%ax", "%eax")
		}
	}
}

func (fg *funcGen) genUnary(n *compiler.UnaryExpr, t *types.Type) error {
	switch n.Op {
	case compiler.AND:
		return fg.genAddress(n.Right)
	case compiler.PLUS_PLUS, compiler.MINUS_MINUS:
		return fg.incDec(n.Right, n.Op, false)
	}
	if err := fg.genExpr(n.Right); err != nil {
		return err
	}
	switch n.Op {
	case compiler.STAR:
		fg.load(t, "%eax")
	case compiler.MINUS:
		fg.emit("negl", "%eax")
	case compiler.TILDE:
		fg.emit("notl", "%eax")
	case compiler.NOT:
		fg.emit("testl", "%eax", "%eax")
		fg.emit("sete", "%al")
		fg.emit("movzbl", "%al", "%eax")
	case compiler.PLUS:
	default:
		return fmt.Errorf("codegen: unknown unary operator %s", compiler.OpText(n.Op))
	}
	return nil
}

// incDec adds or subtracts one, scaled for pointers, to the lvalue e.
func (fg *funcGen) incDec(e compiler.Expr, op compiler.TokenType, post bool) error {
	t := fg.typeOf(e)
	step := 1
	if t.Kind == types.KindPointer {
		sz, err := fg.elemSize(t)
		if err != nil {
			return err
		}
		step = sz
	}
	if op == compiler.MINUS_MINUS {
		step = -step
	}
	if err := fg.genAddress(e); err != nil {
		return err
	}
	fg.emit("movl", "%eax", "%ecx")

	if m, bt, ok := fg.bitfield(e); ok {
		fg.loadBitfield(m, bt, "%ecx")
		fg.push("%eax")
		fg.emit("addl", imm(step), "%eax")
		fg.storeBitfield(m, bt)
		if post {
			fg.pop("%eax")
		} else {
			fg.pop("%edx")
		}
		return nil
	}

	fg.load(t, "%ecx")
	if post {
		fg.emit("movl", "%eax", "%edx")
	}
	fg.emit("addl", imm(step), "%eax")
	fg.store(t, "%ecx")
	switch {
	case post:
		fg.emit("movl", "%edx", "%eax")
	case fg.sess.SizeOf(t) < 4:
		fg.load(t, "%ecx")
	}
	return nil
}

var setcc = map[compiler.TokenType][2]string{
	compiler.EQUALS:     {"sete", "sete"},
	compiler.NOT_EQ:     {"setne", "setne"},
	compiler.LESS:       {"setl", "setb"},
	compiler.GREATER:    {"setg", "seta"},
	compiler.LESS_EQ:    {"setle", "setbe"},
	compiler.GREATER_EQ: {"setge", "setae"},
}

// arith applies op to %eax (of type lt) and %ecx (of type rt).
func (fg *funcGen) arith(op compiler.TokenType, lt, rt *types.Type) error {
	lp, rp := lt.Kind == types.KindPointer, rt.Kind == types.KindPointer
	switch {
	case lp && rp && op == compiler.MINUS:
		sz, err := fg.elemSize(lt)
		if err != nil {
			return err
		}
		fg.emit("subl", "%ecx", "%eax")
		if sz != 1 {
			fg.emit("movl", imm(sz), "%ecx")
			fg.emit("cltd")
			fg.emit("idivl", "%ecx")
		}
		return nil
	case lp && !rp && (op == compiler.PLUS || op == compiler.MINUS):
		sz, err := fg.elemSize(lt)
		if err != nil {
			return err
		}
		if sz != 1 {
			fg.emit("imull", imm(sz), "%ecx", "%ecx")
		}
	case rp && !lp && op == compiler.PLUS:
		sz, err := fg.elemSize(rt)
		if err != nil {
			return err
		}
		if sz != 1 {
			fg.emit("imull", imm(sz), "%eax", "%eax")
		}
	}

	unsigned := fg.isUnsigned(lt) || fg.isUnsigned(rt)
	switch op {
	case compiler.PLUS:
		fg.emit("addl", "%ecx", "%eax")
	case compiler.MINUS:
		fg.emit("subl", "%ecx", "%eax")
	case compiler.STAR:
		fg.emit("imull", "%ecx", "%eax")
	case compiler.SLASH, compiler.PERCENT:
		if unsigned {
			fg.emit("xorl", "%edx", "%edx")
			fg.emit("divl", "%ecx")
		} else {
			fg.emit("cltd")
			fg.emit("idivl", "%ecx")
		}
		if op == compiler.PERCENT {
			fg.emit("movl", "%edx", "%eax")
		}
	case compiler.AND:
		fg.emit("andl", "%ecx", "%eax")
	case compiler.PIPE:
		fg.emit("orl", "%ecx", "%eax")
	case compiler.CARET:
		fg.emit("xorl", "%ecx", "%eax")
	case compiler.SHL_OP:
		fg.emit("sall", "%cl", "%eax")
	case compiler.SHR_OP:
		if fg.isUnsigned(lt) {
			fg.emit("shrl", "%cl", "%eax")
		} else {
			fg.emit("sarl", "%cl", "%eax")
		}
	default:
		cc, ok := setcc[op]
		if !ok {
			return fmt.Errorf("codegen: unknown binary operator %s", compiler.OpText(op))
		}
		fg.emit("cmpl", "%ecx", "%eax")
		if unsigned {
			fg.emit(cc[1], "%al")
		} else {
			fg.emit(cc[0], "%al")
		}
		fg.emit("movzbl", "%al", "%eax")
	}
	return nil
}

// genLogical evaluates && and || with short-circuit jumps.
func (fg *funcGen) genLogical(n *compiler.LogicalExpr) error {
	shortLabel := fg.newLabel()
	endLabel := fg.newLabel()
	jcc, short, long := "je", 0, 1
	if n.Op == compiler.OR_LOGICAL {
		jcc, short, long = "jne", 1, 0
	}
	for _, side := range []compiler.Expr{n.Left, n.Right} {
		if err := fg.genExpr(side); err != nil {
			return err
		}
		fg.emit("testl", "%eax", "%eax")
		fg.branch(jcc, shortLabel)
	}
	fg.emit("movl", imm(long), "%eax")
	fg.jump(endLabel)
	fg.label(shortLabel)
	fg.emit("movl", imm(short), "%eax")
	fg.label(endLabel)
	return nil
}

// genCond jumps to falseLabel when e is zero.
func (fg *funcGen) genCond(e compiler.Expr, falseLabel string) error {
	if err := fg.genExpr(e); err != nil {
		return err
	}
	fg.emit("testl", "%eax", "%eax")
	fg.branch("je", falseLabel)
	return nil
}

func (fg *funcGen) genAssign(n *compiler.AssignExpr) error {
	lt := fg.typeOf(n.Left)
	m, bt, isBits := fg.bitfield(n.Left)

	if n.Op == compiler.ASSIGN {
		if err := fg.genExpr(n.Right); err != nil {
			return err
		}
		fg.push("%eax")
		if err := fg.genAddress(n.Left); err != nil {
			return err
		}
		fg.emit("movl", "%eax", "%ecx")
		fg.pop("%eax")
		if isBits {
			fg.storeBitfield(m, bt)
		} else {
			fg.store(lt, "%ecx")
		}
		return nil
	}

	op, ok := compoundOp[n.Op]
	if !ok {
		return fmt.Errorf("codegen: unknown assignment operator %s", compiler.OpText(n.Op))
	}
	if err := fg.genAddress(n.Left); err != nil {
		return err
	}
	fg.push("%eax")
	if isBits {
		fg.loadBitfield(m, bt, "%eax")
	} else {
		fg.load(lt, "%eax")
	}
	fg.push("%eax")
	if err := fg.genExpr(n.Right); err != nil {
		return err
	}
	fg.emit("movl", "%eax", "%ecx")
	fg.pop("%eax")
	if err := fg.arith(op, lt, fg.typeOf(n.Right)); err != nil {
		return err
	}
	fg.pop("%ecx")
	if isBits {
		fg.storeBitfield(m, bt)
		return nil
	}
	fg.store(lt, "%ecx")
	if fg.sess.SizeOf(lt) < 4 {
		fg.load(lt, "%ecx")
	}
	return nil
}

// directCallee returns the function a call names, if it names one.
func directCallee(e compiler.Expr) *compiler.Symbol {
	for {
		c, ok := e.(*compiler.CastExpr)
		if !ok || !c.Implicit {
			break
		}
		e = c.Expr
	}
	if v, ok := e.(*compiler.VarRef); ok && v.Sym != nil && v.Sym.Kind == compiler.SymFunc {
		return v.Sym
	}
	return nil
}

// genCall pushes the arguments right to left and calls the function; the
// caller pops them afterwards.
func (fg *funcGen) genCall(n *compiler.CallExpr) error {
	if ret := fg.typeOf(n); types.IsCompound(ret) {
		return fmt.Errorf("returning a struct or union by value is not supported by the i386 backend")
	}
	callee := directCallee(n.Func)
	if callee != nil && !callee.Defined {
		switch callee.Name {
		case "__builtin_expect":
			return fg.genExpr(n.Args[0])
		case "__builtin_trap":
			fg.emit("ud2")
			return nil
		case "__builtin_alloca":
			return fg.alloca(n.Args[0])
		}
	}

	bytes := 0
	for i := len(n.Args) - 1; i >= 0; i-- {
		a := n.Args[i]
		at := fg.typeOf(a)
		if err := fg.genExpr(a); err != nil {
			return err
		}
		if types.IsCompound(at) {
			sz := alignTo(fg.sess.SizeOf(at), 4)
			fg.emit("subl", imm(sz), "%esp")
			fg.depth += sz
			fg.emit("movl", "%esp", "%ecx")
			fg.copy(fg.sess.SizeOf(at), "%ecx")
			bytes += sz
			continue
		}
		fg.push("%eax")
		bytes += 4
	}

	if callee != nil {
		fg.emit("call", calleeName(callee))
	} else {
		if err := fg.genExpr(n.Func); err != nil {
			return err
		}
		fg.emit("call", "*%eax")
	}
	if bytes > 0 {
		fg.emit("addl", imm(bytes), "%esp")
		fg.depth -= bytes
	}
	if t := fg.typeOf(n); !isVoid(t) {
		fg.convert(t)
	}
	return nil
}

func (fg *funcGen) alloca(size compiler.Expr) error {
	switch {
	case fg.g.opts.OmitFramePointer:
		return fmt.Errorf("__builtin_alloca needs a frame pointer")
	case fg.depth != 0:
		return fmt.Errorf("__builtin_alloca inside an argument list is not supported by the i386 backend")
	}
	if err := fg.genExpr(size); err != nil {
		return err
	}
	fg.emit("addl", imm(3), "%eax")
	fg.emit("andl", imm(-4), "%eax")
	fg.emit("subl", "%eax", "%esp")
	fg.emit("movl", "%esp", "%eax")
	return nil
}

func (fg *funcGen) genStmt(s compiler.Stmt) error {
	switch n := s.(type) {
	case nil, *compiler.EmptyStmt, *compiler.TypedefStmt, *compiler.TagDecl, *compiler.FunctionDecl:

	case *compiler.BlockStmt:
		for _, child := range n.Stmts {
			if err := fg.genStmt(child); err != nil {
				return err
			}
		}

	case *compiler.DeclStmt:
		for _, d := range n.Decls {
			if err := fg.genLocal(d); err != nil {
				return err
			}
		}

	case *compiler.VariableDecl:
		return fg.genLocal(n)

	case *compiler.ExprStmt:
		return fg.genExpr(n.Expr)

	case *compiler.ReturnStmt:
		if n.Expr != nil {
			if err := fg.genExpr(n.Expr); err != nil {
				return err
			}
		}
		fg.jump(fg.exit)

	case *compiler.IfStmt:
		elseLabel := fg.newLabel()
		if err := fg.genCond(n.Condition, elseLabel); err != nil {
			return err
		}
		if err := fg.genStmt(n.Body); err != nil {
			return err
		}
		if n.ElseBody == nil {
			fg.label(elseLabel)
			return nil
		}
		endLabel := fg.newLabel()
		fg.jump(endLabel)
		fg.label(elseLabel)
		if err := fg.genStmt(n.ElseBody); err != nil {
			return err
		}
		fg.label(endLabel)

	case *compiler.WhileStmt:
		startLabel := fg.newLabel()
		endLabel := fg.newLabel()
		fg.label(startLabel)
		if err := fg.genCond(n.Condition, endLabel); err != nil {
			return err
		}
		if err := fg.loop(loopLabel{End: endLabel, Post: startLabel}, n.Body); err != nil {
			return err
		}
		fg.jump(startLabel)
		fg.label(endLabel)

	case *compiler.DoWhileStmt:
		startLabel := fg.newLabel()
		postLabel := fg.newLabel()
		endLabel := fg.newLabel()
		fg.label(startLabel)
		if err := fg.loop(loopLabel{End: endLabel, Post: postLabel}, n.Body); err != nil {
			return err
		}
		fg.label(postLabel)
		if err := fg.genExpr(n.Condition); err != nil {
			return err
		}
		fg.emit("testl", "%eax", "%eax")
		fg.branch("jne", startLabel)
		fg.label(endLabel)

	case *compiler.ForStmt:
		if err := fg.genStmt(n.Init); err != nil {
			return err
		}
		startLabel := fg.newLabel()
		postLabel := fg.newLabel()
		endLabel := fg.newLabel()
		fg.label(startLabel)
		if n.Cond != nil {
			if err := fg.genCond(n.Cond, endLabel); err != nil {
				return err
			}
		}
		if err := fg.loop(loopLabel{End: endLabel, Post: postLabel}, n.Body); err != nil {
			return err
		}
		fg.label(postLabel)
		if n.Post != nil {
			if err := fg.genExpr(n.Post); err != nil {
				return err
			}
		}
		fg.jump(startLabel)
		fg.label(endLabel)

	case *compiler.SwitchStmt:
		return fg.genSwitch(n)

	case *compiler.BreakStmt:
		if len(fg.loopStack) == 0 {
			return fmt.Errorf("break statement not within loop or switch")
		}
		fg.jump(fg.loopStack[len(fg.loopStack)-1].End)

	case *compiler.ContinueStmt:
		for i := len(fg.loopStack) - 1; i >= 0; i-- {
			if post := fg.loopStack[i].Post; post != "" {
				fg.jump(post)
				return nil
			}
		}
		return fmt.Errorf("continue statement not within a loop")

	case *compiler.GotoStmt:
		fg.jump(fg.userLabel(n.Label))

	case *compiler.LabeledStmt:
		fg.label(fg.userLabel(n.Label))
		return fg.genStmt(n.Body)

	case *compiler.AsmStmt:
		for _, l := range strings.Split(n.Instruction, "\n") {
			if l = strings.TrimSpace(l); l != "" {
				fg.emit(l)
			}
		}

	default:
		return fmt.Errorf("codegen: unknown statement node %T", s)
	}
	return nil
}

// loop lowers body with break and continue bound to l.
func (fg *funcGen) loop(l loopLabel, body compiler.Stmt) error {
	fg.loopStack = append(fg.loopStack, l)
	defer func() { fg.loopStack = fg.loopStack[:len(fg.loopStack)-1] }()
	return fg.genStmt(body)
}

// genSwitch compares the target against every case value in turn, then
// lays the clause bodies out in source order so control falls through.
func (fg *funcGen) genSwitch(n *compiler.SwitchStmt) error {
	endLabel := fg.newLabel()
	if err := fg.genExpr(n.Target); err != nil {
		return err
	}
	clauseLabels := make([]string, len(n.Clauses))
	defaultLabel := endLabel
	for i, c := range n.Clauses {
		clauseLabels[i] = fg.newLabel()
		if c.IsDefault {
			defaultLabel = clauseLabels[i]
			continue
		}
		fg.emit("cmpl", imm(int64(int32(c.Const))), "%eax")
		fg.branch("je", clauseLabels[i])
	}
	fg.jump(defaultLabel)

	fg.loopStack = append(fg.loopStack, loopLabel{End: endLabel})
	defer func() { fg.loopStack = fg.loopStack[:len(fg.loopStack)-1] }()
	for i, c := range n.Clauses {
		fg.label(clauseLabels[i])
		for _, stmt := range c.Body {
			if err := fg.genStmt(stmt); err != nil {
				return err
			}
		}
	}
	fg.label(endLabel)
	return nil
}

// genLocal initializes a block-scope object. Static ones get their own
// label in the data section.
func (fg *funcGen) genLocal(d *compiler.VariableDecl) error {
	switch d.Storage {
	case compiler.StorageExtern:
		return nil
	case compiler.StorageStatic:
		label := fmt.Sprintf("%s.%d", d.Name, fg.g.labels)
		fg.g.labels++
		fg.g.statics[d.Sym] = label
		if d.Init == nil {
			return fg.g.common(label, d.Type, true)
		}
		return fg.g.defineGlobal(d, label, false)
	}
	if d.Init == nil {
		return nil
	}
	off, ok := fg.slots[d.Sym]
	if !ok {
		panic(fmt.Sprintf("backend: no frame slot for '%s'", d.Name))
	}
	t := fg.g.resolve(d.Type)
	switch d.Init.(type) {
	case *compiler.InitializerList:
		fg.zero(off, fg.sess.SizeOf(t))
	case *compiler.StringLiteral:
		if t.Kind == types.KindArray {
			fg.zero(off, fg.sess.SizeOf(t))
		}
	}
	return fg.fill(off, t, d.Init)
}

// fill stores init into the zeroed frame object of type t at off.
func (fg *funcGen) fill(off int, t *types.Type, init compiler.Expr) error {
	t = fg.g.resolve(t)
	if s, ok := init.(*compiler.StringLiteral); ok && t.Kind == types.KindArray {
		n := min(len(s.Value)+1, t.Size)
		if n == 0 {
			return nil
		}
		fg.emit("movl", "$"+fg.g.stringLabel(s.Value), "%eax")
		fg.emit("leal", fg.slot(off), "%ecx")
		fg.copy(n, "%ecx")
		return nil
	}

	list, ok := init.(*compiler.InitializerList)
	if !ok {
		if err := fg.genExpr(init); err != nil {
			return err
		}
		fg.emit("leal", fg.slot(off), "%ecx")
		fg.store(t, "%ecx")
		return nil
	}

	switch {
	case t.Kind == types.KindArray:
		esz := fg.sess.SizeOf(t.Element)
		for i, el := range list.Elements {
			if i == t.Size {
				break
			}
			if err := fg.fill(off+i*esz, t.Element, el); err != nil {
				return err
			}
		}
	case types.IsCompound(t):
		fg.sess.Layout(t.Compound)
		for i, el := range list.Elements {
			if i == len(t.Compound.Members) || (t.Compound.Union && i > 0) {
				break
			}
			m := t.Compound.Members[i]
			if bt := fg.g.resolve(m.Type); bt.Kind == types.KindBitfield {
				if err := fg.genExpr(el); err != nil {
					return err
				}
				fg.emit("leal", fg.slot(off+m.Offset), "%ecx")
				fg.storeBitfield(m, bt)
				continue
			}
			if err := fg.fill(off+m.Offset, m.Type, el); err != nil {
				return err
			}
		}
	default:
		if len(list.Elements) > 0 {
			return fg.fill(off, t, list.Elements[0])
		}
	}
	return nil
}
