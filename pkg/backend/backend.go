// Package backend lowers a checked translation unit to machine code. The
// built-in implementation targets 32-bit x86 and writes GNU as syntax.
//
// Lowering happens in two steps: each live function becomes a list of
// basic blocks of AT&T instructions (see Function), and Finish writes the
// blocks together with the unit's data as one assembly file.
package backend

import (
	"fmt"
	"io"
	"strings"

	"cfront/pkg/compiler"
	"cfront/pkg/types"
)

// Service is what the driver needs from a code generator.
type Service interface {
	// Lower translates every live function and object of unit.
	Lower(unit *compiler.TranslationUnit) error
	// DumpFunction writes the block graph of a lowered function as VCG.
	DumpFunction(name string, w io.Writer) error
	// Finish writes the assembly for everything lowered so far. input
	// names the source file in the output.
	Finish(w io.Writer, input string) error
}

// Options tune code generation.
type Options struct {
	OmitFramePointer bool   // address the frame through %esp and keep %ebp free
	Arch             string // -march; empty means i386
	Tune             string // -mtune
	FPMath           string // -mfpmath; 387 or sse
	StackBoundary    int    // frames are aligned to 1<<StackBoundary bytes; 0 means 2
	Debug            bool   // emit symbol type and size directives
	Profile          bool   // call mcount on entry to every function
}

var knownArchs = map[string]bool{
	"i386": true, "i486": true, "i586": true, "i686": true,
	"pentium": true, "pentium-mmx": true, "pentiumpro": true,
	"pentium2": true, "pentium3": true, "pentium4": true,
	"k6": true, "athlon": true, "native": true, "generic": true,
}

// I386 is the built-in Service.
type I386 struct {
	sess *types.Session
	opts Options

	funcs   []*Function
	data    []string // .data lines
	rodata  []string // .section .rodata lines
	bss     []string // .comm and .local lines
	strings map[string]string
	statics map[*compiler.Symbol]string // static locals to their labels
	defined map[*compiler.Symbol]bool
	labels  int
}

// New returns the i386 code generator for types in sess.
func New(sess *types.Session, opts Options) (*I386, error) {
	if opts.Arch != "" && !knownArchs[opts.Arch] {
		return nil, fmt.Errorf("bad value (%s) for -march= switch", opts.Arch)
	}
	if opts.Tune != "" && !knownArchs[opts.Tune] {
		return nil, fmt.Errorf("bad value (%s) for -mtune= switch", opts.Tune)
	}
	switch opts.FPMath {
	case "", "387", "sse":
	default:
		return nil, fmt.Errorf("bad value (%s) for -mfpmath= switch", opts.FPMath)
	}
	if opts.StackBoundary == 0 {
		opts.StackBoundary = 2
	}
	if opts.StackBoundary < 2 || opts.StackBoundary > 12 {
		return nil, fmt.Errorf("-mpreferred-stack-boundary=%d is not between 2 and 12", opts.StackBoundary)
	}
	if sess.Target().PointerSize() != 4 {
		return nil, fmt.Errorf("the i386 backend needs a 32-bit target, not %d-bit", sess.Target().PointerSize()*8)
	}
	return &I386{
		sess:    sess,
		opts:    opts,
		strings: make(map[string]string),
		statics: make(map[*compiler.Symbol]string),
		defined: make(map[*compiler.Symbol]bool),
	}, nil
}

func (g *I386) newLabel() string {
	l := fmt.Sprintf(".L%d", g.labels)
	g.labels++
	return l
}

// stringLabel returns the read-only label holding s, adding it once.
func (g *I386) stringLabel(s string) string {
	if l, ok := g.strings[s]; ok {
		return l
	}
	l := fmt.Sprintf(".LC%d", len(g.strings))
	g.strings[s] = l
	g.rodata = append(g.rodata, l+":", "\t.string "+quote(s))
	return l
}

// Lower implements Service.
func (g *I386) Lower(unit *compiler.TranslationUnit) error {
	if err := g.globals(unit); err != nil {
		return err
	}

	for _, f := range liveFunctions(unit) {
		fn, err := g.lowerFunction(f)
		if err != nil {
			return fmt.Errorf("in function '%s': %w", f.Name, err)
		}
		g.funcs = append(g.funcs, fn)
	}
	return nil
}

// Function returns the lowered function called name.
func (g *I386) Function(name string) (*Function, bool) {
	for _, f := range g.funcs {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// DumpFunction implements Service.
func (g *I386) DumpFunction(name string, w io.Writer) error {
	fn, ok := g.Function(name)
	if !ok {
		return fmt.Errorf("function '%s' not found", name)
	}
	return WriteVCG(w, fn)
}

// Finish implements Service.
func (g *I386) Finish(w io.Writer, input string) error {
	var sb strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&sb, format+"\n", args...)
	}

	line("\t.file\t%s", quote(input))
	arch, tune := g.opts.Arch, g.opts.Tune
	if arch == "" {
		arch = "i386"
	}
	if tune == "" {
		tune = "generic"
	}
	line("# -march=%s -mtune=%s", arch, tune)

	if len(g.funcs) > 0 {
		line("\t.text")
	}
	for _, fn := range g.funcs {
		if fn.Global {
			line("\t.globl\t%s", fn.Name)
		}
		if g.opts.Debug {
			line("\t.type\t%s, @function", fn.Name)
		}
		line("%s:", fn.Name)
		for _, b := range fn.Blocks {
			g.writeBlock(&sb, fn, b)
		}
		if g.opts.Debug {
			line("\t.size\t%s, .-%s", fn.Name, fn.Name)
		}
	}
	if len(g.rodata) > 0 {
		line("\t.section\t.rodata")
		for _, l := range g.rodata {
			line("%s", l)
		}
	}
	if len(g.data) > 0 {
		line("\t.data")
		for _, l := range g.data {
			line("%s", l)
		}
	}
	for _, l := range g.bss {
		line("%s", l)
	}
	line("\t.section\t.note.GNU-stack,\"\",@progbits")

	_, err := io.WriteString(w, sb.String())
	return err
}

func (g *I386) writeBlock(sb *strings.Builder, fn *Function, b *Block) {
	if b.Label != "" {
		fmt.Fprintf(sb, "%s:\n", b.Label)
	}
	for _, in := range b.Instrs {
		fmt.Fprintf(sb, "\t%s\n", in)
	}
	switch b.Term.Kind {
	case TermJump:
		fmt.Fprintf(sb, "\tjmp    %s\n", b.Term.Target)
	case TermBranch:
		fmt.Fprintf(sb, "\t%-6s %s\n", b.Term.Op, b.Term.Target)
	case TermReturn:
		for _, in := range g.epilogue(fn) {
			fmt.Fprintf(sb, "\t%s\n", in)
		}
	}
}

func (g *I386) epilogue(fn *Function) []Instr {
	if !g.opts.OmitFramePointer {
		return []Instr{{Op: "leave"}, {Op: "ret"}}
	}
	var out []Instr
	if fn.FrameSize > 0 {
		out = append(out, Instr{Op: "addl", Args: []string{imm(fn.FrameSize), "%esp"}})
	}
	return append(out, Instr{Op: "ret"})
}

func imm[T ~int | ~int64](v T) string {
	return fmt.Sprintf("$%d", v)
}

// quote renders s as a GNU as string literal.
func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&sb, "\\%03o", c)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
