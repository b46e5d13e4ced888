package backend

import (
	"fmt"
	"strings"
)

// Instr is one assembly instruction in AT&T syntax.
type Instr struct {
	Op   string
	Args []string // source first
}

func (i Instr) String() string {
	if len(i.Args) == 0 {
		return i.Op
	}
	return fmt.Sprintf("%-6s %s", i.Op, strings.Join(i.Args, ", "))
}

// TermKind says how control leaves a block.
type TermKind int

const (
	TermFall   TermKind = iota // continue with the next block
	TermJump                   // unconditional jump to Target
	TermBranch                 // conditional jump Op to Target, else fall through
	TermReturn                 // function epilogue
)

// Terminator ends a block.
type Terminator struct {
	Kind   TermKind
	Op     string // jcc mnemonic for TermBranch
	Target string
}

// Block is a straight-line run of instructions with a single entry.
type Block struct {
	Label  string // empty for blocks only reached by fall through
	Instrs []Instr
	Term   Terminator

	index int
}

func (b *Block) empty() bool {
	return b.Label == "" && len(b.Instrs) == 0 && b.Term.Kind == TermFall
}

// Function is the lowered form of one function definition.
type Function struct {
	Name      string
	Global    bool
	FrameSize int // bytes of locals below the return address
	Blocks    []*Block
}

// prune drops empty blocks, which the lowering leaves behind after jumps.
func (f *Function) prune() {
	out := f.Blocks[:0]
	for _, b := range f.Blocks {
		if !b.empty() {
			out = append(out, b)
		}
	}
	f.Blocks = out
	for i, b := range f.Blocks {
		b.index = i
	}
}

// Successors returns the blocks control can reach directly from b.
func (f *Function) Successors(b *Block) []*Block {
	var next *Block
	if b.index+1 < len(f.Blocks) {
		next = f.Blocks[b.index+1]
	}
	byLabel := func(l string) *Block {
		for _, c := range f.Blocks {
			if c.Label == l {
				return c
			}
		}
		return nil
	}
	var out []*Block
	switch b.Term.Kind {
	case TermFall:
		if next != nil {
			out = append(out, next)
		}
	case TermJump:
		if t := byLabel(b.Term.Target); t != nil {
			out = append(out, t)
		}
	case TermBranch:
		if t := byLabel(b.Term.Target); t != nil {
			out = append(out, t)
		}
		if next != nil {
			out = append(out, next)
		}
	}
	return out
}

// builder appends instructions to the function being lowered.
type builder struct {
	fn  *Function
	cur *Block
}

func newBuilder(fn *Function) *builder {
	b := &builder{fn: fn}
	b.start("")
	return b
}

func (b *builder) start(label string) {
	b.cur = &Block{Label: label}
	b.fn.Blocks = append(b.fn.Blocks, b.cur)
}

// emit appends one instruction to the current block.
func (b *builder) emit(op string, args ...string) {
	b.cur.Instrs = append(b.cur.Instrs, Instr{Op: op, Args: args})
}

// label starts a new block named l; the previous one falls into it.
func (b *builder) label(l string) {
	b.start(l)
}

func (b *builder) jump(target string) {
	b.cur.Term = Terminator{Kind: TermJump, Target: target}
	b.start("")
}

func (b *builder) branch(op, target string) {
	b.cur.Term = Terminator{Kind: TermBranch, Op: op, Target: target}
	b.start("")
}

func (b *builder) ret() {
	b.cur.Term = Terminator{Kind: TermReturn}
	b.start("")
}
