package backend

import (
	"fmt"
	"io"
	"strings"
)

// WriteVCG writes the block graph of fn in the VCG format read by xvcg
// and aiSee: one node per block labelled with its instructions, and one
// edge per possible transfer of control.
func WriteVCG(w io.Writer, fn *Function) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "graph: {\n\ttitle: %q\n", fn.Name)
	sb.WriteString("\tlayoutalgorithm: minbackward\n\tdisplay_edge_labels: yes\n")

	for _, b := range fn.Blocks {
		fmt.Fprintf(&sb, "\tnode: { title: %q label: \"%s\" }\n", nodeTitle(fn, b), vcgEscape(blockText(b)))
	}
	for _, b := range fn.Blocks {
		succs := fn.Successors(b)
		for i, s := range succs {
			label := ""
			if b.Term.Kind == TermBranch {
				label = "taken"
				if i == 1 {
					label = "fallthrough"
				}
			}
			fmt.Fprintf(&sb, "\tedge: { sourcename: %q targetname: %q", nodeTitle(fn, b), nodeTitle(fn, s))
			if label != "" {
				fmt.Fprintf(&sb, " label: %q", label)
			}
			sb.WriteString(" }\n")
		}
	}
	sb.WriteString("}\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func nodeTitle(fn *Function, b *Block) string {
	return fmt.Sprintf("%s.%d", fn.Name, b.index)
}

func blockText(b *Block) string {
	var lines []string
	if b.Label != "" {
		lines = append(lines, b.Label+":")
	}
	for _, in := range b.Instrs {
		lines = append(lines, in.String())
	}
	switch b.Term.Kind {
	case TermJump:
		lines = append(lines, "jmp "+b.Term.Target)
	case TermBranch:
		lines = append(lines, b.Term.Op+" "+b.Term.Target)
	case TermReturn:
		lines = append(lines, "ret")
	}
	return strings.Join(lines, "\n")
}

// vcgEscape quotes s for a VCG string, where newlines are written \n.
func vcgEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return r.Replace(s)
}
