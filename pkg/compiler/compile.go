package compiler

import (
	"fmt"
	"io"

	"cfront/pkg/types"
)

// Options configure Compile.
type Options struct {
	Dialect  types.Dialect
	Builtins bool // parse the builtin declarations first
	Quiet    bool // count warnings without printing them
	Strict   bool // treat warnings as errors

	// Preprocess runs the builtin preprocessor over the source first. Nil
	// means the source is already preprocessed.
	Preprocess *PreprocessOptions
}

// Compile preprocesses and parses src, the text of the file called name,
// into a translation unit whose types live in sess. Diagnostics are
// written to diagOut as they are found. The returned error is non-nil when
// preprocessing fails or the source has errors; the unit is returned in
// both cases so callers can still inspect it.
func Compile(sess *types.Session, name, src string, opts Options, diagOut io.Writer) (*TranslationUnit, *Diagnostics, error) {
	diag := NewDiagnostics(diagOut)
	diag.Quiet = opts.Quiet
	diag.Strict = opts.Strict
	if opts.Preprocess != nil {
		out, err := Preprocess(name, src, *opts.Preprocess)
		if err != nil {
			return nil, diag, fmt.Errorf("preprocess: %w", err)
		}
		src = out
	}

	p := NewParser(sess, diag, opts.Dialect)
	if opts.Builtins {
		p.ParseBuiltins()
	}
	p.ParseSource(name, src)
	unit := p.Finish()
	if diag.HasErrors() {
		return unit, diag, fmt.Errorf("%s: %s", name, diag.Summary())
	}
	return unit, diag, nil
}
