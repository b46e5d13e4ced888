package compiler

import (
	"errors"
	"fmt"
	"io"
)

// PosError is an input error tied to a source position.
type PosError struct {
	File string
	Line int
	Msg  string
}

func (e *PosError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// Diagnostics counts the errors and warnings found in a translation unit and
// writes each one to w as it is reported.
type Diagnostics struct {
	w          io.Writer
	errorCount int
	warnCount  int

	// Quiet suppresses printing of warnings; they are still counted.
	Quiet bool
	// Strict reports every warning as an error.
	Strict bool
}

// NewDiagnostics returns a Diagnostics printing to w. A nil w discards the
// messages.
func NewDiagnostics(w io.Writer) *Diagnostics {
	if w == nil {
		w = io.Discard
	}
	return &Diagnostics{w: w}
}

func where(file string, line int) string {
	if file == "" {
		file = "<stdin>"
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// Errorf reports an error at tok.
func (d *Diagnostics) Errorf(tok Token, format string, args ...any) {
	d.errorCount++
	fmt.Fprintf(d.w, "%s: error: %s\n", where(tok.File, tok.Line), fmt.Sprintf(format, args...))
}

// Warnf reports a warning at tok.
func (d *Diagnostics) Warnf(tok Token, format string, args ...any) {
	if d.Strict {
		d.Errorf(tok, format, args...)
		return
	}
	d.warnCount++
	if d.Quiet {
		return
	}
	fmt.Fprintf(d.w, "%s: warning: %s\n", where(tok.File, tok.Line), fmt.Sprintf(format, args...))
}

// Report records err as an error, using its position when it has one.
func (d *Diagnostics) Report(err error) {
	var pe *PosError
	if errors.As(err, &pe) {
		d.Errorf(Token{File: pe.File, Line: pe.Line}, "%s", pe.Msg)
		return
	}
	d.errorCount++
	fmt.Fprintf(d.w, "error: %v\n", err)
}

// HasErrors returns true if any error was reported.
func (d *Diagnostics) HasErrors() bool { return d.errorCount > 0 }

// ErrorCount returns the number of errors.
func (d *Diagnostics) ErrorCount() int { return d.errorCount }

// WarningCount returns the number of warnings.
func (d *Diagnostics) WarningCount() int { return d.warnCount }

// Summary returns the closing count line, or "" when nothing was reported.
func (d *Diagnostics) Summary() string {
	switch {
	case d.errorCount > 0:
		return fmt.Sprintf("%d error(s), %d warning(s)", d.errorCount, d.warnCount)
	case d.warnCount > 0:
		return fmt.Sprintf("%d warning(s)", d.warnCount)
	}
	return ""
}
