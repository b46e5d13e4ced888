package compiler

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiagnostics(t *testing.T) {
	var out bytes.Buffer
	d := NewDiagnostics(&out)
	assert.Equal(t, "", d.Summary())

	d.Warnf(Token{File: "a.c", Line: 3}, "unused %s", "x")
	assert.Equal(t, "1 warning(s)", d.Summary())
	assert.False(t, d.HasErrors())

	d.Errorf(Token{Line: 7}, "bad thing")
	d.Report(&PosError{File: "b.h", Line: 2, Msg: "syntax"})
	d.Report(errors.New("plain"))

	assert.True(t, d.HasErrors())
	assert.Equal(t, 3, d.ErrorCount())
	assert.Equal(t, 1, d.WarningCount())
	assert.Equal(t, "3 error(s), 1 warning(s)", d.Summary())
	assert.Equal(t,
		"a.c:3: warning: unused x\n"+
			"<stdin>:7: error: bad thing\n"+
			"b.h:2: error: syntax\n"+
			"error: plain\n",
		out.String())
}

func TestDiagnosticsQuiet(t *testing.T) {
	var out bytes.Buffer
	d := NewDiagnostics(&out)
	d.Quiet = true
	d.Warnf(Token{Line: 1}, "hidden")
	assert.Empty(t, out.String())
	assert.Equal(t, 1, d.WarningCount())

	d.Errorf(Token{Line: 1}, "shown")
	assert.Equal(t, "<stdin>:1: error: shown\n", out.String())
}

func TestDiagnosticsNilWriter(t *testing.T) {
	d := NewDiagnostics(nil)
	d.Errorf(Token{Line: 1}, "dropped")
	assert.Equal(t, 1, d.ErrorCount())
}

func TestPosError(t *testing.T) {
	assert.Equal(t, "line 4: oops", (&PosError{Line: 4, Msg: "oops"}).Error())
	assert.Equal(t, "x.c:4: oops", (&PosError{File: "x.c", Line: 4, Msg: "oops"}).Error())
}

func TestDiagnosticsStrict(t *testing.T) {
	var out bytes.Buffer
	d := NewDiagnostics(&out)
	d.Strict = true
	d.Warnf(Token{File: "s.c", Line: 2}, "promoted")
	assert.Equal(t, 1, d.ErrorCount())
	assert.Equal(t, 0, d.WarningCount())
	assert.Equal(t, "s.c:2: error: promoted\n", out.String())
}
