package driver

import (
	"context"
	"io"
	"os/exec"
	"strconv"

	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
)

// Command is one invocation of an external tool.
type Command struct {
	Tool   string // preprocessor, assembler or linker
	Args   []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (c Command) String() string {
	return shellquote.Join(c.Args...)
}

// Runner runs external tools. It blocks until the tool exits.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands as child processes.
type ExecRunner struct{}

// Run implements Runner. A tool that exits with a non-zero status gives an
// *ExitError carrying the status.
func (ExecRunner) Run(ctx context.Context, c Command) error {
	if len(c.Args) == 0 {
		return errors.Errorf("empty %s command", c.Tool)
	}
	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	err := cmd.Run()
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return &ExitError{Code: ee.ExitCode(), Err: errors.Errorf("%s exited with status %d", c.Tool, ee.ExitCode())}
	}
	return errors.Wrapf(err, "invoking %s", c.Tool)
}

// ExitError ends a run with Code. Err, when set, is reported to the user.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "exit status " + strconv.Itoa(e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }
