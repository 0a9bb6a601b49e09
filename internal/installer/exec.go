package installer

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"setup-capabilities/internal/errors"
	"setup-capabilities/internal/logger"
)

// Runner starts an external command and waits for it to exit.
// Implementations must return a *CommandError (wrapped as ErrCommand) for
// non-zero exits so the captured output reaches the user.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// CommandError describes a failed child process.
type CommandError struct {
	Command  []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	var b strings.Builder
	b.WriteString("Command failed!\n")
	fmt.Fprintf(&b, "  command: %s\n", strings.Join(e.Command, " "))
	fmt.Fprintf(&b, "  returncode: %d\n", e.ExitCode)
	if e.Err != nil && e.ExitCode < 0 {
		fmt.Fprintf(&b, "  error: %v\n", e.Err)
	}
	fmt.Fprintf(&b, "  stdout:\n\n%s\n", e.Stdout)
	fmt.Fprintf(&b, "  stderr:\n\n%s\n", e.Stderr)
	return b.String()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// waitDelay bounds how long Run waits for output pipes after the context is
// cancelled and the child killed. Grandchildren that inherited the pipes
// would otherwise keep Run blocked.
const waitDelay = 2 * time.Second

// ExecRunner runs commands with os/exec, capturing stdout and stderr.
// There is no timeout; a command that never exits blocks the run.
type ExecRunner struct {
	Log *logger.Logger
}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner(log *logger.Logger) *ExecRunner {
	return &ExecRunner{Log: log}
}

// Run executes name with args. Output is logged at debug level on success and
// carried in the returned error on failure.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	r.Log.Tracef("run")

	command := append([]string{name}, args...)
	r.Log.Debugf("Running command: %s", strings.Join(command, " "))

	cmd := exec.CommandContext(ctx, name, args...) // killed when ctx is cancelled (Ctrl-C)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return errors.Wrapf(&CommandError{
			Command:  command,
			ExitCode: exitCode,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Err:      err,
		}, errors.ErrCommand, "running %s", name)
	}

	msg := "Command succeeded!"
	if stdout.Len() > 0 {
		msg += fmt.Sprintf("\n  stdout:\n\n%s\n", stdout.String())
	}
	if stderr.Len() > 0 {
		msg += fmt.Sprintf("\n  stderr:\n\n%s\n", stderr.String())
	}
	r.Log.Debugf("%s", msg)
	return nil
}
