package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ErrCommandFailed is matched by every error returned from a failed git invocation.
var ErrCommandFailed = errors.New("git command failed")

// Runner runs git subcommands.
//
// dir is the repository the command operates on; an empty dir runs the
// command without -C, which is only meaningful for commands such as init
// that take their target as an argument.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) ([]byte, error)
}

// CommandError describes a git invocation that did not exit cleanly.
type CommandError struct {
	Args     []string
	Dir      string
	ExitCode int // -1 when the process did not start or was killed
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

// Unwrap exposes both ErrCommandFailed and the underlying cause.
func (e *CommandError) Unwrap() []error {
	return []error{ErrCommandFailed, e.Err}
}

// ObserveFunc is called after every command with its duration and result.
type ObserveFunc func(ctx context.Context, args []string, elapsed time.Duration, err error)

// ExecRunner runs git as an external process.
type ExecRunner struct {
	binary  string
	timeout time.Duration
	observe ObserveFunc
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithTimeout bounds each command. Zero disables the per-command timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *ExecRunner) {
		r.timeout = d
	}
}

// WithObserver registers a callback invoked after each command.
func WithObserver(fn ObserveFunc) Option {
	return func(r *ExecRunner) {
		r.observe = fn
	}
}

// NewExecRunner creates a runner for the given git binary ("git" if empty).
func NewExecRunner(binary string, opts ...Option) *ExecRunner {
	if binary == "" {
		binary = "git"
	}
	r := &ExecRunner{binary: binary}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes git with args in dir and returns its combined output.
func (r *ExecRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	full := args
	if dir != "" {
		full = append([]string{"-C", dir}, args...)
	}

	cmd := exec.CommandContext(ctx, r.binary, full...)
	// Never block on a credential prompt; force stable, parseable output.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")

	start := time.Now()
	out, err := cmd.CombinedOutput()
	if err != nil {
		err = r.commandError(ctx, dir, args, out, err)
	}
	if r.observe != nil {
		r.observe(ctx, args, time.Since(start), err)
	}
	if err != nil {
		return out, err
	}
	return out, nil
}

func (r *ExecRunner) commandError(ctx context.Context, dir string, args []string, out []byte, err error) *CommandError {
	cerr := &CommandError{
		Args:     args,
		Dir:      dir,
		ExitCode: -1,
		Output:   strings.TrimSpace(string(out)),
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cerr.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		cerr.Err = fmt.Errorf("%w (%v)", ctxErr, err)
	}
	return cerr
}
