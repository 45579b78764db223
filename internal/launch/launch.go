package launch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/cruciblehq/husk/internal/sandbox"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Where and what to launch. Implemented by [*sandbox.Sealed].
type Target interface {
	Command() string   // In-root path of the command, or a name looked up on the child's PATH.
	ChildRoot() string // Directory to root the child in, or "" if the caller already is.
}

var _ Target = (*sandbox.Sealed)(nil)

// Configures a launch.
type Options struct {
	Args      []string // Arguments following the command.
	Env       []string // Image environment, layered over the host's.
	Overrides []string // KEY=VALUE entries applied last.
	Strict    bool     // Fail instead of running without a PID namespace.
}

// Outcome of a finished command.
type Result struct {
	Stdout    []byte         // Captured standard output.
	Stderr    []byte         // Captured standard error.
	ExitCode  int            // Exit code, or -1 when the child had none.
	Signal    syscall.Signal // Terminating signal, or 0.
	Isolation Isolation      // PID namespace outcome.
}

// Returns the status the launcher should exit with.
//
// This is the child's exit code when it exited normally, 128 plus the
// signal number when a signal terminated it, and 1 otherwise.
func (r *Result) Status() int {
	if r.ExitCode >= 0 {
		return r.ExitCode
	}
	if r.Signal != 0 {
		return 128 + int(r.Signal)
	}
	return 1
}

// Runs the target's command and waits for it to finish.
//
// The child starts in "/" of the root with the host environment, then
// opts.Env, then opts.Overrides. A command name without a slash is looked up
// on that environment's PATH inside the root. A non-zero exit is not an
// error; inspect the result. Cancelling ctx kills the child and fails with
// the context's error.
func Run(ctx context.Context, target Target, opts Options) (*Result, error) {
	proc := buildProcessSpec(target.Command(), opts)

	root := target.ChildRoot()
	if root == "" {
		root = "/"
	}
	path, err := lookPath(root, proc.Args[0], proc.Env)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	newCmd := func() *exec.Cmd {
		cmd := exec.CommandContext(ctx, path, proc.Args[1:]...)
		cmd.Args = proc.Args
		cmd.Dir = proc.Cwd
		cmd.Env = proc.Env
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		return cmd
	}

	slog.Debug("launching command", "path", path, "args", proc.Args, "cwd", proc.Cwd, "childRoot", target.ChildRoot())

	cmd, iso, err := start(newCmd, target.ChildRoot(), opts.Strict)
	if err != nil {
		return nil, err
	}

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, ctx.Err())
	}
	if cmd.ProcessState == nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, waitErr)
	}

	result := &Result{
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		ExitCode:  cmd.ProcessState.ExitCode(),
		Isolation: iso,
	}
	if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		result.Signal = ws.Signal()
	}

	slog.Debug("command finished",
		"exitCode", result.ExitCode,
		"signal", int(result.Signal),
		"isolation", iso.State.String(),
	)
	return result, nil
}

// Writes captured output to stdout and stderr, byte for byte.
//
// Both streams are checked before anything is written, so invalid UTF-8 in
// either produces no output and fails with [ErrEncoding].
func Relay(r *Result, stdout, stderr io.Writer) error {
	if !utf8.Valid(r.Stdout) {
		return fmt.Errorf("%w: standard output", ErrEncoding)
	}
	if !utf8.Valid(r.Stderr) {
		return fmt.Errorf("%w: standard error", ErrEncoding)
	}

	if _, err := stdout.Write(r.Stdout); err != nil {
		return fmt.Errorf("%w: writing standard output: %w", ErrLaunch, err)
	}
	if _, err := stderr.Write(r.Stderr); err != nil {
		return fmt.Errorf("%w: writing standard error: %w", ErrLaunch, err)
	}
	return nil
}

// Builds the OCI process description for command inside the root.
func buildProcessSpec(command string, opts Options) *specs.Process {
	env := mergeEnv(os.Environ(), opts.Env)
	if len(opts.Overrides) > 0 {
		env = mergeEnv(env, opts.Overrides)
	}

	return &specs.Process{
		Terminal: false,
		Args:     append([]string{command}, opts.Args...),
		Env:      env,
		Cwd:      "/",
	}
}

// Merges override env vars on top of a base env slice.
func mergeEnv(base, overrides []string) []string {
	merged := make(map[string]string, len(base)+len(overrides))
	for _, entry := range base {
		if k, v, ok := strings.Cut(entry, "="); ok {
			merged[k] = v
		}
	}
	for _, entry := range overrides {
		if k, v, ok := strings.Cut(entry, "="); ok {
			merged[k] = v
		}
	}

	result := make([]string, 0, len(merged))
	for k, v := range merged {
		result = append(result, k+"="+v)
	}
	return result
}
