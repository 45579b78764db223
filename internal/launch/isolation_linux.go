package launch

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Errors from clone that mean a PID namespace is unavailable rather than
// that the command itself is broken.
var namespaceErrnos = []error{unix.EPERM, unix.EINVAL, unix.ENOSPC, unix.EUSERS}

// Starts a command built by newCmd in a new PID namespace, rooted at
// childRoot when it is not empty.
//
// If the namespace cannot be created the command is started again without
// one, unless strict is set. The child is killed if the launcher dies.
func start(newCmd func() *exec.Cmd, childRoot string, strict bool) (*exec.Cmd, Isolation, error) {
	cmd := newCmd()
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Chroot:     childRoot,
		Cloneflags: unix.CLONE_NEWPID,
		Pdeathsig:  unix.SIGKILL,
	}

	err := cmd.Start()
	if err == nil {
		return cmd, Isolation{State: Isolated}, nil
	}
	if !namespaceUnavailable(err) {
		return nil, Isolation{}, fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	reason := fmt.Sprintf("creating PID namespace: %v", err)
	if strict {
		return nil, Isolation{State: Failed, Reason: reason}, fmt.Errorf("%w: %s", ErrIsolation, reason)
	}

	slog.Warn("running without PID namespace", "reason", reason)

	cmd = newCmd()
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Chroot:    childRoot,
		Pdeathsig: unix.SIGKILL,
	}
	if err := cmd.Start(); err != nil {
		return nil, Isolation{}, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	return cmd, Isolation{State: Failed, Reason: reason}, nil
}

// Reports whether err from starting a process is a namespace failure.
func namespaceUnavailable(err error) bool {
	for _, errno := range namespaceErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
