//go:build unix && !linux

package launch

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"syscall"
)

// Starts a command built by newCmd, rooted at childRoot when it is not
// empty. PID namespaces do not exist here, so strict always fails.
func start(newCmd func() *exec.Cmd, childRoot string, strict bool) (*exec.Cmd, Isolation, error) {
	iso := Isolation{State: Unsupported, Reason: "PID namespaces are not available on " + runtime.GOOS}
	if strict {
		return nil, iso, fmt.Errorf("%w: %s", ErrIsolation, iso.Reason)
	}
	slog.Warn("running without PID namespace", "reason", iso.Reason)

	cmd := newCmd()
	cmd.SysProcAttr = &syscall.SysProcAttr{Chroot: childRoot}
	if err := cmd.Start(); err != nil {
		return nil, Isolation{}, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	return cmd, iso, nil
}
