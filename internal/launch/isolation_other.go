//go:build !unix

package launch

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

func start(newCmd func() *exec.Cmd, childRoot string, strict bool) (*exec.Cmd, Isolation, error) {
	iso := Isolation{State: Unsupported, Reason: "PID namespaces are not available on " + runtime.GOOS}
	if strict {
		return nil, iso, fmt.Errorf("%w: %s", ErrIsolation, iso.Reason)
	}
	if childRoot != "" {
		return nil, Isolation{}, fmt.Errorf("%w: rooting a child is not supported on %s", ErrLaunch, runtime.GOOS)
	}
	slog.Warn("running without PID namespace", "reason", iso.Reason)

	cmd := newCmd()
	if err := cmd.Start(); err != nil {
		return nil, Isolation{}, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	return cmd, iso, nil
}
