package launch

import (
	"errors"
	"fmt"
)

var (
	ErrLaunch    = errors.New("failed to launch command")
	ErrIsolation = errors.New("process isolation unavailable")
	ErrEncoding  = errors.New("output is not valid UTF-8")
)

// Reports a non-zero exit from the launched command.
//
// Returned by callers that want the process to exit with the child's status
// without treating it as a failure of their own.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with code %d", e.Code)
}

// Checks if an error is an [ExitError] and returns the code.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
