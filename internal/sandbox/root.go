package sandbox

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Selects how a root confines execution.
type SealMode int

const (

	// Change the root directory of the calling process.
	SealProcess SealMode = iota

	// Leave the caller alone and root only the spawned child.
	SealChild
)

// Returns the mode's name as accepted by [ParseSealMode].
func (m SealMode) String() string {
	switch m {
	case SealProcess:
		return "process"
	case SealChild:
		return "child"
	default:
		return fmt.Sprintf("SealMode(%d)", int(m))
	}
}

// Parses "process" or "child".
func ParseSealMode(s string) (SealMode, error) {
	switch strings.ToLower(s) {
	case "process", "":
		return SealProcess, nil
	case "child":
		return SealChild, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidSealMode, s)
	}
}

// A populated root, ready to be sealed.
type Root struct {
	path    string
	command string
	sealed  bool
}

// Returns the host path of the root.
func (r *Root) Path() string {
	return r.path
}

// Returns the absolute in-root path of the command.
func (r *Root) Command() string {
	return r.command
}

// Confines execution to the root.
//
// Sealing is attempted at most once; any later call fails with
// [ErrAlreadySealed], even when the first attempt failed. In [SealProcess]
// mode the process root changes here and the working directory becomes
// "/". Failures match [ErrSeal].
func (r *Root) Seal(mode SealMode) (*Sealed, error) {
	if r.sealed {
		return nil, ErrAlreadySealed
	}

	s := &Sealed{path: r.path, command: r.command, mode: mode}

	switch mode {
	case SealProcess:
		r.sealed = true
		host, err := enter(r.path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSeal, err)
		}
		s.host = host
	case SealChild:
		r.sealed = true
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidSealMode, mode)
	}

	slog.Debug("sealed sandbox root", "path", r.path, "mode", mode.String())
	return s, nil
}

// A sealed root. The command may now be launched.
type Sealed struct {
	path    string
	command string
	mode    SealMode
	host    *os.File // host root, held while the process is rooted
	done    bool
}

// Returns the mode the root was sealed with.
func (s *Sealed) Mode() SealMode {
	return s.mode
}

// Returns the absolute in-root path of the command.
func (s *Sealed) Command() string {
	return s.command
}

// Returns the directory the child must be rooted in, or "" when the whole
// process already is.
func (s *Sealed) ChildRoot() string {
	if s.mode == SealChild {
		return s.path
	}
	return ""
}

// Removes the root and everything in it.
//
// In [SealProcess] mode the process first returns to the host root through
// the descriptor kept at sealing time. Later calls do nothing.
func (s *Sealed) Teardown() error {
	if s.done {
		return nil
	}
	s.done = true

	if s.host != nil {
		err := leave(s.host)
		s.host = nil
		if err != nil {
			return fmt.Errorf("%w: leaving sandbox root: %w", ErrFileSystemOperation, err)
		}
	}

	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	slog.Debug("removed sandbox root", "path", s.path)
	return nil
}
