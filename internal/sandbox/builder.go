package sandbox

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cruciblehq/husk/internal/paths"
	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/google/uuid"
)

// Placeholder created in every root so programs that probe for /dev/null
// find an entry there.
const devNull = "dev/null"

// Describes the command a root is prepared for.
type Source struct {
	Command string // Command as given by the user.
	Copy    bool   // Copy Command from the host into the root (no-image runs).
}

// Owns a sandbox root while it is being populated.
type Builder struct {
	path     string
	prepared bool
}

// Creates a new, empty root directory under base.
//
// The directory name is a random UUID so concurrent invocations never
// share a root. base is created if it does not exist.
func New(base string) (*Builder, error) {
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	if err := os.MkdirAll(base, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	dir := filepath.Join(base, uuid.NewString())
	if err := os.Mkdir(dir, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	slog.Debug("created sandbox root", "path", dir)
	return &Builder{path: dir}, nil
}

// Returns the host path of the root, the destination for image layers.
func (b *Builder) Path() string {
	return b.path
}

// Finishes the root for src and returns it ready to seal.
//
// The /dev/null placeholder is created as a directory. When src.Copy is
// set, the command is resolved on the host (through PATH when it has no
// slash), copied to the root's top level with its permission bits, and the
// command becomes "/<basename>". Otherwise the command is used unchanged.
// Panics if called twice.
func (b *Builder) Prepare(src Source) (*Root, error) {
	if b.prepared {
		panic("sandbox: Prepare called twice")
	}
	if src.Command == "" {
		panic("sandbox: empty command")
	}

	if err := os.MkdirAll(b.path, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	null, err := b.join(devNull)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(null, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: creating /%s: %w", ErrFileSystemOperation, devNull, err)
	}

	command := src.Command
	if src.Copy {
		host, err := hostBinary(src.Command)
		if err != nil {
			return nil, err
		}

		command = "/" + filepath.Base(host)
		dst, err := b.join(command)
		if err != nil {
			return nil, err
		}
		if err := copyFile(host, dst); err != nil {
			return nil, err
		}
		slog.Debug("copied binary into sandbox", "from", host, "to", command)
	}

	b.prepared = true
	return &Root{path: b.path, command: command}, nil
}

// Removes the root and everything in it.
//
// Used when an invocation fails before the root is sealed. Once sealed, use
// [Sealed.Teardown] instead.
func (b *Builder) Discard() error {
	if err := os.RemoveAll(b.path); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	return nil
}

// Maps an in-root path to a host path.
//
// Symlinks already in the root, such as those laid down by image layers, are
// resolved as if the root were "/", so the result never leaves the root.
func (b *Builder) join(name string) (string, error) {
	p, err := securejoin.SecureJoin(b.path, name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	return p, nil
}

// Resolves a command to the host file that should be copied.
func hostBinary(command string) (string, error) {
	if !strings.Contains(command, "/") {
		p, err := exec.LookPath(command)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		}
		command = p
	}

	info, err := os.Stat(command)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", ErrFileSystemOperation, command)
	}
	return command, nil
}

// Copies the regular file at src to dst, preserving permission bits.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("%w: copying %s: %w", ErrFileSystemOperation, src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	// The umask applies at creation time.
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	return nil
}
