//go:build unix

package sandbox

import (
	"os"

	"golang.org/x/sys/unix"
)

// Changes the process root to dir and its working directory to the new
// root. Returns a descriptor of the previous root for [leave].
func enter(dir string) (*os.File, error) {
	host, err := os.Open("/")
	if err != nil {
		return nil, err
	}

	if err := unix.Chroot(dir); err != nil {
		host.Close()
		return nil, &os.PathError{Op: "chroot", Path: dir, Err: err}
	}

	if err := unix.Chdir("/"); err != nil {
		leave(host)
		return nil, &os.PathError{Op: "chdir", Path: "/", Err: err}
	}

	return host, nil
}

// Restores the root held by host and closes it.
func leave(host *os.File) error {
	defer host.Close()

	if err := unix.Fchdir(int(host.Fd())); err != nil {
		return &os.PathError{Op: "fchdir", Path: host.Name(), Err: err}
	}
	if err := unix.Chroot("."); err != nil {
		return &os.PathError{Op: "chroot", Path: ".", Err: err}
	}
	return nil
}
