package launch

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// Search path used when the child environment has no PATH.
const defaultPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// Resolves a command without a slash against the PATH in env, as seen from
// inside root.
//
// Returns the in-root path of the first regular executable file found.
// Symlinks are resolved within root, so directories on the host with the
// same names are never consulted. Commands containing a slash are returned
// unchanged.
func lookPath(root, name string, env []string) (string, error) {
	if strings.Contains(name, "/") {
		return name, nil
	}

	search, ok := envValue(env, "PATH")
	if !ok {
		search = defaultPath
	}

	for _, dir := range filepath.SplitList(search) {
		if !filepath.IsAbs(dir) {
			continue
		}

		candidate := filepath.Join(dir, name)
		host, err := securejoin.SecureJoin(root, candidate)
		if err != nil {
			continue
		}
		info, err := os.Stat(host)
		if err != nil {
			continue
		}
		if info.Mode().IsRegular() && info.Mode().Perm()&0111 != 0 {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %q: %w", ErrLaunch, name, exec.ErrNotFound)
}

// Returns the value of the last entry for key in env.
func envValue(env []string, key string) (string, bool) {
	var value string
	var found bool
	for _, entry := range env {
		if k, v, ok := strings.Cut(entry, "="); ok && k == key {
			value, found = v, true
		}
	}
	return value, found
}
