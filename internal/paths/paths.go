package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/cruciblehq/husk/internal"
)

const (

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644
)

// Path to the directory for runtime files.
//
//	Linux:   $XDG_RUNTIME_DIR/husk or /run/user/<uid>/husk
//	Other:   <cache home>/husk/run
//
// When neither base is known the system temporary directory is used.
func Runtime() string {
	if xdg.RuntimeDir != "" {
		return filepath.Join(xdg.RuntimeDir, internal.Name)
	}
	if xdg.CacheHome != "" {
		return filepath.Join(xdg.CacheHome, internal.Name, "run")
	}
	return filepath.Join(os.TempDir(), internal.Name)
}

// Default parent directory for ephemeral sandbox roots.
//
//	Linux:   $XDG_RUNTIME_DIR/husk/sandboxes
func Sandboxes() string {
	return filepath.Join(Runtime(), "sandboxes")
}

// Path to the optional JSON configuration file.
//
//	Linux:   $XDG_CONFIG_HOME/husk/config.json
func ConfigFile() string {
	return filepath.Join(xdg.ConfigHome, internal.Name, "config.json")
}
