package internal

import (
	"fmt"
	"runtime"
	"strings"
)

const (

	// Program name, used for logging groups, directory names and the CLI.
	Name = "husk"

	// String to indicate an undefined variable
	defaultUndefined = "(undefined)"

	// String to indicate a local (non-pipeline) build
	defaultLocalBuild = "(local)"

	// Main branch name used in version strings
	mainBranch = "main"
)

var (
	version   = "" // Version number (e.g., "1.2.3")
	stage     = "" // Development stage or git branch (e.g., "staging", "main")
	gitCommit = "" // Git commit hash (e.g., "a1b2c3d4")

	rawQuiet   = "false" // Whether to enable quiet mode
	rawDebug   = "false" // Whether to enable debug mode
	rawVerbose = "false" // Whether to enable verbose logging
)

// Returns the current version without a leading "v".
//
// If the version is not set, returns "(undefined)".
func Version() string {
	v := strings.ToLower(strings.TrimSpace(version))
	if v == "" {
		return defaultUndefined
	}
	return strings.TrimPrefix(v, "v")
}

// Returns true if any of the version, git commit, or stage linker variables
// are unset.
func IsLocal() bool {
	return strings.TrimSpace(version) == "" ||
		strings.TrimSpace(gitCommit) == "" ||
		strings.TrimSpace(stage) == ""
}

// Returns a detailed version string.
//
// Local builds report "(local)". Pipeline builds are formatted as
// "<version>+<stage> <git-commit> [<arch>]", omitting the stage on main.
func VersionString() string {
	if IsLocal() {
		return defaultLocalBuild
	}

	suffix := ""
	if s := strings.ToLower(strings.TrimSpace(stage)); s != mainBranch {
		suffix = "+" + s
	}

	return fmt.Sprintf("%s%s %s [%s]", Version(), suffix, strings.TrimSpace(gitCommit), runtime.GOARCH)
}

// Returns the User-Agent sent with registry requests.
//
// Local builds identify as "husk/local".
func UserAgent() string {
	if IsLocal() {
		return Name + "/local"
	}
	return Name + "/" + Version()
}
