package main

import (
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	"github.com/cruciblehq/husk/internal"
	"github.com/cruciblehq/husk/internal/cli"
	"github.com/cruciblehq/husk/internal/launch"
)

// The entry point for husk.
//
// Initializes logging and executes the root command. When the launched
// command exits non-zero, husk exits with the same status; any other error
// is logged and exits with 1.
func main() {
	slog.SetDefault(logger())

	slog.Debug("build", "version", internal.VersionString())

	slog.Debug("husk is running",
		"pid", os.Getpid(),
		"cwd", cwd(),
		"args", os.Args,
	)

	if err := cli.Execute(); err != nil {
		if code, ok := launch.IsExitError(err); ok {
			os.Exit(code)
		}
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// Creates a logger writing to standard error, seeded from build-time linker
// flags.
//
// The logger is reconfigured after flag parsing via cli.Execute.
func logger() *slog.Logger {
	handler := log.NewWithOptions(os.Stderr, log.Options{
		Level:  log.Level(internal.LogLevel()),
		Prefix: internal.Name,
	})
	return slog.New(handler)
}

// Returns the current working directory or "(unknown)".
func cwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "(unknown)"
	}
	return cwd
}
