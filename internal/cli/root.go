package cli

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/cruciblehq/husk/internal"
	"github.com/cruciblehq/husk/internal/paths"
	"github.com/cruciblehq/husk/internal/registry"
)

// Represents the root command for husk.
var RootCmd struct {
	Quiet   bool       `short:"q" help:"Log errors only."`
	Verbose bool       `short:"v" help:"Log progress."`
	Debug   bool       `short:"d" help:"Enable debug output."`
	Run     RunCmd     `cmd:"" help:"Run a command in a sandbox built from an image."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// Parses arguments, configures logging, and runs the selected subcommand.
func Execute() error {

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kongCtx := kong.Parse(&RootCmd, parserOptions(ctx)...)

	configureLogger()

	return kongCtx.Run()
}

// Returns the parser configuration shared by [Execute] and tests.
func parserOptions(ctx context.Context) []kong.Option {
	return []kong.Option{
		kong.Name(internal.Name),
		kong.Description("Run a command in an ephemeral root built from a registry image.\n\nUse \"scratch\" or \"-\" as the image to run a host binary in an otherwise empty root."),
		kong.UsageOnError(),
		kong.Configuration(kong.JSON, paths.ConfigFile()),
		kong.Vars{
			"version":      internal.VersionString(),
			"auth_url":     registry.DefaultAuthURL,
			"service":      registry.DefaultService,
			"registry_url": registry.DefaultRegistryURL,
			"sandboxes":    paths.Sandboxes(),
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
	}
}

// Configures the global logger based on CLI flags.
func configureLogger() {
	logger, ok := slog.Default().Handler().(*log.Logger)
	if !ok {
		return // Not a charm logger, nothing to configure
	}

	internal.SetDebug(RootCmd.Debug || internal.IsDebug())
	internal.SetQuiet(RootCmd.Quiet || internal.IsQuiet())
	internal.SetVerbose(RootCmd.Verbose || internal.IsVerbose())

	logger.SetLevel(log.Level(internal.LogLevel()))
	logger.SetReportTimestamp(internal.IsDebug())
}
