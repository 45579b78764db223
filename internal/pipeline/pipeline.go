package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cruciblehq/husk/internal/launch"
	"github.com/cruciblehq/husk/internal/paths"
	"github.com/cruciblehq/husk/internal/registry"
	"github.com/cruciblehq/husk/internal/sandbox"
)

// Controls one invocation.
type Options struct {
	Image    string           // Image reference, or a placeholder for no image.
	Command  string           // Command to run inside the root.
	Args     []string         // Arguments passed to the command.
	Env      []string         // KEY=VALUE entries applied over the image environment.
	Registry registry.Config  // Registry endpoints and download settings.
	Seal     sandbox.SealMode // How the root confines execution.
	Strict   bool             // Fail when a PID namespace cannot be created.
	RootDir  string           // Parent directory for the sandbox root. Defaults to [paths.Sandboxes].
}

// Runs an invocation and returns the finished command's result.
//
// A non-zero exit of the command is not an error; see [launch.Result].
func Run(ctx context.Context, opts Options) (*launch.Result, error) {
	if opts.Command == "" {
		return nil, fmt.Errorf("%w: no command given", ErrPipeline)
	}
	if opts.RootDir == "" {
		opts.RootDir = paths.Sandboxes()
	}

	slog.Info("running command",
		"image", opts.Image,
		"command", opts.Command,
		"args", len(opts.Args),
		"seal", opts.Seal.String(),
	)

	inv, err := newInvocation(opts)
	if err != nil {
		return nil, err
	}
	return inv.run(ctx)
}

// Holds the state of one invocation.
type invocation struct {
	opts    Options
	image   registry.Image // Parsed reference. Unset when pulling is false.
	pulling bool           // Whether an image is pulled from the registry.
	env     []string       // Environment from the image config.
}

// Creates an [invocation], validating the image argument.
func newInvocation(opts Options) (*invocation, error) {
	inv := &invocation{opts: opts}
	if registry.IsPlaceholder(opts.Image) {
		return inv, nil
	}

	img, err := registry.ParseImage(opts.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPipeline, err)
	}
	inv.image = img
	inv.pulling = true
	return inv, nil
}

// Builds, seals, and launches the root.
func (inv *invocation) run(ctx context.Context) (*launch.Result, error) {
	b, err := sandbox.New(inv.opts.RootDir)
	if err != nil {
		return nil, stepError("creating sandbox root", err)
	}

	sealed, err := inv.build(ctx, b)
	if err != nil {
		if derr := b.Discard(); derr != nil {
			slog.Warn("failed to discard sandbox root", "path", b.Path(), "error", derr)
		}
		return nil, err
	}
	defer func() {
		if err := sealed.Teardown(); err != nil {
			slog.Warn("failed to remove sandbox root", "path", b.Path(), "error", err)
		}
	}()

	res, err := launch.Run(ctx, sealed, launch.Options{
		Args:      inv.opts.Args,
		Env:       inv.env,
		Overrides: inv.opts.Env,
		Strict:    inv.opts.Strict,
	})
	if err != nil {
		return nil, stepError("launching command", err)
	}
	return res, nil
}

// Populates, prepares, and seals the root held by b.
func (inv *invocation) build(ctx context.Context, b *sandbox.Builder) (*sandbox.Sealed, error) {
	if inv.pulling {
		if err := inv.pull(ctx, b.Path()); err != nil {
			return nil, err
		}
	}

	root, err := b.Prepare(sandbox.Source{Command: inv.opts.Command, Copy: !inv.pulling})
	if err != nil {
		return nil, stepError("preparing sandbox root", err)
	}

	sealed, err := root.Seal(inv.opts.Seal)
	if err != nil {
		return nil, stepError("sealing sandbox root", err)
	}
	return sealed, nil
}

// Pulls the image into dest and records its environment.
func (inv *invocation) pull(ctx context.Context, dest string) error {
	s, err := registry.NewSession(inv.opts.Registry, inv.image)
	if err != nil {
		return stepError("configuring registry", err)
	}

	if err := s.Authenticate(ctx); err != nil {
		return stepError("authenticating", err)
	}

	if _, err := s.FetchManifest(ctx); err != nil {
		return stepError("fetching manifest", err)
	}

	config, err := s.FetchConfig(ctx)
	if err != nil {
		return stepError("fetching image config", err)
	}
	inv.env = config.Config.Env

	if err := s.DownloadLayers(ctx, dest); err != nil {
		return stepError("downloading layers", err)
	}
	return nil
}

// Wraps err with the step that produced it.
func stepError(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPipeline, step, err)
}
