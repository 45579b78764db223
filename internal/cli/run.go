package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cruciblehq/husk/internal"
	"github.com/cruciblehq/husk/internal/launch"
	"github.com/cruciblehq/husk/internal/pipeline"
	"github.com/cruciblehq/husk/internal/registry"
	"github.com/cruciblehq/husk/internal/sandbox"
)

// Represents the 'husk run' command.
type RunCmd struct {
	Image           string        `arg:"" help:"Image as repository:tag, or \"scratch\" or \"-\" for none."`
	Command         []string      `arg:"" passthrough:"" help:"Command to run and its arguments."`
	AuthURL         string        `name:"auth-url" default:"${auth_url}" env:"HUSK_AUTH_URL" help:"Token service URL." placeholder:"URL"`
	Service         string        `default:"${service}" env:"HUSK_SERVICE" help:"Service name presented to the token service."`
	RegistryURL     string        `name:"registry-url" default:"${registry_url}" env:"HUSK_REGISTRY_URL" help:"Registry API base URL." placeholder:"URL"`
	Seal            string        `enum:"process,child" default:"process" env:"HUSK_SEAL" help:"Root the whole process or only the child (${enum})."`
	StrictIsolation bool          `name:"strict-isolation" env:"HUSK_STRICT_ISOLATION" help:"Fail when a PID namespace cannot be created."`
	Parallel        int           `default:"1" env:"HUSK_PARALLEL" help:"Layer downloads allowed ahead of extraction."`
	Env             []string      `short:"e" sep:"none" env:"HUSK_ENV" help:"Set a variable for the command." placeholder:"KEY=VALUE"`
	RootDir         string        `name:"root-dir" type:"path" default:"${sandboxes}" env:"HUSK_ROOT_DIR" help:"Parent directory for sandbox roots." placeholder:"DIR"`
	Timeout         time.Duration `env:"HUSK_TIMEOUT" help:"Abort the whole invocation after this long (0 for none)."`
}

// Executes the run command.
//
// The command's output is relayed once it has finished. A non-zero exit is
// returned as a [launch.ExitError] carrying the status to exit with.
func (c *RunCmd) Run(ctx context.Context) error {
	opts, err := c.options()
	if err != nil {
		return err
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	res, err := pipeline.Run(ctx, opts)
	if err != nil {
		return err
	}

	if err := launch.Relay(res, os.Stdout, os.Stderr); err != nil {
		return err
	}

	if status := res.Status(); status != 0 {
		return &launch.ExitError{Code: status}
	}
	return nil
}

// Translates flags into pipeline options.
func (c *RunCmd) options() (pipeline.Options, error) {
	seal, err := sandbox.ParseSealMode(c.Seal)
	if err != nil {
		return pipeline.Options{}, err
	}

	for _, e := range c.Env {
		if k, _, ok := strings.Cut(e, "="); !ok || k == "" {
			return pipeline.Options{}, fmt.Errorf("invalid --env %q: expected KEY=VALUE", e)
		}
	}

	if len(c.Command) == 0 {
		return pipeline.Options{}, fmt.Errorf("no command given")
	}

	return pipeline.Options{
		Image:   c.Image,
		Command: c.Command[0],
		Args:    c.Command[1:],
		Env:     c.Env,
		Registry: registry.Config{
			AuthURL:     c.AuthURL,
			Service:     c.Service,
			RegistryURL: c.RegistryURL,
			Parallel:    c.Parallel,
			UserAgent:   internal.UserAgent(),
			HTTPClient:  http.DefaultClient,
		},
		Seal:    seal,
		Strict:  c.StrictIsolation,
		RootDir: c.RootDir,
	}, nil
}
