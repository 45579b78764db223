package cli

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/cruciblehq/husk/internal/registry"
	"github.com/cruciblehq/husk/internal/sandbox"
)

// Parses args into a fresh copy of the root command.
func parse(t *testing.T, args ...string) *RunCmd {
	t.Helper()

	root := RootCmd
	parser, err := kong.New(&root, parserOptions(context.Background())...)
	if err != nil {
		t.Fatalf("kong.New: %v", err)
	}
	if _, err := parser.Parse(args); err != nil {
		t.Fatalf("Parse(%q): %v", args, err)
	}
	return &root.Run
}

func TestRunDefaults(t *testing.T) {
	c := parse(t, "run", "alpine:3.20", "/bin/echo", "hi")

	if c.Image != "alpine:3.20" {
		t.Errorf("Image = %q", c.Image)
	}
	if got := strings.Join(c.Command, " "); got != "/bin/echo hi" {
		t.Errorf("Command = %q", got)
	}
	if c.AuthURL != registry.DefaultAuthURL {
		t.Errorf("AuthURL = %q, want %q", c.AuthURL, registry.DefaultAuthURL)
	}
	if c.Service != registry.DefaultService {
		t.Errorf("Service = %q, want %q", c.Service, registry.DefaultService)
	}
	if c.RegistryURL != registry.DefaultRegistryURL {
		t.Errorf("RegistryURL = %q, want %q", c.RegistryURL, registry.DefaultRegistryURL)
	}
	if c.Seal != "process" {
		t.Errorf("Seal = %q, want process", c.Seal)
	}
	if c.Parallel != 1 {
		t.Errorf("Parallel = %d, want 1", c.Parallel)
	}
	if c.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0", c.Timeout)
	}
}

func TestRunPassthrough(t *testing.T) {
	c := parse(t, "run", "-e", "A=1", "--seal", "child", "scratch", "ls", "-la", "--color", "/")

	if got := strings.Join(c.Command, " "); got != "ls -la --color /" {
		t.Errorf("Command = %q, want %q", got, "ls -la --color /")
	}
	if len(c.Env) != 1 || c.Env[0] != "A=1" {
		t.Errorf("Env = %v", c.Env)
	}
	if c.Seal != "child" {
		t.Errorf("Seal = %q, want child", c.Seal)
	}
}

func TestRunEnvironment(t *testing.T) {
	t.Setenv("HUSK_PARALLEL", "4")
	t.Setenv("HUSK_TIMEOUT", "90s")
	t.Setenv("HUSK_ENV", "A=1,2")

	c := parse(t, "run", "alpine:3.20", "/bin/true")

	if c.Parallel != 4 {
		t.Errorf("Parallel = %d, want 4", c.Parallel)
	}
	if c.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want 90s", c.Timeout)
	}
	if len(c.Env) != 1 || c.Env[0] != "A=1,2" {
		t.Errorf("Env = %v, want [A=1,2]", c.Env)
	}
}

func TestRunOptions(t *testing.T) {
	c := parse(t, "run", "--seal", "child", "--strict-isolation", "--parallel", "3",
		"--root-dir", "/tmp/roots", "-e", "X=y", "alpine:3.20", "/bin/echo", "a", "b")

	opts, err := c.options()
	if err != nil {
		t.Fatalf("options: %v", err)
	}

	if opts.Command != "/bin/echo" {
		t.Errorf("Command = %q", opts.Command)
	}
	if strings.Join(opts.Args, " ") != "a b" {
		t.Errorf("Args = %v", opts.Args)
	}
	if opts.Seal != sandbox.SealChild {
		t.Errorf("Seal = %v, want child", opts.Seal)
	}
	if !opts.Strict {
		t.Error("Strict = false")
	}
	if opts.Registry.Parallel != 3 {
		t.Errorf("Parallel = %d, want 3", opts.Registry.Parallel)
	}
	if opts.RootDir != "/tmp/roots" {
		t.Errorf("RootDir = %q", opts.RootDir)
	}
	if opts.Registry.UserAgent == "" {
		t.Error("UserAgent is empty")
	}
}

func TestRunOptionsInvalidEnv(t *testing.T) {
	for _, e := range []string{"NOEQUALS", "=value"} {
		c := &RunCmd{Image: "scratch", Command: []string{"/bin/true"}, Seal: "process", Env: []string{e}}
		if _, err := c.options(); err == nil {
			t.Errorf("options() accepted --env %q", e)
		}
	}
}

func TestRunInvalidSeal(t *testing.T) {
	root := RootCmd
	parser, err := kong.New(&root, parserOptions(context.Background())...)
	if err != nil {
		t.Fatalf("kong.New: %v", err)
	}
	if _, err := parser.Parse([]string{"run", "--seal", "thread", "scratch", "/bin/true"}); err == nil {
		t.Fatal("Parse accepted --seal thread")
	}
}
