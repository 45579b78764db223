package cli

import (
	"context"
	"fmt"

	"github.com/containerd/platforms"
	"github.com/cruciblehq/husk/internal"
)

// Represents the 'husk version' command.
type VersionCmd struct{}

// Executes the version command.
//
// Prints the build version followed by the platform images are pulled for.
func (c *VersionCmd) Run(ctx context.Context) error {
	fmt.Printf("%s (%s)\n", internal.VersionString(), platforms.DefaultString())
	return nil
}
