// Package pipeline runs one husk invocation from image argument to
// finished command.
//
// The steps run strictly in order: parse the image argument, create a
// sandbox root, pull the image into it (authenticate, fetch the manifest
// and config, extract the layers), prepare the root, seal it, and launch
// the command. When the image argument is a placeholder ("scratch" or "-")
// no registry is contacted and the command binary is copied from the host
// into an otherwise empty root instead.
//
// A failure before sealing discards the root. Once sealed, the root is torn
// down after the command finishes, whatever the outcome. Errors match
// [ErrPipeline] and name the step that failed.
//
// Example usage:
//
//	res, err := pipeline.Run(ctx, pipeline.Options{
//	    Image:   "alpine:3.20",
//	    Command: "/bin/echo",
//	    Args:    []string{"hello"},
//	})
//	if err != nil {
//	    return err
//	}
//	if err := launch.Relay(res, os.Stdout, os.Stderr); err != nil {
//	    return err
//	}
package pipeline
