// Package launch runs a command inside a sealed sandbox root.
//
// [Run] spawns the command as a child process, in a new PID namespace when
// the platform and privileges allow it, waits for it, and captures its
// standard output, standard error, and exit status into a [Result]. The
// isolation outcome is part of the result: an unavailable namespace is
// reported, never silently dropped, and is fatal when [Options.Strict] is
// set.
//
// [Relay] copies the captured streams to the caller's own output once the
// child has finished. Both streams must be valid UTF-8.
//
// Example usage:
//
//	res, err := launch.Run(ctx, sealed, launch.Options{Args: []string{"hello"}})
//	if err != nil {
//	    return err
//	}
//	if err := launch.Relay(res, os.Stdout, os.Stderr); err != nil {
//	    return err
//	}
//	os.Exit(res.Status())
package launch
