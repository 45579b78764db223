// Package sandbox builds the ephemeral root directory a command runs in.
//
// A root moves through three phases, each represented by its own type so a
// phase cannot be skipped or repeated. A [Builder] owns a freshly created
// directory while image layers are written into it. [Builder.Prepare] adds
// the entries every root needs and fixes the command path, yielding a
// [Root]. [Root.Seal] confines execution to the root and yields a [Sealed]
// handle, which is the only value the launch package accepts. Sealing
// happens at most once per root.
//
// Two sealing modes exist. [SealProcess] changes the root directory of the
// calling process itself, which is a one-way, process-wide effect; a
// descriptor of the host root is kept only so [Sealed.Teardown] can remove
// the tree afterwards. [SealChild] leaves the caller untouched and asks the
// launcher to root the spawned child instead.
//
// Example usage:
//
//	b, err := sandbox.New(paths.Sandboxes())
//	if err != nil {
//	    return err
//	}
//
//	root, err := b.Prepare(sandbox.Source{Command: "/usr/bin/true", Copy: true})
//	if err != nil {
//	    b.Discard()
//	    return err
//	}
//
//	sealed, err := root.Seal(sandbox.SealProcess)
//	if err != nil {
//	    b.Discard()
//	    return err
//	}
//	defer sealed.Teardown()
package sandbox
