// Package layer applies image layer archives to a directory tree.
//
// A layer is a tar stream, usually gzip or zstd compressed, describing one
// filesystem delta. [Unpack] decompresses the stream and extracts every
// entry beneath a destination directory, preserving relative paths, modes,
// symbolic links and hard links. Entries are applied in archive order and
// overwrite whatever an earlier layer left at the same path, so applying
// layers one after another in manifest order yields the image's root
// filesystem.
//
// Extraction is confined to the destination. Entry names that would
// escape it are rejected with [ErrPathTraversal], and parent directories are
// resolved with symlinks scoped to the destination so a link planted by an
// earlier entry cannot redirect a later write onto the host.
//
// OCI whiteout entries are honoured: ".wh.<name>" removes <name> and
// ".wh..wh..opq" empties its directory of content from earlier layers.
// Device nodes and FIFOs are skipped.
//
// Example usage:
//
//	f, err := os.Open("layer.tar.gz")
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//
//	if err := layer.Unpack(f, "/tmp/rootfs", layer.Gzip); err != nil {
//	    return err
//	}
package layer
