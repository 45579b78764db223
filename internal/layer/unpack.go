package layer

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
)

const (

	// Prefix marking an entry as a deletion of the named sibling.
	whiteoutPrefix = ".wh."

	// Entry marking its directory as opaque to lower layers.
	whiteoutOpaque = ".wh..wh..opq"

	// Mode bits carried over from archive headers.
	modeMask = fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky
)

// Decompresses r and extracts the tar stream into dest.
//
// The destination is created if it does not exist. Malformed compression or
// tar data fails with [ErrArchive]; so does any entry whose name or hard link
// target would leave dest, in which case the error also matches
// [ErrPathTraversal] and nothing is written for that entry. Failures writing
// to the local filesystem match [ErrFileSystemOperation].
func Unpack(r io.Reader, dest string, c Compression) error {
	root, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	dr, err := decompress(r, c)
	if err != nil {
		if errors.Is(err, ErrCompression) {
			return err
		}
		return fmt.Errorf("%w: %s: %w", ErrArchive, c, err)
	}
	defer dr.Close()

	x := &extractor{
		root:    root,
		created: make(map[string]struct{}),
		chown:   os.Geteuid() == 0,
	}
	return x.extract(tar.NewReader(archiveReader{dr}))
}

// Applies the entries of a single layer beneath root.
type extractor struct {
	root    string              // Absolute destination directory.
	created map[string]struct{} // Paths written by this layer, exempt from opaque whiteouts.
	dirs    []dirMode           // Directory modes applied after extraction.
	chown   bool                // Whether ownership from the archive is applied.
}

// Mode of a directory entry, applied once the layer is complete.
type dirMode struct {
	name string
	mode fs.FileMode
}

// Reads every entry from tr and applies it.
//
// Directory modes are applied last so that read-only directories can still
// receive their children.
func (x *extractor) extract(tr *tar.Reader) error {
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return archiveError(err)
		}

		if err := x.apply(hdr, tr); err != nil {
			return err
		}
	}

	for _, d := range x.dirs {
		if err := x.chmodDir(d); err != nil {
			return err
		}
	}

	return nil
}

// Applies a recorded directory mode.
//
// A later entry may have replaced the directory with a symlink, and chmod
// follows symlinks, so anything that is no longer a real directory is left
// alone.
func (x *extractor) chmodDir(d dirMode) error {
	target, err := x.resolve(d.name)
	if err != nil {
		return err
	}

	info, err := os.Lstat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	if !info.IsDir() {
		slog.Debug("skipping mode of replaced directory", "name", d.name)
		return nil
	}

	if err := os.Chmod(target, d.mode); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	return nil
}

// Applies a single archive entry.
func (x *extractor) apply(hdr *tar.Header, r io.Reader) error {
	rel, ok, err := localName(hdr.Name)
	if err != nil {
		return err
	}
	if !ok {
		return nil // The archive root itself.
	}

	base := filepath.Base(rel)
	if strings.HasPrefix(base, whiteoutPrefix) {
		return x.whiteout(rel, base)
	}

	target, err := x.resolve(rel)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		err = x.writeDir(target, hdr)
	case tar.TypeReg:
		err = x.writeFile(target, hdr, r)
	case tar.TypeSymlink:
		err = x.writeSymlink(target, hdr)
	case tar.TypeLink:
		err = x.writeHardlink(target, hdr)
	default:
		slog.Debug("skipping layer entry", "name", hdr.Name, "type", string(hdr.Typeflag))
		return nil
	}
	if err != nil {
		return err
	}

	x.created[target] = struct{}{}
	return x.setOwner(target, hdr)
}

// Creates a directory, replacing any non-directory at the same path.
func (x *extractor) writeDir(target string, hdr *tar.Header) error {
	if info, err := os.Lstat(target); err == nil && !info.IsDir() {
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		}
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	x.dirs = append(x.dirs, dirMode{name: hdr.Name, mode: hdr.FileInfo().Mode() & modeMask})
	return nil
}

// Writes a regular file, replacing whatever an earlier layer left there.
func (x *extractor) writeFile(target string, hdr *tar.Header, r io.Reader) error {
	if err := replace(target); err != nil {
		return err
	}

	mode := hdr.FileInfo().Mode() & modeMask
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	_, err = io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if errors.Is(err, ErrArchive) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	// The umask may have masked bits at creation time.
	if err := os.Chmod(target, mode); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	if err := os.Chtimes(target, hdr.AccessTime, hdr.ModTime); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	return nil
}

// Creates a symbolic link. The link text is stored verbatim; it is only
// interpreted once the tree has become the process root.
func (x *extractor) writeSymlink(target string, hdr *tar.Header) error {
	if err := replace(target); err != nil {
		return err
	}
	if err := os.Symlink(hdr.Linkname, target); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	return nil
}

// Creates a hard link to another path inside the destination.
func (x *extractor) writeHardlink(target string, hdr *tar.Header) error {
	rel, ok, err := localName(hdr.Linkname)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: hard link %q has no target", ErrArchive, hdr.Name)
	}

	source, err := securejoin.SecureJoin(x.root, rel)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	if err := replace(target); err != nil {
		return err
	}
	if err := os.Link(source, target); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	return nil
}

// Applies a whiteout entry.
//
// An opaque marker removes everything in its directory that this layer has
// not itself written. Any other marker removes the named sibling.
func (x *extractor) whiteout(rel, base string) error {
	dir, err := securejoin.SecureJoin(x.root, filepath.Dir(rel))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	if base == whiteoutOpaque {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
		}
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if _, ok := x.created[path]; ok {
				continue
			}
			if err := os.RemoveAll(path); err != nil {
				return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
			}
		}
		return nil
	}

	name := strings.TrimPrefix(base, whiteoutPrefix)
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: malformed whiteout %q", ErrArchive, rel)
	}
	if err := os.RemoveAll(filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	return nil
}

// Applies archive ownership when running privileged.
func (x *extractor) setOwner(target string, hdr *tar.Header) error {
	if !x.chown {
		return nil
	}
	if err := os.Lchown(target, hdr.Uid, hdr.Gid); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	return nil
}

// Maps an entry name to a host path beneath the root.
//
// The final component is joined lexically so that the entry itself (which
// may be a symlink about to be replaced) is never followed; parent
// directories are resolved with symlinks scoped to the root.
func (x *extractor) resolve(name string) (string, error) {
	rel, ok, err := localName(name)
	if err != nil {
		return "", err
	}
	if !ok {
		return x.root, nil
	}

	parent, err := securejoin.SecureJoin(x.root, filepath.Dir(rel))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	return filepath.Join(parent, filepath.Base(rel)), nil
}

// Cleans an archive entry name into a path relative to the destination.
//
// Leading slashes are dropped, as tar does. Returns false for names that
// denote the destination itself, and a traversal error for names that
// would resolve outside it.
func localName(name string) (string, bool, error) {
	rel := filepath.Clean(strings.TrimLeft(filepath.FromSlash(name), string(filepath.Separator)))
	if rel == "." {
		return "", false, nil
	}
	if !filepath.IsLocal(rel) {
		return "", false, fmt.Errorf("%w: %w: %q", ErrArchive, ErrPathTraversal, name)
	}
	return rel, true, nil
}

// Removes a non-directory at path so it can be replaced. Directories are
// removed recursively, since a later layer may turn a directory into a file.
func replace(path string) error {
	if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}
	return nil
}

// Marks errors raised by the decompressed stream as archive errors so they
// can be told apart from destination write errors.
type archiveReader struct {
	r io.Reader
}

// Delegates to the underlying reader, wrapping any error other than EOF.
func (a archiveReader) Read(p []byte) (int, error) {
	n, err := a.r.Read(p)
	if err != nil && err != io.EOF {
		err = archiveError(err)
	}
	return n, err
}

// Wraps err with [ErrArchive] unless it already carries it.
func archiveError(err error) error {
	if errors.Is(err, ErrArchive) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrArchive, err)
}
