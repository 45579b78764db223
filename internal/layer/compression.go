package layer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/containerd/containerd/v2/core/images"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression applied to a layer's tar stream.
type Compression int

const (
	Gzip         Compression = iota // gzip, the registry default.
	Zstd                            // zstd, used by newer OCI layers.
	Uncompressed                    // plain tar.
	Detect                          // sniffed from the stream's magic bytes.
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Returns the compression's name.
func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case Uncompressed:
		return "none"
	case Detect:
		return "detect"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// Maps a layer descriptor media type to its compression.
//
// Docker layer types that do not declare a compression are sniffed at
// unpack time. Media types that do not describe a layer diff are rejected
// with [ErrCompression].
func ForMediaType(ctx context.Context, mediaType string) (Compression, error) {
	name, err := images.DiffCompression(ctx, mediaType)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCompression, err)
	}

	switch name {
	case "gzip":
		return Gzip, nil
	case "zstd":
		return Zstd, nil
	case "":
		return Uncompressed, nil
	case "unknown":
		return Detect, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrCompression, name)
	}
}

// Wraps r in a decompressor for c. The returned reader must be closed.
func decompress(r io.Reader, c Compression) (io.ReadCloser, error) {
	if c == Detect {
		br := bufio.NewReader(r)
		c = sniff(br)
		r = br
	}

	switch c {
	case Gzip:
		return gzip.NewReader(r)
	case Zstd:
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	case Uncompressed:
		return io.NopCloser(r), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrCompression, c)
	}
}

// Identifies the compression of a buffered stream without consuming it.
func sniff(br *bufio.Reader) Compression {
	head, _ := br.Peek(len(zstdMagic))
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return Gzip
	case bytes.HasPrefix(head, zstdMagic):
		return Zstd
	default:
		return Uncompressed
	}
}
