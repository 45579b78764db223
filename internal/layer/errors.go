package layer

import "errors"

var (
	ErrArchive             = errors.New("invalid layer archive")
	ErrPathTraversal       = errors.New("entry escapes destination")
	ErrFileSystemOperation = errors.New("file system operation failed")
	ErrCompression         = errors.New("unsupported layer compression")
)
