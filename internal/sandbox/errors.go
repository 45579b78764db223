package sandbox

import "errors"

var (
	ErrFileSystemOperation = errors.New("file system operation failed")
	ErrAlreadySealed       = errors.New("sandbox root already sealed")
	ErrSeal                = errors.New("failed to seal sandbox root")
	ErrInvalidSealMode     = errors.New("invalid seal mode")
)
