package pipeline

import "errors"

var (
	ErrPipeline = errors.New("invocation failed")
)
