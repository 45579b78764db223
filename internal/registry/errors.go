package registry

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/containerd/errdefs/pkg/errhttp"
)

var (
	ErrAuthentication      = errors.New("registry authentication failed")
	ErrRegistryRequest     = errors.New("registry request failed")
	ErrDecode              = errors.New("malformed registry response")
	ErrIntegrity           = errors.New("blob integrity check failed")
	ErrInvalidReference    = errors.New("invalid image reference")
	ErrUnsupportedManifest = errors.New("unsupported manifest")
	ErrInvalidConfig       = errors.New("invalid registry configuration")
)

// Returned when a registry endpoint answers with a non-success status.
//
// The error matches [ErrRegistryRequest] and the errdefs class that best
// describes the status (for example errdefs.ErrNotFound for 404).
type StatusError struct {
	URL        string // Requested URL.
	StatusCode int    // HTTP status code returned.
	Body       string // Leading part of the response body, for diagnostics.
}

// Describes the failed request.
func (e *StatusError) Error() string {
	msg := fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Exposes the sentinel and the errdefs classification.
func (e *StatusError) Unwrap() []error {
	errs := []error{ErrRegistryRequest}
	if kind := errhttp.ToNative(e.StatusCode); kind != nil {
		errs = append(errs, kind)
	}
	return errs
}
