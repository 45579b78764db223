package registry

import (
	"fmt"
	"strings"

	"github.com/distribution/reference"
)

// Namespace under which official images are published.
const officialNamespace = "library"

// Image arguments that mean "run without an image".
var placeholders = []string{"scratch", "-"}

// An image reference of the form "repository:tag".
//
// Repositories are resolved within the registry's official namespace, so
// "alpine:3.20" names library/alpine at tag 3.20. Use [ParseImage] to obtain
// a validated value.
type Image struct {
	Repository string // Repository name, without the official namespace.
	Tag        string // Tag within the repository.
}

// Parses s by splitting on its first colon.
//
// Both halves must be non-empty. The repository must form a valid
// repository path once placed in the official namespace, and the tag must
// be a valid tag. Failures match [ErrInvalidReference].
func ParseImage(s string) (Image, error) {
	repo, tag, ok := strings.Cut(s, ":")
	if !ok || repo == "" || tag == "" {
		return Image{}, fmt.Errorf("%w: %q: expected repository:tag", ErrInvalidReference, s)
	}

	img := Image{Repository: repo, Tag: tag}

	named, err := reference.WithName(img.Path())
	if err != nil {
		return Image{}, fmt.Errorf("%w: %q: %w", ErrInvalidReference, s, err)
	}
	if _, err := reference.WithTag(named, tag); err != nil {
		return Image{}, fmt.Errorf("%w: %q: %w", ErrInvalidReference, s, err)
	}

	return img, nil
}

// Reports whether s is one of the values meaning "no image".
func IsPlaceholder(s string) bool {
	for _, p := range placeholders {
		if s == p {
			return true
		}
	}
	return false
}

// Returns the repository path used in registry URLs ("library/<repo>").
func (i Image) Path() string {
	return officialNamespace + "/" + i.Repository
}

// Returns the token scope granting pull access to the repository.
func (i Image) Scope() string {
	return "repository:" + i.Path() + ":pull"
}

// Formats the reference as "repository:tag".
func (i Image) String() string {
	return i.Repository + ":" + i.Tag
}
