package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Number of response body bytes kept in a [StatusError].
const errorBodyLimit = 512

// Performs authenticated GET requests against a registry's v2 API.
//
// The client holds no credentials of its own; each call is given the
// bearer token to present. Redirects are followed, and net/http drops the
// Authorization header when a redirect leaves the registry's host, which is
// what blob storage backends expect.
type Client struct {
	baseURL   *url.URL
	rawClient *http.Client
	userAgent string
}

// Creates a client for the registry at baseURL.
//
// The URL must use the http or https scheme and carry no user information;
// see [validateURL].
func NewClient(baseURL *url.URL, rawClient *http.Client, userAgent string) (*Client, error) {
	if err := validateURL(baseURL); err != nil {
		return nil, err
	}
	if rawClient == nil {
		rawClient = http.DefaultClient
	}
	return &Client{
		baseURL:   baseURL,
		rawClient: rawClient,
		userAgent: userAgent,
	}, nil
}

// Fetches the resource at the path formed by urlParts under the base URL.
//
// At most limit bytes of the body are read; callers that need to detect an
// oversized body should ask for one byte more than they accept. A
// non-success status yields a [*StatusError]. Transport failures match
// [ErrRegistryRequest].
func (c *Client) Get(ctx context.Context, token string, accept []string, limit int64, urlParts ...string) ([]byte, http.Header, error) {
	u := c.baseURL.JoinPath(urlParts...)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrRegistryRequest, err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if len(accept) > 0 {
		req.Header.Set("Accept", strings.Join(accept, ", "))
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.rawClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrRegistryRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, statusError(u, resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: reading %s: %w", ErrRegistryRequest, u, err)
	}
	return body, resp.Header, nil
}

// Builds a [StatusError] from a failed response.
func statusError(u *url.URL, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return &StatusError{
		URL:        u.String(),
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// Checks that u is usable as a registry or token endpoint.
//
// The scheme must be http or https, and user information is refused
// because credentials are never taken from URLs.
func validateURL(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %s: must use scheme \"https\" or \"http\", not %q", ErrInvalidConfig, u, u.Scheme)
	}
	if u.User != nil {
		return fmt.Errorf("%w: %s: must not include a user information portion", ErrInvalidConfig, u.Redacted())
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %s: missing host", ErrInvalidConfig, u)
	}
	return nil
}
