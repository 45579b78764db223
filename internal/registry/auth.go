package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Upper bound on token response bodies.
const maxTokenResponse = 1 << 20

// Obtains anonymous bearer tokens from a registry token service.
type Authenticator struct {
	endpoint  *url.URL
	service   string
	rawClient *http.Client
	userAgent string
}

// Creates an authenticator for the token service at endpoint, requesting
// tokens for the named registry service.
func NewAuthenticator(endpoint *url.URL, service string, rawClient *http.Client, userAgent string) (*Authenticator, error) {
	if err := validateURL(endpoint); err != nil {
		return nil, err
	}
	if rawClient == nil {
		rawClient = http.DefaultClient
	}
	return &Authenticator{
		endpoint:  endpoint,
		service:   service,
		rawClient: rawClient,
		userAgent: userAgent,
	}, nil
}

// Shape of a token service response. Some services only populate
// access_token.
type tokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
}

// Requests a token for scope.
//
// Fails with [ErrAuthentication] when the request cannot be made, the
// service answers with a non-success status, or the body carries no token.
func (a *Authenticator) Token(ctx context.Context, scope string) (string, error) {
	u := *a.endpoint
	q := u.Query()
	q.Set("service", a.service)
	q.Set("scope", scope)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.rawClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: token service returned %d %s", ErrAuthentication, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var body tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxTokenResponse)).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: response is not in the expected format: %w", ErrAuthentication, err)
	}

	token := body.Token
	if token == "" {
		token = body.AccessToken
	}
	if token == "" {
		return "", fmt.Errorf("%w: no token in response", ErrAuthentication)
	}
	return token, nil
}
