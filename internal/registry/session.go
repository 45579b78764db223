package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/platforms"
	"github.com/cruciblehq/husk/internal/layer"
	"github.com/dustin/go-humanize"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"golang.org/x/sync/semaphore"
)

const (

	// Default token service.
	DefaultAuthURL = "https://auth.docker.io/token"

	// Default service name presented to the token service.
	DefaultService = "registry.docker.io"

	// Default registry API base URL.
	DefaultRegistryURL = "https://registry-1.docker.io"

	// Upper bound on manifest bodies, matching the distribution registry's
	// own limit.
	maxManifestSize = 4 << 20
)

// Media types requested when fetching a manifest.
var manifestAccept = []string{
	images.MediaTypeDockerSchema2Manifest,
	ocispec.MediaTypeImageManifest,
}

// Configures a [Session].
type Config struct {
	AuthURL     string       // Token service URL. Empty uses [DefaultAuthURL].
	Service     string       // Service name for token requests. Empty uses [DefaultService].
	RegistryURL string       // Registry API base URL. Empty uses [DefaultRegistryURL].
	Parallel    int          // Blob downloads allowed ahead of extraction. Values below 2 download sequentially.
	UserAgent   string       // User-Agent header for all requests.
	HTTPClient  *http.Client // HTTP client. Nil uses http.DefaultClient.
}

// Pulls a single image.
//
// A session is used by one goroutine and for one image. The token and
// manifest it fetches are never persisted.
type Session struct {
	image    Image
	auth     *Authenticator
	client   *Client
	parallel int
	token    string
	manifest *ocispec.Manifest
}

// Creates a session for img. No network request is made until
// [Session.Authenticate].
func NewSession(cfg Config, img Image) (*Session, error) {
	authURL, err := parseURL(cfg.AuthURL, DefaultAuthURL)
	if err != nil {
		return nil, err
	}
	registryURL, err := parseURL(cfg.RegistryURL, DefaultRegistryURL)
	if err != nil {
		return nil, err
	}

	service := cfg.Service
	if service == "" {
		service = DefaultService
	}

	auth, err := NewAuthenticator(authURL, service, cfg.HTTPClient, cfg.UserAgent)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(registryURL, cfg.HTTPClient, cfg.UserAgent)
	if err != nil {
		return nil, err
	}

	return &Session{
		image:    img,
		auth:     auth,
		client:   client,
		parallel: cfg.Parallel,
	}, nil
}

// Obtains a pull-scoped token for the session's repository.
func (s *Session) Authenticate(ctx context.Context) error {
	token, err := s.auth.Token(ctx, s.image.Scope())
	if err != nil {
		return err
	}
	s.token = token
	slog.Debug("authenticated", "image", s.image.String(), "scope", s.image.Scope())
	return nil
}

// Fetches and decodes the image manifest.
//
// Multi-platform indexes are rejected with [ErrUnsupportedManifest]. A body
// that is not a schema version 2 manifest fails with [ErrDecode]. Panics if
// [Session.Authenticate] has not succeeded.
func (s *Session) FetchManifest(ctx context.Context) (*ocispec.Manifest, error) {
	if s.token == "" {
		panic("registry: FetchManifest called before Authenticate")
	}

	body, header, err := s.client.Get(ctx, s.token, manifestAccept, maxManifestSize+1,
		"v2", s.image.Path(), "manifests", s.image.Tag)
	if err != nil {
		return nil, err
	}
	if len(body) > maxManifestSize {
		return nil, fmt.Errorf("%w: manifest exceeds %s", ErrDecode, humanize.IBytes(maxManifestSize))
	}

	m, err := decodeManifest(body, header)
	if err != nil {
		return nil, err
	}

	s.manifest = m
	slog.Debug("fetched manifest", "image", s.image.String(), "mediaType", m.MediaType, "layers", len(m.Layers))
	return m, nil
}

// Fetches and decodes the image configuration blob.
//
// Panics if [Session.FetchManifest] has not succeeded.
func (s *Session) FetchConfig(ctx context.Context) (*ocispec.Image, error) {
	m := s.requireManifest("FetchConfig")

	blob, err := s.fetchBlob(ctx, m.Config)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var config ocispec.Image
	if err := json.Unmarshal(blob, &config); err != nil {
		return nil, fmt.Errorf("%w: config: %w", ErrDecode, err)
	}
	return &config, nil
}

// Downloads every layer and extracts it into dest, in manifest order.
//
// Each blob must match its declared size and digest ([ErrIntegrity]).
// Extraction failures are returned from the layer package unchanged apart
// from added context. Panics if [Session.FetchManifest] has not succeeded.
func (s *Session) DownloadLayers(ctx context.Context, dest string) error {
	layers := s.requireManifest("DownloadLayers").Layers

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slog.Info("pulling image", "image", s.image.String(), "layers", len(layers))

	next := s.prefetch(ctx, layers)
	for i, desc := range layers {
		blob, err := next(i)
		if err != nil {
			return fmt.Errorf("layer %d: %w", i+1, err)
		}

		if err := s.apply(ctx, desc, blob, dest); err != nil {
			return fmt.Errorf("layer %d: %w", i+1, err)
		}
	}
	return nil
}

// Returns a function yielding the blob of layer i.
//
// Sequential sessions fetch on demand. Otherwise blobs are fetched ahead in
// manifest order, with at most Parallel fetched or in-flight blobs held at
// once; a slot is freed when the caller takes a blob. The caller must
// request indexes in increasing order.
func (s *Session) prefetch(ctx context.Context, layers []ocispec.Descriptor) func(int) ([]byte, error) {
	if s.parallel < 2 {
		return func(i int) ([]byte, error) {
			return s.fetchBlob(ctx, layers[i])
		}
	}

	type fetched struct {
		blob []byte
		err  error
	}

	window := semaphore.NewWeighted(int64(s.parallel))
	slots := make([]chan fetched, len(layers))
	for i := range slots {
		slots[i] = make(chan fetched, 1)
	}

	go func() {
		for i, desc := range layers {
			if err := window.Acquire(ctx, 1); err != nil {
				return
			}
			go func() {
				blob, err := s.fetchBlob(ctx, desc)
				slots[i] <- fetched{blob: blob, err: err}
			}()
		}
	}()

	return func(i int) ([]byte, error) {
		select {
		case f := <-slots[i]:
			window.Release(1)
			return f.blob, f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Downloads a blob and verifies it against desc.
func (s *Session) fetchBlob(ctx context.Context, desc ocispec.Descriptor) ([]byte, error) {
	if err := desc.Digest.Validate(); err != nil {
		return nil, fmt.Errorf("%w: digest %q: %w", ErrDecode, desc.Digest, err)
	}
	if desc.Size < 0 {
		return nil, fmt.Errorf("%w: negative size for %s", ErrDecode, desc.Digest)
	}

	slog.Debug("fetching blob", "digest", desc.Digest.String(), "size", humanize.Bytes(uint64(desc.Size)))

	blob, _, err := s.client.Get(ctx, s.token, nil, desc.Size+1,
		"v2", s.image.Path(), "blobs", desc.Digest.String())
	if err != nil {
		return nil, err
	}

	if err := verify(desc, blob); err != nil {
		return nil, err
	}
	return blob, nil
}

// Unpacks a verified layer blob into dest.
func (s *Session) apply(ctx context.Context, desc ocispec.Descriptor, blob []byte, dest string) error {
	compression, err := layer.ForMediaType(ctx, desc.MediaType)
	if err != nil {
		return err
	}

	slog.Info("extracting layer",
		"digest", shortDigest(desc.Digest),
		"size", humanize.Bytes(uint64(desc.Size)),
		"compression", compression.String(),
	)

	return layer.Unpack(bytes.NewReader(blob), dest, compression)
}

// Returns the fetched manifest, panicking if there is none.
func (s *Session) requireManifest(op string) *ocispec.Manifest {
	if s.manifest == nil {
		panic("registry: " + op + " called before FetchManifest")
	}
	return s.manifest
}

// Checks a blob's length and digest against its descriptor.
func verify(desc ocispec.Descriptor, blob []byte) error {
	if int64(len(blob)) != desc.Size {
		return fmt.Errorf("%w: %s: received %d bytes, expected %d", ErrIntegrity, desc.Digest, len(blob), desc.Size)
	}

	verifier := desc.Digest.Verifier()
	verifier.Write(blob)
	if !verifier.Verified() {
		return fmt.Errorf("%w: %s: content does not match digest", ErrIntegrity, desc.Digest)
	}
	return nil
}

// Decodes a manifest body, consulting the Content-Type header when the body
// does not declare its own media type.
func decodeManifest(body []byte, header http.Header) (*ocispec.Manifest, error) {
	var m ocispec.Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %w", ErrDecode, err)
	}

	mediaType := m.MediaType
	if mediaType == "" {
		mediaType, _, _ = mime.ParseMediaType(header.Get("Content-Type"))
	}
	if images.IsIndexType(mediaType) {
		return nil, fmt.Errorf("%w: %s is a multi-platform index; select a platform-specific tag for %s",
			ErrUnsupportedManifest, mediaType, platforms.DefaultString())
	}

	if m.SchemaVersion != 2 {
		return nil, fmt.Errorf("%w: unsupported manifest schema version %d", ErrDecode, m.SchemaVersion)
	}
	m.MediaType = mediaType
	return &m, nil
}

// Parses raw, or fallback when raw is empty.
func parseURL(raw, fallback string) (*url.URL, error) {
	if raw == "" {
		raw = fallback
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return u, nil
}

// Returns the first twelve characters of the encoded digest.
func shortDigest(d digest.Digest) string {
	enc := d.Encoded()
	if len(enc) > 12 {
		enc = enc[:12]
	}
	return enc
}
