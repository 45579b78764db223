package registry

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/containerd/containerd/v2/core/images"
	"github.com/klauspost/compress/gzip"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const testToken = "t0ken"

// An in-memory registry and token service.
type fakeRegistry struct {
	t      *testing.T
	server *httptest.Server

	mu        sync.Mutex
	manifests map[string][]byte // keyed by "<path>:<tag>"
	mediaType map[string]string // Content-Type per manifest key
	blobs     map[digest.Digest][]byte
	requests  []*http.Request
	tokenBody string
}

func newFakeRegistry(t *testing.T) *fakeRegistry {
	t.Helper()

	f := &fakeRegistry{
		t:         t,
		manifests: make(map[string][]byte),
		mediaType: make(map[string]string),
		blobs:     make(map[digest.Digest][]byte),
		tokenBody: `{"token":"` + testToken + `"}`,
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeRegistry) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Clone(r.Context()))
	f.mu.Unlock()

	if r.URL.Path == "/token" {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(f.tokenBody))
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+testToken {
		http.Error(w, `{"errors":[{"code":"UNAUTHORIZED"}]}`, http.StatusUnauthorized)
		return
	}

	rest, ok := strings.CutPrefix(r.URL.Path, "/v2/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	if i := strings.LastIndex(rest, "/manifests/"); i >= 0 {
		key := rest[:i] + ":" + rest[i+len("/manifests/"):]
		f.mu.Lock()
		body, found := f.manifests[key]
		ct := f.mediaType[key]
		f.mu.Unlock()
		if !found {
			http.Error(w, `{"errors":[{"code":"MANIFEST_UNKNOWN"}]}`, http.StatusNotFound)
			return
		}
		if ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.Write(body)
		return
	}

	if i := strings.LastIndex(rest, "/blobs/"); i >= 0 {
		f.mu.Lock()
		body, found := f.blobs[digest.Digest(rest[i+len("/blobs/"):])]
		f.mu.Unlock()
		if !found {
			http.Error(w, `{"errors":[{"code":"BLOB_UNKNOWN"}]}`, http.StatusNotFound)
			return
		}
		w.Write(body)
		return
	}

	http.NotFound(w, r)
}

// Stores blob and returns a descriptor for it.
func (f *fakeRegistry) addBlob(mediaType string, blob []byte) ocispec.Descriptor {
	d := digest.FromBytes(blob)
	f.mu.Lock()
	f.blobs[d] = blob
	f.mu.Unlock()
	return ocispec.Descriptor{MediaType: mediaType, Digest: d, Size: int64(len(blob))}
}

// Stores a raw manifest body for library/<repo>:<tag>.
func (f *fakeRegistry) putManifest(repo, tag, contentType string, body []byte) {
	key := "library/" + repo + ":" + tag
	f.mu.Lock()
	f.manifests[key] = body
	f.mediaType[key] = contentType
	f.mu.Unlock()
}

// Publishes an image made of the given gzip layers and returns its manifest.
func (f *fakeRegistry) addImage(repo, tag string, config ocispec.Image, layers ...[]byte) ocispec.Manifest {
	f.t.Helper()

	configBlob, err := json.Marshal(config)
	if err != nil {
		f.t.Fatalf("marshal config: %v", err)
	}

	m := ocispec.Manifest{
		MediaType: images.MediaTypeDockerSchema2Manifest,
		Config:    f.addBlob(images.MediaTypeDockerSchema2Config, configBlob),
	}
	m.SchemaVersion = 2
	for _, l := range layers {
		m.Layers = append(m.Layers, f.addBlob(images.MediaTypeDockerSchema2LayerGzip, l))
	}

	body, err := json.Marshal(m)
	if err != nil {
		f.t.Fatalf("marshal manifest: %v", err)
	}
	f.putManifest(repo, tag, images.MediaTypeDockerSchema2Manifest, body)
	return m
}

// Returns a session configuration pointing at the fake.
func (f *fakeRegistry) config() Config {
	return Config{
		AuthURL:     f.server.URL + "/token",
		Service:     "fake.registry",
		RegistryURL: f.server.URL,
		UserAgent:   "husk-test/1",
		HTTPClient:  f.server.Client(),
	}
}

// Returns a copy of the requests seen so far.
func (f *fakeRegistry) seen() []*http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*http.Request(nil), f.requests...)
}

// Builds a gzip-compressed tar layer holding files.
func gzipLayer(t *testing.T, files map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, name := range names {
		body := files[name]
		hdr := &tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0644, Size: int64(len(body))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("WriteHeader(%q): %v", name, err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatalf("Write(%q): %v", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}
