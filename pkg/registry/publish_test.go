package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/helvethink/package-release-orchestrator/pkg/ratelimit"
	"github.com/helvethink/package-release-orchestrator/pkg/schemas"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()

	c, err := NewClient(ClientConfig{
		URL:              url,
		UserAgentVersion: "test",
		ReadinessURL:     url,
		RateLimiter:      ratelimit.NewLocalLimiter(1000, 1000),
	})
	assert.NoError(t, err)

	return c
}

func newTestArtifacts(t *testing.T, filenames ...string) (artifacts schemas.ArtifactSet) {
	t.Helper()

	dir := t.TempDir()
	for _, filename := range filenames {
		path := filepath.Join(dir, filename)
		assert.NoError(t, os.WriteFile(path, []byte("artifact content"), 0o600))

		artifacts = append(artifacts, schemas.Artifact{
			Filename:  filename,
			Path:      path,
			SizeBytes: int64(len("artifact content")),
		})
	}

	return
}

func testPublishOptions(creds Credentials) PublishOptions {
	return PublishOptions{
		Credentials:  creds,
		SkipExisting: true,
		MaxAttempts:  3,
		Backoff:      time.Millisecond,
	}
}

func TestPublishUploadsArtifacts(t *testing.T) {
	var requests atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)

		username, password, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "user", username)
		assert.Equal(t, "pass", password)

		assert.NoError(t, r.ParseMultipartForm(1 << 20))

		_, header, err := r.FormFile("content")
		assert.NoError(t, err)
		assert.NotEmpty(t, header.Filename)

		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	artifacts := newTestArtifacts(t, "pkg-1.0.0.tar.gz", "pkg-1.0.0-py3-none-any.whl")

	outcome, err := c.Publish(context.Background(), artifacts, testPublishOptions(Credentials{Username: "user", Password: "pass"}))
	assert.NoError(t, err)
	assert.Equal(t, PublishOutcomeUploaded, outcome)
	assert.Equal(t, int64(2), requests.Load())
	assert.Equal(t, uint64(2), c.RequestsCounter.Load())
}

func TestPublishAlreadyPresentWithSkipExisting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	artifacts := newTestArtifacts(t, "pkg-1.0.0.tar.gz")

	outcome, err := c.Publish(context.Background(), artifacts, testPublishOptions(Credentials{Username: "user", Password: "pass"}))
	assert.NoError(t, err)
	assert.Equal(t, PublishOutcomeAlreadyPresent, outcome)
}

func TestPublishConflictMessageWithSkipExisting(t *testing.T) {
	// Some registries answer 400 with an explanatory message instead of 409
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("File already exists."))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	artifacts := newTestArtifacts(t, "pkg-1.0.0.tar.gz")

	outcome, err := c.Publish(context.Background(), artifacts, testPublishOptions(Credentials{Username: "user", Password: "pass"}))
	assert.NoError(t, err)
	assert.Equal(t, PublishOutcomeAlreadyPresent, outcome)
}

func TestPublishMixedUploadsAndConflicts(t *testing.T) {
	var requests atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// First artifact conflicts, second one uploads
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusConflict)
			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	artifacts := newTestArtifacts(t, "pkg-1.0.0.tar.gz", "pkg-1.0.0-py3-none-any.whl")

	outcome, err := c.Publish(context.Background(), artifacts, testPublishOptions(Credentials{Username: "user", Password: "pass"}))
	assert.NoError(t, err)
	assert.Equal(t, PublishOutcomeUploaded, outcome)
}

func TestPublishVersionConflictWithoutSkipExisting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	artifacts := newTestArtifacts(t, "pkg-1.0.0.tar.gz")

	opts := testPublishOptions(Credentials{Username: "user", Password: "pass"})
	opts.SkipExisting = false

	_, err := c.Publish(context.Background(), artifacts, opts)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestPublishAuthFailure(t *testing.T) {
	var requests atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	artifacts := newTestArtifacts(t, "pkg-1.0.0.tar.gz")

	_, err := c.Publish(context.Background(), artifacts, testPublishOptions(Credentials{Username: "user", Password: "wrong"}))
	assert.ErrorIs(t, err, ErrAuthFailure)

	// Auth failures are permanent, no retries
	assert.Equal(t, int64(1), requests.Load())
}

func TestPublishRetriesTransientFailures(t *testing.T) {
	var requests atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Fail the first two attempts, succeed on the third
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	artifacts := newTestArtifacts(t, "pkg-1.0.0.tar.gz")

	outcome, err := c.Publish(context.Background(), artifacts, testPublishOptions(Credentials{Username: "user", Password: "pass"}))
	assert.NoError(t, err)
	assert.Equal(t, PublishOutcomeUploaded, outcome)
	assert.Equal(t, int64(3), requests.Load())
}

func TestPublishNetworkExhausted(t *testing.T) {
	var requests atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	artifacts := newTestArtifacts(t, "pkg-1.0.0.tar.gz")

	_, err := c.Publish(context.Background(), artifacts, testPublishOptions(Credentials{Username: "user", Password: "pass"}))
	assert.ErrorIs(t, err, ErrNetworkExhausted)

	// The retry attempts are bounded
	assert.Equal(t, int64(3), requests.Load())
}

func TestPublishWithoutCredentials(t *testing.T) {
	var requests atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	artifacts := newTestArtifacts(t, "pkg-1.0.0.tar.gz")

	_, err := c.Publish(context.Background(), artifacts, testPublishOptions(Credentials{}))
	assert.Error(t, err)

	// No network call may happen without credentials
	assert.Equal(t, int64(0), requests.Load())
}

func TestPublishDigestFieldWhenSupported(t *testing.T) {
	var digest atomic.Value

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		digest.Store(r.FormValue("sha256_digest"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	c.UpdateVersion(NewRegistryVersion("2.1.0"))

	artifacts := newTestArtifacts(t, "pkg-1.0.0.tar.gz")

	_, err := c.Publish(context.Background(), artifacts, testPublishOptions(Credentials{Username: "user", Password: "pass"}))
	assert.NoError(t, err)
	assert.NotEmpty(t, digest.Load())
}

func TestResolveCredentials(t *testing.T) {
	t.Setenv("TEST_REGISTRY_USERNAME", "user")
	t.Setenv("TEST_REGISTRY_PASSWORD", "pass")

	creds, err := ResolveCredentials("TEST_REGISTRY_USERNAME", "TEST_REGISTRY_PASSWORD")
	assert.NoError(t, err)
	assert.Equal(t, "user", creds.Username)
	assert.Equal(t, "pass", creds.Password)

	// The masked representation never contains the secret
	assert.NotContains(t, creds.String(), "pass")
}

func TestResolveCredentialsMissing(t *testing.T) {
	t.Setenv("TEST_REGISTRY_USERNAME", "")
	t.Setenv("TEST_REGISTRY_PASSWORD", "pass")

	_, err := ResolveCredentials("TEST_REGISTRY_USERNAME", "TEST_REGISTRY_PASSWORD")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_REGISTRY_USERNAME")
	assert.NotContains(t, err.Error(), "pass")
}
