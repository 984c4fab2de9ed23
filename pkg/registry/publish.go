package registry

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/helvethink/package-release-orchestrator/pkg/schemas"
)

var (
	// ErrAuthFailure is returned when the registry rejects the configured credentials.
	ErrAuthFailure = errors.New("registry rejected the configured credentials")

	// ErrVersionConflict is returned when the uploaded version already exists in the
	// registry and skipping existing versions is not enabled.
	ErrVersionConflict = errors.New("version already present in the registry")

	// ErrNetworkExhausted is returned when an upload was abandoned after exhausting
	// the bounded retry attempts on transient failures.
	ErrNetworkExhausted = errors.New("upload retry attempts exhausted")
)

// PublishOutcome represents the result of a successful publish operation.
type PublishOutcome string

const (
	// PublishOutcomeUploaded indicates at least one artifact was uploaded to the registry.
	PublishOutcomeUploaded PublishOutcome = "uploaded"

	// PublishOutcomeAlreadyPresent indicates every artifact version was already
	// present in the registry and skipping was enabled.
	PublishOutcomeAlreadyPresent PublishOutcome = "already_present"
)

// artifactOutcome represents the result of a single artifact upload.
type artifactOutcome uint8

const (
	artifactUploaded artifactOutcome = iota
	artifactAlreadyPresent
)

// PublishOptions holds the parameters of one publish operation.
type PublishOptions struct {
	URL          string        // Registry upload endpoint, defaults to the client's BaseURL when empty
	Credentials  Credentials   // Credentials used to authenticate the uploads
	SkipExisting bool          // Whether versions already present in the registry are treated as skipped
	MaxAttempts  int           // Maximum upload attempts per artifact on transient failures
	Backoff      time.Duration // Base delay between upload attempts, doubled on each retry
}

// Publish uploads every artifact of the set to the registry.
// The retry policy on transient failures is internal: callers only see the
// final outcome or a classified error (ErrAuthFailure, ErrVersionConflict,
// ErrNetworkExhausted).
func (c *Client) Publish(ctx context.Context, artifacts schemas.ArtifactSet, opts PublishOptions) (PublishOutcome, error) {
	// Start a tracing span for observability
	ctx, span := otel.Tracer(tracerName).Start(ctx, "registry:Publish", trace.WithAttributes(
		attribute.Int("artifacts_count", artifacts.Count()),
	))
	defer span.End()

	// Credentials must have been resolved before any upload is attempted
	if opts.Credentials.Username == "" || opts.Credentials.Password == "" {
		return "", fmt.Errorf("registry credentials are not configured")
	}

	if artifacts.Count() == 0 {
		return "", fmt.Errorf("no artifacts to publish")
	}

	uploadURL := opts.URL
	if uploadURL == "" {
		uploadURL = c.BaseURL
	}

	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	var uploaded, skipped int

	for _, artifact := range artifacts {
		outcome, err := c.uploadArtifact(ctx, artifact, uploadURL, opts)
		if err != nil {
			return "", err
		}

		switch outcome {
		case artifactUploaded:
			uploaded++
		case artifactAlreadyPresent:
			skipped++
		}
	}

	// The publish only counts as "already present" when every single artifact
	// version was found in the registry
	if uploaded == 0 && skipped > 0 {
		return PublishOutcomeAlreadyPresent, nil
	}

	return PublishOutcomeUploaded, nil
}

// uploadArtifact uploads a single artifact file, retrying transient failures
// with an exponential backoff bounded by the configured attempts.
func (c *Client) uploadArtifact(ctx context.Context, artifact schemas.Artifact, uploadURL string, opts PublishOptions) (artifactOutcome, error) {
	backoff := opts.Backoff

	var lastErr error

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		// Enforce the registry request rate limits before each attempt
		c.rateLimit(ctx)

		outcome, retryable, err := c.doUpload(ctx, artifact, uploadURL, opts)
		if err == nil {
			return outcome, nil
		}

		// Permanent rejections (auth, conflict, malformed request) are
		// returned immediately without consuming further attempts
		if !retryable {
			return 0, err
		}

		lastErr = err

		log.WithContext(ctx).
			WithFields(log.Fields{
				"artifact":     artifact.Filename,
				"attempt":      attempt,
				"max-attempts": opts.MaxAttempts,
			}).
			WithError(err).
			Warn("artifact upload attempt failed")

		// Wait before the next attempt, unless this was the last one
		if attempt < opts.MaxAttempts {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
	}

	return 0, errors.Wrapf(ErrNetworkExhausted, "artifact %s: %v", artifact.Filename, lastErr)
}

// doUpload performs one multipart upload request for the artifact.
// It returns whether a failed request is worth retrying.
func (c *Client) doUpload(ctx context.Context, artifact schemas.Artifact, uploadURL string, opts PublishOptions) (outcome artifactOutcome, retryable bool, err error) {
	body, contentType, err := c.multipartBody(artifact)
	if err != nil {
		return 0, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, body)
	if err != nil {
		return 0, false, err
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", c.UserAgent)
	req.SetBasicAuth(opts.Credentials.Username, opts.Credentials.Password)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// Transport level errors are transient by nature
		return 0, true, err
	}

	defer resp.Body.Close()

	// Keep track of the registry rate limit headers
	c.requestsRemaining(resp)

	// Read a bounded chunk of the response body for error classification
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return artifactUploaded, false, nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return 0, false, errors.Wrapf(ErrAuthFailure, "artifact %s", artifact.Filename)

	case isVersionConflict(resp.StatusCode, respBody):
		if opts.SkipExisting {
			log.WithContext(ctx).
				WithField("artifact", artifact.Filename).
				Debug("artifact version already present in the registry, skipping")

			return artifactAlreadyPresent, false, nil
		}

		return 0, false, errors.Wrapf(ErrVersionConflict, "artifact %s", artifact.Filename)

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return 0, true, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))

	default:
		return 0, false, fmt.Errorf("artifact %s rejected: HTTP %d: %s", artifact.Filename, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
}

// multipartBody builds the multipart upload payload for the artifact.
func (c *Client) multipartBody(artifact schemas.Artifact) (body *bytes.Buffer, contentType string, err error) {
	f, err := os.Open(artifact.Path)
	if err != nil {
		return nil, "", errors.Wrapf(err, "opening artifact %s", artifact.Filename)
	}

	defer f.Close()

	body = &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("content", artifact.Filename)
	if err != nil {
		return nil, "", err
	}

	// Compute the sha256 digest while streaming the file into the payload
	digest := sha256.New()
	if _, err = io.Copy(io.MultiWriter(part, digest), f); err != nil {
		return nil, "", errors.Wrapf(err, "reading artifact %s", artifact.Filename)
	}

	// Registries with server-side digest verification expect the digest alongside the file
	if c.Version().DigestVerificationSupported() {
		if err = writer.WriteField("sha256_digest", hex.EncodeToString(digest.Sum(nil))); err != nil {
			return nil, "", err
		}
	}

	if err = writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

// isVersionConflict reports whether the registry response indicates the
// uploaded version already exists. Some registries signal this with a 409,
// others with a 400 and an explanatory message.
func isVersionConflict(statusCode int, body []byte) bool {
	if statusCode == http.StatusConflict {
		return true
	}

	return statusCode == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(string(body)), "already exist")
}
