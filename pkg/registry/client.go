package registry

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/paulbellamy/ratecounter"
	"go.opentelemetry.io/otel"

	"github.com/helvethink/package-release-orchestrator/pkg/ratelimit"
)

const (
	userAgent  = "package-release-orchestrator"
	tracerName = "package-release-orchestrator"
)

// Client is a wrapper around a plain HTTP client for the package registry
// upload API, adding support for rate limiting, request counting, readiness
// checks, and registry version tracking with concurrency safety.
type Client struct {
	// HTTPClient is the underlying HTTP client used for upload requests.
	HTTPClient *http.Client

	// BaseURL is the default registry upload endpoint, used when a unit
	// does not override it.
	BaseURL string

	// UserAgent identifies the orchestrator on every registry request.
	UserAgent string

	// Readiness contains configuration to check if the registry
	// is responsive and healthy via an HTTP endpoint.
	Readiness struct {
		URL        string       // URL for readiness checks
		HTTPClient *http.Client // HTTP client used to perform readiness requests
	}

	RateLimiter       ratelimit.Limiter        // RateLimiter controls the rate of API requests to avoid hitting registry rate limits.
	RateCounter       *ratecounter.RateCounter // RateCounter tracks the number of requests over time for monitoring or throttling.
	RequestsCounter   atomic.Uint64            // RequestsCounter is an atomic counter for total requests sent.
	RequestsLimit     int                      // RequestsLimit is the maximum allowed number of requests within a certain period.
	RequestsRemaining int                      // RequestsRemaining tracks how many requests can still be sent before hitting the limit.
	version           RegistryVersion          // version stores the detected registry API version to enable version-aware behavior.
	mutex             sync.RWMutex             // mutex protects concurrent access to mutable shared fields like version and counters.
}

// ClientConfig holds configuration options needed to instantiate a new Client.
type ClientConfig struct {
	URL              string            // Base URL of the registry upload endpoint
	UserAgentVersion string            // User agent string for client identification
	DisableTLSVerify bool              // Whether to skip TLS verification (e.g., for self-signed certs)
	ReadinessURL     string            // URL used for readiness checks
	RateLimiter      ratelimit.Limiter // Optional custom rate limiter implementation
}

// NewHTTPClient creates an HTTP client with optional TLS verification disabling.
// It clones the default transport to preserve proxy settings and other defaults,
// then modifies TLS configuration as requested.
func NewHTTPClient(disableTLSVerify bool) *http.Client {
	// Clone the default transport, which includes proxy and connection settings.
	transport := http.DefaultTransport.(*http.Transport).Clone()

	// Configure TLS to skip verification if requested.
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: disableTLSVerify} //nolint:gosec

	// Return a new HTTP client using the customized transport.
	return &http.Client{
		Transport: transport,
	}
}

// NewClient creates and returns a new Client instance configured with
// the provided ClientConfig. It initializes the underlying HTTP clients,
// readiness check, rate limiting, and request counting.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("registry URL is not configured")
	}

	// Create an HTTP client specifically for readiness checks with a 5-second timeout,
	// optionally disabling TLS verification based on config.
	// Its transport is additionally throttled so that readiness probes cannot
	// compete with uploads for the registry rate limits.
	readinessCheckHTTPClient := NewHTTPClient(cfg.DisableTLSVerify)
	readinessCheckHTTPClient.Transport = ratelimit.NewThrottledTransport(time.Second, 1, readinessCheckHTTPClient.Transport)
	readinessCheckHTTPClient.Timeout = 5 * time.Second

	// Construct and return the wrapped Client, including:
	// - the upload HTTP client,
	// - the configured rate limiter,
	// - the readiness check HTTP client and URL,
	// - and a rate counter measuring request rate per second.
	c := &Client{
		HTTPClient:  NewHTTPClient(cfg.DisableTLSVerify),
		BaseURL:     cfg.URL,
		UserAgent:   fmt.Sprintf("%s-%s", userAgent, cfg.UserAgentVersion),
		RateLimiter: cfg.RateLimiter,
		RateCounter: ratecounter.NewRateCounter(time.Second),
	}

	c.Readiness.URL = cfg.ReadinessURL
	c.Readiness.HTTPClient = readinessCheckHTTPClient

	return c, nil
}

// ReadinessCheck returns a healthcheck.Check function that performs
// an HTTP GET request to the configured readiness URL to verify if
// the registry is ready to accept requests.
func (c *Client) ReadinessCheck(ctx context.Context) healthcheck.Check {
	// Start a tracing span for observability
	ctx, span := otel.Tracer(tracerName).Start(ctx, "registry:ReadinessCheck")
	defer span.End()

	// Return a closure that performs the actual readiness check when called
	return func() error {
		// Ensure the HTTP client for readiness checks is configured
		if c.Readiness.HTTPClient == nil {
			return fmt.Errorf("readiness http client not configured")
		}

		// Create a new HTTP GET request with the provided context
		req, err := http.NewRequestWithContext(
			ctx,
			http.MethodGet,
			c.Readiness.URL,
			nil,
		)
		if err != nil {
			// Return error if request creation failed
			return err
		}

		req.Header.Set("User-Agent", c.UserAgent)

		// Execute the HTTP request using the readiness HTTP client
		resp, err := c.Readiness.HTTPClient.Do(req)
		if err != nil {
			// Return error if the request failed to execute
			return err
		}

		defer resp.Body.Close()

		// Track the registry API version advertised on the readiness endpoint
		if version := resp.Header.Get("X-Registry-Api-Version"); version != "" {
			c.UpdateVersion(NewRegistryVersion(version))
		}

		// If the response status code is not 200 OK, return an error
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("HTTP error: %d", resp.StatusCode)
		}

		// Return nil indicating readiness check passed successfully
		return nil
	}
}

// rateLimit enforces rate limiting by blocking until a token
// is available from the configured RateLimiter. It also increments
// internal counters for monitoring requests made.
func (c *Client) rateLimit(ctx context.Context) {
	// Start a tracing span for observability
	ctx, span := otel.Tracer(tracerName).Start(ctx, "registry:rateLimit")
	defer span.End()

	// Block until allowed by the RateLimiter (e.g., token bucket)
	ratelimit.Take(ctx, c.RateLimiter)

	// Increment the rate counter for monitoring the number of requests per second
	c.RateCounter.Incr(1)

	// Increment the atomic requests counter (total requests made)
	c.RequestsCounter.Add(1)
}

// UpdateVersion safely updates the registry version stored in the client.
// It locks the mutex for writing to prevent concurrent access issues.
func (c *Client) UpdateVersion(version RegistryVersion) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.version = version
}

// Version safely returns the current registry version stored in the client.
// It uses a read lock to allow concurrent readers.
func (c *Client) Version() RegistryVersion {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.version
}

// requestsRemaining parses rate limit headers from the registry API response
// and updates the client's fields to track remaining requests and limit.
func (c *Client) requestsRemaining(response *http.Response) {
	if response == nil {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	// Extract "ratelimit-remaining" header and parse it to int
	if remaining := response.Header.Get("ratelimit-remaining"); remaining != "" {
		c.RequestsRemaining, _ = strconv.Atoi(remaining)
	}

	// Extract "ratelimit-limit" header and parse it to int
	if limit := response.Header.Get("ratelimit-limit"); limit != "" {
		c.RequestsLimit, _ = strconv.Atoi(limit)
	}
}
