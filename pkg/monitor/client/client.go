package client

import (
	"context"       // Package for managing context and cancellation
	"encoding/json" // Package for decoding JSON payloads
	"net"           // Package for network I/O
	"net/http"      // Package for the HTTP client
	"net/url"       // Package for URL parsing and manipulation
	"time"          // Package for time-related operations

	"github.com/pkg/errors"          // Enhanced error handling library
	log "github.com/sirupsen/logrus" // Logging library

	"github.com/helvethink/package-release-orchestrator/pkg/monitor" // Monitoring payload definitions
)

// Client represents an HTTP client for interacting with the monitoring server.
type Client struct {
	httpClient *http.Client // HTTP client used to reach the monitoring listener
	baseURL    string       // Base URL of the monitoring endpoints
}

// NewClient creates a new HTTP client for the monitoring server.
func NewClient(endpoint *url.URL) *Client {
	// Log the monitoring endpoint being configured
	log.WithField("endpoint", endpoint.String()).Debug("configuring monitoring client..")

	c := &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    endpoint.String(),
	}

	// Unix sockets are dialed directly, the host part of the URL is only decorative
	if endpoint.Scheme == "unix" {
		socketPath := endpoint.Path
		c.baseURL = "http://unix"
		c.httpClient.Transport = &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return (&net.Dialer{}).DialContext(ctx, "unix", socketPath)
			},
		}
	}

	return c
}

// GetConfig retrieves the running configuration from the monitoring server.
func (c *Client) GetConfig(ctx context.Context) (cfg monitor.Config, err error) {
	err = c.get(ctx, "/config", &cfg)

	return
}

// GetTelemetry retrieves a telemetry snapshot from the monitoring server.
func (c *Client) GetTelemetry(ctx context.Context) (t monitor.Telemetry, err error) {
	err = c.get(ctx, "/telemetry", &t)

	return
}

// get performs a GET request against the monitoring server and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "creating monitoring request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "querying the monitoring server")
	}
	defer resp.Body.Close() // nolint: errcheck

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("monitoring server replied with status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
