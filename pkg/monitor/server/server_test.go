package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helvethink/package-release-orchestrator/pkg/config"
	"github.com/helvethink/package-release-orchestrator/pkg/monitor"
	"github.com/helvethink/package-release-orchestrator/pkg/ratelimit"
	"github.com/helvethink/package-release-orchestrator/pkg/registry"
	"github.com/helvethink/package-release-orchestrator/pkg/schemas"
	"github.com/helvethink/package-release-orchestrator/pkg/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	rc, err := registry.NewClient(registry.ClientConfig{
		URL:              "http://localhost",
		UserAgentVersion: "test",
		ReadinessURL:     "http://localhost",
		RateLimiter:      ratelimit.NewLocalLimiter(10, 10),
	})
	require.NoError(t, err)

	cfg := config.New()
	cfg.Server.Webhook.Enabled = true
	cfg.Server.Webhook.SecretToken = "super-secret"
	cfg.Units = []config.Unit{config.NewUnit("pkg")}

	tsm := map[schemas.TaskType]*monitor.TaskSchedulingStatus{
		schemas.TaskTypeRelease: {
			Last: time.Now().Add(-time.Hour),
			Next: time.Now().Add(time.Hour),
		},
	}

	return NewServer(rc, cfg, store.New(context.Background(), nil, cfg.Units), tsm)
}

func TestTelemetryHandler(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.TelemetryHandler(w, httptest.NewRequest(http.MethodGet, "/telemetry", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var telemetry monitor.Telemetry

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &telemetry))
	assert.Equal(t, int64(1), telemetry.Units.Count)
	assert.Zero(t, telemetry.RunReports.Count)
	assert.Zero(t, telemetry.TasksBufferUsage)
	assert.False(t, telemetry.Units.LastRun.IsZero())
	assert.False(t, telemetry.Units.NextRun.IsZero())
}

func TestConfigHandler(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.ConfigHandler(w, httptest.NewRequest(http.MethodGet, "/config", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var cfg monitor.Config

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Contains(t, cfg.Content, "units:")

	// The rendered configuration never exposes the webhook secret
	assert.NotContains(t, cfg.Content, "super-secret")
	assert.Contains(t, cfg.Content, "*******")
}
