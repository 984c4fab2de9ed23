package controller

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helvethink/package-release-orchestrator/pkg/config"
	"github.com/helvethink/package-release-orchestrator/pkg/ratelimit"
	"github.com/helvethink/package-release-orchestrator/pkg/registry"
	"github.com/helvethink/package-release-orchestrator/pkg/schemas"
	"github.com/helvethink/package-release-orchestrator/pkg/store"
)

// stubBuilder records which units were built and delegates to a configurable function.
type stubBuilder struct {
	mu      sync.Mutex
	built   []string
	buildFn func(ctx context.Context, unit schemas.Unit) (schemas.ArtifactSet, error)
}

func (b *stubBuilder) Build(ctx context.Context, unit schemas.Unit) (schemas.ArtifactSet, error) {
	b.mu.Lock()
	b.built = append(b.built, unit.Name)
	b.mu.Unlock()

	return b.buildFn(ctx, unit)
}

func (b *stubBuilder) buildCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.built)
}

func newTestArtifacts(t *testing.T, filename string) schemas.ArtifactSet {
	t.Helper()

	path := filepath.Join(t.TempDir(), filename)
	require.NoError(t, os.WriteFile(path, []byte("artifact content"), 0o600))

	return schemas.ArtifactSet{
		{
			Filename:  filename,
			Path:      path,
			SizeBytes: int64(len("artifact content")),
		},
	}
}

func newTestController(t *testing.T, registryURL string, units ...config.Unit) (c Controller, b *stubBuilder) {
	t.Helper()

	cfg := config.New()
	cfg.Units = units
	cfg.Registry.PublishMaxAttempts = 1
	cfg.Registry.PublishBackoffSeconds = 1
	cfg.Release.KeepArtifacts = true

	rc, err := registry.NewClient(registry.ClientConfig{
		URL:              registryURL,
		UserAgentVersion: "test",
		ReadinessURL:     registryURL,
		RateLimiter:      ratelimit.NewLocalLimiter(1000, 1000),
	})
	require.NoError(t, err)

	b = &stubBuilder{
		buildFn: func(_ context.Context, unit schemas.Unit) (schemas.ArtifactSet, error) {
			return newTestArtifacts(t, fmt.Sprintf("%s-1.0.0.tar.gz", unit.Name)), nil
		},
	}

	c = Controller{
		Config:   cfg,
		Registry: rc,
		Store:    store.New(context.Background(), nil, cfg.Units),
		Builder:  b,
		UUID:     uuid.New(),
	}

	return
}

func setTestCredentials(t *testing.T) {
	t.Helper()

	t.Setenv("REGISTRY_USERNAME", "user")
	t.Setenv("REGISTRY_PASSWORD", "pass")
}

func TestExecuteReleaseIgnoresNonReleaseEvents(t *testing.T) {
	c, b := newTestController(t, "http://localhost", config.NewUnit("pkg"))

	report, err := c.ExecuteRelease(context.Background(), schemas.ReleaseEvent{EventType: "push"})
	assert.NoError(t, err)
	assert.Empty(t, report.ID)
	assert.Empty(t, report.Results)
	assert.Zero(t, b.buildCount())
}

func TestExecuteReleaseAllUnitsSucceed(t *testing.T) {
	setTestCredentials(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, _ := newTestController(t, srv.URL,
		config.NewUnit("charlie"),
		config.NewUnit("alpha"),
		config.NewUnit("bravo"),
	)

	report, err := c.ExecuteRelease(context.Background(), schemas.NewReleaseEvent("v1.0.0"))
	assert.NoError(t, err)
	assert.Equal(t, schemas.RunStatusSucceeded, report.Status)
	assert.False(t, report.TimedOut)

	// One result per configured unit, in a stable order regardless of completion order
	require.Len(t, report.Results, 3)
	assert.Equal(t, "alpha", report.Results[0].UnitName)
	assert.Equal(t, "bravo", report.Results[1].UnitName)
	assert.Equal(t, "charlie", report.Results[2].UnitName)

	for _, result := range report.Results {
		assert.Equal(t, schemas.UnitStatusSucceeded, result.Status)
		assert.Equal(t, 1, result.ArtifactCount)
	}

	// The report is persisted in the store
	storedReport := schemas.RunReport{ID: report.ID}
	assert.NoError(t, c.Store.GetRunReport(context.Background(), &storedReport))
	assert.Equal(t, schemas.RunStatusSucceeded, storedReport.Status)

	// The run metrics reflect the outcome
	runCount := schemas.Metric{Kind: schemas.MetricKindRunCount}
	assert.NoError(t, c.Store.GetMetric(context.Background(), &runCount))
	assert.Equal(t, float64(1), runCount.Value)

	runStatus := schemas.Metric{
		Kind:   schemas.MetricKindRunStatus,
		Labels: map[string]string{"status": "succeeded"},
	}
	assert.NoError(t, c.Store.GetMetric(context.Background(), &runStatus))
	assert.Equal(t, float64(1), runStatus.Value)
}

func TestExecuteReleaseFailureIsolation(t *testing.T) {
	setTestCredentials(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, b := newTestController(t, srv.URL,
		config.NewUnit("broken"),
		config.NewUnit("healthy"),
	)

	healthyBuild := b.buildFn
	b.buildFn = func(ctx context.Context, unit schemas.Unit) (schemas.ArtifactSet, error) {
		if unit.Name == "broken" {
			return nil, fmt.Errorf("unit broken build command failed")
		}

		return healthyBuild(ctx, unit)
	}

	report, err := c.ExecuteRelease(context.Background(), schemas.NewReleaseEvent("v1.0.0"))
	assert.NoError(t, err)
	assert.Equal(t, schemas.RunStatusFailed, report.Status)

	require.Len(t, report.Results, 2)
	assert.Equal(t, schemas.UnitStatusFailed, report.Results[0].Status)
	assert.Equal(t, schemas.FailureReasonBuildFailed, report.Results[0].Reason)
	assert.NotEmpty(t, report.Results[0].Detail)

	// The failure of one unit does not prevent its sibling from being published
	assert.Equal(t, schemas.UnitStatusSucceeded, report.Results[1].Status)
}

func TestExecuteReleaseBuildFailureSkipsPublish(t *testing.T) {
	setTestCredentials(t)

	var uploads atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		uploads.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, b := newTestController(t, srv.URL, config.NewUnit("pkg"))
	b.buildFn = func(_ context.Context, _ schemas.Unit) (schemas.ArtifactSet, error) {
		return nil, fmt.Errorf("build produced no artifacts")
	}

	report, err := c.ExecuteRelease(context.Background(), schemas.NewReleaseEvent("v1.0.0"))
	assert.NoError(t, err)
	assert.Equal(t, schemas.RunStatusFailed, report.Status)
	assert.Zero(t, uploads.Load())
}

func TestExecuteReleaseSkipExisting(t *testing.T) {
	setTestCredentials(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c, _ := newTestController(t, srv.URL, config.NewUnit("pkg"))

	report, err := c.ExecuteRelease(context.Background(), schemas.NewReleaseEvent("v1.0.0"))
	assert.NoError(t, err)

	// A version already present in the registry does not fail the run
	assert.Equal(t, schemas.RunStatusSucceeded, report.Status)
	require.Len(t, report.Results, 1)
	assert.Equal(t, schemas.UnitStatusSkipped, report.Results[0].Status)
}

func TestExecuteReleaseVersionConflict(t *testing.T) {
	setTestCredentials(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	unit := config.NewUnit("pkg")
	unit.Publish.SkipExisting = false

	c, _ := newTestController(t, srv.URL, unit)

	report, err := c.ExecuteRelease(context.Background(), schemas.NewReleaseEvent("v1.0.0"))
	assert.NoError(t, err)
	assert.Equal(t, schemas.RunStatusFailed, report.Status)
	require.Len(t, report.Results, 1)
	assert.Equal(t, schemas.UnitStatusFailed, report.Results[0].Status)
	assert.Equal(t, schemas.FailureReasonVersionConflict, report.Results[0].Reason)
}

func TestExecuteReleaseAuthFailure(t *testing.T) {
	setTestCredentials(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c, _ := newTestController(t, srv.URL, config.NewUnit("pkg"))

	report, err := c.ExecuteRelease(context.Background(), schemas.NewReleaseEvent("v1.0.0"))
	assert.NoError(t, err)
	assert.Equal(t, schemas.RunStatusFailed, report.Status)
	require.Len(t, report.Results, 1)
	assert.Equal(t, schemas.FailureReasonAuthentication, report.Results[0].Reason)
}

func TestExecuteReleaseNetworkExhausted(t *testing.T) {
	setTestCredentials(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := newTestController(t, srv.URL, config.NewUnit("pkg"))

	report, err := c.ExecuteRelease(context.Background(), schemas.NewReleaseEvent("v1.0.0"))
	assert.NoError(t, err)
	assert.Equal(t, schemas.RunStatusFailed, report.Status)
	require.Len(t, report.Results, 1)
	assert.Equal(t, schemas.FailureReasonNetworkExhausted, report.Results[0].Reason)
}

func TestExecuteReleaseMissingCredentialsFailBeforeBuild(t *testing.T) {
	c, b := newTestController(t, "http://localhost", config.NewUnit("pkg"))
	c.Config.Registry.UsernameEnv = "PRO_TEST_UNSET_USERNAME"
	c.Config.Registry.PasswordEnv = "PRO_TEST_UNSET_PASSWORD"

	report, err := c.ExecuteRelease(context.Background(), schemas.NewReleaseEvent("v1.0.0"))
	assert.NoError(t, err)
	assert.Equal(t, schemas.RunStatusFailed, report.Status)
	require.Len(t, report.Results, 1)
	assert.Equal(t, schemas.UnitStatusFailed, report.Results[0].Status)
	assert.Equal(t, schemas.FailureReasonConfiguration, report.Results[0].Reason)

	// Misconfigured credentials are caught before any build is executed
	assert.Zero(t, b.buildCount())

	// The failure detail names the missing variable, never its value
	assert.Contains(t, report.Results[0].Detail, "PRO_TEST_UNSET_USERNAME")
}

func TestExecuteReleaseTimeout(t *testing.T) {
	setTestCredentials(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, b := newTestController(t, srv.URL,
		config.NewUnit("fast"),
		config.NewUnit("slow"),
	)
	c.Config.Release.TimeoutSeconds = 1

	fastBuild := b.buildFn
	b.buildFn = func(ctx context.Context, unit schemas.Unit) (schemas.ArtifactSet, error) {
		if unit.Name == "slow" {
			<-ctx.Done()

			return nil, ctx.Err()
		}

		return fastBuild(ctx, unit)
	}

	report, err := c.ExecuteRelease(context.Background(), schemas.NewReleaseEvent("v1.0.0"))
	assert.NoError(t, err)
	assert.True(t, report.TimedOut)
	assert.Equal(t, schemas.RunStatusFailed, report.Status)

	require.Len(t, report.Results, 2)

	// The unit which completed before the timeout keeps its outcome
	assert.Equal(t, "fast", report.Results[0].UnitName)
	assert.Equal(t, schemas.UnitStatusSucceeded, report.Results[0].Status)

	// The unit still in flight when the timeout elapsed is reported as timed out
	assert.Equal(t, "slow", report.Results[1].UnitName)
	assert.Equal(t, schemas.UnitStatusFailed, report.Results[1].Status)
	assert.Equal(t, schemas.FailureReasonTimeout, report.Results[1].Reason)
}

func TestExecuteReleaseUnitCredentialsOverride(t *testing.T) {
	t.Setenv("PRO_TEST_UNIT_USERNAME", "unit-user")
	t.Setenv("PRO_TEST_UNIT_PASSWORD", "unit-pass")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "unit-user", username)
		assert.Equal(t, "unit-pass", password)

		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	unit := config.NewUnit("pkg")
	unit.UsernameEnv = "PRO_TEST_UNIT_USERNAME"
	unit.PasswordEnv = "PRO_TEST_UNIT_PASSWORD"

	c, _ := newTestController(t, srv.URL, unit)
	c.Config.Registry.UsernameEnv = "PRO_TEST_UNSET_USERNAME"
	c.Config.Registry.PasswordEnv = "PRO_TEST_UNSET_PASSWORD"

	report, err := c.ExecuteRelease(context.Background(), schemas.NewReleaseEvent("v1.0.0"))
	assert.NoError(t, err)
	assert.Equal(t, schemas.RunStatusSucceeded, report.Status)
}
