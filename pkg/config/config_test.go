package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, ":8080", cfg.Server.ListenAddress)
	assert.True(t, cfg.Server.Metrics.Enabled)
	assert.False(t, cfg.Server.Webhook.Enabled)
	assert.Equal(t, "https://upload.pypi.org/legacy/", cfg.Registry.URL)
	assert.Equal(t, "REGISTRY_USERNAME", cfg.Registry.UsernameEnv)
	assert.Equal(t, "REGISTRY_PASSWORD", cfg.Registry.PasswordEnv)
	assert.Equal(t, 3, cfg.Registry.PublishMaxAttempts)
	assert.Equal(t, 0, cfg.Release.TimeoutSeconds)
	assert.Equal(t, 100, cfg.GarbageCollect.RunReports.MaxCount)
}

func TestParse(t *testing.T) {
	yamlConfig := `
log:
  level: debug
  format: json

server:
  listen_address: :1025
  webhook:
    enabled: true
    secret_token: supersecret

registry:
  url: https://registry.example.com/upload
  maximum_requests_per_second: 2
  publish_max_attempts: 5

release:
  on_init: true
  timeout_seconds: 1800

unit_defaults:
  build:
    command: ["python", "-m", "build"]
  publish:
    skip_existing: true

units:
  - name: mlcube
    source_dir: ./mlcube
  - name: mlcube-docker
    source_dir: ./runners/mlcube_docker
    registry_url: https://other-registry.example.com/upload
    publish:
      skip_existing: false
`

	cfg, err := Parse(FormatYAML, []byte(yamlConfig))
	assert.NoError(t, err)
	assert.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":1025", cfg.Server.ListenAddress)
	assert.True(t, cfg.Server.Webhook.Enabled)
	assert.Equal(t, "supersecret", cfg.Server.Webhook.SecretToken)

	assert.Equal(t, "https://registry.example.com/upload", cfg.Registry.URL)
	assert.Equal(t, 2, cfg.Registry.MaximumRequestsPerSecond)
	assert.Equal(t, 5, cfg.Registry.PublishMaxAttempts)
	// Health URL follows the registry URL when left unset on self-hosted registries.
	assert.Equal(t, "https://registry.example.com/upload", cfg.Registry.HealthURL)

	assert.True(t, cfg.Release.OnInit)
	assert.Equal(t, 1800, cfg.Release.TimeoutSeconds)

	assert.Len(t, cfg.Units, 2)
	assert.Equal(t, "mlcube", cfg.Units[0].Name)
	assert.Equal(t, "./mlcube", cfg.Units[0].SourceDir)
	// Unit defaults propagate onto units which do not override them.
	assert.Equal(t, []string{"python", "-m", "build"}, cfg.Units[0].Build.Command)
	assert.True(t, cfg.Units[0].Publish.SkipExisting)

	assert.Equal(t, "https://other-registry.example.com/upload", cfg.Units[1].RegistryURL)
	assert.False(t, cfg.Units[1].Publish.SkipExisting)
}

func TestValidateNoUnits(t *testing.T) {
	cfg := New()

	assert.Error(t, cfg.Validate())
}

func TestValidateDuplicateUnitNames(t *testing.T) {
	cfg := New()
	cfg.Units = []Unit{
		NewUnit("mlcube"),
		NewUnit("mlcube"),
	}
	cfg.Units[0].SourceDir = "./a"
	cfg.Units[1].SourceDir = "./b"

	assert.Error(t, cfg.Validate())
}

func TestValidateWebhookTokenRequired(t *testing.T) {
	cfg := New()
	u := NewUnit("mlcube")
	u.SourceDir = "./mlcube"
	cfg.Units = []Unit{u}

	assert.NoError(t, cfg.Validate())

	cfg.Server.Webhook.Enabled = true
	assert.Error(t, cfg.Validate())

	cfg.Server.Webhook.SecretToken = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestToYAMLMasksSecrets(t *testing.T) {
	cfg := New()
	cfg.Server.Webhook.SecretToken = "supersecret"

	out := cfg.ToYAML()
	assert.NotContains(t, out, "supersecret")
	assert.Contains(t, out, "*******")
}

func TestSchedulerConfigLog(t *testing.T) {
	sc := SchedulerConfig{OnInit: true, Scheduled: true, IntervalSeconds: 300}
	fields := sc.Log()

	assert.Equal(t, "yes", fields["on-init"])
	assert.Equal(t, "every 300s", fields["scheduled"])
}
