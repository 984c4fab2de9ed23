package config

import (
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// validate is a global validator instance used to validate struct fields based on tags.
var validate *validator.Validate

// Config holds all the configuration parameters necessary for properly configuring the application.
type Config struct {
	Global         Global         `yaml:",omitempty"`      // Global contains global/shared orchestrator configuration settings.
	Log            Log            `yaml:"log"`             // Log holds configuration related to logging for the orchestrator.
	OpenTelemetry  OpenTelemetry  `yaml:"opentelemetry"`   // OpenTelemetry contains configuration settings for OpenTelemetry integration.
	Server         Server         `yaml:"server"`          // Server holds configuration related to the server settings.
	Registry       Registry       `yaml:"registry"`        // Registry contains package-registry specific configuration settings.
	Redis          Redis          `yaml:"redis"`           // Redis holds configuration parameters for connecting to Redis.
	Release        Release        `yaml:"release"`         // Release contains configuration related to release run behavior.
	GarbageCollect GarbageCollect `yaml:"garbage_collect"` // GarbageCollect contains configuration for garbage collection.
	UnitDefaults   UnitParameters `yaml:"unit_defaults"`   // UnitDefaults defines default unit parameters which can be overridden at individual Unit level.

	// Units is the list of release units (packages) to build and publish.
	// Validation: Must be unique by name, at least one unit must be provided, and each element is validated.
	Units []Unit `validate:"unique=Name,at-least-1-unit,dive" yaml:"units"`
}

// Log holds configuration settings related to runtime logging.
type Log struct {
	// Level sets the logging verbosity level.
	// Valid values: trace, debug, info, warning, error, fatal, panic.
	// Defaults to "info".
	Level string `default:"info" validate:"required,oneof=trace debug info warning error fatal panic"`

	// Format sets the output format of the logs.
	// Valid values: "text" or "json".
	// Defaults to "text".
	Format string `default:"text" validate:"oneof=text json"`
}

// OpenTelemetry holds configuration related to OpenTelemetry integration.
type OpenTelemetry struct {
	// GRPCEndpoint is the gRPC address of the OpenTelemetry collector to send traces/metrics to.
	GRPCEndpoint string `yaml:"grpc_endpoint"`
}

// Server holds the configuration for the HTTP server.
type Server struct {
	// ListenAddress specifies the address and port the server will bind to and listen on.
	// Default is ":8080" (all interfaces on port 8080).
	ListenAddress string        `default:":8080" yaml:"listen_address"`
	EnablePprof   bool          `default:"false" yaml:"enable_pprof"` // EnablePprof enables profiling endpoints for debugging performance issues.
	Metrics       ServerMetrics `yaml:"metrics"`                      // Metrics contains configuration related to exposing Prometheus metrics.
	Webhook       ServerWebhook `yaml:"webhook"`                      // Webhook holds configuration for webhook-related HTTP endpoints.
}

// ServerMetrics holds configuration for the metrics HTTP endpoint.
type ServerMetrics struct {
	// EnableOpenmetricsEncoding enables OpenMetrics content encoding in the Prometheus HTTP handler.
	// This can be useful for compatibility with Prometheus 2.0+.
	EnableOpenmetricsEncoding bool `default:"false" yaml:"enable_openmetrics_encoding"`
	Enabled                   bool `default:"true" yaml:"enabled"` // Enabled controls whether the /metrics endpoint is exposed.
}

// ServerWebhook holds configuration for the webhook HTTP endpoint.
type ServerWebhook struct {
	// Enabled enables the /webhook endpoint to receive release event requests.
	Enabled bool `default:"false" yaml:"enabled"`

	// SecretToken is used to authenticate incoming webhook requests to ensure they come from a legitimate event source.
	// This token is required if the webhook endpoint is enabled.
	SecretToken string `validate:"required_if=Enabled true" yaml:"secret_token"`
}

// Registry holds the configuration needed to connect to a package registry.
type Registry struct {
	// URL of the registry upload endpoint.
	// Defaults to https://upload.pypi.org/legacy/ (the public PyPI upload API).
	URL string `default:"https://upload.pypi.org/legacy/" validate:"required,url" yaml:"url"`

	// HealthURL is the URL used to check if the registry is reachable.
	// Defaults to a publicly accessible endpoint on pypi.org.
	HealthURL string `default:"https://pypi.org" validate:"required,url" yaml:"health_url"`

	// UsernameEnv is the name of the environment variable holding the registry username.
	// The value itself is read from the execution environment, never from this file.
	UsernameEnv string `default:"REGISTRY_USERNAME" validate:"required" yaml:"username_env"`

	// PasswordEnv is the name of the environment variable holding the registry password.
	// The value itself is read from the execution environment, never from this file.
	PasswordEnv string `default:"REGISTRY_PASSWORD" validate:"required" yaml:"password_env"`

	EnableHealthCheck          bool `default:"true" yaml:"enable_health_check"`                         // EnableHealthCheck toggles periodic health checks by requesting the HealthURL.
	EnableTLSVerify            bool `default:"true" yaml:"enable_tls_verify"`                           // EnableTLSVerify toggles TLS certificate verification for HTTPS connections to the registry.
	MaximumRequestsPerSecond   int  `default:"5" validate:"gte=1" yaml:"maximum_requests_per_second"`   // MaximumRequestsPerSecond limits the maximum number of registry requests per second.
	BurstableRequestsPerSecond int  `default:"5" validate:"gte=1" yaml:"burstable_requests_per_second"` // BurstableRequestsPerSecond allows short bursts above the normal max request rate.

	// MaximumJobsQueueSize limits the number of jobs queued internally before dropping new ones.
	// Recommended not to change unless you understand the implications.
	MaximumJobsQueueSize int `default:"100" validate:"gte=10" yaml:"maximum_jobs_queue_size"`

	// PublishMaxAttempts bounds how many times a single artifact upload is attempted
	// before the publish operation is reported as exhausted.
	PublishMaxAttempts int `default:"3" validate:"gte=1" yaml:"publish_max_attempts"`

	// PublishBackoffSeconds is the base delay between upload attempts, doubled on each retry.
	PublishBackoffSeconds int `default:"2" validate:"gte=1" yaml:"publish_backoff_seconds"`
}

// Redis holds the configuration for connecting to a Redis instance.
type Redis struct {
	// URL is the connection string used to connect to the Redis server.
	// Format example: redis[s]://[:password@]host[:port][/db-number][?option=value]
	URL string `yaml:"url"`
}

// Release holds configuration related to how and when release runs are triggered.
type Release struct {
	// OnInit determines whether a release run should be triggered once at startup.
	OnInit bool `default:"false" yaml:"on_init"`

	// Scheduled enables periodic release runs. Re-running is idempotent when
	// units publish with skip_existing enabled.
	Scheduled bool `default:"false" yaml:"scheduled"`

	// IntervalSeconds defines the interval in seconds between scheduled runs.
	IntervalSeconds int `default:"3600" validate:"gte=1" yaml:"interval_seconds"`

	// TimeoutSeconds bounds the wall-clock duration of a whole release run.
	// Zero disables the run-level timeout.
	TimeoutSeconds int `default:"0" validate:"gte=0" yaml:"timeout_seconds"`

	// KeepArtifacts preserves the built artifact files after the publish attempt
	// completes, for debugging. Defaults to false (artifacts are cleaned up).
	KeepArtifacts bool `default:"false" yaml:"keep_artifacts"`
}

// GarbageCollect holds configuration for periodic cleanup tasks.
type GarbageCollect struct {
	// Units configures cleanup behavior related to units no longer present in the configuration.
	Units struct {
		OnInit          bool `default:"false" yaml:"on_init"`                           // OnInit indicates if cleanup should run once at startup.
		Scheduled       bool `default:"true" yaml:"scheduled"`                          // Scheduled indicates if cleanup should run periodically.
		IntervalSeconds int  `default:"14400" validate:"gte=1" yaml:"interval_seconds"` // IntervalSeconds sets the interval in seconds between cleanup runs. 4 hours
	} `yaml:"units"`

	// RunReports configures cleanup behavior related to stored release run reports.
	RunReports struct {
		OnInit          bool `default:"false" yaml:"on_init"`
		Scheduled       bool `default:"true" yaml:"scheduled"`
		IntervalSeconds int  `default:"14400" validate:"gte=1" yaml:"interval_seconds"` // 4 hours
		MaxCount        int  `default:"100" validate:"gte=1" yaml:"max_count"`          // MaxCount is how many of the most recent run reports are retained.
	} `yaml:"run_reports"`

	// Metrics configures cleanup behavior related to metrics data.
	Metrics struct {
		OnInit          bool `default:"false" yaml:"on_init"`
		Scheduled       bool `default:"true" yaml:"scheduled"`
		IntervalSeconds int  `default:"600" validate:"gte=1" yaml:"interval_seconds"` // 10 minutes
	} `yaml:"metrics"`
}

// UnmarshalYAML implements custom YAML unmarshaling logic for the Config struct.
// This allows more control over how the configuration is loaded from YAML files.
func (c *Config) UnmarshalYAML(v *yaml.Node) (err error) {
	// Define a local struct that mirrors Config but treats Units as raw YAML nodes
	// so we can decode them individually with custom logic later.
	type localConfig struct {
		Log            Log            `yaml:"log"`
		OpenTelemetry  OpenTelemetry  `yaml:"opentelemetry"`
		Server         Server         `yaml:"server"`
		Registry       Registry       `yaml:"registry"`
		Redis          Redis          `yaml:"redis"`
		Release        Release        `yaml:"release"`
		GarbageCollect GarbageCollect `yaml:"garbage_collect"`
		UnitDefaults   UnitParameters `yaml:"unit_defaults"`

		Units []yaml.Node `yaml:"units"` // hold units as raw YAML nodes
	}

	// Initialize the local config with default values
	_cfg := localConfig{}
	defaults.MustSet(&_cfg)

	// Decode the input YAML into the local config struct
	if err = v.Decode(&_cfg); err != nil {
		return
	}

	// Copy the simple fields from local config to the actual Config struct
	c.Log = _cfg.Log
	c.OpenTelemetry = _cfg.OpenTelemetry
	c.Server = _cfg.Server
	c.Registry = _cfg.Registry
	c.Redis = _cfg.Redis
	c.Release = _cfg.Release
	c.GarbageCollect = _cfg.GarbageCollect
	c.UnitDefaults = _cfg.UnitDefaults

	// Decode each unit YAML node into a Unit object and append it
	for _, n := range _cfg.Units {
		u := c.NewUnit() // create a new Unit with defaults
		if err = n.Decode(&u); err != nil {
			return
		}
		c.Units = append(c.Units, u)
	}

	return
}

// ToYAML serializes the Config object into a YAML formatted string.
// Before serialization, it clears or masks sensitive data to avoid leaking secrets.
func (c Config) ToYAML() string {
	// Clear the Global config (not serialized)
	c.Global = Global{}

	// Mask the webhook secret token to avoid exposing it in the output YAML.
	// Registry credentials never live in the config, only their env var names do.
	c.Server.Webhook.SecretToken = "*******"

	// Marshal the config struct into YAML bytes
	b, err := yaml.Marshal(c)
	if err != nil {
		// Panic on error because this function assumes marshaling should never fail
		panic(err)
	}

	// Return the YAML as a string
	return string(b)
}

// Validate checks if the Config struct's fields are valid according to
// the validation rules defined via struct tags and custom validators.
// It returns an error if any validation rule fails.
func (c Config) Validate() error {
	// Initialize the validator instance if not already done
	if validate == nil {
		validate = validator.New()
		// Register a custom validation rule to ensure at least
		// one unit is defined in the config
		_ = validate.RegisterValidation("at-least-1-unit", ValidateAtLeastOneUnit)
	}

	// Perform the validation on the Config struct and return the result
	return validate.Struct(c)
}

// SchedulerConfig defines common scheduling behavior for background tasks or jobs.
type SchedulerConfig struct {
	OnInit          bool // OnInit determines whether the task should run immediately at startup.
	Scheduled       bool // Scheduled determines whether the task should run on a recurring schedule.
	IntervalSeconds int  // IntervalSeconds specifies how often (in seconds) the task should run when scheduled.
}

// Log returns a structured representation of the scheduler configuration
// to help display it in logs for the end user.
func (sc SchedulerConfig) Log() log.Fields {
	onInit, scheduled := "no", "no"

	// Check if the job should run at startup
	if sc.OnInit {
		onInit = "yes"
	}

	// Check if the job is scheduled periodically and format the interval
	if sc.Scheduled {
		scheduled = fmt.Sprintf("every %vs", sc.IntervalSeconds)
	}

	// Return the log fields in a key-value format
	return log.Fields{
		"on-init":   onInit,
		"scheduled": scheduled,
	}
}

// ValidateAtLeastOneUnit is a custom validation function.
// It ensures that at least one release unit is configured in the Config.
// This is used by the validator to enforce that the configuration is not empty.
func ValidateAtLeastOneUnit(v validator.FieldLevel) bool {
	return v.Parent().FieldByName("Units").Len() > 0
}

// New returns a new Config instance with default parameters set.
// It uses the `defaults` package to automatically populate the config struct
// with predefined default values where applicable.
func New() (c Config) {
	defaults.MustSet(&c) // Apply default values to the config fields
	return               // Return the initialized config
}

// NewUnit returns a new Unit instance initialized with the default unit parameters
// defined in the Config (under UnitDefaults).
func (c Config) NewUnit() (u Unit) {
	u.UnitParameters = c.UnitDefaults // Inherit default parameters from the Config
	return                            // Return the initialized Unit
}
