package config

import (
	"github.com/creasty/defaults"
)

// UnitParameters holds configuration shared by release units.
// It includes settings for how package artifacts are built and how they are
// published to the registry. Defaults are defined once under `unit_defaults`
// and can be overridden per unit.
type UnitParameters struct {
	// Build contains detailed settings for producing the unit's artifacts.
	Build UnitBuild `yaml:"build"`

	// Publish contains detailed settings for uploading the unit's artifacts.
	Publish UnitPublish `yaml:"publish"`
}

// UnitBuild configures how the distributable artifacts of a unit are produced.
type UnitBuild struct {
	// Command is the build command executed in the unit's source directory.
	// Defaults to the standard Python sdist/wheel build invocation.
	Command []string `default:"[\"python\",\"setup.py\",\"sdist\",\"bdist_wheel\"]" yaml:"command"`

	// OutputDir is the directory, relative to the unit's source directory,
	// where the build command places the produced artifact files.
	// Defaults to "dist".
	OutputDir string `default:"dist" yaml:"output_dir"`

	// TimeoutSeconds bounds the execution time of the build command.
	// Defaults to 600 (10 minutes).
	TimeoutSeconds int `default:"600" validate:"gte=1" yaml:"timeout_seconds"`

	// Env holds additional environment variables exported to the build command.
	Env map[string]string `yaml:"env"`
}

// UnitPublish configures how the built artifacts of a unit are uploaded.
type UnitPublish struct {
	// SkipExisting reports versions already present in the registry as skipped
	// instead of failed, making re-publishing the same version idempotent.
	// Defaults to true.
	SkipExisting bool `default:"true" yaml:"skip_existing"`
}

// Unit holds information about a single release unit: one independently
// versioned package built from its own source directory and published to
// the registry.
type Unit struct {
	// UnitParameters embeds configuration parameters specific to this unit.
	UnitParameters `yaml:",inline"`

	// Name uniquely identifies the unit across the configured set.
	Name string `validate:"required" yaml:"name"`

	// SourceDir is the directory containing the unit's package sources.
	SourceDir string `validate:"required" yaml:"source_dir"`

	// RegistryURL optionally overrides the globally configured registry
	// upload endpoint for this unit only.
	RegistryURL string `validate:"omitempty,url" yaml:"registry_url"`

	// UsernameEnv optionally overrides the name of the environment variable
	// holding the registry username for this unit only.
	UsernameEnv string `yaml:"username_env"`

	// PasswordEnv optionally overrides the name of the environment variable
	// holding the registry password for this unit only.
	PasswordEnv string `yaml:"password_env"`
}

// Units is a slice of Unit instances.
type Units []Unit

// NewUnit creates a new Unit instance with default parameters set,
// and assigns the given unit name.
func NewUnit(name string) (u Unit) {
	defaults.MustSet(&u)
	u.Name = name

	return
}
