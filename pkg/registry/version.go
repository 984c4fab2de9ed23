package registry

import (
	"strings" // Package for string manipulation

	"golang.org/x/mod/semver" // Package for semantic version comparison
)

// RegistryVersion represents a registry API version with additional methods for version comparison.
type RegistryVersion struct {
	Version string // The version string of the registry API
}

// NewRegistryVersion creates a new RegistryVersion instance.
// It ensures the version string is prefixed with "v".
func NewRegistryVersion(version string) RegistryVersion {
	ver := ""
	if strings.HasPrefix(version, "v") {
		// If the version string already has a "v" prefix, use it as is
		ver = version
	} else if version != "" {
		// If the version string does not have a "v" prefix, add it
		ver = "v" + version
	}

	// Return a new RegistryVersion instance with the processed version string
	return RegistryVersion{Version: ver}
}

// DigestVerificationSupported checks if the registry API version supports
// server-side artifact digest verification, which is available in version 2.1 or later.
// When supported, uploads include a sha256 digest the registry verifies on receipt.
func (v RegistryVersion) DigestVerificationSupported() bool {
	// Return false if the version string is empty
	if v.Version == "" {
		return false
	}

	// Compare the version with "v2.1.0" and return true if it is greater or equal
	return semver.Compare(v.Version, "v2.1.0") >= 0
}
