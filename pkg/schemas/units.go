package schemas

import (
	"hash/crc32" // For calculating CRC32 checksums
	"strconv"    // For string conversion operations

	"github.com/helvethink/package-release-orchestrator/pkg/config" // Unit configuration package
)

// Unit represents a release unit structure that extends a configuration unit with additional fields.
type Unit struct {
	config.Unit // Embedding the Unit type from the config package
}

// UnitKey is a custom type used as a key for identifying units.
type UnitKey string

// Units is a map used to keep track of multiple units, with UnitKey as the key.
type Units map[UnitKey]Unit

// Key generates a unique key for a Unit using a CRC32 checksum of the unit's name.
func (u Unit) Key() UnitKey {
	// Generate a unique key using the CRC32 checksum of the unit's name
	return UnitKey(strconv.Itoa(int(crc32.ChecksumIEEE([]byte(u.Name)))))
}

// Count returns the number of units in the Units map.
func (units Units) Count() int {
	return len(units)
}

// DefaultLabelsValues returns a map of default label values for a Unit.
func (u Unit) DefaultLabelsValues() map[string]string {
	return map[string]string{
		"unit":     u.Name,        // The name of the unit
		"registry": u.RegistryURL, // The per-unit registry override, empty when the global registry is used
	}
}

// NewUnit creates a new Unit instance with the given name.
func NewUnit(name string) Unit {
	// Create a new Unit by embedding a new config.Unit and initializing any additional fields
	return Unit{Unit: config.NewUnit(name)}
}
