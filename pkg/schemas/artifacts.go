package schemas

// Artifact represents a single distributable file produced by a unit's build.
type Artifact struct {
	Filename  string // Base name of the artifact file, used as the upload name
	Path      string // Absolute path of the artifact file on disk
	SizeBytes int64  // Size of the artifact file in bytes
}

// ArtifactSet is the ordered collection of artifact files produced by one build.
// It is owned by the unit which requested the build and is only valid until
// the unit's publish attempt completes.
type ArtifactSet []Artifact

// Count returns the number of artifacts in the set.
func (as ArtifactSet) Count() int {
	return len(as)
}

// TotalSizeBytes returns the cumulated size in bytes of all artifacts in the set.
func (as ArtifactSet) TotalSizeBytes() (total int64) {
	for _, a := range as {
		total += a.SizeBytes
	}

	return
}
