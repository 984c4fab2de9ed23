package schemas

import (
	"fmt"
	"hash/crc32" // For calculating CRC32 checksums
	"strconv"    // For string conversion operations

	"github.com/prometheus/client_golang/prometheus" // Prometheus client library for metrics
)

// MetricKind represents different kinds of metrics that can be collected.
type MetricKind int32

const (
	// MetricKindRunCount refers to the number of orchestration runs executed.
	MetricKindRunCount MetricKind = iota

	// MetricKindRunStatus refers to the status of the most recent orchestration run.
	MetricKindRunStatus

	// MetricKindRunDurationSeconds refers to the duration of the most recent orchestration run in seconds.
	MetricKindRunDurationSeconds

	// MetricKindRunTimestamp refers to the completion timestamp of the most recent orchestration run.
	MetricKindRunTimestamp

	// MetricKindRunTimedOut refers to whether the most recent orchestration run hit its wall-clock timeout.
	MetricKindRunTimedOut

	// MetricKindUnitStatus refers to the status of a unit in the most recent orchestration run.
	MetricKindUnitStatus

	// MetricKindUnitBuildDurationSeconds refers to the duration of a unit's build phase in seconds.
	MetricKindUnitBuildDurationSeconds

	// MetricKindUnitPublishDurationSeconds refers to the duration of a unit's publish phase in seconds.
	MetricKindUnitPublishDurationSeconds

	// MetricKindUnitArtifactCount refers to the number of artifacts produced by a unit's build.
	MetricKindUnitArtifactCount
)

// Metric represents a metric with a kind, labels, and a value.
type Metric struct {
	Kind   MetricKind        // The kind of metric
	Labels prometheus.Labels // Labels associated with the metric
	Value  float64           // The value of the metric
}

// MetricKey is a custom type used as a key for identifying metrics.
type MetricKey string

// Metrics is a map used to keep track of multiple metrics, with MetricKey as the key.
type Metrics map[MetricKey]Metric

// Key generates a unique key for a Metric based on its kind and labels.
func (m Metric) Key() MetricKey {
	// Start with the metric kind as part of the key
	key := strconv.Itoa(int(m.Kind))

	// Append different label values to the key based on the metric kind
	switch m.Kind {
	case MetricKindUnitStatus, MetricKindUnitBuildDurationSeconds, MetricKindUnitPublishDurationSeconds, MetricKindUnitArtifactCount:
		// Append unit and registry labels
		key += fmt.Sprintf("%v", []string{
			m.Labels["unit"],
			m.Labels["registry"],
		})

	case MetricKindRunCount, MetricKindRunStatus, MetricKindRunDurationSeconds, MetricKindRunTimestamp, MetricKindRunTimedOut:
		// Run level metrics carry no identifying labels besides the status one handled below
	}

	// If the metric is a "status" one, add the status label
	switch m.Kind {
	case MetricKindRunStatus, MetricKindUnitStatus:
		key += m.Labels["status"]
	}

	// Generate a unique key using the CRC32 checksum of the constructed key string
	return MetricKey(strconv.Itoa(int(crc32.ChecksumIEEE([]byte(key)))))
}
