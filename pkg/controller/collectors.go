package controller

import "github.com/prometheus/client_golang/prometheus"

// Commonly used label sets for Prometheus metrics in this application.
// These labels help categorize and filter metrics for better observability.

var (
	// unitLabels contains the labels identifying one release unit and the registry it publishes to.
	unitLabels = []string{"unit", "registry"}

	// statusLabels contains labels related to run or unit statuses.
	statusLabels = []string{"status"}

	// runStatusesList defines all possible outcomes of a whole orchestration run.
	runStatusesList = [...]string{
		"succeeded", "failed",
	}

	// unitStatusesList defines all possible statuses a unit goes through within a run.
	unitStatusesList = [...]string{
		"pending", "building", "publishing", "succeeded", "failed", "skipped",
	}
)

// NewInternalCollectorCurrentlyQueuedTasksCount creates and returns a new Prometheus GaugeVec metric collector
// for tracking the number of currently queued tasks in the system.
//
// This metric has no labels (empty label slice), representing a simple gauge value.
// It can be used internally to monitor the task queue size.
func NewInternalCollectorCurrentlyQueuedTasksCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pro_currently_queued_tasks_count",
			Help: "Number of tasks in the queue",
		},
		[]string{}, // no labels for this metric
	)
}

// NewInternalCollectorExecutedTasksCount returns a new Prometheus gauge collector
// for the metric "pro_executed_tasks_count" which tracks the total number of tasks
// that have been executed by the system.
//
// This metric is a gauge without labels.
func NewInternalCollectorExecutedTasksCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pro_executed_tasks_count",
			Help: "Number of tasks executed",
		},
		[]string{}, // no labels
	)
}

// NewInternalCollectorMetricsCount returns a new Prometheus gauge collector
// for the metric "pro_metrics_count" which tracks the number of metrics
// currently held in the store and exported on scrape.
func NewInternalCollectorMetricsCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pro_metrics_count",
			Help: "Number of metrics being exported",
		},
		[]string{}, // no labels
	)
}

// NewInternalCollectorRegistryAPIRequestsCount returns a new Prometheus gauge collector
// for the metric "pro_registry_api_requests_count" which monitors the total number of
// registry API requests made by the application.
//
// This metric is useful to observe API usage and detect potential throttling issues.
func NewInternalCollectorRegistryAPIRequestsCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pro_registry_api_requests_count",
			Help: "Registry API requests count",
		},
		[]string{}, // no labels
	)
}

// NewInternalCollectorRegistryAPIRequestsRemaining returns a new Prometheus gauge collector
// for the metric "pro_registry_api_requests_remaining" which tracks the number of remaining
// registry API requests allowed within the current rate limit window.
func NewInternalCollectorRegistryAPIRequestsRemaining() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pro_registry_api_requests_remaining",
			Help: "Registry API requests remaining in the rate limit window",
		},
		[]string{}, // no labels
	)
}

// NewInternalCollectorRegistryAPIRequestsLimit returns a new Prometheus gauge collector
// for the metric "pro_registry_api_requests_limit" which tracks the request limit
// advertised by the registry for the current rate limit window.
func NewInternalCollectorRegistryAPIRequestsLimit() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pro_registry_api_requests_limit",
			Help: "Registry API requests limit of the rate limit window",
		},
		[]string{}, // no labels
	)
}

// NewInternalCollectorRunReportsCount returns a new Prometheus gauge collector
// for the metric "pro_run_reports_count" which tracks the number of run reports
// currently retained in the store.
func NewInternalCollectorRunReportsCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pro_run_reports_count",
			Help: "Number of run reports being retained",
		},
		[]string{}, // no labels
	)
}

// NewInternalCollectorUnitsCount returns a new Prometheus gauge collector
// for the metric "pro_units_count" which tracks the total number of release units
// currently configured in the orchestrator.
func NewInternalCollectorUnitsCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pro_units_count",
			Help: "Number of release units being orchestrated",
		},
		[]string{}, // no labels
	)
}

// NewCollectorRunCount returns a new collector for the pro_run_count metric,
// counting the orchestration runs executed since startup.
func NewCollectorRunCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pro_run_count",
			Help: "Number of orchestration runs executed",
		},
		[]string{}, // no labels
	)
}

// NewCollectorRunStatus returns a new collector for the pro_run_status metric,
// reporting the outcome of the most recent orchestration run as a one-hot status vector.
func NewCollectorRunStatus() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pro_run_status",
			Help: "Status of the most recent orchestration run",
		},
		statusLabels,
	)
}

// NewCollectorRunDurationSeconds returns a new collector for the pro_run_duration_seconds metric,
// reporting the wall-clock duration of the most recent orchestration run.
func NewCollectorRunDurationSeconds() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pro_run_duration_seconds",
			Help: "Duration of the most recent orchestration run in seconds",
		},
		[]string{}, // no labels
	)
}

// NewCollectorRunTimestamp returns a new collector for the pro_run_timestamp metric,
// reporting the completion time of the most recent orchestration run as a Unix timestamp.
func NewCollectorRunTimestamp() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pro_run_timestamp",
			Help: "Completion timestamp of the most recent orchestration run",
		},
		[]string{}, // no labels
	)
}

// NewCollectorRunTimedOut returns a new collector for the pro_run_timed_out metric,
// reporting whether the most recent orchestration run hit its wall-clock timeout.
func NewCollectorRunTimedOut() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pro_run_timed_out",
			Help: "Whether the most recent orchestration run hit its wall-clock timeout",
		},
		[]string{}, // no labels
	)
}

// NewCollectorUnitStatus returns a new collector for the pro_unit_status metric,
// reporting the status of each unit in the most recent orchestration run.
func NewCollectorUnitStatus() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pro_unit_status",
			Help: "Status of the unit in the most recent orchestration run",
		},
		append(unitLabels, statusLabels...),
	)
}

// NewCollectorUnitBuildDurationSeconds returns a new collector for the
// pro_unit_build_duration_seconds metric, reporting how long the unit's build phase took.
func NewCollectorUnitBuildDurationSeconds() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pro_unit_build_duration_seconds",
			Help: "Duration of the unit's build phase in seconds",
		},
		unitLabels,
	)
}

// NewCollectorUnitPublishDurationSeconds returns a new collector for the
// pro_unit_publish_duration_seconds metric, reporting how long the unit's publish phase took.
func NewCollectorUnitPublishDurationSeconds() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pro_unit_publish_duration_seconds",
			Help: "Duration of the unit's publish phase in seconds",
		},
		unitLabels,
	)
}

// NewCollectorUnitArtifactCount returns a new collector for the pro_unit_artifact_count metric,
// reporting the number of artifacts produced by the unit's build.
func NewCollectorUnitArtifactCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pro_unit_artifact_count",
			Help: "Number of artifacts produced by the unit's build",
		},
		unitLabels,
	)
}
