package controller

import (
	"context"
	"fmt"
	"reflect"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/helvethink/package-release-orchestrator/pkg/registry"
	"github.com/helvethink/package-release-orchestrator/pkg/schemas"
	"github.com/helvethink/package-release-orchestrator/pkg/store"
)

// Registry wraps a pointer to prometheus.Registry and manages metric collectors.
type Registry struct {
	*prometheus.Registry // The main Prometheus registry.

	// InternalCollectors holds custom internal application metrics (not user-facing).
	InternalCollectors struct {
		CurrentlyQueuedTasksCount    prometheus.Collector // Number of tasks currently queued.
		ExecutedTasksCount           prometheus.Collector // Total number of tasks that have been executed.
		MetricsCount                 prometheus.Collector // Number of exported metrics.
		RegistryAPIRequestsCount     prometheus.Collector // Total number of registry API requests made.
		RegistryAPIRequestsRemaining prometheus.Collector // Number of remaining registry API requests (rate limit).
		RegistryAPIRequestsLimit     prometheus.Collector // Registry API request limit.
		RunReportsCount              prometheus.Collector // Total number of run reports retained.
		UnitsCount                   prometheus.Collector // Total number of release units configured.
	}

	// Collectors maps each MetricKind to its Prometheus collector.
	Collectors RegistryCollectors
}

// RegistryCollectors defines a mapping between metric kinds and their Prometheus collectors.
type RegistryCollectors map[schemas.MetricKind]prometheus.Collector

// NewRegistry initializes and returns a new Registry instance with all the necessary collectors registered.
func NewRegistry(ctx context.Context) *Registry {
	r := &Registry{
		Registry: prometheus.NewRegistry(), // Create a new Prometheus registry instance.

		// Initialize the collectors for each supported metric kind.
		Collectors: RegistryCollectors{
			schemas.MetricKindRunCount:                   NewCollectorRunCount(),
			schemas.MetricKindRunStatus:                  NewCollectorRunStatus(),
			schemas.MetricKindRunDurationSeconds:         NewCollectorRunDurationSeconds(),
			schemas.MetricKindRunTimestamp:               NewCollectorRunTimestamp(),
			schemas.MetricKindRunTimedOut:                NewCollectorRunTimedOut(),
			schemas.MetricKindUnitStatus:                 NewCollectorUnitStatus(),
			schemas.MetricKindUnitBuildDurationSeconds:   NewCollectorUnitBuildDurationSeconds(),
			schemas.MetricKindUnitPublishDurationSeconds: NewCollectorUnitPublishDurationSeconds(),
			schemas.MetricKindUnitArtifactCount:          NewCollectorUnitArtifactCount(),
		},
	}

	// Register internal metrics collectors (e.g., for internal health and stats).
	r.RegisterInternalCollectors()

	// Register all custom collectors into the Prometheus registry.
	if err := r.RegisterCollectors(); err != nil {
		// Fatal error: the application cannot proceed without successful metric registration.
		log.WithContext(ctx).
			Fatal(err)
	}

	return r
}

// RegisterInternalCollectors declares and registers internal application metrics to the Prometheus registry.
func (r *Registry) RegisterInternalCollectors() {
	// Initialize each internal collector with its corresponding constructor.
	// These collectors track the internal state of the system (not user metrics).
	r.InternalCollectors.CurrentlyQueuedTasksCount = NewInternalCollectorCurrentlyQueuedTasksCount()       // Number of currently queued tasks
	r.InternalCollectors.ExecutedTasksCount = NewInternalCollectorExecutedTasksCount()                     // Number of tasks that have been executed
	r.InternalCollectors.MetricsCount = NewInternalCollectorMetricsCount()                                 // Number of metrics exported
	r.InternalCollectors.RegistryAPIRequestsCount = NewInternalCollectorRegistryAPIRequestsCount()         // Total registry API requests
	r.InternalCollectors.RegistryAPIRequestsRemaining = NewInternalCollectorRegistryAPIRequestsRemaining() // Remaining registry API quota
	r.InternalCollectors.RegistryAPIRequestsLimit = NewInternalCollectorRegistryAPIRequestsLimit()         // Registry API quota limit
	r.InternalCollectors.RunReportsCount = NewInternalCollectorRunReportsCount()                           // Number of retained run reports
	r.InternalCollectors.UnitsCount = NewInternalCollectorUnitsCount()                                     // Number of configured release units

	// Register all initialized internal collectors with the Prometheus registry.
	// The underscore `_` ignores any error returned by Register (e.g., if already registered).
	_ = r.Register(r.InternalCollectors.CurrentlyQueuedTasksCount)
	_ = r.Register(r.InternalCollectors.ExecutedTasksCount)
	_ = r.Register(r.InternalCollectors.MetricsCount)
	_ = r.Register(r.InternalCollectors.RegistryAPIRequestsCount)
	_ = r.Register(r.InternalCollectors.RegistryAPIRequestsRemaining)
	_ = r.Register(r.InternalCollectors.RegistryAPIRequestsLimit)
	_ = r.Register(r.InternalCollectors.RunReportsCount)
	_ = r.Register(r.InternalCollectors.UnitsCount)
}

// ExportInternalMetrics gathers internal statistics from the store and registry client,
// then sets the values for the corresponding Prometheus internal collectors.
func (r *Registry) ExportInternalMetrics(ctx context.Context, reg *registry.Client, s store.Store) (err error) {
	var (
		currentlyQueuedTasks uint64 // Number of tasks currently in the queue
		executedTasksCount   uint64 // Number of tasks that have been executed
		metricsCount         int64  // Number of stored/exported metrics
		runReportsCount      int64  // Number of retained run reports
		unitsCount           int64  // Number of configured release units
	)

	// Retrieve the number of currently queued tasks from the store
	currentlyQueuedTasks, err = s.CurrentlyQueuedTasksCount(ctx)
	if err != nil {
		return
	}

	// Retrieve the number of executed tasks
	executedTasksCount, err = s.ExecutedTasksCount(ctx)
	if err != nil {
		return
	}

	// Retrieve the number of configured units
	unitsCount, err = s.UnitsCount(ctx)
	if err != nil {
		return
	}

	// Retrieve the number of retained run reports
	runReportsCount, err = s.RunReportsCount(ctx)
	if err != nil {
		return
	}

	// Retrieve the number of stored metrics
	metricsCount, err = s.MetricsCount(ctx)
	if err != nil {
		return
	}

	// Set Prometheus gauge values for each internal metric.
	// All collectors are asserted as GaugeVec and updated with empty labels.
	r.InternalCollectors.CurrentlyQueuedTasksCount.(*prometheus.GaugeVec).With(prometheus.Labels{}).Set(float64(currentlyQueuedTasks))
	r.InternalCollectors.ExecutedTasksCount.(*prometheus.GaugeVec).With(prometheus.Labels{}).Set(float64(executedTasksCount))
	r.InternalCollectors.MetricsCount.(*prometheus.GaugeVec).With(prometheus.Labels{}).Set(float64(metricsCount))
	r.InternalCollectors.RegistryAPIRequestsCount.(*prometheus.GaugeVec).With(prometheus.Labels{}).Set(float64(reg.RequestsCounter.Load()))
	r.InternalCollectors.RegistryAPIRequestsRemaining.(*prometheus.GaugeVec).With(prometheus.Labels{}).Set(float64(reg.RequestsRemaining))
	r.InternalCollectors.RegistryAPIRequestsLimit.(*prometheus.GaugeVec).With(prometheus.Labels{}).Set(float64(reg.RequestsLimit))
	r.InternalCollectors.RunReportsCount.(*prometheus.GaugeVec).With(prometheus.Labels{}).Set(float64(runReportsCount))
	r.InternalCollectors.UnitsCount.(*prometheus.GaugeVec).With(prometheus.Labels{}).Set(float64(unitsCount))

	return
}

// RegisterCollectors adds all defined custom metric collectors to the Prometheus registry.
// It iterates over the Registry.Collectors map and registers each collector.
// If a registration fails, it returns a formatted error.
func (r *Registry) RegisterCollectors() error {
	for _, c := range r.Collectors {
		// Attempt to register the collector to the Prometheus registry
		if err := r.Register(c); err != nil {
			// If registration fails, return a descriptive error
			return fmt.Errorf("could not add provided collector '%v' to the Prometheus registry: %v", c, err)
		}
	}

	// Return nil if all collectors were successfully registered
	return nil
}

// GetCollector returns the Prometheus collector associated with the given metric kind.
// It retrieves the collector from the Registry.Collectors map using the provided metric kind as the key.
func (r *Registry) GetCollector(kind schemas.MetricKind) prometheus.Collector {
	return r.Collectors[kind]
}

// ExportMetrics updates the corresponding Prometheus collectors with the provided metric data.
// It iterates over all metrics and dispatches their values to the appropriate registered collectors.
func (r *Registry) ExportMetrics(metrics schemas.Metrics) {
	for _, m := range metrics {
		// Get the collector associated with the metric kind
		switch c := r.GetCollector(m.Kind).(type) {
		// If it's a GaugeVec, set the value directly
		case *prometheus.GaugeVec:
			c.With(m.Labels).Set(m.Value)

		// If it's a CounterVec, increment the counter by the value
		case *prometheus.CounterVec:
			c.With(m.Labels).Add(m.Value)

		// If the collector type is not supported, log an error
		default:
			log.Errorf("unsupported collector type : %v", reflect.TypeOf(c))
		}
	}
}

// RecordRunMetrics persists the metrics derived from a finished run into the store,
// from where they are exported on every scrape of the /metrics endpoint.
func (c *Controller) RecordRunMetrics(ctx context.Context, report schemas.RunReport) {
	// Increment the total number of runs executed
	runCount := schemas.Metric{
		Kind:   schemas.MetricKindRunCount,
		Labels: prometheus.Labels{},
	}
	storeGetMetric(ctx, c.Store, &runCount)
	runCount.Value++
	storeSetMetric(ctx, c.Store, runCount)

	// Record the status of the most recent run as a one-hot status metric
	emitStatusMetric(
		ctx,
		c.Store,
		schemas.MetricKindRunStatus,
		prometheus.Labels{},
		runStatusesList[:],
		string(report.Status),
	)

	storeSetMetric(ctx, c.Store, schemas.Metric{
		Kind:   schemas.MetricKindRunDurationSeconds,
		Labels: prometheus.Labels{},
		Value:  report.CompletedAt.Sub(report.CreatedAt).Seconds(),
	})

	storeSetMetric(ctx, c.Store, schemas.Metric{
		Kind:   schemas.MetricKindRunTimestamp,
		Labels: prometheus.Labels{},
		Value:  float64(report.CompletedAt.Unix()),
	})

	timedOut := 0.0
	if report.TimedOut {
		timedOut = 1
	}

	storeSetMetric(ctx, c.Store, schemas.Metric{
		Kind:   schemas.MetricKindRunTimedOut,
		Labels: prometheus.Labels{},
		Value:  timedOut,
	})

	// Record the per-unit outcome metrics
	for _, result := range report.Results {
		unit := schemas.NewUnit(result.UnitName)
		if err := c.Store.GetUnit(ctx, &unit); err != nil {
			log.WithContext(ctx).
				WithField("unit-name", result.UnitName).
				WithError(err).
				Warn("reading unit from the store")
		}

		labels := unit.DefaultLabelsValues()

		emitStatusMetric(
			ctx,
			c.Store,
			schemas.MetricKindUnitStatus,
			labels,
			unitStatusesList[:],
			string(result.Status),
		)

		storeSetMetric(ctx, c.Store, schemas.Metric{
			Kind:   schemas.MetricKindUnitBuildDurationSeconds,
			Labels: labels,
			Value:  result.BuildDurationSeconds,
		})

		storeSetMetric(ctx, c.Store, schemas.Metric{
			Kind:   schemas.MetricKindUnitPublishDurationSeconds,
			Labels: labels,
			Value:  result.PublishDurationSeconds,
		})

		storeSetMetric(ctx, c.Store, schemas.Metric{
			Kind:   schemas.MetricKindUnitArtifactCount,
			Labels: labels,
			Value:  float64(result.ArtifactCount),
		})
	}
}

// emitStatusMetric records a set of status metrics for a given entity (run or unit).
// It writes a Prometheus metric for each possible status, setting the value to 1 for
// the current status and 0 for the others.
func emitStatusMetric(ctx context.Context, s store.Store, metricKind schemas.MetricKind,
	labelValues map[string]string, // Base labels (e.g., unit, registry)
	statuses []string, // List of all possible statuses
	status string, // Current status of the entity
) {
	// Loop through all possible statuses
	for _, currentStatus := range statuses {
		statusLabels := make(map[string]string) // Copy base labels for current status

		// Copy original label values to the status-specific map
		for k, v := range labelValues {
			statusLabels[k] = v
		}

		// Add the current status as a label
		statusLabels["status"] = currentStatus

		// Initialize the metric with default value (0)
		statusMetric := schemas.Metric{
			Kind:   metricKind,
			Labels: statusLabels,
		}

		// If this status matches the current status, set the metric value to 1
		if currentStatus == status {
			statusMetric.Value = 1
		}

		// Save the metric to the store (either value 1 or 0)
		storeSetMetric(ctx, s, statusMetric)
	}
}
