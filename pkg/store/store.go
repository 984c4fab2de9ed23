package store

import (
	"context"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/helvethink/package-release-orchestrator/pkg/config"
	"github.com/helvethink/package-release-orchestrator/pkg/schemas"
)

// Store is an interface that defines methods for interacting with storage.
// It includes methods for manipulating units, run reports, and metrics.
type Store interface {
	// Methods for manipulating units
	SetUnit(ctx context.Context, u schemas.Unit) error                // SetUnit Stores a unit
	DelUnit(ctx context.Context, uk schemas.UnitKey) error            // DelUnit Deletes a unit
	GetUnit(ctx context.Context, u *schemas.Unit) error               // GetUnit Retrieves a unit
	UnitExists(ctx context.Context, uk schemas.UnitKey) (bool, error) // UnitExists Checks the existence of a unit
	Units(ctx context.Context) (schemas.Units, error)                 // Units Retrieves all units
	UnitsCount(ctx context.Context) (int64, error)                    // UnitsCount Counts the number of units

	// Methods for manipulating run reports
	SetRunReport(ctx context.Context, r schemas.RunReport) error                // SetRunReport Stores a run report
	DelRunReport(ctx context.Context, rk schemas.RunReportKey) error            // DelRunReport Deletes a run report
	GetRunReport(ctx context.Context, r *schemas.RunReport) error               // GetRunReport Retrieves a run report
	RunReportExists(ctx context.Context, rk schemas.RunReportKey) (bool, error) // RunReportExists Checks the existence of a run report
	RunReports(ctx context.Context) (schemas.RunReports, error)                 // RunReports Retrieves all run reports
	RunReportsCount(ctx context.Context) (int64, error)                         // RunReportsCount Counts the number of run reports

	// Methods for manipulating metrics
	SetMetric(ctx context.Context, m schemas.Metric) error                // SetMetric Stores a metric
	DelMetric(ctx context.Context, mk schemas.MetricKey) error            // DelMetric Deletes a metric
	GetMetric(ctx context.Context, m *schemas.Metric) error               // GetMetric Retrieves a metric
	MetricExists(ctx context.Context, mk schemas.MetricKey) (bool, error) // MetricExists Checks the existence of a metric
	Metrics(ctx context.Context) (schemas.Metrics, error)                 // Metrics Retrieves all metrics
	MetricsCount(ctx context.Context) (int64, error)                      // MetricsCount Counts the number of metrics

	// Helpers to keep track of currently queued tasks and avoid scheduling them
	// twice at the risk of ending up with loads of dangling goroutines being locked
	QueueTask(ctx context.Context, tt schemas.TaskType, taskUUID, processUUID string) (bool, error) // QueueTask Adds a task to the queue
	UnqueueTask(ctx context.Context, tt schemas.TaskType, taskUUID string) error                    // UnqueueTask Removes a task from the queue
	CurrentlyQueuedTasksCount(ctx context.Context) (uint64, error)                                  // CurrentlyQueuedTasksCount Counts the number of currently queued tasks
	ExecutedTasksCount(ctx context.Context) (uint64, error)                                         // ExecutedTasksCount Counts the number of executed tasks
}

// NewLocalStore creates a new instance of local storage.
func NewLocalStore() Store {
	return &Local{
		units:      make(schemas.Units),      // Initializes a collection of units
		runReports: make(schemas.RunReports), // Initializes a collection of run reports
		metrics:    make(schemas.Metrics),    // Initializes a collection of metrics
	}
}

// NewRedisStore creates a new instance of storage using Redis.
func NewRedisStore(client *redis.Client) Store {
	return &Redis{
		Client: client, // Redis client to interact with the Redis server
	}
}

// New creates a new store and populates it with the provided units.
func New(
	ctx context.Context,
	r *redis.Client,
	units config.Units,
) (s Store) {
	// Initializes an OpenTelemetry span for tracing
	ctx, span := otel.Tracer("package-release-orchestrator").Start(ctx, "store:New")
	defer span.End()

	// Chooses the type of storage based on the presence of a Redis client
	if r != nil {
		s = NewRedisStore(r) // Uses Redis if a client is provided
	} else {
		s = NewLocalStore() // Uses local storage otherwise
	}

	// Loads all the configured units into the store
	for _, u := range units {
		su := schemas.Unit{Unit: u}

		exists, err := s.UnitExists(ctx, su.Key())
		if err != nil {
			// Logs an error if reading the unit fails
			log.WithContext(ctx).
				WithFields(log.Fields{
					"unit-name": u.Name,
				}).
				WithError(err).
				Error("reading unit from the store")
		}

		if !exists {
			// Stores the unit if it does not already exist
			if err = s.SetUnit(ctx, su); err != nil {
				// Logs an error if writing the unit fails
				log.WithContext(ctx).
					WithFields(log.Fields{
						"unit-name": u.Name,
					}).
					WithError(err).
					Error("writing unit in the store")
			}
		}
	}

	return s // Returns the initialized store
}
