package controller

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/taskq/memqueue/v4"
	"github.com/vmihailenco/taskq/redisq/v4"
	"github.com/vmihailenco/taskq/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/helvethink/package-release-orchestrator/pkg/config"
	"github.com/helvethink/package-release-orchestrator/pkg/monitor"
	"github.com/helvethink/package-release-orchestrator/pkg/schemas"
	"github.com/helvethink/package-release-orchestrator/pkg/store"
)

// TaskController holds the components needed to manage task queues and scheduling.
type TaskController struct {
	Factory                  taskq.Factory                                      // Factory creates task queues and manages their lifecycle.
	Queue                    taskq.Queue                                        // Queue is the actual task queue instance where tasks are enqueued and consumed.
	TaskMap                  *taskq.TaskMap                                     // TaskMap holds the mapping of task types to their handlers for processing.
	TaskSchedulingMonitoring map[schemas.TaskType]*monitor.TaskSchedulingStatus // TaskSchedulingMonitoring holds monitoring status per task type to track scheduling health.
}

// NewTaskController initializes and returns a new TaskController.
// It sets up the task queue backed either by Redis (if provided) or an in-memory queue.
// maximumJobsQueueSize controls the queue buffer size.
// The function also starts consumers if Redis is used and purges the queue at startup.
func NewTaskController(ctx context.Context, r *redis.Client, maximumJobsQueueSize int) (t TaskController) {
	// Start an OpenTelemetry tracing span for monitoring initialization time
	ctx, span := otel.Tracer(tracerName).Start(ctx, "controller:NewTaskController")
	defer span.End()

	// Initialize the TaskMap that will register task handlers
	t.TaskMap = &taskq.TaskMap{}

	// Configure queue options including name, error handling, buffer size, and handler map
	queueOptions := &taskq.QueueConfig{
		Name:                 "default",            // Name of the queue
		PauseErrorsThreshold: 3,                    // Number of consecutive errors to pause queue processing
		Handler:              t.TaskMap,            // Task handler map for processing enqueued tasks
		BufferSize:           maximumJobsQueueSize, // Buffer size for queued jobs
	}

	// Use Redis-backed queue if redis client is provided, else use in-memory queue
	if r != nil {
		t.Factory = redisq.NewFactory() // Redis-backed task queue factory
		queueOptions.Redis = r          // Set Redis client in queue options
	} else {
		t.Factory = memqueue.NewFactory() // In-memory task queue factory
	}

	// Register the queue using the factory with the configured options
	t.Queue = t.Factory.RegisterQueue(queueOptions)

	// Purge the queue to start fresh - caution advised if running in HA setups
	if err := t.Queue.Purge(ctx); err != nil {
		log.WithContext(ctx).
			WithError(err).
			Error("purging the task queue")
	}

	// If Redis is used, start the queue consumers to process tasks asynchronously
	if r != nil {
		if err := t.Factory.StartConsumers(context.TODO()); err != nil {
			log.WithContext(ctx).
				WithError(err).
				Fatal("starting consuming the task queue")
		}
	}

	// Initialize the monitoring map to track scheduling status per task type
	t.TaskSchedulingMonitoring = make(map[schemas.TaskType]*monitor.TaskSchedulingStatus)

	return
}

// TaskHandlerRelease handles a task to run a whole release orchestration for the given event.
// It ensures that the task is unqueued after processing regardless of success or failure,
// and updates monitoring for task scheduling.
// The run outcome is persisted as a run report; a failed run is not a task error, so the
// task is never retried and a run is never executed twice for one trigger.
func (c *Controller) TaskHandlerRelease(ctx context.Context, e schemas.ReleaseEvent) {
	// Ensure the task is removed from the queue once this handler finishes
	defer c.unqueueTask(ctx, schemas.TaskTypeRelease, "_")

	// Update the monitoring system for the last scheduling of this task type
	defer c.TaskController.monitorLastTaskScheduling(schemas.TaskTypeRelease)

	// Execute the release run, logging any orchestration level error without retrying
	if _, err := c.ExecuteRelease(ctx, e); err != nil {
		log.WithContext(ctx).
			WithFields(log.Fields{
				"event-tag": e.Tag,
			}).
			WithError(err).
			Warn("executing release run")
	}
}

// TaskHandlerGarbageCollectUnits handles the task of garbage collecting units which
// are no longer part of the configuration.
// It ensures the task is properly unqueued and updates task scheduling monitoring.
// Returns an error if the garbage collection fails.
func (c *Controller) TaskHandlerGarbageCollectUnits(ctx context.Context) error {
	defer c.unqueueTask(ctx, schemas.TaskTypeGarbageCollectUnits, "_")
	defer c.TaskController.monitorLastTaskScheduling(schemas.TaskTypeGarbageCollectUnits)

	return c.GarbageCollectUnits(ctx)
}

// TaskHandlerGarbageCollectRunReports handles the task of garbage collecting the oldest
// run reports beyond the configured retention count.
// It ensures the task is properly unqueued and updates task scheduling monitoring.
// Returns an error if the garbage collection fails.
func (c *Controller) TaskHandlerGarbageCollectRunReports(ctx context.Context) error {
	defer c.unqueueTask(ctx, schemas.TaskTypeGarbageCollectRunReports, "_")
	defer c.TaskController.monitorLastTaskScheduling(schemas.TaskTypeGarbageCollectRunReports)

	return c.GarbageCollectRunReports(ctx)
}

// TaskHandlerGarbageCollectMetrics handles the garbage collection of metrics data.
// It ensures that the task is properly unqueued once done, and updates monitoring info about the last
// time this type of task was scheduled. Any error from the actual garbage collection is returned.
func (c *Controller) TaskHandlerGarbageCollectMetrics(ctx context.Context) error {
	defer c.unqueueTask(ctx, schemas.TaskTypeGarbageCollectMetrics, "_")
	defer c.TaskController.monitorLastTaskScheduling(schemas.TaskTypeGarbageCollectMetrics)

	return c.GarbageCollectMetrics(ctx)
}

// Schedule initializes and schedules the periodic tasks based on configuration.
// It starts an OpenTelemetry span to trace scheduling operations.
//
// It iterates over a map of task types and their scheduler configurations
// derived from the Release and GarbageCollect configs.
//
// For each task type:
// - If OnInit is true, the task is scheduled immediately once.
// - If Scheduled is true, the task is scheduled repeatedly at the configured interval.
//
// If a Redis client is configured, it also schedules a keepalive task for Redis.
func (c *Controller) Schedule(ctx context.Context, release config.Release, gc config.GarbageCollect) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "controller:Schedule")
	defer span.End()

	go func() {
		if err := c.GetRegistryMetadata(ctx); err != nil {
			log.WithContext(ctx).
				WithError(err).
				Error("retrieving registry metadata")
		}
	}()

	for tt, cfg := range map[schemas.TaskType]config.SchedulerConfig{
		schemas.TaskTypeRelease: {
			OnInit:          release.OnInit,
			Scheduled:       release.Scheduled,
			IntervalSeconds: release.IntervalSeconds,
		},
		schemas.TaskTypeGarbageCollectUnits: config.SchedulerConfig(gc.Units),
		schemas.TaskTypeGarbageCollectRunReports: {
			OnInit:          gc.RunReports.OnInit,
			Scheduled:       gc.RunReports.Scheduled,
			IntervalSeconds: gc.RunReports.IntervalSeconds,
		},
		schemas.TaskTypeGarbageCollectMetrics: config.SchedulerConfig(gc.Metrics),
	} {
		if cfg.OnInit {
			c.ScheduleTask(ctx, tt, "_", taskArgs(tt)...)
		}

		if cfg.Scheduled {
			c.ScheduleTaskWithTicker(ctx, tt, cfg.IntervalSeconds)
		}

		if c.Redis != nil {
			c.ScheduleRedisSetKeepalive(ctx)
		}
	}
}

// taskArgs returns the arguments a periodically scheduled task of the given type is invoked with.
// Release runs triggered by the scheduler carry a synthetic release event as they have no
// upstream payload; re-running them is idempotent when skip_existing is enabled.
func taskArgs(tt schemas.TaskType) []interface{} {
	if tt == schemas.TaskTypeRelease {
		return []interface{}{schemas.NewReleaseEvent("")}
	}

	return nil
}

// ScheduleRedisSetKeepalive periodically updates a Redis key to signal that this instance
// of the process is alive and actively processing tasks.
//
// It starts a new goroutine that:
//   - Creates a ticker firing every 1 seconds.
//   - On each tick, it calls SetKeepalive on the Redis store to update the key with
//     a 10-second expiration, effectively refreshing the liveness indicator.
//   - If the context is canceled, the goroutine logs and exits cleanly.
//
// If updating the keepalive key fails, it logs a fatal error and terminates the process,
// since keepalive failures indicate a critical problem with Redis connectivity or availability.
func (c *Controller) ScheduleRedisSetKeepalive(ctx context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "controller:ScheduleRedisSetKeepalive")
	defer span.End()

	go func(ctx context.Context) {
		ticker := time.NewTicker(time.Duration(1) * time.Second)

		for {
			select {
			case <-ctx.Done():
				log.Info("stopped redis keepalive")

				return
			case <-ticker.C:
				if _, err := c.Store.(*store.Redis).SetKeepalive(ctx, c.UUID.String(), time.Duration(10)*time.Second); err != nil {
					log.WithContext(ctx).
						WithError(err).
						Fatal("setting keepalive")
				}
			}
		}
	}(ctx)
}

// ScheduleTask schedules a new task of type `tt` with a unique identifier `uniqueID` and optional arguments.
//
// It performs the following steps:
//  1. Starts an OpenTelemetry span for tracing the scheduling operation, annotating it with the task type and unique ID.
//  2. Retrieves the task constructor from the TaskMap and creates a new job instance with the provided arguments.
//  3. Checks the current length of the task queue to avoid overfilling it beyond its buffer size. If the queue is full, the task is not scheduled.
//  4. Attempts to declare the task in the persistent store queue to ensure idempotency and track the task state.
//     If the task is already queued, it skips scheduling to avoid duplicates.
//  5. If the task is successfully registered and the queue has capacity, it asynchronously adds the job to the task queue.
//  6. Logs warnings or debug messages at each failure or skip point to aid in diagnostics.
//
// This function helps ensure tasks are only scheduled when the queue has capacity and the task is not already enqueued,
// preventing duplicate work and managing system load effectively.
func (c *Controller) ScheduleTask(ctx context.Context, tt schemas.TaskType, uniqueID string, args ...interface{}) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "controller:ScheduleTask")
	defer span.End()

	span.SetAttributes(attribute.String("task_type", string(tt)))
	span.SetAttributes(attribute.String("task_unique_id", uniqueID))

	logFields := log.Fields{
		"task_type":      tt,
		"task_unique_id": uniqueID,
	}
	task := c.TaskController.TaskMap.Get(string(tt))
	msg := task.NewJob(args...)

	qlen, err := c.TaskController.Queue.Len(ctx)
	if err != nil {
		log.WithContext(ctx).
			WithFields(logFields).
			Warn("unable to read task queue length, skipping scheduling of task..")

		return
	}

	if qlen >= c.TaskController.Queue.Options().BufferSize {
		log.WithContext(ctx).
			WithFields(logFields).
			Warn("queue buffer size exhausted, skipping scheduling of task..")

		return
	}

	queued, err := c.Store.QueueTask(ctx, tt, uniqueID, c.UUID.String())
	if err != nil {
		log.WithContext(ctx).
			WithFields(logFields).
			Warn("unable to declare the queueing, skipping scheduling of task..")

		return
	}

	if !queued {
		log.WithFields(logFields).
			Debug("task already queued, skipping scheduling of task..")

		return
	}

	go func(job *taskq.Job) {
		if err := c.TaskController.Queue.AddJob(ctx, job); err != nil {
			log.WithContext(ctx).
				WithError(err).
				Warn("scheduling task")
		}
	}(msg)
}

// ScheduleTaskWithTicker repeatedly schedules a task of the specified type `tt` at fixed intervals defined by `intervalSeconds`.
//
// It performs the following:
// 1. Starts an OpenTelemetry span for tracing, recording the task type and interval.
// 2. Validates the interval; if it is zero or negative, logs a warning and disables scheduling for the task.
// 3. Logs a debug message confirming the task has been scheduled with the given interval.
// 4. Updates monitoring metadata to indicate when the next scheduling is expected.
// 5. Launches a goroutine that ticks every `intervalSeconds` seconds:
//   - On each tick, it schedules the task using `ScheduleTask` with a fixed unique ID "_".
//   - Updates monitoring to track the next scheduled time.
//   - Listens for context cancellation to cleanly stop the ticker and log shutdown.
//
// This function ensures that periodic tasks are automatically scheduled at consistent intervals,
// allowing the system to regularly perform recurring work without manual intervention.
func (c *Controller) ScheduleTaskWithTicker(ctx context.Context, tt schemas.TaskType, intervalSeconds int) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "controller:ScheduleTaskWithTicker")
	defer span.End()
	span.SetAttributes(attribute.String("task_type", string(tt)))
	span.SetAttributes(attribute.Int("interval_seconds", intervalSeconds))

	if intervalSeconds <= 0 {
		log.WithContext(ctx).
			WithField("task", tt).
			Warn("task scheduling misconfigured, currently disabled")

		return
	}

	log.WithFields(log.Fields{
		"task":             tt,
		"interval_seconds": intervalSeconds,
	}).Debug("task scheduled")

	c.TaskController.monitorNextTaskScheduling(tt, intervalSeconds)

	go func(ctx context.Context) {
		ticker := time.NewTicker(time.Duration(intervalSeconds) * time.Second)

		for {
			select {
			case <-ctx.Done():
				log.WithField("task", tt).Info("scheduling of task stopped")

				return
			case <-ticker.C:
				c.ScheduleTask(ctx, tt, "_", taskArgs(tt)...)
				c.TaskController.monitorNextTaskScheduling(tt, intervalSeconds)
			}
		}
	}(ctx)
}

// monitorNextTaskScheduling updates the monitoring status of the next expected execution time for the given task type `tt`.
// If no monitoring record exists, it creates one and sets the Next scheduled time to now + duration.
func (tc *TaskController) monitorNextTaskScheduling(tt schemas.TaskType, duration int) {
	if _, ok := tc.TaskSchedulingMonitoring[tt]; !ok {
		tc.TaskSchedulingMonitoring[tt] = &monitor.TaskSchedulingStatus{}
	}

	tc.TaskSchedulingMonitoring[tt].Next = time.Now().Add(time.Duration(duration) * time.Second)
}

// monitorLastTaskScheduling updates the monitoring status to record the last execution time of the given task type `tt`.
// If no monitoring record exists, it creates one and sets the Last scheduled time to now.
func (tc *TaskController) monitorLastTaskScheduling(tt schemas.TaskType) {
	if _, ok := tc.TaskSchedulingMonitoring[tt]; !ok {
		tc.TaskSchedulingMonitoring[tt] = &monitor.TaskSchedulingStatus{}
	}

	tc.TaskSchedulingMonitoring[tt].Last = time.Now()
}
