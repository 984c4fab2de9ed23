package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"      // Redis client for Go
	"github.com/vmihailenco/msgpack/v5" // Library for MessagePack serialization

	"github.com/helvethink/package-release-orchestrator/pkg/schemas" // Data schemas
)

// Constants for Redis keys
const (
	redisUnitsKey              string = "units"
	redisRunReportsKey         string = "runReports"
	redisMetricsKey            string = "metrics"
	redisTaskKey               string = "task"
	redisTasksExecutedCountKey string = "tasksExecutedCount"
	redisKeepaliveKey          string = "keepalive"
)

// Redis represents a Redis client wrapper.
type Redis struct {
	*redis.Client
}

// SetUnit stores a unit in Redis.
func (r *Redis) SetUnit(ctx context.Context, u schemas.Unit) error {
	// Marshal the unit into a binary format using MessagePack
	marshalledUnit, err := msgpack.Marshal(u)
	if err != nil {
		return err
	}

	// Store the marshalled unit in Redis
	_, err = r.HSet(ctx, redisUnitsKey, string(u.Key()), marshalledUnit).Result()
	return err
}

// DelUnit deletes a unit from Redis.
func (r *Redis) DelUnit(ctx context.Context, k schemas.UnitKey) error {
	// Delete the unit from Redis
	_, err := r.HDel(ctx, redisUnitsKey, string(k)).Result()
	return err
}

// GetUnit retrieves a unit from Redis.
func (r *Redis) GetUnit(ctx context.Context, u *schemas.Unit) error {
	// Check if the unit exists
	exists, err := r.UnitExists(ctx, u.Key())
	if err != nil {
		return err
	}

	if exists {
		k := u.Key()

		// Retrieve the marshalled unit from Redis
		marshalledUnit, err := r.HGet(ctx, redisUnitsKey, string(k)).Result()
		if err != nil {
			return err
		}

		// Unmarshal the unit data into the provided unit structure
		if err = msgpack.Unmarshal([]byte(marshalledUnit), u); err != nil {
			return err
		}
	}

	return nil
}

// UnitExists checks if a unit exists in Redis.
func (r *Redis) UnitExists(ctx context.Context, k schemas.UnitKey) (bool, error) {
	// Check if the unit key exists in Redis
	return r.HExists(ctx, redisUnitsKey, string(k)).Result()
}

// Units retrieves all units from Redis.
func (r *Redis) Units(ctx context.Context) (schemas.Units, error) {
	units := schemas.Units{}

	// Retrieve all marshalled units from Redis
	marshalledUnits, err := r.HGetAll(ctx, redisUnitsKey).Result()
	if err != nil {
		return units, err
	}

	// Unmarshal each unit and add it to the units map
	for stringUnitKey, marshalledUnit := range marshalledUnits {
		u := schemas.Unit{}

		if err = msgpack.Unmarshal([]byte(marshalledUnit), &u); err != nil {
			return units, err
		}

		units[schemas.UnitKey(stringUnitKey)] = u
	}

	return units, nil
}

// UnitsCount returns the count of units in Redis.
func (r *Redis) UnitsCount(ctx context.Context) (int64, error) {
	// Get the number of units stored in Redis
	return r.HLen(ctx, redisUnitsKey).Result()
}

// SetRunReport stores a run report in Redis.
func (r *Redis) SetRunReport(ctx context.Context, report schemas.RunReport) error {
	// Marshal the run report into a binary format using MessagePack
	marshalledReport, err := msgpack.Marshal(report)
	if err != nil {
		return err
	}

	// Store the marshalled run report in Redis
	_, err = r.HSet(ctx, redisRunReportsKey, string(report.Key()), marshalledReport).Result()
	return err
}

// DelRunReport deletes a run report from Redis.
func (r *Redis) DelRunReport(ctx context.Context, k schemas.RunReportKey) error {
	// Delete the run report from Redis
	_, err := r.HDel(ctx, redisRunReportsKey, string(k)).Result()
	return err
}

// GetRunReport retrieves a run report from Redis.
func (r *Redis) GetRunReport(ctx context.Context, report *schemas.RunReport) error {
	// Check if the run report exists
	exists, err := r.RunReportExists(ctx, report.Key())
	if err != nil {
		return err
	}

	if exists {
		k := report.Key()

		// Retrieve the marshalled run report from Redis
		marshalledReport, err := r.HGet(ctx, redisRunReportsKey, string(k)).Result()
		if err != nil {
			return err
		}

		// Unmarshal the run report data into the provided run report structure
		if err = msgpack.Unmarshal([]byte(marshalledReport), report); err != nil {
			return err
		}
	}

	return nil
}

// RunReportExists checks if a run report exists in Redis.
func (r *Redis) RunReportExists(ctx context.Context, k schemas.RunReportKey) (bool, error) {
	// Check if the run report key exists in Redis
	return r.HExists(ctx, redisRunReportsKey, string(k)).Result()
}

// RunReports retrieves all run reports from Redis.
func (r *Redis) RunReports(ctx context.Context) (schemas.RunReports, error) {
	reports := schemas.RunReports{}

	// Retrieve all marshalled run reports from Redis
	marshalledReports, err := r.HGetAll(ctx, redisRunReportsKey).Result()
	if err != nil {
		return reports, err
	}

	// Unmarshal each run report and add it to the reports map
	for stringReportKey, marshalledReport := range marshalledReports {
		report := schemas.RunReport{}

		if err = msgpack.Unmarshal([]byte(marshalledReport), &report); err != nil {
			return reports, err
		}

		reports[schemas.RunReportKey(stringReportKey)] = report
	}

	return reports, nil
}

// RunReportsCount returns the count of run reports in Redis.
func (r *Redis) RunReportsCount(ctx context.Context) (int64, error) {
	// Get the number of run reports stored in Redis
	return r.HLen(ctx, redisRunReportsKey).Result()
}

// SetMetric stores a metric in Redis.
func (r *Redis) SetMetric(ctx context.Context, m schemas.Metric) error {
	// Marshal the metric into a binary format using MessagePack
	marshalledMetric, err := msgpack.Marshal(m)
	if err != nil {
		return err
	}

	// Store the marshalled metric in Redis
	_, err = r.HSet(ctx, redisMetricsKey, string(m.Key()), marshalledMetric).Result()
	return err
}

// DelMetric deletes a metric from Redis.
func (r *Redis) DelMetric(ctx context.Context, k schemas.MetricKey) error {
	// Delete the metric from Redis
	_, err := r.HDel(ctx, redisMetricsKey, string(k)).Result()
	return err
}

// MetricExists checks if a metric exists in Redis.
func (r *Redis) MetricExists(ctx context.Context, k schemas.MetricKey) (bool, error) {
	// Check if the metric key exists in Redis
	return r.HExists(ctx, redisMetricsKey, string(k)).Result()
}

// GetMetric retrieves a metric from Redis.
func (r *Redis) GetMetric(ctx context.Context, m *schemas.Metric) error {
	// Check if the metric exists
	exists, err := r.MetricExists(ctx, m.Key())
	if err != nil {
		return err
	}

	if exists {
		k := m.Key()

		// Retrieve the marshalled metric from Redis
		marshalledMetric, err := r.HGet(ctx, redisMetricsKey, string(k)).Result()
		if err != nil {
			return err
		}

		// Unmarshal the metric data into the provided metric structure
		if err = msgpack.Unmarshal([]byte(marshalledMetric), m); err != nil {
			return err
		}
	}

	return nil
}

// Metrics retrieves all metrics from Redis.
func (r *Redis) Metrics(ctx context.Context) (schemas.Metrics, error) {
	metrics := schemas.Metrics{}

	// Retrieve all marshalled metrics from Redis
	marshalledMetrics, err := r.HGetAll(ctx, redisMetricsKey).Result()
	if err != nil {
		return metrics, err
	}

	// Unmarshal each metric and add it to the metrics map
	for stringMetricKey, marshalledMetric := range marshalledMetrics {
		m := schemas.Metric{}

		if err := msgpack.Unmarshal([]byte(marshalledMetric), &m); err != nil {
			return metrics, err
		}

		metrics[schemas.MetricKey(stringMetricKey)] = m
	}

	return metrics, nil
}

// MetricsCount returns the count of metrics in Redis.
func (r *Redis) MetricsCount(ctx context.Context) (int64, error) {
	// Get the number of metrics stored in Redis
	return r.HLen(ctx, redisMetricsKey).Result()
}

// SetKeepalive sets a key with a UUID corresponding to the currently running process.
func (r *Redis) SetKeepalive(ctx context.Context, uuid string, ttl time.Duration) (bool, error) {
	// Set a key with the UUID and a time-to-live (TTL) in Redis
	return r.SetNX(ctx, fmt.Sprintf("%s:%s", redisKeepaliveKey, uuid), nil, ttl).Result()
}

// KeepaliveExists returns whether a keepalive exists or not for a particular UUID.
func (r *Redis) KeepaliveExists(ctx context.Context, uuid string) (bool, error) {
	// Check if the keepalive key exists in Redis
	exists, err := r.Exists(ctx, fmt.Sprintf("%s:%s", redisKeepaliveKey, uuid)).Result()
	return exists == 1, err
}

// getRedisQueueKey generates a Redis key for a task.
func getRedisQueueKey(tt schemas.TaskType, taskUUID string) string {
	return fmt.Sprintf("%s:%v:%s", redisTaskKey, tt, taskUUID)
}

// QueueTask registers that we are queueing the task.
// It returns true if it managed to schedule it, false if it was already scheduled.
func (r *Redis) QueueTask(ctx context.Context, tt schemas.TaskType, taskUUID, processUUID string) (set bool, err error) {
	k := getRedisQueueKey(tt, taskUUID)

	// Attempt to set the key, if it already exists, do not overwrite it
	set, err = r.SetNX(ctx, k, processUUID, 0).Result()
	if err != nil || set {
		return
	}

	// If the key already exists, check if the associated process UUID is the same as the current one
	var tpuuid string
	if tpuuid, err = r.Get(ctx, k).Result(); err != nil {
		return
	}

	// If the process UUID is different, check if the associated process is still alive
	if tpuuid != processUUID {
		var uuidIsAlive bool
		if uuidIsAlive, err = r.KeepaliveExists(ctx, tpuuid); err != nil {
			return
		}

		// If the process is not alive, override the key and schedule the task
		if !uuidIsAlive {
			if _, err = r.Set(ctx, k, processUUID, 0).Result(); err != nil {
				return
			}
			return true, nil
		}
	}

	return
}

// UnqueueTask removes the task from the tracker.
func (r *Redis) UnqueueTask(ctx context.Context, tt schemas.TaskType, taskUUID string) (err error) {
	var matched int64

	// Delete the task key from Redis
	matched, err = r.Del(ctx, getRedisQueueKey(tt, taskUUID)).Result()
	if err != nil {
		return
	}

	// Increment the count of executed tasks
	if matched > 0 {
		_, err = r.Incr(ctx, redisTasksExecutedCountKey).Result()
	}

	return
}

// CurrentlyQueuedTasksCount returns the count of currently queued tasks.
func (r *Redis) CurrentlyQueuedTasksCount(ctx context.Context) (count uint64, err error) {
	// Scan for all task keys and count them
	iter := r.Scan(ctx, 0, fmt.Sprintf("%s:*", redisTaskKey), 0).Iterator()
	for iter.Next(ctx) {
		count++
	}

	err = iter.Err()
	return
}

// ExecutedTasksCount returns the count of executed tasks.
func (r *Redis) ExecutedTasksCount(ctx context.Context) (uint64, error) {
	// Retrieve the count of executed tasks from Redis
	countString, err := r.Get(ctx, redisTasksExecutedCountKey).Result()
	if err != nil {
		return 0, err
	}

	// Convert the count string to an integer
	c, err := strconv.Atoi(countString)
	return uint64(c), err
}
