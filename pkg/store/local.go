package store

import (
	"context"
	"sync"

	"github.com/helvethink/package-release-orchestrator/pkg/schemas"
)

// Local represents an in-memory storage implementation for managing units, run reports, and metrics.
type Local struct {
	units      schemas.Units
	unitsMutex sync.RWMutex // Mutex for thread-safe access to units

	runReports      schemas.RunReports
	runReportsMutex sync.RWMutex // Mutex for thread-safe access to run reports

	metrics      schemas.Metrics
	metricsMutex sync.RWMutex // Mutex for thread-safe access to metrics

	tasks              schemas.Tasks
	tasksMutex         sync.RWMutex // Mutex for thread-safe access to tasks
	executedTasksCount uint64       // Counter for the number of executed tasks
}

// SetUnit stores a unit in the local storage.
func (l *Local) SetUnit(_ context.Context, u schemas.Unit) error {
	l.unitsMutex.Lock()         // Lock the mutex for exclusive access
	defer l.unitsMutex.Unlock() // Ensure the mutex is unlocked when the function exits

	l.units[u.Key()] = u // Store the unit

	return nil
}

// DelUnit deletes a unit from the local storage.
func (l *Local) DelUnit(_ context.Context, k schemas.UnitKey) error {
	l.unitsMutex.Lock()         // Lock the mutex for exclusive access
	defer l.unitsMutex.Unlock() // Ensure the mutex is unlocked when the function exits

	delete(l.units, k) // Delete the unit

	return nil
}

// GetUnit retrieves a unit from the local storage.
func (l *Local) GetUnit(ctx context.Context, u *schemas.Unit) error {
	exists, _ := l.UnitExists(ctx, u.Key())

	if exists {
		l.unitsMutex.RLock()   // Lock the mutex for read-only access
		*u = l.units[u.Key()]  // Retrieve the unit
		l.unitsMutex.RUnlock() // Unlock the mutex
	}

	return nil
}

// UnitExists checks if a unit exists in the local storage.
func (l *Local) UnitExists(_ context.Context, k schemas.UnitKey) (bool, error) {
	l.unitsMutex.RLock()         // Lock the mutex for read-only access
	defer l.unitsMutex.RUnlock() // Ensure the mutex is unlocked when the function exits

	_, ok := l.units[k] // Check if the unit exists

	return ok, nil
}

// Units retrieves all units from the local storage.
func (l *Local) Units(_ context.Context) (units schemas.Units, err error) {
	units = make(schemas.Units)

	l.unitsMutex.RLock()         // Lock the mutex for read-only access
	defer l.unitsMutex.RUnlock() // Ensure the mutex is unlocked when the function exits

	for k, v := range l.units {
		units[k] = v // Copy all units to the result
	}

	return
}

// UnitsCount returns the count of units in the local storage.
func (l *Local) UnitsCount(_ context.Context) (int64, error) {
	l.unitsMutex.RLock()         // Lock the mutex for read-only access
	defer l.unitsMutex.RUnlock() // Ensure the mutex is unlocked when the function exits

	return int64(len(l.units)), nil // Return the number of units
}

// SetRunReport stores a run report in the local storage.
func (l *Local) SetRunReport(_ context.Context, r schemas.RunReport) error {
	l.runReportsMutex.Lock()         // Lock the mutex for exclusive access
	defer l.runReportsMutex.Unlock() // Ensure the mutex is unlocked when the function exits

	l.runReports[r.Key()] = r // Store the run report

	return nil
}

// DelRunReport deletes a run report from the local storage.
func (l *Local) DelRunReport(_ context.Context, k schemas.RunReportKey) error {
	l.runReportsMutex.Lock()         // Lock the mutex for exclusive access
	defer l.runReportsMutex.Unlock() // Ensure the mutex is unlocked when the function exits

	delete(l.runReports, k) // Delete the run report

	return nil
}

// GetRunReport retrieves a run report from the local storage.
func (l *Local) GetRunReport(ctx context.Context, r *schemas.RunReport) error {
	exists, _ := l.RunReportExists(ctx, r.Key())

	if exists {
		l.runReportsMutex.RLock()   // Lock the mutex for read-only access
		*r = l.runReports[r.Key()]  // Retrieve the run report
		l.runReportsMutex.RUnlock() // Unlock the mutex
	}

	return nil
}

// RunReportExists checks if a run report exists in the local storage.
func (l *Local) RunReportExists(_ context.Context, k schemas.RunReportKey) (bool, error) {
	l.runReportsMutex.RLock()         // Lock the mutex for read-only access
	defer l.runReportsMutex.RUnlock() // Ensure the mutex is unlocked when the function exits

	_, ok := l.runReports[k] // Check if the run report exists

	return ok, nil
}

// RunReports retrieves all run reports from the local storage.
func (l *Local) RunReports(_ context.Context) (reports schemas.RunReports, err error) {
	reports = make(schemas.RunReports)

	l.runReportsMutex.RLock()         // Lock the mutex for read-only access
	defer l.runReportsMutex.RUnlock() // Ensure the mutex is unlocked when the function exits

	for k, v := range l.runReports {
		reports[k] = v // Copy all run reports to the result
	}

	return
}

// RunReportsCount returns the count of run reports in the local storage.
func (l *Local) RunReportsCount(_ context.Context) (int64, error) {
	l.runReportsMutex.RLock()         // Lock the mutex for read-only access
	defer l.runReportsMutex.RUnlock() // Ensure the mutex is unlocked when the function exits

	return int64(len(l.runReports)), nil // Return the number of run reports
}

// SetMetric stores a metric in the local storage.
func (l *Local) SetMetric(_ context.Context, m schemas.Metric) error {
	l.metricsMutex.Lock()         // Lock the mutex for exclusive access
	defer l.metricsMutex.Unlock() // Ensure the mutex is unlocked when the function exits

	l.metrics[m.Key()] = m // Store the metric

	return nil
}

// DelMetric deletes a metric from the local storage.
func (l *Local) DelMetric(_ context.Context, k schemas.MetricKey) error {
	l.metricsMutex.Lock()         // Lock the mutex for exclusive access
	defer l.metricsMutex.Unlock() // Ensure the mutex is unlocked when the function exits

	delete(l.metrics, k) // Delete the metric

	return nil
}

// GetMetric retrieves a metric from the local storage.
func (l *Local) GetMetric(ctx context.Context, m *schemas.Metric) error {
	exists, _ := l.MetricExists(ctx, m.Key())

	if exists {
		l.metricsMutex.RLock()   // Lock the mutex for read-only access
		*m = l.metrics[m.Key()]  // Retrieve the metric
		l.metricsMutex.RUnlock() // Unlock the mutex
	}

	return nil
}

// MetricExists checks if a metric exists in the local storage.
func (l *Local) MetricExists(_ context.Context, k schemas.MetricKey) (bool, error) {
	l.metricsMutex.RLock()         // Lock the mutex for read-only access
	defer l.metricsMutex.RUnlock() // Ensure the mutex is unlocked when the function exits

	_, ok := l.metrics[k] // Check if the metric exists

	return ok, nil
}

// Metrics retrieves all metrics from the local storage.
func (l *Local) Metrics(_ context.Context) (metrics schemas.Metrics, err error) {
	metrics = make(schemas.Metrics)

	l.metricsMutex.RLock()         // Lock the mutex for read-only access
	defer l.metricsMutex.RUnlock() // Ensure the mutex is unlocked when the function exits

	for k, v := range l.metrics {
		metrics[k] = v // Copy all metrics to the result
	}

	return
}

// MetricsCount returns the count of metrics in the local storage.
func (l *Local) MetricsCount(_ context.Context) (int64, error) {
	l.metricsMutex.RLock()         // Lock the mutex for read-only access
	defer l.metricsMutex.RUnlock() // Ensure the mutex is unlocked when the function exits

	return int64(len(l.metrics)), nil // Return the number of metrics
}

// isTaskAlreadyQueued assesses if a task is already queued or not.
func (l *Local) isTaskAlreadyQueued(tt schemas.TaskType, uniqueID string) bool {
	l.tasksMutex.Lock()         // Lock the mutex for exclusive access
	defer l.tasksMutex.Unlock() // Ensure the mutex is unlocked when the function exits

	if l.tasks == nil {
		l.tasks = make(map[schemas.TaskType]map[string]interface{}) // Initialize the tasks map if it's nil
	}

	taskTypeQueue, ok := l.tasks[tt]
	if !ok {
		l.tasks[tt] = make(map[string]interface{}) // Initialize the task type queue if it doesn't exist

		return false
	}

	if _, alreadyQueued := taskTypeQueue[uniqueID]; alreadyQueued {
		return true // Return true if the task is already queued
	}

	return false
}

// QueueTask registers that we are queueing the task.
// It returns true if it managed to schedule it, false if it was already scheduled.
func (l *Local) QueueTask(_ context.Context, tt schemas.TaskType, uniqueID, _ string) (bool, error) {
	if !l.isTaskAlreadyQueued(tt, uniqueID) {
		l.tasksMutex.Lock()         // Lock the mutex for exclusive access
		defer l.tasksMutex.Unlock() // Ensure the mutex is unlocked when the function exits

		l.tasks[tt][uniqueID] = nil // Queue the task

		return true, nil
	}

	return false, nil
}

// UnqueueTask removes the task from the tracker.
func (l *Local) UnqueueTask(_ context.Context, tt schemas.TaskType, uniqueID string) error {
	if l.isTaskAlreadyQueued(tt, uniqueID) {
		l.tasksMutex.Lock()         // Lock the mutex for exclusive access
		defer l.tasksMutex.Unlock() // Ensure the mutex is unlocked when the function exits

		delete(l.tasks[tt], uniqueID) // Remove the task from the queue

		l.executedTasksCount++ // Increment the count of executed tasks
	}

	return nil
}

// CurrentlyQueuedTasksCount returns the count of currently queued tasks.
func (l *Local) CurrentlyQueuedTasksCount(_ context.Context) (count uint64, err error) {
	l.tasksMutex.RLock()         // Lock the mutex for read-only access
	defer l.tasksMutex.RUnlock() // Ensure the mutex is unlocked when the function exits

	for _, t := range l.tasks {
		count += uint64(len(t)) // Sum the number of tasks across all task types
	}

	return
}

// ExecutedTasksCount returns the count of executed tasks.
func (l *Local) ExecutedTasksCount(_ context.Context) (uint64, error) {
	l.tasksMutex.RLock()         // Lock the mutex for read-only access
	defer l.tasksMutex.RUnlock() // Ensure the mutex is unlocked when the function exits

	return l.executedTasksCount, nil // Return the count of executed tasks
}
