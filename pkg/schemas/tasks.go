package schemas

// TaskType represents the type of task as a string.
type TaskType string

const (
	// TaskTypeRelease represents a task type for running a whole release orchestration.
	TaskTypeRelease TaskType = "Release"

	// TaskTypeGarbageCollectUnits represents a task type for garbage collecting units.
	TaskTypeGarbageCollectUnits TaskType = "GarbageCollectUnits"

	// TaskTypeGarbageCollectRunReports represents a task type for garbage collecting run reports.
	TaskTypeGarbageCollectRunReports TaskType = "GarbageCollectRunReports"

	// TaskTypeGarbageCollectMetrics represents a task type for garbage collecting metrics.
	TaskTypeGarbageCollectMetrics TaskType = "GarbageCollectMetrics"
)

// Tasks is a map structure used to keep track of tasks.
// It maps a TaskType to another map, which associates task identifiers with empty interfaces.
type Tasks map[TaskType]map[string]interface{}
