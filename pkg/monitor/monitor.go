package monitor

import "time" // Package for time-related operations

// TaskSchedulingStatus represents the scheduling status of a task.
// It includes information about the last and next scheduled times.
type TaskSchedulingStatus struct {
	Last time.Time `json:"last"` // The last time the task was scheduled or executed
	Next time.Time `json:"next"` // The next time the task is scheduled to be executed
}

// Entity holds the telemetry details of a stored entity kind.
type Entity struct {
	Count   int64     `json:"count"`    // Number of entities currently stored
	LastRun time.Time `json:"last_run"` // Last time the entity was processed
	NextRun time.Time `json:"next_run"` // Next time the entity is scheduled to be processed
	LastGC  time.Time `json:"last_gc"`  // Last time the entity was garbage collected
	NextGC  time.Time `json:"next_gc"`  // Next time the entity is scheduled to be garbage collected
}

// Telemetry is the payload served over the internal monitoring listener.
type Telemetry struct {
	RegistryAPIUsage          float64 `json:"registry_api_usage"`           // Registry API usage ratio against the configured rate limit
	RegistryAPIRequestsCount  uint64  `json:"registry_api_requests_count"`  // Total number of registry API requests performed
	RegistryAPIRateLimit      float64 `json:"registry_api_rate_limit"`      // Registry rate limit usage ratio
	RegistryAPILimitRemaining uint64  `json:"registry_api_limit_remaining"` // Remaining registry API requests before throttling
	TasksBufferUsage          float64 `json:"tasks_buffer_usage"`           // Queued tasks buffer usage ratio
	TasksExecutedCount        uint64  `json:"tasks_executed_count"`         // Total number of executed tasks
	Units                     Entity  `json:"units"`                        // Release units telemetry
	RunReports                Entity  `json:"run_reports"`                  // Run reports telemetry
	Metrics                   Entity  `json:"metrics"`                      // Metrics telemetry
}

// Config wraps the rendered configuration served to the monitoring UI.
type Config struct {
	Content string `json:"content"` // YAML representation of the running configuration
}
