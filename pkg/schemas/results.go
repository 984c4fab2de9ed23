package schemas

import (
	"hash/crc32" // For calculating CRC32 checksums
	"strconv"    // For string conversion operations
	"time"

	"github.com/google/uuid" // UUID generation for run identifiers
)

const (
	// UnitStatusPending refers to a unit which has not started processing yet.
	UnitStatusPending UnitStatus = "pending"

	// UnitStatusBuilding refers to a unit currently producing its artifacts.
	UnitStatusBuilding UnitStatus = "building"

	// UnitStatusPublishing refers to a unit currently uploading its artifacts.
	UnitStatusPublishing UnitStatus = "publishing"

	// UnitStatusSucceeded refers to a unit whose artifacts were built and uploaded.
	UnitStatusSucceeded UnitStatus = "succeeded"

	// UnitStatusFailed refers to a unit whose build or publish failed.
	UnitStatusFailed UnitStatus = "failed"

	// UnitStatusSkipped refers to a unit whose version was already present in
	// the registry and which was configured to treat that as a non-event.
	UnitStatusSkipped UnitStatus = "skipped"
)

// UnitStatus is a custom type used to determine the processing state of a unit within a run.
type UnitStatus string

const (
	// FailureReasonConfiguration refers to an invalid or incomplete configuration,
	// detected before any unit starts processing.
	FailureReasonConfiguration FailureReason = "configuration"

	// FailureReasonBuildFailed refers to a build command which exited unsuccessfully
	// or produced no artifacts.
	FailureReasonBuildFailed FailureReason = "build_failed"

	// FailureReasonAuthentication refers to an upload rejected by the registry
	// because of invalid credentials.
	FailureReasonAuthentication FailureReason = "authentication"

	// FailureReasonVersionConflict refers to an upload rejected because the version
	// already exists in the registry and skipping was not enabled.
	FailureReasonVersionConflict FailureReason = "version_conflict"

	// FailureReasonNetworkExhausted refers to an upload abandoned after exhausting
	// the bounded retry attempts on transient failures.
	FailureReasonNetworkExhausted FailureReason = "network_exhausted"

	// FailureReasonTimeout refers to a unit still in flight when the run-level
	// wall-clock timeout elapsed.
	FailureReasonTimeout FailureReason = "timeout"
)

// FailureReason is a custom type used to classify why a unit failed.
type FailureReason string

// UnitResult captures the terminal outcome of one unit within a run.
// It is immutable once recorded.
type UnitResult struct {
	UnitName               string        // The name of the unit the result belongs to
	Status                 UnitStatus    // The terminal status of the unit
	Reason                 FailureReason // The failure classification, empty unless Status is failed
	Detail                 string        // A human readable failure detail, empty unless Status is failed
	ArtifactCount          int           // The number of artifacts produced by the build
	BuildDurationSeconds   float64       // Duration of the build phase in seconds
	PublishDurationSeconds float64       // Duration of the publish phase in seconds
}

// Succeeded returns true when the unit outcome does not prevent the run from succeeding.
func (r UnitResult) Succeeded() bool {
	return r.Status == UnitStatusSucceeded || r.Status == UnitStatusSkipped
}

const (
	// RunStatusSucceeded refers to a run in which every unit succeeded or was skipped.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed refers to a run in which at least one unit failed.
	RunStatusFailed RunStatus = "failed"
)

// RunStatus is a custom type used to determine the overall outcome of a run.
type RunStatus string

// RunReport aggregates the outcome of one orchestration run.
type RunReport struct {
	ID          string       // Unique identifier of the run
	Event       ReleaseEvent // The release event which triggered the run
	Status      RunStatus    // The overall outcome of the run
	TimedOut    bool         // Whether the run-level wall-clock timeout elapsed
	Results     []UnitResult // One result per configured unit, ordered by unit name
	CreatedAt   time.Time    // When the run started
	CompletedAt time.Time    // When the last unit outcome was recorded
}

// RunReportKey is a custom type used as a key for identifying run reports.
type RunReportKey string

// RunReports is a map used to keep track of multiple run reports, with RunReportKey as the key.
type RunReports map[RunReportKey]RunReport

// Key generates a unique key for a RunReport using a CRC32 checksum of the run's ID.
func (r RunReport) Key() RunReportKey {
	// Generate a unique key using the CRC32 checksum of the run's ID
	return RunReportKey(strconv.Itoa(int(crc32.ChecksumIEEE([]byte(r.ID)))))
}

// Count returns the number of run reports in the RunReports map.
func (reports RunReports) Count() int {
	return len(reports)
}

// Succeeded returns true when every unit of the run succeeded or was skipped.
func (r RunReport) Succeeded() bool {
	for _, result := range r.Results {
		if !result.Succeeded() {
			return false
		}
	}

	return true
}

// Finalize records the unit results on the report and derives its overall status.
func (r *RunReport) Finalize(results []UnitResult, timedOut bool) {
	r.Results = results
	r.TimedOut = timedOut
	r.CompletedAt = time.Now()

	// The run succeeds if and only if every unit succeeded or was skipped
	if r.Succeeded() {
		r.Status = RunStatusSucceeded
	} else {
		r.Status = RunStatusFailed
	}
}

// NewRunReport is a helper function that returns a new RunReport for the given event.
func NewRunReport(event ReleaseEvent) RunReport {
	return RunReport{
		ID:        uuid.New().String(),
		Event:     event,
		CreatedAt: time.Now(),
	}
}
