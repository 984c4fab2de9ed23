package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRunReport(t *testing.T) {
	event := NewReleaseEvent("v1.2.3")
	report := NewRunReport(event)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "v1.2.3", report.Event.Tag)
	assert.False(t, report.CreatedAt.IsZero())
	assert.NotEmpty(t, report.Key())
}

func TestRunReportFinalize(t *testing.T) {
	tests := []struct {
		name     string
		results  []UnitResult
		timedOut bool
		expected RunStatus
	}{
		{
			"all units succeeded",
			[]UnitResult{
				{UnitName: "a", Status: UnitStatusSucceeded},
				{UnitName: "b", Status: UnitStatusSucceeded},
			},
			false,
			RunStatusSucceeded,
		},
		{
			"skipped units do not fail the run",
			[]UnitResult{
				{UnitName: "a", Status: UnitStatusSucceeded},
				{UnitName: "b", Status: UnitStatusSkipped},
			},
			false,
			RunStatusSucceeded,
		},
		{
			"a single failed unit fails the run",
			[]UnitResult{
				{UnitName: "a", Status: UnitStatusSucceeded},
				{UnitName: "b", Status: UnitStatusFailed, Reason: FailureReasonBuildFailed},
				{UnitName: "c", Status: UnitStatusSkipped},
			},
			false,
			RunStatusFailed,
		},
		{
			"timed out units fail the run",
			[]UnitResult{
				{UnitName: "a", Status: UnitStatusSucceeded},
				{UnitName: "b", Status: UnitStatusFailed, Reason: FailureReasonTimeout},
			},
			true,
			RunStatusFailed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			report := NewRunReport(NewReleaseEvent("v1.0.0"))
			report.Finalize(tc.results, tc.timedOut)

			assert.Equal(t, tc.expected, report.Status)
			assert.Equal(t, tc.timedOut, report.TimedOut)
			assert.Len(t, report.Results, len(tc.results))
			assert.False(t, report.CompletedAt.IsZero())
		})
	}
}

func TestUnitResultSucceeded(t *testing.T) {
	assert.True(t, UnitResult{Status: UnitStatusSucceeded}.Succeeded())
	assert.True(t, UnitResult{Status: UnitStatusSkipped}.Succeeded())
	assert.False(t, UnitResult{Status: UnitStatusFailed}.Succeeded())
	assert.False(t, UnitResult{Status: UnitStatusPending}.Succeeded())
}

func TestReleaseEventIsRelease(t *testing.T) {
	assert.True(t, ReleaseEvent{EventType: EventTypeRelease}.IsRelease())
	assert.False(t, ReleaseEvent{EventType: "push"}.IsRelease())
	assert.False(t, ReleaseEvent{}.IsRelease())
}

func TestUnitKey(t *testing.T) {
	u := NewUnit("mlcube")

	assert.NotEmpty(t, u.Key())
	assert.Equal(t, u.Key(), NewUnit("mlcube").Key())
	assert.NotEqual(t, u.Key(), NewUnit("mlcube-docker").Key())
}

func TestArtifactSet(t *testing.T) {
	as := ArtifactSet{
		{Filename: "pkg-1.0.0.tar.gz", SizeBytes: 100},
		{Filename: "pkg-1.0.0-py3-none-any.whl", SizeBytes: 50},
	}

	assert.Equal(t, 2, as.Count())
	assert.Equal(t, int64(150), as.TotalSizeBytes())
}
