package schemas

import (
	"time"
)

// EventTypeRelease is the event type value that triggers an orchestration run.
// Events carrying any other type are ignored.
const EventTypeRelease string = "release"

// ReleaseEvent represents an external notification that a new version of the
// packages should be published. It is consumed once per orchestration run.
type ReleaseEvent struct {
	EventType  string    `json:"event_type"`  // The type of the event, only "release" triggers a run
	Tag        string    `json:"tag"`         // The version tag the release refers to
	Name       string    `json:"name"`        // A human readable name for the release
	ReleasedAt time.Time `json:"released_at"` // When the release was cut by the event source
}

// IsRelease returns true when the event is an actual release notification.
func (e ReleaseEvent) IsRelease() bool {
	return e.EventType == EventTypeRelease
}

// NewReleaseEvent is a helper function that returns a new ReleaseEvent for the given tag.
func NewReleaseEvent(tag string) ReleaseEvent {
	return ReleaseEvent{
		EventType:  EventTypeRelease,
		Tag:        tag,
		ReleasedAt: time.Now(),
	}
}
