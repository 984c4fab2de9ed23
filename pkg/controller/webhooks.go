package controller

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/helvethink/package-release-orchestrator/pkg/schemas"
)

// processReleaseEvent handles a release event received over the webhook endpoint.
//
// Events whose type is anything other than "release" are ignored: they are logged
// at debug level and acknowledged without triggering any work, so that event
// sources emitting a mixed stream do not need any filtering on their side.
//
// Actual release events are turned into a release task. Scheduling goes through
// the task queue so that a run already in flight is not started a second time.
func (c *Controller) processReleaseEvent(ctx context.Context, e schemas.ReleaseEvent) {
	if !e.IsRelease() {
		log.WithContext(ctx).
			WithField("event-type", e.EventType).
			Debug("received a non-release event type as a webhook, ignoring")

		return
	}

	log.WithContext(ctx).
		WithFields(log.Fields{
			"event-tag":  e.Tag,
			"event-name": e.Name,
		}).
		Info("received a release event from webhook, triggering a release run")

	c.ScheduleTask(ctx, schemas.TaskTypeRelease, "_", e)
}
