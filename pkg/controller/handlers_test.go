package controller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newWebhookRequest(token string, payload string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	if payload == "" {
		req.Body = http.NoBody
	}

	req.Header.Set("X-Webhook-Token", token)

	return req
}

func TestWebhookHandlerInvalidToken(t *testing.T) {
	c, _ := newTestController(t, "http://localhost")
	c.Config.Server.Webhook.Enabled = true
	c.Config.Server.Webhook.SecretToken = "secret"

	w := httptest.NewRecorder()
	c.WebhookHandler(w, newWebhookRequest("invalid", `{"event_type": "release"}`))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, `{"error": "invalid token"}`, w.Body.String())
}

func TestWebhookHandlerEmptyBody(t *testing.T) {
	c, _ := newTestController(t, "http://localhost")
	c.Config.Server.Webhook.Enabled = true
	c.Config.Server.Webhook.SecretToken = "secret"

	w := httptest.NewRecorder()
	c.WebhookHandler(w, newWebhookRequest("secret", ""))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandlerInvalidPayload(t *testing.T) {
	c, _ := newTestController(t, "http://localhost")
	c.Config.Server.Webhook.Enabled = true
	c.Config.Server.Webhook.SecretToken = "secret"

	w := httptest.NewRecorder()
	c.WebhookHandler(w, newWebhookRequest("secret", `{"event_type": not json`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandlerNonReleaseEventAccepted(t *testing.T) {
	c, _ := newTestController(t, "http://localhost")
	c.Config.Server.Webhook.Enabled = true
	c.Config.Server.Webhook.SecretToken = "secret"

	// Non-release events are acknowledged but never trigger any work
	w := httptest.NewRecorder()
	c.WebhookHandler(w, newWebhookRequest("secret", `{"event_type": "push", "tag": "v1.0.0"}`))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Never(t, func() bool {
		count, err := c.Store.RunReportsCount(context.Background())

		return err != nil || count > 0
	}, 500*time.Millisecond, 50*time.Millisecond)
}

func TestWebhookHandlerReleaseEventTriggersRun(t *testing.T) {
	ctx := context.Background()

	c, _ := newTestController(t, "http://localhost")
	c.Config.Server.Webhook.Enabled = true
	c.Config.Server.Webhook.SecretToken = "secret"
	c.TaskController = NewTaskController(ctx, nil, c.Config.Registry.MaximumJobsQueueSize)
	c.registerTasks()

	w := httptest.NewRecorder()
	c.WebhookHandler(w, newWebhookRequest("secret", `{"event_type": "release", "tag": "v1.0.0", "name": "release v1.0.0"}`))

	assert.Equal(t, http.StatusOK, w.Code)

	// The event ends up as a release task whose run report gets persisted
	assert.Eventually(t, func() bool {
		count, err := c.Store.RunReportsCount(ctx)

		return err == nil && count == 1
	}, 5*time.Second, 50*time.Millisecond)
}
