package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/helvethink/package-release-orchestrator/pkg/config"
	"github.com/helvethink/package-release-orchestrator/pkg/schemas"
)

// testStores returns one store per implementation to run the shared test cases against.
func testStores(t *testing.T) map[string]Store {
	t.Helper()

	s, err := miniredis.Run()
	assert.NoError(t, err)
	t.Cleanup(s.Close)

	return map[string]Store{
		"local": NewLocalStore(),
		"redis": NewRedisStore(redis.NewClient(&redis.Options{Addr: s.Addr()})),
	}
}

func TestUnitLifecycle(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			u := schemas.NewUnit("mlcube")
			u.SourceDir = "./mlcube"

			assert.NoError(t, s.SetUnit(ctx, u))

			exists, err := s.UnitExists(ctx, u.Key())
			assert.NoError(t, err)
			assert.True(t, exists)

			fetched := schemas.Unit{Unit: config.Unit{Name: "mlcube"}}
			assert.NoError(t, s.GetUnit(ctx, &fetched))
			assert.Equal(t, u.SourceDir, fetched.SourceDir)

			count, err := s.UnitsCount(ctx)
			assert.NoError(t, err)
			assert.Equal(t, int64(1), count)

			units, err := s.Units(ctx)
			assert.NoError(t, err)
			assert.Len(t, units, 1)

			assert.NoError(t, s.DelUnit(ctx, u.Key()))

			exists, err = s.UnitExists(ctx, u.Key())
			assert.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestRunReportLifecycle(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			report := schemas.NewRunReport(schemas.NewReleaseEvent("v1.0.0"))
			report.Finalize([]schemas.UnitResult{
				{UnitName: "mlcube", Status: schemas.UnitStatusSucceeded},
			}, false)

			assert.NoError(t, s.SetRunReport(ctx, report))

			exists, err := s.RunReportExists(ctx, report.Key())
			assert.NoError(t, err)
			assert.True(t, exists)

			fetched := schemas.RunReport{ID: report.ID}
			assert.NoError(t, s.GetRunReport(ctx, &fetched))
			assert.Equal(t, schemas.RunStatusSucceeded, fetched.Status)
			assert.Len(t, fetched.Results, 1)

			count, err := s.RunReportsCount(ctx)
			assert.NoError(t, err)
			assert.Equal(t, int64(1), count)

			assert.NoError(t, s.DelRunReport(ctx, report.Key()))

			count, err = s.RunReportsCount(ctx)
			assert.NoError(t, err)
			assert.Equal(t, int64(0), count)
		})
	}
}

func TestMetricLifecycle(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			m := schemas.Metric{
				Kind:   schemas.MetricKindUnitStatus,
				Labels: map[string]string{"unit": "mlcube", "status": "succeeded"},
				Value:  1,
			}

			assert.NoError(t, s.SetMetric(ctx, m))

			exists, err := s.MetricExists(ctx, m.Key())
			assert.NoError(t, err)
			assert.True(t, exists)

			fetched := schemas.Metric{
				Kind:   schemas.MetricKindUnitStatus,
				Labels: map[string]string{"unit": "mlcube", "status": "succeeded"},
			}
			assert.NoError(t, s.GetMetric(ctx, &fetched))
			assert.Equal(t, float64(1), fetched.Value)

			metrics, err := s.Metrics(ctx)
			assert.NoError(t, err)
			assert.Len(t, metrics, 1)

			assert.NoError(t, s.DelMetric(ctx, m.Key()))

			count, err := s.MetricsCount(ctx)
			assert.NoError(t, err)
			assert.Equal(t, int64(0), count)
		})
	}
}

func TestQueueTask(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			// First queueing succeeds, the duplicate is refused
			queued, err := s.QueueTask(ctx, schemas.TaskTypeRelease, "foo", "process-1")
			assert.NoError(t, err)
			assert.True(t, queued)

			queued, err = s.QueueTask(ctx, schemas.TaskTypeRelease, "foo", "process-1")
			assert.NoError(t, err)
			assert.False(t, queued)

			count, err := s.CurrentlyQueuedTasksCount(ctx)
			assert.NoError(t, err)
			assert.Equal(t, uint64(1), count)

			assert.NoError(t, s.UnqueueTask(ctx, schemas.TaskTypeRelease, "foo"))

			count, err = s.CurrentlyQueuedTasksCount(ctx)
			assert.NoError(t, err)
			assert.Equal(t, uint64(0), count)

			executed, err := s.ExecutedTasksCount(ctx)
			assert.NoError(t, err)
			assert.Equal(t, uint64(1), executed)
		})
	}
}

func TestQueueTaskStaleProcessOverride(t *testing.T) {
	s, err := miniredis.Run()
	assert.NoError(t, err)
	defer s.Close()

	r := NewRedisStore(redis.NewClient(&redis.Options{Addr: s.Addr()})).(*Redis)
	ctx := context.Background()

	// A dead process left the task queued
	queued, err := r.QueueTask(ctx, schemas.TaskTypeRelease, "foo", "dead-process")
	assert.NoError(t, err)
	assert.True(t, queued)

	// A live process with a keepalive may not steal the queue slot
	_, err = r.SetKeepalive(ctx, "dead-process", time.Minute)
	assert.NoError(t, err)

	queued, err = r.QueueTask(ctx, schemas.TaskTypeRelease, "foo", "new-process")
	assert.NoError(t, err)
	assert.False(t, queued)

	// Once the keepalive expires, the new process takes the task over
	s.FastForward(2 * time.Minute)

	queued, err = r.QueueTask(ctx, schemas.TaskTypeRelease, "foo", "new-process")
	assert.NoError(t, err)
	assert.True(t, queued)
}

func TestNewSeedsConfiguredUnits(t *testing.T) {
	ctx := context.Background()

	u := config.NewUnit("mlcube")
	u.SourceDir = "./mlcube"

	s := New(ctx, nil, config.Units{u})

	count, err := s.UnitsCount(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
