package controller

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/exp/slices"

	"github.com/helvethink/package-release-orchestrator/pkg/builder"
	"github.com/helvethink/package-release-orchestrator/pkg/registry"
	"github.com/helvethink/package-release-orchestrator/pkg/schemas"
)

// unitRun holds everything a single unit needs to be processed within a run.
// Credentials are resolved before the run starts so that a misconfigured
// environment is caught before any build is executed.
type unitRun struct {
	unit        schemas.Unit
	credentials registry.Credentials
	configErr   error
}

// ExecuteRelease runs a whole orchestration for the given release event.
//
// Every configured unit is processed independently and concurrently: its artifacts
// are built and then published to the registry. A unit failure never affects its
// siblings. When a run-level timeout is configured, units still in flight once it
// elapses are reported as failed with a timeout reason while already completed
// units keep their outcome.
//
// The resulting run report is persisted in the store and its metrics are recorded.
// A failed run is reflected in the report status, not in the returned error, which
// only covers orchestration level problems such as an unreachable store.
func (c *Controller) ExecuteRelease(ctx context.Context, e schemas.ReleaseEvent) (report schemas.RunReport, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "controller:ExecuteRelease")
	defer span.End()
	span.SetAttributes(attribute.String("event_tag", e.Tag))

	// Events of any other type do not trigger a run
	if !e.IsRelease() {
		log.WithContext(ctx).
			WithField("event-type", e.EventType).
			Debug("ignoring non-release event")

		return
	}

	report = schemas.NewRunReport(e)

	var units schemas.Units

	if units, err = c.Store.Units(ctx); err != nil {
		return report, errors.Wrap(err, "reading units from the store")
	}

	log.WithFields(log.Fields{
		"run-id":      report.ID,
		"event-tag":   e.Tag,
		"units-count": len(units),
	}).Info("starting release run")

	// Resolve the credentials of every unit before launching any build so that a
	// missing environment variable surfaces as a configuration failure upfront
	runs := make([]unitRun, 0, len(units))

	for _, unit := range units {
		ur := unitRun{unit: unit}
		ur.credentials, ur.configErr = registry.ResolveCredentials(c.unitCredentialsEnv(unit))
		runs = append(runs, ur)
	}

	// Bound the wall-clock duration of the whole run when configured
	runCtx := ctx
	if c.Config.Release.TimeoutSeconds > 0 {
		var cancel context.CancelFunc

		runCtx, cancel = context.WithTimeout(ctx, time.Duration(c.Config.Release.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	// Fan out the units, one goroutine each, and collect their results
	var (
		wg          sync.WaitGroup
		resultsChan = make(chan schemas.UnitResult, len(runs))
	)

	for _, ur := range runs {
		wg.Add(1)

		go func(ur unitRun) {
			defer wg.Done()

			resultsChan <- c.runUnit(runCtx, ur)
		}(ur)
	}

	wg.Wait()
	close(resultsChan)

	results := make([]schemas.UnitResult, 0, len(runs))
	for result := range resultsChan {
		results = append(results, result)
	}

	// Results are reported in a stable order regardless of completion order
	slices.SortFunc(results, func(a, b schemas.UnitResult) int {
		return strings.Compare(a.UnitName, b.UnitName)
	})

	report.Finalize(results, runCtx.Err() == context.DeadlineExceeded)

	if err = c.Store.SetRunReport(ctx, report); err != nil {
		return report, errors.Wrap(err, "writing run report in the store")
	}

	c.RecordRunMetrics(ctx, report)

	log.WithFields(log.Fields{
		"run-id":    report.ID,
		"status":    report.Status,
		"timed-out": report.TimedOut,
	}).Info("release run completed")

	return
}

// runUnit processes one unit of a run: it builds the unit's artifacts and publishes
// them to the registry, classifying any failure along the way.
func (c *Controller) runUnit(ctx context.Context, ur unitRun) (result schemas.UnitResult) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "controller:runUnit")
	defer span.End()
	span.SetAttributes(attribute.String("unit_name", ur.unit.Name))

	result = schemas.UnitResult{
		UnitName: ur.unit.Name,
		Status:   schemas.UnitStatusPending,
	}

	logFields := log.Fields{
		"unit-name": ur.unit.Name,
	}

	// A unit whose credentials could not be resolved fails before its build starts
	if ur.configErr != nil {
		log.WithContext(ctx).
			WithFields(logFields).
			WithError(ur.configErr).
			Warn("unit credentials misconfigured")

		result.Status = schemas.UnitStatusFailed
		result.Reason = schemas.FailureReasonConfiguration
		result.Detail = ur.configErr.Error()

		return
	}

	// Build phase
	result.Status = schemas.UnitStatusBuilding
	buildStart := time.Now()

	artifacts, err := c.Builder.Build(ctx, ur.unit)
	result.BuildDurationSeconds = time.Since(buildStart).Seconds()

	if err != nil {
		result.Status = schemas.UnitStatusFailed
		result.Reason, result.Detail = c.classifyUnitError(ctx, err, schemas.FailureReasonBuildFailed)

		log.WithContext(ctx).
			WithFields(logFields).
			WithError(err).
			Warn("building unit artifacts")

		return
	}

	result.ArtifactCount = artifacts.Count()

	// The produced artifacts are removed once the publish attempt completed,
	// unless they are explicitly kept for debugging purposes
	if !c.Config.Release.KeepArtifacts {
		defer func() {
			if cleanupErr := builder.Cleanup(artifacts); cleanupErr != nil {
				log.WithContext(ctx).
					WithFields(logFields).
					WithError(cleanupErr).
					Warn("cleaning up unit artifacts")
			}
		}()
	}

	// Publish phase
	result.Status = schemas.UnitStatusPublishing
	publishStart := time.Now()

	outcome, err := c.Registry.Publish(ctx, artifacts, registry.PublishOptions{
		URL:          ur.unit.RegistryURL,
		Credentials:  ur.credentials,
		SkipExisting: ur.unit.Publish.SkipExisting,
		MaxAttempts:  c.Config.Registry.PublishMaxAttempts,
		Backoff:      time.Duration(c.Config.Registry.PublishBackoffSeconds) * time.Second,
	})
	result.PublishDurationSeconds = time.Since(publishStart).Seconds()

	if err != nil {
		result.Status = schemas.UnitStatusFailed
		result.Reason, result.Detail = c.classifyUnitError(ctx, err, schemas.FailureReasonNetworkExhausted)

		log.WithContext(ctx).
			WithFields(logFields).
			WithError(err).
			Warn("publishing unit artifacts")

		return
	}

	// Every artifact version already present in the registry is a no-op, not a failure
	if outcome == registry.PublishOutcomeAlreadyPresent {
		result.Status = schemas.UnitStatusSkipped

		log.WithFields(logFields).
			Info("unit version already present in the registry, skipped")

		return
	}

	result.Status = schemas.UnitStatusSucceeded

	log.WithFields(logFields).
		WithField("artifacts-count", result.ArtifactCount).
		Info("unit published")

	return
}

// classifyUnitError maps an error from the build or publish phase to a failure reason.
// A unit interrupted by the run-level timeout is always classified as timed out, no
// matter which phase it was in.
func (c *Controller) classifyUnitError(ctx context.Context, err error, fallback schemas.FailureReason) (schemas.FailureReason, string) {
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		return schemas.FailureReasonTimeout, "run wall-clock timeout elapsed"
	case errors.Is(err, registry.ErrAuthFailure):
		return schemas.FailureReasonAuthentication, err.Error()
	case errors.Is(err, registry.ErrVersionConflict):
		return schemas.FailureReasonVersionConflict, err.Error()
	case errors.Is(err, registry.ErrNetworkExhausted):
		return schemas.FailureReasonNetworkExhausted, err.Error()
	default:
		return fallback, err.Error()
	}
}

// unitCredentialsEnv returns the names of the environment variables holding the
// registry credentials of the given unit, falling back to the globally configured
// ones when the unit does not override them.
func (c *Controller) unitCredentialsEnv(unit schemas.Unit) (usernameEnv, passwordEnv string) {
	usernameEnv = c.Config.Registry.UsernameEnv
	if unit.UsernameEnv != "" {
		usernameEnv = unit.UsernameEnv
	}

	passwordEnv = c.Config.Registry.PasswordEnv
	if unit.PasswordEnv != "" {
		passwordEnv = unit.PasswordEnv
	}

	return
}
