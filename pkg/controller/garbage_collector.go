package controller

import (
	"context"
	"reflect"

	"dario.cat/mergo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/helvethink/package-release-orchestrator/pkg/schemas"
)

// GarbageCollectUnits removes units from the store that are no longer configured.
// It also refreshes stored units whose parameters drifted from the configuration,
// which can happen when the configuration file changed across restarts of a
// clustered deployment sharing one Redis.
func (c *Controller) GarbageCollectUnits(ctx context.Context) error {
	// Log the start of the garbage collection process
	log.Info("starting 'units' garbage collection")
	defer log.Info("ending 'units' garbage collection")

	// Retrieve all currently stored units from the store
	storedUnits, err := c.Store.Units(ctx)
	if err != nil {
		return err
	}

	// Build the set of units which are expected to exist from the configuration
	configuredUnits := make(schemas.Units)
	for _, cu := range c.Config.Units {
		u := schemas.Unit{Unit: cu}
		configuredUnits[u.Key()] = u
	}

	// Loop over the stored units, dropping the ones which are not configured anymore
	// and syncing back the parameters of the ones which are
	for k, u := range storedUnits {
		configured, exists := configuredUnits[k]
		if !exists {
			if err = c.Store.DelUnit(ctx, k); err != nil {
				return err
			}

			// Log info for each unit deleted
			log.WithFields(log.Fields{
				"unit-name": u.Name,
			}).Info("deleted unit from the store")

			continue
		}

		// If the stored unit parameters differ from the configured ones, update the store
		if !reflect.DeepEqual(u, configured) {
			if err = c.Store.SetUnit(ctx, configured); err != nil {
				return err
			}

			log.WithFields(log.Fields{
				"unit-name": u.Name,
			}).Info("updated unit configuration in the store")
		}
	}

	// Re-seed units which are configured but missing from the store
	missingUnits := make(schemas.Units)
	if err = mergo.Merge(&missingUnits, configuredUnits); err != nil {
		return err
	}

	for k := range storedUnits {
		delete(missingUnits, k)
	}

	for _, u := range missingUnits {
		if err = c.Store.SetUnit(ctx, u); err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"unit-name": u.Name,
		}).Info("seeded missing unit in the store")
	}

	return nil
}

// GarbageCollectRunReports trims the retained run reports down to the configured
// maximum count, dropping the oldest ones first.
func (c *Controller) GarbageCollectRunReports(ctx context.Context) error {
	log.Info("starting 'run reports' garbage collection")
	defer log.Info("ending 'run reports' garbage collection")

	// Retrieve all run reports currently stored
	storedReports, err := c.Store.RunReports(ctx)
	if err != nil {
		return err
	}

	maxCount := c.Config.GarbageCollect.RunReports.MaxCount
	if len(storedReports) <= maxCount {
		return nil
	}

	// Order the reports from newest to oldest before trimming the tail
	reports := make([]schemas.RunReport, 0, len(storedReports))
	for _, r := range storedReports {
		reports = append(reports, r)
	}

	slices.SortFunc(reports, func(a, b schemas.RunReport) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	log.WithFields(log.Fields{
		"reports-count": len(reports) - maxCount,
	}).Debug("found run reports to garbage collect")

	for _, r := range reports[maxCount:] {
		if err = c.Store.DelRunReport(ctx, r.Key()); err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"run-id": r.ID,
		}).Info("deleted run report from the store")
	}

	return nil
}

// GarbageCollectMetrics removes metrics from the store which refer to units that
// are no longer part of the configuration. Run level metrics carry no unit label
// and are never collected.
func (c *Controller) GarbageCollectMetrics(ctx context.Context) error {
	log.Info("starting 'metrics' garbage collection")
	defer log.Info("ending 'metrics' garbage collection")

	// Retrieve all metrics currently stored
	storedMetrics, err := c.Store.Metrics(ctx)
	if err != nil {
		return err
	}

	// Iterate over each stored metric and validate its unit label
	for _, m := range storedMetrics {
		unitName, ok := m.Labels["unit"]
		if !ok {
			// Metrics without a unit label are run level ones, keep them
			continue
		}

		u := schemas.NewUnit(unitName)

		unitExists, err := c.Store.UnitExists(ctx, u.Key())
		if err != nil {
			return err
		}

		// If the unit no longer exists, the metric is orphaned and gets dropped
		if !unitExists {
			storeDelMetric(ctx, c.Store, m)

			log.WithFields(log.Fields{
				"unit-name":   unitName,
				"metric-kind": m.Kind,
			}).Info("deleted metric of non-existent unit from the store")
		}
	}

	return nil
}
