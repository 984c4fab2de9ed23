package cmd

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/helvethink/package-release-orchestrator/pkg/controller"
	"github.com/helvethink/package-release-orchestrator/pkg/schemas"
)

// Release performs a single release run and exits.
// The exit code reflects the run outcome so it can gate CI/CD automation.
func Release(cliCtx *cli.Context) (int, error) {
	// Load and validate configuration from CLI context
	cfg, err := configure(cliCtx)
	if err != nil {
		return 1, err
	}

	ctx, ctxCancel := context.WithCancel(context.Background())
	defer ctxCancel()

	// Initialize the main controller with context, configuration, and app version
	c, err := controller.New(ctx, cfg, cliCtx.App.Version)
	if err != nil {
		return 1, err
	}

	// Execute the run synchronously, bypassing the task queue
	report, err := c.ExecuteRelease(ctx, schemas.NewReleaseEvent(cliCtx.String("tag")))
	if err != nil {
		return 1, err
	}

	// A run is only considered successful when every unit succeeded or was skipped
	if report.Status != schemas.RunStatusSucceeded {
		log.WithFields(
			log.Fields{
				"run-id":     report.ID,
				"run-status": report.Status,
			},
		).Error("release run did not succeed")

		return 1, nil
	}

	return 0, nil
}
