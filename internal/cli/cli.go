package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/helvethink/package-release-orchestrator/internal/cmd"
)

// Run handles the instantiation of the CLI application.
func Run(version string, args []string) {
	err := NewApp(version, time.Now()).Run(args)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// NewApp configures the CLI application.
func NewApp(version string, start time.Time) (app *cli.App) {
	app = cli.NewApp()
	app.Name = "package-release-orchestrator"
	app.Version = version
	app.Usage = "Builds and publishes package release units to a registry"
	app.EnableBashCompletion = true

	// The start time is used to compute the total execution time on exit
	app.Metadata = map[string]interface{}{
		"startTime": start,
	}

	// Global flags, shared across every command
	app.Flags = cli.FlagsByName{
		&cli.StringFlag{
			Name:    "internal-monitoring-listener-address",
			Aliases: []string{"m"},
			EnvVars: []string{"PRO_INTERNAL_MONITORING_LISTENER_ADDRESS"},
			Usage:   "internal monitoring listener address",
		},
	}

	// Flags shared by the commands which load the configuration file
	configFlags := cli.FlagsByName{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			EnvVars: []string{"PRO_CONFIG"},
			Usage:   "config `file`",
			Value:   "./config.yml",
		},
		&cli.StringFlag{
			Name:    "redis-url",
			EnvVars: []string{"PRO_REDIS_URL"},
			Usage:   "redis `url` for an HA setup (format: redis[s]://[:password@]host[:port][/db-number][?option=value])",
		},
		&cli.StringFlag{
			Name:    "registry-health-url",
			EnvVars: []string{"PRO_REGISTRY_HEALTH_URL"},
			Usage:   "registry health `url`, enables the readiness check against the registry",
		},
		&cli.StringFlag{
			Name:    "registry-username-env",
			EnvVars: []string{"PRO_REGISTRY_USERNAME_ENV"},
			Usage:   "`name` of the environment variable holding the registry username",
		},
		&cli.StringFlag{
			Name:    "registry-password-env",
			EnvVars: []string{"PRO_REGISTRY_PASSWORD_ENV"},
			Usage:   "`name` of the environment variable holding the registry password",
		},
		&cli.StringFlag{
			Name:    "webhook-secret-token",
			EnvVars: []string{"PRO_WEBHOOK_SECRET_TOKEN"},
			Usage:   "`token` used to authenticate incoming webhook requests",
		},
	}

	app.Commands = cli.CommandsByName{
		{
			Name:   "run",
			Usage:  "start the orchestrator daemon",
			Action: cmd.ExecWrapper(cmd.Run),
			Flags:  configFlags,
		},
		{
			Name:   "release",
			Usage:  "perform a single release run and exit",
			Action: cmd.ExecWrapper(cmd.Release),
			Flags: append(configFlags, &cli.StringFlag{
				Name:    "tag",
				EnvVars: []string{"PRO_RELEASE_TAG"},
				Usage:   "version `tag` the release refers to",
			}),
		},
		{
			Name:   "validate",
			Usage:  "validate the configuration file and exit",
			Action: cmd.ExecWrapper(cmd.Validate),
			Flags:  configFlags,
		},
		{
			Name:   "monitor",
			Usage:  "display the currently configured orchestrator status",
			Action: cmd.ExecWrapper(cmd.Monitor),
		},
	}

	return
}
