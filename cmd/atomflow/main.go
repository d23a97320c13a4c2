// Package main provides the atomflow binary: the workflow automation API
// server and background engine.
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/rush86999/atom-sub011/pkg/log"
)

const defaultPort = 9091

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Database connection URL for persistence (postgres:// or file path)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (kafka, memory)",
			Value:   "memory",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
	}
}

func apiFlags() []cli.Flag {
	return append(commonFlags(),
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   defaultPort,
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:     "webhook-secret",
			Usage:    "Shared secret for webhook signature verification",
			Required: true,
			Sources:  cli.EnvVars("WEBHOOK_SECRET"),
		},
	)
}

func engineFlags() []cli.Flag {
	return append(commonFlags(),
		&cli.StringFlag{
			Name:    "redis-addr",
			Usage:   "Redis address for the internal signal queue (disabled when empty)",
			Sources: cli.EnvVars("REDIS_ADDR"),
		},
		&cli.StringFlag{
			Name:    "redis-queue",
			Usage:   "Redis list holding internal signals",
			Value:   "atomflow:signals",
			Sources: cli.EnvVars("REDIS_QUEUE"),
		},
		&cli.StringFlag{
			Name:    "upstream-url",
			Usage:   "Base URL of the upstream subscription API (renewer disabled when empty)",
			Sources: cli.EnvVars("UPSTREAM_URL"),
		},
		&cli.IntFlag{
			Name:    "retention-days",
			Usage:   "Days to keep processed trigger events",
			Value:   30,
			Sources: cli.EnvVars("RETENTION_DAYS"),
		},
		&cli.StringSliceFlag{
			Name:    "event-types",
			Usage:   "Trigger event types handled by the processor",
			Value:   []string{"file_created", "file_updated", "file_deleted"},
			Sources: cli.EnvVars("EVENT_TYPES"),
		},
	)
}

func main() {
	root := &cli.Command{
		Name:                  "atomflow",
		Usage:                 "Trigger-driven workflow automation engine",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			{
				Name:  "api",
				Usage: "Run the REST API server",
				Flags: apiFlags(),
				Action: func(ctx context.Context, command *cli.Command) error {
					log.Setup(command.String("log-level"))

					return runAPI(ctx, command)
				},
			},
			{
				Name:  "engine",
				Usage: "Run the background engine (event processor, renewer, retention)",
				Flags: engineFlags(),
				Action: func(ctx context.Context, command *cli.Command) error {
					log.Setup(command.String("log-level"))

					return runEngine(ctx, command)
				},
			},
			{
				Name:  "all",
				Usage: "Run the API server and background engine in one process",
				Flags: append(apiFlags(), engineFlags()[len(commonFlags()):]...),
				Action: func(ctx context.Context, command *cli.Command) error {
					log.Setup(command.String("log-level"))

					return runAll(ctx, command)
				},
			},
		},
	}

	err := root.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
