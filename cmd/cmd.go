// submodule cmd contains command definitions
package main

import (
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/ytsched/internal/formatter"
)

var formatUsage = "Output format: txt, json, csv, markdown"

// serveCommand runs the HTTP API and, optionally, the daily trigger.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API (upload form, schedule, trigger routes)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides config)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (overrides config and PORT)",
			},
			&cli.BoolFlag{
				Name:  "cron",
				Usage: "Run the in-process daily trigger (overrides config)",
			},
			&cli.StringFlag{
				Name:  "cron-spec",
				Usage: "Cron expression evaluated in UTC (overrides config)",
			},
		},
		Action: r.Serve,
	}
}

// authCommand handles the one-time OAuth bootstrap
func authCommand(r *Runner) *cli.Command {
	saveFlag := &cli.BoolFlag{
		Name:  "save",
		Usage: "Write the refresh token into the config file",
	}
	return &cli.Command{
		Name:  "auth",
		Usage: "Obtain a YouTube refresh token",
		Commands: []*cli.Command{
			{
				Name:   "url",
				Usage:  "Print the consent URL",
				Action: r.AuthURL,
			},
			{
				Name:  "exchange",
				Usage: "Exchange an authorization code for tokens",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "code"},
				},
				Flags:  []cli.Flag{saveFlag},
				Action: r.AuthExchange,
			},
			{
				Name:   "login",
				Usage:  "Open the browser and capture the callback on a local server",
				Flags:  []cli.Flag{saveFlag},
				Action: r.AuthLogin,
			},
		},
	}
}

// scheduleCommand manages the queue
func scheduleCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "schedule",
		Aliases: []string{"sched"},
		Usage:   "Manage scheduled videos",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Schedule a local video file",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "file"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "title",
						Aliases:  []string{"t"},
						Usage:    "Video title",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "description",
						Usage: "Video description",
					},
					&cli.StringFlag{
						Name:     "date",
						Aliases:  []string{"d"},
						Usage:    "Upload date (YYYY-MM-DD, UTC)",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ScheduleAdd,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List scheduled videos",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "today",
						Usage: "Only list videos due today (UTC)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   formatUsage,
						Value:   string(formatter.Text),
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout; the extension picks the format",
					},
				},
				Action: r.ScheduleList,
			},
			{
				Name:    "remove",
				Aliases: []string{"rm"},
				Usage:   "Remove a scheduled video and its record",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "pathname"},
				},
				Action: r.ScheduleRemove,
			},
		},
	}
}

// dispatchCommand runs a batch by hand
func dispatchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "dispatch",
		Usage: "Upload today's videos",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run one dispatch pass now",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   formatUsage,
						Value:   string(formatter.Text),
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Also write the report to a file; the extension picks the format",
					},
				},
				Action: r.DispatchRun,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a starter config file",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the sqlite metadata store and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the latest database migration",
				Action: r.SetupRollback,
			},
			{
				Name:   "status",
				Usage:  "Show applied database migrations",
				Action: r.SetupStatus,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive queue management.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for the schedule queue",
		Action:  r.TUI,
	}
}
