// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

// collectFlags are shared by every command that opens a popup session.
func collectFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:    "timeout",
			Aliases: []string{"t"},
			Usage:   "How long to wait for every tab to reply",
			Value:   defaultCollectTimeout,
		},
		&cli.BoolFlag{
			Name:  "journal",
			Usage: "Record anomalies in the sqlite journal",
		},
	}
}

func tabArg() cli.Argument {
	return &cli.StringArg{Name: "tab", UsageText: "tab id or site name"}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the config file and anomaly journal",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write config.toml from the built-in template",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the anomaly journal and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

func tabsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tabs",
		Usage: "Show the state of every music tab",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Collect tab state once and print it",
				Flags: append(collectFlags(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, json, csv or markdown",
						Value:   "text",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Shorthand for --format json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
					&cli.BoolFlag{
						Name:  "anomalies",
						Usage: "Also print anomalies seen while collecting",
					},
				),
				Action: r.TabsList,
			},
			{
				Name:   "watch",
				Usage:  "Interactive tab list that follows live updates",
				Flags:  collectFlags(),
				Action: r.TabsWatch,
			},
		},
	}
}

func defaultCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "default",
		Usage: "Set or clear the default tab",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Make a tab the default",
				Arguments: []cli.Argument{tabArg()},
				Flags:     collectFlags(),
				Action:    r.DefaultSet,
			},
			{
				Name:      "unset",
				Usage:     "Clear the default tab",
				Arguments: []cli.Argument{tabArg()},
				Flags:     collectFlags(),
				Action:    r.DefaultUnset,
			},
		},
	}
}

func actionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "command",
		Aliases:   []string{"cmd"},
		Usage:     "Send a player command (playPause, playNext, playPrev, mute, like, dislike)",
		UsageText: "tabx command <name> [tab] | tabx command <name> --target playing",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "name"},
			tabArg(),
		},
		Flags: append(collectFlags(),
			&cli.StringFlag{
				Name:  "target",
				Usage: "Send to every tab matching: all, playing, default or enabled",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent senders for --target",
				Value: 4,
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Commands per second for --target",
				Value: 10,
			},
		),
		Action: r.Command,
	}
}

func toggleCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "toggle",
		Usage:     "Enable or disable streamkeys for a tab",
		Arguments: []cli.Argument{tabArg()},
		Flags:     collectFlags(),
		Action:    r.Toggle,
	}
}

func openCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "open",
		Usage:     "Bring a tab to the foreground",
		Arguments: []cli.Argument{tabArg()},
		Flags:     collectFlags(),
		Action:    r.Open,
	}
}

func anomaliesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "anomalies",
		Usage: "Inspect the anomaly journal",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List journaled anomalies",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "session", Usage: "Only this session id"},
					&cli.StringFlag{Name: "kind", Usage: "missing_payload, unknown_tab, over_completion or malformed_message"},
					&cli.IntFlag{Name: "limit", Usage: "Only the most recent N", Value: 50},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "text, json or csv", Value: "text"},
				},
				Action: r.AnomaliesList,
			},
			{
				Name:   "sessions",
				Usage:  "Summarize anomalies per session",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output JSON"}},
				Action: r.AnomaliesSessions,
			},
			{
				Name:  "prune",
				Usage: "Delete old anomalies",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Age cutoff",
						Value: 7 * 24 * time.Hour,
					},
				},
				Action: r.AnomaliesPrune,
			},
		},
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the tab view, live events and commands over HTTP",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Override the configured port"},
			&cli.BoolFlag{Name: "open", Usage: "Open the dashboard in a browser"},
			&cli.BoolFlag{Name: "journal", Usage: "Record anomalies in the sqlite journal and serve them from it"},
		},
		Action: r.Serve,
	}
}

func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Query a running `tabx serve`",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Server base URL (default from config)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "text, json, csv or markdown", Value: "text"},
		},
		Action: r.Status,
	}
}
