package main

import (
	"time"

	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "flowbench",
		Usage: "measure lossy channels and scheduled pipelines",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				EnvVars: []string{"LOSSYFLOW_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override log.level",
			},
			&cli.StringFlag{
				Name:  "metrics-listen",
				Usage: "Serve Prometheus metrics on this address (enables metrics)",
			},
		},
		Commands: []*cli.Command{
			throughputCommand(),
			latencyCommand(),
			reportCommand(),
			soakCommand(),
		},
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Report format: json or cbor (default from bench.format)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write the report to this file instead of stdout",
		},
	}
}

func throughputCommand() *cli.Command {
	return &cli.Command{
		Name:  "throughput",
		Usage: "Compare lossy channel operations with Go channels and mutexes",
		Flags: append(outputFlags(),
			&cli.IntFlag{Name: "messages", Aliases: []string{"n"}, Usage: "Iterations per case"},
			&cli.IntFlag{Name: "capacity", Usage: "Channel capacity"},
		),
		Action: throughputAction,
	}
}

func latencyCommand() *cli.Command {
	return &cli.Command{
		Name:  "latency",
		Usage: "Time round trips through an external-event source and N identity filters",
		Flags: append(outputFlags(),
			&cli.IntSliceFlag{Name: "stages", Aliases: []string{"s"}, Usage: "Number of filters; repeat for several runs"},
			&cli.IntFlag{Name: "samples", Usage: "Round trips per run"},
			&cli.IntFlag{Name: "capacity", Usage: "Channel capacity"},
		),
		Action: latencyAction,
	}
}

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:   "report",
		Usage:  "Run throughput and latency and write one combined report",
		Flags:  outputFlags(),
		Action: reportAction,
	}
}

func soakCommand() *cli.Command {
	return &cli.Command{
		Name:  "soak",
		Usage: "Run a scatter/gather pipeline across a scheduler group for a while",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "duration", Aliases: []string{"d"}, Value: 10 * time.Second, Usage: "How long to run"},
			&cli.IntFlag{Name: "lanes", Value: 4, Usage: "Scatter fan-out"},
			&cli.DurationFlag{Name: "period", Value: time.Millisecond, Usage: "Source period"},
		},
		Action: soakAction,
	}
}
