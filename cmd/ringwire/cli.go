package main

import (
	"flag"
	"time"
)

// Options holds CLI options for the node.
type Options struct {
	ConfigPath  string
	Mode        string
	Count       int
	Interval    time.Duration
	MetricsAddr string
}

// ParseFlags parses CLI flags from args and returns Options.
func ParseFlags(args []string) Options {
	fs := flag.NewFlagSet("ringwire", flag.ExitOnError)
	var opts Options
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to YAML or TOML config file")
	fs.StringVar(&opts.Mode, "mode", "publish", "Node mode: publish or listen")
	fs.IntVar(&opts.Count, "count", 10, "Messages to publish, 0 publishes until interrupted")
	fs.DurationVar(&opts.Interval, "interval", time.Second, "Delay between published messages")
	fs.StringVar(&opts.MetricsAddr, "metrics", "", "Serve Prometheus metrics on this address")
	_ = fs.Parse(args)

	return opts
}
