package main

import (
	"flag"
	"time"
)

// Config holds the node's process options. The node directory itself lives
// in the settings file.
type Config struct {
	// SettingsPath is the settings JSON file (name, me, peers, tools).
	SettingsPath string

	// DataPath is the directory for persistent storage. Empty keeps the
	// chain in memory only.
	DataPath string

	// LogLevel is debug, info, warn or error.
	LogLevel string

	// MineInterval mines the pool on a schedule when positive.
	MineInterval time.Duration

	// Download requests the chain from the peers at startup.
	Download bool

	// HTTPTimeout bounds outbound requests. Zero means no timeout.
	HTTPTimeout time.Duration

	// Events enables the websocket event feed.
	Events bool
}

// parseFlags parses command-line flags into Config.
func parseFlags(args []string) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("node", flag.ContinueOnError)
	fs.StringVar(&cfg.SettingsPath, "config", "settings.json", "Settings JSON path")
	fs.StringVar(&cfg.DataPath, "data", "./data", "Data directory path (empty for in-memory)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.DurationVar(&cfg.MineInterval, "mine-interval", 0, "Mine the pool on this schedule (0 disables)")
	fs.BoolVar(&cfg.Download, "download", true, "Download the chain from peers at startup")
	fs.DurationVar(&cfg.HTTPTimeout, "http-timeout", 0, "Timeout for outbound requests (0 disables)")
	fs.BoolVar(&cfg.Events, "events", true, "Serve the websocket event feed at /events")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return cfg, nil
}
