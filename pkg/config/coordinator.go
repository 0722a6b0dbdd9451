package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/coordinator"
)

// Coordinator is cmd/coordinator's configuration, per spec.md §4.D/§8.
type Coordinator struct {
	Bus     Bus
	Logging Logging
	Heartbeat coordinator.Config

	ConfigFile string // optional hot-reload source, §3
}

// ParseCoordinator registers flags (each seeded from its environment
// variable fallback) and parses argv, following the teacher's
// per-binary Config + flag.XxxVar(&cfg.Field, ..., os.Getenv(...), ...)
// pattern.
func ParseCoordinator(args []string) (Coordinator, error) {
	var cfg Coordinator
	fs := flag.NewFlagSet("coordinator", flag.ContinueOnError)

	registerBusFlagsOn(fs, &cfg.Bus)
	registerLoggingFlagsOn(fs, &cfg.Logging)

	var intervalSecs string
	fs.StringVar(&intervalSecs, "heartbeat-interval", envOr("HEARTBEAT_INTERVAL", "2"), "heartbeat poll interval in seconds (env: HEARTBEAT_INTERVAL)")
	fs.IntVar(&cfg.Heartbeat.MissedLimit, "heartbeat-missed-limit", envIntOr("HEARTBEAT_MISSED_LIMIT", 3), "missed heartbeats tolerated before eviction (env: HEARTBEAT_MISSED_LIMIT)")
	fs.StringVar(&cfg.ConfigFile, "config-file", os.Getenv("CONFIG_FILE"), "optional hot-reload config file path (env: CONFIG_FILE)")

	if err := fs.Parse(args); err != nil {
		return Coordinator{}, err
	}

	interval, err := parseDurationSeconds(intervalSecs)
	if err != nil {
		return Coordinator{}, err
	}
	cfg.Heartbeat.Interval = interval

	if err := cfg.validate(); err != nil {
		return Coordinator{}, err
	}
	return cfg, nil
}

func (c Coordinator) validate() error {
	if err := c.Bus.validate(); err != nil {
		return err
	}
	if c.Heartbeat.Interval <= 0 {
		return fmt.Errorf("config: heartbeat-interval must be positive")
	}
	if c.Heartbeat.MissedLimit <= 0 {
		return fmt.Errorf("config: heartbeat-missed-limit must be positive")
	}
	return nil
}

func envIntOr(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}
