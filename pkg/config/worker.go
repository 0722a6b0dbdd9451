package config

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// Worker is cmd/worker's configuration, per spec.md §4.E/§4.F/§8.
type Worker struct {
	Bus     Bus
	Logging Logging

	// WorkerID overrides the generated identity; empty means cmd/worker
	// mints one with google/uuid at startup, per spec.md §4.D's worker
	// identity note.
	WorkerID string

	// TickInterval is the per-vehicle simulator sample period. Not a
	// spec.md field (spec.md is silent on the original's missing sleep,
	// see pkg/worker/simulator); exposed here so it is tunable without a
	// code change.
	TickInterval time.Duration
}

// ParseWorker registers flags and parses argv.
func ParseWorker(args []string) (Worker, error) {
	var cfg Worker
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)

	registerBusFlagsOn(fs, &cfg.Bus)
	registerLoggingFlagsOn(fs, &cfg.Logging)

	fs.StringVar(&cfg.WorkerID, "worker-id", os.Getenv("WORKER_ID"), "worker identity; generated if empty (env: WORKER_ID)")

	var tickSecs string
	fs.StringVar(&tickSecs, "tick-interval", envOr("TICK_INTERVAL", "1"), "vehicle simulator sample interval in seconds (env: TICK_INTERVAL)")

	if err := fs.Parse(args); err != nil {
		return Worker{}, err
	}

	tick, err := parseDurationSeconds(tickSecs)
	if err != nil {
		return Worker{}, err
	}
	cfg.TickInterval = tick

	if err := cfg.validate(); err != nil {
		return Worker{}, err
	}
	return cfg, nil
}

func (c Worker) validate() error {
	if err := c.Bus.validate(); err != nil {
		return err
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("config: tick-interval must be positive")
	}
	return nil
}
