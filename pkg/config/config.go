// Package config parses per-binary configuration via the teacher's
// flag-plus-environment-variable pattern (cfullelove-mcp-workspaces's
// main.go: flag.StringVar(&cfg.X, "x", os.Getenv("X"), "... (env: X)")),
// and offers an optional fsnotify-based hot-reload watcher for the
// tunables spec.md §3/§8 calls out as safe to change live.
package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/wire"
)

// Bus holds the NATS URL and subject roots every binary needs to reach
// the message bus, per spec.md §6/§8.
type Bus struct {
	NATSURL  string
	Subjects wire.Subjects
}

func (b Bus) validate() error {
	if b.NATSURL == "" {
		return fmt.Errorf("config: NATS_URL is required")
	}
	if b.Subjects.Heartbeat == "" || b.Subjects.WorkerList == "" ||
		b.Subjects.VehicleDeltas == "" || b.Subjects.VehicleCmd == "" ||
		b.Subjects.VehicleStatus == "" {
		return fmt.Errorf("config: all subject roots (SUB_HEARTBEAT, SUB_WORKER_LIST, SUB_VEH_DELTAS, SUB_VEH_CMD, SUB_VEH_STATUS) are required")
	}
	return nil
}

// Logging holds the log/slog handler shape, per the teacher's
// setupLogger (format switch plus a string->slog.Level lookup map).
type Logging struct {
	Format string // "text" or "json"
	Level  string // "debug", "info", "warn", "error"
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SetupLogger wires log/slog's default logger from l, matching the
// teacher's text/json handler switch. An unrecognized level falls back
// to info rather than failing startup, same as the teacher's lookup.
func SetupLogger(l Logging) {
	level, ok := logLevels[strings.ToLower(l.Level)]
	if !ok {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(l.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// registerBusFlagsOn registers the shared bus flags on fs, each seeded
// from its environment variable fallback per the teacher's
// flag.StringVar(&cfg.X, "x", os.Getenv("X"), ...) pattern. Binaries use
// their own *flag.FlagSet (rather than the global flag.CommandLine) so
// tests can parse a Coordinator/Worker/Manager config independently
// without colliding over flag names.
func registerBusFlagsOn(fs *flag.FlagSet, b *Bus) {
	fs.StringVar(&b.NATSURL, "nats-url", os.Getenv("NATS_URL"), "NATS server URL (env: NATS_URL)")
	fs.StringVar(&b.Subjects.Heartbeat, "sub-heartbeat", os.Getenv("SUB_HEARTBEAT"), "heartbeat subject root (env: SUB_HEARTBEAT)")
	fs.StringVar(&b.Subjects.WorkerList, "sub-worker-list", os.Getenv("SUB_WORKER_LIST"), "worker list subject root (env: SUB_WORKER_LIST)")
	fs.StringVar(&b.Subjects.VehicleDeltas, "sub-veh-deltas", os.Getenv("SUB_VEH_DELTAS"), "vehicle delta subject root (env: SUB_VEH_DELTAS)")
	fs.StringVar(&b.Subjects.VehicleCmd, "sub-veh-cmd", os.Getenv("SUB_VEH_CMD"), "vehicle command subject root (env: SUB_VEH_CMD)")
	fs.StringVar(&b.Subjects.VehicleStatus, "sub-veh-status", os.Getenv("SUB_VEH_STATUS"), "vehicle status subject root (env: SUB_VEH_STATUS)")
}

func registerLoggingFlagsOn(fs *flag.FlagSet, l *Logging) {
	fs.StringVar(&l.Format, "log-format", envOr("LOG_FORMAT", "text"), "log handler format: text or json (env: LOG_FORMAT)")
	fs.StringVar(&l.Level, "log-level", envOr("LOG_LEVEL", "info"), "log level: debug, info, warn, error (env: LOG_LEVEL)")
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// parseDurationSeconds parses a float-seconds string into a
// time.Duration, the way the teacher parses log-level through a lookup
// map: a small conversion living next to the flag that uses it rather
// than a generic flag.Value implementation.
func parseDurationSeconds(raw string) (time.Duration, error) {
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
