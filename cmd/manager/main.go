// Command manager runs the vehicle manager's bus-facing half: the
// telemetry listener (spec.md §4.G) and the inventory delta responder
// (spec.md §4.H), both backed by the Postgres-persisted store. The CRUD
// HTTP surface original_source exposes alongside these is out of scope
// (spec.md §1's explicit non-goal) — this binary only ever reads/writes
// the rows telemetry and inventory distribution need.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/asyncvalue"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/bus"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/config"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/manager/delta"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/manager/telemetry"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/resilience"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/store"
)

func main() {
	cfg, err := config.ParseManager(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	config.SetupLogger(cfg.Logging)

	slog.Info("starting manager", "nats_url", cfg.Bus.NATSURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	st := store.New(db)
	if err := st.InitSchema(ctx); err != nil {
		slog.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}

	b, err := bus.Dial(ctx, cfg.Bus.NATSURL)
	if err != nil {
		slog.Error("failed to connect to bus", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	policy := asyncvalue.New(resilience.DefaultTransportPolicy)
	if cfg.ConfigFile != "" {
		live, stopWatch, err := config.WatchManagerPolicy(cfg.ConfigFile, resilience.DefaultTransportPolicy)
		if err != nil {
			slog.Error("failed to start config hot-reload watcher", "error", err)
			os.Exit(1)
		}
		defer stopWatch()
		policy = live
	}

	proc := telemetry.New(b, cfg.Bus.Subjects, st, policy)

	go resilience.Supervise(ctx, "telemetry", proc.Run)

	go resilience.Supervise(ctx, "inventory-responder", func(ctx context.Context) error {
		return delta.RunInventoryResponder(ctx, b, cfg.Bus.Subjects, st)
	})

	<-ctx.Done()
	slog.Info("manager shutting down")
}
