// Command worker runs one vehicle-controller worker process: it mints a
// worker identity, answers heartbeat polls, learns and tracks cluster
// membership, and owns/dispatches the per-vehicle simulator tasks this
// worker is responsible for under the consistent-hash ring. Grounded on
// original_source's vehicle_controller/worker/app.py.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/asyncvalue"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/bus"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/config"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/resilience"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/worker/dispatcher"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/worker/heartbeat"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/worker/membership"
)

func main() {
	cfg, err := config.ParseWorker(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	config.SetupLogger(cfg.Logging)

	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = uuid.NewString()
	}
	slog.Info("starting worker", "worker_id", workerID, "nats_url", cfg.Bus.NATSURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := bus.Dial(ctx, cfg.Bus.NATSURL)
	if err != nil {
		slog.Error("failed to connect to bus", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	members := asyncvalue.New[[]string](nil)

	go resilience.Supervise(ctx, "membership", func(ctx context.Context) error {
		return membership.RunListener(ctx, b, cfg.Bus.Subjects, members)
	})

	go resilience.Supervise(ctx, "dispatcher", func(ctx context.Context) error {
		return dispatcher.Run(ctx, b, cfg.Bus.Subjects, members, dispatcher.Config{
			WorkerID:     workerID,
			TickInterval: cfg.TickInterval,
		})
	})

	// Heartbeat runs un-supervised: its own shutdown path is the
	// best-effort "active=false" publish on ctx cancellation, and
	// restarting it would re-announce a worker that is on its way out.
	if err := heartbeat.Run(ctx, b, cfg.Bus.Subjects, workerID); err != nil && ctx.Err() == nil {
		slog.Error("heartbeat loop exited unexpectedly", "error", err)
	}

	slog.Info("worker shutting down", "worker_id", workerID)
}
