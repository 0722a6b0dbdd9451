// Command coordinator runs the cluster coordinator: the heartbeat poll
// loop and the worker-list responder, per spec.md §4.D. Grounded on
// original_source's vehicle_controller/coordinator/app.py, which spawns
// run_coordinator under one TaskGroup and cancels it on shutdown; the Go
// translation uses a signal-cancelled context and pkg/resilience.Supervise
// in place of the TaskGroup + run_background_task pairing.
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
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/coordinator"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/resilience"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/wire"
)

func main() {
	cfg, err := config.ParseCoordinator(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	config.SetupLogger(cfg.Logging)

	slog.Info("starting coordinator",
		"nats_url", cfg.Bus.NATSURL,
		"heartbeat_interval", cfg.Heartbeat.Interval,
		"heartbeat_missed_limit", cfg.Heartbeat.MissedLimit,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := bus.Dial(ctx, cfg.Bus.NATSURL)
	if err != nil {
		slog.Error("failed to connect to bus", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	heartbeat := asyncvalue.New(cfg.Heartbeat)
	if cfg.ConfigFile != "" {
		live, stopWatch, err := config.WatchHeartbeatConfig(cfg.ConfigFile, cfg.Heartbeat)
		if err != nil {
			slog.Error("failed to start config hot-reload watcher", "error", err)
			os.Exit(1)
		}
		defer stopWatch()
		heartbeat = live
	}

	members := asyncvalue.New[[]string](nil)

	go resilience.Supervise(ctx, "responder", func(ctx context.Context) error {
		return coordinator.RunResponder(ctx, b, cfg.Bus.Subjects, members)
	})

	go runHeartbeatMonitorWithHotReload(ctx, b, cfg.Bus.Subjects, heartbeat, members)

	<-ctx.Done()
	slog.Info("coordinator shutting down")
}

// runHeartbeatMonitorWithHotReload supervises the heartbeat monitor,
// restarting it whenever the live tunables change so a --config-file edit
// of heartbeat_interval/heartbeat_missed_limit takes effect without a
// process restart, per spec.md §3's hot-reload note.
func runHeartbeatMonitorWithHotReload(ctx context.Context, b bus.Bus, subj wire.Subjects, heartbeat *asyncvalue.Value[coordinator.Config], members *asyncvalue.Value[[]string]) {
	for {
		cfg, wait := heartbeat.Get()
		runCtx, cancel := context.WithCancel(ctx)

		done := make(chan struct{})
		go func() {
			defer close(done)
			resilience.Supervise(runCtx, "heartbeat-monitor", func(runCtx context.Context) error {
				return coordinator.RunHeartbeatMonitor(runCtx, b, subj, cfg, members)
			})
		}()

		select {
		case <-ctx.Done():
			cancel()
			<-done
			return
		case <-wait():
			slog.Info("heartbeat tunables changed, restarting monitor")
			cancel()
			<-done
		}
	}
}
