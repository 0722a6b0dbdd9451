// Package dispatcher implements the worker-side ownership engine spec.md
// §4.F describes: it tracks the full vehicle inventory, decides which
// vehicles this worker owns via the consistent-hash ring in pkg/ring, and
// starts/stops supervised per-vehicle simulators accordingly. Grounded on
// original_source's vehicle_controller/worker/workers.py:run_workers.
//
// known_vehicles and tasks are mutated only from the single goroutine
// running Run's event loop; delta-subscription callbacks and membership
// changes are funneled into that loop as closures instead of being
// applied directly from their own goroutines, so no lock is needed —
// matching spec.md §5's requirement that rebalancing and delta
// application are serialized through one event loop.
package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/asyncvalue"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/bus"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/resilience"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/ring"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/wire"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/worker/simulator"
)

// RunVehicle is the supervised body of one vehicle simulator task. It is
// a package variable so tests can substitute a fake without touching the
// real bus/NATS wiring.
var RunVehicle = simulator.Run

// Config configures a dispatcher instance.
type Config struct {
	WorkerID     string
	TickInterval time.Duration
}

type dispatcher struct {
	cfg     Config
	bus     bus.Bus
	subj    wire.Subjects
	members *asyncvalue.Value[[]string]

	workerIDs     []string
	knownVehicles map[string]wire.VehicleConfig
	tasks         map[string]context.CancelFunc
}

// Run drives the dispatcher until ctx is cancelled: it learns the full
// vehicle inventory, reacts to delta broadcasts, and rebalances ownership
// whenever the member list changes. Callers supervise Run for
// restart-on-failure; per spec.md §4.F, a dispatcher failure tears down
// every child simulator and a fresh Run reconstructs state from scratch.
func Run(ctx context.Context, b bus.Bus, subj wire.Subjects, members *asyncvalue.Value[[]string], cfg Config) error {
	d := &dispatcher{
		cfg:           cfg,
		bus:           b,
		subj:          subj,
		members:       members,
		workerIDs:     []string{cfg.WorkerID},
		knownVehicles: make(map[string]wire.VehicleConfig),
		tasks:         make(map[string]context.CancelFunc),
	}
	return d.run(ctx)
}

func (d *dispatcher) run(ctx context.Context) error {
	actions := make(chan func(), 256)

	sub, err := d.bus.Subscribe(d.subj.VehicleDeltaBroadcast(), "", func(msg bus.Msg) {
		delta, err := wire.DecodeDelta(msg.Data)
		if err != nil {
			slog.Warn("dispatcher: malformed delta", "error", err)
			return
		}
		select {
		case actions <- func() { d.applyDelta(ctx, delta) }:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	reply, err := d.bus.Request(ctx, d.subj.VehicleDeltaRequest(), nil)
	if err != nil {
		return err
	}
	initial, err := wire.DecodeDelta(reply)
	if err != nil {
		return err
	}
	d.applyDelta(ctx, initial)

	otherIDs, wait := d.members.Get()
	d.rebalance(ctx, otherIDs)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case fn := <-actions:
			fn()

		case <-wait():
			var newIDs []string
			newIDs, wait = d.members.Get()
			d.rebalance(ctx, newIDs)
		}
	}
}

func (d *dispatcher) applyDelta(ctx context.Context, delta wire.Delta) {
	switch {
	case delta.IsUpdate():
		for _, veh := range delta.Vehicles {
			d.addVeh(ctx, veh)
		}
	case delta.IsDelete():
		for _, id := range delta.VehicleIDs {
			d.removeVeh(id)
		}
	}
}

func (d *dispatcher) addVeh(ctx context.Context, cfg wire.VehicleConfig) {
	d.knownVehicles[cfg.VehicleID] = cfg
	if !ring.BelongsTo(d.cfg.WorkerID, d.workerIDs, cfg.VehicleID) {
		d.cancelVeh(cfg.VehicleID)
		return
	}
	d.cancelVeh(cfg.VehicleID) // restart if a task for this vehicle already exists

	taskCtx, cancel := context.WithCancel(ctx)
	d.tasks[cfg.VehicleID] = cancel

	cmdSubject := d.subj.VehicleCmdSubject(cfg.VehicleID)
	statusSubject := d.subj.VehicleStatusSubject(cfg.VehicleID)
	go resilience.Supervise(taskCtx, "vehicle-"+cfg.VehicleID, func(taskCtx context.Context) error {
		return RunVehicle(taskCtx, d.bus, cfg, cmdSubject, statusSubject, d.cfg.TickInterval)
	})
}

func (d *dispatcher) removeVeh(vehicleID string) {
	delete(d.knownVehicles, vehicleID)
	d.cancelVeh(vehicleID)
}

func (d *dispatcher) cancelVeh(vehicleID string) {
	cancel, ok := d.tasks[vehicleID]
	if !ok {
		return
	}
	cancel()
	delete(d.tasks, vehicleID)
}

func (d *dispatcher) rebalance(ctx context.Context, otherIDs []string) {
	d.workerIDs = unionSelf(d.cfg.WorkerID, otherIDs)

	for vid := range d.tasks {
		if !ring.BelongsTo(d.cfg.WorkerID, d.workerIDs, vid) {
			d.cancelVeh(vid)
		}
	}
	for _, cfg := range d.knownVehicles {
		d.addVeh(ctx, cfg)
	}
}

func unionSelf(self string, others []string) []string {
	seen := map[string]bool{self: true}
	ids := []string{self}
	for _, id := range others {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}
