// Package telemetry implements the manager's vehicle-event ingestion
// pipeline (spec.md §4.G): one queue-group listener across all per-vehicle
// status subjects, persisting position/immobilizer state and evaluating
// geofence crossings. Grounded on original_source's
// vehicle_manager/controller_link.py
// (process_pos_telemetry/process_immobilizer_telemetry/run_telemetry_listener).
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/asyncvalue"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/bus"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/geofence"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/resilience"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/store"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/wire"
)

// TxStore is the subset of *store.Tx telemetry processing needs, narrowed
// to a seam tests can substitute a fake behind — the same role
// dispatcher.RunVehicle's package-variable seam plays for the worker side.
type TxStore interface {
	GetVehicleForUpdate(ctx context.Context, id string) (*store.Vehicle, error)
	UpdateVehiclePosition(ctx context.Context, vehicleID string, lat, lon float64, ts time.Time) error
	ActiveGeofencesForVehicle(ctx context.Context, vehicleID string) ([]store.Geofence, error)
	InsertGeofenceEvent(ctx context.Context, ev store.VehicleGeofenceEvent) error
	SetImmobilized(ctx context.Context, vehicleID string, active bool) error
	InsertImmobilizedEvent(ctx context.Context, ev store.VehicleImmobilizedEvent) error
}

// txRunner scopes one TxStore-shaped operation to a transaction. storeRunner
// is the only production implementation; tests substitute their own.
type txRunner interface {
	WithTx(ctx context.Context, fn func(TxStore) error) error
}

// storeRunner adapts *store.Store to txRunner. Go's function types are
// invariant, so func(*store.Tx) error isn't assignable to
// func(TxStore) error even though *store.Tx satisfies TxStore structurally
// — the callback has to be wrapped rather than passed straight through.
type storeRunner struct {
	st *store.Store
}

func (r storeRunner) WithTx(ctx context.Context, fn func(TxStore) error) error {
	return r.st.WithTx(ctx, func(tx *store.Tx) error {
		return fn(tx)
	})
}

// Processor owns the bus subscription and the store handle status
// messages are applied against.
type Processor struct {
	bus    bus.Bus
	subj   wire.Subjects
	store  txRunner
	policy *asyncvalue.Value[resilience.Policy]
}

// New constructs a telemetry processor backed by a live Postgres store,
// using the hot-reloadable transport retry policy (spec.md §3/§4.C) held in
// policy. Callers that don't need hot-reload can pass
// asyncvalue.New(resilience.DefaultTransportPolicy).
func New(b bus.Bus, subj wire.Subjects, st *store.Store, policy *asyncvalue.Value[resilience.Policy]) *Processor {
	return &Processor{bus: b, subj: subj, store: storeRunner{st: st}, policy: policy}
}

// Run subscribes to the per-vehicle status wildcard as a member of the
// "vm" queue group (so exactly one manager replica handles each message)
// and processes status updates until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	sub, err := p.bus.Subscribe(p.subj.VehicleStatusWildcard(), "vm", func(msg bus.Msg) {
		vehicleID := wire.VehicleIDFromSubject(msg.Subject)
		status, err := wire.DecodeVehicleStatus(msg.Data)
		if err != nil {
			slog.Warn("telemetry: malformed status payload", "vehicle_id", vehicleID, "error", err)
			return
		}

		var procErr error
		switch status.Kind {
		case wire.VehicleStatusKindPos:
			procErr = p.processPos(ctx, vehicleID, status.Pos)
		case wire.VehicleStatusKindImmobilizer:
			procErr = p.processImmobilizer(ctx, vehicleID, status.Immobilizer)
		}
		if procErr != nil {
			slog.Warn("telemetry: failed to process status", "vehicle_id", vehicleID, "error", procErr)
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	return ctx.Err()
}

// processPos implements spec.md §4.G's process_pos_telemetry: update the
// vehicle's live position, evaluate every linked geofence for a boundary
// crossing, and immobilize/release the vehicle when a crossing demands
// it — all inside one transaction. Immobilize commands are published from
// inside that transaction, before it commits: if a later step fails and
// the transaction rolls back, a command already published is not
// retracted.
func (p *Processor) processPos(ctx context.Context, vehicleID string, pos wire.VehicleStatusPos) error {
	return p.store.WithTx(ctx, func(tx TxStore) error {
		v, err := tx.GetVehicleForUpdate(ctx, vehicleID)
		if errors.Is(err, store.ErrNotFound) {
			return nil // vehicle may have been deleted between CRUD and in-flight telemetry
		}
		if err != nil {
			return err
		}
		if !v.Active {
			return nil
		}

		var prevPoint *geofence.Point
		if v.Lat != nil && v.Lon != nil {
			pt := geofence.Point{Lon: *v.Lon, Lat: *v.Lat}
			prevPoint = &pt
		}
		currPoint := geofence.Point{Lon: pos.Lon, Lat: pos.Lat}

		if err := tx.UpdateVehiclePosition(ctx, vehicleID, pos.Lat, pos.Lon, pos.TS); err != nil {
			return err
		}

		geofences, err := tx.ActiveGeofencesForVehicle(ctx, vehicleID)
		if err != nil {
			return err
		}

		immobilized := v.Immobilized
		for _, gf := range geofences {
			poly, err := geofence.Decode(gf.Data)
			if err != nil {
				slog.Warn("telemetry: malformed geofence geometry, skipping", "geofence_id", gf.ID, "error", err)
				continue
			}

			currInside := poly.Contains(currPoint)
			prevInside := prevPoint != nil && poly.Contains(*prevPoint)
			if currInside == prevInside {
				continue
			}

			if err := tx.InsertGeofenceEvent(ctx, store.VehicleGeofenceEvent{
				VehicleID:  vehicleID,
				GeofenceID: gf.ID,
				TS:         pos.TS,
				Entered:    currInside,
			}); err != nil {
				return err
			}

			gfID := gf.ID
			switch {
			case currInside && gf.ImmobilizeEnter && !immobilized:
				if err := p.immobilize(ctx, tx, vehicleID, nil, &gfID, true, pos.TS); err != nil {
					return err
				}
				immobilized = true
			case !currInside && gf.ImmobilizeLeave && immobilized:
				if err := p.immobilize(ctx, tx, vehicleID, nil, &gfID, false, pos.TS); err != nil {
					return err
				}
				immobilized = false
			}
		}
		return nil
	})
}

// immobilize records the state change and publishes the command,
// matching original_source's inline call to transmit_immobilize from
// within process_pos_telemetry.
func (p *Processor) immobilize(ctx context.Context, tx TxStore, vehicleID string, userID, geofenceID *string, active bool, ts time.Time) error {
	if err := tx.SetImmobilized(ctx, vehicleID, active); err != nil {
		return err
	}
	if err := tx.InsertImmobilizedEvent(ctx, store.VehicleImmobilizedEvent{
		VehicleID:   vehicleID,
		TS:          ts,
		Correlation: store.Correlation{UserID: userID, GeofenceID: geofenceID},
		Active:      active,
	}); err != nil {
		return err
	}
	return p.transmitImmobilize(ctx, vehicleID, userID, geofenceID, active)
}

// processImmobilizer implements process_immobilizer_telemetry: record the
// manager-observed immobilizer state echoed back by the simulator.
func (p *Processor) processImmobilizer(ctx context.Context, vehicleID string, status wire.VehicleStatusImmobilizer) error {
	return p.store.WithTx(ctx, func(tx TxStore) error {
		v, err := tx.GetVehicleForUpdate(ctx, vehicleID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !v.Active {
			return nil
		}
		return tx.InsertImmobilizedEvent(ctx, store.VehicleImmobilizedEvent{
			VehicleID:   vehicleID,
			TS:          status.TS,
			Correlation: store.Correlation{UserID: status.Correlation.UserID, GeofenceID: status.Correlation.GeofenceID},
			Active:      status.Active,
		})
	})
}

// transmitImmobilize publishes an immobilizer command, retried per the
// live transport policy (spec.md §4.C's default: 60 attempts, 5s apart),
// hot-reloadable via --config-file per spec.md §3.
func (p *Processor) transmitImmobilize(ctx context.Context, vehicleID string, userID, geofenceID *string, active bool) error {
	cmd := wire.NewImmobilizerCmd(wire.Correlation{UserID: userID, GeofenceID: geofenceID}, active)
	payload, err := cmd.Marshal()
	if err != nil {
		return err
	}
	subject := p.subj.VehicleCmdSubject(vehicleID)

	policy, _ := p.policy.Get()
	return policy.Retry(ctx, func(ctx context.Context) error {
		return p.bus.Publish(subject, payload)
	})
}
