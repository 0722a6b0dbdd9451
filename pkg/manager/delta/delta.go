// Package delta implements the manager's half of vehicle-inventory
// distribution (spec.md §4.H): answering a worker's cold-start inventory
// request, and publishing add/remove deltas whenever a vehicle's active
// flag changes. Grounded on original_source's
// vehicle_manager/controller_link.py:{run_veh_listener,send_veh_delta}.
//
// send_veh_delta's literal Python body publishes the inverse of what its
// own name implies (an activated vehicle produces a ResponseDelete, a
// deactivated one a ResponseUpdate) — spec.md §4.H/§9 pins the corrected
// direction this package implements: newly active publishes an update,
// newly inactive publishes a delete.
package delta

import (
	"context"
	"fmt"

	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/bus"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/resilience"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/store"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/wire"
)

// RunInventoryResponder answers full-inventory requests from workers
// bootstrapping or recovering. Subscribes as a member of the "vm" queue
// group so exactly one manager replica answers each request.
func RunInventoryResponder(ctx context.Context, b bus.Bus, subj wire.Subjects, st *store.Store) error {
	sub, err := b.Subscribe(subj.VehicleDeltaRequest(), "vm", func(msg bus.Msg) {
		if msg.Reply == nil {
			return
		}
		var vehicles []store.Vehicle
		err := st.WithTx(ctx, func(tx *store.Tx) error {
			v, err := tx.ActiveVehicles(ctx)
			vehicles = v
			return err
		})
		if err != nil {
			return
		}

		configs := make([]wire.VehicleConfig, len(vehicles))
		for i, v := range vehicles {
			configs[i] = wire.VehicleConfig{VehicleID: v.ID, VType: v.VType, VData: v.VConfig}
		}
		payload, err := wire.NewUpdateDelta(configs).Marshal()
		if err != nil {
			return
		}
		_ = msg.Reply(payload)
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	return ctx.Err()
}

// PublishActivationChange publishes the delta broadcast for one vehicle
// whose active flag just changed: an "update" delta if it just became
// active, a "delete" delta if it just became inactive. Wrapped in the
// 10x5s delta-publication retry policy (spec.md §4.C).
func PublishActivationChange(ctx context.Context, b bus.Bus, subj wire.Subjects, vehicle store.Vehicle) error {
	var payload []byte
	var err error
	if vehicle.Active {
		payload, err = wire.NewUpdateDelta([]wire.VehicleConfig{{
			VehicleID: vehicle.ID,
			VType:     vehicle.VType,
			VData:     vehicle.VConfig,
		}}).Marshal()
	} else {
		payload, err = wire.NewDeleteDelta([]string{vehicle.ID}).Marshal()
	}
	if err != nil {
		return fmt.Errorf("delta: encode: %w", err)
	}

	retry := resilience.WithRetries(resilience.DeltaPublishRetries, resilience.DeltaPublishDelay)
	return retry(ctx, func(ctx context.Context) error {
		return b.Publish(subj.VehicleDeltaBroadcast(), payload)
	})
}
