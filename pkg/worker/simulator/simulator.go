// Package simulator implements the per-vehicle "vehicle task" spec.md §3
// describes as a placeholder for real vehicle physics: it emits noisy
// position telemetry around a fixed point and echoes immobilizer
// commands back as status. Grounded on original_source's
// vehicle_controller/worker/vehicle.py:run_vehicle_controller.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/bus"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/wire"
)

// Data is the vehicle-specific simulation parameters carried in
// VehicleConfig.VData for the "test" vehicle type: a fixed point and a
// Gaussian noise standard deviation applied to each emitted sample.
// Matches original_source's vehicle.py:_Vdata.
type Data struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Std float64 `json:"std"`
}

// ParseData decodes the vdata payload of a "test"-type vehicle config.
func ParseData(raw json.RawMessage) (Data, error) {
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return Data{}, fmt.Errorf("simulator: decode vdata: %w", err)
	}
	return d, nil
}

// DefaultTickInterval is how often a simulator emits a position sample
// when the caller does not override it. original_source's loop has no
// sleep at all (a known gap noted in its own comments); a fixed cadence
// is the idiomatic fix so a simulator doesn't spin a tight publish loop.
const DefaultTickInterval = time.Second

// Run drives one vehicle's simulated life: subscribes to cmdSubject for
// immobilizer commands (echoed back as status), and periodically
// publishes position samples on statusSubject. It runs until ctx is
// cancelled or a position sample fails to encode or publish; cfg.VType
// must be "test", the only simulated vehicle type this placeholder
// supports.
func Run(ctx context.Context, b bus.Bus, cfg wire.VehicleConfig, cmdSubject, statusSubject string, tickInterval time.Duration) error {
	if cfg.VType != "test" {
		return fmt.Errorf("simulator: unsupported vehicle type %q", cfg.VType)
	}
	data, err := ParseData(cfg.VData)
	if err != nil {
		return err
	}
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}

	sub, err := b.Subscribe(cmdSubject, "", func(msg bus.Msg) {
		cmd, err := wire.DecodeVehicleCmdImmobilizer(msg.Data)
		if err != nil {
			return
		}
		status := wire.VehicleStatusImmobilizer{
			Type:        string(wire.VehicleStatusKindImmobilizer),
			Correlation: cmd.Correlation,
			Active:      cmd.Active,
			TS:          time.Now().UTC(),
		}
		payload, err := status.Marshal()
		if err != nil {
			return
		}
		_ = b.Publish(statusSubject, payload)
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			status := wire.VehicleStatusPos{
				Type: string(wire.VehicleStatusKindPos),
				Lat:  data.Lat + data.Std*rand.NormFloat64(),
				Lon:  data.Lon + data.Std*rand.NormFloat64(),
				TS:   time.Now().UTC(),
			}
			payload, err := status.Marshal()
			if err != nil {
				return err
			}
			if err := b.Publish(statusSubject, payload); err != nil {
				return err
			}
		}
	}
}
