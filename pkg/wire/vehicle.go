package wire

import "encoding/json"

// VehicleConfig is the immutable-while-active description of one vehicle,
// as handed out by the manager and consumed by workers.
type VehicleConfig struct {
	VehicleID string          `json:"vehicle_id"`
	VType     string          `json:"vtype"`
	VData     json.RawMessage `json:"vdata"`
}

// Delta is the tagged union published on the vehicle-delta broadcast
// subject and returned in bulk on the inventory-request subject.
// Discrimination is structural: exactly one of Vehicles/VehicleIDs is set.
type Delta struct {
	Vehicles   []VehicleConfig `json:"vehicles,omitempty"`
	VehicleIDs []string        `json:"vehicle_ids,omitempty"`
}

// IsUpdate reports whether this delta carries an "update" payload
// (the "vehicles" key was present in the decoded JSON).
func (d Delta) IsUpdate() bool { return d.Vehicles != nil }

// IsDelete reports whether this delta carries a "delete" payload
// (the "vehicle_ids" key was present in the decoded JSON).
func (d Delta) IsDelete() bool { return d.VehicleIDs != nil }

// NewUpdateDelta builds an "update" delta listing the given vehicles.
// A nil or empty slice is normalized to an empty, non-nil slice so the
// "vehicles" key is always present (never omitted) in the encoded form.
func NewUpdateDelta(vehicles []VehicleConfig) Delta {
	if vehicles == nil {
		vehicles = []VehicleConfig{}
	}
	return Delta{Vehicles: vehicles}
}

// NewDeleteDelta builds a "delete" delta listing the given vehicle ids.
func NewDeleteDelta(ids []string) Delta {
	if ids == nil {
		ids = []string{}
	}
	return Delta{VehicleIDs: ids}
}

// Marshal encodes the delta as wire JSON.
func (d Delta) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

// DecodeDelta parses a delta payload, discriminating on which of
// "vehicles"/"vehicle_ids" is present in the raw JSON object.
func DecodeDelta(data []byte) (Delta, error) {
	var raw struct {
		Vehicles   *[]VehicleConfig `json:"vehicles"`
		VehicleIDs *[]string        `json:"vehicle_ids"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Delta{}, err
	}
	var d Delta
	if raw.Vehicles != nil {
		d.Vehicles = *raw.Vehicles
	}
	if raw.VehicleIDs != nil {
		d.VehicleIDs = *raw.VehicleIDs
	}
	return d, nil
}
