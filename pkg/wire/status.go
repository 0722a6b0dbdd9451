package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// Correlation ties an immobilizer command/status back to whatever
// triggered it: a user action or a geofence crossing. Exactly one of
// UserID/GeofenceID is typically set.
type Correlation struct {
	UserID     *string `json:"user_id"`
	GeofenceID *string `json:"geofence_id"`
}

// VehicleCmdImmobilizer is published on the per-vehicle command subject to
// engage or release a vehicle's immobilizer.
type VehicleCmdImmobilizer struct {
	Type        string      `json:"type"`
	Correlation Correlation `json:"correlation"`
	Active      bool        `json:"active"`
}

// NewImmobilizerCmd builds a VehicleCmdImmobilizer with the "immobilizer"
// type discriminator set.
func NewImmobilizerCmd(correlation Correlation, active bool) VehicleCmdImmobilizer {
	return VehicleCmdImmobilizer{Type: "immobilizer", Correlation: correlation, Active: active}
}

// Marshal encodes the command as wire JSON.
func (c VehicleCmdImmobilizer) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// DecodeVehicleCmdImmobilizer parses an immobilizer command payload.
func DecodeVehicleCmdImmobilizer(data []byte) (VehicleCmdImmobilizer, error) {
	var c VehicleCmdImmobilizer
	err := json.Unmarshal(data, &c)
	return c, err
}

// VehicleStatusKind discriminates the VehicleStatus sum type by its "type" field.
type VehicleStatusKind string

const (
	VehicleStatusKindPos         VehicleStatusKind = "pos"
	VehicleStatusKindImmobilizer VehicleStatusKind = "immobilizer"
)

// VehicleStatusPos reports a simulated vehicle's current position.
type VehicleStatusPos struct {
	Type string    `json:"type"`
	Lat  float64   `json:"lat"`
	Lon  float64   `json:"lon"`
	TS   time.Time `json:"ts"`
}

// Marshal encodes the position status as wire JSON.
func (p VehicleStatusPos) Marshal() ([]byte, error) {
	p.Type = string(VehicleStatusKindPos)
	return json.Marshal(p)
}

// VehicleStatusImmobilizer echoes an immobilizer state change back to the manager.
type VehicleStatusImmobilizer struct {
	Type        string      `json:"type"`
	Correlation Correlation `json:"correlation"`
	Active      bool        `json:"active"`
	TS          time.Time   `json:"ts"`
}

// Marshal encodes the immobilizer status as wire JSON.
func (i VehicleStatusImmobilizer) Marshal() ([]byte, error) {
	i.Type = string(VehicleStatusKindImmobilizer)
	return json.Marshal(i)
}

// VehicleStatus is the decoded form of either status variant. Exactly one
// of Pos/Immobilizer is populated, selected by Kind.
type VehicleStatus struct {
	Kind        VehicleStatusKind
	Pos         VehicleStatusPos
	Immobilizer VehicleStatusImmobilizer
}

// DecodeVehicleStatus parses a status payload, switching on its "type" field.
func DecodeVehicleStatus(data []byte) (VehicleStatus, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return VehicleStatus{}, err
	}
	switch VehicleStatusKind(tag.Type) {
	case VehicleStatusKindPos:
		var p VehicleStatusPos
		if err := json.Unmarshal(data, &p); err != nil {
			return VehicleStatus{}, err
		}
		return VehicleStatus{Kind: VehicleStatusKindPos, Pos: p}, nil
	case VehicleStatusKindImmobilizer:
		var im VehicleStatusImmobilizer
		if err := json.Unmarshal(data, &im); err != nil {
			return VehicleStatus{}, err
		}
		return VehicleStatus{Kind: VehicleStatusKindImmobilizer, Immobilizer: im}, nil
	default:
		return VehicleStatus{}, fmt.Errorf("wire: unknown vehicle status type %q", tag.Type)
	}
}
