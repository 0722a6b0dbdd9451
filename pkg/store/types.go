package store

import (
	"encoding/json"
	"time"
)

// Vehicle is the manager's authoritative record of one vehicle, grounded
// on original_source's db/models.py Vehicle row (id, active, name, vtype,
// vconfig, immobilized, lat, lon).
type Vehicle struct {
	ID          string
	Name        string
	VType       string
	VConfig     json.RawMessage
	Active      bool
	Immobilized bool
	Lat         *float64
	Lon         *float64
}

// Geofence is one named polygon with enter/leave immobilization policy.
type Geofence struct {
	ID              string
	Name            string
	Data            json.RawMessage
	Active          bool
	ImmobilizeEnter bool
	ImmobilizeLeave bool
}

// Correlation identifies what triggered an immobilize command: a user
// action or a geofence crossing.
type Correlation struct {
	UserID     *string
	GeofenceID *string
}

// VehicleGeofenceEvent records one crossing (entered or exited) of a
// geofence boundary by a vehicle.
type VehicleGeofenceEvent struct {
	VehicleID  string
	GeofenceID string
	TS         time.Time
	Entered    bool
}

// VehicleImmobilizedEvent records one immobilizer state change, with the
// correlation that triggered it.
type VehicleImmobilizedEvent struct {
	VehicleID   string
	TS          time.Time
	Correlation Correlation
	Active      bool
}
