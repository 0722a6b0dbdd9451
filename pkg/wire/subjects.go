// Package wire defines the JSON payloads exchanged on the message bus and
// the subject-name helpers used to address them. Subject layout follows
// spec.md §6.
package wire

import (
	"fmt"
	"strings"
)

// Subjects holds the dot-delimited subject roots read from configuration.
// Each root expands into the handful of concrete subjects a component
// actually subscribes to or publishes on.
type Subjects struct {
	Heartbeat string // e.g. "hb" -> "hb.req", "hb.resp"
	WorkerList string // e.g. "wl" -> "wl.b", "wl.l"
	VehicleDeltas string // e.g. "veh.deltas" -> "veh.deltas.b", "veh.deltas.l"
	VehicleCmd string // e.g. "veh.cmd" -> "veh.cmd.<vehicle_id>"
	VehicleStatus string // e.g. "veh.status" -> "veh.status.<vehicle_id>", "veh.status.*"
}

// HeartbeatReq is the subject the coordinator polls on.
func (s Subjects) HeartbeatReq() string { return s.Heartbeat + ".req" }

// HeartbeatResp is the subject workers reply on.
func (s Subjects) HeartbeatResp() string { return s.Heartbeat + ".resp" }

// WorkerListBroadcast is the subject the coordinator publishes membership on.
func (s Subjects) WorkerListBroadcast() string { return s.WorkerList + ".b" }

// WorkerListRequest is the subject workers poll for cold-start membership.
func (s Subjects) WorkerListRequest() string { return s.WorkerList + ".l" }

// VehicleDeltaBroadcast is the subject the manager publishes inventory deltas on.
func (s Subjects) VehicleDeltaBroadcast() string { return s.VehicleDeltas + ".b" }

// VehicleDeltaRequest is the subject workers poll for a full inventory snapshot.
func (s Subjects) VehicleDeltaRequest() string { return s.VehicleDeltas + ".l" }

// VehicleCmdSubject is the per-vehicle command subject.
func (s Subjects) VehicleCmdSubject(vehicleID string) string {
	return fmt.Sprintf("%s.%s", s.VehicleCmd, vehicleID)
}

// VehicleStatusSubject is the per-vehicle status subject.
func (s Subjects) VehicleStatusSubject(vehicleID string) string {
	return fmt.Sprintf("%s.%s", s.VehicleStatus, vehicleID)
}

// VehicleStatusWildcard is the queue-subscribed wildcard for all vehicle status.
func (s Subjects) VehicleStatusWildcard() string {
	return s.VehicleStatus + ".*"
}

// VehicleIDFromSubject extracts the trailing dot-delimited segment of a
// per-vehicle subject, e.g. "veh.status.<id>" -> "<id>".
func VehicleIDFromSubject(subject string) string {
	idx := strings.LastIndexByte(subject, '.')
	if idx < 0 {
		return subject
	}
	return subject[idx+1:]
}
