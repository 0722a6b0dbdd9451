package wire

import "encoding/json"

// Heartbeat is published by a worker on the heartbeat-response subject,
// both in reply to a coordinator poll and once on startup/shutdown.
type Heartbeat struct {
	WorkerID string `json:"worker_id"`
	Active   bool   `json:"active"`
}

// Marshal encodes the heartbeat as the wire JSON form.
func (h Heartbeat) Marshal() ([]byte, error) {
	return json.Marshal(h)
}

// DecodeHeartbeat parses a heartbeat payload.
func DecodeHeartbeat(data []byte) (Heartbeat, error) {
	var h Heartbeat
	err := json.Unmarshal(data, &h)
	return h, err
}

// WorkerIDs is the coordinator's membership snapshot, broadcast on change
// and returned verbatim on request.
type WorkerIDs struct {
	WorkerIDs []string `json:"worker_ids"`
}

// Marshal encodes the membership snapshot as wire JSON.
func (w WorkerIDs) Marshal() ([]byte, error) {
	return json.Marshal(w)
}

// DecodeWorkerIDs parses a membership snapshot payload.
func DecodeWorkerIDs(data []byte) (WorkerIDs, error) {
	var w WorkerIDs
	err := json.Unmarshal(data, &w)
	return w, err
}
