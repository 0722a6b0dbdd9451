// Package heartbeat implements the worker side of cluster membership
// (spec.md §4.D/§8): answer the coordinator's poll with a liveness
// publish, and announce departure on shutdown. Grounded on
// original_source's vehicle_controller/worker/heartbeat.py:run_heartbeat.
package heartbeat

import (
	"context"

	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/bus"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/wire"
)

// Run publishes an active heartbeat once at startup, replies with an
// active heartbeat to every coordinator poll, and publishes a final
// inactive heartbeat before returning — matching run_heartbeat's
// try/finally shape (send active, block, send inactive on the way out).
// It runs until ctx is cancelled.
func Run(ctx context.Context, b bus.Bus, subj wire.Subjects, workerID string) error {
	send := func(active bool) error {
		payload, err := wire.Heartbeat{WorkerID: workerID, Active: active}.Marshal()
		if err != nil {
			return err
		}
		return b.Publish(subj.HeartbeatResp(), payload)
	}

	sub, err := b.Subscribe(subj.HeartbeatReq(), "", func(msg bus.Msg) {
		_ = send(true)
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	if err := send(true); err != nil {
		return err
	}

	<-ctx.Done()
	_ = send(false) // best-effort; ctx is already cancelled so this races shutdown
	return ctx.Err()
}
