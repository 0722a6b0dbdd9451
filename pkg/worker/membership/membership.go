// Package membership implements the worker-side half of cluster
// membership (spec.md §4.E): learn the coordinator's member list and keep
// it current. Grounded on original_source's
// vehicle_controller/worker/listener.py.
package membership

import (
	"context"

	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/asyncvalue"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/bus"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/wire"
)

// RunListener subscribes to the coordinator's worker-list broadcast and
// keeps out up to date. On startup it seeds out from one synchronous
// request so the dispatcher never has to run with an empty ring. It runs
// until ctx is cancelled; callers supervise it for restart-on-failure.
func RunListener(ctx context.Context, b bus.Bus, subj wire.Subjects, out *asyncvalue.Value[[]string]) error {
	apply := func(data []byte) error {
		ids, err := wire.DecodeWorkerIDs(data)
		if err != nil {
			return err
		}
		out.Put(ids.WorkerIDs)
		return nil
	}

	sub, err := b.Subscribe(subj.WorkerListBroadcast(), "", func(msg bus.Msg) {
		_ = apply(msg.Data)
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	reply, err := b.Request(ctx, subj.WorkerListRequest(), nil)
	if err != nil {
		return err
	}
	if err := apply(reply); err != nil {
		return err
	}

	<-ctx.Done()
	return ctx.Err()
}
