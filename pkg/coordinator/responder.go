package coordinator

import (
	"context"

	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/asyncvalue"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/bus"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/wire"

	"sync/atomic"
)

// RunResponder answers worker-list requests and broadcasts the member
// list every time it changes. Grounded on original_source's
// coordinator/responder.py:run_responder; the Python closure's
// current_worker_ids variable (read from the request handler, written
// from the broadcast loop, safe only because both run on one asyncio
// event loop) becomes an atomic.Pointer here since the bus invokes
// request handlers on their own goroutine.
func RunResponder(ctx context.Context, b bus.Bus, subj wire.Subjects, members *asyncvalue.Value[[]string]) error {
	var current atomic.Pointer[[]string]
	empty := []string{}
	current.Store(&empty)

	sub, err := b.Subscribe(subj.WorkerListRequest(), "", func(msg bus.Msg) {
		if msg.Reply == nil {
			return
		}
		ids := *current.Load()
		payload, err := wire.WorkerIDs{WorkerIDs: ids}.Marshal()
		if err != nil {
			return
		}
		_ = msg.Reply(payload)
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for {
		ids, wait := members.Get()
		current.Store(&ids)

		payload, err := wire.WorkerIDs{WorkerIDs: ids}.Marshal()
		if err != nil {
			return err
		}
		if err := b.Publish(subj.WorkerListBroadcast(), payload); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait():
		}
	}
}
