// Package coordinator implements the cluster coordinator's two
// responsibilities from spec.md §4.D/§8: tracking which workers are alive
// via heartbeats, and publishing the resulting membership list so workers
// can rebalance. Grounded on original_source's
// vehicle_controller/coordinator/{coordinator.py,responder.py}; the two
// Python coroutines are combined here because responder.py's
// q_worker_ids is exactly the membership state coordinator.py computes —
// in Go that shared state is an *asyncvalue.Value[[]string] passed
// between the two loops instead of two independently-scheduled
// coroutines racing on module state.
package coordinator

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/asyncvalue"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/bus"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/wire"
)

// Config holds the heartbeat tuning spec.md §4.D names.
type Config struct {
	Interval    time.Duration
	MissedLimit int
}

// evictionThreshold is the staleness cutoff past which a worker is
// considered gone, per spec.md §8: interval * missed_limit + 0.5s.
func (c Config) evictionThreshold() time.Duration {
	return time.Duration(float64(c.Interval)*float64(c.MissedLimit)) + 500*time.Millisecond
}

// RunHeartbeatMonitor polls workers for heartbeats and evicts any that
// have gone silent past the eviction threshold, publishing the resulting
// member-id list to members on every change. It runs until ctx is
// cancelled.
func RunHeartbeatMonitor(ctx context.Context, b bus.Bus, subj wire.Subjects, cfg Config, members *asyncvalue.Value[[]string]) error {
	clients := make(map[string]time.Time)
	events := make(chan wire.Heartbeat, 64)

	sub, err := b.Subscribe(subj.HeartbeatResp(), "", func(msg bus.Msg) {
		hb, err := wire.DecodeHeartbeat(msg.Data)
		if err != nil {
			slog.Warn("coordinator: malformed heartbeat", "error", err)
			return
		}
		select {
		case events <- hb:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	publish := func() {
		if err := b.Publish(subj.HeartbeatReq(), nil); err != nil {
			slog.Warn("coordinator: failed to publish heartbeat request", "error", err)
		}
	}
	publish()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case hb := <-events:
			if applyHeartbeat(clients, hb) {
				members.Put(sortedKeys(clients))
			}

		case <-ticker.C:
			publish()
			if evict(clients, cfg.evictionThreshold()) {
				members.Put(sortedKeys(clients))
			}
		}
	}
}

// applyHeartbeat records a worker's liveness and reports whether
// membership changed.
func applyHeartbeat(clients map[string]time.Time, hb wire.Heartbeat) bool {
	if hb.Active {
		_, existed := clients[hb.WorkerID]
		clients[hb.WorkerID] = time.Now()
		if !existed {
			slog.Info("coordinator: worker registered", "worker_id", hb.WorkerID)
		}
		return !existed
	}
	if _, existed := clients[hb.WorkerID]; existed {
		delete(clients, hb.WorkerID)
		slog.Info("coordinator: worker disconnected gracefully", "worker_id", hb.WorkerID)
		return true
	}
	return false
}

// evict drops any worker whose last heartbeat is older than threshold and
// reports whether anything was evicted.
func evict(clients map[string]time.Time, threshold time.Duration) bool {
	now := time.Now()
	var evicted bool
	for id, lastSeen := range clients {
		if now.Sub(lastSeen) > threshold {
			delete(clients, id)
			slog.Warn("coordinator: evicting worker, heartbeat timeout", "worker_id", id)
			evicted = true
		}
	}
	return evicted
}

func sortedKeys(clients map[string]time.Time) []string {
	ids := make([]string, 0, len(clients))
	for id := range clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
