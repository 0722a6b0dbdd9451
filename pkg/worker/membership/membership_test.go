package membership

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/asyncvalue"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/bus"
	"github.com/fri-rso-2025-s08/fri-rso-2025/pkg/wire"
)

func TestListenerSeedsFromRequestOnStartup(t *testing.T) {
	b := bus.NewFake()
	subj := wire.Subjects{WorkerList: "wl"}

	sub, err := b.Subscribe(subj.WorkerListRequest(), "", func(msg bus.Msg) {
		payload, _ := wire.WorkerIDs{WorkerIDs: []string{"w1", "w2"}}.Marshal()
		_ = msg.Reply(payload)
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	out := asyncvalue.New([]string{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- RunListener(ctx, b, subj, out) }()

	require.Eventually(t, func() bool {
		ids, _ := out.Get()
		return len(ids) == 2
	}, time.Second, 5*time.Millisecond)

	ids, _ := out.Get()
	assert.ElementsMatch(t, []string{"w1", "w2"}, ids)

	cancel()
	<-done
}

func TestListenerAppliesBroadcasts(t *testing.T) {
	b := bus.NewFake()
	subj := wire.Subjects{WorkerList: "wl"}

	sub, err := b.Subscribe(subj.WorkerListRequest(), "", func(msg bus.Msg) {
		payload, _ := wire.WorkerIDs{WorkerIDs: []string{}}.Marshal()
		_ = msg.Reply(payload)
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	out := asyncvalue.New([]string{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- RunListener(ctx, b, subj, out) }()

	require.Eventually(t, func() bool {
		_, wait := out.Get()
		select {
		case <-wait():
			return false
		default:
			return true
		}
	}, time.Second, 5*time.Millisecond)

	payload, err := wire.WorkerIDs{WorkerIDs: []string{"w3"}}.Marshal()
	require.NoError(t, err)
	require.NoError(t, b.Publish(subj.WorkerListBroadcast(), payload))

	require.Eventually(t, func() bool {
		ids, _ := out.Get()
		return len(ids) == 1 && ids[0] == "w3"
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestListenerPropagatesRequestFailure(t *testing.T) {
	b := bus.NewFake()
	subj := wire.Subjects{WorkerList: "wl"}
	out := asyncvalue.New([]string{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := RunListener(ctx, b, subj, out)
	require.Error(t, err)
}
