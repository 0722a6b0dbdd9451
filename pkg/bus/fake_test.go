package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakePublishSubscribe(t *testing.T) {
	b := NewFake()
	received := make(chan []byte, 1)
	sub, err := b.Subscribe("foo.bar", "", func(msg Msg) {
		received <- msg.Data
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, b.Publish("foo.bar", []byte("hello")))

	select {
	case data := <-received:
		assert.Equal(t, "hello", string(data))
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestFakeUnsubscribeStopsDelivery(t *testing.T) {
	b := NewFake()
	var count int
	sub, err := b.Subscribe("x", "", func(msg Msg) { count++ })
	require.NoError(t, err)

	require.NoError(t, b.Publish("x", nil))
	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, b.Publish("x", nil))

	assert.Equal(t, 1, count)
}

func TestFakeQueueGroupPicksOneMember(t *testing.T) {
	b := NewFake()
	var mu sync.Mutex
	counts := map[string]int{}

	for _, name := range []string{"a", "b", "c"} {
		name := name
		_, err := b.Subscribe("work", "workers", func(msg Msg) {
			mu.Lock()
			counts[name]++
			mu.Unlock()
		})
		require.NoError(t, err)
	}

	for i := 0; i < 10; i++ {
		require.NoError(t, b.Publish("work", nil))
	}

	total := 0
	mu.Lock()
	for _, c := range counts {
		total += c
	}
	mu.Unlock()
	assert.Equal(t, 10, total, "exactly one queue member should receive each message")

	deliveredTo := 0
	mu.Lock()
	for _, c := range counts {
		if c > 0 {
			deliveredTo++
		}
	}
	mu.Unlock()
	assert.Equal(t, 1, deliveredTo, "only one subscriber in the queue group should ever be chosen")
}

func TestFakeRequestReply(t *testing.T) {
	b := NewFake()
	sub, err := b.Subscribe("echo", "", func(msg Msg) {
		_ = msg.Reply([]byte("re:" + string(msg.Data)))
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := b.Request(ctx, "echo", []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, "re:ping", string(resp))
}

func TestFakeRequestNoResponders(t *testing.T) {
	b := NewFake()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := b.Request(ctx, "nobody.home", nil)
	require.ErrorIs(t, err, ErrNoResponders)
}

func TestFakeRequestTimesOutWhenHandlerNeverReplies(t *testing.T) {
	b := NewFake()
	sub, err := b.Subscribe("slow", "", func(msg Msg) {})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = b.Request(ctx, "slow", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFakeWildcardSubjectDelivers(t *testing.T) {
	b := NewFake()
	received := make(chan string, 4)
	sub, err := b.Subscribe("veh.status.*", "", func(msg Msg) {
		received <- msg.Subject
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, b.Publish("veh.status.v1", []byte("pos")))

	select {
	case subject := <-received:
		assert.Equal(t, "veh.status.v1", subject)
	case <-time.After(time.Second):
		t.Fatal("wildcard subscription never received the publish")
	}
}

func TestFakeWildcardSubjectDoesNotOverMatch(t *testing.T) {
	b := NewFake()
	var count int
	sub, err := b.Subscribe("veh.status.*", "", func(msg Msg) { count++ })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, b.Publish("veh.status.v1.extra", nil))
	require.NoError(t, b.Publish("veh.other.v1", nil))
	require.NoError(t, b.Publish("veh.status.v1", nil))

	assert.Equal(t, 1, count, "* matches exactly one token, not zero or many")
}

func TestFakeWildcardQueueGroupPicksOneMember(t *testing.T) {
	b := NewFake()
	var mu sync.Mutex
	counts := map[string]int{}

	for _, name := range []string{"a", "b"} {
		name := name
		_, err := b.Subscribe("veh.status.*", "vm", func(msg Msg) {
			mu.Lock()
			counts[name]++
			mu.Unlock()
		})
		require.NoError(t, err)
	}

	for i := 0; i < 6; i++ {
		require.NoError(t, b.Publish("veh.status.v1", nil))
	}

	total := 0
	mu.Lock()
	for _, c := range counts {
		total += c
	}
	mu.Unlock()
	assert.Equal(t, 6, total)
}

var _ Bus = (*Fake)(nil)
var _ Bus = (*NATSBus)(nil)
