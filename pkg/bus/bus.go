// Package bus provides a thin typed wrapper over a pub/sub + request/reply
// message bus (spec.md §4.A). Subjects are plain dot-delimited strings;
// subscriptions are scope-bound so callers cannot forget to unsubscribe.
package bus

import (
	"context"
	"errors"
)

// ErrNoResponders is returned by Request when no subscriber is listening
// on the subject. A subscriber that never replies yields the context's
// error instead.
var ErrNoResponders = errors.New("bus: no responders")

// Msg is a single inbound message delivered to a subscription handler.
// Reply is non-nil only when the message was sent via Request and a
// response is expected.
type Msg struct {
	Subject string
	Data    []byte
	Reply   func(data []byte) error
}

// Handler processes one inbound message. Handlers must not block for long
// periods; slow work should be handed off to a goroutine.
type Handler func(msg Msg)

// Subscription represents one live subscription. Unsubscribe is safe to
// call more than once and must be called to release bus resources; scope
// exit (a deferred Unsubscribe) is the expected usage per spec.md §4.A.
type Subscription interface {
	Unsubscribe() error
}

// Bus is the adapter surface every component programs against. The
// production implementation (NATSBus) wraps *nats.Conn with an infinite
// reconnect loop; tests use the in-memory Fake implementation.
type Bus interface {
	// Publish fires-and-forgets a message on subject.
	Publish(subject string, data []byte) error
	// Request publishes on subject and waits for exactly one reply,
	// honoring ctx for cancellation/timeout.
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
	// Subscribe registers handler for subject. When queueGroup is
	// non-empty, exactly one subscriber in the group receives each
	// message (spec.md §4.A queue-group semantics).
	Subscribe(subject, queueGroup string, handler Handler) (Subscription, error)
}
