package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// connectBackoff is the fixed reconnect delay spec.md §4.A mandates for the
// initial connect loop: retry indefinitely every 2 seconds, no backoff
// growth, mirroring resilience's flat-backoff philosophy.
const connectBackoff = 2 * time.Second

// NATSBus is the production Bus backed by a *nats.Conn. Reconnects after
// the initial connect are handled by nats.go's own reconnect loop
// (nats.MaxReconnects(-1)); the 2s loop here only covers first connect.
type NATSBus struct {
	conn *nats.Conn
}

// Dial connects to url, retrying every 2 seconds until ctx is cancelled.
func Dial(ctx context.Context, url string) (*NATSBus, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(connectBackoff),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("bus disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("bus reconnected")
		}),
	}

	for {
		conn, err := nats.Connect(url, opts...)
		if err == nil {
			return &NATSBus{conn: conn}, nil
		}
		slog.Warn("bus connect failed, retrying", "url", url, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
}

func (b *NATSBus) Publish(subject string, data []byte) error {
	return b.conn.Publish(subject, data)
}

func (b *NATSBus) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	msg, err := b.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return nil, ErrNoResponders
		}
		return nil, fmt.Errorf("bus: request %s: %w", subject, err)
	}
	return msg.Data, nil
}

func (b *NATSBus) Subscribe(subject, queueGroup string, handler Handler) (Subscription, error) {
	natsHandler := func(msg *nats.Msg) {
		m := Msg{Subject: msg.Subject, Data: msg.Data}
		if msg.Reply != "" {
			m.Reply = func(data []byte) error {
				return b.conn.Publish(msg.Reply, data)
			}
		}
		handler(m)
	}

	var sub *nats.Subscription
	var err error
	if queueGroup != "" {
		sub, err = b.conn.QueueSubscribe(subject, queueGroup, natsHandler)
	} else {
		sub, err = b.conn.Subscribe(subject, natsHandler)
	}
	if err != nil {
		return nil, fmt.Errorf("bus: subscribe %s: %w", subject, err)
	}
	return &natsSubscription{sub: sub}, nil
}

// Close closes the underlying connection; subscriptions are not drained
// first.
func (b *NATSBus) Close() {
	b.conn.Close()
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}
