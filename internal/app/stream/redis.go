package stream

import (
	"context"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"time"
	"townmarket/internal/app/logger"
)

// Broker interface implementation
var _ Broker = (*RedisBroker)(nil)

// RedisBroker carries signals over redis pub/sub so that every instance of
// the service sees writes made by the others.
type RedisBroker struct {
	client         *redis.Client
	reconnectDelay time.Duration
}

func (b *RedisBroker) LoggerComponent() string {
	return "Stream.RedisBroker"
}

type RedisOption func(*RedisBroker)

func WithReconnectDelay(d time.Duration) RedisOption {
	return func(b *RedisBroker) {
		b.reconnectDelay = d
	}
}

func NewRedisBroker(ctx context.Context, client *redis.Client, opts ...RedisOption) (*RedisBroker, error) {
	b := &RedisBroker{
		client:         client,
		reconnectDelay: time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "redis ping")
	}

	return b, nil
}

func (b *RedisBroker) Publish(ctx context.Context, topic string) error {
	id := xid.New().String()
	if err := b.client.Publish(ctx, topic, id).Err(); err != nil {
		return errors.Wrapf(err, "redis publish %s", topic)
	}

	log := logger.Get(ctx, b)
	log.Debug().Str("topic", topic).Str("signal_id", id).Msg("Published")
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	ps := b.client.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Wrapf(err, "redis subscribe %s", topic)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := newSubscription(cancel)
	l := logger.Get(ctx, b).With().Str("topic", topic).Logger()

	go func() {
		defer close(s.done)
		defer close(s.events)
		defer func() {
			_ = ps.Close()
		}()

		disconnected := false
		for {
			msg, err := ps.Receive(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !disconnected {
					l.Warn().Err(err).Msg("Subscription lost")
					disconnected = true
					if !s.control(ctx, Event{Topic: topic, Type: EventDisconnected}) {
						return
					}
				}

				// next Receive reconnects and resubscribes
				t := time.NewTimer(b.reconnectDelay)
				select {
				case <-ctx.Done():
					t.Stop()
					return
				case <-t.C:
				}
				continue
			}

			switch m := msg.(type) {
			case *redis.Subscription:
				if disconnected && m.Kind == "subscribe" {
					l.Info().Msg("Subscription restored")
					disconnected = false
					if !s.control(ctx, Event{Topic: topic, Type: EventResync}) {
						return
					}
				}
			case *redis.Message:
				s.signal(Event{Topic: topic, Type: EventChanged})
			}
		}
	}()

	return s, nil
}
