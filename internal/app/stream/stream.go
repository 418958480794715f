// Package stream carries change signals for hierarchical data paths.
//
// Subscribers get a signal, not the data: on every EventChanged they are
// expected to re-read the full state of the path. Signals for the same path
// may therefore be coalesced. EventDisconnected and EventResync describe the
// transport and are never dropped.
package stream

import "context"

type EventType int

const (
	EventChanged EventType = iota + 1
	EventDisconnected
	EventResync
)

func (t EventType) String() string {
	switch t {
	case EventChanged:
		return "changed"
	case EventDisconnected:
		return "disconnected"
	case EventResync:
		return "resync"
	}
	return "unknown"
}

type Event struct {
	Topic string
	Type  EventType
}

type Subscription interface {
	// Events is closed once the subscription ends
	Events() <-chan Event
	// Close releases the listener, safe to call more than once
	Close() error
}

type Broker interface {
	// Publish announces a change of topic to every subscriber
	Publish(ctx context.Context, topic string) error
	// Subscribe starts listening to topic until ctx is done or Close is called
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// subscription is shared by broker implementations.
type subscription struct {
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
}

func newSubscription(cancel context.CancelFunc) *subscription {
	return &subscription{
		events: make(chan Event, 4),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (s *subscription) Events() <-chan Event {
	return s.events
}

func (s *subscription) Close() error {
	s.cancel()
	<-s.done
	return nil
}

// signal queues a change unless one is already pending.
func (s *subscription) signal(e Event) {
	select {
	case s.events <- e:
	default:
	}
}

// control queues a transport event, blocking until there is room or ctx ends.
func (s *subscription) control(ctx context.Context, e Event) bool {
	select {
	case s.events <- e:
		return true
	case <-ctx.Done():
		return false
	}
}
