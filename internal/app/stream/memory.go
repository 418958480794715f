package stream

import (
	"context"
	"sync"
)

// Broker interface implementation
var _ Broker = (*MemoryBroker)(nil)

// MemoryBroker fans signals out to in-process subscribers.
type MemoryBroker struct {
	mu   sync.Mutex
	subs map[string]map[*memorySubscription]struct{}
}

type memorySubscription struct {
	*subscription
	topic string
	// in is fed by publishers and drained by the forwarding goroutine
	in chan Event
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[*memorySubscription]struct{})}
}

func (b *MemoryBroker) Publish(ctx context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for s := range b.subs[topic] {
		select {
		case s.in <- Event{Topic: topic, Type: EventChanged}:
		default:
		}
	}
	return nil
}

// Interrupt simulates a transport drop followed by a reconnect for every
// subscriber of topic.
func (b *MemoryBroker) Interrupt(topic string) {
	b.mu.Lock()
	subs := make([]*memorySubscription, 0, len(b.subs[topic]))
	for s := range b.subs[topic] {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		for _, t := range []EventType{EventDisconnected, EventResync} {
			select {
			case s.in <- Event{Topic: topic, Type: t}:
			case <-s.done:
			}
		}
	}
}

func (b *MemoryBroker) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &memorySubscription{
		subscription: newSubscription(cancel),
		topic:        topic,
		in:           make(chan Event, 8),
	}

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*memorySubscription]struct{})
	}
	b.subs[topic][s] = struct{}{}
	b.mu.Unlock()

	go func() {
		defer close(s.done)
		defer close(s.events)
		defer b.remove(s)

		for {
			select {
			case <-ctx.Done():
				return
			case e := <-s.in:
				if e.Type == EventChanged {
					s.signal(e)
					continue
				}
				if !s.control(ctx, e) {
					return
				}
			}
		}
	}()

	return s, nil
}

func (b *MemoryBroker) remove(s *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subs[s.topic], s)
	if len(b.subs[s.topic]) == 0 {
		delete(b.subs, s.topic)
	}
}
