package events

import (
	"sync"

	"github.com/jscyril/mileage_mafia/api"
)

const subscriberBuffer = 32

type subscription struct {
	ch    chan api.AudioEvent
	types map[api.EventType]struct{} // nil receives every type
}

func (s subscription) wants(t api.EventType) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// EventBus fans coordinator events out to buffered subscriber channels.
// Publishing never blocks: a subscriber whose buffer is full misses the event.
type EventBus struct {
	mu     sync.RWMutex
	subs   []subscription
	closed bool
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe returns a channel receiving the given event types, or every
// event when none are given. The channel is closed by Close.
func (b *EventBus) Subscribe(types ...api.EventType) <-chan api.AudioEvent {
	sub := subscription{ch: make(chan api.AudioEvent, subscriberBuffer)}
	if len(types) > 0 {
		sub.types = make(map[api.EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub.ch
	}
	b.subs = append(b.subs, sub)
	return sub.ch
}

// Publish is safe on a nil or closed bus.
func (b *EventBus) Publish(event api.AudioEvent) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if !sub.wants(event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
}

// Close closes every subscriber channel. Later publishes are dropped.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}
