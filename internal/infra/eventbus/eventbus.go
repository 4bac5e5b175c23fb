// Package eventbus is an in-process publish/subscribe bus. The knowledge
// service publishes ingestion outcomes on it; the server subscribes to log
// them.
//
// Publish never blocks: each subscriber has a buffered channel and an event
// is dropped for a subscriber whose buffer is full. Nothing is persisted.
package eventbus

import (
	"context"
	"sync"
)

// Event is a single published message.
type Event struct {
	Topic   string
	Payload any
}

// EventBus is the interface for publishing and subscribing to topics.
type EventBus interface {
	Publish(topic string, payload any)
	Subscribe(topic string) <-chan Event
}

const defaultBufferSize = 100

// Bus is the in-memory implementation of EventBus.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Event
	closed      bool
}

// New returns a new in-memory Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[string][]chan Event)}
}

// Subscribe registers a subscriber for topic. The channel is closed by Close;
// subscribing to a closed bus returns an already-closed channel.
func (b *Bus) Subscribe(topic string) <-chan Event {
	ch := make(chan Event, defaultBufferSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	return ch
}

// Publish delivers to every subscriber of topic, dropping the event for any
// subscriber whose buffer is full. Publishing on a closed bus is a no-op.
func (b *Bus) Publish(topic string, payload any) {
	evt := Event{Topic: topic, Payload: payload}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Close closes every subscriber channel. Safe to call more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, topic)
	}
}

// Consume calls fn for each event on ch until ch is closed or ctx is done.
func Consume(ctx context.Context, ch <-chan Event, fn func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			fn(evt)
		}
	}
}
