// Package staleness publishes mindscape-changed events so downstream
// consumers know cached personas may be out of date. Delivery is
// best-effort: the trait update has already committed when an event is
// published, and consumers can always regenerate from the store.
package staleness

import (
	"context"
	"sync"
	"time"
)

// Event signals that a person's mindscape changed.
type Event struct {
	PersonID     string    `json:"person_id"`
	Version      int64     `json:"version"`
	ChangedPaths []string  `json:"changed_paths"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher delivers staleness events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Bus is an in-process publisher with buffered per-subscriber channels.
// A slow subscriber drops events rather than blocking the pipeline.
type Bus struct {
	mu   sync.RWMutex
	subs []chan Event
}

// NewBus creates an in-process event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe returns a channel receiving future events.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers ev to all subscribers without blocking.
func (b *Bus) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Fanout publishes to several publishers, returning the first error after
// attempting all of them.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var first error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
