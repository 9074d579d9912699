package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
)

// DefaultBuffer is the channel capacity given to each subscriber.
const DefaultBuffer = 64

// Bus is an in-process Emitter with fan-out to subscribers and publishers.
type Bus struct {
	mu         sync.Mutex
	subs       map[int]chan Event
	next       int
	closed     bool
	publishers []Publisher
}

// NewBus creates a bus forwarding every event to the given publishers.
func NewBus(publishers ...Publisher) *Bus {
	return &Bus{
		subs:       make(map[int]chan Event),
		publishers: publishers,
	}
}

// Subscribe returns a channel receiving every subsequent event. Events are
// dropped for a subscriber whose buffer is full. Call the returned cancel
// function to unsubscribe and close the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, DefaultBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Emit delivers ev to all subscribers and publishers. Publisher failures are
// logged and never reach the caller.
func (b *Bus) Emit(ctx context.Context, ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Drop rather than block the store or engine on a slow subscriber.
		}
	}
	publishers := b.publishers
	b.mu.Unlock()

	logger := ctxlog.FromContext(ctx)
	for _, p := range publishers {
		if err := p.Publish(ctx, ev); err != nil {
			logger.Warn("Failed to publish change event.", "kind", ev.Kind, "error", err)
		}
	}
}

// Close closes every subscriber channel and publisher.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	publishers := b.publishers
	b.mu.Unlock()

	var errs []error
	for _, p := range publishers {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}
