// Package bus delivers lifecycle events to subscribers synchronously.
//
// Delivery rules:
//   - Subscribers for a type run in subscription order.
//   - The subscriber list is snapshotted when Publish starts, so handlers
//     may subscribe or unsubscribe during dispatch without affecting the
//     event in flight.
//   - A handler that returns an error or panics is logged and skipped;
//     remaining handlers still receive the event.
package bus

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/solatis/experiences/internal/types"
)

// Handler receives one event.
type Handler func(types.Event) error

// Subscription identifies one registered handler.
type Subscription struct {
	bus *Bus
	typ types.EventType
	id  uint64
}

// Type returns the event type the subscription listens to.
func (s Subscription) Type() types.EventType {
	return s.typ
}

// Cancel removes the handler. Safe to call more than once.
func (s Subscription) Cancel() {
	if s.bus != nil {
		s.bus.Off(s)
	}
}

type subscriber struct {
	id      uint64
	handler Handler
}

// Bus is an in-process publish/subscribe registry keyed by event type.
type Bus struct {
	subs   map[types.EventType][]subscriber
	nextID uint64
	logger *slog.Logger
	mu     sync.RWMutex
}

// New creates an empty bus. A nil logger uses slog.Default.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[types.EventType][]subscriber),
		logger: logger,
	}
}

// On registers h for events of type t.
func (b *Bus) On(t types.EventType, h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subs[t] = append(b.subs[t], subscriber{id: b.nextID, handler: h})
	return Subscription{bus: b, typ: t, id: b.nextID}
}

// Off removes the subscription. No-op when already removed.
func (b *Bus) Off(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[sub.typ]
	i := slices.IndexFunc(list, func(s subscriber) bool { return s.id == sub.id })
	if i < 0 {
		return
	}
	// Copy so snapshots held by in-flight Publish calls stay intact.
	b.subs[sub.typ] = slices.Delete(slices.Clone(list), i, i+1)
}

// Count returns the number of handlers subscribed to t.
func (b *Bus) Count(t types.EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[t])
}

// Publish delivers ev to every handler subscribed to ev.Type and returns
// how many handlers completed without error.
func (b *Bus) Publish(ev types.Event) int {
	b.mu.RLock()
	snapshot := b.subs[ev.Type]
	b.mu.RUnlock()

	delivered := 0
	for _, s := range snapshot {
		if err := b.deliver(s.handler, ev); err != nil {
			b.logger.Warn("event handler failed",
				"event_type", ev.Type.Topic(),
				"experience_id", ev.ExperienceID,
				"err", err)
			continue
		}
		delivered++
	}
	return delivered
}

func (b *Bus) deliver(h Handler, ev types.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ev)
}
