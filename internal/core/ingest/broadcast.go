package ingest

import (
	"log/slog"
	"sync"

	"github.com/swooby/alfredd/internal/core/event"
)

// broadcaster fans emitted events out to independent subscribers. Each
// subscriber gets its own bounded channel; a slow consumer loses events
// (drop-newest) rather than back-pressuring the emit path.
type broadcaster struct {
	mu     sync.Mutex
	buffer int
	subs   map[int]chan event.Event
	nextID int
	closed bool
}

func newBroadcaster(buffer int) *broadcaster {
	return &broadcaster{
		buffer: buffer,
		subs:   make(map[int]chan event.Event),
	}
}

func (b *broadcaster) subscribe() (<-chan event.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan event.Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (b *broadcaster) publish(ev event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			slog.Debug("[Ingest] Subscriber buffer full, dropping event",
				"event_id", ev.EventID)
		}
	}
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
