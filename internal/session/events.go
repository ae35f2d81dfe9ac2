package session

import (
	"sync"
	"time"
)

// EventType is the discriminator for connection lifecycle events.
type EventType string

const (
	EventOpened EventType = "connection.opened"
	EventClosed EventType = "connection.closed"
)

// Event records one connection lifecycle change. Connections is the live
// count after the change took effect.
type Event struct {
	Type        EventType
	Client      Client
	Connections int
	Time        time.Time
}

// Broadcaster fans out lifecycle events to subscribers. Sends never block:
// a subscriber whose channel is full misses the event.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	nextID uint64
}

// NewBroadcaster creates a ready-to-use Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]chan Event)}
}

// Subscribe registers a listener and returns its id and channel. bufSize
// controls how many events may queue before drops begin.
func (b *Broadcaster) Subscribe(bufSize int) (uint64, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, bufSize)
	b.subs[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a listener. Unknown ids are ignored.
func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		close(ch)
		delete(b.subs, id)
	}
}

// Publish delivers e to every subscriber, dropping it for any whose channel
// is full.
func (b *Broadcaster) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default: // drop for slow subscribers
		}
	}
}
