// Package session tracks the server's live protocol connections: each gets a
// monotonically-assigned client ordinal and a UUID, and lifecycle changes are
// published to subscribers.
package session

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Client is one admitted connection. It is created on successful handshake
// and destroyed when the transport closes; the Registry owns it exclusively.
type Client struct {
	ID          uuid.UUID
	Ordinal     int64
	Transport   string // "websocket", "unix" or "stdio"
	Remote      string
	ConnectedAt time.Time
}

// Registry holds the live connection set and hands out client ordinals.
type Registry struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
	ordinal atomic.Int64
	events  *Broadcaster
}

// NewRegistry returns an empty registry. Ordinals start at 1.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[uuid.UUID]*Client),
		events:  NewBroadcaster(),
	}
}

// Add admits a connection: assigns the next ordinal, records the client, and
// publishes a connection.opened event carrying the new live count.
func (r *Registry) Add(transport, remote string) *Client {
	c := &Client{
		ID:          uuid.New(),
		Ordinal:     r.ordinal.Add(1),
		Transport:   transport,
		Remote:      remote,
		ConnectedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.clients[c.ID] = c
	count := len(r.clients)
	r.mu.Unlock()

	r.events.Publish(Event{
		Type:        EventOpened,
		Client:      *c,
		Connections: count,
		Time:        time.Now().UTC(),
	})
	return c
}

// Remove drops a connection and publishes a connection.closed event. Removing
// an unknown id is a no-op.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	c, ok := r.clients[id]
	if ok {
		delete(r.clients, id)
	}
	count := len(r.clients)
	r.mu.Unlock()

	if !ok {
		return
	}
	r.events.Publish(Event{
		Type:        EventClosed,
		Client:      *c,
		Connections: count,
		Time:        time.Now().UTC(),
	})
}

// Count reports the live connection count.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Clients returns the live connections sorted by ordinal.
func (r *Registry) Clients() []*Client {
	r.mu.RLock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out
}

// Events exposes the lifecycle broadcaster for subscription.
func (r *Registry) Events() *Broadcaster {
	return r.events
}
