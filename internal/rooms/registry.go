package rooms

import (
	"sync"
	"time"

	"github.com/palafeltre/matchcast/internal/telemetry"
)

// Conn is one subscriber connection. Implementations must tolerate Send and
// Close being called from different goroutines.
type Conn interface {
	ID() string
	Send(data []byte) error
	Close() error
}

// Registry is the per-topic pub/sub fabric. Rooms are created on first
// subscribe and never destroyed; broadcasting to an unknown or empty room is
// a no-op. Membership is guarded by the registry's own lock, which is never
// held across a network send.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Conn
	bridge *Bridge
}

// NewRegistry creates a registry with the given room names eagerly registered.
func NewRegistry(roomNames ...string) *Registry {
	r := &Registry{rooms: make(map[string]map[string]Conn)}
	for _, name := range roomNames {
		r.rooms[name] = make(map[string]Conn)
	}
	return r
}

// AttachBridge routes broadcasts through a cross-instance bridge. Must be
// called before any traffic flows.
func (r *Registry) AttachBridge(b *Bridge) {
	r.bridge = b
}

// Subscribe adds the connection to the named room, creating the room if
// needed. Subscribing the same connection twice is idempotent.
func (r *Registry) Subscribe(room string, c Conn) {
	r.mu.Lock()
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]Conn)
		r.rooms[room] = members
	}
	members[c.ID()] = c
	count := len(members)
	r.mu.Unlock()

	telemetry.Debugf("rooms: subscribed id=%s room=%s members=%d", c.ID(), room, count)
}

// Unsubscribe removes the connection if present. A no-op for unknown rooms
// or connections.
func (r *Registry) Unsubscribe(room string, c Conn) {
	r.mu.Lock()
	members, ok := r.rooms[room]
	if ok {
		delete(members, c.ID())
	}
	r.mu.Unlock()
}

// Broadcast sends the message to every current member of the room. When a
// bridge is attached the message travels through it so every instance
// delivers; otherwise delivery is local.
func (r *Registry) Broadcast(room string, message []byte) {
	telemetry.Metrics.Broadcasts.Inc()
	if r.bridge != nil {
		r.bridge.Publish(room, message)
		return
	}
	r.deliver(room, message)
}

// deliver fans the message out to a snapshot of the room's membership.
// Connections that fail to accept the message are dropped from the room and
// closed; remaining members still receive the message.
func (r *Registry) deliver(room string, message []byte) {
	start := time.Now()

	r.mu.RLock()
	members := r.rooms[room]
	targets := make([]Conn, 0, len(members))
	for _, c := range members {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(message); err != nil {
			telemetry.Metrics.SendFailures.Inc()
			telemetry.Warnf("rooms: dropping subscriber id=%s room=%s: %v", c.ID(), room, err)
			r.Unsubscribe(room, c)
			_ = c.Close()
		}
	}

	telemetry.Metrics.BroadcastLatency.Record(time.Since(start))
}

// Count returns the current membership size of a room.
func (r *Registry) Count(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// Rooms returns the known room names.
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.rooms))
	for name := range r.rooms {
		out = append(out, name)
	}
	return out
}
