// Package app wires live connections to rooms: the registry tracks which
// connection is bound to which transport and room, the orchestrator routes
// lifecycle events between transport and game state.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"crackthecode/internal/domain"
)

// Pusher is the transport endpoint for one connection. Owned by the adapter;
// the adapter must Close() it.
type Pusher interface {
	TrySend([]byte) error
	Close()
}

type connEntry struct {
	Conn    Pusher
	Room    domain.RoomID
	InLobby bool
	Cancel  context.CancelFunc
}

// Registry maps connection ids to their transport, room association and
// lobby-subscription flag. One entry per live websocket.
type Registry struct {
	mu      sync.RWMutex
	entries map[domain.ConnID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[domain.ConnID]*connEntry)}
}

// Bind registers the transport for a connection id. The id is the stable
// client token, so a reconnect arrives under the same id: the previous
// transport is shut down and the room binding carries over to the new one.
func (r *Registry) Bind(cid domain.ConnID, conn Pusher, cancel context.CancelFunc) {
	r.mu.Lock()
	old := r.entries[cid]
	entry := &connEntry{Conn: conn, Cancel: cancel}
	if old != nil {
		entry.Room = old.Room
	}
	r.entries[cid] = entry
	r.mu.Unlock()

	if old != nil {
		if old.Cancel != nil {
			old.Cancel()
		}
		old.Conn.Close()
		log.Info().Str("module", "app.registry").Str("conn", string(cid)).Msg("stale transport displaced")
		return
	}
	log.Info().Str("module", "app.registry").Str("conn", string(cid)).Msg("connection bound")
}

func (r *Registry) Unbind(cid domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[cid]; ok {
		if e.Cancel != nil {
			e.Cancel()
		}
		delete(r.entries, cid)
	}
	log.Info().Str("module", "app.registry").Str("conn", string(cid)).Msg("connection unbound")
}

// Owns reports whether conn is still the live transport for cid. A transport
// displaced by a reconnect no longer owns its entry and must not run
// disconnect cleanup on the player who just came back.
func (r *Registry) Owns(cid domain.ConnID, conn Pusher) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[cid]
	return ok && e.Conn == conn
}

func (r *Registry) Get(cid domain.ConnID) (Pusher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[cid]; ok {
		return e.Conn, true
	}
	return nil, false
}

func (r *Registry) SetRoom(cid domain.ConnID, room domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[cid]; ok {
		e.Room = room
		e.InLobby = false
	}
}

func (r *Registry) ClearRoom(cid domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[cid]; ok {
		e.Room = ""
	}
}

func (r *Registry) RoomOf(cid domain.ConnID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[cid]
	if !ok || e.Room == "" {
		return "", false
	}
	return e.Room, true
}

// SetLobby marks a connection as a directory subscriber; it will receive
// roomList pushes until it joins a room or disconnects.
func (r *Registry) SetLobby(cid domain.ConnID, in bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[cid]; ok {
		e.InLobby = in
	}
}

// LobbySubscribers returns the transports currently watching the directory.
func (r *Registry) LobbySubscribers() []Pusher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Pusher, 0, len(r.entries))
	for _, e := range r.entries {
		if e.InLobby {
			out = append(out, e.Conn)
		}
	}
	return out
}
