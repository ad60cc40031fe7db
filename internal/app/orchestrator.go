package app

import (
	"github.com/rs/zerolog/log"

	"crackthecode/internal/domain"
	"crackthecode/internal/game"
)

// Orchestrator coordinates registry bookkeeping with room membership. All
// game-rule decisions stay inside game.Session; this layer only routes.
type Orchestrator struct {
	Registry *Registry
	Rooms    *game.Manager
}

// CreateRoom allocates a room with the caller as host and records the
// association in the registry.
func (o *Orchestrator) CreateRoom(cid domain.ConnID, name string) *game.Session {
	s := o.Rooms.Create(cid, name)
	o.Registry.SetRoom(cid, s.ID())
	return s
}

// JoinRoom seats the caller in an existing room.
func (o *Orchestrator) JoinRoom(cid domain.ConnID, roomID domain.RoomID, name string) (*game.Session, error) {
	s, err := o.Rooms.Join(roomID, cid, name)
	if err != nil {
		return nil, err
	}
	o.Registry.SetRoom(cid, roomID)
	return s, nil
}

// LeaveRoom handles an explicit leave intent. The session decides whether
// the departure carries surrender semantics.
func (o *Orchestrator) LeaveRoom(cid domain.ConnID) {
	roomID, ok := o.Registry.RoomOf(cid)
	if !ok {
		return
	}
	o.leave(cid, roomID)
}

// OnDisconnect is called by the transport once its read loop ends. The exit
// only counts while conn still owns the registry entry: a socket displaced by
// a reconnect must not surrender the player out of their room or unbind the
// fresh connection. With an opponent present the session attributes a
// surrender to the vanished player; a solo room is vacated silently.
func (o *Orchestrator) OnDisconnect(cid domain.ConnID, conn Pusher) {
	if !o.Registry.Owns(cid, conn) {
		log.Info().Str("module", "app.orchestrator").Str("conn", string(cid)).Msg("stale disconnect ignored")
		return
	}
	if roomID, ok := o.Registry.RoomOf(cid); ok {
		o.leave(cid, roomID)
	}
	o.Registry.Unbind(cid)
	log.Info().Str("module", "app.orchestrator").Str("conn", string(cid)).Msg("disconnected")
}

func (o *Orchestrator) leave(cid domain.ConnID, roomID domain.RoomID) {
	if s, ok := o.Rooms.Get(roomID); ok {
		if empty := s.Leave(cid); empty {
			o.Rooms.Remove(roomID)
		}
	}
	o.Registry.ClearRoom(cid)
}
