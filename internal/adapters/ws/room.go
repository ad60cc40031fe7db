package ws

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"crackthecode/internal/domain"
	"crackthecode/internal/game"
)

func (ctl *Controller) handleCreateRoom(cid domain.ConnID, c *Conn, env Envelope) {
	var p CreateRoomPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad createRoom payload")
		ctl.fail(c, env.Seq, ReasonBadPayload)
		return
	}
	if p.Name == "" {
		ctl.fail(c, env.Seq, ReasonInvalidName)
		return
	}
	if _, ok := ctl.registry.RoomOf(cid); ok {
		ctl.fail(c, env.Seq, ReasonAlreadyInRoom)
		return
	}

	s := ctl.orch.CreateRoom(cid, p.Name)
	log.Info().Str("module", "ws").Str("conn", string(cid)).Str("room", string(s.ID())).Msg("room created")
	ctl.ack(c, env.Seq, CreateRoomAck{RoomID: s.ID(), PlayerSlot: 1})
	ctl.pushRoomList()
}

func (ctl *Controller) handleJoinRoom(cid domain.ConnID, c *Conn, env Envelope) {
	var p JoinRoomPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad joinRoom payload")
		ctl.fail(c, env.Seq, ReasonBadPayload)
		return
	}
	if p.Name == "" {
		ctl.fail(c, env.Seq, ReasonInvalidName)
		return
	}
	// A seated player cannot slip into a second room and strand the first one.
	if _, ok := ctl.registry.RoomOf(cid); ok {
		ctl.fail(c, env.Seq, ReasonAlreadyInRoom)
		return
	}

	if _, err := ctl.orch.JoinRoom(cid, domain.RoomID(p.RoomID), p.Name); err != nil {
		ctl.failErr(c, env.Seq, err)
		return
	}
	log.Info().Str("module", "ws").Str("conn", string(cid)).Str("room", p.RoomID).Msg("room joined")
	ctl.ack(c, env.Seq, JoinRoomAck{PlayerSlot: 2})
	ctl.pushRoomList()
}

// handleRequestRooms subscribes the connection to directory pushes and
// answers with the current listing right away.
func (ctl *Controller) handleRequestRooms(cid domain.ConnID, c *Conn, env Envelope) {
	ctl.registry.SetLobby(cid, true)
	ctl.ack(c, env.Seq, ctl.rooms.List())
}

// handleGetRoomState is the full-resync path used after join or reconnect:
// events may have been missed, so the client asks for the whole snapshot
// instead of trusting its incremental view.
func (ctl *Controller) handleGetRoomState(cid domain.ConnID, c *Conn, env Envelope) {
	var p RoomRefPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		ctl.fail(c, env.Seq, ReasonBadPayload)
		return
	}
	s, ok := ctl.rooms.Get(domain.RoomID(p.RoomID))
	if !ok {
		ctl.fail(c, env.Seq, ReasonRoomNotFound)
		return
	}
	snap := s.SnapshotFor(cid)
	ctl.ack(c, env.Seq, snap)
	ctl.push(c, Envelope{Type: game.EvtRoomUpdate}, snap)
}

func (ctl *Controller) handleLeaveRoom(cid domain.ConnID, c *Conn, env Envelope) {
	ctl.orch.LeaveRoom(cid)
	ctl.ack(c, env.Seq, nil)
	ctl.pushRoomList()
}
