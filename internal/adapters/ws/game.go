package ws

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"crackthecode/internal/domain"
	"crackthecode/internal/game"
)

func (ctl *Controller) handleSetCode(cid domain.ConnID, c *Conn, env Envelope) {
	var p SetCodePayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		ctl.fail(c, env.Seq, ReasonBadPayload)
		return
	}
	s, ok := ctl.rooms.Get(domain.RoomID(p.RoomID))
	if !ok {
		ctl.fail(c, env.Seq, ReasonRoomNotFound)
		return
	}
	if err := s.SetCode(cid, p.Code); err != nil {
		ctl.failErr(c, env.Seq, err)
		return
	}
	ctl.ack(c, env.Seq, nil)
}

func (ctl *Controller) handleMakeGuess(cid domain.ConnID, c *Conn, env Envelope) {
	var p MakeGuessPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		ctl.fail(c, env.Seq, ReasonBadPayload)
		return
	}
	s, ok := ctl.rooms.Get(domain.RoomID(p.RoomID))
	if !ok {
		ctl.fail(c, env.Seq, ReasonRoomNotFound)
		return
	}
	results, err := s.MakeGuess(cid, p.Guess)
	if err != nil {
		ctl.failErr(c, env.Seq, err)
		return
	}
	ctl.ack(c, env.Seq, GuessAck{Results: results})

	// A winning guess flips the room to finished, which changes the directory.
	if s.Phase() == game.PhaseRoundOver {
		ctl.pushRoomList()
	}
}

func (ctl *Controller) handleSurrender(cid domain.ConnID, c *Conn, env Envelope) {
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
	if err := s.Surrender(cid); err != nil {
		ctl.failErr(c, env.Seq, err)
		return
	}
	log.Info().Str("module", "ws").Str("conn", string(cid)).Str("room", p.RoomID).Msg("surrendered")
	ctl.ack(c, env.Seq, nil)
	ctl.pushRoomList()
}
