package ws

import (
	"encoding/json"

	"crackthecode/internal/domain"
)

func (ctl *Controller) handleRequestRematch(cid domain.ConnID, c *Conn, env Envelope) {
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
	if err := s.RequestRematch(cid); err != nil {
		ctl.failErr(c, env.Seq, err)
		return
	}
	ctl.ack(c, env.Seq, nil)
	ctl.pushRoomList()
}

func (ctl *Controller) handleRespondRematch(cid domain.ConnID, c *Conn, env Envelope) {
	var p RespondRematchPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		ctl.fail(c, env.Seq, ReasonBadPayload)
		return
	}
	s, ok := ctl.rooms.Get(domain.RoomID(p.RoomID))
	if !ok {
		ctl.fail(c, env.Seq, ReasonRoomNotFound)
		return
	}
	if err := s.RespondRematch(cid, p.Accept); err != nil {
		ctl.failErr(c, env.Seq, err)
		return
	}
	ctl.ack(c, env.Seq, nil)
	ctl.pushRoomList()
}
