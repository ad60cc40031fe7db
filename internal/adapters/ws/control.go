package ws

func (ctl *Controller) handlePing(c *Conn, env Envelope) {
	ctl.push(c, Envelope{Type: TypePong, Seq: env.Seq}, nil)
}
