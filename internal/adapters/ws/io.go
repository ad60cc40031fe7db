package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"crackthecode/internal/domain"
)

const writeTimeout = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *Conn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "ws").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "ws").Msg("writePump channel closed")
				return
			}
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump set deadline")
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump drives intent dispatch. Its exit is the transport's liveness
// verdict: once the read loop ends the connection is confirmed gone and the
// orchestrator applies the disconnect semantics.
func (ctl *Controller) readPump(ctx context.Context, cid domain.ConnID, c *Conn) {
	defer func() {
		log.Info().Str("module", "ws").Str("conn", string(cid)).Msg("readPump closing")
		c.Close()
		ctl.orch.OnDisconnect(cid, c)
		ctl.pushRoomList()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "ws").Str("conn", string(cid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.ws.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "ws").Str("conn", string(cid)).Msg("readPump read error")
				return
			}
			ctl.handleIntent(cid, c, data)
		}
	}
}

func (ctl *Controller) handleIntent(cid domain.ConnID, c *Conn, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad json frame")
		ctl.fail(c, 0, ReasonBadPayload)
		return
	}

	switch env.Type {
	case IntentCreateRoom:
		ctl.handleCreateRoom(cid, c, env)
	case IntentJoinRoom:
		ctl.handleJoinRoom(cid, c, env)
	case IntentRequestRooms:
		ctl.handleRequestRooms(cid, c, env)
	case IntentGetRoomState:
		ctl.handleGetRoomState(cid, c, env)
	case IntentSetCode:
		ctl.handleSetCode(cid, c, env)
	case IntentMakeGuess:
		ctl.handleMakeGuess(cid, c, env)
	case IntentRequestRematch:
		ctl.handleRequestRematch(cid, c, env)
	case IntentRespondRematch:
		ctl.handleRespondRematch(cid, c, env)
	case IntentSurrender:
		ctl.handleSurrender(cid, c, env)
	case IntentLeaveRoom:
		ctl.handleLeaveRoom(cid, c, env)
	case IntentPing:
		ctl.handlePing(c, env)
	default:
		log.Warn().Str("module", "ws").Str("type", env.Type).Msg("unknown intent")
		ctl.fail(c, env.Seq, ReasonUnknownIntent)
	}
}
