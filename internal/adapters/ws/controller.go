package ws

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"crackthecode/internal/app"
	"crackthecode/internal/domain"
	"crackthecode/internal/game"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller owns the websocket endpoint. It implements game.Notifier, so
// session transitions reach clients through the same path as direct replies.
type Controller struct {
	registry  *app.Registry
	orch      *app.Orchestrator
	rooms     *game.Manager
	readLimit int64
}

func NewController(registry *app.Registry, readLimit int64) *Controller {
	return &Controller{registry: registry, readLimit: readLimit}
}

// Attach completes wiring once the manager and orchestrator exist; the
// manager needs the controller as its notifier, hence the two-step setup.
func (ctl *Controller) Attach(orch *app.Orchestrator) {
	ctl.orch = orch
	ctl.rooms = orch.Rooms
}

// Send implements game.Notifier. Called under the session lock; TrySend is
// non-blocking so this preserves per-room event order without holding the
// lock across I/O.
func (ctl *Controller) Send(cid domain.ConnID, event string, payload any) {
	conn, ok := ctl.registry.Get(cid)
	if !ok {
		return
	}
	ctl.push(conn, Envelope{Type: event}, payload)
}

// HandleWS upgrades the request and runs the connection until either side
// closes. The client token cookie set by the router middleware is the
// connection identity.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	cid := domain.ConnID(c.GetString("client_token"))
	log.Info().Str("module", "ws").Str("conn", string(cid)).Msg("new WS connection")

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade failed")
		return
	}

	if ctl.readLimit > 0 {
		sock.SetReadLimit(ctl.readLimit)
	}

	conn := newConn(sock)
	ctx, cancel := context.WithCancel(ctx)
	ctl.registry.Bind(cid, conn, cancel)

	ctl.push(conn, Envelope{Type: TypeWelcome}, WelcomePayload{ConnectionID: cid})

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cid, conn)
}

// push marshals payload into the envelope and queues it on the connection.
func (ctl *Controller) push(conn app.Pusher, env Envelope, payload any) {
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Str("module", "ws").Str("type", env.Type).Msg("marshal payload")
			return
		}
		env.Data = data
	}
	frame, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Str("type", env.Type).Msg("marshal envelope")
		return
	}
	if err := conn.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("type", env.Type).Msg("frame dropped")
	}
}

func (ctl *Controller) ack(conn *Conn, seq uint64, payload any) {
	ctl.push(conn, Envelope{Type: TypeAck, Seq: seq}, payload)
}

func (ctl *Controller) fail(conn *Conn, seq uint64, reason string) {
	ctl.push(conn, Envelope{Type: TypeError, Seq: seq}, ErrorPayload{Reason: reason})
}

func (ctl *Controller) failErr(conn *Conn, seq uint64, err error) {
	ctl.fail(conn, seq, reasonFor(err))
}

// PushRoomList fans the current directory out to every lobby subscriber.
// Exposed for the janitor, which evicts rooms outside any intent.
func (ctl *Controller) PushRoomList() { ctl.pushRoomList() }

func (ctl *Controller) pushRoomList() {
	list := ctl.rooms.List()
	data, err := json.Marshal(list)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("marshal room list")
		return
	}
	frame, err := json.Marshal(Envelope{Type: game.EvtRoomList, Data: data})
	if err != nil {
		return
	}
	for _, sub := range ctl.registry.LobbySubscribers() {
		if err := sub.TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "ws").Msg("room list push dropped")
		}
	}
}
