// Package client is the client half of the session protocol: it owns one
// websocket to the server, turns intents into awaitable requests, and keeps
// a local read-only projection of the room that is always replaced wholesale
// by the latest authoritative snapshot, never merged field by field.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"crackthecode/internal/adapters/ws"
	"crackthecode/internal/domain"
	"crackthecode/internal/game"
)

var ErrClosed = errors.New("gateway closed")

// ServerError is a rejection delivered on the ack channel of an intent.
type ServerError struct {
	Reason string
}

func (e *ServerError) Error() string {
	return "server rejected intent: " + e.Reason
}

// Event is a server push forwarded to subscribers.
type Event struct {
	Type string
	Data json.RawMessage
}

// Handle identifies one subscription; Unsubscribe with it when done.
type Handle int

type response struct {
	data json.RawMessage
	err  error
}

// Gateway is the client-side session event gateway. Safe for concurrent use.
type Gateway struct {
	conn *websocket.Conn

	writeMu sync.Mutex // serializes WriteMessage

	mu       sync.Mutex
	seq      uint64
	pending  map[uint64]chan response
	subs     map[Handle]func(Event)
	nextSub  Handle
	connID   domain.ConnID
	view     *domain.RoomSnapshot
	rooms    []domain.RoomSummary
	closed   bool

	done chan struct{}
}

// Dial connects and consumes the welcome frame so the caller immediately
// knows its connection identity.
func Dial(ctx context.Context, url string) (*Gateway, error) {
	return DialHeader(ctx, url, nil)
}

// DialHeader is Dial with extra request headers, typically the client token
// cookie when resuming an existing identity after a reconnect.
func DialHeader(ctx context.Context, url string, header http.Header) (*Gateway, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	g := &Gateway{
		conn:    conn,
		pending: make(map[uint64]chan response),
		subs:    make(map[Handle]func(Event)),
		done:    make(chan struct{}),
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read welcome: %w", err)
	}
	var env ws.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type != ws.TypeWelcome {
		conn.Close()
		return nil, fmt.Errorf("unexpected first frame %q", env.Type)
	}
	var welcome ws.WelcomePayload
	if err := json.Unmarshal(env.Data, &welcome); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bad welcome payload: %w", err)
	}
	g.connID = welcome.ConnectionID

	go g.readLoop()
	return g, nil
}

// ConnID is the identity the server knows this connection by; it is what
// roomUpdate.winnerId refers to.
func (g *Gateway) ConnID() domain.ConnID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connID
}

// View returns a copy of the latest room snapshot, or nil before the first
// roomUpdate arrives.
func (g *Gateway) View() *domain.RoomSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return cloneSnapshot(g.view)
}

// Rooms returns the latest directory pushed by the server.
func (g *Gateway) Rooms() []domain.RoomSummary {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.RoomSummary(nil), g.rooms...)
}

// Subscribe registers a callback for every server push. Callbacks run on the
// read loop goroutine; do not block in them.
func (g *Gateway) Subscribe(fn func(Event)) Handle {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextSub++
	h := g.nextSub
	g.subs[h] = fn
	return h
}

func (g *Gateway) Unsubscribe(h Handle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.subs, h)
}

func (g *Gateway) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.mu.Unlock()
	return g.conn.Close()
}

// CreateRoom opens a fresh room with the caller as host.
func (g *Gateway) CreateRoom(ctx context.Context, name string) (domain.RoomID, int, error) {
	data, err := g.request(ctx, ws.IntentCreateRoom, ws.CreateRoomPayload{Name: name})
	if err != nil {
		return "", 0, err
	}
	var ack ws.CreateRoomAck
	if err := json.Unmarshal(data, &ack); err != nil {
		return "", 0, fmt.Errorf("bad createRoom ack: %w", err)
	}
	return ack.RoomID, ack.PlayerSlot, nil
}

// JoinRoom takes the second seat in an existing room.
func (g *Gateway) JoinRoom(ctx context.Context, roomID domain.RoomID, name string) (int, error) {
	data, err := g.request(ctx, ws.IntentJoinRoom, ws.JoinRoomPayload{RoomID: string(roomID), Name: name})
	if err != nil {
		return 0, err
	}
	var ack ws.JoinRoomAck
	if err := json.Unmarshal(data, &ack); err != nil {
		return 0, fmt.Errorf("bad joinRoom ack: %w", err)
	}
	return ack.PlayerSlot, nil
}

// RequestRooms subscribes to directory pushes and returns the current list.
func (g *Gateway) RequestRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	data, err := g.request(ctx, ws.IntentRequestRooms, nil)
	if err != nil {
		return nil, err
	}
	var list []domain.RoomSummary
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("bad room list: %w", err)
	}
	g.mu.Lock()
	g.rooms = list
	g.mu.Unlock()
	return list, nil
}

// RoomState fetches the full authoritative snapshot, the resync path after
// join or reconnect.
func (g *Gateway) RoomState(ctx context.Context, roomID domain.RoomID) (*domain.RoomSnapshot, error) {
	data, err := g.request(ctx, ws.IntentGetRoomState, ws.RoomRefPayload{RoomID: string(roomID)})
	if err != nil {
		return nil, err
	}
	var snap domain.RoomSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("bad room snapshot: %w", err)
	}
	g.mu.Lock()
	g.view = &snap
	g.mu.Unlock()
	return cloneSnapshot(&snap), nil
}

func (g *Gateway) SetCode(ctx context.Context, roomID domain.RoomID, code string) error {
	_, err := g.request(ctx, ws.IntentSetCode, ws.SetCodePayload{RoomID: string(roomID), Code: code})
	return err
}

func (g *Gateway) MakeGuess(ctx context.Context, roomID domain.RoomID, guess string) ([]domain.Verdict, error) {
	data, err := g.request(ctx, ws.IntentMakeGuess, ws.MakeGuessPayload{RoomID: string(roomID), Guess: guess})
	if err != nil {
		return nil, err
	}
	var ack ws.GuessAck
	if err := json.Unmarshal(data, &ack); err != nil {
		return nil, fmt.Errorf("bad guess ack: %w", err)
	}
	return ack.Results, nil
}

func (g *Gateway) RequestRematch(ctx context.Context, roomID domain.RoomID) error {
	_, err := g.request(ctx, ws.IntentRequestRematch, ws.RoomRefPayload{RoomID: string(roomID)})
	return err
}

func (g *Gateway) RespondRematch(ctx context.Context, roomID domain.RoomID, accept bool) error {
	_, err := g.request(ctx, ws.IntentRespondRematch, ws.RespondRematchPayload{RoomID: string(roomID), Accept: accept})
	return err
}

func (g *Gateway) Surrender(ctx context.Context, roomID domain.RoomID) error {
	_, err := g.request(ctx, ws.IntentSurrender, ws.RoomRefPayload{RoomID: string(roomID)})
	return err
}

func (g *Gateway) LeaveRoom(ctx context.Context, roomID domain.RoomID) error {
	_, err := g.request(ctx, ws.IntentLeaveRoom, ws.RoomRefPayload{RoomID: string(roomID)})
	return err
}

// request sends one intent and blocks until its ack, its rejection, ctx
// cancellation or connection loss.
func (g *Gateway) request(ctx context.Context, intent string, payload any) (json.RawMessage, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, ErrClosed
	}
	g.seq++
	seq := g.seq
	ch := make(chan response, 1)
	g.pending[seq] = ch
	g.mu.Unlock()

	env := ws.Envelope{Type: intent, Seq: seq}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			g.dropPending(seq)
			return nil, err
		}
		env.Data = data
	}
	frame, err := json.Marshal(env)
	if err != nil {
		g.dropPending(seq)
		return nil, err
	}

	g.writeMu.Lock()
	err = g.conn.WriteMessage(websocket.TextMessage, frame)
	g.writeMu.Unlock()
	if err != nil {
		g.dropPending(seq)
		return nil, fmt.Errorf("send %s: %w", intent, err)
	}

	select {
	case <-ctx.Done():
		g.dropPending(seq)
		return nil, ctx.Err()
	case <-g.done:
		return nil, ErrClosed
	case resp := <-ch:
		return resp.data, resp.err
	}
}

func (g *Gateway) dropPending(seq uint64) {
	g.mu.Lock()
	delete(g.pending, seq)
	g.mu.Unlock()
}

func (g *Gateway) readLoop() {
	defer close(g.done)
	for {
		_, data, err := g.conn.ReadMessage()
		if err != nil {
			g.mu.Lock()
			g.closed = true
			for seq, ch := range g.pending {
				ch <- response{err: ErrClosed}
				delete(g.pending, seq)
			}
			g.mu.Unlock()
			log.Info().Err(err).Str("module", "client").Msg("gateway read loop closed")
			return
		}
		var env ws.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Error().Err(err).Str("module", "client").Msg("bad frame from server")
			continue
		}
		g.dispatch(env)
	}
}

func (g *Gateway) dispatch(env ws.Envelope) {
	switch env.Type {
	case ws.TypeAck, ws.TypePong:
		g.resolve(env.Seq, response{data: env.Data})
		return
	case ws.TypeError:
		var p ws.ErrorPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			p.Reason = ws.ReasonInternal
		}
		if env.Seq != 0 {
			g.resolve(env.Seq, response{err: &ServerError{Reason: p.Reason}})
			return
		}
		log.Warn().Str("module", "client").Str("reason", p.Reason).Msg("unsolicited error from server")
		return
	}

	g.mu.Lock()
	switch env.Type {
	case game.EvtRoomUpdate:
		var snap domain.RoomSnapshot
		if err := json.Unmarshal(env.Data, &snap); err == nil {
			g.view = &snap // full replacement, see package doc
		}
	case game.EvtRoomList:
		var list []domain.RoomSummary
		if err := json.Unmarshal(env.Data, &list); err == nil {
			g.rooms = list
		}
	case ws.TypeWelcome:
		var welcome ws.WelcomePayload
		if err := json.Unmarshal(env.Data, &welcome); err == nil {
			g.connID = welcome.ConnectionID
		}
	}
	subs := make([]func(Event), 0, len(g.subs))
	for _, fn := range g.subs {
		subs = append(subs, fn)
	}
	g.mu.Unlock()

	evt := Event{Type: env.Type, Data: env.Data}
	for _, fn := range subs {
		fn(evt)
	}
}

func (g *Gateway) resolve(seq uint64, resp response) {
	if seq == 0 {
		return
	}
	g.mu.Lock()
	ch, ok := g.pending[seq]
	if ok {
		delete(g.pending, seq)
	}
	g.mu.Unlock()
	if ok {
		ch <- resp
	}
}

func cloneSnapshot(snap *domain.RoomSnapshot) *domain.RoomSnapshot {
	if snap == nil {
		return nil
	}
	out := *snap
	out.Player1 = clonePlayer(snap.Player1)
	out.Player2 = clonePlayer(snap.Player2)
	return &out
}

func clonePlayer(p *domain.Player) *domain.Player {
	if p == nil {
		return nil
	}
	out := *p
	out.History = append([]domain.GuessAttempt(nil), p.History...)
	return &out
}
