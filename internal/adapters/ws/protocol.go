// Package ws is the server-side session event gateway: one websocket per
// client, JSON envelopes dispatched on their type field. Intents may carry a
// client-chosen seq; the reply frame echoes it so the client can await the
// outcome of exactly the intent it submitted. Rejections only ever go to the
// sender, never to the opponent.
package ws

import (
	"encoding/json"
	"errors"

	"crackthecode/internal/domain"
	"crackthecode/internal/game"
)

// Intent names (client to server).
const (
	IntentCreateRoom     = "createRoom"
	IntentJoinRoom       = "joinRoom"
	IntentRequestRooms   = "requestRooms"
	IntentGetRoomState   = "getRoomState"
	IntentSetCode        = "setCode"
	IntentMakeGuess      = "makeGuess"
	IntentRequestRematch = "requestRematch"
	IntentRespondRematch = "respondRematch"
	IntentSurrender      = "surrender"
	IntentLeaveRoom      = "leaveRoom"
	IntentPing           = "ping"
)

// Frame types produced by the gateway itself; game events carry the names
// from the game package.
const (
	TypeAck     = "ack"
	TypeError   = "error"
	TypePong    = "pong"
	TypeWelcome = "welcome"
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Seq  uint64          `json:"seq,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type CreateRoomPayload struct {
	Name string `json:"name"`
}

type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

// RoomRefPayload is shared by intents that only reference a room.
type RoomRefPayload struct {
	RoomID string `json:"roomId"`
}

type SetCodePayload struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}

type MakeGuessPayload struct {
	RoomID string `json:"roomId"`
	Guess  string `json:"guess"`
}

type RespondRematchPayload struct {
	RoomID string `json:"roomId"`
	Accept bool   `json:"accept"`
}

type CreateRoomAck struct {
	RoomID     domain.RoomID `json:"roomId"`
	PlayerSlot int           `json:"playerSlot"`
}

type JoinRoomAck struct {
	PlayerSlot int `json:"playerSlot"`
}

type GuessAck struct {
	Results []domain.Verdict `json:"results"`
}

type WelcomePayload struct {
	ConnectionID domain.ConnID `json:"connectionId"`
}

type ErrorPayload struct {
	Reason string `json:"reason"`
}

// Rejection reasons carried on error frames.
const (
	ReasonBadPayload       = "bad_payload"
	ReasonInvalidName      = "invalid_name"
	ReasonUnknownIntent    = "unknown_intent"
	ReasonAlreadyInRoom    = "already_in_room"
	ReasonInvalidCode      = "invalid_code"
	ReasonInvalidGuess     = "invalid_guess"
	ReasonRoomNotFound     = "room_not_found"
	ReasonRoomFull         = "room_full"
	ReasonNotInRoom        = "not_in_room"
	ReasonNotYourTurn      = "not_your_turn"
	ReasonCodeAlreadySet   = "code_already_set"
	ReasonWrongPhase       = "wrong_phase"
	ReasonNoRematchPending = "no_rematch_pending"
	ReasonInternal         = "internal_error"
)

// reasonFor maps a session error to its wire reason.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCode):
		return ReasonInvalidCode
	case errors.Is(err, domain.ErrInvalidGuess):
		return ReasonInvalidGuess
	case errors.Is(err, game.ErrRoomNotFound):
		return ReasonRoomNotFound
	case errors.Is(err, game.ErrRoomFull):
		return ReasonRoomFull
	case errors.Is(err, game.ErrNotInRoom):
		return ReasonNotInRoom
	case errors.Is(err, game.ErrNotYourTurn):
		return ReasonNotYourTurn
	case errors.Is(err, game.ErrCodeAlreadySet):
		return ReasonCodeAlreadySet
	case errors.Is(err, game.ErrWrongPhase):
		return ReasonWrongPhase
	case errors.Is(err, game.ErrNoRematchPending):
		return ReasonNoRematchPending
	default:
		return ReasonInternal
	}
}
