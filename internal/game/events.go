package game

import "crackthecode/internal/domain"

// Server-pushed event names. Intents (client to server) live in the ws adapter.
const (
	EvtRoomUpdate          = "roomUpdate"
	EvtRoomList            = "roomList"
	EvtPlayerJoined        = "playerJoined"
	EvtPlayerLeft          = "playerLeft"
	EvtRematchRequested    = "rematchRequested"
	EvtRematchAccepted     = "rematchAccepted"
	EvtRematchDeclined     = "rematchDeclined"
	EvtSurrendered         = "surrendered"
	EvtOpponentSurrendered = "opponentSurrendered"
)

type PlayerJoinedPayload struct {
	Name string `json:"name"`
}

type PlayerLeftPayload struct {
	Name        string `json:"name"`
	Surrendered bool   `json:"surrendered"`
}

type OpponentSurrenderedPayload struct {
	Name string `json:"name"`
}

// Notifier delivers a session event to one connection. Implementations must
// not block: the session calls this while holding its own lock so that every
// member observes events in the order the mutator applied them.
type Notifier interface {
	Send(conn domain.ConnID, event string, payload any)
}
