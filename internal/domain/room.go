package domain

type (
	RoomID string
	ConnID string
)

// PlayerSlot identifies a seat inside a room.
type PlayerSlot string

const (
	SlotPlayer1 PlayerSlot = "player1"
	SlotPlayer2 PlayerSlot = "player2"
)

// Other returns the opposing seat.
func (s PlayerSlot) Other() PlayerSlot {
	if s == SlotPlayer1 {
		return SlotPlayer2
	}
	return SlotPlayer1
}

// RoomStatus is the directory-visible lifecycle of a room.
type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusStarted  RoomStatus = "started"
	StatusFinished RoomStatus = "finished"
)

// GuessAttempt records one accepted guess and its verdicts. Attempts are
// append-only; an attempt is never edited or removed once recorded.
type GuessAttempt struct {
	Guess   string    `json:"guess"`
	Results []Verdict `json:"results"`
}

// Player is the wire view of one seated player. Code is omitted (or redacted
// server-side) until it may be revealed to the recipient.
type Player struct {
	ID      ConnID         `json:"id"`
	Name    string         `json:"name"`
	Code    Code           `json:"code,omitempty"`
	History []GuessAttempt `json:"history"`
}

// Score holds per-seat round wins. Entries only ever grow within a room's
// lifetime, rematches included.
type Score struct {
	Player1 int `json:"player1"`
	Player2 int `json:"player2"`
}

// RoomSnapshot is the full authoritative state pushed to room members.
// Clients replace their local copy wholesale, never merge field by field.
type RoomSnapshot struct {
	ID          RoomID     `json:"id"`
	Status      RoomStatus `json:"status"`
	Player1     *Player    `json:"player1,omitempty"`
	Player2     *Player    `json:"player2,omitempty"`
	CurrentTurn PlayerSlot `json:"currentTurn,omitempty"`
	WinnerID    ConnID     `json:"winnerId,omitempty"`
	// RematchRequestedBy names the seat with an unanswered rematch request,
	// so a resyncing client can tell a negotiation is in flight.
	RematchRequestedBy PlayerSlot `json:"rematchRequestedBy,omitempty"`
	Score              Score      `json:"score"`
}

// RoomSummary is one directory entry for the lobby listing.
type RoomSummary struct {
	ID       RoomID     `json:"id"`
	HostName string     `json:"hostName"`
	Status   RoomStatus `json:"status"`
}
