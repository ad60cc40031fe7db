// Package game holds the authoritative per-room state machine. Every intent
// for a room goes through its Session, which serializes transitions behind a
// single mutex; rooms are independent and run fully in parallel.
package game

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"crackthecode/internal/domain"
)

// Phase is the internal lifecycle of a session. The coarser RoomStatus shown
// in the directory is derived from it.
type Phase string

const (
	PhaseWaiting        Phase = "waiting"
	PhaseSettingCodes   Phase = "setting_codes"
	PhaseInProgress     Phase = "in_progress"
	PhaseRoundOver      Phase = "round_over"
	PhaseRematchPending Phase = "rematch_pending"
	PhaseTerminated     Phase = "terminated"
)

type playerState struct {
	conn    domain.ConnID
	name    string
	code    domain.Code
	history []domain.GuessAttempt
}

// Session owns the true state of one room. All mutating methods lock; the
// Notifier is invoked under the lock so members see a total order of events.
type Session struct {
	id       domain.RoomID
	notifier Notifier

	mu        sync.Mutex
	createdAt time.Time
	touchedAt time.Time
	phase     Phase
	players   [2]*playerState // indexed by slot: 0 = player1, 1 = player2
	firstTurn domain.PlayerSlot
	turn      domain.PlayerSlot
	winner    domain.ConnID
	score     [2]int
	rematchBy domain.PlayerSlot
}

func NewSession(id domain.RoomID, host domain.ConnID, hostName string, n Notifier) *Session {
	now := time.Now()
	s := &Session{
		id:        id,
		notifier:  n,
		createdAt: now,
		touchedAt: now,
		phase:     PhaseWaiting,
		firstTurn: domain.SlotPlayer1,
	}
	s.players[0] = &playerState{conn: host, name: hostName}
	log.Info().Str("module", "game.session").Str("room", string(id)).Str("host", hostName).Msg("session created")
	return s
}

func (s *Session) ID() domain.RoomID { return s.id }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Join seats the second player and opens the code-setting phase.
func (s *Session) Join(conn domain.ConnID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.phase != PhaseWaiting || s.players[1] != nil {
		return ErrRoomFull
	}
	s.players[1] = &playerState{conn: conn, name: name}
	s.phase = PhaseSettingCodes

	log.Info().Str("module", "game.session").Str("room", string(s.id)).Str("name", name).Msg("player joined")
	s.notifier.Send(s.players[0].conn, EvtPlayerJoined, PlayerJoinedPayload{Name: name})
	s.pushUpdate()
	return nil
}

// SetCode records a player's secret. Once both secrets are in, play starts
// and the opening turn goes to the designated first mover.
func (s *Session) SetCode(conn domain.ConnID, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	slot, ps := s.seat(conn)
	if ps == nil {
		return ErrNotInRoom
	}
	if s.phase != PhaseSettingCodes {
		return ErrWrongPhase
	}
	code, err := domain.ParseCode(raw)
	if err != nil {
		return err
	}
	if ps.code != "" {
		return ErrCodeAlreadySet
	}
	ps.code = code

	if other := s.players[slotIndex(slot.Other())]; other != nil && other.code != "" {
		s.phase = PhaseInProgress
		s.turn = s.firstTurn
		log.Info().Str("module", "game.session").Str("room", string(s.id)).Str("first_turn", string(s.turn)).Msg("round started")
	}
	s.pushUpdate()
	return nil
}

// MakeGuess applies the active player's guess to the opponent's code. The
// attempt is appended to the defender's history; four exacts conclude the
// round in the attacker's favor, anything less flips the turn.
func (s *Session) MakeGuess(conn domain.ConnID, raw string) ([]domain.Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	slot, ps := s.seat(conn)
	if ps == nil {
		return nil, ErrNotInRoom
	}
	if s.phase != PhaseInProgress {
		return nil, ErrWrongPhase
	}
	guess, err := domain.ParseCode(raw)
	if err != nil {
		return nil, domain.ErrInvalidGuess
	}
	if slot != s.turn {
		return nil, ErrNotYourTurn
	}

	defender := s.players[slotIndex(slot.Other())]
	results := domain.Evaluate(defender.code, guess)
	defender.history = append(defender.history, domain.GuessAttempt{
		Guess:   string(guess),
		Results: results,
	})

	if domain.AllExact(results) {
		s.winner = ps.conn
		s.score[slotIndex(slot)]++
		s.phase = PhaseRoundOver
		s.turn = ""
		log.Info().Str("module", "game.session").Str("room", string(s.id)).Str("winner", ps.name).Msg("code cracked")
	} else {
		s.turn = slot.Other()
	}
	s.pushUpdate()
	return results, nil
}

// Surrender concedes the round. The opponent is credited with the win, the
// quitter gets a confirmation and the opponent a notification; the seat stays
// occupied until the quitter actually leaves.
func (s *Session) Surrender(conn domain.ConnID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	slot, ps := s.seat(conn)
	if ps == nil {
		return ErrNotInRoom
	}
	if s.phase != PhaseSettingCodes && s.phase != PhaseInProgress {
		return ErrWrongPhase
	}
	opp := s.players[slotIndex(slot.Other())]
	if opp == nil {
		return ErrWrongPhase
	}

	s.concede(slot, ps, opp)
	s.notifier.Send(ps.conn, EvtSurrendered, nil)
	s.notifier.Send(opp.conn, EvtOpponentSurrendered, OpponentSurrenderedPayload{Name: ps.name})
	s.pushUpdate()
	return nil
}

// RequestRematch starts (or coalesces into) the post-round negotiation. A
// second request from the other player while one is pending counts as an
// acceptance, never as a competing negotiation.
func (s *Session) RequestRematch(conn domain.ConnID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	slot, ps := s.seat(conn)
	if ps == nil {
		return ErrNotInRoom
	}
	switch s.phase {
	case PhaseRoundOver:
		s.rematchBy = slot
		s.phase = PhaseRematchPending
		if opp := s.players[slotIndex(slot.Other())]; opp != nil {
			s.notifier.Send(opp.conn, EvtRematchRequested, nil)
		}
		log.Info().Str("module", "game.session").Str("room", string(s.id)).Str("by", string(slot)).Msg("rematch requested")
		s.pushUpdate()
		return nil
	case PhaseRematchPending:
		if s.rematchBy == slot {
			return nil // duplicate from the same player, already pending
		}
		s.acceptRematch()
		return nil
	default:
		return ErrWrongPhase
	}
}

// RespondRematch resolves a pending negotiation. Accepting resets the round
// with the opening turn flipped; declining terminates the room.
func (s *Session) RespondRematch(conn domain.ConnID, accept bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	slot, ps := s.seat(conn)
	if ps == nil {
		return ErrNotInRoom
	}
	if s.phase != PhaseRematchPending || s.rematchBy != slot.Other() {
		return ErrNoRematchPending
	}

	if accept {
		s.acceptRematch()
		return nil
	}
	s.phase = PhaseTerminated
	s.rematchBy = ""
	if opp := s.players[slotIndex(slot.Other())]; opp != nil {
		s.notifier.Send(opp.conn, EvtRematchDeclined, nil)
	}
	log.Info().Str("module", "game.session").Str("room", string(s.id)).Msg("rematch declined")
	return nil
}

// Leave vacates the caller's seat. With an opponent present mid-round it is
// an attributed surrender; during negotiation it counts as a decline; alone
// in the room it is a silent leave. Returns true once the room is empty.
func (s *Session) Leave(conn domain.ConnID) (empty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	slot, ps := s.seat(conn)
	if ps == nil {
		return s.players[0] == nil && s.players[1] == nil
	}
	opp := s.players[slotIndex(slot.Other())]

	surrendered := false
	if opp != nil {
		switch s.phase {
		case PhaseSettingCodes, PhaseInProgress:
			s.concede(slot, ps, opp)
			surrendered = true
			s.notifier.Send(opp.conn, EvtOpponentSurrendered, OpponentSurrenderedPayload{Name: ps.name})
		case PhaseRematchPending:
			s.phase = PhaseTerminated
			s.rematchBy = ""
			s.notifier.Send(opp.conn, EvtRematchDeclined, nil)
		default:
			s.phase = PhaseTerminated
		}
	} else {
		s.phase = PhaseTerminated
	}

	s.players[slotIndex(slot)] = nil
	if opp != nil {
		s.notifier.Send(opp.conn, EvtPlayerLeft, PlayerLeftPayload{Name: ps.name, Surrendered: surrendered})
		s.pushUpdate()
	}
	log.Info().Str("module", "game.session").Str("room", string(s.id)).Str("name", ps.name).Bool("surrendered", surrendered).Msg("player left")

	return s.players[0] == nil && s.players[1] == nil
}

// SnapshotFor renders the room for one recipient. A player always sees their
// own code; the opponent's secret stays redacted until the round is decided.
func (s *Session) SnapshotFor(conn domain.ConnID) domain.RoomSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	viewer, _ := s.seat(conn)
	return s.snapshotLocked(viewer)
}

// Summary is the directory entry for the lobby listing.
func (s *Session) Summary() domain.RoomSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	host := ""
	if s.players[0] != nil {
		host = s.players[0].name
	} else if s.players[1] != nil {
		host = s.players[1].name
	}
	return domain.RoomSummary{ID: s.id, HostName: host, Status: s.statusLocked()}
}

// Expired reports whether the session is eligible for eviction: terminated,
// empty, or idle longer than ttl.
func (s *Session) Expired(ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseTerminated {
		return true
	}
	if s.players[0] == nil && s.players[1] == nil {
		return true
	}
	return ttl > 0 && time.Since(s.touchedAt) > ttl
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// concede ends the round in the opponent's favor. Callers hold the lock.
func (s *Session) concede(slot domain.PlayerSlot, quitter, opp *playerState) {
	s.winner = opp.conn
	s.score[slotIndex(slot.Other())]++
	s.phase = PhaseRoundOver
	s.turn = ""
	log.Info().Str("module", "game.session").Str("room", string(s.id)).Str("quitter", quitter.name).Msg("round conceded")
}

// acceptRematch resets per-round state and flips the opening turn so the
// same player does not keep the first-move advantage. Callers hold the lock.
func (s *Session) acceptRematch() {
	s.winner = ""
	s.rematchBy = ""
	s.turn = ""
	for _, ps := range s.players {
		if ps != nil {
			ps.code = ""
			ps.history = nil
		}
	}
	s.firstTurn = s.firstTurn.Other()
	s.phase = PhaseSettingCodes

	for _, ps := range s.players {
		if ps != nil {
			s.notifier.Send(ps.conn, EvtRematchAccepted, nil)
		}
	}
	log.Info().Str("module", "game.session").Str("room", string(s.id)).Str("first_turn", string(s.firstTurn)).Msg("rematch accepted")
	s.pushUpdate()
}

// pushUpdate fans the authoritative snapshot out to every seated player,
// redacted per recipient. Callers hold the lock.
func (s *Session) pushUpdate() {
	for i, ps := range s.players {
		if ps == nil {
			continue
		}
		slot := domain.SlotPlayer1
		if i == 1 {
			slot = domain.SlotPlayer2
		}
		s.notifier.Send(ps.conn, EvtRoomUpdate, s.snapshotLocked(slot))
	}
}

func (s *Session) snapshotLocked(viewer domain.PlayerSlot) domain.RoomSnapshot {
	revealed := s.phase == PhaseRoundOver || s.phase == PhaseRematchPending || s.phase == PhaseTerminated

	render := func(slot domain.PlayerSlot) *domain.Player {
		ps := s.players[slotIndex(slot)]
		if ps == nil {
			return nil
		}
		p := &domain.Player{
			ID:      ps.conn,
			Name:    ps.name,
			History: append([]domain.GuessAttempt(nil), ps.history...),
		}
		if slot == viewer || revealed {
			p.Code = ps.code
		}
		return p
	}

	return domain.RoomSnapshot{
		ID:                 s.id,
		Status:             s.statusLocked(),
		Player1:            render(domain.SlotPlayer1),
		Player2:            render(domain.SlotPlayer2),
		CurrentTurn:        s.turn,
		WinnerID:           s.winner,
		RematchRequestedBy: s.rematchBy,
		Score:              domain.Score{Player1: s.score[0], Player2: s.score[1]},
	}
}

func (s *Session) statusLocked() domain.RoomStatus {
	switch s.phase {
	case PhaseWaiting:
		return domain.StatusWaiting
	case PhaseSettingCodes, PhaseInProgress:
		return domain.StatusStarted
	default:
		return domain.StatusFinished
	}
}

// seat returns the slot and state for a connection, or nil when unseated.
// Callers hold the lock.
func (s *Session) seat(conn domain.ConnID) (domain.PlayerSlot, *playerState) {
	if s.players[0] != nil && s.players[0].conn == conn {
		return domain.SlotPlayer1, s.players[0]
	}
	if s.players[1] != nil && s.players[1].conn == conn {
		return domain.SlotPlayer2, s.players[1]
	}
	return "", nil
}

func (s *Session) touch() { s.touchedAt = time.Now() }

func slotIndex(slot domain.PlayerSlot) int {
	if slot == domain.SlotPlayer2 {
		return 1
	}
	return 0
}
