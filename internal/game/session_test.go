package game

import (
	"testing"

	"crackthecode/internal/domain"
)

type sentEvent struct {
	Conn    domain.ConnID
	Event   string
	Payload any
}

// recorder captures events in delivery order, per connection and globally.
type recorder struct {
	events []sentEvent
}

func (r *recorder) Send(conn domain.ConnID, event string, payload any) {
	r.events = append(r.events, sentEvent{Conn: conn, Event: event, Payload: payload})
}

func (r *recorder) reset() { r.events = nil }

func (r *recorder) lastTo(conn domain.ConnID, event string) (sentEvent, bool) {
	for i := len(r.events) - 1; i >= 0; i-- {
		e := r.events[i]
		if e.Conn == conn && e.Event == event {
			return e, true
		}
	}
	return sentEvent{}, false
}

func (r *recorder) countTo(conn domain.ConnID, event string) int {
	n := 0
	for _, e := range r.events {
		if e.Conn == conn && e.Event == event {
			n++
		}
	}
	return n
}

const (
	connAlice = domain.ConnID("conn-alice")
	connBob   = domain.ConnID("conn-bob")
)

func newStartedSession(t *testing.T, rec *recorder) *Session {
	t.Helper()
	s := NewSession("ROOM01", connAlice, "alice", rec)
	if err := s.Join(connBob, "bob"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	return s
}

func newPlayingSession(t *testing.T, rec *recorder, aliceCode, bobCode string) *Session {
	t.Helper()
	s := newStartedSession(t, rec)
	if err := s.SetCode(connAlice, aliceCode); err != nil {
		t.Fatalf("SetCode alice: %v", err)
	}
	if err := s.SetCode(connBob, bobCode); err != nil {
		t.Fatalf("SetCode bob: %v", err)
	}
	return s
}

func TestJoinFlow(t *testing.T) {
	rec := &recorder{}
	s := NewSession("ROOM01", connAlice, "alice", rec)

	if got := s.Phase(); got != PhaseWaiting {
		t.Fatalf("phase = %s, want %s", got, PhaseWaiting)
	}

	if err := s.Join(connBob, "bob"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if got := s.Phase(); got != PhaseSettingCodes {
		t.Fatalf("phase = %s, want %s", got, PhaseSettingCodes)
	}

	joined, ok := rec.lastTo(connAlice, EvtPlayerJoined)
	if !ok {
		t.Fatal("host never saw playerJoined")
	}
	if p := joined.Payload.(PlayerJoinedPayload); p.Name != "bob" {
		t.Fatalf("playerJoined name = %q", p.Name)
	}

	// Third seat does not exist.
	if err := s.Join("conn-carol", "carol"); err != ErrRoomFull {
		t.Fatalf("third join err = %v, want ErrRoomFull", err)
	}
}

func TestTurnUndefinedUntilBothCodesSet(t *testing.T) {
	rec := &recorder{}
	s := newStartedSession(t, rec)

	if err := s.SetCode(connAlice, "1234"); err != nil {
		t.Fatalf("SetCode: %v", err)
	}
	snap := s.SnapshotFor(connAlice)
	if snap.CurrentTurn != "" {
		t.Fatalf("currentTurn = %q before both codes set", snap.CurrentTurn)
	}
	if s.Phase() != PhaseSettingCodes {
		t.Fatalf("phase = %s, want %s", s.Phase(), PhaseSettingCodes)
	}

	// Guessing before the round starts is a protocol violation for both sides.
	if _, err := s.MakeGuess(connAlice, "1111"); err != ErrWrongPhase {
		t.Fatalf("guess during setup err = %v, want ErrWrongPhase", err)
	}
	if _, err := s.MakeGuess(connBob, "1111"); err != ErrWrongPhase {
		t.Fatalf("guess during setup err = %v, want ErrWrongPhase", err)
	}

	if err := s.SetCode(connBob, "5678"); err != nil {
		t.Fatalf("SetCode: %v", err)
	}
	snap = s.SnapshotFor(connAlice)
	if snap.CurrentTurn != domain.SlotPlayer1 {
		t.Fatalf("opening turn = %q, want player1", snap.CurrentTurn)
	}
}

func TestSetCodeRejections(t *testing.T) {
	rec := &recorder{}
	s := newStartedSession(t, rec)

	if err := s.SetCode(connAlice, "12x4"); err != domain.ErrInvalidCode {
		t.Fatalf("malformed code err = %v, want ErrInvalidCode", err)
	}
	if err := s.SetCode("conn-stranger", "1234"); err != ErrNotInRoom {
		t.Fatalf("stranger err = %v, want ErrNotInRoom", err)
	}
	if err := s.SetCode(connAlice, "1234"); err != nil {
		t.Fatalf("SetCode: %v", err)
	}
	if err := s.SetCode(connAlice, "4321"); err != ErrCodeAlreadySet {
		t.Fatalf("resubmission err = %v, want ErrCodeAlreadySet", err)
	}
}

func TestGuessOutOfTurnHasNoEffect(t *testing.T) {
	rec := &recorder{}
	s := newPlayingSession(t, rec, "1234", "5678")
	before := s.SnapshotFor(connAlice)
	rec.reset()

	if _, err := s.MakeGuess(connBob, "1111"); err != ErrNotYourTurn {
		t.Fatalf("out-of-turn err = %v, want ErrNotYourTurn", err)
	}

	after := s.SnapshotFor(connAlice)
	if after.CurrentTurn != before.CurrentTurn {
		t.Fatal("out-of-turn guess moved the turn")
	}
	if len(after.Player1.History) != 0 || len(after.Player2.History) != 0 {
		t.Fatal("out-of-turn guess mutated history")
	}
	if after.WinnerID != "" {
		t.Fatal("out-of-turn guess set a winner")
	}
	if len(rec.events) != 0 {
		t.Fatalf("out-of-turn guess broadcast %d events", len(rec.events))
	}
}

func TestGuessAppendsToDefenderHistoryAndFlipsTurn(t *testing.T) {
	rec := &recorder{}
	s := newPlayingSession(t, rec, "1234", "5678")

	// Alice attacks bob's code, so the attempt lands in bob's history.
	results, err := s.MakeGuess(connAlice, "5687")
	if err != nil {
		t.Fatalf("MakeGuess: %v", err)
	}
	if len(results) != domain.CodeLen {
		t.Fatalf("got %d verdicts", len(results))
	}

	snap := s.SnapshotFor(connAlice)
	if len(snap.Player2.History) != 1 {
		t.Fatalf("defender history len = %d, want 1", len(snap.Player2.History))
	}
	if len(snap.Player1.History) != 0 {
		t.Fatal("attacker history grew on own guess")
	}
	if snap.Player2.History[0].Guess != "5687" {
		t.Fatalf("recorded guess = %q", snap.Player2.History[0].Guess)
	}
	if snap.CurrentTurn != domain.SlotPlayer2 {
		t.Fatalf("turn = %q after alice's guess, want player2", snap.CurrentTurn)
	}
}

func TestWinningGuessConcludesRound(t *testing.T) {
	rec := &recorder{}
	s := newPlayingSession(t, rec, "1234", "5678")

	results, err := s.MakeGuess(connAlice, "5678")
	if err != nil {
		t.Fatalf("MakeGuess: %v", err)
	}
	if !domain.AllExact(results) {
		t.Fatalf("results = %v, want all exact", results)
	}
	if s.Phase() != PhaseRoundOver {
		t.Fatalf("phase = %s, want %s", s.Phase(), PhaseRoundOver)
	}

	snap := s.SnapshotFor(connBob)
	if snap.WinnerID != connAlice {
		t.Fatalf("winnerId = %q, want %q", snap.WinnerID, connAlice)
	}
	if snap.Score.Player1 != 1 || snap.Score.Player2 != 0 {
		t.Fatalf("score = %+v, want 1-0", snap.Score)
	}
	if snap.CurrentTurn != "" {
		t.Fatalf("currentTurn = %q after round end", snap.CurrentTurn)
	}

	// The round is over; no further guesses.
	if _, err := s.MakeGuess(connBob, "1234"); err != ErrWrongPhase {
		t.Fatalf("post-round guess err = %v, want ErrWrongPhase", err)
	}
}

func TestInvalidGuessRejectedWithoutMutation(t *testing.T) {
	rec := &recorder{}
	s := newPlayingSession(t, rec, "1234", "5678")
	rec.reset()

	if _, err := s.MakeGuess(connAlice, "56789"); err != domain.ErrInvalidGuess {
		t.Fatalf("long guess err = %v, want ErrInvalidGuess", err)
	}
	if _, err := s.MakeGuess(connAlice, "5a78"); err != domain.ErrInvalidGuess {
		t.Fatalf("non-digit guess err = %v, want ErrInvalidGuess", err)
	}
	if len(rec.events) != 0 {
		t.Fatal("invalid guess produced a broadcast")
	}
	snap := s.SnapshotFor(connAlice)
	if len(snap.Player2.History) != 0 || snap.CurrentTurn != domain.SlotPlayer1 {
		t.Fatal("invalid guess mutated state")
	}
}

func TestOpponentCodeRedactedUntilRoundOver(t *testing.T) {
	rec := &recorder{}
	s := newPlayingSession(t, rec, "1234", "5678")

	snap := s.SnapshotFor(connAlice)
	if snap.Player1.Code != "1234" {
		t.Fatalf("own code = %q, want visible", snap.Player1.Code)
	}
	if snap.Player2.Code != "" {
		t.Fatalf("opponent code = %q, want redacted", snap.Player2.Code)
	}

	// Outsiders see neither secret.
	outsider := s.SnapshotFor("conn-stranger")
	if outsider.Player1.Code != "" || outsider.Player2.Code != "" {
		t.Fatal("outsider snapshot leaks a secret")
	}

	if _, err := s.MakeGuess(connAlice, "5678"); err != nil {
		t.Fatalf("MakeGuess: %v", err)
	}
	snap = s.SnapshotFor(connAlice)
	if snap.Player2.Code != "5678" {
		t.Fatalf("opponent code after round = %q, want revealed", snap.Player2.Code)
	}
}

func TestSurrenderMidGame(t *testing.T) {
	rec := &recorder{}
	s := newPlayingSession(t, rec, "1234", "5678")

	if err := s.Surrender(connAlice); err != nil {
		t.Fatalf("Surrender: %v", err)
	}
	if s.Phase() != PhaseRoundOver {
		t.Fatalf("phase = %s, want %s", s.Phase(), PhaseRoundOver)
	}

	snap := s.SnapshotFor(connBob)
	if snap.WinnerID != connBob {
		t.Fatalf("winnerId = %q, want %q", snap.WinnerID, connBob)
	}
	if snap.Score.Player2 != 1 {
		t.Fatalf("score.player2 = %d, want 1", snap.Score.Player2)
	}

	if _, ok := rec.lastTo(connAlice, EvtSurrendered); !ok {
		t.Fatal("quitter never got surrendered")
	}
	e, ok := rec.lastTo(connBob, EvtOpponentSurrendered)
	if !ok {
		t.Fatal("opponent never got opponentSurrendered")
	}
	if p := e.Payload.(OpponentSurrenderedPayload); p.Name != "alice" {
		t.Fatalf("opponentSurrendered name = %q", p.Name)
	}
}

func TestSurrenderDuringCodeSetting(t *testing.T) {
	rec := &recorder{}
	s := newStartedSession(t, rec)
	if err := s.SetCode(connBob, "5678"); err != nil {
		t.Fatalf("SetCode: %v", err)
	}

	if err := s.Surrender(connAlice); err != nil {
		t.Fatalf("Surrender: %v", err)
	}
	snap := s.SnapshotFor(connBob)
	if snap.WinnerID != connBob || snap.Score.Player2 != 1 {
		t.Fatalf("surrender during setup: winner=%q score=%+v", snap.WinnerID, snap.Score)
	}
}

func TestSurrenderRejectedAfterRound(t *testing.T) {
	rec := &recorder{}
	s := newPlayingSession(t, rec, "1234", "5678")
	if _, err := s.MakeGuess(connAlice, "5678"); err != nil {
		t.Fatalf("MakeGuess: %v", err)
	}
	if err := s.Surrender(connBob); err != ErrWrongPhase {
		t.Fatalf("post-round surrender err = %v, want ErrWrongPhase", err)
	}
}

func TestRematchAcceptResetsRoundAndAlternatesTurn(t *testing.T) {
	rec := &recorder{}
	s := newPlayingSession(t, rec, "1234", "5678")
	if _, err := s.MakeGuess(connAlice, "5678"); err != nil {
		t.Fatalf("MakeGuess: %v", err)
	}

	if err := s.RequestRematch(connAlice); err != nil {
		t.Fatalf("RequestRematch: %v", err)
	}
	if _, ok := rec.lastTo(connBob, EvtRematchRequested); !ok {
		t.Fatal("opponent never got rematchRequested")
	}
	if err := s.RespondRematch(connBob, true); err != nil {
		t.Fatalf("RespondRematch: %v", err)
	}

	if s.Phase() != PhaseSettingCodes {
		t.Fatalf("phase = %s, want %s", s.Phase(), PhaseSettingCodes)
	}
	snap := s.SnapshotFor(connAlice)
	if snap.WinnerID != "" {
		t.Fatal("winnerId not cleared by rematch")
	}
	if snap.Player1.Code != "" || len(snap.Player1.History) != 0 || len(snap.Player2.History) != 0 {
		t.Fatal("round state not cleared by rematch")
	}
	if snap.Score.Player1 != 1 {
		t.Fatalf("score reset by rematch: %+v", snap.Score)
	}

	// Round two: the opening turn flips to the player who did not open round one.
	if err := s.SetCode(connAlice, "1111"); err != nil {
		t.Fatalf("SetCode: %v", err)
	}
	if err := s.SetCode(connBob, "2222"); err != nil {
		t.Fatalf("SetCode: %v", err)
	}
	snap = s.SnapshotFor(connAlice)
	if snap.CurrentTurn != domain.SlotPlayer2 {
		t.Fatalf("round two opening turn = %q, want player2", snap.CurrentTurn)
	}
}

func TestRematchRequestVisibleInSnapshot(t *testing.T) {
	rec := &recorder{}
	s := newPlayingSession(t, rec, "1234", "5678")
	if _, err := s.MakeGuess(connAlice, "5678"); err != nil {
		t.Fatalf("MakeGuess: %v", err)
	}
	rec.reset()

	if err := s.RequestRematch(connAlice); err != nil {
		t.Fatalf("RequestRematch: %v", err)
	}

	// The transition is broadcast, and a client resyncing during the
	// negotiation can tell a request is outstanding and whose it is.
	if n := rec.countTo(connBob, EvtRoomUpdate); n != 1 {
		t.Fatalf("opponent saw %d roomUpdate on request, want 1", n)
	}
	snap := s.SnapshotFor(connBob)
	if snap.RematchRequestedBy != domain.SlotPlayer1 {
		t.Fatalf("rematchRequestedBy = %q, want player1", snap.RematchRequestedBy)
	}

	if err := s.RespondRematch(connBob, true); err != nil {
		t.Fatalf("RespondRematch: %v", err)
	}
	snap = s.SnapshotFor(connBob)
	if snap.RematchRequestedBy != "" {
		t.Fatalf("rematchRequestedBy = %q after acceptance, want cleared", snap.RematchRequestedBy)
	}
}

func TestRematchDecline(t *testing.T) {
	rec := &recorder{}
	s := newPlayingSession(t, rec, "1234", "5678")
	if _, err := s.MakeGuess(connAlice, "5678"); err != nil {
		t.Fatalf("MakeGuess: %v", err)
	}
	if err := s.RequestRematch(connAlice); err != nil {
		t.Fatalf("RequestRematch: %v", err)
	}
	if err := s.RespondRematch(connBob, false); err != nil {
		t.Fatalf("RespondRematch: %v", err)
	}
	if s.Phase() != PhaseTerminated {
		t.Fatalf("phase = %s, want %s", s.Phase(), PhaseTerminated)
	}
	if _, ok := rec.lastTo(connAlice, EvtRematchDeclined); !ok {
		t.Fatal("requester never got rematchDeclined")
	}
}

func TestConcurrentRematchRequestsCoalesce(t *testing.T) {
	rec := &recorder{}
	s := newPlayingSession(t, rec, "1234", "5678")
	if _, err := s.MakeGuess(connAlice, "5678"); err != nil {
		t.Fatalf("MakeGuess: %v", err)
	}

	if err := s.RequestRematch(connAlice); err != nil {
		t.Fatalf("RequestRematch alice: %v", err)
	}
	// A duplicate from the same player stays a single pending request.
	if err := s.RequestRematch(connAlice); err != nil {
		t.Fatalf("duplicate RequestRematch: %v", err)
	}
	if s.Phase() != PhaseRematchPending {
		t.Fatalf("phase = %s, want %s", s.Phase(), PhaseRematchPending)
	}
	// The opponent's own request counts as acceptance, not a second negotiation.
	if err := s.RequestRematch(connBob); err != nil {
		t.Fatalf("RequestRematch bob: %v", err)
	}
	if s.Phase() != PhaseSettingCodes {
		t.Fatalf("phase = %s, want %s", s.Phase(), PhaseSettingCodes)
	}
	if n := rec.countTo(connAlice, EvtRematchAccepted); n != 1 {
		t.Fatalf("alice saw %d rematchAccepted, want 1", n)
	}
}

func TestRespondWithoutPendingRequest(t *testing.T) {
	rec := &recorder{}
	s := newPlayingSession(t, rec, "1234", "5678")
	if _, err := s.MakeGuess(connAlice, "5678"); err != nil {
		t.Fatalf("MakeGuess: %v", err)
	}
	if err := s.RespondRematch(connBob, true); err != ErrNoRematchPending {
		t.Fatalf("respond without request err = %v, want ErrNoRematchPending", err)
	}
	// The requester cannot answer their own request.
	if err := s.RequestRematch(connAlice); err != nil {
		t.Fatalf("RequestRematch: %v", err)
	}
	if err := s.RespondRematch(connAlice, true); err != ErrNoRematchPending {
		t.Fatalf("self-response err = %v, want ErrNoRematchPending", err)
	}
}

func TestLeaveMidGameIsAttributedSurrender(t *testing.T) {
	rec := &recorder{}
	s := newPlayingSession(t, rec, "1234", "5678")

	empty := s.Leave(connAlice)
	if empty {
		t.Fatal("room reported empty with bob still seated")
	}

	e, ok := rec.lastTo(connBob, EvtPlayerLeft)
	if !ok {
		t.Fatal("opponent never got playerLeft")
	}
	if p := e.Payload.(PlayerLeftPayload); !p.Surrendered || p.Name != "alice" {
		t.Fatalf("playerLeft payload = %+v", p)
	}
	if _, ok := rec.lastTo(connBob, EvtOpponentSurrendered); !ok {
		t.Fatal("opponent never got opponentSurrendered")
	}

	snap := s.SnapshotFor(connBob)
	if snap.WinnerID != connBob || snap.Score.Player2 != 1 {
		t.Fatalf("leave mid-game: winner=%q score=%+v", snap.WinnerID, snap.Score)
	}
}

func TestLeaveDuringRematchPendingDeclines(t *testing.T) {
	rec := &recorder{}
	s := newPlayingSession(t, rec, "1234", "5678")
	if _, err := s.MakeGuess(connAlice, "5678"); err != nil {
		t.Fatalf("MakeGuess: %v", err)
	}
	if err := s.RequestRematch(connAlice); err != nil {
		t.Fatalf("RequestRematch: %v", err)
	}

	s.Leave(connAlice)
	if s.Phase() != PhaseTerminated {
		t.Fatalf("phase = %s, want %s", s.Phase(), PhaseTerminated)
	}
	if _, ok := rec.lastTo(connBob, EvtRematchDeclined); !ok {
		t.Fatal("responder never saw the withdrawal as a decline")
	}
	e, _ := rec.lastTo(connBob, EvtPlayerLeft)
	if p := e.Payload.(PlayerLeftPayload); p.Surrendered {
		t.Fatal("post-round leave flagged as surrender")
	}
}

func TestSoloLeaveIsSilent(t *testing.T) {
	rec := &recorder{}
	s := NewSession("ROOM01", connAlice, "alice", rec)
	rec.reset()

	empty := s.Leave(connAlice)
	if !empty {
		t.Fatal("solo leave did not empty the room")
	}
	if len(rec.events) != 0 {
		t.Fatalf("solo leave produced %d events", len(rec.events))
	}
	snap := s.SnapshotFor(connAlice)
	if snap.WinnerID != "" || snap.Score.Player1 != 0 || snap.Score.Player2 != 0 {
		t.Fatal("solo leave carried surrender semantics")
	}
}

func TestScoreMonotonicAcrossRounds(t *testing.T) {
	rec := &recorder{}
	s := newPlayingSession(t, rec, "1234", "5678")

	// Round one: alice cracks bob's code.
	if _, err := s.MakeGuess(connAlice, "5678"); err != nil {
		t.Fatalf("MakeGuess: %v", err)
	}
	if err := s.RequestRematch(connAlice); err != nil {
		t.Fatalf("RequestRematch: %v", err)
	}
	if err := s.RespondRematch(connBob, true); err != nil {
		t.Fatalf("RespondRematch: %v", err)
	}

	// Round two: bob opens and wins immediately.
	if err := s.SetCode(connAlice, "9999"); err != nil {
		t.Fatalf("SetCode: %v", err)
	}
	if err := s.SetCode(connBob, "8888"); err != nil {
		t.Fatalf("SetCode: %v", err)
	}
	if _, err := s.MakeGuess(connBob, "9999"); err != nil {
		t.Fatalf("MakeGuess: %v", err)
	}

	snap := s.SnapshotFor(connAlice)
	if snap.Score.Player1 != 1 || snap.Score.Player2 != 1 {
		t.Fatalf("score = %+v, want 1-1", snap.Score)
	}
	if snap.WinnerID != connBob {
		t.Fatalf("round two winner = %q, want bob", snap.WinnerID)
	}
}
