package game

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"crackthecode/internal/domain"
)

const roomIDLen = 6

// Manager is the authoritative registry of live rooms. Creation, lookup and
// removal are serialized here; everything inside a room is serialized by its
// Session.
type Manager struct {
	notifier Notifier

	mu    sync.RWMutex
	rooms map[domain.RoomID]*Session
}

func NewManager(n Notifier) *Manager {
	return &Manager{
		notifier: n,
		rooms:    make(map[domain.RoomID]*Session),
	}
}

// Create allocates a fresh room with the creator seated as player1.
func (m *Manager) Create(host domain.ConnID, hostName string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.newRoomID()
	s := NewSession(id, host, hostName, m.notifier)
	m.rooms[id] = s
	return s
}

func (m *Manager) Get(id domain.RoomID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.rooms[id]
	return s, ok
}

// Join seats a second player in an existing room.
func (m *Manager) Join(id domain.RoomID, conn domain.ConnID, name string) (*Session, error) {
	s, ok := m.Get(id)
	if !ok {
		return nil, ErrRoomNotFound
	}
	if err := s.Join(conn, name); err != nil {
		return nil, err
	}
	return s, nil
}

// List returns joinable and running rooms in creation order. Finished rooms
// are excluded.
func (m *Manager) List() []domain.RoomSummary {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.rooms))
	for _, s := range m.rooms {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt().Before(sessions[j].CreatedAt())
	})

	out := make([]domain.RoomSummary, 0, len(sessions))
	for _, s := range sessions {
		summary := s.Summary()
		if summary.Status == domain.StatusFinished {
			continue
		}
		out = append(out, summary)
	}
	return out
}

func (m *Manager) Remove(id domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[id]; ok {
		delete(m.rooms, id)
		log.Info().Str("module", "game.manager").Str("room", string(id)).Msg("room removed")
	}
}

// Sweep evicts terminated, empty and idle rooms. Returns the eviction count.
func (m *Manager) Sweep(ttl time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.rooms {
		if s.Expired(ttl) {
			delete(m.rooms, id)
			n++
			log.Info().Str("module", "game.manager").Str("room", string(id)).Msg("room evicted")
		}
	}
	return n
}

// RunJanitor sweeps periodically until ctx is canceled. onEvict, when set,
// runs after any sweep that removed rooms (the ws adapter uses it to push a
// fresh directory to lobby subscribers).
func (m *Manager) RunJanitor(ctx context.Context, interval, ttl time.Duration, onEvict func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "game.manager").Msg("janitor stopped")
			return
		case <-ticker.C:
			if m.Sweep(ttl) > 0 && onEvict != nil {
				onEvict()
			}
		}
	}
}

// newRoomID derives a short shareable code from a uuid, retrying on the off
// chance of a collision with a live room. Callers hold the lock.
func (m *Manager) newRoomID() domain.RoomID {
	for {
		raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
		id := domain.RoomID(raw[:roomIDLen])
		if _, taken := m.rooms[id]; !taken {
			return id
		}
	}
}
