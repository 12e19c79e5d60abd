package memory

import (
	"context"
	"sync"
	"time"

	"church-quiz-service/internal/app"
	"github.com/rs/zerolog/log"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// Sessions idle for longer than the idle timeout are dropped on the next
// Save or Get; a zero timeout keeps them until Delete.
type SessionStore struct {
	idle time.Duration
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	session  *app.PlayerSession
	lastSeen time.Time
}

func NewSessionStore(idle time.Duration) *SessionStore {
	return &SessionStore{
		idle:     idle,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

func (s *SessionStore) Save(_ context.Context, session *app.PlayerSession) error {
	s.mu.Lock()
	now := s.now()
	stale := s.pruneLocked(now)
	s.sessions[session.ID] = &entry{session: session, lastSeen: now}
	s.mu.Unlock()

	closeAll(stale)
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (*app.PlayerSession, bool) {
	s.mu.Lock()
	now := s.now()
	e, ok := s.sessions[id]
	if ok && s.expired(e, now) {
		delete(s.sessions, id)
		s.mu.Unlock()
		closeAll([]*app.PlayerSession{e.session})
		return nil, false
	}
	if ok {
		e.lastSeen = now
	}
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	return e.session, true
}

func (s *SessionStore) Delete(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len reports how many sessions are held.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) expired(e *entry, now time.Time) bool {
	return s.idle > 0 && now.Sub(e.lastSeen) > s.idle
}

// pruneLocked removes idle sessions and returns them for closing outside the lock.
func (s *SessionStore) pruneLocked(now time.Time) []*app.PlayerSession {
	var stale []*app.PlayerSession
	for id, e := range s.sessions {
		if s.expired(e, now) {
			delete(s.sessions, id)
			stale = append(stale, e.session)
		}
	}
	return stale
}

func closeAll(sessions []*app.PlayerSession) {
	for _, session := range sessions {
		session.Close()
		log.Info().Str("session", session.ID).Msg("idle session dropped")
	}
}
