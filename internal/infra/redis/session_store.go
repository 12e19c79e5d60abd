package redis

import (
	"context"
	"sync"
	"time"

	"church-quiz-service/internal/app"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions (and their running games) stay in a local map; a game owns a
//     live timer and cannot be serialised.
//   - Redis holds a liveness key per session with an idle TTL that every Get
//     refreshes. Once the key expires the session is treated as logged out and
//     its game is torn down.
//   - Save also drops local sessions idle past the TTL, so a client that
//     never returns does not pin its session in memory.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*localSession
}

type localSession struct {
	session  *app.PlayerSession
	lastSeen time.Time
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*localSession),
	}
}

func (s *SessionStore) Save(ctx context.Context, session *app.PlayerSession) error {
	if err := s.client.Set(ctx, s.key(session.ID), session.User.ID, s.ttl).Err(); err != nil {
		return err
	}

	s.mu.Lock()
	now := s.now()
	var stale []*app.PlayerSession
	for id, local := range s.sessions {
		if s.ttl > 0 && now.Sub(local.lastSeen) > s.ttl {
			delete(s.sessions, id)
			stale = append(stale, local.session)
		}
	}
	s.sessions[session.ID] = &localSession{session: session, lastSeen: now}
	s.mu.Unlock()

	for _, old := range stale {
		old.Close()
		// the liveness key has normally expired already
		_ = s.client.Del(ctx, s.key(old.ID)).Err()
		log.Info().Str("session", old.ID).Msg("idle session dropped")
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*app.PlayerSession, bool) {
	s.mu.Lock()
	local, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}

	alive, err := s.client.Expire(ctx, s.key(id), s.ttl).Result()
	if err != nil {
		// redis unreachable: keep serving the local session
		log.Warn().Err(err).Str("session", id).Msg("session liveness refresh failed")
		s.touch(id)
		return local.session, true
	}
	if !alive {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		local.session.Close()
		log.Info().Str("session", id).Msg("session expired")
		return nil, false
	}
	s.touch(id)
	return local.session, true
}

func (s *SessionStore) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	// best-effort; the key expires on its own otherwise
	_ = s.client.Del(ctx, s.key(id)).Err()
}

// Len reports how many sessions are held locally.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) touch(id string) {
	s.mu.Lock()
	if local, ok := s.sessions[id]; ok {
		local.lastSeen = s.now()
	}
	s.mu.Unlock()
}

func (s *SessionStore) key(id string) string {
	return "quiz:session:" + id
}
