package app

import (
	"context"
	"sync"
	"time"

	"church-quiz-service/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SessionRepository abstracts how player sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	Save(ctx context.Context, session *PlayerSession) error
	Get(ctx context.Context, id string) (*PlayerSession, bool)
	Delete(ctx context.Context, id string)
}

// PlayerSession is one login: the identity plus its game.
type PlayerSession struct {
	ID        string
	User      domain.User
	CreatedAt time.Time

	mu   sync.Mutex
	game *Game
}

// NewPlayerSession creates a session with a random id.
func NewPlayerSession(user domain.User, now time.Time) *PlayerSession {
	return &PlayerSession{
		ID:        uuid.NewString(),
		User:      user,
		CreatedAt: now,
	}
}

// Close tears down the session's game, cancelling its timer.
func (s *PlayerSession) Close() {
	s.mu.Lock()
	g := s.game
	s.game = nil
	s.mu.Unlock()
	if g != nil {
		g.Close()
	}
}

// QuizService contains the quiz-playing use cases.
type QuizService struct {
	sessions SessionRepository
	users    Table[domain.User]
	bank     QuestionBank
	scores   ScoreRecorder
	cfg      GameConfig
	clock    Clock
}

// NewQuizService builds the service. users is re-read on every session
// lookup so role changes and deletions take effect on live logins.
func NewQuizService(sessions SessionRepository, users Table[domain.User], bank QuestionBank, scores ScoreRecorder, cfg GameConfig) *QuizService {
	return NewQuizServiceWithClock(sessions, users, bank, scores, cfg, SystemClock)
}

// NewQuizServiceWithClock is for tests that drive time and timers by hand.
func NewQuizServiceWithClock(sessions SessionRepository, users Table[domain.User], bank QuestionBank, scores ScoreRecorder, cfg GameConfig, clock Clock) *QuizService {
	return &QuizService{
		sessions: sessions,
		users:    users,
		bank:     bank,
		scores:   scores,
		cfg:      cfg.withDefaults(),
		clock:    clock,
	}
}

// OpenSession stores a new session for an authenticated user.
func (s *QuizService) OpenSession(ctx context.Context, user domain.User) (*PlayerSession, error) {
	session := NewPlayerSession(user, s.clock.Now())
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	log.Info().Str("session", session.ID).Str("user", user.Name).Msg("session opened")
	return session, nil
}

// Session looks up a live session. A session whose account has been deleted
// or had its role changed since login is closed and reported as not found.
func (s *QuizService) Session(ctx context.Context, sessionID string) (*PlayerSession, error) {
	session, ok := s.sessions.Get(ctx, sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	current, found, err := s.lookupUser(ctx, session.User.ID)
	if err != nil {
		return nil, err
	}
	if found && current.Role == session.User.Role {
		return session, nil
	}

	s.sessions.Delete(ctx, sessionID)
	session.Close()
	log.Info().Str("session", sessionID).Str("user", session.User.Name).Bool("deleted", !found).Msg("session revoked")
	return nil, domain.ErrSessionNotFound
}

func (s *QuizService) lookupUser(ctx context.Context, id string) (domain.User, bool, error) {
	users, err := s.users.Load(ctx)
	if err != nil {
		return domain.User{}, false, err
	}
	for _, u := range users {
		if u.ID == id {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

// CloseSession logs out: the in-progress game is discarded without persistence.
func (s *QuizService) CloseSession(ctx context.Context, sessionID string) {
	session, ok := s.sessions.Get(ctx, sessionID)
	if !ok {
		return
	}
	s.sessions.Delete(ctx, sessionID)
	session.Close()
	log.Info().Str("session", sessionID).Msg("session closed")
}

// Start begins a new game for the session, discarding any previous one.
func (s *QuizService) Start(ctx context.Context, sessionID string) (domain.GameView, error) {
	g, err := s.game(ctx, sessionID)
	if err != nil {
		return domain.GameView{}, err
	}
	return g.Start(ctx)
}

// Restart is Start from the complete (or any) state.
func (s *QuizService) Restart(ctx context.Context, sessionID string) (domain.GameView, error) {
	return s.Start(ctx, sessionID)
}

// Submit answers the current question with one of A-D.
func (s *QuizService) Submit(ctx context.Context, sessionID, answer string) (domain.GameView, error) {
	g, err := s.game(ctx, sessionID)
	if err != nil {
		return domain.GameView{}, err
	}
	choice, err := domain.ParseChoice(answer)
	if err != nil {
		return g.View(), err
	}
	return g.Submit(ctx, choice)
}

// Advance moves to the next question once the current one is answered.
func (s *QuizService) Advance(ctx context.Context, sessionID string) (domain.GameView, error) {
	g, err := s.game(ctx, sessionID)
	if err != nil {
		return domain.GameView{}, err
	}
	return g.Advance(ctx)
}

// Abandon returns to the menu, silently dropping the game in progress.
func (s *QuizService) Abandon(ctx context.Context, sessionID string) (domain.GameView, error) {
	g, err := s.game(ctx, sessionID)
	if err != nil {
		return domain.GameView{}, err
	}
	return g.Abandon(), nil
}

// State returns the current snapshot.
func (s *QuizService) State(ctx context.Context, sessionID string) (domain.GameView, error) {
	g, err := s.game(ctx, sessionID)
	if err != nil {
		return domain.GameView{}, err
	}
	return g.View(), nil
}

// Subscribe returns a channel of game snapshots for the session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(ctx context.Context, sessionID string) (<-chan domain.GameView, func(), error) {
	g, err := s.game(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := g.Subscribe()
	return ch, cancel, nil
}

func (s *QuizService) game(ctx context.Context, sessionID string) (*Game, error) {
	session, err := s.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.game == nil {
		session.game = NewGame(session.User.ID, s.bank, s.scores, s.cfg, s.clock)
	}
	return session.game, nil
}
