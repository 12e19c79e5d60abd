package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"church-quiz-service/internal/app"
	"church-quiz-service/internal/domain"
	"church-quiz-service/internal/infra/memory"
)

var (
	alice = domain.User{ID: "u1", Name: "alice", Role: domain.RoleUser}
	bob   = domain.User{ID: "u2", Name: "bob", Role: domain.RoleAdmin}
)

func newTestService(qs []domain.Question) (*app.QuizService, *memory.SessionStore, *memTable[domain.ScoreRecord], *fakeClock) {
	service, sessions, _, scores, clock := newTestServiceWithUsers(qs)
	return service, sessions, scores, clock
}

func newTestServiceWithUsers(qs []domain.Question) (*app.QuizService, *memory.SessionStore, *memTable[domain.User], *memTable[domain.ScoreRecord], *fakeClock) {
	sessions := memory.NewSessionStore(0)
	users := &memTable[domain.User]{recs: []domain.User{alice, bob}}
	scores := &memTable[domain.ScoreRecord]{}
	clock := newFakeClock()
	service := app.NewQuizServiceWithClock(sessions, users, &staticBank{questions: qs}, scores, app.GameConfig{}, clock)
	return service, sessions, users, scores, clock
}

func TestSessionPlaysAndRecords(t *testing.T) {
	ctx := context.Background()
	service, _, scores, _ := newTestService([]domain.Question{
		question("first", domain.ChoiceB),
		question("second", domain.ChoiceC),
	})

	session, err := service.OpenSession(ctx, alice)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if _, err := service.Start(ctx, session.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, answer := range []string{"B", "C"} {
		if _, err := service.Submit(ctx, session.ID, answer); err != nil {
			t.Fatalf("submit %s: %v", answer, err)
		}
		if _, err := service.Advance(ctx, session.ID); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}
	v, err := service.State(ctx, session.ID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if v.Phase != domain.PhaseComplete || v.Score != 2 {
		t.Fatalf("expected 2/2, got %+v", v)
	}
	if recs := scores.snapshot(); len(recs) != 1 || recs[0].UserID != "u1" || recs[0].Score != 2 {
		t.Fatalf("unexpected records: %+v", recs)
	}

	v, err = service.Restart(ctx, session.ID)
	if err != nil || v.Phase != domain.PhaseActive || v.Score != 0 {
		t.Fatalf("restart: %+v %v", v, err)
	}
}

func TestSubmitRejectsUnknownLetter(t *testing.T) {
	ctx := context.Background()
	service, _, _, _ := newTestService(bankOf(1))
	session, _ := service.OpenSession(ctx, alice)
	if _, err := service.Start(ctx, session.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	v, err := service.Submit(ctx, session.ID, "E")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if v.Phase != domain.PhaseActive {
		t.Fatalf("invalid letter changed the game: %+v", v)
	}
}

func TestUnknownSession(t *testing.T) {
	service, _, _, _ := newTestService(bankOf(1))
	if _, err := service.Start(context.Background(), "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestCloseSessionDiscardsGame(t *testing.T) {
	ctx := context.Background()
	service, sessions, scores, clock := newTestService(bankOf(2))
	session, _ := service.OpenSession(ctx, alice)
	updates, cancel, err := service.Subscribe(ctx, session.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	<-updates

	if _, err := service.Start(ctx, session.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-updates

	service.CloseSession(ctx, session.ID)
	if sessions.Len() != 0 {
		t.Fatalf("session still stored")
	}
	for range updates {
		// drain until the game closes the channel
	}
	if clock.Pending() != 0 {
		t.Fatalf("logout left a timer armed")
	}
	clock.Advance(time.Minute)
	if n := len(scores.snapshot()); n != 0 {
		t.Fatalf("logout recorded %d scores", n)
	}
	if _, err := service.State(ctx, session.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after logout, got %v", err)
	}
}

func TestSessionsDoNotShareGames(t *testing.T) {
	ctx := context.Background()
	service, _, _, _ := newTestService(bankOf(2))
	a, _ := service.OpenSession(ctx, alice)
	b, _ := service.OpenSession(ctx, bob)

	if _, err := service.Start(ctx, a.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	v, err := service.State(ctx, b.ID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if v.Phase != domain.PhaseNotStarted {
		t.Fatalf("second session saw the first session's game: %+v", v)
	}
}

func TestAbandonThroughService(t *testing.T) {
	ctx := context.Background()
	service, _, scores, _ := newTestService(bankOf(2))
	session, _ := service.OpenSession(ctx, alice)
	if _, err := service.Start(ctx, session.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	v, err := service.Abandon(ctx, session.ID)
	if err != nil || v.Phase != domain.PhaseNotStarted {
		t.Fatalf("abandon: %+v %v", v, err)
	}
	if n := len(scores.snapshot()); n != 0 {
		t.Fatalf("abandon recorded %d scores", n)
	}
}

func TestDeletedUserLosesSession(t *testing.T) {
	ctx := context.Background()
	service, sessions, users, scores, clock := newTestServiceWithUsers(bankOf(1))
	session, _ := service.OpenSession(ctx, alice)
	if _, err := service.Start(ctx, session.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.Submit(ctx, session.ID, "A"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	users.recs = []domain.User{bob}
	if _, err := service.Advance(ctx, session.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if sessions.Len() != 0 {
		t.Fatalf("revoked session still stored")
	}
	if clock.Pending() != 0 {
		t.Fatalf("revoked session left a timer armed")
	}
	if n := len(scores.snapshot()); n != 0 {
		t.Fatalf("deleted user recorded %d scores", n)
	}
}

func TestRoleChangeRevokesSession(t *testing.T) {
	ctx := context.Background()
	service, _, users, _, _ := newTestServiceWithUsers(bankOf(1))
	session, _ := service.OpenSession(ctx, bob)
	if got, err := service.Session(ctx, session.ID); err != nil || !got.User.IsAdmin() {
		t.Fatalf("expected admin session, got %+v %v", got, err)
	}

	users.recs[1].Role = domain.RoleUser
	if _, err := service.Session(ctx, session.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected demoted session revoked, got %v", err)
	}

	// logging in again picks up the new role
	demoted := users.snapshot()[1]
	fresh, _ := service.OpenSession(ctx, demoted)
	got, err := service.Session(ctx, fresh.ID)
	if err != nil || got.User.IsAdmin() {
		t.Fatalf("expected non-admin session, got %+v %v", got, err)
	}
}

func TestSessionLookupSurfacesStorageFailure(t *testing.T) {
	ctx := context.Background()
	service, _, users, _, _ := newTestServiceWithUsers(bankOf(1))
	session, _ := service.OpenSession(ctx, alice)

	users.fail = domain.ErrStorageUnavailable
	if _, err := service.State(ctx, session.ID); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	users.fail = nil
	if _, err := service.State(ctx, session.ID); err != nil {
		t.Fatalf("session should survive a storage hiccup: %v", err)
	}
}
