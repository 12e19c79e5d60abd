package app_test

import (
	"context"
	"errors"
	"testing"

	"church-quiz-service/internal/app"
	"church-quiz-service/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

type adminFixture struct {
	admin     *app.AdminService
	auth      *app.AuthService
	users     *memTable[domain.User]
	questions *memTable[domain.Question]
	scores    *memTable[domain.ScoreRecord]
	bank      *staticBank
	root      domain.User
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	f := &adminFixture{
		users:     &memTable[domain.User]{},
		questions: &memTable[domain.Question]{recs: domain.SeedQuestions()},
		scores:    &memTable[domain.ScoreRecord]{},
		bank:      &staticBank{},
	}
	f.auth = app.NewAuthService(f.users, app.AuthConfig{HashCost: bcrypt.MinCost})
	if err := f.auth.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	f.root = f.users.snapshot()[0]
	store := app.RecordStore{Users: f.users, Questions: f.questions, Scores: f.scores}
	f.admin = app.NewAdminService(store, f.bank, f.auth)
	return f
}

func TestAdminCannotDemoteOrDeleteSelf(t *testing.T) {
	ctx := context.Background()
	f := newAdminFixture(t)

	if err := f.admin.SetRole(ctx, f.root, f.root.ID, domain.RoleUser); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("self demotion: expected ErrForbidden, got %v", err)
	}
	if err := f.admin.DeleteUser(ctx, f.root, f.root.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("self delete: expected ErrForbidden, got %v", err)
	}
	if u := f.users.snapshot(); len(u) != 1 || !u[0].IsAdmin() {
		t.Fatalf("admin changed: %+v", u)
	}
}

func TestAdminManagesUsers(t *testing.T) {
	ctx := context.Background()
	f := newAdminFixture(t)

	bob, err := f.admin.AddUser(ctx, "bob", "pw", domain.RoleUser)
	if err != nil {
		t.Fatalf("add user: %v", err)
	}
	if _, err := f.admin.AddUser(ctx, "bob", "pw", domain.RoleUser); !errors.Is(err, domain.ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser, got %v", err)
	}
	if err := f.admin.SetRole(ctx, f.root, bob.ID, domain.RoleAdmin); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if err := f.admin.SetRole(ctx, f.root, "missing", domain.RoleAdmin); !errors.Is(err, domain.ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
	if err := f.admin.ResetUserPassword(ctx, bob.ID, "fresh"); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	if _, err := f.auth.AdminLogin(ctx, "bob", "fresh"); err != nil {
		t.Fatalf("promoted bob cannot log in as admin: %v", err)
	}
	if err := f.admin.DeleteUser(ctx, f.root, bob.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.admin.DeleteUser(ctx, f.root, bob.ID); !errors.Is(err, domain.ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
}

func TestAdminEditsQuestionsAndInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	f := newAdminFixture(t)

	q := question("new", domain.ChoiceD)
	if err := f.admin.AddQuestion(ctx, q); err != nil {
		t.Fatalf("add: %v", err)
	}
	bad := q
	bad.OptionC = ""
	if err := f.admin.AddQuestion(ctx, bad); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	q.Question = "edited"
	if err := f.admin.UpdateQuestion(ctx, 5, q); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := f.admin.UpdateQuestion(ctx, 42, q); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := f.admin.DeleteQuestion(ctx, 0); err != nil {
		t.Fatalf("delete: %v", err)
	}

	qs, err := f.admin.ListQuestions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(qs) != 5 || qs[4].Question != "edited" {
		t.Fatalf("unexpected bank: %+v", qs)
	}
	if f.bank.invalidated != 3 {
		t.Fatalf("expected 3 cache invalidations, got %d", f.bank.invalidated)
	}

	if err := f.admin.ReplaceQuestions(ctx, []domain.Question{q, bad}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for bulk replace, got %v", err)
	}
	if err := f.admin.ReplaceQuestions(ctx, []domain.Question{q}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if n := len(f.questions.snapshot()); n != 1 {
		t.Fatalf("expected one question after replace, got %d", n)
	}
}

func TestAdminEditsScores(t *testing.T) {
	ctx := context.Background()
	f := newAdminFixture(t)
	bob, err := f.admin.AddUser(ctx, "bob", "pw", domain.RoleUser)
	if err != nil {
		t.Fatalf("add user: %v", err)
	}
	f.scores.recs = []domain.ScoreRecord{
		{UserID: bob.ID, Score: 5, Date: "2024-01-01 10:00:00"},
		{UserID: f.root.ID, Score: 9, Date: "2024-01-02 10:00:00"},
		{UserID: bob.ID, Score: 7, Date: "2024-01-03 10:00:00"},
	}

	rows, err := f.admin.ListScores(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 || rows[0].PlayerName != "admin" || rows[0].Position != 1 {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	if err := f.admin.UpdateScore(ctx, 0, 21, "2024-01-01 10:00:00"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("score above max: expected ErrValidation, got %v", err)
	}
	if err := f.admin.UpdateScore(ctx, 0, 6, "yesterday"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad date: expected ErrValidation, got %v", err)
	}
	if err := f.admin.UpdateScore(ctx, 9, 6, "2024-01-01 10:00:00"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("bad position: expected ErrNotFound, got %v", err)
	}
	if err := f.admin.UpdateScore(ctx, 0, 6, "2024-01-04 10:00:00"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := f.scores.snapshot()[0]; got.Score != 6 || got.Date != "2024-01-04 10:00:00" {
		t.Fatalf("update not applied: %+v", got)
	}

	n, err := f.admin.DeleteScoresForUser(ctx, bob.ID)
	if err != nil || n != 2 {
		t.Fatalf("delete scores: n=%d err=%v", n, err)
	}
	if left := f.scores.snapshot(); len(left) != 1 || left[0].UserID != f.root.ID {
		t.Fatalf("unexpected scores left: %+v", left)
	}
}
