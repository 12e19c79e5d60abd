package app

import (
	"context"
	"fmt"
	"time"

	"church-quiz-service/internal/domain"
	"github.com/rs/zerolog/log"
)

// AdminService is the CRUD surface of the admin console. Callers must have
// checked that the acting user is an admin.
type AdminService struct {
	store RecordStore
	bank  QuestionBank
	auth  *AuthService
}

func NewAdminService(store RecordStore, bank QuestionBank, auth *AuthService) *AdminService {
	return &AdminService{store: store, bank: bank, auth: auth}
}

func (s *AdminService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.store.Users.Load(ctx)
}

func (s *AdminService) AddUser(ctx context.Context, name, password string, role domain.Role) (domain.User, error) {
	user, err := s.auth.AddUser(ctx, name, password, role)
	if err != nil {
		return domain.User{}, err
	}
	log.Info().Str("user", name).Str("role", string(role)).Msg("admin added user")
	return user, nil
}

// SetRole changes a user's role. An admin cannot demote themselves.
func (s *AdminService) SetRole(ctx context.Context, actor domain.User, userID string, role domain.Role) error {
	if userID == actor.ID && role != domain.RoleAdmin {
		return fmt.Errorf("%w: you cannot remove your own admin privileges", domain.ErrForbidden)
	}
	n, err := s.store.Users.UpdateWhere(ctx, byID(userID), func(u *domain.User) { u.Role = role })
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrUnknownUser
	}
	return nil
}

func (s *AdminService) ResetUserPassword(ctx context.Context, userID, password string) error {
	return s.auth.SetPassword(ctx, userID, password)
}

// DeleteUser removes a user. Their scores stay on file but no longer join
// to a name, so they drop off the leaderboard.
func (s *AdminService) DeleteUser(ctx context.Context, actor domain.User, userID string) error {
	if userID == actor.ID {
		return fmt.Errorf("%w: you cannot delete your own account", domain.ErrForbidden)
	}
	n, err := s.store.Users.DeleteWhere(ctx, byID(userID))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrUnknownUser
	}
	log.Info().Str("userId", userID).Msg("admin deleted user")
	return nil
}

func (s *AdminService) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	return s.store.Questions.Load(ctx)
}

func (s *AdminService) AddQuestion(ctx context.Context, q domain.Question) error {
	if err := q.Validate(); err != nil {
		return err
	}
	if err := s.store.Questions.Append(ctx, q); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *AdminService) UpdateQuestion(ctx context.Context, pos int, q domain.Question) error {
	if err := q.Validate(); err != nil {
		return err
	}
	n, err := s.store.Questions.UpdateWhere(ctx, atPosition[domain.Question](pos), func(old *domain.Question) { *old = q })
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	s.invalidate(ctx)
	return nil
}

func (s *AdminService) DeleteQuestion(ctx context.Context, pos int) error {
	n, err := s.store.Questions.DeleteWhere(ctx, atPosition[domain.Question](pos))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	s.invalidate(ctx)
	return nil
}

// ReplaceQuestions swaps the whole bank, as the bulk editor does.
func (s *AdminService) ReplaceQuestions(ctx context.Context, qs []domain.Question) error {
	for i, q := range qs {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	if err := s.store.Questions.ReplaceAll(ctx, qs); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// ListScores returns every score joined to its player, leaderboard order.
func (s *AdminService) ListScores(ctx context.Context) ([]domain.ScoreRow, error) {
	return rankedScores(ctx, s.store.Users, s.store.Scores)
}

// UpdateScore edits the score at a file position.
func (s *AdminService) UpdateScore(ctx context.Context, pos, score int, date string) error {
	if score < 0 || score > domain.MaxScore {
		return fmt.Errorf("%w: score must be between 0 and %d", domain.ErrValidation, domain.MaxScore)
	}
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return fmt.Errorf("%w: date must look like %s", domain.ErrValidation, domain.DateLayout)
	}
	n, err := s.store.Scores.UpdateWhere(ctx, atPosition[domain.ScoreRecord](pos), func(rec *domain.ScoreRecord) {
		rec.Score = score
		rec.Date = date
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteScoresForUser removes a player's whole score history.
func (s *AdminService) DeleteScoresForUser(ctx context.Context, userID string) (int, error) {
	return s.store.Scores.DeleteWhere(ctx, func(_ int, rec domain.ScoreRecord) bool { return rec.UserID == userID })
}

// invalidate drops the cached bank; a failure only delays visibility until the cache TTL.
func (s *AdminService) invalidate(ctx context.Context) {
	if s.bank == nil {
		return
	}
	if err := s.bank.Invalidate(ctx); err != nil {
		log.Warn().Err(err).Msg("question cache invalidation failed")
	}
}
