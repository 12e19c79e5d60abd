package postgres

import (
	"church-quiz-service/internal/app"
	"church-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Store holds the three tables created by the migrations package.
type Store struct {
	Users     *Table[domain.User]
	Questions *Table[domain.Question]
	Scores    *Table[domain.ScoreRecord]
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{
		Users:     newTable(pool, userCodec),
		Questions: newTable(pool, questionCodec),
		Scores:    newTable(pool, scoreCodec),
	}
}

// Records exposes the tables as the application's record store.
func (s *Store) Records() app.RecordStore {
	return app.RecordStore{
		Users:     s.Users,
		Questions: s.Questions,
		Scores:    s.Scores,
	}
}

var userCodec = rowCodec[domain.User]{
	table:   "users",
	columns: []string{"id", "name", "password", "role"},
	values: func(u domain.User) []interface{} {
		return []interface{}{u.ID, u.Name, u.PasswordHash, string(u.Role)}
	},
	scan: func(scan scanFunc, lead ...interface{}) (domain.User, error) {
		var (
			u    domain.User
			role string
		)
		if err := scan(append(lead, &u.ID, &u.Name, &u.PasswordHash, &role)...); err != nil {
			return domain.User{}, err
		}
		parsed, err := domain.ParseRole(role)
		if err != nil {
			return domain.User{}, err
		}
		u.Role = parsed
		return u, nil
	},
}

var questionCodec = rowCodec[domain.Question]{
	table:   "questions",
	columns: []string{"question", "option_a", "option_b", "option_c", "option_d", "correct"},
	values: func(q domain.Question) []interface{} {
		return []interface{}{q.Question, q.OptionA, q.OptionB, q.OptionC, q.OptionD, string(q.Correct)}
	},
	scan: func(scan scanFunc, lead ...interface{}) (domain.Question, error) {
		var (
			q       domain.Question
			correct string
		)
		if err := scan(append(lead, &q.Question, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD, &correct)...); err != nil {
			return domain.Question{}, err
		}
		choice, err := domain.ParseChoice(correct)
		if err != nil {
			return domain.Question{}, err
		}
		q.Correct = choice
		return q, nil
	},
}

var scoreCodec = rowCodec[domain.ScoreRecord]{
	table:   "scores",
	columns: []string{"user_id", "score", "date"},
	values: func(s domain.ScoreRecord) []interface{} {
		return []interface{}{s.UserID, int32(s.Score), s.Date}
	},
	scan: func(scan scanFunc, lead ...interface{}) (domain.ScoreRecord, error) {
		var (
			s     domain.ScoreRecord
			score int32
		)
		if err := scan(append(lead, &s.UserID, &score, &s.Date)...); err != nil {
			return domain.ScoreRecord{}, err
		}
		s.Score = int(score)
		return s, nil
	},
}
