package csvstore

import (
	"fmt"
	"path/filepath"
	"strconv"

	"church-quiz-service/internal/app"
	"church-quiz-service/internal/domain"
)

// File names inside the data directory.
const (
	UsersFile     = "users.csv"
	QuestionsFile = "questions.csv"
	ScoresFile    = "scores.csv"
)

// Store holds the three CSV tables of a data directory.
type Store struct {
	Users     *Table[domain.User]
	Questions *Table[domain.Question]
	Scores    *Table[domain.ScoreRecord]
}

// New opens (lazily) the tables under dir. Files are created on first access.
func New(dir string) *Store {
	return &Store{
		Users:     newTable(filepath.Join(dir, UsersFile), userCodec, nil),
		Questions: newTable(filepath.Join(dir, QuestionsFile), questionCodec, domain.SeedQuestions),
		Scores:    newTable(filepath.Join(dir, ScoresFile), scoreCodec, nil),
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

var userCodec = codec[domain.User]{
	header: []string{"id", "name", "password", "role"},
	encode: func(u domain.User) []string {
		return []string{u.ID, u.Name, u.PasswordHash, string(u.Role)}
	},
	decode: func(row map[string]string) (domain.User, error) {
		role, err := domain.ParseRole(row["role"])
		if err != nil {
			return domain.User{}, err
		}
		return domain.User{
			ID:           row["id"],
			Name:         row["name"],
			PasswordHash: row["password"],
			Role:         role,
		}, nil
	},
}

var questionCodec = codec[domain.Question]{
	header: []string{"question", "option_a", "option_b", "option_c", "option_d", "correct"},
	encode: func(q domain.Question) []string {
		return []string{q.Question, q.OptionA, q.OptionB, q.OptionC, q.OptionD, string(q.Correct)}
	},
	decode: func(row map[string]string) (domain.Question, error) {
		correct, err := domain.ParseChoice(row["correct"])
		if err != nil {
			return domain.Question{}, err
		}
		return domain.Question{
			Question: row["question"],
			OptionA:  row["option_a"],
			OptionB:  row["option_b"],
			OptionC:  row["option_c"],
			OptionD:  row["option_d"],
			Correct:  correct,
		}, nil
	},
}

var scoreCodec = codec[domain.ScoreRecord]{
	header: []string{"user_id", "score", "date"},
	encode: func(s domain.ScoreRecord) []string {
		return []string{s.UserID, strconv.Itoa(s.Score), s.Date}
	},
	decode: func(row map[string]string) (domain.ScoreRecord, error) {
		score, err := strconv.Atoi(row["score"])
		if err != nil {
			return domain.ScoreRecord{}, fmt.Errorf("score %q: %w", row["score"], err)
		}
		return domain.ScoreRecord{
			UserID: row["user_id"],
			Score:  score,
			Date:   row["date"],
		}, nil
	},
}
