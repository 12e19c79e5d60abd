package app

import (
	"context"

	"church-quiz-service/internal/domain"
)

// Table is durable storage for one record kind. Records are ordered; the
// position passed to predicates is the record's index in that order.
// Every mutation is a full read-modify-write of the table.
type Table[T any] interface {
	Load(ctx context.Context) ([]T, error)
	Append(ctx context.Context, rec T) error
	UpdateWhere(ctx context.Context, match func(pos int, rec T) bool, mutate func(rec *T)) (int, error)
	DeleteWhere(ctx context.Context, match func(pos int, rec T) bool) (int, error)
	ReplaceAll(ctx context.Context, recs []T) error
}

// RecordStore groups the three tables the application persists.
type RecordStore struct {
	Users     Table[domain.User]
	Questions Table[domain.Question]
	Scores    Table[domain.ScoreRecord]
}

// QuestionBank serves the question table, possibly from a cache.
type QuestionBank interface {
	Questions(ctx context.Context) ([]domain.Question, error)
	Invalidate(ctx context.Context) error
}

// ScoreRecorder persists finished games.
type ScoreRecorder interface {
	Append(ctx context.Context, rec domain.ScoreRecord) error
}

// byName matches a user by exact, case-sensitive name.
func byName(name string) func(int, domain.User) bool {
	return func(_ int, u domain.User) bool { return u.Name == name }
}

// byID matches a user by id.
func byID(id string) func(int, domain.User) bool {
	return func(_ int, u domain.User) bool { return u.ID == id }
}

// atPosition matches the record at a fixed position.
func atPosition[T any](pos int) func(int, T) bool {
	return func(i int, _ T) bool { return i == pos }
}
