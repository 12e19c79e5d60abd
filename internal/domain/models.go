package domain

import (
	"fmt"
	"time"
)

// DateLayout is how score timestamps are written to storage.
const DateLayout = "2006-01-02 15:04:05"

// FormatDate renders t with DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Role is the single authorization flag a user carries.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole accepts exactly "user" or "admin".
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleUser, RoleAdmin:
		return Role(raw), nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrValidation, raw)
}

// User is a registered player or administrator.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Choice is one of the four answer letters.
type Choice string

const (
	ChoiceA Choice = "A"
	ChoiceB Choice = "B"
	ChoiceC Choice = "C"
	ChoiceD Choice = "D"
)

// Choices lists the letters in display order.
var Choices = []Choice{ChoiceA, ChoiceB, ChoiceC, ChoiceD}

// ParseChoice accepts a single answer letter.
func ParseChoice(raw string) (Choice, error) {
	switch Choice(raw) {
	case ChoiceA, ChoiceB, ChoiceC, ChoiceD:
		return Choice(raw), nil
	}
	return "", fmt.Errorf("%w: answer must be one of A, B, C, D", ErrValidation)
}

// Question models an MCQ question with exactly one correct letter.
// Questions have no identity beyond their position in the bank.
type Question struct {
	Question string `json:"question"`
	OptionA  string `json:"optionA"`
	OptionB  string `json:"optionB"`
	OptionC  string `json:"optionC"`
	OptionD  string `json:"optionD"`
	Correct  Choice `json:"correct"`
}

// Option returns the text shown for a letter.
func (q Question) Option(c Choice) string {
	switch c {
	case ChoiceA:
		return q.OptionA
	case ChoiceB:
		return q.OptionB
	case ChoiceC:
		return q.OptionC
	case ChoiceD:
		return q.OptionD
	}
	return ""
}

// Validate requires every text field and a valid correct letter.
func (q Question) Validate() error {
	if q.Question == "" || q.OptionA == "" || q.OptionB == "" || q.OptionC == "" || q.OptionD == "" {
		return fmt.Errorf("%w: all fields are required", ErrValidation)
	}
	if _, err := ParseChoice(string(q.Correct)); err != nil {
		return err
	}
	return nil
}

// ScoreRecord is one finished game. A user may own many.
type ScoreRecord struct {
	UserID string `json:"userId"`
	Score  int    `json:"score"`
	Date   string `json:"date"`
}

// MaxScore bounds a single score record.
const MaxScore = 20

// LeaderboardEntry is one ranked row of the leaderboard.
type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	PlayerName string `json:"playerName"`
	Score      int    `json:"score"`
	Date       string `json:"date"`
}

// ScoreRow is the admin view of a stored score, addressed by file position.
type ScoreRow struct {
	Position   int    `json:"position"`
	PlayerName string `json:"playerName"`
	UserID     string `json:"userId"`
	Score      int    `json:"score"`
	Date       string `json:"date"`
}
