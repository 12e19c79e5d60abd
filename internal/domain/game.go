package domain

import "time"

// Phase is where a game sits in its lifecycle.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseActive     Phase = "active"
	PhaseAnswered   Phase = "answered"
	PhaseComplete   Phase = "complete"
)

// Feedback is the outcome of the current question.
type Feedback string

const (
	FeedbackNone     Feedback = ""
	FeedbackCorrect  Feedback = "correct"
	FeedbackWrong    Feedback = "wrong"
	FeedbackTimedOut Feedback = "timed_out"
)

// QuestionView is a question as shown to a player; the correct letter is withheld.
type QuestionView struct {
	Number  int               `json:"number"`
	Text    string            `json:"text"`
	Options map[Choice]string `json:"options"`
}

// GameView is an immutable snapshot of a game after a transition.
type GameView struct {
	Phase            Phase         `json:"phase"`
	Index            int           `json:"index"`
	Total            int           `json:"total"`
	Score            int           `json:"score"`
	Question         *QuestionView `json:"question,omitempty"`
	Deadline         *time.Time    `json:"deadline,omitempty"`
	RemainingSeconds int           `json:"remainingSeconds"`
	Feedback         Feedback      `json:"feedback,omitempty"`
	Selected         Choice        `json:"selected,omitempty"`
	CorrectAnswer    Choice        `json:"correctAnswer,omitempty"`
	Warning          string        `json:"warning,omitempty"`
	Recorded         bool          `json:"recorded"`
}
