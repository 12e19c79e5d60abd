package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"church-quiz-service/internal/domain"
	"church-quiz-service/internal/metrics"
	"github.com/rs/zerolog/log"
)

// GameConfig controls question count, per-question time and ordering.
type GameConfig struct {
	QuestionLimit   int
	QuestionTimeout time.Duration
	Shuffle         bool
}

const (
	DefaultQuestionLimit   = 20
	DefaultQuestionTimeout = 10 * time.Second
)

func (c GameConfig) withDefaults() GameConfig {
	if c.QuestionLimit <= 0 {
		c.QuestionLimit = DefaultQuestionLimit
	}
	// a score record holds at most MaxScore points
	if c.QuestionLimit > domain.MaxScore {
		c.QuestionLimit = domain.MaxScore
	}
	if c.QuestionTimeout <= 0 {
		c.QuestionTimeout = DefaultQuestionTimeout
	}
	return c
}

// Game is one player's timed quiz. All transitions happen under mu; the
// question timer re-enters through expire, so submit, advance and timeout are
// serialised and the first to take the lock wins.
//
// Invariant: 0 <= score <= index <= total, total = min(limit, bank size).
type Game struct {
	userID string
	bank   QuestionBank
	scores ScoreRecorder
	clock  Clock
	cfg    GameConfig
	rnd    *rand.Rand

	mu          sync.Mutex
	phase       domain.Phase
	questions   []domain.Question
	index       int
	score       int
	deadline    time.Time
	feedback    domain.Feedback
	selected    domain.Choice
	warning     string
	recorded    bool
	timer       Timer
	generation  uint64
	closed      bool
	subscribers map[chan domain.GameView]struct{}
}

// NewGame creates a game in NotStarted. An empty userID plays anonymously and
// never records a score.
func NewGame(userID string, bank QuestionBank, scores ScoreRecorder, cfg GameConfig, clock Clock) *Game {
	if clock == nil {
		clock = SystemClock
	}
	return &Game{
		userID:      userID,
		bank:        bank,
		scores:      scores,
		clock:       clock,
		cfg:         cfg.withDefaults(),
		rnd:         rand.New(rand.NewSource(clock.Now().UnixNano())),
		phase:       domain.PhaseNotStarted,
		subscribers: make(map[chan domain.GameView]struct{}),
	}
}

// Start loads the bank and enters Active(0), discarding any previous progress.
// It also serves as restart.
func (g *Game) Start(ctx context.Context) (domain.GameView, error) {
	bank, err := g.bank.Questions(ctx)
	if err != nil {
		return g.View(), err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopTimerLocked()
	g.questions = g.pickLocked(bank)
	g.index = 0
	g.score = 0
	g.feedback = domain.FeedbackNone
	g.selected = ""
	g.recorded = false
	g.warning = ""
	if len(bank) < g.cfg.QuestionLimit {
		g.warning = fmt.Sprintf("Only %d questions available. The quiz is designed for %d questions.", len(bank), g.cfg.QuestionLimit)
	}
	metrics.GamesStarted.Inc()
	log.Debug().Str("user", g.userID).Int("questions", len(g.questions)).Msg("game started")

	if len(g.questions) == 0 {
		err := g.completeLocked(ctx)
		return g.broadcastLocked(), err
	}
	g.activateLocked()
	return g.broadcastLocked(), nil
}

// Submit answers the current question. A submission at or after the deadline
// is late and resolves as a timeout.
func (g *Game) Submit(_ context.Context, choice domain.Choice) (domain.GameView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	switch g.phase {
	case domain.PhaseNotStarted:
		return g.snapshotLocked(now), domain.ErrGameNotStarted
	case domain.PhaseActive:
	default:
		return g.snapshotLocked(now), domain.ErrInvalidAnswerState
	}

	if !now.Before(g.deadline) {
		g.timeoutLocked()
		return g.broadcastLocked(), nil
	}

	g.stopTimerLocked()
	g.selected = choice
	if choice == g.questions[g.index].Correct {
		g.score++
		g.feedback = domain.FeedbackCorrect
	} else {
		g.feedback = domain.FeedbackWrong
	}
	g.phase = domain.PhaseAnswered
	metrics.Answers.WithLabelValues(string(g.feedback)).Inc()
	return g.broadcastLocked(), nil
}

// Advance moves from Answered to the next question, or to Complete after the
// last one. In Active it changes nothing and reports ErrInvalidAnswerState.
func (g *Game) Advance(ctx context.Context) (domain.GameView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	changed := g.settleLocked(now)
	switch g.phase {
	case domain.PhaseNotStarted:
		return g.snapshotLocked(now), domain.ErrGameNotStarted
	case domain.PhaseAnswered:
	default:
		if changed {
			return g.broadcastLocked(), domain.ErrInvalidAnswerState
		}
		return g.snapshotLocked(now), domain.ErrInvalidAnswerState
	}

	g.index++
	g.feedback = domain.FeedbackNone
	g.selected = ""
	if g.index >= len(g.questions) {
		err := g.completeLocked(ctx)
		return g.broadcastLocked(), err
	}
	g.activateLocked()
	return g.broadcastLocked(), nil
}

// Abandon discards progress without persisting anything and returns to NotStarted.
func (g *Game) Abandon() domain.GameView {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopTimerLocked()
	wasPlaying := g.phase == domain.PhaseActive || g.phase == domain.PhaseAnswered
	g.phase = domain.PhaseNotStarted
	g.questions = nil
	g.index, g.score = 0, 0
	g.feedback, g.selected, g.warning = domain.FeedbackNone, "", ""
	g.recorded = false
	if wasPlaying {
		log.Debug().Str("user", g.userID).Msg("game abandoned")
	}
	return g.broadcastLocked()
}

// View returns the current snapshot, applying an elapsed deadline first.
func (g *Game) View() domain.GameView {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.settleLocked(g.clock.Now()) {
		return g.broadcastLocked()
	}
	return g.snapshotLocked(g.clock.Now())
}

// Subscribe returns a channel of snapshots, starting with the current one.
// The caller must invoke cancel to release it.
func (g *Game) Subscribe() (<-chan domain.GameView, func()) {
	ch := make(chan domain.GameView, 8)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	g.subscribers[ch] = struct{}{}
	ch <- g.snapshotLocked(g.clock.Now())
	g.mu.Unlock()

	cancel := func() {
		g.mu.Lock()
		if _, ok := g.subscribers[ch]; ok {
			delete(g.subscribers, ch)
			close(ch)
		}
		g.mu.Unlock()
	}
	return ch, cancel
}

// Close cancels the timer and closes every subscription. The game is unusable afterwards.
func (g *Game) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopTimerLocked()
	g.closed = true
	for ch := range g.subscribers {
		delete(g.subscribers, ch)
		close(ch)
	}
}

func (g *Game) pickLocked(bank []domain.Question) []domain.Question {
	total := min(g.cfg.QuestionLimit, len(bank))
	picked := make([]domain.Question, 0, total)
	if g.cfg.Shuffle {
		for _, i := range g.rnd.Perm(len(bank))[:total] {
			picked = append(picked, bank[i])
		}
		return picked
	}
	return append(picked, bank[:total]...)
}

// activateLocked enters Active at the current index and arms a fresh timer.
func (g *Game) activateLocked() {
	g.stopTimerLocked()
	g.phase = domain.PhaseActive
	g.deadline = g.clock.Now().Add(g.cfg.QuestionTimeout)
	g.generation++
	gen := g.generation
	g.timer = g.clock.AfterFunc(g.cfg.QuestionTimeout, func() { g.expire(gen) })
}

func (g *Game) expire(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if gen != g.generation || g.phase != domain.PhaseActive {
		return
	}
	g.timer = nil
	g.timeoutLocked()
	g.broadcastLocked()
}

// settleLocked applies a timeout whose deadline has passed but whose timer
// has not been observed yet.
func (g *Game) settleLocked(now time.Time) bool {
	if g.phase != domain.PhaseActive || now.Before(g.deadline) {
		return false
	}
	g.timeoutLocked()
	return true
}

func (g *Game) timeoutLocked() {
	g.stopTimerLocked()
	g.phase = domain.PhaseAnswered
	g.feedback = domain.FeedbackTimedOut
	g.selected = ""
	metrics.Answers.WithLabelValues(string(domain.FeedbackTimedOut)).Inc()
	log.Debug().Str("user", g.userID).Int("index", g.index).Msg("question timed out")
}

func (g *Game) completeLocked(ctx context.Context) error {
	g.stopTimerLocked()
	g.phase = domain.PhaseComplete
	metrics.GamesCompleted.Inc()
	if g.userID == "" || g.recorded {
		return nil
	}
	rec := domain.ScoreRecord{
		UserID: g.userID,
		Score:  g.score,
		Date:   domain.FormatDate(g.clock.Now()),
	}
	if err := g.scores.Append(ctx, rec); err != nil {
		log.Error().Err(err).Str("user", g.userID).Int("score", g.score).Msg("failed to record score")
		return err
	}
	g.recorded = true
	log.Info().Str("user", g.userID).Int("score", g.score).Int("total", len(g.questions)).Msg("game complete")
	return nil
}

func (g *Game) stopTimerLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

func (g *Game) broadcastLocked() domain.GameView {
	view := g.snapshotLocked(g.clock.Now())
	for ch := range g.subscribers {
		select {
		case ch <- view:
		default:
			// drop the oldest snapshot so a slow reader never blocks a transition
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
	return view
}

func (g *Game) snapshotLocked(now time.Time) domain.GameView {
	view := domain.GameView{
		Phase:    g.phase,
		Index:    g.index,
		Total:    len(g.questions),
		Score:    g.score,
		Feedback: g.feedback,
		Selected: g.selected,
		Warning:  g.warning,
		Recorded: g.recorded,
	}
	if g.phase != domain.PhaseActive && g.phase != domain.PhaseAnswered {
		return view
	}

	q := g.questions[g.index]
	options := make(map[domain.Choice]string, len(domain.Choices))
	for _, c := range domain.Choices {
		options[c] = q.Option(c)
	}
	view.Question = &domain.QuestionView{Number: g.index + 1, Text: q.Question, Options: options}
	deadline := g.deadline
	view.Deadline = &deadline
	if g.phase == domain.PhaseActive {
		if remaining := g.deadline.Sub(now); remaining > 0 {
			view.RemainingSeconds = int(remaining / time.Second)
		}
	} else {
		view.CorrectAnswer = q.Correct
	}
	return view
}
