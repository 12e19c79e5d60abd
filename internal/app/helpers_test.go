package app_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"church-quiz-service/internal/app"
	"church-quiz-service/internal/domain"
)

// memTable is an in-memory app.Table. Setting fail makes every call return it.
type memTable[T any] struct {
	mu   sync.Mutex
	recs []T
	fail error
}

func (m *memTable[T]) Load(_ context.Context) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	return append([]T(nil), m.recs...), nil
}

func (m *memTable[T]) Append(_ context.Context, rec T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memTable[T]) UpdateWhere(_ context.Context, match func(int, T) bool, mutate func(*T)) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return 0, m.fail
	}
	n := 0
	for i := range m.recs {
		if match(i, m.recs[i]) {
			mutate(&m.recs[i])
			n++
		}
	}
	return n, nil
}

func (m *memTable[T]) DeleteWhere(_ context.Context, match func(int, T) bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return 0, m.fail
	}
	kept := m.recs[:0:0]
	for i, rec := range m.recs {
		if !match(i, rec) {
			kept = append(kept, rec)
		}
	}
	n := len(m.recs) - len(kept)
	m.recs = kept
	return n, nil
}

func (m *memTable[T]) ReplaceAll(_ context.Context, recs []T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.recs = append([]T(nil), recs...)
	return nil
}

func (m *memTable[T]) snapshot() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]T(nil), m.recs...)
}

// staticBank serves a fixed bank and counts invalidations.
type staticBank struct {
	mu          sync.Mutex
	questions   []domain.Question
	invalidated int
}

func (b *staticBank) Questions(_ context.Context) ([]domain.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Question(nil), b.questions...), nil
}

func (b *staticBank) Invalidate(_ context.Context) error {
	b.mu.Lock()
	b.invalidated++
	b.mu.Unlock()
	return nil
}

// fakeClock only moves when told to. Advance fires due timers synchronously.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) app.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Skip moves time forward without firing timers, as if the timer goroutine
// had not been scheduled yet.
func (c *fakeClock) Skip(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Advance moves time forward and fires every timer now due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// Pending counts armed timers.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func question(text string, correct domain.Choice) domain.Question {
	return domain.Question{
		Question: text,
		OptionA:  text + " a",
		OptionB:  text + " b",
		OptionC:  text + " c",
		OptionD:  text + " d",
		Correct:  correct,
	}
}

func bankOf(n int) []domain.Question {
	qs := make([]domain.Question, n)
	for i := range qs {
		qs[i] = question("q"+string(rune('a'+i%26)), domain.ChoiceA)
	}
	return qs
}
