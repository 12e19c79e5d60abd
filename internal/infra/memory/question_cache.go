package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"church-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches the question bank from the record store.
type QuestionLoader interface {
	Load(ctx context.Context) ([]domain.Question, error)
}

// QuestionCache caches the question bank with TTL to avoid re-reading the
// table on every game start. A non-positive TTL disables caching.
type QuestionCache struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu      sync.RWMutex
	entry   *cachedBank
	version uint64
}

type cachedBank struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionCache(loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) Questions(ctx context.Context) ([]domain.Question, error) {
	if qs, ok := c.cached(c.clock()); ok {
		return qs, nil
	}

	result, err, _ := c.sf.Do("bank", func() (interface{}, error) {
		now := c.clock()
		if qs, ok := c.cached(now); ok {
			return qs, nil
		}

		c.mu.RLock()
		version := c.version
		c.mu.RUnlock()

		qs, err := c.loader.Load(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		// an invalidation during the load means qs may already be stale
		if c.version == version {
			c.entry = &cachedBank{questions: qs, expiresAt: now.Add(c.ttlWithJitter())}
		}
		c.mu.Unlock()
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return clone(result.([]domain.Question)), nil
}

// Invalidate drops the cached bank so the next read goes to the loader.
func (c *QuestionCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	c.entry = nil
	c.version++
	c.mu.Unlock()
	return nil
}

func (c *QuestionCache) cached(now time.Time) ([]domain.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry != nil && c.entry.expiresAt.After(now) {
		return clone(c.entry.questions), true
	}
	return nil, false
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func clone(qs []domain.Question) []domain.Question {
	return append([]domain.Question(nil), qs...)
}

// StaticQuestionLoader is a simple loader backed by a fixed slice (useful for tests/demos).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) Load(_ context.Context) ([]domain.Question, error) {
	return clone(l.questions), nil
}
