package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"church-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches the question bank from the record store.
type QuestionLoader interface {
	Load(ctx context.Context) ([]domain.Question, error)
}

// QuestionsKey holds the JSON-encoded bank.
const QuestionsKey = "quiz:questions"

// QuestionCache keeps the question bank in Redis so several instances share
// one copy, and falls back to the loader on a miss.
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) Questions(ctx context.Context) ([]domain.Question, error) {
	if qs, ok := c.cached(ctx); ok {
		return qs, nil
	}

	result, err, _ := c.sf.Do(QuestionsKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if qs, ok := c.cached(ctx); ok {
			return qs, nil
		}

		qs, err := c.loader.Load(ctx)
		if err != nil {
			return nil, err
		}
		if ttl := c.ttlWithJitter(); ttl > 0 {
			if raw, err := json.Marshal(qs); err == nil {
				if err := c.client.Set(ctx, QuestionsKey, raw, ttl).Err(); err != nil {
					log.Warn().Err(err).Msg("question cache fill failed")
				}
			}
		}
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	qs := result.([]domain.Question)
	return append([]domain.Question(nil), qs...), nil
}

// Invalidate deletes the shared copy.
func (c *QuestionCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, QuestionsKey).Err()
}

func (c *QuestionCache) cached(ctx context.Context) ([]domain.Question, bool) {
	raw, err := c.client.Get(ctx, QuestionsKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("question cache read failed")
		}
		return nil, false
	}
	var qs []domain.Question
	if err := json.Unmarshal(raw, &qs); err != nil {
		log.Warn().Err(err).Msg("question cache holds invalid data")
		return nil, false
	}
	return qs, true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
