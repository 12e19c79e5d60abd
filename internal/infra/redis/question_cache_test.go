package redis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"church-quiz-service/internal/domain"
)

type countingLoader struct {
	calls atomic.Int32
	qs    []domain.Question
	err   error
}

func (l *countingLoader) Load(_ context.Context) ([]domain.Question, error) {
	l.calls.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	return l.qs, nil
}

func TestQuestionCacheFillsRedisOnce(t *testing.T) {
	mr, client := newTestClient(t)
	loader := &countingLoader{qs: domain.SeedQuestions()}
	cache := NewQuestionCache(client, loader, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Questions(ctx); err != nil {
				t.Errorf("questions: %v", err)
			}
		}()
	}
	wg.Wait()

	if !mr.Exists(QuestionsKey) {
		t.Fatalf("expected bank to be cached in redis")
	}
	if n := loader.calls.Load(); n < 1 || n > 2 {
		t.Fatalf("expected loader to be hit once or twice, got %d", n)
	}

	before := loader.calls.Load()
	qs, err := cache.Questions(ctx)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if loader.calls.Load() != before {
		t.Fatalf("expected cached read not to hit the loader")
	}
	if len(qs) != 5 || qs[0].Correct != domain.ChoiceD {
		t.Fatalf("unexpected bank from cache: %+v", qs)
	}
}

func TestQuestionCacheInvalidate(t *testing.T) {
	mr, client := newTestClient(t)
	loader := &countingLoader{qs: domain.SeedQuestions()}
	cache := NewQuestionCache(client, loader, time.Minute)
	ctx := context.Background()

	if _, err := cache.Questions(ctx); err != nil {
		t.Fatalf("questions: %v", err)
	}
	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists(QuestionsKey) {
		t.Fatalf("expected key to be deleted")
	}
	if _, err := cache.Questions(ctx); err != nil {
		t.Fatalf("questions: %v", err)
	}
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after invalidate, got %d loads", loader.calls.Load())
	}
}

func TestQuestionCacheSurvivesCorruptEntry(t *testing.T) {
	mr, client := newTestClient(t)
	loader := &countingLoader{qs: domain.SeedQuestions()}
	cache := NewQuestionCache(client, loader, time.Minute)

	if err := mr.Set(QuestionsKey, "not json"); err != nil {
		t.Fatalf("seed key: %v", err)
	}
	qs, err := cache.Questions(context.Background())
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(qs) != 5 {
		t.Fatalf("expected loader result, got %d questions", len(qs))
	}
}

func TestQuestionCachePropagatesLoaderError(t *testing.T) {
	_, client := newTestClient(t)
	loader := &countingLoader{err: domain.ErrStorageUnavailable}
	cache := NewQuestionCache(client, loader, time.Minute)

	if _, err := cache.Questions(context.Background()); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage error, got %v", err)
	}
}
