package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz-pipeline-service/internal/domain"
)

func sampleQuiz(id string) domain.Quiz {
	return domain.Quiz{
		RequestID:  id,
		UserID:     "child_001",
		Topic:      "saving",
		Difficulty: domain.TierMedium,
		Questions: []domain.Question{
			{ID: "q_1", Text: "What is saving?", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 2},
		},
	}
}

type countingCache struct {
	*QuizCache
	gets int
}

func (c *countingCache) Get(ctx context.Context, id string) (domain.Quiz, error) {
	c.gets++
	return c.QuizCache.Get(ctx, id)
}

func TestQuizCacheExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cache := newQuizCacheWithClock(time.Minute, nil, func() time.Time { return now })

	if err := cache.Save(context.Background(), sampleQuiz("req-1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := cache.Get(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Questions[0].CorrectIndex != 2 {
		t.Fatalf("unexpected quiz %+v", got)
	}

	now = now.Add(2 * time.Minute)
	if _, err := cache.Get(context.Background(), "req-1"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
	if removed := cache.Purge(); removed != 1 {
		t.Fatalf("expected 1 purged entry, got %d", removed)
	}
}

func TestQuizCacheFillsFromNext(t *testing.T) {
	shared := &countingCache{QuizCache: NewQuizCache(time.Minute, nil)}
	if err := shared.Save(context.Background(), sampleQuiz("req-2")); err != nil {
		t.Fatalf("seed shared: %v", err)
	}

	near := NewQuizCache(time.Minute, shared)
	for i := 0; i < 3; i++ {
		if _, err := near.Get(context.Background(), "req-2"); err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
	}
	if shared.gets != 1 {
		t.Fatalf("expected one fill from shared cache, got %d", shared.gets)
	}

	if _, err := near.Take(context.Background(), "req-2"); err != nil {
		t.Fatalf("take: %v", err)
	}
	if _, err := shared.QuizCache.Get(context.Background(), "req-2"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected take to reach shared cache, got %v", err)
	}
	if _, err := near.Get(context.Background(), "req-2"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected local copy dropped, got %v", err)
	}
}

func TestQuizCacheTakeHasOneWinner(t *testing.T) {
	shared := NewQuizCache(time.Minute, nil)
	instances := []*QuizCache{NewQuizCache(time.Minute, shared), NewQuizCache(time.Minute, shared)}
	if err := instances[0].Save(context.Background(), sampleQuiz("req-3")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := instances[1].Get(context.Background(), "req-3"); err != nil {
		t.Fatalf("warm second instance: %v", err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(c *QuizCache) {
			defer wg.Done()
			if _, err := c.Take(context.Background(), "req-3"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(instances[i%2])
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one take to win, got %d", wins)
	}
}

func TestQuizCacheTakeExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cache := newQuizCacheWithClock(time.Minute, nil, func() time.Time { return now })
	if err := cache.Save(context.Background(), sampleQuiz("req-4")); err != nil {
		t.Fatalf("save: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := cache.Take(context.Background(), "req-4"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected expired take to miss, got %v", err)
	}
}
