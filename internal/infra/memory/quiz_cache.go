package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-pipeline-service/internal/app"
	"quiz-pipeline-service/internal/domain"
)

// QuizCache keeps generated quizzes in process with a TTL. When next is set
// it acts as a near cache in front of a shared store: writes go to both and
// misses are filled from next, one load per request id at a time.
type QuizCache struct {
	next  app.QuizCache
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizCache(ttl time.Duration, next app.QuizCache) *QuizCache {
	return newQuizCacheWithClock(ttl, next, time.Now)
}

func newQuizCacheWithClock(ttl time.Duration, next app.QuizCache, clock func() time.Time) *QuizCache {
	return &QuizCache{
		next:  next,
		ttl:   ttl,
		clock: clock,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedQuiz),
	}
}

func (c *QuizCache) Save(ctx context.Context, quiz domain.Quiz) error {
	c.store(quiz)
	if c.next != nil {
		return c.next.Save(ctx, quiz)
	}
	return nil
}

func (c *QuizCache) Get(ctx context.Context, requestID string) (domain.Quiz, error) {
	if quiz, ok := c.lookup(requestID); ok {
		return quiz, nil
	}
	if c.next == nil {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}

	result, err, _ := c.sf.Do(requestID, func() (interface{}, error) {
		if quiz, ok := c.lookup(requestID); ok {
			return quiz, nil
		}
		quiz, err := c.next.Get(ctx, requestID)
		if err != nil {
			return domain.Quiz{}, err
		}
		c.store(quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Take claims a quiz. With a shared store behind it the shared store
// decides the winner and the local copy is only dropped.
func (c *QuizCache) Take(ctx context.Context, requestID string) (domain.Quiz, error) {
	now := c.clock()
	c.mu.Lock()
	entry, ok := c.cache[requestID]
	delete(c.cache, requestID)
	c.mu.Unlock()

	if c.next != nil {
		return c.next.Take(ctx, requestID)
	}
	if !ok || !entry.expiresAt.After(now) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return entry.quiz, nil
}

// Purge drops expired entries and reports how many were removed.
func (c *QuizCache) Purge() int {
	now := c.clock()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, entry := range c.cache {
		if !entry.expiresAt.After(now) {
			delete(c.cache, id)
			removed++
		}
	}
	return removed
}

func (c *QuizCache) lookup(requestID string) (domain.Quiz, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[requestID]
	if !ok || !entry.expiresAt.After(now) {
		return domain.Quiz{}, false
	}
	return entry.quiz, true
}

func (c *QuizCache) store(quiz domain.Quiz) {
	expires := c.clock().Add(c.ttlWithJitter())
	c.mu.Lock()
	c.cache[quiz.RequestID] = cachedQuiz{quiz: quiz, expiresAt: expires}
	c.mu.Unlock()
}

// ttlWithJitter adds up to 10% so entries written together expire apart.
// A non-positive ttl keeps entries for a day.
func (c *QuizCache) ttlWithJitter() time.Duration {
	ttl := c.ttl
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	jitterMax := int64(ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
