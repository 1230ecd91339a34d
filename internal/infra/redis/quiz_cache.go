package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-pipeline-service/internal/domain"
)

// QuizCache stores generated quizzes in Redis so any instance can grade a
// submission. Each quiz is one hash:
//
//	HSET quiz:{requestID} user_id topic difficulty story questions created_at
type QuizCache struct {
	client *redis.Client
	ttl    time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuizCache(client *redis.Client, ttl time.Duration) *QuizCache {
	return &QuizCache{
		client: client,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuizCache) Save(ctx context.Context, quiz domain.Quiz) error {
	questions, err := json.Marshal(quiz.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	key := quizKey(quiz.RequestID)

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]interface{}{
		"user_id":    quiz.UserID,
		"topic":      quiz.Topic,
		"difficulty": string(quiz.Difficulty),
		"story":      quiz.Story,
		"questions":  questions,
		"created_at": quiz.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if ttl := c.ttlWithJitter(); ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (c *QuizCache) Get(ctx context.Context, requestID string) (domain.Quiz, error) {
	fields, err := c.client.HGetAll(ctx, quizKey(requestID)).Result()
	if err != nil {
		return domain.Quiz{}, err
	}
	return decodeQuiz(requestID, fields)
}

// Take reads and deletes the hash in one MULTI/EXEC, so only one caller
// sees the fields.
func (c *QuizCache) Take(ctx context.Context, requestID string) (domain.Quiz, error) {
	key := quizKey(requestID)
	var get *redis.MapStringStringCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.HGetAll(ctx, key)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return decodeQuiz(requestID, get.Val())
}

func decodeQuiz(requestID string, fields map[string]string) (domain.Quiz, error) {
	if len(fields) == 0 {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	quiz := domain.Quiz{
		RequestID:  requestID,
		UserID:     fields["user_id"],
		Topic:      fields["topic"],
		Difficulty: domain.ParseTier(fields["difficulty"]),
		Story:      fields["story"],
	}
	if err := json.Unmarshal([]byte(fields["questions"]), &quiz.Questions); err != nil {
		return domain.Quiz{}, fmt.Errorf("decode questions: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["created_at"]); err == nil {
		quiz.CreatedAt = ts
	}
	return quiz, nil
}

func quizKey(requestID string) string {
	return "quiz:" + requestID
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
