// Package app holds the pipeline orchestrator that sequences retrieval,
// difficulty, content generation, grading and rewards for each request.
package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"quiz-pipeline-service/internal/content"
	"quiz-pipeline-service/internal/difficulty"
	"quiz-pipeline-service/internal/domain"
	"quiz-pipeline-service/internal/evaluation"
	"quiz-pipeline-service/internal/logger"
	"quiz-pipeline-service/internal/rewards"
)

const (
	agentDatabase   = "Database"
	agentRetrieval  = "RetrievalCoordinator"
	agentDifficulty = "DifficultyRecommender"
	agentContent    = "ContentGenerator"
	agentEvaluator  = "AnswerEvaluator"
	agentRewards    = "RewardEngine"

	contextSeparator = "\n\n---\n\n"
)

// Options tunes the pipeline.
type Options struct {
	ProfileRetry   RetryPolicy
	QuestionCount  int
	HistoryLimit   int
	AnsweredLimit  int
	ContextResults int
	FallbackQuery  string
	DefaultAge     int
	DefaultHobbies string
	LeaderboardTop int
}

func DefaultOptions() Options {
	return Options{
		ProfileRetry:   RetryPolicy{Attempts: 3, Backoff: 300 * time.Millisecond, MaxBackoff: 2 * time.Second},
		QuestionCount:  5,
		HistoryLimit:   10,
		AnsweredLimit:  30,
		ContextResults: 3,
		FallbackQuery:  "financial education",
		DefaultAge:     10,
		DefaultHobbies: "learning",
		LeaderboardTop: 10,
	}
}

// Deps are the collaborators of an Orchestrator. Repo, Content and
// Retriever are required; the rest have defaults.
type Deps struct {
	Repo        Repository
	Cache       QuizCache
	Retriever   Retriever
	Content     ContentSource
	Recommender *difficulty.Recommender
	Evaluator   *evaluation.Evaluator
	Rewards     *rewards.Engine
	Leaderboard *LeaderboardHub
	Log         *logger.Logger
	Options     Options
	Now         func() time.Time
	NewID       func() string
}

type Orchestrator struct {
	repo        Repository
	cache       QuizCache
	retriever   Retriever
	content     ContentSource
	recommender *difficulty.Recommender
	evaluator   *evaluation.Evaluator
	rewards     *rewards.Engine
	leaderboard *LeaderboardHub
	log         *logger.Logger
	opts        Options
	now         func() time.Time
	newID       func() string
}

func NewOrchestrator(d Deps) *Orchestrator {
	o := &Orchestrator{
		repo:        d.Repo,
		cache:       d.Cache,
		retriever:   d.Retriever,
		content:     d.Content,
		recommender: d.Recommender,
		evaluator:   d.Evaluator,
		rewards:     d.Rewards,
		leaderboard: d.Leaderboard,
		log:         d.Log,
		opts:        d.Options,
		now:         d.Now,
		newID:       d.NewID,
	}
	if o.recommender == nil {
		o.recommender = difficulty.NewRecommender()
	}
	if o.evaluator == nil {
		o.evaluator = evaluation.NewEvaluator()
	}
	if o.rewards == nil {
		o.rewards = rewards.NewEngine(0)
	}
	if o.leaderboard == nil {
		o.leaderboard = NewLeaderboardHub()
	}
	if o.log == nil {
		o.log = logger.Nop()
	}
	o.log = o.log.With("component", agentOrchestrator)
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	if o.opts == (Options{}) {
		o.opts = DefaultOptions()
	}
	return o
}

// Leaderboard exposes the hub for realtime subscribers.
func (o *Orchestrator) Leaderboard() *LeaderboardHub { return o.leaderboard }

func (o *Orchestrator) newTracer(requestID string) *tracer {
	return &tracer{repo: o.repo, log: o.log, now: o.now, requestID: requestID}
}

// run is the pipeline boundary: it writes the pending and terminal trace
// records and turns errors and panics into a failed Result.
func run[T any](ctx context.Context, o *Orchestrator, op string, input any, fn func(context.Context, *tracer) (T, error)) (res Result[T]) {
	t := o.newTracer(o.newID())
	t.write(ctx, 0, agentOrchestrator, domain.StatusPending, input, nil, nil)

	defer func() {
		if r := recover(); r != nil {
			err := domain.E(domain.KindInternal, op, fmt.Errorf("panic: %v", r))
			res = fail[T](ctx, o, t, op, err)
		}
	}()

	data, err := fn(ctx, t)
	if err != nil {
		return fail[T](ctx, o, t, op, err)
	}
	t.write(ctx, t.last+1, agentOrchestrator, domain.StatusCompleted, nil, nil, nil)
	return success(t.requestID, t.last, data)
}

func fail[T any](ctx context.Context, o *Orchestrator, t *tracer, op string, err error) Result[T] {
	var de *domain.Error
	if !errors.As(err, &de) {
		err = domain.E(domain.KindOf(err), op, err)
	}
	steps := t.last
	t.write(ctx, steps+1, agentOrchestrator, domain.StatusFailed, nil, nil, err)
	o.log.Error("pipeline failed", "op", op, "request_id", t.requestID, "step", steps, "error", err)
	return failure[T](t.requestID, steps, err)
}

// GeneratedQuiz is the payload of a successful GenerateQuiz.
type GeneratedQuiz struct {
	domain.Quiz
	Reasoning       string            `json:"difficulty_reasoning"`
	ContextSources  []string          `json:"context_sources"`
	StoryBackend    string            `json:"story_backend"`
	QuestionBackend string            `json:"question_backend"`
	Attempts        []content.Attempt `json:"generator_attempts"`
}

type generateInput struct {
	UserID string `json:"user_id"`
	Topic  string `json:"topic"`
}

// GenerateQuiz builds a personalised quiz for userID. An empty topic uses
// the configured fallback query.
func (o *Orchestrator) GenerateQuiz(ctx context.Context, userID, topic string) Result[GeneratedQuiz] {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = o.opts.FallbackQuery
	}
	in := generateInput{UserID: userID, Topic: topic}

	return run(ctx, o, "generate quiz", in, func(ctx context.Context, t *tracer) (GeneratedQuiz, error) {
		if strings.TrimSpace(userID) == "" {
			return GeneratedQuiz{}, domain.E(domain.KindValidation, "generate quiz", errors.New("user id is required"))
		}

		user, err := traced(ctx, t, 1, agentDatabase, in, func() (domain.UserProfile, error) {
			return o.loadOrCreateProfile(ctx, userID)
		})
		if err != nil {
			return GeneratedQuiz{}, err
		}

		passages, err := traced(ctx, t, 2, agentRetrieval, map[string]any{"query": topic, "k": o.opts.ContextResults}, func() (retrievedContext, error) {
			return o.retrieveContext(ctx, topic), nil
		})
		if err != nil {
			return GeneratedQuiz{}, err
		}

		rec, err := traced(ctx, t, 3, agentDifficulty, map[string]any{"user_id": userID, "age": user.Age}, func() (difficulty.Recommendation, error) {
			history, err := o.repo.GetUserQuizHistory(ctx, userID, o.opts.HistoryLimit)
			if err != nil {
				return difficulty.Recommendation{}, domain.E(domain.KindPersistence, "load quiz history", err)
			}
			scores := make([]float64, len(history))
			for i, a := range history {
				scores[i] = float64(a.Score)
			}
			return o.recommender.Recommend(scores, user.Age), nil
		})
		if err != nil {
			return GeneratedQuiz{}, err
		}

		storyReq := content.StoryRequest{Profile: user, Topic: topic, Difficulty: rec.Tier, Context: passages.Text}
		story, err := traced(ctx, t, 4, agentContent, map[string]any{"task": "story", "topic": topic, "difficulty": rec.Tier}, func() (content.StoryResult, error) {
			return o.content.Story(ctx, storyReq)
		})
		if err != nil {
			return GeneratedQuiz{}, err
		}

		questions, err := traced(ctx, t, 5, agentContent, map[string]any{"task": "questions", "topic": topic, "difficulty": rec.Tier, "count": o.opts.QuestionCount}, func() (content.QuestionsResult, error) {
			answered, err := o.repo.GetCorrectlyAnsweredQuestions(ctx, userID, o.opts.AnsweredLimit)
			if err != nil {
				return content.QuestionsResult{}, domain.E(domain.KindPersistence, "load answered questions", err)
			}
			exclude := make([]string, len(answered))
			for i, a := range answered {
				exclude[i] = a.Question
			}
			return o.content.Questions(ctx, content.QuestionRequest{
				Profile:    user,
				Topic:      topic,
				Difficulty: rec.Tier,
				Count:      o.opts.QuestionCount,
				Context:    passages.Text,
				Exclude:    exclude,
			})
		})
		if err != nil {
			return GeneratedQuiz{}, err
		}

		quiz := domain.Quiz{
			RequestID:  t.requestID,
			UserID:     userID,
			Topic:      topic,
			Difficulty: rec.Tier,
			Story:      story.Text,
			Questions:  questions.Questions,
			CreatedAt:  o.now().UTC(),
		}
		if o.cache != nil {
			if err := o.cache.Save(ctx, quiz); err != nil {
				o.log.Warn("quiz cache write failed", "request_id", t.requestID, "error", err)
			}
		}
		return GeneratedQuiz{
			Quiz:            quiz,
			Reasoning:       rec.Reasoning,
			ContextSources:  passages.Sources,
			StoryBackend:    story.Backend,
			QuestionBackend: questions.Backend,
			Attempts:        slices.Concat(story.Attempts, questions.Attempts),
		}, nil
	})
}

// loadOrCreateProfile retries the lookup to absorb read-after-write lag
// and creates a default profile when the user still does not exist.
func (o *Orchestrator) loadOrCreateProfile(ctx context.Context, userID string) (domain.UserProfile, error) {
	var user domain.UserProfile
	err := o.opts.ProfileRetry.Do(ctx, func(ctx context.Context) error {
		var err error
		user, err = o.repo.GetUser(ctx, userID)
		return err
	}, func(err error) bool {
		return ctx.Err() == nil
	})
	switch {
	case err == nil:
		return user, nil
	case !errors.Is(err, domain.ErrUserNotFound):
		return domain.UserProfile{}, domain.E(domain.KindPersistence, "load profile", err)
	}

	o.log.Info("profile not found, creating default", "user_id", userID)
	user = domain.UserProfile{
		UserID:    userID,
		Name:      userID,
		Age:       o.opts.DefaultAge,
		Hobbies:   o.opts.DefaultHobbies,
		Level:     1,
		Badges:    []string{},
		CreatedAt: o.now().UTC(),
	}
	if err := o.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			if existing, getErr := o.repo.GetUser(ctx, userID); getErr == nil {
				return existing, nil
			}
		}
		return domain.UserProfile{}, domain.E(domain.KindPersistence, "create default profile", err)
	}
	return user, nil
}

type retrievedContext struct {
	Text    string   `json:"-"`
	Sources []string `json:"sources"`
	Chunks  int      `json:"chunks"`
}

// retrieveContext never fails the pipeline; an unavailable index yields
// an empty context.
func (o *Orchestrator) retrieveContext(ctx context.Context, query string) retrievedContext {
	if o.retriever == nil {
		return retrievedContext{}
	}
	results, err := o.retriever.Search(ctx, query, o.opts.ContextResults)
	if err != nil {
		o.log.Warn("retrieval failed, continuing without context", "query", query, "kind", domain.KindUpstream, "error", err)
		return retrievedContext{}
	}
	parts := make([]string, 0, len(results))
	sources := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Chunk.Content)
		sources = append(sources, r.Chunk.Source)
	}
	return retrievedContext{
		Text:    strings.Join(parts, contextSeparator),
		Sources: sources,
		Chunks:  len(results),
	}
}
