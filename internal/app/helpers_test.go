package app_test

import (
	"context"
	"testing"
	"time"

	"quiz-pipeline-service/internal/app"
	"quiz-pipeline-service/internal/content"
	"quiz-pipeline-service/internal/domain"
	"quiz-pipeline-service/internal/infra/memory"
	"quiz-pipeline-service/internal/retrieval"
)

type testEnv struct {
	orch  *app.Orchestrator
	repo  *memory.Repository
	cache *memory.QuizCache
}

func testDocs() retrieval.StaticSource {
	return retrieval.StaticSource{
		{Name: "saving_money.txt", Text: "# Saving\nSaving money means you keep part of what you earn so you can reach a goal later.\n# Banks\nA bank keeps your money safe and pays interest on a savings account."},
		{Name: "budgeting.txt", Text: "# Budgets\nA budget is a plan that shows how you will spend and save your income each month."},
	}
}

func newTestOrchestrator(t *testing.T, opts ...func(*app.Deps)) testEnv {
	t.Helper()
	repo := memory.NewRepository()
	cache := memory.NewQuizCache(time.Minute, nil)

	coord := retrieval.NewCoordinator(testDocs(), nil, nil, nil, nil)
	if _, err := coord.Ingest(context.Background()); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	options := app.DefaultOptions()
	options.ProfileRetry = app.RetryPolicy{Attempts: 3, Backoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

	deps := app.Deps{
		Repo:      repo,
		Cache:     cache,
		Retriever: coord,
		Content:   content.NewChain(time.Second, nil, content.NewTemplateGenerator(7)),
		Options:   options,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return testEnv{orch: app.NewOrchestrator(deps), repo: repo, cache: cache}
}

func registerUser(t *testing.T, env testEnv, id string, age int) {
	t.Helper()
	res := env.orch.RegisterUser(context.Background(), app.RegisterRequest{UserID: id, Name: "Learner " + id, Age: age, Hobbies: "soccer"})
	if !res.OK() {
		t.Fatalf("register %s: %s", id, res.Error)
	}
}

func addAttempt(t *testing.T, env testEnv, userID string, score int, at time.Time) {
	t.Helper()
	err := env.repo.CreateQuizAttempt(context.Background(), domain.QuizAttempt{
		ID:         userID + at.String(),
		UserID:     userID,
		Topic:      "saving",
		Difficulty: domain.TierMedium,
		Score:      score,
		MaxScore:   5,
		CreatedAt:  at,
	})
	if err != nil {
		t.Fatalf("attempt: %v", err)
	}
}

func fiveQuestions() []domain.Question {
	qs := make([]domain.Question, 5)
	for i := range qs {
		qs[i] = domain.Question{
			ID:           "q" + string(rune('1'+i)),
			Text:         "Question " + string(rune('A'+i)),
			Options:      []string{"w", "x", "y", "z"},
			CorrectIndex: i % 4,
			Explanation:  "because",
		}
	}
	return qs
}

func answersFor(qs []domain.Question, correct int) []int {
	out := make([]int, len(qs))
	for i, q := range qs {
		if i < correct {
			out[i] = q.CorrectIndex
		} else {
			out[i] = (q.CorrectIndex + 1) % 4
		}
	}
	return out
}

// failingRepo wraps the memory repository and fails selected operations.
type failingRepo struct {
	*memory.Repository
	failAttempt bool
	failTrace   bool
	lookups     int
	appearAfter int
	pending     *domain.UserProfile
}

func (f *failingRepo) GetUser(ctx context.Context, userID string) (domain.UserProfile, error) {
	f.lookups++
	if f.pending != nil && f.lookups > f.appearAfter {
		_ = f.Repository.CreateUser(ctx, *f.pending)
		f.pending = nil
	}
	return f.Repository.GetUser(ctx, userID)
}

func (f *failingRepo) CreateQuizAttempt(ctx context.Context, a domain.QuizAttempt) error {
	if f.failAttempt {
		return errDisk
	}
	return f.Repository.CreateQuizAttempt(ctx, a)
}

func (f *failingRepo) CreateTraceRecord(ctx context.Context, r domain.TraceRecord) error {
	if f.failTrace {
		return errDisk
	}
	return f.Repository.CreateTraceRecord(ctx, r)
}

type diskError struct{}

func (diskError) Error() string { return "disk full" }

var errDisk error = diskError{}
