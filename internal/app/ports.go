package app

import (
	"context"

	"quiz-pipeline-service/internal/content"
	"quiz-pipeline-service/internal/domain"
	"quiz-pipeline-service/internal/retrieval"
)

// Repository abstracts durable storage (in-memory, SQLite, Postgres).
// Lookups of absent users return domain.ErrUserNotFound.
type Repository interface {
	GetUser(ctx context.Context, userID string) (domain.UserProfile, error)
	CreateUser(ctx context.Context, user domain.UserProfile) error
	UpdateUserPoints(ctx context.Context, userID string, delta int) error
	UpdateUserLevel(ctx context.Context, userID string, level int) error
	// AddBadge is a no-op when the user already owns the badge.
	AddBadge(ctx context.Context, userID, badgeID string) error
	TopUsers(ctx context.Context, limit int) ([]domain.UserProfile, error)

	CreateQuizAttempt(ctx context.Context, attempt domain.QuizAttempt) error
	// GetUserQuizHistory returns attempts newest first.
	GetUserQuizHistory(ctx context.Context, userID string, limit int) ([]domain.QuizAttempt, error)
	CountQuizAttempts(ctx context.Context, userID string) (int, error)
	AverageScore(ctx context.Context, userID string) (float64, error)
	GetCorrectlyAnsweredQuestions(ctx context.Context, userID string, limit int) ([]domain.AnsweredQuestion, error)

	CreateGamificationEvent(ctx context.Context, event domain.GamificationEvent) error

	// CreateTraceRecord inserts or replaces the record at (RequestID, Step).
	CreateTraceRecord(ctx context.Context, record domain.TraceRecord) error
	// GetTraceRecords returns the records of a request ordered by step.
	GetTraceRecords(ctx context.Context, requestID string) ([]domain.TraceRecord, error)
}

// QuizCache keeps generated quizzes for later grading. Get and Take return
// domain.ErrQuizNotFound for unknown or expired ids. Take removes the quiz
// as it reads it, so among concurrent callers exactly one receives it.
type QuizCache interface {
	Save(ctx context.Context, quiz domain.Quiz) error
	Get(ctx context.Context, requestID string) (domain.Quiz, error)
	Take(ctx context.Context, requestID string) (domain.Quiz, error)
}

// Retriever supplies topical context passages.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]retrieval.SearchResult, error)
	Topics() []string
}

// ContentSource produces the story and questions of a quiz.
type ContentSource interface {
	Story(ctx context.Context, req content.StoryRequest) (content.StoryResult, error)
	Questions(ctx context.Context, req content.QuestionRequest) (content.QuestionsResult, error)
}
