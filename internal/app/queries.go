package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"quiz-pipeline-service/internal/domain"
	"quiz-pipeline-service/internal/rewards"
)

const recentQuizzes = 5

// RecentQuiz summarises one past attempt.
type RecentQuiz struct {
	Topic      string      `json:"topic"`
	Difficulty domain.Tier `json:"difficulty"`
	Score      int         `json:"score"`
	Percentage float64     `json:"percentage"`
	Date       time.Time   `json:"date"`
}

// UserStats is the payload of GetUserStats.
type UserStats struct {
	UserID           string           `json:"user_id"`
	Name             string           `json:"name"`
	Age              int              `json:"age"`
	Level            int              `json:"level"`
	Points           int              `json:"points"`
	Badges           []string         `json:"badges"`
	QuizzesCompleted int              `json:"quizzes_completed"`
	AverageScore     float64          `json:"average_score"`
	RecentQuizzes    []RecentQuiz     `json:"recent_quizzes"`
	Progress         rewards.Progress `json:"progress"`
}

// TraceLogs is the payload of GetTraceLogs.
type TraceLogs struct {
	RequestID string               `json:"request_id"`
	Logs      []domain.TraceRecord `json:"logs"`
}

// query wraps a read-only operation without tracing.
func query[T any](o *Orchestrator, op string, fn func() (T, error)) (res Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			err := domain.E(domain.KindInternal, op, fmt.Errorf("panic: %v", r))
			o.log.Error("query panicked", "op", op, "error", err)
			res = failure[T]("", 0, err)
		}
	}()
	data, err := fn()
	if err != nil {
		return failure[T]("", 0, err)
	}
	return success("", 0, data)
}

func (o *Orchestrator) GetUserStats(ctx context.Context, userID string) Result[UserStats] {
	return query(o, "user stats", func() (UserStats, error) {
		user, err := o.repo.GetUser(ctx, userID)
		if errors.Is(err, domain.ErrUserNotFound) {
			return UserStats{}, domain.E(domain.KindNotFound, "user stats", err)
		}
		if err != nil {
			return UserStats{}, domain.E(domain.KindPersistence, "user stats", err)
		}
		count, err := o.repo.CountQuizAttempts(ctx, userID)
		if err != nil {
			return UserStats{}, domain.E(domain.KindPersistence, "user stats", err)
		}
		avg, err := o.repo.AverageScore(ctx, userID)
		if err != nil {
			return UserStats{}, domain.E(domain.KindPersistence, "user stats", err)
		}
		history, err := o.repo.GetUserQuizHistory(ctx, userID, recentQuizzes)
		if err != nil {
			return UserStats{}, domain.E(domain.KindPersistence, "user stats", err)
		}

		recent := make([]RecentQuiz, 0, len(history))
		for _, a := range history {
			recent = append(recent, RecentQuiz{
				Topic:      a.Topic,
				Difficulty: a.Difficulty,
				Score:      a.Score,
				Percentage: float64(a.Score),
				Date:       a.CreatedAt,
			})
		}
		badges := user.Badges
		if badges == nil {
			badges = []string{}
		}
		return UserStats{
			UserID:           user.UserID,
			Name:             user.Name,
			Age:              user.Age,
			Level:            user.Level,
			Points:           user.Points,
			Badges:           badges,
			QuizzesCompleted: count,
			AverageScore:     avg,
			RecentQuizzes:    recent,
			Progress:         o.rewards.Progress(user.Points, user.Level),
		}, nil
	})
}

func (o *Orchestrator) GetTraceLogs(ctx context.Context, requestID string) Result[TraceLogs] {
	res := query(o, "trace logs", func() (TraceLogs, error) {
		logs, err := o.repo.GetTraceRecords(ctx, requestID)
		if err != nil {
			return TraceLogs{}, domain.E(domain.KindPersistence, "trace logs", err)
		}
		if logs == nil {
			logs = []domain.TraceRecord{}
		}
		return TraceLogs{RequestID: requestID, Logs: logs}, nil
	})
	res.RequestID = requestID
	res.TraceSteps = len(res.Data.Logs)
	return res
}

// ListTopics returns the document topics of the last ingestion.
func (o *Orchestrator) ListTopics(_ context.Context) Result[[]string] {
	return query(o, "list topics", func() ([]string, error) {
		if o.retriever == nil {
			return []string{}, nil
		}
		topics := o.retriever.Topics()
		if topics == nil {
			topics = []string{}
		}
		return topics, nil
	})
}

// RegisterRequest creates a learner profile.
type RegisterRequest struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Age     int    `json:"age"`
	Hobbies string `json:"hobbies"`
}

func (o *Orchestrator) RegisterUser(ctx context.Context, req RegisterRequest) Result[domain.UserProfile] {
	return query(o, "register user", func() (domain.UserProfile, error) {
		req.UserID = strings.TrimSpace(req.UserID)
		if req.UserID == "" {
			req.UserID = o.newID()
		}
		if strings.TrimSpace(req.Name) == "" {
			return domain.UserProfile{}, domain.E(domain.KindValidation, "register user", errors.New("name is required"))
		}
		if req.Age < 0 {
			return domain.UserProfile{}, domain.E(domain.KindValidation, "register user", errors.New("age must not be negative"))
		}
		user := domain.UserProfile{
			UserID:    req.UserID,
			Name:      strings.TrimSpace(req.Name),
			Age:       req.Age,
			Hobbies:   req.Hobbies,
			Level:     1,
			Badges:    []string{},
			CreatedAt: o.now().UTC(),
		}
		if err := o.repo.CreateUser(ctx, user); err != nil {
			if errors.Is(err, domain.ErrUserExists) {
				return domain.UserProfile{}, domain.E(domain.KindValidation, "register user", err)
			}
			return domain.UserProfile{}, domain.E(domain.KindPersistence, "register user", err)
		}
		return user, nil
	})
}

// GetLeaderboard ranks the top learners by points.
func (o *Orchestrator) GetLeaderboard(ctx context.Context, limit int) Result[domain.Leaderboard] {
	return query(o, "leaderboard", func() (domain.Leaderboard, error) {
		if limit <= 0 {
			limit = o.opts.LeaderboardTop
		}
		users, err := o.repo.TopUsers(ctx, limit)
		if err != nil {
			return domain.Leaderboard{}, domain.E(domain.KindPersistence, "leaderboard", err)
		}
		return rank(users, o.now().UTC()), nil
	})
}

// DemoUsers are created by SeedDemoUsers.
var DemoUsers = []RegisterRequest{
	{UserID: "child_001", Name: "Alex", Age: 10, Hobbies: "video games, drawing, soccer"},
	{UserID: "child_002", Name: "Sam", Age: 12, Hobbies: "reading, science, music"},
	{UserID: "child_003", Name: "Jordan", Age: 8, Hobbies: "anime, coding, lego"},
	{UserID: "child_004", Name: "Casey", Age: 11, Hobbies: "basketball, art, mathematics"},
}

// SeedDemoUsers creates the demo learners that do not exist yet and
// reports how many were created.
func (o *Orchestrator) SeedDemoUsers(ctx context.Context) (int, error) {
	created := 0
	for _, u := range DemoUsers {
		if _, err := o.repo.GetUser(ctx, u.UserID); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrUserNotFound) {
			return created, err
		}
		res := o.RegisterUser(ctx, u)
		if !res.OK() {
			return created, res.Err()
		}
		created++
	}
	return created, nil
}
