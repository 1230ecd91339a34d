package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-pipeline-service/internal/domain"
)

func seedUser(t *testing.T, repo *Repository, id string, points int, created time.Time) {
	t.Helper()
	err := repo.CreateUser(context.Background(), domain.UserProfile{UserID: id, Name: id, Age: 10, Points: points, CreatedAt: created})
	if err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
}

func TestRepositoryUserLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	seedUser(t, repo, "u1", 0, time.Now())

	if err := repo.CreateUser(ctx, domain.UserProfile{UserID: "u1"}); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if _, err := repo.GetUser(ctx, "ghost"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	_ = repo.UpdateUserPoints(ctx, "u1", 60)
	_ = repo.UpdateUserLevel(ctx, "u1", 2)
	_ = repo.UpdateUserLevel(ctx, "u1", 1)
	_ = repo.AddBadge(ctx, "u1", "FIRST_QUIZ")
	_ = repo.AddBadge(ctx, "u1", "FIRST_QUIZ")

	u, err := repo.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.Points != 60 || u.Level != 2 || len(u.Badges) != 1 {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestRepositoryHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	seedUser(t, repo, "u1", 0, time.Now())

	for i, score := range []int{40, 60, 80} {
		err := repo.CreateQuizAttempt(ctx, domain.QuizAttempt{
			ID:     string(rune('a' + i)),
			UserID: "u1",
			Score:  score,
			Responses: []domain.ResponseRecord{
				{Question: "Q shared", IsCorrect: true},
				{Question: "Q" + string(rune('a'+i)), IsCorrect: i%2 == 0},
			},
		})
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}

	history, _ := repo.GetUserQuizHistory(ctx, "u1", 2)
	if len(history) != 2 || history[0].Score != 80 || history[1].Score != 60 {
		t.Fatalf("unexpected history %+v", history)
	}
	if n, _ := repo.CountQuizAttempts(ctx, "u1"); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
	if avg, _ := repo.AverageScore(ctx, "u1"); avg != 60 {
		t.Fatalf("expected average 60, got %v", avg)
	}

	answered, _ := repo.GetCorrectlyAnsweredQuestions(ctx, "u1", 10)
	if len(answered) != 3 {
		t.Fatalf("expected 3 distinct correct questions, got %+v", answered)
	}
	if answered[0].Question != "Q shared" || answered[1].Question != "Qc" {
		t.Fatalf("expected newest first, got %+v", answered)
	}
}

func TestRepositoryTraceUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()
	_ = repo.CreateTraceRecord(ctx, domain.TraceRecord{RequestID: "r", Step: 1, Status: domain.StatusInProgress})
	_ = repo.CreateTraceRecord(ctx, domain.TraceRecord{RequestID: "r", Step: 0, Status: domain.StatusPending})
	_ = repo.CreateTraceRecord(ctx, domain.TraceRecord{RequestID: "r", Step: 1, Status: domain.StatusCompleted})
	_ = repo.CreateTraceRecord(ctx, domain.TraceRecord{RequestID: "other", Step: 0})

	recs, _ := repo.GetTraceRecords(ctx, "r")
	if len(recs) != 2 || recs[0].Step != 0 || recs[1].Status != domain.StatusCompleted {
		t.Fatalf("unexpected trace records %+v", recs)
	}
}

func TestRepositoryTopUsers(t *testing.T) {
	repo := NewRepository()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedUser(t, repo, "late", 100, base.Add(time.Hour))
	seedUser(t, repo, "early", 100, base)
	seedUser(t, repo, "low", 10, base)

	top, _ := repo.TopUsers(context.Background(), 2)
	if len(top) != 2 || top[0].UserID != "early" || top[1].UserID != "late" {
		t.Fatalf("unexpected ranking %+v", top)
	}
}
