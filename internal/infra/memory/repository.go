// Package memory provides in-process implementations of the storage ports
// for tests, demos and single-instance deployments.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"quiz-pipeline-service/internal/domain"
)

type traceKey struct {
	requestID string
	step      int
}

// Repository is a mutex guarded implementation of app.Repository.
type Repository struct {
	mu       sync.RWMutex
	users    map[string]domain.UserProfile
	attempts map[string][]domain.QuizAttempt
	events   map[string][]domain.GamificationEvent
	traces   map[traceKey]domain.TraceRecord
}

func NewRepository() *Repository {
	return &Repository{
		users:    make(map[string]domain.UserProfile),
		attempts: make(map[string][]domain.QuizAttempt),
		events:   make(map[string][]domain.GamificationEvent),
		traces:   make(map[traceKey]domain.TraceRecord),
	}
}

func (r *Repository) GetUser(_ context.Context, userID string) (domain.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	if !ok {
		return domain.UserProfile{}, domain.ErrUserNotFound
	}
	u.Badges = append([]string{}, u.Badges...)
	return u, nil
}

func (r *Repository) CreateUser(_ context.Context, user domain.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.UserID]; ok {
		return domain.ErrUserExists
	}
	if user.Level < 1 {
		user.Level = 1
	}
	user.Badges = append([]string{}, user.Badges...)
	r.users[user.UserID] = user
	return nil
}

func (r *Repository) UpdateUserPoints(_ context.Context, userID string, delta int) error {
	return r.mutateUser(userID, func(u *domain.UserProfile) {
		u.Points = max(u.Points+delta, 0)
	})
}

func (r *Repository) UpdateUserLevel(_ context.Context, userID string, level int) error {
	return r.mutateUser(userID, func(u *domain.UserProfile) {
		if level > u.Level {
			u.Level = level
		}
	})
}

func (r *Repository) AddBadge(_ context.Context, userID, badgeID string) error {
	return r.mutateUser(userID, func(u *domain.UserProfile) {
		if !u.HasBadge(badgeID) {
			u.Badges = append(u.Badges, badgeID)
		}
	})
}

func (r *Repository) mutateUser(userID string, fn func(*domain.UserProfile)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(&u)
	r.users[userID] = u
	return nil
}

func (r *Repository) TopUsers(_ context.Context, limit int) ([]domain.UserProfile, error) {
	r.mu.RLock()
	users := make([]domain.UserProfile, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		if users[i].Points != users[j].Points {
			return users[i].Points > users[j].Points
		}
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].UserID < users[j].UserID
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (r *Repository) CreateQuizAttempt(_ context.Context, attempt domain.QuizAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[attempt.UserID]; !ok {
		return domain.ErrUserNotFound
	}
	r.attempts[attempt.UserID] = append(r.attempts[attempt.UserID], attempt)
	return nil
}

func (r *Repository) GetUserQuizHistory(_ context.Context, userID string, limit int) ([]domain.QuizAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.attempts[userID]
	out := make([]domain.QuizAttempt, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *Repository) CountQuizAttempts(_ context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.attempts[userID]), nil
}

// AverageScore is rounded to two decimals; zero without attempts.
func (r *Repository) AverageScore(_ context.Context, userID string) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.attempts[userID]
	if len(all) == 0 {
		return 0, nil
	}
	sum := 0
	for _, a := range all {
		sum += a.Score
	}
	return math.Round(float64(sum)/float64(len(all))*100) / 100, nil
}

// GetCorrectlyAnsweredQuestions walks attempts newest first and returns up
// to limit distinct question texts the user got right.
func (r *Repository) GetCorrectlyAnsweredQuestions(_ context.Context, userID string, limit int) ([]domain.AnsweredQuestion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.attempts[userID]
	seen := make(map[string]struct{})
	var out []domain.AnsweredQuestion
	for i := len(all) - 1; i >= 0; i-- {
		for _, resp := range all[i].Responses {
			if !resp.IsCorrect {
				continue
			}
			if _, dup := seen[resp.Question]; dup {
				continue
			}
			seen[resp.Question] = struct{}{}
			out = append(out, domain.AnsweredQuestion{
				Question:      resp.Question,
				Topic:         all[i].Topic,
				Difficulty:    all[i].Difficulty,
				CorrectAnswer: resp.CorrectAnswer,
			})
			if limit > 0 && len(out) == limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func (r *Repository) CreateGamificationEvent(_ context.Context, event domain.GamificationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event.UserID] = append(r.events[event.UserID], event)
	return nil
}

// Events returns the gamification log of a user in insertion order.
func (r *Repository) Events(userID string) []domain.GamificationEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.GamificationEvent(nil), r.events[userID]...)
}

func (r *Repository) CreateTraceRecord(_ context.Context, record domain.TraceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces[traceKey{record.RequestID, record.Step}] = record
	return nil
}

func (r *Repository) GetTraceRecords(_ context.Context, requestID string) ([]domain.TraceRecord, error) {
	r.mu.RLock()
	var out []domain.TraceRecord
	for k, rec := range r.traces {
		if k.requestID == requestID {
			out = append(out, rec)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out, nil
}
