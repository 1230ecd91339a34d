package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Tier is the difficulty classification of a quiz.
type Tier string

const (
	TierEasy   Tier = "easy"
	TierMedium Tier = "medium"
	TierHard   Tier = "hard"
)

// ParseTier maps free text onto a tier, defaulting to medium.
func ParseTier(raw string) Tier {
	switch Tier(strings.ToLower(strings.TrimSpace(raw))) {
	case TierEasy:
		return TierEasy
	case TierHard:
		return TierHard
	default:
		return TierMedium
	}
}

// TraceStatus is the lifecycle state of one pipeline step.
type TraceStatus string

const (
	StatusPending    TraceStatus = "pending"
	StatusInProgress TraceStatus = "in_progress"
	StatusCompleted  TraceStatus = "completed"
	StatusFailed     TraceStatus = "failed"
)

// Terminal reports whether no further transition is expected.
func (s TraceStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// EventType classifies gamification events.
type EventType string

const (
	EventQuizCompleted EventType = "quiz_completed"
	EventBadgeEarned   EventType = "badge_earned"
	EventDailyStreak   EventType = "daily_streak"
)

// UserProfile is a learner and their accumulated rewards.
type UserProfile struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Hobbies   string    `json:"hobbies"`
	Level     int       `json:"level"`
	Points    int       `json:"points"`
	Badges    []string  `json:"badges"`
	CreatedAt time.Time `json:"created_at"`
}

// HasBadge reports whether the user already owns the badge.
func (u UserProfile) HasBadge(id string) bool {
	for _, b := range u.Badges {
		if b == id {
			return true
		}
	}
	return false
}

// HobbyList splits the comma separated hobbies field.
func (u UserProfile) HobbyList() []string {
	if strings.TrimSpace(u.Hobbies) == "" {
		return nil
	}
	parts := strings.Split(u.Hobbies, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Question is a generated multiple choice question with exactly four options.
type Question struct {
	ID           string   `json:"question_id"`
	Text         string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_answer"`
	Explanation  string   `json:"explanation"`
}

// Valid reports whether the question is answerable.
func (q Question) Valid() bool {
	return strings.TrimSpace(q.Text) != "" && len(q.Options) == 4 && q.CorrectIndex >= 0 && q.CorrectIndex < 4
}

// OptionText returns the option at i, or "" when i is out of range.
func (q Question) OptionText(i int) string {
	if i < 0 || i >= len(q.Options) {
		return ""
	}
	return q.Options[i]
}

// ResponseRecord is one answered question inside a QuizAttempt.
type ResponseRecord struct {
	Question      string   `json:"question"`
	Topic         string   `json:"topic"`
	Difficulty    Tier     `json:"difficulty"`
	UserAnswer    string   `json:"user_answer"`
	CorrectAnswer string   `json:"correct_answer"`
	IsCorrect     bool     `json:"is_correct"`
	Options       []string `json:"options"`
}

// QuizAttempt is the immutable audit record of one submitted quiz.
type QuizAttempt struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	Topic            string           `json:"topic"`
	Difficulty       Tier             `json:"difficulty"`
	Score            int              `json:"score"`
	MaxScore         int              `json:"max_score"`
	Responses        []ResponseRecord `json:"responses"`
	Feedback         string           `json:"feedback"`
	TimeTakenSeconds int              `json:"time_taken_seconds"`
	CreatedAt        time.Time        `json:"created_at"`
}

// AnsweredQuestion is a question the user has answered correctly before.
type AnsweredQuestion struct {
	Question      string `json:"question"`
	Topic         string `json:"topic"`
	Difficulty    Tier   `json:"difficulty"`
	CorrectAnswer string `json:"correct_answer"`
}

// GamificationEvent is an append-only reward log entry.
type GamificationEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      EventType `json:"event_type"`
	Points    int       `json:"points_awarded"`
	BadgeName string    `json:"badge_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TraceRecord captures one pipeline step keyed by (RequestID, Step).
type TraceRecord struct {
	RequestID string          `json:"request_id"`
	Step      int             `json:"step"`
	Agent     string          `json:"agent"`
	Status    TraceStatus     `json:"status"`
	Input     json.RawMessage `json:"input,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// DocumentChunk is a passage of source text ready for indexing.
type DocumentChunk struct {
	ID      string `json:"id" msgpack:"id"`
	Content string `json:"content" msgpack:"content"`
	Source  string `json:"source" msgpack:"source"`
	Index   int    `json:"chunk_index" msgpack:"chunk_index"`
}

// Badge is a one-time achievement.
type Badge struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Quiz is a generated quiz kept server side so a submission can be graded
// against the original answer key.
type Quiz struct {
	RequestID  string     `json:"request_id"`
	UserID     string     `json:"user_id"`
	Topic      string     `json:"topic"`
	Difficulty Tier       `json:"difficulty"`
	Story      string     `json:"content"`
	Questions  []Question `json:"questions"`
	CreatedAt  time.Time  `json:"created_at"`
}

// LeaderboardEntry is one ranked learner.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Points int    `json:"points"`
	Level  int    `json:"level"`
}

// Leaderboard is a point-ordered snapshot of the top learners.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updated_at"`
}
