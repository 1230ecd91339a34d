// Package postgres implements the pipeline Repository on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-pipeline-service/internal/domain"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetUser(ctx context.Context, userID string) (domain.UserProfile, error) {
	var u domain.UserProfile
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, name, age, hobbies, level, points, badges, created_at
		FROM users WHERE user_id = $1`, userID).
		Scan(&u.UserID, &u.Name, &u.Age, &u.Hobbies, &u.Level, &u.Points, &u.Badges, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserProfile{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *Repository) CreateUser(ctx context.Context, u domain.UserProfile) error {
	badges := u.Badges
	if badges == nil {
		badges = []string{}
	}
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO users (user_id, name, age, hobbies, level, points, badges, created_at)
		VALUES ($1, $2, $3, $4, GREATEST($5, 1), $6, $7, $8)
		ON CONFLICT (user_id) DO NOTHING`,
		u.UserID, u.Name, u.Age, u.Hobbies, u.Level, u.Points, badges, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserExists
	}
	return nil
}

func (r *Repository) UpdateUserPoints(ctx context.Context, userID string, delta int) error {
	return r.updateUser(ctx, `UPDATE users SET points = GREATEST(points + $2, 0) WHERE user_id = $1`, userID, delta)
}

func (r *Repository) UpdateUserLevel(ctx context.Context, userID string, level int) error {
	return r.updateUser(ctx, `UPDATE users SET level = GREATEST(level, $2) WHERE user_id = $1`, userID, level)
}

func (r *Repository) AddBadge(ctx context.Context, userID, badgeID string) error {
	return r.updateUser(ctx, `
		UPDATE users SET badges = CASE
			WHEN $2::text = ANY(badges) THEN badges
			ELSE array_append(badges, $2::text)
		END
		WHERE user_id = $1`, userID, badgeID)
}

func (r *Repository) updateUser(ctx context.Context, sql, userID string, arg any) error {
	tag, err := r.pool.Exec(ctx, sql, userID, arg)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *Repository) TopUsers(ctx context.Context, limit int) ([]domain.UserProfile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, name, age, hobbies, level, points, badges, created_at
		FROM users ORDER BY points DESC, created_at ASC, user_id ASC LIMIT NULLIF($1, 0)`, limit)
	if err != nil {
		return nil, fmt.Errorf("top users: %w", err)
	}
	defer rows.Close()

	var out []domain.UserProfile
	for rows.Next() {
		var u domain.UserProfile
		if err := rows.Scan(&u.UserID, &u.Name, &u.Age, &u.Hobbies, &u.Level, &u.Points, &u.Badges, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repository) CreateQuizAttempt(ctx context.Context, a domain.QuizAttempt) error {
	responses, err := json.Marshal(a.Responses)
	if err != nil {
		return fmt.Errorf("encode responses: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO quiz_attempts (id, user_id, topic, difficulty, score, max_score, responses, feedback, time_taken_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.UserID, a.Topic, string(a.Difficulty), a.Score, a.MaxScore, responses, a.Feedback, a.TimeTakenSeconds, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create quiz attempt: %w", err)
	}
	return nil
}

func (r *Repository) GetUserQuizHistory(ctx context.Context, userID string, limit int) ([]domain.QuizAttempt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, topic, difficulty, score, max_score, responses, feedback, time_taken_seconds, created_at
		FROM quiz_attempts WHERE user_id = $1
		ORDER BY created_at DESC LIMIT NULLIF($2, 0)`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("quiz history: %w", err)
	}
	defer rows.Close()

	var out []domain.QuizAttempt
	for rows.Next() {
		var (
			a          domain.QuizAttempt
			difficulty string
			responses  []byte
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Topic, &difficulty, &a.Score, &a.MaxScore, &responses, &a.Feedback, &a.TimeTakenSeconds, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Difficulty = domain.ParseTier(difficulty)
		if err := json.Unmarshal(responses, &a.Responses); err != nil {
			return nil, fmt.Errorf("decode responses of %s: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) CountQuizAttempts(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM quiz_attempts WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (r *Repository) AverageScore(ctx context.Context, userID string) (float64, error) {
	var avg float64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(ROUND(AVG(score)::numeric, 2), 0)::float8
		FROM quiz_attempts WHERE user_id = $1`, userID).Scan(&avg)
	return avg, err
}

func (r *Repository) GetCorrectlyAnsweredQuestions(ctx context.Context, userID string, limit int) ([]domain.AnsweredQuestion, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT question, topic, difficulty, correct_answer FROM (
			SELECT DISTINCT ON (resp->>'question')
				resp->>'question' AS question,
				a.topic,
				a.difficulty,
				COALESCE(resp->>'correct_answer', '') AS correct_answer,
				a.created_at
			FROM quiz_attempts a, jsonb_array_elements(a.responses) AS resp
			WHERE a.user_id = $1 AND (resp->>'is_correct')::boolean
			ORDER BY resp->>'question', a.created_at DESC
		) answered
		ORDER BY created_at DESC
		LIMIT NULLIF($2, 0)`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("answered questions: %w", err)
	}
	defer rows.Close()

	var out []domain.AnsweredQuestion
	for rows.Next() {
		var (
			q          domain.AnsweredQuestion
			difficulty string
		)
		if err := rows.Scan(&q.Question, &q.Topic, &difficulty, &q.CorrectAnswer); err != nil {
			return nil, err
		}
		q.Difficulty = domain.ParseTier(difficulty)
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *Repository) CreateGamificationEvent(ctx context.Context, ev domain.GamificationEvent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO gamification_events (id, user_id, event_type, points_awarded, badge_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.ID, ev.UserID, string(ev.Type), ev.Points, ev.BadgeName, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("create gamification event: %w", err)
	}
	return nil
}

func (r *Repository) CreateTraceRecord(ctx context.Context, rec domain.TraceRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO trace_records (request_id, step, agent, status, input, output, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (request_id, step) DO UPDATE SET
			agent = EXCLUDED.agent,
			status = EXCLUDED.status,
			input = COALESCE(EXCLUDED.input, trace_records.input),
			output = EXCLUDED.output,
			error = EXCLUDED.error,
			created_at = EXCLUDED.created_at`,
		rec.RequestID, rec.Step, rec.Agent, string(rec.Status), jsonb(rec.Input), jsonb(rec.Output), rec.Error, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("create trace record: %w", err)
	}
	return nil
}

func (r *Repository) GetTraceRecords(ctx context.Context, requestID string) ([]domain.TraceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT request_id, step, agent, status, input, output, error, created_at
		FROM trace_records WHERE request_id = $1 ORDER BY step`, requestID)
	if err != nil {
		return nil, fmt.Errorf("trace records: %w", err)
	}
	defer rows.Close()

	var out []domain.TraceRecord
	for rows.Next() {
		var (
			rec           domain.TraceRecord
			status        string
			input, output []byte
		)
		if err := rows.Scan(&rec.RequestID, &rec.Step, &rec.Agent, &status, &input, &output, &rec.Error, &rec.Timestamp); err != nil {
			return nil, err
		}
		rec.Status = domain.TraceStatus(status)
		rec.Input = input
		rec.Output = output
		out = append(out, rec)
	}
	return out, rows.Err()
}

// jsonb passes empty snapshots as SQL NULL.
func jsonb(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
