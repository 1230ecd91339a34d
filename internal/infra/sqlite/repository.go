// Package sqlite implements the pipeline Repository on an embedded SQLite
// database through gorm. The database runs in WAL mode with relaxed
// synchronous writes so readers are not blocked by the single writer.
package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"quiz-pipeline-service/internal/domain"
)

type Repository struct {
	db *gorm.DB
}

// Open creates or opens the database at path and migrates the schema.
func Open(path string) (*Repository, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(path, ":memory:") {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&userRow{}, &userBadgeRow{}, &attemptRow{}, &eventRow{}, &traceRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// JournalMode reports the active journal mode, "wal" once Open succeeded
// on a file database.
func (r *Repository) JournalMode(ctx context.Context) (string, error) {
	var mode string
	err := r.db.WithContext(ctx).Raw("PRAGMA journal_mode").Scan(&mode).Error
	return strings.ToLower(mode), err
}

func (r *Repository) GetUser(ctx context.Context, userID string) (domain.UserProfile, error) {
	var row userRow
	err := r.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.UserProfile{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("get user: %w", err)
	}
	badges, err := r.badges(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return row.profile(badges), nil
}

func (r *Repository) badges(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&userBadgeRow{}).
		Where("user_id = ?", userID).
		Order("created_at, badge_id").
		Pluck("badge_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load badges: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (row userRow) profile(badges []string) domain.UserProfile {
	return domain.UserProfile{
		UserID:    row.UserID,
		Name:      row.Name,
		Age:       row.Age,
		Hobbies:   row.Hobbies,
		Level:     row.Level,
		Points:    row.Points,
		Badges:    badges,
		CreatedAt: row.CreatedAt,
	}
}

func (r *Repository) CreateUser(ctx context.Context, u domain.UserProfile) error {
	row := userRow{
		UserID:    u.UserID,
		Name:      u.Name,
		Age:       u.Age,
		Hobbies:   u.Hobbies,
		Level:     max(u.Level, 1),
		Points:    u.Points,
		CreatedAt: u.CreatedAt,
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return fmt.Errorf("create user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrUserExists
		}
		for _, b := range u.Badges {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&userBadgeRow{UserID: u.UserID, BadgeID: b, CreatedAt: row.CreatedAt}).Error; err != nil {
				return fmt.Errorf("create user badge: %w", err)
			}
		}
		return nil
	})
}

func (r *Repository) UpdateUserPoints(ctx context.Context, userID string, delta int) error {
	return r.updateUser(ctx, userID, "points", gorm.Expr("MAX(points + ?, 0)", delta))
}

func (r *Repository) UpdateUserLevel(ctx context.Context, userID string, level int) error {
	return r.updateUser(ctx, userID, "level", gorm.Expr("MAX(level, ?)", level))
}

func (r *Repository) updateUser(ctx context.Context, userID, column string, value clause.Expr) error {
	res := r.db.WithContext(ctx).Model(&userRow{}).Where("user_id = ?", userID).Update(column, value)
	if res.Error != nil {
		return fmt.Errorf("update %s: %w", column, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *Repository) AddBadge(ctx context.Context, userID, badgeID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&userRow{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrUserNotFound
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&userBadgeRow{UserID: userID, BadgeID: badgeID, CreatedAt: time.Now().UTC()}).Error
	})
}

func (r *Repository) TopUsers(ctx context.Context, limit int) ([]domain.UserProfile, error) {
	var rows []userRow
	q := r.db.WithContext(ctx).Order("points DESC, created_at ASC, user_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("top users: %w", err)
	}
	out := make([]domain.UserProfile, 0, len(rows))
	for _, row := range rows {
		badges, err := r.badges(ctx, row.UserID)
		if err != nil {
			return nil, err
		}
		out = append(out, row.profile(badges))
	}
	return out, nil
}

func (r *Repository) CreateQuizAttempt(ctx context.Context, a domain.QuizAttempt) error {
	responses, err := json.Marshal(a.Responses)
	if err != nil {
		return fmt.Errorf("encode responses: %w", err)
	}
	row := attemptRow{
		ID:               a.ID,
		UserID:           a.UserID,
		Topic:            a.Topic,
		Difficulty:       string(a.Difficulty),
		Score:            a.Score,
		MaxScore:         a.MaxScore,
		Responses:        string(responses),
		Feedback:         a.Feedback,
		TimeTakenSeconds: a.TimeTakenSeconds,
		CreatedAt:        a.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create quiz attempt: %w", err)
	}
	return nil
}

func (r *Repository) attempts(ctx context.Context, userID string, limit int) ([]attemptRow, error) {
	var rows []attemptRow
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, rowid DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("quiz history: %w", err)
	}
	return rows, nil
}

func (r *Repository) GetUserQuizHistory(ctx context.Context, userID string, limit int) ([]domain.QuizAttempt, error) {
	rows, err := r.attempts(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.QuizAttempt, 0, len(rows))
	for _, row := range rows {
		a := domain.QuizAttempt{
			ID:               row.ID,
			UserID:           row.UserID,
			Topic:            row.Topic,
			Difficulty:       domain.ParseTier(row.Difficulty),
			Score:            row.Score,
			MaxScore:         row.MaxScore,
			Feedback:         row.Feedback,
			TimeTakenSeconds: row.TimeTakenSeconds,
			CreatedAt:        row.CreatedAt,
		}
		if err := json.Unmarshal([]byte(row.Responses), &a.Responses); err != nil {
			return nil, fmt.Errorf("decode responses of %s: %w", row.ID, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *Repository) CountQuizAttempts(ctx context.Context, userID string) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&attemptRow{}).Where("user_id = ?", userID).Count(&n).Error
	return int(n), err
}

func (r *Repository) AverageScore(ctx context.Context, userID string) (float64, error) {
	var avg float64
	err := r.db.WithContext(ctx).Model(&attemptRow{}).
		Select("COALESCE(AVG(score), 0)").
		Where("user_id = ?", userID).
		Scan(&avg).Error
	return math.Round(avg*100) / 100, err
}

func (r *Repository) GetCorrectlyAnsweredQuestions(ctx context.Context, userID string, limit int) ([]domain.AnsweredQuestion, error) {
	history, err := r.GetUserQuizHistory(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []domain.AnsweredQuestion
	for _, a := range history {
		for _, resp := range a.Responses {
			if !resp.IsCorrect {
				continue
			}
			if _, dup := seen[resp.Question]; dup {
				continue
			}
			seen[resp.Question] = struct{}{}
			out = append(out, domain.AnsweredQuestion{
				Question:      resp.Question,
				Topic:         a.Topic,
				Difficulty:    a.Difficulty,
				CorrectAnswer: resp.CorrectAnswer,
			})
			if limit > 0 && len(out) == limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func (r *Repository) CreateGamificationEvent(ctx context.Context, ev domain.GamificationEvent) error {
	row := eventRow{
		ID:            ev.ID,
		UserID:        ev.UserID,
		EventType:     string(ev.Type),
		PointsAwarded: ev.Points,
		BadgeName:     ev.BadgeName,
		CreatedAt:     ev.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create gamification event: %w", err)
	}
	return nil
}

func (r *Repository) CreateTraceRecord(ctx context.Context, rec domain.TraceRecord) error {
	row := traceRow{
		RequestID: rec.RequestID,
		Step:      rec.Step,
		Agent:     rec.Agent,
		Status:    string(rec.Status),
		Input:     string(rec.Input),
		Output:    string(rec.Output),
		Error:     rec.Error,
		CreatedAt: rec.Timestamp,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("create trace record: %w", err)
	}
	return nil
}

func (r *Repository) GetTraceRecords(ctx context.Context, requestID string) ([]domain.TraceRecord, error) {
	var rows []traceRow
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).Order("step").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("trace records: %w", err)
	}
	out := make([]domain.TraceRecord, 0, len(rows))
	for _, row := range rows {
		rec := domain.TraceRecord{
			RequestID: row.RequestID,
			Step:      row.Step,
			Agent:     row.Agent,
			Status:    domain.TraceStatus(row.Status),
			Error:     row.Error,
			Timestamp: row.CreatedAt,
		}
		if row.Input != "" {
			rec.Input = json.RawMessage(row.Input)
		}
		if row.Output != "" {
			rec.Output = json.RawMessage(row.Output)
		}
		out = append(out, rec)
	}
	return out, nil
}
