package sqlite

import "time"

type userRow struct {
	UserID    string `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	Age       int
	Hobbies   string
	Level     int `gorm:"not null;default:1"`
	Points    int `gorm:"not null;default:0;index"`
	CreatedAt time.Time
}

func (userRow) TableName() string { return "users" }

type userBadgeRow struct {
	UserID    string `gorm:"primaryKey"`
	BadgeID   string `gorm:"primaryKey"`
	CreatedAt time.Time
}

func (userBadgeRow) TableName() string { return "user_badges" }

type attemptRow struct {
	ID               string `gorm:"primaryKey"`
	UserID           string `gorm:"not null;index:idx_attempts_user_created,priority:1"`
	Topic            string
	Difficulty       string
	Score            int
	MaxScore         int
	Responses        string `gorm:"type:text"`
	Feedback         string
	TimeTakenSeconds int
	CreatedAt        time.Time `gorm:"index:idx_attempts_user_created,priority:2"`
}

func (attemptRow) TableName() string { return "quiz_attempts" }

type eventRow struct {
	ID            string `gorm:"primaryKey"`
	UserID        string `gorm:"not null;index"`
	EventType     string
	PointsAwarded int
	BadgeName     string
	CreatedAt     time.Time
}

func (eventRow) TableName() string { return "gamification_events" }

type traceRow struct {
	RequestID string `gorm:"primaryKey"`
	Step      int    `gorm:"primaryKey;autoIncrement:false"`
	Agent     string
	Status    string
	Input     string `gorm:"type:text"`
	Output    string `gorm:"type:text"`
	Error     string
	CreatedAt time.Time
}

func (traceRow) TableName() string { return "trace_records" }
