// Package rewards computes points, badges and levels for gamification events.
package rewards

import "quiz-pipeline-service/internal/domain"

const (
	DefaultLevelThreshold = 500

	pointsPerQuiz     = 10
	bonusPerfect      = 50
	bonusGreat        = 20
	bonusGood         = 10
	pointsPerBadge    = 100
	pointsPerStreak   = 50
	greatPercentage   = 80
	goodPercentage    = 60
	perfectPercentage = 100
)

// Badge identifiers.
const (
	BadgeFirstQuiz    = "FIRST_QUIZ"
	BadgePerfectScore = "PERFECT_SCORE"
	BadgeStreak5      = "STREAK_5"
	BadgeCuriousMind  = "CURIOUS_MIND"
	BadgeFinancialPro = "FINANCIAL_PRO"
)

// Catalogue lists every badge the engine can grant.
var Catalogue = map[string]domain.Badge{
	BadgeFirstQuiz:    {ID: BadgeFirstQuiz, Name: "First Quiz Completed"},
	BadgePerfectScore: {ID: BadgePerfectScore, Name: "Perfect Score"},
	BadgeStreak5:      {ID: BadgeStreak5, Name: "5-Quiz Streak"},
	BadgeCuriousMind:  {ID: BadgeCuriousMind, Name: "Curious Mind"},
	BadgeFinancialPro: {ID: BadgeFinancialPro, Name: "Financial Pro"},
}

var countBadges = map[int]string{
	1:  BadgeFirstQuiz,
	5:  BadgeStreak5,
	10: BadgeCuriousMind,
	20: BadgeFinancialPro,
}

// Event is the input of one reward computation.
type Event struct {
	Type          domain.EventType
	CurrentPoints int
	CurrentLevel  int
	// Percentage and QuizCount only matter for quiz_completed events.
	// QuizCount includes the quiz being rewarded.
	Percentage  float64
	QuizCount   int
	OwnedBadges []string
}

// Outcome is what the event is worth and where it leaves the user.
type Outcome struct {
	Type         domain.EventType `json:"event_type"`
	PointsEarned int              `json:"points_earned"`
	TotalPoints  int              `json:"total_points"`
	Badges       []domain.Badge   `json:"badges_earned"`
	NewLevel     int              `json:"new_level"`
	LeveledUp    bool             `json:"leveled_up"`
	Progress     Progress         `json:"progress"`
}

// Progress locates a point total inside its level band.
type Progress struct {
	Level         int     `json:"current_level"`
	PointsInLevel int     `json:"points_in_level"`
	PointsNeeded  int     `json:"points_needed"`
	Percentage    float64 `json:"progress_percentage"`
}

type Engine struct {
	threshold int
}

// NewEngine returns an engine; threshold <= 0 selects DefaultLevelThreshold.
func NewEngine(threshold int) *Engine {
	if threshold <= 0 {
		threshold = DefaultLevelThreshold
	}
	return &Engine{threshold: threshold}
}

func (e *Engine) Threshold() int { return e.threshold }

// Process applies the point, badge and level policies to ev.
func (e *Engine) Process(ev Event) Outcome {
	points := e.Points(ev.Type, ev.Percentage)
	total := max(ev.CurrentPoints, 0) + points
	level, up := e.Level(total, ev.CurrentLevel)
	return Outcome{
		Type:         ev.Type,
		PointsEarned: points,
		TotalPoints:  total,
		Badges:       e.Badges(ev),
		NewLevel:     level,
		LeveledUp:    up,
		Progress:     e.Progress(total, level),
	}
}

// Points is the reward for a single event.
func (e *Engine) Points(t domain.EventType, percentage float64) int {
	switch t {
	case domain.EventQuizCompleted:
		points := pointsPerQuiz
		switch {
		case percentage == perfectPercentage:
			points += bonusPerfect
		case percentage >= greatPercentage:
			points += bonusGreat
		case percentage >= goodPercentage:
			points += bonusGood
		}
		return points
	case domain.EventBadgeEarned:
		return pointsPerBadge
	case domain.EventDailyStreak:
		return pointsPerStreak
	default:
		return 0
	}
}

// Badges lists the milestones reached by a quiz_completed event that the
// user does not own yet.
func (e *Engine) Badges(ev Event) []domain.Badge {
	if ev.Type != domain.EventQuizCompleted {
		return nil
	}
	owned := make(map[string]struct{}, len(ev.OwnedBadges))
	for _, b := range ev.OwnedBadges {
		owned[b] = struct{}{}
	}

	var candidates []string
	if ev.QuizCount == 1 {
		candidates = append(candidates, BadgeFirstQuiz)
	}
	if ev.Percentage == perfectPercentage {
		candidates = append(candidates, BadgePerfectScore)
	}
	if id, ok := countBadges[ev.QuizCount]; ok && id != BadgeFirstQuiz {
		candidates = append(candidates, id)
	}

	var out []domain.Badge
	for _, id := range candidates {
		if _, ok := owned[id]; ok {
			continue
		}
		out = append(out, Catalogue[id])
	}
	return out
}

// Level returns the level for total points. A user needs threshold*current
// points to advance; the level never decreases.
func (e *Engine) Level(total, current int) (int, bool) {
	if current < 1 {
		current = 1
	}
	next := current
	if total >= e.threshold*current {
		next = total/e.threshold + 1
	}
	if next < current {
		next = current
	}
	return next, next > current
}

// Progress is a display projection of total inside level's band.
func (e *Engine) Progress(total, level int) Progress {
	if level < 1 {
		level = 1
	}
	floor := e.threshold * (level - 1)
	ceil := e.threshold * level
	in := min(max(total-floor, 0), e.threshold)
	return Progress{
		Level:         level,
		PointsInLevel: in,
		PointsNeeded:  max(ceil-total, 0),
		Percentage:    float64(in) * 100 / float64(e.threshold),
	}
}
