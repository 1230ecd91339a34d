// Package difficulty picks the next quiz tier from recent performance.
package difficulty

import (
	"fmt"

	"quiz-pipeline-service/internal/domain"
)

const (
	easyBelow   = 0.5
	mediumBelow = 0.8
	reasonSpan  = 5
)

// Recommendation is the chosen tier and a learner-facing justification.
type Recommendation struct {
	Tier      domain.Tier `json:"difficulty"`
	Reasoning string      `json:"reasoning"`
}

// Recommender maps score history to a tier.
type Recommender struct{}

func NewRecommender() *Recommender { return &Recommender{} }

// Recommend chooses a tier. scores are ordered newest first and may be
// fractions (0-1) or percentages (0-100). Only the newest score drives the
// decision; age is accepted for interface stability but new users always
// start at medium.
func (r *Recommender) Recommend(scores []float64, _ int) Recommendation {
	if len(scores) == 0 {
		return Recommendation{
			Tier:      domain.TierMedium,
			Reasoning: "Starting with recommended difficulty based on age and experience level.",
		}
	}

	tier := TierFor(scores[0])
	avg := recentAverage(scores)
	var reason string
	switch tier {
	case domain.TierEasy:
		reason = fmt.Sprintf("Your average score is %.0f%%. Easy questions will help build confidence and foundation.", avg)
	case domain.TierMedium:
		reason = fmt.Sprintf("Your average score is %.0f%%. Medium questions provide a good challenge for growth.", avg)
	default:
		reason = fmt.Sprintf("Your average score is %.0f%%. Hard questions will push your learning forward!", avg)
	}
	return Recommendation{Tier: tier, Reasoning: reason}
}

// TierFor classifies a single score.
func TierFor(score float64) domain.Tier {
	s := fraction(score)
	switch {
	case s < easyBelow:
		return domain.TierEasy
	case s < mediumBelow:
		return domain.TierMedium
	default:
		return domain.TierHard
	}
}

func fraction(score float64) float64 {
	if score > 1 {
		return score / 100
	}
	return score
}

// recentAverage is the mean of the newest five scores as a percentage.
func recentAverage(scores []float64) float64 {
	n := min(len(scores), reasonSpan)
	var sum float64
	for _, s := range scores[:n] {
		sum += fraction(s) * 100
	}
	return sum / float64(n)
}
