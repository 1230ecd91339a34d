// Package evaluation grades submitted answers against the answer key.
package evaluation

import (
	"fmt"
	"math"

	"quiz-pipeline-service/internal/domain"
)

// Result is the aggregate grade of one submission.
type Result struct {
	CorrectCount     int                `json:"correct_count"`
	MaxScore         int                `json:"max_score"`
	Percentage       float64            `json:"percentage"`
	Score            int                `json:"score"`
	Feedback         string             `json:"feedback"`
	QuestionFeedback []QuestionFeedback `json:"question_feedback"`
}

// QuestionFeedback explains the outcome of a single question.
type QuestionFeedback struct {
	QuestionID    string `json:"question_id"`
	Question      string `json:"question"`
	IsCorrect     bool   `json:"is_correct"`
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation"`
	Status        string `json:"status"`
}

type Evaluator struct{}

func NewEvaluator() *Evaluator { return &Evaluator{} }

// Evaluate grades answers (option indices) against questions. Missing or
// out-of-range answers count as incorrect. Empty input returns
// domain.ErrMissingAnswers and a question without four options or a
// correct index in range returns domain.ErrMalformedQuestion. Neither
// scores anything.
func (e *Evaluator) Evaluate(questions []domain.Question, answers []int, name string) (Result, error) {
	if len(questions) == 0 || len(answers) == 0 {
		return Result{}, domain.ErrMissingAnswers
	}
	for i, q := range questions {
		if !q.Valid() {
			return Result{}, fmt.Errorf("question %d: %w", i+1, domain.ErrMalformedQuestion)
		}
	}
	if name == "" {
		name = "Student"
	}

	res := Result{
		MaxScore:         len(questions),
		QuestionFeedback: make([]QuestionFeedback, 0, len(questions)),
	}
	for i, q := range questions {
		answered := i < len(answers)
		correct := answered && answers[i] == q.CorrectIndex
		if correct {
			res.CorrectCount++
		}

		fb := QuestionFeedback{
			QuestionID:    q.ID,
			Question:      q.Text,
			IsCorrect:     correct,
			CorrectAnswer: q.OptionText(q.CorrectIndex),
			Explanation:   q.Explanation,
			Status:        "Incorrect",
		}
		if fb.QuestionID == "" {
			fb.QuestionID = fmt.Sprintf("q_%d", i)
		}
		if answered {
			fb.UserAnswer = q.OptionText(answers[i])
		}
		if correct {
			fb.Status = "Correct!"
		}
		res.QuestionFeedback = append(res.QuestionFeedback, fb)
	}

	res.Percentage = float64(res.CorrectCount) / float64(res.MaxScore) * 100
	res.Score = int(math.Round(res.Percentage))
	res.Feedback = message(name, res)
	return res, nil
}

func message(name string, r Result) string {
	tally := fmt.Sprintf("You got %d/%d correct.", r.CorrectCount, r.MaxScore)
	switch {
	case r.Percentage == 100:
		return fmt.Sprintf("Amazing work, %s! Perfect score! You've mastered this topic!", name)
	case r.Percentage >= 80:
		return fmt.Sprintf("Great job, %s! %s Keep going!", name, tally)
	case r.Percentage >= 60:
		return fmt.Sprintf("Good effort, %s! %s Review the explanations to improve.", name, tally)
	case r.Percentage >= 40:
		return fmt.Sprintf("Nice try, %s! %s Let's review and try again!", name, tally)
	default:
		return fmt.Sprintf("%s, this is a learning opportunity! %s Review the material and give it another shot!", name, tally)
	}
}
