package evaluation

import (
	"errors"
	"strings"
	"testing"

	"quiz-pipeline-service/internal/domain"
)

func fiveQuestions() []domain.Question {
	qs := make([]domain.Question, 5)
	for i := range qs {
		qs[i] = domain.Question{
			ID:           "",
			Text:         "question",
			Options:      []string{"A", "B", "C", "D"},
			CorrectIndex: i % 4,
			Explanation:  "because",
		}
	}
	return qs
}

func TestEvaluateScenarioThreeOfFive(t *testing.T) {
	qs := fiveQuestions()
	answers := []int{0, 1, 2, 0, 1} // last two wrong
	res, err := NewEvaluator().Evaluate(qs, answers, "Alex")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.CorrectCount != 3 || res.Percentage != 60 || res.Score != 60 || res.MaxScore != 5 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Feedback != "Good effort, Alex! You got 3/5 correct. Review the explanations to improve." {
		t.Fatalf("unexpected feedback %q", res.Feedback)
	}
	if res.QuestionFeedback[0].QuestionID != "q_0" {
		t.Fatalf("expected default question id, got %q", res.QuestionFeedback[0].QuestionID)
	}
	if res.QuestionFeedback[3].UserAnswer != "A" || res.QuestionFeedback[3].CorrectAnswer != "D" {
		t.Fatalf("unexpected option text %+v", res.QuestionFeedback[3])
	}
}

func TestEvaluateShortAndOutOfRangeAnswers(t *testing.T) {
	qs := fiveQuestions()
	res, err := NewEvaluator().Evaluate(qs, []int{0, 9, -1}, "")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.CorrectCount != 1 {
		t.Fatalf("expected 1 correct, got %d", res.CorrectCount)
	}
	if res.QuestionFeedback[1].UserAnswer != "" || res.QuestionFeedback[2].UserAnswer != "" {
		t.Fatalf("out of range answers should have empty text")
	}
	if res.QuestionFeedback[4].IsCorrect || res.QuestionFeedback[4].UserAnswer != "" {
		t.Fatalf("missing answer should be incorrect and empty")
	}
	if !strings.HasPrefix(res.Feedback, "Student, this is a learning opportunity!") {
		t.Fatalf("unexpected feedback %q", res.Feedback)
	}
}

func TestEvaluateRoundsPercentage(t *testing.T) {
	qs := fiveQuestions()[:3]
	res, err := NewEvaluator().Evaluate(qs, []int{0, 1, 3}, "Sam")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Score != 67 {
		t.Fatalf("expected rounded score 67, got %d (%.4f)", res.Score, res.Percentage)
	}
}

func TestEvaluateFeedbackBands(t *testing.T) {
	qs := fiveQuestions()
	cases := []struct {
		answers []int
		prefix  string
	}{
		{[]int{0, 1, 2, 3, 0}, "Amazing work, Jo! Perfect score!"},
		{[]int{0, 1, 2, 3, 1}, "Great job, Jo! You got 4/5 correct."},
		{[]int{0, 1, 3, 0, 1}, "Nice try, Jo! You got 2/5 correct."},
		{[]int{3, 3, 3, 0, 1}, "Jo, this is a learning opportunity! You got 0/5 correct."},
	}
	for _, tc := range cases {
		res, err := NewEvaluator().Evaluate(qs, tc.answers, "Jo")
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if !strings.HasPrefix(res.Feedback, tc.prefix) {
			t.Fatalf("answers %v: expected prefix %q, got %q", tc.answers, tc.prefix, res.Feedback)
		}
	}
}

func TestEvaluateRejectsEmptyInput(t *testing.T) {
	e := NewEvaluator()
	if _, err := e.Evaluate(nil, []int{1}, "x"); !errors.Is(err, domain.ErrMissingAnswers) {
		t.Fatalf("expected ErrMissingAnswers for empty questions, got %v", err)
	}
	if _, err := e.Evaluate(fiveQuestions(), nil, "x"); !errors.Is(err, domain.ErrMissingAnswers) {
		t.Fatalf("expected ErrMissingAnswers for empty answers, got %v", err)
	}
}

func TestEvaluateRejectsMalformedQuestions(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(q *domain.Question)
	}{
		{"two options", func(q *domain.Question) { q.Options = []string{"a", "b"} }},
		{"five options", func(q *domain.Question) { q.Options = append(q.Options, "E") }},
		{"index past options", func(q *domain.Question) { q.CorrectIndex = 9 }},
		{"negative index", func(q *domain.Question) { q.CorrectIndex = -1 }},
		{"blank text", func(q *domain.Question) { q.Text = "  " }},
	}
	for _, tc := range cases {
		qs := fiveQuestions()
		tc.mutate(&qs[2])
		res, err := NewEvaluator().Evaluate(qs, []int{0, 1, 2, 3, 0}, "Jo")
		if !errors.Is(err, domain.ErrMalformedQuestion) {
			t.Fatalf("%s: expected ErrMalformedQuestion, got %v", tc.name, err)
		}
		if res.MaxScore != 0 || len(res.QuestionFeedback) != 0 {
			t.Fatalf("%s: expected no partial scoring, got %+v", tc.name, res)
		}
	}
}
