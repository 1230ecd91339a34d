package content

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-pipeline-service/internal/domain"
)

type stubGenerator struct {
	name      string
	story     string
	storyErr  error
	questions []domain.Question
	qErr      error
	delay     time.Duration
}

func (s *stubGenerator) Name() string { return s.name }

func (s *stubGenerator) GenerateStory(ctx context.Context, _ StoryRequest) (string, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.story, s.storyErr
}

func (s *stubGenerator) GenerateQuestions(ctx context.Context, _ QuestionRequest) ([]domain.Question, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.questions, s.qErr
}

func validQuestion(text string) domain.Question {
	return domain.Question{Text: text, Options: []string{"a", "b", "c", "d"}, CorrectIndex: 1}
}

func TestChainFallsBackToNextBackend(t *testing.T) {
	chain := NewChain(0, nil,
		&stubGenerator{name: "broken", storyErr: errors.New("boom")},
		&stubGenerator{name: "passage", storyErr: ErrUnsupported},
		&stubGenerator{name: "good", story: "once upon a time"},
	)

	res, err := chain.Story(context.Background(), StoryRequest{Topic: "saving"})
	if err != nil {
		t.Fatalf("story: %v", err)
	}
	if res.Backend != "good" || res.Text != "once upon a time" {
		t.Fatalf("unexpected result %+v", res)
	}
	want := []Reason{ReasonUpstream, ReasonUnsupported, ReasonOK}
	if len(res.Attempts) != len(want) {
		t.Fatalf("expected %d attempts, got %d", len(want), len(res.Attempts))
	}
	for i, r := range want {
		if res.Attempts[i].Reason != r {
			t.Fatalf("attempt %d: expected %s, got %s", i, r, res.Attempts[i].Reason)
		}
	}
}

func TestChainEmptyStoryCountsAsFailure(t *testing.T) {
	chain := NewChain(0, nil, &stubGenerator{name: "blank", story: "   "})
	res, err := chain.Story(context.Background(), StoryRequest{})
	if domain.KindOf(err) != domain.KindUpstream {
		t.Fatalf("expected upstream failure, got %v", err)
	}
	if res.Attempts[0].Reason != ReasonEmpty {
		t.Fatalf("expected empty reason, got %s", res.Attempts[0].Reason)
	}
}

func TestChainTimeoutMovesOn(t *testing.T) {
	chain := NewChain(20*time.Millisecond, nil,
		&stubGenerator{name: "slow", story: "late", delay: 500 * time.Millisecond},
		&stubGenerator{name: "fast", story: "on time"},
	)
	start := time.Now()
	res, err := chain.Story(context.Background(), StoryRequest{})
	if err != nil {
		t.Fatalf("story: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Fatalf("chain waited for slow backend: %s", elapsed)
	}
	if res.Attempts[0].Reason != ReasonTimeout || res.Backend != "fast" {
		t.Fatalf("unexpected attempts %+v", res.Attempts)
	}
}

func TestChainQuestionsDropsInvalidAndCaps(t *testing.T) {
	bad := domain.Question{Text: "three options", Options: []string{"a", "b", "c"}}
	chain := NewChain(0, nil, &stubGenerator{name: "mixed", questions: []domain.Question{
		bad, validQuestion("one"), validQuestion("two"), validQuestion("three"),
	}})

	res, err := chain.Questions(context.Background(), QuestionRequest{Count: 2})
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(res.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(res.Questions))
	}
	if res.Questions[0].Text != "one" || res.Questions[0].ID != "q_1" {
		t.Fatalf("unexpected first question %+v", res.Questions[0])
	}
}

func TestChainQuestionsAllInvalidFallsThrough(t *testing.T) {
	chain := NewChain(0, nil,
		&stubGenerator{name: "junk", questions: []domain.Question{{Text: "x"}}},
		&stubGenerator{name: "good", questions: []domain.Question{validQuestion("ok")}},
	)
	res, err := chain.Questions(context.Background(), QuestionRequest{Count: 5})
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if res.Backend != "good" || res.Attempts[0].Reason != ReasonEmpty {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestChainAllBackendsFail(t *testing.T) {
	chain := NewChain(0, nil, &stubGenerator{name: "a", qErr: ErrMalformed})
	res, err := chain.Questions(context.Background(), QuestionRequest{})
	if domain.KindOf(err) != domain.KindUpstream {
		t.Fatalf("expected upstream failure, got %v", err)
	}
	if res.Attempts[0].Reason != ReasonMalformed {
		t.Fatalf("expected malformed reason, got %s", res.Attempts[0].Reason)
	}
}

func TestFilterAnsweredKeepsAllWhenEverythingExcluded(t *testing.T) {
	qs := []domain.Question{validQuestion("What is saving?"), validQuestion("What is a budget?")}

	kept := filterAnswered(qs, []string{"  what is SAVING? "})
	if len(kept) != 1 || kept[0].Text != "What is a budget?" {
		t.Fatalf("expected only budget question, got %+v", kept)
	}

	all := filterAnswered(qs, []string{"What is saving?", "What is a budget?"})
	if len(all) != 2 {
		t.Fatalf("expected original set when all excluded, got %d", len(all))
	}
}
