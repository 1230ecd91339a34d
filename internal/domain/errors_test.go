package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"classified", E(KindPersistence, "save attempt", errors.New("disk full")), KindPersistence},
		{"wrapped classified", fmt.Errorf("outer: %w", E(KindUpstream, "search", errors.New("down"))), KindUpstream},
		{"sentinel user", fmt.Errorf("get: %w", ErrUserNotFound), KindNotFound},
		{"sentinel validation", ErrMissingAnswers, KindValidation},
		{"malformed question", fmt.Errorf("q_2: %w", ErrMalformedQuestion), KindValidation},
		{"unknown", errors.New("boom"), KindInternal},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestErrorUnwrapsToSentinel(t *testing.T) {
	err := E(KindNotFound, "get user", ErrUserNotFound)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected errors.Is to reach sentinel")
	}
	if err.Error() != "get user: user not found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestParseTierDefaultsToMedium(t *testing.T) {
	if ParseTier(" HARD ") != TierHard || ParseTier("easy") != TierEasy || ParseTier("bogus") != TierMedium {
		t.Fatalf("unexpected tier parsing")
	}
}

func TestQuestionOptionTextOutOfRange(t *testing.T) {
	q := Question{Text: "q", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 1}
	if q.OptionText(-1) != "" || q.OptionText(4) != "" || q.OptionText(1) != "b" {
		t.Fatalf("unexpected option lookup")
	}
	if !q.Valid() {
		t.Fatalf("expected valid question")
	}
}

func TestHobbyList(t *testing.T) {
	u := UserProfile{Hobbies: "video games, drawing,, soccer "}
	got := u.HobbyList()
	if len(got) != 3 || got[0] != "video games" || got[2] != "soccer" {
		t.Fatalf("unexpected hobbies %v", got)
	}
}
