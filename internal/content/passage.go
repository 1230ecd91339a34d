package content

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"quiz-pipeline-service/internal/domain"
)

const (
	minSentence = 30
	maxSentence = 220
	blank       = "_____"
)

// clozeTerms are the words the passage backend can blank out.
var clozeTerms = []string{
	"money", "save", "saving", "savings", "spend", "spending", "earn", "invest",
	"budget", "credit", "debt", "interest", "goal", "bank", "account", "stock",
	"bond", "profit", "loss", "income", "expense", "wealth", "price", "value",
	"needs", "wants", "plan", "business", "loan", "tax", "donate",
}

var sentenceSplit = regexp.MustCompile(`[.!?\n]+`)

// PassageGenerator builds fill-in-the-blank questions from retrieved
// lesson passages. It needs no network access but only works when the
// request carries context.
type PassageGenerator struct {
	mu    sync.Mutex
	rnd   *rand.Rand
	terms []*regexp.Regexp
}

func NewPassageGenerator(seed int64) *PassageGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	terms := make([]*regexp.Regexp, len(clozeTerms))
	for i, t := range clozeTerms {
		terms[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(t) + `\b`)
	}
	return &PassageGenerator{rnd: rand.New(rand.NewSource(seed)), terms: terms}
}

func (g *PassageGenerator) Name() string { return "passage" }

func (g *PassageGenerator) GenerateStory(context.Context, StoryRequest) (string, error) {
	return "", ErrUnsupported
}

func (g *PassageGenerator) GenerateQuestions(ctx context.Context, req QuestionRequest) ([]domain.Question, error) {
	if strings.TrimSpace(req.Context) == "" {
		return nil, domain.ErrNoContent
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var qs []domain.Question
	seen := make(map[string]struct{})
	for _, sentence := range sentences(req.Context) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q, ok := g.cloze(sentence)
		if !ok {
			continue
		}
		if _, dup := seen[q.Text]; dup {
			continue
		}
		seen[q.Text] = struct{}{}
		q.ID = fmt.Sprintf("p_%d", len(qs)+1)
		qs = append(qs, q)
	}
	qs = filterAnswered(qs, req.Exclude)
	if len(qs) == 0 {
		return nil, domain.ErrNoContent
	}
	if req.Count > 0 && len(qs) > req.Count {
		qs = qs[:req.Count]
	}
	return qs, nil
}

func sentences(text string) []string {
	var out []string
	for _, s := range sentenceSplit.Split(text, -1) {
		s = strings.TrimSpace(strings.Trim(s, "#=-* \t"))
		n := utf8.RuneCountInString(s)
		if n >= minSentence && n <= maxSentence {
			out = append(out, s)
		}
	}
	return out
}

func (g *PassageGenerator) cloze(sentence string) (domain.Question, bool) {
	for i, re := range g.terms {
		loc := re.FindStringIndex(sentence)
		if loc == nil {
			continue
		}
		answer := strings.ToLower(sentence[loc[0]:loc[1]])
		text := sentence[:loc[0]] + blank + sentence[loc[1]:]
		options := append([]string{answer}, g.distractors(i, 3)...)
		g.rnd.Shuffle(len(options), func(a, b int) { options[a], options[b] = options[b], options[a] })
		correct := 0
		for j, o := range options {
			if o == answer {
				correct = j
			}
		}
		return domain.Question{
			Text:         "Fill in the blank: " + text + ".",
			Options:      options,
			CorrectIndex: correct,
			Explanation:  "From the lesson: " + sentence + ".",
		}, true
	}
	return domain.Question{}, false
}

func (g *PassageGenerator) distractors(skip, n int) []string {
	picks := g.rnd.Perm(len(clozeTerms))
	out := make([]string, 0, n)
	for _, p := range picks {
		if p == skip {
			continue
		}
		out = append(out, clozeTerms[p])
		if len(out) == n {
			break
		}
	}
	return out
}
