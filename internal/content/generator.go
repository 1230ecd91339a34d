// Package content produces the narrative and question set for a quiz.
//
// Backends implement Generator and are combined into a Chain that tries
// them in order. Every attempt is recorded with a Reason so callers can see
// why a backend was skipped without relying on panics or log scraping.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"quiz-pipeline-service/internal/domain"
	"quiz-pipeline-service/internal/logger"
)

var (
	// ErrUnsupported is returned by a backend that does not offer an operation.
	ErrUnsupported = errors.New("operation not supported by backend")
	// ErrMalformed is returned when a backend response cannot be parsed.
	ErrMalformed = errors.New("malformed backend response")
)

// StoryRequest carries everything a backend may use to write the narrative.
type StoryRequest struct {
	Profile    domain.UserProfile
	Topic      string
	Difficulty domain.Tier
	Context    string
}

// QuestionRequest asks for Count questions, skipping texts in Exclude.
type QuestionRequest struct {
	Profile    domain.UserProfile
	Topic      string
	Difficulty domain.Tier
	Count      int
	Context    string
	Exclude    []string
}

// Generator is one content backend.
type Generator interface {
	Name() string
	GenerateStory(ctx context.Context, req StoryRequest) (string, error)
	GenerateQuestions(ctx context.Context, req QuestionRequest) ([]domain.Question, error)
}

// Reason classifies the outcome of one backend attempt.
type Reason string

const (
	ReasonOK          Reason = "ok"
	ReasonUnsupported Reason = "not_supported"
	ReasonTimeout     Reason = "timeout"
	ReasonUpstream    Reason = "upstream_error"
	ReasonMalformed   Reason = "malformed"
	ReasonEmpty       Reason = "empty"
)

// Attempt records what happened when a backend was tried.
type Attempt struct {
	Backend string `json:"backend"`
	Reason  Reason `json:"reason"`
	Error   string `json:"error,omitempty"`
}

// StoryResult is the narrative plus the attempts made to get it.
type StoryResult struct {
	Text     string    `json:"story"`
	Backend  string    `json:"backend"`
	Attempts []Attempt `json:"attempts"`
}

// QuestionsResult is the question set plus the attempts made to get it.
type QuestionsResult struct {
	Questions []domain.Question `json:"questions"`
	Backend   string            `json:"backend"`
	Attempts  []Attempt         `json:"attempts"`
}

// Chain tries backends in order until one yields usable content. Each
// attempt is bounded by timeout when it is positive.
type Chain struct {
	backends []Generator
	timeout  time.Duration
	log      *logger.Logger
}

func NewChain(timeout time.Duration, log *logger.Logger, backends ...Generator) *Chain {
	if log == nil {
		log = logger.Nop()
	}
	return &Chain{backends: backends, timeout: timeout, log: log.With("component", "ContentGenerator")}
}

// Backends lists the configured backend names in order.
func (c *Chain) Backends() []string {
	names := make([]string, 0, len(c.backends))
	for _, b := range c.backends {
		names = append(names, b.Name())
	}
	return names
}

// Story returns the first non-empty narrative.
func (c *Chain) Story(ctx context.Context, req StoryRequest) (StoryResult, error) {
	var res StoryResult
	for _, b := range c.backends {
		text, err := bounded(ctx, c.timeout, func(ctx context.Context) (string, error) {
			return b.GenerateStory(ctx, req)
		})
		if err == nil && strings.TrimSpace(text) == "" {
			err = domain.ErrNoContent
		}
		attempt := c.record(b.Name(), "story", err)
		res.Attempts = append(res.Attempts, attempt)
		if err == nil {
			res.Text = text
			res.Backend = b.Name()
			return res, nil
		}
	}
	return res, domain.E(domain.KindUpstream, "generate story", fmt.Errorf("all %d backends failed", len(c.backends)))
}

// Questions returns the first non-empty validated question set. Excluded
// texts are dropped unless that would leave nothing, and the set is capped
// at req.Count.
func (c *Chain) Questions(ctx context.Context, req QuestionRequest) (QuestionsResult, error) {
	var res QuestionsResult
	for _, b := range c.backends {
		qs, err := bounded(ctx, c.timeout, func(ctx context.Context) ([]domain.Question, error) {
			return b.GenerateQuestions(ctx, req)
		})
		if err == nil {
			qs = finalize(qs, req.Exclude, req.Count)
			if len(qs) == 0 {
				err = domain.ErrNoContent
			}
		}
		attempt := c.record(b.Name(), "questions", err)
		res.Attempts = append(res.Attempts, attempt)
		if err == nil {
			res.Questions = qs
			res.Backend = b.Name()
			return res, nil
		}
	}
	return res, domain.E(domain.KindUpstream, "generate questions", fmt.Errorf("all %d backends failed", len(c.backends)))
}

func (c *Chain) record(backend, op string, err error) Attempt {
	a := Attempt{Backend: backend, Reason: classify(err)}
	if err != nil {
		a.Error = err.Error()
		if a.Reason != ReasonUnsupported {
			c.log.Warn("backend attempt failed", "backend", backend, "op", op, "reason", a.Reason, "error", err)
		}
	}
	return a
}

// bounded runs fn with a deadline and returns as soon as the deadline
// passes, even if fn ignores its context.
func bounded[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- result{zero, fmt.Errorf("backend panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func classify(err error) Reason {
	switch {
	case err == nil:
		return ReasonOK
	case errors.Is(err, ErrUnsupported):
		return ReasonUnsupported
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, ErrMalformed):
		return ReasonMalformed
	case errors.Is(err, domain.ErrNoContent):
		return ReasonEmpty
	default:
		return ReasonUpstream
	}
}

func finalize(qs []domain.Question, exclude []string, count int) []domain.Question {
	valid := make([]domain.Question, 0, len(qs))
	for _, q := range qs {
		if q.Valid() {
			valid = append(valid, q)
		}
	}
	valid = filterAnswered(valid, exclude)
	if count > 0 && len(valid) > count {
		valid = valid[:count]
	}
	for i := range valid {
		if valid[i].ID == "" {
			valid[i].ID = fmt.Sprintf("q_%d", i+1)
		}
	}
	return valid
}

// filterAnswered drops questions whose text matches an excluded text
// (case and surrounding space insensitive). If every question would be
// dropped the input is returned unchanged.
func filterAnswered(qs []domain.Question, exclude []string) []domain.Question {
	if len(exclude) == 0 {
		return qs
	}
	seen := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		seen[normalizeText(e)] = struct{}{}
	}
	kept := make([]domain.Question, 0, len(qs))
	for _, q := range qs {
		if _, ok := seen[normalizeText(q.Text)]; !ok {
			kept = append(kept, q)
		}
	}
	if len(kept) == 0 {
		return qs
	}
	return kept
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
