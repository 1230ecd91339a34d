package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"quiz-pipeline-service/internal/domain"
)

// ErrNotConfigured is returned by NewLLMGenerator when no API key is set.
var ErrNotConfigured = errors.New("llm backend not configured")

// LLMConfig configures an OpenAI-compatible chat completions backend.
type LLMConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	MaxRetries int
	HTTPClient *http.Client
}

// LLMGenerator asks a chat completions endpoint for stories and questions.
type LLMGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
	client     *http.Client
}

func NewLLMGenerator(cfg LLMConfig) (*LLMGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &LLMGenerator{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		client:     client,
	}, nil
}

func (g *LLMGenerator) Name() string { return "llm" }

func (g *LLMGenerator) GenerateStory(ctx context.Context, req StoryRequest) (string, error) {
	prompt := fmt.Sprintf(`Write a short, engaging story (under 300 words) that teaches "%s" to %s, a %d-year-old who enjoys %s.
Difficulty: %s. Use simple numbers the reader can follow and end with what was learned.
Lesson notes to ground the story:
%s`, req.Topic, nameOr(req.Profile.Name), req.Profile.Age, hobbiesOr(req.Profile.Hobbies), req.Difficulty, req.Context)
	return g.complete(ctx, "You write financial education stories for children.", prompt)
}

func (g *LLMGenerator) GenerateQuestions(ctx context.Context, req QuestionRequest) ([]domain.Question, error) {
	var avoid strings.Builder
	for i, e := range req.Exclude {
		if i == 5 {
			break
		}
		fmt.Fprintf(&avoid, "\n- %s", preview(e, 100))
	}
	prompt := fmt.Sprintf(`Generate %d multiple-choice questions about "%s" for a %d-year-old who enjoys %s.
Difficulty: %s.
Each question has exactly 4 options; vary the position of the correct answer.
Do not repeat these questions the learner already mastered:%s
Lesson notes:
%s

Respond with JSON only:
{"questions":[{"question":"...","options":["A","B","C","D"],"correct_answer":0,"explanation":"..."}]}`,
		req.Count, req.Topic, req.Profile.Age, hobbiesOr(req.Profile.Hobbies), req.Difficulty, avoid.String(), req.Context)

	text, err := g.complete(ctx, "You write accurate quiz questions for children. Reply with JSON only.", prompt)
	if err != nil {
		return nil, err
	}
	return parseQuestions(text)
}

type llmQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// parseQuestions accepts a JSON payload, optionally wrapped in a markdown
// code fence, and keeps questions with at least four options.
func parseQuestions(text string) ([]domain.Question, error) {
	text = stripFence(text)
	var payload struct {
		Questions []llmQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	out := make([]domain.Question, 0, len(payload.Questions))
	for _, q := range payload.Questions {
		if strings.TrimSpace(q.Question) == "" || len(q.Options) < 4 {
			continue
		}
		idx := q.CorrectAnswer % 4
		if idx < 0 {
			idx += 4
		}
		out = append(out, domain.Question{
			ID:           fmt.Sprintf("q_%d", len(out)+1),
			Text:         q.Question,
			Options:      append([]string(nil), q.Options[:4]...),
			CorrectIndex: idx,
			Explanation:  q.Explanation,
		})
	}
	if len(out) == 0 {
		return nil, domain.ErrNoContent
	}
	return out, nil
}

func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest)
	}
	return text
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (g *LLMGenerator) complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	url := g.baseURL + "/chat/completions"

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, lastDelay(lastErr, attempt-1)); err != nil {
				return "", err
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+g.apiKey)

		resp, err := g.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			continue
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &retryableStatus{status: resp.Status, retryAfter: resp.Header.Get("Retry-After")}
			continue
		}
		if resp.StatusCode >= 300 {
			return "", fmt.Errorf("chat completions failed: %s", resp.Status)
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}

		var out chatResponse
		if err := json.Unmarshal(payload, &out); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
			return "", domain.ErrNoContent
		}
		return out.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("chat completions failed after %d attempts: %w", g.maxRetries+1, lastErr)
}

type retryableStatus struct {
	status     string
	retryAfter string
}

func (e *retryableStatus) Error() string { return "retryable status " + e.status }

func lastDelay(err error, attempt int) time.Duration {
	var rs *retryableStatus
	if errors.As(err, &rs) && rs.retryAfter != "" {
		if secs, convErr := strconv.Atoi(rs.retryAfter); convErr == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return retryDelay(attempt)
}

// retryDelay backs off exponentially from 200ms, capped at 5s.
func retryDelay(attempt int) time.Duration {
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second || d <= 0 {
		return 5 * time.Second
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func nameOr(name string) string {
	if name == "" {
		return "a student"
	}
	return name
}

func hobbiesOr(h string) string {
	if strings.TrimSpace(h) == "" {
		return "learning"
	}
	return h
}
