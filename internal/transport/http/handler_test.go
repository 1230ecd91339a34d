package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

type envelope struct {
	Status     string          `json:"status"`
	RequestID  string          `json:"request_id"`
	TraceSteps int             `json:"trace_steps"`
	Error      string          `json:"error"`
	ErrorKind  string          `json:"error_kind"`
	Data       json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, method, url string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode, env
}

func TestRESTGenerateSubmitAndTrace(t *testing.T) {
	server, _ := newTestServer(t)

	code, gen := doJSON(t, http.MethodPost, server.URL+"/api/quiz/generate", map[string]string{"user_id": "child_003", "topic": "saving"})
	if code != http.StatusOK || gen.Status != "success" {
		t.Fatalf("generate: %d %+v", code, gen)
	}
	var quiz map[string]any
	if err := json.Unmarshal(gen.Data, &quiz); err != nil {
		t.Fatalf("decode quiz: %v", err)
	}
	answers := correctAnswers(t, quiz)
	answers[0] = (answers[0] + 1) % 4

	code, eval := doJSON(t, http.MethodPost, server.URL+"/api/quiz/submit", map[string]any{
		"user_id":    "child_003",
		"request_id": gen.RequestID,
		"answers":    answers,
	})
	if code != http.StatusOK {
		t.Fatalf("submit: %d %+v", code, eval)
	}
	var summary struct {
		CorrectCount int     `json:"correct_count"`
		Percentage   float64 `json:"percentage"`
		PointsEarned int     `json:"points_earned"`
	}
	if err := json.Unmarshal(eval.Data, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.CorrectCount != len(answers)-1 || summary.Percentage != 80 || summary.PointsEarned != 30 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	code, trace := doJSON(t, http.MethodGet, server.URL+"/api/trace/"+gen.RequestID, nil)
	if code != http.StatusOK || trace.TraceSteps != 7 {
		t.Fatalf("trace: %d %+v", code, trace)
	}
}

func TestRESTSubmitInlineQuestions(t *testing.T) {
	server, _ := newTestServer(t)
	questions := []map[string]any{
		{"question_id": "q1", "question": "What is a budget?", "options": []string{"A plan", "A toy", "A bank", "A coin"}, "correct_answer": 0},
		{"question_id": "q2", "question": "Where is money kept safe?", "options": []string{"Shoe", "Bank", "Pocket", "Bag"}, "correct_answer": 1},
	}
	code, eval := doJSON(t, http.MethodPost, server.URL+"/api/quiz/submit", map[string]any{
		"user_id":    "child_004",
		"questions":  questions,
		"answers":    []int{0, 2},
		"topic":      "budgeting",
		"difficulty": "easy",
	})
	if code != http.StatusOK {
		t.Fatalf("submit: %d %+v", code, eval)
	}
	var summary struct {
		Score int `json:"score"`
	}
	_ = json.Unmarshal(eval.Data, &summary)
	if summary.Score != 50 {
		t.Fatalf("expected score 50, got %d", summary.Score)
	}
}

func TestRESTErrorMapping(t *testing.T) {
	server, _ := newTestServer(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   string
	}{
		{"unknown user stats", http.MethodGet, "/api/users/ghost/stats", nil, http.StatusNotFound, "not_found"},
		{"missing answers", http.MethodPost, "/api/quiz/submit", map[string]any{"user_id": "child_001"}, http.StatusBadRequest, "validation_failure"},
		{"expired quiz", http.MethodPost, "/api/quiz/submit", map[string]any{"user_id": "child_001", "request_id": "gone", "answers": []int{1}}, http.StatusNotFound, "not_found"},
		{"missing user id", http.MethodPost, "/api/quiz/generate", map[string]any{"topic": "saving"}, http.StatusBadRequest, "validation_failure"},
		{"duplicate user", http.MethodPost, "/api/users", map[string]any{"user_id": "child_001", "name": "Alex"}, http.StatusBadRequest, "validation_failure"},
	}
	for _, tc := range cases {
		code, env := doJSON(t, tc.method, server.URL+tc.path, tc.body)
		if code != tc.status || env.ErrorKind != tc.kind {
			t.Fatalf("%s: expected %d/%s, got %d/%s (%s)", tc.name, tc.status, tc.kind, code, env.ErrorKind, env.Error)
		}
	}
}

func TestRESTMalformedBody(t *testing.T) {
	server, _ := newTestServer(t)
	resp, err := http.Post(server.URL+"/api/quiz/generate", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRESTRegisterTopicsAndLeaderboard(t *testing.T) {
	server, _ := newTestServer(t)

	code, reg := doJSON(t, http.MethodPost, server.URL+"/api/users", map[string]any{"user_id": "child_009", "name": "Riley", "age": 9, "hobbies": "chess"})
	if code != http.StatusCreated || reg.Status != "success" {
		t.Fatalf("register: %d %+v", code, reg)
	}

	code, topics := doJSON(t, http.MethodGet, server.URL+"/api/topics", nil)
	var names []string
	_ = json.Unmarshal(topics.Data, &names)
	if code != http.StatusOK || len(names) != 1 || names[0] != "saving money" {
		t.Fatalf("topics: %d %v", code, names)
	}

	code, lb := doJSON(t, http.MethodGet, server.URL+"/api/leaderboard?limit=3", nil)
	var board struct {
		Entries []struct {
			Rank int `json:"rank"`
		} `json:"entries"`
	}
	_ = json.Unmarshal(lb.Data, &board)
	if code != http.StatusOK || len(board.Entries) != 3 {
		t.Fatalf("leaderboard: %d %+v", code, board)
	}
}
