package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quiz-pipeline-service/internal/app"
	"quiz-pipeline-service/internal/content"
	"quiz-pipeline-service/internal/infra/memory"
	"quiz-pipeline-service/internal/retrieval"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.Orchestrator) {
	t.Helper()
	coord := retrieval.NewCoordinator(retrieval.StaticSource{
		{Name: "saving_money.txt", Text: "# Saving\nSaving money means keeping part of what you earn for a goal you care about later on."},
	}, nil, nil, nil, nil)
	if _, err := coord.Ingest(context.Background()); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	opts := app.DefaultOptions()
	opts.ProfileRetry = app.RetryPolicy{Attempts: 1}
	orch := app.NewOrchestrator(app.Deps{
		Repo:      memory.NewRepository(),
		Cache:     memory.NewQuizCache(time.Minute, nil),
		Retriever: coord,
		Content:   content.NewChain(time.Second, nil, content.NewTemplateGenerator(3)),
		Options:   opts,
	})
	if _, err := orch.SeedDemoUsers(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	mux := http.NewServeMux()
	NewAPI(orch, nil).Register(mux)
	mux.HandleFunc("GET /ws", NewWSHandler(orch, nil).ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, orch
}

// correctAnswers reads the answer key out of a generated quiz payload.
func correctAnswers(t *testing.T, data map[string]any) []int {
	t.Helper()
	raw, ok := data["questions"].([]any)
	if !ok || len(raw) == 0 {
		t.Fatalf("expected questions in %v", data)
	}
	out := make([]int, len(raw))
	for i, q := range raw {
		out[i] = int(q.(map[string]any)["correct_answer"].(float64))
	}
	return out
}
