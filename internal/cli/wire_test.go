package cli

import (
	"context"
	"testing"
	"time"

	"quiz-pipeline-service/internal/config"
	"quiz-pipeline-service/internal/infra/memory"
	"quiz-pipeline-service/internal/infra/sqlite"
	"quiz-pipeline-service/internal/logger"
	"quiz-pipeline-service/internal/retrieval"
)

func TestPipelineOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.ProfileRetryBackoff = "50ms"
	cfg.Pipeline.QuestionCount = 8
	cfg.Pipeline.FallbackQuery = ""

	opts := pipelineOptions(cfg)
	if opts.ProfileRetry.Attempts != 3 || opts.ProfileRetry.Backoff != 50*time.Millisecond || opts.ProfileRetry.MaxBackoff != 2*time.Second {
		t.Fatalf("unexpected retry policy %+v", opts.ProfileRetry)
	}
	if opts.QuestionCount != 8 {
		t.Fatalf("expected 8 questions, got %d", opts.QuestionCount)
	}
	if opts.FallbackQuery != "financial education" {
		t.Fatalf("expected default fallback query kept, got %q", opts.FallbackQuery)
	}
}

func TestChunkerSelection(t *testing.T) {
	cfg := config.Default()
	if _, ok := chunkerFor(cfg).(retrieval.StructuralChunker); !ok {
		t.Fatalf("expected structural chunker by default")
	}
	cfg.Retrieval.Chunker = "fixed"
	fixed, ok := chunkerFor(cfg).(retrieval.FixedWindowChunker)
	if !ok || fixed.Size != 400 || fixed.Overlap != 50 {
		t.Fatalf("expected fixed window chunker, got %#v", chunkerFor(cfg))
	}
}

func TestOpenRepositoryFallsBack(t *testing.T) {
	ctx := context.Background()
	s := &stack{}
	defer s.Close()

	cfg := config.Default()
	repo, err := openRepository(ctx, cfg, logger.Nop(), s)
	if err != nil {
		t.Fatalf("memory repository: %v", err)
	}
	if _, ok := repo.(*memory.Repository); !ok {
		t.Fatalf("expected memory repository, got %T", repo)
	}

	cfg.SQLite.Path = t.TempDir() + "/pipeline.db"
	repo, err = openRepository(ctx, cfg, logger.Nop(), s)
	if err != nil {
		t.Fatalf("sqlite repository: %v", err)
	}
	if _, ok := repo.(*sqlite.Repository); !ok {
		t.Fatalf("expected sqlite repository, got %T", repo)
	}
}

func TestBuildStackWithoutBackends(t *testing.T) {
	cfg := config.Default()
	cfg.Retrieval.DocsDir = t.TempDir()
	s, err := buildStack(context.Background(), cfg, logger.Nop())
	if err != nil {
		t.Fatalf("build stack: %v", err)
	}
	defer s.Close()

	res := s.orch.GenerateQuiz(context.Background(), "child_001", "saving")
	if !res.OK() {
		t.Fatalf("generate with empty index: %s", res.Error)
	}
	if res.Data.QuestionBackend != "template" {
		t.Fatalf("expected template fallback without context, got %s", res.Data.QuestionBackend)
	}
}
