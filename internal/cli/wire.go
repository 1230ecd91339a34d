package cli

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"quiz-pipeline-service/internal/app"
	"quiz-pipeline-service/internal/config"
	"quiz-pipeline-service/internal/content"
	"quiz-pipeline-service/internal/difficulty"
	"quiz-pipeline-service/internal/evaluation"
	"quiz-pipeline-service/internal/infra/memory"
	"quiz-pipeline-service/internal/infra/postgres"
	redisinfra "quiz-pipeline-service/internal/infra/redis"
	"quiz-pipeline-service/internal/infra/sqlite"
	"quiz-pipeline-service/internal/logger"
	"quiz-pipeline-service/internal/retrieval"
	"quiz-pipeline-service/internal/rewards"
)

func loadConfig(path string) (config.Config, *logger.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}

// stack is everything the commands need, plus the closers for it.
type stack struct {
	orch    *app.Orchestrator
	coord   *retrieval.Coordinator
	closers []func()
}

func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildStack selects the repository (postgres, then sqlite, then memory),
// the quiz cache and snapshot store (redis when configured) and the
// content chain (LLM when a key is set, then local generators).
func buildStack(ctx context.Context, cfg config.Config, log *logger.Logger) (*stack, error) {
	s := &stack{}

	repo, err := openRepository(ctx, cfg, log, s)
	if err != nil {
		s.Close()
		return nil, err
	}

	var (
		redisClient *goredis.Client
		snapshots   retrieval.SnapshotStore
		nearNext    app.QuizCache
	)
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 30*time.Minute)
	if cfg.Redis.Addr != "" {
		redisClient, err = redisinfra.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = redisClient.Close() })
		nearNext = redisinfra.NewQuizCache(redisClient, quizTTL)
		snapshots = redisinfra.NewSnapshotStore(redisClient, cfg.Retrieval.SnapshotKey)
		log.Info("redis connected", "addr", cfg.Redis.Addr)
	} else if cfg.Retrieval.SnapshotPath != "" {
		snapshots = retrieval.FileSnapshotStore{Path: cfg.Retrieval.SnapshotPath}
	}
	cache := memory.NewQuizCache(quizTTL, nearNext)

	s.coord = retrieval.NewCoordinator(
		retrieval.DirSource{Dir: cfg.Retrieval.DocsDir},
		chunkerFor(cfg),
		nil,
		snapshots,
		log,
	)

	s.orch = app.NewOrchestrator(app.Deps{
		Repo:        repo,
		Cache:       cache,
		Retriever:   s.coord,
		Content:     contentChain(cfg, log),
		Recommender: difficulty.NewRecommender(),
		Evaluator:   evaluation.NewEvaluator(),
		Rewards:     rewards.NewEngine(cfg.Rewards.LevelThreshold),
		Log:         log,
		Options:     pipelineOptions(cfg),
	})
	return s, nil
}

func openRepository(ctx context.Context, cfg config.Config, log *logger.Logger, s *stack) (app.Repository, error) {
	switch {
	case cfg.Postgres.URL != "":
		if err := runMigrations(ctx, cfg, log); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		log.Info("using postgres repository")
		return postgres.NewRepository(pool), nil
	case cfg.SQLite.Path != "":
		repo, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = repo.Close() })
		if mode, err := repo.JournalMode(ctx); err == nil {
			log.Info("using sqlite repository", "path", cfg.SQLite.Path, "journal_mode", mode)
		}
		return repo, nil
	default:
		log.Warn("no database configured, using in-memory repository")
		return memory.NewRepository(), nil
	}
}

func chunkerFor(cfg config.Config) retrieval.Chunker {
	if cfg.Retrieval.Chunker == "fixed" {
		return retrieval.FixedWindowChunker{Size: cfg.Retrieval.ChunkSize, Overlap: cfg.Retrieval.ChunkOverlap}
	}
	return retrieval.StructuralChunker{Size: cfg.Retrieval.ChunkSize}
}

func contentChain(cfg config.Config, log *logger.Logger) *content.Chain {
	var backends []content.Generator
	llm, err := content.NewLLMGenerator(content.LLMConfig{
		BaseURL:    cfg.LLM.BaseURL,
		APIKey:     cfg.LLM.APIKey,
		Model:      cfg.LLM.Model,
		MaxRetries: cfg.LLM.MaxRetries,
	})
	switch {
	case err == nil:
		backends = append(backends, llm)
	case errors.Is(err, content.ErrNotConfigured):
		log.Info("no llm key configured, using local generators")
	default:
		log.Warn("llm generator disabled", "error", err)
	}
	seed := time.Now().UnixNano()
	backends = append(backends, content.NewPassageGenerator(seed), content.NewTemplateGenerator(seed))

	timeout := config.TTLDuration(cfg.Pipeline.GeneratorTimeout, 20*time.Second)
	return content.NewChain(timeout, log, backends...)
}

func pipelineOptions(cfg config.Config) app.Options {
	p := cfg.Pipeline
	opts := app.DefaultOptions()
	opts.ProfileRetry = app.RetryPolicy{
		Attempts:   p.ProfileRetryAttempts,
		Backoff:    config.TTLDuration(p.ProfileRetryBackoff, opts.ProfileRetry.Backoff),
		MaxBackoff: config.TTLDuration(p.ProfileRetryMax, opts.ProfileRetry.MaxBackoff),
	}
	if p.QuestionCount > 0 {
		opts.QuestionCount = p.QuestionCount
	}
	if p.HistoryLimit > 0 {
		opts.HistoryLimit = p.HistoryLimit
	}
	if p.AnsweredLimit > 0 {
		opts.AnsweredLimit = p.AnsweredLimit
	}
	if p.ContextResults > 0 {
		opts.ContextResults = p.ContextResults
	}
	if p.FallbackQuery != "" {
		opts.FallbackQuery = p.FallbackQuery
	}
	if p.DefaultAge > 0 {
		opts.DefaultAge = p.DefaultAge
	}
	if p.DefaultHobbies != "" {
		opts.DefaultHobbies = p.DefaultHobbies
	}
	return opts
}

// loadIndex restores the retrieval snapshot when one exists and otherwise
// ingests the docs directory.
func loadIndex(ctx context.Context, coord *retrieval.Coordinator, log *logger.Logger) {
	restored, err := coord.Restore(ctx)
	if err != nil {
		log.Warn("snapshot restore failed", "error", err)
	}
	if restored {
		log.Info("retrieval index restored from snapshot", "topics", len(coord.Topics()))
		return
	}
	stats, err := coord.Ingest(ctx)
	if err != nil {
		log.Warn("initial ingestion failed, continuing with empty index", "error", err)
		return
	}
	log.Info("retrieval index built", "documents", stats.Documents, "chunks", stats.Chunks)
}
