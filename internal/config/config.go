package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port          string `yaml:"port"`
		SeedDemoUsers bool   `yaml:"seed_demo_users"`
	} `yaml:"server"`
	Log struct {
		Mode string `yaml:"mode"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Pipeline struct {
		ProfileRetryAttempts int    `yaml:"profile_retry_attempts"`
		ProfileRetryBackoff  string `yaml:"profile_retry_backoff"`
		ProfileRetryMax      string `yaml:"profile_retry_max_backoff"`
		GeneratorTimeout     string `yaml:"generator_timeout"`
		QuestionCount        int    `yaml:"question_count"`
		HistoryLimit         int    `yaml:"history_limit"`
		AnsweredLimit        int    `yaml:"answered_limit"`
		ContextResults       int    `yaml:"context_results"`
		FallbackQuery        string `yaml:"fallback_query"`
		DefaultAge           int    `yaml:"default_age"`
		DefaultHobbies       string `yaml:"default_hobbies"`
	} `yaml:"pipeline"`
	Rewards struct {
		LevelThreshold int `yaml:"level_threshold"`
	} `yaml:"rewards"`
	Retrieval struct {
		DocsDir         string `yaml:"docs_dir"`
		Chunker         string `yaml:"chunker"`
		ChunkSize       int    `yaml:"chunk_size"`
		ChunkOverlap    int    `yaml:"chunk_overlap"`
		SnapshotPath    string `yaml:"snapshot_path"`
		SnapshotKey     string `yaml:"snapshot_key"`
		RefreshInterval string `yaml:"refresh_interval"`
	} `yaml:"retrieval"`
	LLM struct {
		BaseURL    string `yaml:"base_url"`
		APIKey     string `yaml:"api_key"`
		Model      string `yaml:"model"`
		MaxRetries int    `yaml:"max_retries"`
	} `yaml:"llm"`
}

// Default returns the configuration used when no file values are set.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Mode = "development"
	cfg.Quiz.TTL = "30m"
	cfg.Pipeline.ProfileRetryAttempts = 3
	cfg.Pipeline.ProfileRetryBackoff = "300ms"
	cfg.Pipeline.ProfileRetryMax = "2s"
	cfg.Pipeline.GeneratorTimeout = "20s"
	cfg.Pipeline.QuestionCount = 5
	cfg.Pipeline.HistoryLimit = 10
	cfg.Pipeline.AnsweredLimit = 30
	cfg.Pipeline.ContextResults = 3
	cfg.Pipeline.FallbackQuery = "financial education"
	cfg.Pipeline.DefaultAge = 10
	cfg.Pipeline.DefaultHobbies = "learning"
	cfg.Rewards.LevelThreshold = 500
	cfg.Retrieval.DocsDir = "data/docs"
	cfg.Retrieval.Chunker = "structural"
	cfg.Retrieval.ChunkSize = 400
	cfg.Retrieval.ChunkOverlap = 50
	cfg.Retrieval.SnapshotKey = "retrieval:index"
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.MaxRetries = 2
	return cfg
}

// Load reads .env (if present), then the YAML config at path over the defaults,
// then applies environment overrides. A missing config file is not an error.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Log.Mode, "LOG_MODE")
	setString(&cfg.Postgres.URL, "POSTGRES_URL")
	setString(&cfg.SQLite.Path, "SQLITE_PATH")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Retrieval.DocsDir, "DOCS_DIR")
	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setInt(&cfg.Rewards.LevelThreshold, "LEVEL_THRESHOLD")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
