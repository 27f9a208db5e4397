package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Gemini  GeminiConfig
	Storage StorageConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
	// AdminToken protects the product admin endpoints. Empty leaves them
	// open, which is fine for local development only.
	AdminToken string
}

type GeminiConfig struct {
	APIKey          string
	BaseURL         string
	GenerateModel   string
	EmbedModel      string
	GenerateTimeout time.Duration
	EmbedTimeout    time.Duration
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 5000,
		},
		Gemini: GeminiConfig{
			BaseURL:         "https://generativelanguage.googleapis.com",
			GenerateModel:   "gemini-2.5-flash",
			EmbedModel:      "embedding-001",
			GenerateTimeout: 30 * time.Second,
			EmbedTimeout:    10 * time.Second,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(dir, ".mobistore")
	}
	return ".mobistore"
}

// Load reads configuration from defaults, an optional .env file in the
// working directory, and MOBISTORE_* / GEMINI_API_KEY environment variables
// (environment wins over .env).
//
// A missing Gemini API key is not an error: the AI-backed tiers of the
// search pipeline degrade to the rule-based and keyword paths without it.
func Load() (Config, error) {
	// Best-effort; absence of .env is the normal case in production.
	_ = godotenv.Load()

	cfg := defaults()
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MOBISTORE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MOBISTORE_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("MOBISTORE_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("MOBISTORE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
	if v := os.Getenv("MOBISTORE_GEMINI_BASE_URL"); v != "" {
		cfg.Gemini.BaseURL = v
	}
	if v := os.Getenv("MOBISTORE_GEMINI_MODEL"); v != "" {
		cfg.Gemini.GenerateModel = v
	}
	if v := os.Getenv("MOBISTORE_EMBED_MODEL"); v != "" {
		cfg.Gemini.EmbedModel = v
	}
	if v := os.Getenv("MOBISTORE_GENERATE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Gemini.GenerateTimeout = d
		}
	}
	if v := os.Getenv("MOBISTORE_EMBED_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Gemini.EmbedTimeout = d
		}
	}
}
