package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AdamBeresnev/arena-hub/internal/predict"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config holds everything the web server needs. Values come from the defaults, then an
// optional TOML file, then environment variables, each layer overriding the previous one.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Database    DatabaseConfig    `toml:"database"`
	Predictor   PredictorConfig   `toml:"predictor"`
	Matchmaking MatchmakingConfig `toml:"matchmaking"`
	Cache       CacheConfig       `toml:"cache"`
	Auth        AuthConfig        `toml:"auth"`
}

type ServerConfig struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
	StaticDir      string   `toml:"static_dir"`
}

type DatabaseConfig struct {
	Path          string `toml:"path"`
	MigrationsURL string `toml:"migrations_url"`
}

type PredictorConfig struct {
	Backend           string  `toml:"backend"` // none, heuristic or ollama
	OllamaURL         string  `toml:"ollama_url"`
	Model             string  `toml:"model"`
	Timeout           string  `toml:"timeout"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

type MatchmakingConfig struct {
	PredictionWorkers int `toml:"prediction_workers"`
	ClearBatchSize    int `toml:"clear_batch_size"`
}

type CacheConfig struct {
	EventTTL      string `toml:"event_ttl"`
	PurgeInterval string `toml:"purge_interval"`
}

type AuthConfig struct {
	SessionLifetime    string `toml:"session_lifetime"`
	DiscordKey         string `toml:"discord_key"`
	DiscordSecret      string `toml:"discord_secret"`
	DiscordCallbackURL string `toml:"discord_callback_url"`
	GoogleKey          string `toml:"google_key"`
	GoogleSecret       string `toml:"google_secret"`
	GoogleCallbackURL  string `toml:"google_callback_url"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      ":8080",
			StaticDir: "./static",
		},
		Database: DatabaseConfig{
			Path:          "arena_hub.db",
			MigrationsURL: "file://migrations",
		},
		Predictor: PredictorConfig{
			Backend:           predict.BackendHeuristic,
			OllamaURL:         "http://localhost:11434",
			Model:             "qwen3:8b",
			Timeout:           "60s",
			RequestsPerSecond: 2,
		},
		Matchmaking: MatchmakingConfig{
			PredictionWorkers: 4,
			ClearBatchSize:    100,
		},
		Cache: CacheConfig{
			EventTTL:      "30s",
			PurgeInterval: "1m",
		},
		Auth: AuthConfig{
			SessionLifetime: "24h",
		},
	}
}

// Load reads .env (if any), the file named by ARENA_CONFIG_FILE (if set) and the environment.
func Load() (*Config, error) {
	// A missing .env is fine, the environment may already be set up
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path := os.Getenv("ARENA_CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the TOML file at path on top of the current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	setString("ARENA_ADDR", &c.Server.Addr)
	setString("ARENA_STATIC_DIR", &c.Server.StaticDir)
	if v, ok := lookup("ARENA_ALLOWED_ORIGINS"); ok && v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}

	setString("ARENA_DB_PATH", &c.Database.Path)
	setString("ARENA_MIGRATIONS_URL", &c.Database.MigrationsURL)

	setString("PREDICTOR_BACKEND", &c.Predictor.Backend)
	setString("OLLAMA_URL", &c.Predictor.OllamaURL)
	setString("OLLAMA_MODEL", &c.Predictor.Model)
	setString("PREDICTOR_TIMEOUT", &c.Predictor.Timeout)
	if v, ok := lookup("PREDICTOR_RPS"); ok && v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid PREDICTOR_RPS: %w", err)
		}
		c.Predictor.RequestsPerSecond = rps
	}

	if err := setInt("PREDICTION_WORKERS", &c.Matchmaking.PredictionWorkers); err != nil {
		return err
	}
	if err := setInt("CLEAR_BATCH_SIZE", &c.Matchmaking.ClearBatchSize); err != nil {
		return err
	}

	setString("EVENT_CACHE_TTL", &c.Cache.EventTTL)
	setString("CACHE_PURGE_INTERVAL", &c.Cache.PurgeInterval)

	setString("SESSION_LIFETIME", &c.Auth.SessionLifetime)
	setString("DISCORD_KEY", &c.Auth.DiscordKey)
	setString("DISCORD_SECRET", &c.Auth.DiscordSecret)
	setString("DISCORD_CALLBACK_URL", &c.Auth.DiscordCallbackURL)
	setString("GOOGLE_KEY", &c.Auth.GoogleKey)
	setString("GOOGLE_SECRET", &c.Auth.GoogleSecret)
	setString("GOOGLE_CALLBACK_URL", &c.Auth.GoogleCallbackURL)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	switch strings.ToLower(c.Predictor.Backend) {
	case predict.BackendNone, predict.BackendHeuristic, predict.BackendOllama:
	default:
		return fmt.Errorf("unknown predictor backend %q", c.Predictor.Backend)
	}
	if c.Predictor.RequestsPerSecond < 0 {
		return fmt.Errorf("predictor requests per second cannot be negative: %v", c.Predictor.RequestsPerSecond)
	}
	if c.Matchmaking.PredictionWorkers < 1 {
		return fmt.Errorf("prediction workers must be at least 1, got %d", c.Matchmaking.PredictionWorkers)
	}
	if c.Matchmaking.ClearBatchSize < 1 {
		return fmt.Errorf("clear batch size must be at least 1, got %d", c.Matchmaking.ClearBatchSize)
	}

	durations := map[string]string{
		"predictor timeout":     c.Predictor.Timeout,
		"event cache ttl":       c.Cache.EventTTL,
		"cache purge interval":  c.Cache.PurgeInterval,
		"auth session lifetime": c.Auth.SessionLifetime,
	}
	for name, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
		if d < 0 {
			return fmt.Errorf("%s cannot be negative: %s", name, value)
		}
	}
	return nil
}

// OllamaConfig translates the predictor section for the predict package.
func (c *Config) OllamaConfig() *predict.OllamaConfig {
	oc := predict.DefaultOllamaConfig()
	oc.BaseURL = c.Predictor.OllamaURL
	oc.Model = c.Predictor.Model
	oc.RequestsPerSecond = c.Predictor.RequestsPerSecond
	if d, err := time.ParseDuration(c.Predictor.Timeout); err == nil {
		oc.Timeout = d
	}
	return oc
}

func (c *Config) EventCacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.Cache.EventTTL)
	return d
}

func (c *Config) CachePurgeInterval() time.Duration {
	d, _ := time.ParseDuration(c.Cache.PurgeInterval)
	return d
}

func (c *Config) SessionLifetime() time.Duration {
	d, _ := time.ParseDuration(c.Auth.SessionLifetime)
	return d
}
