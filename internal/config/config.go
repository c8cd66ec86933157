package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tweetharvest/internal/cursor"
)

// Config is the application's configuration model.
type Config struct {
	Credentials CredentialsConfig `yaml:"credentials"`
	Search      SearchConfig      `yaml:"search"`
	Session     SessionConfig     `yaml:"session"`
	Backoff     BackoffConfig     `yaml:"backoff"`
	Pacing      PacingConfig      `yaml:"pacing"`
	Storage     StorageConfig     `yaml:"storage"`
	DeadLetter  DeadLetterConfig  `yaml:"deadLetter"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type CredentialsConfig struct {
	// Path of the JSON keys file. TWEETHARVEST_KEYS_FILE overrides it when set
	KeysFile string `yaml:"keysFile"`
}

type SearchConfig struct {
	Queries []string `yaml:"queries"`
	// Window bounds, YYYY-MM-DD
	Since string `yaml:"since"`
	Until string `yaml:"until"`
	// Max tweets per query
	Limit           int    `yaml:"limit"`
	ResultType      string `yaml:"resultType"` // mixed, recent or popular
	ExcludeRetweets bool   `yaml:"excludeRetweets"`
	Lang            string `yaml:"lang"`
	Extended        bool   `yaml:"extended"`
}

type SessionConfig struct {
	WaitOnRateLimit bool          `yaml:"waitOnRateLimit"`
	RetryCount      int           `yaml:"retryCount"`
	RetryDelay      time.Duration `yaml:"retryDelay"`
	Timeout         time.Duration `yaml:"timeout"`
	RPS             float64       `yaml:"rps"`
	Burst           int           `yaml:"burst"`
}

type BackoffConfig struct {
	Strategy string        `yaml:"strategy"` // "linear" or "exponential"
	Step     time.Duration `yaml:"step"`
	Max      time.Duration `yaml:"max"`
	Jitter   float64       `yaml:"jitter"`
	// 0 retries upstream errors forever
	MaxAttempts int `yaml:"maxAttempts"`
}

type PacingConfig struct {
	MinPause time.Duration `yaml:"minPause"`
	MaxPause time.Duration `yaml:"maxPause"`
}

type StorageConfig struct {
	Driver string       `yaml:"driver"` // "mongo" or "sqlite"
	Mongo  MongoConfig  `yaml:"mongo"`
	SQLite SQLiteConfig `yaml:"sqlite"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type MongoConfig struct {
	// If empty, read MONGO_URI; otherwise Host and Port are used
	URI        string `yaml:"uri"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type DeadLetterConfig struct {
	// Empty disables the dead-letter buffer. If empty, read REDIS_ADDR
	RedisAddr string `yaml:"redisAddr"`
	Key       string `yaml:"key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Credentials: CredentialsConfig{KeysFile: "./keys.json"},
		Search: SearchConfig{
			Limit:           200,
			ResultType:      "mixed",
			ExcludeRetweets: true,
			Extended:        true,
		},
		Session: SessionConfig{
			WaitOnRateLimit: true,
			RetryCount:      1000,
			RetryDelay:      60 * time.Second,
			Timeout:         15 * time.Second,
			RPS:             1,
			Burst:           5,
		},
		Backoff: BackoffConfig{Strategy: "linear", Step: 60 * time.Second, Max: 15 * time.Minute, Jitter: 0.2},
		Pacing:  PacingConfig{MinPause: 30 * time.Second, MaxPause: 120 * time.Second},
		Storage: StorageConfig{
			Driver: "mongo",
			Mongo:  MongoConfig{Host: "localhost", Port: 27017, Database: "dm_project", Collection: "twitter"},
			SQLite: SQLiteConfig{Path: "./tweetharvest.db"},
		},
		DeadLetter: DeadLetterConfig{Key: "tweetharvest:deadletter"},
		Logging:    LoggingConfig{Level: "info"},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
// A .env file in the working directory is read first when present.
func (c *Config) ResolveEnv() {
	_ = godotenv.Load()
	if v := os.Getenv("TWEETHARVEST_KEYS_FILE"); v != "" {
		c.Credentials.KeysFile = v
	}
	if c.Storage.Mongo.URI == "" {
		c.Storage.Mongo.URI = os.Getenv("MONGO_URI")
	}
	if v := os.Getenv("MONGO_HOST"); v != "" {
		c.Storage.Mongo.Host = v
	}
	if v := os.Getenv("MONGO_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			c.Storage.Mongo.Port = p
		}
	}
	if c.DeadLetter.RedisAddr == "" {
		c.DeadLetter.RedisAddr = os.Getenv("REDIS_ADDR")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = os.Getenv("METRICS_ADDR")
	}
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	if err := cursor.ValidateWindow(c.Search.Since, c.Search.Until); err != nil {
		return err
	}
	switch c.Search.ResultType {
	case "", "mixed", "recent", "popular":
	default:
		return fmt.Errorf("search.resultType %q: want mixed, recent or popular", c.Search.ResultType)
	}
	if c.Search.Limit < 0 {
		return errors.New("search.limit must not be negative")
	}
	if c.Pacing.MinPause < 0 || c.Pacing.MaxPause < c.Pacing.MinPause {
		return fmt.Errorf("pacing: need 0 <= minPause <= maxPause, got %s..%s", c.Pacing.MinPause, c.Pacing.MaxPause)
	}
	switch c.Backoff.Strategy {
	case "", "linear", "exponential":
	default:
		return fmt.Errorf("backoff.strategy %q: want linear or exponential", c.Backoff.Strategy)
	}
	if c.Backoff.Step <= 0 {
		return fmt.Errorf("backoff.step must be positive, got %s", c.Backoff.Step)
	}
	if c.Backoff.Strategy == "exponential" && c.Backoff.Max < c.Backoff.Step {
		return fmt.Errorf("backoff.max %s is below backoff.step %s", c.Backoff.Max, c.Backoff.Step)
	}
	switch c.Storage.Driver {
	case "mongo", "sqlite":
	default:
		return fmt.Errorf("storage.driver %q: want mongo or sqlite", c.Storage.Driver)
	}
	return nil
}

// Load reads YAML config from path on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
