// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds every setting both binaries read. Values come from defaults, then an
// optional YAML file, then the environment.
type Config struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	LogLevel       string   `yaml:"log_level"`
	LogFormat      string   `yaml:"log_format"`

	GraceWindow   time.Duration `yaml:"grace_window"`
	CountdownSec  int           `yaml:"countdown_sec"`
	InterRoundSec int           `yaml:"inter_round_sec"`
	WordlistPath  string        `yaml:"wordlist_path"`

	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	NATS      NATSConfig      `yaml:"nats"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Historian HistorianConfig `yaml:"historian"`
}

type RedisConfig struct {
	Addr  string `yaml:"addr"`
	DB    int    `yaml:"db"`
	Queue string `yaml:"queue"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// AuthConfig controls durable player tokens. A zero TokenExpire means tokens never expire.
type AuthConfig struct {
	TokenExpire       time.Duration `yaml:"token_expire"`
	FingerprintSecret string        `yaml:"fingerprint_secret"`
}

type RateLimitConfig struct {
	PerSec float64 `yaml:"per_sec"`
	Burst  int     `yaml:"burst"`
}

type HistorianConfig struct {
	BatchSize int           `yaml:"batch_size"`
	Flush     time.Duration `yaml:"flush"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:           "8080",
		AllowedOrigins: []string{"*"},
		LogLevel:       "info",
		LogFormat:      "text",
		GraceWindow:    2 * time.Minute,
		CountdownSec:   3,
		InterRoundSec:  10,
		Redis:          RedisConfig{Addr: "", Queue: "multiwordle_summaries"},
		NATS:           NATSConfig{Subject: "multiwordle.games.finished"},
		Auth:           AuthConfig{TokenExpire: 30 * 24 * time.Hour},
		RateLimit:      RateLimitConfig{PerSec: 10, Burst: 20},
		Historian:      HistorianConfig{BatchSize: 50, Flush: 2 * time.Second},
	}
}

// Load builds the configuration. path may be empty, in which case CONFIG_FILE is
// consulted, and a missing file is not an error unless it was named explicitly.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = os.Getenv("CONFIG_FILE")
		explicit = path != ""
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
		case explicit || !os.IsNotExist(err):
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.WordlistPath = getEnv("WORDLIST_PATH", c.WordlistPath)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Queue = getEnv("HISTORIAN_QUEUE_NAME", c.Redis.Queue)
	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.Subject = getEnv("NATS_SUBJECT", c.NATS.Subject)
	c.Auth.FingerprintSecret = getEnv("FINGERPRINT_SECRET", c.Auth.FingerprintSecret)

	var err error
	if c.Redis.DB, err = getEnvInt("REDIS_DB", c.Redis.DB); err != nil {
		return err
	}
	if c.CountdownSec, err = getEnvInt("COUNTDOWN_SEC", c.CountdownSec); err != nil {
		return err
	}
	if c.InterRoundSec, err = getEnvInt("INTER_ROUND_SEC", c.InterRoundSec); err != nil {
		return err
	}
	if c.RateLimit.Burst, err = getEnvInt("RATE_LIMIT_BURST", c.RateLimit.Burst); err != nil {
		return err
	}
	if c.Historian.BatchSize, err = getEnvInt("HISTORIAN_BATCH_SIZE", c.Historian.BatchSize); err != nil {
		return err
	}
	if c.GraceWindow, err = getEnvDuration("GRACE_WINDOW", c.GraceWindow); err != nil {
		return err
	}
	if v := os.Getenv("HISTORIAN_FLUSH_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HISTORIAN_FLUSH_MS: %w", err)
		}
		c.Historian.Flush = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("RATE_LIMIT_PER_SEC"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_PER_SEC: %w", err)
		}
		c.RateLimit.PerSec = f
	}
	// TOKEN_EXPIRE_TIME accepts a duration or "never"/"0".
	if v := os.Getenv("TOKEN_EXPIRE_TIME"); v != "" {
		if v == "never" || v == "0" {
			c.Auth.TokenExpire = 0
		} else {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("TOKEN_EXPIRE_TIME: %w", err)
			}
			c.Auth.TokenExpire = d
		}
	}
	return nil
}

// Validate rejects values the server cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Port == "":
		return fmt.Errorf("port must be set")
	case c.GraceWindow <= 0:
		return fmt.Errorf("grace window must be positive, got %s", c.GraceWindow)
	case c.CountdownSec < 0 || c.InterRoundSec < 0:
		return fmt.Errorf("countdowns must not be negative")
	case c.RateLimit.PerSec <= 0 || c.RateLimit.Burst <= 0:
		return fmt.Errorf("rate limit must be positive")
	case c.Historian.BatchSize <= 0:
		return fmt.Errorf("historian batch size must be positive")
	case c.Auth.TokenExpire < 0:
		return fmt.Errorf("token expiry must not be negative")
	}
	return nil
}

// NewLogger builds a logger honoring LogLevel and LogFormat ("text" or "json").
func (c Config) NewLogger() (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	logger.SetLevel(level)
	switch c.LogFormat {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid log format %q", c.LogFormat)
	}
	return logger, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string { return ":" + c.Port }

// Countdown returns the pre-round countdown.
func (c Config) Countdown() time.Duration { return time.Duration(c.CountdownSec) * time.Second }

// InterRound returns the countdown between rounds.
func (c Config) InterRound() time.Duration { return time.Duration(c.InterRoundSec) * time.Second }

// getEnv reads an environment variable or returns def.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
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
