// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 2*time.Minute, cfg.GraceWindow)
	assert.Equal(t, 3*time.Second, cfg.Countdown())
	assert.Equal(t, 10*time.Second, cfg.InterRound())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
port: "9000"
grace_window: 90s
allowed_origins: ["https://a.example"]
redis:
  addr: "redis:6379"
  db: 2
rate_limit:
  per_sec: 5
  burst: 8
`)
	t.Setenv("PORT", "9100")
	t.Setenv("ALLOWED_ORIGINS", "https://b.example, https://c.example")
	t.Setenv("TOKEN_EXPIRE_TIME", "never")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port, "env beats file")
	assert.Equal(t, 90*time.Second, cfg.GraceWindow)
	assert.Equal(t, []string{"https://b.example", "https://c.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 5.0, cfg.RateLimit.PerSec)
	assert.Zero(t, cfg.Auth.TokenExpire)
	assert.Equal(t, "multiwordle_summaries", cfg.Redis.Queue, "unset keys keep defaults")
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
	t.Run("bad yaml", func(t *testing.T) {
		_, err := Load(writeFile(t, "port: [oops"))
		assert.Error(t, err)
	})
	t.Run("bad env int", func(t *testing.T) {
		t.Setenv("COUNTDOWN_SEC", "three")
		_, err := Load(writeFile(t, "{}"))
		assert.ErrorContains(t, err, "COUNTDOWN_SEC")
	})
	t.Run("invalid value", func(t *testing.T) {
		t.Setenv("GRACE_WINDOW", "-1s")
		_, err := Load(writeFile(t, "{}"))
		assert.ErrorContains(t, err, "grace window")
	})
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.LogLevel, cfg.LogFormat = "debug", "json"
	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	cfg.LogLevel = "loud"
	_, err = cfg.NewLogger()
	assert.Error(t, err)

	cfg.LogLevel, cfg.LogFormat = "info", "xml"
	_, err = cfg.NewLogger()
	assert.Error(t, err)
}
