package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 3, cfg.MaxJoinAttempts)
	assert.Equal(t, 100, cfg.MatchAttempts)
	assert.Equal(t, "en", cfg.Locale)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 5*time.Minute, cfg.DBConnMaxLifetime())
	assert.Empty(t, cfg.TelegramToken)
	assert.Empty(t, cfg.StatusAddr, "status api is off unless asked for")
}

func TestValidateNeedsStatusToken(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.StatusAddr = ":8080"
	assert.Error(t, cfg.Validate())

	cfg.StatusToken = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("BOT_LOCALE", "ru")
	t.Setenv("MATCH_ATTEMPTS", "250")
	t.Setenv("BOT_WORKERS", "0")
	t.Setenv("SESSION_TTL", "30m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.TelegramToken)
	assert.Equal(t, "ru", cfg.Locale)
	assert.Equal(t, 250, cfg.MatchAttempts)
	assert.Equal(t, 8, cfg.Workers, "non-positive workers fall back to the default")
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
}

func TestLoadRejectsMalformedNumbers(t *testing.T) {
	t.Setenv("MAX_JOIN_ATTEMPTS", "three")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadDotEnvMissingFileIsFine(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BOT_LOCALE=ru\nSTATUS_TOKEN=from-file\n"), 0o600))
	t.Setenv("BOT_LOCALE", "en")
	t.Setenv("STATUS_TOKEN", "")
	require.NoError(t, os.Unsetenv("STATUS_TOKEN"))

	require.NoError(t, LoadDotEnv(path))
	t.Cleanup(func() { os.Unsetenv("STATUS_TOKEN") })

	assert.Equal(t, "en", os.Getenv("BOT_LOCALE"))
	assert.Equal(t, "from-file", os.Getenv("STATUS_TOKEN"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{LogLevel: "warn", LogFormat: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "game", "xmas")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"game":"xmas"`)
}
