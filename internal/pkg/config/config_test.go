package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_FillsDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
source:
  league: bundesliga
  season: 2023-2024
session:
  batch_quota: 15
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bundesliga", cfg.Source.League)
	assert.Equal(t, "2023-2024", cfg.Source.Season)
	assert.Equal(t, "germany", cfg.Source.Country)
	assert.Equal(t, 15, cfg.Session.BatchQuota)
	assert.Equal(t, 20*time.Second, cfg.Session.QuotaCooldown)
	assert.Equal(t, 30*time.Second, cfg.Session.FatalCooldown)
	assert.Equal(t, 10, cfg.Checkpoint.Every)
	assert.Equal(t, []string{"json"}, cfg.Output.Formats)
}

func TestLoad_LocalOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, `
extraction:
  navigation_timeout: 45s
output:
  dir: out
`)
	writeFile(t, filepath.Join(dir, "config.local.yaml"), `
output:
  dir: local-out
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "local-out", cfg.Output.Dir)
	assert.Equal(t, 45*time.Second, cfg.Extraction.NavigationTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://u:p@localhost/db")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "postgres:\n  dsn: from-file\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost/db", cfg.Postgres.DSN)
	assert.Equal(t, "token", cfg.Telegram.BotToken)
	assert.Equal(t, int64(-100123), cfg.Telegram.ChatID)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad format", "output:\n  formats: [xml]\n"},
		{"bad backend", "checkpoint:\n  backend: s3\n"},
		{"bad season", "source:\n  season: \"2024\"\n"},
		{"bad timezone", "source:\n  timezone: Mars/Olympus\n"},
		{"redis without addr", "checkpoint:\n  backend: redis\n"},
		{"not yaml", "source: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("REDIS_ADDR", "")
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeFile(t, path, tt.content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLocalPath(t *testing.T) {
	assert.Equal(t, "configs/run.local.yaml", LocalPath("configs/run.yaml"))
}
