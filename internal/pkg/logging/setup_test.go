package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/matchscraper/internal/pkg/config"
)

func TestSetupLogger_StdoutAndFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var stdout bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "run.jsonl")
	logger, runID, closeFn, err := setupLogger(&config.LoggingConfig{Level: "info", Format: "text", File: file}, "match-scraper", "run-1", &stdout)
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)

	logger.Debug("hidden")
	logger.Info("Item processed", "item_id", "abc")
	require.NoError(t, closeFn())

	assert.Contains(t, stdout.String(), "service=match-scraper")
	assert.Contains(t, stdout.String(), "item_id=abc")
	assert.NotContains(t, stdout.String(), "hidden")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "Item processed", rec["msg"])
	assert.Equal(t, "run-1", rec["run_id"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}
