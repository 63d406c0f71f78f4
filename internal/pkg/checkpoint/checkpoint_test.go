package checkpoint

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := PathFor(filepath.Join(t.TempDir(), "data"), "soccer_england_championship-2025-2026")
	s := NewFileStore(path)

	cp, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, cp)

	want := models.Checkpoint{
		LastProcessedIndex:  40,
		BrowserRestartCount: 3,
		Timestamp:           time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC),
		TotalMatches:        240,
	}
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.LastProcessedIndex, got.LastProcessedIndex)
	assert.Equal(t, want.BrowserRestartCount, got.BrowserRestartCount)
	assert.True(t, want.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, want.TotalMatches, got.TotalMatches)

	require.NoError(t, s.Delete(ctx))
	require.NoError(t, s.Delete(ctx))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStore_WireFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.json")
	s := NewFileStore(path)
	require.NoError(t, s.Save(context.Background(), models.Checkpoint{
		LastProcessedIndex: 10,
		Timestamp:          time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		TotalMatches:       25,
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, map[string]any{
		"lastProcessedIndex":  float64(10),
		"browserRestartCount": float64(0),
		"timestamp":           "2025-01-02T03:04:05Z",
		"totalMatches":        float64(25),
	}, raw)
}

func TestFileStore_ReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"lastProcessedIndex": 30, "browserRestartCount": 2, "timestamp": "2025-09-14T08:00:00.000Z", "totalMatches": 276}`), 0o644))

	cp, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 30, cp.LastProcessedIndex)
	assert.Equal(t, 2, cp.BrowserRestartCount)
	assert.Equal(t, 276, cp.TotalMatches)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	s, err := NewRedisStore(ctx, RedisConfig{Addr: addr, Key: KeyFor("test_" + t.Name())})
	require.NoError(t, err)
	defer s.Close()
	defer s.Delete(ctx)

	require.NoError(t, s.Save(ctx, models.Checkpoint{LastProcessedIndex: 5, TotalMatches: 9}))
	cp, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, cp.LastProcessedIndex)

	require.NoError(t, s.Delete(ctx))
	cp, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestNop(t *testing.T) {
	var s Store = Nop{}
	require.NoError(t, s.Save(context.Background(), models.Checkpoint{LastProcessedIndex: 1}))
	cp, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cp)
}
