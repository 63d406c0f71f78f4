package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func sampleRecord(id string) *models.MatchRecord {
	return &models.MatchRecord{
		ID:        id,
		Stage:     "2. BUNDESLIGA - ROUND 1",
		Status:    "Finished",
		MatchTime: time.Date(2024, 8, 2, 18, 30, 0, 0, time.UTC),
		Home:      models.Team{ID: "h1", Name: "Hamburger SV"},
		Away:      models.Team{ID: "a1", Name: "Schalke"},
		HomeScore: intPtr(5),
		AwayScore: intPtr(2),
		Statistics: map[string]models.StatPair{
			"ball_possession": {Home: "55%", Away: "45%"},
			"corner_kicks":    {Home: "6", Away: "3"},
		},
		OddsLines: []models.OddsLine{
			{Handicap: "2.5", AverageOver: floatPtr(1.75), AverageUnder: floatPtr(2.05)},
			{Handicap: "3.5", AverageOver: floatPtr(2.6), AverageUnder: floatPtr(1.45)},
		},
	}
}

func TestJSONSink_MergesIntoExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "soccer_germany_2-bundesliga-2024-2025.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"old":{"id":"old"},"m1":{"id":"stale"}}`), 0o644))

	s := NewJSONSink(dir, "soccer_germany_2-bundesliga-2024-2025", quietLogger())
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, sampleRecord("m1")))
	require.NoError(t, s.Add(ctx, sampleRecord("m2")))
	require.NoError(t, s.Flush(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]models.MatchRecord
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Len(t, got, 3)
	assert.Equal(t, "old", got["old"].ID)
	assert.Equal(t, "m1", got["m1"].ID)
	assert.Equal(t, "Finished", got["m1"].Status)
}

func TestJSONSink_CorruptFileStartsFresh(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "out.json"), []byte("[1,2"), 0o644))

	s := NewJSONSink(dir, "out", quietLogger())
	require.NoError(t, s.Add(context.Background(), sampleRecord("m1")))
	require.NoError(t, s.Flush(context.Background()))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Len(t, got, 1)
}

func readCSV(t *testing.T, path string) []map[string]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records)

	var rows []map[string]string
	for _, rec := range records[1:] {
		row := make(map[string]string)
		for i, col := range records[0] {
			row[col] = rec[i]
		}
		rows = append(rows, row)
	}
	return rows
}

func TestCSVSink_FlattensRecords(t *testing.T) {
	dir := t.TempDir()
	s := NewCSVSink(dir, "out", quietLogger())
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, sampleRecord("m1")))
	require.NoError(t, s.Flush(ctx))

	rows := readCSV(t, s.Path())
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "m1", row["matchId"])
	assert.Equal(t, "02.08.2024 18:30", row["date"])
	assert.Equal(t, "Hamburger SV", row["home.name"])
	assert.Equal(t, "5", row["result.home"])
	assert.Equal(t, "55%", row["ball_possession.home"])
	assert.Equal(t, "3", row["corner_kicks.away"])
	assert.Equal(t, "2.5", row["odds_over_under_handicap"])
	assert.Equal(t, "1.75", row["odds_over_under_over"])
	assert.Equal(t, "2.05", row["odds_over_under_under"])
}

func TestCSVSink_KeepsExistingRows(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := NewCSVSink(dir, "out", quietLogger())
	require.NoError(t, first.Add(ctx, sampleRecord("m1")))
	require.NoError(t, first.Flush(ctx))

	second := NewCSVSink(dir, "out", quietLogger())
	updated := sampleRecord("m1")
	updated.Status = "Awarded"
	noOdds := sampleRecord("m2")
	noOdds.OddsLines = nil
	require.NoError(t, second.Add(ctx, updated))
	require.NoError(t, second.Add(ctx, noOdds))
	require.NoError(t, second.Flush(ctx))

	rows := readCSV(t, second.Path())
	require.Len(t, rows, 2)
	assert.Equal(t, "Awarded", rows[0]["status"])
	assert.Equal(t, "m2", rows[1]["matchId"])
	assert.Empty(t, rows[1]["odds_over_under_over"])
}

func TestFlatten_NoScores(t *testing.T) {
	row := Flatten(&models.MatchRecord{ID: "x"})
	assert.Equal(t, "", row["result.home"])
	assert.NotContains(t, row, "odds_over_under_handicap")
}

func TestFlatten_FirstOddsLineOnly(t *testing.T) {
	over, under, other := 1.9, 1.95, 2.4
	rec := &models.MatchRecord{
		ID: "x",
		OddsLines: []models.OddsLine{
			{Handicap: "2.0", AverageOver: &over, AverageUnder: &under},
			{Handicap: "3.5", AverageOver: &other},
		},
	}

	row := Flatten(rec)
	assert.Equal(t, "2.0", row["odds_over_under_handicap"])
	assert.Equal(t, "1.90", row["odds_over_under_over"])
	assert.Equal(t, "1.95", row["odds_over_under_under"])
}

func TestFlatten_MissingAverageIsBlank(t *testing.T) {
	over := 2.1
	row := Flatten(&models.MatchRecord{
		ID:        "x",
		OddsLines: []models.OddsLine{{Handicap: "2.5", AverageOver: &over}},
	})
	assert.Equal(t, "2.10", row["odds_over_under_over"])
	assert.Equal(t, "", row["odds_over_under_under"])
}
