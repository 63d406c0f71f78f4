package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/matchscraper/internal/pkg/failure"
	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

func testBundle() *models.RawFragmentBundle {
	return &models.RawFragmentBundle{
		ItemID:       "Kx8fT2aQ",
		Link:         "https://www.flashscore.com/match/soccer/leeds-AbCdEf12/norwich-GhIjKl34/?mid=Kx8fT2aQ",
		Stage:        "ENGLAND: Championship - Round 5",
		Date:         "14.09.2024 17:30",
		Status:       "Finished",
		Home:         models.RawTeam{ID: "GhIjKl34", Name: "Norwich"},
		Away:         models.RawTeam{ID: "AbCdEf12", Name: "Leeds"},
		Score:        models.RawScore{Home: "2", Away: "1"},
		TimelineText: "1ST HALF\n1 - 0\n12'\nSargent\n2ND HALF\n1 - 1\n",
		Incidents: []models.RawIncident{
			{Description: "12'\nSargent\n(Sainz)", IconHTML: `<svg class="wcl-icon-soccer"></svg>`, Side: models.SideHome},
			{Description: "58'\nAmpadu", IconHTML: `<svg class="card-ico yellowCard"></svg>`, Side: models.SideAway},
		},
		Statistics: []models.RawStatistic{
			{Category: "Ball Possession", HomeValue: "55%", AwayValue: "45%"},
		},
		OddsRows: []models.RawOddsRow{
			{Handicap: "2.5", Bookmaker: "bet365", Over: "1.90", Under: "1.95"},
		},
	}
}

func TestNormalize(t *testing.T) {
	n := New(Options{Sport: "soccer", Nation: "england", League: "championship", Season: "england_championship-2024-2025"})

	rec, err := n.Normalize(testBundle())
	require.NoError(t, err)

	assert.Equal(t, "Kx8fT2aQ", rec.ID)
	assert.Equal(t, time.Date(2024, 9, 14, 17, 30, 0, 0, time.UTC), rec.MatchTime)
	assert.Equal(t, "GhIjKl34", rec.Home.ID)
	assert.Equal(t, "soccer", rec.Home.Sport)
	require.NotNil(t, rec.HomeScore)
	assert.Equal(t, 2, *rec.HomeScore)
	assert.Equal(t, 1, *rec.AwayScore)
	assert.Equal(t, "1 - 0", rec.FirstHalfScore)
	assert.Equal(t, "1 - 1", rec.SecondHalfScore)
	assert.Equal(t, models.StatPair{Home: "55%", Away: "45%"}, rec.Statistics["ball_possession"])
	require.Len(t, rec.Events, 2)
	assert.Equal(t, models.EventGoal, rec.Events[0].Type)
	assert.Equal(t, "Sainz", rec.Events[0].Assist)
	assert.Equal(t, "yellow", rec.Events[1].CardColor)
	require.NotNil(t, rec.BestLine)
	assert.Equal(t, 2.5, rec.BestLine.HandicapValue)
	assert.Equal(t, "england_championship-2024-2025", rec.Season)
}

func TestNormalize_ValidationFailures(t *testing.T) {
	n := New(Options{})

	tests := []struct {
		name   string
		mutate func(b *models.RawFragmentBundle)
		field  string
	}{
		{name: "both team ids", mutate: func(b *models.RawFragmentBundle) { b.Home.ID, b.Away.ID = "", "" }, field: "team_ids"},
		{name: "missing date", mutate: func(b *models.RawFragmentBundle) { b.Date = "" }, field: "date"},
		{name: "garbage date", mutate: func(b *models.RawFragmentBundle) { b.Date = "yesterday" }, field: "date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testBundle()
			tt.mutate(b)
			rec, err := n.Normalize(b)
			assert.Nil(t, rec)
			var verr *failure.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestNormalize_Defaults(t *testing.T) {
	b := testBundle()
	b.Status = ""
	b.Score = models.RawScore{Home: "-", Away: ""}
	b.OddsRows = nil

	rec, err := New(Options{}).Normalize(b)
	require.NoError(t, err)
	assert.Equal(t, "Unknown", rec.Status)
	assert.Nil(t, rec.HomeScore)
	assert.Nil(t, rec.AwayScore)
	assert.Nil(t, rec.BestLine)
	assert.Empty(t, rec.OddsLines)
}

func TestHalfScores(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		first, second string
	}{
		{name: "labelled", text: "1st Half 0 - 1 ... 2nd Half 2 - 0", first: "0 - 1", second: "2 - 0"},
		{name: "fallback", text: "2 - 1 then 0-0", first: "2 - 1", second: "0-0"},
		{name: "not enough", text: "1 - 0", first: "", second: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, second := HalfScores(tt.text)
			assert.Equal(t, tt.first, first)
			assert.Equal(t, tt.second, second)
		})
	}
}

func TestStatKey(t *testing.T) {
	assert.Equal(t, "expected_goals_(xg)", StatKey("  Expected  Goals (xG) "))
	assert.Equal(t, "corner_kicks", StatKey("Corner\tKicks"))
}

func TestParseMatchTime(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	got, err := ParseMatchTime("01.03.2025 20:00", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC), got.UTC())

	_, err = ParseMatchTime("", loc)
	assert.Error(t, err)
}
