package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

func TestBlockText(t *testing.T) {
	doc := mustDoc(`<div class="x"><div>12'</div><svg></svg><a><div>Sargent  J.</div></a><span>(Sainz</span><span> B.)</span><script>var a = 1;</script><br>tail</div>`)
	assert.Equal(t, "12'\nSargent J.\n(Sainz B.)\ntail", BlockText(doc.Find(".x")))
}

func TestParseSummary(t *testing.T) {
	frag := parseSummary(mustDoc(summaryHTML))

	assert.Equal(t, "Championship - Round 5", frag.Stage)
	assert.Equal(t, "14.09.2024 17:30", frag.Date)
	assert.Equal(t, "Finished", frag.Status)
	assert.Equal(t, "Norwich", frag.HomeName)
	assert.Equal(t, "Leeds", frag.AwayName)
	assert.Equal(t, models.RawScore{Home: "2", Away: "1", RegulationTime: "1-1", Penalties: "4-3"}, frag.Score)
	assert.Contains(t, frag.TimelineText, "1st Half\n1 - 0")

	require.Len(t, frag.Incidents, 3)
	require.Len(t, frag.incidents, 3)
	assert.Equal(t, "12'\nSargent J.\n(Sainz B.)", frag.Incidents[0].Description)
	assert.Contains(t, frag.Incidents[0].IconHTML, "wcl-icon-soccer")
	assert.Contains(t, frag.Incidents[2].IconHTML, "substitution")
}

func TestParseSummary_ScoreFallback(t *testing.T) {
	frag := parseSummary(mustDoc(`<div class="duelParticipant__score"><span>3</span><span>0</span></div><div class="duelParticipant__status">VS</div>`))
	assert.Equal(t, "3", frag.Score.Home)
	assert.Equal(t, "0", frag.Score.Away)
	assert.Empty(t, frag.Status)
	assert.Empty(t, frag.Incidents)
}

func TestParseStatistics(t *testing.T) {
	stats := parseStatistics(mustDoc(statisticsHTML))
	assert.Equal(t, []models.RawStatistic{
		{Category: "Ball Possession", HomeValue: "55%", AwayValue: "45%"},
		{Category: "Expected Goals (xG)", HomeValue: "1.84", AwayValue: "0.92"},
	}, stats)
}

func TestParseOdds(t *testing.T) {
	rows := parseOdds(mustDoc(oddsHTML))
	assert.Equal(t, []models.RawOddsRow{
		{Handicap: "2.5", Bookmaker: "bet365", Over: "1.90", Under: "1.95"},
		{Handicap: "2.5", Bookmaker: "Pinnacle", Over: "-", Under: "1.85"},
	}, rows)

	assert.Nil(t, parseOdds(mustDoc(noOddsHTML)))
	assert.NotNil(t, parseOdds(mustDoc(`<div class="ui-table__row"></div>`)))
}

func TestParseWorkList(t *testing.T) {
	items := parseWorkList(mustDoc(resultsHTML))
	assert.Equal(t, []models.WorkItem{{ID: "Kx8fT2aQ", Index: 0}, {ID: "Zz9yX8wV", Index: 1}}, items)
}
