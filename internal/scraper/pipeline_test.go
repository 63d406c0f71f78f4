package scraper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/matchscraper/internal/pkg/browser"
	"github.com/Vodeneev/matchscraper/internal/pkg/failure"
	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

const testItemID = "Kx8fT2aQ"

var testOddsURL = OddsURL(testBase, "soccer/leeds-AbCdEf12/norwich-GhIjKl34", testItemID)

func matchSite() *fakeSite {
	s := newFakeSite()
	summary := SummaryURL(testBase, testItemID)
	s.docs[summary] = summaryHTML
	s.redirects[summary] = canonicalLink
	s.docs[StatisticsURL(testBase, testItemID)] = statisticsHTML
	s.docs[testOddsURL] = oddsHTML
	s.boxes[timelineSelector] = []browser.Box{{Left: 0, Width: 1000, Height: 600}}
	s.boxes[timelineIncidentBoxes] = []browser.Box{
		{Left: 20, Width: 400, Height: 30},
		{Left: 560, Width: 400, Height: 30},
		{Left: 40, Width: 400, Height: 30},
	}
	return s
}

type stageCall struct {
	stage string
	err   error
}

func newTestPipeline(site *fakeSite, calls *[]stageCall) *Pipeline {
	cfg := DefaultConfig()
	cfg.BaseURL = testBase
	var mu sync.Mutex
	return NewPipeline(cfg, site, nil,
		WithSleep(noSleep),
		WithStageObserver(func(_, stage string, _ time.Duration, err error) {
			if calls == nil {
				return
			}
			mu.Lock()
			*calls = append(*calls, stageCall{stage: stage, err: err})
			mu.Unlock()
		}),
	)
}

func TestPipeline_Extract(t *testing.T) {
	site := matchSite()
	var calls []stageCall
	p := newTestPipeline(site, &calls)

	bundle, err := p.Extract(context.Background(), models.WorkItem{ID: testItemID})
	require.NoError(t, err)

	assert.Equal(t, canonicalLink, bundle.Link)
	assert.Equal(t, models.RawTeam{ID: "GhIjKl34", Name: "Norwich"}, bundle.Home)
	assert.Equal(t, models.RawTeam{ID: "AbCdEf12", Name: "Leeds"}, bundle.Away)
	assert.Equal(t, "Finished", bundle.Status)
	require.Len(t, bundle.Incidents, 3)
	assert.Equal(t, models.SideHome, bundle.Incidents[0].Side)
	assert.Equal(t, "marker", bundle.Incidents[0].SideSource)
	assert.Equal(t, models.SideAway, bundle.Incidents[1].Side)
	assert.Equal(t, models.SideHome, bundle.Incidents[2].Side)
	assert.Equal(t, "positional", bundle.Incidents[2].SideSource)
	assert.Len(t, bundle.Statistics, 2)
	assert.Len(t, bundle.OddsRows, 2)

	assert.Equal(t, []stageCall{{stage: StageSummary}, {stage: StageStatistics}, {stage: StageOdds}}, calls)
	assert.Equal(t, site.opened, site.closed)
}

func TestPipeline_MissingOddsTableIsNotAnError(t *testing.T) {
	site := matchSite()
	site.docs[testOddsURL] = noOddsHTML
	p := newTestPipeline(site, nil)

	bundle, err := p.Extract(context.Background(), models.WorkItem{ID: testItemID})
	require.NoError(t, err)
	assert.Nil(t, bundle.OddsRows)
}

func TestPipeline_OddsNavigationFailureIsTolerated(t *testing.T) {
	site := matchSite()
	site.navErrs[testOddsURL] = []error{errors.New("net::ERR_ABORTED"), errors.New("net::ERR_ABORTED")}
	p := newTestPipeline(site, nil)

	bundle, err := p.Extract(context.Background(), models.WorkItem{ID: testItemID})
	require.NoError(t, err)
	assert.Nil(t, bundle.OddsRows)
	assert.Equal(t, 2, site.visits(testOddsURL))
}

func TestPipeline_FatalOddsFailurePropagates(t *testing.T) {
	site := matchSite()
	timeout := failure.ErrNavigationTimeout
	site.navErrs[testOddsURL] = []error{timeout, timeout, timeout, timeout}
	p := newTestPipeline(site, nil)

	_, err := p.Extract(context.Background(), models.WorkItem{ID: testItemID})
	require.Error(t, err)
	assert.Equal(t, failure.KindFatalSession, failure.Classify(err))
	// two item attempts, each with two stage attempts
	assert.Equal(t, 4, site.visits(testOddsURL))
}

func TestPipeline_StageRetryRecovers(t *testing.T) {
	site := matchSite()
	statsURL := StatisticsURL(testBase, testItemID)
	site.navErrs[statsURL] = []error{errors.New("net::ERR_CONNECTION_RESET")}
	var calls []stageCall
	p := newTestPipeline(site, &calls)

	_, err := p.Extract(context.Background(), models.WorkItem{ID: testItemID})
	require.NoError(t, err)
	assert.Equal(t, 2, site.visits(statsURL))
	assert.Equal(t, 1, site.visits(SummaryURL(testBase, testItemID)))
}

func TestPipeline_MissingStatisticsFailsItem(t *testing.T) {
	site := matchSite()
	site.docs[StatisticsURL(testBase, testItemID)] = `<html><body></body></html>`
	p := newTestPipeline(site, nil)

	_, err := p.Extract(context.Background(), models.WorkItem{ID: testItemID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statistics stage")
	assert.Equal(t, failure.KindTransientItem, failure.Classify(err))
	// the whole item is retried once
	assert.Equal(t, 2, site.visits(SummaryURL(testBase, testItemID)))
	assert.Equal(t, site.opened, site.closed)
}

func TestPipeline_DiscoverWorkList(t *testing.T) {
	site := newFakeSite()
	seasonURL := testBase + "/soccer/england/championship-2024-2025/"
	site.docs[ResultsURL(seasonURL)] = resultsHTML
	p := newTestPipeline(site, nil)

	items, err := p.DiscoverWorkList(context.Background(), seasonURL)
	require.NoError(t, err)
	assert.Equal(t, []models.WorkItem{{ID: "Kx8fT2aQ", Index: 0}, {ID: "Zz9yX8wV", Index: 1}}, items)
}

func TestPipeline_DiscoverWorkListWithoutShowMore(t *testing.T) {
	site := newFakeSite()
	seasonURL := testBase + "/soccer/greece/super-league-2025-2026"
	site.docs[ResultsURL(seasonURL)] = `<html><body><div id="g_1_Abc12345" class="event__match event__match--static event__match--twoLine"></div></body></html>`
	p := newTestPipeline(site, nil)

	items, err := p.DiscoverWorkList(context.Background(), seasonURL)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestPipeline_ExtractStopsOnCancel(t *testing.T) {
	site := matchSite()
	p := newTestPipeline(site, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Extract(ctx, models.WorkItem{ID: testItemID})
	require.Error(t, err)
	assert.True(t, failure.IsShutdown(ctx, err))
}
