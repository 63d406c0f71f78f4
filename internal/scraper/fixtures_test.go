package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Vodeneev/matchscraper/internal/pkg/browser"
)

const testBase = "https://www.flashscore.com"

const summaryHTML = `<html><body>
<div class="tournamentHeader__country"><span>ENGLAND:</span> <a href="/football/england/championship/">Championship - Round 5</a></div>
<div class="duelParticipant">
  <div class="duelParticipant__startTime"><div>14.09.2024 17:30</div></div>
  <div class="duelParticipant__home"><div class="participant__participantName participant__overflow"><a>Norwich</a></div></div>
  <div class="duelParticipant__away"><div class="participant__participantName participant__overflow"><a>Leeds</a></div></div>
  <div class="detailScore__wrapper"><span>2</span><span class="detailScore__divider">-</span><span>1</span></div>
  <div class="detailScore__fullTime">(1-1)</div>
  <div data-testid="wcl-scores-overline-02">Penalties</div><div>4 - 3</div>
  <div class="detailScore__status"><span class="fixedHeaderDuel__detailStatus">Finished</span></div>
</div>
<div class="loadable complete">
  <div class="wclHeaderSection--summary"><div>1st Half</div><div>1 - 0</div></div>
  <div class="smv__participantRow smv__homeParticipant">
    <div class="smv__incident"><div class="smv__timeBox">12'</div><div class="smv__incidentIcon"><svg class="wcl-icon-soccer"></svg></div><a class="smv__playerName"><div>Sargent J.</div></a><div class="smv__assist"><div>(Sainz B.)</div></div></div>
  </div>
  <div class="wclHeaderSection--summary"><div>2nd Half</div><div>1 - 1</div></div>
  <div class="smv__participantRow smv__awayParticipant">
    <div class="smv__incident"><div class="smv__timeBox">58'</div><div class="smv__incidentIcon"><svg class="card-ico yellowCard"></svg></div><a class="smv__playerName"><div>Ampadu E.</div></a></div>
  </div>
  <div class="smv__participantRow">
    <div class="smv__incident"><div class="smv__timeBox">80'</div><div class="smv__incidentIconSub"><svg class="substitution"></svg></div><div>Idah A.</div><div>Hwang U.</div></div>
  </div>
</div>
</body></html>`

const statisticsHTML = `<html><body>
<div data-testid="wcl-statistics">
  <div data-testid="wcl-statistics-value"><strong>55%</strong></div>
  <div data-testid="wcl-statistics-category"><strong>Ball Possession</strong></div>
  <div data-testid="wcl-statistics-value"><strong>45%</strong></div>
</div>
<div data-testid="wcl-statistics">
  <div data-testid="wcl-statistics-value"><strong>1.84</strong></div>
  <div data-testid="wcl-statistics-category"><strong>Expected Goals (xG)</strong></div>
  <div data-testid="wcl-statistics-value"><strong>0.92</strong></div>
</div>
</body></html>`

const oddsHTML = `<html><body>
<div class="ui-table__row">
  <div class="oddsCell__bookmaker"><a><img title="bet365" alt="b365"></a></div>
  <span data-testid="wcl-oddsValue">2.5</span>
  <a class="oddsCell__odd"><span class="arrow"></span><span>1.90</span></a>
  <a class="oddsCell__odd"><span>1.95</span></a>
</div>
<div class="ui-table__row">
  <img class="prematchLogo" alt="Pinnacle">
  <span data-testid="wcl-oddsValue">2.5</span>
  <a class="oddsCell__odd"><span>-</span></a>
  <a class="oddsCell__odd"><span>1.85</span></a>
</div>
<div class="ui-table__row">
  <img class="prematchLogo" alt="Unibet">
  <span data-testid="wcl-oddsValue"></span>
  <a class="oddsCell__odd"><span>3.00</span></a>
  <a class="oddsCell__odd"><span>1.30</span></a>
</div>
</body></html>`

const noOddsHTML = `<html><body><div class="info">No odds available</div></body></html>`

const resultsHTML = `<html><body>
<a data-testid="wcl-buttonLink"><span data-testid="wcl-scores-caption-05">Show more matches</span></a>
<div id="g_1_Kx8fT2aQ" class="event__match event__match--static event__match--twoLine">Norwich - Leeds</div>
<div id="g_1_Zz9yX8wV" class="event__match event__match--static event__match--twoLine">Hull - Stoke</div>
<div id="g_1_Kx8fT2aQ" class="event__match event__match--static event__match--twoLine">duplicate</div>
<div class="event__match event__match--static event__match--twoLine">no id</div>
<div id="g_1_Ignored1" class="event__match event__match--live">live row</div>
</body></html>`

const canonicalLink = testBase + "/match/soccer/leeds-AbCdEf12/norwich-GhIjKl34/?mid=Kx8fT2aQ#/match-summary/match-summary"

// fakeSite serves canned documents by URL and records what the pipeline did.
type fakeSite struct {
	mu        sync.Mutex
	docs      map[string]string
	redirects map[string]string
	navErrs   map[string][]error
	boxes     map[string][]browser.Box
	visited   []string
	opened    int
	closed    int
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		docs:      make(map[string]string),
		redirects: make(map[string]string),
		navErrs:   make(map[string][]error),
		boxes:     make(map[string][]browser.Box),
	}
}

func (s *fakeSite) NewPage(context.Context) (browser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened++
	return &fakePage{site: s}, nil
}

func (s *fakeSite) visits(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.visited {
		if v == url {
			n++
		}
	}
	return n
}

type fakePage struct {
	site    *fakeSite
	current string
}

func (p *fakePage) Navigate(_ context.Context, url string, _ browser.WaitPolicy) error {
	s := p.site
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visited = append(s.visited, url)
	if errs := s.navErrs[url]; len(errs) > 0 {
		s.navErrs[url] = errs[1:]
		if errs[0] != nil {
			return errs[0]
		}
	}
	p.current = url
	return nil
}

func (p *fakePage) doc() *goquery.Document {
	p.site.mu.Lock()
	markup := p.site.docs[p.current]
	p.site.mu.Unlock()
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(markup))
	return doc
}

func (p *fakePage) WaitForContent(_ context.Context, selector string, _ time.Duration) error {
	if p.doc().Find(selector).Length() == 0 {
		return fmt.Errorf("waiting for %s: %w", selector, context.DeadlineExceeded)
	}
	return nil
}

func (p *fakePage) Click(_ context.Context, selector string, _ time.Duration) error {
	if p.doc().Find(selector).Length() == 0 {
		return errors.New("node not found")
	}
	return nil
}

func (p *fakePage) HTML(context.Context) (string, error) {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	return p.site.docs[p.current], nil
}

func (p *fakePage) Boxes(_ context.Context, selector string) ([]browser.Box, error) {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	return p.site.boxes[selector], nil
}

func (p *fakePage) URL(context.Context) (string, error) {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	if to, ok := p.site.redirects[p.current]; ok {
		return to, nil
	}
	return p.current, nil
}

func (p *fakePage) Close(context.Context) error {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	p.site.closed++
	return nil
}

func mustDoc(markup string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		panic(err)
	}
	return doc
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }
