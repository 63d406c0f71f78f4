package scraper

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// /match/<sport>/<slug>-<AWAYID>/<slug>-<HOMEID>
	teamIDsPattern   = regexp.MustCompile(`/match/[^/]+/[^/]+-([A-Za-z0-9]{6,12})/[^/]+-([A-Za-z0-9]{6,12})`)
	matchPathPattern = regexp.MustCompile(`/match/([^#?]+)`)
	midPattern       = regexp.MustCompile(`[?&]mid=([^#&]+)`)
)

// SummaryURL is the summary view of a match.
func SummaryURL(base, itemID string) string {
	return fmt.Sprintf("%s/match/%s/#/match-summary/match-summary", strings.TrimRight(base, "/"), itemID)
}

// StatisticsURL is the full-match statistics view.
func StatisticsURL(base, itemID string) string {
	return fmt.Sprintf("%s/match/%s/#/match-summary/match-statistics/0", strings.TrimRight(base, "/"), itemID)
}

// OddsURL is the full-time over/under odds view.
func OddsURL(base, matchPath, mid string) string {
	return fmt.Sprintf("%s/match/%s/odds/over-under/full-time/?mid=%s", strings.TrimRight(base, "/"), matchPath, mid)
}

// ResultsURL lists the finished matches of a season.
func ResultsURL(seasonURL string) string {
	return strings.TrimRight(seasonURL, "/") + "/results"
}

// TeamIDs reads both team ids from a canonical match link. The page lists the
// away side first, so the second id is the home team.
func TeamIDs(link string) (home, away string) {
	m := teamIDsPattern.FindStringSubmatch(link)
	if m == nil {
		return "", ""
	}
	return m[2], m[1]
}

// MatchPath is the path after /match/ in link, or fallback when link has none.
func MatchPath(link, fallback string) string {
	m := matchPathPattern.FindStringSubmatch(link)
	if m == nil {
		return fallback
	}
	path := strings.TrimRight(m[1], "/")
	if path == "" {
		return fallback
	}
	return path
}

// MidParam is the mid query parameter of link, or fallback.
func MidParam(link, fallback string) string {
	m := midPattern.FindStringSubmatch(link)
	if m == nil {
		return fallback
	}
	return m[1]
}

// League identifies one league season of the source.
type League struct {
	Sport   string
	Country string
	Code    string
	Season  string
}

// LatestSeason is the season running at now: "Y-(Y+1)" from August, "(Y-1)-Y" before.
func LatestSeason(now time.Time) string {
	y := now.Year()
	if now.Month() >= time.August {
		return fmt.Sprintf("%d-%d", y, y+1)
	}
	return fmt.Sprintf("%d-%d", y-1, y)
}

// WithDefaultSeason fills an empty season with LatestSeason(now).
func (l League) WithDefaultSeason(now time.Time) League {
	if l.Season == "" {
		l.Season = LatestSeason(now)
	}
	return l
}

// URL is the league season landing page.
func (l League) URL(base string) string {
	return fmt.Sprintf("%s/%s/%s/%s-%s/", strings.TrimRight(base, "/"), l.Sport, l.Country, l.Code, l.Season)
}

// FileName is the output base name, e.g. "soccer_england_championship-2025-2026".
func (l League) FileName() string {
	return fmt.Sprintf("%s_%s_%s-%s", l.Sport, l.Country, l.Code, l.Season)
}

// SeasonLabel is the label stored with each match, e.g. "england_championship-2025-2026".
func (l League) SeasonLabel() string {
	return fmt.Sprintf("%s_%s-%s", l.Country, l.Code, l.Season)
}
