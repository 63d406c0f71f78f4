package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

const (
	summaryReadySelector  = ".duelParticipant__startTime"
	timelineSelector      = ".loadable.complete"
	incidentSelector      = ".smv__incident"
	incidentIconSelector  = ".smv__incidentIcon, .smv__incidentIconSub"
	timelineIncidentBoxes = ".loadable.complete .smv__incident"
)

// Tried in order; the first one with a meaningful text wins.
var statusSelectors = []string{
	".fixedHeaderDuel__detailStatus",
	".duelParticipant__status",
	".event__time",
	".event__stage",
	".detailScore__status",
	".matchInfo__status",
	`[class*="status"]`,
}

var scoreFallbackSelectors = []string{
	".duelParticipant__score span",
	".participant__score span",
	".matchScore span",
	".score span",
	`[data-testid="wcl-scores-caption-01"] span`,
}

// summaryFragment is the summary view reduced to raw fields. incidents keeps
// the timeline nodes so their side can be resolved afterwards.
type summaryFragment struct {
	Stage        string
	Date         string
	Status       string
	HomeName     string
	AwayName     string
	Score        models.RawScore
	TimelineText string
	Incidents    []models.RawIncident
	incidents    []*goquery.Selection
}

func parseSummary(doc *goquery.Document) summaryFragment {
	frag := summaryFragment{
		Stage:    InlineText(doc.Find(".tournamentHeader__country > a").First()),
		Date:     InlineText(doc.Find(summaryReadySelector).First()),
		Status:   parseStatus(doc),
		HomeName: InlineText(doc.Find(".duelParticipant__home .participant__participantName.participant__overflow").First()),
		AwayName: InlineText(doc.Find(".duelParticipant__away .participant__participantName.participant__overflow").First()),
		Score:    parseScore(doc),
	}

	timeline := doc.Find(timelineSelector).First()
	if timeline.Length() == 0 {
		return frag
	}
	frag.TimelineText = BlockText(timeline)
	timeline.Find(incidentSelector).Each(func(_ int, inc *goquery.Selection) {
		icon, _ := inc.Find(incidentIconSelector).First().Html()
		frag.Incidents = append(frag.Incidents, models.RawIncident{
			Description: BlockText(inc),
			IconHTML:    icon,
		})
		frag.incidents = append(frag.incidents, inc)
	})
	return frag
}

func parseStatus(doc *goquery.Document) string {
	for _, sel := range statusSelectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		text := InlineText(el)
		if text != "" && text != "VS" && text != "v" && text != "-" {
			return text
		}
	}
	return ""
}

func parseScore(doc *goquery.Document) models.RawScore {
	var score models.RawScore

	spans := doc.Find(".detailScore__wrapper").First().Find("span:not(.detailScore__divider)")
	if spans.Length() >= 2 {
		score.Home = InlineText(spans.Eq(0))
		score.Away = InlineText(spans.Eq(1))
	}
	if score.Home == "" || score.Away == "" {
		for _, sel := range scoreFallbackSelectors {
			els := doc.Find(sel)
			if els.Length() < 2 {
				continue
			}
			score.Home, score.Away = InlineText(els.Eq(0)), InlineText(els.Eq(1))
			if score.Home != "" && score.Away != "" {
				break
			}
		}
	}

	score.RegulationTime = strings.NewReplacer("(", "", ")", "", "\n", "").
		Replace(strings.TrimSpace(doc.Find(".detailScore__fullTime").First().Text()))

	doc.Find(`[data-testid="wcl-scores-overline-02"]`).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if strings.ToLower(InlineText(el)) != "penalties" {
			return true
		}
		score.Penalties = strings.Join(strings.Fields(el.Next().Text()), "")
		return false
	})
	return score
}
