package scraper

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

const statisticsSelector = "div[data-testid='wcl-statistics']"

func parseStatistics(doc *goquery.Document) []models.RawStatistic {
	var stats []models.RawStatistic
	doc.Find(statisticsSelector).Each(func(_ int, row *goquery.Selection) {
		values := row.Find("div[data-testid='wcl-statistics-value'] > strong")
		stats = append(stats, models.RawStatistic{
			Category:  InlineText(row.Find("div[data-testid='wcl-statistics-category']").First()),
			HomeValue: InlineText(values.Eq(0)),
			AwayValue: InlineText(values.Eq(1)),
		})
	})
	return stats
}
