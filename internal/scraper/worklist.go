package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

const (
	resultRowSelector = ".event__match.event__match--static.event__match--twoLine"
	showMoreSelector  = `a[data-testid="wcl-buttonLink"] span[data-testid="wcl-scores-caption-05"]`
	resultRowIDPrefix = "g_1_"
)

// parseWorkList collects match ids from the results page in page order.
// Rows without an id and repeated ids are skipped.
func parseWorkList(doc *goquery.Document) []models.WorkItem {
	var items []models.WorkItem
	seen := make(map[string]struct{})
	doc.Find(resultRowSelector).Each(func(_ int, row *goquery.Selection) {
		id, _ := row.Attr("id")
		id = strings.TrimPrefix(strings.TrimSpace(id), resultRowIDPrefix)
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		items = append(items, models.WorkItem{ID: id, Index: len(items)})
	})
	return items
}
