package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

const oddsRowSelector = ".ui-table__row"

// parseOdds reads the over/under table. It returns nil when the page has no
// odds table at all, and an empty slice when the table has no usable rows.
func parseOdds(doc *goquery.Document) []models.RawOddsRow {
	rows := doc.Find(oddsRowSelector)
	if rows.Length() == 0 {
		return nil
	}

	out := make([]models.RawOddsRow, 0, rows.Length())
	rows.Each(func(_ int, row *goquery.Selection) {
		handicap := InlineText(row.Find(`span[data-testid="wcl-oddsValue"]`).First())
		if handicap == "" {
			return
		}

		var over, under string
		cells := row.Find("a.oddsCell__odd")
		if cells.Length() >= 2 {
			over = oddValue(cells.Eq(0))
			under = oddValue(cells.Eq(1))
		}
		if over == "" && under == "" {
			return
		}

		out = append(out, models.RawOddsRow{
			Handicap:  handicap,
			Bookmaker: bookmakerName(row),
			Over:      over,
			Under:     under,
		})
	})
	return out
}

func bookmakerName(row *goquery.Selection) string {
	img := row.Find(".oddsCell__bookmaker img, .prematchLogo").First()
	if title, ok := img.Attr("title"); ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	if alt, ok := img.Attr("alt"); ok && strings.TrimSpace(alt) != "" {
		return strings.TrimSpace(alt)
	}
	return "Unknown"
}

func oddValue(cell *goquery.Selection) string {
	if v := InlineText(cell.Find("span:not(.arrow):not(.externalLink-ico)").First()); v != "" {
		return v
	}
	first, _, _ := strings.Cut(BlockText(cell), "\n")
	return first
}
