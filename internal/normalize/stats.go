package normalize

import (
	"regexp"
	"strings"

	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// StatKey lower-cases a statistics category and joins its words with underscores.
func StatKey(category string) string {
	key := strings.ToLower(strings.TrimSpace(category))
	return whitespaceRun.ReplaceAllString(key, "_")
}

// Statistics builds the category map. A repeated category keeps its first value.
func Statistics(raw []models.RawStatistic) map[string]models.StatPair {
	stats := make(map[string]models.StatPair, len(raw))
	for _, st := range raw {
		key := StatKey(st.Category)
		if key == "" {
			continue
		}
		if _, seen := stats[key]; seen {
			continue
		}
		stats[key] = models.StatPair{Home: st.HomeValue, Away: st.AwayValue}
	}
	return stats
}
