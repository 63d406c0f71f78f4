package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

var (
	// "38'" or "90+4'"; the first integer before the apostrophe is the minute.
	minutePattern = regexp.MustCompile(`(\d+)(?:\+(\d+))?'`)
	assistPattern = regexp.MustCompile(`\(([^)]+)\)`)
)

// Events normalizes incidents in timeline order.
func Events(incidents []models.RawIncident) []models.MatchEvent {
	events := make([]models.MatchEvent, 0, len(incidents))
	for _, inc := range incidents {
		events = append(events, Event(inc))
	}
	return events
}

// Event normalizes one incident.
func Event(inc models.RawIncident) models.MatchEvent {
	text := strings.TrimSpace(inc.Description)
	ev := models.MatchEvent{
		Type: Classify(inc.IconHTML, text),
		Side: inc.Side,
		Text: text,
	}

	if m := minutePattern.FindStringSubmatch(text); m != nil {
		if minute, err := strconv.Atoi(m[1]); err == nil {
			ev.Minute = &minute
		}
		if m[2] != "" {
			if stoppage, err := strconv.Atoi(m[2]); err == nil {
				ev.Stoppage = &stoppage
			}
		}
	}

	lines := nonEmptyLines(text)
	switch ev.Type {
	case models.EventGoal:
		if len(lines) >= 2 {
			ev.Player = lines[1]
			if m := assistPattern.FindStringSubmatch(text); m != nil {
				ev.Assist = strings.TrimSpace(m[1])
			}
		}
	case models.EventSubstitution:
		if len(lines) >= 3 {
			ev.PlayerOut = lines[1]
			ev.PlayerIn = lines[2]
		}
	case models.EventCard:
		if len(lines) >= 2 {
			ev.Player = lines[1]
		}
		ev.CardColor = cardColor(inc.IconHTML, text)
	}
	return ev
}

// Classify decides the event type from the icon markup, falling back to
// keywords in the description.
func Classify(iconHTML, text string) models.EventType {
	switch {
	case strings.Contains(iconHTML, "wcl-icon-soccer"), strings.Contains(iconHTML, "Goal"):
		return models.EventGoal
	case strings.Contains(iconHTML, "substitution"):
		return models.EventSubstitution
	case strings.Contains(iconHTML, "card-ico"),
		strings.Contains(iconHTML, "Yellow Card"),
		strings.Contains(iconHTML, "Red Card"):
		return models.EventCard
	}

	switch {
	case containsAny(text, goalWords):
		return models.EventGoal
	case containsAny(text, substitutionWords):
		return models.EventSubstitution
	case containsAny(text, cardWords):
		return models.EventCard
	}
	return models.EventOther
}

// Description keywords in the languages the source renders (English, Korean).
var (
	goalWords         = []string{"Goal", "골"}
	substitutionWords = []string{"Substitution", "교체"}
	cardWords         = []string{"Card", "카드"}
	yellowWords       = []string{"Yellow", "노란"}
	redWords          = []string{"Red", "빨간"}
)

func cardColor(iconHTML, text string) string {
	switch {
	case strings.Contains(iconHTML, "yellowCard"):
		return "yellow"
	case strings.Contains(iconHTML, "redCard"):
		return "red"
	case containsAny(text, yellowWords):
		return "yellow"
	case containsAny(text, redWords):
		return "red"
	}
	return ""
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
