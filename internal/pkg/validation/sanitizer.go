package validation

import (
	"regexp"
	"strings"

	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

var (
	controlChars = regexp.MustCompile(`[\x00-\x1F\x7F]`)
	spaceRuns    = regexp.MustCompile(`\s+`)
	nonIDChars   = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

// Sanitizer cleans scraped text before it is normalized
type Sanitizer struct{}

// NewSanitizer creates a new sanitizer
func NewSanitizer() *Sanitizer {
	return &Sanitizer{}
}

// SanitizeBundle trims and cleans the free-text fields of a bundle in place.
// Multi-line incident descriptions keep their line breaks.
func (s *Sanitizer) SanitizeBundle(bundle *models.RawFragmentBundle) {
	if bundle == nil {
		return
	}

	bundle.ItemID = s.sanitizeID(bundle.ItemID)
	bundle.Stage = s.sanitizeString(bundle.Stage)
	bundle.Status = s.sanitizeString(bundle.Status)
	bundle.Date = s.sanitizeString(bundle.Date)
	bundle.Home.Name = s.SanitizeName(bundle.Home.Name)
	bundle.Away.Name = s.SanitizeName(bundle.Away.Name)
	bundle.Home.ID = s.sanitizeID(bundle.Home.ID)
	bundle.Away.ID = s.sanitizeID(bundle.Away.ID)

	for i := range bundle.Statistics {
		st := &bundle.Statistics[i]
		st.Category = s.sanitizeString(st.Category)
		st.HomeValue = s.sanitizeString(st.HomeValue)
		st.AwayValue = s.sanitizeString(st.AwayValue)
	}

	for i := range bundle.OddsRows {
		row := &bundle.OddsRows[i]
		row.Handicap = s.sanitizeString(row.Handicap)
		row.Bookmaker = s.SanitizeName(row.Bookmaker)
		row.Over = s.sanitizeString(row.Over)
		row.Under = s.sanitizeString(row.Under)
	}

	for i := range bundle.Incidents {
		inc := &bundle.Incidents[i]
		lines := strings.Split(inc.Description, "\n")
		kept := lines[:0]
		for _, line := range lines {
			if line = s.SanitizeName(line); line != "" {
				kept = append(kept, line)
			}
		}
		inc.Description = strings.Join(kept, "\n")
	}
}

// SanitizeName collapses whitespace and strips control characters.
func (s *Sanitizer) SanitizeName(name string) string {
	sanitized := controlChars.ReplaceAllString(name, " ")
	sanitized = spaceRuns.ReplaceAllString(sanitized, " ")
	sanitized = strings.TrimSpace(sanitized)

	if len(sanitized) > 200 {
		sanitized = sanitized[:200]
	}
	return sanitized
}

func (s *Sanitizer) sanitizeID(id string) string {
	// Empty stays empty: a missing team id must remain detectable.
	sanitized := nonIDChars.ReplaceAllString(id, "")
	if len(sanitized) > 100 {
		sanitized = sanitized[:100]
	}
	return sanitized
}

func (s *Sanitizer) sanitizeString(str string) string {
	sanitized := strings.TrimSpace(str)
	sanitized = controlChars.ReplaceAllString(sanitized, "")

	if len(sanitized) > 200 {
		sanitized = sanitized[:200]
	}
	return sanitized
}
