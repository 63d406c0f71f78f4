package normalize

import (
	"fmt"
	"strings"
	"time"
)

// Page dates come as "02.01.2006 15:04"; stored or re-read records may carry
// RFC 3339 or SQL timestamps.
var dateLayouts = []string{
	"02.01.2006 15:04",
	"02.01.2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseMatchTime parses a page date in loc.
func ParseMatchTime(text string, loc *time.Location) (time.Time, error) {
	text = strings.TrimSpace(text)
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised match date %q", text)
}
