package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	firstHalfPattern  = regexp.MustCompile(`(?i)1ST HALF\s*(\d+\s*-\s*\d+)`)
	secondHalfPattern = regexp.MustCompile(`(?i)2ND HALF\s*(\d+\s*-\s*\d+)`)
	scorePattern      = regexp.MustCompile(`\d+\s*-\s*\d+`)
)

// ParseScore returns the integer score or nil when text is not a number.
func ParseScore(text string) *int {
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return nil
	}
	return &v
}

// HalfScores reads the per-half scores from the timeline text. Labelled
// scores win; otherwise the first two "a - b" patterns fill the gaps.
func HalfScores(timeline string) (first, second string) {
	if m := firstHalfPattern.FindStringSubmatch(timeline); m != nil {
		first = m[1]
	}
	if m := secondHalfPattern.FindStringSubmatch(timeline); m != nil {
		second = m[1]
	}
	if first == "" || second == "" {
		all := scorePattern.FindAllString(timeline, -1)
		if len(all) >= 2 {
			if first == "" {
				first = all[0]
			}
			if second == "" {
				second = all[1]
			}
		}
	}
	return first, second
}
