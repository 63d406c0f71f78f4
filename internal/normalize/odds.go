package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

type oddsGroup struct {
	handicap string
	overs    []float64
	unders   []float64
	quotes   []models.BookmakerQuote
}

// AggregateOdds groups rows by handicap in first-seen order and averages each
// side independently. Non-numeric quotes are left out of the average; a group
// with no numeric quote on either side is dropped.
func AggregateOdds(rows []models.RawOddsRow) []models.OddsLine {
	if len(rows) == 0 {
		return nil
	}

	var order []*oddsGroup
	groups := make(map[string]*oddsGroup)
	for _, row := range rows {
		key := strings.TrimSpace(row.Handicap)
		if key == "" {
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = &oddsGroup{handicap: key}
			groups[key] = g
			order = append(order, g)
		}
		if v, ok := parseOdd(row.Over); ok {
			g.overs = append(g.overs, v)
		}
		if v, ok := parseOdd(row.Under); ok {
			g.unders = append(g.unders, v)
		}
		g.quotes = append(g.quotes, models.BookmakerQuote{
			Bookmaker: row.Bookmaker,
			Over:      row.Over,
			Under:     row.Under,
		})
	}

	lines := make([]models.OddsLine, 0, len(order))
	for _, g := range order {
		over, under := average(g.overs), average(g.unders)
		if over == nil && under == nil {
			continue
		}
		line := models.OddsLine{
			Handicap:     g.handicap,
			AverageOver:  over,
			AverageUnder: under,
			Bookmakers:   g.quotes,
		}
		if v, err := strconv.ParseFloat(g.handicap, 64); err == nil {
			line.HandicapValue = &v
		}
		lines = append(lines, line)
	}
	return lines
}

// SelectBestLine picks the most balanced line: the smallest gap between the
// over and under averages, ties going to the higher over average. Only lines
// with a numeric handicap and both averages take part.
func SelectBestLine(lines []models.OddsLine) *models.BestLine {
	var (
		best     *models.BestLine
		bestGap  int64
		bestOver int64
	)
	for _, line := range lines {
		if line.AverageOver == nil || line.AverageUnder == nil || line.HandicapValue == nil {
			continue
		}
		over, under := cents(*line.AverageOver), cents(*line.AverageUnder)
		gap := over - under
		if gap < 0 {
			gap = -gap
		}
		if best == nil || gap < bestGap || (gap == bestGap && over > bestOver) {
			best = &models.BestLine{
				HandicapValue: *line.HandicapValue,
				OverOdds:      *line.AverageOver,
				UnderOdds:     *line.AverageUnder,
			}
			bestGap, bestOver = gap, over
		}
	}
	return best
}

func parseOdd(text string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

func average(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	avg := round2(sum / float64(len(values)))
	return &avg
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// cents compares prices exactly at two-decimal precision.
func cents(v float64) int64 { return int64(math.Round(v * 100)) }
