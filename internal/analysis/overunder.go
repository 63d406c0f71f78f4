// Package analysis settles stored best lines against final scores.
package analysis

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Vodeneev/matchscraper/internal/pkg/storage"
)

// Result is how an over/under line settled.
type Result string

const (
	Over      Result = "over"
	Under     Result = "under"
	HalfOver  Result = "half_over"
	HalfUnder Result = "half_under"
	Push      Result = "push"
)

// Results in report order.
var Results = []Result{Over, HalfOver, Under, HalfUnder, Push}

// Settle classifies a match total against a goals line. Quarter lines settle
// half the stake: x.25 is half_under on exactly x goals, x.75 is half_over on
// exactly x+1. Whole lines push on equality, half lines never push.
func Settle(total int, line float64) Result {
	hundredths := int(math.Round(line * 100))
	whole := hundredths / 100
	goals := total * 100

	switch hundredths % 100 {
	case 0, 50:
		switch {
		case goals > hundredths:
			return Over
		case goals < hundredths:
			return Under
		default:
			return Push
		}
	case 25:
		switch {
		case total == whole:
			return HalfUnder
		case total > whole:
			return Over
		default:
			return Under
		}
	case 75:
		switch {
		case total == whole+1:
			return HalfOver
		case total > whole+1:
			return Over
		default:
			return Under
		}
	default:
		switch {
		case goals > hundredths:
			return Over
		case goals < hundredths:
			return Under
		default:
			return Push
		}
	}
}

// SettledMatch is a stored match with its settlement.
type SettledMatch struct {
	storage.SettledMatch
	Result Result
}

// Report is the settlement of every finished match in a season.
type Report struct {
	Season  string
	Matches []SettledMatch
	Counts  map[Result]int
}

// Rate returns the share of matches, in percent, that settled as any of rs.
func (r Report) Rate(rs ...Result) float64 {
	if len(r.Matches) == 0 {
		return 0
	}
	n := 0
	for _, res := range rs {
		n += r.Counts[res]
	}
	return float64(n) / float64(len(r.Matches)) * 100
}

// MatchSource is the storage query the report reads.
type MatchSource interface {
	SettledMatches(ctx context.Context, season string) ([]storage.SettledMatch, error)
}

// Analyze settles every finished match of season.
func Analyze(ctx context.Context, src MatchSource, season string) (Report, error) {
	matches, err := src.SettledMatches(ctx, season)
	if err != nil {
		return Report{}, fmt.Errorf("load settled matches: %w", err)
	}

	report := Report{Season: season, Counts: make(map[Result]int, len(Results))}
	for _, m := range matches {
		res := Settle(m.TotalGoals(), m.BestBenchmark)
		report.Counts[res]++
		report.Matches = append(report.Matches, SettledMatch{SettledMatch: m, Result: res})
	}
	return report, nil
}

// Render writes the summary table and, if detailed, one row per match.
func (r Report) Render(w io.Writer, detailed bool) {
	fmt.Fprintf(w, "Over/under results: %s (%d matches)\n", r.Season, len(r.Matches))

	summary := table.NewWriter()
	summary.SetOutputMirror(w)
	summary.SetStyle(table.StyleRounded)
	summary.AppendHeader(table.Row{"Result", "Matches", "Share"})
	for _, res := range Results {
		summary.AppendRow(table.Row{string(res), r.Counts[res], fmt.Sprintf("%.1f%%", r.Rate(res))})
	}
	summary.AppendFooter(table.Row{"over rate", "", fmt.Sprintf("%.1f%%", r.Rate(Over, HalfOver))})
	summary.AppendFooter(table.Row{"under rate", "", fmt.Sprintf("%.1f%%", r.Rate(Under, HalfUnder))})
	summary.AppendFooter(table.Row{"push rate", "", fmt.Sprintf("%.1f%%", r.Rate(Push))})
	summary.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	summary.Render()

	if !detailed || len(r.Matches) == 0 {
		return
	}

	details := table.NewWriter()
	details.SetOutputMirror(w)
	details.SetStyle(table.StyleRounded)
	details.AppendHeader(table.Row{"Date", "Match", "Score", "Line", "Over", "Under", "Result"})
	for _, m := range r.Matches {
		date := ""
		if !m.MatchTime.IsZero() {
			date = m.MatchTime.Format("2006-01-02")
		}
		details.AppendRow(table.Row{
			date,
			fmt.Sprintf("%s - %s", m.HomeTeam, m.AwayTeam),
			fmt.Sprintf("%d-%d", m.HomeScore, m.AwayScore),
			fmt.Sprintf("%.2f", m.BestBenchmark),
			fmt.Sprintf("%.2f", m.BestOverOdds),
			fmt.Sprintf("%.2f", m.BestUnderOdds),
			string(m.Result),
		})
	}
	details.Render()
}
