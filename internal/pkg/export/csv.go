package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

var baseColumns = []string{
	"matchId", "stage", "status", "date",
	"home.id", "home.name", "away.id", "away.name",
	"result.home", "result.away", "result.regulationTime", "result.penalties",
}

var oddsColumns = []string{
	"odds_over_under_handicap", "odds_over_under_over", "odds_over_under_under",
}

// CSVSink writes one row per match. Statistics become "<category>.home" and
// "<category>.away" columns; only the first handicap line's averages are kept.
// Rows already in the file are kept unless a new record has the same id.
type CSVSink struct {
	path    string
	logger  *slog.Logger
	pending []*models.MatchRecord
}

func NewCSVSink(dir, fileName string, logger *slog.Logger) *CSVSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVSink{path: filepath.Join(dir, fileName+".csv"), logger: logger}
}

func (s *CSVSink) Path() string { return s.path }

func (s *CSVSink) Add(_ context.Context, rec *models.MatchRecord) error {
	s.pending = append(s.pending, rec)
	return nil
}

func (s *CSVSink) Flush(_ context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	table := s.readExisting()
	for _, rec := range s.pending {
		table.put(Flatten(rec))
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(table.columns); err != nil {
		return fmt.Errorf("failed to encode csv header: %w", err)
	}
	for _, id := range table.order {
		row := table.rows[id]
		record := make([]string, len(table.columns))
		for i, col := range table.columns {
			record[i] = row[col]
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to encode csv row %s: %w", id, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to encode csv: %w", err)
	}

	if err := writeFileAtomic(s.path, buf.Bytes()); err != nil {
		return err
	}
	s.logger.Debug("CSV export flushed", "path", s.path, "records", len(s.pending), "total", len(table.order))
	s.pending = nil
	return nil
}

// Flatten turns a record into column/value pairs.
func Flatten(rec *models.MatchRecord) map[string]string {
	row := map[string]string{
		"matchId":               rec.ID,
		"stage":                 rec.Stage,
		"status":                rec.Status,
		"home.id":               rec.Home.ID,
		"home.name":             rec.Home.Name,
		"away.id":               rec.Away.ID,
		"away.name":             rec.Away.Name,
		"result.home":           intText(rec.HomeScore),
		"result.away":           intText(rec.AwayScore),
		"result.regulationTime": rec.RegulationTime,
		"result.penalties":      rec.Penalties,
	}
	if !rec.MatchTime.IsZero() {
		row["date"] = rec.MatchTime.Format("02.01.2006 15:04")
	}
	for key, pair := range rec.Statistics {
		row[key+".home"] = pair.Home
		row[key+".away"] = pair.Away
	}
	if len(rec.OddsLines) > 0 {
		first := rec.OddsLines[0]
		row["odds_over_under_handicap"] = first.Handicap
		row["odds_over_under_over"] = floatText(first.AverageOver)
		row["odds_over_under_under"] = floatText(first.AverageUnder)
	}
	return row
}

type csvTable struct {
	columns []string
	known   map[string]bool
	rows    map[string]map[string]string
	order   []string
}

func newCSVTable() *csvTable {
	t := &csvTable{known: make(map[string]bool), rows: make(map[string]map[string]string)}
	t.addColumns(baseColumns)
	return t
}

func (t *csvTable) addColumns(cols []string) {
	for _, col := range cols {
		if !t.known[col] {
			t.known[col] = true
			t.columns = append(t.columns, col)
		}
	}
}

// put adds or replaces a row. Statistic columns are appended in sorted order
// ahead of the odds columns' first appearance.
func (t *csvTable) put(row map[string]string) {
	var extra []string
	for col := range row {
		if !t.known[col] && !isOddsColumn(col) {
			extra = append(extra, col)
		}
	}
	sort.Strings(extra)
	t.addColumns(extra)
	for _, col := range oddsColumns {
		if row[col] != "" {
			t.addColumns(oddsColumns)
			break
		}
	}

	id := row["matchId"]
	if _, ok := t.rows[id]; !ok {
		t.order = append(t.order, id)
	}
	t.rows[id] = row
}

func isOddsColumn(col string) bool {
	for _, c := range oddsColumns {
		if c == col {
			return true
		}
	}
	return false
}

func (s *CSVSink) readExisting() *csvTable {
	table := newCSVTable()
	f, err := os.Open(s.path)
	if err != nil {
		return table
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil || len(records) == 0 {
		if err != nil {
			s.logger.Warn("Existing CSV export unreadable, starting fresh", "path", s.path, "error", err)
		}
		return table
	}

	header := records[0]
	table.addColumns(header)
	for _, record := range records[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		if row["matchId"] == "" {
			continue
		}
		table.put(row)
	}
	return table
}

func intText(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func floatText(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
