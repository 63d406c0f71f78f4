// Package normalize turns one raw fragment bundle into one canonical match
// record. It performs no I/O and is deterministic for a given bundle.
package normalize

import (
	"strings"
	"time"

	"github.com/Vodeneev/matchscraper/internal/pkg/failure"
	"github.com/Vodeneev/matchscraper/internal/pkg/models"
	"github.com/Vodeneev/matchscraper/internal/pkg/validation"
)

// Options carries the per-run context stamped onto every record.
type Options struct {
	Sport  string
	Nation string
	League string
	// Season is the stored season label, e.g. "england_championship-2025-2026".
	Season string
	// Location is used for page dates that carry no zone. Defaults to UTC.
	Location *time.Location
}

// Normalizer converts bundles into canonical records.
type Normalizer struct {
	opts      Options
	validator *validation.Validator
	sanitizer *validation.Sanitizer
}

// New creates a Normalizer.
func New(opts Options) *Normalizer {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Normalizer{
		opts:      opts,
		validator: validation.NewValidator(),
		sanitizer: validation.NewSanitizer(),
	}
}

// Normalize validates bundle and builds its canonical record. A bundle
// missing both team ids or its date yields a *failure.ValidationError.
func (n *Normalizer) Normalize(bundle *models.RawFragmentBundle) (*models.MatchRecord, error) {
	if bundle != nil {
		n.sanitizer.SanitizeBundle(bundle)
	}
	if err := n.validator.ValidateBundle(bundle); err != nil {
		return nil, err
	}

	matchTime, err := ParseMatchTime(bundle.Date, n.opts.Location)
	if err != nil {
		return nil, &failure.ValidationError{ItemID: bundle.ItemID, Field: "date", Reason: "unparseable: " + bundle.Date}
	}

	status := bundle.Status
	if status == "" {
		status = "Unknown"
	}

	first, second := HalfScores(bundle.TimelineText)
	lines := AggregateOdds(bundle.OddsRows)

	record := &models.MatchRecord{
		ID:              bundle.ItemID,
		Link:            bundle.Link,
		Stage:           bundle.Stage,
		MatchTime:       matchTime,
		Status:          status,
		Home:            n.team(bundle.Home),
		Away:            n.team(bundle.Away),
		HomeScore:       ParseScore(bundle.Score.Home),
		AwayScore:       ParseScore(bundle.Score.Away),
		RegulationTime:  strings.TrimSpace(bundle.Score.RegulationTime),
		Penalties:       strings.TrimSpace(bundle.Score.Penalties),
		FirstHalfScore:  first,
		SecondHalfScore: second,
		Season:          n.opts.Season,
		Nation:          n.opts.Nation,
		League:          n.opts.League,
		Statistics:      Statistics(bundle.Statistics),
		Events:          Events(bundle.Incidents),
		OddsLines:       lines,
		BestLine:        SelectBestLine(lines),
	}
	return record, nil
}

func (n *Normalizer) team(raw models.RawTeam) models.Team {
	return models.Team{
		ID:     raw.ID,
		Name:   raw.Name,
		Sport:  n.opts.Sport,
		Nation: n.opts.Nation,
	}
}
