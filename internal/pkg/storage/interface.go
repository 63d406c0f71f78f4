package storage

import (
	"context"
	"time"

	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

// RecordWriter is the write side used by the batched Sink.
type RecordWriter interface {
	// SaveMatch upserts the record, its teams, events and odds lines.
	SaveMatch(ctx context.Context, rec *models.MatchRecord) error

	// LogError appends one failure to matches_error.
	LogError(ctx context.Context, entry models.ErrorLogEntry) error
}

// Repository is the durable match store.
type Repository interface {
	RecordWriter

	// ExistingMatchIDs returns every stored match id.
	ExistingMatchIDs(ctx context.Context) (map[string]struct{}, error)

	// MatchesMissingData returns up to limit stored matches whose status or best line is missing.
	MatchesMissingData(ctx context.Context, limit int) ([]MissingMatch, error)

	// SettledMatches returns finished matches of a season that carry a best line.
	SettledMatches(ctx context.Context, season string) ([]SettledMatch, error)

	// Close closes the connection pool
	Close() error
}

// MissingMatch is a stored match that needs another extraction pass.
type MissingMatch struct {
	ID        string
	Link      string
	MatchTime time.Time
	Status    string
}

// SettledMatch is a finished match with its best over/under line.
type SettledMatch struct {
	ID            string
	MatchTime     time.Time
	HomeTeam      string
	AwayTeam      string
	HomeScore     int
	AwayScore     int
	BestBenchmark float64
	BestOverOdds  float64
	BestUnderOdds float64
}

// TotalGoals of the match.
func (m SettledMatch) TotalGoals() int {
	return m.HomeScore + m.AwayScore
}
