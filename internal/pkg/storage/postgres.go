package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/Vodeneev/matchscraper/internal/pkg/config"
	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

// Ensure PostgresRepository implements Repository
var _ Repository = (*PostgresRepository)(nil)

// PostgresRepository stores match records in PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository opens the pool, checks it and creates missing tables.
func NewPostgresRepository(ctx context.Context, cfg *config.PostgresConfig) (*PostgresRepository, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	repo := &PostgresRepository{db: db}
	if err := repo.initSchema(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("PostgreSQL match storage initialized successfully")
	return repo, nil
}

func (r *PostgresRepository) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS teams (
		team_id VARCHAR(100) PRIMARY KEY,
		team VARCHAR(255) NOT NULL,
		sport_type VARCHAR(50),
		nation VARCHAR(100)
	);

	CREATE TABLE IF NOT EXISTS matches (
		id VARCHAR(100) PRIMARY KEY,
		match_link TEXT,
		match_time TIMESTAMPTZ,
		status VARCHAR(50),
		stage VARCHAR(255),
		home_team_id VARCHAR(100) REFERENCES teams(team_id),
		away_team_id VARCHAR(100) REFERENCES teams(team_id),
		home_score INTEGER,
		away_score INTEGER,
		regulation_time VARCHAR(50),
		penalties VARCHAR(50),
		season VARCHAR(255),
		nation VARCHAR(100),
		league VARCHAR(255),
		best_benchmark NUMERIC(4, 2),
		best_over_odds NUMERIC(8, 2),
		best_under_odds NUMERIC(8, 2),
		statistics JSONB,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_matches_season ON matches(season);
	CREATE INDEX IF NOT EXISTS idx_matches_match_time ON matches(match_time);

	CREATE TABLE IF NOT EXISTS match_events (
		match_id VARCHAR(100) PRIMARY KEY REFERENCES matches(id) ON DELETE CASCADE,
		first_half_score VARCHAR(20),
		second_half_score VARCHAR(20),
		events JSONB,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS handicap_odds (
		id SERIAL PRIMARY KEY,
		match_id VARCHAR(100) NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
		handicap NUMERIC(4, 2) NOT NULL,
		avg_over NUMERIC(8, 2),
		avg_under NUMERIC(8, 2),
		bookmaker_count INTEGER NOT NULL DEFAULT 0,
		bookmakers JSONB,
		UNIQUE(match_id, handicap)
	);

	CREATE TABLE IF NOT EXISTS matches_error (
		id SERIAL PRIMARY KEY,
		match_id VARCHAR(100),
		error_type VARCHAR(50) NOT NULL,
		error_message TEXT,
		error_details JSONB,
		match_url TEXT,
		stage VARCHAR(50),
		attempted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_matches_error_match_id ON matches_error(match_id);
	`

	_, err := r.db.ExecContext(ctx, query)
	return err
}

// SaveMatch writes the record and everything hanging off it in one transaction.
// Non-null incoming match columns override stored ones; null ones keep what is stored.
func (r *PostgresRepository) SaveMatch(ctx context.Context, rec *models.MatchRecord) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, team := range []models.Team{rec.Home, rec.Away} {
		if err = upsertTeam(ctx, tx, team); err != nil {
			return err
		}
	}
	if err = upsertMatch(ctx, tx, rec); err != nil {
		return err
	}
	if err = upsertEvents(ctx, tx, rec); err != nil {
		return err
	}
	if err = upsertOddsLines(ctx, tx, rec); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func upsertTeam(ctx context.Context, tx *sql.Tx, team models.Team) error {
	if team.ID == "" {
		return nil
	}
	query := `
	INSERT INTO teams (team_id, team, sport_type, nation)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (team_id) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, query, team.ID, team.Name, nullString(team.Sport), nullString(team.Nation)); err != nil {
		return fmt.Errorf("upsert team %s: %w", team.ID, err)
	}
	return nil
}

func upsertMatch(ctx context.Context, tx *sql.Tx, rec *models.MatchRecord) error {
	stats, err := jsonText(rec.Statistics)
	if err != nil {
		return fmt.Errorf("encode statistics: %w", err)
	}

	var benchmark, over, under sql.NullFloat64
	if rec.BestLine != nil {
		benchmark = sql.NullFloat64{Float64: rec.BestLine.HandicapValue, Valid: true}
		over = sql.NullFloat64{Float64: rec.BestLine.OverOdds, Valid: true}
		under = sql.NullFloat64{Float64: rec.BestLine.UnderOdds, Valid: true}
	}

	var matchTime sql.NullTime
	if !rec.MatchTime.IsZero() {
		matchTime = sql.NullTime{Time: rec.MatchTime, Valid: true}
	}

	query := `
	INSERT INTO matches (
		id, match_link, match_time, status, stage, home_team_id, away_team_id,
		home_score, away_score, regulation_time, penalties, season, nation, league,
		best_benchmark, best_over_odds, best_under_odds, statistics, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18::jsonb, NOW())
	ON CONFLICT (id) DO UPDATE SET
		match_link = COALESCE(EXCLUDED.match_link, matches.match_link),
		match_time = COALESCE(EXCLUDED.match_time, matches.match_time),
		status = COALESCE(EXCLUDED.status, matches.status),
		stage = COALESCE(EXCLUDED.stage, matches.stage),
		home_team_id = COALESCE(EXCLUDED.home_team_id, matches.home_team_id),
		away_team_id = COALESCE(EXCLUDED.away_team_id, matches.away_team_id),
		home_score = COALESCE(EXCLUDED.home_score, matches.home_score),
		away_score = COALESCE(EXCLUDED.away_score, matches.away_score),
		regulation_time = COALESCE(EXCLUDED.regulation_time, matches.regulation_time),
		penalties = COALESCE(EXCLUDED.penalties, matches.penalties),
		season = COALESCE(EXCLUDED.season, matches.season),
		nation = COALESCE(EXCLUDED.nation, matches.nation),
		league = COALESCE(EXCLUDED.league, matches.league),
		best_benchmark = COALESCE(EXCLUDED.best_benchmark, matches.best_benchmark),
		best_over_odds = COALESCE(EXCLUDED.best_over_odds, matches.best_over_odds),
		best_under_odds = COALESCE(EXCLUDED.best_under_odds, matches.best_under_odds),
		statistics = COALESCE(EXCLUDED.statistics, matches.statistics),
		updated_at = NOW()
	`

	_, err = tx.ExecContext(ctx, query,
		rec.ID,
		nullString(rec.Link),
		matchTime,
		nullString(rec.Status),
		nullString(rec.Stage),
		nullString(rec.Home.ID),
		nullString(rec.Away.ID),
		nullInt(rec.HomeScore),
		nullInt(rec.AwayScore),
		nullString(rec.RegulationTime),
		nullString(rec.Penalties),
		nullString(rec.Season),
		nullString(rec.Nation),
		nullString(rec.League),
		benchmark,
		over,
		under,
		stats,
	)
	if err != nil {
		return fmt.Errorf("upsert match %s: %w", rec.ID, err)
	}
	return nil
}

func upsertEvents(ctx context.Context, tx *sql.Tx, rec *models.MatchRecord) error {
	events, err := jsonText(rec.Events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}

	query := `
	INSERT INTO match_events (match_id, first_half_score, second_half_score, events, updated_at)
	VALUES ($1, $2, $3, $4::jsonb, NOW())
	ON CONFLICT (match_id) DO UPDATE SET
		first_half_score = COALESCE(EXCLUDED.first_half_score, match_events.first_half_score),
		second_half_score = COALESCE(EXCLUDED.second_half_score, match_events.second_half_score),
		events = COALESCE(EXCLUDED.events, match_events.events),
		updated_at = NOW()
	`
	_, err = tx.ExecContext(ctx, query, rec.ID, nullString(rec.FirstHalfScore), nullString(rec.SecondHalfScore), events)
	if err != nil {
		return fmt.Errorf("upsert events %s: %w", rec.ID, err)
	}
	return nil
}

func upsertOddsLines(ctx context.Context, tx *sql.Tx, rec *models.MatchRecord) error {
	query := `
	INSERT INTO handicap_odds (match_id, handicap, avg_over, avg_under, bookmaker_count, bookmakers)
	VALUES ($1, $2, $3, $4, $5, $6::jsonb)
	ON CONFLICT (match_id, handicap) DO UPDATE SET
		avg_over = EXCLUDED.avg_over,
		avg_under = EXCLUDED.avg_under,
		bookmaker_count = EXCLUDED.bookmaker_count,
		bookmakers = EXCLUDED.bookmakers
	`
	for _, line := range rec.OddsLines {
		// Lines without a numeric handicap have no key in handicap_odds.
		if line.HandicapValue == nil {
			continue
		}
		bookmakers, err := jsonText(line.Bookmakers)
		if err != nil {
			return fmt.Errorf("encode bookmakers: %w", err)
		}
		_, err = tx.ExecContext(ctx, query,
			rec.ID,
			*line.HandicapValue,
			nullFloat(line.AverageOver),
			nullFloat(line.AverageUnder),
			len(line.Bookmakers),
			bookmakers,
		)
		if err != nil {
			return fmt.Errorf("upsert handicap %s for %s: %w", line.Handicap, rec.ID, err)
		}
	}
	return nil
}

// LogError appends one failure row. Duplicates are expected.
func (r *PostgresRepository) LogError(ctx context.Context, entry models.ErrorLogEntry) error {
	details, err := jsonText(entry.Context)
	if err != nil {
		return fmt.Errorf("encode error details: %w", err)
	}
	attemptedAt := entry.Timestamp
	if attemptedAt.IsZero() {
		attemptedAt = time.Now()
	}

	query := `
	INSERT INTO matches_error (match_id, error_type, error_message, error_details, match_url, stage, attempted_at)
	VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7)
	`
	_, err = r.db.ExecContext(ctx, query,
		nullString(entry.ItemID),
		entry.ErrorKind,
		entry.Message,
		details,
		nullString(entry.SourceURL),
		nullString(entry.Stage),
		attemptedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to log error for %s: %w", entry.ItemID, err)
	}
	return nil
}

func (r *PostgresRepository) ExistingMatchIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM matches`)
	if err != nil {
		return nil, fmt.Errorf("failed to query match ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan match id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

func (r *PostgresRepository) MatchesMissingData(ctx context.Context, limit int) ([]MissingMatch, error) {
	query := `
	SELECT id, match_link, match_time, COALESCE(status, '')
	FROM matches
	WHERE match_link IS NOT NULL
	  AND (
		status IS NULL OR status = 'Unknown'
		OR best_benchmark IS NULL OR best_over_odds IS NULL OR best_under_odds IS NULL
	  )
	ORDER BY match_time DESC NULLS LAST
	LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches missing data: %w", err)
	}
	defer rows.Close()

	var out []MissingMatch
	for rows.Next() {
		var (
			m         MissingMatch
			matchTime sql.NullTime
		)
		if err := rows.Scan(&m.ID, &m.Link, &matchTime, &m.Status); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.MatchTime = matchTime.Time
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) SettledMatches(ctx context.Context, season string) ([]SettledMatch, error) {
	query := `
	SELECT m.id, m.match_time, COALESCE(ht.team, ''), COALESCE(at.team, ''),
		m.home_score, m.away_score, m.best_benchmark, m.best_over_odds, m.best_under_odds
	FROM matches m
	LEFT JOIN teams ht ON ht.team_id = m.home_team_id
	LEFT JOIN teams at ON at.team_id = m.away_team_id
	WHERE m.season = $1
	  AND m.home_score IS NOT NULL
	  AND m.away_score IS NOT NULL
	  AND m.best_benchmark IS NOT NULL
	  AND m.best_over_odds IS NOT NULL
	  AND m.best_under_odds IS NOT NULL
	ORDER BY m.match_time
	`
	rows, err := r.db.QueryContext(ctx, query, season)
	if err != nil {
		return nil, fmt.Errorf("failed to query settled matches: %w", err)
	}
	defer rows.Close()

	var out []SettledMatch
	for rows.Next() {
		var (
			m         SettledMatch
			matchTime sql.NullTime
		)
		if err := rows.Scan(&m.ID, &matchTime, &m.HomeTeam, &m.AwayTeam,
			&m.HomeScore, &m.AwayScore, &m.BestBenchmark, &m.BestOverOdds, &m.BestUnderOdds); err != nil {
			return nil, fmt.Errorf("failed to scan settled match: %w", err)
		}
		m.MatchTime = matchTime.Time
		out = append(out, m)
	}
	return out, rows.Err()
}

// CleanableTables lists the tables Truncate accepts, children first.
var CleanableTables = []string{"handicap_odds", "match_events", "matches_error", "matches", "teams"}

// Truncate empties the named tables in one transaction. Unknown names are rejected.
func (r *PostgresRepository) Truncate(ctx context.Context, tables ...string) (err error) {
	allowed := make(map[string]bool, len(CleanableTables))
	for _, t := range CleanableTables {
		allowed[t] = true
	}
	for _, t := range tables {
		if !allowed[t] {
			return fmt.Errorf("table %q cannot be truncated", t)
		}
	}
	if len(tables) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", "))); err != nil {
		return fmt.Errorf("truncate %s: %w", strings.Join(tables, ", "), err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	slog.Info("Truncated tables", "tables", tables)
	return nil
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// jsonText encodes v for a ::jsonb parameter. lib/pq sends []byte as bytea, so this returns text.
func jsonText(v any) (sql.NullString, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	if string(data) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
