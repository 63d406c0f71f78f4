package models

import "time"

// WorkItem is one match to extract, addressed by its position in the ordered work list.
type WorkItem struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
}

// Side of the pitch an incident belongs to.
type Side string

const (
	SideUnknown Side = ""
	SideHome    Side = "home"
	SideAway    Side = "away"
)

// EventType is the canonical incident classification.
type EventType string

const (
	EventGoal         EventType = "goal"
	EventSubstitution EventType = "substitution"
	EventCard         EventType = "card"
	EventOther        EventType = "other"
)

// Team is upserted independently of matches and never duplicated by id.
type Team struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Sport  string `json:"sport"`
	Nation string `json:"nation"`
}

// MatchEvent is one normalized timeline incident.
type MatchEvent struct {
	Type      EventType `json:"type"`
	Minute    *int      `json:"minute,omitempty"`
	Stoppage  *int      `json:"stoppage,omitempty"`
	Side      Side      `json:"side,omitempty"`
	Player    string    `json:"player,omitempty"`
	Assist    string    `json:"assist,omitempty"`
	PlayerOut string    `json:"player_out,omitempty"`
	PlayerIn  string    `json:"player_in,omitempty"`
	CardColor string    `json:"card_color,omitempty"`
	Text      string    `json:"description"`
}

// StatPair holds the home/away values of one statistics category.
type StatPair struct {
	Home string `json:"home"`
	Away string `json:"away"`
}

// BookmakerQuote is a single bookmaker row of an over/under line.
type BookmakerQuote struct {
	Bookmaker string `json:"bookmaker"`
	Over      string `json:"over"`
	Under     string `json:"under"`
}

// OddsLine is one handicap group with its per-side averages.
// A nil average means no numeric quote was available on that side.
type OddsLine struct {
	Handicap      string           `json:"handicap"`
	HandicapValue *float64         `json:"handicap_value,omitempty"`
	AverageOver   *float64         `json:"average_over"`
	AverageUnder  *float64         `json:"average_under"`
	Bookmakers    []BookmakerQuote `json:"bookmakers"`
}

// BestLine is the most balanced over/under market of a match.
type BestLine struct {
	HandicapValue float64 `json:"handicap_value"`
	OverOdds      float64 `json:"over_odds"`
	UnderOdds     float64 `json:"under_odds"`
}

// MatchRecord is the canonical, storage-ready representation of one work item.
type MatchRecord struct {
	ID              string              `json:"id"`
	Link            string              `json:"match_link"`
	Stage           string              `json:"stage"`
	MatchTime       time.Time           `json:"match_time"`
	Status          string              `json:"status"`
	Home            Team                `json:"home"`
	Away            Team                `json:"away"`
	HomeScore       *int                `json:"home_score"`
	AwayScore       *int                `json:"away_score"`
	RegulationTime  string              `json:"regulation_time,omitempty"`
	Penalties       string              `json:"penalties,omitempty"`
	FirstHalfScore  string              `json:"first_half_score,omitempty"`
	SecondHalfScore string              `json:"second_half_score,omitempty"`
	Season          string              `json:"season"`
	Nation          string              `json:"nation"`
	League          string              `json:"league"`
	Statistics      map[string]StatPair `json:"statistics"`
	Events          []MatchEvent        `json:"events"`
	OddsLines       []OddsLine          `json:"odds_lines,omitempty"`
	BestLine        *BestLine           `json:"best_line"`
}
