package models

// RawIncident is an unvalidated timeline incident as read from the summary view.
type RawIncident struct {
	Description string `json:"description"`
	IconHTML    string `json:"icon_html,omitempty"`
	Side        Side   `json:"side,omitempty"`
	// SideSource names the resolver that decided Side.
	SideSource string `json:"side_source,omitempty"`
}

// RawStatistic is one category/home/away triple from the statistics view.
type RawStatistic struct {
	Category  string `json:"category"`
	HomeValue string `json:"home_value"`
	AwayValue string `json:"away_value"`
}

// RawOddsRow is one bookmaker row of the over/under odds table.
type RawOddsRow struct {
	Handicap  string `json:"handicap"`
	Bookmaker string `json:"bookmaker"`
	Over      string `json:"over"`
	Under     string `json:"under"`
}

// RawTeam holds a participant as shown on the page.
type RawTeam struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RawScore holds score text fields.
type RawScore struct {
	Home           string `json:"home"`
	Away           string `json:"away"`
	RegulationTime string `json:"regulation_time,omitempty"`
	Penalties      string `json:"penalties,omitempty"`
}

// RawFragmentBundle is the per-item extraction output before normalization.
type RawFragmentBundle struct {
	ItemID       string         `json:"item_id"`
	Link         string         `json:"link"`
	Stage        string         `json:"stage"`
	Date         string         `json:"date"`
	Status       string         `json:"status"`
	Home         RawTeam        `json:"home"`
	Away         RawTeam        `json:"away"`
	Score        RawScore       `json:"score"`
	TimelineText string         `json:"timeline_text,omitempty"`
	Incidents    []RawIncident  `json:"incidents"`
	Statistics   []RawStatistic `json:"statistics"`
	// OddsRows is nil when the odds view had no table.
	OddsRows []RawOddsRow `json:"odds_rows"`
}
