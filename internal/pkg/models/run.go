package models

import "time"

// Checkpoint is the resume point of a run. Field names follow the checkpoint file format.
type Checkpoint struct {
	LastProcessedIndex  int       `json:"lastProcessedIndex"`
	BrowserRestartCount int       `json:"browserRestartCount"`
	Timestamp           time.Time `json:"timestamp"`
	TotalMatches        int       `json:"totalMatches"`
}

// ErrorLogEntry is one per-item failure, appended to matches_error.
type ErrorLogEntry struct {
	ItemID    string         `json:"match_id"`
	ErrorKind string         `json:"error_type"`
	Message   string         `json:"error_message"`
	Context   map[string]any `json:"error_details,omitempty"`
	SourceURL string         `json:"match_url,omitempty"`
	Stage     string         `json:"stage,omitempty"`
	Timestamp time.Time      `json:"attempted_at"`
}
