package models

import "time"

// TopMatch is one entry of a scan summary.
type TopMatch struct {
	DocumentID string  `json:"id"`
	Title      string  `json:"title,omitempty"`
	Score      float64 `json:"similarity"`
	Tier       Tier    `json:"match_type"`
}

// ScanLog is the immutable summary of one scan run.
type ScanLog struct {
	ID           string     `json:"id" db:"id"`
	UserID       string     `json:"user_id" db:"user_id"`
	DocumentID   string     `json:"document_id" db:"document_id"`
	TopMatches   []TopMatch `json:"matched_documents" db:"top_matches"`
	OverallScore float64    `json:"similarity_score" db:"overall_score"`
	MatchesFound int        `json:"matches_count" db:"matches_found"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// ScanResult is returned to callers of a scan.
type ScanResult struct {
	ScanLogID    string     `json:"scan_id"`
	DocumentID   string     `json:"document_id"`
	MatchesFound int        `json:"matches_count"`
	TopMatches   []TopMatch `json:"top_matches"`
	Credits      int        `json:"credits_remaining"`
}
