package models

import "time"

// RefreshRun records one pass of fetching fills from the backend.
type RefreshRun struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	LookbackDays int       `json:"lookback_days"`
	Cutoff       int64     `json:"cutoff"`
	Pages        int       `json:"pages"`
	Fetched      int       `json:"fetched"`
	Stored       int64     `json:"stored"`
	Rejected     int       `json:"rejected"`
	Error        string    `json:"error,omitempty"`
}
