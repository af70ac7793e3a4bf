package models

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ScrapeRun is one ingestion run for a single search target.
type ScrapeRun struct {
	ID            int64      `json:"id" db:"id"`
	UUID          uuid.UUID  `json:"uuid" db:"uuid"`
	Target        string     `json:"target" db:"target"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at" db:"finished_at"`
	Status        RunStatus  `json:"status" db:"status"`
	PagesFetched  int        `json:"pages_fetched" db:"pages_fetched"`
	FragmentsSeen int        `json:"fragments_seen" db:"fragments_seen"`
	FeaturesNew   int        `json:"features_new" db:"features_new"`
	HistoryAdded  int        `json:"history_added" db:"history_added"`
	Skipped       int        `json:"skipped" db:"skipped"`
	Defects       int        `json:"defects" db:"defects"`
	ErrorMessage  string     `json:"error_message" db:"error_message"`
}
