package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdScrapeNow CommandType = "scrape_now"
	CmdScrapeZip CommandType = "scrape_zip"
	CmdPause     CommandType = "pause"
	CmdResume    CommandType = "resume"
)

// Command is a request queued in the ledger for a running daemon.
type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	Zip          string `json:"zip,omitempty"`
	ForceRefresh bool   `json:"force_refresh,omitempty"`
}
