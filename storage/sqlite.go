package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"listing_ledger/models"
)

// SQLiteStore keeps the run ledger: one row per ingestion run, the log lines
// each run produced, and commands queued for the daemon.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scrape_runs (
		id INTEGER PRIMARY KEY,
		uuid TEXT NOT NULL,
		target TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		pages_fetched INTEGER DEFAULT 0,
		fragments_seen INTEGER DEFAULT 0,
		features_new INTEGER DEFAULT 0,
		history_added INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		defects INTEGER DEFAULT 0,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		target TEXT
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_runs_uuid ON scrape_runs(uuid);
	CREATE INDEX IF NOT EXISTS idx_runs_target ON scrape_runs(target, started_at);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON scrape_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.ScrapeRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO scrape_runs (uuid, target, started_at, status)
		VALUES (?, ?, ?, ?)`,
		run.UUID.String(), run.Target, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.ScrapeRun) error {
	_, err := s.db.Exec(`
		UPDATE scrape_runs SET finished_at = ?, status = ?, pages_fetched = ?, fragments_seen = ?,
			features_new = ?, history_added = ?, skipped = ?, defects = ?, error_message = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.PagesFetched, run.FragmentsSeen,
		run.FeaturesNew, run.HistoryAdded, run.Skipped, run.Defects, run.ErrorMessage, run.ID)
	return err
}

func (s *SQLiteStore) GetRun(id int64) (*models.ScrapeRun, error) {
	rows, err := s.db.Query(runColumns+` FROM scrape_runs WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	runs, err := scanRuns(rows)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

// RecentRuns returns the newest runs first.
func (s *SQLiteStore) RecentRuns(limit int) ([]models.ScrapeRun, error) {
	rows, err := s.db.Query(runColumns+` FROM scrape_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return scanRuns(rows)
}

const runColumns = `
	SELECT id, uuid, target, started_at, finished_at, status, pages_fetched, fragments_seen,
		features_new, history_added, skipped, defects, COALESCE(error_message, '')`

func scanRuns(rows *sql.Rows) ([]models.ScrapeRun, error) {
	defer rows.Close()

	var runs []models.ScrapeRun
	for rows.Next() {
		var r models.ScrapeRun
		var id string
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &id, &r.Target, &r.StartedAt, &finished, &r.Status,
			&r.PagesFetched, &r.FragmentsSeen, &r.FeaturesNew, &r.HistoryAdded,
			&r.Skipped, &r.Defects, &r.ErrorMessage); err != nil {
			return nil, err
		}
		if err := r.UUID.UnmarshalText([]byte(id)); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetLastRunTime returns the start of the newest completed run for target, or
// the zero time when there is none.
func (s *SQLiteStore) GetLastRunTime(target string) (time.Time, error) {
	var lastRun time.Time
	err := s.db.QueryRow(`
		SELECT started_at FROM scrape_runs WHERE target = ? AND status = ?
		ORDER BY started_at DESC LIMIT 1`,
		target, models.RunStatusCompleted).Scan(&lastRun)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	return lastRun, err
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, target string) error {
	_, err := s.db.Exec(`
		INSERT INTO scrape_logs (run_id, timestamp, level, message, target)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, target)
	return err
}

func (s *SQLiteStore) GetRunLogs(runID int64) ([]models.ScrapeLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message, target
		FROM scrape_logs WHERE run_id = ? ORDER BY timestamp, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ScrapeLog
	for rows.Next() {
		var l models.ScrapeLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &l.Message, &l.Target); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *SQLiteStore) EnqueueCommand(cmd models.CommandType, params *models.CommandParams) error {
	var raw []byte
	if params != nil {
		var err error
		if raw, err = json.Marshal(params); err != nil {
			return err
		}
	}
	_, err := s.db.Exec(`INSERT INTO commands (command, params) VALUES (?, ?)`, cmd, string(raw))
	return err
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		if params.Valid && params.String != "" {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *SQLiteStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	if cmd.Params == nil || string(cmd.Params) == "null" {
		return &models.CommandParams{}, nil
	}
	var params models.CommandParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}
