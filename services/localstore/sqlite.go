package localstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Client is a local sqlite store for cached tick days and sync run history.
// It keeps upstream refetches off the hot path when profile learning is
// re-run for a day already seen.
type Client struct {
	db *sql.DB
}

// Open creates or opens the local database at the given path
func Open(path string) (*Client, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping local database: %w", err)
	}

	c := &Client{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("Local store opened at %s", path)
	return c, nil
}

func (c *Client) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tick_days (
		symbol TEXT NOT NULL,
		trade_date TEXT NOT NULL,
		minute_volumes TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (symbol, trade_date)
	);
	CREATE TABLE IF NOT EXISTS sync_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_name TEXT NOT NULL,
		trade_date TEXT,
		success INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		ran_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_sync_history_job ON sync_history(job_name, ran_at);
	`
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate local database: %w", err)
	}
	return nil
}

// Close closes the local database
func (c *Client) Close() error {
	return c.db.Close()
}

// LoadDay returns the cached minute volumes for a symbol and date, if any.
// Implements the learner's tick cache.
func (c *Client) LoadDay(symbol, date string) ([]float64, bool) {
	var payload string
	err := c.db.QueryRow(
		"SELECT minute_volumes FROM tick_days WHERE symbol = ? AND trade_date = ?",
		symbol, date,
	).Scan(&payload)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("Tick cache read failed for %s %s: %v", symbol, date, err)
		}
		return nil, false
	}

	var volumes []float64
	if err := json.Unmarshal([]byte(payload), &volumes); err != nil {
		log.Printf("Tick cache entry corrupt for %s %s: %v", symbol, date, err)
		return nil, false
	}
	return volumes, true
}

// SaveDay caches one day of minute volumes for a symbol
func (c *Client) SaveDay(symbol, date string, minuteVolumes []float64) error {
	payload, err := json.Marshal(minuteVolumes)
	if err != nil {
		return fmt.Errorf("failed to encode minute volumes: %w", err)
	}

	_, err = c.db.Exec(
		`INSERT INTO tick_days (symbol, trade_date, minute_volumes) VALUES (?, ?, ?)
		 ON CONFLICT(symbol, trade_date) DO UPDATE SET minute_volumes = excluded.minute_volumes`,
		symbol, date, string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to cache tick day for %s %s: %w", symbol, date, err)
	}
	return nil
}

// PruneTickDays deletes cached tick days older than the given date
func (c *Client) PruneTickDays(before string) (int64, error) {
	res, err := c.db.Exec("DELETE FROM tick_days WHERE trade_date < ?", before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune tick cache: %w", err)
	}
	deleted, _ := res.RowsAffected()
	if deleted > 0 {
		log.Printf("Pruned %d cached tick days older than %s", deleted, before)
	}
	return deleted, nil
}

// SyncRun is one recorded batch job execution.
type SyncRun struct {
	JobName   string    `json:"job_name"`
	TradeDate string    `json:"trade_date"`
	Success   int       `json:"success"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Duration  int64     `json:"duration_ms"`
	RanAt     time.Time `json:"ran_at"`
}

// RecordSyncRun appends one job execution to the history table
func (c *Client) RecordSyncRun(run SyncRun) error {
	_, err := c.db.Exec(
		`INSERT INTO sync_history (job_name, trade_date, success, skipped, failed, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.JobName, run.TradeDate, run.Success, run.Skipped, run.Failed, run.Duration,
	)
	if err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}
	return nil
}

// RecentSyncRuns returns the latest job executions, newest first
func (c *Client) RecentSyncRuns(limit int) ([]SyncRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := c.db.Query(
		`SELECT job_name, COALESCE(trade_date, ''), success, skipped, failed, duration_ms, ran_at
		 FROM sync_history ORDER BY ran_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync history: %w", err)
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var run SyncRun
		if err := rows.Scan(&run.JobName, &run.TradeDate, &run.Success, &run.Skipped,
			&run.Failed, &run.Duration, &run.RanAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
