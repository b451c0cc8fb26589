package database

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	RunStatusRunning     = "running"
	RunStatusCompleted   = "completed"
	RunStatusInterrupted = "interrupted"
	RunStatusFailed      = "failed"
)

// Run is one validation pass as recorded in the history.
type Run struct {
	ID         string
	Source     string
	Mode       string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Total      int
	Skipped    int
	Online     int
	Status     string
}

// StartRun records the beginning of a run.
func (db *DB) StartRun(id, source, mode string, started time.Time) error {
	_, err := db.Exec(`
		INSERT INTO runs (id, source, mode, started_at, status)
		VALUES (?, ?, ?, ?, ?)
	`, id, source, mode, started.Unix(), RunStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// FinishRun stores the final counts and status of a run.
func (db *DB) FinishRun(id string, total, skipped, online int, status string) error {
	_, err := db.Exec(`
		UPDATE runs
		SET finished_at = ?, total = ?, skipped = ?, online = ?, status = ?
		WHERE id = ?
	`, time.Now().Unix(), total, skipped, online, status, id)
	if err != nil {
		return fmt.Errorf("failed to record run end: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (db *DB) RecentRuns(limit int) ([]Run, error) {
	rows, err := db.Query(`
		SELECT id, source, mode, started_at, finished_at, total, skipped, online, status
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Source, &r.Mode, &started, &finished, &r.Total, &r.Skipped, &r.Online, &r.Status); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.Unix(started, 0)
		if finished.Valid {
			r.FinishedAt = time.Unix(finished.Int64, 0)
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}
