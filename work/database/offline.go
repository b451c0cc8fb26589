package database

import (
	"fmt"
	"time"
)

// OfflineStreamRow is a channel found offline during a run.
type OfflineStreamRow struct {
	ID             int64
	RunID          string
	URL            string
	Name           string
	Classification string
	Reason         string
	CheckedAt      time.Time
}

// MarkStreamOffline records an offline channel for a run.
func (db *DB) MarkStreamOffline(runID, url, name, classification, reason string) error {
	_, err := db.Exec(`
		INSERT INTO offline_streams (run_id, url, name, classification, reason, checked_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, url) DO UPDATE SET
			name = excluded.name,
			classification = excluded.classification,
			reason = excluded.reason,
			checked_at = excluded.checked_at
	`, runID, url, name, classification, reason, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to mark stream offline: %w", err)
	}
	return nil
}

// LoadOfflineStreams returns the offline channels of a run.
func (db *DB) LoadOfflineStreams(runID string) ([]OfflineStreamRow, error) {
	rows, err := db.Query(`
		SELECT id, run_id, url, name, classification, reason, checked_at
		FROM offline_streams
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load offline streams: %w", err)
	}
	defer rows.Close()

	var out []OfflineStreamRow
	for rows.Next() {
		var r OfflineStreamRow
		var checked int64
		if err := rows.Scan(&r.ID, &r.RunID, &r.URL, &r.Name, &r.Classification, &r.Reason, &checked); err != nil {
			return nil, fmt.Errorf("failed to scan offline stream: %w", err)
		}
		r.CheckedAt = time.Unix(checked, 0)
		out = append(out, r)
	}

	return out, rows.Err()
}

// CleanupOldOfflineStreams removes records older than olderThan.
func (db *DB) CleanupOldOfflineStreams(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).Unix()
	result, err := db.Exec("DELETE FROM offline_streams WHERE checked_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old offline streams: %w", err)
	}
	return result.RowsAffected()
}
