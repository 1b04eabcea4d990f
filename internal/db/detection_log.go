package db

import (
	"context"
	"fmt"
	"time"
)

// DetectionLog is the per-request audit row written after each
// detection run. Skip counters let a zero-plate response be
// reconstructed offline: every detection is either read or counted in
// one of the skip buckets.
type DetectionLog struct {
	ID                int       `json:"id"`
	RequestID         string    `json:"request_id"`
	SourceFile        string    `json:"source_file"`
	Detections        int       `json:"detections"`
	PlatesRead        int       `json:"plates_read"`
	SkippedSmall      int       `json:"skipped_small"`
	SkippedEmpty      int       `json:"skipped_empty"`
	SkippedUnreadable int       `json:"skipped_unreadable"`
	DurationMs        int64     `json:"duration_ms"`
	CreatedAt         time.Time `json:"created_at"`
}

// InsertDetectionLog records one detection run. CreatedAt defaults to
// now when unset.
func (db *DB) InsertDetectionLog(entry *DetectionLog) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO detection_logs (
			request_id, source_file, detections, plates_read,
			skipped_small, skipped_empty, skipped_unreadable,
			duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.DB.Exec(
		query,
		entry.RequestID,
		entry.SourceFile,
		entry.Detections,
		entry.PlatesRead,
		entry.SkippedSmall,
		entry.SkippedEmpty,
		entry.SkippedUnreadable,
		entry.DurationMs,
		createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert detection log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	entry.ID = int(id)
	entry.CreatedAt = createdAt
	return nil
}

// RecentDetectionLogs retrieves the most recent detection runs, newest
// first.
func (db *DB) RecentDetectionLogs(limit int) ([]DetectionLog, error) {
	query := `
		SELECT
			id, request_id, source_file, detections, plates_read,
			skipped_small, skipped_empty, skipped_unreadable,
			duration_ms, created_at
		FROM detection_logs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := db.DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query detection logs: %w", err)
	}
	defer rows.Close()

	var entries []DetectionLog
	for rows.Next() {
		var entry DetectionLog
		var createdAtUnix int64

		err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.SourceFile,
			&entry.Detections,
			&entry.PlatesRead,
			&entry.SkippedSmall,
			&entry.SkippedEmpty,
			&entry.SkippedUnreadable,
			&entry.DurationMs,
			&createdAtUnix,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan detection log: %w", err)
		}

		entry.CreatedAt = time.Unix(createdAtUnix, 0)
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating detection logs: %w", err)
	}

	return entries, nil
}

// PruneDetectionLogs deletes detection runs recorded before the cutoff
// and returns the number of rows removed.
func (db *DB) PruneDetectionLogs(ctx context.Context, before time.Time) (int64, error) {
	result, err := db.DB.ExecContext(ctx,
		`DELETE FROM detection_logs WHERE created_at < ?`,
		before.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune detection logs: %w", err)
	}
	return result.RowsAffected()
}
