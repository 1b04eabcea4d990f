package db

import (
	"context"
	"fmt"
	"time"
)

// PlateRead is one accepted plate reading from a detection run. Rows
// accumulate per plate, not per request, so confidence trends can be
// charted without re-parsing detection logs.
type PlateRead struct {
	ID                  int       `json:"id"`
	RequestID           string    `json:"request_id"`
	PlateNumber         string    `json:"plate_number"`
	DetectionConfidence float64   `json:"detection_confidence"`
	OCRConfidence       float64   `json:"ocr_confidence"`
	CropFile            string    `json:"crop_file"`
	HasViolations       bool      `json:"has_violations"`
	CreatedAt           time.Time `json:"created_at"`
}

// InsertPlateRead records one accepted reading. CreatedAt defaults to
// now when unset.
func (db *DB) InsertPlateRead(read *PlateRead) error {
	createdAt := read.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	hasViolationsInt := 0
	if read.HasViolations {
		hasViolationsInt = 1
	}

	query := `
		INSERT INTO plate_reads (
			request_id, plate_number, detection_confidence,
			ocr_confidence, crop_file, has_violations, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.DB.Exec(
		query,
		read.RequestID,
		normalizePlate(read.PlateNumber),
		read.DetectionConfidence,
		read.OCRConfidence,
		read.CropFile,
		hasViolationsInt,
		createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert plate read: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	read.ID = int(id)
	read.CreatedAt = createdAt
	return nil
}

// RecentPlateReads retrieves the most recent accepted readings, newest
// first.
func (db *DB) RecentPlateReads(limit int) ([]PlateRead, error) {
	query := `
		SELECT
			id, request_id, plate_number, detection_confidence,
			ocr_confidence, crop_file, has_violations, created_at
		FROM plate_reads
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := db.DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query plate reads: %w", err)
	}
	defer rows.Close()

	var reads []PlateRead
	for rows.Next() {
		var read PlateRead
		var hasViolationsInt int
		var createdAtUnix int64

		err := rows.Scan(
			&read.ID,
			&read.RequestID,
			&read.PlateNumber,
			&read.DetectionConfidence,
			&read.OCRConfidence,
			&read.CropFile,
			&hasViolationsInt,
			&createdAtUnix,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plate read: %w", err)
		}

		read.HasViolations = hasViolationsInt == 1
		read.CreatedAt = time.Unix(createdAtUnix, 0)
		reads = append(reads, read)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plate reads: %w", err)
	}

	return reads, nil
}

// OCRConfidences returns the OCR confidences of the most recent
// readings, newest first. The confidence distribution chart consumes
// this.
func (db *DB) OCRConfidences(limit int) ([]float64, error) {
	query := `
		SELECT ocr_confidence
		FROM plate_reads
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := db.DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query OCR confidences: %w", err)
	}
	defer rows.Close()

	var confidences []float64
	for rows.Next() {
		var confidence float64
		if err := rows.Scan(&confidence); err != nil {
			return nil, fmt.Errorf("failed to scan OCR confidence: %w", err)
		}
		confidences = append(confidences, confidence)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating OCR confidences: %w", err)
	}

	return confidences, nil
}

// PrunePlateReads deletes readings recorded before the cutoff and
// returns the number of rows removed.
func (db *DB) PrunePlateReads(ctx context.Context, before time.Time) (int64, error) {
	result, err := db.DB.ExecContext(ctx,
		`DELETE FROM plate_reads WHERE created_at < ?`,
		before.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune plate reads: %w", err)
	}
	return result.RowsAffected()
}
