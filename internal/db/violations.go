package db

import (
	"fmt"
	"time"
)

// ViolationType enumerates the recognized violation categories.
type ViolationType string

const (
	ViolationSpeeding       ViolationType = "speeding"
	ViolationRedLight       ViolationType = "red_light"
	ViolationParking        ViolationType = "parking"
	ViolationNoSeatbelt     ViolationType = "no_seatbelt"
	ViolationExpiredLicense ViolationType = "expired_license"
	ViolationUnregistered   ViolationType = "unregistered"
	ViolationOther          ViolationType = "other"
)

// IsValid reports whether the violation type is one of the recognized
// categories.
func (t ViolationType) IsValid() bool {
	switch t {
	case ViolationSpeeding, ViolationRedLight, ViolationParking,
		ViolationNoSeatbelt, ViolationExpiredLicense,
		ViolationUnregistered, ViolationOther:
		return true
	}
	return false
}

// ViolationRecord represents a single recorded violation. The plate
// number is a value key, not a foreign key: violations can exist for
// plates with no registered vehicle.
type ViolationRecord struct {
	ID            int           `json:"id"`
	PlateNumber   string        `json:"plate_number"`
	ViolationType ViolationType `json:"violation_type"`
	ViolationDate time.Time     `json:"violation_date"`
	Location      *string       `json:"location"`
	Speed         *float64      `json:"speed"`
	SpeedLimit    *float64      `json:"speed_limit"`
	FineAmount    *float64      `json:"fine_amount"`
	IsPaid        bool          `json:"is_paid"`
	PaidDate      *time.Time    `json:"paid_date"`
	ImagePath     *string       `json:"image_path"`
	Description   *string       `json:"description"`
	OfficerID     *string       `json:"officer_id"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// AddViolation records a violation against the normalized plate number.
// The violation date defaults to now when unset.
func (db *DB) AddViolation(violation *ViolationRecord) error {
	if !violation.ViolationType.IsValid() {
		return fmt.Errorf("invalid violation type: %s", violation.ViolationType)
	}

	plate := normalizePlate(violation.PlateNumber)
	if plate == "" {
		return fmt.Errorf("plate number is required")
	}

	violationDate := violation.ViolationDate
	if violationDate.IsZero() {
		violationDate = time.Now()
	}

	isPaidInt := 0
	if violation.IsPaid {
		isPaidInt = 1
	}

	var paidDateUnix *int64
	if violation.PaidDate != nil {
		unix := violation.PaidDate.Unix()
		paidDateUnix = &unix
	}

	query := `
		INSERT INTO violations (
			plate_number, violation_type, violation_date, location,
			speed, speed_limit, fine_amount,
			is_paid, paid_date, image_path, description, officer_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.DB.Exec(
		query,
		plate,
		string(violation.ViolationType),
		violationDate.Unix(),
		violation.Location,
		violation.Speed,
		violation.SpeedLimit,
		violation.FineAmount,
		isPaidInt,
		paidDateUnix,
		violation.ImagePath,
		violation.Description,
		violation.OfficerID,
	)
	if err != nil {
		return fmt.Errorf("failed to add violation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	violation.ID = int(id)
	violation.PlateNumber = plate
	violation.ViolationDate = violationDate
	return nil
}

// ViolationsByPlate retrieves all violations for the normalized plate
// number, newest first. A plate with no violations returns an empty
// slice, not an error.
func (db *DB) ViolationsByPlate(plate string) ([]ViolationRecord, error) {
	query := `
		SELECT
			id, plate_number, violation_type, violation_date, location,
			speed, speed_limit, fine_amount,
			is_paid, paid_date, image_path, description, officer_id,
			created_at, updated_at
		FROM violations
		WHERE plate_number = ?
		ORDER BY violation_date DESC
	`

	rows, err := db.DB.Query(query, normalizePlate(plate))
	if err != nil {
		return nil, fmt.Errorf("failed to query violations: %w", err)
	}
	defer rows.Close()

	var violations []ViolationRecord
	for rows.Next() {
		var violation ViolationRecord
		var violationType string
		var isPaidInt int
		var violationDateUnix, createdAtUnix, updatedAtUnix int64
		var paidDateUnix *int64

		err := rows.Scan(
			&violation.ID,
			&violation.PlateNumber,
			&violationType,
			&violationDateUnix,
			&violation.Location,
			&violation.Speed,
			&violation.SpeedLimit,
			&violation.FineAmount,
			&isPaidInt,
			&paidDateUnix,
			&violation.ImagePath,
			&violation.Description,
			&violation.OfficerID,
			&createdAtUnix,
			&updatedAtUnix,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}

		violation.ViolationType = ViolationType(violationType)
		violation.IsPaid = isPaidInt == 1
		violation.ViolationDate = time.Unix(violationDateUnix, 0)
		if paidDateUnix != nil {
			paidDate := time.Unix(*paidDateUnix, 0)
			violation.PaidDate = &paidDate
		}
		violation.CreatedAt = time.Unix(createdAtUnix, 0)
		violation.UpdatedAt = time.Unix(updatedAtUnix, 0)

		violations = append(violations, violation)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating violations: %w", err)
	}

	return violations, nil
}

// MarkViolationPaid marks a violation as paid as of now.
func (db *DB) MarkViolationPaid(id int) error {
	query := `
		UPDATE violations SET
			is_paid = 1,
			paid_date = strftime('%s', 'now'),
			updated_at = strftime('%s', 'now')
		WHERE id = ?
	`

	result, err := db.DB.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to mark violation paid: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("violation not found")
	}

	return nil
}

// CountViolations returns the total number of recorded violations.
func (db *DB) CountViolations() (int, error) {
	var count int
	if err := db.DB.QueryRow("SELECT COUNT(*) FROM violations").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count violations: %w", err)
	}
	return count, nil
}

// DayCount is one day's violation total, for the activity chart.
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// ViolationCountsByDay aggregates violation counts per calendar day
// (UTC) over the trailing number of days.
func (db *DB) ViolationCountsByDay(days int) ([]DayCount, error) {
	cutoff := time.Now().AddDate(0, 0, -days).Unix()

	query := `
		SELECT date(violation_date, 'unixepoch') AS day, COUNT(*)
		FROM violations
		WHERE violation_date >= ?
		GROUP BY day
		ORDER BY day ASC
	`

	rows, err := db.DB.Query(query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query violation counts: %w", err)
	}
	defer rows.Close()

	var counts []DayCount
	for rows.Next() {
		var dc DayCount
		if err := rows.Scan(&dc.Day, &dc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan violation count: %w", err)
		}
		counts = append(counts, dc)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating violation counts: %w", err)
	}

	return counts, nil
}
