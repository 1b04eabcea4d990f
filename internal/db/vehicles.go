package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrPlateRegistered is returned when registering a plate number that
// already has a vehicle row.
var ErrPlateRegistered = errors.New("plate already registered")

// ErrVehicleNotFound is returned when no vehicle matches the plate key.
var ErrVehicleNotFound = errors.New("vehicle not found")

// Vehicle represents a registered vehicle and its owner details.
// The plate number is the natural key; it is stored in normalized form
// (trimmed, uppercase) so OCR readings and manual lookups hit the same
// rows.
type Vehicle struct {
	ID               int       `json:"id"`
	PlateNumber      string    `json:"plate_number"`
	VehicleType      *string   `json:"vehicle_type"`
	Color            *string   `json:"color"`
	OwnerName        *string   `json:"owner_name"`
	OwnerPhone       *string   `json:"owner_phone"`
	OwnerEmail       *string   `json:"owner_email"`
	RegistrationDate time.Time `json:"registration_date"`
	IsActive         bool      `json:"is_active"`
	Notes            *string   `json:"notes"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// normalizePlate produces the canonical lookup key for a plate number.
// Registration, violation inserts, and lookups must all agree on this.
func normalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// RegisterVehicle creates a new vehicle row keyed by the normalized
// plate number. Returns ErrPlateRegistered when the plate already
// exists.
func (db *DB) RegisterVehicle(vehicle *Vehicle) error {
	query := `
		INSERT INTO vehicles (
			plate_number, vehicle_type, color,
			owner_name, owner_phone, owner_email,
			registration_date, is_active, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	plate := normalizePlate(vehicle.PlateNumber)
	if plate == "" {
		return fmt.Errorf("plate number is required")
	}

	registrationDate := vehicle.RegistrationDate
	if registrationDate.IsZero() {
		registrationDate = time.Now()
	}

	isActiveInt := 0
	if vehicle.IsActive {
		isActiveInt = 1
	}

	result, err := db.DB.Exec(
		query,
		plate,
		vehicle.VehicleType,
		vehicle.Color,
		vehicle.OwnerName,
		vehicle.OwnerPhone,
		vehicle.OwnerEmail,
		registrationDate.Unix(),
		isActiveInt,
		vehicle.Notes,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrPlateRegistered
		}
		return fmt.Errorf("failed to register vehicle: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	vehicle.ID = int(id)
	vehicle.PlateNumber = plate
	vehicle.RegistrationDate = registrationDate
	return nil
}

// GetVehicleByPlate retrieves a vehicle by its normalized plate number.
func (db *DB) GetVehicleByPlate(plate string) (*Vehicle, error) {
	query := `
		SELECT
			id, plate_number, vehicle_type, color,
			owner_name, owner_phone, owner_email,
			registration_date, is_active, notes,
			created_at, updated_at
		FROM vehicles
		WHERE plate_number = ?
	`

	var vehicle Vehicle
	var isActiveInt int
	var registrationUnix, createdAtUnix, updatedAtUnix int64

	err := db.DB.QueryRow(query, normalizePlate(plate)).Scan(
		&vehicle.ID,
		&vehicle.PlateNumber,
		&vehicle.VehicleType,
		&vehicle.Color,
		&vehicle.OwnerName,
		&vehicle.OwnerPhone,
		&vehicle.OwnerEmail,
		&registrationUnix,
		&isActiveInt,
		&vehicle.Notes,
		&createdAtUnix,
		&updatedAtUnix,
	)

	if err == sql.ErrNoRows {
		return nil, ErrVehicleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}

	vehicle.IsActive = isActiveInt == 1
	vehicle.RegistrationDate = time.Unix(registrationUnix, 0)
	vehicle.CreatedAt = time.Unix(createdAtUnix, 0)
	vehicle.UpdatedAt = time.Unix(updatedAtUnix, 0)

	return &vehicle, nil
}

// GetAllVehicles retrieves all registered vehicles ordered by plate.
func (db *DB) GetAllVehicles() ([]Vehicle, error) {
	query := `
		SELECT
			id, plate_number, vehicle_type, color,
			owner_name, owner_phone, owner_email,
			registration_date, is_active, notes,
			created_at, updated_at
		FROM vehicles
		ORDER BY plate_number ASC
	`

	rows, err := db.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []Vehicle
	for rows.Next() {
		var vehicle Vehicle
		var isActiveInt int
		var registrationUnix, createdAtUnix, updatedAtUnix int64

		err := rows.Scan(
			&vehicle.ID,
			&vehicle.PlateNumber,
			&vehicle.VehicleType,
			&vehicle.Color,
			&vehicle.OwnerName,
			&vehicle.OwnerPhone,
			&vehicle.OwnerEmail,
			&registrationUnix,
			&isActiveInt,
			&vehicle.Notes,
			&createdAtUnix,
			&updatedAtUnix,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}

		vehicle.IsActive = isActiveInt == 1
		vehicle.RegistrationDate = time.Unix(registrationUnix, 0)
		vehicle.CreatedAt = time.Unix(createdAtUnix, 0)
		vehicle.UpdatedAt = time.Unix(updatedAtUnix, 0)

		vehicles = append(vehicles, vehicle)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vehicles: %w", err)
	}

	return vehicles, nil
}

// UpdateVehicle updates the mutable fields of an existing vehicle.
func (db *DB) UpdateVehicle(vehicle *Vehicle) error {
	query := `
		UPDATE vehicles SET
			vehicle_type = ?,
			color = ?,
			owner_name = ?,
			owner_phone = ?,
			owner_email = ?,
			is_active = ?,
			notes = ?,
			updated_at = strftime('%s', 'now')
		WHERE plate_number = ?
	`

	isActiveInt := 0
	if vehicle.IsActive {
		isActiveInt = 1
	}

	result, err := db.DB.Exec(
		query,
		vehicle.VehicleType,
		vehicle.Color,
		vehicle.OwnerName,
		vehicle.OwnerPhone,
		vehicle.OwnerEmail,
		isActiveInt,
		vehicle.Notes,
		normalizePlate(vehicle.PlateNumber),
	)
	if err != nil {
		return fmt.Errorf("failed to update vehicle: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrVehicleNotFound
	}

	return nil
}

// CountVehicles returns the total number of registered vehicles.
func (db *DB) CountVehicles() (int, error) {
	var count int
	if err := db.DB.QueryRow("SELECT COUNT(*) FROM vehicles").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count vehicles: %w", err)
	}
	return count, nil
}
