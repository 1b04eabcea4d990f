package db

import (
	"testing"
	"time"
)

// Helper functions for creating pointer values
func strPtr(s string) *string {
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}

// registerTestVehicle registers a vehicle with owner details populated.
// This is a helper for tests that need a complete registration to look up.
func registerTestVehicle(t *testing.T, db *DB, plate string) *Vehicle {
	t.Helper()

	vehicle := &Vehicle{
		PlateNumber: plate,
		VehicleType: strPtr("sedan"),
		Color:       strPtr("blue"),
		OwnerName:   strPtr("Test Owner"),
		OwnerPhone:  strPtr("555-0100"),
		OwnerEmail:  strPtr("owner@example.com"),
		IsActive:    true,
	}

	if err := db.RegisterVehicle(vehicle); err != nil {
		t.Fatalf("RegisterVehicle failed: %v", err)
	}

	return vehicle
}

// addTestViolation records a violation for plate with the given fine and
// date. A nil fine stores NULL, exercising the sum-of-non-null rule.
func addTestViolation(t *testing.T, db *DB, plate string, violationType ViolationType, fine *float64, date time.Time) *ViolationRecord {
	t.Helper()

	violation := &ViolationRecord{
		PlateNumber:   plate,
		ViolationType: violationType,
		ViolationDate: date,
		Location:      strPtr("Main St and 5th Ave"),
		FineAmount:    fine,
	}

	if err := db.AddViolation(violation); err != nil {
		t.Fatalf("AddViolation failed: %v", err)
	}

	return violation
}
