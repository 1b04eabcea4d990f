package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/platewatch/internal/db"
)

func setupLedgerDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "ledger_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func addViolation(t *testing.T, database *db.DB, plate string, fine *float64, date time.Time) {
	t.Helper()
	err := database.AddViolation(&db.ViolationRecord{
		PlateNumber:   plate,
		ViolationType: db.ViolationSpeeding,
		ViolationDate: date,
		FineAmount:    fine,
	})
	require.NoError(t, err)
}

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"abc1234", "ABC1234"},
		{"  ABC1234  ", "ABC1234"},
		{" ab-12-cd ", "AB-12-CD"},
		{"34 tbt 77", "34 TBT 77"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeKey(tc.in))
	}
}

func TestCheckPlateNoViolations(t *testing.T) {
	database := setupLedgerDB(t)
	matcher := NewMatcher(database)

	summary := matcher.CheckPlate("CLEAN01")

	assert.Equal(t, "CLEAN01", summary.PlateNumber)
	assert.False(t, summary.HasViolations)
	assert.Equal(t, 0, summary.ViolationCount)
	assert.Equal(t, 0.0, summary.TotalFine)
	assert.Nil(t, summary.LastViolationDate)
	assert.NotNil(t, summary.ViolationDetails)
	assert.Empty(t, summary.ViolationDetails)
}

func TestCheckPlateAggregatesFines(t *testing.T) {
	database := setupLedgerDB(t)
	matcher := NewMatcher(database)

	earlier := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	later := time.Date(2026, 3, 15, 17, 30, 0, 0, time.UTC)
	addViolation(t, database, "FINE123", floatPtr(50.0), earlier)
	addViolation(t, database, "FINE123", floatPtr(75.0), later)

	summary := matcher.CheckPlate("FINE123")

	assert.True(t, summary.HasViolations)
	assert.Equal(t, 2, summary.ViolationCount)
	assert.Equal(t, 125.0, summary.TotalFine)
	require.NotNil(t, summary.LastViolationDate)
	assert.Equal(t, later.Unix(), summary.LastViolationDate.Unix())
	assert.Len(t, summary.ViolationDetails, 2)
}

func TestCheckPlateNullFineCountsZero(t *testing.T) {
	database := setupLedgerDB(t)
	matcher := NewMatcher(database)

	addViolation(t, database, "NOFINE1", nil, time.Now())
	addViolation(t, database, "NOFINE1", floatPtr(100.0), time.Now())

	summary := matcher.CheckPlate("NOFINE1")

	assert.Equal(t, 2, summary.ViolationCount)
	assert.Equal(t, 100.0, summary.TotalFine)
}

func TestCheckPlateNormalizesKey(t *testing.T) {
	database := setupLedgerDB(t)
	matcher := NewMatcher(database)

	addViolation(t, database, "LDG1234", floatPtr(40.0), time.Now())

	summary := matcher.CheckPlate("  ldg1234  ")

	assert.Equal(t, "LDG1234", summary.PlateNumber)
	assert.True(t, summary.HasViolations)
	assert.Equal(t, 1, summary.ViolationCount)
}

func TestCheckPlateReadFailure(t *testing.T) {
	database := setupLedgerDB(t)
	matcher := NewMatcher(database)

	addViolation(t, database, "GONE001", floatPtr(10.0), time.Now())
	require.NoError(t, database.Close())

	// A failed read degrades to the empty summary, never an error
	summary := matcher.CheckPlate("GONE001")

	assert.False(t, summary.HasViolations)
	assert.Equal(t, 0, summary.ViolationCount)
	assert.Empty(t, summary.ViolationDetails)
}

func TestOwnerInfoFound(t *testing.T) {
	database := setupLedgerDB(t)
	matcher := NewMatcher(database)

	err := database.RegisterVehicle(&db.Vehicle{
		PlateNumber: "OWNED01",
		VehicleType: strPtr("sedan"),
		Color:       strPtr("blue"),
		OwnerName:   strPtr("Dana Smith"),
		OwnerPhone:  strPtr("555-0142"),
		OwnerEmail:  strPtr("dana@example.com"),
		IsActive:    true,
	})
	require.NoError(t, err)

	owner := matcher.OwnerInfo("owned01")

	assert.True(t, owner.Found)
	require.NotNil(t, owner.VehicleID)
	assert.Greater(t, *owner.VehicleID, 0)
	require.NotNil(t, owner.OwnerName)
	assert.Equal(t, "Dana Smith", *owner.OwnerName)
	require.NotNil(t, owner.VehicleColor)
	assert.Equal(t, "blue", *owner.VehicleColor)
	require.NotNil(t, owner.IsActive)
	assert.True(t, *owner.IsActive)
}

func TestOwnerInfoNotFound(t *testing.T) {
	database := setupLedgerDB(t)
	matcher := NewMatcher(database)

	owner := matcher.OwnerInfo("GHOST99")

	assert.False(t, owner.Found)
	assert.Nil(t, owner.OwnerName)
	assert.Nil(t, owner.IsActive)
}

func TestViolationsWithoutRegisteredOwner(t *testing.T) {
	database := setupLedgerDB(t)
	matcher := NewMatcher(database)

	addViolation(t, database, "ORPHAN1", floatPtr(60.0), time.Now())

	summary := matcher.CheckPlate("ORPHAN1")
	owner := matcher.OwnerInfo("ORPHAN1")

	assert.True(t, summary.HasViolations)
	assert.False(t, owner.Found)
}
