package anpr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/platewatch/internal/db"
	"github.com/banshee-data/platewatch/internal/ledger"
)

func TestAssembleViolationsEmpty(t *testing.T) {
	report := assembleViolations(&ledger.Summary{
		PlateNumber:      "ABC1234",
		ViolationDetails: []db.ViolationRecord{},
	})

	assert.False(t, report.HasViolations)
	assert.False(t, report.IsFlagged)
	assert.Nil(t, report.LastViolationDate)
	require.NotNil(t, report.ViolationDetails)
	assert.Empty(t, report.ViolationDetails)
}

func TestAssembleViolationsDetails(t *testing.T) {
	when := time.Date(2024, 1, 12, 14, 30, 0, 0, time.UTC)
	loc := "Main St & 5th Ave"
	summary := &ledger.Summary{
		PlateNumber:       "XYZ789",
		HasViolations:     true,
		ViolationCount:    1,
		TotalFine:         75,
		LastViolationDate: &when,
		ViolationDetails: []db.ViolationRecord{{
			ID:            7,
			PlateNumber:   "XYZ789",
			ViolationType: db.ViolationSpeeding,
			ViolationDate: when,
			Location:      &loc,
			Speed:         floatPtr(92),
			SpeedLimit:    floatPtr(60),
			FineAmount:    floatPtr(75),
		}},
	}

	report := assembleViolations(summary)
	assert.True(t, report.HasViolations)
	assert.True(t, report.IsFlagged)
	require.NotNil(t, report.LastViolationDate)
	assert.Equal(t, "2024-01-12T14:30:00Z", *report.LastViolationDate)

	require.Len(t, report.ViolationDetails, 1)
	detail := report.ViolationDetails[0]
	assert.Equal(t, 7, detail.ID)
	assert.Equal(t, "speeding", detail.Type)
	assert.Equal(t, "2024-01-12T14:30:00Z", detail.Date)
	require.NotNil(t, detail.Location)
	assert.Equal(t, loc, *detail.Location)
	require.NotNil(t, detail.Speed)
	assert.InDelta(t, 92, *detail.Speed, 1e-9)
	assert.False(t, detail.IsPaid)
	assert.Nil(t, detail.Description)
}

func TestAssembleOwnerUnregistered(t *testing.T) {
	report := assembleOwner(&ledger.Owner{Found: false})

	assert.False(t, report.Found)
	assert.Nil(t, report.OwnerName)
	assert.Nil(t, report.OwnerID)
	assert.Nil(t, report.OwnerPhone)
	assert.Nil(t, report.OwnerEmail)
	assert.Nil(t, report.VehicleType)
	assert.Nil(t, report.VehicleColor)

	// Unknown vehicles are treated as active until registration says otherwise.
	assert.True(t, report.IsActive)
}

func TestAssembleOwnerInactiveVehicle(t *testing.T) {
	inactive := false
	id := 12
	name := "Ada Reyes"
	report := assembleOwner(&ledger.Owner{
		Found:     true,
		VehicleID: &id,
		OwnerName: &name,
		IsActive:  &inactive,
	})

	assert.True(t, report.Found)
	require.NotNil(t, report.OwnerID)
	assert.Equal(t, 12, *report.OwnerID)
	assert.False(t, report.IsActive)
}

func TestAssembleAlert(t *testing.T) {
	clean := assembleAlert(&ledger.Summary{})
	assert.False(t, clean.IsFlagged)
	assert.Equal(t, "normal", clean.AlertLevel)
	assert.Equal(t, "✓ No violations", clean.Message)

	flagged := assembleAlert(&ledger.Summary{HasViolations: true, ViolationCount: 3})
	assert.True(t, flagged.IsFlagged)
	assert.Equal(t, "high", flagged.AlertLevel)
	assert.Equal(t, "⚠️ 3 violations found", flagged.Message)
}
