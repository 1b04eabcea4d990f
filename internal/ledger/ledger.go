// Package ledger aggregates stored violation and registration records into
// the per-plate verdicts the detection pipeline and the check endpoints
// report. Lookups are exact-match on the canonical plate key; a plate with
// no records is a normal outcome, not an error.
package ledger

import (
	"errors"
	"strings"
	"time"

	"github.com/banshee-data/platewatch/internal/db"
	"github.com/banshee-data/platewatch/internal/monitoring"
)

// NormalizeKey canonicalizes a plate string for store lookups. Registration,
// violation inserts, and every lookup path must agree on this form.
func NormalizeKey(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// Summary is the aggregated violation view for one plate.
type Summary struct {
	PlateNumber       string               `json:"plate_number"`
	HasViolations     bool                 `json:"has_violations"`
	ViolationCount    int                  `json:"violation_count"`
	TotalFine         float64              `json:"total_fine"`
	LastViolationDate *time.Time           `json:"last_violation_date"`
	ViolationDetails  []db.ViolationRecord `json:"violation_details"`
}

// Owner is the registration lookup result attached to a detected plate.
// Found=false carries no other fields; a plate can have violations with no
// registered owner.
type Owner struct {
	Found        bool    `json:"found"`
	VehicleID    *int    `json:"vehicle_id,omitempty"`
	OwnerName    *string `json:"owner_name,omitempty"`
	OwnerPhone   *string `json:"owner_phone,omitempty"`
	OwnerEmail   *string `json:"owner_email,omitempty"`
	VehicleType  *string `json:"vehicle_type,omitempty"`
	VehicleColor *string `json:"vehicle_color,omitempty"`
	IsActive     *bool   `json:"is_active,omitempty"`
}

// Matcher answers violation and owner lookups against the record store.
type Matcher struct {
	db *db.DB
}

func NewMatcher(database *db.DB) *Matcher {
	return &Matcher{db: database}
}

// CheckPlate returns the violation summary for a plate. Store read failures
// are logged and reported as the empty summary so a flaky store degrades a
// verdict to "no known violations" instead of failing the whole detection.
func (m *Matcher) CheckPlate(plate string) *Summary {
	key := NormalizeKey(plate)
	summary := &Summary{
		PlateNumber:      key,
		ViolationDetails: []db.ViolationRecord{},
	}

	records, err := m.db.ViolationsByPlate(key)
	if err != nil {
		monitoring.Logf("violation lookup failed for plate %s: %v", key, err)
		return summary
	}
	if len(records) == 0 {
		return summary
	}

	summary.HasViolations = true
	summary.ViolationCount = len(records)
	summary.ViolationDetails = records

	var last time.Time
	for _, rec := range records {
		if rec.FineAmount != nil {
			summary.TotalFine += *rec.FineAmount
		}
		if rec.ViolationDate.After(last) {
			last = rec.ViolationDate
		}
	}
	summary.LastViolationDate = &last

	return summary
}

// OwnerInfo returns the registration record for a plate, or Found=false when
// the plate is not registered. Like CheckPlate, read failures degrade to the
// not-found result.
func (m *Matcher) OwnerInfo(plate string) *Owner {
	vehicle, err := m.db.GetVehicleByPlate(plate)
	if err != nil {
		if !errors.Is(err, db.ErrVehicleNotFound) {
			monitoring.Logf("owner lookup failed for plate %s: %v", NormalizeKey(plate), err)
		}
		return &Owner{Found: false}
	}

	return &Owner{
		Found:        true,
		VehicleID:    &vehicle.ID,
		OwnerName:    vehicle.OwnerName,
		OwnerPhone:   vehicle.OwnerPhone,
		OwnerEmail:   vehicle.OwnerEmail,
		VehicleType:  vehicle.VehicleType,
		VehicleColor: vehicle.Color,
		IsActive:     &vehicle.IsActive,
	}
}
