package anpr

import (
	"fmt"
	"time"

	"github.com/banshee-data/platewatch/internal/ledger"
)

// DetectResponse is the body returned by the detection endpoint.
type DetectResponse struct {
	Success        bool          `json:"success"`
	Timestamp      string        `json:"timestamp"`
	ImageShape     []int         `json:"image_shape"`
	PlatesDetected []PlateResult `json:"plates_detected"`
	TotalPlates    int           `json:"total_plates"`
	SegmentedImage string        `json:"segmented_image"`
}

// PlateResult is one accepted plate in a detection response. ID is the
// detection index within the frame, so skipped detections leave gaps.
type PlateResult struct {
	ID                  int             `json:"id"`
	PlateNumber         string          `json:"plate_number"`
	DetectionConfidence float64         `json:"detection_confidence"`
	OCRConfidence       float64         `json:"ocr_confidence"`
	CroppedPlateImage   string          `json:"cropped_plate_image"`
	BBox                BBox            `json:"bbox"`
	Violations          ViolationReport `json:"violations"`
	OwnerInfo           OwnerReport     `json:"owner_info"`
	AlertStatus         AlertStatus     `json:"alert_status"`
}

// BBox is the detection rectangle in source pixel coordinates.
type BBox struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Confidence float64 `json:"confidence"`
}

// ViolationReport carries the plate's aggregated ledger verdict inside a
// detection response.
type ViolationReport struct {
	HasViolations     bool              `json:"has_violations"`
	ViolationCount    int               `json:"violation_count"`
	TotalFine         float64           `json:"total_fine"`
	IsFlagged         bool              `json:"is_flagged"`
	LastViolationDate *string           `json:"last_violation_date"`
	ViolationDetails  []ViolationDetail `json:"violation_details"`
}

// ViolationDetail is the abbreviated per-violation record embedded in a
// detection response. Optional columns serialize as null, never omitted.
type ViolationDetail struct {
	ID          int      `json:"id"`
	Type        string   `json:"type"`
	Date        string   `json:"date"`
	Location    *string  `json:"location"`
	FineAmount  *float64 `json:"fine_amount"`
	IsPaid      bool     `json:"is_paid"`
	Description *string  `json:"description"`
	Speed       *float64 `json:"speed"`
	SpeedLimit  *float64 `json:"speed_limit"`
}

// OwnerReport mirrors the owner lookup in the response. Every key is always
// present; an unregistered plate reports found false with null fields and
// is_active true.
type OwnerReport struct {
	Found        bool    `json:"found"`
	OwnerName    *string `json:"owner_name"`
	OwnerID      *int    `json:"owner_id"`
	OwnerPhone   *string `json:"owner_phone"`
	OwnerEmail   *string `json:"owner_email"`
	VehicleType  *string `json:"vehicle_type"`
	VehicleColor *string `json:"vehicle_color"`
	IsActive     bool    `json:"is_active"`
}

// AlertStatus is the per-plate alert banner.
type AlertStatus struct {
	IsFlagged  bool   `json:"is_flagged"`
	AlertLevel string `json:"alert_level"`
	Message    string `json:"message"`
}

func assembleViolations(summary *ledger.Summary) ViolationReport {
	report := ViolationReport{
		HasViolations:    summary.HasViolations,
		ViolationCount:   summary.ViolationCount,
		TotalFine:        summary.TotalFine,
		IsFlagged:        summary.HasViolations,
		ViolationDetails: make([]ViolationDetail, 0, len(summary.ViolationDetails)),
	}

	if summary.LastViolationDate != nil {
		last := summary.LastViolationDate.Format(time.RFC3339)
		report.LastViolationDate = &last
	}

	for _, v := range summary.ViolationDetails {
		report.ViolationDetails = append(report.ViolationDetails, ViolationDetail{
			ID:          v.ID,
			Type:        string(v.ViolationType),
			Date:        v.ViolationDate.Format(time.RFC3339),
			Location:    v.Location,
			FineAmount:  v.FineAmount,
			IsPaid:      v.IsPaid,
			Description: v.Description,
			Speed:       v.Speed,
			SpeedLimit:  v.SpeedLimit,
		})
	}
	return report
}

func assembleOwner(owner *ledger.Owner) OwnerReport {
	report := OwnerReport{
		Found:        owner.Found,
		OwnerName:    owner.OwnerName,
		OwnerID:      owner.VehicleID,
		OwnerPhone:   owner.OwnerPhone,
		OwnerEmail:   owner.OwnerEmail,
		VehicleType:  owner.VehicleType,
		VehicleColor: owner.VehicleColor,
		IsActive:     true,
	}
	if owner.IsActive != nil {
		report.IsActive = *owner.IsActive
	}
	return report
}

func assembleAlert(summary *ledger.Summary) AlertStatus {
	if summary.HasViolations {
		return AlertStatus{
			IsFlagged:  true,
			AlertLevel: "high",
			Message:    fmt.Sprintf("⚠️ %d violations found", summary.ViolationCount),
		}
	}
	return AlertStatus{AlertLevel: "normal", Message: "✓ No violations"}
}
