package api

import (
	"math"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/platewatch/internal/db"
	"github.com/banshee-data/platewatch/internal/testutil"
)

func floatPointer(f float64) *float64 { return &f }

func seedViolation(t *testing.T, database *db.DB, record *db.ViolationRecord) {
	t.Helper()
	if err := database.AddViolation(record); err != nil {
		t.Fatalf("failed to seed violation: %v", err)
	}
}

func TestCheckViolationsCleanPlate(t *testing.T) {
	server, _ := setupTestServer(t)

	req := testutil.NewTestRequest(http.MethodGet, "/violations/check/xyz999")
	w := testutil.NewTestRecorder()
	server.checkViolations(w, req)

	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	body := decodeJSONMap(t, w)
	if body["plate_number"] != "XYZ999" {
		t.Errorf("Expected the normalized plate, got %v", body["plate_number"])
	}
	if body["has_violations"] != false {
		t.Errorf("Expected no violations, got %v", body["has_violations"])
	}
	last, present := body["last_violation"]
	if !present {
		t.Error("Expected last_violation key even without violations")
	}
	if last != nil {
		t.Errorf("Expected null last_violation, got %v", last)
	}
	violations, ok := body["violations"].([]interface{})
	if !ok {
		t.Fatalf("Expected violations to be a list even when empty, got %v", body["violations"])
	}
	if len(violations) != 0 {
		t.Errorf("Expected empty violations, got %v", violations)
	}
}

func TestCheckViolationsAggregates(t *testing.T) {
	server, database := setupTestServer(t)

	older := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 1, 12, 14, 0, 0, 0, time.UTC)
	seedViolation(t, database, &db.ViolationRecord{
		PlateNumber:   "ABC1234",
		ViolationType: db.ViolationSpeeding,
		ViolationDate: older,
		FineAmount:    floatPointer(50),
	})
	seedViolation(t, database, &db.ViolationRecord{
		PlateNumber:   "ABC1234",
		ViolationType: db.ViolationParking,
		ViolationDate: newer,
		FineAmount:    floatPointer(75),
	})

	req := testutil.NewTestRequest(http.MethodGet, "/violations/check/ABC1234")
	w := testutil.NewTestRecorder()
	server.checkViolations(w, req)

	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	body := decodeJSONMap(t, w)
	if body["has_violations"] != true {
		t.Errorf("Expected violations, got %v", body["has_violations"])
	}
	if body["violation_count"] != float64(2) {
		t.Errorf("Expected 2 violations, got %v", body["violation_count"])
	}
	if body["total_fine"] != float64(125) {
		t.Errorf("Expected total fine 125, got %v", body["total_fine"])
	}

	lastRaw, _ := body["last_violation"].(string)
	last, err := time.Parse(time.RFC3339, lastRaw)
	if err != nil {
		t.Fatalf("failed to parse last_violation %q: %v", lastRaw, err)
	}
	if last.Unix() != newer.Unix() {
		t.Errorf("Expected last violation at %v, got %v", newer, last)
	}

	violations := body["violations"].([]interface{})
	if len(violations) != 2 {
		t.Fatalf("Expected 2 violation records, got %d", len(violations))
	}
	first := violations[0].(map[string]interface{})
	if first["violation_type"] != "parking" {
		t.Errorf("Expected newest violation first, got %v", first["violation_type"])
	}
}

func TestCheckViolationsUnitsConversion(t *testing.T) {
	server, database := setupTestServer(t)

	seedViolation(t, database, &db.ViolationRecord{
		PlateNumber:   "SPD100",
		ViolationType: db.ViolationSpeeding,
		Speed:         floatPointer(10), // m/s
		SpeedLimit:    floatPointer(5),
	})

	req := testutil.NewTestRequest(http.MethodGet, "/violations/check/SPD100?units=kmph")
	w := testutil.NewTestRecorder()
	server.checkViolations(w, req)

	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	body := decodeJSONMap(t, w)
	record := body["violations"].([]interface{})[0].(map[string]interface{})
	if speed := record["speed"].(float64); math.Abs(speed-36) > 1e-6 {
		t.Errorf("Expected 36 km/h, got %v", speed)
	}
	if limit := record["speed_limit"].(float64); math.Abs(limit-18) > 1e-6 {
		t.Errorf("Expected 18 km/h limit, got %v", limit)
	}
}

func TestCheckViolationsInvalidUnits(t *testing.T) {
	server, _ := setupTestServer(t)

	req := testutil.NewTestRequest(http.MethodGet, "/violations/check/ABC1234?units=knots")
	w := testutil.NewTestRecorder()
	server.checkViolations(w, req)

	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
}

func TestCheckViolationsMissingPlate(t *testing.T) {
	server, _ := setupTestServer(t)

	req := testutil.NewTestRequest(http.MethodGet, "/violations/check/")
	w := testutil.NewTestRecorder()
	server.checkViolations(w, req)

	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
	body := decodeJSONMap(t, w)
	if body["error"] != "plate number is required" {
		t.Errorf("Expected missing-plate error, got %v", body["error"])
	}
}

func TestAddViolationSuccess(t *testing.T) {
	server, database := setupTestServer(t)

	params := url.Values{}
	params.Set("plate_number", "xyz789")
	params.Set("violation_type", "speeding")
	params.Set("fine_amount", "50")
	params.Set("speed", "25")
	params.Set("speed_limit", "15")
	params.Set("location", "Main St & 5th Ave")

	req := testutil.NewTestRequest(http.MethodPost, "/violations/add?"+params.Encode())
	w := testutil.NewTestRecorder()
	server.addViolation(w, req)

	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	body := decodeJSONMap(t, w)
	if body["success"] != true {
		t.Fatalf("Expected success, got %v", body)
	}
	if !strings.HasPrefix(body["message"].(string), "Violation recorded (ID: ") {
		t.Errorf("Expected the new ID in the message, got %v", body["message"])
	}
	if body["plate_number"] != "xyz789" {
		t.Errorf("Expected the submitted plate echoed back, got %v", body["plate_number"])
	}

	records, err := database.ViolationsByPlate("XYZ789")
	if err != nil {
		t.Fatalf("failed to read back violations: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 stored violation, got %d", len(records))
	}
	rec := records[0]
	if rec.FineAmount == nil || *rec.FineAmount != 50 {
		t.Errorf("Expected fine 50, got %v", rec.FineAmount)
	}
	if rec.Location == nil || *rec.Location != "Main St & 5th Ave" {
		t.Errorf("Expected the location stored, got %v", rec.Location)
	}
	if rec.Speed == nil || *rec.Speed != 25 {
		t.Errorf("Expected speed 25, got %v", rec.Speed)
	}
}

func TestAddViolationInvalidType(t *testing.T) {
	server, _ := setupTestServer(t)

	req := testutil.NewTestRequest(http.MethodPost, "/violations/add?plate_number=ABC1234&violation_type=jaywalking")
	w := testutil.NewTestRecorder()
	server.addViolation(w, req)

	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
	body := decodeJSONMap(t, w)
	if !strings.Contains(body["error"].(string), "jaywalking") {
		t.Errorf("Expected the rejected type in the error, got %v", body["error"])
	}
}

func TestAddViolationMissingPlate(t *testing.T) {
	server, _ := setupTestServer(t)

	req := testutil.NewTestRequest(http.MethodPost, "/violations/add?violation_type=speeding")
	w := testutil.NewTestRecorder()
	server.addViolation(w, req)

	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
	body := decodeJSONMap(t, w)
	if body["error"] != "plate_number is required" {
		t.Errorf("Expected missing-plate error, got %v", body["error"])
	}
}

func TestAddViolationBadNumber(t *testing.T) {
	server, _ := setupTestServer(t)

	req := testutil.NewTestRequest(http.MethodPost, "/violations/add?plate_number=ABC1234&violation_type=speeding&speed=fast")
	w := testutil.NewTestRecorder()
	server.addViolation(w, req)

	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
	body := decodeJSONMap(t, w)
	if body["error"] != "invalid 'speed' parameter" {
		t.Errorf("Expected bad-number error, got %v", body["error"])
	}
}

func TestAddViolationMethodNotAllowed(t *testing.T) {
	server, _ := setupTestServer(t)

	req := testutil.NewTestRequest(http.MethodGet, "/violations/add?plate_number=ABC1234&violation_type=speeding")
	w := testutil.NewTestRecorder()
	server.addViolation(w, req)

	testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
}
