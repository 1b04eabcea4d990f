package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/platewatch/internal/anpr"
	"github.com/banshee-data/platewatch/internal/db"
	"github.com/banshee-data/platewatch/internal/httputil"
	"github.com/banshee-data/platewatch/internal/units"
)

// writeResult is the structured outcome of the store write endpoints.
// Expected conflicts (duplicate registration) come back as success=false
// with a message, not as HTTP errors.
type writeResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	PlateNumber string `json:"plate_number"`
}

type violationCheckResponse struct {
	PlateNumber    string               `json:"plate_number"`
	HasViolations  bool                 `json:"has_violations"`
	ViolationCount int                  `json:"violation_count"`
	TotalFine      float64              `json:"total_fine"`
	LastViolation  *string              `json:"last_violation"`
	Violations     []db.ViolationRecord `json:"violations"`
}

// displayUnits resolves the ?units= override against the configured display
// units. Stored speeds are m/s.
func (s *Server) displayUnits(r *http.Request) (string, error) {
	u := r.URL.Query().Get("units")
	if u == "" {
		return s.units, nil
	}
	if !units.IsValid(u) {
		return "", fmt.Errorf("invalid units %q: valid values are %s", u, units.GetValidUnitsString())
	}
	return u, nil
}

func convertRecordSpeeds(records []db.ViolationRecord, target string) {
	for i := range records {
		if records[i].Speed != nil {
			v := units.ConvertSpeed(*records[i].Speed, target)
			records[i].Speed = &v
		}
		if records[i].SpeedLimit != nil {
			v := units.ConvertSpeed(*records[i].SpeedLimit, target)
			records[i].SpeedLimit = &v
		}
	}
}

func convertDetailSpeeds(details []anpr.ViolationDetail, target string) {
	for i := range details {
		if details[i].Speed != nil {
			v := units.ConvertSpeed(*details[i].Speed, target)
			details[i].Speed = &v
		}
		if details[i].SpeedLimit != nil {
			v := units.ConvertSpeed(*details[i].SpeedLimit, target)
			details[i].SpeedLimit = &v
		}
	}
}

func (s *Server) checkViolations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	plate := strings.TrimPrefix(r.URL.Path, "/violations/check/")
	if plate == "" {
		httputil.BadRequest(w, "plate number is required")
		return
	}

	target, err := s.displayUnits(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	summary := s.matcher.CheckPlate(plate)

	resp := violationCheckResponse{
		PlateNumber:    summary.PlateNumber,
		HasViolations:  summary.HasViolations,
		ViolationCount: summary.ViolationCount,
		TotalFine:      summary.TotalFine,
		Violations:     summary.ViolationDetails,
	}
	if summary.LastViolationDate != nil {
		last := summary.LastViolationDate.Format(time.RFC3339)
		resp.LastViolation = &last
	}
	convertRecordSpeeds(resp.Violations, target)

	httputil.WriteJSONOK(w, resp)
}

func optionalString(q url.Values, key string) *string {
	v := q.Get(key)
	if v == "" {
		return nil
	}
	return &v
}

func optionalFloat(q url.Values, key string) (*float64, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid '%s' parameter", key)
	}
	return &v, nil
}

func (s *Server) addViolation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	plate := q.Get("plate_number")
	if plate == "" {
		httputil.BadRequest(w, "plate_number is required")
		return
	}

	violationType := db.ViolationType(q.Get("violation_type"))
	if !violationType.IsValid() {
		httputil.BadRequest(w, fmt.Sprintf("invalid violation_type %q", q.Get("violation_type")))
		return
	}

	record := &db.ViolationRecord{
		PlateNumber:   plate,
		ViolationType: violationType,
		Location:      optionalString(q, "location"),
		Description:   optionalString(q, "description"),
	}

	var err error
	if record.Speed, err = optionalFloat(q, "speed"); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if record.SpeedLimit, err = optionalFloat(q, "speed_limit"); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if record.FineAmount, err = optionalFloat(q, "fine_amount"); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	if err := s.db.AddViolation(record); err != nil {
		httputil.WriteJSONOK(w, writeResult{
			Success:     false,
			Message:     "Error: " + err.Error(),
			PlateNumber: plate,
		})
		return
	}

	httputil.WriteJSONOK(w, writeResult{
		Success:     true,
		Message:     fmt.Sprintf("Violation recorded (ID: %d)", record.ID),
		PlateNumber: plate,
	})
}
