package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/banshee-data/platewatch/internal/db"
	"github.com/banshee-data/platewatch/internal/httputil"
	"github.com/banshee-data/platewatch/internal/monitoring"
)

type vehicleInfoResponse struct {
	Found       bool    `json:"found"`
	ID          int     `json:"id"`
	PlateNumber string  `json:"plate_number"`
	VehicleType *string `json:"vehicle_type"`
	Color       *string `json:"color"`
	OwnerName   *string `json:"owner_name"`
	OwnerPhone  *string `json:"owner_phone"`
	IsActive    bool    `json:"is_active"`
}

func (s *Server) registerVehicle(w http.ResponseWriter, r *http.Request) {
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

	vehicle := &db.Vehicle{
		PlateNumber: plate,
		VehicleType: optionalString(q, "vehicle_type"),
		Color:       optionalString(q, "color"),
		OwnerName:   optionalString(q, "owner_name"),
		OwnerPhone:  optionalString(q, "owner_phone"),
		OwnerEmail:  optionalString(q, "owner_email"),
		IsActive:    true,
	}

	err := s.db.RegisterVehicle(vehicle)
	switch {
	case errors.Is(err, db.ErrPlateRegistered):
		httputil.WriteJSONOK(w, writeResult{
			Success:     false,
			Message:     "Vehicle already registered",
			PlateNumber: plate,
		})
	case err != nil:
		httputil.WriteJSONOK(w, writeResult{
			Success:     false,
			Message:     "Error: " + err.Error(),
			PlateNumber: plate,
		})
	default:
		httputil.WriteJSONOK(w, writeResult{
			Success:     true,
			Message:     fmt.Sprintf("Vehicle registered (ID: %d)", vehicle.ID),
			PlateNumber: plate,
		})
	}
}

func (s *Server) vehicleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	plate := strings.TrimPrefix(r.URL.Path, "/vehicles/info/")
	if plate == "" {
		httputil.BadRequest(w, "plate number is required")
		return
	}

	vehicle, err := s.db.GetVehicleByPlate(plate)
	if err != nil {
		if !errors.Is(err, db.ErrVehicleNotFound) {
			monitoring.Logf("vehicle lookup failed for plate %s: %v", plate, err)
		}
		httputil.WriteJSONOK(w, map[string]interface{}{
			"found":        false,
			"plate_number": plate,
		})
		return
	}

	httputil.WriteJSONOK(w, vehicleInfoResponse{
		Found:       true,
		ID:          vehicle.ID,
		PlateNumber: vehicle.PlateNumber,
		VehicleType: vehicle.VehicleType,
		Color:       vehicle.Color,
		OwnerName:   vehicle.OwnerName,
		OwnerPhone:  vehicle.OwnerPhone,
		IsActive:    vehicle.IsActive,
	})
}
