package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/banshee-data/platewatch/internal/anpr"
	"github.com/banshee-data/platewatch/internal/anpr/detect"
	"github.com/banshee-data/platewatch/internal/anpr/ocr"
	"github.com/banshee-data/platewatch/internal/anpr/region"
	"github.com/banshee-data/platewatch/internal/config"
	"github.com/banshee-data/platewatch/internal/db"
	"github.com/banshee-data/platewatch/internal/fsutil"
	"github.com/banshee-data/platewatch/internal/ledger"
	"github.com/banshee-data/platewatch/internal/testutil"
	"github.com/banshee-data/platewatch/internal/timeutil"
)

func stringPointer(s string) *string { return &s }

// setupTestServer builds a Server over a fresh cloned database with real
// artifact directories under t.TempDir(). The pipeline is nil; detection
// tests attach one with attachTestPipeline.
func setupTestServer(t *testing.T) (*Server, *db.DB) {
	t.Helper()

	database, err := db.OpenDB(cloneAPITestDB(t))
	if err != nil {
		t.Fatalf("failed to open cloned test DB: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	root := t.TempDir()
	uploadDir := filepath.Join(root, "uploads")
	resultsDir := filepath.Join(root, "results")
	cropsDir := filepath.Join(root, "cropped_plates")
	for _, dir := range []string{uploadDir, resultsDir, cropsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}

	cfg := &config.ServiceConfig{
		UploadDir:  stringPointer(uploadDir),
		ResultsDir: stringPointer(resultsDir),
		CropsDir:   stringPointer(cropsDir),
		SpeedUnits: stringPointer("mps"),
	}

	clock := timeutil.NewMockClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
	server := NewServer(nil, database, ledger.NewMatcher(database), fsutil.OSFileSystem{}, clock, cfg)
	return server, database
}

// stubDetector returns a fixed detection set.
type stubDetector struct {
	detections []detect.Detection
}

func (d *stubDetector) Detect(ctx context.Context, img gocv.Mat) ([]detect.Detection, error) {
	out := make([]detect.Detection, len(d.detections))
	copy(out, d.detections)
	return out, nil
}

func (d *stubDetector) Close() error { return nil }

// stubRecognizer returns the same spans for every crop.
type stubRecognizer struct {
	spans []ocr.Span
}

func (r *stubRecognizer) Recognize(ctx context.Context, img gocv.Mat) ([]ocr.Span, error) {
	return r.spans, nil
}

func (r *stubRecognizer) Close() error { return nil }

// attachTestPipeline wires a pipeline with stub oracles into the server so
// the detection endpoint runs end to end without model weights.
func attachTestPipeline(s *Server, database *db.DB, detector anpr.Detector, recognizer anpr.Recognizer) {
	s.pipeline = &anpr.Pipeline{
		Detector:         detector,
		Recognizer:       recognizer,
		Extractor:        region.NewExtractor(s.clock, s.fs, s.cropsDir, 0.05),
		Matcher:          s.matcher,
		Store:            database,
		Clock:            s.clock,
		FS:               s.fs,
		ResultsDir:       s.resultsDir,
		MinOCRConfidence: 0.35,
	}
}

func decodeJSONMap(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&m); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return m
}

func TestHealthNoModel(t *testing.T) {
	server, _ := setupTestServer(t)

	req := testutil.NewTestRequest(http.MethodGet, "/health")
	w := testutil.NewTestRecorder()
	server.health(w, req)

	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	body := decodeJSONMap(t, w)
	if body["status"] != "degraded" {
		t.Errorf("Expected status degraded, got %v", body["status"])
	}
	if body["model_loaded"] != false {
		t.Errorf("Expected model_loaded false, got %v", body["model_loaded"])
	}
	if body["database"] != "connected" {
		t.Errorf("Expected database connected, got %v", body["database"])
	}
	if body["version"] == "" {
		t.Error("Expected a version string")
	}
}

func TestHealthWithModel(t *testing.T) {
	server, database := setupTestServer(t)
	attachTestPipeline(server, database, &stubDetector{}, &stubRecognizer{})

	req := testutil.NewTestRequest(http.MethodGet, "/health")
	w := testutil.NewTestRecorder()
	server.health(w, req)

	body := decodeJSONMap(t, w)
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", body["status"])
	}
	if body["model_loaded"] != true {
		t.Errorf("Expected model_loaded true, got %v", body["model_loaded"])
	}
}

func TestDatabaseStatus(t *testing.T) {
	server, database := setupTestServer(t)

	if err := database.RegisterVehicle(&db.Vehicle{PlateNumber: "ABC1234", IsActive: true}); err != nil {
		t.Fatalf("failed to register vehicle: %v", err)
	}

	req := testutil.NewTestRequest(http.MethodGet, "/database/status")
	w := testutil.NewTestRecorder()
	server.databaseStatus(w, req)

	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	body := decodeJSONMap(t, w)
	if body["status"] != "connected" {
		t.Errorf("Expected status connected, got %v", body["status"])
	}
	if body["total_vehicles"] != float64(1) {
		t.Errorf("Expected 1 vehicle, got %v", body["total_vehicles"])
	}
	if body["total_violations"] != float64(0) {
		t.Errorf("Expected 0 violations, got %v", body["total_violations"])
	}
}

func TestStatusPage(t *testing.T) {
	server, _ := setupTestServer(t)

	req := testutil.NewTestRequest(http.MethodGet, "/")
	w := testutil.NewTestRecorder()
	server.statusPage(w, req)

	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("Expected HTML content type, got %s", ct)
	}
	if !strings.Contains(w.Body.String(), "platewatch") {
		t.Error("Expected page body to mention the service name")
	}
}

func TestStatusPageUnknownPath(t *testing.T) {
	server, _ := setupTestServer(t)

	req := testutil.NewTestRequest(http.MethodGet, "/no-such-page")
	w := testutil.NewTestRecorder()
	server.statusPage(w, req)

	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
}

func TestServeMuxRoutes(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()

	req := testutil.NewTestRequest(http.MethodGet, "/health")
	w := testutil.NewTestRecorder()
	mux.ServeHTTP(w, req)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	req = testutil.NewTestRequest(http.MethodGet, "/database/status")
	w = testutil.NewTestRecorder()
	mux.ServeHTTP(w, req)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
}

func TestLoggingMiddlewarePassesThrough(t *testing.T) {
	called := false
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	req := testutil.NewTestRequest(http.MethodGet, "/anything")
	w := testutil.NewTestRecorder()
	handler.ServeHTTP(w, req)

	if !called {
		t.Fatal("Expected wrapped handler to be called")
	}
	testutil.AssertStatusCode(t, w.Code, http.StatusTeapot)
}
