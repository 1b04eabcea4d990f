package api

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/banshee-data/platewatch/internal/db"
	"github.com/banshee-data/platewatch/internal/testutil"
)

func TestViolationsChart(t *testing.T) {
	server, database := setupTestServer(t)
	seedViolation(t, database, &db.ViolationRecord{
		PlateNumber:   "ABC1234",
		ViolationType: db.ViolationSpeeding,
	})

	req := testutil.NewTestRequest(http.MethodGet, "/charts/violations")
	w := testutil.NewTestRecorder()
	server.violationsChart(w, req)

	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("Expected HTML content type, got %s", ct)
	}
	if !strings.Contains(w.Body.String(), "Violations per day") {
		t.Error("Expected the chart title in the page")
	}
}

func TestViolationsChartBadDays(t *testing.T) {
	server, _ := setupTestServer(t)

	for _, days := range []string{"soon", "0", "-3"} {
		req := testutil.NewTestRequest(http.MethodGet, "/charts/violations?days="+days)
		w := testutil.NewTestRecorder()
		server.violationsChart(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected days=%s rejected with 400, got %d", days, w.Code)
		}
	}
}

func TestConfidenceChartNoData(t *testing.T) {
	server, _ := setupTestServer(t)

	req := testutil.NewTestRequest(http.MethodGet, "/charts/confidence.png")
	w := testutil.NewTestRecorder()
	server.confidenceChart(w, req)

	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
	body := decodeJSONMap(t, w)
	if body["error"] != "no plate reads recorded yet" {
		t.Errorf("Expected no-data error, got %v", body["error"])
	}
}

func TestConfidenceChart(t *testing.T) {
	server, database := setupTestServer(t)
	for _, conf := range []float64{0.42, 0.65, 0.91} {
		read := &db.PlateRead{
			RequestID:           "det_test",
			PlateNumber:         "ABC1234",
			DetectionConfidence: 0.9,
			OCRConfidence:       conf,
			CropFile:            "plate_0.jpg",
		}
		if err := database.InsertPlateRead(read); err != nil {
			t.Fatalf("failed to insert plate read: %v", err)
		}
	}

	req := testutil.NewTestRequest(http.MethodGet, "/charts/confidence.png")
	w := testutil.NewTestRecorder()
	server.confidenceChart(w, req)

	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %s", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG\r\n\x1a\n")) {
		t.Error("Expected a PNG payload")
	}
}

// failingWriter rejects every body write, like a client that hung up
// mid-download.
type failingWriter struct {
	header http.Header
	status int
}

func (w *failingWriter) Header() http.Header {
	if w.header == nil {
		w.header = make(http.Header)
	}
	return w.header
}

func (w *failingWriter) WriteHeader(code int) { w.status = code }

func (w *failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestConfidenceChartClientGone(t *testing.T) {
	server, database := setupTestServer(t)
	read := &db.PlateRead{
		RequestID:           "det_test",
		PlateNumber:         "ABC1234",
		DetectionConfidence: 0.9,
		OCRConfidence:       0.8,
		CropFile:            "plate_0.jpg",
	}
	if err := database.InsertPlateRead(read); err != nil {
		t.Fatalf("failed to insert plate read: %v", err)
	}

	req := testutil.NewTestRequest(http.MethodGet, "/charts/confidence.png")
	w := &failingWriter{}
	server.confidenceChart(w, req)

	if w.status == http.StatusInternalServerError {
		t.Error("Expected no error status once the image response started")
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png untouched after a failed write, got %s", ct)
	}
}
