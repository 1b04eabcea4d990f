package api

import (
	_ "embed"
	"html/template"
	"net/http"

	"github.com/banshee-data/platewatch/internal/db"
	"github.com/banshee-data/platewatch/internal/httputil"
	"github.com/banshee-data/platewatch/internal/monitoring"
	"github.com/banshee-data/platewatch/internal/version"
)

//go:embed status.html
var statusHTML string

var statusTemplate = template.Must(template.New("status").Parse(statusHTML))

type statusPageData struct {
	Version         string
	Units           string
	ModelLoaded     bool
	TotalVehicles   int
	TotalViolations int
	RecentRuns      []db.DetectionLog
	RecentReads     []db.PlateRead
}

// statusPage renders the operator dashboard at the root path.
func (s *Server) statusPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		httputil.NotFound(w, "not found")
		return
	}
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	data := statusPageData{
		Version:     version.Version,
		Units:       s.units,
		ModelLoaded: s.modelLoaded(),
	}
	if status, err := s.db.Status(); err == nil {
		data.TotalVehicles = status.TotalVehicles
		data.TotalViolations = status.TotalViolations
	}
	if runs, err := s.db.RecentDetectionLogs(10); err == nil {
		data.RecentRuns = runs
	}
	if reads, err := s.db.RecentPlateReads(10); err == nil {
		data.RecentReads = reads
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusTemplate.Execute(w, data); err != nil {
		monitoring.Logf("failed to render status page: %v", err)
	}
}
