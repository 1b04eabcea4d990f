// Package api is the HTTP surface of the plate service: the detection
// endpoint, violation and registration endpoints, artifact serving, charts,
// and the operator status page.
package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/platewatch/internal/anpr"
	"github.com/banshee-data/platewatch/internal/config"
	"github.com/banshee-data/platewatch/internal/db"
	"github.com/banshee-data/platewatch/internal/fsutil"
	"github.com/banshee-data/platewatch/internal/httputil"
	"github.com/banshee-data/platewatch/internal/ledger"
	"github.com/banshee-data/platewatch/internal/timeutil"
	"github.com/banshee-data/platewatch/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	pipeline *anpr.Pipeline
	db       *db.DB
	matcher  *ledger.Matcher
	fs       fsutil.FileSystem
	clock    timeutil.Clock

	units          string
	uploadDir      string
	resultsDir     string
	cropsDir       string
	maxUploadBytes int64
}

// NewServer wires the handlers to the pipeline and stores. pipeline may be
// nil when no detection model is loaded; detection endpoints then answer 503
// while the record-store endpoints keep working.
func NewServer(pipeline *anpr.Pipeline, database *db.DB, matcher *ledger.Matcher, fs fsutil.FileSystem, clock timeutil.Clock, cfg *config.ServiceConfig) *Server {
	return &Server{
		pipeline:       pipeline,
		db:             database,
		matcher:        matcher,
		fs:             fs,
		clock:          clock,
		units:          cfg.GetSpeedUnits(),
		uploadDir:      cfg.GetUploadDir(),
		resultsDir:     cfg.GetResultsDir(),
		cropsDir:       cfg.GetCropsDir(),
		maxUploadBytes: cfg.GetMaxUploadBytes(),
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.statusPage)
	mux.HandleFunc("/health", s.health)
	mux.HandleFunc("/detect-plates", s.detectPlates)
	mux.HandleFunc("/violations/check/", s.checkViolations)
	mux.HandleFunc("/violations/add", s.addViolation)
	mux.HandleFunc("/vehicles/register", s.registerVehicle)
	mux.HandleFunc("/vehicles/info/", s.vehicleInfo)
	mux.HandleFunc("/database/status", s.databaseStatus)
	mux.HandleFunc("/results/", s.serveResult)
	mux.HandleFunc("/cropped-plate/", s.serveCroppedPlate)
	mux.HandleFunc("/api/cropped-plates", s.listCroppedPlates)
	mux.HandleFunc("/charts/violations", s.violationsChart)
	mux.HandleFunc("/charts/confidence.png", s.confidenceChart)
	return mux
}

// modelLoaded reports whether the detection pipeline is ready to serve.
func (s *Server) modelLoaded() bool {
	return s.pipeline != nil && s.pipeline.Detector != nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	database := "connected"
	status := "ok"
	if _, err := s.db.Status(); err != nil {
		database = "error"
		status = "degraded"
	}
	if !s.modelLoaded() {
		status = "degraded"
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":       status,
		"model_loaded": s.modelLoaded(),
		"database":     database,
		"version":      version.Version,
	})
}

func (s *Server) databaseStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	status, err := s.db.Status()
	if err != nil {
		httputil.WriteJSONOK(w, map[string]interface{}{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	httputil.WriteJSONOK(w, status)
}
