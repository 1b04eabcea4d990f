package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/banshee-data/platewatch/internal/httputil"
	"github.com/banshee-data/platewatch/internal/monitoring"
	"github.com/banshee-data/platewatch/internal/security"
)

// detectPlates accepts a multipart image upload, runs the detection
// pipeline, and returns the per-plate results with violation verdicts.
func (s *Server) detectPlates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if !s.modelLoaded() {
		httputil.ServiceUnavailable(w, "Model not loaded")
		return
	}

	target, err := s.displayUnits(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("failed to parse upload: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "missing 'file' field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("failed to read upload: %v", err))
		return
	}

	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		httputil.BadRequest(w, "Invalid image format")
		return
	}
	if img.Empty() {
		img.Close()
		httputil.BadRequest(w, "Invalid image format")
		return
	}
	defer img.Close()

	s.saveUpload(header.Filename, data)

	resp, err := s.pipeline.ProcessImage(r.Context(), img, header.Filename)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Detection error: %v", err))
		return
	}

	for i := range resp.PlatesDetected {
		convertDetailSpeeds(resp.PlatesDetected[i].Violations.ViolationDetails, target)
	}

	httputil.WriteJSONOK(w, resp)
}

// saveUpload keeps a copy of the uploaded image for offline review. The
// write is best effort; failures only log.
func (s *Server) saveUpload(filename string, data []byte) {
	name := fmt.Sprintf("%s_%s", s.clock.Now().Format("20060102_150405"),
		security.SanitizeFilename(filename))
	path := filepath.Join(s.uploadDir, name)
	if err := security.ValidatePathWithinDirectory(path, s.uploadDir); err != nil {
		monitoring.Logf("rejected upload path %s: %v", name, err)
		return
	}
	if err := s.fs.WriteFile(path, data, 0644); err != nil {
		monitoring.Logf("failed to save upload %s: %v", name, err)
		return
	}
	monitoring.Debugf("saved upload %s (%d bytes)", name, len(data))
}
