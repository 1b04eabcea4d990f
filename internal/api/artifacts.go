package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/platewatch/internal/httputil"
	"github.com/banshee-data/platewatch/internal/security"
)

type croppedPlatesResponse struct {
	Plates          []string `json:"plates"`
	Count           int      `json:"count"`
	ViewURLTemplate string   `json:"view_url_template,omitempty"`
}

// serveResult serves an annotated detection image from the results
// directory.
func (s *Server) serveResult(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/results/")
	s.serveArtifact(w, r, s.resultsDir, name, "Image not found")
}

// serveCroppedPlate serves a saved plate crop.
func (s *Server) serveCroppedPlate(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/cropped-plate/")
	s.serveArtifact(w, r, s.cropsDir, name, "Plate image not found")
}

func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, dir, name, missingMsg string) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	if err := security.ValidateArtifactName(name); err != nil {
		httputil.BadRequest(w, "Invalid filename")
		return
	}

	path := filepath.Join(dir, name)
	if !s.fs.Exists(path) {
		httputil.NotFound(w, missingMsg)
		return
	}
	if err := security.ValidatePathWithinDirectory(path, dir); err != nil {
		httputil.BadRequest(w, "Invalid filename")
		return
	}

	data, err := s.fs.ReadFile(path)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to read %s: %v", name, err))
		return
	}

	contentType := "image/jpeg"
	if strings.EqualFold(filepath.Ext(name), ".png") {
		contentType = "image/png"
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(data)
}

// listCroppedPlates lists saved plate crops in reverse name order.
func (s *Server) listCroppedPlates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	entries, err := s.fs.ReadDir(s.cropsDir)
	if err != nil {
		// A crops directory that does not exist yet is the empty listing.
		httputil.WriteJSONOK(w, croppedPlatesResponse{Plates: []string{}, Count: 0})
		return
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	resp := croppedPlatesResponse{Plates: names, Count: len(names)}
	if len(names) > 0 {
		resp.ViewURLTemplate = "/cropped-plate/{filename}"
	}
	httputil.WriteJSONOK(w, resp)
}
