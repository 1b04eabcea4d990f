package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/platewatch/internal/httputil"
)

// violationsChart renders a bar chart of violations per day over the
// trailing window (default 30 days).
func (s *Server) violationsChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	days := 30
	if d := r.URL.Query().Get("days"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "Invalid 'days' parameter")
			return
		}
		days = parsed
	}

	counts, err := s.db.ViolationCountsByDay(days)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to query violation counts: %v", err))
		return
	}

	x := make([]string, 0, len(counts))
	y := make([]opts.BarData, 0, len(counts))
	for _, dc := range counts {
		x = append(x, dc.Day)
		y = append(y, opts.BarData{Value: dc.Count})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Violations", Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{Title: "Violations per day", Subtitle: fmt.Sprintf("trailing %d days", days)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("violations", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// confidenceChart renders a histogram of recent OCR confidences as a PNG.
func (s *Server) confidenceChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	values, err := s.db.OCRConfidences(500)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to query OCR confidences: %v", err))
		return
	}
	if len(values) == 0 {
		httputil.NotFound(w, "no plate reads recorded yet")
		return
	}

	p := plot.New()
	p.Title.Text = "OCR confidence"
	p.X.Label.Text = "confidence"
	p.Y.Label.Text = "reads"
	p.X.Min = 0
	p.X.Max = 1

	hist, err := plotter.NewHist(plotter.Values(values), 20)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to build histogram: %v", err))
		return
	}
	p.Add(hist)

	writer, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render histogram: %v", err))
		return
	}

	var buf bytes.Buffer
	if _, err := writer.WriteTo(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to encode histogram: %v", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
