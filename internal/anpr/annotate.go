package anpr

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/banshee-data/platewatch/internal/anpr/detect"
	"github.com/banshee-data/platewatch/internal/monitoring"
)

var (
	annotateGreen = color.RGBA{G: 200, A: 255}
	annotateRed   = color.RGBA{R: 220, A: 255}
	annotateGray  = color.RGBA{R: 160, G: 160, B: 160, A: 255}
)

// saveAnnotated draws every detection onto a copy of the frame and writes it
// under a timestamped name in the results directory. Accepted plates get a
// labeled box, green for clean and red for flagged; detections that produced
// no reading get a thin gray box. The write is best effort and the filename
// is returned either way.
func (p *Pipeline) saveAnnotated(img gocv.Mat, detections []detect.Detection, accepted []PlateResult) string {
	name := fmt.Sprintf("plate_detection_%s.jpg", p.Clock.Now().Format("20060102_150405"))

	annotated := img.Clone()
	defer annotated.Close()

	byIndex := make(map[int]*PlateResult, len(accepted))
	for i := range accepted {
		byIndex[accepted[i].ID] = &accepted[i]
	}

	for idx := range detections {
		box := detections[idx].Box
		result, ok := byIndex[idx]
		if !ok {
			gocv.Rectangle(&annotated, box, annotateGray, 1)
			continue
		}

		boxColor := annotateGreen
		label := result.PlateNumber
		if result.AlertStatus.IsFlagged {
			boxColor = annotateRed
			label = fmt.Sprintf("%s (%d)", result.PlateNumber, result.Violations.ViolationCount)
		}
		gocv.Rectangle(&annotated, box, boxColor, 2)

		origin := image.Pt(box.Min.X, box.Min.Y-8)
		if origin.Y < 12 {
			origin.Y = box.Max.Y + 16
		}
		gocv.PutText(&annotated, label, origin, gocv.FontHersheySimplex, 0.6, boxColor, 2)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, annotated)
	if err != nil {
		monitoring.Logf("failed to encode annotated image %s: %v", name, err)
		return name
	}
	defer buf.Close()

	if err := p.FS.WriteFile(filepath.Join(p.ResultsDir, name), buf.GetBytes(), 0644); err != nil {
		monitoring.Logf("failed to save annotated image %s: %v", name, err)
		return name
	}
	monitoring.Debugf("saved annotated image %s (%d detections)", name, len(detections))
	return name
}
