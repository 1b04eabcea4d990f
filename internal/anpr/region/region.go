// Package region turns detections into persisted plate crops.
package region

import (
	"fmt"
	"image"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/banshee-data/platewatch/internal/anpr/detect"
	"github.com/banshee-data/platewatch/internal/fsutil"
	"github.com/banshee-data/platewatch/internal/monitoring"
	"github.com/banshee-data/platewatch/internal/timeutil"
)

// maskMargin pads the tight mask bounds on each side before cropping.
const maskMargin = 5

// boxPadFraction of the longer box side pads the fallback crop when no
// usable mask accompanies a detection.
const boxPadFraction = 0.1

// SkipReason explains why a detection produced no candidate.
type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipTooSmall
	SkipEmptyCrop
)

func (r SkipReason) String() string {
	switch r {
	case SkipNone:
		return "none"
	case SkipTooSmall:
		return "too small"
	case SkipEmptyCrop:
		return "empty crop"
	}
	return fmt.Sprintf("unknown(%d)", int(r))
}

// Candidate is an extracted plate region. Crop is owned by the caller and
// must be Closed. Filename is the crop's saved base name; the file itself
// may be missing if the best-effort write failed.
type Candidate struct {
	Crop     gocv.Mat
	Rect     image.Rectangle
	Filename string
}

// Close releases the crop pixels.
func (c *Candidate) Close() {
	c.Crop.Close()
}

// Extractor crops detected regions out of source frames and persists each
// crop for later retrieval. MinFraction is the noise floor: boxes narrower
// or shorter than that fraction of the shorter image side are skipped, since
// the segmentation model is prone to spurious small regions.
type Extractor struct {
	Clock       timeutil.Clock
	FS          fsutil.FileSystem
	OutputDir   string
	MinFraction float64
}

func NewExtractor(clock timeutil.Clock, fs fsutil.FileSystem, outputDir string, minFraction float64) *Extractor {
	return &Extractor{
		Clock:       clock,
		FS:          fs,
		OutputDir:   outputDir,
		MinFraction: minFraction,
	}
}

// Extract crops one detection out of img. index distinguishes crops from
// the same frame in the saved filename. A skip returns a nil candidate and
// the reason.
func (e *Extractor) Extract(img gocv.Mat, det detect.Detection, index int) (*Candidate, SkipReason) {
	minSide := float64(min(img.Cols(), img.Rows()))
	if float64(det.Box.Dx()) < e.MinFraction*minSide || float64(det.Box.Dy()) < e.MinFraction*minSide {
		return nil, SkipTooSmall
	}

	rect := e.cropRect(img, det)
	if rect.Empty() {
		return nil, SkipEmptyCrop
	}

	roi := img.Region(rect)
	crop := roi.Clone()
	roi.Close()
	if crop.Empty() {
		crop.Close()
		return nil, SkipEmptyCrop
	}

	name := fmt.Sprintf("plate_%d_%s.jpg", index, e.Clock.Now().Format("20060102_150405"))
	e.saveCrop(crop, name)

	return &Candidate{Crop: crop, Rect: rect, Filename: name}, SkipNone
}

// cropRect picks the region to crop: the tight bounds of the mask with a
// fixed margin when a usable mask is present, otherwise the detection box
// padded by a fraction of its longer side. Either way the result is clamped
// to the frame.
func (e *Extractor) cropRect(img gocv.Mat, det detect.Detection) image.Rectangle {
	bounds := image.Rect(0, 0, img.Cols(), img.Rows())

	if det.HasMask {
		if tight, ok := maskBounds(det.Mask); ok {
			return tight.Inset(-maskMargin).Intersect(bounds)
		}
	}

	pad := int(boxPadFraction * float64(max(det.Box.Dx(), det.Box.Dy())))
	return det.Box.Inset(-pad).Intersect(bounds)
}

// maskBounds returns the tight bounding rectangle of the nonzero mask
// pixels. ok is false when the mask is empty or all zero.
func maskBounds(mask gocv.Mat) (image.Rectangle, bool) {
	if mask.Empty() {
		return image.Rectangle{}, false
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var union image.Rectangle
	for i := 0; i < contours.Size(); i++ {
		union = union.Union(gocv.BoundingRect(contours.At(i)))
	}
	return union, !union.Empty()
}

// saveCrop encodes and writes the crop under name. Failures are logged and
// otherwise ignored; the crop file is an audit artifact, not a pipeline
// dependency.
func (e *Extractor) saveCrop(crop gocv.Mat, name string) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, crop)
	if err != nil {
		monitoring.Logf("failed to encode crop %s: %v", name, err)
		return
	}
	defer buf.Close()

	if err := e.FS.WriteFile(filepath.Join(e.OutputDir, name), buf.GetBytes(), 0644); err != nil {
		monitoring.Logf("failed to save crop %s: %v", name, err)
		return
	}
	monitoring.Debugf("saved crop %s (%dx%d)", name, crop.Cols(), crop.Rows())
}
