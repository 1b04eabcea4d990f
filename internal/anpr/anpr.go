// Package anpr composes plate detection, region extraction, crop
// conditioning, character recognition, and the violation ledger into the
// image-processing pipeline behind the detection endpoint.
package anpr

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/banshee-data/platewatch/internal/anpr/detect"
	"github.com/banshee-data/platewatch/internal/anpr/enhance"
	"github.com/banshee-data/platewatch/internal/anpr/ocr"
	"github.com/banshee-data/platewatch/internal/anpr/region"
	"github.com/banshee-data/platewatch/internal/db"
	"github.com/banshee-data/platewatch/internal/fsutil"
	"github.com/banshee-data/platewatch/internal/ledger"
	"github.com/banshee-data/platewatch/internal/monitoring"
	"github.com/banshee-data/platewatch/internal/timeutil"
)

// Detector locates candidate plate regions in a frame.
type Detector interface {
	Detect(ctx context.Context, img gocv.Mat) ([]detect.Detection, error)
	Close() error
}

// Recognizer reads text spans out of a conditioned plate crop.
type Recognizer interface {
	Recognize(ctx context.Context, img gocv.Mat) ([]ocr.Span, error)
	Close() error
}

// Pipeline runs the full detect, extract, condition, read, match sequence
// for one frame and assembles the response. Construct one at startup and
// share it across requests; the oracles serialize their own inference calls.
type Pipeline struct {
	Detector   Detector
	Recognizer Recognizer
	Extractor  *region.Extractor
	Matcher    *ledger.Matcher
	Store      *db.DB
	Clock      timeutil.Clock
	FS         fsutil.FileSystem
	ResultsDir string

	// MinOCRConfidence rejects readings below it, before format validation.
	MinOCRConfidence float64
}

// ProcessImage runs the pipeline over one decoded frame. sourceFile is the
// uploaded filename, recorded in the audit row. Per-detection failures are
// skipped and counted, never surfaced as errors; an error return means the
// detection oracle itself failed.
func (p *Pipeline) ProcessImage(ctx context.Context, img gocv.Mat, sourceFile string) (*DetectResponse, error) {
	start := p.Clock.Now()
	requestID := "det_" + uuid.NewString()

	detections, err := p.Detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}
	defer detect.CloseAll(detections)

	resp := &DetectResponse{
		Success:        true,
		Timestamp:      start.Format(time.RFC3339),
		ImageShape:     []int{img.Rows(), img.Cols(), img.Channels()},
		PlatesDetected: []PlateResult{},
	}

	var skippedSmall, skippedEmpty, skippedUnreadable int

	for idx := range detections {
		det := detections[idx]

		cand, skip := p.Extractor.Extract(img, det, idx)
		switch skip {
		case region.SkipTooSmall:
			skippedSmall++
			monitoring.Debugf("request %s: detection %d skipped (%s): box %dx%d",
				requestID, idx, skip, det.Box.Dx(), det.Box.Dy())
			continue
		case region.SkipEmptyCrop:
			skippedEmpty++
			monitoring.Debugf("request %s: detection %d skipped (%s)", requestID, idx, skip)
			continue
		}

		reading, ok := p.readPlate(ctx, cand)
		cropFile := cand.Filename
		cand.Close()
		if !ok {
			skippedUnreadable++
			continue
		}

		summary := p.Matcher.CheckPlate(reading.Text)
		owner := p.Matcher.OwnerInfo(reading.Text)

		resp.PlatesDetected = append(resp.PlatesDetected, PlateResult{
			ID:                  idx,
			PlateNumber:         reading.Text,
			DetectionConfidence: det.Confidence,
			OCRConfidence:       reading.Confidence,
			CroppedPlateImage:   cropFile,
			BBox: BBox{
				X1:         float64(det.Box.Min.X),
				Y1:         float64(det.Box.Min.Y),
				X2:         float64(det.Box.Max.X),
				Y2:         float64(det.Box.Max.Y),
				Confidence: det.Confidence,
			},
			Violations:  assembleViolations(summary),
			OwnerInfo:   assembleOwner(owner),
			AlertStatus: assembleAlert(summary),
		})

		read := &db.PlateRead{
			RequestID:           requestID,
			PlateNumber:         reading.Text,
			DetectionConfidence: det.Confidence,
			OCRConfidence:       reading.Confidence,
			CropFile:            cropFile,
			HasViolations:       summary.HasViolations,
		}
		if err := p.Store.InsertPlateRead(read); err != nil {
			monitoring.Logf("failed to record plate read %s: %v", reading.Text, err)
		}
	}

	resp.TotalPlates = len(resp.PlatesDetected)
	resp.SegmentedImage = p.saveAnnotated(img, detections, resp.PlatesDetected)

	entry := &db.DetectionLog{
		RequestID:         requestID,
		SourceFile:        sourceFile,
		Detections:        len(detections),
		PlatesRead:        resp.TotalPlates,
		SkippedSmall:      skippedSmall,
		SkippedEmpty:      skippedEmpty,
		SkippedUnreadable: skippedUnreadable,
		DurationMs:        p.Clock.Since(start).Milliseconds(),
	}
	if err := p.Store.InsertDetectionLog(entry); err != nil {
		monitoring.Logf("failed to record detection run %s: %v", requestID, err)
	}

	monitoring.Logf("✓ detection complete: %d plates from %d detections (%s)",
		resp.TotalPlates, len(detections), requestID)
	return resp, nil
}

// readPlate conditions the crop, runs it through the recognizer, and gates
// the normalized reading on confidence and plate format. ok reports whether
// the reading survived.
func (p *Pipeline) readPlate(ctx context.Context, cand *region.Candidate) (ocr.Reading, bool) {
	conditioned := enhance.Prepare(cand.Crop)
	defer conditioned.Close()

	spans, err := p.Recognizer.Recognize(ctx, conditioned)
	if err != nil {
		monitoring.Logf("OCR failed for crop %s: %v", cand.Filename, err)
		return ocr.Reading{}, false
	}

	reading := ocr.Normalize(spans)
	if reading.Text == "" || reading.Confidence < p.MinOCRConfidence {
		monitoring.Debugf("crop %s: low OCR confidence %.2f (text %q)",
			cand.Filename, reading.Confidence, reading.Text)
		return reading, false
	}
	if !ocr.ValidatePlate(reading.Text) {
		monitoring.Debugf("crop %s: invalid plate format %q", cand.Filename, reading.Text)
		return reading, false
	}
	return reading, true
}
