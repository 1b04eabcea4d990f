// Package detect locates candidate license plate regions in a frame.
//
// Two detectors are provided. DNNDetector runs an ONNX plate model through
// the OpenCV DNN backend and is the production path. ContourDetector
// approximates plate regions from edge geometry so the service can run
// end-to-end without model weights, which is what -dev mode uses.
package detect

import (
	"image"

	"gocv.io/x/gocv"
)

// Detection is one candidate plate region. Box is in source-image pixel
// coordinates. Mask, when HasMask is set, is a single-channel map at source
// resolution with plate pixels nonzero; the holder owns it and must Close.
type Detection struct {
	Box        image.Rectangle
	Confidence float64
	Mask       gocv.Mat
	HasMask    bool
}

// Close releases the mask, if any. Safe to call more than once.
func (d *Detection) Close() {
	if d.HasMask {
		d.Mask.Close()
		d.HasMask = false
	}
}

// CloseAll releases every detection in the slice.
func CloseAll(detections []Detection) {
	for i := range detections {
		detections[i].Close()
	}
}
