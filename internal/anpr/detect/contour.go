package detect

import (
	"context"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Filter bounds for plate-shaped edge blobs.
const (
	contourMinArea   = 1000
	contourMaxArea   = 50000
	contourMinAspect = 2.0
	contourMaxAspect = 6.0
	contourMinWidth  = 80
	contourMinHeight = 20
)

// contourConfidence is reported for every contour hit; edge geometry has no
// model score to offer.
const contourConfidence = 0.5

// ContourDetector approximates plate regions from edge geometry. It backs
// -dev mode, where the service must run without model weights.
type ContourDetector struct{}

func NewContourDetector() *ContourDetector {
	return &ContourDetector{}
}

// Detect finds plate-shaped contours: grayscale, blur, Canny edges, a wide
// morphological close to fuse character edges into blobs, then area and
// aspect-ratio filters. Each detection carries a filled-contour mask.
func (d *ContourDetector) Detect(ctx context.Context, img gocv.Mat) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img.Empty() {
		return nil, nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, 30, 200)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(17, 3))
	defer kernel.Close()

	morphed := gocv.NewMat()
	defer morphed.Close()
	gocv.MorphologyEx(edges, &morphed, gocv.MorphClose, kernel)

	contours := gocv.FindContours(morphed, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var detections []Detection
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)

		area := gocv.ContourArea(contour)
		if area < contourMinArea || area > contourMaxArea {
			continue
		}

		rect := gocv.BoundingRect(contour)
		aspect := float64(rect.Dx()) / float64(rect.Dy())
		if aspect < contourMinAspect || aspect > contourMaxAspect {
			continue
		}
		if rect.Dx() < contourMinWidth || rect.Dy() < contourMinHeight {
			continue
		}

		mask := gocv.Zeros(img.Rows(), img.Cols(), gocv.MatTypeCV8U)
		poly := gocv.NewPointsVectorFromPoints([][]image.Point{contour.ToPoints()})
		gocv.FillPoly(&mask, poly, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		poly.Close()

		detections = append(detections, Detection{
			Box:        rect,
			Confidence: contourConfidence,
			Mask:       mask,
			HasMask:    true,
		})
	}

	return detections, nil
}

// Close implements the detector contract; there is nothing to release.
func (d *ContourDetector) Close() error { return nil }
