package detect

import (
	"context"
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

func TestDetectionCloseReleasesMask(t *testing.T) {
	det := Detection{
		Box:        image.Rect(10, 10, 110, 40),
		Confidence: 0.9,
		Mask:       gocv.Zeros(50, 120, gocv.MatTypeCV8U),
		HasMask:    true,
	}

	det.Close()
	if det.HasMask {
		t.Error("expected HasMask to be cleared after Close")
	}

	// Second close must be a no-op, not a double free.
	det.Close()
}

func TestCloseAll(t *testing.T) {
	detections := []Detection{
		{Box: image.Rect(0, 0, 100, 30), Confidence: 0.8},
		{
			Box:        image.Rect(10, 10, 120, 45),
			Confidence: 0.7,
			Mask:       gocv.Zeros(60, 140, gocv.MatTypeCV8U),
			HasMask:    true,
		},
	}

	CloseAll(detections)

	for i, det := range detections {
		if det.HasMask {
			t.Errorf("detection %d still holds a mask after CloseAll", i)
		}
	}
}

func TestContourDetectorFindsPlateShapedRegion(t *testing.T) {
	img := gocv.Zeros(480, 640, gocv.MatTypeCV8UC3)
	defer img.Close()

	// A bright plate-shaped rectangle on a dark frame: 240x60, aspect 4.0.
	plate := image.Rect(200, 220, 440, 280)
	gocv.Rectangle(&img, plate, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)

	detector := NewContourDetector()
	detections, err := detector.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	defer CloseAll(detections)

	if len(detections) == 0 {
		t.Fatal("expected at least one detection for a plate-shaped region")
	}

	var hit *Detection
	for i := range detections {
		if detections[i].Box.Overlaps(plate) {
			hit = &detections[i]
			break
		}
	}
	if hit == nil {
		t.Fatalf("no detection overlaps %v, got %v", plate, detections)
	}

	aspect := float64(hit.Box.Dx()) / float64(hit.Box.Dy())
	if aspect < contourMinAspect || aspect > contourMaxAspect {
		t.Errorf("detection aspect %.2f outside plate range", aspect)
	}

	if !hit.HasMask {
		t.Fatal("contour detection should carry a mask")
	}
	if nz := gocv.CountNonZero(hit.Mask); nz == 0 {
		t.Error("contour mask has no set pixels")
	}
}

func TestContourDetectorIgnoresSmallRegions(t *testing.T) {
	img := gocv.Zeros(480, 640, gocv.MatTypeCV8UC3)
	defer img.Close()

	// 50x12 is under both the area and minimum-dimension cuts.
	gocv.Rectangle(&img, image.Rect(100, 100, 150, 112), color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)

	detector := NewContourDetector()
	detections, err := detector.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	defer CloseAll(detections)

	if len(detections) != 0 {
		t.Errorf("expected no detections for a tiny region, got %d", len(detections))
	}
}

func TestContourDetectorEmptyFrame(t *testing.T) {
	img := gocv.Zeros(480, 640, gocv.MatTypeCV8UC3)
	defer img.Close()

	detector := NewContourDetector()
	detections, err := detector.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	defer CloseAll(detections)

	if len(detections) != 0 {
		t.Errorf("expected no detections on a blank frame, got %d", len(detections))
	}
}

func TestContourDetectorCancelledContext(t *testing.T) {
	img := gocv.Zeros(480, 640, gocv.MatTypeCV8UC3)
	defer img.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	detector := NewContourDetector()
	if _, err := detector.Detect(ctx, img); err == nil {
		t.Error("expected error from cancelled context")
	}
}
