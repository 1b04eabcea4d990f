// Package enhance conditions plate crops for character recognition.
//
// The chain deskews, upscales, denoises, boosts contrast, sharpens, and
// binarizes, in that order. Every step is best-effort: whatever fails
// degrades to passing the image through rather than dropping the detection.
package enhance

import (
	"image"
	"image/color"
	"math"
	"sort"

	"gocv.io/x/gocv"

	"github.com/banshee-data/platewatch/internal/monitoring"
)

// Tilt estimates below this magnitude (degrees) are noise, not skew.
const skewThreshold = 1.0

// Prepare returns a conditioned copy of the crop, ready for the recognizer.
// The caller owns the returned Mat; src is left untouched. Output is
// single-channel binary.
func Prepare(src gocv.Mat) (out gocv.Mat) {
	var stages stageList
	defer func() {
		if r := recover(); r != nil {
			monitoring.Logf("plate conditioning failed, using raw crop: %v", r)
			out = src.Clone()
			stages.closeAll()
			return
		}
		stages.closeAllButLast()
	}()

	if src.Empty() {
		return src.Clone()
	}

	gray := toGray(&stages, src)

	if angle := skewAngle(gray); math.Abs(angle) > skewThreshold {
		gray = rotate(&stages, gray, angle)
	}

	scaled := upscale(&stages, gray)

	denoised := stages.add(gocv.NewMat())
	gocv.BilateralFilter(scaled, &denoised, 11, 17, 17)

	equalized := localContrast(&stages, denoised)

	stretched := stages.add(gocv.NewMat())
	gocv.Normalize(equalized, &stretched, 0, 255, gocv.NormMinMax)

	sharpened := sharpen(&stages, stretched)

	binary := stages.add(gocv.NewMat())
	gocv.Threshold(sharpened, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	return morphCleanup(&stages, binary)
}

// stageList records every Mat a conditioning run allocates so the fallback
// path releases them along with the normal one. The last tracked Mat is the
// chain's result.
type stageList struct {
	mats []gocv.Mat
}

func (s *stageList) add(m gocv.Mat) gocv.Mat {
	s.mats = append(s.mats, m)
	return m
}

func (s *stageList) closeAll() {
	for i := range s.mats {
		s.mats[i].Close()
	}
}

func (s *stageList) closeAllButLast() {
	for i := 0; i < len(s.mats)-1; i++ {
		s.mats[i].Close()
	}
}

func toGray(stages *stageList, src gocv.Mat) gocv.Mat {
	if src.Channels() == 1 {
		return stages.add(src.Clone())
	}
	gray := stages.add(gocv.NewMat())
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	return gray
}

// skewAngle estimates text tilt in degrees from the dominant straight lines:
// Canny edges, a Hough transform, then the median of (line angle - 90)
// across every detected line. Returns 0 when no lines are found.
func skewAngle(gray gocv.Mat) float64 {
	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLines(edges, &lines, 1, math.Pi/180, 50)

	if lines.Empty() {
		return 0
	}

	angles := make([]float64, 0, lines.Rows())
	for i := 0; i < lines.Rows(); i++ {
		theta := float64(lines.GetVecfAt(i, 0)[1])
		angles = append(angles, theta*180/math.Pi-90)
	}

	return median(angles)
}

// median computes the middle value of the sample, averaging the middle pair
// when the count is even.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// rotate turns gray by angle degrees about its center. Border pixels are
// reflected so the frame edge does not bleed black into the text area.
func rotate(stages *stageList, gray gocv.Mat, angle float64) gocv.Mat {
	center := image.Pt(gray.Cols()/2, gray.Rows()/2)
	m := gocv.GetRotationMatrix2D(center, angle, 1.0)
	defer m.Close()

	rotated := stages.add(gocv.NewMat())
	gocv.WarpAffineWithParams(gray, &rotated, m, image.Pt(gray.Cols(), gray.Rows()),
		gocv.InterpolationLinear, gocv.BorderReflect, color.RGBA{})
	return rotated
}

// upscale enlarges small crops so character strokes span enough pixels for
// the recognizer.
func upscale(stages *stageList, gray gocv.Mat) gocv.Mat {
	scale := chooseScale(gray.Rows(), gray.Cols())
	scaled := stages.add(gocv.NewMat())
	gocv.Resize(gray, &scaled, image.Pt(gray.Cols()*scale, gray.Rows()*scale), 0, 0, gocv.InterpolationCubic)
	return scaled
}

// chooseScale picks the integer upscale factor from crop dimensions.
// Recognition accuracy collapses once character strokes drop under a few
// pixels, so smaller crops get more magnification.
func chooseScale(height, width int) int {
	switch {
	case height < 30 || width < 100:
		return 4
	case height < 50 || width < 150:
		return 3
	default:
		return 2
	}
}

func localContrast(stages *stageList, gray gocv.Mat) gocv.Mat {
	clahe := gocv.NewCLAHEWithParams(4.0, image.Pt(8, 8))
	defer clahe.Close()

	out := stages.add(gocv.NewMat())
	clahe.Apply(gray, &out)
	return out
}

// sharpen applies a unity-gain high-pass kernel (center 9, neighbors -1).
func sharpen(stages *stageList, gray gocv.Mat) gocv.Mat {
	kernel := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV32F)
	defer kernel.Close()
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			kernel.SetFloatAt(y, x, -1)
		}
	}
	kernel.SetFloatAt(1, 1, 9)

	out := stages.add(gocv.NewMat())
	gocv.Filter2D(gray, &out, -1, kernel, image.Pt(-1, -1), 0, gocv.BorderDefault)
	return out
}

// morphCleanup closes small gaps inside strokes, then opens away specks.
func morphCleanup(stages *stageList, binary gocv.Mat) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(2, 2))
	defer kernel.Close()

	closed := stages.add(gocv.NewMat())
	gocv.MorphologyEx(binary, &closed, gocv.MorphClose, kernel)

	opened := stages.add(gocv.NewMat())
	gocv.MorphologyEx(closed, &opened, gocv.MorphOpen, kernel)

	return opened
}
