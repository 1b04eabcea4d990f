package detect

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// inputSize is the square side of the model's input tensor.
const inputSize = 640

// DNNDetector runs a YOLO-style ONNX plate model through gocv's DNN module.
// Net forward passes are not safe for concurrent use, so calls are
// serialized behind a mutex.
type DNNDetector struct {
	mu            sync.Mutex
	net           gocv.Net
	confThreshold float32
	nmsThreshold  float32
	timeout       time.Duration
}

// NewDNNDetector loads the ONNX model at modelPath. timeout bounds a single
// forward pass; zero means only the caller's context applies.
func NewDNNDetector(modelPath string, confThreshold, nmsThreshold float64, timeout time.Duration) (*DNNDetector, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("failed to load detection model from %s", modelPath)
	}

	return &DNNDetector{
		net:           net,
		confThreshold: float32(confThreshold),
		nmsThreshold:  float32(nmsThreshold),
		timeout:       timeout,
	}, nil
}

// Detect runs one forward pass over img and returns the surviving candidate
// regions. The pass runs on its own goroutine over a cloned frame, so an
// abandoned call keeps running against its own copy rather than racing the
// caller's buffer.
func (d *DNNDetector) Detect(ctx context.Context, img gocv.Mat) ([]Detection, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	type inference struct {
		detections []Detection
		err        error
	}

	frame := img.Clone()
	ch := make(chan inference, 1)
	go func() {
		defer frame.Close()
		d.mu.Lock()
		defer d.mu.Unlock()
		dets, err := d.forward(frame)
		ch <- inference{detections: dets, err: err}
	}()

	select {
	case res := <-ch:
		return res.detections, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("detection inference: %w", ctx.Err())
	}
}

// Close releases the model.
func (d *DNNDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

func (d *DNNDetector) forward(img gocv.Mat) ([]Detection, error) {
	srcW, srcH := img.Cols(), img.Rows()
	lb := fitLetterbox(srcW, srcH, inputSize)
	sz := lb.scaledSize(srcW, srcH)

	scaled := gocv.NewMat()
	defer scaled.Close()
	gocv.Resize(img, &scaled, sz, 0, 0, gocv.InterpolationLinear)

	padded := gocv.NewMat()
	defer padded.Close()
	gocv.CopyMakeBorder(scaled, &padded,
		lb.padY, inputSize-sz.Y-lb.padY, lb.padX, inputSize-sz.X-lb.padX,
		gocv.BorderConstant, color.RGBA{R: 114, G: 114, B: 114})

	blob := gocv.BlobFromImage(padded, 1.0/255.0, image.Pt(inputSize, inputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	return d.decode(output, lb, srcW, srcH)
}

// decode reads YOLO-style rows (cx, cy, w, h, confidence, ...) out of the
// forward output and keeps the boxes surviving the confidence and NMS cuts.
func (d *DNNDetector) decode(output gocv.Mat, lb letterbox, srcW, srcH int) ([]Detection, error) {
	dims := output.Size()
	var rows, cols int
	switch len(dims) {
	case 3:
		rows, cols = dims[1], dims[2]
	case 2:
		rows, cols = dims[0], dims[1]
	default:
		return nil, fmt.Errorf("unexpected model output rank %d", len(dims))
	}

	flat := output.Reshape(1, rows)
	defer flat.Close()

	// Some exports emit attributes down the rows and anchors across the
	// columns. Detection rows are always the long axis.
	if rows < cols {
		transposed := gocv.NewMat()
		gocv.Transpose(flat, &transposed)
		flat.Close()
		flat = transposed
		rows, cols = cols, rows
	}
	if cols < 5 {
		return nil, fmt.Errorf("unexpected model output width %d", cols)
	}

	var confidences []float32
	var boxes []image.Rectangle
	for i := 0; i < rows; i++ {
		conf := flat.GetFloatAt(i, 4)
		if conf < d.confThreshold {
			continue
		}

		cx := flat.GetFloatAt(i, 0)
		cy := flat.GetFloatAt(i, 1)
		w := flat.GetFloatAt(i, 2)
		h := flat.GetFloatAt(i, 3)

		box := lb.toSource(cx, cy, w, h, srcW, srcH)
		if box.Empty() {
			continue
		}
		confidences = append(confidences, conf)
		boxes = append(boxes, box)
	}

	if len(boxes) == 0 {
		return nil, nil
	}

	indices := gocv.NMSBoxes(boxes, confidences, d.confThreshold, d.nmsThreshold)
	detections := make([]Detection, 0, len(indices))
	for _, idx := range indices {
		detections = append(detections, Detection{
			Box:        boxes[idx],
			Confidence: float64(confidences[idx]),
		})
	}
	return detections, nil
}

// letterbox describes how a frame was fit into the square model input:
// uniform scale plus centering pads.
type letterbox struct {
	scale      float64
	padX, padY int
}

func fitLetterbox(srcW, srcH, size int) letterbox {
	scale := math.Min(float64(size)/float64(srcW), float64(size)/float64(srcH))
	newW := int(float64(srcW)*scale + 0.5)
	newH := int(float64(srcH)*scale + 0.5)
	return letterbox{
		scale: scale,
		padX:  (size - newW) / 2,
		padY:  (size - newH) / 2,
	}
}

func (lb letterbox) scaledSize(srcW, srcH int) image.Point {
	return image.Pt(int(float64(srcW)*lb.scale+0.5), int(float64(srcH)*lb.scale+0.5))
}

// toSource maps a box center and extent from model-input space back to
// source pixel coordinates, clamped to the frame.
func (lb letterbox) toSource(cx, cy, w, h float32, srcW, srcH int) image.Rectangle {
	x1 := int((float64(cx) - float64(w)/2 - float64(lb.padX)) / lb.scale)
	y1 := int((float64(cy) - float64(h)/2 - float64(lb.padY)) / lb.scale)
	x2 := int((float64(cx) + float64(w)/2 - float64(lb.padX)) / lb.scale)
	y2 := int((float64(cy) + float64(h)/2 - float64(lb.padY)) / lb.scale)
	return image.Rect(x1, y1, x2, y2).Intersect(image.Rect(0, 0, srcW, srcH))
}
