package ocr

import (
	"context"
	"errors"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

const testWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func TestNewTesseractRecognizer(t *testing.T) {
	recognizer, err := NewTesseractRecognizer("eng", testWhitelist, 0)
	if err != nil {
		t.Fatalf("NewTesseractRecognizer failed: %v", err)
	}

	if err := recognizer.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestRecognizeEmptyImage(t *testing.T) {
	recognizer, err := NewTesseractRecognizer("eng", testWhitelist, 0)
	if err != nil {
		t.Fatalf("NewTesseractRecognizer failed: %v", err)
	}
	defer recognizer.Close()

	img := gocv.NewMat()
	defer img.Close()

	spans, err := recognizer.Recognize(context.Background(), img)
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if len(spans) != 0 {
		t.Errorf("expected no spans for an empty image, got %v", spans)
	}
}

func TestRecognizeCancelledContext(t *testing.T) {
	recognizer, err := NewTesseractRecognizer("eng", testWhitelist, 0)
	if err != nil {
		t.Fatalf("NewTesseractRecognizer failed: %v", err)
	}
	defer recognizer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	img := gocv.Zeros(50, 200, gocv.MatTypeCV8U)
	defer img.Close()

	if _, err := recognizer.Recognize(ctx, img); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestRecognizeDeadlineExpires(t *testing.T) {
	recognizer, err := NewTesseractRecognizer("eng", testWhitelist, time.Nanosecond)
	if err != nil {
		t.Fatalf("NewTesseractRecognizer failed: %v", err)
	}
	defer recognizer.Close()

	img := gocv.Zeros(50, 200, gocv.MatTypeCV8U)
	defer img.Close()

	_, err = recognizer.Recognize(context.Background(), img)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
