package ocr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// TesseractRecognizer reads plate text through a shared tesseract client.
// The client is not safe for concurrent use, so calls are serialized.
type TesseractRecognizer struct {
	mu      sync.Mutex
	client  *gosseract.Client
	timeout time.Duration
}

// NewTesseractRecognizer configures a single-line recognizer restricted to
// the given character whitelist. timeout bounds a single read; zero means
// only the caller's context applies.
func NewTesseractRecognizer(language, whitelist string, timeout time.Duration) (*TesseractRecognizer, error) {
	client := gosseract.NewClient()

	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	if err := client.SetWhitelist(whitelist); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR whitelist: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR segmentation mode: %w", err)
	}

	return &TesseractRecognizer{client: client, timeout: timeout}, nil
}

// Recognize reads word-level spans out of the conditioned crop. Tesseract
// reports confidence on 0..100; spans carry it rescaled to 0..1. The read
// runs on its own goroutine over a private copy of the encoded crop, so an
// abandoned call keeps running against its own bytes rather than racing
// the caller's Mat.
func (r *TesseractRecognizer) Recognize(ctx context.Context, img gocv.Mat) ([]Span, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img.Empty() {
		return nil, nil
	}

	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode crop for OCR: %w", err)
	}
	encoded := make([]byte, len(buf.GetBytes()))
	copy(encoded, buf.GetBytes())
	buf.Close()

	type reading struct {
		spans []Span
		err   error
	}

	ch := make(chan reading, 1)
	go func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		spans, err := r.read(encoded)
		ch <- reading{spans: spans, err: err}
	}()

	select {
	case res := <-ch:
		return res.spans, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("text recognition: %w", ctx.Err())
	}
}

// Close releases the tesseract client.
func (r *TesseractRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client.Close()
}

func (r *TesseractRecognizer) read(encoded []byte) ([]Span, error) {
	if err := r.client.SetImageFromBytes(encoded); err != nil {
		return nil, fmt.Errorf("failed to load crop into OCR: %w", err)
	}

	boxes, err := r.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("failed to read plate text: %w", err)
	}

	spans := make([]Span, 0, len(boxes))
	for _, box := range boxes {
		spans = append(spans, Span{Text: box.Word, Confidence: box.Confidence / 100})
	}
	return spans, nil
}
