package recognition

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/abhisek/gradekit/internal/model"
)

func pngScan(t *testing.T, w, h int) Scan {
	t.Helper()
	img := imaging.New(w, h, color.White)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return NewScan(buf.Bytes())
}

func TestDecodeAndPreprocess(t *testing.T) {
	scan := pngScan(t, 400, 300)
	if scan.MIMEType != "image/png" {
		t.Fatalf("expected sniffed png, got %q", scan.MIMEType)
	}

	img, err := decodeScan(scan)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	out := preprocess(img, 1600)
	if got := out.Bounds().Size(); got != (image.Point{X: 1600, Y: 1200}) {
		t.Fatalf("expected upscale to 1600x1200, got %v", got)
	}

	wide := preprocess(imaging.New(2000, 100, color.White), 1600)
	if wide.Bounds().Dx() != 2000 {
		t.Fatalf("wide scans must not be resized, got %d", wide.Bounds().Dx())
	}
}

func TestDecodeScanRejectsGarbage(t *testing.T) {
	if _, err := decodeScan(Scan{}); err == nil {
		t.Fatal("expected error for empty scan")
	}
	if _, err := decodeScan(NewScan([]byte("definitely not an image"))); err == nil {
		t.Fatal("expected error for text payload")
	}
}

func TestTesseractRecognizerMissingBinary(t *testing.T) {
	r := NewTesseractRecognizer()
	r.Binary = "gradekit-no-such-tesseract"

	_, err := r.Recognize(context.Background(), pngScan(t, 10, 10))
	if !model.IsInvocation(err) {
		t.Fatalf("expected invocation error, got %T %v", err, err)
	}
}
