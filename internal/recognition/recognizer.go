// Package recognition turns an exam scan into per-question text rows.
//
// A vision-model recognizer is tried first; a local OCR recognizer takes
// over when the model is not configured or fails. The Orchestrator records
// one step per attempt.
package recognition

import (
	"context"
	"net/http"

	"github.com/abhisek/gradekit/internal/model"
)

// Scan is a raw exam image.
type Scan struct {
	Data     []byte
	MIMEType string
}

// NewScan wraps image bytes, sniffing the MIME type from the content.
func NewScan(data []byte) Scan {
	return Scan{Data: data, MIMEType: sniffMIME(data)}
}

// Recognizer extracts rows from a scan.
//
// A primary recognizer fails with model.ErrAdapterNotConfigured when it has
// no backend, or *model.AdapterInvocationError when the call fails. A
// fallback recognizer only ever fails with *model.AdapterInvocationError.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, scan Scan) ([]model.RecognizedRow, error)
}

func sniffMIME(data []byte) string {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return http.DetectContentType(head)
}
