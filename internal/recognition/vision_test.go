package recognition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/abhisek/gradekit/internal/llm"
	"github.com/abhisek/gradekit/internal/model"
)

func TestVisionRecognizer(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`{"rows":[
		{"question_number": 1, "raw_text": " c ", "annotation": null, "confidence": 0.95},
		{"question_number": "2", "raw_text": null, "annotation": "3/5", "confidence": 1.4},
		{"question_number": "", "raw_text": "orphan", "annotation": null, "confidence": 0.2}
	]}`)})

	scan := NewScan([]byte("\x89PNG\r\n\x1a\n...."))
	rows, err := NewVisionRecognizer(mock).Recognize(context.Background(), scan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(rows), rows)
	}
	if rows[0] != (model.RecognizedRow{QuestionNumber: "1", RawText: "c", Confidence: 0.95}) {
		t.Errorf("unexpected first row %+v", rows[0])
	}
	if rows[1].Annotation != "3/5" || rows[1].Confidence != 1 || rows[1].RawText != "" {
		t.Errorf("unexpected second row %+v", rows[1])
	}

	call := mock.Calls[0]
	if call.Schema == nil || call.Schema.Name != "vision-rows" {
		t.Fatalf("expected vision-rows schema, got %+v", call.Schema)
	}
	img := call.Messages[0].Images
	if len(img) != 1 || img[0].MIMEType != "image/png" {
		t.Fatalf("expected one png image, got %+v", img)
	}
}

func TestVisionRecognizerErrors(t *testing.T) {
	t.Run("nil provider", func(t *testing.T) {
		_, err := NewVisionRecognizer(nil).Recognize(context.Background(), Scan{})
		if !errors.Is(err, model.ErrAdapterNotConfigured) {
			t.Fatalf("expected ErrAdapterNotConfigured, got %v", err)
		}
	})

	t.Run("rejected credentials", func(t *testing.T) {
		mock := llm.NewMockProvider(llm.MockResponse{Err: fmt.Errorf("%w: 401", llm.ErrNotConfigured)})
		_, err := NewVisionRecognizer(mock).Recognize(context.Background(), Scan{})
		if !errors.Is(err, model.ErrAdapterNotConfigured) {
			t.Fatalf("expected ErrAdapterNotConfigured, got %v", err)
		}
	})

	t.Run("provider failure", func(t *testing.T) {
		mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrTimeout{}})
		_, err := NewVisionRecognizer(mock).Recognize(context.Background(), Scan{})
		if !model.IsInvocation(err) {
			t.Fatalf("expected invocation error, got %T %v", err, err)
		}
		var te *llm.ErrTimeout
		if !errors.As(err, &te) {
			t.Fatalf("expected the timeout to be preserved, got %v", err)
		}
	})

	t.Run("zero rows", func(t *testing.T) {
		mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`{"rows":[]}`)})
		_, err := NewVisionRecognizer(mock).Recognize(context.Background(), Scan{})
		if !model.IsInvocation(err) {
			t.Fatalf("expected invocation error for empty rows, got %v", err)
		}
	})
}
