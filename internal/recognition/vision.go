package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/abhisek/gradekit/internal/llm"
	"github.com/abhisek/gradekit/internal/model"
)

const visionSystemPrompt = `You are an OCR assistant for handwritten exam sheets, including Chinese ones.
Extract every question number, the student's answer text, and any teacher annotation mark.
Return JSON only.`

const visionUserPrompt = `Read every question in the image and return:
{"rows": [{"question_number": "1", "raw_text": "student answer", "annotation": "teacher mark or null", "confidence": 0.0-1.0}]}
Use Arabic numerals for question numbers. Annotation marks include ✔ ✘ × √ 对 错, fractions such as 3/5, or a bare score.
Use null for a missing annotation and an empty string for a missing answer.`

var visionRowsSchema = &llm.Schema{
	Name:        "vision-rows",
	Description: "Per-question rows recognized from an exam scan",
	Definition: map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"rows"},
		"properties": map[string]any{
			"rows": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"question_number", "raw_text", "annotation", "confidence"},
					"properties": map[string]any{
						"question_number": map[string]any{"type": []any{"integer", "string"}},
						"raw_text":        map[string]any{"type": []any{"string", "null"}},
						"annotation":      map[string]any{"type": []any{"string", "null"}},
						"confidence":      map[string]any{"type": "number"},
					},
				},
			},
		},
	},
}

// VisionRecognizer asks a vision-language model to read the scan.
type VisionRecognizer struct {
	provider  llm.Provider
	maxTokens int
}

// NewVisionRecognizer returns a recognizer backed by p. A nil provider
// means no model is configured.
func NewVisionRecognizer(p llm.Provider) *VisionRecognizer {
	return &VisionRecognizer{provider: p, maxTokens: 4096}
}

func (v *VisionRecognizer) Name() string { return "vision-recognition" }

func (v *VisionRecognizer) Recognize(ctx context.Context, scan Scan) ([]model.RecognizedRow, error) {
	if v == nil || v.provider == nil {
		return nil, model.ErrAdapterNotConfigured
	}

	mime := scan.MIMEType
	if mime == "" {
		mime = sniffMIME(scan.Data)
	}

	resp, err := v.provider.Generate(llm.WithPurpose(ctx, v.Name()), llm.Request{
		System: visionSystemPrompt,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: visionUserPrompt,
			Images:  []llm.Image{{MIMEType: mime, Data: scan.Data}},
		}},
		Schema:      visionRowsSchema,
		MaxTokens:   v.maxTokens,
		Temperature: 0.1,
	})
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return nil, fmt.Errorf("%w: %v", model.ErrAdapterNotConfigured, err)
		}
		return nil, &model.AdapterInvocationError{Adapter: v.Name(), Err: err}
	}

	rows, err := decodeVisionRows(resp.Content)
	if err != nil {
		return nil, &model.AdapterInvocationError{Adapter: v.Name(), Err: err}
	}
	if len(rows) == 0 {
		return nil, &model.AdapterInvocationError{
			Adapter: v.Name(),
			Err:     errors.New("model returned no question rows"),
		}
	}
	return rows, nil
}

type visionPayload struct {
	Rows []struct {
		QuestionNumber questionNumber `json:"question_number"`
		RawText        *string        `json:"raw_text"`
		Annotation     *string        `json:"annotation"`
		Confidence     float64        `json:"confidence"`
	} `json:"rows"`
}

func decodeVisionRows(content json.RawMessage) ([]model.RecognizedRow, error) {
	var payload visionPayload
	if err := json.Unmarshal(content, &payload); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}

	rows := make([]model.RecognizedRow, 0, len(payload.Rows))
	for _, r := range payload.Rows {
		if r.QuestionNumber == "" {
			continue
		}
		row := model.RecognizedRow{
			QuestionNumber: string(r.QuestionNumber),
			Confidence:     model.ClampConfidence(r.Confidence),
		}
		if r.RawText != nil {
			row.RawText = strings.TrimSpace(*r.RawText)
		}
		if r.Annotation != nil {
			row.Annotation = strings.TrimSpace(*r.Annotation)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// questionNumber accepts both 3 and "3".
type questionNumber string

func (n *questionNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = questionNumber(strings.TrimSpace(s))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("question_number: %w", err)
	}
	*n = questionNumber(num.String())
	return nil
}
