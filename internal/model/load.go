package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const examSchemaURL = "schema://exam.json"

// examSchema describes an exam file. Per-type answer keys are checked with
// if/then so a malformed key is rejected before it reaches grading.
var examSchema = map[string]any{
	"type":     "object",
	"required": []any{"id", "questions"},
	"properties": map[string]any{
		"id":    map[string]any{"type": "string", "minLength": 1},
		"title": map[string]any{"type": "string"},
		"questions": map[string]any{
			"type":  "array",
			"items": map[string]any{"$ref": "#/$defs/question"},
		},
	},
	"$defs": map[string]any{
		"question": map[string]any{
			"type":     "object",
			"required": []any{"id", "number", "type", "max_score"},
			"properties": map[string]any{
				"id":        map[string]any{"type": "string", "minLength": 1},
				"number":    map[string]any{"type": "string", "minLength": 1},
				"type":      map[string]any{"enum": []any{"multiple_choice", "fill_in_blank", "subjective"}},
				"max_score": map[string]any{"type": "number", "minimum": 0},
				"target_student_ids": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
				"knowledge_tags": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			},
			"allOf": []any{
				map[string]any{
					"if":   map[string]any{"properties": map[string]any{"type": map[string]any{"const": "multiple_choice"}}},
					"then": map[string]any{
						"required": []any{"answer_key"},
						"properties": map[string]any{"answer_key": map[string]any{
							"type":     "object",
							"required": []any{"correct"},
							"properties": map[string]any{
								"correct": map[string]any{"type": "string", "minLength": 1},
							},
						}},
					},
				},
				map[string]any{
					"if":   map[string]any{"properties": map[string]any{"type": map[string]any{"const": "fill_in_blank"}}},
					"then": map[string]any{
						"required": []any{"answer_key"},
						"properties": map[string]any{"answer_key": map[string]any{
							"type":     "object",
							"required": []any{"acceptable_answers"},
							"properties": map[string]any{
								"acceptable_answers": map[string]any{
									"type":     "array",
									"minItems": 1,
									"items":    map[string]any{"type": "string"},
								},
								"numeric":           map[string]any{"type": "boolean"},
								"numeric_tolerance": map[string]any{"type": "number", "minimum": 0},
							},
						}},
					},
				},
			},
		},
	},
}

var (
	compiledExamSchema *jsonschema.Schema
	compileExamOnce    sync.Once
	compileExamErr     error
)

func examValidator() (*jsonschema.Schema, error) {
	compileExamOnce.Do(func() {
		// Round-trip through JSON so the compiler sees plain decoded values.
		raw, err := json.Marshal(examSchema)
		if err != nil {
			compileExamErr = err
			return
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			compileExamErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(examSchemaURL, doc); err != nil {
			compileExamErr = err
			return
		}
		compiledExamSchema, compileExamErr = c.Compile(examSchemaURL)
	})
	return compiledExamSchema, compileExamErr
}

// DecodeExam validates and decodes an exam document.
func DecodeExam(r io.Reader) (*Exam, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read exam: %w", err)
	}

	sch, err := examValidator()
	if err != nil {
		return nil, fmt.Errorf("compile exam schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse exam: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid exam: %w", err)
	}

	var exam Exam
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&exam); err != nil {
		return nil, fmt.Errorf("decode exam: %w", err)
	}

	seen := make(map[string]bool, len(exam.Questions))
	for _, q := range exam.Questions {
		if seen[q.Number] {
			return nil, fmt.Errorf("invalid exam: duplicate question number %q", q.Number)
		}
		seen[q.Number] = true
	}
	return &exam, nil
}

// LoadExam reads and validates an exam file.
func LoadExam(path string) (*Exam, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open exam: %w", err)
	}
	defer f.Close()
	return DecodeExam(f)
}
