package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// schemaCache caches compiled JSON schemas by name.
var schemaCache sync.Map // map[string]*jsonschema.Schema

// structuredContent extracts the JSON payload from raw model output and
// validates it against schema. Vision models in particular like to wrap
// JSON in markdown fences or add a sentence around it, so the first
// parseable object or array is used. Returns *ErrInvalidResponse on failure.
func structuredContent(schema *Schema, raw json.RawMessage) (json.RawMessage, error) {
	if schema == nil {
		return raw, nil
	}

	content, ok := extractJSON(raw)
	if !ok {
		return nil, &ErrInvalidResponse{
			Content: raw,
			Err:     fmt.Errorf("no JSON payload in response"),
		}
	}
	if err := validateResponse(schema, content); err != nil {
		return nil, err
	}
	return content, nil
}

// validateResponse validates raw JSON against the given Schema.
func validateResponse(schema *Schema, raw json.RawMessage) error {
	if schema == nil {
		return nil
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return &ErrInvalidResponse{
			Content: raw,
			Err:     fmt.Errorf("invalid JSON: %w", err),
		}
	}

	compiled, err := getCompiledSchema(schema)
	if err != nil {
		return &ErrInvalidResponse{
			Content: raw,
			Err:     fmt.Errorf("compile schema %q: %w", schema.Name, err),
		}
	}

	if err := compiled.Validate(parsed); err != nil {
		return &ErrInvalidResponse{
			Content: raw,
			Err:     fmt.Errorf("schema validation failed: %w", err),
		}
	}

	return nil
}

// extractJSON returns raw when it is valid JSON, otherwise strips a
// markdown code fence and scans for the first balanced object or array.
func extractJSON(raw []byte) (json.RawMessage, bool) {
	text := bytes.TrimSpace(raw)
	if len(text) == 0 {
		return nil, false
	}
	if json.Valid(text) {
		return json.RawMessage(text), true
	}

	if bytes.HasPrefix(text, []byte("```")) {
		text = text[3:]
		if nl := bytes.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:] // drop the ```json language tag line
		}
		text = bytes.TrimSpace(bytes.TrimSuffix(bytes.TrimSpace(text), []byte("```")))
		if json.Valid(text) {
			return json.RawMessage(text), true
		}
	}

	for _, pair := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		depth, start := 0, -1
		for i, c := range text {
			switch c {
			case pair[0]:
				if depth == 0 {
					start = i
				}
				depth++
			case pair[1]:
				if depth == 0 {
					continue
				}
				depth--
				if depth == 0 && json.Valid(text[start:i+1]) {
					return json.RawMessage(text[start : i+1]), true
				}
			}
		}
	}
	return nil, false
}

// getCompiledSchema returns a cached compiled schema or compiles and caches it.
func getCompiledSchema(schema *Schema) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(schema.Name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	// The compiler wants a decoded JSON value, not a Go map with typed slices.
	defBytes, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal schema definition: %w", err)
	}
	var defParsed any
	if err := json.Unmarshal(defBytes, &defParsed); err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}

	c := jsonschema.NewCompiler()
	schemaURL := fmt.Sprintf("schema://%s.json", schema.Name)
	if err := c.AddResource(schemaURL, defParsed); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}

	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	schemaCache.Store(schema.Name, compiled)
	return compiled, nil
}
