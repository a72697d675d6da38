package evaluate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/abhisek/gradekit/internal/llm"
	"github.com/abhisek/gradekit/internal/model"
)

func TestLLMScorer(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"score": 4.5, "explanation": "Mentions light but not chlorophyll."}`),
	})

	res, err := NewLLMScorer(mock).Score(context.Background(), ScoreRequest{
		Prompt:        "Explain photosynthesis.",
		Rubric:        "light 3, chlorophyll 2",
		StudentAnswer: "Plants use sunlight.",
		MaxScore:      5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Score != 4.5 || res.Explanation != "Mentions light but not chlorophyll." {
		t.Errorf("unexpected result %+v", res)
	}

	call := mock.Calls[0]
	if call.Schema == nil || call.Schema.Name != "subjective-score" {
		t.Fatalf("expected subjective-score schema, got %+v", call.Schema)
	}
	if !strings.Contains(call.System, "between 0 and 5 inclusive") {
		t.Errorf("system prompt missing score range: %q", call.System)
	}
	prompt := call.Messages[0].Content
	for _, want := range []string{"Question: Explain photosynthesis.", "Reference answer: N/A", "Rubric: light 3, chlorophyll 2", "Student answer: Plants use sunlight."} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestLLMScorerErrors(t *testing.T) {
	tests := []struct {
		name          string
		provider      llm.Provider
		notConfigured bool
	}{
		{"nil provider", nil, true},
		{"rejected key", llm.NewMockProvider(llm.MockResponse{Err: fmt.Errorf("%w: 401", llm.ErrNotConfigured)}), true},
		{"rate limited", llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrRateLimit{}}), false},
		{"bad payload", llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`{"score": "high"}`)}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLLMScorer(tt.provider).Score(context.Background(), ScoreRequest{StudentAnswer: "x", MaxScore: 1})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, model.ErrAdapterNotConfigured); got != tt.notConfigured {
				t.Errorf("not configured = %v, want %v (%v)", got, tt.notConfigured, err)
			}
			if !tt.notConfigured && !model.IsInvocation(err) {
				t.Errorf("expected invocation error, got %v", err)
			}
		})
	}
}
