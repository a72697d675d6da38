package evaluate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/abhisek/gradekit/internal/llm"
	"github.com/abhisek/gradekit/internal/model"
)

// ScoreRequest is everything a subjective scorer sees.
type ScoreRequest struct {
	Prompt        string
	Rubric        string
	Reference     string
	StudentAnswer string
	MaxScore      float64
}

// ScoreResult is a scorer's raw judgement. The evaluator clamps and
// rounds Score.
type ScoreResult struct {
	Score       float64
	Explanation string
}

// Scorer grades free-text answers. Implementations return
// model.ErrAdapterNotConfigured when they have no backend and an
// *model.AdapterInvocationError for runtime failures.
type Scorer interface {
	Score(ctx context.Context, req ScoreRequest) (ScoreResult, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, req ScoreRequest) (ScoreResult, error)

func (f ScorerFunc) Score(ctx context.Context, req ScoreRequest) (ScoreResult, error) {
	return f(ctx, req)
}

// PurposeSubjectiveScoring labels scorer calls in the LLM event log.
const PurposeSubjectiveScoring = "subjective-scoring"

const scorerSystemPrompt = `You are a meticulous exam grader. Using the question, the reference answer and the rubric, assign a score between 0 and %s inclusive and give one sentence of feedback.
Return JSON with fields score (number) and explanation (string).`

var scoreSchema = &llm.Schema{
	Name:        "subjective-score",
	Description: "Score and one-sentence feedback for a subjective answer",
	Definition: map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"score", "explanation"},
		"properties": map[string]any{
			"score": map[string]any{
				"type":        "number",
				"description": "Points awarded",
			},
			"explanation": map[string]any{
				"type":        "string",
				"description": "One sentence of feedback for the student",
			},
		},
	},
}

// LLMScorer scores subjective answers with a text model.
type LLMScorer struct {
	provider llm.Provider
}

// NewLLMScorer returns a scorer backed by p. A nil provider reports
// not configured on every call.
func NewLLMScorer(p llm.Provider) *LLMScorer {
	return &LLMScorer{provider: p}
}

func (s *LLMScorer) Score(ctx context.Context, req ScoreRequest) (ScoreResult, error) {
	if s == nil || s.provider == nil {
		return ScoreResult{}, model.ErrAdapterNotConfigured
	}

	resp, err := s.provider.Generate(llm.WithPurpose(ctx, PurposeSubjectiveScoring), llm.Request{
		System:      fmt.Sprintf(scorerSystemPrompt, formatScore(req.MaxScore)),
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buildScorePrompt(req)}},
		Schema:      scoreSchema,
		MaxTokens:   512,
		Temperature: 0,
	})
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return ScoreResult{}, fmt.Errorf("%w: %v", model.ErrAdapterNotConfigured, err)
		}
		return ScoreResult{}, &model.AdapterInvocationError{Adapter: PurposeSubjectiveScoring, Err: err}
	}

	var out struct {
		Score       float64 `json:"score"`
		Explanation string  `json:"explanation"`
	}
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return ScoreResult{}, &model.AdapterInvocationError{
			Adapter: PurposeSubjectiveScoring,
			Err:     fmt.Errorf("decode score: %w", err),
		}
	}
	return ScoreResult{Score: out.Score, Explanation: out.Explanation}, nil
}

func buildScorePrompt(req ScoreRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", orNA(req.Prompt))
	fmt.Fprintf(&b, "Reference answer: %s\n\n", orNA(req.Reference))
	fmt.Fprintf(&b, "Rubric: %s\n\n", orNA(req.Rubric))
	fmt.Fprintf(&b, "Maximum score: %s\n\n", formatScore(req.MaxScore))
	fmt.Fprintf(&b, "Student answer: %s\n", req.StudentAnswer)
	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func formatScore(v float64) string {
	return fmt.Sprintf("%g", v)
}
