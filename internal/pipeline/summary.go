package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/abhisek/gradekit/internal/llm"
	"github.com/abhisek/gradekit/internal/model"
)

// SummaryRow is the compact per-question view handed to a summarizer.
type SummaryRow struct {
	QuestionID string   `json:"question_id"`
	Number     string   `json:"number"`
	Score      *float64 `json:"score"`
	MaxScore   float64  `json:"max_score"`
	IsCorrect  *bool    `json:"is_correct"`
	Feedback   string   `json:"feedback,omitempty"`
}

// Summarizer writes a short natural-language review of a graded
// submission. It returns model.ErrAdapterNotConfigured when it has no
// backend.
type Summarizer interface {
	Summarize(ctx context.Context, rows []SummaryRow) (string, error)
}

// SummarizerFunc adapts a function to Summarizer.
type SummarizerFunc func(ctx context.Context, rows []SummaryRow) (string, error)

func (f SummarizerFunc) Summarize(ctx context.Context, rows []SummaryRow) (string, error) {
	return f(ctx, rows)
}

// summarize runs the summarizer over the applicable responses. Failures
// only produce a step.
func (p *Pipeline) summarize(ctx context.Context, exam *model.Exam, responses []model.Response, steps *model.StepLog) string {
	if p.summarizer == nil {
		return ""
	}
	rows := summaryRows(exam, responses)
	if len(rows) == 0 {
		return ""
	}

	summary, err := p.summarizer.Summarize(ctx, rows)
	switch {
	case errors.Is(err, model.ErrAdapterNotConfigured):
		steps.Warning(StepSummary, "summarizer not configured, no summary generated")
		return ""
	case err != nil:
		steps.Error(StepSummary, "summary failed: %v", err)
		p.logger.Warn("submission summary failed", "error", err)
		return ""
	}

	summary = strings.TrimSpace(summary)
	if summary != "" {
		steps.Success(StepSummary, "generated summary")
	}
	return summary
}

func summaryRows(exam *model.Exam, responses []model.Response) []SummaryRow {
	maxScores := make(map[string]float64, len(exam.Questions))
	for _, q := range exam.Questions {
		maxScores[q.ID] = q.MaxScore
	}

	rows := make([]SummaryRow, 0, len(responses))
	for _, r := range responses {
		if !r.AppliesToStudent {
			continue
		}
		rows = append(rows, SummaryRow{
			QuestionID: r.QuestionID,
			Number:     r.QuestionNumber,
			Score:      r.Score,
			MaxScore:   maxScores[r.QuestionID],
			IsCorrect:  r.IsCorrect,
			Feedback:   r.Comments,
		})
	}
	return rows
}

// PurposeSummary labels summary calls in the LLM event log.
const PurposeSummary = "submission-summary"

const summarySystemPrompt = "You are a homeroom teacher who writes concise, actionable feedback for other teachers."

// LLMSummarizer summarizes with a text model.
type LLMSummarizer struct {
	provider llm.Provider
}

// NewLLMSummarizer returns a summarizer backed by p. A nil provider
// reports not configured.
func NewLLMSummarizer(p llm.Provider) *LLMSummarizer {
	return &LLMSummarizer{provider: p}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, rows []SummaryRow) (string, error) {
	if s == nil || s.provider == nil {
		return "", model.ErrAdapterNotConfigured
	}

	payload, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("encode summary rows: %w", err)
	}

	resp, err := s.provider.Generate(llm.WithPurpose(ctx, PurposeSummary), llm.Request{
		System: summarySystemPrompt,
		Messages: []llm.Message{{
			Role: llm.RoleUser,
			Content: "Below are the grading results for one student. Summarize the overall performance " +
				"in at most two sentences and suggest a next step:\n" + string(payload),
		}},
		MaxTokens:   400,
		Temperature: 0.4,
	})
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return "", fmt.Errorf("%w: %v", model.ErrAdapterNotConfigured, err)
		}
		return "", &model.AdapterInvocationError{Adapter: PurposeSummary, Err: err}
	}
	return strings.TrimSpace(string(resp.Content)), nil
}
