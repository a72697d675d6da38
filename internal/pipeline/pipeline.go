// Package pipeline grades a submission end to end: it walks the exam's
// questions, gates targeted questions, evaluates answers, keeps the
// mistake ledger current and aggregates the submission score, recording
// every decision in a step log.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/abhisek/gradekit/internal/evaluate"
	"github.com/abhisek/gradekit/internal/ledger"
	"github.com/abhisek/gradekit/internal/model"
	"github.com/abhisek/gradekit/internal/recognition"
)

// Step names used in the audit trail.
const (
	StepSubjectiveScoring = "subjective-scoring"
	StepMistakeLedger     = "mistake-ledger"
	StepAnswerKey         = "answer-key"
	StepSummary           = "summary"
)

// TargetedOutComment is attached to responses for questions that target
// other students.
const TargetedOutComment = "Targeted practice question for other students; scoring skipped automatically."

// DefaultLowConfidence is the recognition confidence (exclusive) below
// which an auto-graded response is flagged for review.
const DefaultLowConfidence = 0.5

// Artifacts is everything produced by grading one submission.
type Artifacts struct {
	Submission *model.Submission
	Responses  []model.Response
	Mistakes   []model.Mistake
	Steps      []model.PipelineStep
	Summary    string
}

// Pipeline grades submissions. It is safe for concurrent use.
type Pipeline struct {
	evaluator     *evaluate.Evaluator
	ledger        *ledger.Ledger
	recognizer    *recognition.Orchestrator
	summarizer    Summarizer
	logger        *slog.Logger
	lowConfidence float64
	newID         func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecognizer sets the orchestrator used by Process.
func WithRecognizer(o *recognition.Orchestrator) Option {
	return func(p *Pipeline) { p.recognizer = o }
}

// WithSummarizer enables the per-submission summary.
func WithSummarizer(s Summarizer) Option {
	return func(p *Pipeline) { p.summarizer = s }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithLowConfidence sets the recognition confidence below which
// responses are flagged for review.
func WithLowConfidence(threshold float64) Option {
	return func(p *Pipeline) { p.lowConfidence = threshold }
}

// New creates a pipeline. A nil ledger disables mistake tracking.
func New(evaluator *evaluate.Evaluator, l *ledger.Ledger, opts ...Option) *Pipeline {
	p := &Pipeline{
		evaluator:     evaluator,
		ledger:        l,
		logger:        slog.Default(),
		lowConfidence: DefaultLowConfidence,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.evaluator == nil {
		p.evaluator = evaluate.New(nil, p.logger)
	}
	return p
}

// Grade grades sub against exam using the recognized rows. The input
// submission is not modified; the graded copy is in the returned
// artifacts. Responses already confirmed by a teacher are carried over
// unchanged. When several rows share a question number the last one is
// used. A failed mistake-ledger update keeps the response but leaves the
// submission in needs_review. Grade fails with model.ErrRecognitionFailed
// when rows is empty, and with the context error if ctx is cancelled
// between questions.
func (p *Pipeline) Grade(ctx context.Context, exam *model.Exam, sub *model.Submission, rows []model.RecognizedRow) (*Artifacts, error) {
	if len(rows) == 0 {
		return nil, model.ErrRecognitionFailed
	}

	byNumber := make(map[string]*model.RecognizedRow, len(rows))
	for i := range rows {
		byNumber[strings.TrimSpace(rows[i].QuestionNumber)] = &rows[i]
	}
	prior := make(map[string]*model.Response, len(sub.Responses))
	for i := range sub.Responses {
		prior[sub.Responses[i].QuestionID] = &sub.Responses[i]
	}

	var (
		steps     model.StepLog
		responses = make([]model.Response, 0, len(exam.Questions))
		mistakes  []model.Mistake
		failed    bool
	)

	logger := p.logger.With("submission", sub.ID, "student", sub.StudentID)

	for i := range exam.Questions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q := &exam.Questions[i]

		if prev := prior[q.ID]; prev != nil && prev.ReviewStatus == model.ReviewConfirmed {
			responses = append(responses, *prev)
			continue
		}

		resp := p.newResponse(sub, q, prior[q.ID], byNumber[strings.TrimSpace(q.Number)])

		if !q.AppliesTo(sub.StudentID) {
			resp.AppliesToStudent = false
			resp.Comments = TargetedOutComment
			responses = append(responses, resp)
			continue
		}

		out := p.evaluator.Evaluate(ctx, q, byNumber[strings.TrimSpace(q.Number)])
		p.applyOutcome(&resp, q, out, &steps)

		if p.ledger != nil {
			// Once started, a question's ledger update runs to completion.
			m, err := p.ledger.Sync(context.WithoutCancel(ctx), sub.StudentID, q, &resp)
			if err != nil {
				steps.Error(StepMistakeLedger, "question %s: %v", q.Number, err)
				resp.ReviewStatus = model.ReviewNeedsReview
				failed = true
				logger.Error("mistake ledger sync failed", "question", q.Number, "error", err)
			} else if m != nil {
				mistakes = append(mistakes, *m)
			}
		}

		responses = append(responses, resp)
	}

	graded := *sub
	graded.Responses = responses
	graded.TotalScore = model.TotalScore(responses)
	graded.Status = model.DeriveStatus(responses)
	if failed {
		graded.Status = model.SubmissionNeedsReview
	}

	arts := &Artifacts{
		Submission: &graded,
		Responses:  responses,
		Mistakes:   mistakes,
	}
	arts.Summary = p.summarize(ctx, exam, responses, &steps)
	arts.Steps = steps.Steps()

	logger.Info("graded submission", "total", graded.TotalScore, "status", graded.Status,
		"responses", len(responses), "mistakes", len(mistakes))
	return arts, nil
}

// Process recognizes the scan and grades the result. Recognition steps
// come first in the returned log. When recognition fails the returned
// artifacts carry only its steps.
func (p *Pipeline) Process(ctx context.Context, exam *model.Exam, sub *model.Submission, scan recognition.Scan) (*Artifacts, error) {
	if p.recognizer == nil {
		return nil, errors.New("pipeline has no recognizer")
	}

	rows, recSteps, err := p.recognizer.Recognize(ctx, scan)
	if err != nil {
		return &Artifacts{Submission: sub, Steps: recSteps}, err
	}

	arts, err := p.Grade(ctx, exam, sub, rows)
	if err != nil {
		return &Artifacts{Submission: sub, Steps: recSteps}, err
	}
	arts.Steps = append(recSteps, arts.Steps...)
	return arts, nil
}

func (p *Pipeline) newResponse(sub *model.Submission, q *model.Question, prev *model.Response, row *model.RecognizedRow) model.Response {
	resp := model.Response{
		SubmissionID:     sub.ID,
		QuestionID:       q.ID,
		QuestionNumber:   q.Number,
		AppliesToStudent: true,
		ReviewStatus:     model.ReviewPending,
	}
	if prev != nil && prev.ID != "" {
		resp.ID = prev.ID
	} else {
		resp.ID = p.newID()
	}
	if row != nil {
		resp.StudentAnswer = strings.TrimSpace(row.RawText)
		resp.RecognitionConfidence = model.Float(row.Confidence)
		if row.HasAnnotation() {
			resp.TeacherAnnotation = map[string]string{"raw": row.Annotation}
		}
	}
	return resp
}

func (p *Pipeline) applyOutcome(resp *model.Response, q *model.Question, out evaluate.Outcome, steps *model.StepLog) {
	resp.Score = out.Score
	resp.IsCorrect = out.IsCorrect
	resp.NormalizedAnswer = out.NormalizedAnswer
	resp.Comments = out.Comment

	var malformed *model.MalformedAnswerKeyError
	switch {
	case errors.As(out.Err, &malformed):
		steps.Error(StepAnswerKey, "%v", malformed)
		if resp.Comments == "" {
			resp.Comments = fmt.Sprintf("Answer key problem: %s.", malformed.Reason)
		}
	case errors.Is(out.Err, model.ErrAdapterNotConfigured):
		steps.Warning(StepSubjectiveScoring, "question %s: scorer not configured, left for manual review", q.Number)
	case out.Err != nil:
		steps.Error(StepSubjectiveScoring, "question %s: %v", q.Number, out.Err)
	case out.Path == evaluate.PathAI:
		steps.Success(StepSubjectiveScoring, "question %s: scored %g of %g", q.Number, *out.Score, q.MaxScore)
	}

	if resp.Score == nil || p.lowConfidenceRow(resp) {
		resp.ReviewStatus = model.ReviewNeedsReview
	}
}

func (p *Pipeline) lowConfidenceRow(resp *model.Response) bool {
	return resp.RecognitionConfidence != nil && *resp.RecognitionConfidence < p.lowConfidence
}
