package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/abhisek/gradekit/internal/model"
)

var (
	ErrResponseNotFound = errors.New("response not found")
	ErrNotApplicable    = errors.New("response does not apply to the student")
)

// Override is a teacher's manual score for one response.
type Override struct {
	ResponseID string
	Score      float64
	Comment    string
	Annotation map[string]string
}

// ApplyOverride records a manual score on sub, confirms the response and
// recomputes the total. A submission in needs_review moves to graded once
// every applicable response is resolved; a graded submission never goes
// back. The mistake ledger is updated with the new correctness.
func (p *Pipeline) ApplyOverride(ctx context.Context, exam *model.Exam, sub *model.Submission, o Override) (*model.Mistake, error) {
	var resp *model.Response
	for i := range sub.Responses {
		if sub.Responses[i].ID == o.ResponseID {
			resp = &sub.Responses[i]
			break
		}
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: %s", ErrResponseNotFound, o.ResponseID)
	}
	if !resp.AppliesToStudent {
		return nil, fmt.Errorf("%w: %s", ErrNotApplicable, o.ResponseID)
	}

	var q *model.Question
	for i := range exam.Questions {
		if exam.Questions[i].ID == resp.QuestionID {
			q = &exam.Questions[i]
			break
		}
	}
	if q == nil {
		return nil, fmt.Errorf("question %s is not part of exam %s", resp.QuestionID, exam.ID)
	}
	if o.Score < 0 || o.Score > q.MaxScore {
		return nil, fmt.Errorf("score %g outside [0, %g] for question %s", o.Score, q.MaxScore, q.Number)
	}

	resp.Score = model.Float(o.Score)
	resp.IsCorrect = model.Bool(o.Score >= q.MaxScore)
	resp.ReviewStatus = model.ReviewConfirmed
	if o.Comment != "" {
		resp.Comments = o.Comment
	}
	if len(o.Annotation) > 0 {
		resp.TeacherAnnotation = o.Annotation
	}

	sub.TotalScore = model.TotalScore(sub.Responses)
	if sub.Status == model.SubmissionNeedsReview {
		sub.Status = model.DeriveStatus(sub.Responses)
	}

	if p.ledger == nil {
		return nil, nil
	}
	m, err := p.ledger.Sync(context.WithoutCancel(ctx), sub.StudentID, q, resp)
	if err != nil {
		return nil, fmt.Errorf("override ledger sync: %w", err)
	}
	return m, nil
}
