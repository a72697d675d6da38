package model

import "time"

// SubmissionStatus tracks grading progress for one attempt.
//
//	pending --grade--> graded | needs_review
//	needs_review --override/re-grade--> graded
type SubmissionStatus string

const (
	SubmissionPending     SubmissionStatus = "pending"
	SubmissionGraded      SubmissionStatus = "graded"
	SubmissionNeedsReview SubmissionStatus = "needs_review"
)

// ReviewStatus is the per-response review state.
type ReviewStatus string

const (
	ReviewPending     ReviewStatus = "pending"
	ReviewConfirmed   ReviewStatus = "confirmed"
	ReviewNeedsReview ReviewStatus = "needs_review"
)

// Submission is one student's attempt at one exam.
type Submission struct {
	ID          string           `json:"id"`
	ExamID      string           `json:"exam_id"`
	StudentID   string           `json:"student_id"`
	SubmittedAt time.Time        `json:"submitted_at"`
	TotalScore  float64          `json:"total_score"`
	Status      SubmissionStatus `json:"status"`
	Responses   []Response       `json:"responses,omitempty"`
}

// Response is the graded answer to one question within a submission.
// A nil Score means the question is unresolved; IsCorrect is tri-state.
type Response struct {
	ID                    string            `json:"id"`
	SubmissionID          string            `json:"submission_id"`
	QuestionID            string            `json:"question_id"`
	QuestionNumber        string            `json:"question_number"`
	StudentAnswer         string            `json:"student_answer,omitempty"`
	NormalizedAnswer      string            `json:"normalized_answer,omitempty"`
	Score                 *float64          `json:"score"`
	IsCorrect             *bool             `json:"is_correct"`
	RecognitionConfidence *float64          `json:"recognition_confidence,omitempty"`
	AppliesToStudent      bool              `json:"applies_to_student"`
	ReviewStatus          ReviewStatus      `json:"review_status"`
	TeacherAnnotation     map[string]string `json:"teacher_annotation,omitempty"`
	Comments              string            `json:"comments,omitempty"`
}

// Resolved reports whether the response carries a score.
func (r *Response) Resolved() bool { return r.Score != nil }

// TotalScore sums the scores of applicable, resolved responses.
func TotalScore(responses []Response) float64 {
	var total float64
	for i := range responses {
		r := &responses[i]
		if !r.AppliesToStudent || r.Score == nil {
			continue
		}
		total += *r.Score
	}
	return total
}

// DeriveStatus returns needs_review when any applicable response is
// unresolved, graded otherwise. Non-applicable responses never count.
func DeriveStatus(responses []Response) SubmissionStatus {
	for i := range responses {
		r := &responses[i]
		if r.AppliesToStudent && r.Score == nil {
			return SubmissionNeedsReview
		}
	}
	return SubmissionGraded
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
