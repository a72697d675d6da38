package model

import "time"

// Mistake is the single live record of a student getting a question wrong.
// It is updated in place on repeat errors and annotated, never deleted,
// once the student answers correctly.
type Mistake struct {
	ID              string    `json:"id"`
	StudentID       string    `json:"student_id"`
	QuestionID      string    `json:"question_id"`
	SubmissionID    string    `json:"submission_id"`
	ResponseID      string    `json:"response_id"`
	KnowledgeTags   []string  `json:"knowledge_tags,omitempty"`
	ErrorCount      int       `json:"error_count"`
	CreatedAt       time.Time `json:"created_at"`
	LastSeenAt      time.Time `json:"last_seen_at"`
	ResolutionNotes string    `json:"resolution_notes,omitempty"`
	RootCause       *string   `json:"root_cause,omitempty"`

	// ResolvedSubmissionID is the submission whose correct answer resolved
	// the mistake, empty while it is open.
	ResolvedSubmissionID string `json:"resolved_submission_id,omitempty"`
}

// Resolved reports whether the mistake has been annotated as mastered.
func (m *Mistake) Resolved() bool { return m.ResolutionNotes != "" }
