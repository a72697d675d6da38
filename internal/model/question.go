package model

import (
	"encoding/json"
	"fmt"
)

// QuestionType selects the evaluation strategy for a question.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionFillInBlank    QuestionType = "fill_in_blank"
	QuestionSubjective     QuestionType = "subjective"
)

// Exam is an ordered set of questions. Grading walks Questions in order.
type Exam struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Subject   string     `json:"subject,omitempty"`
	Questions []Question `json:"questions"`
}

// Question is read-only for the duration of grading.
type Question struct {
	ID            string       `json:"id"`
	Number        string       `json:"number"`
	Type          QuestionType `json:"type"`
	Prompt        string       `json:"prompt,omitempty"`
	MaxScore      float64      `json:"max_score"`
	KnowledgeTags []string     `json:"knowledge_tags,omitempty"`

	// Key is one of *MultipleChoiceKey, *FillInBlankKey or *SubjectiveKey,
	// matching Type. It may be nil when the exam author left it empty.
	Key AnswerKey `json:"-"`

	// TargetStudentIDs restricts the question to a subset of students.
	// Empty means the question applies to everyone.
	TargetStudentIDs []string `json:"target_student_ids,omitempty"`
}

// AppliesTo reports whether the question is in scope for studentID.
func (q *Question) AppliesTo(studentID string) bool {
	if len(q.TargetStudentIDs) == 0 {
		return true
	}
	for _, id := range q.TargetStudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// AnswerKey is the tagged reference data for one question type.
type AnswerKey interface {
	questionType() QuestionType
}

// MultipleChoiceKey holds the single correct option label.
type MultipleChoiceKey struct {
	Correct string   `json:"correct"`
	Options []string `json:"options,omitempty"`
}

func (*MultipleChoiceKey) questionType() QuestionType { return QuestionMultipleChoice }

// FillInBlankKey lists the accepted answers. When Numeric is set the
// answers are compared as numbers within NumericTolerance.
type FillInBlankKey struct {
	AcceptableAnswers []string `json:"acceptable_answers"`
	Numeric           bool     `json:"numeric,omitempty"`
	NumericTolerance  float64  `json:"numeric_tolerance,omitempty"`
}

func (*FillInBlankKey) questionType() QuestionType { return QuestionFillInBlank }

// SubjectiveKey carries the grading rubric and an optional reference answer.
type SubjectiveKey struct {
	Rubric    string `json:"rubric,omitempty"`
	Reference string `json:"reference,omitempty"`
}

func (*SubjectiveKey) questionType() QuestionType { return QuestionSubjective }

// UnmarshalJSON decodes answer_key into the variant selected by type.
func (q *Question) UnmarshalJSON(data []byte) error {
	type plain Question
	var raw struct {
		plain
		AnswerKey json.RawMessage `json:"answer_key,omitempty"`
		Rubric    string          `json:"rubric,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*q = Question(raw.plain)

	hasKey := len(raw.AnswerKey) > 0 && string(raw.AnswerKey) != "null"
	switch q.Type {
	case QuestionMultipleChoice:
		if hasKey {
			var k MultipleChoiceKey
			if err := json.Unmarshal(raw.AnswerKey, &k); err != nil {
				return fmt.Errorf("question %s: multiple choice key: %w", q.Number, err)
			}
			q.Key = &k
		}
	case QuestionFillInBlank:
		if hasKey {
			var k FillInBlankKey
			if err := json.Unmarshal(raw.AnswerKey, &k); err != nil {
				return fmt.Errorf("question %s: fill-in-blank key: %w", q.Number, err)
			}
			q.Key = &k
		}
	case QuestionSubjective:
		k := SubjectiveKey{Rubric: raw.Rubric}
		if hasKey {
			var ref struct {
				Reference string `json:"reference"`
			}
			if err := json.Unmarshal(raw.AnswerKey, &ref); err != nil {
				return fmt.Errorf("question %s: subjective reference: %w", q.Number, err)
			}
			k.Reference = ref.Reference
		}
		q.Key = &k
	default:
		return fmt.Errorf("question %s: unknown type %q", q.Number, q.Type)
	}
	return nil
}

// MarshalJSON writes the key back under answer_key (and rubric for
// subjective questions) so exams round-trip through files.
func (q Question) MarshalJSON() ([]byte, error) {
	type plain Question
	out := struct {
		plain
		AnswerKey any    `json:"answer_key,omitempty"`
		Rubric    string `json:"rubric,omitempty"`
	}{plain: plain(q)}

	switch k := q.Key.(type) {
	case *MultipleChoiceKey:
		out.AnswerKey = k
	case *FillInBlankKey:
		out.AnswerKey = k
	case *SubjectiveKey:
		out.Rubric = k.Rubric
		if k.Reference != "" {
			out.AnswerKey = map[string]string{"reference": k.Reference}
		}
	}
	return json.Marshal(out)
}
