package ledger

import (
	"strings"

	"github.com/abhisek/gradekit/internal/model"
)

// RootCause labels why a student likely got a question wrong.
type RootCause string

const (
	CauseBlankAnswer RootCause = "blank-answer"
	CauseMisread     RootCause = "misread"
	CauseRecurring   RootCause = "recurring"
)

// MisreadConfidenceThreshold is the recognition confidence (exclusive)
// below which a wrong answer may be an OCR misread rather than a real error.
const MisreadConfidenceThreshold = 0.5

// RecurringErrorCount is the error count at which a mistake is recurring.
const RecurringErrorCount = 3

// ClassifyInput holds the context for classification.
type ClassifyInput struct {
	Question   *model.Question
	Response   *model.Response
	ErrorCount int // After this sync is applied
}

// Classifier is a rule-based root-cause classifier.
// Returns a cause and confidence (0.0–1.0), or ("", 0) if the rule doesn't apply.
type Classifier interface {
	Name() string
	Classify(input *ClassifyInput) (RootCause, float64)
}

// DefaultClassifiers returns classifiers in priority order. A blank sheet
// explains the error better than anything else; a doubtful scan comes
// before history so misreads don't get counted as habits.
func DefaultClassifiers() []Classifier {
	return []Classifier{
		&BlankAnswerClassifier{},
		&MisreadClassifier{},
		&RecurringClassifier{},
	}
}

// RunClassifiers executes rule-based classifiers in order.
// Returns the first match, or ("", 0, "") if no rules apply.
func RunClassifiers(classifiers []Classifier, input *ClassifyInput) (RootCause, float64, string) {
	for _, c := range classifiers {
		cause, conf := c.Classify(input)
		if cause != "" {
			return cause, conf, c.Name()
		}
	}
	return "", 0, ""
}

// BlankAnswerClassifier flags wrong answers where nothing was written.
type BlankAnswerClassifier struct{}

func (c *BlankAnswerClassifier) Name() string { return "blank-answer" }

func (c *BlankAnswerClassifier) Classify(input *ClassifyInput) (RootCause, float64) {
	if input.Response != nil && strings.TrimSpace(input.Response.StudentAnswer) == "" {
		return CauseBlankAnswer, 0.9
	}
	return "", 0
}

// MisreadClassifier flags wrong answers recognized with low confidence.
type MisreadClassifier struct{}

func (c *MisreadClassifier) Name() string { return "misread" }

func (c *MisreadClassifier) Classify(input *ClassifyInput) (RootCause, float64) {
	if input.Response == nil || input.Response.RecognitionConfidence == nil {
		return "", 0
	}
	if *input.Response.RecognitionConfidence < MisreadConfidenceThreshold {
		return CauseMisread, 0.6
	}
	return "", 0
}

// RecurringClassifier flags questions the student keeps getting wrong
// across submissions.
type RecurringClassifier struct{}

func (c *RecurringClassifier) Name() string { return "recurring" }

func (c *RecurringClassifier) Classify(input *ClassifyInput) (RootCause, float64) {
	if input.ErrorCount >= RecurringErrorCount {
		return CauseRecurring, 0.7
	}
	return "", 0
}
