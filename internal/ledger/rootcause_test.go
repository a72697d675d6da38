package ledger

import (
	"context"
	"testing"

	"github.com/abhisek/gradekit/internal/model"
)

func TestBlankAnswerClassifier(t *testing.T) {
	c := &BlankAnswerClassifier{}
	cause, conf := c.Classify(&ClassifyInput{Response: &model.Response{StudentAnswer: "  "}})
	if cause != CauseBlankAnswer || conf != 0.9 {
		t.Errorf("got %q/%f, want %q/0.9", cause, conf, CauseBlankAnswer)
	}
	if cause, _ := c.Classify(&ClassifyInput{Response: &model.Response{StudentAnswer: "B"}}); cause != "" {
		t.Errorf("got %q for written answer, want empty", cause)
	}
}

func TestMisreadClassifier(t *testing.T) {
	c := &MisreadClassifier{}
	tests := []struct {
		conf *float64
		want RootCause
	}{
		{model.Float(0.3), CauseMisread},
		{model.Float(MisreadConfidenceThreshold), ""},
		{model.Float(0.9), ""},
		{nil, ""},
	}
	for _, tt := range tests {
		cause, _ := c.Classify(&ClassifyInput{Response: &model.Response{StudentAnswer: "x", RecognitionConfidence: tt.conf}})
		if cause != tt.want {
			t.Errorf("confidence %v: got %q, want %q", tt.conf, cause, tt.want)
		}
	}
}

func TestRecurringClassifier(t *testing.T) {
	c := &RecurringClassifier{}
	if cause, _ := c.Classify(&ClassifyInput{ErrorCount: RecurringErrorCount - 1}); cause != "" {
		t.Errorf("got %q below threshold, want empty", cause)
	}
	if cause, _ := c.Classify(&ClassifyInput{ErrorCount: RecurringErrorCount}); cause != CauseRecurring {
		t.Errorf("got %q at threshold, want %q", cause, CauseRecurring)
	}
}

func TestRunClassifiers_Priority(t *testing.T) {
	input := &ClassifyInput{
		Response:   &model.Response{StudentAnswer: "", RecognitionConfidence: model.Float(0.1)},
		ErrorCount: 5,
	}
	cause, _, name := RunClassifiers(DefaultClassifiers(), input)
	if cause != CauseBlankAnswer || name != "blank-answer" {
		t.Errorf("got %q from %q, want blank-answer first", cause, name)
	}

	input.Response.StudentAnswer = "7"
	if cause, _, _ := RunClassifiers(DefaultClassifiers(), input); cause != CauseMisread {
		t.Errorf("got %q, want %q", cause, CauseMisread)
	}

	input.Response.RecognitionConfidence = model.Float(0.95)
	if cause, _, _ := RunClassifiers(DefaultClassifiers(), input); cause != CauseRecurring {
		t.Errorf("got %q, want %q", cause, CauseRecurring)
	}

	input.ErrorCount = 1
	if cause, conf, name := RunClassifiers(DefaultClassifiers(), input); cause != "" || conf != 0 || name != "" {
		t.Errorf("got %q/%f/%q, want no match", cause, conf, name)
	}
}

func TestSyncRecordsRootCause(t *testing.T) {
	l := New(NewMemoryRepo())
	resp := response("sub-1", "r-1", model.Bool(false))
	resp.StudentAnswer = ""

	m, err := l.Sync(context.Background(), "stu-1", question, resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.RootCause == nil || *m.RootCause != string(CauseBlankAnswer) {
		t.Fatalf("expected blank-answer root cause, got %v", m.RootCause)
	}
}
