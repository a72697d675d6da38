package model

import (
	"errors"
	"fmt"
)

// ErrRecognitionFailed means no recognizer produced a usable row. It is
// the only error that aborts a submission before any response is built.
var ErrRecognitionFailed = errors.New("recognition failed: no usable rows")

// ErrAdapterNotConfigured means an external adapter has no credentials or
// backend. Grading degrades to an unresolved score.
var ErrAdapterNotConfigured = errors.New("adapter not configured")

// AdapterInvocationError wraps a runtime failure of an external adapter,
// including timeouts and exhausted retries.
type AdapterInvocationError struct {
	Adapter string
	Err     error
}

func (e *AdapterInvocationError) Error() string {
	return fmt.Sprintf("%s invocation failed: %v", e.Adapter, e.Err)
}

func (e *AdapterInvocationError) Unwrap() error { return e.Err }

// MalformedAnswerKeyError means a question's key lacks the fields its type
// needs. The question is left unresolved; grading continues.
type MalformedAnswerKeyError struct {
	QuestionNumber string
	Reason         string
}

func (e *MalformedAnswerKeyError) Error() string {
	return fmt.Sprintf("question %s: malformed answer key: %s", e.QuestionNumber, e.Reason)
}

// IsInvocation reports whether err is an adapter invocation failure.
func IsInvocation(err error) bool {
	var inv *AdapterInvocationError
	return errors.As(err, &inv)
}
