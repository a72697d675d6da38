package model

import "fmt"

// StepStatus is the outcome of one pipeline step.
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepWarning StepStatus = "warning"
	StepError   StepStatus = "error"
)

// PipelineStep is one audit-trail entry.
type PipelineStep struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}

// StepLog is an append-only sequence of pipeline steps.
type StepLog struct {
	steps []PipelineStep
}

func (l *StepLog) Success(name, format string, args ...any) {
	l.append(name, StepSuccess, format, args...)
}

func (l *StepLog) Warning(name, format string, args ...any) {
	l.append(name, StepWarning, format, args...)
}

func (l *StepLog) Error(name, format string, args ...any) {
	l.append(name, StepError, format, args...)
}

// Extend appends steps produced elsewhere, preserving their order.
func (l *StepLog) Extend(steps []PipelineStep) {
	l.steps = append(l.steps, steps...)
}

// Steps returns a copy of the log so callers cannot rewrite history.
func (l *StepLog) Steps() []PipelineStep {
	out := make([]PipelineStep, len(l.steps))
	copy(out, l.steps)
	return out
}

func (l *StepLog) Len() int { return len(l.steps) }

func (l *StepLog) append(name string, status StepStatus, format string, args ...any) {
	l.steps = append(l.steps, PipelineStep{
		Name:   name,
		Status: status,
		Detail: fmt.Sprintf(format, args...),
	})
}
