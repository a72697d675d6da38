// Package evaluate scores a single recognized answer against its
// question's answer key, a teacher mark, or an AI scorer.
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/abhisek/gradekit/internal/model"
)

// Path records which rule produced an outcome.
type Path string

const (
	PathObjective Path = "objective"
	PathMark      Path = "mark"
	PathAI        Path = "ai"
	PathNone      Path = "none"
)

// CorrectThreshold is the fraction of max score at or above which an
// AI-scored answer counts as correct.
const CorrectThreshold = 0.8

const (
	commentNoAnswer      = "No answer recognized."
	commentNoExplanation = "AI grading succeeded but no explanation was provided."
)

// Outcome is the result of evaluating one question. A nil Score means the
// question is unresolved and needs a human. Err explains why when the
// cause is an adapter or a bad answer key.
type Outcome struct {
	Score            *float64
	IsCorrect        *bool
	NormalizedAnswer string
	Comment          string
	Path             Path
	Err              error
}

// Resolved reports whether the outcome carries a score.
func (o Outcome) Resolved() bool { return o.Score != nil }

// Evaluator applies the per-type grading rules.
type Evaluator struct {
	scorer Scorer
	logger *slog.Logger
}

// New returns an evaluator. A nil scorer leaves subjective questions
// without a usable mark unresolved.
func New(scorer Scorer, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{scorer: scorer, logger: logger}
}

// Evaluate grades q using the recognized row. row may be nil when nothing
// was recognized for the question.
func (e *Evaluator) Evaluate(ctx context.Context, q *model.Question, row *model.RecognizedRow) Outcome {
	var answer, mark string
	if row != nil {
		answer = strings.TrimSpace(row.RawText)
		mark = strings.TrimSpace(row.Annotation)
	}

	switch q.Type {
	case model.QuestionMultipleChoice:
		key, ok := q.Key.(*model.MultipleChoiceKey)
		if !ok || key == nil || strings.TrimSpace(key.Correct) == "" {
			return malformed(q, "multiple choice question has no correct option")
		}
		if answer == "" {
			return e.markOrUnanswered(q, mark)
		}
		return evaluateChoice(q, key, answer)

	case model.QuestionFillInBlank:
		key, ok := q.Key.(*model.FillInBlankKey)
		if !ok || key == nil || len(key.AcceptableAnswers) == 0 {
			return malformed(q, "fill-in-blank question has no acceptable answers")
		}
		if key.NumericTolerance < 0 {
			return malformed(q, "numeric tolerance is negative")
		}
		if answer == "" {
			return e.markOrUnanswered(q, mark)
		}
		return evaluateBlank(q, key, answer)

	case model.QuestionSubjective:
		key := &model.SubjectiveKey{}
		if q.Key != nil {
			k, ok := q.Key.(*model.SubjectiveKey)
			if !ok {
				return malformed(q, fmt.Sprintf("answer key does not match type %s", q.Type))
			}
			if k != nil {
				key = k
			}
		}
		if out, ok := fromMark(q, mark); ok {
			out.NormalizedAnswer = answer
			return out
		}
		if answer == "" {
			return Outcome{Path: PathNone, Comment: commentNoAnswer}
		}
		return e.scoreWithAI(ctx, q, key, answer)
	}

	return malformed(q, fmt.Sprintf("unknown question type %q", q.Type))
}

// markOrUnanswered resolves an objective question whose answer text is
// missing from the teacher's mark, if there is a usable one.
func (e *Evaluator) markOrUnanswered(q *model.Question, mark string) Outcome {
	if out, ok := fromMark(q, mark); ok {
		return out
	}
	return Outcome{Path: PathNone, Comment: commentNoAnswer}
}

func fromMark(q *model.Question, mark string) (Outcome, bool) {
	score, ok := ScoreFromMark(mark, q.MaxScore)
	if !ok {
		return Outcome{}, false
	}
	return Outcome{
		Score:     model.Float(score),
		IsCorrect: model.Bool(approxEqual(score, q.MaxScore)),
		Path:      PathMark,
	}, true
}

func evaluateChoice(q *model.Question, key *model.MultipleChoiceKey, answer string) Outcome {
	student := normalizeOption(answer)
	correct := student == normalizeOption(key.Correct)
	return objective(q, student, correct, "")
}

func evaluateBlank(q *model.Question, key *model.FillInBlankKey, answer string) Outcome {
	var correct bool
	if key.Numeric {
		accepted := make([]float64, 0, len(key.AcceptableAnswers))
		for _, a := range key.AcceptableAnswers {
			v, ok := parseNumber(a)
			if !ok {
				return malformed(q, fmt.Sprintf("acceptable answer %q is not numeric", a))
			}
			accepted = append(accepted, v)
		}
		if student, ok := parseNumber(answer); ok {
			for _, v := range accepted {
				diff := student - v
				if diff < 0 {
					diff = -diff
				}
				if diff <= key.NumericTolerance+scoreEpsilon {
					correct = true
					break
				}
			}
		}
	} else {
		student := normalizeText(answer)
		for _, a := range key.AcceptableAnswers {
			if student == normalizeText(a) {
				correct = true
				break
			}
		}
	}

	comment := ""
	if !correct {
		comment = "Expected one of: " + strings.Join(key.AcceptableAnswers, ", ")
	}
	return objective(q, fold(answer), correct, comment)
}

func objective(q *model.Question, normalized string, correct bool, comment string) Outcome {
	score := 0.0
	if correct {
		score = q.MaxScore
	}
	return Outcome{
		Score:            model.Float(score),
		IsCorrect:        model.Bool(correct),
		NormalizedAnswer: normalized,
		Comment:          comment,
		Path:             PathObjective,
	}
}

func (e *Evaluator) scoreWithAI(ctx context.Context, q *model.Question, key *model.SubjectiveKey, answer string) Outcome {
	out := Outcome{Path: PathAI, NormalizedAnswer: answer}
	if e.scorer == nil {
		out.Err = model.ErrAdapterNotConfigured
		return out
	}

	res, err := e.scorer.Score(ctx, ScoreRequest{
		Prompt:        q.Prompt,
		Rubric:        key.Rubric,
		Reference:     key.Reference,
		StudentAnswer: answer,
		MaxScore:      q.MaxScore,
	})
	if err != nil {
		if !errors.Is(err, model.ErrAdapterNotConfigured) && !model.IsInvocation(err) {
			err = &model.AdapterInvocationError{Adapter: "subjective-scorer", Err: err}
		}
		e.logger.Warn("subjective scoring failed", "question", q.Number, "error", err)
		out.Err = err
		return out
	}

	score := round2(clamp(res.Score, q.MaxScore))
	out.Score = model.Float(score)
	out.IsCorrect = model.Bool(score+scoreEpsilon >= CorrectThreshold*q.MaxScore)
	out.Comment = strings.TrimSpace(res.Explanation)
	if out.Comment == "" {
		out.Comment = commentNoExplanation
	}
	return out
}

func malformed(q *model.Question, reason string) Outcome {
	return Outcome{
		Path: PathNone,
		Err:  &model.MalformedAnswerKeyError{QuestionNumber: q.Number, Reason: reason},
	}
}
