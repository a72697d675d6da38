// Package ledger keeps one live mistake record per (student, question)
// and updates it as graded responses come in.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/gradekit/internal/model"
)

// ResolutionMastered is written to a mistake when the student later
// answers the question correctly.
const ResolutionMastered = "Mastered on latest attempt"

type key struct {
	studentID  string
	questionID string
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Ledger applies graded responses to the mistake records. Sync calls for
// the same (student, question) run one at a time; different keys proceed
// in parallel.
type Ledger struct {
	repo        Repo
	classifiers []Classifier
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string

	mu    sync.Mutex
	locks map[key]*keyLock
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClassifiers replaces the default root-cause classifiers.
func WithClassifiers(cs ...Classifier) Option {
	return func(l *Ledger) { l.classifiers = cs }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New creates a Ledger over repo.
func New(repo Repo, opts ...Option) *Ledger {
	l := &Ledger{
		repo:        repo,
		classifiers: DefaultClassifiers(),
		logger:      slog.Default(),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
		locks:       make(map[key]*keyLock),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Sync applies resp to the mistake record for (studentID, q).
//
// An incorrect response creates the record or refreshes it; the error
// count only grows when the response belongs to a different submission
// than the one last linked, so re-grading is idempotent. A correct
// response annotates an existing record as mastered; re-grading the
// submission the record links to does not reopen it once a different
// submission resolved it. Responses that are
// unresolved or do not apply to the student leave the ledger untouched
// and return nil.
func (l *Ledger) Sync(ctx context.Context, studentID string, q *model.Question, resp *model.Response) (*model.Mistake, error) {
	if resp == nil || !resp.AppliesToStudent || resp.IsCorrect == nil {
		return nil, nil
	}

	k := key{studentID, q.ID}
	l.lock(k)
	defer l.unlock(k)

	existing, err := l.repo.Get(ctx, studentID, q.ID)
	if err != nil {
		return nil, fmt.Errorf("load mistake %s/%s: %w", studentID, q.Number, err)
	}

	now := l.now()
	var m *model.Mistake

	if *resp.IsCorrect {
		if existing == nil {
			return nil, nil
		}
		m = existing
		m.ResolutionNotes = ResolutionMastered
		m.ResolvedSubmissionID = resp.SubmissionID
		m.LastSeenAt = now
	} else {
		if existing == nil {
			m = &model.Mistake{
				ID:            l.newID(),
				StudentID:     studentID,
				QuestionID:    q.ID,
				KnowledgeTags: append([]string(nil), q.KnowledgeTags...),
				ErrorCount:    1,
				CreatedAt:     now,
			}
		} else {
			m = existing
			if m.SubmissionID == resp.SubmissionID && m.ResolvedSubmissionID != "" &&
				m.ResolvedSubmissionID != resp.SubmissionID {
				// Re-grade of the linked submission after a later one resolved it.
				return m, nil
			}
			if m.SubmissionID != resp.SubmissionID {
				m.ErrorCount++
			}
			m.ResolutionNotes = ""
			m.ResolvedSubmissionID = ""
		}
		m.SubmissionID = resp.SubmissionID
		m.ResponseID = resp.ID
		m.LastSeenAt = now

		cause, conf, name := RunClassifiers(l.classifiers, &ClassifyInput{
			Question:   q,
			Response:   resp,
			ErrorCount: m.ErrorCount,
		})
		m.RootCause = nil
		if cause != "" {
			c := string(cause)
			m.RootCause = &c
			l.logger.Debug("classified mistake", "student", studentID, "question", q.Number,
				"cause", cause, "confidence", conf, "classifier", name)
		}
	}

	if err := l.repo.Save(ctx, m); err != nil {
		return nil, fmt.Errorf("save mistake %s/%s: %w", studentID, q.Number, err)
	}
	return m, nil
}

func (l *Ledger) lock(k key) {
	l.mu.Lock()
	kl, ok := l.locks[k]
	if !ok {
		kl = &keyLock{}
		l.locks[k] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
}

func (l *Ledger) unlock(k key) {
	l.mu.Lock()
	kl := l.locks[k]
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, k)
	}
	l.mu.Unlock()

	kl.mu.Unlock()
}
